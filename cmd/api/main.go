package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"avatarforge/internal/activity"
	"avatarforge/internal/adapter/repo"
	"avatarforge/internal/assets"
	"avatarforge/internal/catalog"
	"avatarforge/internal/compose"
	"avatarforge/internal/http/handlers"
	httpapi "avatarforge/internal/http/httpapi"
	"avatarforge/internal/identity"
	"avatarforge/internal/imaging"
	"avatarforge/internal/infra"
	"avatarforge/internal/infra/geoip"
	"avatarforge/internal/ingest"
	"avatarforge/internal/middleware"
	"avatarforge/internal/storage"
	"avatarforge/internal/workflow"
)

const sessionSweepInterval = time.Minute

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Generation history is optional.
	var (
		recorder workflow.Recorder
		stats    handlers.StatsSource
	)
	pool, err := infra.NewDBPool(ctx, cfg)
	switch {
	case errors.Is(err, infra.ErrNoDatabase):
		logger.Warn().Msg("DATABASE_URL not set, generation history disabled")
	case err != nil:
		logger.Fatal().Err(err).Msg("failed to connect database")
	default:
		defer pool.Close()
		history := repo.NewGenerationRepository(infra.NewSQLRunner(pool, infra.Component(logger, "sql")))
		if err := history.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate generation history")
		}
		recorder, stats = history, history
	}

	var countryLookup middleware.CountryLookup
	geo, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.GeoIPDBPath).Msg("geoip database unavailable, locale falls back to headers")
	} else if geo != nil {
		defer geo.Close()
		countryLookup = geo.Lookup()
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load catalog")
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	assetReader, err := assets.New(assets.Options{
		BaseURL:    cfg.AssetBaseURL,
		Dir:        cfg.AssetDir,
		HTTPClient: httpClient,
		MaxBytes:   cfg.MaxSourceBytes,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure asset reader")
	}

	files, err := storage.NewFileStore(cfg.HandoffDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure handoff storage")
	}
	handoff := storage.NewHandoff(files, cfg.HandoffTTL)

	engine := imaging.New(imaging.Options{
		OutputSize:     cfg.OutputSize,
		MaxSide:        cfg.AvatarMaxSide,
		MaxPixels:      cfg.MaxSourcePixels,
		MaxTotalPixels: cfg.MaxAnimationPixels,
	})

	relay := activity.NewWebhookRelay(activity.Options{
		WebhookURL: cfg.DiscordWebhookURL,
		AppName:    cfg.AppName,
		HTTPClient: httpClient,
		Logger:     infra.Component(logger, "activity"),
	})
	if !relay.Configured() {
		logger.Info().Msg("DISCORD_WEBHOOK_URL not set, activity relay disabled")
	}

	resolver := identity.NewResolver(identity.Options{
		APIBase:    cfg.DiscordAPIBase,
		CDNBase:    cfg.DiscordCDNBase,
		BotToken:   cfg.DiscordBotToken,
		HTTPClient: httpClient,
		Notifier:   relay,
		Logger:     infra.Component(logger, "identity"),
	})

	sessions := workflow.NewRegistry(workflow.Options{
		Normalizer: ingest.New(ingest.Options{
			Engine:     engine,
			Assets:     assetReader,
			HTTPClient: httpClient,
			MaxBytes:   cfg.MaxSourceBytes,
			Timeout:    cfg.EngineTimeout,
			Logger:     infra.Component(logger, "ingest"),
		}),
		Compositor:  compose.New(engine, assetReader, cfg.EngineTimeout, infra.Component(logger, "compose")),
		Handoff:     handoff,
		Notifier:    relay,
		Recorder:    recorder,
		InlineLimit: cfg.ArtifactInlineMax,
		Logger:      infra.Component(logger, "workflow"),
	}, cfg.SessionIdleTTL)
	go sessions.Run(ctx, sessionSweepInterval)

	app := &handlers.App{
		Config:   cfg,
		Logger:   logger,
		Identity: resolver,
		Relay:    relay,
		Catalog:  cat,
		Sessions: sessions,
		Handoff:  handoff,
		Frames:   engine,
		Stats:    stats,
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:         logger,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimit:      cfg.RateLimitPerMin,
		CountryLookup:  countryLookup,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	sessions.Shutdown()
	relay.Wait()
	logger.Info().Msg("server stopped")
}
