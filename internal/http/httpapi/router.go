package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"avatarforge/internal/http/handlers"
	"avatarforge/internal/middleware"
)

// Options configures the router's middleware chain.
type Options struct {
	Logger         zerolog.Logger
	AllowedOrigins []string
	RateLimit      int
	CountryLookup  middleware.CountryLookup
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N("en", opts.CountryLookup),
	)

	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RateLimit, time.Minute))
		r.Get("/identity", app.Identity)
		r.Post("/activity", app.Activity)
	})

	r.Route("/catalog", func(r chi.Router) {
		r.Get("/avatars", app.CatalogAvatars)
		r.Get("/categories", app.CatalogCategories)
		r.Get("/decorations", app.CatalogDecorations)
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", app.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.GetSession)
			r.Delete("/", app.DeleteSession)
			r.Put("/avatar", app.SetAvatar)
			r.Put("/decoration", app.SetDecoration)
			r.Post("/generate", app.Generate)
			r.Get("/artifact", app.Artifact)
		})
	})

	r.Route("/handoff/{key}", func(r chi.Router) {
		r.Get("/", app.HandoffArtifact)
		r.Get("/frames.zip", app.HandoffFramesZip)
		r.Get("/frames/{n}", app.HandoffFrame)
	})

	r.Get("/metrics/generations-24h", app.Generations24h)

	return r
}
