package compose

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"avatarforge/internal/assets"
	"avatarforge/internal/domain"
)

// Engine is the part of the image engine the compositor needs. An empty
// decoration slice means "none".
type Engine interface {
	ComposeDecoration(ctx context.Context, avatar domain.ImageHandle, decoration []byte) (*domain.Artifact, error)
}

// Compositor loads decoration assets and drives the engine. It never returns
// raw engine errors: every failure becomes a GenerationResult failure.
type Compositor struct {
	engine  Engine
	assets  assets.Reader
	timeout time.Duration
	logger  zerolog.Logger
}

// New builds a Compositor. timeout bounds a single composition; zero disables it.
func New(engine Engine, reader assets.Reader, timeout time.Duration, logger zerolog.Logger) *Compositor {
	return &Compositor{engine: engine, assets: reader, timeout: timeout, logger: logger}
}

// Compose combines avatar with decoration.
func (c *Compositor) Compose(ctx context.Context, avatar domain.NormalizedAvatar, decoration domain.Decoration) (result domain.GenerationResult) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("compose: engine panicked")
			result = domain.Failure(fmt.Errorf("compose: engine panic: %w", domain.ErrComposition))
		}
	}()

	if avatar.Handle == nil {
		return domain.Failure(fmt.Errorf("compose: no avatar: %w", domain.ErrComposition))
	}
	var overlay []byte
	if !decoration.IsNone() {
		if c.assets == nil {
			return domain.Failure(fmt.Errorf("compose: no asset reader configured: %w", domain.ErrComposition))
		}
		data, err := c.assets.Read(ctx, decoration.AssetRef)
		if err != nil {
			c.logger.Warn().Err(err).Str("decoration", decoration.ID).Msg("compose: decoration asset unavailable")
			return domain.Failure(fmt.Errorf("compose: load decoration %q: %v: %w", decoration.ID, err, domain.ErrComposition))
		}
		overlay = data
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	start := time.Now()
	art, err := c.engine.ComposeDecoration(ctx, avatar.Handle, overlay)
	if err != nil {
		c.logger.Warn().Err(err).Str("decoration", decoration.ID).Msg("compose: engine rejected")
		return domain.Failure(fmt.Errorf("compose: %v: %w", err, domain.ErrComposition))
	}
	if art == nil || len(art.Data) == 0 {
		return domain.Failure(fmt.Errorf("compose: engine returned empty artifact: %w", domain.ErrComposition))
	}
	c.logger.Debug().
		Str("decoration", decoration.ID).
		Int("bytes", len(art.Data)).
		Int("frames", art.Frames).
		Dur("took", time.Since(start)).
		Msg("compose: artifact ready")
	return domain.Success(art)
}
