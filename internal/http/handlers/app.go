package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"avatarforge/internal/activity"
	"avatarforge/internal/adapter/repo"
	"avatarforge/internal/catalog"
	"avatarforge/internal/domain"
	"avatarforge/internal/infra"
	"avatarforge/internal/middleware"
	"avatarforge/internal/workflow"
)

// IdentityResolver looks up a Discord profile.
type IdentityResolver interface {
	Resolve(ctx context.Context, identifier string) (*domain.DiscordProfile, error)
}

// ActivityDeliverer relays an activity event synchronously.
type ActivityDeliverer interface {
	Configured() bool
	Deliver(ctx context.Context, ev activity.Event) error
}

// HandoffReader reads artifacts parked in the transient store.
type HandoffReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// FrameExtractor decodes every frame of an encoded artifact.
type FrameExtractor interface {
	ExtractFrames(data []byte) ([]image.Image, error)
}

// StatsSource reports generation history counters.
type StatsSource interface {
	Last24h(ctx context.Context) (*repo.GenerationStats, error)
}

type App struct {
	Config   *infra.Config
	Logger   zerolog.Logger
	Identity IdentityResolver
	Relay    ActivityDeliverer
	Catalog  *catalog.Catalog
	Sessions *workflow.Registry
	Handoff  HandoffReader
	Frames   FrameExtractor
	Stats    StatsSource
	Now      func() time.Time
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Message string `json:"message,omitempty"`
}

func (a *App) error(w http.ResponseWriter, code int, msg, details string) {
	a.json(w, code, errorResponse{Error: msg, Details: details})
}

// errorLocalized is error with a user-facing message in the request locale.
func (a *App) errorLocalized(w http.ResponseWriter, r *http.Request, code int, msg, details, key string) {
	a.json(w, code, errorResponse{
		Error:   msg,
		Details: details,
		Message: Message(localeOf(r), key),
	})
}

// logDomainError logs err at the level its kind deserves: deployment
// problems at error, upstream trouble at warn, user mistakes at info.
func (a *App) logDomainError(r *http.Request, err error, msg string) {
	ev := a.Logger.Error()
	switch {
	case errors.Is(err, domain.ErrConfig):
	case errors.Is(err, domain.ErrUpstream):
		ev = a.Logger.Warn()
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrValidation):
		ev = a.Logger.Info()
	}
	ev.Err(err).
		Str("kind", domain.ErrorKind(err)).
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Msg(msg)
}

func localeOf(r *http.Request) string {
	return middleware.LocaleFromContext(r.Context())
}
