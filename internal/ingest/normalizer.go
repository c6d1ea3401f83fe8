package ingest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"avatarforge/internal/assets"
	"avatarforge/internal/domain"
	"avatarforge/internal/imaging"
)

// Cropper is the part of the image engine the normalizer needs.
type Cropper interface {
	CropToSquare(ctx context.Context, raw []byte) (domain.ImageHandle, error)
}

// Options wires a Normalizer.
type Options struct {
	Engine     Cropper
	Assets     assets.Reader
	HTTPClient *http.Client
	MaxBytes   int64
	// Timeout bounds a single engine call; zero disables it.
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Normalizer validates raw avatars from any source and produces square handles.
type Normalizer struct {
	engine   Cropper
	assets   assets.Reader
	client   *http.Client
	maxBytes int64
	timeout  time.Duration
	logger   zerolog.Logger
}

// New builds a Normalizer.
func New(opts Options) *Normalizer {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = assets.DefaultMaxBytes
	}
	return &Normalizer{
		engine:   opts.Engine,
		assets:   opts.Assets,
		client:   client,
		maxBytes: maxBytes,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
	}
}

// Normalize acquires the source bytes, checks their signature against the
// MIME whitelist and asks the engine for a square crop.
func (n *Normalizer) Normalize(ctx context.Context, src domain.AvatarSource) (domain.NormalizedAvatar, error) {
	raw, declared, err := n.acquire(ctx, src)
	if err != nil {
		return domain.NormalizedAvatar{}, err
	}
	format, err := imaging.Sniff(raw)
	if err != nil {
		n.logger.Debug().Str("source", string(src.Kind())).Str("declared", declared).Msg("ingest: rejected payload signature")
		return domain.NormalizedAvatar{}, fmt.Errorf("ingest: %s source: %w", src.Kind(), err)
	}
	if declared != "" && declared != string(format) {
		n.logger.Debug().Str("declared", declared).Str("sniffed", string(format)).Msg("ingest: declared type differs from content")
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}
	handle, err := n.engine.CropToSquare(ctx, raw)
	if err != nil {
		return domain.NormalizedAvatar{}, fmt.Errorf("ingest: crop to square: %v: %w", err, domain.ErrValidation)
	}
	if handle == nil || handle.FrameCount() == 0 {
		return domain.NormalizedAvatar{}, fmt.Errorf("ingest: engine returned empty handle: %w", domain.ErrValidation)
	}
	return domain.NormalizedAvatar{Handle: handle, Animated: handle.FrameCount() > 1}, nil
}

func (n *Normalizer) acquire(ctx context.Context, src domain.AvatarSource) ([]byte, string, error) {
	switch src.Kind() {
	case domain.SourceFile:
		data := src.Data()
		if int64(len(data)) > n.maxBytes {
			return nil, "", fmt.Errorf("ingest: upload exceeds %d bytes: %w", n.maxBytes, domain.ErrValidation)
		}
		return data, src.DeclaredType(), nil
	case domain.SourceURL, domain.SourceIdentity:
		data, ctype, err := assets.Fetch(ctx, n.client, src.URL(), n.maxBytes)
		if err != nil {
			return nil, "", fmt.Errorf("ingest: %s source: %w", src.Kind(), err)
		}
		return data, ctype, nil
	case domain.SourcePreset:
		if n.assets == nil {
			return nil, "", fmt.Errorf("ingest: no asset reader configured: %w", domain.ErrConfig)
		}
		data, err := n.assets.Read(ctx, src.AssetRef())
		if err != nil {
			return nil, "", fmt.Errorf("ingest: preset %q: %v: %w", src.AssetRef(), err, domain.ErrUpstream)
		}
		return data, "", nil
	default:
		return nil, "", fmt.Errorf("ingest: unknown source kind %q: %w", src.Kind(), domain.ErrValidation)
	}
}
