package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"avatarforge/internal/domain"
	"avatarforge/internal/storage"
)

// DefaultMaxBytes bounds any single fetched image.
const DefaultMaxBytes = 10 << 20

// Reader resolves catalog asset references into bytes.
type Reader interface {
	Read(ctx context.Context, ref string) ([]byte, error)
}

// Options configures where assets are read from. BaseURL wins over Dir.
type Options struct {
	BaseURL    string
	Dir        string
	HTTPClient *http.Client
	MaxBytes   int64
}

// New returns a Reader for the configured location.
func New(opts Options) (Reader, error) {
	if base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"); base != "" {
		if _, err := url.Parse(base); err != nil {
			return nil, fmt.Errorf("assets: invalid base url: %w", err)
		}
		client := opts.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: 15 * time.Second}
		}
		return &HTTPReader{base: base, client: client, maxBytes: opts.MaxBytes}, nil
	}
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, errors.New("assets: either base url or directory is required")
	}
	store, err := storage.NewFileStore(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("assets: %w", err)
	}
	return store, nil
}

// HTTPReader fetches assets relative to a base URL.
type HTTPReader struct {
	base     string
	client   *http.Client
	maxBytes int64
}

func (r *HTTPReader) Read(ctx context.Context, ref string) ([]byte, error) {
	ref = strings.TrimLeft(strings.TrimSpace(ref), "/")
	if ref == "" {
		return nil, errors.New("assets: empty reference")
	}
	data, _, err := Fetch(ctx, r.client, r.base+"/"+ref, r.maxBytes)
	return data, err
}

// Fetch performs a GET and returns the body and the declared content type.
// Non-2xx responses and bodies above maxBytes are errors wrapping
// domain.ErrUpstream and domain.ErrValidation respectively.
func Fetch(ctx context.Context, client *http.Client, rawURL string, maxBytes int64) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, "", fmt.Errorf("assets: unsupported url %q: %w", rawURL, domain.ErrValidation)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("assets: fetch %s: %v: %w", u.Host, err, domain.ErrUpstream)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("assets: fetch %s: http %d: %w", u.Host, resp.StatusCode, domain.ErrUpstream)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("assets: read body: %v: %w", err, domain.ErrUpstream)
	}
	if int64(len(data)) > maxBytes {
		return nil, "", fmt.Errorf("assets: body exceeds %d bytes: %w", maxBytes, domain.ErrValidation)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
