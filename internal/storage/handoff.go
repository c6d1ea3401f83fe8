package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const handoffPrefix = "handoff"

// Handoff is the transient store used to pass oversized artifacts to the
// still-frame extraction flow. Entries expire after ttl.
type Handoff struct {
	files *FileStore
	ttl   time.Duration
}

// NewHandoff wraps files with handoff semantics.
func NewHandoff(files *FileStore, ttl time.Duration) *Handoff {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Handoff{files: files, ttl: ttl}
}

// Put stores data under a fresh key carrying ext and returns the key.
func (h *Handoff) Put(ctx context.Context, data []byte, ext string) (string, error) {
	key := uuid.NewString()
	if ext = strings.Trim(ext, ". "); ext != "" {
		key += "." + ext
	}
	if !validHandoffKey(key) {
		return "", fmt.Errorf("storage: handoff put: invalid extension %q", ext)
	}
	if _, err := h.files.Write(ctx, path.Join(handoffPrefix, key), data); err != nil {
		return "", fmt.Errorf("storage: handoff put: %w", err)
	}
	return key, nil
}

// Get returns the bytes stored under key.
func (h *Handoff) Get(ctx context.Context, key string) ([]byte, error) {
	if !validHandoffKey(key) {
		return nil, ErrNotExist
	}
	return h.files.Read(ctx, path.Join(handoffPrefix, key))
}

// Expire removes entries older than the configured ttl.
func (h *Handoff) Expire(ctx context.Context, now time.Time) (int, error) {
	return h.files.Sweep(ctx, handoffPrefix, now.Add(-h.ttl))
}

// validHandoffKey accepts only keys Put can mint: a canonical UUID with an
// optional short alphanumeric extension.
func validHandoffKey(key string) bool {
	id, ext, hasExt := strings.Cut(key, ".")
	if len(id) != 36 {
		return false
	}
	if _, err := uuid.Parse(id); err != nil {
		return false
	}
	if !hasExt {
		return true
	}
	if ext == "" || len(ext) > 8 {
		return false
	}
	for _, c := range ext {
		if !('a' <= c && c <= 'z' || '0' <= c && c <= '9') {
			return false
		}
	}
	return true
}
