package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "avatars/blue.png", want: "avatars/blue.png"},
		{key: "/avatars//blue.png", want: "avatars/blue.png"},
		{key: "./a/../b.png", want: "b.png"},
		{key: `a\b.png`, want: "a/b.png"},
		{key: "../etc/passwd", wantErr: true},
		{key: "..", wantErr: true},
		{key: "  ", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			got, err := sanitizeKey(tc.key)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("sanitizeKey(%q) error: %v", tc.key, err)
			}
			if got != tc.want {
				t.Fatalf("sanitizeKey(%q) = %q, want %q", tc.key, got, tc.want)
			}
		})
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()
	key, err := store.Write(ctx, "x/y.bin", []byte("hello"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := store.Read(ctx, key)
	if err != nil || string(got) != "hello" {
		t.Fatalf("Read = %q, %v", got, err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Read(ctx, key); !errors.Is(err, ErrNotExist) {
		t.Fatalf("Read after delete error = %v, want ErrNotExist", err)
	}
}

func TestHandoffExpire(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	h := NewHandoff(store, time.Minute)
	ctx := context.Background()

	oldKey, err := h.Put(ctx, []byte("old"), "gif")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	freshKey, err := h.Put(ctx, []byte("fresh"), ".gif")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(dir, handoffPrefix, oldKey), past, past); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	removed, err := h.Expire(ctx, time.Now())
	if err != nil {
		t.Fatalf("Expire: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed mismatch: got %d want 1", removed)
	}
	if _, err := h.Get(ctx, oldKey); !errors.Is(err, ErrNotExist) {
		t.Fatalf("old entry still readable: %v", err)
	}
	if data, err := h.Get(ctx, freshKey); err != nil || string(data) != "fresh" {
		t.Fatalf("fresh entry = %q, %v", data, err)
	}
	if _, err := h.Get(ctx, "../"+freshKey); !errors.Is(err, ErrNotExist) {
		t.Fatalf("path traversal should not resolve")
	}
}

func TestHandoffGetRejectsForeignKeys(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	h := NewHandoff(store, time.Minute)
	ctx := context.Background()
	key, err := h.Put(ctx, []byte("gif"), "gif")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := h.Get(ctx, key); err != nil {
		t.Fatalf("Get minted key: %v", err)
	}

	for _, bad := range []string{"", ".", "..", "../" + key, key + "/x", "not-a-uuid.gif", key + ".", key[:35], strings.ToUpper(key[:36]) + ".GIF"} {
		t.Run(bad, func(t *testing.T) {
			if _, err := h.Get(ctx, bad); !errors.Is(err, ErrNotExist) {
				t.Fatalf("Get(%q) error = %v, want ErrNotExist", bad, err)
			}
		})
	}
	if _, err := h.Put(ctx, []byte("x"), "../png"); err == nil {
		t.Fatalf("Put should reject an extension that is not alphanumeric")
	}
}
