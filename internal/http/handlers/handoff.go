package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"avatarforge/internal/imaging"
	"avatarforge/internal/storage"
	"avatarforge/pkg/zip"
)

func (a *App) handoffBytes(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	key := chi.URLParam(r, "key")
	data, err := a.Handoff.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			a.error(w, http.StatusNotFound, "Artifact not found", "the hand-off may have expired")
			return "", nil, false
		}
		a.Logger.Error().Err(err).Str("key", key).Msg("handoff: read failed")
		a.error(w, http.StatusInternalServerError, "Failed to read artifact", "")
		return "", nil, false
	}
	return key, data, true
}

func (a *App) HandoffArtifact(w http.ResponseWriter, r *http.Request) {
	key, data, ok := a.handoffBytes(w, r)
	if !ok {
		return
	}
	format, err := imaging.Sniff(data)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "Corrupt artifact", "")
		return
	}
	w.Header().Set("Content-Type", string(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", key))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HandoffFrame renders frame n (zero-based) of a handed-off artifact as PNG.
func (a *App) HandoffFrame(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n < 0 {
		a.error(w, http.StatusBadRequest, "Invalid frame index", "")
		return
	}
	_, data, ok := a.handoffBytes(w, r)
	if !ok {
		return
	}
	frames, err := a.Frames.ExtractFrames(data)
	if err != nil {
		a.Logger.Error().Err(err).Msg("handoff: extract frames")
		a.error(w, http.StatusInternalServerError, "Failed to extract frames", "")
		return
	}
	if n >= len(frames) {
		a.error(w, http.StatusNotFound, "Frame not found", fmt.Sprintf("artifact has %d frames", len(frames)))
		return
	}
	png, err := imaging.EncodePNG(frames[n])
	if err != nil {
		a.error(w, http.StatusInternalServerError, "Failed to encode frame", "")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Frame-Count", strconv.Itoa(len(frames)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// HandoffFramesZip bundles every frame as PNG.
func (a *App) HandoffFramesZip(w http.ResponseWriter, r *http.Request) {
	key, data, ok := a.handoffBytes(w, r)
	if !ok {
		return
	}
	frames, err := a.Frames.ExtractFrames(data)
	if err != nil {
		a.Logger.Error().Err(err).Msg("handoff: extract frames")
		a.error(w, http.StatusInternalServerError, "Failed to extract frames", "")
		return
	}
	assets := make([]zip.Asset, 0, len(frames))
	for i, frame := range frames {
		png, err := imaging.EncodePNG(frame)
		if err != nil {
			a.error(w, http.StatusInternalServerError, "Failed to encode frame", "")
			return
		}
		assets = append(assets, zip.Asset{Filename: fmt.Sprintf("frame-%03d.png", i), MIME: "image/png", Data: png})
	}
	archive, err := zip.ArchiveAssets(assets, a.now())
	if err != nil {
		a.error(w, http.StatusInternalServerError, "Failed to build archive", "")
		return
	}
	base := strings.TrimSuffix(key, "."+extOf(key))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=frames-%s.zip", base))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func extOf(key string) string {
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		return key[i+1:]
	}
	return ""
}
