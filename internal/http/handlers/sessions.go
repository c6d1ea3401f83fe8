package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"avatarforge/internal/domain"
	"avatarforge/internal/workflow"
)

const maxJSONBody = 64 << 10

func (a *App) CreateSession(w http.ResponseWriter, r *http.Request) {
	wf := a.Sessions.Create()
	a.json(w, http.StatusCreated, wf.Snapshot())
}

func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	wf, ok := a.session(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, wf.Snapshot())
}

func (a *App) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if !a.Sessions.Remove(chi.URLParam(r, "id")) {
		a.errorLocalized(w, r, http.StatusNotFound, "Session not found", "", msgSessionMissing)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) session(w http.ResponseWriter, r *http.Request) (*workflow.Workflow, bool) {
	wf, ok := a.Sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		a.errorLocalized(w, r, http.StatusNotFound, "Session not found", "", msgSessionMissing)
		return nil, false
	}
	return wf, true
}

type avatarRequest struct {
	URL      string `json:"url"`
	Preset   string `json:"preset"`
	Identity string `json:"identity"`
	Static   bool   `json:"static"`
}

type avatarResponse struct {
	Token    uint64                 `json:"token"`
	Session  workflow.Snapshot      `json:"session"`
	Identity *domain.DiscordProfile `json:"identity,omitempty"`
}

// SetAvatar changes the avatar source. Uploads arrive as multipart form
// field "file" or as a raw body; JSON bodies pick a url, preset or identity.
func (a *App) SetAvatar(w http.ResponseWriter, r *http.Request) {
	wf, ok := a.session(w, r)
	if !ok {
		return
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var resp avatarResponse
	switch {
	case mediaType == "multipart/form-data":
		data, declared, err := a.readUpload(w, r)
		if err != nil {
			a.errorLocalized(w, r, http.StatusBadRequest, "Invalid upload", err.Error(), msgAvatarInvalid)
			return
		}
		resp.Token = wf.SetAvatarSource(domain.FileSource(data, declared))
	case mediaType == "application/json":
		var req avatarRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
			a.error(w, http.StatusBadRequest, "Invalid payload", err.Error())
			return
		}
		switch {
		case strings.TrimSpace(req.URL) != "":
			resp.Token = wf.SetAvatarSource(domain.URLSource(strings.TrimSpace(req.URL)))
		case strings.TrimSpace(req.Preset) != "":
			preset, ok := a.Catalog.Avatar(strings.TrimSpace(req.Preset))
			if !ok {
				a.error(w, http.StatusNotFound, "Preset not found", req.Preset)
				return
			}
			resp.Token = wf.SelectPreset(preset.ID, preset.Asset)
		case strings.TrimSpace(req.Identity) != "":
			profile, err := a.Identity.Resolve(r.Context(), req.Identity)
			if err != nil {
				a.writeIdentityError(w, r, err)
				return
			}
			resp.Token = wf.SetIdentity(profile, req.Static)
			resp.Identity = profile
		default:
			a.error(w, http.StatusBadRequest, "Missing avatar source", "one of url, preset or identity is required")
			return
		}
	default:
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.Config.MaxSourceBytes))
		if err != nil || len(data) == 0 {
			a.errorLocalized(w, r, http.StatusBadRequest, "Invalid upload", uploadErrorDetail(err), msgAvatarInvalid)
			return
		}
		resp.Token = wf.SetAvatarSource(domain.FileSource(data, mediaType))
	}

	resp.Session = wf.Snapshot()
	a.json(w, http.StatusAccepted, resp)
}

func (a *App) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, a.Config.MaxSourceBytes+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("missing file field: %w", err)
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, a.Config.MaxSourceBytes+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > a.Config.MaxSourceBytes {
		return nil, "", fmt.Errorf("file exceeds %d bytes", a.Config.MaxSourceBytes)
	}
	if len(data) == 0 {
		return nil, "", errors.New("empty file")
	}
	return data, header.Header.Get("Content-Type"), nil
}

func uploadErrorDetail(err error) string {
	if err == nil {
		return "empty body"
	}
	return err.Error()
}

type decorationRequest struct {
	Decoration string `json:"decoration"`
}

// SetDecoration selects a catalog decoration, or none for "" and "none".
func (a *App) SetDecoration(w http.ResponseWriter, r *http.Request) {
	wf, ok := a.session(w, r)
	if !ok {
		return
	}
	var req decorationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	id := strings.TrimSpace(req.Decoration)
	deco := domain.NoDecoration
	if id != "" && !strings.EqualFold(id, "none") {
		d, ok := a.Catalog.Decoration(id)
		if !ok {
			a.error(w, http.StatusNotFound, "Decoration not found", id)
			return
		}
		deco = d
	}
	wf.SelectDecoration(deco)
	a.json(w, http.StatusOK, wf.Snapshot())
}

func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	wf, ok := a.session(w, r)
	if !ok {
		return
	}
	id, err := wf.Generate()
	if err != nil {
		a.errorLocalized(w, r, http.StatusConflict, "No avatar ready", err.Error(), msgNoAvatar)
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{
		"requestId": id,
		"session":   wf.Snapshot(),
	})
}

type tooLargeResponse struct {
	errorResponse
	HandoffKey string `json:"handoffKey"`
	HandoffURL string `json:"handoffUrl"`
	FramesURL  string `json:"framesUrl"`
}

// Artifact is the save action: the artifact bytes when small enough, or a
// hand-off to the still-frame flow when not.
func (a *App) Artifact(w http.ResponseWriter, r *http.Request) {
	wf, ok := a.session(w, r)
	if !ok {
		return
	}
	res, err := wf.Save(r.Context())
	if err != nil {
		if errors.Is(err, workflow.ErrNoArtifact) {
			a.errorLocalized(w, r, http.StatusConflict, "No artifact", err.Error(), msgNoArtifact)
			return
		}
		a.logDomainError(r, err, "session: save artifact failed")
		a.error(w, http.StatusInternalServerError, "Failed to save artifact", "")
		return
	}
	if res.HandoffKey != "" {
		a.json(w, http.StatusConflict, tooLargeResponse{
			errorResponse: errorResponse{
				Error:   "Artifact too large",
				Details: domain.ErrSizeLimit.Error(),
				Message: Message(localeOf(r), msgTooLarge),
			},
			HandoffKey: res.HandoffKey,
			HandoffURL: "/handoff/" + res.HandoffKey,
			FramesURL:  "/handoff/" + res.HandoffKey + "/frames.zip",
		})
		return
	}
	w.Header().Set("Content-Type", res.Artifact.MIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Artifact.Data)
}
