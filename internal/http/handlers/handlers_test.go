package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"avatarforge/internal/activity"
	"avatarforge/internal/adapter/repo"
	"avatarforge/internal/catalog"
	"avatarforge/internal/compose"
	"avatarforge/internal/domain"
	"avatarforge/internal/imaging"
	"avatarforge/internal/infra"
	"avatarforge/internal/ingest"
	"avatarforge/internal/middleware"
	"avatarforge/internal/storage"
	"avatarforge/internal/workflow"
)

type stubResolver struct {
	profile *domain.DiscordProfile
	err     error
	calls   int
}

func (s *stubResolver) Resolve(ctx context.Context, id string) (*domain.DiscordProfile, error) {
	s.calls++
	return s.profile, s.err
}

type stubRelay struct {
	configured bool
	err        error
	events     []activity.Event
}

func (s *stubRelay) Configured() bool { return s.configured }

func (s *stubRelay) Deliver(ctx context.Context, ev activity.Event) error {
	s.events = append(s.events, ev)
	return s.err
}

type stubStats struct {
	stats *repo.GenerationStats
	err   error
}

func (s stubStats) Last24h(ctx context.Context) (*repo.GenerationStats, error) {
	return s.stats, s.err
}

func newTestApp(t *testing.T, inlineLimit int64) *App {
	t.Helper()
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	handoff := storage.NewHandoff(files, time.Hour)
	engine := imaging.New(imaging.Options{OutputSize: 32, MaxSide: 64})
	sessions := workflow.NewRegistry(workflow.Options{
		Normalizer:  ingest.New(ingest.Options{Engine: engine, Logger: zerolog.Nop()}),
		Compositor:  compose.New(engine, nil, 0, zerolog.Nop()),
		Handoff:     handoff,
		InlineLimit: inlineLimit,
		Logger:      zerolog.Nop(),
	}, time.Hour)
	t.Cleanup(sessions.Shutdown)
	return &App{
		Config:   &infra.Config{MaxSourceBytes: 1 << 20},
		Logger:   zerolog.Nop(),
		Identity: &stubResolver{},
		Relay:    &stubRelay{},
		Catalog:  cat,
		Sessions: sessions,
		Handoff:  handoff,
		Frames:   engine,
	}
}

func withParams(req *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func withLocale(req *http.Request, locale string) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), middleware.LocaleKey, locale))
}

func pngFixture(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestIdentityHandler(t *testing.T) {
	name := "Zane"
	tests := []struct {
		name       string
		query      string
		resolver   *stubResolver
		wantStatus int
		wantError  string
		wantCalls  int
	}{
		{name: "missing id", query: "", resolver: &stubResolver{}, wantStatus: http.StatusBadRequest, wantError: "User ID is required"},
		{name: "found", query: "?id=4194303", resolver: &stubResolver{profile: &domain.DiscordProfile{ID: "4194303", Username: "zane", GlobalName: &name}}, wantStatus: http.StatusOK, wantCalls: 1},
		{name: "legacy param", query: "?userId=4194303", resolver: &stubResolver{profile: &domain.DiscordProfile{ID: "4194303"}}, wantStatus: http.StatusOK, wantCalls: 1},
		{name: "not found", query: "?id=1", resolver: &stubResolver{err: fmt.Errorf("x: %w", domain.ErrNotFound)}, wantStatus: http.StatusNotFound, wantError: "User not found", wantCalls: 1},
		{name: "config", query: "?id=1", resolver: &stubResolver{err: fmt.Errorf("no token: %w", domain.ErrConfig)}, wantStatus: http.StatusInternalServerError, wantError: "Failed to fetch Discord user", wantCalls: 1},
		{name: "upstream", query: "?id=1", resolver: &stubResolver{err: fmt.Errorf("502: %w", domain.ErrUpstream)}, wantStatus: http.StatusInternalServerError, wantError: "Failed to fetch Discord user", wantCalls: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := &App{Logger: zerolog.Nop(), Identity: tc.resolver}
			rr := httptest.NewRecorder()
			app.Identity(rr, httptest.NewRequest(http.MethodGet, "/identity"+tc.query, nil))
			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d; body=%s", rr.Code, tc.wantStatus, rr.Body.String())
			}
			if tc.resolver.calls != tc.wantCalls {
				t.Fatalf("resolver calls = %d, want %d", tc.resolver.calls, tc.wantCalls)
			}
			if tc.wantError != "" {
				body := decodeError(t, rr)
				if body.Error != tc.wantError {
					t.Fatalf("error = %q, want %q", body.Error, tc.wantError)
				}
				if tc.wantStatus == http.StatusInternalServerError && body.Details == "" {
					t.Fatalf("expected details on 500")
				}
			}
		})
	}
}

func TestIdentityHandlerLocalizesMessage(t *testing.T) {
	app := &App{Logger: zerolog.Nop(), Identity: &stubResolver{err: domain.ErrNotFound}}
	rr := httptest.NewRecorder()
	app.Identity(rr, withLocale(httptest.NewRequest(http.MethodGet, "/identity?id=1", nil), "fr"))
	body := decodeError(t, rr)
	if body.Message != Message("fr", msgIdentityNotFound) {
		t.Fatalf("message = %q", body.Message)
	}
}

func TestActivityHandler(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		relay         *stubRelay
		wantStatus    int
		wantDelivered bool
	}{
		{name: "missing action", body: `{"data":{"username":"z"}}`, relay: &stubRelay{configured: true}, wantStatus: http.StatusBadRequest},
		{name: "missing data", body: `{"action":"username_fetch"}`, relay: &stubRelay{configured: true}, wantStatus: http.StatusBadRequest},
		{name: "null data", body: `{"action":"username_fetch","data":null}`, relay: &stubRelay{configured: true}, wantStatus: http.StatusBadRequest},
		{name: "unconfigured sink", body: `{"action":"username_fetch","data":{"username":"z"}}`, relay: &stubRelay{}, wantStatus: http.StatusOK},
		{name: "delivered", body: `{"action":"image_generation","data":{"username":"z","collection":"fall"}}`, relay: &stubRelay{configured: true}, wantStatus: http.StatusOK, wantDelivered: true},
		{name: "sink failure", body: `{"action":"username_fetch","data":{"username":"z"}}`, relay: &stubRelay{configured: true, err: errors.New("500")}, wantStatus: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := &App{Logger: zerolog.Nop(), Relay: tc.relay}
			rr := httptest.NewRecorder()
			app.Activity(rr, httptest.NewRequest(http.MethodPost, "/activity", strings.NewReader(tc.body)))
			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d; body=%s", rr.Code, tc.wantStatus, rr.Body.String())
			}
			if rr.Code != http.StatusOK {
				return
			}
			var resp map[string]bool
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !resp["success"] || resp["delivered"] != tc.wantDelivered {
				t.Fatalf("response mismatch: %v", resp)
			}
			if tc.wantDelivered && (len(tc.relay.events) != 1 || tc.relay.events[0].Collection != "fall") {
				t.Fatalf("events mismatch: %+v", tc.relay.events)
			}
		})
	}
}

func TestCatalogHandlers(t *testing.T) {
	app := newTestApp(t, 0)

	rr := httptest.NewRecorder()
	app.CatalogAvatars(rr, httptest.NewRequest(http.MethodGet, "/catalog/avatars?page=99", nil))
	var avatars pageResponse[catalog.Avatar]
	if err := json.NewDecoder(rr.Body).Decode(&avatars); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if avatars.Page != avatars.PageCount-1 || len(avatars.Items) == 0 {
		t.Fatalf("page should clamp to the last page: %+v", avatars)
	}
	if avatars.PageCount != catalog.PageCount(len(app.Catalog.Avatars), catalog.DefaultPageSize) {
		t.Fatalf("page count mismatch: %d", avatars.PageCount)
	}

	rr = httptest.NewRecorder()
	app.CatalogDecorations(rr, httptest.NewRequest(http.MethodGet, "/catalog/decorations?category=Spooky&page=-4", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body=%s", rr.Code, rr.Body.String())
	}
	var decos struct {
		Category    string                           `json:"category"`
		Decorations pageResponse[catalog.Decoration] `json:"decorations"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&decos); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.EqualFold(decos.Category, "spooky") || decos.Decorations.Page != 0 {
		t.Fatalf("decorations mismatch: %+v", decos)
	}

	rr = httptest.NewRecorder()
	app.CatalogDecorations(rr, httptest.NewRequest(http.MethodGet, "/catalog/decorations?category=nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown category status = %d", rr.Code)
	}
}

func waitIdle(t *testing.T, app *App, id string) workflow.Snapshot {
	t.Helper()
	wf, ok := app.Sessions.Get(id)
	if !ok {
		t.Fatalf("session %s missing", id)
	}
	wf.Wait()
	return wf.Snapshot()
}

func createSession(t *testing.T, app *App) string {
	t.Helper()
	rr := httptest.NewRecorder()
	app.CreateSession(rr, httptest.NewRequest(http.MethodPost, "/sessions", nil))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rr.Code)
	}
	var snap workflow.Snapshot
	_ = json.NewDecoder(rr.Body).Decode(&snap)
	return snap.ID
}

func uploadAvatar(t *testing.T, app *App, id string, data []byte) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, "/sessions/"+id+"/avatar", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/octet-stream")
	rr := httptest.NewRecorder()
	app.SetAvatar(rr, withParams(req, "id", id))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("avatar status = %d; body=%s", rr.Code, rr.Body.String())
	}
}

func generate(t *testing.T, app *App, id string) {
	t.Helper()
	rr := httptest.NewRecorder()
	app.Generate(rr, withParams(httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/generate", nil), "id", id))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("generate status = %d; body=%s", rr.Code, rr.Body.String())
	}
}

func TestSessionFlowInlineArtifact(t *testing.T) {
	app := newTestApp(t, 0)
	id := createSession(t, app)

	rr := httptest.NewRecorder()
	app.Generate(rr, withParams(httptest.NewRequest(http.MethodPost, "/", nil), "id", id))
	if rr.Code != http.StatusConflict {
		t.Fatalf("generate without avatar status = %d", rr.Code)
	}

	uploadAvatar(t, app, id, pngFixture(t, 40, 30))
	if snap := waitIdle(t, app, id); snap.State != workflow.Ready {
		t.Fatalf("state = %s, want ready (%+v)", snap.State, snap)
	}

	generate(t, app, id)
	if snap := waitIdle(t, app, id); snap.State != workflow.Generated {
		t.Fatalf("state = %s, want generated (%+v)", snap.State, snap)
	}

	rr = httptest.NewRecorder()
	app.Artifact(rr, withParams(httptest.NewRequest(http.MethodGet, "/", nil), "id", id))
	if rr.Code != http.StatusOK {
		t.Fatalf("artifact status = %d; body=%s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("content type = %q", rr.Header().Get("Content-Type"))
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "discord_fake_avatar_decorations_") {
		t.Fatalf("content disposition = %q", rr.Header().Get("Content-Disposition"))
	}
	if _, err := png.Decode(rr.Body); err != nil {
		t.Fatalf("artifact is not a png: %v", err)
	}
}

func TestSessionRejectsSpoofedUpload(t *testing.T) {
	app := newTestApp(t, 0)
	id := createSession(t, app)

	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader("<html>not an image</html>"))
	req.Header.Set("Content-Type", "image/png")
	rr := httptest.NewRecorder()
	app.SetAvatar(rr, withParams(req, "id", id))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rr.Code)
	}
	snap := waitIdle(t, app, id)
	if snap.State != workflow.Idle || snap.Avatar != workflow.AvatarNone || snap.Failure != "validation" {
		t.Fatalf("snapshot mismatch: %+v", snap)
	}
}

func TestSessionOversizedArtifactHandsOff(t *testing.T) {
	app := newTestApp(t, 1)
	id := createSession(t, app)
	uploadAvatar(t, app, id, pngFixture(t, 32, 32))
	waitIdle(t, app, id)
	generate(t, app, id)
	waitIdle(t, app, id)

	rr := httptest.NewRecorder()
	app.Artifact(rr, withParams(httptest.NewRequest(http.MethodGet, "/", nil), "id", id))
	if rr.Code != http.StatusConflict {
		t.Fatalf("artifact status = %d; body=%s", rr.Code, rr.Body.String())
	}
	var resp tooLargeResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.HandoffKey == "" || !strings.HasSuffix(resp.FramesURL, "/frames.zip") {
		t.Fatalf("handoff response mismatch: %+v", resp)
	}
	if snap := waitIdle(t, app, id); snap.State != workflow.ArtifactTooLarge {
		t.Fatalf("state = %s", snap.State)
	}

	rr = httptest.NewRecorder()
	app.HandoffFramesZip(rr, withParams(httptest.NewRequest(http.MethodGet, "/", nil), "key", resp.HandoffKey))
	if rr.Code != http.StatusOK {
		t.Fatalf("frames.zip status = %d; body=%s", rr.Code, rr.Body.String())
	}
	zr, err := zip.NewReader(bytes.NewReader(rr.Body.Bytes()), int64(rr.Body.Len()))
	if err != nil || len(zr.File) != 1 || zr.File[0].Name != "frame-000.png" {
		t.Fatalf("archive mismatch: err=%v", err)
	}

	rr = httptest.NewRecorder()
	app.HandoffFrame(rr, withParams(httptest.NewRequest(http.MethodGet, "/", nil), "key", resp.HandoffKey, "n", "0"))
	if rr.Code != http.StatusOK || rr.Header().Get("X-Frame-Count") != "1" {
		t.Fatalf("frame status = %d count=%q", rr.Code, rr.Header().Get("X-Frame-Count"))
	}

	rr = httptest.NewRecorder()
	app.HandoffFrame(rr, withParams(httptest.NewRequest(http.MethodGet, "/", nil), "key", resp.HandoffKey, "n", "5"))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("out of range frame status = %d", rr.Code)
	}

	for _, key := range []string{"missing.png", ".", ".."} {
		rr = httptest.NewRecorder()
		app.HandoffArtifact(rr, withParams(httptest.NewRequest(http.MethodGet, "/", nil), "key", key))
		if rr.Code != http.StatusNotFound {
			t.Fatalf("handoff %q status = %d, want 404", key, rr.Code)
		}
	}
}

func TestSetDecorationHandler(t *testing.T) {
	app := newTestApp(t, 0)
	id := createSession(t, app)
	deco := app.Catalog.Categories[0].Items[0]

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantID     string
	}{
		{name: "catalog decoration", body: fmt.Sprintf(`{"decoration":%q}`, deco.ID), wantStatus: http.StatusOK, wantID: deco.ID},
		{name: "none", body: `{"decoration":"none"}`, wantStatus: http.StatusOK, wantID: ""},
		{name: "unknown", body: `{"decoration":"nope"}`, wantStatus: http.StatusNotFound},
		{name: "bad json", body: `{`, wantStatus: http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			app.SetDecoration(rr, withParams(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(tc.body)), "id", id))
			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d; body=%s", rr.Code, tc.wantStatus, rr.Body.String())
			}
			if rr.Code != http.StatusOK {
				return
			}
			var snap workflow.Snapshot
			_ = json.NewDecoder(rr.Body).Decode(&snap)
			if snap.Selection.DecorationID != tc.wantID {
				t.Fatalf("selection = %q, want %q", snap.Selection.DecorationID, tc.wantID)
			}
		})
	}
}

func TestSetAvatarJSONSources(t *testing.T) {
	app := newTestApp(t, 0)
	id := createSession(t, app)
	preset := app.Catalog.Avatars[0]

	tests := []struct {
		name       string
		body       string
		resolver   *stubResolver
		wantStatus int
	}{
		{name: "unknown preset", body: `{"preset":"nope"}`, wantStatus: http.StatusNotFound},
		{name: "known preset", body: fmt.Sprintf(`{"preset":%q}`, preset.ID), wantStatus: http.StatusAccepted},
		{name: "identity not found", body: `{"identity":"1"}`, resolver: &stubResolver{err: domain.ErrNotFound}, wantStatus: http.StatusNotFound},
		{name: "identity ok", body: `{"identity":"1"}`, resolver: &stubResolver{profile: &domain.DiscordProfile{AvatarURL: "http://127.0.0.1:1/a.png"}}, wantStatus: http.StatusAccepted},
		{name: "empty", body: `{}`, wantStatus: http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.resolver != nil {
				app.Identity = tc.resolver
			}
			req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()
			app.SetAvatar(rr, withParams(req, "id", id))
			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d; body=%s", rr.Code, tc.wantStatus, rr.Body.String())
			}
			waitIdle(t, app, id)
		})
	}
}

func TestUnknownSession(t *testing.T) {
	app := newTestApp(t, 0)
	rr := httptest.NewRecorder()
	app.GetSession(rr, withParams(httptest.NewRequest(http.MethodGet, "/", nil), "id", "missing"))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestGenerations24h(t *testing.T) {
	app := &App{Logger: zerolog.Nop()}
	rr := httptest.NewRecorder()
	app.Generations24h(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status without stats = %d", rr.Code)
	}

	app.Stats = stubStats{stats: &repo.GenerationStats{Total: 3, Succeeded: 2, ByCategory: map[string]int64{"fall": 2}}}
	rr = httptest.NewRecorder()
	app.Generations24h(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var stats repo.GenerationStats
	if err := json.NewDecoder(rr.Body).Decode(&stats); err != nil || stats.Total != 3 {
		t.Fatalf("stats mismatch: %+v %v", stats, err)
	}

	app.Stats = stubStats{err: errors.New("db down")}
	rr = httptest.NewRecorder()
	app.Generations24h(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status on error = %d", rr.Code)
	}
}

func TestMessageFallsBackToEnglish(t *testing.T) {
	if got := Message("de", msgIdentityOK); got != "Successfully fetched user data!" {
		t.Fatalf("fallback mismatch: %q", got)
	}
	for _, locale := range middleware.SupportedLocales {
		for key := range messages["en"] {
			if messages[locale][key] == "" {
				t.Fatalf("locale %s missing %s", locale, key)
			}
		}
	}
}
