package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"avatarforge/internal/activity"
	"avatarforge/internal/domain"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []activity.Event
}

func (n *recordingNotifier) Notify(_ context.Context, ev activity.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) kinds() []activity.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]activity.Kind, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Kind)
	}
	return out
}

func newTestResolver(t *testing.T, handler http.HandlerFunc, token string) (*Resolver, *recordingNotifier) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	n := &recordingNotifier{}
	r := NewResolver(Options{
		APIBase:    ts.URL,
		CDNBase:    "https://cdn.example",
		BotToken:   token,
		HTTPClient: ts.Client(),
		Notifier:   n,
		Logger:     zerolog.Nop(),
	})
	return r, n
}

func TestResolveDerivesProfile(t *testing.T) {
	var gotAuth, gotPath string
	r, n := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		gotAuth = req.Header.Get("Authorization")
		gotPath = req.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "175928847299117063",
			"username": "zane",
			"global_name": "Zane",
			"discriminator": "0",
			"avatar": "a_abc",
			"banner": "def",
			"accent_color": 255,
			"theme_colors": [16711680, 255],
			"bio": "hello"
		}`))
	}, "secret")

	p, err := r.Resolve(context.Background(), "175928847299117063")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if gotAuth != "Bot secret" {
		t.Fatalf("authorization mismatch: got %q", gotAuth)
	}
	if gotPath != "/users/175928847299117063" {
		t.Fatalf("path mismatch: got %q", gotPath)
	}
	if p.AvatarURL != "https://cdn.example/avatars/175928847299117063/a_abc.gif?size=256" {
		t.Fatalf("avatar url mismatch: got %q", p.AvatarURL)
	}
	if p.StaticAvatarURL == nil || *p.StaticAvatarURL != "https://cdn.example/avatars/175928847299117063/a_abc.png?size=256" {
		t.Fatalf("static avatar url mismatch: got %v", p.StaticAvatarURL)
	}
	if p.BannerURL == nil || *p.BannerURL != "https://cdn.example/banners/175928847299117063/def.png?size=600" {
		t.Fatalf("banner url mismatch: got %v", p.BannerURL)
	}
	if p.StaticBannerURL != nil {
		t.Fatalf("static banner should be absent for a static banner")
	}
	if p.AccentColor == nil || *p.AccentColor != "#0000ff" {
		t.Fatalf("accent mismatch: got %v", p.AccentColor)
	}
	if p.ThemeColor == nil || *p.ThemeColor != 16711680 {
		t.Fatalf("theme mismatch: got %v", p.ThemeColor)
	}
	if p.Bio == nil || *p.Bio != "hello" {
		t.Fatalf("bio mismatch: got %v", p.Bio)
	}
	if y, m, d := p.CreatedAt.Date(); y != 2016 || m != time.April || d != 30 {
		t.Fatalf("createdAt mismatch: got %s", p.CreatedAt)
	}
	if kinds := n.kinds(); len(kinds) != 1 || kinds[0] != activity.KindUsernameFetch {
		t.Fatalf("notifications mismatch: got %v", kinds)
	}
}

func TestResolveDefaultsWhenAssetsAbsent(t *testing.T) {
	r, _ := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`{"id":"4194303","username":"old","discriminator":"1337","avatar":null,"banner":null,"accent_color":0,"bio":""}`))
	}, "secret")

	p, err := r.Resolve(context.Background(), "4194303")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.AvatarURL != "https://cdn.example/embed/avatars/2.png" {
		t.Fatalf("default avatar mismatch: got %q", p.AvatarURL)
	}
	if p.StaticAvatarURL != nil || p.BannerURL != nil || p.StaticBannerURL != nil {
		t.Fatalf("expected no banner or static variants: %+v", p)
	}
	if p.AccentColor != nil || p.ThemeColor != nil || p.Bio != nil {
		t.Fatalf("expected absent accent, theme and bio: %+v", p)
	}
	want := time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)
	if !p.CreatedAt.Equal(want) {
		t.Fatalf("createdAt mismatch: got %s want %s", p.CreatedAt, want)
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		id     string
		status int
		want   error
		calls  int
	}{
		{name: "missing token", token: "", id: "4194303", status: http.StatusOK, want: domain.ErrConfig, calls: 0},
		{name: "unknown user", token: "t", id: "4194303", status: http.StatusNotFound, want: domain.ErrNotFound, calls: 1},
		{name: "not a snowflake", token: "t", id: "not-a-user", status: http.StatusOK, want: domain.ErrNotFound, calls: 0},
		{name: "upstream failure", token: "t", id: "4194303", status: http.StatusBadGateway, want: domain.ErrUpstream, calls: 1},
		{name: "unauthorized", token: "t", id: "4194303", status: http.StatusUnauthorized, want: domain.ErrUpstream, calls: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			r, _ := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
				calls++
				w.WriteHeader(tc.status)
			}, tc.token)
			_, err := r.Resolve(context.Background(), tc.id)
			if !errors.Is(err, tc.want) {
				t.Fatalf("error mismatch: got %v want %v", err, tc.want)
			}
			if calls != tc.calls {
				t.Fatalf("upstream calls mismatch: got %d want %d", calls, tc.calls)
			}
		})
	}
}

func TestResolveUnknownUserNotifiesFailure(t *testing.T) {
	r, n := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, "t")
	if _, err := r.Resolve(context.Background(), "4194303"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if kinds := n.kinds(); len(kinds) != 1 || kinds[0] != activity.KindUsernameFetchFailed {
		t.Fatalf("notifications mismatch: got %v", kinds)
	}
}
