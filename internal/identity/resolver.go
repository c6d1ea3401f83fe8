package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/rs/zerolog"

	"avatarforge/internal/activity"
	"avatarforge/internal/domain"
)

const (
	DefaultAPIBase = "https://discord.com/api/v10"
	DefaultCDNBase = "https://cdn.discordapp.com"
)

// Options configures a Resolver.
type Options struct {
	APIBase    string
	CDNBase    string
	BotToken   string
	HTTPClient *http.Client
	Timeout    time.Duration
	Notifier   activity.Notifier
	Logger     zerolog.Logger
}

// Resolver turns a Discord user identifier into a DiscordProfile.
type Resolver struct {
	apiBase  string
	cdnBase  string
	token    string
	client   *http.Client
	notifier activity.Notifier
	logger   zerolog.Logger
}

func NewResolver(opts Options) *Resolver {
	r := &Resolver{
		apiBase:  strings.TrimRight(opts.APIBase, "/"),
		cdnBase:  strings.TrimRight(opts.CDNBase, "/"),
		token:    strings.TrimSpace(opts.BotToken),
		client:   opts.HTTPClient,
		notifier: opts.Notifier,
		logger:   opts.Logger,
	}
	if r.apiBase == "" {
		r.apiBase = DefaultAPIBase
	}
	if r.cdnBase == "" {
		r.cdnBase = DefaultCDNBase
	}
	if r.client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		r.client = &http.Client{Timeout: timeout}
	}
	if r.notifier == nil {
		r.notifier = activity.Nop{}
	}
	return r
}

type upstreamUser struct {
	ID            string  `json:"id"`
	Username      string  `json:"username"`
	GlobalName    *string `json:"global_name"`
	Discriminator string  `json:"discriminator"`
	Avatar        *string `json:"avatar"`
	Banner        *string `json:"banner"`
	AccentColor   *int    `json:"accent_color"`
	ThemeColors   []int   `json:"theme_colors"`
	Bio           *string `json:"bio"`
}

// Resolve performs exactly one upstream lookup. Missing credentials yield
// domain.ErrConfig, unknown users and malformed identifiers domain.ErrNotFound,
// and everything else domain.ErrUpstream.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (*domain.DiscordProfile, error) {
	if r.token == "" {
		return nil, fmt.Errorf("identity: discord bot token is not configured: %w", domain.ErrConfig)
	}
	identifier = strings.TrimSpace(identifier)
	id, err := snowflake.Parse(identifier)
	if err != nil || id == 0 {
		r.notifier.Notify(ctx, activity.Event{Kind: activity.KindUsernameFetchFailed})
		return nil, fmt.Errorf("identity: %q is not a user id: %w", identifier, domain.ErrNotFound)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.apiBase+"/users/"+url.PathEscape(id.String()), nil)
	if err != nil {
		return nil, fmt.Errorf("identity: build request: %v: %w", err, domain.ErrUpstream)
	}
	req.Header.Set("Authorization", "Bot "+r.token)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity: request failed: %v: %w", err, domain.ErrUpstream)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		r.notifier.Notify(ctx, activity.Event{Kind: activity.KindUsernameFetchFailed})
		return nil, fmt.Errorf("identity: user %s: %w", id, domain.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("identity: discord api error: %d %s: %w", resp.StatusCode, strings.TrimSpace(string(body)), domain.ErrUpstream)
	}

	var user upstreamUser
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&user); err != nil {
		return nil, fmt.Errorf("identity: decode user: %v: %w", err, domain.ErrUpstream)
	}
	if user.ID == "" {
		user.ID = id.String()
	}

	profile := r.derive(user, id)
	r.logger.Debug().Str("user_id", profile.ID).Msg("identity: resolved")
	r.notifier.Notify(ctx, activity.Event{Kind: activity.KindUsernameFetch, Username: profile.DisplayName()})
	return profile, nil
}

func (r *Resolver) derive(u upstreamUser, id snowflake.ID) *domain.DiscordProfile {
	p := &domain.DiscordProfile{
		ID:            u.ID,
		Username:      u.Username,
		GlobalName:    u.GlobalName,
		Discriminator: u.Discriminator,
		CreatedAt:     id.Time().UTC(),
	}

	if hash := deref(u.Avatar); hash != "" {
		p.AvatarURL = r.cdnAsset("avatars", u.ID, hash, 256)
		if isAnimatedHash(hash) {
			static := r.staticAsset("avatars", u.ID, hash, 256)
			p.StaticAvatarURL = &static
		}
	} else {
		p.AvatarURL = fmt.Sprintf("%s/embed/avatars/%d.png", r.cdnBase, defaultAvatarIndex(u.Discriminator))
	}

	if hash := deref(u.Banner); hash != "" {
		banner := r.cdnAsset("banners", u.ID, hash, 600)
		p.BannerURL = &banner
		if isAnimatedHash(hash) {
			static := r.staticAsset("banners", u.ID, hash, 600)
			p.StaticBannerURL = &static
		}
	}

	// zero is treated as unset
	if u.AccentColor != nil && *u.AccentColor != 0 {
		accent := fmt.Sprintf("#%06x", *u.AccentColor)
		p.AccentColor = &accent
	}
	if len(u.ThemeColors) > 0 {
		theme := u.ThemeColors[0]
		p.ThemeColor = &theme
	}
	if bio := deref(u.Bio); bio != "" {
		p.Bio = &bio
	}
	return p
}

func (r *Resolver) cdnAsset(kind, userID, hash string, size int) string {
	ext := "png"
	if isAnimatedHash(hash) {
		ext = "gif"
	}
	return fmt.Sprintf("%s/%s/%s/%s.%s?size=%d", r.cdnBase, kind, userID, hash, ext, size)
}

func (r *Resolver) staticAsset(kind, userID, hash string, size int) string {
	return fmt.Sprintf("%s/%s/%s/%s.png?size=%d", r.cdnBase, kind, userID, hash, size)
}

func isAnimatedHash(hash string) bool {
	return strings.HasPrefix(hash, "a_")
}

func defaultAvatarIndex(discriminator string) int {
	n, err := strconv.Atoi(strings.TrimSpace(discriminator))
	if err != nil || n < 0 {
		return 0
	}
	return n % 5
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
