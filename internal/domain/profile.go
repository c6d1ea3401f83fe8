package domain

import "time"

// DiscordProfile is the displayable profile derived from one upstream user
// lookup. StaticAvatarURL and StaticBannerURL are only set when the primary
// asset is animated.
type DiscordProfile struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	GlobalName      *string   `json:"global_name"`
	Discriminator   string    `json:"discriminator"`
	AvatarURL       string    `json:"avatarUrl"`
	StaticAvatarURL *string   `json:"staticAvatarUrl,omitempty"`
	BannerURL       *string   `json:"bannerUrl"`
	StaticBannerURL *string   `json:"staticBannerUrl,omitempty"`
	AccentColor     *string   `json:"accentColor"`
	ThemeColor      *int      `json:"themeColor"`
	Bio             *string   `json:"bio"`
	CreatedAt       time.Time `json:"createdAt"`
}

// DisplayName mirrors the client fallback chain global name, username,
// then a placeholder.
func (p *DiscordProfile) DisplayName() string {
	if p == nil {
		return "Unidentified User"
	}
	if p.GlobalName != nil && *p.GlobalName != "" {
		return *p.GlobalName
	}
	if p.Username != "" {
		return p.Username
	}
	return "Unidentified User"
}
