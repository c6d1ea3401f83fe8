package domain

import "image"

// SourceKind enumerates the ways an avatar can be supplied.
type SourceKind string

const (
	SourceFile     SourceKind = "file"
	SourceURL      SourceKind = "url"
	SourcePreset   SourceKind = "preset"
	SourceIdentity SourceKind = "identity"
)

// AvatarSource is an immutable description of where avatar bytes come from.
// Use the constructors; the zero value is not a valid source.
type AvatarSource struct {
	kind         SourceKind
	data         []byte
	declaredType string
	url          string
	assetRef     string
}

// FileSource wraps uploaded bytes. declaredType is informational only.
func FileSource(data []byte, declaredType string) AvatarSource {
	return AvatarSource{kind: SourceFile, data: append([]byte(nil), data...), declaredType: declaredType}
}

// URLSource points at an arbitrary remote image.
func URLSource(url string) AvatarSource {
	return AvatarSource{kind: SourceURL, url: url}
}

// PresetSource references a catalog avatar asset.
func PresetSource(assetRef string) AvatarSource {
	return AvatarSource{kind: SourcePreset, assetRef: assetRef}
}

// IdentitySource points at an avatar URL produced by the identity resolver.
func IdentitySource(resolvedURL string) AvatarSource {
	return AvatarSource{kind: SourceIdentity, url: resolvedURL}
}

func (s AvatarSource) Kind() SourceKind     { return s.kind }
func (s AvatarSource) URL() string          { return s.url }
func (s AvatarSource) AssetRef() string     { return s.assetRef }
func (s AvatarSource) DeclaredType() string { return s.declaredType }

// Data returns a copy of the uploaded bytes for file sources.
func (s AvatarSource) Data() []byte {
	return append([]byte(nil), s.data...)
}

// ImageHandle is an opaque reference to a decoded image owned by an engine.
type ImageHandle interface {
	Bounds() image.Rectangle
	FrameCount() int
}

// NormalizedAvatar is a validated, square-cropped avatar.
type NormalizedAvatar struct {
	Handle   ImageHandle
	Animated bool
}

// Decoration is an overlay asset chosen from the catalog.
type Decoration struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Category string `json:"category,omitempty"`
	AssetRef string `json:"asset_ref,omitempty"`
	Animated bool   `json:"animated"`
}

// NoDecoration is the "none" sentinel.
var NoDecoration = Decoration{}

// IsNone reports whether d is the "none" sentinel.
func (d Decoration) IsNone() bool {
	return d.ID == "" && d.AssetRef == ""
}
