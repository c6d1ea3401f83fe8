package imaging

import (
	"bytes"
	"fmt"

	"avatarforge/internal/domain"
)

// Format is an accepted image container.
type Format string

const (
	FormatPNG  Format = "image/png"
	FormatJPEG Format = "image/jpeg"
	FormatGIF  Format = "image/gif"
	FormatWEBP Format = "image/webp"
)

// AllowedMIME is the whitelist applied to every ingestion path.
var AllowedMIME = []string{string(FormatPNG), string(FormatJPEG), string(FormatGIF), string(FormatWEBP)}

var (
	sigPNG   = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	sigJPEG  = []byte{0xff, 0xd8, 0xff}
	sigGIF87 = []byte("GIF87a")
	sigGIF89 = []byte("GIF89a")
	sigRIFF  = []byte("RIFF")
	sigWEBP  = []byte("WEBP")
)

// Sniff classifies data by its leading bytes. Declared content types are
// never consulted.
func Sniff(data []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(data, sigPNG):
		return FormatPNG, nil
	case bytes.HasPrefix(data, sigJPEG):
		return FormatJPEG, nil
	case bytes.HasPrefix(data, sigGIF87), bytes.HasPrefix(data, sigGIF89):
		return FormatGIF, nil
	case len(data) >= 12 && bytes.Equal(data[:4], sigRIFF) && bytes.Equal(data[8:12], sigWEBP):
		return FormatWEBP, nil
	}
	return "", fmt.Errorf("imaging: unrecognized image signature: %w", domain.ErrValidation)
}
