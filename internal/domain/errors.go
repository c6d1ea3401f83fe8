package domain

import "errors"

var (
	// ErrValidation marks unsupported or unreadable image content.
	ErrValidation = errors.New("validation error")
	// ErrConfig marks missing deployment credentials.
	ErrConfig = errors.New("config error")
	// ErrNotFound marks an identifier that does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrUpstream marks an unexpected upstream failure.
	ErrUpstream = errors.New("upstream error")
	// ErrComposition marks an engine rejection during composition.
	ErrComposition = errors.New("composition failure")
	// ErrSizeLimit marks an artifact too large to be handled inline.
	ErrSizeLimit = errors.New("size limit exceeded")
)

// ErrorKind returns a short machine-readable name for err's category.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfig):
		return "config"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	case errors.Is(err, ErrComposition):
		return "composition"
	case errors.Is(err, ErrSizeLimit):
		return "size_limit"
	default:
		return "internal"
	}
}
