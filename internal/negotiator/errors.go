package negotiator

import (
	"errors"
	"fmt"

	"github.com/jmylchreest/dlnaprobe/internal/dlna"
)

// Session errors.
var (
	ErrUnsupportedScheme = errors.New("negotiator: unsupported URI scheme")
	ErrInvalidURI        = errors.New("negotiator: invalid URI")
	ErrNoURI             = errors.New("negotiator: no URI set")
	ErrBadStatus         = errors.New("negotiator: unusable HEAD response status")
	ErrNotSeekable       = errors.New("negotiator: operation not supported by server")
)

// Re-exported for callers that only import this package.
var (
	ErrNoSnapshot        = dlna.ErrNoSnapshot
	ErrUnsupportedFormat = dlna.ErrUnsupportedFormat
)

// StatusError reports a HEAD response whose status is not 200 or 201.
// The previous snapshot is kept.
type StatusError struct {
	Status dlna.Status
}

func (e *StatusError) Error() string {
	if e.Status.Message != "" {
		return fmt.Sprintf("HEAD response status %d %s", e.Status.Code, e.Status.Message)
	}
	return fmt.Sprintf("HEAD response status %d", e.Status.Code)
}

func (e *StatusError) Unwrap() error {
	return ErrBadStatus
}
