package dlna

import (
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/dlnaprobe/pkg/npt"
)

// Format is the unit of a seek position or a query.
type Format int

const (
	FormatUndefined Format = iota
	FormatDefault
	FormatBytes
	FormatTime
	FormatBuffers
	FormatPercent
)

func (f Format) String() string {
	switch f {
	case FormatDefault:
		return "default"
	case FormatBytes:
		return "bytes"
	case FormatTime:
		return "time"
	case FormatBuffers:
		return "buffers"
	case FormatPercent:
		return "percent"
	default:
		return "undefined"
	}
}

// ParseFormat maps a format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "default":
		return FormatDefault, nil
	case "bytes":
		return FormatBytes, nil
	case "time":
		return FormatTime, nil
	case "buffers":
		return FormatBuffers, nil
	case "percent":
		return FormatPercent, nil
	default:
		return FormatUndefined, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// SeekType describes how a seek position is to be interpreted. Positions
// are always treated as absolute; the type is carried but not consulted.
type SeekType int

const (
	SeekTypeNone SeekType = iota
	SeekTypeSet
	SeekTypeEnd
)

// SeekRequest is a proposed seek or rate change. For FormatTime, Start and
// Stop are nanoseconds; for FormatBytes they are byte offsets. Stop of -1
// means open-ended.
type SeekRequest struct {
	Rate      float64
	Format    Format
	Start     int64
	Stop      int64
	StartType SeekType
	StopType  SeekType
}

// Validation outcomes.
var (
	ErrNoSnapshot        = errors.New("dlna: no capability snapshot")
	ErrUnsupportedRate   = errors.New("dlna: unsupported rate")
	ErrOutOfRange        = errors.New("dlna: seek position out of range")
	ErrUnsupportedFormat = errors.New("dlna: unsupported format")
)

// RejectionError is a negative validation outcome. It unwraps to one of
// ErrUnsupportedRate, ErrOutOfRange or ErrUnsupportedFormat.
type RejectionError struct {
	Reason error
	Detail string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%v: %s", e.Reason, e.Detail)
}

func (e *RejectionError) Unwrap() error {
	return e.Reason
}

// Code returns a short stable name for the rejection reason.
func (e *RejectionError) Code() string {
	switch {
	case errors.Is(e.Reason, ErrUnsupportedRate):
		return "unsupported_rate"
	case errors.Is(e.Reason, ErrOutOfRange):
		return "out_of_range"
	case errors.Is(e.Reason, ErrUnsupportedFormat):
		return "unsupported_format"
	default:
		return "unknown"
	}
}

func reject(reason error, format string, args ...any) error {
	return &RejectionError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Validate checks a seek or rate change against snap. The rate is checked
// first, then the start position against the range of the request format.
func Validate(req SeekRequest, snap *Snapshot) error {
	if snap == nil {
		return ErrNoSnapshot
	}

	if req.Rate != 1.0 {
		if _, ok := snap.ContentFeatures.SupportsRate(req.Rate); !ok {
			return reject(ErrUnsupportedRate, "rate %g is not an advertised playspeed", req.Rate)
		}
	}

	switch req.Format {
	case FormatBytes:
		r := snap.ByteSeek
		if req.Start < 0 || !r.Contains(uint64(req.Start)) {
			return reject(ErrOutOfRange, "byte %d outside %d-%d", req.Start, r.Start, r.End)
		}
		return nil

	case FormatTime:
		if snap.TimeSeek == nil {
			return reject(ErrOutOfRange, "no time seek range advertised")
		}
		start := time.Duration(req.Start)
		if !snap.TimeSeek.Contains(start) {
			return reject(ErrOutOfRange, "time %s outside %s-%s",
				npt.Format(start), npt.Format(snap.TimeSeek.Start), npt.Format(snap.TimeSeek.End))
		}
		return nil

	default:
		return reject(ErrUnsupportedFormat, "format %s", req.Format)
	}
}

// HeaderLine is one outbound request header. Names keep their exact case.
type HeaderLine struct {
	Name  string
	Value string
}

func (h HeaderLine) String() string {
	return h.Name + ": " + h.Value
}

// ExtraHeaders returns the headers that request playback at rate. The
// playspeed is sent in the text form the server advertised it in.
func ExtraHeaders(rate float64, snap *Snapshot) ([]HeaderLine, error) {
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	ps, ok := snap.ContentFeatures.SupportsRate(rate)
	if !ok {
		return nil, reject(ErrUnsupportedRate, "rate %g is not an advertised playspeed", rate)
	}
	return []HeaderLine{
		{Name: "transferMode.dlna.org", Value: "Streaming"},
		{Name: "PlaySpeed.dlna.org", Value: "speed=" + ps.Text},
	}, nil
}
