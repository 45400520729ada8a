package negotiator

import (
	"context"
	"fmt"
	"time"

	"github.com/jmylchreest/dlnaprobe/internal/dlna"
)

// Range is a seekable span. Time values are nanoseconds, byte values are
// offsets.
type Range struct {
	Format dlna.Format
	Start  int64
	End    int64
}

// Segment is the current playback segment.
type Segment struct {
	Rate float64
	Range
}

// Duration returns the total length of the resource in format: the byte
// total when range requests are supported, or the NPT duration when time
// seek is supported.
func (s *Session) Duration(format dlna.Format) (int64, error) {
	snap := s.Snapshot()
	if snap == nil {
		return 0, ErrNoSnapshot
	}
	cf := snap.ContentFeatures

	switch format {
	case dlna.FormatBytes:
		if !cf.ByteRangeSupported {
			return 0, fmt.Errorf("%w: byte duration", ErrNotSeekable)
		}
		return int64(snap.ByteSeek.Total), nil
	case dlna.FormatTime:
		if !cf.TimeSeekSupported || snap.TimeSeek == nil {
			return 0, fmt.Errorf("%w: time duration", ErrNotSeekable)
		}
		return int64(snap.TimeSeek.Duration), nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// Seeking returns the seekable range in format. FormatDefault is answered
// in bytes.
func (s *Session) Seeking(format dlna.Format) (Range, error) {
	if format == dlna.FormatDefault {
		format = dlna.FormatBytes
	}
	return s.seekRange(format)
}

// Segment returns the current rate with the seekable range in format.
func (s *Session) Segment(format dlna.Format) (Segment, error) {
	r, err := s.seekRange(format)
	if err != nil {
		return Segment{}, err
	}
	return Segment{Rate: s.Rate(), Range: r}, nil
}

func (s *Session) seekRange(format dlna.Format) (Range, error) {
	snap := s.Snapshot()
	if snap == nil {
		return Range{}, ErrNoSnapshot
	}
	cf := snap.ContentFeatures

	switch format {
	case dlna.FormatBytes:
		if !cf.ByteRangeSupported {
			return Range{}, fmt.Errorf("%w: byte seek", ErrNotSeekable)
		}
		return Range{
			Format: dlna.FormatBytes,
			Start:  int64(snap.ByteSeek.Start),
			End:    int64(snap.ByteSeek.End),
		}, nil
	case dlna.FormatTime:
		if !cf.TimeSeekSupported || snap.TimeSeek == nil {
			return Range{}, fmt.Errorf("%w: time seek", ErrNotSeekable)
		}
		return Range{
			Format: dlna.FormatTime,
			Start:  int64(snap.TimeSeek.Start),
			End:    int64(snap.TimeSeek.End),
		}, nil
	default:
		return Range{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// Convert asks the server to translate value from src into dst by issuing
// a HEAD exchange with value as the start hint and reading the start of the
// returned range.
func (s *Session) Convert(ctx context.Context, src dlna.Format, value int64, dst dlna.Format) (int64, error) {
	if s.Snapshot() == nil {
		return 0, ErrNoSnapshot
	}
	if value < 0 {
		return 0, fmt.Errorf("%w: negative value %d", dlna.ErrOutOfRange, value)
	}
	if dst != dlna.FormatBytes && dst != dlna.FormatTime {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, dst)
	}

	var startNPT time.Duration
	var startByte uint64
	switch src {
	case dlna.FormatBytes:
		startByte = uint64(value)
	case dlna.FormatTime:
		startNPT = time.Duration(value)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, src)
	}

	snap, err := s.Exchange(ctx, startNPT, startByte)
	if err != nil {
		return 0, err
	}

	if dst == dlna.FormatTime {
		if snap.TimeSeek == nil {
			return 0, fmt.Errorf("%w: no time range in response", ErrNotSeekable)
		}
		return int64(snap.TimeSeek.Start), nil
	}
	if !snap.HasByteSeek {
		return 0, fmt.Errorf("%w: no byte range in response", ErrNotSeekable)
	}
	return int64(snap.ByteSeek.Start), nil
}
