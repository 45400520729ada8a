package dlna

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/dlnaprobe/pkg/npt"
)

// TimeSeekRange sub-field names.
const (
	subNPT   = "NPT"
	subBytes = "BYTES"

	// unknownTotal is the wire token for an instance length the server
	// does not know yet.
	unknownTotal = "*"
)

// Range parse errors.
var (
	ErrMalformedRange = errors.New("dlna: malformed range")
	ErrMissingRange   = errors.New("dlna: range sub field not present")
)

// ByteRange is a start-end/total triplet of byte offsets.
type ByteRange struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
	Total uint64 `json:"total"`
}

// Contains reports whether offset lies in [Start, End].
func (r ByteRange) Contains(offset uint64) bool {
	return offset >= r.Start && offset <= r.End
}

// TimeSeekRange is the NPT portion of a TimeSeekRange.dlna.org header.
// The original text of each position is kept next to its decoded value.
type TimeSeekRange struct {
	Start        time.Duration `json:"start"`
	End          time.Duration `json:"end"`
	Duration     time.Duration `json:"duration"`
	StartText    string        `json:"start_text"`
	EndText      string        `json:"end_text"`
	DurationText string        `json:"duration_text"`
}

// Contains reports whether position lies in [Start, End].
func (r TimeSeekRange) Contains(position time.Duration) bool {
	return position >= r.Start && position <= r.End
}

// ParseTimeSeekRange decodes a TimeSeekRange.dlna.org value such as
// "NPT=335.1-336.1/40445.4 BYTES=1539686400-1540210688/304857907200".
// The NPT and BYTES sub-fields are located independently and either may be
// missing; a missing or malformed sub-field yields nil plus a warning.
func ParseTimeSeekRange(value string) (*TimeSeekRange, *ByteRange, []error) {
	var warnings []error

	var timeRange *TimeSeekRange
	if token, ok := subToken(value, subNPT); ok {
		r, err := parseNPTRange(token)
		if err != nil {
			warnings = append(warnings, err)
		} else {
			timeRange = &r
		}
	} else {
		warnings = append(warnings, fmt.Errorf("%w: %s in %q", ErrMissingRange, subNPT, value))
	}

	var byteRange *ByteRange
	if token, ok := subToken(value, subBytes); ok {
		r, err := ParseByteRange(token)
		if err != nil {
			warnings = append(warnings, err)
		} else {
			byteRange = &r
		}
	} else {
		warnings = append(warnings, fmt.Errorf("%w: %s in %q", ErrMissingRange, subBytes, value))
	}

	return timeRange, byteRange, warnings
}

// ParseDTCPRange decodes a Content-Range.dtcp.com value, which uses the
// same BYTES=start-end/total grammar as the TimeSeekRange byte sub-field.
func ParseDTCPRange(value string) (ByteRange, error) {
	token, ok := subToken(value, subBytes)
	if !ok {
		return ByteRange{}, fmt.Errorf("%w: %s in %q", ErrMissingRange, subBytes, value)
	}
	return ParseByteRange(token)
}

// ParseByteRange decodes "start-end/total" as unsigned 64-bit offsets.
// A total of "*" decodes as zero.
func ParseByteRange(s string) (ByteRange, error) {
	startText, endText, totalText, err := splitTriplet(s)
	if err != nil {
		return ByteRange{}, err
	}

	var r ByteRange
	if r.Start, err = strconv.ParseUint(startText, 10, 64); err != nil {
		return ByteRange{}, fmt.Errorf("%w: start %q: %v", ErrMalformedRange, startText, err)
	}
	if r.End, err = strconv.ParseUint(endText, 10, 64); err != nil {
		return ByteRange{}, fmt.Errorf("%w: end %q: %v", ErrMalformedRange, endText, err)
	}
	if totalText != unknownTotal {
		if r.Total, err = strconv.ParseUint(totalText, 10, 64); err != nil {
			return ByteRange{}, fmt.Errorf("%w: total %q: %v", ErrMalformedRange, totalText, err)
		}
	}
	return r, nil
}

func parseNPTRange(s string) (TimeSeekRange, error) {
	startText, endText, durationText, err := splitTriplet(s)
	if err != nil {
		return TimeSeekRange{}, err
	}

	r := TimeSeekRange{
		StartText:    startText,
		EndText:      endText,
		DurationText: durationText,
	}
	if r.Start, err = npt.Parse(startText); err != nil {
		return TimeSeekRange{}, fmt.Errorf("%w: npt start: %w", ErrMalformedRange, err)
	}
	if r.End, err = npt.Parse(endText); err != nil {
		return TimeSeekRange{}, fmt.Errorf("%w: npt end: %w", ErrMalformedRange, err)
	}
	if durationText != unknownTotal {
		if r.Duration, err = npt.Parse(durationText); err != nil {
			return TimeSeekRange{}, fmt.Errorf("%w: npt duration: %w", ErrMalformedRange, err)
		}
	}
	return r, nil
}

// splitTriplet splits "start-end/total" on its fixed delimiters.
func splitTriplet(s string) (start, end, total string, err error) {
	span, total, found := strings.Cut(s, "/")
	if !found {
		return "", "", "", fmt.Errorf("%w: missing '/' in %q", ErrMalformedRange, s)
	}
	start, end, found = strings.Cut(span, "-")
	if !found {
		return "", "", "", fmt.Errorf("%w: missing '-' in %q", ErrMalformedRange, s)
	}
	if start == "" || end == "" || total == "" {
		return "", "", "", fmt.Errorf("%w: empty component in %q", ErrMalformedRange, s)
	}
	return start, end, total, nil
}

// subToken finds NAME=VALUE inside value and returns VALUE up to the next
// whitespace or separator. Spaces around '=' are tolerated.
func subToken(value, name string) (string, bool) {
	idx := strings.Index(value, name)
	if idx < 0 {
		return "", false
	}
	rest := strings.TrimLeft(value[idx+len(name):], " \t")
	if !strings.HasPrefix(rest, "=") {
		return "", false
	}
	rest = strings.TrimLeft(rest[1:], " \t")
	if end := strings.IndexAny(rest, " \t;,"); end >= 0 {
		rest = rest[:end]
	}
	if rest == "" {
		return "", false
	}
	return rest, true
}
