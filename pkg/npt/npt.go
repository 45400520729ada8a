// Package npt converts DLNA normal play time (NPT) notation to and from
// time.Duration values.
//
// Two grammars are accepted, tried in order:
//   - H:MM:SS[.mmm] - hours unbounded, minutes and seconds 1-2 digits
//   - S[.sss]       - plain decimal seconds
//
// Both are evaluated at millisecond precision and promoted to nanoseconds,
// so fractional digits beyond the third are truncated.
//
// Examples:
//   - "00:01:05.500" = 65.5 seconds
//   - "5.25"         = 5.25 seconds
//   - "1:00:00"      = 1 hour
package npt

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedTime is returned when text matches neither NPT grammar.
var ErrMalformedTime = errors.New("npt: malformed time")

// maxMillis is the largest millisecond count a time.Duration can hold.
const maxMillis = math.MaxInt64 / int64(time.Millisecond)

// clockPattern matches the H:MM:SS[.fraction] form.
var clockPattern = regexp.MustCompile(`^(\d+):(\d{1,2}):(\d{1,2})(?:\.(\d+))?$`)

// secondsPattern matches the S[.fraction] form.
var secondsPattern = regexp.MustCompile(`^(\d+)(?:\.(\d+))?$`)

// Parse converts NPT text into a duration with millisecond precision.
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrMalformedTime)
	}

	if m := clockPattern.FindStringSubmatch(s); m != nil {
		hours, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrMalformedTime, s, err)
		}
		minutes, _ := strconv.ParseInt(m[2], 10, 64)
		seconds, _ := strconv.ParseInt(m[3], 10, 64)

		if hours > maxMillis/(60*60*1000) {
			return 0, fmt.Errorf("%w: %q exceeds the duration range", ErrMalformedTime, s)
		}
		return fromMillis(s, hours*60*60*1000, ((minutes*60)+seconds)*1000+fractionMillis(m[4]))
	}

	if m := secondsPattern.FindStringSubmatch(s); m != nil {
		seconds, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrMalformedTime, s, err)
		}
		if seconds > maxMillis/1000 {
			return 0, fmt.Errorf("%w: %q exceeds the duration range", ErrMalformedTime, s)
		}
		return fromMillis(s, seconds*1000, fractionMillis(m[2]))
	}

	return 0, fmt.Errorf("%w: %q", ErrMalformedTime, s)
}

// fromMillis adds two non-negative millisecond counts and converts the sum,
// rejecting totals a time.Duration cannot represent.
func fromMillis(s string, whole, rest int64) (time.Duration, error) {
	if whole > maxMillis-rest {
		return 0, fmt.Errorf("%w: %q exceeds the duration range", ErrMalformedTime, s)
	}
	return time.Duration(whole+rest) * time.Millisecond, nil
}

// MustParse is like Parse but panics if the string cannot be parsed.
// Use only for constants and tests.
func MustParse(s string) time.Duration {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// fractionMillis interprets the digits after the decimal point as a
// millisecond count, padding or truncating to three digits.
func fractionMillis(frac string) int64 {
	if frac == "" {
		return 0
	}
	if len(frac) > 3 {
		frac = frac[:3]
	}
	for len(frac) < 3 {
		frac += "0"
	}
	ms, _ := strconv.ParseInt(frac, 10, 64)
	return ms
}

// Format renders a duration in the H:MM:SS.mmm form.
// Sub-millisecond remainders are dropped; negative durations format as zero.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := int64(d / time.Millisecond)

	hours := ms / (60 * 60 * 1000)
	ms -= hours * 60 * 60 * 1000
	minutes := ms / (60 * 1000)
	ms -= minutes * 60 * 1000
	seconds := ms / 1000
	ms -= seconds * 1000

	return fmt.Sprintf("%d:%02d:%02d.%03d", hours, minutes, seconds, ms)
}

// FormatSeconds renders a duration as decimal seconds with trailing zeros
// trimmed: 10s becomes "10", 10.5s becomes "10.5".
func FormatSeconds(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := int64(d / time.Millisecond)
	whole := ms / 1000
	frac := ms % 1000
	if frac == 0 {
		return strconv.FormatInt(whole, 10)
	}
	return strings.TrimRight(fmt.Sprintf("%d.%03d", whole, frac), "0")
}
