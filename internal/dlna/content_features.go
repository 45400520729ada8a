package dlna

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// contentFeatures.dlna.org sub-field names, upper-cased.
const (
	subProfile    = "DLNA.ORG_PN"
	subOperations = "DLNA.ORG_OP"
	subPlayspeeds = "DLNA.ORG_PS"
	subFlags      = "DLNA.ORG_FLAGS"
)

// MaxPlayspeeds caps the number of playspeeds retained from one header.
const MaxPlayspeeds = 64

// reservedFlagDigits is the count of trailing reserved hex digits in
// DLNA.ORG_FLAGS.
const reservedFlagDigits = 24

// Content-features parse errors.
var (
	ErrMalformedFeatures   = errors.New("dlna: malformed content features")
	ErrMalformedOperations = errors.New("dlna: malformed operations code")
	ErrMalformedPlayspeed  = errors.New("dlna: malformed playspeed")
	ErrMalformedFlags      = errors.New("dlna: malformed flags")
)

var (
	decimalPattern  = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d*)?|\.\d+)$`)
	fractionPattern = regexp.MustCompile(`^(-?\d+)/(\d+)$`)
	hexPattern      = regexp.MustCompile(`^[0-9A-Fa-f]+$`)
)

// Flags is the 32-bit primary field of DLNA.ORG_FLAGS.
type Flags uint32

// Named flag masks.
const (
	FlagSenderPaced          Flags = 1 << 31
	FlagLimitedTimeSeek      Flags = 1 << 30
	FlagLimitedByteSeek      Flags = 1 << 29
	FlagPlayContainer        Flags = 1 << 28
	FlagS0Increasing         Flags = 1 << 27
	FlagSNIncreasing         Flags = 1 << 26
	FlagRTSPPause            Flags = 1 << 25
	FlagStreamingMode        Flags = 1 << 24
	FlagInteractiveMode      Flags = 1 << 23
	FlagBackgroundMode       Flags = 1 << 22
	FlagHTTPStalling         Flags = 1 << 21
	FlagDLNAV15              Flags = 1 << 20
	FlagLinkProtected        Flags = 1 << 16
	FlagFullClearTextSeek    Flags = 1 << 15
	FlagLimitedClearTextSeek Flags = 1 << 14
)

var flagNames = []struct {
	mask Flags
	name string
}{
	{FlagSenderPaced, "sender-paced"},
	{FlagLimitedTimeSeek, "limited-time-seek"},
	{FlagLimitedByteSeek, "limited-byte-seek"},
	{FlagPlayContainer, "play-container"},
	{FlagS0Increasing, "s0-increasing"},
	{FlagSNIncreasing, "sn-increasing"},
	{FlagRTSPPause, "rtsp-pause"},
	{FlagStreamingMode, "streaming-mode"},
	{FlagInteractiveMode, "interactive-mode"},
	{FlagBackgroundMode, "background-mode"},
	{FlagHTTPStalling, "http-stalling"},
	{FlagDLNAV15, "dlna-v1.5"},
	{FlagLinkProtected, "link-protected"},
	{FlagFullClearTextSeek, "full-clear-text-seek"},
	{FlagLimitedClearTextSeek, "limited-clear-text-seek"},
}

// Has reports whether every bit of mask is set.
func (f Flags) Has(mask Flags) bool {
	return f&mask == mask
}

func (f Flags) SenderPaced() bool          { return f.Has(FlagSenderPaced) }
func (f Flags) LimitedTimeSeek() bool      { return f.Has(FlagLimitedTimeSeek) }
func (f Flags) LimitedByteSeek() bool      { return f.Has(FlagLimitedByteSeek) }
func (f Flags) PlayContainer() bool        { return f.Has(FlagPlayContainer) }
func (f Flags) S0Increasing() bool         { return f.Has(FlagS0Increasing) }
func (f Flags) SNIncreasing() bool         { return f.Has(FlagSNIncreasing) }
func (f Flags) RTSPPause() bool            { return f.Has(FlagRTSPPause) }
func (f Flags) StreamingMode() bool        { return f.Has(FlagStreamingMode) }
func (f Flags) InteractiveMode() bool      { return f.Has(FlagInteractiveMode) }
func (f Flags) BackgroundMode() bool       { return f.Has(FlagBackgroundMode) }
func (f Flags) HTTPStalling() bool         { return f.Has(FlagHTTPStalling) }
func (f Flags) DLNAV15() bool              { return f.Has(FlagDLNAV15) }
func (f Flags) LinkProtected() bool        { return f.Has(FlagLinkProtected) }
func (f Flags) FullClearTextSeek() bool    { return f.Has(FlagFullClearTextSeek) }
func (f Flags) LimitedClearTextSeek() bool { return f.Has(FlagLimitedClearTextSeek) }

// Names returns the names of the set flags, most significant first.
func (f Flags) Names() []string {
	var names []string
	for _, fn := range flagNames {
		if f.Has(fn.mask) {
			names = append(names, fn.name)
		}
	}
	return names
}

// Playspeed is one supported playback rate. Text is the form the server
// sent, such as "1/3", and is echoed back verbatim when requesting it.
type Playspeed struct {
	Value float64 `json:"value"`
	Text  string  `json:"text"`
}

// ContentFeatures is the decoded contentFeatures.dlna.org header.
type ContentFeatures struct {
	Profile            string      `json:"profile,omitempty"`
	TimeSeekSupported  bool        `json:"time_seek_supported"`
	ByteRangeSupported bool        `json:"byte_range_supported"`
	Playspeeds         []Playspeed `json:"playspeeds,omitempty"`
	Flags              Flags       `json:"flags"`
	FlagsText          string      `json:"flags_text,omitempty"`
}

// SupportsRate reports whether rate matches a playspeed and returns it.
func (cf ContentFeatures) SupportsRate(rate float64) (Playspeed, bool) {
	for _, ps := range cf.Playspeeds {
		if ps.Value == rate {
			return ps, true
		}
	}
	return Playspeed{}, false
}

// ParseContentFeatures decodes a contentFeatures.dlna.org value. Sub-fields
// may appear in any order; each is parsed independently and failures are
// returned as warnings.
func ParseContentFeatures(value string) (ContentFeatures, []error) {
	var cf ContentFeatures
	var warnings []error

	for _, token := range strings.Split(value, ";") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		name, raw, found := strings.Cut(token, "=")
		if !found {
			warnings = append(warnings, fmt.Errorf("%w: missing '=' in %q", ErrMalformedFeatures, token))
			continue
		}
		name = strings.TrimSpace(name)
		raw = strings.TrimSpace(raw)

		switch name {
		case subProfile:
			cf.Profile = raw

		case subOperations:
			timeSeek, byteRange, errs := ParseOperations(raw)
			cf.TimeSeekSupported = timeSeek
			cf.ByteRangeSupported = byteRange
			warnings = append(warnings, errs...)

		case subPlayspeeds:
			speeds, err := ParsePlayspeeds(raw)
			cf.Playspeeds = speeds
			if err != nil {
				warnings = append(warnings, err)
			}

		case subFlags:
			flags, err := ParseFlags(raw)
			if err != nil {
				warnings = append(warnings, err)
				continue
			}
			cf.Flags = flags
			cf.FlagsText = raw

		default:
			warnings = append(warnings, fmt.Errorf("%w: unrecognized sub field %q", ErrMalformedFeatures, name))
		}
	}

	return cf, warnings
}

// ParseOperations decodes the two-character DLNA.ORG_OP code. The first
// character is time-seek support, the second byte-range support. A code of
// the wrong length leaves both false; a bad character leaves only its own
// flag false.
func ParseOperations(code string) (timeSeek, byteRange bool, warnings []error) {
	if len(code) != 2 {
		return false, false, []error{fmt.Errorf("%w: %q is not two characters", ErrMalformedOperations, code)}
	}

	decode := func(c byte, what string) bool {
		switch c {
		case '1':
			return true
		case '0':
			return false
		default:
			warnings = append(warnings, fmt.Errorf("%w: %s character %q in %q", ErrMalformedOperations, what, c, code))
			return false
		}
	}
	timeSeek = decode(code[0], "time seek")
	byteRange = decode(code[1], "byte range")
	return timeSeek, byteRange, warnings
}

// ParsePlayspeeds decodes a comma-separated DLNA.ORG_PS list in header
// order. At most MaxPlayspeeds entries are kept. A malformed entry ends the
// list; the entries before it are returned along with the error.
func ParsePlayspeeds(list string) ([]Playspeed, error) {
	var speeds []Playspeed
	for _, entry := range strings.Split(list, ",") {
		if len(speeds) == MaxPlayspeeds {
			break
		}
		ps, err := ParsePlayspeed(entry)
		if err != nil {
			return speeds, err
		}
		speeds = append(speeds, ps)
	}
	return speeds, nil
}

// ParsePlayspeed decodes a single playspeed, either a decimal such as
// "2.5", ".5" or "+2", or an integer fraction such as "1/3".
func ParsePlayspeed(text string) (Playspeed, error) {
	text = strings.TrimSpace(text)

	if m := fractionPattern.FindStringSubmatch(text); m != nil {
		num, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return Playspeed{}, fmt.Errorf("%w: numerator %q: %v", ErrMalformedPlayspeed, text, err)
		}
		den, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return Playspeed{}, fmt.Errorf("%w: denominator %q: %v", ErrMalformedPlayspeed, text, err)
		}
		if den == 0 {
			return Playspeed{}, fmt.Errorf("%w: zero denominator in %q", ErrMalformedPlayspeed, text)
		}
		return Playspeed{Value: float64(num) / float64(den), Text: text}, nil
	}

	if decimalPattern.MatchString(text) {
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Playspeed{}, fmt.Errorf("%w: %q: %v", ErrMalformedPlayspeed, text, err)
		}
		return Playspeed{Value: v, Text: text}, nil
	}

	return Playspeed{}, fmt.Errorf("%w: %q", ErrMalformedPlayspeed, text)
}

// ParseFlags decodes DLNA.ORG_FLAGS: a hex primary field followed by 24
// reserved hex digits, which are stripped before decoding.
func ParseFlags(text string) (Flags, error) {
	if len(text) <= reservedFlagDigits {
		return 0, fmt.Errorf("%w: %q is not longer than %d digits", ErrMalformedFlags, text, reservedFlagDigits)
	}
	if !hexPattern.MatchString(text) {
		return 0, fmt.Errorf("%w: %q is not hexadecimal", ErrMalformedFlags, text)
	}
	primary := text[:len(text)-reservedFlagDigits]
	v, err := strconv.ParseUint(primary, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrMalformedFlags, primary, err)
	}
	return Flags(v), nil
}
