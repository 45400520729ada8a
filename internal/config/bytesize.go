package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Binary size units.
const (
	B  ByteSize = 1
	KB ByteSize = 1024 * B
	MB ByteSize = 1024 * KB
	GB ByteSize = 1024 * MB
)

var sizeUnits = []struct {
	suffix string
	size   ByteSize
}{
	{"GB", GB},
	{"MB", MB},
	{"KB", KB},
}

var sizePattern = regexp.MustCompile(`(?i)^\s*(\d+)\s*(b|k|kb|kib|m|mb|mib|g|gb|gib)?\s*$`)

// ByteSize is a byte count that unmarshals from values like "64KB" or "1MB".
// A bare number is a count of bytes.
type ByteSize int64

// ParseByteSize parses a human-readable byte size.
func ParseByteSize(s string) (ByteSize, error) {
	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid byte size %q", s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}

	unit := B
	switch strings.ToLower(m[2]) {
	case "k", "kb", "kib":
		unit = KB
	case "m", "mb", "mib":
		unit = MB
	case "g", "gb", "gib":
		unit = GB
	}
	return ByteSize(n) * unit, nil
}

// UnmarshalText implements encoding.TextUnmarshaler for YAML/Viper support.
func (b *ByteSize) UnmarshalText(text []byte) error {
	parsed, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Int returns the size as an int.
func (b ByteSize) Int() int {
	return int(b)
}

// String uses the largest unit that divides the size exactly.
func (b ByteSize) String() string {
	for _, u := range sizeUnits {
		if b != 0 && b%u.size == 0 {
			return strconv.FormatInt(int64(b/u.size), 10) + u.suffix
		}
	}
	return strconv.FormatInt(int64(b), 10) + "B"
}
