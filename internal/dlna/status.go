package dlna

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedStatus is returned when the status line cannot be decoded.
var ErrMalformedStatus = errors.New("dlna: malformed status line")

// Status is the decoded HTTP status line of a HEAD response.
type Status struct {
	Proto   string `json:"proto"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// OK reports whether the status code marks a usable response (200 or 201).
func (s Status) OK() bool {
	return s.Code == 200 || s.Code == 201
}

// ParseStatusLine decodes "PROTO CODE [MESSAGE]".
func ParseStatusLine(line string) (Status, error) {
	line = strings.TrimSpace(line)
	proto, rest, _ := strings.Cut(line, " ")
	if !strings.HasPrefix(proto, "HTTP/") {
		return Status{}, fmt.Errorf("%w: %q", ErrMalformedStatus, line)
	}

	codeText, message, _ := strings.Cut(strings.TrimSpace(rest), " ")
	code, err := strconv.Atoi(codeText)
	if err != nil {
		return Status{}, fmt.Errorf("%w: code %q: %v", ErrMalformedStatus, codeText, err)
	}

	return Status{
		Proto:   proto,
		Code:    code,
		Message: strings.TrimSpace(message),
	}, nil
}
