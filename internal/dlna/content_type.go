package dlna

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Content-Type sub-field names. The response is upper-cased before
// parsing, so these are matched upper-case.
const (
	dtcpMarker       = "DTCP"
	subDTCPHost      = "DTCP1HOST"
	subDTCPPort      = "DTCP1PORT"
	subContentFormat = "CONTENTFORMAT"
	subDTCPMediaType = "APPLICATION/X-DTCP1"
	defaultDTCPPort  = -1
	quoteChar        = `"`
)

// ErrMalformedContentType is returned for undecodable Content-Type sub-fields.
var ErrMalformedContentType = errors.New("dlna: malformed content type")

// ContentType is the decoded Content-Type header. For link-protected
// content the MIME type is carried in the CONTENTFORMAT sub-field and the
// DTCP key exchange endpoint is reported alongside it.
type ContentType struct {
	MIME      string
	Encrypted bool
	DTCPHost  string
	// DTCPPort is -1 when not supplied.
	DTCPPort int
}

// ParseContentType decodes a Content-Type value. Problems with individual
// sub-fields are returned as warnings and leave the affected field unset.
func ParseContentType(value string) (ContentType, []error) {
	ct := ContentType{DTCPPort: defaultDTCPPort}
	value = strings.TrimSpace(value)

	if !strings.Contains(value, dtcpMarker) {
		ct.MIME = value
		return ct, nil
	}

	ct.Encrypted = true
	var warnings []error
	for _, token := range strings.Split(value, ";") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		switch {
		case strings.Contains(token, subDTCPHost):
			host, err := subValue(token)
			if err != nil {
				warnings = append(warnings, fmt.Errorf("%w: %s: %v", ErrMalformedContentType, subDTCPHost, err))
				continue
			}
			ct.DTCPHost = host

		case strings.Contains(token, subDTCPPort):
			raw, err := subValue(token)
			if err != nil {
				warnings = append(warnings, fmt.Errorf("%w: %s: %v", ErrMalformedContentType, subDTCPPort, err))
				continue
			}
			port, err := strconv.Atoi(raw)
			if err != nil {
				warnings = append(warnings, fmt.Errorf("%w: %s %q: %v", ErrMalformedContentType, subDTCPPort, raw, err))
				continue
			}
			ct.DTCPPort = port

		case strings.Contains(token, subContentFormat):
			raw, err := subValue(token)
			if err != nil {
				warnings = append(warnings, fmt.Errorf("%w: %s: %v", ErrMalformedContentType, subContentFormat, err))
				continue
			}
			mime, ok := unquote(raw)
			if !ok {
				warnings = append(warnings, fmt.Errorf("%w: %s %q is not quoted", ErrMalformedContentType, subContentFormat, raw))
				continue
			}
			ct.MIME = mime

		case strings.Contains(token, subDTCPMediaType):
			// encryption marker only

		default:
			warnings = append(warnings, fmt.Errorf("%w: unrecognized sub field %q", ErrMalformedContentType, token))
		}
	}

	return ct, warnings
}

// subValue returns the trimmed text after the first '=' of a NAME=VALUE token.
func subValue(token string) (string, error) {
	_, value, found := strings.Cut(token, "=")
	if !found {
		return "", fmt.Errorf("missing '=' in %q", token)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("empty value in %q", token)
	}
	return value, nil
}

func unquote(s string) (string, bool) {
	if !strings.HasPrefix(s, quoteChar) {
		return "", false
	}
	inner, _, found := strings.Cut(s[1:], quoteChar)
	if !found || inner == "" {
		return "", false
	}
	return inner, true
}
