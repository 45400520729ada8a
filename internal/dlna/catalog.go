// Package dlna implements the DLNA HTTP HEAD negotiation engine: building
// HEAD requests with seek hints, parsing the vendor response headers into a
// capability Snapshot, and validating seek and rate changes against it.
package dlna

import (
	"log/slog"
	"strings"
)

// HeaderKind identifies a recognized HEAD response header.
type HeaderKind int

// Recognized headers. The numeric order matches the catalog order.
const (
	HeaderStatus HeaderKind = iota
	HeaderVary
	HeaderTimeSeekRange
	HeaderTransferMode
	HeaderDate
	HeaderContentType
	HeaderServer
	HeaderTransferEncoding
	HeaderContentFeatures
	HeaderDTCPRange
	HeaderPragma
	HeaderCacheControl
	HeaderContentLength
	HeaderAcceptRanges
)

// CatalogEntry pairs a header kind with the upper-case name searched for.
type CatalogEntry struct {
	Kind HeaderKind
	Name string
}

// headerCatalog is scanned top to bottom and the first name contained in a
// line wins. Order matters: a more specific name must precede any more
// general name that would also match the same line.
var headerCatalog = []CatalogEntry{
	{HeaderStatus, "HTTP/"},
	{HeaderVary, "VARY"},
	{HeaderTimeSeekRange, "TIMESEEKRANGE.DLNA.ORG"},
	{HeaderTransferMode, "TRANSFERMODE.DLNA.ORG"},
	{HeaderDate, "DATE"},
	{HeaderContentType, "CONTENT-TYPE"},
	{HeaderServer, "SERVER"},
	{HeaderTransferEncoding, "TRANSFER-ENCODING"},
	{HeaderContentFeatures, "CONTENTFEATURES.DLNA.ORG"},
	{HeaderDTCPRange, "CONTENT-RANGE.DTCP.COM"},
	{HeaderPragma, "PRAGMA"},
	{HeaderCacheControl, "CACHE-CONTROL"},
	{HeaderContentLength, "CONTENT-LENGTH"},
	{HeaderAcceptRanges, "ACCEPT-RANGES"},
}

// Catalog returns a copy of the ordered header catalog.
func Catalog() []CatalogEntry {
	out := make([]CatalogEntry, len(headerCatalog))
	copy(out, headerCatalog)
	return out
}

// String returns the catalog name of the header kind.
func (k HeaderKind) String() string {
	if k >= 0 && int(k) < len(headerCatalog) {
		return headerCatalog[k].Name
	}
	return "UNKNOWN"
}

// Field is one tokenized response header.
type Field struct {
	Kind HeaderKind
	// Line is the complete upper-cased header line.
	Line string
	// Value is the text after the first colon, trimmed. For the status
	// line it is the whole line.
	Value string
}

// MatchHeader returns the first catalog entry whose name occurs in line.
func MatchHeader(line string) (HeaderKind, bool) {
	for _, entry := range headerCatalog {
		if strings.Contains(line, entry.Name) {
			return entry.Kind, true
		}
	}
	return 0, false
}

// Tokenize case-folds the raw response to upper case, splits it into lines
// and classifies each line against the header catalog. Unrecognized lines
// are dropped with a debug diagnostic. When a header occurs more than once
// the last occurrence is kept. The result is ordered by catalog order.
func Tokenize(raw []byte, logger *slog.Logger) []Field {
	if logger == nil {
		logger = slog.Default()
	}

	text := strings.ToUpper(string(raw))
	lines := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\r' || r == '\n'
	})

	byKind := make(map[HeaderKind]Field, len(headerCatalog))
	for _, line := range lines {
		kind, ok := MatchHeader(line)
		if !ok {
			logger.Debug("unrecognized HEAD response line",
				slog.String("line", line),
			)
			continue
		}
		byKind[kind] = Field{
			Kind:  kind,
			Line:  line,
			Value: fieldValue(kind, line),
		}
	}

	fields := make([]Field, 0, len(byKind))
	for _, entry := range headerCatalog {
		if f, ok := byKind[entry.Kind]; ok {
			fields = append(fields, f)
		}
	}
	return fields
}

func fieldValue(kind HeaderKind, line string) string {
	if kind == HeaderStatus {
		return strings.TrimSpace(line)
	}
	_, value, found := strings.Cut(line, ":")
	if !found {
		return ""
	}
	return strings.TrimSpace(value)
}
