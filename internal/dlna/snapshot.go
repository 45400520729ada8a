package dlna

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
)

// acceptRangesNone is the Accept-Ranges value that disables byte ranges.
const acceptRangesNone = "NONE"

// ErrMalformedLength is returned for an undecodable Content-Length.
var ErrMalformedLength = errors.New("dlna: malformed content length")

// Warning records a localized decode problem. The affected snapshot field
// keeps its default value.
type Warning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Snapshot is the capability information decoded from one HEAD response.
// It is never modified after Parse returns.
type Snapshot struct {
	Status            Status `json:"status"`
	TransferMode      string `json:"transfer_mode,omitempty"`
	TransferEncoding  string `json:"transfer_encoding,omitempty"`
	Server            string `json:"server,omitempty"`
	Date              string `json:"date,omitempty"`
	ContentLength     uint64 `json:"content_length"`
	AcceptRanges      string `json:"accept_ranges,omitempty"`
	AcceptsByteRanges bool   `json:"accepts_byte_ranges"`

	ContentType string `json:"content_type,omitempty"`
	Encrypted   bool   `json:"encrypted"`
	DTCPHost    string `json:"dtcp_host,omitempty"`
	// DTCPPort is -1 when not supplied.
	DTCPPort int `json:"dtcp_port"`

	// TimeSeek is nil when the NPT sub-field was absent or malformed.
	TimeSeek *TimeSeekRange `json:"time_seek,omitempty"`
	ByteSeek ByteRange      `json:"byte_seek"`
	// HasByteSeek separates an absent BYTES sub-field from a zero range.
	HasByteSeek bool       `json:"has_byte_seek"`
	DTCPRange   *ByteRange `json:"dtcp_range,omitempty"`

	ContentFeatures ContentFeatures `json:"content_features"`

	Warnings []Warning `json:"warnings,omitempty"`
	Raw      string    `json:"-"`

	// ExchangeID identifies the HEAD exchange that produced the snapshot.
	// Parse leaves it empty; the negotiator session sets it.
	ExchangeID string `json:"exchange_id,omitempty"`
}

// OK reports whether the response status allows the snapshot to be used.
func (s *Snapshot) OK() bool {
	return s != nil && s.Status.OK()
}

// Parse tokenizes a raw HEAD response and decodes every recognized header
// into a new Snapshot. Decode problems are recorded as warnings and logged;
// they never abort the parse.
func Parse(raw []byte, logger *slog.Logger) *Snapshot {
	if logger == nil {
		logger = slog.Default()
	}

	b := &snapshotBuilder{
		snap: &Snapshot{
			AcceptsByteRanges: true,
			DTCPPort:          defaultDTCPPort,
		},
		logger: logger,
	}

	fields := Tokenize(raw, logger)
	for _, f := range fields {
		b.apply(f)
	}

	b.snap.Raw = string(raw)
	return b.snap
}

type snapshotBuilder struct {
	snap   *Snapshot
	logger *slog.Logger
}

func (b *snapshotBuilder) warn(kind HeaderKind, err error) {
	b.snap.Warnings = append(b.snap.Warnings, Warning{
		Field:   kind.String(),
		Message: err.Error(),
	})
	b.logger.Warn("failed to decode HEAD response header",
		slog.String("header", kind.String()),
		slog.String("error", err.Error()),
	)
}

func (b *snapshotBuilder) warnAll(kind HeaderKind, errs []error) {
	for _, err := range errs {
		b.warn(kind, err)
	}
}

func (b *snapshotBuilder) apply(f Field) {
	s := b.snap

	switch f.Kind {
	case HeaderStatus:
		status, err := ParseStatusLine(f.Value)
		if err != nil {
			b.warn(f.Kind, err)
			return
		}
		s.Status = status

	case HeaderTimeSeekRange:
		timeRange, byteRange, errs := ParseTimeSeekRange(f.Value)
		b.warnAll(f.Kind, errs)
		s.TimeSeek = timeRange
		if byteRange != nil {
			s.ByteSeek = *byteRange
			s.HasByteSeek = true
		}

	case HeaderTransferMode:
		s.TransferMode = f.Value

	case HeaderDate:
		s.Date = f.Value

	case HeaderContentType:
		ct, errs := ParseContentType(f.Value)
		b.warnAll(f.Kind, errs)
		s.ContentType = ct.MIME
		s.Encrypted = ct.Encrypted
		s.DTCPHost = ct.DTCPHost
		s.DTCPPort = ct.DTCPPort

	case HeaderServer:
		s.Server = f.Value

	case HeaderTransferEncoding:
		s.TransferEncoding = f.Value

	case HeaderContentFeatures:
		cf, errs := ParseContentFeatures(f.Value)
		b.warnAll(f.Kind, errs)
		s.ContentFeatures = cf

	case HeaderDTCPRange:
		r, err := ParseDTCPRange(f.Value)
		if err != nil {
			b.warn(f.Kind, err)
			return
		}
		s.DTCPRange = &r

	case HeaderContentLength:
		n, err := strconv.ParseUint(f.Value, 10, 64)
		if err != nil {
			b.warn(f.Kind, fmt.Errorf("%w: %q: %v", ErrMalformedLength, f.Value, err))
			return
		}
		s.ContentLength = n

	case HeaderAcceptRanges:
		s.AcceptRanges = f.Value
		s.AcceptsByteRanges = f.Value != acceptRangesNone

	case HeaderVary, HeaderPragma, HeaderCacheControl:
		// recognized so they are not reported as unknown; not retained
	}
}
