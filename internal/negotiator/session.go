// Package negotiator owns the capability snapshot of one media resource. It
// runs HEAD exchanges one at a time, installs each usable snapshot
// atomically, and answers duration, seeking, segment and conversion queries
// from the installed snapshot.
package negotiator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/dlnaprobe/internal/dlna"
	"github.com/jmylchreest/dlnaprobe/internal/metrics"
	"github.com/jmylchreest/dlnaprobe/internal/observability"
	"github.com/jmylchreest/dlnaprobe/internal/transport"
)

const defaultHTTPPort = 80

// Recorder receives exchange and validation events.
type Recorder interface {
	ObserveExchange(outcome string, d time.Duration)
	ParseWarning(field string)
	SeekRejected(reason string)
}

type noopRecorder struct{}

func (noopRecorder) ObserveExchange(string, time.Duration) {}
func (noopRecorder) ParseWarning(string)                   {}
func (noopRecorder) SeekRejected(string)                   {}

// Target is the resource a session negotiates for.
type Target struct {
	URI  string
	Host string
	Port int
	// Path is the request-target sent on the HEAD line.
	Path string
}

// Requested holds the most recent accepted seek request.
type Requested struct {
	Rate   float64
	Format dlna.Format
	Start  int64
	Stop   int64
}

func initialRequested() Requested {
	return Requested{Rate: 1.0, Format: dlna.FormatBytes, Start: 0, Stop: -1}
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Session) {
		s.recorder = r
	}
}

// Session negotiates capabilities for one resource. Exchanges are
// serialized; snapshot reads never block.
type Session struct {
	dialer   transport.Dialer
	logger   *slog.Logger
	recorder Recorder

	// exchangeMu allows one outstanding HEAD exchange.
	exchangeMu sync.Mutex

	stateMu   sync.RWMutex
	target    *Target
	requested Requested
	rate      float64

	snapshot atomic.Pointer[dlna.Snapshot]
}

// New creates a session that uses dialer for HEAD exchanges.
func New(dialer transport.Dialer, opts ...Option) *Session {
	s := &Session{
		dialer:    dialer,
		logger:    slog.Default(),
		recorder:  noopRecorder{},
		requested: initialRequested(),
		rate:      1.0,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = observability.WithComponent(s.logger, "negotiator")
	return s
}

// ParseTarget decodes an http URI into a Target. The port defaults to 80.
func ParseTarget(uri string) (*Target, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	if u.Scheme != "http" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidURI, observability.RedactURL(uri))
	}

	port := defaultHTTPPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return nil, fmt.Errorf("%w: port %q", ErrInvalidURI, p)
		}
	}

	return &Target{
		URI:  uri,
		Host: host,
		Port: port,
		Path: u.RequestURI(),
	}, nil
}

// SetURI points the session at a new resource, resets the requested seek
// state and runs the initial HEAD exchange. The target is kept even when
// the exchange fails so it can be retried.
func (s *Session) SetURI(ctx context.Context, uri string) error {
	target, err := ParseTarget(uri)
	if err != nil {
		return err
	}

	s.exchangeMu.Lock()
	s.stateMu.Lock()
	s.target = target
	s.requested = initialRequested()
	s.rate = 1.0
	s.stateMu.Unlock()
	s.snapshot.Store(nil)
	s.exchangeMu.Unlock()

	s.logger.InfoContext(ctx, "resource set",
		slog.String("uri", uri),
		slog.String("host", target.Host),
		slog.Int("port", target.Port),
	)

	_, err = s.Exchange(ctx, 0, 0)
	return err
}

// Target returns the current target, or nil before SetURI.
func (s *Session) Target() *Target {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	if s.target == nil {
		return nil
	}
	t := *s.target
	return &t
}

// Exchange runs one HEAD round trip with the given start hint. A usable
// response replaces the installed snapshot. On a transport failure or a
// status other than 200/201 the previous snapshot stays installed.
func (s *Session) Exchange(ctx context.Context, startNPT time.Duration, startByte uint64) (snap *dlna.Snapshot, err error) {
	// The target must be read under exchangeMu; SetURI swaps it there.
	s.exchangeMu.Lock()
	defer s.exchangeMu.Unlock()

	target := s.Target()
	if target == nil {
		return nil, ErrNoURI
	}

	exchangeID := observability.NewExchangeID()
	ctx = observability.ContextWithExchangeID(ctx, exchangeID)
	logger := observability.WithExchangeID(s.logger, exchangeID)
	done := observability.TimedOperationWithError(ctx, logger, "head_exchange", &err)
	defer done()

	req := dlna.BuildHeadRequest(dlna.HeadRequest{
		Target:    target.Path,
		Host:      target.Host,
		Port:      target.Port,
		StartNPT:  startNPT,
		StartByte: startByte,
	})
	logger.Log(ctx, observability.LevelTrace, "HEAD request", slog.String("request", req))

	start := time.Now()
	raw, err := transport.RoundTrip(ctx, s.dialer, target.Host, target.Port, []byte(req))
	elapsed := time.Since(start)
	if err != nil {
		s.recorder.ObserveExchange(metrics.OutcomeTransportError, elapsed)
		addr := net.JoinHostPort(target.Host, strconv.Itoa(target.Port))
		return nil, fmt.Errorf("HEAD exchange with %s: %w", addr, err)
	}
	logger.Log(ctx, observability.LevelTrace, "HEAD response", slog.String("response", string(raw)))

	snap = dlna.Parse(raw, logger)
	snap.ExchangeID = exchangeID
	for _, w := range snap.Warnings {
		s.recorder.ParseWarning(w.Field)
	}

	if !snap.OK() {
		s.recorder.ObserveExchange(metrics.OutcomeBadStatus, elapsed)
		return nil, &StatusError{Status: snap.Status}
	}

	s.recorder.ObserveExchange(metrics.OutcomeOK, elapsed)
	s.snapshot.Store(snap)

	logger.DebugContext(ctx, "capability snapshot installed",
		slog.Int("status", snap.Status.Code),
		slog.String("profile", snap.ContentFeatures.Profile),
		slog.Bool("time_seek", snap.ContentFeatures.TimeSeekSupported),
		slog.Bool("byte_range", snap.ContentFeatures.ByteRangeSupported),
		slog.Int("playspeeds", len(snap.ContentFeatures.Playspeeds)),
		slog.Int("warnings", len(snap.Warnings)),
	)
	return snap, nil
}

// Snapshot returns the installed snapshot, or nil before the first usable
// exchange.
func (s *Session) Snapshot() *dlna.Snapshot {
	return s.snapshot.Load()
}

// SupportedRates returns the advertised playspeeds in header order.
func (s *Session) SupportedRates() ([]dlna.Playspeed, error) {
	snap := s.Snapshot()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	out := make([]dlna.Playspeed, len(snap.ContentFeatures.Playspeeds))
	copy(out, snap.ContentFeatures.Playspeeds)
	return out, nil
}

// Rate returns the playback rate of the last accepted seek.
func (s *Session) Rate() float64 {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.rate
}

// Requested returns the last accepted seek request.
func (s *Session) Requested() Requested {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.requested
}

// SeekDecision is the outcome of an accepted seek or rate change.
type SeekDecision struct {
	Request dlna.SeekRequest
	// ExtraHeaders must be sent with the media request. Empty at rate 1.
	ExtraHeaders []dlna.HeaderLine
}

// Seek validates req against the installed snapshot and records it as the
// requested state. Rejections are returned as *dlna.RejectionError.
func (s *Session) Seek(ctx context.Context, req dlna.SeekRequest) (SeekDecision, error) {
	snap := s.Snapshot()
	if err := dlna.Validate(req, snap); err != nil {
		var rejection *dlna.RejectionError
		if errors.As(err, &rejection) {
			s.recorder.SeekRejected(rejection.Code())
		}
		s.logger.WarnContext(ctx, "seek rejected",
			slog.Float64("rate", req.Rate),
			slog.String("format", req.Format.String()),
			slog.Int64("start", req.Start),
			slog.String("error", err.Error()),
		)
		return SeekDecision{}, err
	}

	decision := SeekDecision{Request: req}
	if req.Rate != 1.0 {
		headers, err := dlna.ExtraHeaders(req.Rate, snap)
		if err != nil {
			return SeekDecision{}, err
		}
		decision.ExtraHeaders = headers
	}

	s.stateMu.Lock()
	s.rate = req.Rate
	s.requested = Requested{
		Rate:   req.Rate,
		Format: req.Format,
		Start:  req.Start,
		Stop:   req.Stop,
	}
	s.stateMu.Unlock()

	s.logger.InfoContext(ctx, "seek accepted",
		slog.Float64("rate", req.Rate),
		slog.String("format", req.Format.String()),
		slog.Int64("start", req.Start),
		slog.Int64("stop", req.Stop),
	)
	return decision, nil
}

// DecryptionPlan tells the pipeline whether a decrypting stage is needed
// and where its key exchange endpoint is.
type DecryptionPlan struct {
	Required bool
	Host     string
	Port     int
}

// DecryptionPlan derives the plan from the link-protected flag.
func (s *Session) DecryptionPlan() (DecryptionPlan, error) {
	snap := s.Snapshot()
	if snap == nil {
		return DecryptionPlan{}, ErrNoSnapshot
	}
	return DecryptionPlan{
		Required: snap.ContentFeatures.Flags.LinkProtected(),
		Host:     snap.DTCPHost,
		Port:     snap.DTCPPort,
	}, nil
}
