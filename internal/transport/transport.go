// Package transport performs the single request/response exchange of a
// HEAD negotiation over a raw TCP connection.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

// DefaultMaxResponseSize bounds how much of a response is read.
const DefaultMaxResponseSize = 64 * 1024

var headerTerminator = []byte("\r\n\r\n")

// Transport errors. Each one fails the whole exchange.
var (
	ErrShortWrite       = errors.New("transport: short write")
	ErrEmptyResponse    = errors.New("transport: empty response")
	ErrResponseTooLarge = errors.New("transport: response exceeds size limit")
)

// Dialer opens connections to a media server.
type Dialer interface {
	Connect(ctx context.Context, host string, port int) (Conn, error)
}

// Conn is one open connection. Send and Receive are each called once.
type Conn interface {
	Send(p []byte) error
	Receive() ([]byte, error)
	Close() error
}

// TCPConfig holds the TCP dialer settings. Zero timeouts mean no limit.
type TCPConfig struct {
	DialTimeout     time.Duration
	IOTimeout       time.Duration
	MaxResponseSize int
}

// TCP is the default Dialer.
type TCP struct {
	cfg TCPConfig
}

// NewTCP returns a TCP dialer. A non-positive MaxResponseSize selects
// DefaultMaxResponseSize.
func NewTCP(cfg TCPConfig) *TCP {
	if cfg.MaxResponseSize <= 0 {
		cfg.MaxResponseSize = DefaultMaxResponseSize
	}
	return &TCP{cfg: cfg}
}

// Connect dials host:port. Cancelling ctx interrupts any pending I/O on the
// returned connection.
func (t *TCP) Connect(ctx context.Context, host string, port int) (Conn, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	d := net.Dialer{Timeout: t.cfg.DialTimeout}

	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}

	c := &tcpConn{
		conn:    nc,
		timeout: t.cfg.IOTimeout,
		maxSize: t.cfg.MaxResponseSize,
	}
	c.stop = context.AfterFunc(ctx, func() {
		_ = nc.SetDeadline(time.Now())
	})
	return c, nil
}

type tcpConn struct {
	conn    net.Conn
	timeout time.Duration
	maxSize int
	stop    func() bool
}

func (c *tcpConn) deadline() error {
	if c.timeout <= 0 {
		return nil
	}
	return c.conn.SetDeadline(time.Now().Add(c.timeout))
}

func (c *tcpConn) Send(p []byte) error {
	if err := c.deadline(); err != nil {
		return fmt.Errorf("setting deadline: %w", err)
	}
	n, err := c.conn.Write(p)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	if n != len(p) {
		return fmt.Errorf("%w: sent %d of %d bytes", ErrShortWrite, n, len(p))
	}
	return nil
}

// Receive reads until the end of the header block, EOF, or the size limit.
func (c *tcpConn) Receive() ([]byte, error) {
	if err := c.deadline(); err != nil {
		return nil, fmt.Errorf("setting deadline: %w", err)
	}

	var buf bytes.Buffer
	chunk := make([]byte, 4096)
	for {
		n, err := c.conn.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			if end := bytes.Index(buf.Bytes(), headerTerminator); end >= 0 {
				return buf.Bytes()[:end+len(headerTerminator)], nil
			}
			if buf.Len() > c.maxSize {
				return nil, fmt.Errorf("%w: %d bytes", ErrResponseTooLarge, c.maxSize)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("receiving response: %w", err)
		}
	}

	if buf.Len() == 0 {
		return nil, ErrEmptyResponse
	}
	return buf.Bytes(), nil
}

func (c *tcpConn) Close() error {
	c.stop()
	return c.conn.Close()
}

// RoundTrip connects, sends req, receives the response and closes the
// connection. Any failure fails the exchange; nothing is retried.
func RoundTrip(ctx context.Context, d Dialer, host string, port int, req []byte) ([]byte, error) {
	conn, err := d.Connect(ctx, host, port)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := conn.Send(req); err != nil {
		return nil, err
	}
	return conn.Receive()
}
