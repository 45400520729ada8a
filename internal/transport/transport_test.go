package transport

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// serveOnce accepts one connection, reads the request header block and
// replies with response. It returns the listener address and a channel
// carrying the request that was read.
func serveOnce(t *testing.T, response string, closeAfter bool) (string, int, <-chan string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	got := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			close(got)
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		var sb strings.Builder
		for {
			line, err := r.ReadString('\n')
			sb.WriteString(line)
			if err != nil || line == "\r\n" {
				break
			}
		}
		got <- sb.String()

		_, _ = conn.Write([]byte(response))
		if !closeAfter {
			// hold the connection open until the client closes it
			_, _ = r.ReadByte()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port, got
}

func TestRoundTrip(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	response := "HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"
	host, port, got := serveOnce(t, response, false)

	req := "HEAD / HTTP/1.1\r\nHOST: x\r\n\r\n"
	resp, err := RoundTrip(context.Background(), NewTCP(TCPConfig{IOTimeout: 5 * time.Second}), host, port, []byte(req))
	require.NoError(t, err)
	assert.Equal(t, response, string(resp))
	assert.Equal(t, req, <-got)
}

func TestRoundTrip_ReadsUntilEOF(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	response := "HTTP/1.1 200 OK\r\nServer: test"
	host, port, _ := serveOnce(t, response, true)

	resp, err := RoundTrip(context.Background(), NewTCP(TCPConfig{}), host, port, []byte("HEAD / HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)
	assert.Equal(t, response, string(resp))
}

func TestRoundTrip_EmptyResponse(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	host, port, _ := serveOnce(t, "", true)

	_, err := RoundTrip(context.Background(), NewTCP(TCPConfig{}), host, port, []byte("HEAD / HTTP/1.1\r\n\r\n"))
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestRoundTrip_ResponseTooLarge(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	host, port, _ := serveOnce(t, "HTTP/1.1 200 OK\r\n"+strings.Repeat("X-Pad: 0123456789\r\n", 100), true)

	_, err := RoundTrip(context.Background(), NewTCP(TCPConfig{MaxResponseSize: 256}), host, port, []byte("HEAD / HTTP/1.1\r\n\r\n"))
	assert.ErrorIs(t, err, ErrResponseTooLarge)
}

func TestRoundTrip_ConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	_, err = RoundTrip(context.Background(), NewTCP(TCPConfig{DialTimeout: time.Second}), "127.0.0.1", port, []byte("HEAD / HTTP/1.1\r\n\r\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connecting to")
}

func TestRoundTrip_IOTimeout(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	// the server never answers
	host, port, _ := serveOnce(t, "", false)

	start := time.Now()
	_, err := RoundTrip(context.Background(), NewTCP(TCPConfig{IOTimeout: 100 * time.Millisecond}), host, port, []byte("HEAD / HTTP/1.1\r\n\r\n"))
	require.Error(t, err)

	var netErr net.Error
	require.True(t, errors.As(err, &netErr))
	assert.True(t, netErr.Timeout())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRoundTrip_ContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	host, port, got := serveOnce(t, "", false)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-got
		cancel()
	}()

	_, err := RoundTrip(ctx, NewTCP(TCPConfig{}), host, port, []byte("HEAD / HTTP/1.1\r\n\r\n"))
	assert.Error(t, err)
}

type shortConn struct{ closed bool }

func (c *shortConn) Send(p []byte) error {
	return ErrShortWrite
}

func (c *shortConn) Receive() ([]byte, error) {
	return nil, errors.New("receive must not be called")
}

func (c *shortConn) Close() error {
	c.closed = true
	return nil
}

type staticDialer struct{ conn Conn }

func (d staticDialer) Connect(context.Context, string, int) (Conn, error) {
	return d.conn, nil
}

func TestRoundTrip_SendFailureClosesConn(t *testing.T) {
	conn := &shortConn{}
	_, err := RoundTrip(context.Background(), staticDialer{conn}, "h", 80, []byte("x"))
	assert.ErrorIs(t, err, ErrShortWrite)
	assert.True(t, conn.closed)
}

func TestNewTCP_DefaultLimit(t *testing.T) {
	assert.Equal(t, DefaultMaxResponseSize, NewTCP(TCPConfig{}).cfg.MaxResponseSize)
	assert.Equal(t, 10, NewTCP(TCPConfig{MaxResponseSize: 10}).cfg.MaxResponseSize)
}
