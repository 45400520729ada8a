package testutil

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// Responder produces the raw response text for a raw request.
type Responder func(request string) string

// MediaServer is a loopback TCP server that answers each connection with
// one response and closes it, the way a DLNA server answers HEAD.
type MediaServer struct {
	listener  net.Listener
	responder Responder

	mu       sync.Mutex
	requests []string

	wg sync.WaitGroup
}

// NewMediaServer starts a server on 127.0.0.1 and stops it when the test
// ends.
func NewMediaServer(tb testing.TB, responder Responder) *MediaServer {
	tb.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("listening: %v", err)
	}

	s := &MediaServer{listener: l, responder: responder}
	s.wg.Add(1)
	go s.acceptLoop()

	tb.Cleanup(s.Close)
	return s
}

// ResourceResponder answers for r, honouring the TimeSeekRange start hint.
func ResourceResponder(r SampleResource) Responder {
	return func(request string) string {
		start, byteOffset, isBytes := StartHint(request)
		if isBytes {
			start = r.StartForByte(byteOffset)
		}
		return r.Response(start)
	}
}

// StaticResponder always answers with response.
func StaticResponder(response string) Responder {
	return func(string) string { return response }
}

func (s *MediaServer) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
		}()
	}
}

func (s *MediaServer) handle(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	var sb strings.Builder
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		sb.WriteString(line)
		if err != nil || line == "\r\n" || line == "\n" {
			break
		}
	}

	request := sb.String()
	s.mu.Lock()
	s.requests = append(s.requests, request)
	s.mu.Unlock()

	_, _ = conn.Write([]byte(s.responder(request)))
}

// Host returns the listening host.
func (s *MediaServer) Host() string {
	host, _, _ := net.SplitHostPort(s.listener.Addr().String())
	return host
}

// Port returns the listening port.
func (s *MediaServer) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// URI returns an http URI for path on this server.
func (s *MediaServer) URI(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("http://%s%s", s.listener.Addr().String(), path)
}

// Requests returns the requests received so far.
func (s *MediaServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

// Close stops the server and waits for open connections to finish.
func (s *MediaServer) Close() {
	_ = s.listener.Close()
	s.wg.Wait()
}

// StartHint extracts the TimeSeekRange start hint from a HEAD request.
// isBytes reports a bytes= hint; otherwise npt is the NPT start.
func StartHint(request string) (npt time.Duration, offset uint64, isBytes bool) {
	for _, line := range strings.Split(request, "\r\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "TimeSeekRange.dlna.org") {
			continue
		}
		value = strings.TrimSuffix(strings.TrimSpace(value), "-")
		switch {
		case strings.HasPrefix(value, "bytes="):
			n, err := strconv.ParseUint(strings.TrimPrefix(value, "bytes="), 10, 64)
			if err == nil {
				return 0, n, true
			}
		case strings.HasPrefix(value, "npt="):
			secs, err := strconv.ParseFloat(strings.TrimPrefix(value, "npt="), 64)
			if err == nil {
				return time.Duration(secs * float64(time.Second)).Round(time.Millisecond), 0, false
			}
		}
	}
	return 0, 0, false
}
