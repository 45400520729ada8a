package testutil

import (
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, s *MediaServer, request string) string {
	t.Helper()
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(s.Host(), strconv.Itoa(s.Port())), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(request))
	require.NoError(t, err)
	resp, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(resp)
}

func TestMediaServer_Static(t *testing.T) {
	s := NewMediaServer(t, StaticResponder("HTTP/1.1 404 Not Found\r\n\r\n"))

	resp := roundTrip(t, s, "HEAD /x HTTP/1.1\r\n\r\n")
	assert.Equal(t, "HTTP/1.1 404 Not Found\r\n\r\n", resp)

	reqs := s.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "HEAD /x HTTP/1.1\r\n\r\n", reqs[0])
}

func TestMediaServer_ResourceResponder(t *testing.T) {
	r := SampleResource{TimeSeek: true, ByteSeek: true, Duration: 100 * time.Second, Size: 1000}
	s := NewMediaServer(t, ResourceResponder(r))

	resp := roundTrip(t, s, "HEAD / HTTP/1.1\r\nTimeSeekRange.dlna.org : bytes=250-\r\n\r\n")
	assert.Contains(t, resp, "npt=25.000-100.000/100.000 bytes=250-999/1000")
}

func TestMediaServer_URI(t *testing.T) {
	s := NewMediaServer(t, StaticResponder(""))
	assert.True(t, strings.HasPrefix(s.URI("item.mpg"), "http://127.0.0.1:"))
	assert.True(t, strings.HasSuffix(s.URI("item.mpg"), "/item.mpg"))
}
