package dlna

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = "HTTP/1.1 200 OK\r\n" +
	"Content-Type: video/mpeg\r\n" +
	"Content-Length: 1000\r\n" +
	"Accept-Ranges: bytes\r\n" +
	"TimeSeekRange.dlna.org: npt=0.000-100.500/100.500 bytes=0-999/1000\r\n" +
	"contentFeatures.dlna.org: DLNA.ORG_PN=MPEG_PS_NTSC;DLNA.ORG_OP=11;DLNA.ORG_PS=-2,1/2,2;DLNA.ORG_FLAGS=01700000000000000000000000000000\r\n" +
	"transferMode.dlna.org: Streaming\r\n" +
	"Server: Linux/2.6 UPnP/1.0 probe/1.0\r\n" +
	"Date: Mon, 19 Oct 2026 10:00:00 GMT\r\n" +
	"Vary: Accept-Encoding\r\n" +
	"\r\n"

func TestParse_FullResponse(t *testing.T) {
	snap := Parse([]byte(sampleResponse), nil)
	require.NotNil(t, snap)

	assert.True(t, snap.OK())
	assert.Equal(t, Status{Proto: "HTTP/1.1", Code: 200, Message: "OK"}, snap.Status)
	assert.Equal(t, "VIDEO/MPEG", snap.ContentType)
	assert.False(t, snap.Encrypted)
	assert.Equal(t, -1, snap.DTCPPort)
	assert.Equal(t, uint64(1000), snap.ContentLength)
	assert.Equal(t, "BYTES", snap.AcceptRanges)
	assert.True(t, snap.AcceptsByteRanges)
	assert.Equal(t, "STREAMING", snap.TransferMode)
	assert.Equal(t, "LINUX/2.6 UPNP/1.0 PROBE/1.0", snap.Server)
	assert.Equal(t, "MON, 19 OCT 2026 10:00:00 GMT", snap.Date)

	require.NotNil(t, snap.TimeSeek)
	assert.Equal(t, time.Duration(0), snap.TimeSeek.Start)
	assert.Equal(t, 100500*time.Millisecond, snap.TimeSeek.End)
	assert.True(t, snap.HasByteSeek)
	assert.Equal(t, ByteRange{Start: 0, End: 999, Total: 1000}, snap.ByteSeek)
	assert.Nil(t, snap.DTCPRange)

	cf := snap.ContentFeatures
	assert.Equal(t, "MPEG_PS_NTSC", cf.Profile)
	assert.True(t, cf.TimeSeekSupported)
	assert.True(t, cf.ByteRangeSupported)
	assert.Len(t, cf.Playspeeds, 3)
	assert.True(t, cf.Flags.StreamingMode())

	assert.Empty(t, snap.Warnings)
	assert.Equal(t, sampleResponse, snap.Raw)
}

func TestParse_Encrypted(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\n" +
		`Content-Type: application/x-dtcp1;DTCP1HOST=10.0.0.2;DTCP1PORT=8000;CONTENTFORMAT="video/mpeg"` + "\r\n" +
		"Content-Range.dtcp.com: bytes=0-4095/4096\r\n" +
		"contentFeatures.dlna.org: DLNA.ORG_FLAGS=00010000000000000000000000000000\r\n" +
		"\r\n"

	snap := Parse([]byte(raw), nil)
	assert.True(t, snap.Encrypted)
	assert.Equal(t, "VIDEO/MPEG", snap.ContentType)
	assert.Equal(t, "10.0.0.2", snap.DTCPHost)
	assert.Equal(t, 8000, snap.DTCPPort)
	require.NotNil(t, snap.DTCPRange)
	assert.Equal(t, ByteRange{Start: 0, End: 4095, Total: 4096}, *snap.DTCPRange)
	assert.True(t, snap.ContentFeatures.Flags.LinkProtected())
}

func TestParse_AcceptRangesNone(t *testing.T) {
	snap := Parse([]byte("HTTP/1.1 200 OK\r\nAccept-Ranges: none\r\n\r\n"), nil)
	assert.False(t, snap.AcceptsByteRanges)
	assert.Equal(t, "NONE", snap.AcceptRanges)
}

func TestParse_DefaultsWhenHeadersAbsent(t *testing.T) {
	snap := Parse([]byte("HTTP/1.1 201 CREATED\r\n\r\n"), nil)
	assert.True(t, snap.OK())
	assert.True(t, snap.AcceptsByteRanges)
	assert.Nil(t, snap.TimeSeek)
	assert.False(t, snap.HasByteSeek)
	assert.Equal(t, ByteRange{}, snap.ByteSeek)
	assert.Equal(t, -1, snap.DTCPPort)
	assert.Empty(t, snap.ContentFeatures.Playspeeds)
}

func TestParse_BestEffortFields(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\n" +
		"Content-Length: lots\r\n" +
		"TimeSeekRange.dlna.org: npt=bad-value/1 bytes=10-20/30\r\n" +
		"contentFeatures.dlna.org: DLNA.ORG_OP=1;DLNA.ORG_PN=AVC\r\n" +
		"Content-Type: audio/mpeg\r\n" +
		"\r\n"

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	snap := Parse([]byte(raw), logger)
	assert.True(t, snap.OK())

	assert.Zero(t, snap.ContentLength)
	assert.Nil(t, snap.TimeSeek)
	assert.True(t, snap.HasByteSeek)
	assert.Equal(t, uint64(10), snap.ByteSeek.Start)
	assert.False(t, snap.ContentFeatures.TimeSeekSupported)
	assert.Equal(t, "AVC", snap.ContentFeatures.Profile)
	assert.Equal(t, "AUDIO/MPEG", snap.ContentType)

	fields := make([]string, 0, len(snap.Warnings))
	for _, w := range snap.Warnings {
		fields = append(fields, w.Field)
	}
	assert.ElementsMatch(t, []string{
		"TIMESEEKRANGE.DLNA.ORG",
		"CONTENTFEATURES.DLNA.ORG",
		"CONTENT-LENGTH",
	}, fields)
	assert.Contains(t, buf.String(), "failed to decode HEAD response header")
}

func TestParse_BadStatus(t *testing.T) {
	snap := Parse([]byte("HTTP/1.1 404 NOT FOUND\r\nContent-Length: 0\r\n\r\n"), nil)
	assert.False(t, snap.OK())
	assert.Equal(t, 404, snap.Status.Code)

	snap = Parse([]byte("garbage\r\n\r\n"), nil)
	assert.False(t, snap.OK())
	assert.Empty(t, snap.Warnings)

	snap = Parse([]byte("HTTP/1.1 abc\r\n"), nil)
	assert.False(t, snap.OK())
	require.Len(t, snap.Warnings, 1)
	assert.Equal(t, "HTTP/", snap.Warnings[0].Field)
}

func TestSnapshot_OKNil(t *testing.T) {
	var snap *Snapshot
	assert.False(t, snap.OK())
}
