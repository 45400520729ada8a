package negotiator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/dlnaprobe/internal/dlna"
	"github.com/jmylchreest/dlnaprobe/internal/testutil"
	"github.com/jmylchreest/dlnaprobe/internal/transport"
)

func newTCPSession() *Session {
	return New(transport.NewTCP(transport.TCPConfig{
		DialTimeout: time.Second,
		IOTimeout:   2 * time.Second,
	}))
}

func TestSession_OverTCP(t *testing.T) {
	resource := testutil.SampleResource{
		Server:     "HomeShare/0.9",
		Profile:    testutil.SampleProfile{Name: "MPEG_PS_NTSC", MIME: "video/mpeg"},
		TimeSeek:   true,
		ByteSeek:   true,
		Duration:   200 * time.Second,
		Size:       2000,
		Playspeeds: []string{"-2", "1/2", "2"},
	}
	server := testutil.NewMediaServer(t, testutil.ResourceResponder(resource))
	ctx := context.Background()

	s := newTCPSession()
	require.NoError(t, s.SetURI(ctx, server.URI("/content/item.mpg?id=7")))

	reqs := server.Requests()
	require.Len(t, reqs, 1)
	assert.True(t, strings.HasPrefix(reqs[0], "HEAD /content/item.mpg?id=7 HTTP/1.1\r\n"))
	assert.Contains(t, reqs[0], "getcontentFeatures.dlna.org : 1\r\n")

	d, err := s.Duration(dlna.FormatTime)
	require.NoError(t, err)
	assert.Equal(t, int64(200*time.Second), d)

	d, err = s.Duration(dlna.FormatBytes)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), d)

	n, err := s.Convert(ctx, dlna.FormatTime, int64(50*time.Second), dlna.FormatBytes)
	require.NoError(t, err)
	assert.Equal(t, int64(500), n)

	n, err = s.Convert(ctx, dlna.FormatBytes, 1000, dlna.FormatTime)
	require.NoError(t, err)
	assert.Equal(t, int64(100*time.Second), n)

	decision, err := s.Seek(ctx, dlna.SeekRequest{Rate: -2, Format: dlna.FormatTime, Start: int64(150 * time.Second), Stop: -1})
	require.NoError(t, err)
	require.Len(t, decision.ExtraHeaders, 2)
	assert.Equal(t, "speed=-2", decision.ExtraHeaders[1].Value)
}

func TestSession_OverTCP_GeneratedResources(t *testing.T) {
	gen := testutil.NewSampleDataGeneratorWithSeed(2026)
	ctx := context.Background()

	for _, resource := range gen.GenerateResources(10, testutil.DefaultGenerateOptions()) {
		server := testutil.NewMediaServer(t, testutil.ResourceResponder(resource))
		s := newTCPSession()
		require.NoError(t, s.SetURI(ctx, server.URI("/item")))

		rates, err := s.SupportedRates()
		require.NoError(t, err)
		assert.Len(t, rates, len(resource.Playspeeds))

		plan, err := s.DecryptionPlan()
		require.NoError(t, err)
		assert.Equal(t, resource.LinkProtected, plan.Required)

		_, err = s.Seeking(dlna.FormatBytes)
		if resource.ByteSeek {
			assert.NoError(t, err)
		} else {
			assert.ErrorIs(t, err, ErrNotSeekable)
		}
		_, err = s.Seeking(dlna.FormatTime)
		if resource.TimeSeek {
			assert.NoError(t, err)
		} else {
			assert.ErrorIs(t, err, ErrNotSeekable)
		}
	}
}

func TestSession_OverTCP_BadStatus(t *testing.T) {
	server := testutil.NewMediaServer(t, testutil.ResourceResponder(testutil.SampleResource{Status: 404}))

	s := newTCPSession()
	err := s.SetURI(context.Background(), server.URI("/missing"))
	assert.ErrorIs(t, err, ErrBadStatus)
	assert.Nil(t, s.Snapshot())
}
