package dlna

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeSeekRange(t *testing.T) {
	timeRange, byteRange, warnings := ParseTimeSeekRange("NPT=335.1-336.1/40445.4 BYTES=1539686400-1540210688/304857907200")
	assert.Empty(t, warnings)

	require.NotNil(t, timeRange)
	assert.Equal(t, 335100*time.Millisecond, timeRange.Start)
	assert.Equal(t, 336100*time.Millisecond, timeRange.End)
	assert.Equal(t, 40445400*time.Millisecond, timeRange.Duration)
	assert.Equal(t, "335.1", timeRange.StartText)
	assert.Equal(t, "336.1", timeRange.EndText)
	assert.Equal(t, "40445.4", timeRange.DurationText)

	require.NotNil(t, byteRange)
	assert.Equal(t, ByteRange{Start: 1539686400, End: 1540210688, Total: 304857907200}, *byteRange)
}

func TestParseTimeSeekRange_ClockForm(t *testing.T) {
	timeRange, _, _ := ParseTimeSeekRange("NPT=00:00:05.000-00:10:00.000/00:10:00.000")
	require.NotNil(t, timeRange)
	assert.Equal(t, 5*time.Second, timeRange.Start)
	assert.Equal(t, 10*time.Minute, timeRange.End)
}

func TestParseTimeSeekRange_SpacesAroundEquals(t *testing.T) {
	timeRange, byteRange, warnings := ParseTimeSeekRange("NPT = 0-10/10 BYTES = 0-99/100")
	assert.Empty(t, warnings)
	require.NotNil(t, timeRange)
	require.NotNil(t, byteRange)
	assert.Equal(t, 10*time.Second, timeRange.End)
	assert.Equal(t, uint64(100), byteRange.Total)
}

func TestParseTimeSeekRange_UnknownTotals(t *testing.T) {
	timeRange, byteRange, warnings := ParseTimeSeekRange("NPT=0-10/* BYTES=0-99/*")
	assert.Empty(t, warnings)
	require.NotNil(t, timeRange)
	assert.Zero(t, timeRange.Duration)
	assert.Equal(t, "*", timeRange.DurationText)
	require.NotNil(t, byteRange)
	assert.Zero(t, byteRange.Total)
}

func TestParseTimeSeekRange_Missing(t *testing.T) {
	t.Run("npt only", func(t *testing.T) {
		timeRange, byteRange, warnings := ParseTimeSeekRange("NPT=0-10/10")
		require.NotNil(t, timeRange)
		assert.Nil(t, byteRange)
		require.Len(t, warnings, 1)
		assert.ErrorIs(t, warnings[0], ErrMissingRange)
	})

	t.Run("bytes only", func(t *testing.T) {
		timeRange, byteRange, warnings := ParseTimeSeekRange("BYTES=0-0/0")
		assert.Nil(t, timeRange)
		require.NotNil(t, byteRange)
		assert.Equal(t, ByteRange{}, *byteRange)
		require.Len(t, warnings, 1)
		assert.ErrorIs(t, warnings[0], ErrMissingRange)
	})
}

func TestParseTimeSeekRange_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"npt missing slash", "NPT=0-10 BYTES=0-1/2"},
		{"npt missing dash", "NPT=10/20 BYTES=0-1/2"},
		{"npt letters", "NPT=A-B/C BYTES=0-1/2"},
		{"npt empty end", "NPT=0-/10 BYTES=0-1/2"},
		{"npt end overflows duration", "NPT=0-3000000:00:00/* BYTES=0-1/2"},
		{"npt seconds overflow duration", "NPT=10000000000-10000000001/* BYTES=0-1/2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			timeRange, byteRange, warnings := ParseTimeSeekRange(tt.value)
			assert.Nil(t, timeRange)
			assert.NotNil(t, byteRange)
			require.Len(t, warnings, 1)
			assert.ErrorIs(t, warnings[0], ErrMalformedRange)
		})
	}
}

func TestParseByteRange(t *testing.T) {
	tests := []struct {
		input   string
		want    ByteRange
		wantErr bool
	}{
		{"0-999/1000", ByteRange{0, 999, 1000}, false},
		{"50-1000/*", ByteRange{50, 1000, 0}, false},
		{"18446744073709551615-18446744073709551615/18446744073709551615",
			ByteRange{^uint64(0), ^uint64(0), ^uint64(0)}, false},
		{"-1-2/3", ByteRange{}, true},
		{"1-2", ByteRange{}, true},
		{"a-2/3", ByteRange{}, true},
		{"1-b/3", ByteRange{}, true},
		{"1-2/c", ByteRange{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseByteRange(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDTCPRange(t *testing.T) {
	r, err := ParseDTCPRange("BYTES=100-200/300")
	require.NoError(t, err)
	assert.Equal(t, ByteRange{100, 200, 300}, r)

	_, err = ParseDTCPRange("100-200/300")
	assert.ErrorIs(t, err, ErrMissingRange)
}

func TestRangeContains(t *testing.T) {
	br := ByteRange{Start: 50, End: 1000}
	assert.True(t, br.Contains(50))
	assert.True(t, br.Contains(1000))
	assert.False(t, br.Contains(49))
	assert.False(t, br.Contains(1001))

	tr := TimeSeekRange{Start: time.Second, End: time.Minute}
	assert.True(t, tr.Contains(time.Second))
	assert.False(t, tr.Contains(time.Minute+1))
}
