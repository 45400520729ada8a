package version

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withBuildInfo(t *testing.T, version, commit string) {
	t.Helper()
	oldVersion, oldCommit := Version, Commit
	Version, Commit = version, commit
	t.Cleanup(func() { Version, Commit = oldVersion, oldCommit })
}

func TestGetInfo(t *testing.T) {
	info := GetInfo()

	assert.NotEmpty(t, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Contains(t, info.Platform, runtime.GOOS)
	assert.Contains(t, info.Platform, runtime.GOARCH)
}

func TestString(t *testing.T) {
	withBuildInfo(t, "1.2.3", "unknown")
	s := String()
	assert.Contains(t, s, ApplicationName+" version 1.2.3")
	assert.NotContains(t, s, "commit:")

	withBuildInfo(t, "1.2.3", "0123456789abcdef")
	assert.Contains(t, String(), "commit: 01234567")
}

func TestShort(t *testing.T) {
	withBuildInfo(t, "dev", "unknown")
	assert.Equal(t, "dlnaprobe dev", Short())

	withBuildInfo(t, "0.4.0", "abcdef0123456789")
	assert.Equal(t, "dlnaprobe 0.4.0 (abcdef01)", Short())

	withBuildInfo(t, "0.4.0", "abc")
	assert.Equal(t, "dlnaprobe 0.4.0", Short())
}

func TestJSON(t *testing.T) {
	withBuildInfo(t, "2.0.0", "unknown")

	s, err := JSON()
	require.NoError(t, err)

	var info Info
	require.NoError(t, json.Unmarshal([]byte(s), &info))
	assert.Equal(t, "2.0.0", info.Version)
	assert.Equal(t, "unknown", info.Commit)
}
