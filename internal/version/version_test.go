package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetInfo(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	t.Cleanup(func() {
		Version, Commit, Date = origVersion, origCommit, origDate
	})

	Version = "1.0.0"
	Commit = "abc123def456"
	Date = "2024-01-01T12:00:00Z"

	info := GetInfo()
	assert.Equal(t, "1.0.0", info.Version)
	assert.Equal(t, "abc123def456", info.Commit)
	assert.Equal(t, "2024-01-01T12:00:00Z", info.Date)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestInfoString(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want []string
	}{
		{
			name: "full version info",
			info: Info{
				Version:   "1.0.0",
				Commit:    "abc123def456",
				Date:      "2024-01-01T12:00:00Z",
				GoVersion: "go1.22.0",
				Platform:  "linux/amd64",
			},
			want: []string{"VibeSub", "1.0.0", "(abc123de)", "2024-01-01T12:00:00Z", "go1.22.0", "linux/amd64"},
		},
		{
			name: "short commit hash",
			info: Info{Version: "dev", Commit: "abc", Date: "unknown"},
			want: []string{"dev", "(abc)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.info.String()
			for _, want := range tt.want {
				assert.Contains(t, got, want)
			}
		})
	}
}

func TestShortAndUserAgent(t *testing.T) {
	info := Info{Version: "2.1.0", Platform: "darwin/arm64"}
	assert.Equal(t, "2.1.0", info.Short())
	assert.Equal(t, "vibesub/2.1.0 (darwin/arm64)", info.UserAgent())
}
