package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

// withBuildInfo replaces the build info for the duration of a test
func withBuildInfo(t *testing.T, info *debug.BuildInfo) {
	t.Helper()
	orig := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, info != nil }
	t.Cleanup(func() { readBuildInfo = orig })
}

func TestGetVersion(t *testing.T) {
	withBuildInfo(t, nil)

	tests := []struct {
		name    string
		version string
		commit  string
		want    string
	}{
		{"all values provided", "v1.0.0", "abcdef1234567890", "v1.0.0-abcdef1"},
		{"empty version", "", "abcdef1234567890", "dev-abcdef1"},
		{"no commit", "v1.2.0", "", "v1.2.0"},
		{"short commit", "v1.0.0", "abc", "v1.0.0-abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetVersion(tt.version, tt.commit, ""); got != tt.want {
				t.Errorf("GetVersion() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetVersionFromBuildInfo(t *testing.T) {
	withBuildInfo(t, &debug.BuildInfo{
		Main: debug.Module{Path: "github.com/mscrnt/cantiming", Version: "v0.3.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2024-05-01T10:00:00Z"},
		},
	})

	if got := GetVersion("", "", ""); got != "v0.3.1-0123456" {
		t.Errorf("GetVersion() = %v", got)
	}
	// ldflags win over build info
	if got := GetVersion("v9.9.9", "feedface", ""); got != "v9.9.9-feedfac" {
		t.Errorf("GetVersion() with ldflags = %v", got)
	}
	if got := GetDetailedVersion("", "", ""); !strings.Contains(got, "Built:      2024-05-01T10:00:00Z") {
		t.Errorf("GetDetailedVersion() = %v", got)
	}
}

func TestDevelBuildInfo(t *testing.T) {
	withBuildInfo(t, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})

	if got := GetVersion("", "", ""); got != "dev" {
		t.Errorf("GetVersion() = %v, want dev", got)
	}
}

func TestGetDetailedVersion(t *testing.T) {
	withBuildInfo(t, nil)
	result := GetDetailedVersion("v1.0.0", "abcdef1234567890", "2024-01-01T00:00:00Z")

	for _, want := range []string{
		"cantiming",
		"Version:    v1.0.0",
		"Commit:     abcdef1234567890",
		"Built:      2024-01-01T00:00:00Z",
		"Go version:",
		"OS/Arch:",
	} {
		if !strings.Contains(result, want) {
			t.Errorf("GetDetailedVersion() missing %q", want)
		}
	}

	if !strings.Contains(GetDetailedVersion("", "", ""), "Commit:     unknown") {
		t.Error("GetDetailedVersion() should report an unknown commit")
	}
}
