// Package version formats the build information stamped in via ldflags.
// Binaries built with go install carry no ldflags, so unset values fall back
// to the module build info.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var readBuildInfo = debug.ReadBuildInfo

// resolve fills values left empty by ldflags from the build info
func resolve(version, commit, buildTime string) (string, string, string) {
	if info, ok := readBuildInfo(); ok {
		if version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "" {
					commit = s.Value
				}
			case "vcs.time":
				if buildTime == "" {
					buildTime = s.Value
				}
			}
		}
	}
	if version == "" {
		version = "dev"
	}
	return version, commit, buildTime
}

// GetVersion returns a short version string, version-commit
func GetVersion(version, commit, buildTime string) string {
	version, commit, _ = resolve(version, commit, buildTime)
	if commit == "" {
		return version
	}
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("%s-%s", version, commit)
}

// GetDetailedVersion returns the multi-line output of 'cantiming version'
func GetDetailedVersion(version, commit, buildTime string) string {
	version, commit, buildTime = resolve(version, commit, buildTime)
	if commit == "" {
		commit = "unknown"
	}
	if buildTime == "" {
		buildTime = "unknown"
	}

	return fmt.Sprintf(`cantiming (CAN bit timing solver)
Version:    %s
Commit:     %s
Built:      %s
Go version: %s
OS/Arch:    %s/%s`,
		version, commit, buildTime,
		runtime.Version(),
		runtime.GOOS, runtime.GOARCH)
}
