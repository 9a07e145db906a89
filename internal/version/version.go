// Package version carries the build identity stamped in via ldflags.
package version

import "runtime/debug"

// Version is set during build time via ldflags
var Version = "dev"

// BuildTime is set during build time via ldflags
var BuildTime = "unknown"

// GitCommit is set during build time via ldflags
var GitCommit = "unknown"

// GetVersionInfo returns the release version, falling back to the
// commit recorded in the module build info for plain `go build`
// binaries.
func GetVersionInfo() string {
	if Version != "dev" {
		return Version
	}
	if commit := vcsRevision(); commit != "" {
		return "dev-" + commit
	}
	return Version
}

// GetFullVersionInfo returns detailed version information
func GetFullVersionInfo() string {
	version := GetVersionInfo()
	if BuildTime != "unknown" && GitCommit != "unknown" {
		return version + " (built " + BuildTime + ", commit " + GitCommit + ")"
	}
	if GitCommit != "unknown" {
		return version + " (commit " + GitCommit + ")"
	}
	return version
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= 8 {
			return setting.Value[:8]
		}
	}
	return ""
}
