package app

import (
	"fmt"
	"runtime/debug"
)

// ServiceName identifies this binary in logs and traces.
const ServiceName = "gazetteer"

// Version, Commit and BuildTime are set via ldflags:
//
//	go build -ldflags "-X github.com/heartmarshall/gazetteer-backend/internal/app.Version=1.0.0"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
	Modified  bool
}

// ReadBuildInfo returns the ldflags values, falling back to the VCS stamp
// the go tool embeds when they were not set.
func ReadBuildInfo() BuildInfo {
	info := BuildInfo{Version: Version, Commit: Commit, BuildTime: BuildTime}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info = info.withVCS(bi.Settings)
	}
	return info
}

func (b BuildInfo) withVCS(settings []debug.BuildSetting) BuildInfo {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "unknown" && s.Value != "" {
				b.Commit = s.Value
				if len(b.Commit) > 12 {
					b.Commit = b.Commit[:12]
				}
			}
		case "vcs.time":
			if b.BuildTime == "unknown" && s.Value != "" {
				b.BuildTime = s.Value
			}
		case "vcs.modified":
			b.Modified = s.Value == "true"
		}
	}
	return b
}

func (b BuildInfo) String() string {
	commit := b.Commit
	if b.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", b.Version, commit, b.BuildTime)
}

// BuildVersion returns the version string shown by /health and --version.
func BuildVersion() string {
	return ReadBuildInfo().String()
}
