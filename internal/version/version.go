// Package version reports the build version of the midiboot binaries.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/dcontrol/midiboot/internal/version.Version=v0.4.0 \
//	                   -X github.com/dcontrol/midiboot/internal/version.Commit=abc1234"
//
// Unset values are filled from the VCS stamp in the build info.
var (
	Version = ""
	Commit  = ""
)

// Info describes one build.
type Info struct {
	Version   string
	Commit    string
	Dirty     bool
	GoVersion string
}

var current = resolve(Version, Commit)

func resolve(version, commit string) Info {
	info := Info{Version: version, Commit: commit, GoVersion: runtime.Version()}

	if bi, ok := debug.ReadBuildInfo(); ok {
		applyBuildSettings(&info, bi.Settings)
		if info.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
	}

	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	return info
}

func applyBuildSettings(info *Info, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
				if len(info.Commit) > 7 {
					info.Commit = info.Commit[:7]
				}
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
}

// Get returns the version of the running binary.
func Get() Info {
	return current
}

// String formats the version for --version output.
func (i Info) String() string {
	commit := i.Commit
	if i.Dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (commit: %s, %s)", i.Version, commit, i.GoVersion)
}

// Full returns the full version string including commit.
func Full() string {
	return current.String()
}
