// Package version reports the tfvalidate release.
package version

import (
	_ "embed"
	"runtime/debug"
	"strings"
)

//go:embed VERSION
var versionContent string

// Get returns the release version, with whitespace trimmed.
func Get() string {
	return strings.TrimSpace(versionContent)
}

// Full returns the release version followed by the VCS revision the binary
// was built from, when the build recorded one.
func Full() string {
	v := Get()
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return v
	}
	var rev string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if rev == "" {
		return v
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if dirty {
		rev += "-dirty"
	}
	return v + " (" + rev + ")"
}
