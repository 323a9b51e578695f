package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

var (
	// AppName is the name of the application
	AppName = "ingestd"

	// Version of the application, overridden by ldflags on release builds
	Version = "0.2.0-dev"

	// Revision is the git commit hash of the build
	Revision = "HEAD"

	// BuildDate of the application
	BuildDate = ""
)

func init() {
	resolveFromBuildInfo()
}

// resolveFromBuildInfo populates Version/Revision/BuildDate from Go build
// metadata when ldflags didn't provide real values.
func resolveFromBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok || info == nil {
		return
	}

	settings := map[string]string{}
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}

	if Version == "" || strings.HasSuffix(Version, "-dev") {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			Version = strings.TrimPrefix(v, "v")
		}
	}

	if Revision == "HEAD" || Revision == "" {
		if r := settings["vcs.revision"]; r != "" {
			if settings["vcs.modified"] == "true" {
				r += "-dirty"
			}
			Revision = r
		}
	}

	if BuildDate == "" {
		BuildDate = settings["vcs.time"]
	}
}

func shortRevision() string {
	if len(Revision) > 8 {
		return Revision[:8]
	}
	return Revision
}

// Detailed returns a multi-line version string for --version output.
func Detailed() string {
	return fmt.Sprintf("%s\nRevision: %s\nBuild Date: %s\nOS/Arch: %s/%s",
		Version, shortRevision(), BuildDate, runtime.GOOS, runtime.GOARCH)
}

// UserAgent returns the HTTP user agent for outbound requests.
func UserAgent() string {
	return fmt.Sprintf("%s/%s", AppName, Version)
}
