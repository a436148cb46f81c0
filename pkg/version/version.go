// Package version reports build information for stitch binaries.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set via ldflags.
var (
	Version   string
	Branch    string
	BuildUser string
	BuildDate string
)

// Info describes a stitch build.
type Info struct {
	Version   string `json:"version"`
	Revision  string `json:"revision"`
	Branch    string `json:"branch,omitempty"`
	BuildUser string `json:"buildUser,omitempty"`
	BuildDate string `json:"buildDate,omitempty"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Get returns the build information of the running binary.
func Get() Info {
	buildInfo, _ := debug.ReadBuildInfo()

	return Info{
		Version:   versionFrom(Version, buildInfo),
		Revision:  revisionFrom(buildInfo),
		Branch:    Branch,
		BuildUser: BuildUser,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// GetVersion returns the version, falling back to the VCS revision for
// development builds.
func GetVersion() string {
	return Get().Version
}

func (i Info) String() string {
	b := &strings.Builder{}

	fmt.Fprintf(b, "stitch %s\n", i.Version)
	fmt.Fprintf(b, "  revision:   %s\n", i.Revision)

	if i.Branch != "" {
		fmt.Fprintf(b, "  branch:     %s\n", i.Branch)
	}

	if i.BuildUser != "" || i.BuildDate != "" {
		fmt.Fprintf(b, "  built:      %s %s\n", i.BuildUser, i.BuildDate)
	}

	fmt.Fprintf(b, "  go:         %s\n", i.GoVersion)
	fmt.Fprintf(b, "  platform:   %s\n", i.Platform)

	return b.String()
}

func versionFrom(ldflags string, buildInfo *debug.BuildInfo) string {
	if ldflags != "" {
		return ldflags
	}

	if buildInfo != nil && buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
		return buildInfo.Main.Version
	}

	return revisionFrom(buildInfo)
}

func revisionFrom(buildInfo *debug.BuildInfo) string {
	rev := "unknown"

	if buildInfo == nil {
		return rev
	}

	modified := false

	for _, v := range buildInfo.Settings {
		switch v.Key {
		case "vcs.revision":
			rev = v.Value
			if len(rev) > 7 {
				rev = rev[:7]
			}

		case "vcs.modified":
			modified = v.Value == "true"
		}
	}

	if modified {
		return rev + "-dirty"
	}

	return rev
}
