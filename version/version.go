package version

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"
)

// Set with -ldflags -X. Empty values fall back to the Go build info.
var (
	Version   = "dev"
	GitCommit = ""
	GitBranch = ""
	BuildTime = ""
	GoVersion = ""
)

// Product is the name used in the User-Agent header.
const Product = "hvacform"

// Info describes the running binary.
type Info struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	GitBranch string    `json:"git_branch"`
	BuildTime string    `json:"build_time"`
	GoVersion string    `json:"go_version"`
	BuildDate time.Time `json:"build_date"`
	IsRelease bool      `json:"is_release"`
	IsDirty   bool      `json:"is_dirty"`
}

// GetVersionInfo merges the ldflags values with the VCS stamp of the
// build. Without either, the build date is the current time.
func GetVersionInfo() *Info {
	info := &Info{
		Version:   Version,
		GitCommit: GitCommit,
		GitBranch: GitBranch,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		IsRelease: Version != "dev" && !strings.Contains(Version, "dirty"),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.fromBuild(bi)
	}
	if t, err := time.Parse(time.RFC3339, info.BuildTime); err == nil {
		info.BuildDate = t
	} else {
		info.BuildDate = time.Now().UTC()
		info.BuildTime = info.BuildDate.Format(time.RFC3339)
	}
	return info
}

func (i *Info) fromBuild(bi *debug.BuildInfo) {
	if i.GoVersion == "" {
		i.GoVersion = bi.GoVersion
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if i.GitCommit == "" {
				i.GitCommit = s.Value[:min(7, len(s.Value))]
			}
		case "vcs.modified":
			i.IsDirty = s.Value == "true"
		case "vcs.time":
			if i.BuildTime == "" {
				i.BuildTime = s.Value
			}
		}
	}
}

// GetShortVersion returns the version with the short commit, e.g.
// "1.2.0-abc1234" or "1.2.0-abc1234-dirty".
func GetShortVersion() string {
	info := GetVersionInfo()
	if info.GitCommit == "" {
		return info.Version
	}
	v := info.Version + "-" + info.GitCommit
	if info.IsDirty {
		v += "-dirty"
	}
	return v
}

// UserAgent returns the User-Agent sent to transcription and storage
// backends, e.g. "hvacform/1.2.0-abc1234".
func UserAgent() string {
	return Product + "/" + GetShortVersion()
}

// String renders Info for the version command.
func (i *Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", Product, i.Version)
	if i.GitCommit != "" {
		commit := i.GitCommit
		if i.IsDirty {
			commit += " (dirty)"
		}
		fmt.Fprintf(&b, "  commit:  %s\n", commit)
	}
	if i.GitBranch != "" {
		fmt.Fprintf(&b, "  branch:  %s\n", i.GitBranch)
	}
	fmt.Fprintf(&b, "  built:   %s\n", i.BuildDate.Format(time.RFC3339))
	fmt.Fprintf(&b, "  go:      %s\n", i.GoVersion)
	return b.String()
}
