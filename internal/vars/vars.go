// Package vars holds build-time variables populated via the linker (ldflags).
package vars

import (
	"fmt"
	"io"
	"strconv"
	"time"
)

// License of the project
const License = "MIT"

var (
	// Name of the project
	Name = "GameQuery"

	// Version of application (git tag) semver/tag, e.g. v1.2.3
	Version = "dev"

	// Commit is the current git commit, full or short git SHA
	Commit = "unknown"

	// Revision build, count of commits
	Revision = 0

	// BuildTime is the time of start build app, RFC3339 UTC
	BuildTime = time.Unix(0, 0)

	// URL to repository (https)
	URL = "https://github.com/woozymasta/gamequery"

	_revision  string
	_buildTime string
)

// BuildInfo is served by the version endpoint and printed by --version.
type BuildInfo struct {
	BuildTime   time.Time `json:"build_time,omitempty" yaml:"build_time,omitempty"`
	Name        string    `json:"name" yaml:"name"`
	Version     string    `json:"version" yaml:"version"`
	Commit      string    `json:"commit" yaml:"commit"`
	CommitShort string    `json:"commit_short,omitempty" yaml:"commit_short,omitempty"`
	URL         string    `json:"url,omitempty" yaml:"url,omitempty"`
	License     string    `json:"license,omitempty" yaml:"license,omitempty"`
	Revision    int       `json:"revision,omitempty" yaml:"revision,omitempty"`
}

func init() {
	if n, err := strconv.Atoi(_revision); err == nil {
		Revision = n
	}

	if _buildTime != "" {
		if t, err := time.Parse(time.RFC3339, _buildTime); err == nil {
			BuildTime = t.UTC()
		}
	}
}

// Print writes the build information to w.
func Print(w io.Writer) {
	_, _ = fmt.Fprintf(w, `name:     %s
url:      %s
version:  %s
commit:   %s
revision: %d
built:    %s
license:  %s
`, Name, URL, Version, Commit, Revision, BuildTime.Format(time.RFC3339), License)
}

// Info returns the build metadata.
func Info() BuildInfo {
	return BuildInfo{
		Name:        Name,
		Version:     Version,
		Commit:      Commit,
		CommitShort: CommitShort(),
		Revision:    Revision,
		BuildTime:   BuildTime,
		URL:         URL,
		License:     License,
	}
}

// UserAgent identifies the tool in outgoing HTTP requests.
func UserAgent() string {
	return Name + "/" + Version
}

// CommitShort returns the first 7 characters of the git commit hash.
func CommitShort() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}

	return Commit
}
