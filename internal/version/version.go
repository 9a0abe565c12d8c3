// Package version renders build version strings of the form
//
//	<base>-<branch>.<commit>+<buildtime>[.dirty]
//
// e.g. 1.4.0-main.abc1234+20261019T120000Z.
package version

import (
	"runtime/debug"
	"strings"
	"time"
)

// Set at link time: -ldflags "-X github.com/dmitrijs2005/pgkit/internal/version.Base=1.4.0".
var (
	Base   = "0.0.0"
	Branch = ""
)

const (
	shortCommit = 7
	timeLayout  = "20060102T150405Z"
)

// Info holds the parts of a version string.
type Info struct {
	Base      string    `json:"base"`
	Commit    string    `json:"commit,omitempty"`
	Branch    string    `json:"branch,omitempty"`
	BuildTime time.Time `json:"buildTime,omitzero"`
	Dirty     bool      `json:"dirty,omitempty"`
}

// String renders the version. Missing parts are left out together with
// their separators.
func (i Info) String() string {
	var b strings.Builder
	base := i.Base
	if base == "" {
		base = "0.0.0"
	}
	b.WriteString(base)

	var pre []string
	if br := sanitize(i.Branch); br != "" {
		pre = append(pre, br)
	}
	if c := i.Commit; c != "" {
		if len(c) > shortCommit {
			c = c[:shortCommit]
		}
		pre = append(pre, c)
	}
	if len(pre) > 0 {
		b.WriteByte('-')
		b.WriteString(strings.Join(pre, "."))
	}

	var meta []string
	if !i.BuildTime.IsZero() {
		meta = append(meta, i.BuildTime.UTC().Format(timeLayout))
	}
	if i.Dirty {
		meta = append(meta, "dirty")
	}
	if len(meta) > 0 {
		b.WriteByte('+')
		b.WriteString(strings.Join(meta, "."))
	}
	return b.String()
}

// sanitize keeps branch names valid as a semver pre-release identifier.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '-'
	}, s)
}

// FromBuildInfo fills commit, build time and dirty flag from the VCS
// settings stamped by the go tool.
func FromBuildInfo(base, branch string, bi *debug.BuildInfo) Info {
	info := Info{Base: base, Branch: branch}
	if bi == nil {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = s.Value
		case "vcs.time":
			if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
				info.BuildTime = t
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	return info
}

// Current describes the running binary.
func Current() Info {
	bi, _ := debug.ReadBuildInfo()
	return FromBuildInfo(Base, Branch, bi)
}
