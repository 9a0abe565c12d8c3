package record

import (
	"sort"
	"strings"
)

// ExclusionSet is a set of field names or dot-separated paths left out of
// upserts, diffs and redacted snapshots. A nil set excludes nothing.
type ExclusionSet map[string]struct{}

// NewExclusionSet builds a set from names, ignoring blanks.
func NewExclusionSet(names ...string) ExclusionSet {
	s := make(ExclusionSet, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		s[n] = struct{}{}
	}
	return s
}

// Union merges several sets into a new one. Typically a global policy plus a
// per-entity policy.
func Union(sets ...ExclusionSet) ExclusionSet {
	out := make(ExclusionSet)
	for _, s := range sets {
		for k := range s {
			out[k] = struct{}{}
		}
	}
	return out
}

// Contains reports whether name is in the set.
func (s ExclusionSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// CoversPath reports whether path is excluded either directly or through one
// of its ancestors: excluding "address" covers "address.city".
func (s ExclusionSet) CoversPath(path string) bool {
	if len(s) == 0 {
		return false
	}
	if s.Contains(path) {
		return true
	}
	for i := 0; i < len(path); i++ {
		if path[i] == '.' && s.Contains(path[:i]) {
			return true
		}
	}
	return false
}

// Names returns the members in sorted order.
func (s ExclusionSet) Names() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// IsInternal reports whether a field name follows the internal-field
// convention (leading underscore). Internal fields never reach diffs or
// snapshots.
func IsInternal(name string) bool {
	return strings.HasPrefix(name, "_")
}
