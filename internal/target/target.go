// Package target implements artifact identity: a Target is a (Kind, path)
// pair, and a TargetSet is the concrete-only collection a Container
// currently holds. Wildcards ("*") may appear in path components of
// requests and Contract specifications, never in a stored TargetSet.
package target

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oxhq/pipecore/internal/kind"
)

// Wildcard is the special path component meaning "all targets at this
// position".
const Wildcard = "*"

// Target is a single artifact identity: a Kind plus a path whose length
// must equal the Kind's Rank depth.
type Target struct {
	Kind *kind.Kind
	Path []string
}

// New builds a Target, returning an error if the path length does not
// match the Kind's Rank depth.
func New(k *kind.Kind, path []string) (Target, error) {
	if k == nil {
		return Target{}, fmt.Errorf("target: kind must not be nil")
	}
	if len(path) != k.Rank().Depth() {
		return Target{}, fmt.Errorf(
			"target: kind %q has rank depth %d but path has %d components",
			k.Name(), k.Rank().Depth(), len(path),
		)
	}
	cp := make([]string, len(path))
	copy(cp, path)
	return Target{Kind: k, Path: cp}, nil
}

// Concrete reports whether no path component is the Wildcard.
func (t Target) Concrete() bool {
	for _, c := range t.Path {
		if c == Wildcard {
			return false
		}
	}
	return true
}

// String renders the Target as "KindName:comp1/comp2/...".
func (t Target) String() string {
	var b strings.Builder
	b.WriteString(t.Kind.Name())
	b.WriteByte(':')
	b.WriteString(strings.Join(t.Path, "/"))
	return b.String()
}

// Equal reports structural equality.
func (t Target) Equal(o Target) bool {
	if t.Kind != o.Kind || len(t.Path) != len(o.Path) {
		return false
	}
	for i := range t.Path {
		if t.Path[i] != o.Path[i] {
			return false
		}
	}
	return true
}

// Less orders Targets lexicographically on Kind name, then path, giving
// TargetSets a deterministic iteration order for diffs and tests.
func Less(a, b Target) bool {
	if a.Kind.Name() != b.Kind.Name() {
		return a.Kind.Name() < b.Kind.Name()
	}
	n := len(a.Path)
	if len(b.Path) < n {
		n = len(b.Path)
	}
	for i := 0; i < n; i++ {
		if a.Path[i] != b.Path[i] {
			return a.Path[i] < b.Path[i]
		}
	}
	return len(a.Path) < len(b.Path)
}

// Satisfies reports whether t satisfies the pattern (patternKind,
// pathPattern): t.Kind matches patternKind and every non-wildcard
// component of pathPattern equals the corresponding component of t.Path.
func (t Target) Satisfies(patternKind *kind.Kind, pathPattern []string) bool {
	if !t.Kind.Matches(patternKind) {
		return false
	}
	if len(pathPattern) != len(t.Path) {
		return false
	}
	for i, comp := range pathPattern {
		if comp == Wildcard {
			continue
		}
		if comp != t.Path[i] {
			return false
		}
	}
	return true
}

// SortTargets returns a sorted copy of ts.
func SortTargets(ts []Target) []Target {
	out := make([]Target, len(ts))
	copy(out, ts)
	sort.Slice(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}
