package target

import (
	"testing"

	"github.com/oxhq/pipecore/internal/kind"
	"github.com/oxhq/pipecore/internal/rank"
)

func setup(t *testing.T) (*kind.Kind, *kind.Kind) {
	t.Helper()
	rr := rank.NewRegistry()
	root, _ := rr.RegisterRoot("Root")
	fn, _ := rr.RegisterChild("Function", "Root")

	kr := kind.NewRegistry()
	str, err := kr.Register("StringKind", root, "")
	if err != nil {
		t.Fatalf("register StringKind: %v", err)
	}
	lifted, err := kr.Register("LiftedFunctionKind", fn, "")
	if err != nil {
		t.Fatalf("register LiftedFunctionKind: %v", err)
	}
	return str, lifted
}

func TestNewValidatesArity(t *testing.T) {
	str, lifted := setup(t)

	if _, err := New(str, []string{"a"}); err != nil {
		t.Fatalf("New(str, [a]): %v", err)
	}
	if _, err := New(str, []string{"a", "b"}); err == nil {
		t.Fatalf("expected arity mismatch error for root kind with 2-component path")
	}
	if _, err := New(lifted, []string{"main"}); err == nil {
		t.Fatalf("expected arity mismatch error for Function-rank kind with 1-component path")
	}
}

func TestConcreteAndSatisfies(t *testing.T) {
	str, _ := setup(t)

	concrete, _ := New(str, []string{"a"})
	if !concrete.Concrete() {
		t.Fatalf("expected concrete target")
	}
	wild, _ := New(str, []string{Wildcard})
	if wild.Concrete() {
		t.Fatalf("expected wildcard target to be non-concrete")
	}

	if !concrete.Satisfies(str, []string{Wildcard}) {
		t.Fatalf("expected concrete target to satisfy wildcard pattern")
	}
	if !concrete.Satisfies(str, []string{"a"}) {
		t.Fatalf("expected concrete target to satisfy exact pattern")
	}
	if concrete.Satisfies(str, []string{"b"}) {
		t.Fatalf("did not expect mismatched exact pattern to satisfy")
	}
}

func TestSetOperations(t *testing.T) {
	str, _ := setup(t)
	a, _ := New(str, []string{"a"})
	b, _ := New(str, []string{"b"})
	c, _ := New(str, []string{"c"})

	s1 := NewSet(a, b)
	s2 := NewSet(b, c)

	u := s1.Union(s2)
	if u.Len() != 3 {
		t.Fatalf("union len = %d, want 3", u.Len())
	}

	d := s1.Difference(s2)
	if d.Len() != 1 || !d.Contains(a) {
		t.Fatalf("difference should contain only a, got %v", d.Slice())
	}

	i := s1.Intersection(s2)
	if i.Len() != 1 || !i.Contains(b) {
		t.Fatalf("intersection should contain only b, got %v", i.Slice())
	}
}

func TestSetAllowsWildcardsAsRequests(t *testing.T) {
	str, _ := setup(t)
	wild, _ := New(str, []string{Wildcard})
	s := NewSet(wild)
	if s.Len() != 1 || !s.Contains(wild) {
		t.Fatalf("expected Set to hold wildcarded request targets")
	}
}

func TestExpand(t *testing.T) {
	str, _ := setup(t)
	a, _ := New(str, []string{"a"})
	b, _ := New(str, []string{"b"})
	present := NewSet(a, b)

	got := Expand(present, str, []string{Wildcard})
	if got.Len() != 2 {
		t.Fatalf("expected expand to return both present targets, got %d", got.Len())
	}

	narrow := Expand(present, str, []string{"a"})
	if narrow.Len() != 1 || !narrow.Contains(a) {
		t.Fatalf("expected expand with exact pattern to return only a")
	}
}

func TestSortTargetsDeterministic(t *testing.T) {
	str, _ := setup(t)
	b, _ := New(str, []string{"b"})
	a, _ := New(str, []string{"a"})
	sorted := SortTargets([]Target{b, a})
	if sorted[0].String() != a.String() || sorted[1].String() != b.String() {
		t.Fatalf("expected sorted order a,b; got %v", sorted)
	}
}
