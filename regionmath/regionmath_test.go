package regionmath

import (
	"sort"
	"testing"

	"github.com/pique-io/pique/region"
	"github.com/pique-io/pique/setops"
)

func build(domainSize uint64, rids []uint32) region.Region {
	return region.NewIIRegion(domainSize, rids)
}

func sortedRIDs(r region.Region) []uint64 {
	out := r.ToRIDs(nil, 0)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func eqU64(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEvaluateUnionOfThree(t *testing.T) {
	const domainSize = 30
	regions := map[region.RID]region.Region{
		0: build(domainSize, []uint32{1, 2}),
		1: build(domainSize, []uint32{2, 3}),
		2: build(domainSize, []uint32{4, 5}),
	}
	reads := 0
	read := func(rid region.RID) (region.Region, error) {
		reads++
		return regions[rid], nil
	}

	expr := Expr{}.PushRegion(0).PushRegion(1).PushRegion(2).PushNary(setops.UNION, 3)
	got, err := Evaluate(expr, read)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint64{1, 2, 3, 4, 5}
	if !eqU64(sortedRIDs(got), want) {
		t.Errorf("got %v want %v", sortedRIDs(got), want)
	}
	if reads != 3 {
		t.Errorf("expected 3 region reads, got %d", reads)
	}
}

func TestEvaluateLazySkipsUnreadRegions(t *testing.T) {
	// A cost-pruned branch must never be read: only reference the
	// regions that actually appear in expr.
	const domainSize = 10
	regions := map[region.RID]region.Region{
		0: build(domainSize, []uint32{1}),
	}
	read := func(rid region.RID) (region.Region, error) {
		r, ok := regions[rid]
		if !ok {
			t.Fatalf("unexpected read of region %d", rid)
		}
		return r, nil
	}
	expr := Single(0)
	got, err := Evaluate(expr, read)
	if err != nil {
		t.Fatal(err)
	}
	if !eqU64(sortedRIDs(got), []uint64{1}) {
		t.Errorf("got %v", sortedRIDs(got))
	}
}

func TestEvaluateNotThenIntersect(t *testing.T) {
	const domainSize = 10
	regions := map[region.RID]region.Region{
		0: build(domainSize, []uint32{0, 1, 2, 3}),
		1: build(domainSize, []uint32{2, 3, 4, 5}),
	}
	read := func(rid region.RID) (region.Region, error) { return regions[rid], nil }

	// NOT(r0) INTERSECT r1 == r1 - r0
	expr := Expr{}.PushRegion(0).PushUnary(setops.NOT).PushRegion(1).PushNary(setops.INTERSECTION, 2)
	got, err := Evaluate(expr, read)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint64{4, 5}
	if !eqU64(sortedRIDs(got), want) {
		t.Errorf("got %v want %v", sortedRIDs(got), want)
	}
}

func TestEvaluateStackUnderflow(t *testing.T) {
	read := func(rid region.RID) (region.Region, error) { return nil, nil }
	expr := Expr{}.PushNary(setops.UNION, 2)
	if _, err := Evaluate(expr, read); err != ErrStackUnderflow {
		t.Errorf("expected ErrStackUnderflow, got %v", err)
	}
}

func TestEvaluateNotSingleResult(t *testing.T) {
	const domainSize = 10
	regions := map[region.RID]region.Region{
		0: build(domainSize, []uint32{1}),
		1: build(domainSize, []uint32{2}),
	}
	read := func(rid region.RID) (region.Region, error) { return regions[rid], nil }
	expr := Expr{}.PushRegion(0).PushRegion(1)
	if _, err := Evaluate(expr, read); err != ErrNotSingleResult {
		t.Errorf("expected ErrNotSingleResult, got %v", err)
	}
}

func TestAllRegionsDedupes(t *testing.T) {
	expr := Expr{}.PushRegion(0).PushRegion(1).PushRegion(0).PushNary(setops.UNION, 3)
	all := expr.AllRegions()
	if len(all) != 2 {
		t.Errorf("expected 2 distinct regions, got %d", len(all))
	}
}
