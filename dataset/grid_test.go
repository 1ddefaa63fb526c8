package dataset

import "testing"

func TestGridNumPoints(t *testing.T) {
	g := NewGrid([]uint64{4, 3, 2})
	if got, want := g.NumPoints(), uint64(24); got != want {
		t.Errorf("NumPoints() = %d, want %d", got, want)
	}
}

func TestGridNumPointsEmpty(t *testing.T) {
	g := NewGrid(nil)
	if got, want := g.NumPoints(), uint64(1); got != want {
		t.Errorf("NumPoints() of a 0-dim grid = %d, want %d", got, want)
	}
}

func TestSubsetElementCount(t *testing.T) {
	grid := NewGrid([]uint64{10})

	whole := WholeDomainSubset(grid)
	if got := whole.ElementCount(); got != 10 {
		t.Errorf("whole domain ElementCount() = %d, want 10", got)
	}

	ranges := RangesSubset(grid, []LinearRange{{Start: 0, Length: 3}, {Start: 5, Length: 2}})
	if got := ranges.ElementCount(); got != 5 {
		t.Errorf("ranges ElementCount() = %d, want 5", got)
	}

	sub := SubvolumeSubset(NewGrid([]uint64{4, 4}), []uint64{1, 1}, []uint64{2, 2})
	if got := sub.ElementCount(); got != 4 {
		t.Errorf("subvolume ElementCount() = %d, want 4", got)
	}
}
