package dataset

// SubsetType tags which of a GridSubset's three shapes is populated,
// mirroring original_source's GridSubset::Type.
type SubsetType int

const (
	WholeDomain SubsetType = iota
	LinearizedRanges
	Subvolume
)

// LinearRange is one (start, length) run over a dataset's linearized
// offset space.
type LinearRange struct {
	Start  uint64
	Length uint64
}

// Subset names the portion of a Grid a stream should read: the whole
// domain, a set of linearized offset ranges, or an axis-aligned
// subvolume. Mirrors original_source's GridSubset, which keeps exactly
// one of Ranges/(Offsets,Dims) populated per Type.
type Subset struct {
	Type             SubsetType
	Grid             Grid
	Ranges           []LinearRange
	SubvolumeOffsets []uint64
	SubvolumeDims    []uint64
}

// WholeDomainSubset returns the subset covering all of grid.
func WholeDomainSubset(grid Grid) Subset {
	return Subset{Type: WholeDomain, Grid: grid}
}

// RangeSubset returns the single linearized-range subset [start, start+length).
func RangeSubset(grid Grid, start, length uint64) Subset {
	return Subset{Type: LinearizedRanges, Grid: grid, Ranges: []LinearRange{{Start: start, Length: length}}}
}

// RangesSubset returns the multi-range linearized subset over ranges.
func RangesSubset(grid Grid, ranges []LinearRange) Subset {
	return Subset{Type: LinearizedRanges, Grid: grid, Ranges: append([]LinearRange(nil), ranges...)}
}

// SubvolumeSubset returns the axis-aligned subvolume subset starting at
// offsets with the given per-axis dims.
func SubvolumeSubset(grid Grid, offsets, dims []uint64) Subset {
	return Subset{
		Type:             Subvolume,
		Grid:             grid,
		SubvolumeOffsets: append([]uint64(nil), offsets...),
		SubvolumeDims:    append([]uint64(nil), dims...),
	}
}

// ElementCount returns the number of elements the subset covers,
// without materializing them.
func (s Subset) ElementCount() uint64 {
	switch s.Type {
	case WholeDomain:
		return s.Grid.NumPoints()
	case LinearizedRanges:
		var n uint64
		for _, r := range s.Ranges {
			n += r.Length
		}
		return n
	case Subvolume:
		n := uint64(1)
		for _, d := range s.SubvolumeDims {
			n *= d
		}
		return n
	default:
		return 0
	}
}
