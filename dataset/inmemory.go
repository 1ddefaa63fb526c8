package dataset

// InMemoryDataset is a fully materialized, row-major Dataset backed by
// a float64 slice already resident in memory. Not an external
// collaborator stub: INMEMORY is one of the three variants of
// Dataset::Format itself (§6), so the core owns a real implementation
// of it the way it owns RAW, leaving only HDF5 to an adapter stub.
// Grounded on original_source's dataset-inmemory.hpp pairing (an
// eagerly-buffered BufferedDatasetStream subclass) generalized from a
// templated element type to this codebase's uniform float64
// representation.
type InMemoryDataset struct {
	datatype Datatype
	grid     Grid
	values   []float64
}

// NewInMemoryDataset wraps values (already in row-major grid order) as
// an INMEMORY Dataset of the given element datatype.
func NewInMemoryDataset(datatype Datatype, grid Grid, values []float64) *InMemoryDataset {
	return &InMemoryDataset{datatype: datatype, grid: grid, values: values}
}

func (d *InMemoryDataset) Format() Format       { return INMEMORY }
func (d *InMemoryDataset) ElementCount() uint64 { return uint64(len(d.values)) }
func (d *InMemoryDataset) Datatype() Datatype   { return d.datatype }
func (d *InMemoryDataset) Grid() Grid           { return d.grid }

func (d *InMemoryDataset) OpenStream(subset Subset) (Stream, error) {
	values := selectSubset(d.values, d.grid, subset)
	return &inMemoryStream{datatype: d.datatype, values: values}, nil
}

// selectSubset slices out the elements subset names from a row-major
// values buffer. WholeDomain and LinearizedRanges index directly into
// the flat buffer since that ordering is already linearized row-major;
// Subvolume walks the grid's per-axis strides to gather a contiguous
// copy in row-major order of the subvolume itself.
func selectSubset(values []float64, grid Grid, subset Subset) []float64 {
	switch subset.Type {
	case WholeDomain:
		return values
	case LinearizedRanges:
		out := make([]float64, 0, subset.ElementCount())
		for _, r := range subset.Ranges {
			end := r.Start + r.Length
			if end > uint64(len(values)) {
				end = uint64(len(values))
			}
			if r.Start < end {
				out = append(out, values[r.Start:end]...)
			}
		}
		return out
	case Subvolume:
		return gatherSubvolume(values, grid.Dims, subset.SubvolumeOffsets, subset.SubvolumeDims)
	default:
		return nil
	}
}

// gatherSubvolume walks the cartesian product of [offset, offset+dim)
// per axis, in row-major order, copying each addressed element.
func gatherSubvolume(values []float64, dims, offsets, subDims []uint64) []float64 {
	strides := make([]uint64, len(dims))
	stride := uint64(1)
	for i := len(dims) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= dims[i]
	}

	total := uint64(1)
	for _, d := range subDims {
		total *= d
	}
	out := make([]float64, 0, total)

	idx := make([]uint64, len(subDims))
	for {
		var flat uint64
		for axis, i := range idx {
			flat += (offsets[axis] + i) * strides[axis]
		}
		if flat < uint64(len(values)) {
			out = append(out, values[flat])
		}

		axis := len(idx) - 1
		for axis >= 0 {
			idx[axis]++
			if idx[axis] < subDims[axis] {
				break
			}
			idx[axis] = 0
			axis--
		}
		if axis < 0 {
			break
		}
	}
	return out
}

// inMemoryStream is the already-buffered Stream over a slice produced
// by selectSubset, the in-memory equivalent of the source's
// BufferedDatasetStream with buffer_more_impl always returning the
// whole subset in one shot.
type inMemoryStream struct {
	datatype Datatype
	values   []float64
	pos      int
	stats    IOStats
}

func (s *inMemoryStream) Datatype() Datatype { return s.datatype }

func (s *inMemoryStream) HasNext() bool { return s.pos < len(s.values) }

func (s *inMemoryStream) Next() float64 {
	if !s.HasNext() {
		panic("dataset: Next called on exhausted stream")
	}
	v := s.values[s.pos]
	s.pos++
	s.stats.observe(0, 8)
	return v
}

func (s *inMemoryStream) NextN(maxCount int) []float64 {
	remaining := len(s.values) - s.pos
	if maxCount > remaining {
		maxCount = remaining
	}
	if maxCount <= 0 {
		return nil
	}
	out := append([]float64(nil), s.values[s.pos:s.pos+maxCount]...)
	s.pos += maxCount
	s.stats.observe(0, maxCount*8)
	return out
}

func (s *inMemoryStream) Stats() IOStats { return s.stats }
