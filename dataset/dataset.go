package dataset

import (
	"errors"
	"time"
)

// Datatype enumerates the indexable numeric element types a Dataset may
// report, the fixed list §9's design notes prescribe in place of the
// source's template-dispatched CTypeToDatatypeID.
type Datatype int

const (
	Undefined Datatype = iota
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
)

var datatypeNames = map[Datatype]string{
	Undefined: "undefined",
	Int8:      "i8", Uint8: "u8",
	Int16: "i16", Uint16: "u16",
	Int32: "i32", Uint32: "u32",
	Int64: "i64", Uint64: "u64",
	Float32: "f32", Float64: "f64",
}

func (d Datatype) String() string {
	if n, ok := datatypeNames[d]; ok {
		return n
	}
	return "undefined"
}

var namesToDatatype = func() map[string]Datatype {
	out := make(map[string]Datatype, len(datatypeNames))
	for d, n := range datatypeNames {
		out[n] = d
	}
	return out
}()

// DatatypeByName resolves a dataset-metadata-file token to a Datatype.
func DatatypeByName(name string) (Datatype, bool) {
	d, ok := namesToDatatype[name]
	return d, ok
}

// Format tags which concrete adapter a Dataset uses, mirroring
// original_source's Dataset::Format.
type Format int

const (
	INMEMORY Format = iota
	RAW
	HDF5
)

// ErrUndefinedDatatype reports a Dataset whose datatype could not be
// determined, kept distinct from a generic cache failure per §9's open
// question ("failed to cache metadata" and "undefined datatype" are
// different errors, not one inverted check conflating the two).
var ErrUndefinedDatatype = errors.New("dataset: undefined datatype")

// ErrUnsupportedFormat is a Configuration-kind error: a Format this
// build has no adapter for (HDF5, absent a real binding here).
var ErrUnsupportedFormat = errors.New("dataset: unsupported format")

// IOStats is the cumulative read-time/bytes a DatasetStream exposes per
// §6's stream contract ("exposes cumulative read-time and bytes").
type IOStats struct {
	ReadTime  time.Duration
	BytesRead uint64
	Reads     int
}

func (s *IOStats) observe(d time.Duration, n int) {
	s.ReadTime += d
	s.BytesRead += uint64(n)
	s.Reads++
}

// Dataset is the external collaborator boundary (§2, §6): everything
// the core needs to know about one variable's backing array, without
// reading it directly. Mirrors original_source's Dataset base class.
type Dataset interface {
	Format() Format
	ElementCount() uint64
	Datatype() Datatype
	Grid() Grid
	// OpenStream opens a Stream over subset, yielding elements of
	// Datatype() in row-major order of the requested subset.
	OpenStream(subset Subset) (Stream, error)
}

// OpenFullStream opens a Stream over the whole of d's domain, the
// Dataset::open_stream() no-arg overload's equivalent.
func OpenFullStream(d Dataset) (Stream, error) {
	return d.OpenStream(WholeDomainSubset(d.Grid()))
}

// Stream is the core's read-only view of one Dataset's subset,
// collapsing original_source's AbstractDatasetStream/DatasetStream<T>
// template pair into a single interface since values are represented
// uniformly as float64 here (matching binning.Specification's existing
// float64 domain rather than re-templating the core over element type).
type Stream interface {
	Datatype() Datatype
	// HasNext reports whether Next would return another element.
	HasNext() bool
	// Next returns the next element, advancing the stream. Panics if
	// HasNext is false, mirroring the source's abort()-on-misuse
	// contract for an already-exhausted stream (§9 treats abort() sites
	// as invariant violations, not recoverable errors).
	Next() float64
	// NextN reads up to maxCount further elements into a freshly
	// allocated slice, returning fewer only at end of stream.
	NextN(maxCount int) []float64
	// Stats returns the stream's cumulative read-time/bytes so far.
	Stats() IOStats
}
