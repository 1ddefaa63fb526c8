// Package tiledbstore implements an alternate IndexIO/IndexPartitionIO
// backing store (§4.F) that keeps one TileDB sparse array per index
// partition instead of a flat file, with the region payload and its
// byte length as array attributes dimensioned by RID. Grounded on the
// teacher's tiledb.go (filter helpers, CreateAttr) and schema.go
// (beamSparseSchema's sparse-array construction), generalized from
// GSF's sensor-specific field layout to a single fixed two-attribute
// cell shape.
package tiledbstore

import (
	"errors"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	stgpsr "github.com/yuin/stagparser"
)

// ErrAddFilters mirrors the teacher's sentinel of the same purpose:
// a filter could not be appended to a pipeline.
var ErrAddFilters = errors.New("tiledbstore: error adding filter to filter list")

// ErrCreateAttr is returned when an attribute (and its compression
// pipeline) could not be constructed from its pique/filters tags.
var ErrCreateAttr = errors.New("tiledbstore: error creating array attribute")

// ZstdFilter initialises the Zstandard compression filter at the given
// level. Grounded verbatim on the teacher's tiledb.go ZstdFilter.
func ZstdFilter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_ZSTD)
	if err != nil {
		return nil, err
	}
	if err := filt.SetOption(tiledb.TILEDB_COMPRESSION_LEVEL, level); err != nil {
		filt.Free()
		return nil, err
	}
	return filt, nil
}

// Lz4Filter initialises the LZ4 compression filter at the given level.
func Lz4Filter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_LZ4)
	if err != nil {
		return nil, err
	}
	if err := filt.SetOption(tiledb.TILEDB_COMPRESSION_LEVEL, level); err != nil {
		filt.Free()
		return nil, err
	}
	return filt, nil
}

// ByteShuffleFilter initialises the byteshuffle filter, used ahead of
// zstd on the variable-length payload attribute, matching the teacher's
// offsets-filter pipeline in CreateAttr (positive-delta, byteshuffle,
// zstd level 16).
func ByteShuffleFilter(ctx *tiledb.Context) (*tiledb.Filter, error) {
	return tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_BYTESHUFFLE)
}

// PositiveDeltaFilter initialises the positive-delta filter used on
// offsets buffers of variable-length attributes.
func PositiveDeltaFilter(ctx *tiledb.Context) (*tiledb.Filter, error) {
	return tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_POSITIVE_DELTA)
}

// AddFilters sequentially appends filters to a filter list, mirroring
// the teacher's AddFilters.
func AddFilters(list *tiledb.FilterList, filters ...*tiledb.Filter) error {
	for _, f := range filters {
		if err := list.AddFilter(f); err != nil {
			return errors.Join(ErrAddFilters, err)
		}
	}
	return nil
}

// pique/filters tag vocabulary this store understands. Unlike the
// teacher's CreateAttr, which drives attribute construction off an
// arbitrary sensor struct's tags, this store only ever builds the two
// attributes of partitionCell (see schema.go), so the switch below is
// intentionally narrower than the teacher's.
func buildFilterPipeline(ctx *tiledb.Context, defs []stgpsr.Definition) (*tiledb.FilterList, error) {
	list, err := tiledb.NewFilterList(ctx)
	if err != nil {
		return nil, errors.Join(ErrCreateAttr, err)
	}

	for _, def := range defs {
		switch def.Name() {
		case "zstd":
			level := int32(16)
			if lv, ok := def.Attribute("level"); ok {
				level = int32(lv.(int64))
			}
			filt, err := ZstdFilter(ctx, level)
			if err != nil {
				list.Free()
				return nil, errors.Join(ErrCreateAttr, err)
			}
			defer filt.Free()
			if err := list.AddFilter(filt); err != nil {
				list.Free()
				return nil, errors.Join(ErrAddFilters, err)
			}
		case "lz4":
			level := int32(6)
			if lv, ok := def.Attribute("level"); ok {
				level = int32(lv.(int64))
			}
			filt, err := Lz4Filter(ctx, level)
			if err != nil {
				list.Free()
				return nil, errors.Join(ErrCreateAttr, err)
			}
			defer filt.Free()
			if err := list.AddFilter(filt); err != nil {
				list.Free()
				return nil, errors.Join(ErrAddFilters, err)
			}
		case "bysh":
			filt, err := ByteShuffleFilter(ctx)
			if err != nil {
				list.Free()
				return nil, errors.Join(ErrCreateAttr, err)
			}
			defer filt.Free()
			if err := list.AddFilter(filt); err != nil {
				list.Free()
				return nil, errors.Join(ErrAddFilters, err)
			}
		}
	}
	return list, nil
}
