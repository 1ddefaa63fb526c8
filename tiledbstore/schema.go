package tiledbstore

import (
	"errors"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	stgpsr "github.com/yuin/stagparser"
)

var ErrCreateSchema = errors.New("tiledbstore: error creating tiledb array schema")

// partitionCell describes one region's on-disk shape within a
// partition's sparse array: the region id as the sole dimension, its
// serialized length as a fixed attribute (cheap to range-query for
// RegionsSizeInBytes without touching the payload), and the serialized
// region bytes themselves as a variable-length attribute. Tagged the
// way the teacher's sensor structs are tagged for schemaAttrs/CreateAttr,
// substituting a "pique" tag for "tiledb" since this store's schema is
// fixed rather than derived from an arbitrary decoded record type.
type partitionCell struct {
	RID     uint32 `pique:"dtype=uint32,ftype=dim"`
	Length  uint64 `pique:"dtype=uint64,ftype=attr" filters:"zstd(level=16)"`
	Payload []byte `pique:"dtype=uint8,ftype=attr,var=true" filters:"bysh,zstd(level=16)"`
}

// tileSize caps a partition array's tile extent; small partitions use
// their own domain size instead, the same min(const, n) judgment call
// the teacher's pingDenseSchema makes for PING_ID tiles.
func tileSize(domainSize uint64) uint64 {
	const maxTile = 10000
	if domainSize == 0 {
		return 1
	}
	if domainSize < maxTile {
		return domainSize
	}
	return maxTile
}

// buildPartitionSchema constructs the sparse array schema for one
// index partition's region directory, dimensioned by RID over
// [0, nregions). Grounded on the teacher's beamSparseSchema (sparse
// schema, attribute construction from struct tags) generalized from
// a 2D lon/lat dimension pair to the single RID dimension this domain
// needs.
func buildPartitionSchema(ctx *tiledb.Context, nregions uint64) (*tiledb.ArraySchema, error) {
	domain, err := tiledb.NewDomain(ctx)
	if err != nil {
		return nil, errors.Join(ErrCreateSchema, err)
	}
	defer domain.Free()

	tsz := tileSize(nregions)
	hi := nregions
	if hi > 0 {
		hi--
	}
	dim, err := tiledb.NewDimension(ctx, "RID", tiledb.TILEDB_UINT32, []uint32{0, uint32(hi)}, tsz)
	if err != nil {
		return nil, errors.Join(ErrCreateSchema, err)
	}
	defer dim.Free()

	if err := domain.AddDimensions(dim); err != nil {
		return nil, errors.Join(ErrCreateSchema, err)
	}

	schema, err := tiledb.NewArraySchema(ctx, tiledb.TILEDB_SPARSE)
	if err != nil {
		return nil, errors.Join(ErrCreateSchema, err)
	}
	if err := schema.SetDomain(domain); err != nil {
		return nil, errors.Join(ErrCreateSchema, err)
	}
	if err := schema.SetCapacity(uint64(tsz)); err != nil {
		return nil, errors.Join(ErrCreateSchema, err)
	}
	if err := schema.SetCellOrder(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return nil, errors.Join(ErrCreateSchema, err)
	}
	if err := schema.SetTileOrder(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return nil, errors.Join(ErrCreateSchema, err)
	}

	if err := addCellAttributes(ctx, schema); err != nil {
		return nil, errors.Join(ErrCreateSchema, err)
	}

	if err := schema.Check(); err != nil {
		return nil, errors.Join(ErrCreateSchema, err)
	}
	return schema, nil
}

// addCellAttributes parses partitionCell's pique/filters tags and
// attaches the Length and Payload attributes to schema, mirroring the
// teacher's schemaAttrs loop over a struct's exported fields.
func addCellAttributes(ctx *tiledb.Context, schema *tiledb.ArraySchema) error {
	cell := partitionCell{}
	tagDefs, err := stgpsr.ParseStruct(&cell, "pique")
	if err != nil {
		return err
	}
	filterDefs, err := stgpsr.ParseStruct(&cell, "filters")
	if err != nil {
		return err
	}

	for _, field := range []string{"Length", "Payload"} {
		byName := make(map[string]stgpsr.Definition, len(tagDefs[field]))
		for _, d := range tagDefs[field] {
			byName[d.Name()] = d
		}

		dtypeDef, ok := byName["dtype"]
		if !ok {
			return errors.Join(ErrCreateAttr, errors.New(field+": dtype tag not found"))
		}
		dtypeVal, _ := dtypeDef.Attribute("dtype")

		var tdbType tiledb.Datatype
		switch dtypeVal {
		case "uint64":
			tdbType = tiledb.TILEDB_UINT64
		case "uint8":
			tdbType = tiledb.TILEDB_UINT8
		default:
			return errors.Join(ErrCreateAttr, errors.New(field+": unsupported dtype "+dtypeVal.(string)))
		}

		filts, err := buildFilterPipeline(ctx, filterDefs[field])
		if err != nil {
			return err
		}

		attr, err := tiledb.NewAttribute(ctx, field, tdbType)
		if err != nil {
			filts.Free()
			return errors.Join(ErrCreateAttr, err)
		}

		if _, ok := byName["var"]; ok {
			if err := attr.SetCellValNum(tiledb.TILEDB_VAR_NUM); err != nil {
				attr.Free()
				filts.Free()
				return errors.Join(ErrCreateAttr, err)
			}
		}

		if err := attr.SetFilterList(filts); err != nil {
			attr.Free()
			filts.Free()
			return errors.Join(ErrCreateAttr, err)
		}
		filts.Free()

		if err := schema.AddAttributes(attr); err != nil {
			attr.Free()
			return errors.Join(ErrCreateAttr, err)
		}
	}
	return nil
}
