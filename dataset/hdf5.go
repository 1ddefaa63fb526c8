package dataset

// HDF5Dataset recognizes the HDF5 Format variant named in a dataset-
// metadata file (§6) but cannot read one: no HDF5 Go binding exists in
// this codebase's dependency stack, and HDF5 is explicitly framed as an
// external-collaborator concern whose reader "appears only by its
// interface into the core." OpenStream therefore always fails;
// plumbing an HDF5Dataset through the catalog still exercises the
// Format/path parsing path, which is the part of this package that
// does belong to the core.
type HDF5Dataset struct {
	path         string
	internalPath string
	grid         Grid
	datatype     Datatype
}

// NewHDF5Dataset records an HDF5 dataset's file path and internal
// dataset path without opening anything.
func NewHDF5Dataset(path, internalPath string) *HDF5Dataset {
	return &HDF5Dataset{path: path, internalPath: internalPath, datatype: Undefined}
}

// HDF5DatasetFromMeta builds an HDF5Dataset from a parsed Meta.
func HDF5DatasetFromMeta(m Meta) (*HDF5Dataset, error) {
	if m.Format != HDF5 {
		return nil, ErrMalformedMeta
	}
	return NewHDF5Dataset(m.Path, m.HDF5Path), nil
}

func (d *HDF5Dataset) Format() Format       { return HDF5 }
func (d *HDF5Dataset) ElementCount() uint64 { return 0 }
func (d *HDF5Dataset) Datatype() Datatype   { return d.datatype }
func (d *HDF5Dataset) Grid() Grid           { return Grid{} }

func (d *HDF5Dataset) OpenStream(subset Subset) (Stream, error) {
	return nil, ErrUnsupportedFormat
}
