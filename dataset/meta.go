package dataset

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// ErrMalformedMeta is a Configuration-kind error: a dataset-metadata
// file didn't match §6's `{RAW|HDF5} path ...` grammar.
var ErrMalformedMeta = errors.New("dataset: malformed metadata file")

// Meta is a parsed dataset-metadata file (§6): "first token selects
// variant {RAW | HDF5}; then file path; then for RAW, `datatype
// c_or_fortran_order dim1 dim2 …`, for HDF5 the internal dataset path."
type Meta struct {
	Format       Format
	Path         string
	Datatype     Datatype // RAW only
	FortranOrder bool     // RAW only
	Dims         []uint64 // RAW only
	HDF5Path     string   // HDF5 only
}

// LoadMeta reads and parses the dataset-metadata file at metaURI
// through tiledb.VFS, the same config/context/vfs-per-call idiom as
// catalog.Load. configURI may be empty for the default tiledb config.
func LoadMeta(metaURI, configURI string) (Meta, error) {
	data, err := readWholeFile(metaURI, configURI)
	if err != nil {
		return Meta{}, fmt.Errorf("dataset: read %s: %w", metaURI, err)
	}
	return ParseMeta(data)
}

// ParseMeta parses a dataset-metadata file's contents per §6's grammar.
// Exported separately from LoadMeta so INMEMORY-only callers (tests,
// the builder's in-process fixtures) can supply metadata without going
// through tiledb.VFS.
func ParseMeta(data []byte) (Meta, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	var fields []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields = strings.Fields(line)
		break
	}
	if err := scanner.Err(); err != nil {
		return Meta{}, err
	}
	if len(fields) < 2 {
		return Meta{}, ErrMalformedMeta
	}

	switch strings.ToUpper(fields[0]) {
	case "RAW":
		if len(fields) < 4 {
			return Meta{}, ErrMalformedMeta
		}
		dt, ok := DatatypeByName(fields[2])
		if !ok {
			return Meta{}, fmt.Errorf("%w: unknown datatype %q", ErrMalformedMeta, fields[2])
		}
		fortran, err := parseOrder(fields[3])
		if err != nil {
			return Meta{}, err
		}
		dims := make([]uint64, 0, len(fields)-4)
		for _, tok := range fields[4:] {
			d, err := strconv.ParseUint(tok, 10, 64)
			if err != nil {
				return Meta{}, fmt.Errorf("%w: dim %q: %v", ErrMalformedMeta, tok, err)
			}
			dims = append(dims, d)
		}
		return Meta{Format: RAW, Path: fields[1], Datatype: dt, FortranOrder: fortran, Dims: dims}, nil

	case "HDF5":
		hdf5Path := ""
		if len(fields) > 2 {
			hdf5Path = fields[2]
		}
		return Meta{Format: HDF5, Path: fields[1], HDF5Path: hdf5Path}, nil

	default:
		return Meta{}, fmt.Errorf("%w: unknown format %q", ErrMalformedMeta, fields[0])
	}
}

func parseOrder(tok string) (fortran bool, err error) {
	switch strings.ToLower(tok) {
	case "c":
		return false, nil
	case "fortran", "f":
		return true, nil
	default:
		return false, fmt.Errorf("%w: unknown order %q", ErrMalformedMeta, tok)
	}
}

// readWholeFile opens uri through tiledb.VFS and reads it fully into
// memory, the same sequence as catalog.go's helper of the same name
// (kept package-local rather than exported from catalog, since a
// Dataset adapter has no other reason to depend on the catalog
// package).
func readWholeFile(uri, configURI string) ([]byte, error) {
	var (
		config *tiledb.Config
		err    error
	)
	if configURI == "" {
		config, err = tiledb.NewConfig()
	} else {
		config, err = tiledb.LoadConfig(configURI)
	}
	if err != nil {
		return nil, err
	}
	defer config.Free()

	ctx, err := tiledb.NewContext(config)
	if err != nil {
		return nil, err
	}
	defer ctx.Free()

	vfs, err := tiledb.NewVFS(ctx, config)
	if err != nil {
		return nil, err
	}
	defer vfs.Free()

	handler, err := vfs.Open(uri, tiledb.TILEDB_VFS_READ)
	if err != nil {
		return nil, err
	}
	defer handler.Close()

	size, err := vfs.FileSize(uri)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, size)
	if size > 0 {
		if err := binary.Read(handler, binary.BigEndian, &buf); err != nil {
			return nil, err
		}
	}
	return buf, nil
}
