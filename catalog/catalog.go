// Package catalog implements the database catalog file of §6: one
// line per variable naming an optional dataset-metadata path and an
// optional index path, both resolved relative to the catalog file's
// own directory. Grounded on the teacher's file.go (OpenGSF's
// tiledb.VFS-backed open/read sequence) and json.go/search.go (reusing
// a tiledb.Config/Context/VFS triple across one-shot file operations).
package catalog

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"path"
	"strings"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// ErrUnknownVariable is a Configuration-kind error (§7): a query named
// a variable absent from the catalog.
var ErrUnknownVariable = errors.New("catalog: unknown variable")

// ErrMalformedLine is a Configuration-kind error: a catalog line had
// no variable name token.
var ErrMalformedLine = errors.New("catalog: malformed catalog line")

// Variable is one catalog entry: a variable name plus the two external
// file paths the core reads only through the Dataset/DatasetStream and
// IndexIO adapters (§6). Either path may be empty if that variable is
// not yet built for the corresponding purpose.
type Variable struct {
	Name            string
	DatasetMetaPath string
	IndexPath       string
}

// Catalog is a loaded database catalog: the ordered variable list plus
// a name index for lookups.
type Catalog struct {
	Variables []Variable
	byName    map[string]int
}

// resolve joins a catalog-relative path against dir, leaving already-
// absolute references (a leading "/" or a "scheme://" prefix, as used
// by S3 and other object-store URIs) untouched. Uses path.Join rather
// than filepath.Join since catalog entries are forward-slash URIs, not
// necessarily local filesystem paths (the same assumption OpenGSF
// makes about the URIs it hands to tiledb.VFS).
func resolve(dir, p string) string {
	if p == "" {
		return ""
	}
	if strings.Contains(p, "://") || strings.HasPrefix(p, "/") {
		return p
	}
	return path.Join(dir, p)
}

// Load reads the catalog file at catalogURI (a local path or any URI
// tiledb.VFS understands) and parses it per §6: one line per variable,
// whitespace-separated `name [dataset-meta-path [index-path]]`, blank
// lines and lines starting with '#' ignored. configURI optionally
// names a tiledb config file, mirroring every other tiledb.VFS entry
// point in this codebase.
func Load(catalogURI, configURI string) (*Catalog, error) {
	data, err := readWholeFile(catalogURI, configURI)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", catalogURI, err)
	}

	dir := path.Dir(catalogURI)
	cat := &Catalog{byName: make(map[string]int)}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			return nil, ErrMalformedLine
		}

		v := Variable{Name: fields[0]}
		if len(fields) > 1 {
			v.DatasetMetaPath = resolve(dir, fields[1])
		}
		if len(fields) > 2 {
			v.IndexPath = resolve(dir, fields[2])
		}

		cat.byName[v.Name] = len(cat.Variables)
		cat.Variables = append(cat.Variables, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("catalog: scan %s: %w", catalogURI, err)
	}
	return cat, nil
}

// Lookup returns the named variable's catalog entry.
func (c *Catalog) Lookup(name string) (Variable, error) {
	i, ok := c.byName[name]
	if !ok {
		return Variable{}, fmt.Errorf("%w: %q", ErrUnknownVariable, name)
	}
	return c.Variables[i], nil
}

// readWholeFile opens uri through tiledb.VFS and reads it fully into
// memory, the same config/context/vfs-per-call sequence as json.go's
// WriteJson and file.go's OpenGSF.
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
