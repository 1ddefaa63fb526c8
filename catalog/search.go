package catalog

import (
	"path/filepath"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// trawl recursively visits every file under uri reachable through vfs,
// appending those whose basename matches pattern. Grounded verbatim on
// the teacher's search.go trawl helper, generalized from a GSF-specific
// helper into one any catalog tool can reuse.
func trawl(vfs *tiledb.VFS, pattern, uri string, items []string) ([]string, error) {
	dirs, files, err := vfs.List(uri)
	if err != nil {
		return items, err
	}

	for _, file := range files {
		match, err := filepath.Match(pattern, filepath.Base(file))
		if err != nil {
			return items, err
		}
		if match {
			items = append(items, file)
		}
	}

	for _, dir := range dirs {
		items, err = trawl(vfs, pattern, dir, items)
		if err != nil {
			return items, err
		}
	}

	return items, nil
}

// FindIndexFiles recursively searches uri (a local path or any URI
// tiledb.VFS understands, including object stores) for PIQUE index
// files, identified by the "*.pqidx" suffix this codebase's
// build-index command writes (§6). Grounded on the teacher's FindGsf,
// generalized from a single hardcoded "*.gsf" pattern into the
// caller-supplied glob FindIndexFiles and FindDatasetMetaFiles share.
func FindIndexFiles(uri, configURI string) ([]string, error) {
	return findWithPattern(uri, configURI, "*.pqidx")
}

// FindDatasetMetaFiles recursively searches uri for dataset metadata
// files (§6), identified by the "*.pqmeta" suffix.
func FindDatasetMetaFiles(uri, configURI string) ([]string, error) {
	return findWithPattern(uri, configURI, "*.pqmeta")
}

func findWithPattern(uri, configURI, pattern string) ([]string, error) {
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

	return trawl(vfs, pattern, uri, make([]string, 0))
}
