package catalog

import (
	"encoding/json"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// WriteJSON serializes data as indented JSON to fileURI through
// tiledb.VFS, so the destination may be a local path or an object
// store. Grounded on the teacher's json.go WriteJson, generalized from
// gsf.QualityInfo/GsfFile-specific callers to any JSON-marshalable
// value (index-info/build-index summaries, in this codebase).
func WriteJSON(fileURI, configURI string, data any) (int, error) {
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
		return 0, err
	}
	defer config.Free()

	ctx, err := tiledb.NewContext(config)
	if err != nil {
		return 0, err
	}
	defer ctx.Free()

	vfs, err := tiledb.NewVFS(ctx, config)
	if err != nil {
		return 0, err
	}
	defer vfs.Free()

	stream, err := vfs.Open(fileURI, tiledb.TILEDB_VFS_WRITE)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	jsn, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return 0, err
	}

	return stream.Write(jsn)
}

// DumpJSON renders data as a compact JSON string, mirroring the
// teacher's JsonDumps.
func DumpJSON(data any) (string, error) {
	jsn, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(jsn), nil
}

// DumpJSONIndent renders data as an indented JSON string, mirroring
// the teacher's JsonIndentDumps.
func DumpJSONIndent(data any) (string, error) {
	jsn, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsn), nil
}
