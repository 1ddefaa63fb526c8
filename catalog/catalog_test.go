package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadParsesVariablesAndResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "db.catalog")
	content := "# comment line, ignored\n" +
		"temperature data/temperature.pqmeta data/temperature.pqidx\n" +
		"\n" +
		"salinity data/salinity.pqmeta\n" +
		"pressure\n" +
		"depth /abs/depth.pqmeta s3://bucket/depth.pqidx\n"
	if err := os.WriteFile(catalogPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cat, err := Load(catalogPath, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cat.Variables) != 4 {
		t.Fatalf("len(Variables) = %d, want 4", len(cat.Variables))
	}

	temp, err := cat.Lookup("temperature")
	if err != nil {
		t.Fatal(err)
	}
	wantMeta := filepath.Join(dir, "data/temperature.pqmeta")
	wantIdx := filepath.Join(dir, "data/temperature.pqidx")
	if temp.DatasetMetaPath != wantMeta || temp.IndexPath != wantIdx {
		t.Errorf("temperature = %+v, want meta=%s idx=%s", temp, wantMeta, wantIdx)
	}

	salinity, err := cat.Lookup("salinity")
	if err != nil {
		t.Fatal(err)
	}
	if salinity.IndexPath != "" {
		t.Errorf("salinity.IndexPath = %q, want empty (not built yet)", salinity.IndexPath)
	}

	pressure, err := cat.Lookup("pressure")
	if err != nil {
		t.Fatal(err)
	}
	if pressure.DatasetMetaPath != "" || pressure.IndexPath != "" {
		t.Errorf("pressure = %+v, want both paths empty", pressure)
	}

	depth, err := cat.Lookup("depth")
	if err != nil {
		t.Fatal(err)
	}
	if depth.DatasetMetaPath != "/abs/depth.pqmeta" {
		t.Errorf("depth.DatasetMetaPath = %q, want unmodified absolute path", depth.DatasetMetaPath)
	}
	if depth.IndexPath != "s3://bucket/depth.pqidx" {
		t.Errorf("depth.IndexPath = %q, want unmodified URI", depth.IndexPath)
	}
}

func TestLookupUnknownVariable(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "db.catalog")
	if err := os.WriteFile(catalogPath, []byte("only-var\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cat, err := Load(catalogPath, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cat.Lookup("missing"); err == nil {
		t.Error("expected ErrUnknownVariable for an unregistered variable")
	}
}

func TestDumpJSONRoundTrips(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	s, err := DumpJSON(payload{Name: "v", Count: 3})
	if err != nil {
		t.Fatal(err)
	}
	if s != `{"name":"v","count":3}` {
		t.Errorf("DumpJSON = %q", s)
	}
}
