package dataset

import "testing"

func TestParseMetaRaw(t *testing.T) {
	m, err := ParseMeta([]byte("RAW /data/temperature.bin f64 c 4 3 2\n"))
	if err != nil {
		t.Fatal(err)
	}
	if m.Format != RAW {
		t.Errorf("Format = %v, want RAW", m.Format)
	}
	if m.Path != "/data/temperature.bin" {
		t.Errorf("Path = %q", m.Path)
	}
	if m.Datatype != Float64 {
		t.Errorf("Datatype = %v, want Float64", m.Datatype)
	}
	if m.FortranOrder {
		t.Error("FortranOrder = true, want false for 'c'")
	}
	if got, want := m.Dims, []uint64{4, 3, 2}; !dimsEqual(got, want) {
		t.Errorf("Dims = %v, want %v", got, want)
	}
}

func TestParseMetaRawFortranOrder(t *testing.T) {
	m, err := ParseMeta([]byte("RAW /data/x.bin i32 fortran 10\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !m.FortranOrder {
		t.Error("FortranOrder = false, want true for 'fortran'")
	}
	if m.Datatype != Int32 {
		t.Errorf("Datatype = %v, want Int32", m.Datatype)
	}
}

func TestParseMetaHDF5(t *testing.T) {
	m, err := ParseMeta([]byte("HDF5 /data/archive.h5 /group/variable\n"))
	if err != nil {
		t.Fatal(err)
	}
	if m.Format != HDF5 {
		t.Errorf("Format = %v, want HDF5", m.Format)
	}
	if m.Path != "/data/archive.h5" || m.HDF5Path != "/group/variable" {
		t.Errorf("Path/HDF5Path = %q/%q", m.Path, m.HDF5Path)
	}
}

func TestParseMetaSkipsBlankAndCommentLines(t *testing.T) {
	m, err := ParseMeta([]byte("# a comment\n\nRAW /data/x.bin u8 c 100\n"))
	if err != nil {
		t.Fatal(err)
	}
	if m.Format != RAW || m.Datatype != Uint8 {
		t.Errorf("got %+v", m)
	}
}

func TestParseMetaRejectsUnknownFormat(t *testing.T) {
	if _, err := ParseMeta([]byte("NETCDF /data/x.nc\n")); err == nil {
		t.Error("expected error for unknown format token")
	}
}

func TestParseMetaRejectsUnknownDatatype(t *testing.T) {
	if _, err := ParseMeta([]byte("RAW /data/x.bin complex128 c 10\n")); err == nil {
		t.Error("expected error for unknown datatype token")
	}
}

func dimsEqual(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
