package dataset

import (
	"encoding/binary"
	"math"
	"testing"
)

// These tests cover raw.go's pure decode/gather helpers only; OpenStream
// itself needs a live tiledb.VFS context the same way tiledbstore's
// array-backed calls do, so it is left untested here for the same
// reason tiledbstore_test.go draws its boundary where it does.

func TestElementSizeKnownTypes(t *testing.T) {
	cases := map[Datatype]int{
		Uint8: 1, Int8: 1,
		Uint16: 2, Int16: 2,
		Uint32: 4, Int32: 4, Float32: 4,
		Uint64: 8, Int64: 8, Float64: 8,
	}
	for dt, want := range cases {
		got, err := elementSize(dt)
		if err != nil {
			t.Fatalf("elementSize(%v): %v", dt, err)
		}
		if got != want {
			t.Errorf("elementSize(%v) = %d, want %d", dt, got, want)
		}
	}
}

func TestElementSizeUndefinedRejected(t *testing.T) {
	if _, err := elementSize(Undefined); err == nil {
		t.Error("expected error for Undefined datatype")
	}
}

func TestDecodeElementRoundTripsFloat64(t *testing.T) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(3.5))
	if got := decodeElement(Float64, buf); got != 3.5 {
		t.Errorf("decodeElement(Float64) = %v, want 3.5", got)
	}
}

func TestDecodeElementSignedNegative(t *testing.T) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(int32(-7)))
	if got := decodeElement(Int32, buf); got != -7 {
		t.Errorf("decodeElement(Int32) = %v, want -7", got)
	}
}

func TestGatherSubvolumeBytesMatchesInMemoryGather(t *testing.T) {
	// 3x3 grid of uint8, row-major 0..8.
	raw := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8}
	got := gatherSubvolumeBytes(raw, 1, Uint8, []uint64{3, 3}, []uint64{1, 1}, []uint64{2, 2})
	want := []float64{4, 5, 7, 8}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("value[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
