package region

import (
	"sort"
	"testing"
)

// bitsFromRIDs describes a region by its RID membership for test construction.
func bitsFromRIDs(domainSize uint64, rids []uint32) []bool {
	out := make([]bool, domainSize)
	for _, r := range rids {
		out[r] = true
	}
	return out
}

func encodeAll(t *testing.T, domainSize uint64, bits []bool) map[Type]Region {
	t.Helper()
	out := map[Type]Region{}

	ii := NewIIEncoder(domainSize)
	cii := NewCIIEncoder(domainSize)
	wah := NewWAHEncoder(domainSize)
	bm := NewBitmapEncoder(domainSize)
	cblq := NewCBLQEncoder(2, domainSize)

	// Feed the pattern to every encoder run by run through PushBits.
	i := uint64(0)
	for i < domainSize {
		run := uint64(1)
		val := bits[i]
		for i+run < domainSize && bits[i+run] == val {
			run++
		}
		ii.PushBits(run, val)
		cii.PushBits(run, val)
		wah.PushBits(run, val)
		bm.PushBits(run, val)
		cblq.PushBits(run, val)
		i += run
	}

	for _, e := range []Encoder{ii, cii, wah, bm, cblq} {
		e.Finalize()
	}

	out[II] = ii.IntoEncoding()
	out[CII] = cii.IntoEncoding()
	out[WAH] = wah.IntoEncoding()
	out[BITMAP] = bm.IntoEncoding()
	out[CBLQ2] = cblq.IntoEncoding()
	return out
}

func sortedRIDs(r Region) []uint64 {
	rids := r.ToRIDs(nil, 0)
	sort.Slice(rids, func(i, j int) bool { return rids[i] < rids[j] })
	return rids
}

func eqRIDs(a, b []uint64) bool {
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

func TestRoundTripAndCrossEquivalence(t *testing.T) {
	domainSize := uint64(37)
	rids := []uint32{0, 1, 2, 5, 8, 13, 21, 34, 36}
	bits := bitsFromRIDs(domainSize, rids)

	regions := encodeAll(t, domainSize, bits)

	want := make([]uint64, 0, len(rids))
	for _, r := range rids {
		want = append(want, uint64(r))
	}

	for typ, r := range regions {
		got := sortedRIDs(r)
		if !eqRIDs(got, want) {
			t.Errorf("type %v: ToRIDs = %v, want %v", typ, got, want)
		}
		if r.ElementCount() != uint64(len(rids)) {
			t.Errorf("type %v: ElementCount = %d, want %d", typ, r.ElementCount(), len(rids))
		}

		// Round trip through Serialize/Deserialize.
		data, err := r.Serialize()
		if err != nil {
			t.Fatalf("type %v: Serialize error: %v", typ, err)
		}
		decoded, n, err := Deserialize(typ, domainSize, data)
		if err != nil {
			t.Fatalf("type %v: Deserialize error: %v", typ, err)
		}
		if n != len(data) {
			t.Errorf("type %v: Deserialize consumed %d bytes, want %d", typ, n, len(data))
		}
		if !r.Equal(decoded) {
			t.Errorf("type %v: decode(encode(R)) != R", typ)
		}
	}
}

func TestUniformRegions(t *testing.T) {
	types := []Type{II, CII, WAH, BITMAP, CBLQ1, CBLQ2, CBLQ3, CBLQ4}
	for _, typ := range types {
		empty, err := MakeUniformRegion(typ, 64, false)
		if err != nil {
			t.Fatal(err)
		}
		if empty.Uniformity() != EMPTY || empty.ElementCount() != 0 {
			t.Errorf("%v: empty region not empty", typ)
		}
		filled, err := MakeUniformRegion(typ, 64, true)
		if err != nil {
			t.Fatal(err)
		}
		if filled.Uniformity() != FILLED || filled.ElementCount() != 64 {
			t.Errorf("%v: filled region not filled (count=%d)", typ, filled.ElementCount())
		}
		if Complement(EMPTY) != FILLED || Complement(FILLED) != EMPTY || Complement(MIXED) != MIXED {
			t.Fatalf("Complement table wrong")
		}
	}
}

func TestCIIInversion(t *testing.T) {
	domainSize := uint64(10)
	present := []uint32{1, 3, 5}
	r := NewCIIRegion(domainSize, present, false)
	inv := NewCIIRegion(domainSize, present, true)

	if r.ElementCount()+inv.ElementCount() != domainSize {
		t.Fatalf("inverted/non-inverted element counts should sum to domain size")
	}
	rids := sortedRIDs(r)
	invRids := sortedRIDs(inv)
	seen := map[uint64]bool{}
	for _, x := range rids {
		seen[x] = true
	}
	for _, x := range invRids {
		if seen[x] {
			t.Fatalf("inverted CII shares RID %d with non-inverted", x)
		}
	}
}
