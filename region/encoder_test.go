package region

import "testing"

func TestNewEncoderCoversEveryRegisteredType(t *testing.T) {
	for _, typ := range []Type{II, CII, WAH, BITMAP, CBLQ1, CBLQ2, CBLQ3, CBLQ4} {
		enc, err := NewEncoder(typ, 16)
		if err != nil {
			t.Fatalf("NewEncoder(%v): %v", typ, err)
		}
		enc.InsertBits(3, 2)
		enc.Finalize()
		r := enc.IntoEncoding()
		if r.Type() != typ {
			t.Errorf("IntoEncoding().Type() = %v, want %v", r.Type(), typ)
		}
		got := r.ToRIDs(nil, 0)
		want := []uint64{3, 4}
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("NewEncoder(%v) round trip RIDs = %v, want %v", typ, got, want)
		}
	}
}

func TestNewEncoderUnknownTypeErrors(t *testing.T) {
	if _, err := NewEncoder(UNKNOWN, 10); err == nil {
		t.Error("expected error for UNKNOWN type")
	}
}
