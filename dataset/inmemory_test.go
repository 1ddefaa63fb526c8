package dataset

import "testing"

func TestInMemoryDatasetWholeDomain(t *testing.T) {
	grid := NewGrid([]uint64{8})
	values := []float64{0, 0, 0, 2, 1, 1, 1, 0}
	d := NewInMemoryDataset(Float64, grid, values)

	stream, err := OpenFullStream(d)
	if err != nil {
		t.Fatal(err)
	}

	var got []float64
	for stream.HasNext() {
		got = append(got, stream.Next())
	}
	if len(got) != len(values) {
		t.Fatalf("read %d values, want %d", len(got), len(values))
	}
	for i := range values {
		if got[i] != values[i] {
			t.Errorf("value[%d] = %v, want %v", i, got[i], values[i])
		}
	}
	if stream.Stats().Reads != len(values) {
		t.Errorf("Stats().Reads = %d, want %d", stream.Stats().Reads, len(values))
	}
}

func TestInMemoryDatasetLinearizedRanges(t *testing.T) {
	grid := NewGrid([]uint64{10})
	values := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	d := NewInMemoryDataset(Float64, grid, values)

	stream, err := d.OpenStream(RangeSubset(grid, 3, 4))
	if err != nil {
		t.Fatal(err)
	}
	got := stream.NextN(100)
	want := []float64{3, 4, 5, 6}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("value[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestInMemoryDatasetSubvolume(t *testing.T) {
	// 3x3 grid, row-major:
	// 0 1 2
	// 3 4 5
	// 6 7 8
	grid := NewGrid([]uint64{3, 3})
	values := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8}
	d := NewInMemoryDataset(Float64, grid, values)

	stream, err := d.OpenStream(SubvolumeSubset(grid, []uint64{1, 1}, []uint64{2, 2}))
	if err != nil {
		t.Fatal(err)
	}
	got := stream.NextN(100)
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

func TestInMemoryStreamNextPanicsWhenExhausted(t *testing.T) {
	d := NewInMemoryDataset(Float64, NewGrid([]uint64{1}), []float64{1})
	stream, _ := OpenFullStream(d)
	stream.Next()

	defer func() {
		if recover() == nil {
			t.Error("expected Next() on exhausted stream to panic")
		}
	}()
	stream.Next()
}
