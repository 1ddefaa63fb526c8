package builder

import (
	"testing"

	"github.com/pique-io/pique/binning"
	"github.com/pique-io/pique/dataset"
	"github.com/pique-io/pique/indexenc"
	"github.com/pique-io/pique/ioformat"
	"github.com/pique-io/pique/region"
)

// s1Values is the spec's S1 scenario fixture: domain =
// [0,0,0,2,1,1,1,0,2,2,2,1,0,0,1,0], three distinct values {0,1,2}.
var s1Values = []float64{0, 0, 0, 2, 1, 1, 1, 0, 2, 2, 2, 1, 0, 0, 1, 0}

func s1Stream(t *testing.T) dataset.Stream {
	t.Helper()
	grid := dataset.NewGrid([]uint64{uint64(len(s1Values))})
	ds := dataset.NewInMemoryDataset(dataset.Float64, grid, s1Values)
	stream, err := dataset.OpenFullStream(ds)
	if err != nil {
		t.Fatal(err)
	}
	return stream
}

func TestBuildPartitionEqualityBitmapMatchesS1(t *testing.T) {
	cfg := Config{
		IndexEncoding:  indexenc.EQUALITY,
		RegionEncoding: region.BITMAP,
		Binning:        binning.NewExplicitBins([]float64{1, 2}),
	}
	domain := ioformat.PartitionDomain{PartitionID: 0, BeginRID: 0, EndRID: uint64(len(s1Values))}

	input, err := BuildPartition(s1Stream(t), cfg, domain)
	if err != nil {
		t.Fatal(err)
	}

	if input.DomainSize != uint64(len(s1Values)) {
		t.Errorf("DomainSize = %d, want %d", input.DomainSize, len(s1Values))
	}
	if input.NBins != 3 {
		t.Fatalf("NBins = %d, want 3", input.NBins)
	}
	if len(input.Regions) != 3 {
		t.Fatalf("len(Regions) = %d, want 3", len(input.Regions))
	}
	wantBinKeys := []float64{0, 1, 2}
	for i, want := range wantBinKeys {
		if input.BinKeys[i] != want {
			t.Errorf("BinKeys[%d] = %v, want %v", i, input.BinKeys[i], want)
		}
	}

	bin0 := input.Regions[0].ToRIDs(nil, 0)
	bin2 := input.Regions[2].ToRIDs(nil, 0)
	union := append(append([]uint64(nil), bin0...), bin2...)
	sortUint64(union)

	want := []uint64{0, 1, 2, 3, 7, 8, 9, 10, 12, 13, 15}
	if len(union) != len(want) {
		t.Fatalf("var==0 OR var==2 RIDs = %v, want %v", union, want)
	}
	for i := range want {
		if union[i] != want[i] {
			t.Errorf("union[%d] = %d, want %d", i, union[i], want[i])
		}
	}
}

func TestBuildPartitionRejectsEmptyDataset(t *testing.T) {
	grid := dataset.NewGrid([]uint64{0})
	ds := dataset.NewInMemoryDataset(dataset.Float64, grid, nil)
	stream, err := dataset.OpenFullStream(ds)
	if err != nil {
		t.Fatal(err)
	}

	cfg := Config{
		IndexEncoding:  indexenc.EQUALITY,
		RegionEncoding: region.BITMAP,
		Binning:        binning.NewExplicitBins([]float64{1, 2}),
	}
	if _, err := BuildPartition(stream, cfg, ioformat.PartitionDomain{}); err != ErrEmptyDataset {
		t.Errorf("err = %v, want ErrEmptyDataset", err)
	}
}

func sortUint64(s []uint64) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
