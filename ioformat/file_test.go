package ioformat

import (
	"bytes"
	"sort"
	"testing"

	"github.com/pique-io/pique/binning"
	"github.com/pique-io/pique/region"
)

func buildTestFile(t *testing.T) []byte {
	t.Helper()
	spec := binning.NewExplicitBins([]float64{10, 20, 30})
	specBlob, err := binning.Serialize(spec)
	if err != nil {
		t.Fatal(err)
	}

	regions0 := []region.Region{
		region.NewIIRegion(16, []uint32{0, 1, 2}),
		region.NewIIRegion(16, []uint32{3, 4}),
		region.NewIIRegion(16, []uint32{5}),
		region.NewIIRegion(16, []uint32{}),
	}
	regions1 := []region.Region{
		region.NewIIRegion(8, []uint32{0}),
		region.NewIIRegion(8, []uint32{1, 2, 3}),
		region.NewIIRegion(8, []uint32{4, 5, 6, 7}),
		region.NewIIRegion(8, []uint32{}),
	}

	partitions := []PartitionInput{
		{
			Domain:          PartitionDomain{PartitionID: 0, BeginRID: 0, EndRID: 16},
			DomainSize:      16,
			NBins:           4,
			BinKeys:         []float64{10, 20, 30},
			BinningSpecBlob: specBlob,
			IndexEncoding:   0,
			RegionEncoding:  region.II,
			Regions:         regions0,
		},
		{
			Domain:          PartitionDomain{PartitionID: 1, BeginRID: 16, EndRID: 24},
			DomainSize:      8,
			NBins:           4,
			BinKeys:         []float64{10, 20, 30},
			BinningSpecBlob: specBlob,
			IndexEncoding:   0,
			RegionEncoding:  region.II,
			Regions:         regions1,
		},
	}

	data, err := Build(partitions)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return data
}

func TestFileIndexIORoundTrip(t *testing.T) {
	data := buildTestFile(t)
	stream := bytes.NewReader(data)
	idx, err := OpenIndex(stream)
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}

	count, domains := idx.GlobalMetadata()
	if count != 2 {
		t.Fatalf("partition count = %d, want 2", count)
	}
	if domains[0].PartitionID != 0 || domains[0].BeginRID != 0 || domains[0].EndRID != 16 {
		t.Errorf("domains[0] = %+v, unexpected", domains[0])
	}
	if domains[1].PartitionID != 1 || domains[1].BeginRID != 16 || domains[1].EndRID != 24 {
		t.Errorf("domains[1] = %+v, unexpected", domains[1])
	}

	p0, err := idx.GetPartition(0)
	if err != nil {
		t.Fatalf("GetPartition(0): %v", err)
	}
	meta := p0.PartitionMetadata()
	if meta.DomainSize != 16 || meta.NBins != 4 || meta.NRegions != 4 {
		t.Errorf("partition 0 metadata = %+v, unexpected", meta)
	}
	if len(meta.BinKeys) != 3 || meta.BinKeys[1] != 20 {
		t.Errorf("partition 0 bin keys = %v, unexpected", meta.BinKeys)
	}
	spec, n, err := binning.Deserialize(meta.BinningSpec)
	if err != nil || n != len(meta.BinningSpec) {
		t.Fatalf("binning.Deserialize: spec=%v n=%d err=%v", spec, n, err)
	}
	if spec.NumBins() != 4 {
		t.Errorf("round-tripped binning spec NumBins() = %d, want 4", spec.NumBins())
	}

	r2, err := p0.ReadRegion(2)
	if err != nil {
		t.Fatalf("ReadRegion(2): %v", err)
	}
	got := r2.ToRIDs(nil, 0)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	if len(got) != 1 || got[0] != 5 {
		t.Errorf("region 2 RIDs = %v, want [5]", got)
	}

	r0, err := p0.ReadRegion(0)
	if err != nil {
		t.Fatalf("ReadRegion(0): %v", err)
	}
	got0 := r0.ToRIDs(nil, 0)
	if len(got0) != 3 {
		t.Errorf("region 0 RIDs = %v, want 3 elements", got0)
	}

	sz, err := p0.RegionsSizeInBytes(0, 2)
	if err != nil {
		t.Fatalf("RegionsSizeInBytes: %v", err)
	}
	if sz <= 0 {
		t.Errorf("RegionsSizeInBytes(0,2) = %d, want > 0", sz)
	}

	p1, err := idx.GetPartition(1)
	if err != nil {
		t.Fatalf("GetPartition(1): %v", err)
	}
	r1_2, err := p1.ReadRegion(2)
	if err != nil {
		t.Fatalf("partition 1 ReadRegion(2): %v", err)
	}
	got1 := r1_2.ToRIDs(nil, 100)
	sort.Slice(got1, func(i, j int) bool { return got1[i] < got1[j] })
	want1 := []uint64{104, 105, 106, 107}
	if len(got1) != len(want1) {
		t.Fatalf("partition 1 region 2 RIDs = %v, want %v", got1, want1)
	}
	for i := range want1 {
		if got1[i] != want1[i] {
			t.Errorf("partition 1 region 2 RIDs = %v, want %v", got1, want1)
		}
	}
}

func TestGetPartitionUnknownID(t *testing.T) {
	data := buildTestFile(t)
	idx, err := OpenIndex(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := idx.GetPartition(99); err == nil {
		t.Error("expected error for unknown partition id")
	}
}

func TestReadRegionOutOfRange(t *testing.T) {
	data := buildTestFile(t)
	idx, err := OpenIndex(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	p0, err := idx.GetPartition(0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p0.ReadRegion(99); err == nil {
		t.Error("expected error for out-of-range region id")
	}
}
