package query

import (
	"bytes"
	"sort"
	"testing"

	"github.com/pique-io/pique/binning"
	"github.com/pique-io/pique/cache"
	"github.com/pique-io/pique/indexenc"
	"github.com/pique-io/pique/ioformat"
	"github.com/pique-io/pique/region"
	"github.com/pique-io/pique/setops"
)

// equalityBinsRIDs lays RIDs [0,8) into 4 bins of 2 each, with boundaries
// [2,4,6] so that ComputeBinRange(At(v), At(v)) round-trips cleanly for
// the probe values used across this file's tests.
var equalityBinsRIDs = [][]uint32{
	{0, 1},
	{2, 3},
	{4, 5},
	{6, 7},
}

func buildEqualityIndexBytes(t *testing.T, partitionID, beginRID, endRID uint64) []byte {
	t.Helper()
	spec := binning.NewExplicitBins([]float64{2, 4, 6})
	specBlob, err := binning.Serialize(spec)
	if err != nil {
		t.Fatal(err)
	}

	regions := make([]region.Region, len(equalityBinsRIDs))
	for i, rids := range equalityBinsRIDs {
		regions[i] = region.NewIIRegion(8, rids)
	}

	data, err := ioformat.Build([]ioformat.PartitionInput{{
		Domain:          ioformat.PartitionDomain{PartitionID: partitionID, BeginRID: beginRID, EndRID: endRID},
		DomainSize:      8,
		NBins:           4,
		BinKeys:         []float64{2, 4, 6},
		BinningSpecBlob: specBlob,
		IndexEncoding:   uint8(indexenc.EQUALITY),
		RegionEncoding:  region.II,
		Regions:         regions,
	}})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func newTestIOCache(t *testing.T, byVar map[string][]byte) *cache.IndexIOCache {
	t.Helper()
	return cache.New(func(varname string) (ioformat.IndexIO, error) {
		data, ok := byVar[varname]
		if !ok {
			t.Fatalf("no fixture registered for variable %q", varname)
		}
		return ioformat.OpenIndex(bytes.NewReader(data))
	})
}

func ridsOf(t *testing.T, r region.Region) []uint64 {
	t.Helper()
	out := r.ToRIDs(nil, 0)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func eqRIDs(t *testing.T, got []uint64, want ...uint64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("rids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rids = %v, want %v", got, want)
		}
	}
}

func runSingleVarQuery(t *testing.T, engine *Engine, q Query) *Result {
	t.Helper()
	cur, err := engine.Evaluate(q)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	defer cur.Close()

	res, err := cur.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if res == nil {
		t.Fatal("expected one Result, got none")
	}
	return res
}

func TestSingleConstraintBinRange(t *testing.T) {
	data := buildEqualityIndexBytes(t, 0, 0, 8)
	c := newTestIOCache(t, map[string][]byte{"v": data})
	engine := NewEngine(c, EngineOptions{ComplementMode: AUTO})

	q := Query{Constraint("v", binning.At(2), binning.At(6))}
	res := runSingleVarQuery(t, engine, q)
	eqRIDs(t, ridsOf(t, res.Region), 2, 3, 4, 5)

	if len(res.Stats.ConstraintTerms) != 1 {
		t.Fatalf("expected 1 constraint term stats entry, got %d", len(res.Stats.ConstraintTerms))
	}
	if res.Stats.ConstraintTerms[0].BinRange != [2]int{1, 3} {
		t.Errorf("bin range = %v, want [1,3)", res.Stats.ConstraintTerms[0].BinRange)
	}
}

func TestCombineUnionOfTwoConstraints(t *testing.T) {
	data := buildEqualityIndexBytes(t, 0, 0, 8)
	c := newTestIOCache(t, map[string][]byte{"v": data})
	engine := NewEngine(c, EngineOptions{ComplementMode: AUTO})

	q := Query{
		Constraint("v", binning.NegInf(), binning.At(2)),
		Constraint("v", binning.At(6), binning.PosInf()),
		NAry(setops.UNION, 2),
	}
	res := runSingleVarQuery(t, engine, q)
	eqRIDs(t, ridsOf(t, res.Region), 0, 1, 6, 7)
}

func TestFullDomainShortCircuitsToFilled(t *testing.T) {
	data := buildEqualityIndexBytes(t, 0, 0, 8)
	c := newTestIOCache(t, map[string][]byte{"v": data})
	engine := NewEngine(c, EngineOptions{ComplementMode: AUTO})

	q := Query{Constraint("v", binning.NegInf(), binning.PosInf())}
	res := runSingleVarQuery(t, engine, q)
	eqRIDs(t, ridsOf(t, res.Region), 0, 1, 2, 3, 4, 5, 6, 7)

	// The uniform-filled short circuit must not read any region.
	if res.Stats.ConstraintTerms[0].BinRead.ReadTime.Count != 0 {
		t.Error("expected no region reads for the trivial filled case")
	}
}

func TestEmptyBinRangeShortCircuitsToEmpty(t *testing.T) {
	data := buildEqualityIndexBytes(t, 0, 0, 8)
	c := newTestIOCache(t, map[string][]byte{"v": data})
	engine := NewEngine(c, EngineOptions{ComplementMode: AUTO})

	q := Query{Constraint("v", binning.At(4), binning.At(4))}
	res := runSingleVarQuery(t, engine, q)
	if len(ridsOf(t, res.Region)) != 0 {
		t.Errorf("expected empty result, got %v", ridsOf(t, res.Region))
	}
	if res.Stats.ConstraintTerms[0].BinRead.ReadTime.Count != 0 {
		t.Error("expected no region reads for the trivial empty case")
	}
}

func TestComplementModeAgreesWithNonComplement(t *testing.T) {
	data := buildEqualityIndexBytes(t, 0, 0, 8)

	never := NewEngine(newTestIOCache(t, map[string][]byte{"v": data}), EngineOptions{ComplementMode: NEVER})
	always := NewEngine(newTestIOCache(t, map[string][]byte{"v": data}), EngineOptions{ComplementMode: ALWAYS})

	q := Query{Constraint("v", binning.At(2), binning.At(6))}

	rNever := runSingleVarQuery(t, never, q)
	rAlways := runSingleVarQuery(t, always, q)

	if rNever.Stats.ConstraintTerms[0].UsedComplement {
		t.Error("NEVER mode must not use the complement plan")
	}
	if !rAlways.Stats.ConstraintTerms[0].UsedComplement {
		t.Error("ALWAYS mode must use the complement plan when available")
	}
	got, want := ridsOf(t, rNever.Region), ridsOf(t, rAlways.Region)
	if len(got) != len(want) {
		t.Fatalf("NEVER/ALWAYS results differ: %v vs %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("NEVER/ALWAYS results differ: %v vs %v", got, want)
		}
	}
}

func TestCursorOrdersPartitionsByBeginRID(t *testing.T) {
	specBlob, err := binning.Serialize(binning.NewExplicitBins([]float64{2, 4, 6}))
	if err != nil {
		t.Fatal(err)
	}
	regionsFor := func() []region.Region {
		regions := make([]region.Region, len(equalityBinsRIDs))
		for i, rids := range equalityBinsRIDs {
			regions[i] = region.NewIIRegion(8, rids)
		}
		return regions
	}

	// Partitions are built out of begin_rid order; Build/OpenIndex just
	// stores whatever order is given, so this also exercises the
	// cursor's own sort rather than assuming file order.
	data, err := ioformat.Build([]ioformat.PartitionInput{
		{
			Domain:          ioformat.PartitionDomain{PartitionID: 1, BeginRID: 8, EndRID: 16},
			DomainSize:      8,
			NBins:           4,
			BinKeys:         []float64{2, 4, 6},
			BinningSpecBlob: specBlob,
			IndexEncoding:   uint8(indexenc.EQUALITY),
			RegionEncoding:  region.II,
			Regions:         regionsFor(),
		},
		{
			Domain:          ioformat.PartitionDomain{PartitionID: 0, BeginRID: 0, EndRID: 8},
			DomainSize:      8,
			NBins:           4,
			BinKeys:         []float64{2, 4, 6},
			BinningSpecBlob: specBlob,
			IndexEncoding:   uint8(indexenc.EQUALITY),
			RegionEncoding:  region.II,
			Regions:         regionsFor(),
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	c := newTestIOCache(t, map[string][]byte{"v": data})
	engine := NewEngine(c, EngineOptions{ComplementMode: AUTO})

	q := Query{Constraint("v", binning.NegInf(), binning.PosInf())}
	cur, err := engine.Evaluate(q)
	if err != nil {
		t.Fatal(err)
	}
	defer cur.Close()

	res0, err := cur.Next()
	if err != nil || res0 == nil {
		t.Fatalf("Next() #1: res=%v err=%v", res0, err)
	}
	if res0.PartitionID != 0 || res0.BeginRID != 0 {
		t.Errorf("first result = partition %d begin %d, want partition 0 begin 0", res0.PartitionID, res0.BeginRID)
	}

	res1, err := cur.Next()
	if err != nil || res1 == nil {
		t.Fatalf("Next() #2: res=%v err=%v", res1, err)
	}
	if res1.PartitionID != 1 || res1.BeginRID != 8 {
		t.Errorf("second result = partition %d begin %d, want partition 1 begin 8", res1.PartitionID, res1.BeginRID)
	}

	res2, err := cur.Next()
	if err != nil {
		t.Fatalf("Next() #3: %v", err)
	}
	if res2 != nil {
		t.Error("expected cursor exhausted after 2 partitions")
	}
}

func TestDomainMismatchAcrossVariablesErrors(t *testing.T) {
	dataA := buildEqualityIndexBytes(t, 0, 0, 8)
	dataB := buildEqualityIndexBytes(t, 0, 0, 16) // disagrees on end_rid

	c := newTestIOCache(t, map[string][]byte{"a": dataA, "b": dataB})
	engine := NewEngine(c, EngineOptions{ComplementMode: AUTO})

	q := Query{
		Constraint("a", binning.NegInf(), binning.PosInf()),
		Constraint("b", binning.NegInf(), binning.PosInf()),
		NAry(setops.UNION, 2),
	}
	if _, err := engine.Evaluate(q); err == nil {
		t.Error("expected ErrDomainMismatch for disagreeing partition domains")
	}
}
