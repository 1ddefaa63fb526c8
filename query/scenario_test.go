package query

import (
	"testing"

	"github.com/pique-io/pique/binning"
	"github.com/pique-io/pique/builder"
	"github.com/pique-io/pique/dataset"
	"github.com/pique-io/pique/indexenc"
	"github.com/pique-io/pique/ioformat"
	"github.com/pique-io/pique/region"
	"github.com/pique-io/pique/setops"
)

// s1Values is the spec's S1 scenario fixture, shared with
// builder/builder_test.go's EQUALITY/BITMAP case.
var s1Values = []float64{0, 0, 0, 2, 1, 1, 1, 0, 2, 2, 2, 1, 0, 0, 1, 0}

// buildS1Index builds a one-partition index for s1Values under the
// given index-encoding scheme, standing ExplicitBins({1,2}) in for a
// fitted SIGBITS quantizer the way builder_test.go already does,
// since the three distinct values in S1 quantize identically either
// way and a 31-bit SIGBITS spec would force an impractically large
// bin-key array for a test fixture.
func buildS1Index(t *testing.T, scheme indexenc.Type, regionEnc region.Type) []byte {
	t.Helper()
	grid := dataset.NewGrid([]uint64{uint64(len(s1Values))})
	ds := dataset.NewInMemoryDataset(dataset.Float64, grid, s1Values)
	stream, err := dataset.OpenFullStream(ds)
	if err != nil {
		t.Fatal(err)
	}

	cfg := builder.Config{
		IndexEncoding:  scheme,
		RegionEncoding: regionEnc,
		Binning:        binning.NewExplicitBins([]float64{1, 2}),
	}
	domain := ioformat.PartitionDomain{PartitionID: 0, BeginRID: 0, EndRID: uint64(len(s1Values))}
	input, err := builder.BuildPartition(stream, cfg, domain)
	if err != nil {
		t.Fatal(err)
	}

	data, err := ioformat.Build([]ioformat.PartitionInput{input})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// TestIndexEncodingParityAcrossSchemes is the spec's S2 scenario:
// EQUALITY, RANGE, HIERARCHICAL, BINARY_COMPONENT, and INTERVAL must
// all answer "var == 0 OR var == 2" against S1 with the identical RID
// set {0,1,2,3,7,8,9,10,12,13,15}.
func TestIndexEncodingParityAcrossSchemes(t *testing.T) {
	want := []uint64{0, 1, 2, 3, 7, 8, 9, 10, 12, 13, 15}

	for _, scheme := range []indexenc.Type{
		indexenc.EQUALITY,
		indexenc.RANGE,
		indexenc.HIERARCHICAL,
		indexenc.BINARY_COMPONENT,
		indexenc.INTERVAL,
	} {
		scheme := scheme
		t.Run(scheme.String(), func(t *testing.T) {
			data := buildS1Index(t, scheme, region.BITMAP)
			iocache := newTestIOCache(t, map[string][]byte{"var": data})
			engine := NewEngine(iocache, EngineOptions{})

			eq0 := Constraint("var", binning.At(0), binning.At(1))
			eq2 := Constraint("var", binning.At(2), binning.PosInf())
			q := Query{eq0, eq2, NAry(setops.UNION, 2)}

			res := runSingleVarQuery(t, engine, q)
			got := ridsOf(t, res.Region)
			if len(got) != len(want) {
				t.Fatalf("%s: rids = %v, want %v", scheme, got, want)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("%s: rids = %v, want %v", scheme, got, want)
				}
			}
		})
	}
}

// TestAutoModeSelectsCheaperComplementPlan is the spec's S3 scenario:
// with nbins=8 and a query over bin range [1,7), the equality scheme's
// direct union plan touches 6 of 8 per-bin regions while its complement
// plan touches only 2 ([0,1) union [7,8)); AUTO mode must pick the
// complement, matching the cost model of §4.H step 3.
func TestAutoModeSelectsCheaperComplementPlan(t *testing.T) {
	const nbins = 8
	regions := make([]region.Region, nbins)
	for i := 0; i < nbins; i++ {
		// One RID per bin, all in a single partition of size nbins.
		regions[i] = region.NewIIRegion(nbins, []uint32{uint32(i)})
	}
	spec := binning.NewExplicitBins([]float64{1, 2, 3, 4, 5, 6, 7})
	specBlob, err := binning.Serialize(spec)
	if err != nil {
		t.Fatal(err)
	}
	data, err := ioformat.Build([]ioformat.PartitionInput{{
		Domain:          ioformat.PartitionDomain{PartitionID: 0, BeginRID: 0, EndRID: nbins},
		DomainSize:      nbins,
		NBins:           nbins,
		BinKeys:         []float64{0, 1, 2, 3, 4, 5, 6, 7},
		BinningSpecBlob: specBlob,
		IndexEncoding:   uint8(indexenc.EQUALITY),
		RegionEncoding:  region.II,
		Regions:         regions,
	}})
	if err != nil {
		t.Fatal(err)
	}

	// bin range [1,7): value bounds chosen so ComputeBinRange yields
	// exactly lbBin=1, ubBin=7 against the boundaries above.
	lb := binning.At(1)
	ub := binning.At(7)

	for _, tc := range []struct {
		mode           ComplementMode
		wantComplement bool
	}{
		{AUTO, true},
		{NEVER, false},
		{ALWAYS, true},
	} {
		iocache := newTestIOCache(t, map[string][]byte{"var": data})
		engine := NewEngine(iocache, EngineOptions{ComplementMode: tc.mode})

		q := Query{Constraint("var", lb, ub)}
		cur, err := engine.Evaluate(q)
		if err != nil {
			t.Fatal(err)
		}
		res, err := cur.Next()
		if err != nil {
			t.Fatal(err)
		}
		cur.Close()

		got := res.Stats.ConstraintTerms[0].UsedComplement
		if got != tc.wantComplement {
			t.Errorf("mode=%v: UsedComplement = %v, want %v (nonComplementCost=%d complementCost=%d)",
				tc.mode, got, tc.wantComplement,
				res.Stats.ConstraintTerms[0].NonComplementCost, res.Stats.ConstraintTerms[0].ComplementCost)
		}

		got2 := ridsOf(t, res.Region)
		eqRIDs(t, got2, 1, 2, 3, 4, 5, 6)
	}
}
