package query

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pique-io/pique/binning"
	"github.com/pique-io/pique/cache"
	"github.com/pique-io/pique/indexenc"
	"github.com/pique-io/pique/ioformat"
	"github.com/pique-io/pique/region"
	"github.com/pique-io/pique/regionmath"
	"github.com/pique-io/pique/stats"
)

// ComplementMode controls whether index-encoding schemes with a
// complement-based alternative plan (EQUALITY and INTERVAL; RANGE,
// HIERARCHICAL and BINARY_COMPONENT produce a single plan) are
// costed against their non-complement plan, forced, or disabled (§4.H:
// "AUTO uses cost-driven selection; NEVER disables complement plan
// generation; ALWAYS forces it where available").
type ComplementMode int

const (
	AUTO ComplementMode = iota
	NEVER
	ALWAYS
)

// ErrDomainMismatch is a Configuration-kind error (§7): two variables
// referenced by the same query disagree on a partition's RID extent.
var ErrDomainMismatch = errors.New("query: variables disagree on partition domain")

// perOperatorCost is the "small per-operator constant" of step 3's cost
// model (§4.H), chosen to be comparable in scale to a handful of bytes
// so that a plan with fewer, larger region reads is not unfairly
// penalized against one with many tiny ones.
const perOperatorCost = 8

// EngineOptions configures an Engine.
type EngineOptions struct {
	ComplementMode ComplementMode
}

// Engine is the per-partition query evaluator of §4.H. It consumes an
// IndexIOCache (one IndexIO per variable, one IndexPartitionIO per
// partition) and produces a Cursor per Evaluate call.
type Engine struct {
	iocache *cache.IndexIOCache
	opts    EngineOptions
}

// NewEngine constructs an Engine backed by iocache.
func NewEngine(iocache *cache.IndexIOCache, opts EngineOptions) *Engine {
	return &Engine{iocache: iocache, opts: opts}
}

// Evaluate opens every variable referenced by q, validates that their
// domain maps agree, and returns a Cursor ready to yield one Result per
// partition in ascending begin_rid order (§4.H step 1, "Cursor
// ordering").
func (e *Engine) Evaluate(q Query) (*Cursor, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	varnames := q.Variables()
	if len(varnames) == 0 {
		return nil, fmt.Errorf("%w: query references no variables", ErrMalformedQuery)
	}

	varHandles := make(map[string]cache.CacheHandle[ioformat.IndexIO], len(varnames))
	closeOpened := func() {
		for _, h := range varHandles {
			h.Release()
		}
	}

	var canonical []ioformat.PartitionDomain
	domainByVar := make(map[string]map[uint64]ioformat.PartitionDomain, len(varnames))

	for _, v := range varnames {
		h, err := e.iocache.OpenIndexIO(v)
		if err != nil {
			closeOpened()
			return nil, fmt.Errorf("query: open variable %q: %w", v, err)
		}
		varHandles[v] = h

		_, domains := h.Get().GlobalMetadata()
		byID := make(map[uint64]ioformat.PartitionDomain, len(domains))
		for _, d := range domains {
			byID[d.PartitionID] = d
		}
		domainByVar[v] = byID

		if canonical == nil {
			canonical = append([]ioformat.PartitionDomain(nil), domains...)
		}
	}

	for _, v := range varnames {
		byID := domainByVar[v]
		if len(byID) != len(canonical) {
			closeOpened()
			return nil, fmt.Errorf("%w: variable %q has %d partitions, expected %d", ErrDomainMismatch, v, len(byID), len(canonical))
		}
		for _, want := range canonical {
			got, ok := byID[want.PartitionID]
			if !ok || got.BeginRID != want.BeginRID || got.EndRID != want.EndRID {
				closeOpened()
				return nil, fmt.Errorf("%w: variable %q partition %d", ErrDomainMismatch, v, want.PartitionID)
			}
		}
	}

	sort.Slice(canonical, func(i, j int) bool { return canonical[i].BeginRID < canonical[j].BeginRID })

	return &Cursor{
		engine:     e,
		query:      q,
		domains:    canonical,
		varHandles: varHandles,
	}, nil
}

// Result is one partition's evaluation outcome, yielded by a Cursor
// (§4.H: "a QueryCursor that yields one (partition_id, [begin_rid,
// end_rid), result_region, stats) per partition").
type Result struct {
	PartitionID uint64
	BeginRID    uint64
	EndRID      uint64
	Region      region.Region
	Stats       stats.PartitionStats
}

// Cursor streams per-partition Results in ascending begin_rid order.
// Grounded on simple-query-engine.hpp's SimpleQueryCursor (cooperative,
// single-threaded: Next blocks the caller's goroutine until its I/O and
// evaluation complete, matching §5's synchronous suspension points).
type Cursor struct {
	engine     *Engine
	query      Query
	domains    []ioformat.PartitionDomain
	pos        int
	varHandles map[string]cache.CacheHandle[ioformat.IndexIO]
	closed     bool
}

// Next evaluates the query against the next partition and returns its
// Result, or (nil, nil) once every partition has been visited.
func (c *Cursor) Next() (*Result, error) {
	if c.closed || c.pos >= len(c.domains) {
		return nil, nil
	}
	d := c.domains[c.pos]
	c.pos++
	return c.engine.evaluatePartition(c.query, d, c.varHandles)
}

// Close releases every strong handle the cursor holds, implementing
// the cooperative cancellation of §5: "the cursor may be dropped
// between partitions, at which point the engine releases all
// strongly-held per-partition regions and returns".
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	for _, h := range c.varHandles {
		h.Release()
	}
	return nil
}

// partitionHandle bundles an open IndexPartitionIO with its decoded
// binning spec and index-encoding scheme, everything one ConstraintTerm
// needs from its variable at the current partition.
type partitionHandle struct {
	handle cache.CacheHandle[ioformat.IndexPartitionIO]
	io     ioformat.IndexPartitionIO
	meta   ioformat.PartitionMetadata
	spec   binning.Specification
	scheme indexenc.Scheme
}

func (e *Engine) evaluatePartition(q Query, d ioformat.PartitionDomain, varHandles map[string]cache.CacheHandle[ioformat.IndexIO]) (*Result, error) {
	partitionsByVar := make(map[string]*partitionHandle)
	defer func() {
		for _, ph := range partitionsByVar {
			ph.handle.Release()
		}
	}()

	for _, v := range q.Variables() {
		ph, err := e.openPartition(v, d.PartitionID)
		if err != nil {
			return nil, fmt.Errorf("query: partition %d variable %q: %w", d.PartitionID, v, err)
		}
		partitionsByVar[v] = ph
	}

	pstats := stats.PartitionStats{PartitionID: d.PartitionID}

	constraintResults := make([]region.Region, 0, len(q))
	constraintIndex := 0

	combineExpr := make(regionmath.Expr, 0, len(q))

	for _, t := range q {
		switch t.Kind {
		case ConstraintTermKind:
			ph := partitionsByVar[t.Varname]
			r, cstats, err := e.evaluateConstraint(t, ph)
			if err != nil {
				return nil, fmt.Errorf("query: constraint on %q: %w", t.Varname, err)
			}
			pstats.ConstraintTerms = append(pstats.ConstraintTerms, cstats)
			constraintResults = append(constraintResults, r)
			combineExpr = combineExpr.PushRegion(region.RID(constraintIndex))
			constraintIndex++
		case UnaryOpTermKind:
			combineExpr = combineExpr.PushUnary(t.Unary)
		case NAryOpTermKind:
			combineExpr = combineExpr.PushNary(t.Nary, t.Arity)
		}
	}

	var combineTimer stats.MultivarTermStats
	combineTimer.Total.Start()
	result, err := regionmath.Evaluate(combineExpr, func(rid region.RID) (region.Region, error) {
		return constraintResults[int(rid)], nil
	})
	combineTimer.Total.Stop()
	if err != nil {
		return nil, fmt.Errorf("query: combine step: %w", err)
	}
	pstats.MultivarTerms = append(pstats.MultivarTerms, combineTimer)

	return &Result{
		PartitionID: d.PartitionID,
		BeginRID:    d.BeginRID,
		EndRID:      d.EndRID,
		Region:      result,
		Stats:       pstats,
	}, nil
}

func (e *Engine) openPartition(varname string, partitionID uint64) (*partitionHandle, error) {
	h, err := e.iocache.OpenIndexPartitionIO(varname, partitionID)
	if err != nil {
		return nil, err
	}
	meta := h.Get().PartitionMetadata()
	spec, _, err := binning.Deserialize(meta.BinningSpec)
	if err != nil {
		h.Release()
		return nil, fmt.Errorf("decode binning spec: %w", err)
	}
	scheme, err := indexenc.New(indexenc.Type(meta.IndexEncoding))
	if err != nil {
		h.Release()
		return nil, fmt.Errorf("resolve index encoding: %w", err)
	}
	return &partitionHandle{handle: h, io: h.Get(), meta: meta, spec: spec, scheme: scheme}, nil
}

// evaluateConstraint implements steps 2-4 of the per-partition
// algorithm (§4.H): quantize the constraint's value bounds to a bin
// range, short-circuit the uniform cases, otherwise cost the
// complement and non-complement RegionMath alternatives and evaluate
// the cheaper one.
func (e *Engine) evaluateConstraint(t Term, ph *partitionHandle) (region.Region, stats.ConstraintTermStats, error) {
	cstats := stats.ConstraintTermStats{Varname: t.Varname}

	lbBin, ubBin := ph.spec.ComputeBinRange(t.Lower, t.Upper)
	cstats.BinRange = [2]int{lbBin, ubBin}
	nbins := ph.spec.NumBins()

	if lbBin <= 0 && ubBin >= nbins {
		r, err := region.MakeUniformRegion(ph.meta.RegionEncoding, ph.meta.DomainSize, true)
		return r, cstats, err
	}
	if lbBin >= ubBin {
		r, err := region.MakeUniformRegion(ph.meta.RegionEncoding, ph.meta.DomainSize, false)
		return r, cstats, err
	}

	expr, usedComplement, nonComplementCost, complementCost, err := e.planConstraint(ph, lbBin, ubBin)
	if err != nil {
		return nil, cstats, err
	}
	cstats.UsedComplement = usedComplement
	cstats.NonComplementCost = nonComplementCost
	cstats.ComplementCost = complementCost

	cstats.BinMerge.Time.Start()
	r, err := regionmath.Evaluate(expr, func(rid region.RID) (region.Region, error) {
		cstats.BinRead.ReadTime.Start()
		reg, err := ph.io.ReadRegion(rid)
		cstats.BinRead.ReadTime.Stop()
		if err == nil {
			cstats.BinRead.BytesRead += int64(reg.SizeInBytes())
		}
		return reg, err
	})
	cstats.BinMerge.Time.Stop()
	return r, cstats, err
}

// planConstraint produces the RegionMath alternatives for [lbBin,
// ubBin), costs them, and picks the cheaper under this Engine's
// ComplementMode, tie-breaking to the non-complement plan (§4.H step 3).
func (e *Engine) planConstraint(ph *partitionHandle, lbBin, ubBin int) (expr regionmath.Expr, usedComplement bool, nonComplementCost, complementCost int64, err error) {
	nonComplement, err := ph.scheme.RangeQuery(ph.meta.NBins, lbBin, ubBin, false)
	if err != nil {
		return nil, false, 0, 0, err
	}
	nonComplementCost, err = costOf(nonComplement, ph.io)
	if err != nil {
		return nil, false, 0, 0, err
	}

	if e.engineMode() == NEVER || !ph.scheme.HasComplementAlternative() {
		return nonComplement, false, nonComplementCost, 0, nil
	}

	complement, err := ph.scheme.RangeQuery(ph.meta.NBins, lbBin, ubBin, true)
	if err != nil {
		return nil, false, 0, 0, err
	}
	complementCost, err = costOf(complement, ph.io)
	if err != nil {
		return nil, false, 0, 0, err
	}

	if e.engineMode() == ALWAYS {
		return complement, true, nonComplementCost, complementCost, nil
	}

	if complementCost < nonComplementCost {
		return complement, true, nonComplementCost, complementCost, nil
	}
	return nonComplement, false, nonComplementCost, complementCost, nil
}

func (e *Engine) engineMode() ComplementMode { return e.opts.ComplementMode }

// costOf sums regions_size_in_bytes(rid, rid+1) over every RegionTerm
// in expr plus perOperatorCost per operator term (§4.H step 3).
func costOf(expr regionmath.Expr, partIO ioformat.IndexPartitionIO) (int64, error) {
	var total int64
	for _, t := range expr {
		switch t.Kind {
		case regionmath.RegionTermKind:
			sz, err := partIO.RegionsSizeInBytes(t.RID, t.RID+1)
			if err != nil {
				return 0, err
			}
			total += int64(sz)
		default:
			total += perOperatorCost
		}
	}
	return total, nil
}
