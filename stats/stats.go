// Package stats implements the timing/counter accumulators threaded
// through query evaluation (§4.H, §5): a per-constraint read/merge
// timing breakdown and a per-combine-operator timing total, gathered
// into one QueryStats per evaluate call. Grounded on the accumulate-
// into-a-struct style of the teacher's qa.go, generalized from a
// one-shot post-hoc summary into an accumulator updated as evaluation
// proceeds.
package stats

import "time"

// Timer accumulates elapsed time across possibly many Start/Stop spans,
// mirroring the source's per-field time accumulators (QueryStats's
// terminfos fields are summed across repeated I/O/merge operations
// within a single constraint, not just the last).
type Timer struct {
	Total time.Duration
	Count int
	start time.Time
}

// Start begins a span. Callers must pair it with Stop; Start itself
// performs no allocation so it is cheap enough to wrap every I/O call.
func (t *Timer) Start() { t.start = time.Now() }

// Stop ends the most recent Start and folds its duration into Total.
func (t *Timer) Stop() {
	t.Total += time.Since(t.start)
	t.Count++
}

// Observe folds an already-measured duration into Total directly, for
// callers that measure elapsed time themselves (e.g. around a batch of
// reads) rather than bracketing with Start/Stop.
func (t *Timer) Observe(d time.Duration) {
	t.Total += d
	t.Count++
}

// BinReadStats accumulates region I/O cost for one constraint: time
// spent in ReadRegion plus the cumulative serialized byte count read,
// mirroring the source's ConstraintTermEvalStats::binread.
type BinReadStats struct {
	ReadTime  Timer
	BytesRead int64
}

// BinMergeStats accumulates region-math evaluation cost for one
// constraint, mirroring ConstraintTermEvalStats::binmerge.
type BinMergeStats struct {
	Time Timer
}

// ConstraintTermStats is the per-ConstraintTerm accounting emitted by
// the per-partition algorithm's steps 2-4 (§4.H), mirroring the
// source's QueryEngine::ConstraintTermEvalStats.
type ConstraintTermStats struct {
	Varname          string
	BinRange         [2]int
	UsedComplement   bool
	NonComplementCost int64
	ComplementCost    int64
	BinRead          BinReadStats
	BinMerge         BinMergeStats
}

// MultivarTermStats is the per-combine-operator accounting for step 5
// of the per-partition algorithm, mirroring
// QueryEngine::MultivarTermEvalStats.
type MultivarTermStats struct {
	Total Timer
}

// PartitionStats is everything accumulated while evaluating one
// partition: one ConstraintTermStats per ConstraintTerm in the query,
// one MultivarTermStats per operator term combining their results.
type PartitionStats struct {
	PartitionID uint64
	ConstraintTerms []ConstraintTermStats
	MultivarTerms   []MultivarTermStats
}

// QueryStats accumulates PartitionStats across every partition an
// evaluate call visits, mirroring the source's QueryEngine::QueryStats
// (a flat terminfos list, regrouped here by partition for the cursor's
// per-partition delivery in §4.H).
type QueryStats struct {
	Partitions []PartitionStats
}

// TotalBinReadTime sums ReadTime.Total across every constraint term in
// every partition visited so far.
func (q *QueryStats) TotalBinReadTime() time.Duration {
	var total time.Duration
	for _, p := range q.Partitions {
		for _, c := range p.ConstraintTerms {
			total += c.BinRead.ReadTime.Total
		}
	}
	return total
}

// TotalBinMergeTime sums BinMerge.Time.Total across every constraint
// term in every partition visited so far.
func (q *QueryStats) TotalBinMergeTime() time.Duration {
	var total time.Duration
	for _, p := range q.Partitions {
		for _, c := range p.ConstraintTerms {
			total += c.BinMerge.Time.Total
		}
	}
	return total
}
