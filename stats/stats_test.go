package stats

import (
	"testing"
	"time"
)

func TestTimerObserveAccumulates(t *testing.T) {
	var timer Timer
	timer.Observe(10 * time.Millisecond)
	timer.Observe(5 * time.Millisecond)

	if timer.Total != 15*time.Millisecond {
		t.Errorf("Total = %v, want 15ms", timer.Total)
	}
	if timer.Count != 2 {
		t.Errorf("Count = %d, want 2", timer.Count)
	}
}

func TestTimerStartStopRecordsElapsed(t *testing.T) {
	var timer Timer
	timer.Start()
	time.Sleep(time.Millisecond)
	timer.Stop()

	if timer.Total <= 0 {
		t.Errorf("Total = %v, want > 0", timer.Total)
	}
	if timer.Count != 1 {
		t.Errorf("Count = %d, want 1", timer.Count)
	}
}

func TestQueryStatsTotalsSumAcrossPartitionsAndConstraints(t *testing.T) {
	qs := QueryStats{
		Partitions: []PartitionStats{
			{
				PartitionID: 0,
				ConstraintTerms: []ConstraintTermStats{
					{BinRead: BinReadStats{ReadTime: Timer{Total: 2 * time.Millisecond}}, BinMerge: BinMergeStats{Time: Timer{Total: time.Millisecond}}},
					{BinRead: BinReadStats{ReadTime: Timer{Total: 3 * time.Millisecond}}, BinMerge: BinMergeStats{Time: Timer{Total: time.Millisecond}}},
				},
			},
			{
				PartitionID: 1,
				ConstraintTerms: []ConstraintTermStats{
					{BinRead: BinReadStats{ReadTime: Timer{Total: time.Millisecond}}, BinMerge: BinMergeStats{Time: Timer{Total: 2 * time.Millisecond}}},
				},
			},
		},
	}

	if got, want := qs.TotalBinReadTime(), 6*time.Millisecond; got != want {
		t.Errorf("TotalBinReadTime() = %v, want %v", got, want)
	}
	if got, want := qs.TotalBinMergeTime(), 4*time.Millisecond; got != want {
		t.Errorf("TotalBinMergeTime() = %v, want %v", got, want)
	}
}
