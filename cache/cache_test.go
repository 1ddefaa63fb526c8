package cache

import (
	"testing"

	"github.com/pique-io/pique/ioformat"
	"github.com/pique-io/pique/region"
)

type fakePartitionIO struct{ id uint64 }

func (fakePartitionIO) PartitionMetadata() ioformat.PartitionMetadata {
	return ioformat.PartitionMetadata{}
}
func (fakePartitionIO) ReadRegion(region.RID) (region.Region, error) { return nil, nil }
func (fakePartitionIO) RegionsSizeInBytes(uint32, uint32) (int, error) {
	return 0, nil
}
func (fakePartitionIO) BinKeys() []float64 { return nil }

type fakeIndexIO struct {
	varname   string
	opens     int
	closed    bool
	closeFunc func()
}

func (f *fakeIndexIO) GlobalMetadata() (int, []ioformat.PartitionDomain) { return 1, nil }
func (f *fakeIndexIO) GetPartition(id uint64) (ioformat.IndexPartitionIO, error) {
	return fakePartitionIO{id: id}, nil
}
func (f *fakeIndexIO) Close() error {
	f.closed = true
	if f.closeFunc != nil {
		f.closeFunc()
	}
	return nil
}

func newTestCache(t *testing.T, opens *int) *IndexIOCache {
	t.Helper()
	return New(func(varname string) (ioformat.IndexIO, error) {
		*opens++
		return &fakeIndexIO{varname: varname}, nil
	})
}

func TestOpenIndexIOCachesAcrossCalls(t *testing.T) {
	opens := 0
	c := newTestCache(t, &opens)

	h1, err := c.OpenIndexIO("v")
	if err != nil {
		t.Fatal(err)
	}
	h2, err := c.OpenIndexIO("v")
	if err != nil {
		t.Fatal(err)
	}
	if opens != 1 {
		t.Errorf("opener called %d times, want 1 (second open should reuse cache)", opens)
	}
	if h1.Get() != h2.Get() {
		t.Error("expected the same underlying IndexIO from both opens")
	}
	h1.Release()
	h2.Release()
}

func TestReleaseUnusedKeepsHeldHandleAlive(t *testing.T) {
	// S5: open variable V partition P, hold a strong handle H;
	// release_unused() must keep H valid; drop H; second
	// release_unused() must evict the entry.
	opens := 0
	c := newTestCache(t, &opens)

	h, err := c.OpenIndexPartitionIO("v", 0)
	if err != nil {
		t.Fatal(err)
	}

	c.ReleaseUnused()

	vc := c.vars["v"]
	if vc.partitions[0] == nil || !vc.partitions[0].isAlive() {
		t.Fatal("partition entry should still be alive: handle H is held")
	}

	h.Release()
	c.ReleaseUnused()

	if vc.partitions[0] != nil {
		t.Error("partition entry should have been evicted after H was released and release_unused ran again")
	}
}

func TestReleaseUnusedClosesIndexIOWhenNoPartitionsOpen(t *testing.T) {
	opens := 0
	c := newTestCache(t, &opens)

	h, err := c.OpenIndexIO("v")
	if err != nil {
		t.Fatal(err)
	}
	underlying := h.Get().(*fakeIndexIO)
	h.Release()

	c.ReleaseUnused()

	if !underlying.closed {
		t.Error("IndexIO with no external holders should be closed by release_unused")
	}
	if c.vars["v"].indexEntry != nil {
		t.Error("index entry should have been dropped from the cache")
	}
}

func TestReleaseAllDefersCloseUntilLastHolderReleases(t *testing.T) {
	opens := 0
	c := newTestCache(t, &opens)

	h, err := c.OpenIndexIO("v")
	if err != nil {
		t.Fatal(err)
	}
	underlying := h.Get().(*fakeIndexIO)

	c.ReleaseAll()
	if underlying.closed {
		t.Error("resource should remain open while an external handle is still held")
	}

	h.Release()
	if !underlying.closed {
		t.Error("resource should close once its last external handle is released after ReleaseAll")
	}
}

func TestCacheHandleReleaseIsIdempotent(t *testing.T) {
	opens := 0
	c := newTestCache(t, &opens)

	h, err := c.OpenIndexIO("v")
	if err != nil {
		t.Fatal(err)
	}
	underlying := h.Get().(*fakeIndexIO)
	h.Release()
	h.Release() // must not double-decrement or panic

	c.ReleaseUnused()
	if !underlying.closed {
		t.Error("expected resource closed after release_unused with zero external refs")
	}
}

func TestReleaseUnusedInvariantViolationPanics(t *testing.T) {
	// Directly construct a cache state violating the safety invariant:
	// a partition entry alive while its parent IndexIO entry is not,
	// bypassing the normal Open path (which always keeps the parent
	// alive) to exercise the invariant check itself.
	defer func() {
		if recover() == nil {
			t.Error("expected a panic for the parent/child cache invariant violation")
		}
	}()

	c := New(func(varname string) (ioformat.IndexIO, error) {
		return &fakeIndexIO{varname: varname}, nil
	})
	vc := c.emplaceVar("v")
	vc.mu.Lock()
	pe := newEntry[ioformat.IndexPartitionIO](fakePartitionIO{}, func(ioformat.IndexPartitionIO) error { return nil })
	held := pe.hold()
	vc.partitions[0] = pe
	vc.mu.Unlock()
	_ = held

	c.ReleaseUnused()
}
