// Package cache implements the I/O cache of §4.G: a CacheHandle that
// may be strong (keeps its resource alive) or weak (releases once no
// external holder remains), and an IndexIOCache layering that handle
// over ioformat.IndexIO/IndexPartitionIO with the two-phase
// weaken/re-strengthen release_unused operation. Grounded on
// original_source/include/pique/util/cache-ptr.hpp and
// src/io/index-io-cache.cpp; Go has no shared_ptr/weak_ptr pair to
// inherit the mechanism from, so the strong/weak duality is
// reimplemented as an explicit external-reference count plus a
// cache-held flag rather than relying on GC finalizers (§9: "map to
// reference-counted immutable handles with a dedicated CacheHandle<T>
// that can be strong | weak").
package cache

import (
	"fmt"
	"sync"

	"github.com/pique-io/pique/ioformat"
)

// entry is the cache's bookkeeping for one cached resource: how many
// external holders currently exist, and whether the cache itself is
// also holding it strong (the cache_ptr's own strongptr).
type entry[T any] struct {
	mu           sync.Mutex
	value        T
	closeFn      func(T) error
	externalRefs int
	cacheHeld    bool
	closed       bool
}

func newEntry[T any](value T, closeFn func(T) error) *entry[T] {
	return &entry[T]{value: value, closeFn: closeFn, cacheHeld: true}
}

func (e *entry[T]) isAlive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.closed
}

func (e *entry[T]) hold() CacheHandle[T] {
	e.mu.Lock()
	e.externalRefs++
	e.mu.Unlock()
	return CacheHandle[T]{e: e, once: new(sync.Once)}
}

func (e *entry[T]) release() {
	e.mu.Lock()
	if e.externalRefs > 0 {
		e.externalRefs--
	}
	shouldClose := e.externalRefs == 0 && !e.cacheHeld && !e.closed
	e.mu.Unlock()
	if shouldClose {
		e.closeNow()
	}
}

func (e *entry[T]) closeNow() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	fn := e.closeFn
	e.mu.Unlock()
	if fn != nil {
		fn(e.value)
	}
}

// weakenThenMaybeStrengthen implements cache_ptr::release_unused: drop
// the cache's own strong hold, then re-acquire it if an external holder
// is still around. Returns whether the resource remains alive.
func (e *entry[T]) weakenThenMaybeStrengthen() bool {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	e.cacheHeld = false
	if e.externalRefs > 0 {
		e.cacheHeld = true
		e.mu.Unlock()
		return true
	}
	e.closed = true
	fn := e.closeFn
	e.mu.Unlock()
	if fn != nil {
		fn(e.value)
	}
	return false
}

// unconditionalRelease implements release_all/release_index_io: drop
// the cache's own strong hold regardless of external holders, closing
// immediately if none remain.
func (e *entry[T]) unconditionalRelease() {
	e.mu.Lock()
	e.cacheHeld = false
	shouldClose := e.externalRefs == 0 && !e.closed
	e.mu.Unlock()
	if shouldClose {
		e.closeNow()
	}
}

// CacheHandle is a strong reference to a cached resource, returned by
// IndexIOCache's Open... calls. Call Release when done; a handle is
// safe to Release at most once, and Release is idempotent (a second
// call is a no-op) so it can be deferred unconditionally alongside an
// early explicit release on an error path.
type CacheHandle[T any] struct {
	e    *entry[T]
	once *sync.Once
}

// Get returns the held resource. Calling Get on a zero-value
// CacheHandle (one returned alongside a non-nil error) panics.
func (h CacheHandle[T]) Get() T { return h.e.value }

func (h CacheHandle[T]) Release() {
	if h.once == nil {
		return
	}
	h.once.Do(func() { h.e.release() })
}

type varCache struct {
	mu         sync.Mutex
	indexEntry *entry[ioformat.IndexIO]
	partitions map[uint64]*entry[ioformat.IndexPartitionIO]
}

// IndexIOCache caches IndexIO/IndexPartitionIO per variable name (§4.G:
// "a map variable_name -> { indexio, partitions: { partition_id -> ... } }").
type IndexIOCache struct {
	mu     sync.Mutex
	opener func(varname string) (ioformat.IndexIO, error)
	vars   map[string]*varCache
}

// New constructs an IndexIOCache that opens a fresh IndexIO for varname
// via opener whenever no live cached entry exists.
func New(opener func(varname string) (ioformat.IndexIO, error)) *IndexIOCache {
	return &IndexIOCache{opener: opener, vars: make(map[string]*varCache)}
}

func (c *IndexIOCache) emplaceVar(varname string) *varCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	vc, ok := c.vars[varname]
	if !ok {
		vc = &varCache{partitions: make(map[uint64]*entry[ioformat.IndexPartitionIO])}
		c.vars[varname] = vc
	}
	return vc
}

// OpenIndexIO returns a strong handle to varname's IndexIO, opening a
// new one if the cached entry is absent or expired.
func (c *IndexIOCache) OpenIndexIO(varname string) (CacheHandle[ioformat.IndexIO], error) {
	vc := c.emplaceVar(varname)
	vc.mu.Lock()
	defer vc.mu.Unlock()

	if vc.indexEntry == nil || !vc.indexEntry.isAlive() {
		io, err := c.opener(varname)
		if err != nil {
			return CacheHandle[ioformat.IndexIO]{}, err
		}
		vc.indexEntry = newEntry(io, func(v ioformat.IndexIO) error { return v.Close() })
	}
	return vc.indexEntry.hold(), nil
}

// OpenIndexPartitionIO returns a strong handle to the given partition
// of varname, opening its parent IndexIO (and the partition itself) if
// the cached entry is absent or expired.
func (c *IndexIOCache) OpenIndexPartitionIO(varname string, partitionID uint64) (CacheHandle[ioformat.IndexPartitionIO], error) {
	vc := c.emplaceVar(varname)

	vc.mu.Lock()
	if pe, ok := vc.partitions[partitionID]; ok && pe.isAlive() {
		h := pe.hold()
		vc.mu.Unlock()
		return h, nil
	}
	vc.mu.Unlock()

	// A partition's IndexPartitionIO implementation reads through its
	// parent's stream, so the cached partition entry holds a strong
	// parent handle for as long as the entry itself lives, released
	// only when the partition entry is finally closed. This is the Go
	// analog of the source's IndexPartitionIO holding an internal
	// shared_ptr to its parent IndexIO, which is what lets
	// varcache.indexio's cache_ptr re-strengthen during release_unused
	// whenever a child partition is still alive.
	parent, err := c.OpenIndexIO(varname)
	if err != nil {
		return CacheHandle[ioformat.IndexPartitionIO]{}, err
	}

	partIO, err := parent.Get().GetPartition(partitionID)
	if err != nil {
		parent.Release()
		return CacheHandle[ioformat.IndexPartitionIO]{}, err
	}

	vc.mu.Lock()
	defer vc.mu.Unlock()
	if pe, ok := vc.partitions[partitionID]; ok && pe.isAlive() {
		parent.Release()
		return pe.hold(), nil
	}
	ne := newEntry(partIO, func(v ioformat.IndexPartitionIO) error {
		// Most IndexPartitionIO implementations (FilePartitionIO) hold
		// no resource of their own beyond their parent IndexIO's
		// stream, but a backing store like tiledbstore's
		// TileDBPartitionIO opens a per-partition array handle that
		// must be closed independently of the parent.
		var err error
		if c, ok := v.(interface{ Close() error }); ok {
			err = c.Close()
		}
		parent.Release()
		return err
	})
	vc.partitions[partitionID] = ne
	return ne.hold(), nil
}

// ReleaseIndexIO drops the cache's own hold on varname's IndexIO (and
// all its cached partitions) regardless of external holders.
func (c *IndexIOCache) ReleaseIndexIO(varname string) {
	c.mu.Lock()
	vc, ok := c.vars[varname]
	delete(c.vars, varname)
	c.mu.Unlock()
	if !ok {
		return
	}
	vc.mu.Lock()
	defer vc.mu.Unlock()
	for _, pe := range vc.partitions {
		pe.unconditionalRelease()
	}
	if vc.indexEntry != nil {
		vc.indexEntry.unconditionalRelease()
	}
}

// ReleaseIndexPartitionIO drops the cache's own hold on one partition.
func (c *IndexIOCache) ReleaseIndexPartitionIO(varname string, partitionID uint64) {
	vc := c.emplaceVar(varname)
	vc.mu.Lock()
	pe, ok := vc.partitions[partitionID]
	delete(vc.partitions, partitionID)
	vc.mu.Unlock()
	if ok {
		pe.unconditionalRelease()
	}
}

// ReleaseAll unconditionally drops every cached entry (§4.G).
func (c *IndexIOCache) ReleaseAll() {
	c.mu.Lock()
	vars := c.vars
	c.vars = make(map[string]*varCache)
	c.mu.Unlock()

	for _, vc := range vars {
		vc.mu.Lock()
		for _, pe := range vc.partitions {
			pe.unconditionalRelease()
		}
		if vc.indexEntry != nil {
			vc.indexEntry.unconditionalRelease()
		}
		vc.mu.Unlock()
	}
}

// ReleaseUnused weakens every cached entry then re-strengthens those
// still externally held; unreferenced entries are dropped (§4.G).
// Panics if a child IndexPartitionIO survives while its parent IndexIO
// does not — the safety invariant explicitly called out in §4.G, a true
// programming error rather than a condition callers can recover from.
func (c *IndexIOCache) ReleaseUnused() {
	c.mu.Lock()
	vars := make(map[string]*varCache, len(c.vars))
	for k, v := range c.vars {
		vars[k] = v
	}
	c.mu.Unlock()

	for varname, vc := range vars {
		vc.mu.Lock()
		hasPartsOpen := false
		for pid, pe := range vc.partitions {
			if pe.weakenThenMaybeStrengthen() {
				hasPartsOpen = true
			} else {
				delete(vc.partitions, pid)
			}
		}

		indexAlive := vc.indexEntry != nil
		if vc.indexEntry != nil {
			indexAlive = vc.indexEntry.weakenThenMaybeStrengthen()
			if !indexAlive {
				vc.indexEntry = nil
			}
		}
		vc.mu.Unlock()

		if !indexAlive && hasPartsOpen {
			panic(fmt.Sprintf("cache: invariant violated for variable %q: IndexIO closed while a child IndexPartitionIO is still held", varname))
		}
	}
}
