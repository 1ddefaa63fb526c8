package region

import (
	"encoding/binary"
	"sort"

	"github.com/samber/lo"
)

// IIRegion is a sorted-array inverted index: the explicit list of RIDs
// present in the region. Grounded on
// original_source/include/pique/region/ii/ii.hpp.
type IIRegion struct {
	domainSize uint64
	rids       []uint32
}

func init() {
	RegisterDecoder(II, decodeII)
	RegisterUniformMaker(II, func(domainSize uint64, filled bool) Region {
		if !filled {
			return &IIRegion{domainSize: domainSize, rids: nil}
		}
		rids := make([]uint32, domainSize)
		for i := range rids {
			rids[i] = uint32(i)
		}
		return &IIRegion{domainSize: domainSize, rids: rids}
	})
	RegisterEncoderMaker(II, func(totalElements uint64) Encoder { return NewIIEncoder(totalElements) })
}

// NewIIRegion wraps an already-sorted, de-duplicated RID slice.
func NewIIRegion(domainSize uint64, sortedRIDs []uint32) *IIRegion {
	return &IIRegion{domainSize: domainSize, rids: sortedRIDs}
}

func (r *IIRegion) Type() Type         { return II }
func (r *IIRegion) DomainSize() uint64 { return r.domainSize }
func (r *IIRegion) SizeInBytes() int   { return 4 * len(r.rids) }
func (r *IIRegion) ElementCount() uint64 {
	return uint64(len(r.rids))
}

func (r *IIRegion) Uniformity() Uniformity {
	switch {
	case len(r.rids) == 0:
		return EMPTY
	case uint64(len(r.rids)) == r.domainSize:
		return FILLED
	default:
		return MIXED
	}
}

func (r *IIRegion) Equal(other Region) bool {
	o, ok := other.(*IIRegion)
	if !ok || o.domainSize != r.domainSize || len(o.rids) != len(r.rids) {
		return false
	}
	for i := range r.rids {
		if r.rids[i] != o.rids[i] {
			return false
		}
	}
	return true
}

func (r *IIRegion) ToRIDs(out []uint64, offset uint64) []uint64 {
	return append(out, lo.Map(r.rids, func(rid uint32, _ int) uint64 {
		return uint64(rid) + offset
	})...)
}

// RIDs exposes the underlying sorted slice (read-only by convention:
// callers must not mutate it, since Region instances are shared).
func (r *IIRegion) RIDs() []uint32 { return r.rids }

// Serialize: u64 domain_size, u64 length-prefix, u32[] rids.
func (r *IIRegion) Serialize() ([]byte, error) {
	buf := make([]byte, 16+4*len(r.rids))
	binary.LittleEndian.PutUint64(buf[0:8], r.domainSize)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(len(r.rids)))
	for i, rid := range r.rids {
		binary.LittleEndian.PutUint32(buf[16+4*i:20+4*i], rid)
	}
	return buf, nil
}

func decodeII(domainSize uint64, data []byte) (Region, int, error) {
	if len(data) < 16 {
		return nil, 0, ErrTruncated
	}
	ds := binary.LittleEndian.Uint64(data[0:8])
	n := binary.LittleEndian.Uint64(data[8:16])
	need := 16 + int(4*n)
	if len(data) < need {
		return nil, 0, ErrTruncated
	}
	rids := make([]uint32, n)
	for i := range rids {
		rids[i] = binary.LittleEndian.Uint32(data[16+4*i : 20+4*i])
	}
	return &IIRegion{domainSize: ds, rids: rids}, need, nil
}

// IIEncoder builds an IIRegion from a push-mode bit stream.
type IIEncoder struct {
	baseEncoder
	rids []uint32
	pos  uint64
}

// NewIIEncoder constructs an encoder for a domain of totalElements bits.
func NewIIEncoder(totalElements uint64) *IIEncoder {
	e := &IIEncoder{rids: make([]uint32, 0, 64)}
	e.baseEncoder = newBaseEncoder(totalElements, e.pushImpl, nil)
	return e
}

func (e *IIEncoder) pushImpl(count uint64, bitval bool) {
	if bitval {
		for i := uint64(0); i < count; i++ {
			e.rids = append(e.rids, uint32(e.pos+i))
		}
	}
	e.pos += count
}

func (e *IIEncoder) IntoEncoding() Region {
	sort.Slice(e.rids, func(i, j int) bool { return e.rids[i] < e.rids[j] })
	return &IIRegion{domainSize: e.total, rids: e.rids}
}
