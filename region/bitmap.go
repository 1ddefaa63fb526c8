package region

import (
	"encoding/binary"
	"math/bits"
)

// BitmapRegion is a packed bit vector stored in 64-bit blocks. Grounded on
// original_source/include/pique/region/bitmap/bitmap.hpp.
type BitmapRegion struct {
	domainSize uint64
	blocks     []uint64
}

func init() {
	RegisterDecoder(BITMAP, decodeBitmap)
	RegisterUniformMaker(BITMAP, func(domainSize uint64, filled bool) Region {
		nblocks := (domainSize + 63) / 64
		blocks := make([]uint64, nblocks)
		if filled {
			for i := range blocks {
				blocks[i] = ^uint64(0)
			}
			maskTail(blocks, domainSize)
		}
		return &BitmapRegion{domainSize: domainSize, blocks: blocks}
	})
	RegisterEncoderMaker(BITMAP, func(totalElements uint64) Encoder { return NewBitmapEncoder(totalElements) })
}

// NewBitmapRegion wraps a pre-built block slice; tail bits beyond
// domainSize are masked to zero.
func NewBitmapRegion(domainSize uint64, blocks []uint64) *BitmapRegion {
	maskTail(blocks, domainSize)
	return &BitmapRegion{domainSize: domainSize, blocks: blocks}
}

func maskTail(blocks []uint64, domainSize uint64) {
	if len(blocks) == 0 {
		return
	}
	used := domainSize % 64
	if used == 0 {
		return
	}
	last := len(blocks) - 1
	blocks[last] &= (uint64(1) << used) - 1
}

func (r *BitmapRegion) Type() Type         { return BITMAP }
func (r *BitmapRegion) DomainSize() uint64 { return r.domainSize }
func (r *BitmapRegion) SizeInBytes() int   { return 8 * len(r.blocks) }

// Blocks exposes the underlying 64-bit word slice (read-only by
// convention).
func (r *BitmapRegion) Blocks() []uint64 { return r.blocks }

// ElementCount pops 24 words at a time in an unrolled loop, as described
// by the spec's "24-word popcount with scalar tail", falling back to a
// per-word tail for the remainder.
func (r *BitmapRegion) ElementCount() uint64 {
	var total uint64
	i := 0
	for ; i+24 <= len(r.blocks); i += 24 {
		for j := 0; j < 24; j++ {
			total += uint64(bits.OnesCount64(r.blocks[i+j]))
		}
	}
	for ; i < len(r.blocks); i++ {
		total += uint64(bits.OnesCount64(r.blocks[i]))
	}
	return total
}

func (r *BitmapRegion) Uniformity() Uniformity {
	n := r.ElementCount()
	switch {
	case n == 0:
		return EMPTY
	case n == r.domainSize:
		return FILLED
	default:
		return MIXED
	}
}

func (r *BitmapRegion) Equal(other Region) bool {
	o, ok := other.(*BitmapRegion)
	if !ok || o.domainSize != r.domainSize || len(o.blocks) != len(r.blocks) {
		return false
	}
	for i := range r.blocks {
		if r.blocks[i] != o.blocks[i] {
			return false
		}
	}
	return true
}

func (r *BitmapRegion) ToRIDs(out []uint64, offset uint64) []uint64 {
	for i, word := range r.blocks {
		base := uint64(i) * 64
		for word != 0 {
			bit := bits.TrailingZeros64(word)
			out = append(out, base+uint64(bit)+offset)
			word &= word - 1
		}
	}
	return out
}

// Serialize: u64 domain_size, u64 length-prefix, u64[] blocks.
func (r *BitmapRegion) Serialize() ([]byte, error) {
	buf := make([]byte, 16+8*len(r.blocks))
	binary.LittleEndian.PutUint64(buf[0:8], r.domainSize)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(len(r.blocks)))
	for i, b := range r.blocks {
		binary.LittleEndian.PutUint64(buf[16+8*i:24+8*i], b)
	}
	return buf, nil
}

func decodeBitmap(_ uint64, data []byte) (Region, int, error) {
	if len(data) < 16 {
		return nil, 0, ErrTruncated
	}
	ds := binary.LittleEndian.Uint64(data[0:8])
	n := binary.LittleEndian.Uint64(data[8:16])
	need := 16 + int(8*n)
	if len(data) < need {
		return nil, 0, ErrTruncated
	}
	blocks := make([]uint64, n)
	for i := range blocks {
		blocks[i] = binary.LittleEndian.Uint64(data[16+8*i : 24+8*i])
	}
	return &BitmapRegion{domainSize: ds, blocks: blocks}, need, nil
}

// BitmapEncoder builds a BitmapRegion from a push-mode bit stream.
type BitmapEncoder struct {
	baseEncoder
	blocks []uint64
	pos    uint64
}

func NewBitmapEncoder(totalElements uint64) *BitmapEncoder {
	e := &BitmapEncoder{blocks: make([]uint64, (totalElements+63)/64)}
	e.baseEncoder = newBaseEncoder(totalElements, e.pushImpl, nil)
	return e
}

func (e *BitmapEncoder) pushImpl(count uint64, bitval bool) {
	if bitval {
		for i := uint64(0); i < count; i++ {
			pos := e.pos + i
			e.blocks[pos/64] |= uint64(1) << (pos % 64)
		}
	}
	e.pos += count
}

func (e *BitmapEncoder) IntoEncoding() Region {
	maskTail(e.blocks, e.total)
	return &BitmapRegion{domainSize: e.total, blocks: e.blocks}
}
