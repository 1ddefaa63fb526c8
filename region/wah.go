package region

import (
	"encoding/binary"
)

// wahGroupBits is the literal-group width WAH packs per 32-bit word: one
// bit is reserved as the literal/fill tag, so 31 bits of payload remain.
// Grounded on original_source/include/pique/region/wah/wah.hpp, but with
// PIQUE-Go's own explicit wire format (§9: the source's FastBit-specific
// layout is flagged as not to be carried over).
const wahGroupBits = 31

const (
	wahFillTag   uint32 = 1 << 31
	wahFillValue uint32 = 1 << 30
	wahFillMask  uint32 = (1 << 30) - 1
	wahLitMask   uint32 = (1 << 31) - 1
)

// WAHRegion is a word-aligned hybrid run-length compressed bitmap: a
// sequence of 32-bit words, each either a literal 31-bit group or a fill
// run of identical 31-bit groups.
type WAHRegion struct {
	domainSize uint64
	words      []uint32
}

func init() {
	RegisterDecoder(WAH, decodeWAH)
	RegisterUniformMaker(WAH, func(domainSize uint64, filled bool) Region {
		ngroups := (domainSize + wahGroupBits - 1) / wahGroupBits
		if ngroups == 0 {
			return &WAHRegion{domainSize: domainSize}
		}
		w := wahFillTag | uint32(ngroups)
		if filled {
			w |= wahFillValue
		}
		return &WAHRegion{domainSize: domainSize, words: []uint32{w}}
	})
	RegisterEncoderMaker(WAH, func(totalElements uint64) Encoder { return NewWAHEncoder(totalElements) })
}

func (r *WAHRegion) Type() Type         { return WAH }
func (r *WAHRegion) DomainSize() uint64 { return r.domainSize }
func (r *WAHRegion) SizeInBytes() int   { return 4 * len(r.words) }
func (r *WAHRegion) Words() []uint32    { return r.words }

func (r *WAHRegion) ElementCount() uint64 {
	blocks := WAHToBitmapBlocks(r.words, r.domainSize)
	var total uint64
	for _, b := range blocks {
		total += uint64(popcount64(b))
	}
	return total
}

func (r *WAHRegion) Uniformity() Uniformity {
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

func (r *WAHRegion) Equal(other Region) bool {
	o, ok := other.(*WAHRegion)
	if !ok || o.domainSize != r.domainSize || len(o.words) != len(r.words) {
		return false
	}
	for i := range r.words {
		if r.words[i] != o.words[i] {
			return false
		}
	}
	return true
}

func (r *WAHRegion) ToRIDs(out []uint64, offset uint64) []uint64 {
	blocks := WAHToBitmapBlocks(r.words, r.domainSize)
	bm := &BitmapRegion{domainSize: r.domainSize, blocks: blocks}
	return bm.ToRIDs(out, offset)
}

// Serialize: u64 domain_size, u64 length-prefix, u32[] words.
func (r *WAHRegion) Serialize() ([]byte, error) {
	buf := make([]byte, 16+4*len(r.words))
	binary.LittleEndian.PutUint64(buf[0:8], r.domainSize)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(len(r.words)))
	for i, w := range r.words {
		binary.LittleEndian.PutUint32(buf[16+4*i:20+4*i], w)
	}
	return buf, nil
}

func decodeWAH(_ uint64, data []byte) (Region, int, error) {
	if len(data) < 16 {
		return nil, 0, ErrTruncated
	}
	ds := binary.LittleEndian.Uint64(data[0:8])
	n := binary.LittleEndian.Uint64(data[8:16])
	need := 16 + int(4*n)
	if len(data) < need {
		return nil, 0, ErrTruncated
	}
	words := make([]uint32, n)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[16+4*i : 20+4*i])
	}
	return &WAHRegion{domainSize: ds, words: words}, need, nil
}

// bitmapToWAH compresses a bitmap's 64-bit blocks into WAH words by
// regrouping the bitstream into 31-bit literal groups and merging runs
// of identical all-0/all-1 groups into fill words.
func bitmapToWAH(blocks []uint64, domainSize uint64) []uint32 {
	ngroups := int((domainSize + wahGroupBits - 1) / wahGroupBits)
	words := make([]uint32, 0, ngroups)

	var fillVal uint32 = 2 // sentinel: no active fill
	var fillRun uint32

	flushFill := func() {
		if fillRun > 0 {
			w := wahFillTag | fillRun
			if fillVal == 1 {
				w |= wahFillValue
			}
			words = append(words, w)
			fillRun = 0
			fillVal = 2
		}
	}

	for g := 0; g < ngroups; g++ {
		group := extractBitGroup(blocks, uint64(g)*wahGroupBits, wahGroupBits, domainSize)
		switch group {
		case 0:
			if fillVal == 0 {
				fillRun++
			} else {
				flushFill()
				fillVal, fillRun = 0, 1
			}
		case wahLitMask:
			if fillVal == 1 {
				fillRun++
			} else {
				flushFill()
				fillVal, fillRun = 1, 1
			}
		default:
			flushFill()
			words = append(words, group&wahLitMask)
		}
	}
	flushFill()
	return words
}

// extractBitGroup reads width bits starting at bit offset `start` out of
// a BitmapRegion-style block slice, treating bits beyond domainSize as 0.
func extractBitGroup(blocks []uint64, start uint64, width uint64, domainSize uint64) uint32 {
	var group uint32
	for i := uint64(0); i < width; i++ {
		bitpos := start + i
		if bitpos >= domainSize {
			continue
		}
		word := blocks[bitpos/64]
		if word&(uint64(1)<<(bitpos%64)) != 0 {
			group |= 1 << i
		}
	}
	return group
}

// WAHToBitmapBlocks expands a WAH word stream back into 64-bit bitmap
// blocks, the inverse of bitmapToWAH.
func WAHToBitmapBlocks(words []uint32, domainSize uint64) []uint64 {
	blocks := make([]uint64, (domainSize+63)/64)
	pos := uint64(0)
	setGroup := func(val uint32, width uint64) {
		for i := uint64(0); i < width && pos+i < domainSize; i++ {
			if val&(1<<i) != 0 {
				bitpos := pos + i
				blocks[bitpos/64] |= uint64(1) << (bitpos % 64)
			}
		}
		pos += width
	}
	for _, w := range words {
		if w&wahFillTag != 0 {
			run := w & wahFillMask
			var val uint32
			if w&wahFillValue != 0 {
				val = wahLitMask
			}
			for i := uint32(0); i < run; i++ {
				setGroup(val, wahGroupBits)
			}
		} else {
			setGroup(w&wahLitMask, wahGroupBits)
		}
	}
	return blocks
}

func popcount64(v uint64) int {
	count := 0
	for v != 0 {
		v &= v - 1
		count++
	}
	return count
}

// WAHEncoder builds a WAHRegion by first accumulating a full bitmap (the
// simplest correct push/insert implementation) and compressing to WAH
// words on Finalize.
type WAHEncoder struct {
	baseEncoder
	blocks []uint64
	pos    uint64
}

func NewWAHEncoder(totalElements uint64) *WAHEncoder {
	e := &WAHEncoder{blocks: make([]uint64, (totalElements+63)/64)}
	e.baseEncoder = newBaseEncoder(totalElements, e.pushImpl, nil)
	return e
}

func (e *WAHEncoder) pushImpl(count uint64, bitval bool) {
	if bitval {
		for i := uint64(0); i < count; i++ {
			p := e.pos + i
			e.blocks[p/64] |= uint64(1) << (p % 64)
		}
	}
	e.pos += count
}

func (e *WAHEncoder) IntoEncoding() Region {
	maskTail(e.blocks, e.total)
	return &WAHRegion{domainSize: e.total, words: bitmapToWAH(e.blocks, e.total)}
}
