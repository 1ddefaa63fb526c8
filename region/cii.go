package region

import (
	"encoding/binary"
	"sort"

	"github.com/samber/lo"
)

// ciiChunkSize is the number of RIDs packed per PForDelta-style chunk.
// The source ties this to patchedframeofreference's internal block size;
// PIQUE-Go defines its own fixed chunk length instead (§9: a fresh
// implementation should define its own wire format).
const ciiChunkSize = 128

const (
	ciiFlagCompressed byte = 1 << 0
	ciiFlagInverted   byte = 1 << 1
)

// CIIRegion is a compressed inverted index: sorted RIDs stored either as
// a raw u32 vector ("decompressed") or as fixed-size delta+varint chunks
// ("compressed"), plus an is_inverted flag meaning the stored RID set is
// the complement of the region actually represented (a cheap NOT).
// Grounded on original_source/include/pique/region/cii/cii.hpp.
type CIIRegion struct {
	domainSize   uint64
	isInverted   bool
	isCompressed bool
	rids         []uint32 // valid when !isCompressed
	chunked      []byte   // valid when isCompressed
}

func init() {
	RegisterDecoder(CII, decodeCII)
	RegisterUniformMaker(CII, func(domainSize uint64, filled bool) Region {
		// An empty stored set, inverted iff the region should read as
		// filled: NOT(empty) == filled.
		return &CIIRegion{domainSize: domainSize, isInverted: filled}
	})
	RegisterEncoderMaker(CII, func(totalElements uint64) Encoder { return NewCIIEncoder(totalElements) })
}

// NewCIIRegion wraps a sorted, de-duplicated RID slice in decompressed
// form with the given inversion flag.
func NewCIIRegion(domainSize uint64, sortedRIDs []uint32, inverted bool) *CIIRegion {
	return &CIIRegion{domainSize: domainSize, rids: sortedRIDs, isInverted: inverted}
}

func (r *CIIRegion) Type() Type         { return CII }
func (r *CIIRegion) DomainSize() uint64 { return r.domainSize }
func (r *CIIRegion) IsInverted() bool   { return r.isInverted }
func (r *CIIRegion) IsCompressedForm() bool { return r.isCompressed }

func (r *CIIRegion) SizeInBytes() int {
	if r.isCompressed {
		return len(r.chunked)
	}
	return 4 * len(r.rids)
}

func (r *CIIRegion) storedCount() uint64 {
	if r.isCompressed {
		return uint64(decodedChunkCount(r.chunked))
	}
	return uint64(len(r.rids))
}

func (r *CIIRegion) ElementCount() uint64 {
	n := r.storedCount()
	if r.isInverted {
		return r.domainSize - n
	}
	return n
}

func (r *CIIRegion) Uniformity() Uniformity {
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

// StoredRIDs returns the sorted RID vector as stored (i.e., the
// complement of the represented set when IsInverted is true),
// decompressing lazily if needed.
func (r *CIIRegion) StoredRIDs() []uint32 {
	if r.isCompressed {
		return decodeChunks(r.chunked)
	}
	return r.rids
}

// Decompress transitions the region into decompressed (raw u32 vector)
// form in place.
func (r *CIIRegion) Decompress() {
	if !r.isCompressed {
		return
	}
	r.rids = decodeChunks(r.chunked)
	r.chunked = nil
	r.isCompressed = false
}

// Compress transitions the region into chunked compressed form in place.
func (r *CIIRegion) Compress() {
	if r.isCompressed {
		return
	}
	r.chunked = encodeChunks(r.rids)
	r.rids = nil
	r.isCompressed = true
}

func (r *CIIRegion) Equal(other Region) bool {
	o, ok := other.(*CIIRegion)
	if !ok || o.domainSize != r.domainSize || o.isInverted != r.isInverted {
		return false
	}
	a, b := r.StoredRIDs(), o.StoredRIDs()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (r *CIIRegion) ToRIDs(out []uint64, offset uint64) []uint64 {
	stored := r.StoredRIDs()
	if !r.isInverted {
		return append(out, lo.Map(stored, func(rid uint32, _ int) uint64 { return uint64(rid) + offset })...)
	}
	// represented set is the complement of stored
	skip := make(map[uint32]struct{}, len(stored))
	for _, rid := range stored {
		skip[rid] = struct{}{}
	}
	for rid := uint32(0); uint64(rid) < r.domainSize; rid++ {
		if _, found := skip[rid]; !found {
			out = append(out, uint64(rid)+offset)
		}
	}
	return out
}

// Serialize: u8 flags, u32 domain_size, u64 length-prefix, payload
// (chunked bytes if compressed, else raw u32 rids).
func (r *CIIRegion) Serialize() ([]byte, error) {
	var flags byte
	if r.isCompressed {
		flags |= ciiFlagCompressed
	}
	if r.isInverted {
		flags |= ciiFlagInverted
	}

	var payload []byte
	if r.isCompressed {
		payload = r.chunked
	} else {
		payload = make([]byte, 4*len(r.rids))
		for i, rid := range r.rids {
			binary.LittleEndian.PutUint32(payload[4*i:4*i+4], rid)
		}
	}

	buf := make([]byte, 13+len(payload))
	buf[0] = flags
	binary.LittleEndian.PutUint32(buf[1:5], uint32(r.domainSize))
	binary.LittleEndian.PutUint64(buf[5:13], uint64(len(payload)))
	copy(buf[13:], payload)
	return buf, nil
}

func decodeCII(_ uint64, data []byte) (Region, int, error) {
	if len(data) < 13 {
		return nil, 0, ErrTruncated
	}
	flags := data[0]
	ds := uint64(binary.LittleEndian.Uint32(data[1:5]))
	n := binary.LittleEndian.Uint64(data[5:13])
	need := 13 + int(n)
	if len(data) < need {
		return nil, 0, ErrTruncated
	}
	payload := data[13:need]
	r := &CIIRegion{
		domainSize:   ds,
		isInverted:   flags&ciiFlagInverted != 0,
		isCompressed: flags&ciiFlagCompressed != 0,
	}
	if r.isCompressed {
		r.chunked = append([]byte(nil), payload...)
	} else {
		rids := make([]uint32, len(payload)/4)
		for i := range rids {
			rids[i] = binary.LittleEndian.Uint32(payload[4*i : 4*i+4])
		}
		r.rids = rids
	}
	return r, need, nil
}

// encodeChunks packs a sorted RID vector into fixed-size delta+varint
// chunks: per chunk, u32 count, then the first RID raw, then (count-1)
// uvarint deltas from the previous RID.
func encodeChunks(rids []uint32) []byte {
	out := make([]byte, 0, 4*len(rids)/2+8)
	var tmp [10]byte
	for start := 0; start < len(rids); start += ciiChunkSize {
		end := start + ciiChunkSize
		if end > len(rids) {
			end = len(rids)
		}
		chunk := rids[start:end]
		var hdr [4]byte
		binary.LittleEndian.PutUint32(hdr[:], uint32(len(chunk)))
		out = append(out, hdr[:]...)
		var prev [4]byte
		binary.LittleEndian.PutUint32(prev[:], chunk[0])
		out = append(out, prev[:]...)
		last := chunk[0]
		for _, rid := range chunk[1:] {
			n := binary.PutUvarint(tmp[:], uint64(rid-last))
			out = append(out, tmp[:n]...)
			last = rid
		}
	}
	return out
}

func decodeChunks(data []byte) []uint32 {
	out := make([]uint32, 0, len(data)/2)
	pos := 0
	for pos < len(data) {
		count := binary.LittleEndian.Uint32(data[pos : pos+4])
		pos += 4
		first := binary.LittleEndian.Uint32(data[pos : pos+4])
		pos += 4
		out = append(out, first)
		last := first
		for i := uint32(1); i < count; i++ {
			delta, n := binary.Uvarint(data[pos:])
			pos += n
			last += uint32(delta)
			out = append(out, last)
		}
	}
	return out
}

func decodedChunkCount(data []byte) int {
	total := 0
	pos := 0
	for pos < len(data) {
		count := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
		total += count
		pos += 4 + 4 // count header + first rid, both fixed-width
		for i := 1; i < count; i++ {
			_, n := binary.Uvarint(data[pos:])
			pos += n
		}
	}
	return total
}

// CIIEncoder builds a CIIRegion (decompressed form, non-inverted) from a
// push-mode bit stream.
type CIIEncoder struct {
	baseEncoder
	rids []uint32
	pos  uint64
}

func NewCIIEncoder(totalElements uint64) *CIIEncoder {
	e := &CIIEncoder{rids: make([]uint32, 0, 64)}
	e.baseEncoder = newBaseEncoder(totalElements, e.pushImpl, nil)
	return e
}

func (e *CIIEncoder) pushImpl(count uint64, bitval bool) {
	if bitval {
		for i := uint64(0); i < count; i++ {
			e.rids = append(e.rids, uint32(e.pos+i))
		}
	}
	e.pos += count
}

func (e *CIIEncoder) IntoEncoding() Region {
	sort.Slice(e.rids, func(i, j int) bool { return e.rids[i] < e.rids[j] })
	return &CIIRegion{domainSize: e.total, rids: e.rids}
}
