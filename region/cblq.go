package region

import (
	"encoding/binary"
)

// cblqCode is the 2-bit per-cell tag of the CBLQ hierarchical tree.
type cblqCode byte

const (
	cblqEmpty cblqCode = 0
	cblqFilled cblqCode = 1
	cblqMixed cblqCode = 2
	cblqDense cblqCode = 3 // mixed, and the remaining subtree is a flat dense bit pattern
)

// cblqNode is the in-memory decoded tree: grounded on
// original_source/include/pique/region/cblq/cblq-encode.hpp (the 2^d-ary
// tree) and util/zo-iter2.hpp (the space-filling-curve linearization,
// here realized directly over the linear RID domain rather than a true
// multi-dimensional grid, since the core's Region contract only exposes
// a flat domain_size — see SPEC_FULL.md's CBLQ entry).
type cblqNode struct {
	code     cblqCode
	start    uint64
	span     uint64
	dense    []bool // populated only when code == cblqDense
	children []*cblqNode
}

// CBLQRegion is a CBLQ{d} hierarchical bitmap for d in {1,2,3,4}.
type CBLQRegion struct {
	d          int
	domainSize uint64
	root       *cblqNode
}

func cblqType(d int) Type {
	switch d {
	case 1:
		return CBLQ1
	case 2:
		return CBLQ2
	case 3:
		return CBLQ3
	default:
		return CBLQ4
	}
}

func init() {
	for d := 1; d <= 4; d++ {
		d := d
		t := cblqType(d)
		RegisterDecoder(t, func(domainSize uint64, data []byte) (Region, int, error) {
			return decodeCBLQ(d, domainSize, data)
		})
		RegisterUniformMaker(t, func(domainSize uint64, filled bool) Region {
			code := cblqEmpty
			if filled {
				code = cblqFilled
			}
			span, _ := cblqTopSpan(d, domainSize)
			return &CBLQRegion{d: d, domainSize: domainSize, root: &cblqNode{code: code, start: 0, span: span}}
		})
		RegisterEncoderMaker(t, func(totalElements uint64) Encoder { return NewCBLQEncoder(d, totalElements) })
	}
}

// cblqTopSpan returns the smallest arity^k (k>=1, arity=2^d) covering
// domainSize, and k.
func cblqTopSpan(d int, domainSize uint64) (uint64, int) {
	arity := uint64(1) << uint(d)
	span := arity
	k := 1
	for span < domainSize {
		span *= arity
		k++
	}
	return span, k
}

// NewCBLQEncoder-facing build entry: construct a CBLQRegion from a dense
// bit predicate (used by both the Encoder and tests).
func buildCBLQ(d int, domainSize uint64, get func(i uint64) bool) *CBLQRegion {
	arity := uint64(1) << uint(d)
	span, _ := cblqTopSpan(d, domainSize)
	root := buildCBLQNode(get, 0, span, arity)
	return &CBLQRegion{d: d, domainSize: domainSize, root: root}
}

func buildCBLQNode(get func(uint64) bool, start, span, arity uint64) *cblqNode {
	uniform, val := scanUniform(get, start, span)
	if uniform {
		code := cblqEmpty
		if val {
			code = cblqFilled
		}
		return &cblqNode{code: code, start: start, span: span}
	}
	if span == arity {
		dense := make([]bool, span)
		for i := uint64(0); i < span; i++ {
			dense[i] = get(start + i)
		}
		return &cblqNode{code: cblqDense, start: start, span: span, dense: dense}
	}
	childSpan := span / arity
	node := &cblqNode{code: cblqMixed, start: start, span: span}
	for c := uint64(0); c < arity; c++ {
		node.children = append(node.children, buildCBLQNode(get, start+c*childSpan, childSpan, arity))
	}
	return node
}

func scanUniform(get func(uint64) bool, start, span uint64) (bool, bool) {
	first := get(start)
	for i := uint64(1); i < span; i++ {
		if get(start+i) != first {
			return false, false
		}
	}
	return true, first
}

func (r *CBLQRegion) Type() Type         { return cblqType(r.d) }
func (r *CBLQRegion) DomainSize() uint64 { return r.domainSize }
func (r *CBLQRegion) Dimension() int     { return r.d }

func (r *CBLQRegion) SizeInBytes() int {
	bits := cblqBitLength(r.root)
	return (bits + 7) / 8
}

func cblqBitLength(n *cblqNode) int {
	switch n.code {
	case cblqDense:
		return 2 + len(n.dense)
	case cblqMixed:
		total := 2
		for _, c := range n.children {
			total += cblqBitLength(c)
		}
		return total
	default:
		return 2
	}
}

func (r *CBLQRegion) ElementCount() uint64 { return cblqCount(r.root) }

func cblqCount(n *cblqNode) uint64 {
	switch n.code {
	case cblqEmpty:
		return 0
	case cblqFilled:
		return n.span
	case cblqDense:
		var c uint64
		for _, b := range n.dense {
			if b {
				c++
			}
		}
		return c
	default: // mixed
		var c uint64
		for _, ch := range n.children {
			c += cblqCount(ch)
		}
		return c
	}
}

func (r *CBLQRegion) Uniformity() Uniformity {
	switch r.root.code {
	case cblqEmpty:
		return EMPTY
	case cblqFilled:
		return FILLED
	default:
		return MIXED
	}
}

func (r *CBLQRegion) Equal(other Region) bool {
	o, ok := other.(*CBLQRegion)
	if !ok || o.d != r.d || o.domainSize != r.domainSize {
		return false
	}
	return cblqNodeEqual(r.root, o.root)
}

func cblqNodeEqual(a, b *cblqNode) bool {
	if a.code != b.code || a.start != b.start || a.span != b.span {
		return false
	}
	switch a.code {
	case cblqDense:
		for i := range a.dense {
			if a.dense[i] != b.dense[i] {
				return false
			}
		}
		return true
	case cblqMixed:
		if len(a.children) != len(b.children) {
			return false
		}
		for i := range a.children {
			if !cblqNodeEqual(a.children[i], b.children[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func (r *CBLQRegion) ToRIDs(out []uint64, offset uint64) []uint64 {
	return cblqToRIDs(r.root, out, offset)
}

// CBLQCell is a terminal (non-mixed) node of the tree: either an entirely
// filled span or a dense leaf bit pattern. Exposed so the convert package
// can materialize a bitmap without reaching into tree internals.
type CBLQCell struct {
	Start, Span uint64
	Filled      bool
	Dense       []bool
}

// CellsDFS visits terminal cells in depth-first pre-order.
func (r *CBLQRegion) CellsDFS() []CBLQCell {
	var out []CBLQCell
	var walk func(n *cblqNode)
	walk = func(n *cblqNode) {
		switch n.code {
		case cblqFilled:
			out = append(out, CBLQCell{Start: n.start, Span: n.span, Filled: true})
		case cblqDense:
			out = append(out, CBLQCell{Start: n.start, Span: n.span, Dense: n.dense})
		case cblqMixed:
			for _, c := range n.children {
				walk(c)
			}
		}
	}
	walk(r.root)
	return out
}

// CellsBFS visits terminal cells in breadth-first, level order. Bit
// content is identical to CellsDFS; only the visiting order differs.
func (r *CBLQRegion) CellsBFS() []CBLQCell {
	var out []CBLQCell
	queue := []*cblqNode{r.root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		switch n.code {
		case cblqFilled:
			out = append(out, CBLQCell{Start: n.start, Span: n.span, Filled: true})
		case cblqDense:
			out = append(out, CBLQCell{Start: n.start, Span: n.span, Dense: n.dense})
		case cblqMixed:
			queue = append(queue, n.children...)
		}
	}
	return out
}

func cblqToRIDs(n *cblqNode, out []uint64, offset uint64) []uint64 {
	switch n.code {
	case cblqEmpty:
		return out
	case cblqFilled:
		for i := uint64(0); i < n.span; i++ {
			out = append(out, n.start+i+offset)
		}
		return out
	case cblqDense:
		for i, b := range n.dense {
			if b {
				out = append(out, n.start+uint64(i)+offset)
			}
		}
		return out
	default:
		for _, c := range n.children {
			out = cblqToRIDs(c, out, offset)
		}
		return out
	}
}

// DFS returns the node codes in depth-first pre-order.
func (r *CBLQRegion) DFS() []cblqCode {
	var out []cblqCode
	var walk func(n *cblqNode)
	walk = func(n *cblqNode) {
		out = append(out, n.code)
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(r.root)
	return out
}

// BFS returns the node codes in breadth-first, level-order.
func (r *CBLQRegion) BFS() []cblqCode {
	var out []cblqCode
	queue := []*cblqNode{r.root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		out = append(out, n.code)
		queue = append(queue, n.children...)
	}
	return out
}

// Serialize: u64 domain_size, u8 dimension d, u64 bit-length, packed
// DFS-order 2-bit codes with inline dense-suffix bit patterns.
func (r *CBLQRegion) Serialize() ([]byte, error) {
	w := &bitWriter{}
	var walk func(n *cblqNode)
	walk = func(n *cblqNode) {
		w.writeBits(uint64(n.code), 2)
		switch n.code {
		case cblqDense:
			for _, b := range n.dense {
				w.writeBit(b)
			}
		case cblqMixed:
			for _, c := range n.children {
				walk(c)
			}
		}
	}
	walk(r.root)

	payload := w.bytes()
	buf := make([]byte, 17+len(payload))
	binary.LittleEndian.PutUint64(buf[0:8], r.domainSize)
	buf[8] = byte(r.d)
	binary.LittleEndian.PutUint64(buf[9:17], uint64(w.nbit))
	copy(buf[17:], payload)
	return buf, nil
}

func decodeCBLQ(d int, domainSize uint64, data []byte) (Region, int, error) {
	if len(data) < 17 {
		return nil, 0, ErrTruncated
	}
	ds := binary.LittleEndian.Uint64(data[0:8])
	// data[8] re-states the dimension; cross-checked against the Type the
	// caller already dispatched on.
	if int(data[8]) != d {
		return nil, 0, ErrUnknownType
	}
	nbits := binary.LittleEndian.Uint64(data[9:17])
	nbytes := (int(nbits) + 7) / 8
	need := 17 + nbytes
	if len(data) < need {
		return nil, 0, ErrTruncated
	}
	rd := &bitReader{buf: data[17:need]}
	arity := uint64(1) << uint(d)
	span, _ := cblqTopSpan(d, ds)

	var decodeNode func(start, span uint64) *cblqNode
	decodeNode = func(start, span uint64) *cblqNode {
		code := cblqCode(rd.readBits(2))
		n := &cblqNode{code: code, start: start, span: span}
		switch code {
		case cblqDense:
			n.dense = make([]bool, span)
			for i := range n.dense {
				n.dense[i] = rd.readBit()
			}
		case cblqMixed:
			childSpan := span / arity
			for c := uint64(0); c < arity; c++ {
				n.children = append(n.children, decodeNode(start+c*childSpan, childSpan))
			}
		}
		return n
	}

	root := decodeNode(0, span)
	return &CBLQRegion{d: d, domainSize: ds, root: root}, need, nil
}

// CBLQEncoder accumulates a dense bit buffer (the simplest correct
// push/insert implementation) and builds the CBLQ tree on Finalize.
type CBLQEncoder struct {
	baseEncoder
	d    int
	bits []bool
	pos  uint64
}

func NewCBLQEncoder(d int, totalElements uint64) *CBLQEncoder {
	e := &CBLQEncoder{d: d, bits: make([]bool, totalElements)}
	e.baseEncoder = newBaseEncoder(totalElements, e.pushImpl, nil)
	return e
}

func (e *CBLQEncoder) pushImpl(count uint64, bitval bool) {
	if bitval {
		for i := uint64(0); i < count; i++ {
			e.bits[e.pos+i] = true
		}
	}
	e.pos += count
}

func (e *CBLQEncoder) IntoEncoding() Region {
	return buildCBLQ(e.d, e.total, func(i uint64) bool {
		if i >= e.total {
			return false
		}
		return e.bits[i]
	})
}
