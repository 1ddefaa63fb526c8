package binning

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Kind tags a Specification's concrete variant for the on-disk
// binning_spec_blob (§6: "Index file format... binning_spec_blob").
type Kind uint8

const (
	SigBitsKind Kind = iota
	PrecisionKind
	ExplicitBinsKind
)

// ErrUnknownKind is a configuration error: a binning_spec_blob named a
// Kind byte this package does not recognize.
var ErrUnknownKind = errors.New("binning: unknown specification kind")

// Serialize writes spec's self-delimited wire form: a leading Kind
// byte followed by the variant's parameters, little-endian throughout.
// A partition persists its binning spec so the engine can reproduce the
// quantizer at query time without replaying the build-time value stream.
func Serialize(spec Specification) ([]byte, error) {
	switch s := spec.(type) {
	case *SigBits:
		return []byte{byte(SigBitsKind), byte(s.bits)}, nil
	case *Precision:
		buf := make([]byte, 0, 10+8*len(s.sortedValues))
		buf = append(buf, byte(PrecisionKind), byte(s.digits))
		buf = appendU64(buf, uint64(len(s.sortedValues)))
		for _, v := range s.sortedValues {
			buf = appendU64(buf, math.Float64bits(v))
		}
		return buf, nil
	case *ExplicitBins:
		buf := make([]byte, 0, 9+8*len(s.boundaries))
		buf = append(buf, byte(ExplicitBinsKind))
		buf = appendU64(buf, uint64(len(s.boundaries)))
		for _, v := range s.boundaries {
			buf = appendU64(buf, math.Float64bits(v))
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("binning: serialize: unsupported specification type %T", spec)
	}
}

// Deserialize reconstructs a Specification from its wire form, returning
// the number of bytes consumed.
func Deserialize(data []byte) (Specification, int, error) {
	if len(data) < 1 {
		return nil, 0, fmt.Errorf("%w: empty blob", ErrUnknownKind)
	}
	switch Kind(data[0]) {
	case SigBitsKind:
		if len(data) < 2 {
			return nil, 0, fmt.Errorf("%w: truncated sigbits blob", ErrUnknownKind)
		}
		return NewSigBits(int(data[1])), 2, nil
	case PrecisionKind:
		if len(data) < 10 {
			return nil, 0, fmt.Errorf("%w: truncated precision blob", ErrUnknownKind)
		}
		digits := int(data[1])
		n := binary.LittleEndian.Uint64(data[2:10])
		pos := 10
		p := NewPrecision(digits)
		values := make([]float64, n)
		for i := uint64(0); i < n; i++ {
			if pos+8 > len(data) {
				return nil, 0, fmt.Errorf("%w: truncated precision values", ErrUnknownKind)
			}
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[pos : pos+8]))
			pos += 8
		}
		p.sortedValues = values
		p.keyOf = make(map[float64]int, len(values))
		for i, v := range values {
			p.keyOf[v] = i
		}
		return p, pos, nil
	case ExplicitBinsKind:
		if len(data) < 9 {
			return nil, 0, fmt.Errorf("%w: truncated explicit-bins blob", ErrUnknownKind)
		}
		n := binary.LittleEndian.Uint64(data[1:9])
		pos := 9
		boundaries := make([]float64, n)
		for i := uint64(0); i < n; i++ {
			if pos+8 > len(data) {
				return nil, 0, fmt.Errorf("%w: truncated explicit-bins boundaries", ErrUnknownKind)
			}
			boundaries[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[pos : pos+8]))
			pos += 8
		}
		return &ExplicitBins{boundaries: boundaries}, pos, nil
	default:
		return nil, 0, fmt.Errorf("%w: %d", ErrUnknownKind, data[0])
	}
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}
