package region

// encoderMaker constructs a fresh push-mode Encoder for a Type, sized to
// total elements.
type encoderMaker func(totalElements uint64) Encoder

var encoderMakers = map[Type]encoderMaker{}

// RegisterEncoderMaker installs the Encoder constructor for a Type.
// Called from each encoding's init(), alongside RegisterDecoder and
// RegisterUniformMaker.
func RegisterEncoderMaker(t Type, m encoderMaker) {
	encoderMakers[t] = m
}

// NewEncoder returns a fresh Encoder for t sized to totalElements, the
// builder's single entry point for producing a region of whatever
// RegionEncoding an index partition is configured to use without
// switching on Type itself.
func NewEncoder(t Type, totalElements uint64) (Encoder, error) {
	m, ok := encoderMakers[t]
	if !ok {
		return nil, ErrUnknownType
	}
	return m(totalElements), nil
}
