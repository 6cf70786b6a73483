package codec

// Text-safe transform: each 8-bit sample keeps its top 6 bits and is shifted
// into the printable range [32,95]. Output length always equals input length.
// The low 2 bits of every sample are lost.

const textOffset = 32

// EncodeText maps every sample to a printable ASCII byte.
func EncodeText(src []byte) []byte {
	dst := make([]byte, len(src))
	for i, b := range src {
		dst[i] = b>>2 + textOffset
	}
	return dst
}

// DecodeText restores the high 6 bits of every sample; the low 2 bits are zero.
// Bytes outside the printable range wrap rather than fail.
func DecodeText(src []byte) []byte {
	dst := make([]byte, len(src))
	for i, b := range src {
		dst[i] = (b - textOffset) << 2
	}
	return dst
}

// TextCodec is the FrameEncoder for the text-safe variant.
type TextCodec struct{}

// Mode implements FrameEncoder.
func (TextCodec) Mode() Mode { return ModeText }

// EncodeFrame implements FrameEncoder. Dimensions are kept as-is.
func (TextCodec) EncodeFrame(width, height int, pix []byte) (Encoded, error) {
	return Encoded{Width: width, Height: height, Payload: EncodeText(pix), Mode: ModeText}, nil
}
