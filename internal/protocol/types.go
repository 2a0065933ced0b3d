package protocol

// Wire layout:
//
//	START(0x02) | SENDER(1) | CMD(1) | LEN(1) | PAYLOAD(LEN) | CRC_HI | CRC_LO | END(0x03)
const (
	StartMarker byte = 0x02
	EndMarker   byte = 0x03

	HeaderLen   = 4
	CRCLen      = 2
	Overhead    = HeaderLen + CRCLen + 1
	MinFrameLen = Overhead
	// DiagnosticPrefixLen bounds the raw bytes attached to InvalidStart and
	// UndefinedCommand errors.
	DiagnosticPrefixLen = 10
)

// Logical addresses used by the source domain. The engine treats sender ids
// as opaque.
const (
	SenderPC    uint8 = 0x01
	SenderMain  uint8 = 0x02
	SenderFront uint8 = 0x03
)

// Frame is one complete, CRC-validated message.
type Frame struct {
	SenderID uint8
	Command  uint8
	Length   uint8
	Payload  []byte
	CRC      uint16
}

// TotalLen returns the encoded size of f.
func (f Frame) TotalLen() int {
	return Overhead + int(f.Length)
}

// Raw rebuilds the wire bytes of f with its stored CRC, framed by the
// standard StartMarker and EndMarker. Use Codec.Raw for a codec with other
// markers.
func (f Frame) Raw() []byte {
	return f.appendRaw(nil, StartMarker, EndMarker)
}

func (f Frame) appendRaw(dst []byte, start, end byte) []byte {
	dst = append(dst, start, f.SenderID, f.Command, f.Length)
	dst = append(dst, f.Payload...)
	return append(dst, byte(f.CRC>>8), byte(f.CRC), end)
}
