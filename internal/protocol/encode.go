package protocol

import (
	"github.com/danmuck/chplink/internal/protocol/schema"
)

// Codec is the immutable protocol configuration shared by every component
// of a session: frame markers plus the command registry.
type Codec struct {
	Start    byte
	End      byte
	Commands *schema.Registry
}

// NewCodec returns a codec with the standard STX/ETX markers. A nil registry
// selects schema.Default().
func NewCodec(commands *schema.Registry) *Codec {
	if commands == nil {
		commands = schema.Default()
	}
	return &Codec{Start: StartMarker, End: EndMarker, Commands: commands}
}

// Encode builds one frame. An empty payload for a command with a non-zero
// registered length is sent as zeros.
func (c *Codec) Encode(sender, command uint8, payload []byte) ([]byte, error) {
	expected, ok := c.Commands.ExpectedLength(command)
	if !ok {
		return nil, &FrameError{Kind: KindUnknownCommand, Command: command}
	}
	if len(payload) == 0 && expected > 0 {
		payload = make([]byte, expected)
	}
	if len(payload) != int(expected) {
		return nil, &FrameError{
			Kind:     KindPayloadLengthMismatch,
			Command:  command,
			Expected: int(expected),
			Actual:   len(payload),
		}
	}

	buf := make([]byte, 0, Overhead+len(payload))
	buf = append(buf, c.Start, sender, command, expected)
	buf = append(buf, payload...)
	crc := CRC16(buf)
	buf = append(buf, byte(crc>>8), byte(crc), c.End)
	return buf, nil
}

// MustEncode is Encode for statically known frames such as the heartbeat.
func (c *Codec) MustEncode(sender, command uint8, payload []byte) []byte {
	b, err := c.Encode(sender, command, payload)
	if err != nil {
		panic(err)
	}
	return b
}

// Raw rebuilds the wire bytes of f with this codec's markers.
func (c *Codec) Raw(f Frame) []byte {
	return f.appendRaw(make([]byte, 0, f.TotalLen()), c.Start, c.End)
}
