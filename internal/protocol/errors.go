package protocol

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidStart          = errors.New("protocol: invalid start marker")
	ErrUndefinedCommand      = errors.New("protocol: undefined command")
	ErrEndMarkerMismatch     = errors.New("protocol: end marker mismatch")
	ErrCrcMismatch           = errors.New("protocol: crc mismatch")
	ErrTooShort              = errors.New("protocol: frame too short")
	ErrLengthMismatch        = errors.New("protocol: frame length mismatch")
	ErrPayloadLengthMismatch = errors.New("protocol: payload length mismatch")
	ErrUnknownCommand        = errors.New("protocol: unknown command")
	ErrRange                 = errors.New("protocol: value out of range")
)

// ErrorKind names the validation step a frame failed.
type ErrorKind uint8

const (
	KindInvalidStart ErrorKind = iota + 1
	KindUndefinedCommand
	KindEndMarkerMismatch
	KindCrcMismatch
	KindTooShort
	KindLengthMismatch
	KindPayloadLengthMismatch
	KindUnknownCommand
)

var kindSentinels = map[ErrorKind]error{
	KindInvalidStart:          ErrInvalidStart,
	KindUndefinedCommand:      ErrUndefinedCommand,
	KindEndMarkerMismatch:     ErrEndMarkerMismatch,
	KindCrcMismatch:           ErrCrcMismatch,
	KindTooShort:              ErrTooShort,
	KindLengthMismatch:        ErrLengthMismatch,
	KindPayloadLengthMismatch: ErrPayloadLengthMismatch,
	KindUnknownCommand:        ErrUnknownCommand,
}

var kindNames = map[ErrorKind]string{
	KindInvalidStart:          "invalid_start",
	KindUndefinedCommand:      "undefined_command",
	KindEndMarkerMismatch:     "end_marker_mismatch",
	KindCrcMismatch:           "crc_mismatch",
	KindTooShort:              "too_short",
	KindLengthMismatch:        "length_mismatch",
	KindPayloadLengthMismatch: "payload_length_mismatch",
	KindUnknownCommand:        "unknown_command",
}

// String returns the snake_case label used in logs and metrics.
func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind_%d", uint8(k))
}

// FrameError is a structured parse/build failure. Raw carries the offending
// bytes for diagnostics; Expected/Actual are set where a comparison failed.
type FrameError struct {
	Kind     ErrorKind
	Command  uint8
	Raw      []byte
	Expected int
	Actual   int
}

func newFrameError(kind ErrorKind, raw []byte) *FrameError {
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return &FrameError{Kind: kind, Raw: cp}
}

// Error renders one analyzer-style line with the raw bytes in hex.
func (e *FrameError) Error() string {
	var b strings.Builder
	b.WriteString(e.Unwrap().Error())
	switch e.Kind {
	case KindCrcMismatch:
		fmt.Fprintf(&b, ": cmd=0x%02X expected=0x%04X actual=0x%04X", e.Command, e.Expected, e.Actual)
	case KindLengthMismatch, KindPayloadLengthMismatch:
		fmt.Fprintf(&b, ": cmd=0x%02X expected=%d actual=%d", e.Command, e.Expected, e.Actual)
	case KindTooShort:
		fmt.Fprintf(&b, ": need=%d got=%d", e.Expected, e.Actual)
	case KindEndMarkerMismatch:
		fmt.Fprintf(&b, ": cmd=0x%02X expected=0x%02X actual=0x%02X", e.Command, e.Expected, e.Actual)
	case KindUndefinedCommand, KindUnknownCommand:
		fmt.Fprintf(&b, ": cmd=0x%02X", e.Command)
	case KindInvalidStart:
		fmt.Fprintf(&b, ": expected=0x%02X actual=0x%02X", e.Expected, e.Actual)
	}
	if len(e.Raw) > 0 {
		fmt.Fprintf(&b, " raw=[%s]", Hex(e.Raw))
	}
	return b.String()
}

func (e *FrameError) Unwrap() error {
	if err, ok := kindSentinels[e.Kind]; ok {
		return err
	}
	return errors.New("protocol: frame error")
}

// Hex renders b as upper-case, space separated byte pairs.
func Hex(b []byte) string {
	return fmt.Sprintf("% X", b)
}
