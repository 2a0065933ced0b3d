package frame

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/chplink/internal/protocol"
)

// Policy selects how the reassembler recovers after a malformed span.
type Policy int

const (
	// ResyncClear drops the whole receive buffer on any error.
	ResyncClear Policy = iota
	// ResyncScan drops bytes up to the next start marker and keeps parsing.
	ResyncScan
)

func (p Policy) String() string {
	switch p {
	case ResyncScan:
		return "scan"
	default:
		return "clear"
	}
}

// ParsePolicy accepts "clear" or "scan".
func ParsePolicy(raw string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "clear":
		return ResyncClear, nil
	case "scan":
		return ResyncScan, nil
	default:
		return ResyncClear, fmt.Errorf("frame: unknown resync policy %q", raw)
	}
}

// Outcome is either a decoded Frame or the FrameError that replaced it.
type Outcome struct {
	Frame protocol.Frame
	Err   *protocol.FrameError
}

func (o Outcome) IsFrame() bool { return o.Err == nil }

// Reassembler turns arbitrarily chunked bytes into frames. It owns its
// receive buffer and must only be fed from one goroutine.
type Reassembler struct {
	codec  *protocol.Codec
	policy Policy
	buf    []byte
}

func NewReassembler(codec *protocol.Codec, policy Policy) *Reassembler {
	return &Reassembler{codec: codec, policy: policy}
}

// Feed appends p to the receive buffer and returns every outcome that can be
// decided. Waiting for more bytes is never reported.
func (r *Reassembler) Feed(p []byte) []Outcome {
	r.buf = append(r.buf, p...)
	var out []Outcome
	for len(r.buf) > 0 {
		if r.buf[0] != r.codec.Start {
			out = append(out, r.fail(protocol.KindInvalidStart, r.prefix(), func(fe *protocol.FrameError) {
				fe.Expected, fe.Actual = int(r.codec.Start), int(r.buf[0])
			}))
			if !r.resync() {
				break
			}
			continue
		}
		if len(r.buf) < protocol.HeaderLen {
			break
		}

		command, length := r.buf[2], r.buf[3]
		expected, ok := r.codec.Commands.ExpectedLength(command)
		if !ok {
			out = append(out, r.fail(protocol.KindUndefinedCommand, r.prefix(), func(fe *protocol.FrameError) {
				fe.Command = command
			}))
			if !r.resync() {
				break
			}
			continue
		}
		if expected != length {
			out = append(out, r.fail(protocol.KindPayloadLengthMismatch, r.prefix(), func(fe *protocol.FrameError) {
				fe.Command, fe.Expected, fe.Actual = command, int(expected), int(length)
			}))
			if !r.resync() {
				break
			}
			continue
		}

		total := protocol.Overhead + int(length)
		if len(r.buf) < total {
			break
		}
		f, err := r.codec.Decode(r.buf[:total])
		if err != nil {
			var fe *protocol.FrameError
			if !errors.As(err, &fe) {
				fe = &protocol.FrameError{Kind: protocol.KindLengthMismatch, Command: command}
			}
			out = append(out, Outcome{Err: fe})
			if !r.resync() {
				break
			}
			continue
		}
		out = append(out, Outcome{Frame: f})
		r.consume(total)
	}
	return out
}

// Buffered reports bytes held but not yet resolved.
func (r *Reassembler) Buffered() int { return len(r.buf) }

func (r *Reassembler) Reset() { r.buf = r.buf[:0] }

func (r *Reassembler) prefix() []byte {
	n := len(r.buf)
	if n > protocol.DiagnosticPrefixLen {
		n = protocol.DiagnosticPrefixLen
	}
	return r.buf[:n]
}

func (r *Reassembler) fail(kind protocol.ErrorKind, raw []byte, set func(*protocol.FrameError)) Outcome {
	cp := make([]byte, len(raw))
	copy(cp, raw)
	fe := &protocol.FrameError{Kind: kind, Raw: cp}
	if set != nil {
		set(fe)
	}
	return Outcome{Err: fe}
}

// resync drops the bad span and reports whether parsing may continue within
// the current Feed call.
func (r *Reassembler) resync() bool {
	if r.policy != ResyncScan {
		r.Reset()
		return false
	}
	next := bytes.IndexByte(r.buf[1:], r.codec.Start)
	if next < 0 {
		r.Reset()
		return false
	}
	r.consume(next + 1)
	return true
}

func (r *Reassembler) consume(n int) {
	remaining := copy(r.buf, r.buf[n:])
	r.buf = r.buf[:remaining]
}
