package protocol

// Decode validates b as exactly one frame. Every failure is a *FrameError
// carrying the raw bytes.
func (c *Codec) Decode(b []byte) (Frame, error) {
	if len(b) < MinFrameLen {
		fe := newFrameError(KindTooShort, b)
		fe.Expected, fe.Actual = MinFrameLen, len(b)
		return Frame{}, fe
	}

	start, sender, command, length := b[0], b[1], b[2], b[3]
	total := Overhead + int(length)
	if len(b) != total {
		fe := newFrameError(KindLengthMismatch, b)
		fe.Command, fe.Expected, fe.Actual = command, total, len(b)
		return Frame{}, fe
	}
	if start != c.Start {
		fe := newFrameError(KindInvalidStart, b)
		fe.Expected, fe.Actual = int(c.Start), int(start)
		return Frame{}, fe
	}
	if end := b[total-1]; end != c.End {
		fe := newFrameError(KindEndMarkerMismatch, b)
		fe.Command, fe.Expected, fe.Actual = command, int(c.End), int(end)
		return Frame{}, fe
	}

	crcAt := HeaderLen + int(length)
	got := uint16(b[crcAt])<<8 | uint16(b[crcAt+1])
	if want := CRC16(b[:crcAt]); want != got {
		fe := newFrameError(KindCrcMismatch, b)
		fe.Command, fe.Expected, fe.Actual = command, int(want), int(got)
		return Frame{}, fe
	}

	expected, ok := c.Commands.ExpectedLength(command)
	if !ok {
		fe := newFrameError(KindUndefinedCommand, b)
		fe.Command = command
		return Frame{}, fe
	}
	if expected != length {
		fe := newFrameError(KindPayloadLengthMismatch, b)
		fe.Command, fe.Expected, fe.Actual = command, int(expected), int(length)
		return Frame{}, fe
	}

	payload := make([]byte, length)
	copy(payload, b[HeaderLen:crcAt])
	return Frame{
		SenderID: sender,
		Command:  command,
		Length:   length,
		Payload:  payload,
		CRC:      got,
	}, nil
}
