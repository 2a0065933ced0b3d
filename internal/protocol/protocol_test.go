package protocol

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/danmuck/chplink/internal/protocol/schema"
	"github.com/danmuck/chplink/internal/testutil/testlog"
)

func TestCRC16KnownVectors(t *testing.T) {
	testlog.Start(t)
	if got := CRC16(nil); got != 0x0000 {
		t.Fatalf("empty crc got=0x%04X", got)
	}
	if got := CRC16([]byte("123456789")); got != 0x31C3 {
		t.Fatalf("check value got=0x%04X want=0x31C3", got)
	}
	in := []byte{0x02, 0x01, 0x0F, 0x00}
	if CRC16(in) != CRC16(append([]byte(nil), in...)) {
		t.Fatalf("crc not deterministic")
	}
}

func TestSignedByteRoundTrip(t *testing.T) {
	testlog.Start(t)
	for v := SignedByteMin; v <= SignedByteMax; v++ {
		b, err := EncodeSignedByte(v)
		if err != nil {
			t.Fatalf("encode %d: %v", v, err)
		}
		if got := DecodeSignedByte(b); got != v {
			t.Fatalf("round trip %d -> 0x%02X -> %d", v, b, got)
		}
	}
	if b, _ := EncodeSignedByte(-5); b != 0x85 {
		t.Fatalf("-5 encoded as 0x%02X", b)
	}
}

func TestSignedByteRange(t *testing.T) {
	testlog.Start(t)
	for _, v := range []int{128, -128, 1000} {
		_, err := EncodeSignedByte(v)
		if !errors.Is(err, ErrRange) {
			t.Fatalf("value %d: expected ErrRange, got %v", v, err)
		}
		var re *RangeError
		if !errors.As(err, &re) || re.Value != v {
			t.Fatalf("value %d: unexpected error %v", v, err)
		}
	}
	for b := 0; b <= 0xFF; b++ {
		v := DecodeSignedByte(byte(b))
		if v < SignedByteMin || v > SignedByteMax {
			t.Fatalf("byte 0x%02X decoded out of range: %d", b, v)
		}
	}
}

func TestUint16Pair(t *testing.T) {
	testlog.Start(t)
	buf := make([]byte, 2)
	PutUint16(buf, 0x1234)
	if buf[0] != 0x12 || buf[1] != 0x34 {
		t.Fatalf("unexpected order: % X", buf)
	}
	v, err := Uint16(buf)
	if err != nil || v != 0x1234 {
		t.Fatalf("uint16 got=0x%04X err=%v", v, err)
	}
	if _, err := Uint16([]byte{1}); err == nil {
		t.Fatalf("expected short input error")
	}
}

func TestEncodeHeartbeatExactBytes(t *testing.T) {
	testlog.Start(t)
	c := NewCodec(nil)
	got, err := c.Encode(SenderPC, schema.CmdHeartbeat, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{0x02, 0x01, 0x0F, 0x00, 0xCA, 0x66, 0x03}
	if !bytes.Equal(got, want) {
		t.Fatalf("heartbeat got=[% X] want=[% X]", got, want)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	testlog.Start(t)
	c := NewCodec(nil)
	for _, e := range c.Commands.Entries() {
		payload := make([]byte, e.Length)
		for i := range payload {
			payload[i] = byte(i*7 + int(e.Command))
		}
		raw, err := c.Encode(SenderMain, e.Command, payload)
		if err != nil {
			t.Fatalf("encode 0x%02X: %v", e.Command, err)
		}
		if len(raw) != Overhead+int(e.Length) {
			t.Fatalf("encode 0x%02X: len=%d", e.Command, len(raw))
		}
		f, err := c.Decode(raw)
		if err != nil {
			t.Fatalf("decode 0x%02X: %v", e.Command, err)
		}
		if f.SenderID != SenderMain || f.Command != e.Command || !bytes.Equal(f.Payload, payload) {
			t.Fatalf("round trip mismatch: %+v", f)
		}
		if !bytes.Equal(f.Raw(), raw) {
			t.Fatalf("raw rebuild mismatch for 0x%02X", e.Command)
		}
	}
}

func TestCodecRawUsesCodecMarkers(t *testing.T) {
	testlog.Start(t)
	c := NewCodec(nil)
	c.Start, c.End = 0xAA, 0x55
	raw, err := c.Encode(SenderMain, schema.CmdDrainPumpChange, []byte{0x01})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f, err := c.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := c.Raw(f); !bytes.Equal(got, raw) {
		t.Fatalf("codec raw got=[%s] want=[%s]", Hex(got), Hex(raw))
	}
	std := f.Raw()
	if std[0] != StartMarker || std[len(std)-1] != EndMarker || !bytes.Equal(std[1:len(std)-1], raw[1:len(raw)-1]) {
		t.Fatalf("frame raw should use the standard markers: [%s]", Hex(std))
	}
}

func TestEncodeZeroFillsEmptyPayload(t *testing.T) {
	testlog.Start(t)
	c := NewCodec(nil)
	raw, err := c.Encode(SenderPC, schema.CmdCommonStatus, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f, err := c.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(f.Payload, make([]byte, 40)) {
		t.Fatalf("expected 40 zero bytes, got % X", f.Payload)
	}
}

func TestEncodeErrors(t *testing.T) {
	testlog.Start(t)
	c := NewCodec(nil)
	if _, err := c.Encode(SenderPC, 0x55, nil); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
	_, err := c.Encode(SenderPC, schema.CmdDrainPumpChange, []byte{1, 2})
	if !errors.Is(err, ErrPayloadLengthMismatch) {
		t.Fatalf("expected ErrPayloadLengthMismatch, got %v", err)
	}
	var fe *FrameError
	if !errors.As(err, &fe) || fe.Expected != 1 || fe.Actual != 2 {
		t.Fatalf("unexpected frame error: %+v", fe)
	}
}

func TestDecodeFailures(t *testing.T) {
	testlog.Start(t)
	c := NewCodec(nil)
	valid := c.MustEncode(SenderPC, schema.CmdDrainPumpChange, []byte{0x01})

	badStart := append([]byte(nil), valid...)
	badStart[0] = 0x7E
	badEnd := append([]byte(nil), valid...)
	badEnd[len(badEnd)-1] = 0x04
	unknown := []byte{0x02, 0x01, 0x55, 0x00}
	crc := CRC16(unknown)
	unknown = append(unknown, byte(crc>>8), byte(crc), 0x03)

	cases := []struct {
		name string
		in   []byte
		want error
	}{
		{"too short", valid[:6], ErrTooShort},
		{"length mismatch", append(append([]byte(nil), valid...), 0x00), ErrLengthMismatch},
		{"invalid start", badStart, ErrInvalidStart},
		{"invalid end", badEnd, ErrEndMarkerMismatch},
		{"undefined command", unknown, ErrUndefinedCommand},
	}
	for _, tc := range cases {
		_, err := c.Decode(tc.in)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		var fe *FrameError
		if !errors.As(err, &fe) || len(fe.Raw) == 0 {
			t.Fatalf("%s: missing raw diagnostics: %v", tc.name, err)
		}
	}
}

func TestDecodeDetectsEveryPayloadBitFlip(t *testing.T) {
	testlog.Start(t)
	c := NewCodec(nil)
	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = byte(i)
	}
	valid := c.MustEncode(SenderPC, schema.CmdValveChange, payload)
	for i := HeaderLen; i < HeaderLen+len(payload); i++ {
		for bit := 0; bit < 8; bit++ {
			corrupt := append([]byte(nil), valid...)
			corrupt[i] ^= 1 << bit
			if _, err := c.Decode(corrupt); !errors.Is(err, ErrCrcMismatch) {
				t.Fatalf("byte %d bit %d: expected ErrCrcMismatch, got %v", i, bit, err)
			}
		}
	}
}

func TestFrameErrorRendersHex(t *testing.T) {
	testlog.Start(t)
	fe := &FrameError{Kind: KindInvalidStart, Raw: []byte{0xAA, 0x02, 0x01}, Expected: 0x02, Actual: 0xAA}
	msg := fe.Error()
	if !strings.Contains(msg, "invalid start marker") || !strings.Contains(msg, "raw=[AA 02 01]") {
		t.Fatalf("unexpected rendering: %q", msg)
	}
	if strings.Contains(msg, "\n") {
		t.Fatalf("diagnostic must be one line: %q", msg)
	}
	if KindCrcMismatch.String() != "crc_mismatch" {
		t.Fatalf("unexpected kind label: %s", KindCrcMismatch)
	}
}
