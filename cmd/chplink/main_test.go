package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/chplink/internal/config"
	"github.com/danmuck/chplink/internal/protocol"
	"github.com/danmuck/chplink/internal/protocol/schema"
	"github.com/danmuck/chplink/internal/protocol/session"
	"github.com/danmuck/chplink/internal/testutil/testlog"
)

func TestParseCommandID(t *testing.T) {
	testlog.Start(t)
	cases := map[string]uint8{"0xA0": 0xA0, "0XF1": 0xF1, "f0": 0xF0, "15": 15, " 0x0f ": 0x0F}
	for raw, want := range cases {
		got, err := parseCommandID(raw)
		if err != nil || got != want {
			t.Fatalf("parseCommandID(%q)=%#x,%v want %#x", raw, got, err, want)
		}
	}
	for _, raw := range []string{"", "0x100", "pump"} {
		if _, err := parseCommandID(raw); err == nil {
			t.Fatalf("parseCommandID(%q) should fail", raw)
		}
	}
}

func TestParsePayload(t *testing.T) {
	testlog.Start(t)
	got, err := parsePayload("01 02:0a-FF")
	if err != nil || !bytes.Equal(got, []byte{0x01, 0x02, 0x0A, 0xFF}) {
		t.Fatalf("unexpected payload % X err=%v", got, err)
	}
	if got, err := parsePayload(""); err != nil || len(got) != 0 {
		t.Fatalf("empty payload should decode to nothing")
	}
	if _, err := parsePayload("0"); err == nil {
		t.Fatalf("odd-length hex should fail")
	}
}

func TestRenderCommandsTable(t *testing.T) {
	testlog.Start(t)
	out := renderCommands(schema.Default())
	for _, want := range []string{"0x0F", "heartbeat", "0xF1", "cold_status", "83"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
}

func TestSimulatorReplies(t *testing.T) {
	testlog.Start(t)
	codec := protocol.NewCodec(nil)

	if _, ok := simulatorReply(codec, protocol.Frame{Command: schema.CmdHeartbeat}, 0); ok {
		t.Fatalf("heartbeat should not be answered")
	}
	b, ok := simulatorReply(codec, protocol.Frame{Command: schema.CmdCommonStatus}, 3)
	if !ok {
		t.Fatalf("status poll should be answered")
	}
	f, err := codec.Decode(b)
	if err != nil || f.SenderID != protocol.SenderMain || len(f.Payload) != 40 || f.Payload[0] != 3 {
		t.Fatalf("unexpected status reply %+v err=%v", f, err)
	}
	b, ok = simulatorReply(codec, protocol.Frame{Command: schema.CmdDrainPumpChange, Payload: []byte{1}}, 0)
	if !ok {
		t.Fatalf("change command should be echoed")
	}
	if f, err := codec.Decode(b); err != nil || f.Payload[0] != 1 {
		t.Fatalf("unexpected echo %+v err=%v", f, err)
	}
}

func TestLoopbackRetryIsAcknowledged(t *testing.T) {
	testlog.Start(t)
	loopback = true
	defer func() { loopback = false }()

	cfg := config.Default()
	cfg.Link.HeartbeatInterval = 10 * time.Millisecond
	cfg.Link.WritePollInterval = 5 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	link, err := openLink(ctx, cfg)
	if err != nil {
		t.Fatalf("open loopback: %v", err)
	}
	defer link.Close()

	if err := link.Send(protocol.SenderPC, schema.CmdValveChange, nil, session.ModeRetryUntilAck); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case out := <-link.Inbox():
		if !out.IsFrame() || out.Frame.Command != schema.CmdValveChange {
			t.Fatalf("unexpected outcome: %s", describe(link.Codec(), out))
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no echo from simulator")
	}
	deadline := time.Now().Add(time.Second)
	for len(link.Pending()) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("auto ack did not clear pending retry")
		}
		time.Sleep(2 * time.Millisecond)
	}
}
