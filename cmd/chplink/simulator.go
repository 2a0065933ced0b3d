package main

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/chplink/internal/protocol"
	"github.com/danmuck/chplink/internal/protocol/frame"
	"github.com/danmuck/chplink/internal/protocol/schema"
	"github.com/danmuck/chplink/internal/transport"
)

// runSimulator plays the MAIN side of a loopback link: status polls are
// answered with a status frame, change commands are echoed back as their
// acknowledgement, and heartbeats are absorbed.
func runSimulator(ctx context.Context, port transport.Port, codec *protocol.Codec) {
	defer port.Close()
	go func() {
		<-ctx.Done()
		port.Close()
	}()

	reasm := frame.NewReassembler(codec, frame.ResyncClear)
	buf := make([]byte, 256)
	var tick byte
	for {
		n, err := port.Read(buf)
		for _, out := range reasm.Feed(buf[:n]) {
			if !out.IsFrame() {
				log.Debug().Str("kind", out.Err.Kind.String()).Msg("simulator dropped frame")
				continue
			}
			reply, ok := simulatorReply(codec, out.Frame, tick)
			tick++
			if !ok {
				continue
			}
			if _, err := port.Write(reply); err != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func simulatorReply(codec *protocol.Codec, f protocol.Frame, tick byte) ([]byte, bool) {
	switch f.Command {
	case schema.CmdHeartbeat:
		return nil, false
	case schema.CmdCommonStatus, schema.CmdColdStatus, schema.CmdHeatingStatus:
		n, _ := codec.Commands.ExpectedLength(f.Command)
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = tick + byte(i)
		}
		b, err := codec.Encode(protocol.SenderMain, f.Command, payload)
		return b, err == nil
	default:
		b, err := codec.Encode(protocol.SenderMain, f.Command, f.Payload)
		return b, err == nil
	}
}
