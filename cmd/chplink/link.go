package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/chplink/internal/config"
	"github.com/danmuck/chplink/internal/protocol"
	"github.com/danmuck/chplink/internal/protocol/frame"
	"github.com/danmuck/chplink/internal/protocol/session"
	"github.com/danmuck/chplink/internal/transport"
)

// resolveConfig loads --config (or defaults) and applies the flag overrides.
func resolveConfig() (config.Config, error) {
	cfg := config.Default()
	if strings.TrimSpace(configPath) != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if portPath != "" {
		cfg.Serial.Path = portPath
	}
	if baudRate > 0 {
		cfg.Serial.BaudRate = baudRate
	}
	return cfg, config.Validate(cfg)
}

// openLink builds the codec and port for cfg and starts a session on it.
func openLink(ctx context.Context, cfg config.Config) (*session.Session, error) {
	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	codec := protocol.NewCodec(registry)

	var port transport.Port
	if loopback {
		local, remote := transport.NewPipe()
		go runSimulator(ctx, remote, codec)
		port = local
		log.Info().Msg("using loopback MAIN simulator")
	} else {
		port, err = transport.OpenSerial(cfg.Serial)
		if err != nil {
			return nil, err
		}
		log.Info().Str("port", cfg.Serial.Path).Int("baud", cfg.Serial.BaudRate).Msg("serial port open")
	}

	s := session.New(port, codec, cfg.Link)
	if err := s.Start(ctx); err != nil {
		_ = port.Close()
		return nil, err
	}
	return s, nil
}

// describe renders one outcome as a single diagnostic line.
func describe(codec *protocol.Codec, out frame.Outcome) string {
	if !out.IsFrame() {
		return out.Err.Error()
	}
	f := out.Frame
	return fmt.Sprintf("rx %s sender=%d len=%d payload=[%s]",
		codec.Commands.Name(f.Command), f.SenderID, f.Length, protocol.Hex(f.Payload))
}
