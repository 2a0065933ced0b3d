package config

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

// Render serializes the resolved configuration back to TOML, with every
// default made explicit. Loading the output yields the same Config.
func Render(cfg Config) ([]byte, error) {
	out := fileConfig{
		Serial: serialSection{
			Path:        cfg.Serial.Path,
			Baud:        cfg.Serial.BaudRate,
			DataBits:    cfg.Serial.DataBits,
			Parity:      cfg.Serial.Parity,
			StopBits:    cfg.Serial.StopBits,
			ReadTimeout: cfg.Serial.ReadTimeout.String(),
		},
		Link: linkSection{
			SenderID:          int(cfg.Link.SenderID),
			Heartbeat:         !cfg.Link.HeartbeatDisabled,
			HeartbeatInterval: cfg.Link.HeartbeatInterval.String(),
			WritePollInterval: cfg.Link.WritePollInterval.String(),
			AckTimeout:        cfg.Link.AckTimeout.String(),
			RetryMaxAttempts:  cfg.Link.RetryMaxAttempts,
			AutoAck:           cfg.Link.AutoAck,
			Resync:            cfg.Link.Resync.String(),
			BackoffInitial:    cfg.Link.Backoff.InitialDelay.String(),
			BackoffMultiplier: cfg.Link.Backoff.Multiplier,
			BackoffMax:        cfg.Link.Backoff.MaxDelay.String(),
			BackoffJitter:     cfg.Link.Backoff.Jitter,
		},
		HTTP: httpSection{Addr: cfg.HTTPAddr, CorsOrigins: cfg.CORSOrigins, Token: cfg.HTTPToken},
	}
	for _, e := range cfg.Commands {
		out.Commands = append(out.Commands, commandSection{ID: int(e.Command), Name: e.Name, Length: int(e.Length)})
	}
	b, err := toml.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("config render failed: %w", err)
	}
	return b, nil
}
