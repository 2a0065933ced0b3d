package session

import (
	"fmt"
	"time"

	"github.com/danmuck/chplink/internal/protocol"
	"github.com/danmuck/chplink/internal/protocol/frame"
)

// BackoffConfig defines the resend schedule for retry-until-ack frames.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines link runtime defaults.
type Config struct {
	SenderID          uint8
	HeartbeatDisabled bool
	HeartbeatInterval time.Duration
	WritePollInterval time.Duration
	ReadBufferSize    int
	InboxSize         int
	ObservationSize   int
	AckTimeout        time.Duration
	RetryMaxAttempts  int
	AutoAck           bool
	Resync            frame.Policy
	Backoff           BackoffConfig
}

// DefaultConfig mirrors the host tool: 100ms writer poll, 1s heartbeat.
func DefaultConfig() Config {
	return Config{
		SenderID:          protocol.SenderPC,
		HeartbeatInterval: time.Second,
		WritePollInterval: 100 * time.Millisecond,
		ReadBufferSize:    256,
		InboxSize:         64,
		ObservationSize:   64,
		AckTimeout:        time.Second,
		Resync:            frame.ResyncClear,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
		},
	}
}

// WithDefaults fills zero values from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.SenderID == 0 {
		c.SenderID = def.SenderID
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.WritePollInterval <= 0 {
		c.WritePollInterval = def.WritePollInterval
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = def.ReadBufferSize
	}
	if c.InboxSize <= 0 {
		c.InboxSize = def.InboxSize
	}
	if c.ObservationSize <= 0 {
		c.ObservationSize = def.ObservationSize
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = def.AckTimeout
	}
	if c.Backoff.InitialDelay <= 0 && c.Backoff.Multiplier == 0 && c.Backoff.MaxDelay == 0 {
		c.Backoff = def.Backoff
	}
	return c
}

func (c Config) Validate() error {
	if c.RetryMaxAttempts < 0 {
		return fmt.Errorf("session: retry_max_attempts must be >= 0, got %d", c.RetryMaxAttempts)
	}
	if c.Backoff.Multiplier != 0 && c.Backoff.Multiplier < 1.0 {
		return fmt.Errorf("session: backoff multiplier must be >= 1, got %v", c.Backoff.Multiplier)
	}
	return nil
}
