package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/multierr"

	"github.com/danmuck/chplink/internal/protocol/frame"
	"github.com/danmuck/chplink/internal/protocol/schema"
	"github.com/danmuck/chplink/internal/protocol/session"
	"github.com/danmuck/chplink/internal/transport"
)

// Config is a resolved link configuration.
type Config struct {
	Serial      transport.SerialConfig
	Link        session.Config
	HTTPAddr    string
	CORSOrigins []string
	HTTPToken   string
	Commands    []schema.Entry
}

type fileConfig struct {
	Serial   serialSection    `toml:"serial"`
	Link     linkSection      `toml:"link"`
	HTTP     httpSection      `toml:"http"`
	Commands []commandSection `toml:"commands"`
}

type serialSection struct {
	Path        string `toml:"path"`
	Baud        int    `toml:"baud"`
	DataBits    int    `toml:"data_bits"`
	Parity      string `toml:"parity"`
	StopBits    string `toml:"stop_bits"`
	ReadTimeout string `toml:"read_timeout"`
}

type linkSection struct {
	SenderID          int     `toml:"sender_id"`
	Heartbeat         bool    `toml:"heartbeat"`
	HeartbeatInterval string  `toml:"heartbeat_interval"`
	WritePollInterval string  `toml:"write_poll_interval"`
	AckTimeout        string  `toml:"ack_timeout"`
	RetryMaxAttempts  int     `toml:"retry_max_attempts"`
	AutoAck           bool    `toml:"auto_ack"`
	Resync            string  `toml:"resync"`
	BackoffInitial    string  `toml:"backoff_initial"`
	BackoffMultiplier float64 `toml:"backoff_multiplier"`
	BackoffMax        string  `toml:"backoff_max"`
	BackoffJitter     bool    `toml:"backoff_jitter"`
}

type httpSection struct {
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
	Token       string   `toml:"token"`
}

type commandSection struct {
	ID     int    `toml:"id"`
	Name   string `toml:"name"`
	Length int    `toml:"length"`
}

// Default is the configuration used when no file is given.
func Default() Config {
	link := session.DefaultConfig()
	link.AutoAck = true
	return Config{
		Serial:   transport.DefaultSerialConfig(),
		Link:     link,
		Commands: schema.DefaultEntries(),
	}
}

// Load reads path and applies every key it defines on top of Default.
// [[commands]] entries replace default entries with the same id and add new
// ones.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config parse failed (%s): unknown key %s", path, undecoded[0])
	}

	var errs error
	duration := func(key, value string, dst *time.Duration) {
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("parse %s: %w", key, err))
			return
		}
		*dst = d
	}

	if meta.IsDefined("serial", "path") {
		cfg.Serial.Path = strings.TrimSpace(raw.Serial.Path)
	}
	if meta.IsDefined("serial", "baud") {
		cfg.Serial.BaudRate = raw.Serial.Baud
	}
	if meta.IsDefined("serial", "data_bits") {
		cfg.Serial.DataBits = raw.Serial.DataBits
	}
	if meta.IsDefined("serial", "parity") {
		cfg.Serial.Parity = strings.TrimSpace(raw.Serial.Parity)
	}
	if meta.IsDefined("serial", "stop_bits") {
		cfg.Serial.StopBits = strings.TrimSpace(raw.Serial.StopBits)
	}
	if meta.IsDefined("serial", "read_timeout") {
		duration("serial.read_timeout", raw.Serial.ReadTimeout, &cfg.Serial.ReadTimeout)
	}

	if meta.IsDefined("link", "sender_id") {
		if raw.Link.SenderID < 0 || raw.Link.SenderID > 0xFF {
			errs = multierr.Append(errs, fmt.Errorf("link.sender_id out of range: %d", raw.Link.SenderID))
		} else {
			cfg.Link.SenderID = uint8(raw.Link.SenderID)
		}
	}
	if meta.IsDefined("link", "heartbeat") {
		cfg.Link.HeartbeatDisabled = !raw.Link.Heartbeat
	}
	if meta.IsDefined("link", "heartbeat_interval") {
		duration("link.heartbeat_interval", raw.Link.HeartbeatInterval, &cfg.Link.HeartbeatInterval)
	}
	if meta.IsDefined("link", "write_poll_interval") {
		duration("link.write_poll_interval", raw.Link.WritePollInterval, &cfg.Link.WritePollInterval)
	}
	if meta.IsDefined("link", "ack_timeout") {
		duration("link.ack_timeout", raw.Link.AckTimeout, &cfg.Link.AckTimeout)
	}
	if meta.IsDefined("link", "retry_max_attempts") {
		cfg.Link.RetryMaxAttempts = raw.Link.RetryMaxAttempts
	}
	if meta.IsDefined("link", "auto_ack") {
		cfg.Link.AutoAck = raw.Link.AutoAck
	}
	if meta.IsDefined("link", "resync") {
		policy, err := frame.ParsePolicy(raw.Link.Resync)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else {
			cfg.Link.Resync = policy
		}
	}
	if meta.IsDefined("link", "backoff_initial") {
		duration("link.backoff_initial", raw.Link.BackoffInitial, &cfg.Link.Backoff.InitialDelay)
	}
	if meta.IsDefined("link", "backoff_multiplier") {
		cfg.Link.Backoff.Multiplier = raw.Link.BackoffMultiplier
	}
	if meta.IsDefined("link", "backoff_max") {
		duration("link.backoff_max", raw.Link.BackoffMax, &cfg.Link.Backoff.MaxDelay)
	}
	if meta.IsDefined("link", "backoff_jitter") {
		cfg.Link.Backoff.Jitter = raw.Link.BackoffJitter
	}

	if meta.IsDefined("http", "addr") {
		cfg.HTTPAddr = strings.TrimSpace(raw.HTTP.Addr)
	}
	if meta.IsDefined("http", "token") {
		cfg.HTTPToken = strings.TrimSpace(raw.HTTP.Token)
	}
	if meta.IsDefined("http", "cors_origins") {
		cfg.CORSOrigins = normalizeOrigins(raw.HTTP.CorsOrigins)
	}

	if meta.IsDefined("commands") {
		entries, err := mergeCommands(cfg.Commands, raw.Commands)
		errs = multierr.Append(errs, err)
		cfg.Commands = entries
	}

	if errs != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, errs)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func mergeCommands(base []schema.Entry, overrides []commandSection) ([]schema.Entry, error) {
	var errs error
	index := make(map[uint8]int, len(base))
	out := append([]schema.Entry(nil), base...)
	for i, e := range out {
		index[e.Command] = i
	}
	seen := make(map[int]bool, len(overrides))
	for i, c := range overrides {
		if c.ID < 0 || c.ID > 0xFF {
			errs = multierr.Append(errs, fmt.Errorf("commands[%d]: id out of range: %d", i, c.ID))
			continue
		}
		if c.Length < 0 || c.Length > 0xFF {
			errs = multierr.Append(errs, fmt.Errorf("commands[%d]: length out of range: %d", i, c.Length))
			continue
		}
		if seen[c.ID] {
			errs = multierr.Append(errs, fmt.Errorf("commands[%d]: duplicate id 0x%02X", i, c.ID))
			continue
		}
		seen[c.ID] = true
		entry := schema.Entry{Command: uint8(c.ID), Length: uint8(c.Length), Name: strings.TrimSpace(c.Name)}
		if at, ok := index[entry.Command]; ok {
			if entry.Name == "" {
				entry.Name = out[at].Name
			}
			out[at] = entry
			continue
		}
		index[entry.Command] = len(out)
		out = append(out, entry)
	}
	return out, errs
}

// Validate reports every problem in cfg at once.
func Validate(cfg Config) error {
	var errs error
	if cfg.Serial.BaudRate <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("serial.baud must be > 0"))
	}
	if cfg.Serial.ReadTimeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("serial.read_timeout must be > 0"))
	}
	if _, err := cfg.Serial.Mode(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if cfg.Link.SenderID == 0 {
		errs = multierr.Append(errs, fmt.Errorf("link.sender_id must be non-zero"))
	}
	if cfg.Link.HeartbeatInterval <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("link.heartbeat_interval must be > 0"))
	}
	if cfg.Link.WritePollInterval <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("link.write_poll_interval must be > 0"))
	}
	if cfg.Link.AckTimeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("link.ack_timeout must be > 0"))
	}
	errs = multierr.Append(errs, cfg.Link.Validate())
	if _, err := schema.NewRegistry(cfg.Commands); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

// Registry builds the command registry for cfg.
func (c Config) Registry() (*schema.Registry, error) {
	return schema.NewRegistry(c.Commands)
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
