package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/chplink/internal/protocol/frame"
	"github.com/danmuck/chplink/internal/protocol/schema"
	"github.com/danmuck/chplink/internal/testutil/testlog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chplink.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestTemplateLoadsAsDefaults(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "chplink.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("expected existing file to be protected")
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	def := Default()
	if cfg.Link != def.Link {
		t.Fatalf("template link section differs from defaults:\n got=%+v\nwant=%+v", cfg.Link, def.Link)
	}
	if cfg.Serial.Path != "/dev/ttyUSB0" || cfg.Serial.BaudRate != 9600 || cfg.Serial.ReadTimeout != 50*time.Millisecond {
		t.Fatalf("unexpected serial section: %+v", cfg.Serial)
	}
	if len(cfg.Commands) != len(def.Commands) {
		t.Fatalf("template should not add commands: %d", len(cfg.Commands))
	}
}

func TestLoadOverridesOnlyDefinedKeys(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
[link]
heartbeat = false
resync = "scan"
retry_max_attempts = 4

[[commands]]
id = 0xF2
length = 12

[[commands]]
id = 0xD0
name = "door_state"
length = 2
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Link.HeartbeatDisabled || cfg.Link.Resync != frame.ResyncScan || cfg.Link.RetryMaxAttempts != 4 {
		t.Fatalf("overrides not applied: %+v", cfg.Link)
	}
	if cfg.Link.HeartbeatInterval != time.Second {
		t.Fatalf("undefined key should keep default, got %v", cfg.Link.HeartbeatInterval)
	}
	reg, err := cfg.Registry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if n, ok := reg.ExpectedLength(schema.CmdHeatingStatus); !ok || n != 12 {
		t.Fatalf("heating status length=%d ok=%v", n, ok)
	}
	if reg.Name(schema.CmdHeatingStatus) != "heating_status" {
		t.Fatalf("override without a name should keep the built-in name")
	}
	if n, ok := reg.ExpectedLength(0xD0); !ok || n != 2 || reg.Name(0xD0) != "door_state" {
		t.Fatalf("new command not registered")
	}
}

func TestLoadAggregatesErrors(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
[serial]
read_timeout = "soon"

[link]
heartbeat_interval = "often"
resync = "rewind"

[[commands]]
id = 300
length = 1
`)
	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"serial.read_timeout", "link.heartbeat_interval", "rewind", "id out of range"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, "[link]\nheart_beat = true\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "heart_beat") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	testlog.Start(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestRenderRoundTrip(t *testing.T) {
	testlog.Start(t)
	cfg := Default()
	cfg.Serial.Path = "/dev/ttyACM0"
	cfg.Link.AckTimeout = 750 * time.Millisecond
	cfg.Link.Resync = frame.ResyncScan
	cfg.HTTPAddr = "127.0.0.1:9300"

	b, err := Render(cfg)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	got, err := Load(writeConfig(t, string(b)))
	if err != nil {
		t.Fatalf("load rendered: %v\n%s", err, b)
	}
	if got.Link != cfg.Link || got.Serial != cfg.Serial || got.HTTPAddr != cfg.HTTPAddr {
		t.Fatalf("round trip mismatch:\n got=%+v\nwant=%+v", got, cfg)
	}
	if len(got.Commands) != len(cfg.Commands) {
		t.Fatalf("commands len=%d", len(got.Commands))
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	testlog.Start(t)
	cfg := Default()
	cfg.Serial.BaudRate = 0
	cfg.Link.SenderID = 0
	cfg.Link.RetryMaxAttempts = -1
	err := Validate(cfg)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"serial.baud", "sender_id", "retry_max_attempts"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}
