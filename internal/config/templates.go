package config

import (
	"fmt"
	"os"
)

func Template() string {
	return linkTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(linkTemplate), 0o600)
}

const linkTemplate = `[serial]
path = "/dev/ttyUSB0"
baud = 9600
data_bits = 8
parity = "none"
stop_bits = "1"
read_timeout = "50ms"

[link]
sender_id = 1
heartbeat = true
heartbeat_interval = "1s"
write_poll_interval = "100ms"
ack_timeout = "1s"
retry_max_attempts = 0
auto_ack = true
resync = "clear"
backoff_initial = "250ms"
backoff_multiplier = 2.0
backoff_max = "5s"
backoff_jitter = false

[http]
addr = ""
cors_origins = ["http://localhost:3000"]
# token guards the POST control routes; empty leaves them open
token = ""

# Registered commands default to the built-in catalogue. Entries here replace
# a built-in entry with the same id or add a new one.
[[commands]]
id = 0xF2
name = "heating_status"
length = 0
`
