package transport

import (
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// SerialConfig describes one serial device. Zero fields take the 9600 8N1
// defaults with a 50ms read timeout.
type SerialConfig struct {
	Path        string
	BaudRate    int
	DataBits    int
	Parity      string
	StopBits    string
	ReadTimeout time.Duration
}

func DefaultSerialConfig() SerialConfig {
	return SerialConfig{
		BaudRate:    9600,
		DataBits:    8,
		Parity:      "none",
		StopBits:    "1",
		ReadTimeout: 50 * time.Millisecond,
	}
}

func (c SerialConfig) WithDefaults() SerialConfig {
	def := DefaultSerialConfig()
	if c.BaudRate <= 0 {
		c.BaudRate = def.BaudRate
	}
	if c.DataBits <= 0 {
		c.DataBits = def.DataBits
	}
	if strings.TrimSpace(c.Parity) == "" {
		c.Parity = def.Parity
	}
	if strings.TrimSpace(c.StopBits) == "" {
		c.StopBits = def.StopBits
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	return c
}

// Mode converts the config into the serial library's mode.
func (c SerialConfig) Mode() (*serial.Mode, error) {
	c = c.WithDefaults()
	parity, err := parseParity(c.Parity)
	if err != nil {
		return nil, err
	}
	stop, err := parseStopBits(c.StopBits)
	if err != nil {
		return nil, err
	}
	return &serial.Mode{
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
		Parity:   parity,
		StopBits: stop,
	}, nil
}

// OpenSerial opens the device and discards whatever the driver buffered
// before we attached.
func OpenSerial(cfg SerialConfig) (Port, error) {
	cfg = cfg.WithDefaults()
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("transport: serial path is required")
	}
	mode, err := cfg.Mode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(cfg.Path, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", cfg.Path, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("transport: set read timeout on %s: %w", cfg.Path, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("transport: reset input on %s: %w", cfg.Path, err)
	}
	return port, nil
}

// PortInfo describes one serial device found on the host.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// ListPorts enumerates serial devices sorted as the OS reports them.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("transport: list ports: %w", err)
	}
	out := make([]PortInfo, 0, len(details))
	for _, d := range details {
		out = append(out, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	return out, nil
}

func parseParity(raw string) (serial.Parity, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "none", "n":
		return serial.NoParity, nil
	case "odd", "o":
		return serial.OddParity, nil
	case "even", "e":
		return serial.EvenParity, nil
	case "mark", "m":
		return serial.MarkParity, nil
	case "space", "s":
		return serial.SpaceParity, nil
	default:
		return serial.NoParity, fmt.Errorf("transport: unknown parity %q", raw)
	}
}

func parseStopBits(raw string) (serial.StopBits, error) {
	switch strings.TrimSpace(raw) {
	case "", "1":
		return serial.OneStopBit, nil
	case "1.5":
		return serial.OnePointFiveStopBits, nil
	case "2":
		return serial.TwoStopBits, nil
	default:
		return serial.OneStopBit, fmt.Errorf("transport: unknown stop bits %q", raw)
	}
}
