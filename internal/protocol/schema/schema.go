package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// Command ids from the PC<->MAIN contract.
const (
	CmdHeartbeat           uint8 = 0x0F
	CmdCommonStatus        uint8 = 0xF0
	CmdColdStatus          uint8 = 0xF1
	CmdHeatingStatus       uint8 = 0xF2
	CmdValveChange         uint8 = 0xA0
	CmdDrainPumpChange     uint8 = 0xA1
	CmdCoolingSystemChange uint8 = 0xB0
	CmdCoolingRunChange    uint8 = 0xB1
	CmdFreezingRunChange   uint8 = 0xB2
	CmdFreezingTableChange uint8 = 0xB3
	CmdKeepColdChange      uint8 = 0xB4
	CmdSensorChange        uint8 = 0xC0
)

// Entry binds a command id to its fixed payload length.
type Entry struct {
	Command uint8
	Length  uint8
	Name    string
}

type ValidationError struct {
	Command uint8
	Reason  string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("schema: command=0x%02X: %s", e.Command, e.Reason)
}

// DefaultEntries is the catalogue shipped with the MAIN firmware.
func DefaultEntries() []Entry {
	return []Entry{
		{CmdHeartbeat, 0, "heartbeat"},
		{CmdCommonStatus, 40, "common_status"},
		{CmdColdStatus, 76, "cold_status"},
		{CmdHeatingStatus, 0, "heating_status"},
		{CmdValveChange, 20, "valve_change"},
		{CmdDrainPumpChange, 1, "drain_pump_change"},
		{CmdCoolingSystemChange, 9, "cooling_system_change"},
		{CmdCoolingRunChange, 7, "cooling_run_change"},
		{CmdFreezingRunChange, 8, "freezing_run_change"},
		{CmdFreezingTableChange, 92, "freezing_table_change"},
		{CmdKeepColdChange, 5, "keep_cold_change"},
		{CmdSensorChange, 14, "sensor_change"},
	}
}

// Registry is an immutable command -> payload length table.
type Registry struct {
	entries map[uint8]Entry
}

// NewRegistry builds a registry from entries. Duplicate ids are rejected.
func NewRegistry(entries []Entry) (*Registry, error) {
	r := &Registry{entries: make(map[uint8]Entry, len(entries))}
	for _, e := range entries {
		if _, dup := r.entries[e.Command]; dup {
			return nil, ValidationError{Command: e.Command, Reason: "duplicate command"}
		}
		if strings.TrimSpace(e.Name) == "" {
			e.Name = fmt.Sprintf("cmd_%02x", e.Command)
		}
		r.entries[e.Command] = e
	}
	log.Debug().Int("commands", len(r.entries)).Msg("schema.NewRegistry")
	return r, nil
}

// Default returns a registry over DefaultEntries.
func Default() *Registry {
	r, err := NewRegistry(DefaultEntries())
	if err != nil {
		panic(err)
	}
	return r
}

// ExpectedLength reports the payload length registered for cmd.
func (r *Registry) ExpectedLength(cmd uint8) (uint8, bool) {
	e, ok := r.entries[cmd]
	return e.Length, ok
}

func (r *Registry) Lookup(cmd uint8) (Entry, bool) {
	e, ok := r.entries[cmd]
	return e, ok
}

// Name returns the registered name or a hex placeholder.
func (r *Registry) Name(cmd uint8) string {
	if e, ok := r.entries[cmd]; ok {
		return e.Name
	}
	return fmt.Sprintf("cmd_%02x", cmd)
}

// Entries returns a copy of the table sorted by command id.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Command < out[j].Command
	})
	return out
}

func (r *Registry) Len() int {
	return len(r.entries)
}
