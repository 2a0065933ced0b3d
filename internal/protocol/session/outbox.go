package session

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// PendingSend tracks one retry-until-ack frame awaiting its response.
type PendingSend struct {
	Command       uint8
	Frame         []byte
	Attempts      int
	QueuedAt      time.Time
	LastAttemptAt time.Time
	AckDeadlineAt time.Time
	LastError     string
}

// Outbox stores pending retry frames keyed by command id. A newer send of the
// same command replaces the older one.
type Outbox struct {
	mu    sync.RWMutex
	items map[uint8]PendingSend
}

func NewOutbox() *Outbox {
	return &Outbox{
		items: make(map[uint8]PendingSend),
	}
}

func (o *Outbox) Upsert(item PendingSend) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items[item.Command] = item
}

// MarkAttempt records a resend and moves the ack deadline.
func (o *Outbox) MarkAttempt(cmd uint8, at, deadline time.Time, lastErr string) (PendingSend, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	item, ok := o.items[cmd]
	if !ok {
		return PendingSend{}, false
	}
	item.Attempts++
	item.LastAttemptAt = at
	item.AckDeadlineAt = deadline
	item.LastError = strings.TrimSpace(lastErr)
	o.items[cmd] = item
	return item, true
}

// Remove reports whether cmd had a pending item.
func (o *Outbox) Remove(cmd uint8) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.items[cmd]
	delete(o.items, cmd)
	return ok
}

func (o *Outbox) Get(cmd uint8) (PendingSend, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	item, ok := o.items[cmd]
	return item, ok
}

// Due returns items whose ack deadline is not after now, ordered by command.
func (o *Outbox) Due(now time.Time) []PendingSend {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]PendingSend, 0)
	for _, item := range o.items {
		if !item.AckDeadlineAt.After(now) {
			out = append(out, item)
		}
	}
	sortPending(out)
	return out
}

func (o *Outbox) List() []PendingSend {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]PendingSend, 0, len(o.items))
	for _, item := range o.items {
		out = append(out, item)
	}
	sortPending(out)
	return out
}

func (o *Outbox) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.items)
}

func sortPending(items []PendingSend) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].Command < items[j].Command
	})
}
