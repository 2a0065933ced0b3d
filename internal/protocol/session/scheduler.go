package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Mode selects where a frame enters the send queue.
type Mode int

const (
	ModeNormal Mode = iota
	ModePriority
	ModeRetryUntilAck
)

func (m Mode) String() string {
	switch m {
	case ModePriority:
		return "priority"
	case ModeRetryUntilAck:
		return "retry_until_ack"
	default:
		return "normal"
	}
}

// ParseMode accepts the String forms plus "retry".
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "normal":
		return ModeNormal, nil
	case "priority":
		return ModePriority, nil
	case "retry", "retry_until_ack":
		return ModeRetryUntilAck, nil
	default:
		return ModeNormal, fmt.Errorf("session: unknown send mode %q", raw)
	}
}

// Item is one queued frame.
type Item struct {
	Bytes      []byte
	Mode       Mode
	EnqueuedAt time.Time
}

// Scheduler is a FIFO where priority frames go ahead of every normal frame
// but keep their order among themselves. Enqueue never fails and the queue
// is unbounded; callers own growth control.
type Scheduler struct {
	mu    sync.Mutex
	items []Item
	// items[:priorityTail] are priority or retry items, oldest first.
	priorityTail int
	wake         chan struct{}
}

func NewScheduler() *Scheduler {
	return &Scheduler{wake: make(chan struct{}, 1)}
}

// Enqueue appends normal frames to the tail; priority and retry frames go
// after the last queued priority frame.
func (s *Scheduler) Enqueue(b []byte, mode Mode) {
	item := Item{Bytes: append([]byte(nil), b...), Mode: mode, EnqueuedAt: time.Now()}
	s.mu.Lock()
	if mode == ModeNormal {
		s.items = append(s.items, item)
	} else {
		at := s.priorityTail
		s.items = append(s.items, Item{})
		copy(s.items[at+1:], s.items[at:])
		s.items[at] = item
		s.priorityTail++
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Dequeue waits up to timeout for an item.
func (s *Scheduler) Dequeue(timeout time.Duration) (Item, bool) {
	return s.DequeueContext(context.Background(), timeout)
}

// DequeueContext waits up to timeout for an item, returning early on ctx done.
func (s *Scheduler) DequeueContext(ctx context.Context, timeout time.Duration) (Item, bool) {
	if item, ok := s.pop(); ok {
		return item, true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return Item{}, false
		case <-timer.C:
			return s.pop()
		case <-s.wake:
			if item, ok := s.pop(); ok {
				return item, true
			}
		}
	}
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Scheduler) pop() (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return Item{}, false
	}
	item := s.items[0]
	s.items[0] = Item{}
	s.items = s.items[1:]
	if s.priorityTail > 0 {
		s.priorityTail--
	}
	return item, true
}
