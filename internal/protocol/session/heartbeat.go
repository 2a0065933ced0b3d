package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/chplink/internal/observability"
	"github.com/danmuck/chplink/internal/protocol"
	"github.com/danmuck/chplink/internal/protocol/schema"
)

// Heartbeat enqueues the prebuilt heartbeat frame on every interval while it
// is not paused. ResumeAfter calls are last-wins: a newer Pause, Resume, or
// ResumeAfter disarms any pending resume.
type Heartbeat struct {
	sched    *Scheduler
	frame    []byte
	interval time.Duration

	paused atomic.Bool
	sent   atomic.Uint64

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// NewHeartbeat prebuilds the heartbeat frame for sender.
func NewHeartbeat(sched *Scheduler, codec *protocol.Codec, sender uint8, interval time.Duration) *Heartbeat {
	return &Heartbeat{
		sched:    sched,
		frame:    codec.MustEncode(sender, schema.CmdHeartbeat, nil),
		interval: interval,
	}
}

// Frame returns a copy of the heartbeat bytes.
func (h *Heartbeat) Frame() []byte {
	return append([]byte(nil), h.frame...)
}

func (h *Heartbeat) Pause() {
	h.mu.Lock()
	h.disarmLocked()
	h.paused.Store(true)
	h.mu.Unlock()
}

func (h *Heartbeat) Resume() {
	h.mu.Lock()
	h.disarmLocked()
	h.paused.Store(false)
	h.mu.Unlock()
}

// ResumeAfter pauses now and resumes after d unless superseded.
func (h *Heartbeat) ResumeAfter(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disarmLocked()
	h.paused.Store(true)
	gen := h.gen
	h.timer = time.AfterFunc(d, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.gen != gen {
			return
		}
		h.timer = nil
		h.paused.Store(false)
	})
}

func (h *Heartbeat) Paused() bool {
	return h.paused.Load()
}

// Tick enqueues one heartbeat unless paused and reports whether it did.
func (h *Heartbeat) Tick() bool {
	if h.paused.Load() {
		observability.RecordHeartbeat(false)
		return false
	}
	h.sched.Enqueue(h.frame, ModeNormal)
	h.sent.Add(1)
	observability.RecordHeartbeat(true)
	return true
}

// Sent counts heartbeats enqueued by Tick.
func (h *Heartbeat) Sent() uint64 { return h.sent.Load() }

// Run ticks until ctx is done.
func (h *Heartbeat) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Tick()
		}
	}
}

// Stop disarms a pending delayed resume without changing the paused state.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	h.disarmLocked()
	h.mu.Unlock()
}

func (h *Heartbeat) disarmLocked() {
	h.gen++
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}
