package session

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/chplink/internal/observability"
	"github.com/danmuck/chplink/internal/protocol"
	"github.com/danmuck/chplink/internal/protocol/frame"
	"github.com/danmuck/chplink/internal/transport"
)

type State int32

const (
	StateIdle State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "idle"
	}
}

// Observation is one writer result, or a dropped retry.
type Observation struct {
	Bytes []byte
	Mode  Mode
	Err   error
	At    time.Time
}

// Stats is a point-in-time snapshot of session counters.
type Stats struct {
	FramesIn        uint64 `json:"frames_in"`
	FrameErrors     uint64 `json:"frame_errors"`
	FramesOut       uint64 `json:"frames_out"`
	BytesIn         uint64 `json:"bytes_in"`
	BytesOut        uint64 `json:"bytes_out"`
	Heartbeats      uint64 `json:"heartbeats"`
	Retries         uint64 `json:"retries"`
	PendingRetry    int    `json:"pending_retry"`
	QueuedFrames    int    `json:"queued_frames"`
	HeartbeatPaused bool   `json:"heartbeat_paused"`
}

// Session drives one port: a reader feeding the reassembler, a writer
// draining the scheduler, a heartbeat ticker, and the retry loop.
type Session struct {
	id     string
	port   transport.Port
	codec  *protocol.Codec
	cfg    Config
	logger zerolog.Logger

	sched     *Scheduler
	heartbeat *Heartbeat
	outbox    *Outbox

	inbox        chan frame.Outcome
	observations chan Observation

	state    atomic.Int32
	startMu  sync.Mutex
	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
	writeMu  sync.Mutex

	errMu sync.Mutex
	err   error

	framesIn    atomic.Uint64
	frameErrors atomic.Uint64
	framesOut   atomic.Uint64
	bytesIn     atomic.Uint64
	bytesOut    atomic.Uint64
	retries     atomic.Uint64
}

// New builds an idle session. A nil codec uses the default registry.
func New(port transport.Port, codec *protocol.Codec, cfg Config) *Session {
	if codec == nil {
		codec = protocol.NewCodec(nil)
	}
	cfg = cfg.WithDefaults()
	id := uuid.NewString()
	sched := NewScheduler()
	s := &Session{
		id:           id,
		port:         port,
		codec:        codec,
		cfg:          cfg,
		logger:       log.With().Str("session", id).Logger(),
		sched:        sched,
		heartbeat:    NewHeartbeat(sched, codec, cfg.SenderID, cfg.HeartbeatInterval),
		outbox:       NewOutbox(),
		inbox:        make(chan frame.Outcome, cfg.InboxSize),
		observations: make(chan Observation, cfg.ObservationSize),
		done:         make(chan struct{}),
	}
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) Config() Config { return s.cfg }

func (s *Session) Codec() *protocol.Codec { return s.codec }

// Start launches the session loops. The session stops when ctx is done or
// Close is called.
func (s *Session) Start(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	s.startMu.Lock()
	defer s.startMu.Unlock()
	switch s.State() {
	case StateOpen:
		return ErrSessionStarted
	case StateClosed:
		return ErrSessionClosed
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state.Store(int32(StateOpen))

	loops := []func(context.Context){s.readLoop, s.writeLoop, s.retryLoop}
	if !s.cfg.HeartbeatDisabled {
		loops = append(loops, s.heartbeat.Run)
	}
	for _, loop := range loops {
		s.wg.Add(1)
		go func(run func(context.Context)) {
			defer s.wg.Done()
			run(runCtx)
		}(loop)
	}
	go func() {
		<-runCtx.Done()
		s.shutdown()
	}()
	go func() {
		s.wg.Wait()
		close(s.done)
	}()

	s.logger.Info().
		Uint8("sender", s.cfg.SenderID).
		Dur("heartbeat", s.cfg.HeartbeatInterval).
		Bool("heartbeat_disabled", s.cfg.HeartbeatDisabled).
		Str("resync", s.cfg.Resync.String()).
		Msg("session started")
	return nil
}

// Close stops every loop, closes the port, and waits for the loops to exit.
func (s *Session) Close() error {
	s.startMu.Lock()
	started := s.cancel != nil
	s.startMu.Unlock()
	if !started {
		s.state.Store(int32(StateClosed))
		s.stopOnce.Do(func() {
			if s.port != nil {
				_ = s.port.Close()
			}
			close(s.inbox)
			close(s.done)
		})
		return nil
	}
	s.shutdown()
	<-s.done
	return nil
}

// Done is closed once every session loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns nil after a clean stop, or the transport failure that ended
// the session.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Inbox yields reassembler outcomes in arrival order. It is closed when the
// reader exits.
func (s *Session) Inbox() <-chan frame.Outcome { return s.inbox }

func (s *Session) Observations() <-chan Observation { return s.observations }

// Send encodes and enqueues one frame. RetryUntilAck frames are tracked in
// the outbox, keyed by command, until acknowledged.
func (s *Session) Send(sender, cmd uint8, payload []byte, mode Mode) error {
	b, err := s.codec.Encode(sender, cmd, payload)
	if err != nil {
		return err
	}
	return s.enqueue(cmd, b, mode)
}

// SendRaw enqueues pre-encoded bytes unchanged.
func (s *Session) SendRaw(b []byte, mode Mode) error {
	if len(b) == 0 {
		return ErrEmptyFrame
	}
	var cmd uint8
	if len(b) > 2 {
		cmd = b[2]
	}
	return s.enqueue(cmd, b, mode)
}

func (s *Session) enqueue(cmd uint8, b []byte, mode Mode) error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	if mode == ModeRetryUntilAck {
		now := time.Now()
		s.outbox.Upsert(PendingSend{
			Command:       cmd,
			Frame:         append([]byte(nil), b...),
			Attempts:      1,
			QueuedAt:      now,
			LastAttemptAt: now,
			AckDeadlineAt: now.Add(s.cfg.AckTimeout),
		})
	}
	s.sched.Enqueue(b, mode)
	return nil
}

// Acknowledge stops resending the pending retry for cmd.
func (s *Session) Acknowledge(cmd uint8) bool {
	if !s.outbox.Remove(cmd) {
		return false
	}
	s.logger.Debug().Str("cmd", s.codec.Commands.Name(cmd)).Msg("retry acknowledged")
	return true
}

// Pending lists outstanding retry-until-ack frames.
func (s *Session) Pending() []PendingSend { return s.outbox.List() }

func (s *Session) PauseHeartbeat() { s.heartbeat.Pause() }

func (s *Session) ResumeHeartbeat() { s.heartbeat.Resume() }

func (s *Session) ResumeHeartbeatAfter(d time.Duration) { s.heartbeat.ResumeAfter(d) }

func (s *Session) HeartbeatPaused() bool { return s.heartbeat.Paused() }

func (s *Session) Stats() Stats {
	return Stats{
		FramesIn:        s.framesIn.Load(),
		FrameErrors:     s.frameErrors.Load(),
		FramesOut:       s.framesOut.Load(),
		BytesIn:         s.bytesIn.Load(),
		BytesOut:        s.bytesOut.Load(),
		Heartbeats:      s.heartbeat.Sent(),
		Retries:         s.retries.Load(),
		PendingRetry:    s.outbox.Len(),
		QueuedFrames:    s.sched.Len(),
		HeartbeatPaused: s.heartbeat.Paused(),
	}
}

func (s *Session) readLoop(ctx context.Context) {
	defer close(s.inbox)
	reasm := frame.NewReassembler(s.codec, s.cfg.Resync)
	buf := make([]byte, s.cfg.ReadBufferSize)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := s.port.Read(buf)
		if n > 0 {
			s.bytesIn.Add(uint64(n))
			observability.RecordBytesRead(n)
			outs := reasm.Feed(buf[:n])
			for i, out := range outs {
				s.handleOutcome(out)
				select {
				case s.inbox <- out:
				case <-ctx.Done():
					s.flushOutcomes(outs[i:])
					return
				}
			}
		}
		if err != nil {
			if ctx.Err() == nil {
				s.fail(&TransportError{Op: "read", Err: err})
			}
			return
		}
	}
}

// flushOutcomes is the shutdown path for the rest of a batch whose first
// outcome was already handled. Every outcome is still counted, but only those
// that fit in the inbox without blocking are delivered; the count delivered is
// returned.
func (s *Session) flushOutcomes(outs []frame.Outcome) int {
	for _, out := range outs[min(1, len(outs)):] {
		s.handleOutcome(out)
	}
	for i, out := range outs {
		select {
		case s.inbox <- out:
		default:
			return i
		}
	}
	return len(outs)
}

func (s *Session) handleOutcome(out frame.Outcome) {
	if !out.IsFrame() {
		s.frameErrors.Add(1)
		observability.RecordFrameError(out.Err.Kind.String())
		s.logger.Warn().
			Str("kind", out.Err.Kind.String()).
			Str("raw", protocol.Hex(out.Err.Raw)).
			Msg(out.Err.Error())
		return
	}
	s.framesIn.Add(1)
	name := s.codec.Commands.Name(out.Frame.Command)
	observability.RecordFrameReceived(name)
	s.logger.Debug().
		Str("cmd", name).
		Uint8("sender", out.Frame.SenderID).
		Int("len", len(out.Frame.Payload)).
		Msg("frame received")
	if s.cfg.AutoAck {
		s.Acknowledge(out.Frame.Command)
	}
}

func (s *Session) writeLoop(ctx context.Context) {
	for {
		item, ok := s.sched.DequeueContext(ctx, s.cfg.WritePollInterval)
		if ctx.Err() != nil {
			return
		}
		if !ok {
			continue
		}
		err := s.writeFull(item.Bytes)
		s.observe(Observation{Bytes: item.Bytes, Mode: item.Mode, Err: err, At: time.Now()})
		if err != nil {
			if ctx.Err() == nil {
				s.fail(&TransportError{Op: "write", Err: err})
			}
			return
		}
		s.framesOut.Add(1)
		s.bytesOut.Add(uint64(len(item.Bytes)))
		observability.RecordFrameSent(item.Mode.String())
		observability.RecordBytesWritten(len(item.Bytes))
	}
}

func (s *Session) writeFull(b []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for len(b) > 0 {
		n, err := s.port.Write(b)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		b = b[n:]
	}
	return nil
}

func (s *Session) retryLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.WritePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.resendDue(now)
		}
	}
}

func (s *Session) resendDue(now time.Time) {
	for _, item := range s.outbox.Due(now) {
		if s.cfg.RetryMaxAttempts > 0 && item.Attempts >= s.cfg.RetryMaxAttempts {
			s.outbox.Remove(item.Command)
			s.logger.Warn().
				Str("cmd", s.codec.Commands.Name(item.Command)).
				Int("attempts", item.Attempts).
				Msg("retry exhausted")
			s.observe(Observation{Bytes: item.Frame, Mode: ModeRetryUntilAck, Err: ErrRetryExhausted, At: now})
			continue
		}
		deadline := now.Add(s.cfg.AckTimeout + NextBackoffDelay(s.cfg.Backoff, item.Attempts, nil))
		updated, ok := s.outbox.MarkAttempt(item.Command, now, deadline, "ack timeout")
		if !ok {
			continue
		}
		s.retries.Add(1)
		observability.RecordRetry()
		s.logger.Debug().
			Str("cmd", s.codec.Commands.Name(item.Command)).
			Int("attempt", updated.Attempts).
			Time("next_deadline", deadline).
			Msg("retry resend")
		s.sched.Enqueue(item.Frame, ModePriority)
	}
}

func (s *Session) observe(o Observation) {
	select {
	case s.observations <- o:
	default:
	}
}

func (s *Session) fail(err *TransportError) {
	s.errMu.Lock()
	first := s.err == nil
	if first {
		s.err = err
	}
	s.errMu.Unlock()
	if first {
		s.logger.Error().Err(err).Str("op", err.Op).Msg("transport failed")
	}
	s.shutdown()
}

func (s *Session) shutdown() {
	s.stopOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		s.startMu.Lock()
		cancel := s.cancel
		s.startMu.Unlock()
		if cancel != nil {
			cancel()
		}
		s.heartbeat.Stop()
		if s.port != nil {
			_ = s.port.Close()
		}
		s.logger.Info().Msg("session stopped")
	})
}
