// Package session owns the PC<->MAIN link runtime.
//
// Ownership boundary:
// - send scheduler (normal / priority / retry-until-ack)
// - heartbeat generator with pause and delayed resume
// - retry outbox and backoff for unacknowledged commands
// - reader/writer loops over a transport.Port
//
// Locking rules:
// - the frame.Reassembler is touched by the reader goroutine only
// - Scheduler is the one queue shared between producers and the writer
// - heartbeat pause flag is atomic; its resume timer is a single mutex-guarded slot
package session
