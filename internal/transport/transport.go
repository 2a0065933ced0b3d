// Package transport supplies the byte ports a link session runs over: a
// serial device opened through go.bug.st/serial, and an in-memory pipe pair
// for tests and the loopback simulator.
package transport

import (
	"errors"
	"io"
)

// Port is a full-duplex byte stream. Read may return 0, nil when a read
// timeout elapses without data.
type Port interface {
	io.ReadWriteCloser
}

var ErrClosed = errors.New("transport: port closed")
