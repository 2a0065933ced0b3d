package transport

import (
	"io"
	"sync"
)

// NewPipe returns two connected ports. Bytes written to a are read from b and
// the other way around. Writes never block.
func NewPipe() (Port, Port) {
	ab := newPipeBuffer()
	ba := newPipeBuffer()
	return &pipeEnd{r: ba, w: ab}, &pipeEnd{r: ab, w: ba}
}

type pipeEnd struct {
	r *pipeBuffer
	w *pipeBuffer
}

func (p *pipeEnd) Read(b []byte) (int, error) { return p.r.read(b) }

func (p *pipeEnd) Write(b []byte) (int, error) { return p.w.write(b) }

// Close stops this end. The peer drains what was already written and then
// reads io.EOF; its writes fail with ErrClosed.
func (p *pipeEnd) Close() error {
	p.r.closeReader()
	p.w.closeWriter()
	return nil
}

type pipeBuffer struct {
	mu      sync.Mutex
	data    []byte
	ready   chan struct{}
	rclosed bool
	wclosed bool
}

func newPipeBuffer() *pipeBuffer {
	return &pipeBuffer{ready: make(chan struct{}, 1)}
}

func (p *pipeBuffer) read(b []byte) (int, error) {
	for {
		p.mu.Lock()
		if p.rclosed {
			p.mu.Unlock()
			return 0, ErrClosed
		}
		if len(p.data) > 0 {
			n := copy(b, p.data)
			p.data = p.data[n:]
			p.mu.Unlock()
			return n, nil
		}
		if p.wclosed {
			p.mu.Unlock()
			return 0, io.EOF
		}
		p.mu.Unlock()
		<-p.ready
	}
}

func (p *pipeBuffer) write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rclosed || p.wclosed {
		return 0, ErrClosed
	}
	p.data = append(p.data, b...)
	p.signalLocked()
	return len(b), nil
}

func (p *pipeBuffer) closeReader() {
	p.mu.Lock()
	p.rclosed = true
	p.signalLocked()
	p.mu.Unlock()
}

func (p *pipeBuffer) closeWriter() {
	p.mu.Lock()
	p.wclosed = true
	p.signalLocked()
	p.mu.Unlock()
}

func (p *pipeBuffer) signalLocked() {
	select {
	case p.ready <- struct{}{}:
	default:
	}
}
