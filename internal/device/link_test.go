package device

import (
	"bytes"
	"io"
	"sync"
	"testing"
	"time"
)

// pipeRW is an in-memory ReadWriter whose Read blocks until data arrives.
type pipeRW struct {
	r *io.PipeReader
	w *io.PipeWriter

	mu      sync.Mutex
	written bytes.Buffer
}

func newPipeRW() *pipeRW {
	r, w := io.Pipe()
	return &pipeRW{r: r, w: w}
}

func (p *pipeRW) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *pipeRW) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *pipeRW) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.written.Bytes()...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("timed out")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestStreamLinkBuffersInboundBytes(t *testing.T) {
	rw := newPipeRW()
	link := NewStreamLink(rw)

	go rw.w.Write([]byte{1, 2, 3, 4})
	waitFor(t, func() bool { return link.Buffered() == 4 })

	buf := make([]byte, 4)
	if !link.ReadExact(buf) {
		t.Fatal("ReadExact failed with 4 bytes buffered")
	}
	if !bytes.Equal(buf, []byte{1, 2, 3, 4}) {
		t.Errorf("read %v", buf)
	}
	if link.Buffered() != 0 {
		t.Errorf("Buffered() = %d after drain, want 0", link.Buffered())
	}
}

func TestStreamLinkReadExactRefusesShortBuffer(t *testing.T) {
	rw := newPipeRW()
	link := NewStreamLink(rw)

	go rw.w.Write([]byte{1, 2})
	waitFor(t, func() bool { return link.Buffered() == 2 })

	buf := make([]byte, 4)
	if link.ReadExact(buf) {
		t.Fatal("ReadExact succeeded with only 2 of 4 bytes available")
	}
	// the partial data stays queued
	if link.Buffered() != 2 {
		t.Errorf("Buffered() = %d, want 2", link.Buffered())
	}
}

func TestStreamLinkWritePassesThrough(t *testing.T) {
	rw := newPipeRW()
	link := NewStreamLink(rw)

	link.Write([]byte("abc"))
	if got := rw.Written(); !bytes.Equal(got, []byte("abc")) {
		t.Errorf("wrote %q", got)
	}
}

func TestStreamLinkStopsOnEOF(t *testing.T) {
	rw := newPipeRW()
	link := NewStreamLink(rw)

	rw.w.Write([]byte{9})
	rw.w.Close()
	waitFor(t, func() bool { return link.Buffered() == 1 })
	// already-buffered bytes stay readable after the reader exits
	buf := make([]byte, 1)
	if !link.ReadExact(buf) || buf[0] != 9 {
		t.Errorf("read %v after EOF", buf)
	}
}
