package device

import (
	"bytes"
	"io"
	"sync"

	"github.com/banshee-data/latency.report/internal/monitoring"
)

// Link is the byte-oriented command/report channel the engine is driven
// over. The transport underneath is assumed in-order and lossless; writes do
// not fail. A partial frame simply stays buffered until a later tick's drain
// sees all sixteen bytes.
type Link interface {
	// Buffered returns the number of bytes available to read right now.
	Buffered() int
	// ReadExact fills p from the buffer, returning false if it could not.
	ReadExact(p []byte) bool
	// Write sends p to the host.
	Write(p []byte)
}

// StreamLink adapts an io.ReadWriter (a serial port, a TCP connection, a
// pipe) into a Link. A background goroutine pumps inbound bytes into a
// buffer so the single-threaded tick loop can poll without blocking.
type StreamLink struct {
	mu  sync.Mutex
	buf bytes.Buffer
	w   io.Writer
}

// NewStreamLink starts the reader goroutine and returns the link. The
// goroutine exits when rw's reader returns an error (port closed).
func NewStreamLink(rw io.ReadWriter) *StreamLink {
	l := &StreamLink{w: rw}
	go func() {
		chunk := make([]byte, 256)
		for {
			n, err := rw.Read(chunk)
			if n > 0 {
				l.mu.Lock()
				l.buf.Write(chunk[:n])
				l.mu.Unlock()
			}
			if err != nil {
				if err != io.EOF {
					monitoring.Logf("link: read terminated: %v", err)
				}
				return
			}
		}
	}()
	return l
}

// Buffered returns the bytes currently queued from the host.
func (l *StreamLink) Buffered() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Len()
}

// ReadExact fills p from the queue, or returns false leaving the queue
// untouched if fewer than len(p) bytes are available.
func (l *StreamLink) ReadExact(p []byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.buf.Len() < len(p) {
		return false
	}
	_, err := io.ReadFull(&l.buf, p)
	return err == nil
}

// Write sends p to the host. Transport errors are logged, not surfaced; the
// loop has no error path for reports.
func (l *StreamLink) Write(p []byte) {
	if _, err := l.w.Write(p); err != nil {
		monitoring.Logf("link: write failed: %v", err)
	}
}
