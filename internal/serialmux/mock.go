package serialmux

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/banshee-data/latency.report/internal/wire"
)

// MockSerialPort implements SerialPorter by replaying report frames at a
// fixed cadence, simulating an attached tester for dev mode.
type MockSerialPort struct {
	reader *io.PipeReader

	mu       sync.Mutex
	commands bytes.Buffer
	closed   bool
}

// NewMockSerialMux creates a SerialMux backed by a mock port that emits the
// given frames in order, repeating forever at the given interval. Commands
// written to the port are captured and otherwise ignored.
func NewMockSerialMux(frames []wire.Frame, interval time.Duration) *SerialMux[*MockSerialPort] {
	r, w := io.Pipe()
	port := &MockSerialPort{reader: r}

	go func() {
		defer w.Close()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		i := 0
		for range ticker.C {
			if len(frames) == 0 {
				continue
			}
			f := frames[i%len(frames)]
			if _, err := w.Write(f[:]); err != nil {
				return
			}
			i++
		}
	}()

	return NewSerialMux(port)
}

func (m *MockSerialPort) Read(p []byte) (int, error) {
	return m.reader.Read(p)
}

func (m *MockSerialPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errors.New("mock serial port closed")
	}
	return m.commands.Write(p)
}

// Commands returns everything written to the mock port so far.
func (m *MockSerialPort) Commands() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.commands.Bytes()...)
}

func (m *MockSerialPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.reader.Close()
}

// FakeMux is an in-process MuxInterface for tests: sent frames are recorded,
// and Inject delivers frames to subscribers as if read from the port.
type FakeMux struct {
	mu          sync.Mutex
	subscribers map[string]chan wire.Frame
	sent        []wire.Frame

	// SendErr, if set, is returned by SendFrame.
	SendErr error
}

func NewFakeMux() *FakeMux {
	return &FakeMux{subscribers: make(map[string]chan wire.Frame)}
}

func (m *FakeMux) Subscribe() (string, chan wire.Frame) {
	id := randomID()
	ch := make(chan wire.Frame, 16)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers[id] = ch
	return id, ch
}

func (m *FakeMux) Unsubscribe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

func (m *FakeMux) SendFrame(f wire.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.sent = append(m.sent, f)
	return nil
}

// Sent returns every frame sent through the fake so far.
func (m *FakeMux) Sent() []wire.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]wire.Frame(nil), m.sent...)
}

// Inject fans a frame out to all subscribers.
func (m *FakeMux) Inject(f wire.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subscribers {
		select {
		case ch <- f:
		default:
		}
	}
}

func (m *FakeMux) Monitor(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (m *FakeMux) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
	return nil
}

func (m *FakeMux) AttachAdminRoutes(*http.ServeMux) {}
