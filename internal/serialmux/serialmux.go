// Package serialmux provides an abstraction over the tester's serial port
// with the ability for multiple clients to subscribe to report frames from
// the device and send command frames to it.
package serialmux

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/banshee-data/latency.report/internal/monitoring"
	"github.com/banshee-data/latency.report/internal/wire"
)

var ErrWriteFailed = fmt.Errorf("failed to write to serial port")

// SerialMux is a serial port multiplexer that reads the device's fixed
// 16-byte frames and fans validated frames out to any number of
// subscribers, while serialising command writes from multiple clients.
type SerialMux[T SerialPorter] struct {
	port         T
	subscribers  map[string]chan wire.Frame
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      bool
	closingMu    sync.Mutex
}

// MuxInterface defines the interface for the SerialMux type.
type MuxInterface interface {
	// Subscribe creates a new channel for receiving validated frames from
	// the device. The channel ID identifies the channel when unsubscribing.
	Subscribe() (string, chan wire.Frame)
	// Unsubscribe removes a channel from the list of subscribers.
	Unsubscribe(string)
	// SendFrame writes a complete command frame to the serial port.
	SendFrame(wire.Frame) error
	// Monitor reads frames from the serial port and sends them to the
	// appropriate channels.
	Monitor(context.Context) error
	// Close closes all subscribed channels and closes the serial port.
	Close() error

	// AttachAdminRoutes attaches admin debugging endpoints to the given
	// HTTP mux served at /debug/. These routes are accessible only over
	// localhost/via Tailscale and are not publicly accessible.
	AttachAdminRoutes(*http.ServeMux)
}

// NewSerialMux creates a SerialMux instance backed by the given port.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{
		port:        port,
		subscribers: make(map[string]chan wire.Frame),
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (s *SerialMux[T]) Subscribe() (string, chan wire.Frame) {
	id := randomID()
	// buffered so a subscriber polling between ticks does not lose frames
	ch := make(chan wire.Frame, 16)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the serial mux.
func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// SendFrame sends a command frame to the serial port.
func (s *SerialMux[T]) SendFrame(f wire.Frame) error {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	n, err := s.port.Write(f[:])
	if err != nil {
		return err
	}
	if n != len(f) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor reads frames from the serial port and sends them to subscribers.
// Frames with an invalid checksum or an opcode the device never emits are
// counted and dropped; the stream stays frame-aligned because the transport
// is lossless and every unit on it is exactly sixteen bytes.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	frameChan := make(chan wire.Frame)
	readErrChan := make(chan error, 1)

	// read frames on a separate goroutine so the blocking ReadFull does not
	// interfere with the outer loop awaiting frames & context cancellation.
	go func() {
		defer close(frameChan)
		for {
			var f wire.Frame
			if _, err := io.ReadFull(s.port, f[:]); err != nil {
				if err != io.EOF {
					select {
					case readErrChan <- err:
					case <-ctx.Done():
					}
				}
				return
			}
			select {
			case frameChan <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-readErrChan:
			return err

		case f, ok := <-frameChan:
			// if the channel is closed, we're done reading from the serial port
			if !ok {
				return nil
			}

			s.closingMu.Lock()
			if s.closing {
				s.closingMu.Unlock()
				return nil
			}
			s.closingMu.Unlock()

			if _, err := wire.DecodeReport(f); err != nil {
				monitoring.Logf("serialmux: dropping frame: %v", err)
				continue
			}

			s.subscriberMu.Lock()
			for _, ch := range s.subscribers {
				select {
				case ch <- f:
				default:
					// if the channel is full/blocking skip so as not to block the outer loop
				}
			}
			s.subscriberMu.Unlock()
		}
	}
}

func (s *SerialMux[T]) Close() error {
	s.closingMu.Lock()
	s.closing = true
	s.closingMu.Unlock()

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	return s.port.Close()
}
