package device

import (
	"bytes"

	"github.com/banshee-data/latency.report/internal/wire"
)

// MemoryLink is an in-memory Link for tests and the simulator: the host side
// pushes frames in, and everything the engine writes is captured.
type MemoryLink struct {
	in  bytes.Buffer
	out bytes.Buffer
}

// Push queues raw bytes as if received from the host.
func (l *MemoryLink) Push(p []byte) {
	l.in.Write(p)
}

// PushFrame queues one complete frame.
func (l *MemoryLink) PushFrame(f wire.Frame) {
	l.in.Write(f[:])
}

// Buffered returns the number of host bytes queued.
func (l *MemoryLink) Buffered() int { return l.in.Len() }

// ReadExact pops len(p) bytes from the host queue.
func (l *MemoryLink) ReadExact(p []byte) bool {
	if l.in.Len() < len(p) {
		return false
	}
	copy(p, l.in.Next(len(p)))
	return true
}

// Write captures device output.
func (l *MemoryLink) Write(p []byte) {
	l.out.Write(p)
}

// Output returns everything the engine has written so far.
func (l *MemoryLink) Output() []byte {
	return l.out.Bytes()
}

// Frames drains the captured output as complete frames, discarding any
// trailing partial frame.
func (l *MemoryLink) Frames() []wire.Frame {
	var frames []wire.Frame
	for l.out.Len() >= wire.FrameSize {
		var f wire.Frame
		copy(f[:], l.out.Next(wire.FrameSize))
		frames = append(frames, f)
	}
	return frames
}

// Reset discards captured output.
func (l *MemoryLink) Reset() {
	l.out.Reset()
}

// HIDCall records a single call on a RecordingHID.
type HIDCall struct {
	// Op is "mouse-press", "mouse-release", "key-press", or "key-release".
	Op   string
	Code uint8
}

// RecordingHID captures emulated input calls for assertions.
type RecordingHID struct {
	Calls []HIDCall
}

func (h *RecordingHID) MousePress(button uint8) {
	h.Calls = append(h.Calls, HIDCall{Op: "mouse-press", Code: button})
}

func (h *RecordingHID) MouseRelease(button uint8) {
	h.Calls = append(h.Calls, HIDCall{Op: "mouse-release", Code: button})
}

func (h *RecordingHID) KeyPress(code uint8) {
	h.Calls = append(h.Calls, HIDCall{Op: "key-press", Code: code})
}

func (h *RecordingHID) KeyRelease(code uint8) {
	h.Calls = append(h.Calls, HIDCall{Op: "key-release", Code: code})
}

// Reset clears recorded calls.
func (h *RecordingHID) Reset() {
	h.Calls = nil
}

// FakeADC returns a settable raw reading.
type FakeADC struct {
	Value uint16
}

func (a *FakeADC) Read() uint16 { return a.Value }

// FakeInput returns a settable electrical level. High is the idle state for
// an active-low trigger line.
type FakeInput struct {
	Level bool
}

func (i *FakeInput) Read() bool { return i.Level }
