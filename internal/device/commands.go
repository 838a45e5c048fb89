package device

import (
	"encoding/binary"

	"github.com/banshee-data/latency.report/internal/wire"
)

// checkForCommands drains every complete frame the transport has buffered at
// tick start. Frames failing the opcode allow-list or the checksum are
// dropped silently with no response and no state change. Accepted frames are
// dispatched, rewritten in place as the response, resealed, and echoed back.
func (e *Engine) checkForCommands() {
	var f wire.Frame
	for e.link.Buffered() >= wire.FrameSize && e.link.ReadExact(f[:]) {
		if !wire.CommandAllowed(f.Opcode()) || !f.ChecksumOK() {
			continue
		}
		e.dispatch(&f)
		f.Seal()
		e.link.Write(f[:])
	}
}

// dispatch applies an accepted command frame and rewrites its payload as the
// response. Every SET falls through into the matching GET so the response
// always carries the post-mutation value, never a bare ack. Out-of-range
// settings values are ignored: the frame is still echoed (with its original
// payload) but nothing mutates and the GET rewrite is skipped. MANUAL_TRIGGER
// echoes whatever bytes 1..14 held on input.
func (e *Engine) dispatch(f *wire.Frame) {
	switch f.Opcode() {
	case wire.SetPollRate:
		e.setRate(uint64(binary.LittleEndian.Uint16(f[1:3])))
		fallthrough
	case wire.GetPollRate:
		binary.LittleEndian.PutUint16(f[1:3], uint16(1_000_000/e.intervalUS))

	case wire.SetReportMode:
		if f[1] > 3 {
			break
		}
		e.mode = wire.ReportMode(f[1])
		fallthrough
	case wire.GetReportMode:
		f[1] = uint8(e.mode)

	case wire.SetThreshold:
		e.est.Bias = int16(binary.LittleEndian.Uint16(f[1:3]))
		fallthrough
	case wire.GetThreshold:
		binary.LittleEndian.PutUint16(f[1:3], uint16(e.est.Bias))

	case wire.SetAction:
		if f[1] > 2 {
			break
		}
		e.action.Kind = f[1]
		e.action.Code = f[2]
		fallthrough
	case wire.GetAction:
		f[1] = e.action.Kind
		f[2] = e.action.Code

	case wire.ManualTrigger:
		e.manualTrigger()
	}
}
