// Package wire implements the fixed 16-byte framing spoken over the tester's
// serial link: command frames sent by a host, settings echoes and measurement
// reports sent back by the device. Every frame is 16 bytes with the opcode in
// byte 0, opcode-specific payload in bytes 1..14, and an additive mod-256
// checksum over bytes 0..14 stored in byte 15.
package wire

import (
	"encoding/binary"
	"fmt"
)

// FrameSize is the fixed length of every frame on the link.
const FrameSize = 16

// Opcode identifies the type of a frame.
type Opcode uint8

const (
	SetPollRate   Opcode = 0x01
	SetReportMode Opcode = 0x02
	SetThreshold  Opcode = 0x03
	SetAction     Opcode = 0x04
	ManualTrigger Opcode = 0x1F
	GetPollRate   Opcode = 0x21
	GetReportMode Opcode = 0x22
	GetThreshold  Opcode = 0x23
	GetAction     Opcode = 0x24
	ReportRaw     Opcode = 0x41
	ReportSummary Opcode = 0x42
)

func (o Opcode) String() string {
	switch o {
	case SetPollRate:
		return "set-poll-rate"
	case SetReportMode:
		return "set-report-mode"
	case SetThreshold:
		return "set-threshold"
	case SetAction:
		return "set-action"
	case ManualTrigger:
		return "manual-trigger"
	case GetPollRate:
		return "get-poll-rate"
	case GetReportMode:
		return "get-report-mode"
	case GetThreshold:
		return "get-threshold"
	case GetAction:
		return "get-action"
	case ReportRaw:
		return "report-raw"
	case ReportSummary:
		return "report-summary"
	}
	return fmt.Sprintf("opcode(0x%02x)", uint8(o))
}

// commandOpcodes is the allow-list of opcodes the device accepts from a host.
// Report opcodes are send-only and are rejected on the way in.
var commandOpcodes = []Opcode{
	SetPollRate,
	GetPollRate,
	SetReportMode,
	GetReportMode,
	SetThreshold,
	GetThreshold,
	SetAction,
	GetAction,
	ManualTrigger,
}

// CommandAllowed reports whether op is a command the device will accept.
func CommandAllowed(op Opcode) bool {
	for _, c := range commandOpcodes {
		if c == op {
			return true
		}
	}
	return false
}

// deviceOpcodes is every opcode the device emits: settings echoes for the
// command set plus the two report frames. A host uses this to reject noise.
func deviceEmits(op Opcode) bool {
	return op == ReportRaw || op == ReportSummary || CommandAllowed(op)
}

// ReportMode selects which report streams the device emits each tick.
type ReportMode uint8

const (
	ModeRaw ReportMode = iota
	ModeSummary
	ModeCombined
)

func (m ReportMode) String() string {
	switch m {
	case ModeRaw:
		return "raw"
	case ModeSummary:
		return "summary"
	case ModeCombined:
		return "combined"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// IncludesRaw reports whether the mode emits raw sample frames.
func (m ReportMode) IncludesRaw() bool { return m == ModeRaw || m == ModeCombined }

// IncludesSummary reports whether the mode emits summary latency frames.
func (m ReportMode) IncludesSummary() bool { return m == ModeSummary || m == ModeCombined }

// ActionKind selects the emulated input backend an action drives.
type ActionKind uint8

const (
	KindMouse ActionKind = iota
	KindKeyboard
)

func (k ActionKind) String() string {
	switch k {
	case KindMouse:
		return "mouse"
	case KindKeyboard:
		return "keyboard"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Mouse button codes, matching the Arduino Mouse library values the
// firmware-era hosts expect.
const (
	MouseLeft   uint8 = 1
	MouseRight  uint8 = 2
	MouseMiddle uint8 = 4
)

// ValidActionCode reports whether code is a meaningful value for kind:
// left/right/middle for mouse, 'a'..'z' for keyboard. The device itself does
// not enforce this; hosts validate on decode.
func ValidActionCode(kind ActionKind, code uint8) bool {
	switch kind {
	case KindMouse:
		return code == MouseLeft || code == MouseRight || code == MouseMiddle
	case KindKeyboard:
		return code >= 'a' && code <= 'z'
	}
	return false
}

// Frame is one 16-byte unit on the link.
type Frame [FrameSize]byte

// Opcode returns the frame's opcode byte.
func (f *Frame) Opcode() Opcode { return Opcode(f[0]) }

// Checksum computes the additive checksum over bytes 0..14.
func (f *Frame) Checksum() uint8 {
	var sum uint8
	for _, b := range f[:FrameSize-1] {
		sum += b
	}
	return sum
}

// Seal writes the checksum into the final byte.
func (f *Frame) Seal() { f[FrameSize-1] = f.Checksum() }

// ChecksumOK reports whether the stored checksum matches the payload.
func (f *Frame) ChecksumOK() bool { return f[FrameSize-1] == f.Checksum() }

// NewCommand builds a sealed command frame with a little-endian u16 argument
// in bytes 1-2. Get commands and manual trigger take a zero argument.
func NewCommand(op Opcode, arg uint16) Frame {
	var f Frame
	f[0] = byte(op)
	binary.LittleEndian.PutUint16(f[1:3], arg)
	f.Seal()
	return f
}

// NewActionCommand builds a sealed SET_ACTION frame carrying kind and code.
func NewActionCommand(kind ActionKind, code uint8) Frame {
	var f Frame
	f[0] = byte(SetAction)
	f[1] = byte(kind)
	f[2] = code
	f.Seal()
	return f
}

// EncodeRaw builds a sealed REPORT_RAW frame: 8-byte timestamp, 2-byte
// brightness, 1-byte trigger flag, 3 reserved bytes.
func EncodeRaw(timestampMicros uint64, brightness uint16, trigger bool) Frame {
	return encodeReport(ReportRaw, timestampMicros, brightness, trigger)
}

// EncodeSummary builds a sealed REPORT_SUMMARY frame with the same layout:
// the timestamp slot carries the measured latency, the brightness slot the
// threshold used, and the trigger byte is fixed to 1.
func EncodeSummary(latencyMicros uint64, threshold uint16) Frame {
	return encodeReport(ReportSummary, latencyMicros, threshold, true)
}

func encodeReport(op Opcode, value uint64, aux uint16, trigger bool) Frame {
	var f Frame
	f[0] = byte(op)
	binary.LittleEndian.PutUint64(f[1:9], value)
	binary.LittleEndian.PutUint16(f[9:11], aux)
	if trigger {
		f[11] = 1
	}
	f.Seal()
	return f
}
