package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrBadChecksum marks a frame whose stored checksum does not match.
	ErrBadChecksum = errors.New("wire: checksum mismatch")
	// ErrUnknownOpcode marks a frame whose opcode the device never emits.
	ErrUnknownOpcode = errors.New("wire: unknown opcode")
	// ErrInvalidSetting marks a settings frame carrying an out-of-range value.
	ErrInvalidSetting = errors.New("wire: invalid setting")
)

// Report is a decoded frame received from the device: a measurement report or
// the echo of a settings command.
type Report interface {
	// ReportOpcode returns the opcode of the frame the report was decoded from.
	ReportOpcode() Opcode
}

// RawReport is one sensor sample: REPORT_RAW.
type RawReport struct {
	TimestampMicros uint64
	Brightness      uint16
	Trigger         bool
}

func (RawReport) ReportOpcode() Opcode { return ReportRaw }

// SummaryReport is one input-to-photon latency measurement: REPORT_SUMMARY.
type SummaryReport struct {
	LatencyMicros uint64
	Threshold     uint16
}

func (SummaryReport) ReportOpcode() Opcode { return ReportSummary }

// PollRateReport is the echo of a poll-rate command, in Hz.
type PollRateReport uint16

func (PollRateReport) ReportOpcode() Opcode { return GetPollRate }

// ReportModeReport is the echo of a report-mode command.
type ReportModeReport ReportMode

func (ReportModeReport) ReportOpcode() Opcode { return GetReportMode }

// ThresholdReport is the echo of a threshold-bias command.
type ThresholdReport int16

func (ThresholdReport) ReportOpcode() Opcode { return GetThreshold }

// ActionReport is the echo of an action command.
type ActionReport struct {
	Kind ActionKind
	Code uint8
}

func (ActionReport) ReportOpcode() Opcode { return GetAction }

// TriggerAck is the echo of a MANUAL_TRIGGER command.
type TriggerAck struct{}

func (TriggerAck) ReportOpcode() Opcode { return ManualTrigger }

// DecodeReport validates and decodes a frame received from the device.
// Settings values are range-checked here: the device stores whatever it was
// told, so the host side is where nonsense surfaces as an error.
func DecodeReport(f Frame) (Report, error) {
	op := f.Opcode()
	if !deviceEmits(op) {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownOpcode, uint8(op))
	}
	if !f.ChecksumOK() {
		return nil, fmt.Errorf("%w: %s got 0x%02x want 0x%02x", ErrBadChecksum, op, f[FrameSize-1], f.Checksum())
	}

	switch op {
	case ReportRaw:
		return RawReport{
			TimestampMicros: binary.LittleEndian.Uint64(f[1:9]),
			Brightness:      binary.LittleEndian.Uint16(f[9:11]),
			Trigger:         f[11] == 1,
		}, nil
	case ReportSummary:
		return SummaryReport{
			LatencyMicros: binary.LittleEndian.Uint64(f[1:9]),
			Threshold:     binary.LittleEndian.Uint16(f[9:11]),
		}, nil
	case SetPollRate, GetPollRate:
		return PollRateReport(binary.LittleEndian.Uint16(f[1:3])), nil
	case SetReportMode, GetReportMode:
		if f[1] > uint8(ModeCombined) {
			return nil, fmt.Errorf("%w: report mode %d", ErrInvalidSetting, f[1])
		}
		return ReportModeReport(f[1]), nil
	case SetThreshold, GetThreshold:
		return ThresholdReport(int16(binary.LittleEndian.Uint16(f[1:3]))), nil
	case SetAction, GetAction:
		kind := ActionKind(f[1])
		if !ValidActionCode(kind, f[2]) {
			return nil, fmt.Errorf("%w: action kind %d code %d", ErrInvalidSetting, f[1], f[2])
		}
		return ActionReport{Kind: kind, Code: f[2]}, nil
	case ManualTrigger:
		return TriggerAck{}, nil
	}
	return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownOpcode, uint8(op))
}
