package wire

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestChecksumSumsFirstFifteenBytes(t *testing.T) {
	var f Frame
	for i := 0; i < FrameSize-1; i++ {
		f[i] = byte(i + 1)
	}
	want := uint8(0)
	for i := 1; i <= FrameSize-1; i++ {
		want += uint8(i)
	}
	if got := f.Checksum(); got != want {
		t.Errorf("Checksum() = 0x%02x, want 0x%02x", got, want)
	}

	f.Seal()
	if !f.ChecksumOK() {
		t.Error("sealed frame failed checksum validation")
	}

	f[3] ^= 0xFF
	if f.ChecksumOK() {
		t.Error("corrupted frame passed checksum validation")
	}
}

func TestChecksumWrapsModulo256(t *testing.T) {
	var f Frame
	for i := range f[:FrameSize-1] {
		f[i] = 0xFF
	}
	f.Seal()
	// 15 * 255 = 3825 = 0xEF1, truncated to 0xF1
	if f[FrameSize-1] != 0xF1 {
		t.Errorf("checksum = 0x%02x, want 0xF1", f[FrameSize-1])
	}
}

func TestNewCommandLayout(t *testing.T) {
	f := NewCommand(SetPollRate, 2000)
	if f.Opcode() != SetPollRate {
		t.Errorf("opcode = %v, want %v", f.Opcode(), SetPollRate)
	}
	if got := binary.LittleEndian.Uint16(f[1:3]); got != 2000 {
		t.Errorf("arg = %d, want 2000", got)
	}
	if !f.ChecksumOK() {
		t.Error("command frame not sealed")
	}
}

func TestCommandAllowed(t *testing.T) {
	for _, op := range []Opcode{SetPollRate, GetPollRate, SetReportMode, GetReportMode,
		SetThreshold, GetThreshold, SetAction, GetAction, ManualTrigger} {
		if !CommandAllowed(op) {
			t.Errorf("CommandAllowed(%v) = false, want true", op)
		}
	}
	for _, op := range []Opcode{ReportRaw, ReportSummary, Opcode(0x00), Opcode(0x7F)} {
		if CommandAllowed(op) {
			t.Errorf("CommandAllowed(%v) = true, want false", op)
		}
	}
}

func TestEncodeDecodeRaw(t *testing.T) {
	f := EncodeRaw(123456789012, 3000, true)
	r, err := DecodeReport(f)
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}
	raw, ok := r.(RawReport)
	if !ok {
		t.Fatalf("decoded %T, want RawReport", r)
	}
	if raw.TimestampMicros != 123456789012 || raw.Brightness != 3000 || !raw.Trigger {
		t.Errorf("decoded %+v", raw)
	}
}

func TestEncodeDecodeSummary(t *testing.T) {
	f := EncodeSummary(8250, 412)
	r, err := DecodeReport(f)
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}
	sum, ok := r.(SummaryReport)
	if !ok {
		t.Fatalf("decoded %T, want SummaryReport", r)
	}
	if sum.LatencyMicros != 8250 || sum.Threshold != 412 {
		t.Errorf("decoded %+v", sum)
	}
	// trigger byte is fixed to 1 in summary frames
	if f[11] != 1 {
		t.Errorf("summary trigger byte = %d, want 1", f[11])
	}
}

func TestDecodeSettingsEchoes(t *testing.T) {
	tests := []struct {
		name string
		f    Frame
		want Report
	}{
		{"poll rate", NewCommand(GetPollRate, 1000), PollRateReport(1000)},
		{"report mode", NewCommand(SetReportMode, uint16(ModeCombined)), ReportModeReport(ModeCombined)},
		{"threshold", NewCommand(SetThreshold, uint16(0xFF9C)), ThresholdReport(-100)},
		{"action", NewActionCommand(KindKeyboard, 'x'), ActionReport{Kind: KindKeyboard, Code: 'x'}},
		{"manual trigger", NewCommand(ManualTrigger, 0), TriggerAck{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeReport(tt.f)
			if err != nil {
				t.Fatalf("DecodeReport: %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeReport = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeRejectsBadFrames(t *testing.T) {
	bad := EncodeRaw(1, 2, false)
	bad[15]++
	if _, err := DecodeReport(bad); !errors.Is(err, ErrBadChecksum) {
		t.Errorf("corrupt frame error = %v, want ErrBadChecksum", err)
	}

	var unknown Frame
	unknown[0] = 0x7E
	unknown.Seal()
	if _, err := DecodeReport(unknown); !errors.Is(err, ErrUnknownOpcode) {
		t.Errorf("unknown opcode error = %v, want ErrUnknownOpcode", err)
	}

	invalidMode := NewCommand(SetReportMode, 3)
	if _, err := DecodeReport(invalidMode); !errors.Is(err, ErrInvalidSetting) {
		t.Errorf("mode 3 error = %v, want ErrInvalidSetting", err)
	}

	invalidAction := NewActionCommand(KindMouse, 9)
	if _, err := DecodeReport(invalidAction); !errors.Is(err, ErrInvalidSetting) {
		t.Errorf("mouse code 9 error = %v, want ErrInvalidSetting", err)
	}
}

func TestValidActionCode(t *testing.T) {
	tests := []struct {
		kind ActionKind
		code uint8
		want bool
	}{
		{KindMouse, MouseLeft, true},
		{KindMouse, MouseRight, true},
		{KindMouse, MouseMiddle, true},
		{KindMouse, 3, false},
		{KindMouse, 0, false},
		{KindKeyboard, 'a', true},
		{KindKeyboard, 'z', true},
		{KindKeyboard, 'A', false},
		{KindKeyboard, '1', false},
		{ActionKind(2), 'a', false},
	}
	for _, tt := range tests {
		if got := ValidActionCode(tt.kind, tt.code); got != tt.want {
			t.Errorf("ValidActionCode(%v, %d) = %v, want %v", tt.kind, tt.code, got, tt.want)
		}
	}
}
