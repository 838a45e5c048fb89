package device

import (
	"context"
	"encoding/binary"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/latency.report/internal/timeutil"
	"github.com/banshee-data/latency.report/internal/wire"
)

type testRig struct {
	engine *Engine
	link   *MemoryLink
	hid    *RecordingHID
	adc    *FakeADC
	input  *FakeInput
	clock  *timeutil.MockClock
}

func newTestRig(t *testing.T, mutate func(*Config)) *testRig {
	t.Helper()
	rig := &testRig{
		link:  &MemoryLink{},
		hid:   &RecordingHID{},
		adc:   &FakeADC{Value: 0xFFF}, // inverted brightness 0
		input: &FakeInput{Level: true},
		clock: timeutil.NewMockClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
	}
	cfg := Config{
		Link:       rig.link,
		HID:        rig.hid,
		ADC:        rig.adc,
		Input:      rig.input,
		Clock:      rig.clock,
		PollRateHz: 2000, // 500µs interval
	}
	if mutate != nil {
		mutate(&cfg)
	}
	engine, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rig.engine = engine
	return rig
}

// tick advances the mock clock by one interval and runs one cycle.
func (r *testRig) tick() {
	r.clock.Advance(r.engine.Interval())
	r.engine.Tick()
}

// setBrightness points the fake ADC at a raw value that inverts to b.
func (r *testRig) setBrightness(b uint16) {
	r.adc.Value = b ^ 0xFFF
}

func framesWithOpcode(frames []wire.Frame, op wire.Opcode) []wire.Frame {
	var out []wire.Frame
	for _, f := range frames {
		if f.Opcode() == op {
			out = append(out, f)
		}
	}
	return out
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New with no collaborators should fail")
	}
}

func TestCommandResponsesAreSealed(t *testing.T) {
	rig := newTestRig(t, func(c *Config) { c.Mode = wire.ModeSummary })

	for _, f := range []wire.Frame{
		wire.NewCommand(wire.SetPollRate, 1000),
		wire.NewCommand(wire.GetPollRate, 0),
		wire.NewCommand(wire.SetReportMode, uint16(wire.ModeSummary)),
		wire.NewCommand(wire.GetReportMode, 0),
		wire.NewCommand(wire.SetThreshold, uint16(0xFFF6)), // -10
		wire.NewCommand(wire.GetThreshold, 0),
		wire.NewActionCommand(wire.KindKeyboard, 'q'),
		wire.NewCommand(wire.GetAction, 0),
		wire.NewCommand(wire.ManualTrigger, 0),
	} {
		rig.link.PushFrame(f)
	}
	rig.tick()

	responses := rig.link.Frames()
	if len(responses) != 9 {
		t.Fatalf("got %d responses, want 9", len(responses))
	}
	for i, f := range responses {
		if !f.ChecksumOK() {
			t.Errorf("response %d (%v): checksum invalid", i, f.Opcode())
		}
	}
}

func TestInvalidFramesDroppedWithoutResponse(t *testing.T) {
	rig := newTestRig(t, func(c *Config) { c.Mode = wire.ModeSummary })

	corrupt := wire.NewCommand(wire.SetPollRate, 4000)
	corrupt[15]++
	rig.link.PushFrame(corrupt)

	// report opcodes are not in the inbound allow-list
	rig.link.PushFrame(wire.EncodeRaw(1, 2, false))

	rig.tick()

	if n := len(rig.link.Frames()); n != 0 {
		t.Fatalf("got %d responses to invalid frames, want 0", n)
	}

	// interval must be untouched by the corrupt SET_POLL_RATE
	rig.link.PushFrame(wire.NewCommand(wire.GetPollRate, 0))
	rig.tick()
	responses := rig.link.Frames()
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	if rate := binary.LittleEndian.Uint16(responses[0][1:3]); rate != 2000 {
		t.Errorf("poll rate = %d after corrupt set, want 2000", rate)
	}
}

func TestSetPollRateRoundTripsInOneDispatch(t *testing.T) {
	rig := newTestRig(t, func(c *Config) { c.Mode = wire.ModeSummary })

	rig.link.PushFrame(wire.NewCommand(wire.SetPollRate, 1000))
	rig.tick()

	responses := rig.link.Frames()
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	if responses[0].Opcode() != wire.SetPollRate {
		t.Errorf("response opcode = %v, want %v", responses[0].Opcode(), wire.SetPollRate)
	}
	if rate := binary.LittleEndian.Uint16(responses[0][1:3]); rate != 1000 {
		t.Errorf("echoed rate = %d, want 1000", rate)
	}
	if rig.engine.Interval() != time.Millisecond {
		t.Errorf("interval = %v, want 1ms", rig.engine.Interval())
	}
}

func TestSetThresholdRoundTripsNegative(t *testing.T) {
	rig := newTestRig(t, func(c *Config) { c.Mode = wire.ModeSummary })

	rig.link.PushFrame(wire.NewCommand(wire.SetThreshold, uint16(0xFF9C))) // -100
	rig.tick()

	responses := rig.link.Frames()
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	if bias := int16(binary.LittleEndian.Uint16(responses[0][1:3])); bias != -100 {
		t.Errorf("echoed bias = %d, want -100", bias)
	}
	if rig.engine.est.Bias != -100 {
		t.Errorf("stored bias = %d, want -100", rig.engine.est.Bias)
	}
}

func TestManualTriggerPulse(t *testing.T) {
	rig := newTestRig(t, func(c *Config) { c.Mode = wire.ModeSummary })

	rig.link.PushFrame(wire.NewCommand(wire.ManualTrigger, 0))
	rig.tick() // pulse starts: press issued this tick

	if len(rig.hid.Calls) != 1 || rig.hid.Calls[0].Op != "mouse-press" {
		t.Fatalf("after trigger tick: calls = %v, want one mouse-press", rig.hid.Calls)
	}

	// 50ms at 500µs/tick = 100 ticks in progress, no action calls
	for i := 0; i < 100; i++ {
		rig.tick()
	}
	if len(rig.hid.Calls) != 1 {
		t.Fatalf("during pulse: calls = %v, want press only", rig.hid.Calls)
	}

	rig.tick() // release tick
	if len(rig.hid.Calls) != 2 || rig.hid.Calls[1].Op != "mouse-release" {
		t.Fatalf("after pulse: calls = %v, want press then release", rig.hid.Calls)
	}
	if rig.hid.Calls[1].Code != wire.MouseLeft {
		t.Errorf("release code = %d, want left button", rig.hid.Calls[1].Code)
	}

	// machine is back to rest: no further calls
	for i := 0; i < 10; i++ {
		rig.tick()
	}
	if len(rig.hid.Calls) != 2 {
		t.Errorf("after pulse settled: calls = %v, want exactly 2", rig.hid.Calls)
	}
}

func TestManualTriggerEchoPreservesPayload(t *testing.T) {
	rig := newTestRig(t, func(c *Config) { c.Mode = wire.ModeSummary })

	var f wire.Frame
	f[0] = byte(wire.ManualTrigger)
	for i := 1; i < 15; i++ {
		f[i] = byte(0xA0 + i)
	}
	f.Seal()
	rig.link.PushFrame(f)
	rig.tick()

	responses := rig.link.Frames()
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	for i := 1; i < 15; i++ {
		if responses[0][i] != byte(0xA0+i) {
			t.Fatalf("echo byte %d = 0x%02x, want 0x%02x", i, responses[0][i], 0xA0+i)
		}
	}
}

func TestPhysicalButtonDrivesAction(t *testing.T) {
	rig := newTestRig(t, func(c *Config) { c.Mode = wire.ModeSummary })

	rig.tick() // idle, line high
	rig.input.Level = false
	rig.tick() // falling edge: press
	rig.tick() // held: no new calls
	rig.input.Level = true
	rig.tick() // rising edge: release

	want := []HIDCall{
		{Op: "mouse-press", Code: wire.MouseLeft},
		{Op: "mouse-release", Code: wire.MouseLeft},
	}
	if len(rig.hid.Calls) != len(want) {
		t.Fatalf("calls = %v, want %v", rig.hid.Calls, want)
	}
	for i := range want {
		if rig.hid.Calls[i] != want[i] {
			t.Errorf("call %d = %v, want %v", i, rig.hid.Calls[i], want[i])
		}
	}
}

func TestRawModeEmitsExactlyOneRawPerTick(t *testing.T) {
	rig := newTestRig(t, func(c *Config) { c.Mode = wire.ModeSummary })

	rig.link.PushFrame(wire.NewCommand(wire.SetReportMode, uint16(wire.ModeRaw)))
	rig.tick()
	rig.link.Reset() // discard the settings echo and first raw report

	for i := 0; i < 20; i++ {
		rig.tick()
	}
	frames := rig.link.Frames()
	if raw := framesWithOpcode(frames, wire.ReportRaw); len(raw) != 20 {
		t.Errorf("raw reports = %d over 20 ticks, want 20", len(raw))
	}
	if summaries := framesWithOpcode(frames, wire.ReportSummary); len(summaries) != 0 {
		t.Errorf("summary reports = %d in raw mode, want 0", len(summaries))
	}
}

func TestRawReportContents(t *testing.T) {
	rig := newTestRig(t, nil) // default mode is raw
	rig.setBrightness(2345)
	rig.input.Level = false
	rig.tick()

	frames := framesWithOpcode(rig.link.Frames(), wire.ReportRaw)
	if len(frames) != 1 {
		t.Fatalf("got %d raw frames, want 1", len(frames))
	}
	r, err := wire.DecodeReport(frames[0])
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}
	raw := r.(wire.RawReport)
	if raw.Brightness != 2345 {
		t.Errorf("brightness = %d, want 2345", raw.Brightness)
	}
	if !raw.Trigger {
		t.Error("trigger flag not set while button held")
	}
	if raw.TimestampMicros != 500 {
		t.Errorf("timestamp = %d, want 500", raw.TimestampMicros)
	}
}

func TestSummaryLatencyMeasurement(t *testing.T) {
	rig := newTestRig(t, func(c *Config) { c.Mode = wire.ModeSummary })

	// zero the bias so the threshold is exactly the rolling average
	rig.link.PushFrame(wire.NewCommand(wire.SetThreshold, 0))
	rig.tick()
	rig.link.Reset()

	// press: records the trigger timestamp
	rig.input.Level = false
	rig.tick()

	// screen hasn't reacted yet
	for i := 0; i < 3; i++ {
		rig.tick()
	}
	if n := len(rig.link.Frames()); n != 0 {
		t.Fatalf("premature summary reports: %d", n)
	}

	// screen reacts: brightness jumps over the (still ~0) threshold
	rig.setBrightness(3000)
	rig.tick()

	frames := framesWithOpcode(rig.link.Frames(), wire.ReportSummary)
	if len(frames) != 1 {
		t.Fatalf("got %d summary frames, want 1", len(frames))
	}
	r, err := wire.DecodeReport(frames[0])
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}
	sum := r.(wire.SummaryReport)
	// press tick to reaction tick is 4 intervals of 500µs
	if sum.LatencyMicros != 2000 {
		t.Errorf("latency = %dµs, want 2000", sum.LatencyMicros)
	}

	// the trigger timestamp is consumed: no repeat while brightness stays high
	rig.link.Reset()
	for i := 0; i < 5; i++ {
		rig.tick()
	}
	if n := len(framesWithOpcode(rig.link.Frames(), wire.ReportSummary)); n != 0 {
		t.Errorf("repeated summary reports: %d", n)
	}
}

func TestSetActionSwitchesBackend(t *testing.T) {
	rig := newTestRig(t, func(c *Config) { c.Mode = wire.ModeSummary })

	rig.link.PushFrame(wire.NewActionCommand(wire.KindKeyboard, 'q'))
	rig.tick()

	responses := rig.link.Frames()
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	if responses[0][1] != uint8(wire.KindKeyboard) || responses[0][2] != 'q' {
		t.Errorf("echo kind/code = %d/%d, want 1/'q'", responses[0][1], responses[0][2])
	}

	rig.input.Level = false
	rig.tick()
	if len(rig.hid.Calls) != 1 || rig.hid.Calls[0] != (HIDCall{Op: "key-press", Code: 'q'}) {
		t.Errorf("calls = %v, want key-press 'q'", rig.hid.Calls)
	}
}

// The device stores whatever action bytes it is told: codes are not checked
// against the chosen kind, and kind byte 2 is accepted even though it
// dispatches to neither backend. Both behaviours are load-bearing for host
// compatibility.
func TestSetActionAcceptsUnvalidatedValues(t *testing.T) {
	rig := newTestRig(t, func(c *Config) { c.Mode = wire.ModeSummary })

	// mouse code 99 is not a real button but is stored as-is
	rig.link.PushFrame(wire.NewActionCommand(wire.KindMouse, 99))
	rig.tick()
	responses := rig.link.Frames()
	if len(responses) != 1 || responses[0][2] != 99 {
		t.Fatalf("mouse code 99 not stored: %v", responses)
	}
	rig.link.Reset()

	// kind 2 is inside the accepted range but has no backend
	rig.link.PushFrame(wire.NewActionCommand(wire.ActionKind(2), 'a'))
	rig.tick()
	responses = rig.link.Frames()
	if len(responses) != 1 || responses[0][1] != 2 {
		t.Fatalf("kind 2 not stored: %v", responses)
	}
	rig.input.Level = false
	rig.tick()
	if len(rig.hid.Calls) != 0 {
		t.Errorf("kind 2 dispatched calls: %v", rig.hid.Calls)
	}

	// kind 3 is out of range: ignored, previous setting kept, frame echoed
	rig.link.Reset()
	rig.link.PushFrame(wire.NewActionCommand(wire.ActionKind(3), 'b'))
	rig.tick()
	responses = rig.link.Frames()
	if len(responses) != 1 {
		t.Fatalf("out-of-range kind got %d responses, want echo", len(responses))
	}
	if responses[0][1] != 3 || responses[0][2] != 'b' {
		t.Errorf("echo rewrote payload: kind/code = %d/%d", responses[0][1], responses[0][2])
	}
	if rig.engine.action.Kind != 2 {
		t.Errorf("stored kind = %d, want previous value 2", rig.engine.action.Kind)
	}
}

func TestReportModeThreeEmitsNothing(t *testing.T) {
	rig := newTestRig(t, nil)

	rig.link.PushFrame(wire.NewCommand(wire.SetReportMode, 3))
	rig.tick()
	rig.link.Reset()

	for i := 0; i < 10; i++ {
		rig.tick()
	}
	if n := len(rig.link.Frames()); n != 0 {
		t.Errorf("mode 3 emitted %d frames, want 0", n)
	}
}

func TestPartialFrameWaitsForMoreBytes(t *testing.T) {
	rig := newTestRig(t, func(c *Config) { c.Mode = wire.ModeSummary })

	f := wire.NewCommand(wire.SetPollRate, 1000)
	rig.link.Push(f[:8])
	rig.tick()
	if n := len(rig.link.Frames()); n != 0 {
		t.Fatalf("half a frame produced %d responses", n)
	}
	if rig.engine.Interval() != 500*time.Microsecond {
		t.Fatal("half a frame mutated the interval")
	}

	rig.link.Push(f[8:])
	rig.tick()
	if n := len(rig.link.Frames()); n != 1 {
		t.Errorf("completed frame produced %d responses, want 1", n)
	}
}

func TestTextReportsEmitDelimitedLines(t *testing.T) {
	rig := newTestRig(t, func(c *Config) { c.TextReports = true })
	rig.setBrightness(1234)
	rig.input.Level = false
	rig.tick()

	got := string(rig.link.Output())
	if got != "500,1234,1\n" {
		t.Errorf("text report = %q, want %q", got, "500,1234,1\n")
	}
	if strings.Count(got, "\n") != 1 {
		t.Errorf("want exactly one line, got %q", got)
	}
}

func TestTriggerOnReleaseRecordsReleaseTimestamp(t *testing.T) {
	rig := newTestRig(t, func(c *Config) {
		c.Mode = wire.ModeSummary
		c.TriggerOnRelease = true
	})

	rig.link.PushFrame(wire.NewCommand(wire.ManualTrigger, 0))
	rig.tick()
	if rig.engine.triggerHigh != 0 {
		t.Error("press recorded trigger timestamp in release mode")
	}
	for i := 0; i < 101; i++ {
		rig.tick()
	}
	if rig.engine.triggerHigh == 0 {
		t.Error("release did not record trigger timestamp in release mode")
	}
}

func TestRunSleepsTheRemainderOfEachInterval(t *testing.T) {
	rig := newTestRig(t, func(c *Config) { c.Mode = wire.ModeSummary })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rig.engine.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for len(rig.clock.Sleeps()) < 5 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for loop iterations")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}

	// ticks consume no mock time, so every sleep is the full interval
	for i, d := range rig.clock.Sleeps()[:5] {
		if d != 500*time.Microsecond {
			t.Errorf("sleep %d = %v, want 500µs", i, d)
		}
	}
}
