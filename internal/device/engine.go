// Package device implements the latency tester's measurement-and-control
// engine: sensor sampling, edge detection, the adaptive brightness
// threshold, the synthetic trigger-pulse machine, emulated input actions,
// and the 16-byte command protocol, all driven by a fixed-rate tick loop.
//
// The engine owns all of its state and runs on a single goroutine; hardware,
// transport, and the emulated input backend are injected collaborators.
package device

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/latency.report/internal/timeutil"
	"github.com/banshee-data/latency.report/internal/wire"
)

// pulseMicros is the fixed duration of a synthetic trigger pulse.
const pulseMicros = 50_000

// Config carries the engine's collaborators and initial settings. Link, HID,
// ADC, and Input are required; zero-value settings get defaults.
type Config struct {
	Link  Link
	HID   HID
	ADC   ADC
	Input DigitalInput
	Clock timeutil.Clock

	// PollRateHz is the initial sampling rate. Defaults to 2000.
	PollRateHz uint16
	// Mode is the initial report mode. Defaults to ModeRaw.
	Mode wire.ReportMode
	// ActionKind selects the initial emulated input backend.
	ActionKind wire.ActionKind
	// ThresholdBias is the initial adaptive-threshold bias. Defaults to 150.
	ThresholdBias int16
	// ADCResolutionBits is the sensor resolution. Defaults to 12.
	ADCResolutionBits uint
	// TriggerOnRelease records the trigger timestamp on release rather
	// than press.
	TriggerOnRelease bool
	// TextReports emits raw samples as human-readable delimited lines
	// instead of binary frames, matching the legacy serial output.
	TextReports bool
}

// Engine ties the components together once per tick.
type Engine struct {
	link   Link
	clock  timeutil.Clock
	sensor *Sensor
	button *Button
	action Action

	mode       wire.ReportMode
	intervalUS uint64
	est        Estimator
	override   triggerOverride

	epoch          time.Time
	timestamp      uint64
	triggerHigh    uint64
	triggerOnPress bool
	textReports    bool
}

// New builds an engine from cfg.
func New(cfg Config) (*Engine, error) {
	if cfg.Link == nil || cfg.HID == nil || cfg.ADC == nil || cfg.Input == nil {
		return nil, fmt.Errorf("device: link, hid, adc, and input are all required")
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.PollRateHz == 0 {
		cfg.PollRateHz = 2000
	}
	if cfg.ThresholdBias == 0 {
		cfg.ThresholdBias = 150
	}
	if cfg.ADCResolutionBits == 0 {
		cfg.ADCResolutionBits = 12
	}

	e := &Engine{
		link:           cfg.Link,
		clock:          cfg.Clock,
		sensor:         NewSensor(cfg.ADC, cfg.ADCResolutionBits),
		button:         NewButton(cfg.Input),
		action:         NewAction(cfg.HID, cfg.ActionKind),
		mode:           cfg.Mode,
		triggerOnPress: !cfg.TriggerOnRelease,
		textReports:    cfg.TextReports,
	}
	e.est.Bias = cfg.ThresholdBias
	e.override.state = noOverride
	e.setRate(uint64(cfg.PollRateHz))
	e.epoch = e.clock.Now()
	return e, nil
}

// Interval returns the current tick interval.
func (e *Engine) Interval() time.Duration {
	return time.Duration(e.intervalUS) * time.Microsecond
}

// nowMicros reads the monotonic session clock.
func (e *Engine) nowMicros() uint64 {
	return uint64(e.clock.Since(e.epoch).Microseconds())
}

func (e *Engine) setRate(rateHz uint64) {
	if rateHz == 0 {
		return
	}
	e.intervalUS = 1_000_000 / rateHz
}

// Tick runs one full cycle: drain commands, sample and act, then report.
func (e *Engine) Tick() {
	e.checkForCommands()
	e.update()
	if e.mode.IncludesRaw() {
		e.reportRaw()
	}
	if e.mode.IncludesSummary() {
		e.reportSummary()
	}
}

// Run executes the tick loop until ctx is cancelled. The loop is best-effort
// fixed-rate: an overrunning tick clamps the sleep to zero and the next tick
// starts immediately, with no catch-up.
func (e *Engine) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := e.clock.Now()
		e.Tick()
		if remaining := e.Interval() - e.clock.Since(start); remaining > 0 {
			e.clock.Sleep(remaining)
		}
	}
}

// update performs the per-tick measurement and action sequence. While an
// override pulse is engaged it drives the action exclusively; otherwise the
// physical button does, on state changes only. The override machine advances
// one tick behind the action call for its current state.
func (e *Engine) update() {
	e.sensor.Measure()
	e.timestamp = e.nowMicros()

	switch e.override.state {
	case overrideRelease:
		e.action.Release()
		if !e.triggerOnPress {
			e.triggerHigh = e.timestamp
		}
	case overridePress:
		e.action.Press()
		if e.triggerOnPress {
			e.triggerHigh = e.timestamp
		}
	case noOverride:
		e.button.Measure()
		if e.button.StateChanged() {
			if e.button.State() == e.triggerOnPress {
				e.action.Press()
			} else {
				e.action.Release()
			}
		}
	}

	e.override.advance()
}

// reportRaw emits one raw sample, as a binary frame or legacy text line.
func (e *Engine) reportRaw() {
	trigger := e.button.State() || e.override.engaged()
	if e.textReports {
		flag := 0
		if trigger {
			flag = 1
		}
		e.link.Write([]byte(fmt.Sprintf("%d,%d,%d\n", e.timestamp, e.sensor.Brightness(), flag)))
		return
	}
	f := wire.EncodeRaw(e.timestamp, e.sensor.Brightness(), trigger)
	e.link.Write(f[:])
}

// reportSummary updates the adaptive threshold and emits a latency
// measurement once brightness crosses it after a trigger. The threshold used
// is the one computed this tick.
func (e *Engine) reportSummary() {
	threshold := e.est.Update(e.sensor.Brightness())
	if e.override.state == noOverride && e.button.StateChanged() && e.button.State() == e.triggerOnPress {
		e.triggerHigh = e.timestamp
	} else if e.triggerHigh != 0 && e.sensor.Brightness() > threshold {
		f := wire.EncodeSummary(e.timestamp-e.triggerHigh, threshold)
		e.link.Write(f[:])
		e.triggerHigh = 0
	}
}

// manualTrigger starts a synthetic pulse lasting 50 ms worth of ticks,
// computed against the interval in force when the pulse starts.
func (e *Engine) manualTrigger() {
	e.override.start(uint16(pulseMicros / e.intervalUS))
}
