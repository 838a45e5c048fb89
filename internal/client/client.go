// Package client offers a typed view of the tester's command protocol on
// top of a serial mux. Setters validate values before they reach the wire;
// the device itself accepts some nonsense values silently, so the checks
// live here.
package client

import (
	"context"
	"fmt"

	"github.com/banshee-data/latency.report/internal/serialmux"
	"github.com/banshee-data/latency.report/internal/wire"
)

// Client sends commands to and decodes reports from a tester attached via
// a serial mux. A Client is safe for concurrent use; serialisation of
// writes is the mux's job.
type Client struct {
	mux serialmux.MuxInterface
}

func New(mux serialmux.MuxInterface) *Client {
	return &Client{mux: mux}
}

// SetPollRate sets the sampling rate in Hz. The device ignores a rate of
// zero rather than rejecting it, so zero is refused here.
func (c *Client) SetPollRate(rateHz uint16) error {
	if rateHz == 0 {
		return fmt.Errorf("poll rate must be at least 1 Hz")
	}
	return c.mux.SendFrame(wire.NewCommand(wire.SetPollRate, rateHz))
}

func (c *Client) SetReportMode(mode wire.ReportMode) error {
	if mode > wire.ModeCombined {
		return fmt.Errorf("invalid report mode %d", mode)
	}
	return c.mux.SendFrame(wire.NewCommand(wire.SetReportMode, uint16(mode)))
}

// SetThreshold sets the brightness threshold bias. Negative values make the
// detector more sensitive.
func (c *Client) SetThreshold(bias int16) error {
	return c.mux.SendFrame(wire.NewCommand(wire.SetThreshold, uint16(bias)))
}

// SetAction selects which synthetic input the device generates on a manual
// trigger. The device stores whatever bytes arrive, so validation happens
// before sending.
func (c *Client) SetAction(kind wire.ActionKind, code uint8) error {
	if !wire.ValidActionCode(kind, code) {
		return fmt.Errorf("invalid action %s/%d", kind, code)
	}
	return c.mux.SendFrame(wire.NewActionCommand(kind, code))
}

func (c *Client) SetMouseAction(button uint8) error {
	return c.SetAction(wire.KindMouse, button)
}

func (c *Client) SetKeyboardAction(key byte) error {
	return c.SetAction(wire.KindKeyboard, key)
}

// ManualTrigger fires a synthetic input pulse on the device so latency can
// be measured without touching the physical button.
func (c *Client) ManualTrigger() error {
	return c.mux.SendFrame(wire.NewCommand(wire.ManualTrigger, 0))
}

// The getters are fire and forget: the device answers on the report stream,
// so the reply arrives through Reports alongside raw and summary traffic.

func (c *Client) RequestPollRate() error {
	return c.mux.SendFrame(wire.NewCommand(wire.GetPollRate, 0))
}

func (c *Client) RequestReportMode() error {
	return c.mux.SendFrame(wire.NewCommand(wire.GetReportMode, 0))
}

func (c *Client) RequestThreshold() error {
	return c.mux.SendFrame(wire.NewCommand(wire.GetThreshold, 0))
}

func (c *Client) RequestAction() error {
	return c.mux.SendFrame(wire.NewCommand(wire.GetAction, 0))
}

// Reports subscribes to the device's report stream and delivers decoded
// reports until ctx is cancelled. The returned channel is closed when the
// subscription ends.
func (c *Client) Reports(ctx context.Context) <-chan wire.Report {
	id, frames := c.mux.Subscribe()
	out := make(chan wire.Report, 16)

	go func() {
		defer close(out)
		defer c.mux.Unsubscribe(id)
		for {
			select {
			case <-ctx.Done():
				return
			case f, ok := <-frames:
				if !ok {
					return
				}
				r, err := wire.DecodeReport(f)
				if err != nil {
					// the mux already validated the frame; a failure
					// here means a settings echo carried junk values
					continue
				}
				select {
				case out <- r:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
