//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/banshee-data/latency.report/internal/monitoring"
)

// ButtonLine reads the physical button's electrical level. The button
// shorts the line to ground, so the firmware treats low as pressed; this
// type reports the raw level and leaves the inversion to the firmware.
type ButtonLine struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewButtonLine requests the button's GPIO line as an input with the pull-up
// the button wiring expects.
func NewButtonLine(chipName string, pin int) (*ButtonLine, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request button pin %d: %w", pin, err)
	}

	return &ButtonLine{chip: chip, line: line}, nil
}

// Read returns the electrical level of the line: true for high (released),
// false for low (pressed). A read failure reports high so a flaky line
// cannot hold the button pressed.
func (b *ButtonLine) Read() bool {
	v, err := b.line.Value()
	if err != nil {
		monitoring.Logf("gpio: button read failed: %v", err)
		return true
	}
	return v != 0
}

func (b *ButtonLine) Close() error {
	var errs []error
	if b.line != nil {
		if err := b.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button line: %w", err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
