//go:build !linux

package gpio

import "errors"

// ButtonLine is not available on non-Linux platforms.
type ButtonLine struct{}

func NewButtonLine(chipName string, pin int) (*ButtonLine, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

func (b *ButtonLine) Read() bool   { return true }
func (b *ButtonLine) Close() error { return nil }
