package gpio

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/latency.report/internal/monitoring"
)

// SysfsADC samples the light sensor through the kernel IIO subsystem by
// reading the raw voltage attribute, e.g.
// /sys/bus/iio/devices/iio:device0/in_voltage0_raw.
type SysfsADC struct {
	path string
	max  uint16

	// last good reading, returned when a read fails so a transient sysfs
	// error does not register as a brightness change
	last uint16
}

// NewSysfsADC validates the attribute path with one read. max caps readings
// to the converter's range (e.g. 4095 for a 12-bit ADC).
func NewSysfsADC(path string, max uint16) (*SysfsADC, error) {
	a := &SysfsADC{path: path, max: max}
	if _, err := a.read(); err != nil {
		return nil, fmt.Errorf("probe adc %s: %w", path, err)
	}
	return a, nil
}

func (a *SysfsADC) read() (uint16, error) {
	b, err := os.ReadFile(a.path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse adc value: %w", err)
	}
	if v > uint64(a.max) {
		v = uint64(a.max)
	}
	return uint16(v), nil
}

// Read returns the current raw sample. The sampling loop runs thousands of
// times a second, so failures return the last good value rather than
// stalling the loop.
func (a *SysfsADC) Read() uint16 {
	v, err := a.read()
	if err != nil {
		monitoring.Logf("gpio: adc read failed: %v", err)
		return a.last
	}
	a.last = v
	return v
}
