// Package gpio wires the tester firmware to real hardware: the physical
// button via the Linux GPIO character device and the light sensor via the
// kernel's IIO sysfs interface. Both satisfy the firmware's input
// interfaces; fakes for testing live in the device package.
package gpio

// Default wiring for the reference build (BCM numbering).
const (
	// ButtonPin is the line the physical button pulls to ground.
	ButtonPin = 17

	// DefaultChip is the GPIO character device of the Pi's main header.
	DefaultChip = "gpiochip0"
)
