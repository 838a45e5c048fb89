// Package hid generates synthetic mouse and keyboard input through the
// kernel's uinput interface. The device firmware calls through the
// device.HID interface; this package is the hardware-backed implementation.
package hid

import "fmt"

// Linux input event key codes, from input-event-codes.h.
const (
	BTN_LEFT   = 0x110
	BTN_RIGHT  = 0x111
	BTN_MIDDLE = 0x112
)

// letterKeycodes maps letters a-z to their KEY_* codes. The layout follows
// the physical scan code order, not the alphabet.
var letterKeycodes = map[byte]uint16{
	'a': 30, 'b': 48, 'c': 46, 'd': 32, 'e': 18, 'f': 33, 'g': 34,
	'h': 35, 'i': 23, 'j': 36, 'k': 37, 'l': 38, 'm': 50, 'n': 49,
	'o': 24, 'p': 25, 'q': 16, 'r': 19, 's': 31, 't': 20, 'u': 22,
	'v': 47, 'w': 17, 'x': 45, 'y': 21, 'z': 44,
}

// KeyCode returns the input event code for a letter key.
func KeyCode(letter uint8) (uint16, error) {
	code, ok := letterKeycodes[letter]
	if !ok {
		return 0, fmt.Errorf("no key code for %q", letter)
	}
	return code, nil
}

// ButtonCode returns the input event code for a wire protocol mouse button
// (1 left, 2 right, 4 middle).
func ButtonCode(button uint8) (uint16, error) {
	switch button {
	case 1:
		return BTN_LEFT, nil
	case 2:
		return BTN_RIGHT, nil
	case 4:
		return BTN_MIDDLE, nil
	}
	return 0, fmt.Errorf("no button code for %d", button)
}
