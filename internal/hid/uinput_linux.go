//go:build linux

package hid

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Event types and codes from input-event-codes.h
const (
	evSyn = 0x00
	evKey = 0x01

	synReport = 0x00
)

// ioctl request encoding (Linux _IOC macro)
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocNone  = 0
	iocWrite = 1
)

func ioc(dir uint32, typ uint32, nr uint32, size uint32) uintptr {
	return uintptr((dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift))
}

func uiSetEvBit() uintptr  { return ioc(iocWrite, uint32('U'), 100, 4) }
func uiSetKeyBit() uintptr { return ioc(iocWrite, uint32('U'), 101, 4) }
func uiDevCreate() uintptr { return ioc(iocNone, uint32('U'), 1, 0) }
func uiDevDestroy() uintptr {
	return ioc(iocNone, uint32('U'), 2, 0)
}

// uinputSetup mirrors struct uinput_setup from uinput.h.
type uinputSetup struct {
	ID           inputID
	Name         [80]byte
	FFEffectsMax uint32
}

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

func uiDevSetup() uintptr {
	return ioc(iocWrite, uint32('U'), 3, uint32(unsafe.Sizeof(uinputSetup{})))
}

// inputEvent mirrors struct input_event on 64-bit kernels.
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// UInput is a virtual input device backed by /dev/uinput. It registers
// every key and button the tester can be configured to press.
type UInput struct {
	fd int
}

// NewUInput creates the virtual device. Requires write access to
// /dev/uinput (usually root or the input group).
func NewUInput() (*UInput, error) {
	fd, err := unix.Open("/dev/uinput", unix.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/uinput: %w", err)
	}

	u := &UInput{fd: fd}
	if err := u.setup(); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return u, nil
}

func (u *UInput) ctl(req uintptr, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(u.fd), req, arg)
	if errno != 0 {
		return errno
	}
	return nil
}

func (u *UInput) setup() error {
	if err := u.ctl(uiSetEvBit(), uintptr(evKey)); err != nil {
		return fmt.Errorf("enable key events: %w", err)
	}

	for _, code := range letterKeycodes {
		if err := u.ctl(uiSetKeyBit(), uintptr(code)); err != nil {
			return fmt.Errorf("register key %d: %w", code, err)
		}
	}
	for _, code := range []uint16{BTN_LEFT, BTN_RIGHT, BTN_MIDDLE} {
		if err := u.ctl(uiSetKeyBit(), uintptr(code)); err != nil {
			return fmt.Errorf("register button %#x: %w", code, err)
		}
	}

	setup := uinputSetup{
		ID: inputID{Bustype: 0x03 /* USB */, Vendor: 0x1209, Product: 0x4c44, Version: 1},
	}
	copy(setup.Name[:], "latency.report tester")
	if err := u.ctl(uiDevSetup(), uintptr(unsafe.Pointer(&setup))); err != nil {
		return fmt.Errorf("device setup: %w", err)
	}
	if err := u.ctl(uiDevCreate(), 0); err != nil {
		return fmt.Errorf("device create: %w", err)
	}
	return nil
}

func (u *UInput) emit(code uint16, value int32) error {
	events := [2]inputEvent{
		{Type: evKey, Code: code, Value: value},
		{Type: evSyn, Code: synReport},
	}
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&events[0])), unsafe.Sizeof(events))
	if _, err := unix.Write(u.fd, buf); err != nil {
		return fmt.Errorf("emit input event: %w", err)
	}
	return nil
}

func (u *UInput) press(code uint16) error   { return u.emit(code, 1) }
func (u *UInput) release(code uint16) error { return u.emit(code, 0) }

func (u *UInput) MousePress(button uint8) {
	if code, err := ButtonCode(button); err == nil {
		u.press(code)
	}
}

func (u *UInput) MouseRelease(button uint8) {
	if code, err := ButtonCode(button); err == nil {
		u.release(code)
	}
}

func (u *UInput) KeyPress(letter uint8) {
	if code, err := KeyCode(letter); err == nil {
		u.press(code)
	}
}

func (u *UInput) KeyRelease(letter uint8) {
	if code, err := KeyCode(letter); err == nil {
		u.release(code)
	}
}

// Close destroys the virtual device.
func (u *UInput) Close() error {
	u.ctl(uiDevDestroy(), 0)
	return unix.Close(u.fd)
}
