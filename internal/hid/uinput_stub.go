//go:build !linux

package hid

import "fmt"

// UInput is only available on Linux; this stub keeps the package building
// elsewhere so the host tooling can be developed on any platform.
type UInput struct{}

func NewUInput() (*UInput, error) {
	return nil, fmt.Errorf("uinput is only available on linux")
}

func (u *UInput) MousePress(uint8)   {}
func (u *UInput) MouseRelease(uint8) {}
func (u *UInput) KeyPress(uint8)     {}
func (u *UInput) KeyRelease(uint8)   {}
func (u *UInput) Close() error       { return nil }
