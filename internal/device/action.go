package device

import "github.com/banshee-data/latency.report/internal/wire"

// HID is the emulated input device the action drives. Press-while-pressed is
// harmless; the backend is idempotent-safe.
type HID interface {
	MousePress(button uint8)
	MouseRelease(button uint8)
	KeyPress(code uint8)
	KeyRelease(code uint8)
}

// Action dispatches press/release to the mouse or keyboard address space
// depending on Kind. Kind and Code are raw bytes set directly from SET_ACTION
// payloads: the device does not check that Code is a legal value for Kind,
// and a Kind of 2 is accepted and dispatches to neither backend. Hosts are
// expected to send sensible values; the laxity is pinned by tests.
type Action struct {
	hid  HID
	Kind uint8
	Code uint8
}

// NewAction builds an action with the conventional default code for kind:
// left button for mouse, 'x' for keyboard.
func NewAction(hid HID, kind wire.ActionKind) Action {
	a := Action{hid: hid, Kind: uint8(kind)}
	switch kind {
	case wire.KindMouse:
		a.Code = wire.MouseLeft
	case wire.KindKeyboard:
		a.Code = 'x'
	}
	return a
}

// Press issues a press on the selected backend.
func (a *Action) Press() {
	switch wire.ActionKind(a.Kind) {
	case wire.KindMouse:
		a.hid.MousePress(a.Code)
	case wire.KindKeyboard:
		a.hid.KeyPress(a.Code)
	}
}

// Release issues a release on the selected backend.
func (a *Action) Release() {
	switch wire.ActionKind(a.Kind) {
	case wire.KindMouse:
		a.hid.MouseRelease(a.Code)
	case wire.KindKeyboard:
		a.hid.KeyRelease(a.Code)
	}
}
