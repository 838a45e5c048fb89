package device

// DigitalInput reads the electrical level of the trigger line. True means
// high. The line is wired active-low: pressed pulls it to ground.
type DigitalInput interface {
	Read() bool
}

// Button tracks the trigger line's two most recent measurements. There is no
// debouncing beyond the single-edge comparison; a bouncing contact will
// produce one edge per bounce, and the protocol's timing assumptions rely on
// exactly that behaviour.
type Button struct {
	in      DigitalInput
	last    bool
	current bool
}

// NewButton wraps a trigger line.
func NewButton(in DigitalInput) *Button {
	return &Button{in: in}
}

// Measure captures the current state, shifting the previous one.
func (b *Button) Measure() {
	b.last = b.current
	b.current = !b.in.Read() // active low
}

// State returns the most recent logical state: true while pressed.
func (b *Button) State() bool {
	return b.current
}

// StateChanged compares only the two most recent measurements.
func (b *Button) StateChanged() bool {
	return b.last != b.current
}
