package device

// overrideState enumerates the synthetic trigger pulse machine's states.
type overrideState uint8

const (
	noOverride overrideState = iota
	overridePress
	overrideInProgress
	overrideRelease
)

// triggerOverride is the timed synthetic press/release machine started by
// MANUAL_TRIGGER. While engaged it drives the action exclusively; the
// physical button path never touches it.
type triggerOverride struct {
	state     overrideState
	remaining uint16
}

// start begins a pulse. The engine issues the press on the tick the state is
// observed, then advance moves the machine along one tick later, which is
// what guarantees exactly one press and exactly one release per pulse.
func (o *triggerOverride) start(ticks uint16) {
	o.state = overridePress
	o.remaining = ticks
}

// advance steps the machine once per tick, after the engine has issued the
// action call for the current state. Ordering matters: the press/release
// states each survive exactly one tick, and remaining only ever decreases.
func (o *triggerOverride) advance() {
	if o.state == overridePress {
		o.state = overrideInProgress
	} else if o.state == overrideRelease {
		o.state = noOverride
	}
	if o.state == noOverride {
		return
	}
	if o.state == overrideInProgress && o.remaining == 0 {
		o.state = overrideRelease
	} else {
		o.remaining--
	}
}

// engaged reports whether the pulse is currently holding the trigger active.
func (o *triggerOverride) engaged() bool {
	return o.state == overridePress || o.state == overrideInProgress
}
