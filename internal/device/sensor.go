package device

// ADC is the analogue front end the light sensor is read through. Reads are
// assumed reliable; resolution is fixed at construction.
type ADC interface {
	// Read performs one conversion and returns the raw value.
	Read() uint16
}

// Sensor samples monitor brightness once per tick. Raw readings are inverted
// against the ADC's full-scale value, so a screen transition after a click
// shows up as a rising brightness series; the summary comparison depends on
// that direction.
type Sensor struct {
	adc        ADC
	mask       uint16
	brightness uint16
}

// NewSensor wraps adc with the given resolution in bits.
func NewSensor(adc ADC, resolutionBits uint) *Sensor {
	return &Sensor{
		adc:  adc,
		mask: uint16(1<<resolutionBits - 1),
	}
}

// Measure performs one sample.
func (s *Sensor) Measure() {
	s.brightness = s.adc.Read() ^ s.mask
}

// Brightness returns the most recent inverted reading.
func (s *Sensor) Brightness() uint16 {
	return s.brightness
}
