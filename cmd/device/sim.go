package main

import (
	"sync"
	"time"
)

// Raw ADC readings for the simulated screen. The sensor inverts readings,
// so a dark screen reads near full scale and a lit screen reads low.
const (
	simDarkReading = 4000
	simLitReading  = 200

	// time from synthetic input to the screen lighting up
	simScreenDelay = 8 * time.Millisecond
)

// simScreen stands in for the monitor under test: synthetic input arrives
// through the HID methods and the "screen" lights up a fixed delay later,
// visible through the ADC method.
type simScreen struct {
	mu    sync.Mutex
	litAt time.Time
	lit   bool
}

func newSimScreen() *simScreen {
	return &simScreen{}
}

func (s *simScreen) press() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lit && s.litAt.IsZero() {
		s.litAt = time.Now().Add(simScreenDelay)
	}
}

func (s *simScreen) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lit = false
	s.litAt = time.Time{}
}

func (s *simScreen) MousePress(uint8)   { s.press() }
func (s *simScreen) MouseRelease(uint8) { s.release() }
func (s *simScreen) KeyPress(uint8)     { s.press() }
func (s *simScreen) KeyRelease(uint8)   { s.release() }

func (s *simScreen) Read() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lit && !s.litAt.IsZero() && time.Now().After(s.litAt) {
		s.lit = true
		s.litAt = time.Time{}
	}
	if s.lit {
		return simLitReading
	}
	return simDarkReading
}
