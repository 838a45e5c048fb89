package mqtt

import "sync"

// NoopPublisher discards everything; used when MQTT is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishMeasurement(Measurement) error { return nil }
func (NoopPublisher) PublishSystem(SystemEvent) error      { return nil }
func (NoopPublisher) Close() error                         { return nil }

// FakePublisher records published events for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// Measurements contains all measurements that were published.
	Measurements []Measurement

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// PublishError, if set, will be returned by PublishMeasurement.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) PublishMeasurement(m Measurement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Measurements = append(f.Measurements, m)
	return nil
}

func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SystemEvents = append(f.SystemEvents, event)
	return nil
}

func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Published returns a copy of the measurements published so far.
func (f *FakePublisher) Published() []Measurement {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Measurement(nil), f.Measurements...)
}
