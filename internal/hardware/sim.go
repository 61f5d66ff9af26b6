package hardware

import (
	"sync"
)

// SimulatedSink accepts writes without any hardware attached. The rig keeps
// the authoritative angle state, so the sink only needs to not fail; the
// last writes are kept to make disconnected runs observable in tests.
type SimulatedSink struct {
	mu     sync.Mutex
	writes map[int]int
}

// NewSimulatedSink returns a sink for disconnected mode.
func NewSimulatedSink() *SimulatedSink {
	return &SimulatedSink{writes: make(map[int]int)}
}

// Write records the angle.
func (s *SimulatedSink) Write(channel, angle int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writes[channel] = angle
	return nil
}

// StopAll clears the recorded angles.
func (s *SimulatedSink) StopAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.writes)
	return nil
}

// LastWrite returns the last angle written to a channel.
func (s *SimulatedSink) LastWrite(channel int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	angle, ok := s.writes[channel]
	return angle, ok
}
