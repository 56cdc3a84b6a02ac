package controlstate

import (
	"math"
	"sync"
)

// Store holds the shared control state: the desired power fraction and the
// most recent RMS load-current estimate.
//
// The sampler writes CurrentRMS, the web control surface writes Setpoint, and
// the actuator reads both. Readers always see the two values as a consistent
// pair. The critical sections only copy the two floats; nothing fallible runs
// while the lock is held.
type Store struct {
	mu         sync.Mutex
	setpoint   float64
	currentRMS float64
}

func NewStore() *Store {
	return &Store{}
}

// Read returns a consistent snapshot of both fields.
func (s *Store) Read() (setpoint, currentRMS float64) {
	s.mu.Lock()
	setpoint = s.setpoint
	currentRMS = s.currentRMS
	s.mu.Unlock()
	return setpoint, currentRMS
}

// Setpoint returns the current power setpoint.
func (s *Store) Setpoint() float64 {
	sp, _ := s.Read()
	return sp
}

// CurrentRMS returns the most recent RMS current estimate in amperes.
func (s *Store) CurrentRMS() float64 {
	_, rms := s.Read()
	return rms
}

// SetSetpoint stores v clamped to [0,1] and returns the value now in effect.
func (s *Store) SetSetpoint(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.mu.Lock()
	s.setpoint = v
	s.mu.Unlock()
	return v
}

// SetCurrentRMS stores the latest RMS estimate. The sampler guarantees v >= 0.
func (s *Store) SetCurrentRMS(v float64) {
	s.mu.Lock()
	s.currentRMS = v
	s.mu.Unlock()
}
