package session

import (
	"sync"

	"github.com/vizmon/headcount/pkg/types"
)

// Settings holds the live tuning knobs shared between the dashboard and a
// running session. The loop reads them fresh on every frame, so a slider
// change applies from the very next frame onward.
type Settings struct {
	mu         sync.RWMutex
	thresholds types.Thresholds
}

// NewSettings creates Settings at the default slider positions.
func NewSettings() *Settings {
	return &Settings{thresholds: types.DefaultThresholds()}
}

// Thresholds returns the current thresholds.
func (s *Settings) Thresholds() types.Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.thresholds
}

// SetThresholds validates and applies new thresholds atomically.
func (s *Settings) SetThresholds(t types.Thresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.thresholds = t
	s.mu.Unlock()
	return nil
}
