package model

import (
	"sync"

	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

// StateManager records whether an estimator or transformer has been fitted and
// the shape of the data it saw. Fields are exported so the state travels with
// the gob-encoded model export.
type StateManager struct {
	mu sync.RWMutex

	Fitted    bool
	NFeatures int
	NSamples  int
}

func NewStateManager() *StateManager {
	return &StateManager{}
}

func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Fitted
}

// MarkFitted records a successful fit on nSamples rows of nFeatures columns.
func (s *StateManager) MarkFitted(nFeatures, nSamples int) {
	s.mu.Lock()
	s.Fitted, s.NFeatures, s.NSamples = true, nFeatures, nSamples
	s.mu.Unlock()
}

// Dims returns the feature and sample counts recorded by MarkFitted.
func (s *StateManager) Dims() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NFeatures, s.NSamples
}

// Reset forgets a previous fit, e.g. before refitting on a new split.
func (s *StateManager) Reset() {
	s.mu.Lock()
	s.Fitted, s.NFeatures, s.NSamples = false, 0, 0
	s.mu.Unlock()
}

// RequireFitted fails with a NotFittedError when component.method is called
// before Fit.
func (s *StateManager) RequireFitted(component, method string) error {
	if s.IsFitted() {
		return nil
	}
	return errors.NewNotFittedError(component, method)
}

// RequireFeatures fails with a DimensionError when cols differs from the
// column count seen during Fit.
func (s *StateManager) RequireFeatures(op string, cols int) error {
	nFeatures, _ := s.Dims()
	if cols == nFeatures {
		return nil
	}
	return errors.NewDimensionError(op, nFeatures, cols, 1)
}
