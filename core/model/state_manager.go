package model

import (
	"sync"

	"github.com/YuminosukeSato/gridcv/pkg/errors"
)

// StateManager は学習済みかどうかと、学習時に見たデータの形を保持する。
// フィールドは gob で保存するために公開している。
type StateManager struct {
	mu sync.RWMutex

	Fitted    bool
	NFeatures int
	NSamples  int
	NClasses  int
}

// NewStateManager returns an unfitted state.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted reports whether MarkFitted has been called since the last Reset.
// A nil StateManager is never fitted.
func (s *StateManager) IsFitted() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Fitted
}

// MarkFitted records the training shape and marks the model fitted.
func (s *StateManager) MarkFitted(nFeatures, nSamples, nClasses int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = true
	s.NFeatures = nFeatures
	s.NSamples = nSamples
	s.NClasses = nClasses
}

// Reset forgets the previous fit. Fit calls it first so a failed refit never
// leaves the old shape behind.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = false
	s.NFeatures, s.NSamples, s.NClasses = 0, 0, 0
}

// Dimensions returns the training shape.
func (s *StateManager) Dimensions() (nFeatures, nSamples, nClasses int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NFeatures, s.NSamples, s.NClasses
}

// Check guards prediction-time methods: the model must be fitted and X must
// have the training feature count.
//
//	if err := g.State.Check("GradientBoostingClassifier", "PredictProba", c); err != nil {
//	    return nil, err
//	}
func (s *StateManager) Check(modelName, method string, nFeatures int) error {
	if !s.IsFitted() {
		return errors.NewNotFittedError(modelName, method)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if nFeatures != s.NFeatures {
		return errors.NewDimensionError(modelName+"."+method, s.NFeatures, nFeatures, 1)
	}
	return nil
}
