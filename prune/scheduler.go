package prune

import (
	"fmt"

	"prune_lib/tensor"
)

// Scheduler drives registration, pruning, and accumulator resets over a set
// of prunable layers. Pruning and resetting each walk the layers round-robin
// on their own cursor; cursors start below zero so every layer gathers a few
// cycles of observations before its first prune.
type Scheduler struct {
	Layers []*Layer

	store       Store
	pruneEvery  int
	resetEvery  int
	nBatches    int
	nextToPrune int
	nextToReset int
}

// NewScheduler builds a scheduler that prunes one layer every pruneEvery
// batches and resets one layer's accumulators every resetEvery batches.
// A resetEvery of 0 falls back to pruneEvery.
func NewScheduler(layers []*Layer, store Store, pruneEvery, resetEvery int) (*Scheduler, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("scheduler needs at least one layer")
	}
	if pruneEvery <= 0 {
		return nil, fmt.Errorf("pruneEvery must be positive, got %d", pruneEvery)
	}
	if resetEvery <= 0 {
		resetEvery = pruneEvery
	}
	return &Scheduler{
		Layers:      layers,
		store:       store,
		pruneEvery:  pruneEvery,
		resetEvery:  resetEvery,
		nextToPrune: -len(layers),
		nextToReset: -len(layers),
	}, nil
}

// Batches returns how many batches the scheduler has processed.
func (s *Scheduler) Batches() int { return s.nBatches }

// ProcessBatch folds one activation batch per layer (keyed by layer name)
// into the accumulators and runs any prune or reset due at this step. Layers
// without a batch this step are skipped.
func (s *Scheduler) ProcessBatch(batches map[string]*tensor.Tensor) error {
	s.nBatches++
	for _, l := range s.Layers {
		b, ok := batches[l.Name]
		if !ok {
			continue
		}
		if err := l.RegisterActivities(b); err != nil {
			return err
		}
	}
	if s.nBatches%s.pruneEvery == 0 {
		s.nextToPrune++
		if s.nextToPrune >= 0 {
			s.nextToPrune %= len(s.Layers)
			l := s.Layers[s.nextToPrune]
			if _, err := l.Prune(s.store); err != nil {
				return err
			}
			if _, err := l.SanityCheck(s.store); err != nil {
				return err
			}
		}
	}
	if s.nBatches%s.resetEvery == 0 {
		s.nextToReset++
		if s.nextToReset >= 0 {
			s.nextToReset %= len(s.Layers)
			s.Layers[s.nextToReset].Reset()
		}
	}
	return nil
}
