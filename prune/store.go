package prune

import (
	"prune_lib/tensor"
)

// Store is the narrow surface the pruner needs from a parameter store: read a
// named weight matrix and write it back. The training engine owns the actual
// parameters; the pruner only mutates them between training steps.
type Store interface {
	Matrix(name string) (*tensor.Tensor, bool)
	Commit(name string, t *tensor.Tensor)
}

// MapStore keeps tensors by name in memory. Matrix returns the stored tensor
// itself, so in-place mutation followed by Commit of the same tensor is the
// common write path.
type MapStore map[string]*tensor.Tensor

func (s MapStore) Matrix(name string) (*tensor.Tensor, bool) {
	t, ok := s[name]
	return t, ok
}

func (s MapStore) Commit(name string, t *tensor.Tensor) {
	s[name] = t
}
