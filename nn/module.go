package nn

import (
	"prune_lib/tensor"
)

// Module defines a single layer/unit in the network.
type Module interface {
	Forward(x *tensor.Tensor) (*tensor.Tensor, error)
	// Backward computes gradients and propagates them.
	// It takes the gradient of the loss with respect to the module's output,
	// and returns the gradient of the loss with respect to the module's input.
	Backward(gradOut *tensor.Tensor) (*tensor.Tensor, error)
	// Update applies the gradients accumulated by Backward.
	Update(lr float64) error
}

// Sequential chains multiple Modules in order.
type Sequential struct {
	Layers []Module
}

// Forward applies each layer in sequence.
func (s *Sequential) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	var err error
	out := x
	for _, layer := range s.Layers {
		out, err = layer.Forward(out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ForwardCollect applies each layer in sequence and returns every layer's
// output, so callers monitoring intermediate activations can pick them up.
// The last element is the network output.
func (s *Sequential) ForwardCollect(x *tensor.Tensor) ([]*tensor.Tensor, error) {
	var err error
	outs := make([]*tensor.Tensor, 0, len(s.Layers))
	out := x
	for _, layer := range s.Layers {
		out, err = layer.Forward(out)
		if err != nil {
			return nil, err
		}
		outs = append(outs, out)
	}
	return outs, nil
}

// Backward applies Backward in reverse order.
func (s *Sequential) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	var err error
	out := grad
	for i := len(s.Layers) - 1; i >= 0; i-- {
		out, err = s.Layers[i].Backward(out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Update applies Update on every layer.
func (s *Sequential) Update(lr float64) error {
	for _, layer := range s.Layers {
		if err := layer.Update(lr); err != nil {
			return err
		}
	}
	return nil
}
