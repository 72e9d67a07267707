package layers

import (
	"fmt"

	"prune_lib/tensor"
)

// ReLU is a rectified-linear activation layer.
type ReLU struct {
	lastInput *tensor.Tensor
}

func NewReLU() *ReLU { return &ReLU{} }

func (a *ReLU) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	a.lastInput = x
	return tensor.ReluPlain(x), nil
}

func (a *ReLU) Backward(gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	if a.lastInput == nil {
		return nil, fmt.Errorf("relu: no cached input for backward pass")
	}
	if len(gradOut.Data) != len(a.lastInput.Data) {
		return nil, fmt.Errorf("relu: gradient shape %v does not match input shape %v", gradOut.Shape, a.lastInput.Shape)
	}
	grad := tensor.New(gradOut.Shape...)
	for i, v := range a.lastInput.Data {
		if v > 0 {
			grad.Data[i] = gradOut.Data[i]
		}
	}
	return grad, nil
}

func (a *ReLU) Update(lr float64) error { return nil }
