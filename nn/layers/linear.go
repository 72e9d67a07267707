package layers

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"prune_lib/prune"
	"prune_lib/tensor"
)

// Linear is a fully-connected layer. Its weight tensors are published into a
// prune.Store by name, so the pruner mutates the same backing arrays the
// layer trains on.
type Linear struct {
	Name string
	W, B *tensor.Tensor // W: (outDim, inDim), B: (outDim)

	lastInput *tensor.Tensor
	gradW     *tensor.Tensor
	gradB     *tensor.Tensor
}

// NewLinear creates an inDim→outDim layer with uniform ±1/sqrt(inDim) init.
func NewLinear(name string, inDim, outDim int) *Linear {
	l := &Linear{
		Name: name,
		W:    tensor.New(outDim, inDim),
		B:    tensor.New(outDim),
	}
	dist := distuv.Uniform{
		Min: -1 / math.Sqrt(float64(inDim)),
		Max: 1 / math.Sqrt(float64(inDim)),
	}
	for i := range l.W.Data {
		l.W.Data[i] = dist.Rand()
	}
	return l
}

// WeightName is the layer's weight matrix name in a weight store.
func (l *Linear) WeightName() string { return l.Name + ".W" }

// BiasName is the layer's bias vector name in a weight store.
func (l *Linear) BiasName() string { return l.Name + ".B" }

// Register publishes the layer's parameters into the store.
func (l *Linear) Register(store prune.Store) {
	store.Commit(l.WeightName(), l.W)
	store.Commit(l.BiasName(), l.B)
}

// Forward computes y = Wx + B. x is (inDim) or (inDim, batch).
func (l *Linear) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(x.Shape) == 1 {
		x = &tensor.Tensor{Data: x.Data, Shape: []int{x.Shape[0], 1}}
	}
	if len(x.Shape) != 2 || x.Shape[0] != l.W.Shape[1] {
		return nil, fmt.Errorf("%s: expected input shape (%d, batch), got %v", l.Name, l.W.Shape[1], x.Shape)
	}
	l.lastInput = x
	wx, err := tensor.MatMul(l.W, x)
	if err != nil {
		return nil, err
	}
	outDim, batch := wx.Shape[0], wx.Shape[1]
	for i := 0; i < outDim; i++ {
		for b := 0; b < batch; b++ {
			wx.Data[i*batch+b] += l.B.Data[i]
		}
	}
	return wx, nil
}

// Backward computes dL/dW, dL/dB and returns dL/dx. gradOut is (outDim) or
// (outDim, batch) matching the cached input's batch size. Gradients are
// averaged over the batch.
func (l *Linear) Backward(gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	if l.lastInput == nil {
		return nil, fmt.Errorf("%s: no cached input for backward pass", l.Name)
	}
	batch := l.lastInput.Shape[1]
	if len(gradOut.Shape) == 1 {
		gradOut = &tensor.Tensor{Data: gradOut.Data, Shape: []int{gradOut.Shape[0], 1}}
	}
	if gradOut.Shape[0] != l.W.Shape[0] || gradOut.Shape[1] != batch {
		return nil, fmt.Errorf("%s: expected gradient shape (%d, %d), got %v", l.Name, l.W.Shape[0], batch, gradOut.Shape)
	}

	// dL/dW = gradOut · xᵀ, dL/dB = row sums, both averaged over batch
	gw, err := tensor.MatMul(gradOut, tensor.Transpose(l.lastInput))
	if err != nil {
		return nil, err
	}
	for i := range gw.Data {
		gw.Data[i] /= float64(batch)
	}
	gb := tensor.New(l.W.Shape[0])
	for i := 0; i < gradOut.Shape[0]; i++ {
		for b := 0; b < batch; b++ {
			gb.Data[i] += gradOut.Data[i*batch+b]
		}
		gb.Data[i] /= float64(batch)
	}
	l.gradW = gw
	l.gradB = gb

	// dL/dx = Wᵀ · gradOut
	return tensor.MatMul(tensor.Transpose(l.W), gradOut)
}

// Update applies one SGD step on W and B.
func (l *Linear) Update(lr float64) error {
	if l.gradW == nil || l.gradB == nil {
		return fmt.Errorf("%s: no gradients to update", l.Name)
	}
	for i := range l.W.Data {
		l.W.Data[i] -= lr * l.gradW.Data[i]
	}
	for i := range l.B.Data {
		l.B.Data[i] -= lr * l.gradB.Data[i]
	}
	return nil
}
