package layers

import (
	"math"
	"testing"

	"prune_lib/prune"
	"prune_lib/tensor"
)

func fixedLinear() *Linear {
	l := NewLinear("fc", 2, 2)
	l.W = tensor.New2DWithData(2, 2, []float64{
		1, 2,
		3, 4,
	})
	l.B = tensor.NewWithData([]float64{0.5, -0.5})
	return l
}

func TestLinearInitRange(t *testing.T) {
	l := NewLinear("fc", 16, 4)
	bound := 1 / math.Sqrt(16)
	for i, v := range l.W.Data {
		if v < -bound || v > bound {
			t.Fatalf("W[%d] = %f outside ±%f", i, v, bound)
		}
	}
	for _, v := range l.B.Data {
		if v != 0 {
			t.Fatal("bias not zero-initialized")
		}
	}
}

func TestLinearForward(t *testing.T) {
	l := fixedLinear()
	out, err := l.Forward(tensor.NewWithData([]float64{1, 1}))
	if err != nil {
		t.Fatal(err)
	}
	if out.Shape[0] != 2 || out.Shape[1] != 1 {
		t.Fatalf("output shape = %v, want (2, 1)", out.Shape)
	}
	if out.At(0, 0) != 3.5 || out.At(1, 0) != 6.5 {
		t.Errorf("output = %v, want [3.5 6.5]", out.Data)
	}

	if _, err := l.Forward(tensor.NewWithData([]float64{1, 2, 3})); err == nil {
		t.Error("expected shape error for bad input")
	}
}

func TestLinearForwardBatch(t *testing.T) {
	l := fixedLinear()
	// two column observations: (1,1) and (0,1)
	out, err := l.Forward(tensor.New2DWithData(2, 2, []float64{
		1, 0,
		1, 1,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if out.At(0, 0) != 3.5 || out.At(1, 0) != 6.5 {
		t.Errorf("column 0 = %f, %f", out.At(0, 0), out.At(1, 0))
	}
	if out.At(0, 1) != 2.5 || out.At(1, 1) != 3.5 {
		t.Errorf("column 1 = %f, %f", out.At(0, 1), out.At(1, 1))
	}
}

func TestLinearBackwardAndUpdate(t *testing.T) {
	l := fixedLinear()
	if _, err := l.Backward(tensor.NewWithData([]float64{1, 1})); err == nil {
		t.Fatal("expected error for backward before forward")
	}
	if err := l.Update(0.1); err == nil {
		t.Fatal("expected error for update before backward")
	}

	if _, err := l.Forward(tensor.NewWithData([]float64{1, 2})); err != nil {
		t.Fatal(err)
	}
	dx, err := l.Backward(tensor.NewWithData([]float64{1, 1}))
	if err != nil {
		t.Fatal(err)
	}
	// dL/dx = Wᵀ·gradOut
	if dx.At(0, 0) != 4 || dx.At(1, 0) != 6 {
		t.Errorf("dx = %v, want [4 6]", dx.Data)
	}
	// dL/dW = gradOut·xᵀ
	wantGW := []float64{1, 2, 1, 2}
	for i, w := range wantGW {
		if l.gradW.Data[i] != w {
			t.Errorf("gradW[%d] = %f, want %f", i, l.gradW.Data[i], w)
		}
	}
	if l.gradB.Data[0] != 1 || l.gradB.Data[1] != 1 {
		t.Errorf("gradB = %v, want [1 1]", l.gradB.Data)
	}

	if err := l.Update(0.1); err != nil {
		t.Fatal(err)
	}
	if math.Abs(l.W.At(0, 0)-0.9) > 1e-12 {
		t.Errorf("W(0,0) = %f after update, want 0.9", l.W.At(0, 0))
	}
	if math.Abs(l.B.Data[0]-0.4) > 1e-12 {
		t.Errorf("B[0] = %f after update, want 0.4", l.B.Data[0])
	}
}

func TestLinearBackwardGradientCheck(t *testing.T) {
	// numeric gradient of L = sum(y) against the analytic dL/dW
	l := NewLinear("fc", 3, 2)
	x := tensor.NewWithData([]float64{0.3, -0.7, 1.2})
	sum := func() float64 {
		out, err := l.Forward(x)
		if err != nil {
			t.Fatal(err)
		}
		s := 0.0
		for _, v := range out.Data {
			s += v
		}
		return s
	}

	sum()
	if _, err := l.Backward(tensor.NewWithData([]float64{1, 1})); err != nil {
		t.Fatal(err)
	}
	const h = 1e-6
	for i := range l.W.Data {
		orig := l.W.Data[i]
		l.W.Data[i] = orig + h
		up := sum()
		l.W.Data[i] = orig - h
		down := sum()
		l.W.Data[i] = orig
		numeric := (up - down) / (2 * h)
		if math.Abs(numeric-l.gradW.Data[i]) > 1e-4 {
			t.Errorf("gradW[%d] = %f, numeric %f", i, l.gradW.Data[i], numeric)
		}
	}
}

func TestLinearRegisterSharesBacking(t *testing.T) {
	l := fixedLinear()
	store := prune.MapStore{}
	l.Register(store)

	w, ok := store.Matrix(l.WeightName())
	if !ok {
		t.Fatal("weight not in store")
	}
	w.ZeroAxis(0, 1)
	if l.W.At(1, 0) != 0 || l.W.At(1, 1) != 0 {
		t.Error("store mutation did not reach the layer's weights")
	}

	b, ok := store.Matrix(l.BiasName())
	if !ok {
		t.Fatal("bias not in store")
	}
	b.ZeroAxis(0, 0)
	if l.B.Data[0] != 0 {
		t.Error("store mutation did not reach the layer's bias")
	}
}

// Pruning a hidden layer through the store must silence the removed neuron in
// the next forward pass.
func TestLinearPruneIntegration(t *testing.T) {
	hidden := fixedLinear()
	hidden.Name = "hidden1"
	store := prune.MapStore{}
	hidden.Register(store)

	pl := prune.NewLayer("hidden1", 1, 1, false)
	pl.Connections = []prune.Connection{
		{MatName: hidden.WeightName(), Direction: prune.DirIn, Dim: 0},
		{MatName: hidden.BiasName(), Direction: prune.DirIn, Dim: 0},
	}
	// neuron 0 has the lower activity of the close pair
	acts := tensor.New2DWithData(2, 2, []float64{
		1, 1.1,
		1, 1.1,
	})
	if err := pl.RegisterActivities(acts); err != nil {
		t.Fatal(err)
	}
	if _, err := pl.Prune(store); err != nil {
		t.Fatal(err)
	}
	if got := pl.PrunedNeurons(); len(got) != 1 || got[0] != 0 {
		t.Fatalf("pruned = %v, want [0]", got)
	}

	out, err := hidden.Forward(tensor.NewWithData([]float64{5, -3}))
	if err != nil {
		t.Fatal(err)
	}
	if out.At(0, 0) != 0 {
		t.Errorf("pruned neuron output = %f, want 0", out.At(0, 0))
	}
	if out.At(1, 0) == 0 {
		t.Error("surviving neuron silenced")
	}
}
