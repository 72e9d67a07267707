package tensor

import (
	"fmt"
	"math"
)

// Tensor is a simple n-D array backed by a flat []float64.
type Tensor struct {
	Data  []float64
	Shape []int
}

// New allocates a Tensor of given shape (product of dims = len(Data)).
func New(shape ...int) *Tensor {
	total := 1
	for _, d := range shape {
		total *= d
	}
	return &Tensor{
		Data:  make([]float64, total),
		Shape: append([]int(nil), shape...),
	}
}

// NewWithData creates a 1-D tensor from existing data slice.
func NewWithData(data []float64) *Tensor {
	return &Tensor{
		Data:  append([]float64(nil), data...),
		Shape: []int{len(data)},
	}
}

// New2DWithData creates a 2-D tensor from existing data in row-major order.
func New2DWithData(rows, cols int, data []float64) *Tensor {
	if len(data) != rows*cols {
		panic(fmt.Sprintf("New2DWithData: %d elements for shape (%d, %d)", len(data), rows, cols))
	}
	return &Tensor{
		Data:  append([]float64(nil), data...),
		Shape: []int{rows, cols},
	}
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{
		Data:  append([]float64(nil), t.Data...),
		Shape: append([]int(nil), t.Shape...),
	}
}

// Add returns a+b (same shape), or error if shapes differ.
func Add(a, b *Tensor) (*Tensor, error) {
	if len(a.Shape) != len(b.Shape) {
		return nil, fmt.Errorf("shape mismatch: %v vs %v", a.Shape, b.Shape)
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return nil, fmt.Errorf("shape mismatch: %v vs %v", a.Shape, b.Shape)
		}
	}
	out := New(a.Shape...)
	for i := range a.Data {
		out.Data[i] = a.Data[i] + b.Data[i]
	}
	return out, nil
}

// MatMul returns a×b (2-D only), or error if dims mismatch.
func MatMul(a, b *Tensor) (*Tensor, error) {
	if len(a.Shape) != 2 || len(b.Shape) != 2 {
		return nil, fmt.Errorf("MatMul requires 2-D tensors, got %v and %v", a.Shape, b.Shape)
	}
	r, k := a.Shape[0], a.Shape[1]
	k2, c := b.Shape[0], b.Shape[1]
	if k != k2 {
		return nil, fmt.Errorf("inner dimensions must match: %d vs %d", k, k2)
	}
	out := New(r, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			sum := 0.0
			for t := 0; t < k; t++ {
				sum += a.Data[i*k+t] * b.Data[t*c+j]
			}
			out.Data[i*c+j] = sum
		}
	}
	return out, nil
}

// Transpose returns the transpose of a 2-D tensor.
func Transpose(a *Tensor) *Tensor {
	if len(a.Shape) != 2 {
		panic(fmt.Sprintf("Transpose requires a 2-D tensor, got %v", a.Shape))
	}
	r, c := a.Shape[0], a.Shape[1]
	out := New(c, r)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Data[j*r+i] = a.Data[i*c+j]
		}
	}
	return out
}

// ReluPlain applies ReLU to each element in a, returns new Tensor.
func ReluPlain(a *Tensor) *Tensor {
	out := New(a.Shape...)
	for i, v := range a.Data {
		if v > 0 {
			out.Data[i] = v
		} else {
			out.Data[i] = 0
		}
	}
	return out
}

// At returns the element at the given indices.
func (t *Tensor) At(indices ...int) float64 {
	return t.Data[t.index("At", indices)]
}

// Set sets the element at the given indices to the given value.
func (t *Tensor) Set(value float64, indices ...int) {
	t.Data[t.index("Set", indices)] = value
}

func (t *Tensor) index(op string, indices []int) int {
	if len(indices) != len(t.Shape) {
		panic(fmt.Sprintf("%s: expected %d indices, got %d", op, len(t.Shape), len(indices)))
	}
	idx := 0
	stride := 1
	for i := len(indices) - 1; i >= 0; i-- {
		if indices[i] < 0 || indices[i] >= t.Shape[i] {
			panic(fmt.Sprintf("%s: index %d out of bounds for dimension %d (shape: %v)", op, indices[i], i, t.Shape))
		}
		idx += indices[i] * stride
		stride *= t.Shape[i]
	}
	return idx
}

// AxisLen returns the length of the tensor along dim. A 1-D tensor has a
// single logical axis regardless of dim.
func (t *Tensor) AxisLen(dim int) int {
	if len(t.Shape) == 1 {
		return t.Shape[0]
	}
	t.checkAxis("AxisLen", dim)
	return t.Shape[dim]
}

// Axis returns a copy of the row (dim 0) or column (dim 1) at idx. For a 1-D
// tensor it returns the single element at idx.
func (t *Tensor) Axis(dim, idx int) []float64 {
	if len(t.Shape) == 1 {
		return []float64{t.Data[idx]}
	}
	t.checkAxis("Axis", dim)
	r, c := t.Shape[0], t.Shape[1]
	if dim == 0 {
		return append([]float64(nil), t.Data[idx*c:(idx+1)*c]...)
	}
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		out[i] = t.Data[i*c+idx]
	}
	return out
}

// SetAxis overwrites the row/column at idx with vals.
func (t *Tensor) SetAxis(dim, idx int, vals []float64) {
	if len(t.Shape) == 1 {
		t.Data[idx] = vals[0]
		return
	}
	t.checkAxis("SetAxis", dim)
	r, c := t.Shape[0], t.Shape[1]
	if dim == 0 {
		copy(t.Data[idx*c:(idx+1)*c], vals)
		return
	}
	for i := 0; i < r; i++ {
		t.Data[i*c+idx] = vals[i]
	}
}

// ZeroAxis zeroes the row/column at idx.
func (t *Tensor) ZeroAxis(dim, idx int) {
	if len(t.Shape) == 1 {
		t.Data[idx] = 0
		return
	}
	t.checkAxis("ZeroAxis", dim)
	r, c := t.Shape[0], t.Shape[1]
	if dim == 0 {
		for j := idx * c; j < (idx+1)*c; j++ {
			t.Data[j] = 0
		}
		return
	}
	for i := 0; i < r; i++ {
		t.Data[i*c+idx] = 0
	}
}

// AddAxis adds the row/column at src into the row/column at dst.
func (t *Tensor) AddAxis(dim, src, dst int) {
	if len(t.Shape) == 1 {
		t.Data[dst] += t.Data[src]
		return
	}
	t.checkAxis("AddAxis", dim)
	r, c := t.Shape[0], t.Shape[1]
	if dim == 0 {
		for j := 0; j < c; j++ {
			t.Data[dst*c+j] += t.Data[src*c+j]
		}
		return
	}
	for i := 0; i < r; i++ {
		t.Data[i*c+dst] += t.Data[i*c+src]
	}
}

// AddScaledAxis adds scale times vals onto the row/column at idx.
func (t *Tensor) AddScaledAxis(dim, idx int, scale float64, vals []float64) {
	if len(t.Shape) == 1 {
		t.Data[idx] += scale * vals[0]
		return
	}
	t.checkAxis("AddScaledAxis", dim)
	r, c := t.Shape[0], t.Shape[1]
	if dim == 0 {
		for j := 0; j < c; j++ {
			t.Data[idx*c+j] += scale * vals[j]
		}
		return
	}
	for i := 0; i < r; i++ {
		t.Data[i*c+idx] += scale * vals[i]
	}
}

// AbsMaxAxis returns the maximum absolute value over the rows/columns at the
// given indices, 0 if idxs is empty.
func (t *Tensor) AbsMaxAxis(dim int, idxs []int) float64 {
	max := 0.0
	for _, idx := range idxs {
		for _, v := range t.Axis(dim, idx) {
			if a := math.Abs(v); a > max {
				max = a
			}
		}
	}
	return max
}

func (t *Tensor) checkAxis(op string, dim int) {
	if len(t.Shape) != 2 {
		panic(fmt.Sprintf("%s: requires a 1-D or 2-D tensor, got shape %v", op, t.Shape))
	}
	if dim != 0 && dim != 1 {
		panic(fmt.Sprintf("%s: dim must be 0 or 1, got %d", op, dim))
	}
}
