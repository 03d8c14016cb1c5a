package cpu

import (
	"math"
	"testing"

	"github.com/loom-ml/loom/internal/tensor"
)

func TestMatMul(t *testing.T) {
	backend := New()

	// (2, 3) @ (3, 2):
	a := newFloat32(t, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	b := newFloat32(t, tensor.Shape{3, 2}, []float32{7, 8, 9, 10, 11, 12})

	out := backend.MatMul(a, b)

	if !out.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("expected shape [2 2], got %v", out.Shape())
	}
	// [1*7+2*9+3*11, 1*8+2*10+3*12] = [58, 64]
	// [4*7+5*9+6*11, 4*8+5*10+6*12] = [139, 154]
	assertFloat32Slice(t, []float32{58, 64, 139, 154}, out.AsFloat32())
}

func TestMatMulFloat64(t *testing.T) {
	backend := New()

	a, _ := tensor.NewRaw(tensor.Shape{1, 2}, tensor.Float64, tensor.CPU)
	copy(a.AsFloat64(), []float64{2, 3})
	b, _ := tensor.NewRaw(tensor.Shape{2, 1}, tensor.Float64, tensor.CPU)
	copy(b.AsFloat64(), []float64{4, 5})

	out := backend.MatMul(a, b)

	got := out.AsFloat64()[0]
	if math.Abs(got-23) > 1e-12 {
		t.Errorf("expected 23, got %v", got)
	}
}

func TestMatMulShapeMismatch(t *testing.T) {
	backend := New()

	a := newFloat32(t, tensor.Shape{2, 3}, make([]float32, 6))
	b := newFloat32(t, tensor.Shape{2, 3}, make([]float32, 6))

	defer func() {
		if recover() == nil {
			t.Error("inner dimension mismatch accepted")
		}
	}()
	backend.MatMul(a, b)
}
