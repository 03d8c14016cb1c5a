package cpu

import (
	"math"
	"testing"

	"github.com/loom-ml/loom/internal/tensor"
)

// newFloat32 builds a RawTensor from literal data for tests.
func newFloat32(t *testing.T, shape tensor.Shape, data []float32) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw(%v) failed: %v", shape, err)
	}
	if len(data) != raw.NumElements() {
		t.Fatalf("test data length %d != %d elements", len(data), raw.NumElements())
	}
	copy(raw.AsFloat32(), data)
	return raw
}

func assertFloat32Slice(t *testing.T, expected []float32, actual []float32) {
	t.Helper()
	if len(expected) != len(actual) {
		t.Fatalf("length mismatch: expected %d, got %d", len(expected), len(actual))
	}
	for i := range expected {
		if math.Abs(float64(expected[i]-actual[i])) > 1e-5 {
			t.Errorf("element %d: expected %v, got %v", i, expected[i], actual[i])
		}
	}
}

func TestAddSameShape(t *testing.T) {
	backend := New()

	a := newFloat32(t, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	b := newFloat32(t, tensor.Shape{2, 3}, []float32{10, 20, 30, 40, 50, 60})

	out := backend.Add(a, b)

	assertFloat32Slice(t, []float32{11, 22, 33, 44, 55, 66}, out.AsFloat32())
}

func TestAddBroadcast(t *testing.T) {
	backend := New()

	// [2, 3] + [1, 3]: the row broadcasts over the first dimension.
	a := newFloat32(t, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	b := newFloat32(t, tensor.Shape{1, 3}, []float32{10, 20, 30})

	out := backend.Add(a, b)

	if !out.Shape().Equal(tensor.Shape{2, 3}) {
		t.Fatalf("expected shape [2 3], got %v", out.Shape())
	}
	assertFloat32Slice(t, []float32{11, 22, 33, 14, 25, 36}, out.AsFloat32())
}

func TestMulChannelBroadcast(t *testing.T) {
	backend := New()

	// The batch norm pattern: [N, C, H, W] * [1, C, 1, 1].
	x := newFloat32(t, tensor.Shape{1, 2, 2, 2}, []float32{
		1, 2, 3, 4, // channel 0
		5, 6, 7, 8, // channel 1
	})
	scale := newFloat32(t, tensor.Shape{1, 2, 1, 1}, []float32{2, 10})

	out := backend.Mul(x, scale)

	assertFloat32Slice(t, []float32{2, 4, 6, 8, 50, 60, 70, 80}, out.AsFloat32())
}

func TestSubAndDiv(t *testing.T) {
	backend := New()

	a := newFloat32(t, tensor.Shape{3}, []float32{10, 20, 30})
	b := newFloat32(t, tensor.Shape{3}, []float32{4, 5, 6})

	assertFloat32Slice(t, []float32{6, 15, 24}, backend.Sub(a, b).AsFloat32())
	assertFloat32Slice(t, []float32{2.5, 4, 5}, backend.Div(a, b).AsFloat32())
}

func TestAddScalar(t *testing.T) {
	backend := New()

	x := newFloat32(t, tensor.Shape{3}, []float32{1, 2, 3})
	out := backend.AddScalar(x, float32(0.5))

	assertFloat32Slice(t, []float32{1.5, 2.5, 3.5}, out.AsFloat32())
}

func TestRsqrt(t *testing.T) {
	backend := New()

	x := newFloat32(t, tensor.Shape{3}, []float32{4, 16, 1})
	out := backend.Rsqrt(x)

	assertFloat32Slice(t, []float32{0.5, 0.25, 1}, out.AsFloat32())
}

func TestReLU(t *testing.T) {
	backend := New()

	x := newFloat32(t, tensor.Shape{5}, []float32{-2, -0.5, 0, 0.5, 2})
	out := backend.ReLU(x)

	assertFloat32Slice(t, []float32{0, 0, 0, 0.5, 2}, out.AsFloat32())
}

func TestTranspose2D(t *testing.T) {
	backend := New()

	x := newFloat32(t, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	out := backend.Transpose(x, 1, 0)

	if !out.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("expected shape [3 2], got %v", out.Shape())
	}
	assertFloat32Slice(t, []float32{1, 4, 2, 5, 3, 6}, out.AsFloat32())
}

func TestReshapeSharesBuffer(t *testing.T) {
	backend := New()

	x := newFloat32(t, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	view := backend.Reshape(x, tensor.Shape{3, 2})

	if !view.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("expected shape [3 2], got %v", view.Shape())
	}

	x.AsFloat32()[0] = 42
	if view.AsFloat32()[0] != 42 {
		t.Error("reshape copied the buffer; expected a view")
	}
}
