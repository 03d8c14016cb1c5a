package cpu

import (
	"testing"

	"github.com/loom-ml/loom/internal/tensor"
)

func TestMaxPool2DBasic(t *testing.T) {
	backend := New()

	// Input 4x4: 1..16.
	data := make([]float32, 16)
	for i := range data {
		data[i] = float32(i + 1)
	}
	input := newFloat32(t, tensor.Shape{1, 1, 4, 4}, data)

	output := backend.MaxPool2D(input, 2, 2, 0)

	if !output.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
		t.Fatalf("expected shape [1 1 2 2], got %v", output.Shape())
	}
	// Window maxima: max(1,2,5,6)=6, max(3,4,7,8)=8, ...
	assertFloat32Slice(t, []float32{6, 8, 14, 16}, output.AsFloat32())
}

// TestMaxPool2DPadding checks the stem configuration (3x3, stride 2,
// padding 1) and that the -inf border never wins.
func TestMaxPool2DPadding(t *testing.T) {
	backend := New()

	// 4x4 input: 1..16.
	data := make([]float32, 16)
	for i := range data {
		data[i] = float32(i + 1)
	}
	input := newFloat32(t, tensor.Shape{1, 1, 4, 4}, data)

	output := backend.MaxPool2D(input, 3, 2, 1)

	// out = (4 + 2 - 3)/2 + 1 = 2.
	if !output.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
		t.Fatalf("expected shape [1 1 2 2], got %v", output.Shape())
	}
	// Windows centered at (0,0), (0,2), (2,0), (2,2), clipped at borders:
	// max of rows 0-1, cols 0-1 = 6; rows 0-1, cols 1-3 = 8;
	// rows 1-3, cols 0-1 = 14; rows 1-3, cols 1-3 = 16.
	assertFloat32Slice(t, []float32{6, 8, 14, 16}, output.AsFloat32())
}

// TestMaxPool2DNegativeValues makes sure padded positions are treated as
// -inf, not zero.
func TestMaxPool2DNegativeValues(t *testing.T) {
	backend := New()

	input := newFloat32(t, tensor.Shape{1, 1, 2, 2}, []float32{-5, -6, -7, -8})

	output := backend.MaxPool2D(input, 3, 2, 1)

	if !output.Shape().Equal(tensor.Shape{1, 1, 1, 1}) {
		t.Fatalf("expected shape [1 1 1 1], got %v", output.Shape())
	}
	assertFloat32Slice(t, []float32{-5}, output.AsFloat32())
}

func TestMaxPool2DMultiChannel(t *testing.T) {
	backend := New()

	input := newFloat32(t, tensor.Shape{1, 2, 2, 2}, []float32{
		1, 2, 3, 4, // channel 0
		8, 7, 6, 5, // channel 1
	})

	output := backend.MaxPool2D(input, 2, 2, 0)

	if !output.Shape().Equal(tensor.Shape{1, 2, 1, 1}) {
		t.Fatalf("expected shape [1 2 1 1], got %v", output.Shape())
	}
	assertFloat32Slice(t, []float32{4, 8}, output.AsFloat32())
}
