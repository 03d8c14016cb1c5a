package nn

import (
	"testing"

	"github.com/loom-ml/loom/internal/backend/cpu"
	"github.com/loom-ml/loom/internal/tensor"
)

// TestLinear_Creation tests Linear layer initialization.
func TestLinear_Creation(t *testing.T) {
	backend := cpu.New()

	layer := NewLinear(512, 1000, true, backend)

	if layer.InFeatures() != 512 {
		t.Errorf("InFeatures() = %d, want 512", layer.InFeatures())
	}
	if layer.OutFeatures() != 1000 {
		t.Errorf("OutFeatures() = %d, want 1000", layer.OutFeatures())
	}

	// Weight shape: [out_features, in_features].
	expectedShape := tensor.Shape{1000, 512}
	if !layer.weight.Tensor().Shape().Equal(expectedShape) {
		t.Errorf("Weight shape = %v, want %v", layer.weight.Tensor().Shape(), expectedShape)
	}

	params := layer.Parameters()
	if len(params) != 2 {
		t.Errorf("Expected 2 parameters, got %d", len(params))
	}
}

// TestLinear_ForwardValues checks Y = X*W^T + b against hand-computed
// values.
func TestLinear_ForwardValues(t *testing.T) {
	backend := cpu.New()

	layer := NewLinear(2, 2, true, backend)

	// W = [[1, 2], [3, 4]], b = [0.5, -0.5].
	w := layer.weight.Tensor().Data()
	w[0], w[1], w[2], w[3] = 1, 2, 3, 4
	b := layer.bias.Tensor().Data()
	b[0], b[1] = 0.5, -0.5

	input, err := tensor.FromSlice([]float32{1, 1, 2, -1}, tensor.Shape{2, 2}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	output := layer.Forward(input)

	// Row 0: [1+2+0.5, 3+4-0.5] = [3.5, 6.5]
	// Row 1: [2-2+0.5, 6-4-0.5] = [0.5, 1.5]
	expected := []float32{3.5, 6.5, 0.5, 1.5}
	for i, want := range expected {
		got := output.Data()[i]
		if !floatEqual(got, want, 1e-5) {
			t.Errorf("output[%d] = %v, want %v", i, got, want)
		}
	}
}

// TestLinear_NoBias checks the bias-free configuration.
func TestLinear_NoBias(t *testing.T) {
	backend := cpu.New()

	layer := NewLinear(3, 2, false, backend)

	if len(layer.Parameters()) != 1 {
		t.Errorf("Expected 1 parameter, got %d", len(layer.Parameters()))
	}
	if _, ok := layer.StateDict()["bias"]; ok {
		t.Error("bias should not appear in state dict")
	}
}

// TestLinear_InputValidation checks shape panics.
func TestLinear_InputValidation(t *testing.T) {
	backend := cpu.New()

	layer := NewLinear(4, 2, true, backend)
	input := tensor.Zeros[float32](tensor.Shape{1, 3}, backend)

	defer func() {
		if recover() == nil {
			t.Error("feature mismatch accepted")
		}
	}()
	layer.Forward(input)
}
