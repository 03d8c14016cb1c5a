package nn

import (
	"testing"

	"github.com/loom-ml/loom/internal/backend/cpu"
	"github.com/loom-ml/loom/internal/tensor"
)

// TestBatchNorm2D_IdentityAtInit checks that a fresh layer is (nearly)
// the identity: weight=1, bias=0, mean=0, var=1.
func TestBatchNorm2D_IdentityAtInit(t *testing.T) {
	backend := cpu.New()

	bn := NewBatchNorm2D(2, backend)

	input, err := tensor.FromSlice(
		[]float32{1, -2, 3, -4, 5, -6, 7, -8},
		tensor.Shape{1, 2, 2, 2}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	output := bn.Forward(input)

	for i, want := range input.Data() {
		got := output.Data()[i]
		// eps=1e-5 shifts the scale by ~5e-6.
		if !floatEqual(got, want, 1e-3) {
			t.Errorf("output[%d] = %v, want ~%v", i, got, want)
		}
	}
}

// TestBatchNorm2D_KnownStatistics checks the folded scale/shift math
// against hand-computed values.
func TestBatchNorm2D_KnownStatistics(t *testing.T) {
	backend := cpu.New()

	bn := NewBatchNorm2D(1, backend)

	// y = 2*(x - 3)/sqrt(4 + eps) + 1 ~= x - 2.
	bn.weight.Tensor().Data()[0] = 2
	bn.bias.Tensor().Data()[0] = 1
	bn.runningMean.Data()[0] = 3
	bn.runningVar.Data()[0] = 4

	input, err := tensor.FromSlice([]float32{1, 3, 5, 7}, tensor.Shape{1, 1, 2, 2}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	output := bn.Forward(input)

	expected := []float32{-1, 1, 3, 5}
	for i, want := range expected {
		got := output.Data()[i]
		if !floatEqual(got, want, 1e-3) {
			t.Errorf("output[%d] = %v, want ~%v", i, got, want)
		}
	}
}

// TestBatchNorm2D_PerChannel checks each channel uses its own statistics.
func TestBatchNorm2D_PerChannel(t *testing.T) {
	backend := cpu.New()

	bn := NewBatchNorm2D(2, backend)

	// Channel 0: identity. Channel 1: scale by 3.
	bn.weight.Tensor().Data()[1] = 3

	input, err := tensor.FromSlice([]float32{1, 2, 1, 2}, tensor.Shape{1, 2, 1, 2}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	output := bn.Forward(input)

	expected := []float32{1, 2, 3, 6}
	for i, want := range expected {
		got := output.Data()[i]
		if !floatEqual(got, want, 1e-3) {
			t.Errorf("output[%d] = %v, want ~%v", i, got, want)
		}
	}
}

// TestBatchNorm2D_Parameters checks running statistics are excluded from
// the trainable parameters but present in the state dict.
func TestBatchNorm2D_Parameters(t *testing.T) {
	backend := cpu.New()

	bn := NewBatchNorm2D(8, backend)

	params := bn.Parameters()
	if len(params) != 2 {
		t.Errorf("Expected 2 parameters (weight, bias), got %d", len(params))
	}

	stateDict := bn.StateDict()
	for _, key := range []string{"weight", "bias", "running_mean", "running_var"} {
		if _, ok := stateDict[key]; !ok {
			t.Errorf("state dict missing %q", key)
		}
	}
	if len(stateDict) != 4 {
		t.Errorf("Expected 4 state dict entries, got %d", len(stateDict))
	}
}

// TestBatchNorm2D_LoadStateDict round-trips the full state.
func TestBatchNorm2D_LoadStateDict(t *testing.T) {
	backend := cpu.New()

	src := NewBatchNorm2D(2, backend)
	src.weight.Tensor().Data()[0] = 5
	src.runningMean.Data()[1] = -1
	src.runningVar.Data()[0] = 9

	dst := NewBatchNorm2D(2, backend)
	if err := dst.LoadStateDict(src.StateDict()); err != nil {
		t.Fatalf("LoadStateDict failed: %v", err)
	}

	if got := dst.weight.Tensor().Data()[0]; got != 5 {
		t.Errorf("weight[0] = %v, want 5", got)
	}
	if got := dst.runningMean.Data()[1]; got != -1 {
		t.Errorf("running_mean[1] = %v, want -1", got)
	}
	if got := dst.runningVar.Data()[0]; got != 9 {
		t.Errorf("running_var[0] = %v, want 9", got)
	}
}
