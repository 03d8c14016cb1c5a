package nn

import (
	"testing"

	"github.com/loom-ml/loom/internal/backend/cpu"
	"github.com/loom-ml/loom/internal/tensor"
)

// TestSequential_StateDictPrefixes checks the index-prefixed key layout a
// projection shortcut relies on: Sequential(conv, norm) exports
// "0.weight", "1.weight", "1.running_mean", ...
func TestSequential_StateDictPrefixes(t *testing.T) {
	backend := cpu.New()

	seq := NewSequential[*cpu.CPUBackend](
		NewConv2D(4, 8, 1, 2, 0, 1, 1, false, backend),
		NewBatchNorm2D(8, backend),
	)

	stateDict := seq.StateDict()

	for _, key := range []string{"0.weight", "1.weight", "1.bias", "1.running_mean", "1.running_var"} {
		if _, ok := stateDict[key]; !ok {
			t.Errorf("state dict missing %q", key)
		}
	}
	if len(stateDict) != 5 {
		t.Errorf("Expected 5 entries, got %d: %v", len(stateDict), keys(stateDict))
	}
}

// TestSequential_LoadStateDict round-trips through the prefixed layout.
func TestSequential_LoadStateDict(t *testing.T) {
	backend := cpu.New()

	build := func() *Sequential[*cpu.CPUBackend] {
		return NewSequential[*cpu.CPUBackend](
			NewConv2D(2, 2, 1, 1, 0, 1, 1, false, backend),
			NewBatchNorm2D(2, backend),
		)
	}

	src := build()
	srcConv := src.At(0).(*Conv2D[*cpu.CPUBackend])
	srcConv.weight.Tensor().Data()[0] = 42

	dst := build()
	if err := dst.LoadStateDict(src.StateDict()); err != nil {
		t.Fatalf("LoadStateDict failed: %v", err)
	}

	dstConv := dst.At(0).(*Conv2D[*cpu.CPUBackend])
	if got := dstConv.weight.Tensor().Data()[0]; got != 42 {
		t.Errorf("loaded weight[0] = %v, want 42", got)
	}
}

// TestSequential_LoadStateDictMissing checks a child's missing tensor is
// reported with its index.
func TestSequential_LoadStateDictMissing(t *testing.T) {
	backend := cpu.New()

	seq := NewSequential[*cpu.CPUBackend](
		NewConv2D(2, 2, 1, 1, 0, 1, 1, false, backend),
		NewBatchNorm2D(2, backend),
	)

	stateDict := seq.StateDict()
	delete(stateDict, "1.running_var")

	if err := seq.LoadStateDict(stateDict); err == nil {
		t.Fatal("expected error for missing child tensor")
	}
}

// TestSequential_Forward checks modules chain in order.
func TestSequential_Forward(t *testing.T) {
	backend := cpu.New()

	conv := NewConv2D(1, 1, 1, 1, 0, 1, 1, true, backend)
	conv.weight.Tensor().Data()[0] = 2
	conv.bias.Tensor().Data()[0] = -3

	seq := NewSequential[*cpu.CPUBackend](conv, NewReLU[*cpu.CPUBackend]())

	input, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	output := seq.Forward(input)

	// 2x - 3, clamped at zero: {-1, 1, 3, 5} -> {0, 1, 3, 5}.
	expected := []float32{0, 1, 3, 5}
	for i, want := range expected {
		got := output.Data()[i]
		if !floatEqual(got, want, 1e-5) {
			t.Errorf("output[%d] = %v, want %v", i, got, want)
		}
	}
}

func keys(m map[string]*tensor.RawTensor) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
