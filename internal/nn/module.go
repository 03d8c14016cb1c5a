// Package nn implements neural network modules for the Loom library.
//
// This package provides the building blocks the resnet package composes:
//   - Module interface: base interface for all NN components
//   - Parameter: trainable parameters with a per-parameter trainability flag
//   - Conv2D, BatchNorm2D, Linear, MaxPool2D, GlobalAvgPool2D, ReLU
//   - Sequential: container for stacking layers
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Every NN module must implement:
//   - Forward: compute output from input
//   - Parameters: return all trainable parameters
//   - StateDict: export parameters (and buffers) for serialization
//   - LoadStateDict: import parameters from serialization
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	//
	// The input tensor should have the appropriate shape for this module.
	// For example, Conv2D expects [batch, in_channels, height, width].
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module.
	//
	// This includes weights, biases, and any nested module parameters.
	// Returns an empty slice for modules without trainable parameters
	// (e.g., activation functions). Normalization running statistics are
	// buffers, not parameters, and do not appear here.
	Parameters() []*Parameter[B]

	// StateDict returns a map of tensor names to raw tensors.
	//
	// The map contains every tensor the module needs to reconstruct its
	// state: trainable parameters and persistent buffers such as batch
	// norm running statistics.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict loads tensors from a state dictionary.
	//
	// Returns an error if a required tensor is missing or has the wrong
	// shape or dtype.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// loadInto copies the named state dict entry into dst, validating shape
// and dtype. Shared by every layer's LoadStateDict.
func loadInto[B tensor.Backend](stateDict map[string]*tensor.RawTensor, name string, dst *tensor.Tensor[float32, B]) error {
	raw, ok := stateDict[name]
	if !ok {
		return fmt.Errorf("missing %s in state dict", name)
	}
	if !raw.Shape().Equal(dst.Shape()) {
		return fmt.Errorf("%s shape mismatch: expected %v, got %v", name, dst.Shape(), raw.Shape())
	}
	if raw.DType() != tensor.Float32 {
		return fmt.Errorf("%s dtype mismatch: expected float32, got %v", name, raw.DType())
	}
	copy(dst.Data(), raw.AsFloat32())
	return nil
}
