package nn

import (
	"github.com/loom-ml/loom/internal/tensor"
)

// ReLU applies the rectified linear unit element-wise: max(0, x).
type ReLU[B tensor.Backend] struct{}

// NewReLU creates a new ReLU activation.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// Forward applies the activation.
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.ReLU()
}

// Parameters returns an empty slice; ReLU has no trainable parameters.
func (r *ReLU[B]) Parameters() []*Parameter[B] {
	return nil
}

// StateDict returns an empty map; ReLU carries no state.
func (r *ReLU[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op; ReLU carries no state.
func (r *ReLU[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return nil
}

// String returns a string representation of the layer.
func (r *ReLU[B]) String() string {
	return "ReLU()"
}
