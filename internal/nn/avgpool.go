package nn

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// GlobalAvgPool2D averages each channel's spatial plane down to a single
// value and drops the spatial dimensions.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels]
//
// Equivalent to adaptive average pooling with a 1x1 target followed by a
// flatten.
type GlobalAvgPool2D[B tensor.Backend] struct{}

// NewGlobalAvgPool2D creates a new global average pooling layer.
func NewGlobalAvgPool2D[B tensor.Backend]() *GlobalAvgPool2D[B] {
	return &GlobalAvgPool2D[B]{}
}

// Forward performs the forward pass.
func (g *GlobalAvgPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("global avg pool: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}

	// Reduce width, then height: [N,C,H,W] -> [N,C,H] -> [N,C].
	return input.MeanDim(-1, false).MeanDim(-1, false)
}

// Parameters returns an empty slice; pooling has no trainable parameters.
func (g *GlobalAvgPool2D[B]) Parameters() []*Parameter[B] {
	return nil
}

// StateDict returns an empty map; pooling carries no state.
func (g *GlobalAvgPool2D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op; pooling carries no state.
func (g *GlobalAvgPool2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return nil
}

// String returns a string representation of the layer.
func (g *GlobalAvgPool2D[B]) String() string {
	return "GlobalAvgPool2D()"
}
