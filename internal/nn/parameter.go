package nn

import (
	"github.com/loom-ml/loom/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// Parameters are tensors that are eligible for gradient updates during
// training. They typically represent weights and biases of layers.
// The trainability flag is what backbone freezing toggles; an optimizer
// must skip parameters whose RequiresGrad reports false.
//
// Example:
//
//	weight := nn.NewParameter("weight", weightTensor)
//	w := weight.Tensor()
type Parameter[B tensor.Backend] struct {
	name         string                     // Parameter name (e.g., "weight", "bias")
	tensor       *tensor.Tensor[float32, B] // The parameter tensor
	requiresGrad bool                       // Whether this parameter is eligible for gradient updates
}

// NewParameter creates a new trainable parameter.
//
// The parameter tensor should be initialized before creating the
// Parameter. Parameters start out trainable.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:         name,
		tensor:       t,
		requiresGrad: true,
	}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// RequiresGrad reports whether this parameter is eligible for gradient updates.
func (p *Parameter[B]) RequiresGrad() bool {
	return p.requiresGrad
}

// SetRequiresGrad sets the trainability flag.
//
// Callers must not toggle this concurrently with an in-flight gradient
// update pass.
func (p *Parameter[B]) SetRequiresGrad(requiresGrad bool) {
	p.requiresGrad = requiresGrad
}
