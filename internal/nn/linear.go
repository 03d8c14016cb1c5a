package nn

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// Linear is a fully connected layer: Y = X*W^T + b.
//
// Input shape:  [batch, in_features]
// Weight shape: [out_features, in_features]
// Bias shape:   [out_features]
// Output shape: [batch, out_features]
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	useBias     bool

	weight *Parameter[B] // [out_features, in_features]
	bias   *Parameter[B] // [out_features] or nil

	backend B
}

// NewLinear creates a new fully connected layer.
//
// Weights get Xavier initialization, bias (if enabled) starts at zero.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, useBias bool, backend B) *Linear[B] {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("linear: invalid features in=%d, out=%d", inFeatures, outFeatures))
	}

	weightShape := tensor.Shape{outFeatures, inFeatures}
	weight := Xavier(inFeatures, outFeatures, weightShape, backend)
	weightParam := NewParameter("weight", weight)

	var biasParam *Parameter[B]
	if useBias {
		biasParam = NewParameter("bias", Zeros(tensor.Shape{outFeatures}, backend))
	}

	return &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		useBias:     useBias,
		weight:      weightParam,
		bias:        biasParam,
		backend:     backend,
	}
}

// Forward performs the forward pass.
//
// Input: [batch, in_features]
// Output: [batch, out_features].
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 2 {
		panic(fmt.Sprintf("linear: expected 2D input [N,F], got %dD", len(inputShape)))
	}
	if inputShape[1] != l.inFeatures {
		panic(fmt.Sprintf("linear: input features %d != expected %d", inputShape[1], l.inFeatures))
	}

	output := input.MatMul(l.weight.Tensor().T())

	if l.useBias {
		biasReshaped := l.bias.Tensor().Reshape(1, l.outFeatures)
		output = output.Add(biasReshaped)
	}

	return output
}

// Parameters returns all trainable parameters.
func (l *Linear[B]) Parameters() []*Parameter[B] {
	if l.useBias {
		return []*Parameter[B]{l.weight, l.bias}
	}
	return []*Parameter[B]{l.weight}
}

// StateDict returns a map of parameter names to raw tensors.
func (l *Linear[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := map[string]*tensor.RawTensor{
		"weight": l.weight.Tensor().Raw(),
	}
	if l.useBias {
		stateDict["bias"] = l.bias.Tensor().Raw()
	}
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary.
func (l *Linear[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadInto(stateDict, "weight", l.weight.Tensor()); err != nil {
		return err
	}
	if l.useBias {
		return loadInto(stateDict, "bias", l.bias.Tensor())
	}
	return nil
}

// InFeatures returns the input feature count.
func (l *Linear[B]) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the output feature count.
func (l *Linear[B]) OutFeatures() int {
	return l.outFeatures
}

// String returns a string representation of the layer.
func (l *Linear[B]) String() string {
	return fmt.Sprintf("Linear(in_features=%d, out_features=%d, bias=%v)", l.inFeatures, l.outFeatures, l.useBias)
}
