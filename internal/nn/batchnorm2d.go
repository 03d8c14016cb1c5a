package nn

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// BatchNorm2D normalizes each channel of a [batch, channels, height, width]
// tensor using running statistics, then applies a trainable scale and shift:
//
//	Y = weight * (X - running_mean) / sqrt(running_var + eps) + bias
//
// The running statistics are persistent buffers: they travel with the
// state dict but are not trainable parameters. This layer always
// normalizes with the stored statistics — the statistics-update pass
// belongs to a training loop, which Loom does not provide.
//
// Freshly constructed layers have weight=1, bias=0, running_mean=0,
// running_var=1, which makes the initial transform the identity.
type BatchNorm2D[B tensor.Backend] struct {
	numFeatures int
	eps         float32

	weight *Parameter[B] // trainable scale (gamma) [num_features]
	bias   *Parameter[B] // trainable shift (beta) [num_features]

	runningMean *tensor.Tensor[float32, B] // buffer [num_features]
	runningVar  *tensor.Tensor[float32, B] // buffer [num_features]

	backend B
}

// DefaultBatchNormEps is the numerical stability constant added to the
// running variance before taking the square root.
const DefaultBatchNormEps = 1e-5

// NewBatchNorm2D creates a new BatchNorm2D layer over numFeatures channels.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, backend B) *BatchNorm2D[B] {
	if numFeatures <= 0 {
		panic(fmt.Sprintf("batchnorm2d: invalid num_features %d", numFeatures))
	}

	shape := tensor.Shape{numFeatures}

	return &BatchNorm2D[B]{
		numFeatures: numFeatures,
		eps:         DefaultBatchNormEps,
		weight:      NewParameter("weight", Ones(shape, backend)),
		bias:        NewParameter("bias", Zeros(shape, backend)),
		runningMean: Zeros[B](shape, backend),
		runningVar:  Ones[B](shape, backend),
		backend:     backend,
	}
}

// Forward applies the normalization.
//
// Input: [batch, num_features, height, width]
// Output: same shape.
//
// The per-channel statistics fold into a single scale and shift:
//
//	scale = weight / sqrt(running_var + eps)
//	shift = bias - running_mean * scale
//	Y     = X * scale + shift
func (bn *BatchNorm2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("batchnorm2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if inputShape[1] != bn.numFeatures {
		panic(fmt.Sprintf("batchnorm2d: input channels %d != expected %d", inputShape[1], bn.numFeatures))
	}

	rstd := bn.runningVar.AddScalar(bn.eps).Rsqrt()
	scale := bn.weight.Tensor().Mul(rstd)
	shift := bn.bias.Tensor().Sub(bn.runningMean.Mul(scale))

	scale4d := scale.Reshape(1, bn.numFeatures, 1, 1)
	shift4d := shift.Reshape(1, bn.numFeatures, 1, 1)

	return input.Mul(scale4d).Add(shift4d)
}

// Parameters returns the trainable scale and shift. Running statistics
// are buffers and intentionally excluded.
func (bn *BatchNorm2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.weight, bn.bias}
}

// StateDict returns parameters and running-statistic buffers.
func (bn *BatchNorm2D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight":       bn.weight.Tensor().Raw(),
		"bias":         bn.bias.Tensor().Raw(),
		"running_mean": bn.runningMean.Raw(),
		"running_var":  bn.runningVar.Raw(),
	}
}

// LoadStateDict loads parameters and buffers from a state dictionary.
func (bn *BatchNorm2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadInto(stateDict, "weight", bn.weight.Tensor()); err != nil {
		return err
	}
	if err := loadInto(stateDict, "bias", bn.bias.Tensor()); err != nil {
		return err
	}
	if err := loadInto(stateDict, "running_mean", bn.runningMean); err != nil {
		return err
	}
	return loadInto(stateDict, "running_var", bn.runningVar)
}

// Weight returns the trainable scale parameter.
func (bn *BatchNorm2D[B]) Weight() *Parameter[B] {
	return bn.weight
}

// Bias returns the trainable shift parameter.
func (bn *BatchNorm2D[B]) Bias() *Parameter[B] {
	return bn.bias
}

// NumFeatures returns the number of normalized channels.
func (bn *BatchNorm2D[B]) NumFeatures() int {
	return bn.numFeatures
}

// String returns a string representation of the layer.
func (bn *BatchNorm2D[B]) String() string {
	return fmt.Sprintf("BatchNorm2D(num_features=%d, eps=%g)", bn.numFeatures, bn.eps)
}
