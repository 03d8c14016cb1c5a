// Copyright 2025 Loom ML Library. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the public API for neural network layers.
//
// Layers follow a common Module interface: Forward, Parameters,
// StateDict, and LoadStateDict. Residual networks built from these
// layers live in the resnet package.
package nn

import (
	"github.com/loom-ml/loom/internal/nn"
	"github.com/loom-ml/loom/internal/tensor"
)

// Module interface defines the common interface for all neural network modules.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter represents a trainable parameter in a neural network.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a new parameter with the given name and tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// Layers

// Linear represents a fully connected (dense) layer.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a new linear layer with Xavier initialization.
//
// Example:
//
//	backend := cpu.New()
//	layer := nn.NewLinear(512, 1000, true, backend)
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, useBias bool, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, useBias, backend)
}

// Conv2D represents a 2D convolutional layer with square kernels.
type Conv2D[B tensor.Backend] = nn.Conv2D[B]

// NewConv2D creates a new 2D convolutional layer.
//
// Example:
//
//	backend := cpu.New()
//	// 3 -> 64 channels, 7x7 kernel, stride 2, padding 3, no groups/dilation, no bias
//	conv := nn.NewConv2D(3, 64, 7, 2, 3, 1, 1, false, backend)
func NewConv2D[B tensor.Backend](
	inChannels, outChannels int,
	kernelSize, stride, padding, groups, dilation int,
	useBias bool,
	backend B,
) *Conv2D[B] {
	return nn.NewConv2D(inChannels, outChannels, kernelSize, stride, padding, groups, dilation, useBias, backend)
}

// BatchNorm2D represents 2D batch normalization over channel planes,
// using running statistics.
type BatchNorm2D[B tensor.Backend] = nn.BatchNorm2D[B]

// NewBatchNorm2D creates a new batch normalization layer.
//
// Example:
//
//	backend := cpu.New()
//	bn := nn.NewBatchNorm2D(64, backend)
func NewBatchNorm2D[B tensor.Backend](numFeatures int, backend B) *BatchNorm2D[B] {
	return nn.NewBatchNorm2D(numFeatures, backend)
}

// MaxPool2D represents a 2D max pooling layer.
type MaxPool2D[B tensor.Backend] = nn.MaxPool2D[B]

// NewMaxPool2D creates a new 2D max pooling layer.
//
// Example:
//
//	backend := cpu.New()
//	pool := nn.NewMaxPool2D(3, 2, 1, backend)  // kernel=3, stride=2, padding=1
func NewMaxPool2D[B tensor.Backend](kernelSize, stride, padding int, backend B) *MaxPool2D[B] {
	return nn.NewMaxPool2D(kernelSize, stride, padding, backend)
}

// GlobalAvgPool2D averages each channel plane to a single value,
// producing [batch, channels] from [batch, channels, h, w].
type GlobalAvgPool2D[B tensor.Backend] = nn.GlobalAvgPool2D[B]

// NewGlobalAvgPool2D creates a new global average pooling layer.
func NewGlobalAvgPool2D[B tensor.Backend]() *GlobalAvgPool2D[B] {
	return nn.NewGlobalAvgPool2D[B]()
}

// Activations

// ReLU represents the Rectified Linear Unit activation function.
type ReLU[B tensor.Backend] = nn.ReLU[B]

// NewReLU creates a new ReLU activation layer.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return nn.NewReLU[B]()
}

// Sequential

// Sequential represents a sequential container of modules.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a new sequential model.
//
// Example:
//
//	backend := cpu.New()
//	model := nn.NewSequential(
//	    nn.NewConv2D(3, 16, 3, 1, 1, 1, 1, false, backend),
//	    nn.NewBatchNorm2D(16, backend),
//	    nn.NewReLU[*cpu.Backend](),
//	)
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// Initialization functions

// Xavier initializes a tensor using Xavier/Glorot initialization.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Xavier(fanIn, fanOut, shape, backend)
}

// KaimingNormal fills a tensor in place with values from N(0, sqrt(2/fan)),
// the variance-scaling initialization for rectifier networks.
func KaimingNormal[B tensor.Backend](t *tensor.Tensor[float32, B], fan int) {
	nn.KaimingNormal(t, fan)
}

// Constant fills a tensor in place with a fixed value.
func Constant[B tensor.Backend](t *tensor.Tensor[float32, B], value float32) {
	nn.Constant(t, value)
}

// Zeros initializes a tensor with zeros (for biases).
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Zeros(shape, backend)
}

// Ones initializes a tensor with ones.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return nn.Ones(shape, backend)
}
