// Copyright 2025 Loom ML Library. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package resnet provides the public API for building residual image
// classifiers.
//
// A network is assembled once from a Config (or one of the five classic
// presets) and is immutable in topology afterwards; only the classifier
// head can be swapped for a different class count.
//
// Example:
//
//	backend := cpu.New()
//	model := resnet.ResNet50(10, backend)
//	input := tensor.Zeros[float32](tensor.Shape{1, 3, 224, 224}, backend)
//	logits := model.Forward(input) // [1, 10]
package resnet

import (
	"github.com/loom-ml/loom/internal/resnet"
	"github.com/loom-ml/loom/internal/serialization"
	"github.com/loom-ml/loom/internal/tensor"
)

// BlockKind selects the residual block variant a network is built from.
type BlockKind = resnet.BlockKind

// Block kind constants.
const (
	BasicKind      BlockKind = resnet.BasicKind
	BottleneckKind BlockKind = resnet.BottleneckKind
)

// Expansion factors of the two block variants.
const (
	BasicExpansion      = resnet.BasicExpansion
	BottleneckExpansion = resnet.BottleneckExpansion
)

// Config describes a residual network.
type Config = resnet.Config

// ResNet is the assembled classifier.
type ResNet[B tensor.Backend] = resnet.ResNet[B]

// BasicBlock is the two-layer residual block (expansion 1).
type BasicBlock[B tensor.Backend] = resnet.BasicBlock[B]

// Bottleneck is the three-layer residual block (expansion 4).
type Bottleneck[B tensor.Backend] = resnet.Bottleneck[B]

// ConvNorm is the convolution + batch norm + optional ReLU primitive.
type ConvNorm[B tensor.Backend] = resnet.ConvNorm[B]

// GhostModule is the cheap-convolution block: a small primary
// convolution expanded by a depth-wise one, concatenated and truncated.
type GhostModule[B tensor.Backend] = resnet.GhostModule[B]

// New assembles a residual network from the configuration.
//
// Example:
//
//	model := resnet.New(resnet.Config{
//	    Block:  resnet.BottleneckKind,
//	    Layers: [4]int{3, 4, 6, 3},
//	    Groups: 32, WidthPerGroup: 4, // ResNeXt-50 32x4d
//	}, backend)
func New[B tensor.Backend](config Config, backend B) *ResNet[B] {
	return resnet.New(config, backend)
}

// NewConvNorm creates a ConvNorm primitive.
func NewConvNorm[B tensor.Backend](
	inChannels, outChannels int,
	kernelSize, stride, groups, dilation int,
	withReLU bool,
	backend B,
) *ConvNorm[B] {
	return resnet.NewConvNorm(inChannels, outChannels, kernelSize, stride, groups, dilation, withReLU, backend)
}

// NewGhostModule creates a cheap-convolution block.
//
// Example:
//
//	// 16 -> 32 channels with half the dense convolution cost
//	ghost := resnet.NewGhostModule(16, 32, 1, 2, 3, 1, true, backend)
func NewGhostModule[B tensor.Backend](
	inChannels, outChannels int,
	kernelSize, ratio, dwSize, stride int,
	withReLU bool,
	backend B,
) *GhostModule[B] {
	return resnet.NewGhostModule(inChannels, outChannels, kernelSize, ratio, dwSize, stride, withReLU, backend)
}

// WriteOptions configures a weight file write.
type WriteOptions = serialization.WriteOptions

// SaveWeights writes the network's state dict to a .loom file.
//
// Example:
//
//	err := resnet.SaveWeights("model.loom", model, resnet.WriteOptions{})
func SaveWeights[B tensor.Backend](path string, model *ResNet[B], opts WriteOptions) error {
	return resnet.SaveWeights(path, model, opts)
}

// LoadWeights reads a .loom file into the network. The file's tensor
// names and shapes must match the network's exactly.
func LoadWeights[B tensor.Backend](path string, model *ResNet[B]) error {
	return resnet.LoadWeights(path, model)
}

// Presets. Each accepts a class count; values <= 0 keep the default 1000.

// ResNet18 builds the [2,2,2,2] basic-block network.
func ResNet18[B tensor.Backend](numClasses int, backend B) *ResNet[B] {
	return resnet.ResNet18(numClasses, backend)
}

// ResNet34 builds the [3,4,6,3] basic-block network.
func ResNet34[B tensor.Backend](numClasses int, backend B) *ResNet[B] {
	return resnet.ResNet34(numClasses, backend)
}

// ResNet50 builds the [3,4,6,3] bottleneck network.
func ResNet50[B tensor.Backend](numClasses int, backend B) *ResNet[B] {
	return resnet.ResNet50(numClasses, backend)
}

// ResNet101 builds the [3,4,23,3] bottleneck network.
func ResNet101[B tensor.Backend](numClasses int, backend B) *ResNet[B] {
	return resnet.ResNet101(numClasses, backend)
}

// ResNet152 builds the [3,8,36,3] bottleneck network.
func ResNet152[B tensor.Backend](numClasses int, backend B) *ResNet[B] {
	return resnet.ResNet152(numClasses, backend)
}
