// Package resnet builds residual image-classification networks from
// configurable block templates.
//
// The package provides:
//   - ConvNorm: convolution + batch norm + optional ReLU primitive
//   - GhostModule: cheap-convolution block (GhostNet-style)
//   - BasicBlock / Bottleneck: the two residual block variants
//   - ResNet: the assembled network (stem, four stages, pool, head)
//   - ResNet18/34/50/101/152 presets
package resnet

import (
	"fmt"

	"github.com/loom-ml/loom/internal/nn"
	"github.com/loom-ml/loom/internal/tensor"
)

// ConvNorm is the convolution + normalization + optional activation
// primitive every block is built from.
//
// Padding is derived, never supplied: padding = dilation * (kernel/2),
// which preserves spatial size at stride 1 for odd kernels.
type ConvNorm[B tensor.Backend] struct {
	conv     *nn.Conv2D[B]
	bn       *nn.BatchNorm2D[B]
	withReLU bool
}

// NewConvNorm creates a ConvNorm primitive. The convolution carries no
// bias (the batch norm shift subsumes it) and gets kaiming fan-out
// initialization.
func NewConvNorm[B tensor.Backend](
	inChannels, outChannels int,
	kernelSize, stride, groups, dilation int,
	withReLU bool,
	backend B,
) *ConvNorm[B] {
	padding := dilation * (kernelSize / 2)

	conv := nn.NewConv2D(inChannels, outChannels, kernelSize, stride, padding, groups, dilation, false, backend)
	kaimingConv(conv)

	return &ConvNorm[B]{
		conv:     conv,
		bn:       nn.NewBatchNorm2D(outChannels, backend),
		withReLU: withReLU,
	}
}

// Forward applies convolution, normalization, and (if enabled) ReLU.
func (c *ConvNorm[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out := c.bn.Forward(c.conv.Forward(input))
	if c.withReLU {
		out = out.ReLU()
	}
	return out
}

// Parameters returns all trainable parameters.
func (c *ConvNorm[B]) Parameters() []*nn.Parameter[B] {
	return append(c.conv.Parameters(), c.bn.Parameters()...)
}

// StateDict returns the state of the convolution and normalization.
func (c *ConvNorm[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	addPrefixed(stateDict, "conv", c.conv)
	addPrefixed(stateDict, "bn", c.bn)
	return stateDict
}

// LoadStateDict loads the convolution and normalization state.
func (c *ConvNorm[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadPrefixed(stateDict, "conv", c.conv); err != nil {
		return err
	}
	return loadPrefixed(stateDict, "bn", c.bn)
}

// OutChannels returns the number of output channels.
func (c *ConvNorm[B]) OutChannels() int {
	return c.conv.OutChannels()
}

// String returns a string representation of the primitive.
func (c *ConvNorm[B]) String() string {
	return fmt.Sprintf("ConvNorm(%v, %v, relu=%v)", c.conv, c.bn, c.withReLU)
}

// kaimingConv reinitializes a convolution weight with kaiming fan-out:
// for weight shape [out, in/groups, k, k], fan = out*k*k.
func kaimingConv[B tensor.Backend](c *nn.Conv2D[B]) {
	w := c.Weight().Tensor()
	shape := w.Shape()
	fan := shape[0] * shape[2] * shape[3]
	nn.KaimingNormal(w, fan)
}

// conv3x3 builds a 3x3 convolution with padding = dilation, no bias,
// kaiming fan-out initialized.
func conv3x3[B tensor.Backend](inPlanes, outPlanes, stride, groups, dilation int, backend B) *nn.Conv2D[B] {
	c := nn.NewConv2D(inPlanes, outPlanes, 3, stride, dilation, groups, dilation, false, backend)
	kaimingConv(c)
	return c
}

// conv1x1 builds a 1x1 convolution, no bias, kaiming fan-out initialized.
func conv1x1[B tensor.Backend](inPlanes, outPlanes, stride int, backend B) *nn.Conv2D[B] {
	c := nn.NewConv2D(inPlanes, outPlanes, 1, stride, 0, 1, 1, false, backend)
	kaimingConv(c)
	return c
}
