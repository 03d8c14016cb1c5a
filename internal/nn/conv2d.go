package nn

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// Conv2D is a 2D convolutional layer with square kernels.
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels/groups, k, k]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where (with dilation d):
//
//	out_h = (height + 2*padding - d*(k-1) - 1) / stride + 1
//	out_w = (width  + 2*padding - d*(k-1) - 1) / stride + 1
//
// Example:
//
//	// 3 -> 64 channels, 7x7 kernel, stride 2, padding 3, no bias
//	conv := nn.NewConv2D(3, 64, 7, 2, 3, 1, 1, false, backend)
type Conv2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int
	groups      int
	dilation    int
	useBias     bool

	weight *Parameter[B] // [out_channels, in_channels/groups, k, k]
	bias   *Parameter[B] // [out_channels] or nil

	backend B
}

// NewConv2D creates a new 2D convolutional layer.
//
// Weights get Xavier initialization (callers wanting a different scheme,
// like the resnet package's kaiming fan-out pass, overwrite them after
// construction). Bias, if enabled, starts at zero.
//
// Panics on invalid configuration: non-positive channels/kernel/stride/
// groups/dilation, negative padding, or channel counts not divisible by
// groups.
func NewConv2D[B tensor.Backend](
	inChannels, outChannels int,
	kernelSize, stride, padding, groups, dilation int,
	useBias bool,
	backend B,
) *Conv2D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelSize <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", stride))
	}
	if padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid padding %d", padding))
	}
	if groups <= 0 {
		panic(fmt.Sprintf("conv2d: invalid groups %d", groups))
	}
	if inChannels%groups != 0 || outChannels%groups != 0 {
		panic(fmt.Sprintf("conv2d: channels (in=%d, out=%d) not divisible by groups %d", inChannels, outChannels, groups))
	}
	if dilation <= 0 {
		panic(fmt.Sprintf("conv2d: invalid dilation %d", dilation))
	}

	weightShape := tensor.Shape{outChannels, inChannels / groups, kernelSize, kernelSize}

	fanIn := (inChannels / groups) * kernelSize * kernelSize
	fanOut := (outChannels / groups) * kernelSize * kernelSize
	weight := Xavier(fanIn, fanOut, weightShape, backend)
	weightParam := NewParameter("weight", weight)

	var biasParam *Parameter[B]
	if useBias {
		biasParam = NewParameter("bias", Zeros(tensor.Shape{outChannels}, backend))
	}

	return &Conv2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
		groups:      groups,
		dilation:    dilation,
		useBias:     useBias,
		weight:      weightParam,
		bias:        biasParam,
		backend:     backend,
	}
}

// Forward performs the forward pass.
//
// Input: [batch, in_channels, height, width]
// Output: [batch, out_channels, out_h, out_w].
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", inputShape[1], c.inChannels))
	}

	outputRaw := c.backend.Conv2D(
		input.Raw(),
		c.weight.Tensor().Raw(),
		c.stride,
		c.padding,
		c.groups,
		c.dilation,
	)

	output := tensor.New[float32, B](outputRaw, c.backend)

	if c.useBias {
		// Bias broadcasts as [1, out_channels, 1, 1] over the output.
		biasReshaped := c.bias.Tensor().Reshape(1, c.outChannels, 1, 1)
		output = output.Add(biasReshaped)
	}

	return output
}

// Parameters returns all trainable parameters.
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	if c.useBias {
		return []*Parameter[B]{c.weight, c.bias}
	}
	return []*Parameter[B]{c.weight}
}

// StateDict returns a map of parameter names to raw tensors.
func (c *Conv2D[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := map[string]*tensor.RawTensor{
		"weight": c.weight.Tensor().Raw(),
	}
	if c.useBias {
		stateDict["bias"] = c.bias.Tensor().Raw()
	}
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary.
func (c *Conv2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadInto(stateDict, "weight", c.weight.Tensor()); err != nil {
		return err
	}
	if c.useBias {
		return loadInto(stateDict, "bias", c.bias.Tensor())
	}
	return nil
}

// Weight returns the weight parameter.
func (c *Conv2D[B]) Weight() *Parameter[B] {
	return c.weight
}

// OutChannels returns the number of output channels.
func (c *Conv2D[B]) OutChannels() int {
	return c.outChannels
}

// InChannels returns the number of input channels.
func (c *Conv2D[B]) InChannels() int {
	return c.inChannels
}

// Stride returns the stride.
func (c *Conv2D[B]) Stride() int {
	return c.stride
}

// Dilation returns the dilation.
func (c *Conv2D[B]) Dilation() int {
	return c.dilation
}

// String returns a string representation of the layer.
func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2D(in_channels=%d, out_channels=%d, kernel_size=%d, stride=%d, padding=%d, groups=%d, dilation=%d, bias=%v)",
		c.inChannels, c.outChannels, c.kernelSize, c.stride, c.padding, c.groups, c.dilation, c.useBias)
}
