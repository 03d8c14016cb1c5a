package resnet

import (
	"fmt"

	"github.com/loom-ml/loom/internal/nn"
	"github.com/loom-ml/loom/internal/tensor"
)

// GhostModule factors a standard convolution into a cheap primary
// convolution producing a small set of "intrinsic" feature maps, plus an
// even cheaper depth-wise convolution that expands those intrinsic maps
// into additional "ghost" features. The two are concatenated and
// truncated to the requested output width.
//
// For a ratio r, the primary convolution produces ceil(oup/r) intrinsic
// channels and the cheap expansion produces intrinsic*(r-1) more, so the
// concatenation has at least oup channels and the surplus is dropped.
type GhostModule[B tensor.Backend] struct {
	outChannels int

	primary *ConvNorm[B] // inp -> intrinsic, dense
	cheap   *ConvNorm[B] // intrinsic -> intrinsic*(ratio-1), depth-wise
}

// NewGhostModule creates a cheap-convolution block.
//
// kernelSize and stride apply to the primary convolution; dwSize is the
// depth-wise expansion kernel (stride 1, groups = intrinsic channels).
// ratio must be at least 2 so the expansion produces at least one ghost
// channel per intrinsic channel.
func NewGhostModule[B tensor.Backend](
	inChannels, outChannels int,
	kernelSize, ratio, dwSize, stride int,
	withReLU bool,
	backend B,
) *GhostModule[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("ghost: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if ratio < 2 {
		panic(fmt.Sprintf("ghost: ratio must be >= 2, got %d", ratio))
	}

	// ceil(oup/ratio) intrinsic channels.
	intrinsic := (outChannels + ratio - 1) / ratio
	ghost := intrinsic * (ratio - 1)
	if intrinsic+ghost < outChannels {
		panic(fmt.Sprintf("ghost: %d intrinsic + %d ghost channels cannot cover %d outputs", intrinsic, ghost, outChannels))
	}

	return &GhostModule[B]{
		outChannels: outChannels,
		primary:     NewConvNorm(inChannels, intrinsic, kernelSize, stride, 1, 1, withReLU, backend),
		cheap:       NewConvNorm(intrinsic, ghost, dwSize, 1, intrinsic, 1, withReLU, backend),
	}
}

// Forward computes the primary features, expands them cheaply,
// concatenates both along the channel dimension, and truncates to the
// requested output width.
func (g *GhostModule[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x1 := g.primary.Forward(input)
	x2 := g.cheap.Forward(x1)

	out := tensor.Cat([]*tensor.Tensor[float32, B]{x1, x2}, 1)
	if out.Shape()[1] == g.outChannels {
		return out
	}
	return out.Narrow(1, 0, g.outChannels)
}

// Parameters returns all trainable parameters.
func (g *GhostModule[B]) Parameters() []*nn.Parameter[B] {
	return append(g.primary.Parameters(), g.cheap.Parameters()...)
}

// StateDict returns the state of both convolution paths.
func (g *GhostModule[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	addPrefixed(stateDict, "primary", g.primary)
	addPrefixed(stateDict, "cheap", g.cheap)
	return stateDict
}

// LoadStateDict loads the state of both convolution paths.
func (g *GhostModule[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadPrefixed(stateDict, "primary", g.primary); err != nil {
		return err
	}
	return loadPrefixed(stateDict, "cheap", g.cheap)
}

// OutChannels returns the number of output channels after truncation.
func (g *GhostModule[B]) OutChannels() int {
	return g.outChannels
}

// IntrinsicChannels returns the number of channels the primary
// convolution produces.
func (g *GhostModule[B]) IntrinsicChannels() int {
	return g.primary.OutChannels()
}

// String returns a string representation of the block.
func (g *GhostModule[B]) String() string {
	return fmt.Sprintf("GhostModule(out_channels=%d, intrinsic=%d)", g.outChannels, g.primary.OutChannels())
}
