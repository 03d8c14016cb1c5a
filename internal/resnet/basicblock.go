package resnet

import (
	"fmt"

	"github.com/loom-ml/loom/internal/nn"
	"github.com/loom-ml/loom/internal/tensor"
)

// BasicExpansion is the output-width multiplier of BasicBlock.
const BasicExpansion = 1

// BasicBlock is the two-layer residual block: two 3x3 convolutions with
// batch norm, and an identity (or projected) shortcut.
//
//	out = relu(bn2(conv2(relu(bn1(conv1(x))))) + shortcut(x))
//
// The first convolution carries the block's stride; when the shortcut
// must change resolution or width, the caller supplies a downsample
// projection (1x1 conv + norm).
type BasicBlock[B tensor.Backend] struct {
	conv1 *nn.Conv2D[B]
	bn1   *nn.BatchNorm2D[B]
	conv2 *nn.Conv2D[B]
	bn2   *nn.BatchNorm2D[B]

	downsample *nn.Sequential[B] // nil for identity shortcut
	stride     int
}

// NewBasicBlock creates a basic residual block from inPlanes input
// channels to planes output channels.
//
// BasicBlock does not support the grouped/wide variants: it panics when
// groups != 1 or baseWidth != 64, and when dilation > 1 (dilation
// substitution is a bottleneck-only feature).
func NewBasicBlock[B tensor.Backend](
	inPlanes, planes, stride int,
	downsample *nn.Sequential[B],
	groups, baseWidth, dilation int,
	backend B,
) *BasicBlock[B] {
	if groups != 1 || baseWidth != 64 {
		panic(fmt.Sprintf("basicblock only supports groups=1 and base_width=64, got groups=%d, base_width=%d", groups, baseWidth))
	}
	if dilation > 1 {
		panic(fmt.Sprintf("dilation > 1 not supported in basicblock, got %d", dilation))
	}

	return &BasicBlock[B]{
		conv1:      conv3x3(inPlanes, planes, stride, 1, 1, backend),
		bn1:        nn.NewBatchNorm2D(planes, backend),
		conv2:      conv3x3(planes, planes, 1, 1, 1, backend),
		bn2:        nn.NewBatchNorm2D(planes, backend),
		downsample: downsample,
		stride:     stride,
	}
}

// Forward performs the residual forward pass.
func (b *BasicBlock[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	identity := input

	out := b.bn1.Forward(b.conv1.Forward(input)).ReLU()
	out = b.bn2.Forward(b.conv2.Forward(out))

	if b.downsample != nil {
		identity = b.downsample.Forward(input)
	}

	return out.Add(identity).ReLU()
}

// Parameters returns all trainable parameters, including the projection
// shortcut's when present.
func (b *BasicBlock[B]) Parameters() []*nn.Parameter[B] {
	params := append(b.conv1.Parameters(), b.bn1.Parameters()...)
	params = append(params, b.conv2.Parameters()...)
	params = append(params, b.bn2.Parameters()...)
	if b.downsample != nil {
		params = append(params, b.downsample.Parameters()...)
	}
	return params
}

// StateDict returns the block state.
func (b *BasicBlock[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	addPrefixed(stateDict, "conv1", b.conv1)
	addPrefixed(stateDict, "bn1", b.bn1)
	addPrefixed(stateDict, "conv2", b.conv2)
	addPrefixed(stateDict, "bn2", b.bn2)
	if b.downsample != nil {
		addPrefixed(stateDict, "downsample", b.downsample)
	}
	return stateDict
}

// LoadStateDict loads the block state.
func (b *BasicBlock[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadPrefixed(stateDict, "conv1", b.conv1); err != nil {
		return err
	}
	if err := loadPrefixed(stateDict, "bn1", b.bn1); err != nil {
		return err
	}
	if err := loadPrefixed(stateDict, "conv2", b.conv2); err != nil {
		return err
	}
	if err := loadPrefixed(stateDict, "bn2", b.bn2); err != nil {
		return err
	}
	if b.downsample != nil {
		return loadPrefixed(stateDict, "downsample", b.downsample)
	}
	return nil
}

// HasProjection reports whether the shortcut is a projection rather than
// the identity.
func (b *BasicBlock[B]) HasProjection() bool {
	return b.downsample != nil
}

// Stride returns the block's spatial stride.
func (b *BasicBlock[B]) Stride() int {
	return b.stride
}

// String returns a string representation of the block.
func (b *BasicBlock[B]) String() string {
	return fmt.Sprintf("BasicBlock(in=%d, out=%d, stride=%d, projection=%v)",
		b.conv1.InChannels(), b.conv2.OutChannels(), b.stride, b.downsample != nil)
}
