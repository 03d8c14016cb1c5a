package resnet

import (
	"fmt"

	"github.com/loom-ml/loom/internal/nn"
	"github.com/loom-ml/loom/internal/tensor"
)

// BottleneckExpansion is the output-width multiplier of Bottleneck.
const BottleneckExpansion = 4

// Bottleneck is the three-layer residual block: a 1x1 reduction, a 3x3
// convolution carrying the block's stride, groups and dilation, and a
// 1x1 expansion back to planes * 4.
//
// The inner width follows the wide/grouped formulation:
//
//	width = floor(planes * baseWidth / 64) * groups
//
// which reduces to width = planes for the default groups=1, baseWidth=64.
type Bottleneck[B tensor.Backend] struct {
	conv1 *nn.Conv2D[B] // 1x1 reduce
	bn1   *nn.BatchNorm2D[B]
	conv2 *nn.Conv2D[B] // 3x3, stride/groups/dilation live here
	bn2   *nn.BatchNorm2D[B]
	conv3 *nn.Conv2D[B] // 1x1 expand
	bn3   *nn.BatchNorm2D[B]

	downsample *nn.Sequential[B] // nil for identity shortcut
	stride     int
}

// NewBottleneck creates a bottleneck residual block from inPlanes input
// channels to planes * 4 output channels.
func NewBottleneck[B tensor.Backend](
	inPlanes, planes, stride int,
	downsample *nn.Sequential[B],
	groups, baseWidth, dilation int,
	backend B,
) *Bottleneck[B] {
	width := planes * baseWidth / 64 * groups

	return &Bottleneck[B]{
		conv1:      conv1x1(inPlanes, width, 1, backend),
		bn1:        nn.NewBatchNorm2D(width, backend),
		conv2:      conv3x3(width, width, stride, groups, dilation, backend),
		bn2:        nn.NewBatchNorm2D(width, backend),
		conv3:      conv1x1(width, planes*BottleneckExpansion, 1, backend),
		bn3:        nn.NewBatchNorm2D(planes*BottleneckExpansion, backend),
		downsample: downsample,
		stride:     stride,
	}
}

// Forward performs the residual forward pass.
func (b *Bottleneck[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	identity := input

	out := b.bn1.Forward(b.conv1.Forward(input)).ReLU()
	out = b.bn2.Forward(b.conv2.Forward(out)).ReLU()
	out = b.bn3.Forward(b.conv3.Forward(out))

	if b.downsample != nil {
		identity = b.downsample.Forward(input)
	}

	return out.Add(identity).ReLU()
}

// Parameters returns all trainable parameters, including the projection
// shortcut's when present.
func (b *Bottleneck[B]) Parameters() []*nn.Parameter[B] {
	params := append(b.conv1.Parameters(), b.bn1.Parameters()...)
	params = append(params, b.conv2.Parameters()...)
	params = append(params, b.bn2.Parameters()...)
	params = append(params, b.conv3.Parameters()...)
	params = append(params, b.bn3.Parameters()...)
	if b.downsample != nil {
		params = append(params, b.downsample.Parameters()...)
	}
	return params
}

// StateDict returns the block state.
func (b *Bottleneck[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	addPrefixed(stateDict, "conv1", b.conv1)
	addPrefixed(stateDict, "bn1", b.bn1)
	addPrefixed(stateDict, "conv2", b.conv2)
	addPrefixed(stateDict, "bn2", b.bn2)
	addPrefixed(stateDict, "conv3", b.conv3)
	addPrefixed(stateDict, "bn3", b.bn3)
	if b.downsample != nil {
		addPrefixed(stateDict, "downsample", b.downsample)
	}
	return stateDict
}

// LoadStateDict loads the block state.
func (b *Bottleneck[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
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
	if err := loadPrefixed(stateDict, "conv3", b.conv3); err != nil {
		return err
	}
	if err := loadPrefixed(stateDict, "bn3", b.bn3); err != nil {
		return err
	}
	if b.downsample != nil {
		return loadPrefixed(stateDict, "downsample", b.downsample)
	}
	return nil
}

// LastNorm returns the final normalization layer of the residual branch.
// The zero-init-residual pass zeroes its scale so freshly constructed
// bottleneck blocks start as identities.
func (b *Bottleneck[B]) LastNorm() *nn.BatchNorm2D[B] {
	return b.bn3
}

// HasProjection reports whether the shortcut is a projection rather than
// the identity.
func (b *Bottleneck[B]) HasProjection() bool {
	return b.downsample != nil
}

// Stride returns the block's spatial stride.
func (b *Bottleneck[B]) Stride() int {
	return b.stride
}

// Width returns the inner channel width of the 3x3 convolution.
func (b *Bottleneck[B]) Width() int {
	return b.conv2.OutChannels()
}

// String returns a string representation of the block.
func (b *Bottleneck[B]) String() string {
	return fmt.Sprintf("Bottleneck(in=%d, width=%d, out=%d, stride=%d, projection=%v)",
		b.conv1.InChannels(), b.conv2.OutChannels(), b.conv3.OutChannels(), b.stride, b.downsample != nil)
}
