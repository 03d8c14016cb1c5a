package resnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loom-ml/loom/internal/backend/cpu"
	"github.com/loom-ml/loom/internal/tensor"
)

func TestConvNormPreservesSpatialSize(t *testing.T) {
	backend := cpu.New()

	// Odd kernel, stride 1: padding = dilation*(k/2) keeps H and W.
	cn := NewConvNorm(3, 8, 3, 1, 1, 1, true, backend)

	input := tensor.Zeros[float32](tensor.Shape{1, 3, 14, 14}, backend)
	output := cn.Forward(input)

	assert.True(t, output.Shape().Equal(tensor.Shape{1, 8, 14, 14}),
		"expected [1 8 14 14], got %v", output.Shape())
}

func TestConvNormDilatedPreservesSpatialSize(t *testing.T) {
	backend := cpu.New()

	cn := NewConvNorm(4, 4, 3, 1, 1, 2, false, backend)

	input := tensor.Zeros[float32](tensor.Shape{1, 4, 14, 14}, backend)
	output := cn.Forward(input)

	assert.True(t, output.Shape().Equal(tensor.Shape{1, 4, 14, 14}),
		"expected [1 4 14 14], got %v", output.Shape())
}

func TestConvNormStrideHalvesSpatialSize(t *testing.T) {
	backend := cpu.New()

	cn := NewConvNorm(4, 8, 3, 2, 1, 1, true, backend)

	input := tensor.Zeros[float32](tensor.Shape{1, 4, 14, 14}, backend)
	output := cn.Forward(input)

	assert.True(t, output.Shape().Equal(tensor.Shape{1, 8, 7, 7}),
		"expected [1 8 7 7], got %v", output.Shape())
}

func TestConvNormReLUToggle(t *testing.T) {
	backend := cpu.New()

	withoutReLU := NewConvNorm(1, 1, 1, 1, 1, 1, false, backend)
	withoutReLU.conv.Weight().Tensor().Data()[0] = -1

	input, err := tensor.FromSlice([]float32{1, 2}, tensor.Shape{1, 1, 1, 2}, backend)
	require.NoError(t, err)

	// Without ReLU negative values pass through.
	out := withoutReLU.Forward(input)
	assert.Less(t, out.Data()[0], float32(0))

	withReLU := NewConvNorm(1, 1, 1, 1, 1, 1, true, backend)
	withReLU.conv.Weight().Tensor().Data()[0] = -1

	out = withReLU.Forward(input)
	for i, v := range out.Data() {
		assert.GreaterOrEqual(t, v, float32(0), "output[%d]", i)
	}
}

func TestConvNormStateDict(t *testing.T) {
	backend := cpu.New()

	cn := NewConvNorm(2, 4, 3, 1, 1, 1, true, backend)
	stateDict := cn.StateDict()

	for _, key := range []string{"conv.weight", "bn.weight", "bn.bias", "bn.running_mean", "bn.running_var"} {
		assert.Contains(t, stateDict, key)
	}
	// Convolutions inside ConvNorm never carry a bias.
	assert.NotContains(t, stateDict, "conv.bias")
	assert.Len(t, stateDict, 5)
}

func TestConvNormLoadStateDictRoundTrip(t *testing.T) {
	backend := cpu.New()

	src := NewConvNorm(2, 4, 3, 1, 1, 1, true, backend)
	src.bn.Weight().Tensor().Data()[0] = 7

	dst := NewConvNorm(2, 4, 3, 1, 1, 1, true, backend)
	require.NoError(t, dst.LoadStateDict(src.StateDict()))

	assert.Equal(t, float32(7), dst.bn.Weight().Tensor().Data()[0])
}
