package resnet

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loom-ml/loom/internal/backend/cpu"
	"github.com/loom-ml/loom/internal/tensor"
)

func TestPresetDepths(t *testing.T) {
	backend := cpu.New()

	cases := []struct {
		name   string
		build  func() *ResNet[*cpu.CPUBackend]
		block  BlockKind
		layers [4]int
	}{
		{"resnet18", func() *ResNet[*cpu.CPUBackend] { return ResNet18(0, backend) }, BasicKind, [4]int{2, 2, 2, 2}},
		{"resnet34", func() *ResNet[*cpu.CPUBackend] { return ResNet34(0, backend) }, BasicKind, [4]int{3, 4, 6, 3}},
		{"resnet50", func() *ResNet[*cpu.CPUBackend] { return ResNet50(0, backend) }, BottleneckKind, [4]int{3, 4, 6, 3}},
		{"resnet101", func() *ResNet[*cpu.CPUBackend] { return ResNet101(0, backend) }, BottleneckKind, [4]int{3, 4, 23, 3}},
		{"resnet152", func() *ResNet[*cpu.CPUBackend] { return ResNet152(0, backend) }, BottleneckKind, [4]int{3, 8, 36, 3}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			net := tc.build()
			cfg := net.Config()

			assert.Equal(t, tc.block, cfg.Block)
			assert.Equal(t, tc.layers, cfg.Layers)
			assert.Equal(t, 1000, net.NumClasses())
			assert.Equal(t, 512*tc.block.Expansion(), net.Head().InFeatures())
		})
	}
}

// TestPresetParameterCounts pins the trainable parameter totals to the
// reference values for the 1000-class networks.
func TestPresetParameterCounts(t *testing.T) {
	backend := cpu.New()

	assert.Equal(t, 11_689_512, countElements(ResNet18(0, backend).Parameters()))
	assert.Equal(t, 25_557_032, countElements(ResNet50(0, backend).Parameters()))
}

// TestPresetCustomHead checks a non-default class count rebuilds only the
// head.
func TestPresetCustomHead(t *testing.T) {
	backend := cpu.New()

	reference := ResNet18(0, backend)
	custom := ResNet18(10, backend)

	assert.Equal(t, 10, custom.NumClasses())
	assert.Equal(t, 512, custom.Head().InFeatures())
	assert.Equal(t,
		countElements(reference.backboneParameters()),
		countElements(custom.backboneParameters()),
		"backbones must match")
}

// TestPresetCustomHeadBottleneck checks the same for the wider bottleneck
// head: 2048 in, 10 out, backbone untouched.
func TestPresetCustomHeadBottleneck(t *testing.T) {
	backend := cpu.New()

	reference := ResNet50(0, backend)
	custom := ResNet50(10, backend)

	assert.Equal(t, 10, custom.NumClasses())
	assert.Equal(t, 2048, custom.Head().InFeatures())
	assert.Equal(t,
		countElements(reference.backboneParameters()),
		countElements(custom.backboneParameters()),
		"backbones must match")
}

// TestResNet18EndToEnd runs the shallowest preset over a full-size zero
// input and checks shape and finiteness.
func TestResNet18EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("full-size forward pass")
	}
	backend := cpu.New()

	net := ResNet18(0, backend)

	input := tensor.Zeros[float32](tensor.Shape{1, 3, 224, 224}, backend)
	output := net.Forward(input)

	require.True(t, output.Shape().Equal(tensor.Shape{1, 1000}),
		"expected [1 1000], got %v", output.Shape())

	for i, v := range output.Data() {
		assert.False(t, math.IsNaN(float64(v)) || math.IsInf(float64(v), 0),
			"output[%d] = %v", i, v)
	}
}

// TestPresetStateDictParity checks a custom-head preset shares the
// backbone key set with the default network, differing only in head
// shapes.
func TestPresetStateDictParity(t *testing.T) {
	backend := cpu.New()

	reference := ResNet18(0, backend).StateDict()
	custom := ResNet18(10, backend).StateDict()

	assert.Equal(t, len(reference), len(custom))
	for key := range reference {
		assert.Contains(t, custom, key)
	}
}
