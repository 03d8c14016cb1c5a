package nn

import (
	"math"
	"math/rand"

	"github.com/loom-ml/loom/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
//
// This initialization helps maintain variance of activations across layers.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

	t := tensor.Zeros[float32](shape, backend)
	data := t.Data()
	for i := range data {
		//nolint:gosec // Using math/rand for weight initialization (not security-critical)
		data[i] = float32((rand.Float64()*2.0 - 1.0) * bound)
	}

	return t
}

// KaimingNormal fills a tensor with values from N(0, sqrt(2/fan)) — the
// variance-scaling initialization tuned for rectifier activations
// (He et al., 2015). Convolution weights use fan-out mode: for a kernel
// of shape [out_channels, in_channels/groups, k, k], fan = out_channels*k*k,
// which preserves the variance of gradients through the layer.
func KaimingNormal[B tensor.Backend](t *tensor.Tensor[float32, B], fan int) {
	std := math.Sqrt(2.0 / float64(fan))

	data := t.Data()
	for i := range data {
		//nolint:gosec // Using math/rand for weight initialization (not security-critical)
		data[i] = float32(rand.NormFloat64() * std)
	}
}

// Constant fills a tensor with a fixed value. Used for normalization
// scale/bias initialization and the zero-init-residual override.
func Constant[B tensor.Backend](t *tensor.Tensor[float32, B], value float32) {
	data := t.Data()
	for i := range data {
		data[i] = value
	}
}

// Zeros creates a tensor filled with zeros.
// This is commonly used for bias initialization.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}

// Ones creates a tensor filled with ones.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Ones[float32](shape, backend)
}
