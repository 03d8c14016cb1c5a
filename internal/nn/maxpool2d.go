package nn

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// MaxPool2D applies 2D max pooling over square windows.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_h, out_w]
//
// Where:
//
//	out_h = (height + 2*padding - kernel_size) / stride + 1
//	out_w = (width  + 2*padding - kernel_size) / stride + 1
//
// Padded positions never win the max; windows are clipped to the valid
// input region.
type MaxPool2D[B tensor.Backend] struct {
	kernelSize int
	stride     int
	padding    int

	backend B
}

// NewMaxPool2D creates a new max pooling layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride, padding int, backend B) *MaxPool2D[B] {
	if kernelSize <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid stride %d", stride))
	}
	if padding < 0 || padding > kernelSize/2 {
		panic(fmt.Sprintf("maxpool2d: invalid padding %d for kernel size %d", padding, kernelSize))
	}

	return &MaxPool2D[B]{
		kernelSize: kernelSize,
		stride:     stride,
		padding:    padding,
		backend:    backend,
	}
}

// Forward performs the forward pass.
func (m *MaxPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	outputRaw := m.backend.MaxPool2D(input.Raw(), m.kernelSize, m.stride, m.padding)
	return tensor.New[float32, B](outputRaw, m.backend)
}

// Parameters returns an empty slice; pooling has no trainable parameters.
func (m *MaxPool2D[B]) Parameters() []*Parameter[B] {
	return nil
}

// StateDict returns an empty map; pooling carries no state.
func (m *MaxPool2D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op; pooling carries no state.
func (m *MaxPool2D[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return nil
}

// String returns a string representation of the layer.
func (m *MaxPool2D[B]) String() string {
	return fmt.Sprintf("MaxPool2D(kernel_size=%d, stride=%d, padding=%d)", m.kernelSize, m.stride, m.padding)
}
