package cpu

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// Reshape returns a view over the same buffer with a new shape.
// The new shape must describe the same number of elements.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	result, err := t.WithShape(newShape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return result
}

// Transpose permutes the tensor's dimensions, copying into a contiguous
// result. Empty axes reverses all dimensions (standard transpose for 2D).
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: expected %d axes, got %d", ndim, len(axes)))
	}

	seen := make([]bool, ndim)
	outShape := make(tensor.Shape, ndim)
	for i, a := range axes {
		if a < 0 || a >= ndim || seen[a] {
			panic(fmt.Sprintf("transpose: invalid axes permutation %v", axes))
		}
		seen[a] = true
		outShape[i] = shape[a]
	}

	result, err := tensor.NewRaw(outShape, t.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("transpose: %v", err))
	}

	switch t.DType() {
	case tensor.Float32:
		transposeKernel(t.AsFloat32(), result.AsFloat32(), shape, outShape, axes)
	case tensor.Float64:
		transposeKernel(t.AsFloat64(), result.AsFloat64(), shape, outShape, axes)
	default:
		panic(fmt.Sprintf("transpose: unsupported dtype %s", t.DType()))
	}

	return result
}

// transposeKernel walks the output index space and gathers from the
// permuted source positions.
func transposeKernel[T tensor.DType](in, out []T, inShape, outShape tensor.Shape, axes []int) {
	inStrides := inShape.ComputeStrides()
	ndim := len(outShape)
	idx := make([]int, ndim)

	for i := range out {
		srcOff := 0
		for d := 0; d < ndim; d++ {
			srcOff += idx[d] * inStrides[axes[d]]
		}
		out[i] = in[srcOff]

		for d := ndim - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < outShape[d] {
				break
			}
			idx[d] = 0
		}
	}
}
