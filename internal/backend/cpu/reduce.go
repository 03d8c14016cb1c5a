package cpu

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// SumDim sums tensor elements along the specified dimension.
//
// Parameters:
//   - dim: dimension to reduce (supports negative indexing: -1 = last dim)
//   - keepDim: if true, keep the reduced dimension with size 1; if false, remove it
//
// Example:
//
//	x := tensor.Randn[float32](Shape{2, 3, 4}, backend)
//	y := backend.SumDim(x.Raw(), -1, true)  // shape: [2, 3, 1]
//	z := backend.SumDim(x.Raw(), -1, false) // shape: [2, 3]
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	result, _ := cpu.sumDim(x, dim, keepDim)
	return result
}

// MeanDim averages tensor elements along the specified dimension.
// Same dimension handling as SumDim.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	result, n := cpu.sumDim(x, dim, keepDim)

	inv := 1.0 / float64(n)
	switch result.DType() {
	case tensor.Float32:
		data := result.AsFloat32()
		for i := range data {
			data[i] = float32(float64(data[i]) * inv)
		}
	case tensor.Float64:
		data := result.AsFloat64()
		for i := range data {
			data[i] *= inv
		}
	}

	return result
}

// sumDim reduces along dim and reports the reduced dimension's size.
func (cpu *CPUBackend) sumDim(x *tensor.RawTensor, dim int, keepDim bool) (*tensor.RawTensor, int) {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("sumdim: dimension %d out of range for %dD tensor", dim, ndim))
	}

	var outShape tensor.Shape
	if keepDim {
		outShape = shape.Clone()
		outShape[dim] = 1
	} else {
		outShape = make(tensor.Shape, 0, ndim-1)
		for i := 0; i < ndim; i++ {
			if i != dim {
				outShape = append(outShape, shape[i])
			}
		}
	}

	result, err := tensor.NewRaw(outShape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("sumdim: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		sumDimKernel(x.AsFloat32(), result.AsFloat32(), shape, dim)
	case tensor.Float64:
		sumDimKernel(x.AsFloat64(), result.AsFloat64(), shape, dim)
	default:
		panic(fmt.Sprintf("sumdim: unsupported dtype %s", x.DType()))
	}

	return result, shape[dim]
}

// sumDimKernel views the input as [outer, reduce, inner] and folds the
// middle dimension into the output.
func sumDimKernel[T tensor.DType](in, out []T, shape tensor.Shape, dim int) {
	outer := 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	reduce := shape[dim]
	inner := 1
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}

	for o := 0; o < outer; o++ {
		base := o * reduce * inner
		outBase := o * inner
		for r := 0; r < reduce; r++ {
			rowBase := base + r*inner
			for i := 0; i < inner; i++ {
				out[outBase+i] += in[rowBase+i]
			}
		}
	}
}
