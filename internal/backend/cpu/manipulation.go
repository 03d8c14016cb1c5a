package cpu

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// Cat concatenates tensors along the specified dimension.
//
// All tensors must share dtype and agree on every dimension except the
// concatenation dimension. Supports negative dim indexing.
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: at least one tensor required")
	}

	shape := tensors[0].Shape()
	ndim := len(shape)
	dtype := tensors[0].DType()

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("cat: dimension %d out of range for %dD tensor", dim, ndim))
	}

	totalDim := 0
	for i, t := range tensors {
		tShape := t.Shape()
		if len(tShape) != ndim {
			panic(fmt.Sprintf("cat: tensor %d has %d dimensions, expected %d", i, len(tShape), ndim))
		}
		if t.DType() != dtype {
			panic(fmt.Sprintf("cat: tensor %d has dtype %s, expected %s", i, t.DType(), dtype))
		}
		for d := 0; d < ndim; d++ {
			if d == dim {
				totalDim += tShape[d]
			} else if tShape[d] != shape[d] {
				panic(fmt.Sprintf("cat: tensor %d dimension %d is %d, expected %d", i, d, tShape[d], shape[d]))
			}
		}
	}

	outShape := shape.Clone()
	outShape[dim] = totalDim

	result, err := tensor.NewRaw(outShape, dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("cat: %v", err))
	}

	// Copy row blocks: each source contributes rows of rowBytes bytes at
	// a fixed offset within every outer slice of the output.
	elemSize := dtype.Size()
	outer := 1
	for d := 0; d < dim; d++ {
		outer *= shape[d]
	}
	inner := elemSize
	for d := dim + 1; d < ndim; d++ {
		inner *= shape[d]
	}

	outData := result.Data()
	outRowBytes := totalDim * inner
	rowOffset := 0

	for _, t := range tensors {
		srcData := t.Data()
		srcRowBytes := t.Shape()[dim] * inner
		for o := 0; o < outer; o++ {
			src := srcData[o*srcRowBytes : (o+1)*srcRowBytes]
			dst := outData[o*outRowBytes+rowOffset:]
			copy(dst, src)
		}
		rowOffset += srcRowBytes
	}

	return result
}

// Narrow copies out the contiguous slice [start, start+length) along dim.
// Supports negative dim indexing.
func (cpu *CPUBackend) Narrow(x *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("narrow: dimension %d out of range for %dD tensor", dim, ndim))
	}
	if start < 0 || length <= 0 || start+length > shape[dim] {
		panic(fmt.Sprintf("narrow: range [%d, %d) out of bounds for dimension %d (size %d)",
			start, start+length, dim, shape[dim]))
	}

	outShape := shape.Clone()
	outShape[dim] = length

	result, err := tensor.NewRaw(outShape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("narrow: %v", err))
	}

	elemSize := x.DType().Size()
	outer := 1
	for d := 0; d < dim; d++ {
		outer *= shape[d]
	}
	inner := elemSize
	for d := dim + 1; d < ndim; d++ {
		inner *= shape[d]
	}

	srcData := x.Data()
	outData := result.Data()
	srcRowBytes := shape[dim] * inner
	dstRowBytes := length * inner

	for o := 0; o < outer; o++ {
		src := srcData[o*srcRowBytes+start*inner : o*srcRowBytes+(start+length)*inner]
		copy(outData[o*dstRowBytes:], src)
	}

	return result
}
