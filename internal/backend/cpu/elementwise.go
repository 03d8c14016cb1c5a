package cpu

import (
	"fmt"

	"github.com/loom-ml/loom/internal/tensor"
)

// binaryOp applies op element-wise over two tensors with NumPy-style
// broadcasting. The operands must share a dtype.
func (cpu *CPUBackend) binaryOp(name string, a, b *tensor.RawTensor, op func(x, y float64) float64) *tensor.RawTensor {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", name, a.DType(), b.DType()))
	}

	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	result, err := tensor.NewRaw(outShape, a.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}

	switch a.DType() {
	case tensor.Float32:
		if needsBroadcast {
			binaryBroadcast(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape, op)
		} else {
			binarySameShape(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), op)
		}
	case tensor.Float64:
		if needsBroadcast {
			binaryBroadcast(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), a.Shape(), b.Shape(), outShape, op)
		} else {
			binarySameShape(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), op)
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, a.DType()))
	}

	return result
}

// unaryOp applies op element-wise over a single tensor.
func (cpu *CPUBackend) unaryOp(name string, x *tensor.RawTensor, op func(v float64) float64) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}

	switch x.DType() {
	case tensor.Float32:
		in, out := x.AsFloat32(), result.AsFloat32()
		for i, v := range in {
			out[i] = float32(op(float64(v)))
		}
	case tensor.Float64:
		in, out := x.AsFloat64(), result.AsFloat64()
		for i, v := range in {
			out[i] = op(v)
		}
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}

	return result
}

// binarySameShape is the fast path for operands of identical shape.
func binarySameShape[T tensor.DType](out, a, b []T, op func(x, y float64) float64) {
	for i := range out {
		out[i] = T(op(float64(a[i]), float64(b[i])))
	}
}

// binaryBroadcast walks the output index space, mapping each output
// position back into the (possibly size-1) source dimensions.
func binaryBroadcast[T tensor.DType](out, a, b []T, aShape, bShape, outShape tensor.Shape, op func(x, y float64) float64) {
	aStrides := broadcastStrides(aShape, outShape)
	bStrides := broadcastStrides(bShape, outShape)

	ndim := len(outShape)
	idx := make([]int, ndim)

	for i := range out {
		aOff, bOff := 0, 0
		for d := 0; d < ndim; d++ {
			aOff += idx[d] * aStrides[d]
			bOff += idx[d] * bStrides[d]
		}
		out[i] = T(op(float64(a[aOff]), float64(b[bOff])))

		// Advance the multi-index, rightmost dimension fastest.
		for d := ndim - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < outShape[d] {
				break
			}
			idx[d] = 0
		}
	}
}

// broadcastStrides aligns a source shape to the output shape, returning
// per-output-dimension strides into the source buffer. Dimensions the
// source broadcasts over (size 1 or missing) get stride 0.
func broadcastStrides(src, out tensor.Shape) []int {
	srcStrides := src.ComputeStrides()
	strides := make([]int, len(out))
	offset := len(out) - len(src)

	for d := range out {
		s := d - offset
		if s < 0 || src[s] == 1 {
			strides[d] = 0
		} else {
			strides[d] = srcStrides[s]
		}
	}
	return strides
}
