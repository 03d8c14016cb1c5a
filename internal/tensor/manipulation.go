package tensor

// Cat concatenates tensors along the specified dimension.
//
// All tensors must have the same shape except along the concatenation dimension.
// Supports negative dim indexing (-1 = last dimension).
//
// Example:
//
//	a := tensor.Randn[float32](Shape{2, 3, 8, 8}, backend)
//	b := tensor.Randn[float32](Shape{2, 5, 8, 8}, backend)
//	c := tensor.Cat([]*Tensor[float32, B]{a, b}, 1) // Shape: [2, 8, 8, 8]
func Cat[T DType, B Backend](tensors []*Tensor[T, B], dim int) *Tensor[T, B] {
	if len(tensors) == 0 {
		panic("cat: at least one tensor required")
	}

	if len(tensors) == 1 {
		return tensors[0].Clone()
	}

	rawTensors := make([]*RawTensor, len(tensors))
	backend := tensors[0].backend
	for i, t := range tensors {
		rawTensors[i] = t.raw
	}

	result := backend.Cat(rawTensors, dim)
	return New[T, B](result, backend)
}

// Narrow returns a contiguous slice of the tensor along the given dimension:
// elements [start, start+length) of dim are kept, everything else copied as-is.
//
// Example:
//
//	x := tensor.Randn[float32](Shape{2, 8, 4, 4}, backend)
//	y := x.Narrow(1, 0, 5) // Shape: [2, 5, 4, 4]
func (t *Tensor[T, B]) Narrow(dim, start, length int) *Tensor[T, B] {
	result := t.backend.Narrow(t.raw, dim, start, length)
	return New[T, B](result, t.backend)
}
