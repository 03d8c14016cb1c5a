package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// Implementations:
//   - backend/cpu: pure Go loops with BLAS-backed contractions
//
// The interface is the seam where an accelerator backend would plug in;
// construction code never talks to a backend directly, only through the
// layers in internal/nn.
type Backend interface {
	// Element-wise binary operations (NumPy-style broadcasting).
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// AddScalar adds a scalar to every element.
	AddScalar(x *RawTensor, scalar any) *RawTensor

	// Matrix operations. (M, K) @ (K, N) -> (M, N).
	MatMul(a, b *RawTensor) *RawTensor

	// Convolutional operations.
	//
	// Conv2D expects input [N, C_in, H, W] and kernel
	// [C_out, C_in/groups, K_h, K_w]. Dilation inflates the effective
	// kernel extent to dilation*(K-1)+1 without touching the weight count.
	Conv2D(input, kernel *RawTensor, stride, padding, groups, dilation int) *RawTensor

	// MaxPool2D pools [N, C, H, W] with an implicit -inf border of the
	// given padding.
	MaxPool2D(input *RawTensor, kernelSize, stride, padding int) *RawTensor

	// Shape operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// Math operations (element-wise).
	Rsqrt(x *RawTensor) *RawTensor // reciprocal square root (1/sqrt(x))

	// Activation functions.
	ReLU(x *RawTensor) *RawTensor

	// Reduction operations.
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor  // sum along dimension
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor // mean along dimension

	// Manipulation operations.
	Cat(tensors []*RawTensor, dim int) *RawTensor      // concatenate along dimension
	Narrow(x *RawTensor, dim, start, length int) *RawTensor // contiguous slice along dimension

	// Metadata.
	Name() string
	Device() Device
}
