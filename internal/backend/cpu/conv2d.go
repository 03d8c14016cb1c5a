package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/loom-ml/loom/internal/parallel"
	"github.com/loom-ml/loom/internal/tensor"
)

// Conv2D performs 2D convolution using the im2col algorithm.
//
// Input shape:  [N, C_in, H, W]
// Kernel shape: [C_out, C_in/groups, K_h, K_w]
// Output shape: [N, C_out, H_out, W_out]
//
// Where (with dilation d):
//
//	out_h = (H + 2*padding - d*(K_h-1) - 1) / stride + 1
//	out_w = (W + 2*padding - d*(K_w-1) - 1) / stride + 1
//
// Groups partition the channels: group g convolves input channels
// [g*C_in/groups, (g+1)*C_in/groups) with kernels
// [g*C_out/groups, (g+1)*C_out/groups). groups == C_in gives a
// depth-wise convolution.
//
// Algorithm per (batch item, group):
//  1. im2col: gather the input patches into a [H_out*W_out, C_inG*K_h*K_w] matrix
//  2. GEMM (gonum blas32): kernel_g [C_outG, C_inG*K_h*K_w] times the
//     transposed column matrix, written straight into the output planes
//
// The (batch, group) pairs are independent and run on the worker pool.
//
// Reference: "High Performance Convolutional Neural Networks for Document
// Processing" (Chellapilla et al., 2006).
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding, groups, dilation int) *tensor.RawTensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %dD", len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in/groups,K_h,K_w], got %dD", len(kernelShape)))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", stride))
	}
	if padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid padding %d", padding))
	}
	if groups <= 0 {
		panic(fmt.Sprintf("conv2d: invalid groups %d", groups))
	}
	if dilation <= 0 {
		panic(fmt.Sprintf("conv2d: invalid dilation %d", dilation))
	}

	N := inputShape[0]
	CIn := inputShape[1]
	H := inputShape[2]
	W := inputShape[3]
	COut := kernelShape[0]
	KH := kernelShape[2]
	KW := kernelShape[3]

	if CIn%groups != 0 || COut%groups != 0 {
		panic(fmt.Sprintf("conv2d: channels (in=%d, out=%d) not divisible by groups %d", CIn, COut, groups))
	}
	cInG := CIn / groups
	cOutG := COut / groups
	if kernelShape[1] != cInG {
		panic(fmt.Sprintf("conv2d: kernel input channels %d != %d (C_in/groups)", kernelShape[1], cInG))
	}

	// Effective kernel extent grows with dilation.
	effKH := dilation*(KH-1) + 1
	effKW := dilation*(KW-1) + 1
	HOut := (H+2*padding-effKH)/stride + 1
	WOut := (W+2*padding-effKW)/stride + 1

	if HOut <= 0 || WOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding/dilation)", HOut, WOut))
	}

	if input.DType() != tensor.Float32 || kernel.DType() != tensor.Float32 {
		panic(fmt.Sprintf("conv2d: unsupported dtype %s (only float32)", input.DType()))
	}

	output, err := tensor.NewRaw(tensor.Shape{N, COut, HOut, WOut}, input.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("conv2d: failed to create output tensor: %v", err))
	}

	inputData := input.AsFloat32()
	kernelData := kernel.AsFloat32()
	outputData := output.AsFloat32()

	colWidth := cInG * KH * KW
	colHeight := HOut * WOut
	planeOut := HOut * WOut

	parallel.ForBatch(N, groups, func(n, g int) {
		// im2col for this batch item's group channels.
		colBuf := make([]float32, colHeight*colWidth)
		chanOffset := (n*CIn + g*cInG) * H * W
		im2col(colBuf, inputData[chanOffset:chanOffset+cInG*H*W],
			cInG, H, W, KH, KW, HOut, WOut, stride, padding, dilation)

		// kernel_g [cOutG, colWidth] @ colBuf^T [colWidth, colHeight]
		// -> output planes [cOutG, colHeight], already in NCHW order.
		kMat := blas32.General{
			Rows: cOutG, Cols: colWidth, Stride: colWidth,
			Data: kernelData[g*cOutG*colWidth : (g+1)*cOutG*colWidth],
		}
		colMat := blas32.General{
			Rows: colHeight, Cols: colWidth, Stride: colWidth,
			Data: colBuf,
		}
		outOffset := (n*COut + g*cOutG) * planeOut
		outMat := blas32.General{
			Rows: cOutG, Cols: colHeight, Stride: colHeight,
			Data: outputData[outOffset : outOffset+cOutG*planeOut],
		}
		blas32.Gemm(blas.NoTrans, blas.Trans, 1, kMat, colMat, 0, outMat)
	}, cpu.parallel)

	return output
}

// im2col gathers input patches into a column matrix.
//
// channelData holds C channel planes of size H*W.
// colBuf is laid out [H_out * W_out, C * K_h * K_w]: one row per output
// position, one column per kernel weight. Out-of-bounds taps (padding)
// stay zero.
func im2col(colBuf, channelData []float32, C, H, W, KH, KW, HOut, WOut, stride, padding, dilation int) {
	colWidth := C * KH * KW
	colIdx := 0

	for outH := 0; outH < HOut; outH++ {
		hStart := outH*stride - padding

		for outW := 0; outW < WOut; outW++ {
			wStart := outW*stride - padding
			bufIdx := colIdx * colWidth

			for c := 0; c < C; c++ {
				plane := channelData[c*H*W : (c+1)*H*W]
				for kh := 0; kh < KH; kh++ {
					h := hStart + kh*dilation
					if h < 0 || h >= H {
						bufIdx += KW // whole kernel row out of bounds, stays zero
						continue
					}
					row := plane[h*W : (h+1)*W]
					for kw := 0; kw < KW; kw++ {
						w := wStart + kw*dilation
						if w >= 0 && w < W {
							colBuf[bufIdx] = row[w]
						}
						bufIdx++
					}
				}
			}

			colIdx++
		}
	}
}
