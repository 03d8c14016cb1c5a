package cpu

import (
	"fmt"
	"math"

	"github.com/loom-ml/loom/internal/parallel"
	"github.com/loom-ml/loom/internal/tensor"
)

// MaxPool2D performs 2D max pooling with an implicit -inf border.
//
// Input shape:  [N, C, H, W]
// Output shape: [N, C, H_out, W_out]
//
// Where:
//
//	out_h = (H + 2*padding - kernelSize) / stride + 1
//	out_w = (W + 2*padding - kernelSize) / stride + 1
//
// Padding positions never win the max, so windows are simply clipped to
// the valid input region.
func (cpu *CPUBackend) MaxPool2D(input *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("maxpool2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}

	N := inputShape[0]
	C := inputShape[1]
	H := inputShape[2]
	W := inputShape[3]

	if kernelSize <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid stride %d", stride))
	}
	if padding < 0 || padding > kernelSize/2 {
		panic(fmt.Sprintf("maxpool2d: invalid padding %d for kernel %d", padding, kernelSize))
	}

	HOut := (H+2*padding-kernelSize)/stride + 1
	WOut := (W+2*padding-kernelSize)/stride + 1

	if HOut <= 0 || WOut <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid output dimensions %dx%d (kernel=%d, stride=%d, padding=%d, input=%dx%d)",
			HOut, WOut, kernelSize, stride, padding, H, W))
	}

	if input.DType() != tensor.Float32 {
		panic(fmt.Sprintf("maxpool2d: unsupported dtype %s (only float32)", input.DType()))
	}

	output, err := tensor.NewRaw(tensor.Shape{N, C, HOut, WOut}, input.DType(), cpu.Device())
	if err != nil {
		panic(fmt.Sprintf("maxpool2d: failed to create output: %v", err))
	}

	inputData := input.AsFloat32()
	outputData := output.AsFloat32()

	parallel.ForBatch(N, C, func(n, c int) {
		channelOffset := (n*C + c) * H * W
		channelData := inputData[channelOffset : channelOffset+H*W]
		outOffset := (n*C + c) * HOut * WOut

		for outH := 0; outH < HOut; outH++ {
			hStart := outH*stride - padding

			for outW := 0; outW < WOut; outW++ {
				wStart := outW*stride - padding
				maxVal := float32(math.Inf(-1))

				for kh := 0; kh < kernelSize; kh++ {
					h := hStart + kh
					if h < 0 || h >= H {
						continue
					}
					row := channelData[h*W : (h+1)*W]
					for kw := 0; kw < kernelSize; kw++ {
						w := wStart + kw
						if w < 0 || w >= W {
							continue
						}
						if row[w] > maxVal {
							maxVal = row[w]
						}
					}
				}

				outputData[outOffset+outH*WOut+outW] = maxVal
			}
		}
	}, cpu.parallel)

	return output
}
