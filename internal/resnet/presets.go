package resnet

import "github.com/loom-ml/loom/internal/tensor"

// The five classic depth presets. Each accepts a class count; values <= 0
// keep the default 1000. A non-default class count rebuilds only the
// head — stem and stages are identical to the default network.

func preset[B tensor.Backend](kind BlockKind, layers [4]int, numClasses int, backend B) *ResNet[B] {
	net := New(Config{Block: kind, Layers: layers}, backend)
	if numClasses > 0 && numClasses != DefaultNumClasses {
		net.ReplaceHead(numClasses)
	}
	return net
}

// ResNet18 builds the [2,2,2,2] basic-block network.
func ResNet18[B tensor.Backend](numClasses int, backend B) *ResNet[B] {
	return preset(BasicKind, [4]int{2, 2, 2, 2}, numClasses, backend)
}

// ResNet34 builds the [3,4,6,3] basic-block network.
func ResNet34[B tensor.Backend](numClasses int, backend B) *ResNet[B] {
	return preset(BasicKind, [4]int{3, 4, 6, 3}, numClasses, backend)
}

// ResNet50 builds the [3,4,6,3] bottleneck network.
func ResNet50[B tensor.Backend](numClasses int, backend B) *ResNet[B] {
	return preset(BottleneckKind, [4]int{3, 4, 6, 3}, numClasses, backend)
}

// ResNet101 builds the [3,4,23,3] bottleneck network.
func ResNet101[B tensor.Backend](numClasses int, backend B) *ResNet[B] {
	return preset(BottleneckKind, [4]int{3, 4, 23, 3}, numClasses, backend)
}

// ResNet152 builds the [3,8,36,3] bottleneck network.
func ResNet152[B tensor.Backend](numClasses int, backend B) *ResNet[B] {
	return preset(BottleneckKind, [4]int{3, 8, 36, 3}, numClasses, backend)
}
