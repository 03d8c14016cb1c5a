package resnet

import (
	"fmt"

	"github.com/loom-ml/loom/internal/nn"
	"github.com/loom-ml/loom/internal/tensor"
)

// BlockKind selects the residual block variant a network is built from.
// The set is closed: the stage builder dispatches on it exhaustively.
type BlockKind int

const (
	// BasicKind builds two-layer blocks (expansion 1).
	BasicKind BlockKind = iota
	// BottleneckKind builds three-layer blocks (expansion 4).
	BottleneckKind
)

// Expansion returns the block variant's output-width multiplier.
func (k BlockKind) Expansion() int {
	switch k {
	case BasicKind:
		return BasicExpansion
	case BottleneckKind:
		return BottleneckExpansion
	default:
		panic(fmt.Sprintf("resnet: unknown block kind %d", int(k)))
	}
}

// String returns the block kind name.
func (k BlockKind) String() string {
	switch k {
	case BasicKind:
		return "basic"
	case BottleneckKind:
		return "bottleneck"
	default:
		return fmt.Sprintf("BlockKind(%d)", int(k))
	}
}

// Defaults for optional configuration fields.
const (
	DefaultNumClasses = 1000
	DefaultBaseWidth  = 64
)

// stagePlanes are the nominal widths of the four stages; the true output
// channel count of stage i is stagePlanes[i] * expansion.
var stagePlanes = [4]int{64, 128, 256, 512}

// Config describes a residual network. It is consumed once at
// construction time and never mutated afterwards.
type Config struct {
	// Block selects the residual block variant.
	Block BlockKind

	// Layers is the number of blocks in each of the four stages.
	Layers [4]int

	// NumClasses is the classifier head width. Zero means 1000.
	NumClasses int

	// Groups is the 3x3 convolution group count (bottleneck only).
	// Zero means 1.
	Groups int

	// WidthPerGroup is the base inner width per group (bottleneck only).
	// Zero means 64.
	WidthPerGroup int

	// ReplaceStrideWithDilation requests dilation substitution for
	// stages 2-4: the stage keeps its input resolution and grows its
	// receptive field by dilation instead of striding. Nil means all
	// false; otherwise it must have exactly 3 entries.
	ReplaceStrideWithDilation []bool

	// ZeroInitResidual zeroes the last normalization scale of every
	// bottleneck block so each residual branch starts as an identity.
	ZeroInitResidual bool
}

// withDefaults fills in zero-valued optional fields.
func (c Config) withDefaults() Config {
	if c.NumClasses == 0 {
		c.NumClasses = DefaultNumClasses
	}
	if c.Groups == 0 {
		c.Groups = 1
	}
	if c.WidthPerGroup == 0 {
		c.WidthPerGroup = DefaultBaseWidth
	}
	if c.ReplaceStrideWithDilation == nil {
		c.ReplaceStrideWithDilation = []bool{false, false, false}
	}
	return c
}

// validate panics on malformed configuration.
func (c Config) validate() {
	if c.Block != BasicKind && c.Block != BottleneckKind {
		panic(fmt.Sprintf("resnet: unknown block kind %d", int(c.Block)))
	}
	for i, n := range c.Layers {
		if n <= 0 {
			panic(fmt.Sprintf("resnet: stage %d repeat count must be positive, got %d", i+1, n))
		}
	}
	if c.NumClasses <= 0 {
		panic(fmt.Sprintf("resnet: invalid num_classes %d", c.NumClasses))
	}
	if c.Groups <= 0 {
		panic(fmt.Sprintf("resnet: invalid groups %d", c.Groups))
	}
	if c.WidthPerGroup <= 0 {
		panic(fmt.Sprintf("resnet: invalid width_per_group %d", c.WidthPerGroup))
	}
	if len(c.ReplaceStrideWithDilation) != 3 {
		panic(fmt.Sprintf("resnet: replace_stride_with_dilation should be nil or a 3-element slice, got %d elements", len(c.ReplaceStrideWithDilation)))
	}
}

// ResNet is the assembled classifier: a 7x7 stride-2 stem with 3x3
// stride-2 max pooling, four residual stages, global average pooling,
// and a linear head.
//
// The topology is fixed at construction; only ReplaceHead swaps a
// component (the head, never the backbone) afterwards.
type ResNet[B tensor.Backend] struct {
	config Config

	conv1   *nn.Conv2D[B]
	bn1     *nn.BatchNorm2D[B]
	relu    *nn.ReLU[B]
	maxpool *nn.MaxPool2D[B]

	layer1 *nn.Sequential[B]
	layer2 *nn.Sequential[B]
	layer3 *nn.Sequential[B]
	layer4 *nn.Sequential[B]

	avgpool *nn.GlobalAvgPool2D[B]
	fc      *nn.Linear[B]

	// Trainability snapshot taken by FreezeBackbone, consumed by
	// UnfreezeBackbone. Nil while unfrozen.
	frozenState []bool

	backend B
}

// stageBuilder threads the running input-width and dilation accumulators
// through stage construction. It exists only during assembly.
type stageBuilder[B tensor.Backend] struct {
	kind      BlockKind
	groups    int
	baseWidth int

	inPlanes int
	dilation int

	backend B
}

// newBlock constructs one block of the builder's kind.
func (sb *stageBuilder[B]) newBlock(inPlanes, planes, stride int, downsample *nn.Sequential[B], dilation int) nn.Module[B] {
	switch sb.kind {
	case BasicKind:
		return NewBasicBlock(inPlanes, planes, stride, downsample, sb.groups, sb.baseWidth, dilation, sb.backend)
	case BottleneckKind:
		return NewBottleneck(inPlanes, planes, stride, downsample, sb.groups, sb.baseWidth, dilation, sb.backend)
	default:
		panic(fmt.Sprintf("resnet: unknown block kind %d", int(sb.kind)))
	}
}

// buildStage produces one stage: the first block may downsample and
// project, the remaining blocks preserve resolution and width.
//
// When dilate is set, the stage's stride is substituted by an equal
// increase of the running dilation, so the stage keeps its input
// resolution.
func (sb *stageBuilder[B]) buildStage(planes, blocks, stride int, dilate bool) *nn.Sequential[B] {
	expansion := sb.kind.Expansion()

	previousDilation := sb.dilation
	if dilate {
		sb.dilation *= stride
		stride = 1
	}

	var downsample *nn.Sequential[B]
	if stride != 1 || sb.inPlanes != planes*expansion {
		downsample = nn.NewSequential[B](
			conv1x1(sb.inPlanes, planes*expansion, stride, sb.backend),
			nn.NewBatchNorm2D(planes*expansion, sb.backend),
		)
	}

	modules := make([]nn.Module[B], 0, blocks)
	modules = append(modules, sb.newBlock(sb.inPlanes, planes, stride, downsample, previousDilation))

	sb.inPlanes = planes * expansion
	for i := 1; i < blocks; i++ {
		modules = append(modules, sb.newBlock(sb.inPlanes, planes, 1, nil, sb.dilation))
	}

	return nn.NewSequential(modules...)
}

// New assembles a residual network from the configuration.
//
// Panics on invalid configuration (the network cannot exist in a
// half-built state); I/O-free construction never returns an error.
func New[B tensor.Backend](config Config, backend B) *ResNet[B] {
	config = config.withDefaults()
	config.validate()

	conv1 := nn.NewConv2D(3, 64, 7, 2, 3, 1, 1, false, backend)
	kaimingConv(conv1)

	builder := &stageBuilder[B]{
		kind:      config.Block,
		groups:    config.Groups,
		baseWidth: config.WidthPerGroup,
		inPlanes:  64,
		dilation:  1,
		backend:   backend,
	}

	// Stages must build in order: the builder threads the running
	// input-width and dilation accumulators across calls.
	dilate := config.ReplaceStrideWithDilation
	layer1 := builder.buildStage(stagePlanes[0], config.Layers[0], 1, false)
	layer2 := builder.buildStage(stagePlanes[1], config.Layers[1], 2, dilate[0])
	layer3 := builder.buildStage(stagePlanes[2], config.Layers[2], 2, dilate[1])
	layer4 := builder.buildStage(stagePlanes[3], config.Layers[3], 2, dilate[2])

	r := &ResNet[B]{
		config:  config,
		conv1:   conv1,
		bn1:     nn.NewBatchNorm2D(64, backend),
		relu:    nn.NewReLU[B](),
		maxpool: nn.NewMaxPool2D(3, 2, 1, backend),
		layer1:  layer1,
		layer2:  layer2,
		layer3:  layer3,
		layer4:  layer4,
		avgpool: nn.NewGlobalAvgPool2D[B](),
		fc:      nn.NewLinear(stagePlanes[3]*config.Block.Expansion(), config.NumClasses, true, backend),
		backend: backend,
	}

	if config.ZeroInitResidual {
		r.zeroInitResidual()
	}

	return r
}

// zeroInitResidual zeroes the last normalization scale of every
// bottleneck block, making each residual branch start as an identity.
// Basic blocks are deliberately left untouched.
func (r *ResNet[B]) zeroInitResidual() {
	for _, stage := range r.stages() {
		for i := 0; i < stage.Len(); i++ {
			if b, ok := stage.At(i).(*Bottleneck[B]); ok {
				nn.Constant(b.LastNorm().Weight().Tensor(), 0)
			}
		}
	}
}

// stages returns the four residual stages in order.
func (r *ResNet[B]) stages() [4]*nn.Sequential[B] {
	return [4]*nn.Sequential[B]{r.layer1, r.layer2, r.layer3, r.layer4}
}

// Forward runs the full classification pass.
//
// Input: [batch, 3, H, W] with H, W large enough to survive the stem's
// stride-4 reduction plus three further stride-2 stages (32x32 minimum).
// Output: [batch, num_classes].
func (r *ResNet[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x := r.relu.Forward(r.bn1.Forward(r.conv1.Forward(input)))
	x = r.maxpool.Forward(x)

	x = r.layer1.Forward(x)
	x = r.layer2.Forward(x)
	x = r.layer3.Forward(x)
	x = r.layer4.Forward(x)

	x = r.avgpool.Forward(x)
	return r.fc.Forward(x)
}

// Parameters returns every trainable parameter: backbone first, head last.
func (r *ResNet[B]) Parameters() []*nn.Parameter[B] {
	params := r.backboneParameters()
	return append(params, r.fc.Parameters()...)
}

// backboneParameters returns the parameters of the stem and the four
// stages, excluding the head.
func (r *ResNet[B]) backboneParameters() []*nn.Parameter[B] {
	params := append(r.conv1.Parameters(), r.bn1.Parameters()...)
	for _, stage := range r.stages() {
		params = append(params, stage.Parameters()...)
	}
	return params
}

// FreezeBackbone marks the stem and all four stages untrainable, leaving
// the head untouched. The pre-freeze trainability of every backbone
// parameter is remembered so UnfreezeBackbone can restore it exactly.
// Freezing an already frozen backbone is a no-op.
func (r *ResNet[B]) FreezeBackbone() {
	if r.frozenState != nil {
		return
	}
	params := r.backboneParameters()
	r.frozenState = make([]bool, len(params))
	for i, p := range params {
		r.frozenState[i] = p.RequiresGrad()
		p.SetRequiresGrad(false)
	}
}

// UnfreezeBackbone restores the trainability flags recorded by the last
// FreezeBackbone call. Without a prior freeze it marks the whole
// backbone trainable.
func (r *ResNet[B]) UnfreezeBackbone() {
	params := r.backboneParameters()
	if r.frozenState == nil {
		for _, p := range params {
			p.SetRequiresGrad(true)
		}
		return
	}
	for i, p := range params {
		p.SetRequiresGrad(r.frozenState[i])
	}
	r.frozenState = nil
}

// ReplaceHead swaps the classifier head for a fresh one with the given
// class count. The backbone is untouched; the new head's input width is
// still 512 * expansion. Replacing with the current class count is a
// no-op.
func (r *ResNet[B]) ReplaceHead(numClasses int) {
	if numClasses <= 0 {
		panic(fmt.Sprintf("resnet: invalid num_classes %d", numClasses))
	}
	if numClasses == r.fc.OutFeatures() {
		return
	}
	r.fc = nn.NewLinear(stagePlanes[3]*r.config.Block.Expansion(), numClasses, true, r.backend)
	r.config.NumClasses = numClasses
}

// namedChildren returns the stateful children in a fixed order with
// their state dict prefixes.
func (r *ResNet[B]) namedChildren() []struct {
	name   string
	module nn.Module[B]
} {
	return []struct {
		name   string
		module nn.Module[B]
	}{
		{"conv1", r.conv1},
		{"bn1", r.bn1},
		{"layer1", r.layer1},
		{"layer2", r.layer2},
		{"layer3", r.layer3},
		{"layer4", r.layer4},
		{"fc", r.fc},
	}
}

// StateDict exports every parameter and buffer under hierarchical keys
// such as "conv1.weight", "layer2.0.downsample.1.running_var" and
// "fc.bias".
func (r *ResNet[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for _, child := range r.namedChildren() {
		addPrefixed(stateDict, child.name, child.module)
	}
	return stateDict
}

// LoadStateDict loads a complete state dict. The key sets must match
// exactly in both directions; any missing, unexpected, or
// shape-mismatched entry fails the whole load.
func (r *ResNet[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	expected := r.StateDict()
	for name := range stateDict {
		if _, ok := expected[name]; !ok {
			return fmt.Errorf("unexpected key %q in state dict", name)
		}
	}
	for name := range expected {
		if _, ok := stateDict[name]; !ok {
			return fmt.Errorf("missing key %q in state dict", name)
		}
	}

	for _, child := range r.namedChildren() {
		if err := loadPrefixed(stateDict, child.name, child.module); err != nil {
			return err
		}
	}
	return nil
}

// Config returns the configuration the network was assembled from, with
// defaults resolved and NumClasses tracking any ReplaceHead call.
func (r *ResNet[B]) Config() Config {
	return r.config
}

// NumClasses returns the current classifier head width.
func (r *ResNet[B]) NumClasses() int {
	return r.fc.OutFeatures()
}

// Stage returns residual stage i (1-4).
func (r *ResNet[B]) Stage(i int) *nn.Sequential[B] {
	switch i {
	case 1:
		return r.layer1
	case 2:
		return r.layer2
	case 3:
		return r.layer3
	case 4:
		return r.layer4
	default:
		panic(fmt.Sprintf("resnet: stage index %d out of range [1,4]", i))
	}
}

// Head returns the classifier head.
func (r *ResNet[B]) Head() *nn.Linear[B] {
	return r.fc
}

// String returns a short description of the network.
func (r *ResNet[B]) String() string {
	return fmt.Sprintf("ResNet(block=%s, layers=%v, num_classes=%d, groups=%d, width_per_group=%d)",
		r.config.Block, r.config.Layers, r.fc.OutFeatures(), r.config.Groups, r.config.WidthPerGroup)
}
