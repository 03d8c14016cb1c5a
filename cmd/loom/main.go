// Package main provides the Loom CLI.
//
// Commands:
//
//	loom version
//	loom build -arch resnet50 -classes 10 [-config model.yaml] [-save w.loom] [-load w.loom] [-smoke]
package main

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/loom-ml/loom/backend/cpu"
	"github.com/loom-ml/loom/resnet"
	"github.com/loom-ml/loom/tensor"
)

const version = "v0.3.1"

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("Loom %s\n", version)
	case "build":
		if err := buildCommand(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Loom - residual image classifiers in Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  build      Assemble a network, optionally save/load weights")
}

// modelConfig mirrors the YAML configuration file.
type modelConfig struct {
	Arch             string `yaml:"arch"`
	NumClasses       int    `yaml:"num_classes"`
	Groups           int    `yaml:"groups"`
	WidthPerGroup    int    `yaml:"width_per_group"`
	ZeroInitResidual bool   `yaml:"zero_init_residual"`
	Dilate           []bool `yaml:"dilate"`
}

// archLayers maps preset names to their block kind and stage depths.
var archLayers = map[string]struct {
	block  resnet.BlockKind
	layers [4]int
}{
	"resnet18":  {resnet.BasicKind, [4]int{2, 2, 2, 2}},
	"resnet34":  {resnet.BasicKind, [4]int{3, 4, 6, 3}},
	"resnet50":  {resnet.BottleneckKind, [4]int{3, 4, 6, 3}},
	"resnet101": {resnet.BottleneckKind, [4]int{3, 4, 23, 3}},
	"resnet152": {resnet.BottleneckKind, [4]int{3, 8, 36, 3}},
}

func buildCommand(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	arch := fs.String("arch", "resnet18", "architecture: resnet18|34|50|101|152")
	classes := fs.Int("classes", 0, "classifier head width (0 = 1000)")
	configPath := fs.String("config", "", "YAML model configuration (overrides flags)")
	savePath := fs.String("save", "", "write weights to this .loom file")
	loadPath := fs.String("load", "", "read weights from this .loom file")
	half := fs.Bool("half", false, "store weights in half precision")
	smoke := fs.Bool("smoke", false, "run a forward pass on a zero 1x3x224x224 input")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := modelConfig{Arch: *arch, NumClasses: *classes}
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}

	preset, ok := archLayers[cfg.Arch]
	if !ok {
		return fmt.Errorf("unknown architecture %q", cfg.Arch)
	}

	var dilate []bool
	if len(cfg.Dilate) > 0 {
		dilate = cfg.Dilate
	}

	backend := cpu.New()
	model := resnet.New(resnet.Config{
		Block:                     preset.block,
		Layers:                    preset.layers,
		NumClasses:                cfg.NumClasses,
		Groups:                    cfg.Groups,
		WidthPerGroup:             cfg.WidthPerGroup,
		ReplaceStrideWithDilation: dilate,
		ZeroInitResidual:          cfg.ZeroInitResidual,
	}, backend)

	fmt.Println(model)
	fmt.Printf("parameters: %d\n", countParameters(model))

	if *loadPath != "" {
		if err := resnet.LoadWeights(*loadPath, model); err != nil {
			return fmt.Errorf("failed to load weights: %w", err)
		}
		fmt.Printf("loaded weights from %s\n", *loadPath)
	}

	if *smoke {
		input := tensor.Zeros[float32](tensor.Shape{1, 3, 224, 224}, backend)
		output := model.Forward(input)
		fmt.Printf("forward: input %v -> output %v\n", input.Shape(), output.Shape())
	}

	if *savePath != "" {
		opts := resnet.WriteOptions{HalfPrecision: *half}
		if err := resnet.SaveWeights(*savePath, model, opts); err != nil {
			return fmt.Errorf("failed to save weights: %w", err)
		}
		fmt.Printf("saved weights to %s\n", *savePath)
	}

	return nil
}

func countParameters(model *resnet.ResNet[*cpu.Backend]) int {
	total := 0
	for _, p := range model.Parameters() {
		total += p.Tensor().NumElements()
	}
	return total
}
