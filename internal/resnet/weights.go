package resnet

import (
	"fmt"

	"github.com/loom-ml/loom/internal/serialization"
	"github.com/loom-ml/loom/internal/tensor"
)

// modelType is the model_type header value of .loom files written here.
const modelType = "ResNet"

// SaveWeights writes the network's full state dict to a .loom file.
// Architecture parameters go into the header metadata so a reader can
// reconstruct a matching network before loading.
func SaveWeights[B tensor.Backend](path string, model *ResNet[B], opts serialization.WriteOptions) error {
	if opts.Metadata == nil {
		opts.Metadata = make(map[string]string)
	}
	cfg := model.Config()
	opts.Metadata["block"] = cfg.Block.String()
	opts.Metadata["layers"] = fmt.Sprintf("%d,%d,%d,%d", cfg.Layers[0], cfg.Layers[1], cfg.Layers[2], cfg.Layers[3])
	opts.Metadata["num_classes"] = fmt.Sprintf("%d", model.NumClasses())
	opts.Metadata["groups"] = fmt.Sprintf("%d", cfg.Groups)
	opts.Metadata["width_per_group"] = fmt.Sprintf("%d", cfg.WidthPerGroup)

	return serialization.Save(path, model.StateDict(), modelType, opts)
}

// LoadWeights reads a .loom file and loads it into the network. The
// file's key set must match the network's exactly.
func LoadWeights[B tensor.Backend](path string, model *ResNet[B]) error {
	stateDict, header, err := serialization.Load(path, model.backend.Device())
	if err != nil {
		return err
	}
	if header.ModelType != modelType {
		return fmt.Errorf("model type mismatch: file holds %q, expected %q", header.ModelType, modelType)
	}
	return model.LoadStateDict(stateDict)
}
