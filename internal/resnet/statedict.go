package resnet

import (
	"fmt"
	"strings"

	"github.com/loom-ml/loom/internal/nn"
	"github.com/loom-ml/loom/internal/tensor"
)

// addPrefixed merges a child module's state dict into dst with every key
// prefixed by the child's name.
func addPrefixed[B tensor.Backend](dst map[string]*tensor.RawTensor, prefix string, m nn.Module[B]) {
	for name, raw := range m.StateDict() {
		dst[prefix+"."+name] = raw
	}
}

// loadPrefixed extracts the entries under a child's name prefix and loads
// them into the child.
func loadPrefixed[B tensor.Backend](stateDict map[string]*tensor.RawTensor, prefix string, m nn.Module[B]) error {
	p := prefix + "."
	sub := make(map[string]*tensor.RawTensor)
	for name, raw := range stateDict {
		if strings.HasPrefix(name, p) {
			sub[strings.TrimPrefix(name, p)] = raw
		}
	}
	if err := m.LoadStateDict(sub); err != nil {
		return fmt.Errorf("%s: %w", prefix, err)
	}
	return nil
}
