package nn

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/loom-ml/loom/internal/tensor"
)

// Sequential chains modules so the output of each feeds the next.
//
// State dict keys are prefixed with the child's index, matching the
// conventional "0.weight", "1.running_mean" layout, so a projection
// shortcut built as Sequential(conv, norm) exports "0.weight",
// "1.weight", "1.running_mean", and so on.
type Sequential[B tensor.Backend] struct {
	modules []Module[B]
}

// NewSequential creates a new sequential container from the given modules.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return &Sequential[B]{modules: modules}
}

// Forward passes the input through each module in order.
func (s *Sequential[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	output := input
	for _, m := range s.modules {
		output = m.Forward(output)
	}
	return output
}

// Parameters returns the parameters of all child modules, in order.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, m := range s.modules {
		params = append(params, m.Parameters()...)
	}
	return params
}

// StateDict returns the state of all children, keys prefixed with the
// child index.
func (s *Sequential[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for i, m := range s.modules {
		prefix := strconv.Itoa(i)
		for name, raw := range m.StateDict() {
			stateDict[prefix+"."+name] = raw
		}
	}
	return stateDict
}

// LoadStateDict distributes index-prefixed entries to the children.
func (s *Sequential[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for i, m := range s.modules {
		prefix := strconv.Itoa(i) + "."
		sub := make(map[string]*tensor.RawTensor)
		for name, raw := range stateDict {
			if strings.HasPrefix(name, prefix) {
				sub[strings.TrimPrefix(name, prefix)] = raw
			}
		}
		if err := m.LoadStateDict(sub); err != nil {
			return fmt.Errorf("module %d: %w", i, err)
		}
	}
	return nil
}

// Len returns the number of child modules.
func (s *Sequential[B]) Len() int {
	return len(s.modules)
}

// At returns the child module at index i.
func (s *Sequential[B]) At(i int) Module[B] {
	return s.modules[i]
}

// String returns a string representation of the container.
func (s *Sequential[B]) String() string {
	parts := make([]string, len(s.modules))
	for i, m := range s.modules {
		parts[i] = fmt.Sprintf("%v", m)
	}
	return fmt.Sprintf("Sequential(%s)", strings.Join(parts, ", "))
}
