package nn

import (
	"testing"

	"github.com/loom-ml/loom/internal/backend/cpu"
	"github.com/loom-ml/loom/internal/tensor"
)

// Helper to check if values are approximately equal.
func floatEqual(a, b, epsilon float32) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < epsilon
}

// TestParameter tests Parameter creation and the trainability flag.
func TestParameter(t *testing.T) {
	backend := cpu.New()

	data, _ := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)
	param := NewParameter("test_param", data)

	if param.Name() != "test_param" {
		t.Errorf("Name() = %s, want test_param", param.Name())
	}
	if param.Tensor() != data {
		t.Error("Tensor() should return the original tensor")
	}

	// Parameters start out trainable.
	if !param.RequiresGrad() {
		t.Error("new parameter should require grad")
	}

	param.SetRequiresGrad(false)
	if param.RequiresGrad() {
		t.Error("SetRequiresGrad(false) should stick")
	}
	param.SetRequiresGrad(true)
	if !param.RequiresGrad() {
		t.Error("SetRequiresGrad(true) should stick")
	}
}

// TestLoadInto_MissingKey checks the shared state-dict loader rejects an
// absent entry.
func TestLoadInto_MissingKey(t *testing.T) {
	backend := cpu.New()

	dst := tensor.Zeros[float32](tensor.Shape{2}, backend)
	err := loadInto(map[string]*tensor.RawTensor{}, "weight", dst)
	if err == nil {
		t.Fatal("expected error for missing key")
	}
}

// TestLoadInto_ShapeMismatch checks the shared loader rejects a wrong shape.
func TestLoadInto_ShapeMismatch(t *testing.T) {
	backend := cpu.New()

	dst := tensor.Zeros[float32](tensor.Shape{2}, backend)
	src := tensor.Zeros[float32](tensor.Shape{3}, backend)

	err := loadInto(map[string]*tensor.RawTensor{"weight": src.Raw()}, "weight", dst)
	if err == nil {
		t.Fatal("expected error for shape mismatch")
	}
}

// TestKaimingNormal checks the fan-out initialization fills the tensor
// with a plausible spread.
func TestKaimingNormal(t *testing.T) {
	backend := cpu.New()

	w := tensor.Zeros[float32](tensor.Shape{64, 3, 7, 7}, backend)
	fan := 64 * 7 * 7
	KaimingNormal(w, fan)

	var sum, sumSq float64
	data := w.Data()
	for _, v := range data {
		sum += float64(v)
		sumSq += float64(v) * float64(v)
	}
	n := float64(len(data))
	mean := sum / n
	variance := sumSq/n - mean*mean

	// Target variance is 2/fan; allow generous sampling slack.
	want := 2.0 / float64(fan)
	if variance < want/2 || variance > want*2 {
		t.Errorf("sample variance %v far from target %v", variance, want)
	}
	if mean < -0.01 || mean > 0.01 {
		t.Errorf("sample mean %v far from 0", mean)
	}
}

// TestConstant checks the fill helper.
func TestConstant(t *testing.T) {
	backend := cpu.New()

	w := tensor.Ones[float32](tensor.Shape{4}, backend)
	Constant(w, 0)

	for i, v := range w.Data() {
		if v != 0 {
			t.Errorf("data[%d] = %v, want 0", i, v)
		}
	}
}
