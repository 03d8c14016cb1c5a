package serialization

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loom-ml/loom/internal/tensor"
)

func rawFloat32(t *testing.T, shape tensor.Shape, data []float32) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(raw.AsFloat32(), data)
	return raw
}

func sampleStateDict(t *testing.T) map[string]*tensor.RawTensor {
	t.Helper()
	return map[string]*tensor.RawTensor{
		"conv1.weight": rawFloat32(t, tensor.Shape{2, 1, 1, 1}, []float32{0.5, -1.25}),
		"bn1.weight":   rawFloat32(t, tensor.Shape{2}, []float32{1, 1}),
		"fc.bias":      rawFloat32(t, tensor.Shape{3}, []float32{0.1, 0.2, 0.3}),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.loom")

	src := sampleStateDict(t)
	opts := WriteOptions{Metadata: map[string]string{"arch": "resnet18"}}
	require.NoError(t, Save(path, src, "ResNet", opts))

	loaded, header, err := Load(path, tensor.CPU)
	require.NoError(t, err)

	assert.Equal(t, "ResNet", header.ModelType)
	assert.Equal(t, FormatVersion, header.FormatVersion)
	assert.Equal(t, "resnet18", header.Metadata["arch"])
	assert.NotEmpty(t, header.ModelUID)

	require.Len(t, loaded, len(src))
	for name, want := range src {
		got, ok := loaded[name]
		require.True(t, ok, "missing tensor %s", name)
		assert.True(t, got.Shape().Equal(want.Shape()), "%s shape", name)
		assert.Equal(t, want.AsFloat32(), got.AsFloat32(), "%s data", name)
	}
}

func TestWriterDeterministicLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.loom")

	require.NoError(t, Save(path, sampleStateDict(t), "ResNet", WriteOptions{}))

	r, err := NewReader(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	// Tensors land in lexicographic name order.
	assert.Equal(t, []string{"bn1.weight", "conv1.weight", "fc.bias"}, r.TensorNames())
}

func TestChecksumDetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.loom")

	require.NoError(t, Save(path, sampleStateDict(t), "ResNet", WriteOptions{}))

	// Flip a bit in the data section (the file tail).
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	content[len(content)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, content, 0o644))

	_, err = NewReader(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	// Skipping validation lets the corrupted file open.
	r, err := NewReaderWithOptions(path, ReaderOptions{SkipChecksumValidation: true})
	require.NoError(t, err)
	_ = r.Close()
}

func TestHalfPrecisionRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.loom")

	src := map[string]*tensor.RawTensor{
		"weight": rawFloat32(t, tensor.Shape{4}, []float32{0.5, -1.25, 3.0, 0.0625}),
	}
	require.NoError(t, Save(path, src, "ResNet", WriteOptions{HalfPrecision: true}))

	loaded, _, err := Load(path, tensor.CPU)
	require.NoError(t, err)

	got := loaded["weight"]
	require.NotNil(t, got)
	// Storage is binary16 but tensors widen back to float32 on read.
	assert.Equal(t, tensor.Float32, got.DType())

	want := src["weight"].AsFloat32()
	for i, v := range got.AsFloat32() {
		assert.InDelta(t, want[i], v, 1e-3, "element %d", i)
	}
}

func TestHalfPrecisionHalvesDataSize(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "full.loom")
	half := filepath.Join(dir, "half.loom")

	src := map[string]*tensor.RawTensor{
		"weight": rawFloat32(t, tensor.Shape{1024}, make([]float32, 1024)),
	}
	require.NoError(t, Save(full, src, "ResNet", WriteOptions{}))
	require.NoError(t, Save(half, src, "ResNet", WriteOptions{HalfPrecision: true}))

	fullInfo, err := os.Stat(full)
	require.NoError(t, err)
	halfInfo, err := os.Stat(half)
	require.NoError(t, err)

	assert.Less(t, halfInfo.Size(), fullInfo.Size())
}

func TestReaderRejectsInvalidMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.loom")

	bogus := make([]byte, FixedHeaderSize)
	copy(bogus, "NOPE")
	require.NoError(t, os.WriteFile(path, bogus, 0o644))

	_, err := NewReader(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestReaderRejectsUnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.loom")

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], 99)
	require.NoError(t, os.WriteFile(path, fixed, 0o644))

	_, err := NewReader(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestReaderRejectsTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.loom")

	require.NoError(t, Save(path, sampleStateDict(t), "ResNet", WriteOptions{}))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, content[:len(content)-4], 0o644))

	_, err = NewReader(path)
	require.Error(t, err)
}

func TestLoadSingleTensor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.loom")

	require.NoError(t, Save(path, sampleStateDict(t), "ResNet", WriteOptions{}))

	r, err := NewReader(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	raw, err := r.LoadTensor("fc.bias", tensor.CPU)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, raw.AsFloat32())

	_, err = r.LoadTensor("no.such.tensor", tensor.CPU)
	require.Error(t, err)
}
