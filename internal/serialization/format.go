package serialization

import (
	"time"

	"github.com/x448/float16"

	"github.com/loom-ml/loom/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "LOOM"
	FormatVersion   = 1
	FixedHeaderSize = 64   // Fixed header size (0x40 bytes)
	HeaderAlignment = 64   // Tensor data alignment
	ChecksumOffset  = 0x20 // SHA-256 checksum offset in the fixed header
	ChecksumSize    = 32
)

// Data type string constants used in the JSON header.
const (
	DTypeFloat32 = "float32"
	DTypeFloat64 = "float64"
	DTypeFloat16 = "float16" // storage-only: widened to float32 on read
)

// Flags for the .loom format.
const (
	FlagHasMetadata   uint32 = 1 << 0 // bit 0: custom metadata included
	FlagHalfPrecision uint32 = 1 << 1 // bit 1: float32 tensors stored as float16
)

// maxHeaderSize bounds the JSON header to protect the reader against
// corrupted size fields.
const maxHeaderSize = 100 * 1024 * 1024

// Header is the JSON header of a .loom file.
type Header struct {
	FormatVersion int               `json:"format_version"` // Version of the .loom format
	LoomVersion   string            `json:"loom_version"`   // Version of Loom that created this file
	ModelType     string            `json:"model_type"`     // Model type (e.g., "ResNet")
	ModelUID      string            `json:"model_uid"`      // Unique identifier assigned at write time
	CreatedAt     time.Time         `json:"created_at"`     // When the file was created
	Tensors       []TensorMeta      `json:"tensors"`        // Tensor index, lexicographic by name
	Metadata      map[string]string `json:"metadata"`       // Custom metadata
}

// TensorMeta describes one tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "layer1.0.conv1.weight")
	DType  string `json:"dtype"`  // Storage data type
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Offset from the start of the data section
	Size   int64  `json:"size"`   // Size in bytes
}

// dtypeToString converts tensor.DataType to its header representation.
func dtypeToString(dt tensor.DataType) string {
	switch dt {
	case tensor.Float32:
		return DTypeFloat32
	case tensor.Float64:
		return DTypeFloat64
	default:
		return "unknown"
	}
}

// stringToDtype converts a header dtype to the in-memory tensor.DataType.
// Float16 widens to Float32.
func stringToDtype(s string) (tensor.DataType, bool) {
	switch s {
	case DTypeFloat32, DTypeFloat16:
		return tensor.Float32, true
	case DTypeFloat64:
		return tensor.Float64, true
	default:
		return 0, false
	}
}

// encodeFloat16 converts float32 values to little-endian binary16 bytes.
func encodeFloat16(src []float32) []byte {
	out := make([]byte, len(src)*2)
	for i, v := range src {
		bits := float16.Fromfloat32(v).Bits()
		out[i*2] = byte(bits)
		out[i*2+1] = byte(bits >> 8)
	}
	return out
}

// decodeFloat16 converts little-endian binary16 bytes back to float32.
func decodeFloat16(src []byte, dst []float32) {
	for i := range dst {
		bits := uint16(src[i*2]) | uint16(src[i*2+1])<<8
		dst[i] = float16.Frombits(bits).Float32()
	}
}
