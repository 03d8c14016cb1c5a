package serialization

import (
	"fmt"
	"sort"
)

// ValidateHeader checks the tensor index for structural problems:
// negative offsets or sizes, duplicate names, overlapping extents, and
// tensors reaching past the data section.
func ValidateHeader(header *Header, dataSize int64) error {
	seen := make(map[string]struct{}, len(header.Tensors))
	for i := range header.Tensors {
		meta := &header.Tensors[i]
		if meta.Name == "" {
			return &ValidationError{
				Type:    "invalid_name",
				Details: "empty tensor name",
			}
		}
		if _, dup := seen[meta.Name]; dup {
			return &ValidationError{
				Type:    "duplicate_name",
				Tensor:  meta.Name,
				Details: ErrDuplicateTensor.Error(),
			}
		}
		seen[meta.Name] = struct{}{}

		if meta.Offset < 0 || meta.Size < 0 {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  meta.Name,
				Details: fmt.Sprintf("offset=%d size=%d", meta.Offset, meta.Size),
			}
		}
		if meta.Offset+meta.Size > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  meta.Name,
				Details: fmt.Sprintf("extent [%d, %d) exceeds data section of %d bytes", meta.Offset, meta.Offset+meta.Size, dataSize),
			}
		}
	}

	// Overlap check over offset-sorted extents.
	sorted := make([]TensorMeta, len(header.Tensors))
	copy(sorted, header.Tensors)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.Offset+prev.Size > cur.Offset {
			return &ValidationError{
				Type:    "offset_overlap",
				Tensor:  prev.Name,
				Tensor2: cur.Name,
				Details: ErrOffsetOverlap.Error(),
			}
		}
	}

	return nil
}
