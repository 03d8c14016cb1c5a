package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/loom-ml/loom/internal/tensor"
)

const loomVersion = "0.3.1" // Current Loom version

// WriteOptions configures a state dict write.
type WriteOptions struct {
	// Metadata is stored verbatim in the JSON header.
	Metadata map[string]string

	// HalfPrecision stores float32 tensors as binary16, halving file
	// size. Float64 tensors are unaffected.
	HalfPrecision bool
}

// Writer writes models in .loom format.
type Writer struct {
	file   *os.File
	closed bool
}

// NewWriter creates a new .loom file writer.
func NewWriter(path string) (*Writer, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	return &Writer{file: file}, nil
}

// WriteStateDict writes a state dictionary to the .loom file.
//
// Tensors are laid out in lexicographic name order so the byte layout is
// deterministic for a given state dict. The data section checksum and a
// freshly generated model UID go into the header.
func (w *Writer) WriteStateDict(stateDict map[string]*tensor.RawTensor, modelType string, opts WriteOptions) error {
	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		names = append(names, name)
	}
	sort.Strings(names)

	header := Header{
		FormatVersion: FormatVersion,
		LoomVersion:   loomVersion,
		ModelType:     modelType,
		ModelUID:      uuid.NewString(),
		CreatedAt:     time.Now().UTC(),
		Tensors:       make([]TensorMeta, 0, len(stateDict)),
		Metadata:      opts.Metadata,
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	// Encode tensor payloads and compute offsets.
	var currentOffset int64
	payloads := make([][]byte, 0, len(names))
	for _, name := range names {
		raw := stateDict[name]

		var payload []byte
		dtype := dtypeToString(raw.DType())
		if opts.HalfPrecision && raw.DType() == tensor.Float32 {
			payload = encodeFloat16(raw.AsFloat32())
			dtype = DTypeFloat16
		} else {
			payload = raw.Data()
		}

		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  dtype,
			Shape:  []int(raw.Shape()),
			Offset: currentOffset,
			Size:   int64(len(payload)),
		})
		payloads = append(payloads, payload)
		currentOffset += int64(len(payload))
	}
	dataSize := currentOffset

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	// Checksum covers the whole data section in layout order.
	dataSection := make([]byte, 0, dataSize)
	for _, payload := range payloads {
		dataSection = append(dataSection, payload...)
	}
	checksum := ComputeChecksum(dataSection)

	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if opts.HalfPrecision {
		flags |= FlagHalfPrecision
	}

	// Assemble the 64-byte fixed header.
	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], uint32(FormatVersion))
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	//nolint:gosec // G115: dataSize is non-negative by construction
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(dataSize))
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := w.file.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := w.file.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// Pad so the data section starts 64-byte aligned.
	currentPos := int64(FixedHeaderSize) + int64(len(headerJSON))
	padding := (HeaderAlignment - (currentPos % HeaderAlignment)) % HeaderAlignment
	if padding > 0 {
		if _, err := w.file.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}

	if _, err := w.file.Write(dataSection); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}

	return nil
}

// Close closes the writer and the underlying file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

// Save is a convenience wrapper: open, write, close.
func Save(path string, stateDict map[string]*tensor.RawTensor, modelType string, opts WriteOptions) error {
	w, err := NewWriter(path)
	if err != nil {
		return err
	}
	if err := w.WriteStateDict(stateDict, modelType, opts); err != nil {
		_ = w.Close() // Best effort close on error
		return err
	}
	return w.Close()
}
