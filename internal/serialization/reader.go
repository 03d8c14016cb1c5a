package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/loom-ml/loom/internal/tensor"
)

// ReaderOptions configures the behavior of Reader.
type ReaderOptions struct {
	// SkipChecksumValidation disables the data-section checksum check.
	// Faster, but corruption goes undetected.
	SkipChecksumValidation bool
}

// Reader reads models from .loom format.
type Reader struct {
	file       *os.File
	header     Header
	flags      uint32
	dataOffset int64    // Offset where tensor data starts
	dataSize   int64    // Size of the data section per the fixed header
	checksum   [32]byte // SHA-256 checksum of the data section
	opts       ReaderOptions
	closed     bool
}

// NewReader creates a new .loom file reader with default options
// (checksum validated).
func NewReader(path string) (*Reader, error) {
	return NewReaderWithOptions(path, ReaderOptions{})
}

// NewReaderWithOptions creates a new .loom file reader with custom options.
func NewReaderWithOptions(path string, opts ReaderOptions) (*Reader, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	reader := &Reader{file: file, opts: opts}

	if err := reader.parseHeader(); err != nil {
		_ = file.Close() // Best effort close on error
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	if err := ValidateHeader(&reader.header, reader.dataSize); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if !opts.SkipChecksumValidation {
		if err := reader.validateChecksum(); err != nil {
			_ = file.Close()
			return nil, err
		}
	}

	return reader, nil
}

// parseHeader reads the fixed header and the JSON header.
func (r *Reader) parseHeader() error {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r.file, fixed); err != nil {
		return fmt.Errorf("failed to read fixed header: %w", err)
	}

	if string(fixed[0:4]) != MagicBytes {
		return ErrInvalidMagic
	}

	version := binary.LittleEndian.Uint32(fixed[4:8])
	if version != FormatVersion {
		return fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}

	r.flags = binary.LittleEndian.Uint32(fixed[8:12])
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	copy(r.checksum[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > maxHeaderSize {
		return ErrHeaderTooLarge
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r.file, headerBytes); err != nil {
		return fmt.Errorf("failed to read header JSON: %w", err)
	}
	if err := json.Unmarshal(headerBytes, &r.header); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}

	currentPos := int64(FixedHeaderSize) + int64(headerSize)
	padding := (HeaderAlignment - (currentPos % HeaderAlignment)) % HeaderAlignment
	r.dataOffset = currentPos + padding
	//nolint:gosec // G115: bounded by the file size checks below
	r.dataSize = int64(dataSize)

	fileInfo, err := r.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if r.dataOffset+r.dataSize > fileInfo.Size() {
		return fmt.Errorf("%w: data section [%d, %d) exceeds file size %d",
			ErrOutOfBounds, r.dataOffset, r.dataOffset+r.dataSize, fileInfo.Size())
	}

	return nil
}

// validateChecksum reads the whole data section and compares its SHA-256
// against the fixed-header checksum.
func (r *Reader) validateChecksum() error {
	data := make([]byte, r.dataSize)
	if _, err := r.file.ReadAt(data, r.dataOffset); err != nil {
		return fmt.Errorf("failed to read tensor data for checksum: %w", err)
	}
	return ValidateChecksum(ComputeChecksum(data), r.checksum)
}

// Header returns the file header.
func (r *Reader) Header() Header {
	return r.header
}

// Metadata returns the metadata map from the header.
func (r *Reader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames returns all tensor names in the file, in layout order.
func (r *Reader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, meta := range r.header.Tensors {
		names[i] = meta.Name
	}
	return names
}

// TensorInfo returns the metadata of a specific tensor.
func (r *Reader) TensorInfo(name string) (*TensorMeta, error) {
	for i := range r.header.Tensors {
		if r.header.Tensors[i].Name == name {
			return &r.header.Tensors[i], nil
		}
	}
	return nil, fmt.Errorf("tensor %s not found", name)
}

// LoadTensor loads a single tensor from the file. Half-precision storage
// is widened back to float32.
func (r *Reader) LoadTensor(name string, device tensor.Device) (*tensor.RawTensor, error) {
	if r.closed {
		return nil, fmt.Errorf("reader is closed")
	}

	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	dtype, ok := stringToDtype(meta.DType)
	if !ok {
		return nil, fmt.Errorf("unsupported dtype: %s", meta.DType)
	}

	shape := tensor.Shape(meta.Shape)
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape for tensor %s: %w", name, err)
	}

	payload := make([]byte, meta.Size)
	if _, err := r.file.ReadAt(payload, r.dataOffset+meta.Offset); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}

	raw, err := tensor.NewRaw(shape, dtype, device)
	if err != nil {
		return nil, fmt.Errorf("failed to create tensor: %w", err)
	}

	if meta.DType == DTypeFloat16 {
		if int64(raw.NumElements()*2) != meta.Size {
			return nil, fmt.Errorf("tensor %s: float16 payload size %d does not match shape %v", name, meta.Size, shape)
		}
		decodeFloat16(payload, raw.AsFloat32())
		return raw, nil
	}

	if int64(raw.ByteSize()) != meta.Size {
		return nil, fmt.Errorf("tensor %s: payload size %d does not match shape %v dtype %s", name, meta.Size, shape, meta.DType)
	}
	copy(raw.Data(), payload)

	return raw, nil
}

// ReadStateDict reads all tensors into a state dictionary.
func (r *Reader) ReadStateDict(device tensor.Device) (map[string]*tensor.RawTensor, error) {
	if r.closed {
		return nil, fmt.Errorf("reader is closed")
	}

	stateDict := make(map[string]*tensor.RawTensor, len(r.header.Tensors))
	for _, meta := range r.header.Tensors {
		raw, err := r.LoadTensor(meta.Name, device)
		if err != nil {
			return nil, fmt.Errorf("failed to load tensor %s: %w", meta.Name, err)
		}
		stateDict[meta.Name] = raw
	}

	return stateDict, nil
}

// Close closes the reader and the underlying file.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// Load is a convenience wrapper: open, read everything, close.
func Load(path string, device tensor.Device) (map[string]*tensor.RawTensor, Header, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, Header{}, err
	}
	defer func() { _ = r.Close() }()

	stateDict, err := r.ReadStateDict(device)
	if err != nil {
		return nil, Header{}, err
	}
	return stateDict, r.Header(), nil
}
