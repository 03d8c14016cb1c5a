// Package serialization implements the .loom weight file format.
//
// A .loom file stores a model's state dictionary: every parameter and
// buffer tensor under its hierarchical name. The layout is:
//
//	[0x00] magic "LOOM" (4 bytes)
//	[0x04] format version (uint32 LE)
//	[0x08] flags (uint32 LE)
//	[0x0C] reserved (4 bytes, zero)
//	[0x10] JSON header size (uint64 LE)
//	[0x18] data section size (uint64 LE)
//	[0x20] SHA-256 checksum of the data section (32 bytes)
//	[0x40] JSON header
//	       padding to 64-byte alignment
//	       tensor data section
//
// Tensors are laid out in lexicographic name order, so the same state
// dict always produces the same layout. Weights can optionally be stored
// in half precision (IEEE 754 binary16) to halve file size; they are
// converted back to float32 on read.
package serialization
