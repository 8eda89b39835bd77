// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package block implements binary block storage for strata documents:
// the Block payload entity, the ordered Registry that maps source
// identifiers to blocks, and the Manager that binds array values to
// blocks during tree traversal.
//
// Addressing is extensible: a Manager consults an ordered chain of
// SchemeHandler implementations before its own registry, so a host
// container (FITS embedding, package lib/embed) can claim its own
// source scheme and alias arrays whose bytes the host already owns.
package block

import (
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/strata/lib/ndarray"
)

// Storage is where a block's bytes live in the serialized document.
type Storage uint8

const (
	// StorageUnset means no explicit choice. Options use it for
	// "no override"; no live block carries it.
	StorageUnset Storage = iota

	// StorageInternal blocks are appended to the document's own
	// binary block section, optionally compressed and checksummed.
	StorageInternal

	// StorageInline blocks are rendered as literal element values in
	// the document tree. No binary record is written. Used for small
	// arrays so the document stays human-diffable.
	StorageInline

	// StorageExternal blocks live in a host container section. The
	// document stores only a scheme-prefixed reference; the host owns
	// the bytes.
	StorageExternal
)

// String returns the storage kind name used in options and tooling.
func (s Storage) String() string {
	switch s {
	case StorageUnset:
		return "unset"
	case StorageInternal:
		return "internal"
	case StorageInline:
		return "inline"
	case StorageExternal:
		return "external"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// ParseStorage parses a storage kind name. "unset" is not accepted:
// it is an options placeholder, not a real storage kind.
func ParseStorage(name string) (Storage, error) {
	switch name {
	case "internal":
		return StorageInternal, nil
	case "inline":
		return StorageInline, nil
	case "external":
		return StorageExternal, nil
	default:
		return StorageUnset, fmt.Errorf("unknown storage kind: %q", name)
	}
}

// Block is one binary payload plus its metadata. The payload buffer
// holds uncompressed bytes; compression is applied only while the
// block is serialized. For external blocks the buffer is shared with
// the host container section — the block does not own those bytes.
type Block struct {
	storage     Storage
	compression string // codec name, "" = uncompressed
	payload     *ndarray.Buffer

	// dtype and shape describe the logical array this block was
	// created for. Descriptors in the tree are authoritative for
	// reading; these are retained for tooling and diagnostics.
	dtype ndarray.DType
	shape []int

	checksum      [32]byte
	checksumValid bool

	// allocated is the on-disk payload room (used bytes plus
	// padding) from the last serialization of this block. Zero for
	// blocks that have never been written. Update uses it to decide
	// whether a grown payload still fits in place.
	allocated uint64
}

// New creates a block over the given payload buffer.
func New(storage Storage, payload *ndarray.Buffer, dtype ndarray.DType, shape []int) *Block {
	return &Block{
		storage: storage,
		payload: payload,
		dtype:   dtype,
		shape:   append([]int(nil), shape...),
	}
}

// Storage returns where this block's bytes live.
func (b *Block) Storage() Storage {
	return b.storage
}

// Compression returns the codec name applied when the block is
// serialized, or "" for no compression.
func (b *Block) Compression() string {
	return b.compression
}

// SetCompression sets the serialization codec. The name is validated
// against the codec registry at write time.
func (b *Block) SetCompression(name string) {
	b.compression = name
}

// Buffer returns the uncompressed payload buffer.
func (b *Block) Buffer() *ndarray.Buffer {
	return b.payload
}

// Data returns the uncompressed payload bytes.
func (b *Block) Data() []byte {
	return b.payload.Bytes()
}

// Size returns the uncompressed payload length in bytes.
func (b *Block) Size() int {
	return b.payload.Len()
}

// DType returns the element type of the array the block was created
// for.
func (b *Block) DType() ndarray.DType {
	return b.dtype
}

// Shape returns the shape of the array the block was created for.
func (b *Block) Shape() []int {
	return b.shape
}

// SetArrayMeta records the dtype and shape of the logical array this
// block backs. The container reader calls it when the first
// descriptor referencing the block is resolved.
func (b *Block) SetArrayMeta(dtype ndarray.DType, shape []int) {
	b.dtype = dtype
	b.shape = append([]int(nil), shape...)
}

// Checksum returns the BLAKE3 digest of the uncompressed payload,
// computing and caching it on first use. Mutating the payload after
// this call without InvalidateChecksum leaves the cache stale.
func (b *Block) Checksum() [32]byte {
	if !b.checksumValid {
		b.checksum = blake3.Sum256(b.Data())
		b.checksumValid = true
	}
	return b.checksum
}

// InvalidateChecksum discards the cached digest so the next Checksum
// call recomputes it.
func (b *Block) InvalidateChecksum() {
	b.checksumValid = false
}

// Allocated returns the on-disk payload room from the last
// serialization, or zero if the block has never been written.
func (b *Block) Allocated() uint64 {
	return b.allocated
}

// SetAllocated records the on-disk payload room. Called by the
// container writer and reader.
func (b *Block) SetAllocated(n uint64) {
	b.allocated = n
}
