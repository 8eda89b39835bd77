// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/strata/lib/block"
	"github.com/bureau-foundation/strata/lib/compress"
	"github.com/bureau-foundation/strata/lib/ndarray"
)

// ReadFrom reads a complete container from r and decodes it.
func ReadFrom(r io.Reader, opts ReadOptions) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading container: %w", err)
	}
	return Decode(data, opts)
}

// Decode decodes a container image with a fresh block manager.
func Decode(data []byte, opts ReadOptions) (*Document, error) {
	return DecodeWithManager(data, opts, block.NewManager())
}

// DecodeWithManager decodes a container image using the given block
// manager. The embedding layer passes a manager whose handler chain
// resolves host container schemes; external source identifiers in
// the tree resolve through it.
func DecodeWithManager(data []byte, opts ReadOptions, m *block.Manager) (*Document, error) {
	layout, err := parseLayout(data)
	if err != nil {
		return nil, err
	}

	registry := m.Registry()
	for _, record := range layout.records {
		payloadStart := record.offset + recordHeaderSize
		stored := data[payloadStart : payloadStart+int(record.header.used)]
		codec := compress.NameFromLabel(record.header.codec)

		payload, err := compress.Decompress(codec, stored, int(record.header.dataSize))
		if err != nil {
			return nil, err
		}
		// Decompress may return the stored slice itself when no codec
		// is involved; copy so block payloads own their bytes.
		owned := make([]byte, len(payload))
		copy(owned, payload)

		buffer := ndarray.NewBuffer(owned)
		b := block.New(block.StorageInternal, buffer, ndarray.DTypeInvalid, nil)
		b.SetCompression(codec)
		b.SetAllocated(record.header.allocated)

		if opts.ValidateChecksums && record.header.flags&flagChecksum != 0 {
			if b.Checksum() != record.header.checksum {
				return nil, fmt.Errorf("block %d: checksum mismatch", registry.Len())
			}
		}

		registry.Append(b)
		registry.BindBuffer(buffer.ID(), b)
	}

	if layout.indexOffset >= 0 {
		// The index is advisory: it is validated against the scan and
		// ignored on mismatch rather than failing the read.
		if offsets, err := decodeIndex(data[layout.indexOffset:]); err == nil {
			_ = validateIndex(offsets, layout.records)
		}
	}

	var root yaml.Node
	treeBytes := data[layout.treeStart : layout.treeStart+layout.treeLen]
	if err := yaml.Unmarshal(treeBytes, &root); err != nil {
		return nil, fmt.Errorf("parsing tree document: %w", err)
	}

	tree, err := decodeTree(&root, func(desc arrayDescriptor) (*ndarray.Array, error) {
		return materializeArray(desc, m)
	})
	if err != nil {
		return nil, err
	}

	return NewWithManager(tree, m), nil
}

// materializeArray turns a descriptor into an array. Inline
// descriptors get a fresh buffer plus an inline block binding, so a
// later write keeps them inline. Source descriptors resolve through
// the manager and view the block's payload buffer directly: every
// descriptor naming the same source shares one buffer.
func materializeArray(desc arrayDescriptor, m *block.Manager) (*ndarray.Array, error) {
	if desc.data != nil {
		arr, err := inlineArray(desc)
		if err != nil {
			return nil, err
		}
		b := block.New(block.StorageInline, arr.Buffer(), desc.dtype, desc.shape)
		m.Registry().BindBuffer(arr.Base(), b)
		return arr, nil
	}

	src, err := block.SourceFromValue(desc.source)
	if err != nil {
		return nil, err
	}
	b, err := m.GetBlock(src)
	if err != nil {
		return nil, err
	}
	arr, err := ndarray.FromBuffer(b.Buffer(), desc.dtype, desc.shape, desc.offset)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src, err)
	}
	if b.DType() == ndarray.DTypeInvalid {
		b.SetArrayMeta(desc.dtype, desc.shape)
	}
	return arr, nil
}

// validateIndex checks a decoded block index against the sequential
// scan.
func validateIndex(offsets []uint64, records []recordInfo) bool {
	if len(offsets) != len(records) {
		return false
	}
	for i, offset := range offsets {
		if int(offset) != records[i].offset {
			return false
		}
	}
	return true
}
