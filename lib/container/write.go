// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/strata/lib/block"
	"github.com/bureau-foundation/strata/lib/compress"
	"github.com/bureau-foundation/strata/lib/ndarray"
)

// encodedRecord is one internal block prepared for serialization:
// its payload already compressed and its header filled in, except for
// the allocation, which depends on padding policy (assemble) or on an
// existing file's layout (update in place).
type encodedRecord struct {
	block   *block.Block
	payload []byte
	header  recordHeader
}

// encodedParts is a document fully encoded except for final layout:
// the YAML region and the prepared block records.
type encodedParts struct {
	treeYAML []byte
	records  []encodedRecord
}

// encodeParts binds every array in the tree to a block, drops blocks
// no longer referenced, compresses payloads, and renders the YAML
// document. Every write-path error — unknown codec, unresolvable
// source, unsupported tree value — surfaces here, before anything is
// laid out for output.
func (d *Document) encodeParts(opts WriteOptions) (*encodedParts, error) {
	bindOpts := opts.bindOptions()

	used := make(map[*block.Block]bool)
	for _, arr := range collectArrays(d.tree, nil) {
		b, err := d.manager.FindOrCreateForArray(arr, bindOpts)
		if err != nil {
			return nil, err
		}
		used[b] = true
	}
	d.manager.Registry().Compact(func(b *block.Block) bool { return used[b] })

	registry := d.manager.Registry()
	records := make([]encodedRecord, 0, registry.Len())
	for _, b := range registry.Blocks() {
		payload, err := compress.Compress(b.Compression(), b.Data())
		if err != nil {
			return nil, err
		}
		// Array views mutate the payload buffer in place between
		// writes; a digest cached by an earlier serialization may no
		// longer match the bytes.
		b.InvalidateChecksum()
		records = append(records, encodedRecord{
			block:   b,
			payload: payload,
			header: recordHeader{
				flags:    flagChecksum,
				codec:    compress.Label(b.Compression()),
				used:     uint64(len(payload)),
				dataSize: uint64(b.Size()),
				checksum: b.Checksum(),
			},
		})
	}

	node, err := encodeTree(d.tree, func(arr *ndarray.Array) (*yaml.Node, error) {
		b, err := d.manager.FindOrCreateForArray(arr, bindOpts)
		if err != nil {
			return nil, err
		}
		if b.Storage() == block.StorageInline {
			return descriptorNode(arr, nil, true)
		}
		src, err := d.manager.GetSource(b)
		if err != nil {
			return nil, err
		}
		if src.IsInternal() {
			return descriptorNode(arr, src.Index(), false)
		}
		return descriptorNode(arr, src.String(), false)
	})
	if err != nil {
		return nil, err
	}

	var treeBuf bytes.Buffer
	treeBuf.WriteString(yamlHeader)
	encoder := yaml.NewEncoder(&treeBuf)
	encoder.SetIndent(2)
	if err := encoder.Encode(node); err != nil {
		return nil, fmt.Errorf("encoding tree: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("encoding tree: %w", err)
	}
	treeBuf.WriteString(treeTerminator)

	return &encodedParts{treeYAML: treeBuf.Bytes(), records: records}, nil
}

// assemble lays the encoded parts out as a complete container image,
// applying the padding policy and appending the block index. Each
// block's on-disk allocation is recorded on the block for later
// in-place updates.
func assemble(parts *encodedParts, opts WriteOptions) ([]byte, error) {
	var out bytes.Buffer
	out.WriteString(formatMarker)
	out.Write(parts.treeYAML)
	for i := opts.padding(len(parts.treeYAML)); i > 0; i-- {
		out.WriteByte('\n')
	}

	offsets := make([]uint64, 0, len(parts.records))
	for i := range parts.records {
		record := &parts.records[i]
		allocated := uint64(len(record.payload) + opts.padding(len(record.payload)))
		record.header.allocated = allocated

		offsets = append(offsets, uint64(out.Len()))
		appendRecordHeader(&out, record.header)
		out.Write(record.payload)
		out.Write(make([]byte, int(allocated)-len(record.payload)))
		record.block.SetAllocated(allocated)
	}

	index, err := encodeIndex(offsets)
	if err != nil {
		return nil, err
	}
	out.Write(index)
	return out.Bytes(), nil
}

// Encode serializes the document as a complete container image in
// memory. The embedding layer uses this to pack a document into a
// host container section.
func (d *Document) Encode(opts WriteOptions) ([]byte, error) {
	parts, err := d.encodeParts(opts)
	if err != nil {
		return nil, err
	}
	return assemble(parts, opts)
}

// TreeDocument renders only the YAML document region, without the
// format marker, block records, or index. With AllArrayStorage set to
// StorageInline the result is a self-contained pure-YAML rendition of
// the document.
func (d *Document) TreeDocument(opts WriteOptions) ([]byte, error) {
	parts, err := d.encodeParts(opts)
	if err != nil {
		return nil, err
	}
	return parts.treeYAML, nil
}

// WriteTo serializes the document to w. The container is staged in
// memory first: on error, nothing has been written to w.
func (d *Document) WriteTo(w io.Writer, opts WriteOptions) (int64, error) {
	data, err := d.Encode(opts)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}
