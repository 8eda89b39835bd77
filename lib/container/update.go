// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"fmt"
	"io"
)

// File is the target of an in-place update: a seekable, truncatable
// read-write stream. *os.File satisfies it.
type File interface {
	io.ReadWriteSeeker
	Truncate(size int64) error
}

// Update rewrites f with the document's current content. When the
// new tree fits the existing tree region and every block's new
// payload fits the allocation recorded in its record header, content
// is rewritten in place and block offsets are preserved — this is
// what the padding reserved by WriteTo with PadBlocks enables. When
// anything outgrows its slack, or the block set changed, Update falls
// back to a full rewrite.
//
// The new content is fully encoded in memory before the first byte of
// f is touched, so an encoding error leaves the file unmodified.
func (d *Document) Update(f File, opts WriteOptions) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seeking container: %w", err)
	}
	existing, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("reading container: %w", err)
	}
	layout, err := parseLayout(existing)
	if err != nil {
		return fmt.Errorf("update target: %w", err)
	}

	parts, err := d.encodeParts(opts)
	if err != nil {
		return err
	}

	if fitsInPlace(parts, layout) {
		return d.updateInPlace(f, parts, layout)
	}

	full, err := assemble(parts, opts)
	if err != nil {
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seeking container: %w", err)
	}
	if _, err := f.Write(full); err != nil {
		return fmt.Errorf("rewriting container: %w", err)
	}
	return f.Truncate(int64(len(full)))
}

// fitsInPlace reports whether the encoded parts can overwrite the
// existing layout without moving any block record.
func fitsInPlace(parts *encodedParts, layout *fileLayout) bool {
	if len(parts.records) != len(layout.records) {
		return false
	}
	if len(parts.treeYAML) > layout.treeRegionSize() {
		return false
	}
	for i := range parts.records {
		if uint64(len(parts.records[i].payload)) > layout.records[i].header.allocated {
			return false
		}
	}
	return true
}

// updateInPlace overwrites the tree region and each block record,
// keeping every record at its existing offset with its existing
// allocation. The index is untouched: record offsets have not moved.
func (d *Document) updateInPlace(f File, parts *encodedParts, layout *fileLayout) error {
	if _, err := f.Seek(int64(layout.treeStart), io.SeekStart); err != nil {
		return fmt.Errorf("seeking tree region: %w", err)
	}
	region := make([]byte, layout.treeRegionSize())
	for i := range region {
		region[i] = '\n'
	}
	copy(region, parts.treeYAML)
	if _, err := f.Write(region); err != nil {
		return fmt.Errorf("writing tree region: %w", err)
	}

	for i := range parts.records {
		record := &parts.records[i]
		existing := layout.records[i]
		record.header.allocated = existing.header.allocated
		record.block.SetAllocated(existing.header.allocated)

		image := make([]byte, recordHeaderSize+int(existing.header.allocated))
		putRecordHeader(image, record.header)
		copy(image[recordHeaderSize:], record.payload)

		if _, err := f.Seek(int64(existing.offset), io.SeekStart); err != nil {
			return fmt.Errorf("seeking block %d: %w", i, err)
		}
		if _, err := f.Write(image); err != nil {
			return fmt.Errorf("writing block %d: %w", i, err)
		}
	}
	return nil
}
