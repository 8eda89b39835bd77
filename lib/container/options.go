// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package container

import "github.com/bureau-foundation/strata/lib/block"

// WriteOptions configure one write or update pass.
type WriteOptions struct {
	// AllArrayStorage forces a storage kind for every array.
	// StorageUnset leaves per-array choices in effect.
	AllArrayStorage block.Storage

	// AllArrayCompression overrides the codec for every internal
	// block: "" keeps per-block settings, "none" strips compression,
	// any other value is a codec name looked up in lib/compress.
	AllArrayCompression string

	// AutoInline stores arrays with fewer than this many elements as
	// inline tree literals. Exclusive bound: exactly AutoInline
	// elements stays internal. Zero disables automatic inlining.
	AutoInline int

	// PadBlocks reserves trailing slack after the tree and after each
	// internal block record, sized as this fraction of the payload
	// (minimum 16 bytes when enabled). The slack lets a later Update
	// grow content in place without rewriting the file. Zero disables
	// padding.
	PadBlocks float64
}

// bindOptions maps the document-wide write options onto the block
// manager's binding options.
func (o WriteOptions) bindOptions() block.BindOptions {
	return block.BindOptions{
		Storage:     o.AllArrayStorage,
		Compression: o.AllArrayCompression,
		AutoInline:  o.AutoInline,
	}
}

// padding returns the slack to reserve after a region of the given
// size.
func (o WriteOptions) padding(size int) int {
	if o.PadBlocks <= 0 {
		return 0
	}
	slack := int(o.PadBlocks * float64(size))
	if slack < minPadding {
		slack = minPadding
	}
	return slack
}

// minPadding is the smallest slack reserved when padding is enabled.
// Without a floor, tiny blocks would get zero or near-zero slack and
// in-place updates of them would almost always fall back to a full
// rewrite.
const minPadding = 16

// ReadOptions configure document reading.
type ReadOptions struct {
	// ValidateChecksums re-hashes every internal block payload and
	// fails the read on a digest mismatch.
	ValidateChecksums bool
}
