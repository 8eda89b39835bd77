// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package container serializes strata documents: a YAML document
// tree whose array values are replaced by source descriptors, followed
// by a binary section of length-prefixed, checksummed, optionally
// compressed block records, and a trailing CBOR block index.
//
// The write path is staged: the complete container is encoded into
// memory and handed to the destination in one write, so codec,
// addressing, and traversal errors surface before any byte reaches
// the output. Update rewrites an existing file in place when the new
// tree and every grown block fit within the padding reserved by an
// earlier write, and falls back to a full rewrite otherwise.
package container

import (
	"errors"

	"github.com/bureau-foundation/strata/lib/block"
)

// ErrUnsupportedOperation reports an operation the format cannot
// honor, such as streaming an embedded document to a non-seekable
// sink. It surfaces before any partial output is produced.
var ErrUnsupportedOperation = errors.New("unsupported operation")

// Tagged wraps a tree value carrying a custom YAML tag. The container
// layer round-trips the tag without interpreting it; tag semantics
// belong to the schema layer, not here.
type Tagged struct {
	Tag   string
	Value any
}

// Document is a tree of maps, sequences, scalars, Tagged values, and
// *ndarray.Array leaves, paired with the block manager that decides
// where each array's bytes live.
//
// A document and its manager are single-threaded: share one across
// goroutines only with external synchronization.
type Document struct {
	tree    any
	manager *block.Manager
}

// New returns a document over the given tree with a fresh block
// manager.
func New(tree any) *Document {
	return NewWithManager(tree, block.NewManager())
}

// NewWithManager returns a document using the given manager. The
// FITS embedding layer uses this to install a manager whose handler
// chain resolves host container sections.
func NewWithManager(tree any, m *block.Manager) *Document {
	return &Document{tree: tree, manager: m}
}

// Tree returns the document tree.
func (d *Document) Tree() any {
	return d.tree
}

// SetTree replaces the document tree. Blocks bound to arrays that no
// longer appear in the tree are dropped on the next write.
func (d *Document) SetTree(tree any) {
	d.tree = tree
}

// Manager returns the document's block manager.
func (d *Document) Manager() *block.Manager {
	return d.manager
}
