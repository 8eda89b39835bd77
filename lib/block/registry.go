// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package block

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/strata/lib/ndarray"
)

// ErrResourceRemoved reports a block whose backing resource — in
// practice a host container section — disappeared between resolution
// and use. The document is left unmodified when this surfaces.
var ErrResourceRemoved = errors.New("block resource has been removed from its host container")

// Registry is the ordered collection of a document's blocks. The
// order of internal blocks is significant: it is the on-disk record
// sequence, and a block's position is its integer source identifier.
//
// The registry also tracks which buffer identity each block was
// created for, which is what makes write-time deduplication work:
// two array views over one allocation resolve to one block.
//
// Invariant: for every member block b, Resolve(Identify(b)) returns
// the same *Block.
type Registry struct {
	blocks    []*Block
	positions map[*Block]int
	byBuffer  map[ndarray.BufferID]*Block
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		positions: make(map[*Block]int),
		byBuffer:  make(map[ndarray.BufferID]*Block),
	}
}

// Resolve returns the block addressed by an internal source.
// External sources are not the registry's business — they belong to
// scheme handlers — so they fail here with an AddressError.
func (r *Registry) Resolve(src Source) (*Block, error) {
	if !src.IsInternal() {
		return nil, &AddressError{
			Source: src.String(),
			Reason: fmt.Sprintf("no handler for scheme %q", src.Scheme()),
		}
	}
	if src.Index() < 0 || src.Index() >= len(r.blocks) {
		return nil, &AddressError{
			Source: src.String(),
			Reason: fmt.Sprintf("block index out of range [0, %d)", len(r.blocks)),
		}
	}
	return r.blocks[src.Index()], nil
}

// Identify returns the canonical source of a member block: its
// position in the record sequence. Blocks that are not members
// (inline blocks, foreign blocks, or blocks dropped by Compact) fail
// with an AddressError.
func (r *Registry) Identify(b *Block) (Source, error) {
	position, ok := r.positions[b]
	if !ok {
		return Source{}, &AddressError{
			Source: "<block>",
			Reason: "block is not a member of this document's registry",
		}
	}
	return Internal(position), nil
}

// Append adds an internal block at the end of the record sequence and
// returns its position.
func (r *Registry) Append(b *Block) int {
	position := len(r.blocks)
	r.blocks = append(r.blocks, b)
	r.positions[b] = position
	return position
}

// Len returns the number of internal blocks.
func (r *Registry) Len() int {
	return len(r.blocks)
}

// At returns the internal block at position i.
func (r *Registry) At(i int) *Block {
	return r.blocks[i]
}

// Blocks returns the internal blocks in record order. The caller must
// not mutate the returned slice.
func (r *Registry) Blocks() []*Block {
	return r.blocks
}

// BlockForBuffer returns the block previously bound to the given
// buffer identity, if any. This covers inline blocks too, which are
// bound but never appended.
func (r *Registry) BlockForBuffer(id ndarray.BufferID) (*Block, bool) {
	b, ok := r.byBuffer[id]
	return b, ok
}

// BindBuffer records that the given buffer identity is backed by b.
// Subsequent FindOrCreateForArray calls for views over that buffer
// reuse b instead of creating another block.
func (r *Registry) BindBuffer(id ndarray.BufferID, b *Block) {
	r.byBuffer[id] = b
}

// Compact drops every block for which used returns false and
// reassigns positions to the survivors, preserving their relative
// order. Buffer bindings to dropped blocks are removed as well. The
// container writer calls this before serializing the tree, so that
// positional sources reflect the final record sequence.
func (r *Registry) Compact(used func(*Block) bool) {
	kept := r.blocks[:0]
	dropped := make(map[*Block]bool)
	for _, b := range r.blocks {
		if used(b) {
			kept = append(kept, b)
		} else {
			dropped[b] = true
			delete(r.positions, b)
		}
	}
	r.blocks = kept
	for position, b := range r.blocks {
		r.positions[b] = position
	}
	for id, b := range r.byBuffer {
		if dropped[b] || (b.Storage() == StorageInline && !used(b)) {
			delete(r.byBuffer, id)
		}
	}
}
