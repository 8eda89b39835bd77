// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package block

import (
	"errors"
	"testing"

	"github.com/bureau-foundation/strata/lib/ndarray"
)

func newTestBlock(storage Storage, n int) *Block {
	arr := ndarray.New(ndarray.Float64, n)
	return New(storage, arr.Buffer(), arr.DType(), arr.Shape())
}

func TestRegistryLeftInverse(t *testing.T) {
	r := NewRegistry()
	blocks := []*Block{
		newTestBlock(StorageInternal, 4),
		newTestBlock(StorageInternal, 8),
		newTestBlock(StorageInternal, 2),
	}
	for i, b := range blocks {
		if got := r.Append(b); got != i {
			t.Fatalf("Append returned position %d, want %d", got, i)
		}
	}

	// resolve(identify(b)) is b, for every member.
	for _, b := range blocks {
		src, err := r.Identify(b)
		if err != nil {
			t.Fatalf("Identify failed: %v", err)
		}
		resolved, err := r.Resolve(src)
		if err != nil {
			t.Fatalf("Resolve(%v) failed: %v", src, err)
		}
		if resolved != b {
			t.Errorf("Resolve(Identify(b)) returned a different block for %v", src)
		}
	}
}

func TestRegistryResolveOutOfRange(t *testing.T) {
	r := NewRegistry()
	r.Append(newTestBlock(StorageInternal, 1))
	r.Append(newTestBlock(StorageInternal, 1))

	_, err := r.Resolve(Internal(5))
	if err == nil {
		t.Fatal("resolving index 5 in a 2-block registry should fail")
	}
	var addrErr *AddressError
	if !errors.As(err, &addrErr) {
		t.Fatalf("error should be *AddressError, got %T", err)
	}
}

func TestRegistryResolveUnknownScheme(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve(External("fits", "SCI", 1))
	var addrErr *AddressError
	if !errors.As(err, &addrErr) {
		t.Fatalf("external source without a handler should yield *AddressError, got %v", err)
	}
}

func TestRegistryIdentifyNonMember(t *testing.T) {
	r := NewRegistry()
	stranger := newTestBlock(StorageInternal, 1)
	_, err := r.Identify(stranger)
	var addrErr *AddressError
	if !errors.As(err, &addrErr) {
		t.Fatalf("identifying a non-member should yield *AddressError, got %v", err)
	}
}

func TestRegistryBufferBinding(t *testing.T) {
	r := NewRegistry()
	arr := ndarray.FromFloat64s(1, 2, 3)
	b := New(StorageInternal, arr.Buffer(), arr.DType(), arr.Shape())
	r.Append(b)
	r.BindBuffer(arr.Base(), b)

	got, ok := r.BlockForBuffer(arr.Base())
	if !ok || got != b {
		t.Error("BlockForBuffer should return the bound block")
	}
	if _, ok := r.BlockForBuffer(ndarray.FromFloat64s(1).Base()); ok {
		t.Error("unbound buffer should not resolve")
	}
}

func TestRegistryCompact(t *testing.T) {
	r := NewRegistry()
	a := newTestBlock(StorageInternal, 1)
	b := newTestBlock(StorageInternal, 2)
	c := newTestBlock(StorageInternal, 3)
	for _, blk := range []*Block{a, b, c} {
		r.Append(blk)
	}

	r.Compact(func(blk *Block) bool { return blk != b })

	if r.Len() != 2 {
		t.Fatalf("Len() = %d after compaction, want 2", r.Len())
	}

	// Survivors keep their relative order and get fresh positions.
	srcA, err := r.Identify(a)
	if err != nil || srcA != Internal(0) {
		t.Errorf("Identify(a) = %v, %v; want position 0", srcA, err)
	}
	srcC, err := r.Identify(c)
	if err != nil || srcC != Internal(1) {
		t.Errorf("Identify(c) = %v, %v; want position 1", srcC, err)
	}

	// The dropped block is no longer a member.
	if _, err := r.Identify(b); err == nil {
		t.Error("dropped block should not identify")
	}
}
