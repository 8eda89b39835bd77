// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ndarray

import "sync/atomic"

// BufferID is the stable identity of one underlying allocation. Every
// Buffer gets a process-unique ID at construction, so any two array
// views over the same allocation report the same BufferID and views
// over different allocations never collide. IDs are never persisted —
// they exist only to answer "do these arrays share storage" during a
// write pass.
type BufferID uint64

// nextBufferID is the allocation counter. Starts at 1 so the zero
// BufferID stays invalid and usable as a "no buffer" marker.
var nextBufferID atomic.Uint64

// Buffer owns a contiguous byte allocation that one or more Array
// views refer into. The byte contents are the array payload in
// little-endian element order.
type Buffer struct {
	id   BufferID
	data []byte
}

// NewBuffer wraps data in a Buffer with a fresh identity. The Buffer
// takes ownership of the slice: callers must not retain and mutate it
// through the original reference.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{
		id:   BufferID(nextBufferID.Add(1)),
		data: data,
	}
}

// ID returns the buffer's process-unique identity.
func (b *Buffer) ID() BufferID {
	return b.id
}

// Bytes returns the underlying allocation. The slice is shared with
// every view over this buffer; mutations are visible to all of them.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the allocation size in bytes.
func (b *Buffer) Len() int {
	return len(b.data)
}
