// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ndarray provides typed n-dimensional arrays over shared
// byte buffers. Multiple arrays may be views into one Buffer (via
// Slice, Reshape, or Reinterpret); the Base method exposes the
// buffer's identity so callers can detect that sharing. The storage
// layer uses buffer identity to deduplicate arrays that alias the
// same allocation, and to recognize arrays whose bytes are owned by
// a host container section.
//
// Element bytes are always little-endian, row-major (C order).
// Strided or transposed views are not modeled: a view is always a
// contiguous byte range of its buffer.
package ndarray

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Array is a dtype-tagged view over a contiguous range of a Buffer.
type Array struct {
	dtype  DType
	shape  []int
	buffer *Buffer
	offset int // byte offset of the view within the buffer
}

// New allocates a zero-filled array of the given dtype and shape.
func New(dtype DType, shape ...int) *Array {
	count := elementCount(shape)
	buffer := NewBuffer(make([]byte, count*dtype.Size()))
	return &Array{
		dtype:  dtype,
		shape:  append([]int(nil), shape...),
		buffer: buffer,
	}
}

// FromBytes builds an array over an existing byte slice. The slice
// length must match the shape and dtype exactly.
func FromBytes(dtype DType, shape []int, data []byte) (*Array, error) {
	need := elementCount(shape) * dtype.Size()
	if len(data) != need {
		return nil, fmt.Errorf("ndarray: %d bytes does not match %s%v (need %d)",
			len(data), dtype, shape, need)
	}
	return &Array{
		dtype:  dtype,
		shape:  append([]int(nil), shape...),
		buffer: NewBuffer(data),
	}, nil
}

// FromBuffer builds an array view over an existing buffer, starting
// at the given byte offset. Used by the block layer to expose block
// payloads and host container sections as arrays without copying.
func FromBuffer(buffer *Buffer, dtype DType, shape []int, offset int) (*Array, error) {
	need := elementCount(shape) * dtype.Size()
	if offset < 0 || offset+need > buffer.Len() {
		return nil, fmt.Errorf("ndarray: view [%d, %d) exceeds buffer of %d bytes",
			offset, offset+need, buffer.Len())
	}
	return &Array{
		dtype:  dtype,
		shape:  append([]int(nil), shape...),
		buffer: buffer,
		offset: offset,
	}, nil
}

// FromFloat64s builds a 1-D float64 array from the given values.
func FromFloat64s(values ...float64) *Array {
	a := New(Float64, len(values))
	for i, v := range values {
		a.SetFloat64At(i, v)
	}
	return a
}

// FromComplex128s builds a 1-D complex128 array from the given values.
func FromComplex128s(values ...complex128) *Array {
	a := New(Complex128, len(values))
	for i, v := range values {
		a.SetComplex128At(i, v)
	}
	return a
}

// FromInt64s builds a 1-D int64 array from the given values.
func FromInt64s(values ...int64) *Array {
	a := New(Int64, len(values))
	data := a.Bytes()
	for i, v := range values {
		binary.LittleEndian.PutUint64(data[i*8:], uint64(v))
	}
	return a
}

// DType returns the element type.
func (a *Array) DType() DType {
	return a.dtype
}

// Shape returns the array dimensions. The caller must not mutate the
// returned slice.
func (a *Array) Shape() []int {
	return a.shape
}

// Len returns the total element count.
func (a *Array) Len() int {
	return elementCount(a.shape)
}

// ByteSize returns the size of the view's data in bytes.
func (a *Array) ByteSize() int {
	return a.Len() * a.dtype.Size()
}

// Bytes returns the view's byte range of the shared buffer. Mutations
// are visible through every view over the same buffer.
func (a *Array) Bytes() []byte {
	return a.buffer.data[a.offset : a.offset+a.ByteSize()]
}

// Buffer returns the underlying shared buffer.
func (a *Array) Buffer() *Buffer {
	return a.buffer
}

// Offset returns the view's byte offset within its buffer. Zero for
// arrays that cover their whole allocation.
func (a *Array) Offset() int {
	return a.offset
}

// Base returns the identity of the underlying buffer. All views over
// one allocation report the same value. This never fails: an array
// always has a buffer, and a buffer always has an identity.
func (a *Array) Base() BufferID {
	return a.buffer.id
}

// Slice returns a view of count elements along the first axis,
// starting at start. The view shares the buffer.
func (a *Array) Slice(start, count int) (*Array, error) {
	if len(a.shape) == 0 {
		return nil, fmt.Errorf("ndarray: cannot slice a zero-dimensional array")
	}
	if start < 0 || count < 0 || start+count > a.shape[0] {
		return nil, fmt.Errorf("ndarray: slice [%d, %d) out of range for axis of %d",
			start, start+count, a.shape[0])
	}
	rowElems := elementCount(a.shape[1:])
	rowBytes := rowElems * a.dtype.Size()
	shape := append([]int{count}, a.shape[1:]...)
	return &Array{
		dtype:  a.dtype,
		shape:  shape,
		buffer: a.buffer,
		offset: a.offset + start*rowBytes,
	}, nil
}

// Reshape returns a view with a new shape over the same bytes. The
// element count must be unchanged.
func (a *Array) Reshape(shape ...int) (*Array, error) {
	if elementCount(shape) != a.Len() {
		return nil, fmt.Errorf("ndarray: cannot reshape %v (%d elements) to %v (%d elements)",
			a.shape, a.Len(), shape, elementCount(shape))
	}
	return &Array{
		dtype:  a.dtype,
		shape:  append([]int(nil), shape...),
		buffer: a.buffer,
		offset: a.offset,
	}, nil
}

// Reinterpret returns a 1-D view of the same bytes with a different
// dtype. The view's byte size must divide evenly by the new element
// width.
func (a *Array) Reinterpret(dtype DType) (*Array, error) {
	size := a.ByteSize()
	if size%dtype.Size() != 0 {
		return nil, fmt.Errorf("ndarray: %d bytes does not divide into %s elements",
			size, dtype)
	}
	return &Array{
		dtype:  dtype,
		shape:  []int{size / dtype.Size()},
		buffer: a.buffer,
		offset: a.offset,
	}, nil
}

// Float64At returns element i (flat, row-major index) converted to
// float64. Integer dtypes convert exactly within float64 precision.
func (a *Array) Float64At(i int) float64 {
	data := a.Bytes()
	switch a.dtype {
	case Int8:
		return float64(int8(data[i]))
	case Int16:
		return float64(int16(binary.LittleEndian.Uint16(data[i*2:])))
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(data[i*4:])))
	case Int64:
		return float64(int64(binary.LittleEndian.Uint64(data[i*8:])))
	case Uint8:
		return float64(data[i])
	case Uint16:
		return float64(binary.LittleEndian.Uint16(data[i*2:]))
	case Uint32:
		return float64(binary.LittleEndian.Uint32(data[i*4:]))
	case Uint64:
		return float64(binary.LittleEndian.Uint64(data[i*8:]))
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	panic("ndarray: Float64At on dtype " + a.dtype.String())
}

// Complex128At returns element i of a complex array. Complex64
// elements widen losslessly. Panics on non-complex dtypes.
func (a *Array) Complex128At(i int) complex128 {
	data := a.Bytes()
	switch a.dtype {
	case Complex64:
		re := math.Float32frombits(binary.LittleEndian.Uint32(data[i*8:]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(data[i*8+4:]))
		return complex(float64(re), float64(im))
	case Complex128:
		re := math.Float64frombits(binary.LittleEndian.Uint64(data[i*16:]))
		im := math.Float64frombits(binary.LittleEndian.Uint64(data[i*16+8:]))
		return complex(re, im)
	}
	panic("ndarray: Complex128At on dtype " + a.dtype.String())
}

// Int64At returns element i of a signed integer array without
// precision loss. Panics on non-signed-integer dtypes.
func (a *Array) Int64At(i int) int64 {
	data := a.Bytes()
	switch a.dtype {
	case Int8:
		return int64(int8(data[i]))
	case Int16:
		return int64(int16(binary.LittleEndian.Uint16(data[i*2:])))
	case Int32:
		return int64(int32(binary.LittleEndian.Uint32(data[i*4:])))
	case Int64:
		return int64(binary.LittleEndian.Uint64(data[i*8:]))
	}
	panic("ndarray: Int64At on dtype " + a.dtype.String())
}

// Uint64At returns element i of an unsigned integer array without
// precision loss. Panics on non-unsigned dtypes.
func (a *Array) Uint64At(i int) uint64 {
	data := a.Bytes()
	switch a.dtype {
	case Uint8:
		return uint64(data[i])
	case Uint16:
		return uint64(binary.LittleEndian.Uint16(data[i*2:]))
	case Uint32:
		return uint64(binary.LittleEndian.Uint32(data[i*4:]))
	case Uint64:
		return binary.LittleEndian.Uint64(data[i*8:])
	}
	panic("ndarray: Uint64At on dtype " + a.dtype.String())
}

// SetInt64At stores v into element i of a signed integer array.
func (a *Array) SetInt64At(i int, v int64) {
	data := a.Bytes()
	switch a.dtype {
	case Int8:
		data[i] = byte(int8(v))
	case Int16:
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(v)))
	case Int32:
		binary.LittleEndian.PutUint32(data[i*4:], uint32(int32(v)))
	case Int64:
		binary.LittleEndian.PutUint64(data[i*8:], uint64(v))
	default:
		panic("ndarray: SetInt64At on dtype " + a.dtype.String())
	}
}

// SetUint64At stores v into element i of an unsigned integer array.
func (a *Array) SetUint64At(i int, v uint64) {
	data := a.Bytes()
	switch a.dtype {
	case Uint8:
		data[i] = byte(v)
	case Uint16:
		binary.LittleEndian.PutUint16(data[i*2:], uint16(v))
	case Uint32:
		binary.LittleEndian.PutUint32(data[i*4:], uint32(v))
	case Uint64:
		binary.LittleEndian.PutUint64(data[i*8:], v)
	default:
		panic("ndarray: SetUint64At on dtype " + a.dtype.String())
	}
}

// SetFloat64At stores v into element i (flat index), converting to
// the array's dtype. Out-of-range integer conversions truncate the
// way Go numeric conversion does.
func (a *Array) SetFloat64At(i int, v float64) {
	data := a.Bytes()
	switch a.dtype {
	case Int8:
		data[i] = byte(int8(v))
	case Int16:
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(v)))
	case Int32:
		binary.LittleEndian.PutUint32(data[i*4:], uint32(int32(v)))
	case Int64:
		binary.LittleEndian.PutUint64(data[i*8:], uint64(int64(v)))
	case Uint8:
		data[i] = byte(uint8(v))
	case Uint16:
		binary.LittleEndian.PutUint16(data[i*2:], uint16(v))
	case Uint32:
		binary.LittleEndian.PutUint32(data[i*4:], uint32(v))
	case Uint64:
		binary.LittleEndian.PutUint64(data[i*8:], uint64(v))
	case Float32:
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(float32(v)))
	case Float64:
		binary.LittleEndian.PutUint64(data[i*8:], math.Float64bits(v))
	default:
		panic("ndarray: SetFloat64At on dtype " + a.dtype.String())
	}
}

// SetComplex128At stores v into element i of a complex array,
// narrowing to complex64 when that is the array's dtype. The real
// component is stored first.
func (a *Array) SetComplex128At(i int, v complex128) {
	data := a.Bytes()
	switch a.dtype {
	case Complex64:
		binary.LittleEndian.PutUint32(data[i*8:], math.Float32bits(float32(real(v))))
		binary.LittleEndian.PutUint32(data[i*8+4:], math.Float32bits(float32(imag(v))))
	case Complex128:
		binary.LittleEndian.PutUint64(data[i*16:], math.Float64bits(real(v)))
		binary.LittleEndian.PutUint64(data[i*16+8:], math.Float64bits(imag(v)))
	default:
		panic("ndarray: SetComplex128At on dtype " + a.dtype.String())
	}
}

// EqualData reports whether two arrays have the same dtype, shape,
// and byte-identical contents. Buffer identity is ignored: a copy
// compares equal to its original.
func EqualData(a, b *Array) bool {
	if a.dtype != b.dtype || len(a.shape) != len(b.shape) {
		return false
	}
	for i := range a.shape {
		if a.shape[i] != b.shape[i] {
			return false
		}
	}
	ab, bb := a.Bytes(), b.Bytes()
	if len(ab) != len(bb) {
		return false
	}
	for i := range ab {
		if ab[i] != bb[i] {
			return false
		}
	}
	return true
}

// elementCount returns the product of the dimensions. An empty shape
// (zero-dimensional array) has one element.
func elementCount(shape []int) int {
	count := 1
	for _, n := range shape {
		count *= n
	}
	return count
}
