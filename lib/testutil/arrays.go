// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"github.com/bureau-foundation/strata/lib/ndarray"
)

// Ramp builds an array whose elements count up from zero. Integer
// dtypes wrap at their range; float dtypes carry the index exactly up
// to their mantissa width.
func Ramp(dtype ndarray.DType, shape ...int) *ndarray.Array {
	arr := ndarray.New(dtype, shape...)
	for i := 0; i < arr.Len(); i++ {
		if dtype.IsComplex() {
			arr.SetComplex128At(i, complex(float64(i), -float64(i)))
		} else if dtype.IsFloat() {
			arr.SetFloat64At(i, float64(i))
		} else if dtype.IsUnsigned() {
			arr.SetUint64At(i, uint64(i))
		} else {
			arr.SetInt64At(i, int64(i))
		}
	}
	return arr
}

// Constant builds an array with every element set to value.
func Constant(dtype ndarray.DType, value float64, shape ...int) *ndarray.Array {
	arr := ndarray.New(dtype, shape...)
	for i := 0; i < arr.Len(); i++ {
		arr.SetFloat64At(i, value)
	}
	return arr
}

// RequireEqualArrays fails the test when two arrays differ in dtype,
// shape, or content, naming the first differing element.
func RequireEqualArrays(t interface {
	Helper()
	Fatalf(format string, args ...any)
}, want, got *ndarray.Array, context string) {
	t.Helper()
	if got == nil {
		t.Fatalf("%s: array is nil", context)
	}
	if want.DType() != got.DType() {
		t.Fatalf("%s: dtype is %s, want %s", context, got.DType(), want.DType())
	}
	if len(want.Shape()) != len(got.Shape()) {
		t.Fatalf("%s: shape is %v, want %v", context, got.Shape(), want.Shape())
	}
	for i, n := range want.Shape() {
		if got.Shape()[i] != n {
			t.Fatalf("%s: shape is %v, want %v", context, got.Shape(), want.Shape())
		}
	}
	wantBytes := want.Bytes()
	gotBytes := got.Bytes()
	width := want.DType().Size()
	for i := range wantBytes {
		if wantBytes[i] != gotBytes[i] {
			t.Fatalf("%s: element %d differs", context, i/width)
		}
	}
}
