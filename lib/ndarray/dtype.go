// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ndarray

import "fmt"

// DType identifies the element type of an array. The names match the
// dtype strings stored in array descriptors, so String and ParseDType
// are the serialization of this enum.
type DType uint8

const (
	// DTypeInvalid is the zero value. No array carries it; it marks
	// "not set" in options and metadata.
	DTypeInvalid DType = iota

	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	Complex64
	Complex128
)

// dtypeInfo holds the descriptor name and element width for each
// DType. Indexed by the DType value itself.
var dtypeInfo = [...]struct {
	name string
	size int
}{
	DTypeInvalid: {"invalid", 0},
	Int8:         {"int8", 1},
	Int16:        {"int16", 2},
	Int32:        {"int32", 4},
	Int64:        {"int64", 8},
	Uint8:        {"uint8", 1},
	Uint16:       {"uint16", 2},
	Uint32:       {"uint32", 4},
	Uint64:       {"uint64", 8},
	Float32:      {"float32", 4},
	Float64:      {"float64", 8},
	Complex64:    {"complex64", 8},
	Complex128:   {"complex128", 16},
}

// Size returns the element width in bytes.
func (d DType) Size() int {
	if int(d) >= len(dtypeInfo) {
		return 0
	}
	return dtypeInfo[d].size
}

// String returns the descriptor name of the dtype ("float64" etc.).
func (d DType) String() string {
	if int(d) >= len(dtypeInfo) {
		return fmt.Sprintf("unknown(%d)", uint8(d))
	}
	return dtypeInfo[d].name
}

// ParseDType parses a descriptor dtype name.
func ParseDType(name string) (DType, error) {
	for d, info := range dtypeInfo {
		if d != int(DTypeInvalid) && info.name == name {
			return DType(d), nil
		}
	}
	return DTypeInvalid, fmt.Errorf("unknown dtype: %q", name)
}

// IsFloat reports whether the dtype is a floating-point type.
func (d DType) IsFloat() bool {
	return d == Float32 || d == Float64
}

// IsComplex reports whether the dtype is a complex type.
func (d DType) IsComplex() bool {
	return d == Complex64 || d == Complex128
}

// IsUnsigned reports whether the dtype is an unsigned integer type.
func (d DType) IsUnsigned() bool {
	switch d {
	case Uint8, Uint16, Uint32, Uint64:
		return true
	}
	return false
}
