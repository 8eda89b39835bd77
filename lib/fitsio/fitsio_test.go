// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fitsio

import (
	"bytes"
	"errors"
	"testing"

	"github.com/bureau-foundation/strata/lib/ndarray"
)

func TestRoundTrip(t *testing.T) {
	sci := ndarray.New(ndarray.Float32, 4, 6)
	for i := 0; i < sci.Len(); i++ {
		sci.SetFloat64At(i, float64(i)*0.5)
	}
	mask := ndarray.New(ndarray.Uint8, 24)
	for i := 0; i < mask.Len(); i++ {
		mask.SetUint64At(i, uint64(i%2))
	}

	list := NewHDUList()
	list.Append("SCI", 1, sci)
	list.Append("MASK", 0, mask)

	var buf bytes.Buffer
	if _, err := list.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if buf.Len()%blockSize != 0 {
		t.Errorf("stream length %d is not block-aligned", buf.Len())
	}

	read, err := ReadFrom(&buf)
	if err != nil {
		t.Fatalf("ReadFrom failed: %v", err)
	}
	sections := read.Sections()
	if len(sections) != 2 {
		t.Fatalf("read %d sections, want 2", len(sections))
	}

	gotSci := sections[0]
	if gotSci.Name() != "SCI" || gotSci.Version() != 1 {
		t.Errorf("section 0 = %s,%d", gotSci.Name(), gotSci.Version())
	}
	if gotSci.Data().DType() != ndarray.Float32 {
		t.Errorf("SCI dtype = %s", gotSci.Data().DType())
	}
	wantShape := []int{4, 6}
	for i, n := range gotSci.Data().Shape() {
		if n != wantShape[i] {
			t.Errorf("SCI shape = %v, want %v", gotSci.Data().Shape(), wantShape)
			break
		}
	}
	if !ndarray.EqualData(sci, gotSci.Data()) {
		t.Error("SCI data did not round-trip")
	}
	if !ndarray.EqualData(mask, sections[1].Data()) {
		t.Error("MASK data did not round-trip")
	}
}

func TestSectionLookup(t *testing.T) {
	list := NewHDUList()
	list.Append("SCI", 1, ndarray.FromFloat64s(1))
	list.Append("SCI", 2, ndarray.FromFloat64s(2))
	list.Append("ERR", 1, ndarray.FromFloat64s(3))

	first, err := list.Section("SCI", 0)
	if err != nil {
		t.Fatal(err)
	}
	if first.Version() != 1 {
		t.Errorf("version-0 lookup found version %d, want 1", first.Version())
	}

	second, err := list.Section("SCI", 2)
	if err != nil {
		t.Fatal(err)
	}
	if second.Data().Float64At(0) != 2 {
		t.Error("exact-version lookup found the wrong section")
	}

	if _, err := list.Section("SCI", 3); !errors.Is(err, ErrNoSection) {
		t.Errorf("missing version: err = %v, want ErrNoSection", err)
	}
	if _, err := list.Section("DQ", 0); !errors.Is(err, ErrNoSection) {
		t.Errorf("missing name: err = %v, want ErrNoSection", err)
	}
}

func TestPutSectionReplacesInPlace(t *testing.T) {
	list := NewHDUList()
	list.Append("SCI", 1, ndarray.FromFloat64s(1, 2))
	list.Append("ERR", 1, ndarray.FromFloat64s(9))

	replacement := ndarray.FromFloat64s(3, 4, 5)
	list.PutSection("SCI", replacement)

	sections := list.Sections()
	if len(sections) != 2 {
		t.Fatalf("PutSection changed section count to %d", len(sections))
	}
	if sections[0].Name() != "SCI" || sections[0].Data() != replacement {
		t.Error("PutSection did not replace SCI in place")
	}

	list.PutSection("DQ", ndarray.New(ndarray.Uint8, 4))
	if len(list.Sections()) != 3 {
		t.Error("PutSection with a new name should append")
	}
}

func TestAppendAutoVersion(t *testing.T) {
	list := NewHDUList()
	a := list.Append("SCI", 0, ndarray.FromFloat64s(1))
	b := list.Append("SCI", 0, ndarray.FromFloat64s(2))
	if a.Version() != 1 || b.Version() != 2 {
		t.Errorf("auto versions = %d, %d; want 1, 2", a.Version(), b.Version())
	}
}

func TestBitpixMapping(t *testing.T) {
	cases := []struct {
		dtype  ndarray.DType
		bitpix int
	}{
		{ndarray.Uint8, 8},
		{ndarray.Int16, 16},
		{ndarray.Int32, 32},
		{ndarray.Int64, 64},
		{ndarray.Float32, -32},
		{ndarray.Float64, -64},
	}
	for _, tc := range cases {
		got, err := bitpixFor(tc.dtype)
		if err != nil || got != tc.bitpix {
			t.Errorf("bitpixFor(%s) = %d, %v; want %d", tc.dtype, got, err, tc.bitpix)
		}
		back, err := dtypeFor(tc.bitpix)
		if err != nil || back != tc.dtype {
			t.Errorf("dtypeFor(%d) = %s, %v; want %s", tc.bitpix, back, err, tc.dtype)
		}
	}
	if _, err := bitpixFor(ndarray.Uint32); err == nil {
		t.Error("uint32 has no FITS representation and should be rejected")
	}
}

func TestBigEndianOnDisk(t *testing.T) {
	arr := ndarray.New(ndarray.Int16, 1)
	arr.SetInt64At(0, 0x0102)

	list := NewHDUList()
	list.Append("SCI", 1, arr)

	var buf bytes.Buffer
	if _, err := list.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	// The data block follows the primary header block and the
	// extension header block.
	data := buf.Bytes()[2*blockSize:]
	if data[0] != 0x01 || data[1] != 0x02 {
		t.Errorf("on-disk bytes = % x, want 01 02", data[:2])
	}
	// The source buffer stays little-endian.
	if arr.Bytes()[0] != 0x02 {
		t.Error("WriteTo modified the source buffer")
	}
}

func TestReadRejectsMalformedStreams(t *testing.T) {
	if _, err := ReadFrom(bytes.NewReader(nil)); err == nil {
		t.Error("empty stream should be rejected")
	}
	if _, err := ReadFrom(bytes.NewReader(make([]byte, 100))); err == nil {
		t.Error("unaligned stream should be rejected")
	}
	if _, err := ReadFrom(bytes.NewReader(make([]byte, blockSize))); err == nil {
		t.Error("stream without SIMPLE card should be rejected")
	}
}
