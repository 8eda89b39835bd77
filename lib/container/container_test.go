// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/bureau-foundation/strata/lib/block"
	"github.com/bureau-foundation/strata/lib/ndarray"
)

// encodeDecode writes the document and reads it back.
func encodeDecode(t *testing.T, doc *Document, writeOpts WriteOptions, readOpts ReadOptions) *Document {
	t.Helper()
	data, err := doc.Encode(writeOpts)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := Decode(data, readOpts)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	return decoded
}

func TestRoundTripScalars(t *testing.T) {
	tree := map[string]any{
		"title":    "observation run 7",
		"count":    42,
		"ratio":    0.125,
		"valid":    true,
		"missing":  nil,
		"names":    []any{"a", "b", "c"},
		"settings": map[string]any{"nested": map[string]any{"deep": -3}},
	}
	decoded := encodeDecode(t, New(tree), WriteOptions{}, ReadOptions{})

	got := decoded.Tree().(map[string]any)
	if got["title"] != "observation run 7" {
		t.Errorf("title = %v", got["title"])
	}
	if got["count"] != 42 {
		t.Errorf("count = %v (%T)", got["count"], got["count"])
	}
	if got["ratio"] != 0.125 {
		t.Errorf("ratio = %v", got["ratio"])
	}
	if got["valid"] != true {
		t.Errorf("valid = %v", got["valid"])
	}
	if got["missing"] != nil {
		t.Errorf("missing = %v", got["missing"])
	}
	names := got["names"].([]any)
	if len(names) != 3 || names[0] != "a" {
		t.Errorf("names = %v", names)
	}
	deep := got["settings"].(map[string]any)["nested"].(map[string]any)["deep"]
	if deep != -3 {
		t.Errorf("deep = %v", deep)
	}
}

func TestRoundTripNonFiniteFloats(t *testing.T) {
	tree := map[string]any{
		"nan":    math.NaN(),
		"posinf": math.Inf(1),
		"neginf": math.Inf(-1),
	}
	decoded := encodeDecode(t, New(tree), WriteOptions{}, ReadOptions{})
	got := decoded.Tree().(map[string]any)

	if !math.IsNaN(got["nan"].(float64)) {
		t.Errorf("nan = %v", got["nan"])
	}
	if !math.IsInf(got["posinf"].(float64), 1) {
		t.Errorf("posinf = %v", got["posinf"])
	}
	if !math.IsInf(got["neginf"].(float64), -1) {
		t.Errorf("neginf = %v", got["neginf"])
	}
}

func TestRoundTripTaggedValues(t *testing.T) {
	tree := map[string]any{
		"unit":  Tagged{Tag: "!unit/meter", Value: "m"},
		"quant": Tagged{Tag: "!quantity", Value: map[string]any{"value": 3.5}},
	}
	decoded := encodeDecode(t, New(tree), WriteOptions{}, ReadOptions{})
	got := decoded.Tree().(map[string]any)

	unit, ok := got["unit"].(Tagged)
	if !ok || unit.Tag != "!unit/meter" || unit.Value != "m" {
		t.Errorf("unit = %#v", got["unit"])
	}
	quant, ok := got["quant"].(Tagged)
	if !ok || quant.Tag != "!quantity" {
		t.Fatalf("quant = %#v", got["quant"])
	}
	if quant.Value.(map[string]any)["value"] != 3.5 {
		t.Errorf("quant.value = %v", quant.Value)
	}
}

func TestRoundTripInternalArrays(t *testing.T) {
	data := ndarray.FromFloat64s(1.5, 2.5, 3.5, 4.5, 5.5, 6.5)
	ints := ndarray.FromInt64s(-1, -2, -3)

	tree := map[string]any{
		"data": data,
		"ints": ints,
	}
	decoded := encodeDecode(t, New(tree), WriteOptions{}, ReadOptions{ValidateChecksums: true})
	got := decoded.Tree().(map[string]any)

	gotData := got["data"].(*ndarray.Array)
	if !ndarray.EqualData(data, gotData) {
		t.Error("float array did not round-trip")
	}
	gotInts := got["ints"].(*ndarray.Array)
	if !ndarray.EqualData(ints, gotInts) {
		t.Error("int array did not round-trip")
	}
}

func TestRoundTripComplexArrays(t *testing.T) {
	vis := ndarray.FromComplex128s(complex(1.5, -2.5), complex(0, 3), complex(-4, 0))
	narrow := ndarray.New(ndarray.Complex64, 4)
	for i := 0; i < narrow.Len(); i++ {
		narrow.SetComplex128At(i, complex(float64(i), 0.5))
	}

	tree := map[string]any{
		"vis":    vis,
		"narrow": narrow,
	}
	decoded := encodeDecode(t, New(tree), WriteOptions{}, ReadOptions{ValidateChecksums: true})
	got := decoded.Tree().(map[string]any)

	gotVis := got["vis"].(*ndarray.Array)
	if !ndarray.EqualData(vis, gotVis) {
		t.Error("complex128 array did not round-trip")
	}
	if gotVis.Complex128At(0) != complex(1.5, -2.5) {
		t.Errorf("vis[0] = %v", gotVis.Complex128At(0))
	}
	gotNarrow := got["narrow"].(*ndarray.Array)
	if !ndarray.EqualData(narrow, gotNarrow) {
		t.Error("complex64 array did not round-trip")
	}

	// Inline storage renders complex elements as string scalars.
	inlineDoc := New(map[string]any{"vis": ndarray.FromComplex128s(complex(1, 2))})
	data, err := inlineDoc.Encode(WriteOptions{AllArrayStorage: block.StorageInline})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.Contains(string(data), "(1+2i)") {
		t.Errorf("inline complex literal missing from document:\n%s", data)
	}
	redecoded, err := Decode(data, ReadOptions{})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	gotInline := redecoded.Tree().(map[string]any)["vis"].(*ndarray.Array)
	if gotInline.DType() != ndarray.Complex128 || gotInline.Complex128At(0) != complex(1, 2) {
		t.Errorf("inline complex = %s %v", gotInline.DType(), gotInline.Complex128At(0))
	}
}

func TestRoundTripSharedViews(t *testing.T) {
	base := ndarray.FromFloat64s(0, 1, 2, 3, 4, 5, 6, 7)
	view, err := base.Slice(2, 3)
	if err != nil {
		t.Fatal(err)
	}

	doc := New(map[string]any{"whole": base, "part": view})
	data, err := doc.Encode(WriteOptions{})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// One buffer, one block.
	if doc.Manager().Registry().Len() != 1 {
		t.Fatalf("registry has %d blocks, want 1", doc.Manager().Registry().Len())
	}

	decoded, err := Decode(data, ReadOptions{})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	got := decoded.Tree().(map[string]any)
	whole := got["whole"].(*ndarray.Array)
	part := got["part"].(*ndarray.Array)

	if !ndarray.EqualData(base, whole) || !ndarray.EqualData(view, part) {
		t.Error("shared views did not round-trip")
	}
	if whole.Base() != part.Base() {
		t.Error("descriptors naming one source should share a buffer after read")
	}
}

func TestRoundTripInline(t *testing.T) {
	small := ndarray.FromFloat64s(1, 2, 3)
	forced := block.StorageInline
	doc := New(map[string]any{"small": small})

	data, err := doc.Encode(WriteOptions{AllArrayStorage: forced})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if doc.Manager().Registry().Len() != 0 {
		t.Error("inline write should produce no internal blocks")
	}
	if !strings.Contains(string(data), "data: [1, 2, 3]") {
		t.Errorf("inline literal missing from document:\n%s", data)
	}

	decoded, err := Decode(data, ReadOptions{})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	got := decoded.Tree().(map[string]any)["small"].(*ndarray.Array)
	if !ndarray.EqualData(small, got) {
		t.Error("inline array did not round-trip")
	}

	// Inline storage is sticky: rewriting the decoded document keeps
	// the array inline without repeating the override.
	redata, err := decoded.Encode(WriteOptions{})
	if err != nil {
		t.Fatalf("re-encode failed: %v", err)
	}
	if decoded.Manager().Registry().Len() != 0 {
		t.Error("re-encode should keep the array inline")
	}
	if !strings.Contains(string(redata), "data: [1, 2, 3]") {
		t.Error("inline literal missing after re-encode")
	}
}

func TestConvertInternalToInline(t *testing.T) {
	doc := New(map[string]any{"a": ndarray.FromFloat64s(1, 2, 3)})
	data, err := doc.Encode(WriteOptions{})
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(data, ReadOptions{})
	if err != nil {
		t.Fatal(err)
	}

	// Forcing inline storage on a document whose arrays are already
	// bound to internal blocks rebinds them.
	redata, err := decoded.Encode(WriteOptions{AllArrayStorage: block.StorageInline})
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Manager().Registry().Len() != 0 {
		t.Errorf("registry has %d blocks after inline conversion, want 0",
			decoded.Manager().Registry().Len())
	}
	if !strings.Contains(string(redata), "data: [1, 2, 3]") {
		t.Error("converted document lacks the inline literal")
	}

	final, err := Decode(redata, ReadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	got := final.Tree().(map[string]any)["a"].(*ndarray.Array)
	if !ndarray.EqualData(doc.Tree().(map[string]any)["a"].(*ndarray.Array), got) {
		t.Error("array did not survive the inline conversion")
	}
}

func TestAutoInlineThreshold(t *testing.T) {
	under := ndarray.New(ndarray.Float64, 9)
	exact := ndarray.New(ndarray.Float64, 10)
	doc := New(map[string]any{"under": under, "exact": exact})

	data, err := doc.Encode(WriteOptions{AutoInline: 10})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// Exactly one internal block: the threshold is an exclusive
	// upper bound for inlining.
	if doc.Manager().Registry().Len() != 1 {
		t.Fatalf("registry has %d blocks, want 1", doc.Manager().Registry().Len())
	}
	decoded, err := Decode(data, ReadOptions{})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	got := decoded.Tree().(map[string]any)
	if !ndarray.EqualData(under, got["under"].(*ndarray.Array)) {
		t.Error("inlined array did not round-trip")
	}
	if !ndarray.EqualData(exact, got["exact"].(*ndarray.Array)) {
		t.Error("threshold-sized array did not round-trip")
	}
}

func TestRoundTripCompression(t *testing.T) {
	big := ndarray.New(ndarray.Float64, 4096)
	for i := 0; i < big.Len(); i++ {
		big.SetFloat64At(i, float64(i%32))
	}

	for _, codec := range []string{"zlib", "lz4", "zstd"} {
		t.Run(codec, func(t *testing.T) {
			doc := New(map[string]any{"big": big})
			data, err := doc.Encode(WriteOptions{AllArrayCompression: codec})
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if len(data) > big.ByteSize() {
				t.Errorf("compressed container (%d bytes) larger than raw payload (%d bytes)",
					len(data), big.ByteSize())
			}

			decoded, err := Decode(data, ReadOptions{ValidateChecksums: true})
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			got := decoded.Tree().(map[string]any)["big"].(*ndarray.Array)
			if !ndarray.EqualData(big, got) {
				t.Error("compressed array did not round-trip")
			}
			if decoded.Manager().Registry().At(0).Compression() != codec {
				t.Errorf("decoded block codec = %q, want %q",
					decoded.Manager().Registry().At(0).Compression(), codec)
			}
		})
	}
}

func TestUnknownCodecFailsBeforeOutput(t *testing.T) {
	doc := New(map[string]any{"a": ndarray.FromFloat64s(1, 2)})
	var sink countingWriter
	_, err := doc.WriteTo(&sink, WriteOptions{AllArrayCompression: "bzp2"})
	if err == nil {
		t.Fatal("unknown codec should fail the write")
	}
	if sink.writes != 0 {
		t.Errorf("failed write reached the destination (%d writes)", sink.writes)
	}
}

type countingWriter struct{ writes int }

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes++
	return len(p), nil
}

func TestChecksumValidation(t *testing.T) {
	doc := New(map[string]any{"a": ndarray.FromFloat64s(1, 2, 3, 4)})
	data, err := doc.Encode(WriteOptions{})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// Flip one payload byte: the last byte of the file before the
	// index is block payload.
	corrupted := bytes.Clone(data)
	indexAt := bytes.LastIndex(corrupted, indexMagic[:])
	corrupted[indexAt-1] ^= 0xFF

	if _, err := Decode(corrupted, ReadOptions{ValidateChecksums: true}); err == nil {
		t.Error("corrupted payload should fail checksum validation")
	}
	if _, err := Decode(corrupted, ReadOptions{}); err != nil {
		t.Errorf("without validation the corrupted payload should still decode: %v", err)
	}
}

func TestDecodeAddressErrors(t *testing.T) {
	// A document whose descriptor names block 5 while the registry
	// has one block.
	doc := New(map[string]any{"a": ndarray.FromFloat64s(1, 2)})
	data, err := doc.Encode(WriteOptions{})
	if err != nil {
		t.Fatal(err)
	}
	broken := bytes.Replace(data, []byte("source: 0"), []byte("source: 5"), 1)

	_, err = Decode(broken, ReadOptions{})
	var addrErr *block.AddressError
	if !errors.As(err, &addrErr) {
		t.Fatalf("want *AddressError for out-of-range source, got %v", err)
	}

	// An external scheme with no registered handler.
	broken = bytes.Replace(data, []byte("source: 0"), []byte("source: fits:SCI,1"), 1)
	_, err = Decode(broken, ReadOptions{})
	if !errors.As(err, &addrErr) {
		t.Fatalf("want *AddressError for unhandled scheme, got %v", err)
	}
}

func TestDecodeRejectsBigEndianDescriptor(t *testing.T) {
	doc := New(map[string]any{"a": ndarray.FromFloat64s(1, 2)})
	data, err := doc.Encode(WriteOptions{})
	if err != nil {
		t.Fatal(err)
	}
	broken := bytes.Replace(data, []byte("byteorder: little"), []byte("byteorder: big"), 1)
	if _, err := Decode(broken, ReadOptions{}); err == nil {
		t.Error("big-endian descriptor should be rejected")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("not a container"), ReadOptions{}); err == nil {
		t.Error("garbage should not decode")
	}
	if _, err := Decode([]byte(formatMarker+"%YAML 1.1\n---\nx: 1\n"), ReadOptions{}); err == nil {
		t.Error("unterminated tree should not decode")
	}
}

func TestUnreferencedBlocksDropOnRewrite(t *testing.T) {
	a := ndarray.FromFloat64s(1, 2)
	b := ndarray.FromFloat64s(3, 4)
	doc := New(map[string]any{"a": a, "b": b})
	if _, err := doc.Encode(WriteOptions{}); err != nil {
		t.Fatal(err)
	}
	if doc.Manager().Registry().Len() != 2 {
		t.Fatalf("registry has %d blocks, want 2", doc.Manager().Registry().Len())
	}

	doc.SetTree(map[string]any{"b": b})
	data, err := doc.Encode(WriteOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if doc.Manager().Registry().Len() != 1 {
		t.Errorf("registry has %d blocks after rewrite, want 1", doc.Manager().Registry().Len())
	}

	decoded, err := Decode(data, ReadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	got := decoded.Tree().(map[string]any)["b"].(*ndarray.Array)
	if !ndarray.EqualData(b, got) {
		t.Error("surviving block did not round-trip")
	}
}

func TestEncodeDeterministic(t *testing.T) {
	doc := New(map[string]any{
		"z": ndarray.FromFloat64s(1, 2, 3),
		"a": "first",
		"m": map[string]any{"y": 1, "x": 2},
	})
	first, err := doc.Encode(WriteOptions{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := doc.Encode(WriteOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("encoding the same document twice should produce identical bytes")
	}
}
