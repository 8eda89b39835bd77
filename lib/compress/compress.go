// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package compress provides the named compression codecs applied to
// block payloads. A codec is a reversible byte transform identified
// by a short name; the name is recorded in the block header so that
// readers can locate the matching decompressor. Unknown names are a
// write-time error, never a silent fallback.
//
// Built-in codecs: "zlib", "lz4", and "zstd". Additional codecs can
// be registered before any document I/O happens.
package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec is a named, reversible payload transform. Decompress must
// verify that the output length matches expectedSize exactly: block
// headers record the uncompressed size, and a mismatch means the
// payload is corrupt.
type Codec interface {
	Name() string
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte, expectedSize int) ([]byte, error)
}

// CodecError reports a compression failure: an unknown codec name, or
// a codec that failed to transform a payload.
type CodecError struct {
	Codec string
	Err   error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("codec %q: %v", e.Codec, e.Err)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// codecs is the registry of named codecs. Mutated only during init
// and explicit Register calls; document I/O only reads it.
var codecs = map[string]Codec{}

// Register adds a codec to the registry. Registering a name twice
// replaces the earlier codec.
func Register(c Codec) {
	codecs[c.Name()] = c
}

// Lookup returns the codec registered under name.
func Lookup(name string) (Codec, error) {
	c, ok := codecs[name]
	if !ok {
		return nil, &CodecError{Codec: name, Err: fmt.Errorf("no such codec")}
	}
	return c, nil
}

// Compress transforms data with the named codec. An empty name is the
// identity transform.
func Compress(name string, data []byte) ([]byte, error) {
	if name == "" {
		return data, nil
	}
	c, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	out, err := c.Compress(data)
	if err != nil {
		return nil, &CodecError{Codec: name, Err: err}
	}
	return out, nil
}

// Decompress reverses Compress. The expectedSize is the recorded
// uncompressed size; output of any other length is an error.
func Decompress(name string, data []byte, expectedSize int) ([]byte, error) {
	if name == "" {
		if len(data) != expectedSize {
			return nil, &CodecError{Codec: "none",
				Err: fmt.Errorf("payload is %d bytes, header says %d", len(data), expectedSize)}
		}
		return data, nil
	}
	c, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	out, err := c.Decompress(data, expectedSize)
	if err != nil {
		return nil, &CodecError{Codec: name, Err: err}
	}
	if len(out) != expectedSize {
		return nil, &CodecError{Codec: name,
			Err: fmt.Errorf("decompressed to %d bytes, header says %d", len(out), expectedSize)}
	}
	return out, nil
}

func init() {
	Register(zlibCodec{})
	Register(lz4Codec{})
	Register(zstdCodec{})
}

// zlib: stream-mode DEFLATE with zlib framing. The historical default
// for scientific containers; widest reader compatibility.

type zlibCodec struct{}

func (zlibCodec) Name() string { return "zlib" }

func (zlibCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (zlibCodec) Decompress(data []byte, expectedSize int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	var buf bytes.Buffer
	buf.Grow(expectedSize)
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// lz4: block-mode LZ4. Fast default for binary array data. Block mode
// has no self-describing frame, so the recorded uncompressed size is
// load-bearing here, not just a cross-check.

type lz4Codec struct{}

func (lz4Codec) Name() string { return "lz4" }

func (lz4Codec) Compress(data []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(data))
	destination := make([]byte, bound)
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, err
	}
	if written == 0 {
		// CompressBlock signals incompressible input with a zero
		// length. Store such payloads as a raw block with a one-byte
		// marker so decompression stays unambiguous.
		out := make([]byte, 1+len(data))
		out[0] = 0
		copy(out[1:], data)
		return out, nil
	}
	out := make([]byte, 1+written)
	out[0] = 1
	copy(out[1:], destination[:written])
	return out, nil
}

func (lz4Codec) Decompress(data []byte, expectedSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty lz4 payload")
	}
	marker, data := data[0], data[1:]
	if marker == 0 {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}
	destination := make([]byte, expectedSize)
	read, err := lz4.UncompressBlock(data, destination)
	if err != nil {
		return nil, err
	}
	return destination[:read], nil
}

// zstd: level-3 zstd. Shared encoder and decoder are initialized once;
// both are safe for concurrent use.

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compress: zstd decoder initialization failed: " + err.Error())
	}
}

type zstdCodec struct{}

func (zstdCodec) Name() string { return "zstd" }

func (zstdCodec) Compress(data []byte) ([]byte, error) {
	return zstdEncoder.EncodeAll(data, nil), nil
}

func (zstdCodec) Decompress(data []byte, expectedSize int) ([]byte, error) {
	return zstdDecoder.DecodeAll(data, make([]byte, 0, expectedSize))
}

// Label converts a codec name to the 4-byte NUL-padded form stored in
// block headers. Names longer than four bytes truncate.
func Label(name string) [4]byte {
	var label [4]byte
	copy(label[:], name)
	return label
}

// NameFromLabel reverses Label, trimming NUL padding. The all-zero
// label means "no compression" and returns the empty string.
func NameFromLabel(label [4]byte) string {
	end := len(label)
	for end > 0 && label[end-1] == 0 {
		end--
	}
	return string(label[:end])
}
