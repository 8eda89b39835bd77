// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/bureau-foundation/strata/lib/ndarray"
)

// Container format constants. These values are protocol constants —
// changing them breaks format compatibility.
const (
	// formatMarker is the first line of every strata container.
	formatMarker = "#STRATA 1.0.0\n"

	// yamlHeader opens the tree document.
	yamlHeader = "%YAML 1.1\n---\n"

	// treeTerminator ends the tree document. The container scanner
	// looks for this sequence to find the end of the YAML region.
	treeTerminator = "...\n"

	// recordHeaderSize is the fixed block record header: 4-byte
	// magic + 2-byte flags + 4-byte codec label + three 8-byte sizes
	// + 32-byte checksum.
	recordHeaderSize = 66

	// flagChecksum marks a record whose checksum field holds the
	// BLAKE3 digest of the uncompressed payload.
	flagChecksum = 0x0001
)

// blockMagic opens every block record.
var blockMagic = [4]byte{'S', 'B', 'L', 'K'}

// indexMagic opens the trailing block index record.
var indexMagic = [4]byte{'S', 'I', 'D', 'X'}

// recordHeader is the parsed fixed header of one block record.
type recordHeader struct {
	flags     uint16
	codec     [4]byte
	allocated uint64 // payload room: used bytes plus padding
	used      uint64 // stored (possibly compressed) byte count
	dataSize  uint64 // uncompressed logical size
	checksum  [32]byte
}

// putRecordHeader serializes h into dst, which must hold at least
// recordHeaderSize bytes.
func putRecordHeader(dst []byte, h recordHeader) {
	copy(dst[:4], blockMagic[:])
	binary.LittleEndian.PutUint16(dst[4:6], h.flags)
	copy(dst[6:10], h.codec[:])
	binary.LittleEndian.PutUint64(dst[10:18], h.allocated)
	binary.LittleEndian.PutUint64(dst[18:26], h.used)
	binary.LittleEndian.PutUint64(dst[26:34], h.dataSize)
	copy(dst[34:66], h.checksum[:])
}

// appendRecordHeader serializes h to buf.
func appendRecordHeader(buf *bytes.Buffer, h recordHeader) {
	var header [recordHeaderSize]byte
	putRecordHeader(header[:], h)
	buf.Write(header[:])
}

// parseRecordHeader reads a record header starting at the magic.
func parseRecordHeader(data []byte) (recordHeader, error) {
	var h recordHeader
	if len(data) < recordHeaderSize {
		return h, fmt.Errorf("truncated block record header (%d bytes)", len(data))
	}
	if !bytes.Equal(data[:4], blockMagic[:]) {
		return h, fmt.Errorf("bad block record magic %q", data[:4])
	}
	h.flags = binary.LittleEndian.Uint16(data[4:6])
	copy(h.codec[:], data[6:10])
	h.allocated = binary.LittleEndian.Uint64(data[10:18])
	h.used = binary.LittleEndian.Uint64(data[18:26])
	h.dataSize = binary.LittleEndian.Uint64(data[26:34])
	copy(h.checksum[:], data[34:66])
	if h.used > h.allocated {
		return h, fmt.Errorf("block record claims %d used bytes in %d allocated", h.used, h.allocated)
	}
	return h, nil
}

// recordInfo is one block record located in a container image.
type recordInfo struct {
	offset int // file offset of the record magic
	header recordHeader
}

// fileLayout is the structural scan of a container image: where the
// tree region and each block record live. Update uses it to decide
// whether new content fits in place; the reader uses it to decode.
type fileLayout struct {
	treeStart int // offset of the YAML header (after the marker line)
	treeLen   int // YAML document length including the terminator

	// treeRegionEnd is where the first block record (or the index,
	// or end of file) begins. Bytes between treeStart+treeLen and
	// here are tree slack reserved by a padded write.
	treeRegionEnd int

	records     []recordInfo
	indexOffset int // offset of the index record, -1 when absent
}

// treeRegionSize returns the total room available for the YAML
// document, including slack.
func (l *fileLayout) treeRegionSize() int {
	return l.treeRegionEnd - l.treeStart
}

// parseLayout scans a container image and locates its regions without
// decoding payloads.
func parseLayout(data []byte) (*fileLayout, error) {
	if !bytes.HasPrefix(data, []byte(formatMarker)) {
		return nil, fmt.Errorf("not a strata container (missing %q marker)", formatMarker[:len(formatMarker)-1])
	}
	layout := &fileLayout{
		treeStart:   len(formatMarker),
		indexOffset: -1,
	}
	if !bytes.HasPrefix(data[layout.treeStart:], []byte(yamlHeader)) {
		return nil, fmt.Errorf("malformed container: missing YAML document header")
	}

	terminator := bytes.Index(data[layout.treeStart:], []byte("\n"+treeTerminator))
	if terminator < 0 {
		return nil, fmt.Errorf("malformed container: tree document is not terminated")
	}
	layout.treeLen = terminator + 1 + len(treeTerminator)

	position := layout.treeStart + layout.treeLen
	// Skip tree slack: newline padding written by padded writes.
	for position < len(data) && data[position] == '\n' {
		position++
	}
	layout.treeRegionEnd = position

	for position < len(data) {
		switch {
		case bytes.HasPrefix(data[position:], blockMagic[:]):
			header, err := parseRecordHeader(data[position:])
			if err != nil {
				return nil, err
			}
			end := position + recordHeaderSize + int(header.allocated)
			if end > len(data) {
				return nil, fmt.Errorf("block record at offset %d overruns the container", position)
			}
			layout.records = append(layout.records, recordInfo{offset: position, header: header})
			position = end

		case bytes.HasPrefix(data[position:], indexMagic[:]):
			layout.indexOffset = position
			return layout, nil

		default:
			return nil, fmt.Errorf("unrecognized data at offset %d", position)
		}
	}
	return layout, nil
}

// encodeIndex serializes the block index record: the file offset of
// every block record, CBOR-encoded.
func encodeIndex(offsets []uint64) ([]byte, error) {
	body, err := cbor.Marshal(offsets)
	if err != nil {
		return nil, fmt.Errorf("encoding block index: %w", err)
	}
	var buf bytes.Buffer
	buf.Write(indexMagic[:])
	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(body)))
	buf.Write(length[:])
	buf.Write(body)
	return buf.Bytes(), nil
}

// decodeIndex parses an index record starting at its magic.
func decodeIndex(data []byte) ([]uint64, error) {
	if len(data) < 8 || !bytes.Equal(data[:4], indexMagic[:]) {
		return nil, fmt.Errorf("malformed block index record")
	}
	length := int(binary.LittleEndian.Uint32(data[4:8]))
	if len(data) < 8+length {
		return nil, fmt.Errorf("truncated block index record")
	}
	var offsets []uint64
	if err := cbor.Unmarshal(data[8:8+length], &offsets); err != nil {
		return nil, fmt.Errorf("decoding block index: %w", err)
	}
	return offsets, nil
}

// collectArrays gathers every array leaf of a tree in deterministic
// order (sorted map keys, sequence order). The order fixes block
// record sequence for newly created blocks.
func collectArrays(value any, out []*ndarray.Array) []*ndarray.Array {
	switch v := value.(type) {
	case *ndarray.Array:
		return append(out, v)
	case Tagged:
		return collectArrays(v.Value, out)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = collectArrays(v[k], out)
		}
		return out
	case []any:
		for _, item := range v {
			out = collectArrays(item, out)
		}
		return out
	default:
		return out
	}
}
