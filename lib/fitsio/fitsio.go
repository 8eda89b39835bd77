// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fitsio reads and writes a minimal subset of FITS: an
// ordered list of image HDUs addressed by EXTNAME and EXTVER. It
// exists as a host container for embedding, not as a general FITS
// library; table extensions, scaling keywords, and the rest of the
// standard are out of scope.
package fitsio

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bureau-foundation/strata/lib/ndarray"
)

const (
	// FITS files are sequences of 2880-byte blocks.
	blockSize = 2880
	// Headers are sequences of 80-byte cards.
	cardSize = 80
)

// ErrNoSection reports a section lookup that matched nothing.
var ErrNoSection = errors.New("no such section")

// Section is one named, versioned data region of a host container.
type Section interface {
	Name() string
	Version() int
	Data() *ndarray.Array
}

// Container is a host file that stores named sections. PutSection
// replaces a section's data in one step, so a reader of the container
// never observes a half-written section.
type Container interface {
	Sections() []Section
	// Section returns the section with the given name and version.
	// Version 0 matches the first section with the name.
	Section(name string, version int) (Section, error)
	PutSection(name string, data *ndarray.Array)
}

// HDU is a single image extension.
type HDU struct {
	name    string
	version int
	data    *ndarray.Array
}

func (h *HDU) Name() string { return h.name }

func (h *HDU) Version() int { return h.version }

func (h *HDU) Data() *ndarray.Array { return h.data }

// HDUList is an ordered list of image HDUs. It implements Container.
type HDUList struct {
	hdus []*HDU
}

// NewHDUList returns an empty list.
func NewHDUList() *HDUList {
	return &HDUList{}
}

// Append adds a section at the end of the list. Version 0 assigns the
// next free version for the name, starting at 1.
func (l *HDUList) Append(name string, version int, data *ndarray.Array) *HDU {
	if version == 0 {
		version = 1
		for _, h := range l.hdus {
			if h.name == name && h.version >= version {
				version = h.version + 1
			}
		}
	}
	h := &HDU{name: name, version: version, data: data}
	l.hdus = append(l.hdus, h)
	return h
}

// Sections returns the sections in file order.
func (l *HDUList) Sections() []Section {
	sections := make([]Section, len(l.hdus))
	for i, h := range l.hdus {
		sections[i] = h
	}
	return sections
}

// Section returns the section named name. Version 0 matches the first
// section with the name; any other version must match exactly.
func (l *HDUList) Section(name string, version int) (Section, error) {
	for _, h := range l.hdus {
		if h.name == name && (version == 0 || h.version == version) {
			return h, nil
		}
	}
	if version == 0 {
		return nil, fmt.Errorf("section %q: %w", name, ErrNoSection)
	}
	return nil, fmt.Errorf("section %q version %d: %w", name, version, ErrNoSection)
}

// PutSection replaces the data of the first section named name, or
// appends a new section when none exists. The swap is a single
// pointer store: no intermediate state is ever visible.
func (l *HDUList) PutSection(name string, data *ndarray.Array) {
	for _, h := range l.hdus {
		if h.name == name {
			h.data = data
			return
		}
	}
	l.Append(name, 0, data)
}

// bitpixFor maps an element type to the FITS BITPIX code.
func bitpixFor(dtype ndarray.DType) (int, error) {
	switch dtype {
	case ndarray.Uint8:
		return 8, nil
	case ndarray.Int16:
		return 16, nil
	case ndarray.Int32:
		return 32, nil
	case ndarray.Int64:
		return 64, nil
	case ndarray.Float32:
		return -32, nil
	case ndarray.Float64:
		return -64, nil
	}
	return 0, fmt.Errorf("dtype %s has no FITS representation", dtype)
}

// dtypeFor maps a BITPIX code back to an element type.
func dtypeFor(bitpix int) (ndarray.DType, error) {
	switch bitpix {
	case 8:
		return ndarray.Uint8, nil
	case 16:
		return ndarray.Int16, nil
	case 32:
		return ndarray.Int32, nil
	case 64:
		return ndarray.Int64, nil
	case -32:
		return ndarray.Float32, nil
	case -64:
		return ndarray.Float64, nil
	}
	return ndarray.DTypeInvalid, fmt.Errorf("unsupported BITPIX %d", bitpix)
}

// swapEndian reverses the bytes of each width-sized element in place.
// FITS data is big-endian; buffers are little-endian. The operation
// is its own inverse.
func swapEndian(data []byte, width int) {
	if width < 2 {
		return
	}
	for base := 0; base+width <= len(data); base += width {
		for i, j := base, base+width-1; i < j; i, j = i+1, j-1 {
			data[i], data[j] = data[j], data[i]
		}
	}
}

// card formats one 80-byte header card.
func card(keyword, value string) string {
	text := fmt.Sprintf("%-8s= %s", keyword, value)
	if len(text) > cardSize {
		text = text[:cardSize]
	}
	return text + strings.Repeat(" ", cardSize-len(text))
}

func intCard(keyword string, v int) string {
	return card(keyword, fmt.Sprintf("%20d", v))
}

func strCard(keyword, v string) string {
	return card(keyword, fmt.Sprintf("'%s'", v))
}

func logicalCard(keyword string, v bool) string {
	letter := "F"
	if v {
		letter = "T"
	}
	return card(keyword, fmt.Sprintf("%20s", letter))
}

func bareCard(keyword string) string {
	return keyword + strings.Repeat(" ", cardSize-len(keyword))
}

// padToBlock pads buf with fill bytes up to the next 2880-byte
// boundary.
func padToBlock(buf []byte, fill byte) []byte {
	for len(buf)%blockSize != 0 {
		buf = append(buf, fill)
	}
	return buf
}

// WriteTo writes the list as a FITS file: an empty primary HDU
// followed by one image extension per section. Extension data is
// converted to big-endian on the way out; the section buffers are not
// modified.
func (l *HDUList) WriteTo(w io.Writer) (int64, error) {
	var buf []byte

	var primary strings.Builder
	primary.WriteString(logicalCard("SIMPLE", true))
	primary.WriteString(intCard("BITPIX", 8))
	primary.WriteString(intCard("NAXIS", 0))
	primary.WriteString(logicalCard("EXTEND", true))
	primary.WriteString(bareCard("END"))
	buf = padToBlock(append(buf, primary.String()...), ' ')

	for _, h := range l.hdus {
		bitpix, err := bitpixFor(h.data.DType())
		if err != nil {
			return 0, fmt.Errorf("section %q: %w", h.name, err)
		}
		shape := h.data.Shape()

		var header strings.Builder
		header.WriteString(strCard("XTENSION", "IMAGE"))
		header.WriteString(intCard("BITPIX", bitpix))
		header.WriteString(intCard("NAXIS", len(shape)))
		// NAXISn runs fastest-varying axis first, the reverse of
		// the row-major shape.
		for i := range shape {
			keyword := fmt.Sprintf("NAXIS%d", i+1)
			header.WriteString(intCard(keyword, shape[len(shape)-1-i]))
		}
		header.WriteString(intCard("PCOUNT", 0))
		header.WriteString(intCard("GCOUNT", 1))
		header.WriteString(strCard("EXTNAME", h.name))
		header.WriteString(intCard("EXTVER", h.version))
		header.WriteString(bareCard("END"))
		buf = padToBlock(append(buf, header.String()...), ' ')

		data := make([]byte, h.data.ByteSize())
		copy(data, h.data.Bytes())
		swapEndian(data, h.data.DType().Size())
		buf = padToBlock(append(buf, data...), 0)
	}

	n, err := w.Write(buf)
	if err != nil {
		return int64(n), fmt.Errorf("writing FITS stream: %w", err)
	}
	return int64(n), nil
}

// header holds the parsed keywords of one HDU.
type header struct {
	bitpix  int
	naxis   []int
	extname string
	extver  int
	primary bool
}

// parseHeader reads 2880-byte header blocks from data until the END
// card, returning the parsed keywords and the offset just past the
// final header block.
func parseHeader(data []byte, offset int) (header, int, error) {
	h := header{extver: 1}
	naxisCount := -1

	for {
		if offset+blockSize > len(data) {
			return h, 0, fmt.Errorf("truncated header at offset %d", offset)
		}
		block := data[offset : offset+blockSize]
		offset += blockSize

		for at := 0; at < blockSize; at += cardSize {
			text := string(block[at : at+cardSize])
			keyword := strings.TrimSpace(text[:8])
			if keyword == "END" {
				if naxisCount >= 0 && len(h.naxis) != naxisCount {
					return h, 0, fmt.Errorf("header declares NAXIS=%d but carries %d axis cards",
						naxisCount, len(h.naxis))
				}
				return h, offset, nil
			}
			if keyword == "" || text[8:10] != "= " {
				continue
			}
			value := cardValue(text[10:])

			switch {
			case keyword == "SIMPLE":
				h.primary = true
			case keyword == "BITPIX":
				n, err := strconv.Atoi(value)
				if err != nil {
					return h, 0, fmt.Errorf("bad BITPIX %q", value)
				}
				h.bitpix = n
			case keyword == "NAXIS":
				n, err := strconv.Atoi(value)
				if err != nil || n < 0 {
					return h, 0, fmt.Errorf("bad NAXIS %q", value)
				}
				naxisCount = n
				h.naxis = make([]int, 0, n)
			case strings.HasPrefix(keyword, "NAXIS"):
				n, err := strconv.Atoi(value)
				if err != nil || n < 0 {
					return h, 0, fmt.Errorf("bad %s %q", keyword, value)
				}
				h.naxis = append(h.naxis, n)
			case keyword == "EXTNAME":
				h.extname = value
			case keyword == "EXTVER":
				n, err := strconv.Atoi(value)
				if err != nil {
					return h, 0, fmt.Errorf("bad EXTVER %q", value)
				}
				h.extver = n
			}
		}
	}
}

// cardValue extracts the value field of a card body: a quoted string
// without its quotes, or a bare token with any trailing comment
// stripped.
func cardValue(body string) string {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "'") {
		if end := strings.Index(trimmed[1:], "'"); end >= 0 {
			return strings.TrimRight(trimmed[1:1+end], " ")
		}
		return strings.TrimSpace(trimmed[1:])
	}
	if slash := strings.Index(trimmed, "/"); slash >= 0 {
		trimmed = trimmed[:slash]
	}
	return strings.TrimSpace(trimmed)
}

// ReadFrom parses a FITS stream into an HDUList. The primary HDU's
// keywords are validated and its data, if any, skipped; every IMAGE
// extension becomes a section. Data is converted to little-endian
// into fresh buffers.
func ReadFrom(r io.Reader) (*HDUList, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading FITS stream: %w", err)
	}
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("stream length %d is not a multiple of %d", len(data), blockSize)
	}

	list := NewHDUList()
	offset := 0
	for index := 0; offset < len(data); index++ {
		h, dataStart, err := parseHeader(data, offset)
		if err != nil {
			return nil, fmt.Errorf("HDU %d: %w", index, err)
		}
		if index == 0 && !h.primary {
			return nil, fmt.Errorf("primary HDU lacks SIMPLE card")
		}

		dtype, err := dtypeFor(h.bitpix)
		if err != nil && len(h.naxis) > 0 {
			return nil, fmt.Errorf("HDU %d: %w", index, err)
		}

		elements := 1
		for _, n := range h.naxis {
			elements *= n
		}
		byteSize := 0
		if len(h.naxis) > 0 {
			byteSize = elements * dtype.Size()
		}
		dataEnd := dataStart + byteSize
		if dataEnd > len(data) {
			return nil, fmt.Errorf("HDU %d: data extends past end of stream", index)
		}

		if len(h.naxis) > 0 && h.extname != "" {
			raw := make([]byte, byteSize)
			copy(raw, data[dataStart:dataEnd])
			swapEndian(raw, dtype.Size())

			// Reverse NAXISn back into row-major shape.
			shape := make([]int, len(h.naxis))
			for i, n := range h.naxis {
				shape[len(shape)-1-i] = n
			}
			arr, err := ndarray.FromBytes(dtype, shape, raw)
			if err != nil {
				return nil, fmt.Errorf("HDU %d: %w", index, err)
			}
			list.Append(h.extname, h.extver, arr)
		}

		offset = dataEnd
		for offset%blockSize != 0 {
			offset++
		}
	}
	return list, nil
}
