// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package embed stores a whole document inside a foreign host
// container. The host keeps its own sections; the document's base
// stream is packed into one additional byte section, and arrays that
// alias a host section's buffer are addressed by scheme reference
// instead of being copied into internal blocks.
package embed

import (
	"errors"
	"fmt"
	"io"

	"github.com/bureau-foundation/strata/lib/block"
	"github.com/bureau-foundation/strata/lib/container"
	"github.com/bureau-foundation/strata/lib/fitsio"
	"github.com/bureau-foundation/strata/lib/ndarray"
)

// SectionName is the host section holding the embedded base stream.
const SectionName = "STRATA"

// Scheme is the source scheme for host-section references.
const Scheme = "fits"

// fitsHandler resolves fits:NAME[,VERSION] sources against a host
// container and aliases arrays whose buffers belong to host sections.
// Wrapped blocks are cached per buffer identity, so repeated
// resolution of one section yields one block.
type fitsHandler struct {
	container fitsio.Container
	wrapped   map[ndarray.BufferID]*block.Block
}

func newFITSHandler(c fitsio.Container) *fitsHandler {
	return &fitsHandler{
		container: c,
		wrapped:   make(map[ndarray.BufferID]*block.Block),
	}
}

func (h *fitsHandler) Scheme() string {
	return Scheme
}

// wrap returns the external block aliasing a host section's buffer.
func (h *fitsHandler) wrap(section fitsio.Section) *block.Block {
	arr := section.Data()
	if b, ok := h.wrapped[arr.Base()]; ok {
		return b
	}
	b := block.New(block.StorageExternal, arr.Buffer(), arr.DType(), arr.Shape())
	h.wrapped[arr.Base()] = b
	return b
}

func (h *fitsHandler) ResolveSource(src block.Source) (*block.Block, bool, error) {
	if src.Scheme() != Scheme {
		return nil, false, nil
	}
	section, err := h.container.Section(src.Name(), src.Version())
	if err != nil {
		return nil, true, &block.AddressError{
			Source: src.String(),
			Reason: "host container has no matching section",
		}
	}
	return h.wrap(section), true, nil
}

func (h *fitsHandler) IdentifySource(b *block.Block) (block.Source, bool, error) {
	mine := false
	for _, wrapped := range h.wrapped {
		if wrapped == b {
			mine = true
			break
		}
	}
	if !mine {
		return block.Source{}, false, nil
	}
	for _, section := range h.container.Sections() {
		if section.Data().Base() == b.Buffer().ID() {
			return block.External(Scheme, section.Name(), section.Version()), true, nil
		}
	}
	return block.Source{}, true, fmt.Errorf("identifying block: %w", block.ErrResourceRemoved)
}

func (h *fitsHandler) BindArray(arr *ndarray.Array) (*block.Block, bool) {
	for _, section := range h.container.Sections() {
		if section.Name() == SectionName {
			continue
		}
		if section.Data().Base() == arr.Base() {
			return h.wrap(section), true
		}
	}
	return nil, false
}

// File is a document embedded in a host container.
type File struct {
	*container.Document
	host fitsio.Container
}

// New wraps a host container with an empty tree. Arrays placed in the
// tree that share a host section's buffer are stored by reference.
func New(host fitsio.Container, tree any) *File {
	m := block.NewManager()
	m.AddHandler(newFITSHandler(host))
	return &File{
		Document: container.NewWithManager(tree, m),
		host:     host,
	}
}

// Read decodes the document embedded in a host container. A host
// without the payload section yields an empty document over that
// host, ready for writing.
func Read(host fitsio.Container, opts container.ReadOptions) (*File, error) {
	m := block.NewManager()
	m.AddHandler(newFITSHandler(host))

	section, err := host.Section(SectionName, 0)
	if errors.Is(err, fitsio.ErrNoSection) {
		return &File{
			Document: container.NewWithManager(map[string]any{}, m),
			host:     host,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	payload := section.Data()
	if payload.DType() != ndarray.Uint8 {
		return nil, fmt.Errorf("embedded section has dtype %s, want uint8", payload.DType())
	}

	doc, err := container.DecodeWithManager(payload.Bytes(), opts, m)
	if err != nil {
		return nil, fmt.Errorf("decoding embedded stream: %w", err)
	}
	return &File{Document: doc, host: host}, nil
}

// Update re-encodes the document and swaps the result into the host's
// payload section. The stream is staged fully in memory first, so the
// host section is either the old content or the complete new content,
// never a partial write.
func (f *File) Update(opts container.WriteOptions) error {
	data, err := f.Document.Encode(opts)
	if err != nil {
		return err
	}
	payload, err := ndarray.FromBytes(ndarray.Uint8, []int{len(data)}, data)
	if err != nil {
		return err
	}
	f.host.PutSection(SectionName, payload)
	return nil
}

// WriteTo updates the payload section and writes the whole host
// container, host sections included, to w.
func (f *File) WriteTo(w io.Writer, opts container.WriteOptions) (int64, error) {
	if err := f.Update(opts); err != nil {
		return 0, err
	}
	writer, ok := f.host.(io.WriterTo)
	if !ok {
		return 0, fmt.Errorf("host container is not writable: %w", container.ErrUnsupportedOperation)
	}
	return writer.WriteTo(w)
}

// WriteToStream is the append-mode write of a bare stream. An
// embedded document lives inside its host's structure and cannot be
// appended to a sink.
func (f *File) WriteToStream(w io.Writer, opts container.WriteOptions) (int64, error) {
	return 0, fmt.Errorf("streaming write of embedded document: %w", container.ErrUnsupportedOperation)
}

// Host returns the container the document is embedded in.
func (f *File) Host() fitsio.Container {
	return f.host
}
