// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package block

import (
	"fmt"

	"github.com/bureau-foundation/strata/lib/ndarray"
)

// SchemeHandler extends a Manager's addressing with a source scheme.
// Handlers are consulted in registration order before the base
// registry; each method returns ok=false to mean "not mine", which
// falls through to the next handler and finally to the registry.
//
// The FITS embedding adapter (lib/embed) is the canonical handler: it
// resolves "fits:NAME,VERSION" sources into host container sections
// and aliases arrays whose buffers the host already owns.
type SchemeHandler interface {
	// Scheme returns the source scheme this handler claims.
	Scheme() string

	// ResolveSource returns the block for a source the handler
	// recognizes. ok=false falls through.
	ResolveSource(src Source) (*Block, bool, error)

	// IdentifySource returns the canonical source of a block the
	// handler created. ok=false falls through.
	IdentifySource(b *Block) (Source, bool, error)

	// BindArray returns a block aliasing storage the handler's host
	// already owns for this array's buffer, if any. ok=false falls
	// through to normal block creation.
	BindArray(arr *ndarray.Array) (*Block, bool)
}

// BindOptions control how FindOrCreateForArray chooses storage for
// newly created blocks. See container.WriteOptions, which maps onto
// this for a whole write pass.
type BindOptions struct {
	// Storage forces a storage kind for every array. StorageUnset
	// means no override.
	Storage Storage

	// Compression overrides the codec for newly created internal
	// blocks: "" means no override, "none" strips compression, any
	// other value is a codec name.
	Compression string

	// AutoInline stores arrays with fewer than this many elements
	// inline. The bound is exclusive: an array with exactly
	// AutoInline elements stays internal. Zero disables inlining.
	AutoInline int
}

// Manager orchestrates block creation and addressing for one
// document. Methods are not safe for concurrent use: the document
// owns the manager, and every mutation happens during a read, write,
// or update call on the calling goroutine.
type Manager struct {
	registry *Registry
	handlers []SchemeHandler

	// Per-array overrides, keyed by buffer identity. Set via
	// SetArrayStorage / SetArrayCompression; they beat every
	// document-wide option.
	storageOverride map[ndarray.BufferID]Storage
	codecOverride   map[ndarray.BufferID]string
}

// NewManager returns a manager with an empty registry and no scheme
// handlers.
func NewManager() *Manager {
	return &Manager{
		registry:        NewRegistry(),
		storageOverride: make(map[ndarray.BufferID]Storage),
		codecOverride:   make(map[ndarray.BufferID]string),
	}
}

// Registry returns the manager's block registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// AddHandler appends a scheme handler to the chain. Handlers are
// consulted in the order added.
func (m *Manager) AddHandler(h SchemeHandler) {
	m.handlers = append(m.handlers, h)
}

// SetArrayStorage forces a storage kind for the given array (and
// every view sharing its buffer) on subsequent writes.
func (m *Manager) SetArrayStorage(arr *ndarray.Array, storage Storage) {
	m.storageOverride[arr.Base()] = storage
}

// SetArrayCompression forces a codec for the given array's block on
// subsequent writes. Use "none" to strip compression.
func (m *Manager) SetArrayCompression(arr *ndarray.Array, codec string) {
	m.codecOverride[arr.Base()] = codec
}

// FindOrCreateForArray returns the block backing an array, creating
// one on first encounter. Within one document there is at most one
// block per distinct buffer identity: views over a shared buffer all
// resolve to the same block, across repeated writes.
//
// Storage for a new block is chosen by policy, in priority order:
// handler aliasing (host container owns the bytes), per-array
// override, document-wide override (opts.Storage), the auto-inline
// threshold, and finally the internal default.
func (m *Manager) FindOrCreateForArray(arr *ndarray.Array, opts BindOptions) (*Block, error) {
	for _, h := range m.handlers {
		if b, ok := h.BindArray(arr); ok {
			return b, nil
		}
	}

	desired := m.storageOverride[arr.Base()]
	if desired == StorageUnset {
		desired = opts.Storage
	}

	if b, ok := m.registry.BlockForBuffer(arr.Base()); ok {
		if desired == StorageUnset || desired == b.Storage() {
			m.applyCompression(b, arr.Base(), opts)
			return b, nil
		}
		// An override demands a different storage kind. Fall through
		// to create a replacement block; the stale binding is
		// overwritten below and the old block dropped by the next
		// Compact.
	}

	storage := desired
	if storage == StorageUnset {
		if opts.AutoInline > 0 && arr.Len() < opts.AutoInline {
			storage = StorageInline
		} else {
			storage = StorageInternal
		}
	}
	if storage == StorageExternal {
		// Plain external storage needs a host that owns the bytes,
		// which would have been caught by a handler's BindArray above.
		return nil, fmt.Errorf("array cannot be stored externally: no host container section shares its buffer")
	}

	b := New(storage, arr.Buffer(), arr.DType(), arr.Shape())
	m.applyCompression(b, arr.Base(), opts)

	if storage == StorageInternal {
		m.registry.Append(b)
	}
	m.registry.BindBuffer(arr.Base(), b)
	return b, nil
}

// applyCompression settles a block's codec from the per-array
// override (highest priority) or the document-wide option. "none"
// strips compression; "" leaves the block's current codec alone.
func (m *Manager) applyCompression(b *Block, id ndarray.BufferID, opts BindOptions) {
	if codec, ok := m.codecOverride[id]; ok {
		if codec == "none" {
			b.SetCompression("")
		} else {
			b.SetCompression(codec)
		}
		return
	}
	switch opts.Compression {
	case "":
	case "none":
		b.SetCompression("")
	default:
		b.SetCompression(opts.Compression)
	}
}

// GetBlock resolves a source identifier to a block. Scheme handlers
// are offered the source first; anything unclaimed falls through to
// the registry's integer addressing and fails with an AddressError if
// it is not a valid index.
func (m *Manager) GetBlock(src Source) (*Block, error) {
	for _, h := range m.handlers {
		b, ok, err := h.ResolveSource(src)
		if err != nil {
			return nil, err
		}
		if ok {
			return b, nil
		}
	}
	return m.registry.Resolve(src)
}

// GetSource returns the canonical source identifier of a block:
// handler-owned blocks identify through their handler, everything
// else through the registry's positional addressing.
func (m *Manager) GetSource(b *Block) (Source, error) {
	for _, h := range m.handlers {
		src, ok, err := h.IdentifySource(b)
		if err != nil {
			return Source{}, err
		}
		if ok {
			return src, nil
		}
	}
	return m.registry.Identify(b)
}
