// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package block

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Source is the address of a block within a document. It is either
// internal — a zero-based position in the document's own block
// section — or external: a scheme-prefixed name (plus optional
// version) resolved by a registered scheme handler, for payloads
// hosted outside the document.
//
// The serialized forms are a bare non-negative integer for internal
// sources and `scheme ":" name ["," version]` for external ones.
type Source struct {
	scheme  string // "" for internal sources
	index   int
	name    string
	version int // 0 = unspecified (first match by name)
}

// Internal returns the source addressing position index in the
// document's block section.
func Internal(index int) Source {
	return Source{index: index}
}

// External returns a scheme-addressed source. Version 0 means "first
// section matching name".
func External(scheme, name string, version int) Source {
	return Source{scheme: scheme, name: name, version: version}
}

// IsInternal reports whether the source addresses the document's own
// block section.
func (s Source) IsInternal() bool {
	return s.scheme == ""
}

// Index returns the block section position. Only meaningful for
// internal sources.
func (s Source) Index() int {
	return s.index
}

// Scheme returns the addressing scheme, or "" for internal sources.
func (s Source) Scheme() string {
	return s.scheme
}

// Name returns the host section name of an external source.
func (s Source) Name() string {
	return s.name
}

// Version returns the host section version of an external source;
// 0 means unspecified.
func (s Source) Version() int {
	return s.version
}

// String returns the serialized form stored in array descriptors.
func (s Source) String() string {
	if s.IsInternal() {
		return strconv.Itoa(s.index)
	}
	if s.version > 0 {
		return fmt.Sprintf("%s:%s,%d", s.scheme, s.name, s.version)
	}
	return s.scheme + ":" + s.name
}

// AddressError reports a source identifier that does not resolve:
// malformed grammar, an unknown scheme, an out-of-range block index,
// or a block that is not a member of its registry.
type AddressError struct {
	Source string
	Reason string
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("source %q does not resolve: %s", e.Source, e.Reason)
}

// ParseSource parses the serialized source grammar: a bare
// non-negative integer, or `scheme ":" name ["," version]`. Strings
// that are neither fail with an AddressError.
func ParseSource(text string) (Source, error) {
	if text == "" {
		return Source{}, &AddressError{Source: text, Reason: "empty source"}
	}

	if index, err := strconv.Atoi(text); err == nil {
		if index < 0 {
			return Source{}, &AddressError{Source: text, Reason: "negative block index"}
		}
		return Internal(index), nil
	}

	colon := strings.IndexByte(text, ':')
	if colon <= 0 {
		return Source{}, &AddressError{Source: text, Reason: "neither a block index nor scheme:name"}
	}

	scheme := text[:colon]
	if !validScheme(scheme) {
		return Source{}, &AddressError{Source: text, Reason: fmt.Sprintf("invalid scheme %q", scheme)}
	}

	rest := text[colon+1:]
	name := rest
	version := 0
	if comma := strings.IndexByte(rest, ','); comma >= 0 {
		name = rest[:comma]
		v, err := strconv.Atoi(rest[comma+1:])
		if err != nil || v < 1 {
			return Source{}, &AddressError{Source: text, Reason: "version must be a positive integer"}
		}
		version = v
	}
	if name == "" {
		return Source{}, &AddressError{Source: text, Reason: "empty section name"}
	}

	return External(scheme, name, version), nil
}

// SourceFromValue converts a decoded tree value (an integer or a
// string, depending on how the descriptor was written) to a Source.
func SourceFromValue(v any) (Source, error) {
	switch value := v.(type) {
	case int:
		if value < 0 {
			return Source{}, &AddressError{Source: strconv.Itoa(value), Reason: "negative block index"}
		}
		return Internal(value), nil
	case int64:
		if value < 0 {
			return Source{}, &AddressError{Source: strconv.FormatInt(value, 10), Reason: "negative block index"}
		}
		return Internal(int(value)), nil
	case uint64:
		if value > math.MaxInt {
			return Source{}, &AddressError{Source: strconv.FormatUint(value, 10), Reason: "block index out of range"}
		}
		return Internal(int(value)), nil
	case string:
		return ParseSource(value)
	default:
		return Source{}, &AddressError{
			Source: fmt.Sprintf("%v", v),
			Reason: fmt.Sprintf("source must be an integer or string, not %T", v),
		}
	}
}

// validScheme reports whether s is a well-formed scheme: a lowercase
// letter followed by lowercase letters, digits, "+", "-", or ".".
func validScheme(s string) bool {
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return len(s) > 0
}
