// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/strata/lib/ndarray"
)

// ndarrayTag marks array descriptor mappings in the document tree.
const ndarrayTag = "!ndarray"

// arrayDescriptor is the decoded form of an !ndarray mapping. Exactly
// one of source and data is present: source for internal and external
// blocks, data for inline literals.
type arrayDescriptor struct {
	source    any // int or string, nil when inline
	data      *yaml.Node
	dtype     ndarray.DType
	shape     []int
	offset    int
	byteorder string
}

// encodeTree renders the document tree as a YAML document body.
// arrayNode is called for every *ndarray.Array leaf and returns its
// descriptor node. Map keys are emitted sorted, so the same tree
// always produces identical bytes.
func encodeTree(root any, arrayNode func(*ndarray.Array) (*yaml.Node, error)) (*yaml.Node, error) {
	return buildNode(root, arrayNode)
}

func buildNode(value any, arrayNode func(*ndarray.Array) (*yaml.Node, error)) (*yaml.Node, error) {
	switch v := value.(type) {
	case nil:
		return scalarNode("!!null", "null"), nil
	case string:
		return scalarNode("!!str", v), nil
	case bool:
		return scalarNode("!!bool", strconv.FormatBool(v)), nil
	case int:
		return scalarNode("!!int", strconv.Itoa(v)), nil
	case int64:
		return scalarNode("!!int", strconv.FormatInt(v, 10)), nil
	case uint64:
		return scalarNode("!!int", strconv.FormatUint(v, 10)), nil
	case float64:
		return floatNode(v), nil
	case float32:
		return floatNode(float64(v)), nil

	case *ndarray.Array:
		return arrayNode(v)

	case Tagged:
		node, err := buildNode(v.Value, arrayNode)
		if err != nil {
			return nil, err
		}
		node.Tag = v.Tag
		return node, nil

	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range keys {
			child, err := buildNode(v[k], arrayNode)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, scalarNode("!!str", k), child)
		}
		return node, nil

	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v {
			child, err := buildNode(item, arrayNode)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, child)
		}
		return node, nil

	default:
		return nil, fmt.Errorf("tree value of unsupported type %T", value)
	}
}

func scalarNode(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

// floatNode renders a float with YAML 1.1 spellings for the
// non-finite values.
func floatNode(v float64) *yaml.Node {
	switch {
	case math.IsNaN(v):
		return scalarNode("!!float", ".nan")
	case math.IsInf(v, 1):
		return scalarNode("!!float", ".inf")
	case math.IsInf(v, -1):
		return scalarNode("!!float", "-.inf")
	default:
		return scalarNode("!!float", strconv.FormatFloat(v, 'g', -1, 64))
	}
}

// descriptorNode renders one array's !ndarray descriptor. For inline
// storage, data holds the literal elements; otherwise source is the
// block address (integer or scheme string) and offset the view's byte
// offset within the block payload.
func descriptorNode(arr *ndarray.Array, source any, inline bool) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: ndarrayTag}

	appendEntry := func(key string, value *yaml.Node) {
		node.Content = append(node.Content, scalarNode("!!str", key), value)
	}

	if inline {
		appendEntry("data", inlineDataNode(arr))
	} else {
		switch src := source.(type) {
		case int:
			appendEntry("source", scalarNode("!!int", strconv.Itoa(src)))
		case string:
			appendEntry("source", scalarNode("!!str", src))
		default:
			return nil, fmt.Errorf("descriptor source of unsupported type %T", source)
		}
	}

	appendEntry("dtype", scalarNode("!!str", arr.DType().String()))

	shape := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
	for _, dim := range arr.Shape() {
		shape.Content = append(shape.Content, scalarNode("!!int", strconv.Itoa(dim)))
	}
	appendEntry("shape", shape)

	if !inline {
		if arr.Offset() != 0 {
			appendEntry("offset", scalarNode("!!int", strconv.Itoa(arr.Offset())))
		}
		appendEntry("byteorder", scalarNode("!!str", "little"))
	}

	return node, nil
}

// inlineDataNode renders the array elements as a flat flow sequence.
// Integer dtypes emit exact values; floats use the shortest
// round-tripping representation; complex elements are strings in
// "(re+imi)" form.
func inlineDataNode(arr *ndarray.Array) *yaml.Node {
	node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
	for i := 0; i < arr.Len(); i++ {
		var child *yaml.Node
		switch {
		case arr.DType().IsComplex():
			child = scalarNode("!!str", strconv.FormatComplex(arr.Complex128At(i), 'g', -1, 128))
		case arr.DType().IsFloat():
			child = floatNode(arr.Float64At(i))
		case arr.DType().IsUnsigned():
			child = scalarNode("!!int", strconv.FormatUint(arr.Uint64At(i), 10))
		default:
			child = scalarNode("!!int", strconv.FormatInt(arr.Int64At(i), 10))
		}
		node.Content = append(node.Content, child)
	}
	return node
}

// decodeTree converts a parsed YAML document back into a tree,
// calling arrayFor to materialize every !ndarray descriptor.
func decodeTree(node *yaml.Node, arrayFor func(arrayDescriptor) (*ndarray.Array, error)) (any, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return decodeTree(node.Content[0], arrayFor)

	case yaml.AliasNode:
		return decodeTree(node.Alias, arrayFor)

	case yaml.MappingNode:
		if node.Tag == ndarrayTag {
			desc, err := parseDescriptor(node)
			if err != nil {
				return nil, err
			}
			return arrayFor(desc)
		}
		result := make(map[string]any, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			value, err := decodeTree(node.Content[i+1], arrayFor)
			if err != nil {
				return nil, err
			}
			result[key] = value
		}
		if customTag(node.Tag) {
			return Tagged{Tag: node.Tag, Value: result}, nil
		}
		return result, nil

	case yaml.SequenceNode:
		result := make([]any, 0, len(node.Content))
		for _, item := range node.Content {
			value, err := decodeTree(item, arrayFor)
			if err != nil {
				return nil, err
			}
			result = append(result, value)
		}
		if customTag(node.Tag) {
			return Tagged{Tag: node.Tag, Value: result}, nil
		}
		return result, nil

	case yaml.ScalarNode:
		if customTag(node.Tag) {
			// Re-resolve the scalar without its custom tag, then wrap.
			plain := *node
			plain.Tag = ""
			var value any
			if err := plain.Decode(&value); err != nil {
				return nil, fmt.Errorf("line %d: decoding tagged scalar: %w", node.Line, err)
			}
			return Tagged{Tag: node.Tag, Value: value}, nil
		}
		var value any
		if err := node.Decode(&value); err != nil {
			return nil, fmt.Errorf("line %d: decoding scalar: %w", node.Line, err)
		}
		return value, nil

	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node kind %d", node.Line, node.Kind)
	}
}

// customTag reports whether tag is a user tag ("!foo") rather than a
// standard YAML tag ("!!str" and friends).
func customTag(tag string) bool {
	if tag == "" {
		return false
	}
	return tag[0] == '!' && (len(tag) < 2 || tag[1] != '!')
}

// parseDescriptor reads the fields of an !ndarray mapping.
func parseDescriptor(node *yaml.Node) (arrayDescriptor, error) {
	var desc arrayDescriptor
	desc.byteorder = "little"
	dtypeSet := false

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		value := node.Content[i+1]
		switch key {
		case "source":
			var v any
			plain := *value
			plain.Tag = ""
			if err := plain.Decode(&v); err != nil {
				return desc, fmt.Errorf("line %d: descriptor source: %w", value.Line, err)
			}
			desc.source = v
		case "data":
			desc.data = value
		case "dtype":
			d, err := ndarray.ParseDType(value.Value)
			if err != nil {
				return desc, fmt.Errorf("line %d: %w", value.Line, err)
			}
			desc.dtype = d
			dtypeSet = true
		case "shape":
			for _, dim := range value.Content {
				n, err := strconv.Atoi(dim.Value)
				if err != nil || n < 0 {
					return desc, fmt.Errorf("line %d: bad shape dimension %q", dim.Line, dim.Value)
				}
				desc.shape = append(desc.shape, n)
			}
		case "offset":
			n, err := strconv.Atoi(value.Value)
			if err != nil || n < 0 {
				return desc, fmt.Errorf("line %d: bad offset %q", value.Line, value.Value)
			}
			desc.offset = n
		case "byteorder":
			desc.byteorder = value.Value
		default:
			return desc, fmt.Errorf("line %d: unknown descriptor field %q", node.Content[i].Line, key)
		}
	}

	if !dtypeSet {
		return desc, fmt.Errorf("line %d: descriptor has no dtype", node.Line)
	}
	if desc.source == nil && desc.data == nil {
		return desc, fmt.Errorf("line %d: descriptor has neither source nor data", node.Line)
	}
	if desc.source != nil && desc.data != nil {
		return desc, fmt.Errorf("line %d: descriptor has both source and data", node.Line)
	}
	if desc.byteorder != "little" {
		return desc, fmt.Errorf("line %d: unsupported byteorder %q", node.Line, desc.byteorder)
	}
	return desc, nil
}

// inlineArray materializes an inline descriptor's literal data.
func inlineArray(desc arrayDescriptor) (*ndarray.Array, error) {
	arr := ndarray.New(desc.dtype, desc.shape...)
	items := desc.data.Content
	if len(items) != arr.Len() {
		return nil, fmt.Errorf("inline array has %d values for shape %v (%d elements)",
			len(items), desc.shape, arr.Len())
	}
	for i, item := range items {
		switch {
		case desc.dtype.IsComplex():
			v, err := strconv.ParseComplex(item.Value, 128)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad inline value %q: %w", item.Line, item.Value, err)
			}
			arr.SetComplex128At(i, v)
		case desc.dtype.IsFloat():
			v, err := parseYAMLFloat(item.Value)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad inline value %q: %w", item.Line, item.Value, err)
			}
			arr.SetFloat64At(i, v)
		case desc.dtype.IsUnsigned():
			v, err := strconv.ParseUint(item.Value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad inline value %q: %w", item.Line, item.Value, err)
			}
			arr.SetUint64At(i, v)
		default:
			v, err := strconv.ParseInt(item.Value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad inline value %q: %w", item.Line, item.Value, err)
			}
			arr.SetInt64At(i, v)
		}
	}
	return arr, nil
}

// parseYAMLFloat parses a float scalar, accepting the YAML 1.1
// non-finite spellings.
func parseYAMLFloat(s string) (float64, error) {
	switch s {
	case ".nan", ".NaN", ".NAN":
		return math.NaN(), nil
	case ".inf", ".Inf", ".INF", "+.inf":
		return math.Inf(1), nil
	case "-.inf", "-.Inf", "-.INF":
		return math.Inf(-1), nil
	}
	return strconv.ParseFloat(s, 64)
}
