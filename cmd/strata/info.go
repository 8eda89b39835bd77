// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/bureau-foundation/strata/lib/container"
	"github.com/bureau-foundation/strata/lib/ndarray"
)

func runInfo(args []string) error {
	var verbose bool
	var validate bool
	flagSet := newFlagSet("info", &verbose)
	flagSet.BoolVar(&validate, "validate", false, "verify block checksums while reading")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return fmt.Errorf("info: expected exactly one FILE argument")
	}
	path := flagSet.Arg(0)
	logger := newLogger(verbose)

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	logger.Debug("read container", "path", path, "bytes", len(data))

	doc, err := container.Decode(data, container.ReadOptions{ValidateChecksums: validate})
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}

	fmt.Printf("%s: %d bytes\n\ntree:\n", path, len(data))
	summarize(doc, "", doc.Tree())

	registry := doc.Manager().Registry()
	if registry.Len() == 0 {
		fmt.Println("\nno internal blocks")
		return nil
	}
	fmt.Println("\nblocks:")
	table := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(table, "  INDEX\tSTORAGE\tCODEC\tDATA\tALLOCATED")
	for i, b := range registry.Blocks() {
		codec := b.Compression()
		if codec == "" {
			codec = "-"
		}
		fmt.Fprintf(table, "  %d\t%s\t%s\t%d\t%d\n",
			i, b.Storage(), codec, b.Size(), b.Allocated())
	}
	return table.Flush()
}

// summarize prints one line per tree node, arrays as dtype and shape.
func summarize(doc *container.Document, path string, value any) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			summarize(doc, path+"/"+key, v[key])
		}
	case []any:
		for i, item := range v {
			summarize(doc, fmt.Sprintf("%s[%d]", path, i), item)
		}
	case container.Tagged:
		fmt.Printf("  %s: %s\n", path, v.Tag)
		summarize(doc, path, v.Value)
	case *ndarray.Array:
		location := "inline"
		if b, ok := doc.Manager().Registry().BlockForBuffer(v.Base()); ok {
			location = b.Storage().String()
			if b.Compression() != "" {
				location += "," + b.Compression()
			}
		}
		fmt.Printf("  %s: ndarray %s%v (%s)\n", path, v.DType(), v.Shape(), location)
	default:
		fmt.Printf("  %s: %v\n", path, v)
	}
}
