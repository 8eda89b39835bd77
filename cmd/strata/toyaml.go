// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/bureau-foundation/strata/lib/block"
	"github.com/bureau-foundation/strata/lib/container"
)

func runToYAML(args []string) error {
	var verbose bool
	flagSet := newFlagSet("to-yaml", &verbose)
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return fmt.Errorf("to-yaml: expected exactly one FILE argument")
	}
	path := flagSet.Arg(0)
	logger := newLogger(verbose)

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := container.Decode(data, container.ReadOptions{})
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	logger.Debug("decoded container", "blocks", doc.Manager().Registry().Len())

	tree, err := doc.TreeDocument(container.WriteOptions{
		AllArrayStorage: block.StorageInline,
	})
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(tree)
	return err
}
