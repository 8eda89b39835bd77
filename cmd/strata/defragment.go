// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/bureau-foundation/strata/lib/container"
)

func runDefragment(args []string) error {
	var verbose bool
	var output string
	flagSet := newFlagSet("defragment", &verbose)
	flagSet.StringVarP(&output, "output", "o", "", "destination file (required)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return fmt.Errorf("defragment: expected exactly one FILE argument")
	}
	if output == "" {
		return fmt.Errorf("defragment: --output is required")
	}
	path := flagSet.Arg(0)
	logger := newLogger(verbose)

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := container.Decode(data, container.ReadOptions{ValidateChecksums: true})
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}

	// Re-encoding with default options drops unreferenced blocks and
	// reserves no padding slack.
	compacted, err := doc.Encode(container.WriteOptions{})
	if err != nil {
		return err
	}
	logger.Debug("defragmented", "before", len(data), "after", len(compacted))

	return os.WriteFile(output, compacted, 0o644)
}
