// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/bureau-foundation/strata/lib/block"
	"github.com/bureau-foundation/strata/lib/container"
)

func runExtract(args []string) error {
	var verbose bool
	var output string
	flagSet := newFlagSet("extract", &verbose)
	flagSet.StringVarP(&output, "output", "o", "", "write the payload to this file instead of stdout")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 2 {
		return fmt.Errorf("extract: expected FILE and SOURCE arguments")
	}
	path := flagSet.Arg(0)
	logger := newLogger(verbose)

	src, err := block.ParseSource(flagSet.Arg(1))
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := container.Decode(data, container.ReadOptions{})
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}

	b, err := doc.Manager().GetBlock(src)
	if err != nil {
		return err
	}
	logger.Debug("resolved block", "source", src.String(), "bytes", b.Size())

	if output == "" {
		_, err := os.Stdout.Write(b.Data())
		return err
	}
	return os.WriteFile(output, b.Data(), 0o644)
}
