// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// strata inspects and rewrites strata container files.
//
// Usage:
//
//	strata info FILE
//	strata extract FILE SOURCE [-o OUT]
//	strata to-yaml FILE
//	strata defragment FILE -o OUT
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/strata/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

const usage = `strata - inspect and rewrite strata container files

USAGE
    strata info FILE            show the tree summary and block table
    strata extract FILE SOURCE  write one block's raw payload
    strata to-yaml FILE         print the document with all arrays inline
    strata defragment FILE -o OUT
                                rewrite without padding or dead blocks

    strata version              print build version information

Run "strata COMMAND --help" for command flags.
`

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("missing command")
	}
	switch args[0] {
	case "info":
		return runInfo(args[1:])
	case "extract":
		return runExtract(args[1:])
	case "to-yaml":
		return runToYAML(args[1:])
	case "defragment":
		return runDefragment(args[1:])
	case "help", "--help", "-h":
		fmt.Print(usage)
		return nil
	case "version", "--version":
		fmt.Printf("strata %s\n", version.Info())
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// newFlagSet builds a flag set with the shared --verbose flag and a
// help error mode matching the other subcommands.
func newFlagSet(name string, verbose *bool) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.BoolVarP(verbose, "verbose", "v", false, "log debug detail to stderr")
	return flagSet
}

// newLogger returns the subcommand logger. Debug records are shown
// only with --verbose.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
