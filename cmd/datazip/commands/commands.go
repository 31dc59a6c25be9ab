// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the datazip command tree: inspection (ls,
// cat, info, verify, image) and in-place edits through Replace (put,
// rm).
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/datazip/cmd/datazip/cli"
	"github.com/bureau-foundation/datazip/lib/version"
)

// Root builds the command tree writing to the process's stdout and
// stderr.
func Root() *cli.Command {
	return New(os.Stdout, os.Stderr)
}

// New builds the command tree with explicit output streams.
func New(stdout, stderr io.Writer) *cli.Command {
	out := &streams{stdout: stdout, stderr: stderr}
	return &cli.Command{
		Name:   "datazip",
		Stderr: stderr,
		Description: `datazip: inspect and edit object-graph zip archives.

An archive holds named values: scalars and containers in a JSON
manifest, tables as parquet, numeric arrays as npy, and opaque images
as CBOR. Every archive records blake3 checksums of its entries.`,
		Subcommands: []*cli.Command{
			lsCommand(out),
			catCommand(out),
			infoCommand(out),
			verifyCommand(out),
			imageCommand(out),
			putCommand(out),
			rmCommand(out),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Fprintf(stdout, "datazip %s\n", version.Full())
					return nil
				},
			},
		},
	}
}

type streams struct {
	stdout io.Writer
	stderr io.Writer
}
