// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"strings"
	"testing"

	"github.com/bureau-foundation/datazip/cmd/datazip/cli"
	"github.com/bureau-foundation/datazip/cmd/datazip/commands"
)

// TestCommandTreeDocumented walks the production command tree and
// checks that every runnable command has a summary for the parent's
// help listing and a usage line naming its arguments.
func TestCommandTreeDocumented(t *testing.T) {
	walkCommands(commands.Root(), nil, func(command *cli.Command, path []string) {
		if command.Run == nil {
			return
		}
		name := strings.Join(path, " ")
		if command.Summary == "" {
			t.Errorf("%s: missing Summary", name)
		}
		if command.Args != nil && command.Usage == "" {
			t.Errorf("%s: takes arguments but has no Usage", name)
		}
	})
}

func walkCommands(command *cli.Command, path []string, visit func(*cli.Command, []string)) {
	current := append(append([]string(nil), path...), command.Name)
	visit(command, current)
	for _, sub := range command.Subcommands {
		walkCommands(sub, current, visit)
	}
}
