// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestCommand_Execute_DispatchesToSubcommand(t *testing.T) {
	var called string

	root := &Command{
		Name: "datazip",
		Subcommands: []*Command{
			{Name: "ls", Run: func(args []string) error { called = "ls"; return nil }},
			{Name: "cat", Run: func(args []string) error { called = "cat"; return nil }},
		},
	}

	if err := root.Execute([]string{"cat"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "cat" {
		t.Errorf("dispatched to %q, want %q", called, "cat")
	}
}

func TestCommand_Execute_FlagParsing(t *testing.T) {
	var force bool
	var receivedArgs []string

	command := &Command{
		Name: "put",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("put", pflag.ContinueOnError)
			flagSet.BoolVar(&force, "force", false, "overwrite")
			return flagSet
		},
		Run: func(args []string) error {
			receivedArgs = args
			return nil
		},
	}

	if err := command.Execute([]string{"--force", "data.zip", "key"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !force {
		t.Error("--force was not parsed")
	}
	if strings.Join(receivedArgs, " ") != "data.zip key" {
		t.Errorf("args = %v, want [data.zip key]", receivedArgs)
	}
}

func TestCommand_Execute_UnknownCommandSuggests(t *testing.T) {
	root := &Command{
		Name:        "datazip",
		Stderr:      &bytes.Buffer{},
		Subcommands: []*Command{{Name: "verify", Run: func([]string) error { return nil }}},
	}

	err := root.Execute([]string{"verfy"})
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), `did you mean "verify"`) {
		t.Errorf("error = %q, want a suggestion for verify", err)
	}
}

func TestCommand_Execute_UnknownFlagSuggests(t *testing.T) {
	command := &Command{
		Name: "info",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("info", pflag.ContinueOnError)
			flagSet.Bool("json", false, "output as JSON")
			return flagSet
		},
		Run: func([]string) error { return nil },
	}

	err := command.Execute([]string{"--jsn"})
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
	if !strings.Contains(err.Error(), "did you mean --json") {
		t.Errorf("error = %q, want a suggestion for --json", err)
	}
}

func TestCommand_Execute_ArgsValidation(t *testing.T) {
	ran := false
	command := &Command{
		Name: "rm",
		Args: ExactArgs(2),
		Run:  func([]string) error { ran = true; return nil },
	}

	if err := command.Execute([]string{"data.zip"}); err == nil {
		t.Fatal("expected error for missing argument")
	}
	if ran {
		t.Error("Run called despite invalid arguments")
	}
	if err := command.Execute([]string{"data.zip", "key"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !ran {
		t.Error("Run not called")
	}
}

func TestCommand_Execute_HelpGoesToStderr(t *testing.T) {
	var stderr bytes.Buffer
	root := &Command{
		Name:   "datazip",
		Stderr: &stderr,
		Subcommands: []*Command{{
			Name:     "ls",
			Summary:  "List keys",
			Examples: []Example{{Description: "List a package", Command: "datazip ls data.zip"}},
			Run:      func([]string) error { return nil },
		}},
	}

	if err := root.Execute([]string{"ls", "--help"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	output := stderr.String()
	for _, want := range []string{"List keys", "Usage:\n  datazip ls [flags]", "# List a package"} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q:\n%s", want, output)
		}
	}
}

func TestCommand_Execute_SubcommandRequired(t *testing.T) {
	root := &Command{
		Name:        "datazip",
		Stderr:      &bytes.Buffer{},
		Subcommands: []*Command{{Name: "ls", Run: func([]string) error { return nil }}},
	}
	if err := root.Execute(nil); err == nil {
		t.Fatal("expected error when no subcommand is given")
	}
}

func TestExitError(t *testing.T) {
	var err error = &ExitError{Code: 2}
	coder, ok := err.(interface{ ExitCode() int })
	if !ok {
		t.Fatal("ExitError does not implement ExitCode")
	}
	if coder.ExitCode() != 2 {
		t.Errorf("ExitCode() = %d, want 2", coder.ExitCode())
	}
}

func TestWriteJSON_NilSlice(t *testing.T) {
	var buffer bytes.Buffer
	var keys []string
	if err := WriteJSON(&buffer, keys); err != nil {
		t.Fatalf("WriteJSON() error: %v", err)
	}
	if strings.TrimSpace(buffer.String()) != "[]" {
		t.Errorf("WriteJSON(nil slice) = %q, want []", buffer.String())
	}
}
