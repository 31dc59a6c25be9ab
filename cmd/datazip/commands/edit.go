// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/datazip/cmd/datazip/cli"
	"github.com/bureau-foundation/datazip/lib/datazip"
	"github.com/bureau-foundation/datazip/lib/jsontree"
)

// editFlags are shared by the commands that rewrite an archive.
type editFlags struct {
	commonFlags
	saveOld         bool
	overwriteBackup bool
}

func (e *editFlags) register(flagSet *pflag.FlagSet) {
	e.commonFlags.register(flagSet)
	flagSet.BoolVar(&e.saveOld, "save-old", false, "keep the previous archive as <stem>_old.zip")
	flagSet.BoolVar(&e.overwriteBackup, "overwrite-backup", false, "replace an existing <stem>_old.zip")
}

func (e *editFlags) options(s *session) ([]datazip.Option, error) {
	options, err := s.writeOptions()
	if err != nil {
		return nil, err
	}
	if e.saveOld {
		options = append(options, datazip.WithSaveOld(true))
	}
	if e.overwriteBackup {
		options = append(options, datazip.WithOverwrite())
	}
	return options, nil
}

// replace rewrites the archive at path with overrides and options,
// then closes it.
func (s *session) replace(path string, overrides []datazip.Entry, options []datazip.Option) error {
	archive, err := datazip.Replace(s.path(path), overrides, options...)
	if err != nil {
		return err
	}
	return archive.Close()
}

// parseValue reads a JSON or JSONC document and decodes it into a
// value. Tagged nodes ({"__tuple__": true, ...}) decode to their
// kinds, the same way the manifest does.
func parseValue(text []byte) (any, error) {
	return (&jsontree.Decoder{}).DecodeJSON(jsonc.ToJSON(text))
}

func putCommand(out *streams) *cli.Command {
	var flags editFlags
	var file string
	return &cli.Command{
		Name:    "put",
		Summary: "Set a key to a JSON value",
		Usage:   "datazip put ARCHIVE KEY [VALUE] [flags]",
		Description: `Set KEY to VALUE, a JSON document (comments and trailing commas are
allowed). An existing archive is rebuilt with KEY replaced in place
or appended; a missing one is created. The value may be given with
--file instead, where "-" reads standard input.`,
		Examples: []cli.Example{
			{Description: "Record a run label", Command: `datazip put results.zip label '"baseline"'`},
			{Description: "Store a tuple", Command: `datazip put results.zip shape '{"__tuple__": true, "items": [3, 4]}'`},
			{Description: "Read the value from a JSONC file", Command: "datazip put results.zip params --file params.jsonc"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("put", pflag.ContinueOnError)
			flags.register(flagSet)
			flagSet.StringVar(&file, "file", "", `read the value from a file ("-" for stdin)`)
			return flagSet
		},
		Args: func(args []string) error {
			switch {
			case file == "" && len(args) != 3:
				return fmt.Errorf("expected ARCHIVE KEY VALUE, got %d argument(s)", len(args))
			case file != "" && len(args) != 2:
				return fmt.Errorf("expected ARCHIVE KEY with --file, got %d argument(s)", len(args))
			}
			return nil
		},
		Run: func(args []string) error {
			s, err := flags.open(out, "put")
			if err != nil {
				return err
			}
			text, err := readValue(args, file)
			if err != nil {
				return err
			}
			value, err := parseValue(text)
			if err != nil {
				return fmt.Errorf("parsing value for %s: %w", args[1], err)
			}
			options, err := flags.options(s)
			if err != nil {
				return err
			}

			path := datazip.NormalizePath(s.path(args[0]))
			if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
				s.logger.Info("creating archive", "path", path)
				return create(path, args[1], value, options)
			}
			if err := s.replace(args[0], []datazip.Entry{{Name: args[1], Value: value}}, options); err != nil {
				return err
			}
			s.logger.Info("key set", "path", path, "key", args[1])
			return nil
		},
	}
}

func readValue(args []string, file string) ([]byte, error) {
	switch file {
	case "":
		return []byte(args[2]), nil
	case "-":
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(file)
}

func create(path, key string, value any, options []datazip.Option) error {
	archive, err := datazip.Create(path, options...)
	if err != nil {
		return err
	}
	if err := archive.Set(key, value); err != nil {
		archive.Abort()
		return err
	}
	return archive.Close()
}

func rmCommand(out *streams) *cli.Command {
	var flags editFlags
	return &cli.Command{
		Name:    "rm",
		Summary: "Remove keys from an archive",
		Usage:   "datazip rm ARCHIVE KEY... [flags]",
		Description: `Rebuild the archive without the named keys. Objects shared between a
removed key and a kept one stay in the archive.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("rm", pflag.ContinueOnError)
			flags.register(flagSet)
			return flagSet
		},
		Args: cli.MinimumArgs(2),
		Run: func(args []string) error {
			s, err := flags.open(out, "rm")
			if err != nil {
				return err
			}
			var missing []string
			err = s.readArchive(args[0], func(archive *datazip.Archive) error {
				for _, key := range args[1:] {
					if _, ok := archive.Kind(key); !ok {
						missing = append(missing, key)
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			if len(missing) > 0 {
				return fmt.Errorf("%w: %v", datazip.ErrKeyNotFound, missing)
			}

			options, err := flags.options(s)
			if err != nil {
				return err
			}
			options = append(options, datazip.WithOmit(args[1:]...))
			if err := s.replace(args[0], nil, options); err != nil {
				return err
			}
			s.logger.Info("keys removed", "path", s.path(args[0]), "keys", args[1:])
			return nil
		},
	}
}
