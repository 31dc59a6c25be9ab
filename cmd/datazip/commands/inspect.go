// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/datazip/cmd/datazip/cli"
	"github.com/bureau-foundation/datazip/lib/codec"
	"github.com/bureau-foundation/datazip/lib/datazip"
	"github.com/bureau-foundation/datazip/lib/persist"
)

// readArchive opens path for reading, runs fn and closes the archive.
func (s *session) readArchive(path string, fn func(*datazip.Archive) error) (err error) {
	archive, err := datazip.OpenFile(s.path(path), s.readOptions()...)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, archive.Close())
	}()
	return fn(archive)
}

type keyListing struct {
	Key  string `json:"key"`
	Kind string `json:"kind"`
}

func lsCommand(out *streams) *cli.Command {
	var common commonFlags
	var outputJSON, entries bool
	return &cli.Command{
		Name:    "ls",
		Summary: "List the keys of an archive",
		Usage:   "datazip ls ARCHIVE [flags]",
		Description: `List the top-level keys of an archive in insertion order, with the
storage kind of each: inline (JSON manifest), frame, series, array,
image or object. With --entries, list the raw zip entries instead.`,
		Examples: []cli.Example{
			{Description: "List the keys of results.zip", Command: "datazip ls results"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("ls", pflag.ContinueOnError)
			common.register(flagSet)
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			flagSet.BoolVar(&entries, "entries", false, "list zip entries instead of keys")
			return flagSet
		},
		Args: cli.ExactArgs(1),
		Run: func(args []string) error {
			s, err := common.open(out, "ls")
			if err != nil {
				return err
			}
			return s.readArchive(args[0], func(archive *datazip.Archive) error {
				if entries {
					names := archive.EntryNames()
					if outputJSON {
						return cli.WriteJSON(out.stdout, names)
					}
					for _, name := range names {
						fmt.Fprintln(out.stdout, name)
					}
					return nil
				}

				listing := make([]keyListing, 0, archive.Len())
				for _, key := range archive.Keys() {
					kind, _ := archive.Kind(key)
					listing = append(listing, keyListing{Key: key, Kind: kind})
				}
				if outputJSON {
					return cli.WriteJSON(out.stdout, listing)
				}
				tw := tabwriter.NewWriter(out.stdout, 2, 0, 3, ' ', 0)
				for _, item := range listing {
					fmt.Fprintf(tw, "%s\t%s\n", item.Key, item.Kind)
				}
				return tw.Flush()
			})
		},
	}
}

// indexPath turns command-line index elements into Get arguments:
// integers select sequence items, everything else is a map key.
func indexPath(key string, elements []string) []any {
	path := []any{key}
	for _, element := range elements {
		if n, err := strconv.Atoi(element); err == nil {
			path = append(path, n)
			continue
		}
		path = append(path, element)
	}
	return path
}

func catCommand(out *streams) *cli.Command {
	var common commonFlags
	return &cli.Command{
		Name:    "cat",
		Summary: "Print a decoded entry as JSON",
		Usage:   "datazip cat ARCHIVE KEY [INDEX...] [flags]",
		Description: `Decode one top-level entry and print it as JSON. Extra arguments index
into the decoded value: integers select sequence items (negative
counts from the end, after a "--"), anything else selects a map key.

Tables print as a summary of their shape, matrices in full, and
registered objects as their exported state.`,
		Examples: []cli.Example{
			{Description: "Print the second item of the runs list", Command: "datazip cat results.zip runs 1"},
			{Description: "Print the last item", Command: "datazip cat results.zip runs -- -1"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("cat", pflag.ContinueOnError)
			common.register(flagSet)
			return flagSet
		},
		Args: cli.MinimumArgs(2),
		Run: func(args []string) error {
			s, err := common.open(out, "cat")
			if err != nil {
				return err
			}
			return s.readArchive(args[0], func(archive *datazip.Archive) error {
				decoded, err := archive.Get(indexPath(args[1], args[2:])...)
				if err != nil {
					return err
				}
				rendered, err := render(decoded)
				if err != nil {
					return fmt.Errorf("rendering %s: %w", args[1], err)
				}
				_, err = fmt.Fprintf(out.stdout, "%s\n", rendered)
				return err
			})
		},
	}
}

type archiveInfo struct {
	Path           string            `json:"path"`
	FormatRevision int               `json:"format_revision"`
	Legacy         bool              `json:"legacy"`
	EngineVersion  string            `json:"engine_version,omitempty"`
	CreatedBy      string            `json:"created_by,omitempty"`
	CreatedAt      *time.Time        `json:"created_at,omitempty"`
	Keys           int               `json:"keys"`
	Entries        int               `json:"entries"`
	Extra          map[string]any    `json:"extra,omitempty"`
	Object         *objectInfo       `json:"object,omitempty"`
	Warnings       []string          `json:"warnings,omitempty"`
	Checksums      map[string]string `json:"checksums,omitempty"`
}

type objectInfo struct {
	TypeID     string   `json:"type_id"`
	LibVersion string   `json:"lib_version,omitempty"`
	Fields     []string `json:"fields"`
}

func infoCommand(out *streams) *cli.Command {
	var common commonFlags
	var outputJSON, checksums bool
	return &cli.Command{
		Name:    "info",
		Summary: "Show archive metadata",
		Usage:   "datazip info ARCHIVE [flags]",
		Description: `Show the metadata record of an archive: format revision, engine
version, creator and creation time. Archives written by the persist
package also show the saved object's type and fields.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("info", pflag.ContinueOnError)
			common.register(flagSet)
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			flagSet.BoolVar(&checksums, "checksums", false, "include entry checksums")
			return flagSet
		},
		Args: cli.ExactArgs(1),
		Run: func(args []string) error {
			s, err := common.open(out, "info")
			if err != nil {
				return err
			}
			var info archiveInfo
			err = s.readArchive(args[0], func(archive *datazip.Archive) error {
				metadata := archive.Metadata()
				info = archiveInfo{
					Path:           archive.Path(),
					FormatRevision: metadata.FormatRevision,
					Legacy:         metadata.Legacy(),
					EngineVersion:  metadata.EngineVersion,
					CreatedBy:      metadata.CreatedBy,
					Keys:           archive.Len(),
					Entries:        len(archive.EntryNames()),
					Extra:          metadata.Extra,
				}
				if !metadata.CreatedAt.IsZero() {
					info.CreatedAt = &metadata.CreatedAt
				}
				if checksums {
					info.Checksums = metadata.Checksums
				}
				if archive.Contains(persist.MetaKey) {
					meta, err := persist.ArchiveMeta(archive)
					if err != nil {
						return err
					}
					info.Object = &objectInfo{TypeID: meta.TypeID, LibVersion: meta.LibVersion, Fields: meta.Fields}
				}
				info.Warnings = archive.Warnings()
				return nil
			})
			if err != nil {
				return err
			}
			if outputJSON {
				return cli.WriteJSON(out.stdout, info)
			}
			return printInfo(out, info)
		},
	}
}

func printInfo(out *streams, info archiveInfo) error {
	tw := tabwriter.NewWriter(out.stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "path\t%s\n", info.Path)
	fmt.Fprintf(tw, "format revision\t%d\n", info.FormatRevision)
	if info.Legacy {
		fmt.Fprintf(tw, "legacy\tyes\n")
	}
	if info.EngineVersion != "" {
		fmt.Fprintf(tw, "engine\t%s\n", info.EngineVersion)
	}
	if info.CreatedBy != "" {
		fmt.Fprintf(tw, "created by\t%s\n", info.CreatedBy)
	}
	if info.CreatedAt != nil {
		fmt.Fprintf(tw, "created at\t%s\n", info.CreatedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(tw, "keys\t%d\n", info.Keys)
	fmt.Fprintf(tw, "entries\t%d\n", info.Entries)
	if info.Object != nil {
		fmt.Fprintf(tw, "object\t%s\n", info.Object.TypeID)
		fmt.Fprintf(tw, "fields\t%v\n", info.Object.Fields)
	}
	for name, digest := range sortedPairs(info.Checksums) {
		fmt.Fprintf(tw, "checksum %s\t%s\n", name, digest)
	}
	for _, warning := range info.Warnings {
		fmt.Fprintf(tw, "warning\t%s\n", warning)
	}
	return tw.Flush()
}

func verifyCommand(out *streams) *cli.Command {
	var common commonFlags
	return &cli.Command{
		Name:    "verify",
		Summary: "Check entry checksums",
		Usage:   "datazip verify ARCHIVE... [flags]",
		Description: `Recompute the blake3 checksum of every entry recorded in each
archive's metadata. Prints one line per problem and exits 1 if any
archive fails.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("verify", pflag.ContinueOnError)
			common.register(flagSet)
			return flagSet
		},
		Args: cli.MinimumArgs(1),
		Run: func(args []string) error {
			s, err := common.open(out, "verify")
			if err != nil {
				return err
			}
			failed := false
			for _, path := range args {
				err := s.readArchive(path, func(archive *datazip.Archive) error {
					return archive.Verify()
				})
				if err == nil {
					fmt.Fprintf(out.stdout, "%s: ok\n", path)
					continue
				}
				failed = true
				for _, problem := range flatten(err) {
					fmt.Fprintf(out.stdout, "%s: %v\n", path, problem)
				}
			}
			if failed {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

// flatten returns the errors joined in err, or err itself.
func flatten(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

func imageCommand(out *streams) *cli.Command {
	var common commonFlags
	return &cli.Command{
		Name:    "image",
		Summary: "Print the CBOR envelope of an image entry",
		Usage:   "datazip image ARCHIVE ENTRY [flags]",
		Description: `Decompress an image entry (a .pkl blob) and print its CBOR envelope in
diagnostic notation. The envelope names the image kind and the
registered type id, so an image the reading program cannot decode can
still be inspected.`,
		Examples: []cli.Example{
			{Description: "Inspect the pool image of a saved model", Command: "datazip image model.zip pool.pkl"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("image", pflag.ContinueOnError)
			common.register(flagSet)
			return flagSet
		},
		Args: cli.ExactArgs(2),
		Run: func(args []string) error {
			s, err := common.open(out, "image")
			if err != nil {
				return err
			}
			return s.readArchive(args[0], func(archive *datazip.Archive) error {
				envelope, err := archive.ImageEnvelope(args[1])
				if err != nil {
					return err
				}
				diagnostic, err := codec.Diagnose(envelope)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out.stdout, diagnostic)
				return err
			})
		},
	}
}
