// Copyright 2025 The Asterix OS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"github.com/asterix-os/installd/installd/layout"
)

// LinkLib implements subcommands.Command for "linklib".
type LinkLib struct {
	uuid       string
	pkg        string
	asecLibDir string
	user       uint
}

// Name implements subcommands.Command.
func (*LinkLib) Name() string {
	return "linklib"
}

// Synopsis implements subcommands.Command.
func (*LinkLib) Synopsis() string {
	return "point a package's lib entry at its container library directory"
}

// Usage implements subcommands.Command.
func (*LinkLib) Usage() string {
	return `linklib --pkg <name> --asec-lib-dir <path> --user <id>`
}

// SetFlags implements subcommands.Command.
func (c *LinkLib) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.uuid, "uuid", "", "volume uuid; empty selects internal storage")
	f.StringVar(&c.pkg, "pkg", "", "package name")
	f.StringVar(&c.asecLibDir, "asec-lib-dir", "", "native library directory inside the container")
	f.UintVar(&c.user, "user", 0, "user id")
}

// Execute implements subcommands.Command.
func (c *LinkLib) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if c.pkg == "" || c.asecLibDir == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	e := env(args)
	if err := layout.LinkLib(e.Conf, c.uuid, c.pkg, c.asecLibDir, uint32(c.user)); err != nil {
		Fatalf("linklib failed: %v", err)
	}
	return subcommands.ExitSuccess
}

// LinkFile implements subcommands.Command for "link-file".
type LinkFile struct {
	relPath  string
	fromBase string
	toBase   string
}

// Name implements subcommands.Command.
func (*LinkFile) Name() string {
	return "link-file"
}

// Synopsis implements subcommands.Command.
func (*LinkFile) Synopsis() string {
	return "hard-link a file between two package code trees"
}

// Usage implements subcommands.Command.
func (*LinkFile) Usage() string {
	return `link-file --rel <path> --from <base> --to <base>`
}

// SetFlags implements subcommands.Command.
func (c *LinkFile) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.relPath, "rel", "", "path relative to both bases")
	f.StringVar(&c.fromBase, "from", "", "source base directory")
	f.StringVar(&c.toBase, "to", "", "destination base directory")
}

// Execute implements subcommands.Command.
func (c *LinkFile) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if c.relPath == "" || c.fromBase == "" || c.toBase == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	e := env(args)
	if err := layout.LinkFile(e.Conf, c.relPath, c.fromBase, c.toBase); err != nil {
		Fatalf("link-file failed: %v", err)
	}
	return subcommands.ExitSuccess
}
