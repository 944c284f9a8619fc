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

	"github.com/asterix-os/installd/installd/move"
)

// MoveCompleteApp implements subcommands.Command for
// "move-complete-app".
type MoveCompleteApp struct {
	fromUUID    string
	toUUID      string
	pkg         string
	dataAppName string
	appID       uint
	seinfo      string
}

// Name implements subcommands.Command.
func (*MoveCompleteApp) Name() string {
	return "move-complete-app"
}

// Synopsis implements subcommands.Command.
func (*MoveCompleteApp) Synopsis() string {
	return "move a package's code and data between volumes"
}

// Usage implements subcommands.Command.
func (*MoveCompleteApp) Usage() string {
	return `move-complete-app --pkg <name> --data-app-name <dir> --app-id <id> --from-uuid <volume> --to-uuid <volume>`
}

// SetFlags implements subcommands.Command.
func (c *MoveCompleteApp) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.fromUUID, "from-uuid", "", "source volume uuid")
	f.StringVar(&c.toUUID, "to-uuid", "", "destination volume uuid")
	f.StringVar(&c.pkg, "pkg", "", "package name")
	f.StringVar(&c.dataAppName, "data-app-name", "", "versioned code directory name")
	f.UintVar(&c.appID, "app-id", 0, "application id")
	f.StringVar(&c.seinfo, "seinfo", "default", "SELinux policy hint for the package")
}

// Execute implements subcommands.Command.
func (c *MoveCompleteApp) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if c.pkg == "" || c.dataAppName == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	e := env(args)
	if err := move.CompleteApp(e.Conf, c.fromUUID, c.toUUID, c.pkg, c.dataAppName, uint32(c.appID), c.seinfo); err != nil {
		Fatalf("move-complete-app failed: %v", err)
	}
	return subcommands.ExitSuccess
}

// MoveFiles implements subcommands.Command for "movefiles".
type MoveFiles struct{}

// Name implements subcommands.Command.
func (*MoveFiles) Name() string {
	return "movefiles"
}

// Synopsis implements subcommands.Command.
func (*MoveFiles) Synopsis() string {
	return "apply the update-command file moves left by a system update"
}

// Usage implements subcommands.Command.
func (*MoveFiles) Usage() string {
	return `movefiles`
}

// SetFlags implements subcommands.Command.
func (*MoveFiles) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.
func (*MoveFiles) Execute(_ context.Context, _ *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	e := env(args)
	if err := move.Files(e.Conf); err != nil {
		Fatalf("movefiles failed: %v", err)
	}
	return subcommands.ExitSuccess
}
