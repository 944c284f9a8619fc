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

// appDataFlags are the arguments shared by the app-data commands.
type appDataFlags struct {
	uuid   string
	pkg    string
	user   uint
	flags  int
	appID  uint
	seinfo string
}

func (a *appDataFlags) register(f *flag.FlagSet, withApp bool) {
	f.StringVar(&a.uuid, "uuid", "", "volume uuid; empty selects internal storage")
	f.StringVar(&a.pkg, "pkg", "", "package name")
	f.UintVar(&a.user, "user", 0, "user id")
	f.IntVar(&a.flags, "flags", layout.FlagCEStorage|layout.FlagDEStorage, "storage flag bitmap")
	if withApp {
		f.UintVar(&a.appID, "app-id", 0, "application id")
		f.StringVar(&a.seinfo, "seinfo", "default", "SELinux policy hint for the package")
	}
}

// CreateAppData implements subcommands.Command for "create-app-data".
type CreateAppData struct {
	args appDataFlags
}

// Name implements subcommands.Command.
func (*CreateAppData) Name() string {
	return "create-app-data"
}

// Synopsis implements subcommands.Command.
func (*CreateAppData) Synopsis() string {
	return "create the CE/DE data directories for a package"
}

// Usage implements subcommands.Command.
func (*CreateAppData) Usage() string {
	return `create-app-data --pkg <name> --user <id> --app-id <id> [flags]`
}

// SetFlags implements subcommands.Command.
func (c *CreateAppData) SetFlags(f *flag.FlagSet) {
	c.args.register(f, true)
}

// Execute implements subcommands.Command.
func (c *CreateAppData) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if c.args.pkg == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	e := env(args)
	if err := layout.CreateAppData(e.Conf, c.args.uuid, c.args.pkg, uint32(c.args.user), c.args.flags, uint32(c.args.appID), c.args.seinfo); err != nil {
		Fatalf("create-app-data failed: %v", err)
	}
	return subcommands.ExitSuccess
}

// ClearAppData implements subcommands.Command for "clear-app-data".
type ClearAppData struct {
	args appDataFlags
}

// Name implements subcommands.Command.
func (*ClearAppData) Name() string {
	return "clear-app-data"
}

// Synopsis implements subcommands.Command.
func (*ClearAppData) Synopsis() string {
	return "remove the contents of a package's data directories"
}

// Usage implements subcommands.Command.
func (*ClearAppData) Usage() string {
	return `clear-app-data --pkg <name> --user <id> [flags]`
}

// SetFlags implements subcommands.Command.
func (c *ClearAppData) SetFlags(f *flag.FlagSet) {
	c.args.register(f, false)
}

// Execute implements subcommands.Command.
func (c *ClearAppData) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if c.args.pkg == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	e := env(args)
	if err := layout.ClearAppData(e.Conf, c.args.uuid, c.args.pkg, uint32(c.args.user), c.args.flags); err != nil {
		Fatalf("clear-app-data failed: %v", err)
	}
	return subcommands.ExitSuccess
}

// DestroyAppData implements subcommands.Command for "destroy-app-data".
type DestroyAppData struct {
	args appDataFlags
}

// Name implements subcommands.Command.
func (*DestroyAppData) Name() string {
	return "destroy-app-data"
}

// Synopsis implements subcommands.Command.
func (*DestroyAppData) Synopsis() string {
	return "delete a package's data directories"
}

// Usage implements subcommands.Command.
func (*DestroyAppData) Usage() string {
	return `destroy-app-data --pkg <name> --user <id> [flags]`
}

// SetFlags implements subcommands.Command.
func (c *DestroyAppData) SetFlags(f *flag.FlagSet) {
	c.args.register(f, false)
}

// Execute implements subcommands.Command.
func (c *DestroyAppData) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if c.args.pkg == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	e := env(args)
	if err := layout.DestroyAppData(e.Conf, c.args.uuid, c.args.pkg, uint32(c.args.user), c.args.flags); err != nil {
		Fatalf("destroy-app-data failed: %v", err)
	}
	return subcommands.ExitSuccess
}

// RestoreconAppData implements subcommands.Command for
// "restorecon-app-data".
type RestoreconAppData struct {
	args appDataFlags
}

// Name implements subcommands.Command.
func (*RestoreconAppData) Name() string {
	return "restorecon-app-data"
}

// Synopsis implements subcommands.Command.
func (*RestoreconAppData) Synopsis() string {
	return "re-apply SELinux labels over a package's data directories"
}

// Usage implements subcommands.Command.
func (*RestoreconAppData) Usage() string {
	return `restorecon-app-data --pkg <name> --user <id> --app-id <id> --seinfo <hint> [flags]`
}

// SetFlags implements subcommands.Command.
func (c *RestoreconAppData) SetFlags(f *flag.FlagSet) {
	c.args.register(f, true)
}

// Execute implements subcommands.Command.
func (c *RestoreconAppData) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if c.args.pkg == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	e := env(args)
	if err := layout.RestoreconAppData(e.Conf, c.args.uuid, c.args.pkg, uint32(c.args.user), c.args.flags, uint32(c.args.appID), c.args.seinfo); err != nil {
		Fatalf("restorecon-app-data failed: %v", err)
	}
	return subcommands.ExitSuccess
}
