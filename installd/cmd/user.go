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

// DeleteUser implements subcommands.Command for "delete-user".
type DeleteUser struct {
	uuid string
	user uint
}

// Name implements subcommands.Command.
func (*DeleteUser) Name() string {
	return "delete-user"
}

// Synopsis implements subcommands.Command.
func (*DeleteUser) Synopsis() string {
	return "delete a user's CE, DE, media and config trees"
}

// Usage implements subcommands.Command.
func (*DeleteUser) Usage() string {
	return `delete-user --user <id> [--uuid <volume>]`
}

// SetFlags implements subcommands.Command.
func (c *DeleteUser) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.uuid, "uuid", "", "volume uuid; empty selects internal storage")
	f.UintVar(&c.user, "user", 0, "user id")
}

// Execute implements subcommands.Command.
func (c *DeleteUser) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	e := env(args)
	if err := layout.DeleteUser(e.Conf, c.uuid, uint32(c.user)); err != nil {
		Fatalf("delete-user failed: %v", err)
	}
	return subcommands.ExitSuccess
}

// MakeUserConfig implements subcommands.Command for "make-user-config".
type MakeUserConfig struct {
	user uint
}

// Name implements subcommands.Command.
func (*MakeUserConfig) Name() string {
	return "make-user-config"
}

// Synopsis implements subcommands.Command.
func (*MakeUserConfig) Synopsis() string {
	return "prepare a user's config directory on internal storage"
}

// Usage implements subcommands.Command.
func (*MakeUserConfig) Usage() string {
	return `make-user-config --user <id>`
}

// SetFlags implements subcommands.Command.
func (c *MakeUserConfig) SetFlags(f *flag.FlagSet) {
	f.UintVar(&c.user, "user", 0, "user id")
}

// Execute implements subcommands.Command.
func (c *MakeUserConfig) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	e := env(args)
	if err := layout.MakeUserConfig(e.Conf, uint32(c.user)); err != nil {
		Fatalf("make-user-config failed: %v", err)
	}
	return subcommands.ExitSuccess
}
