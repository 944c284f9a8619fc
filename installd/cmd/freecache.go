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

	"github.com/asterix-os/installd/installd/cache"
)

// FreeCache implements subcommands.Command for "free-cache".
type FreeCache struct {
	uuid     string
	freeSize int64
}

// Name implements subcommands.Command.
func (*FreeCache) Name() string {
	return "free-cache"
}

// Synopsis implements subcommands.Command.
func (*FreeCache) Synopsis() string {
	return "delete cache files until the volume has the requested free space"
}

// Usage implements subcommands.Command.
func (*FreeCache) Usage() string {
	return `free-cache --free-size <bytes> [--uuid <volume>]`
}

// SetFlags implements subcommands.Command.
func (c *FreeCache) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.uuid, "uuid", "", "volume uuid; empty selects internal storage")
	f.Int64Var(&c.freeSize, "free-size", 0, "target free bytes")
}

// Execute implements subcommands.Command.
func (c *FreeCache) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if c.freeSize <= 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	e := env(args)
	if err := cache.New(e.Conf).Free(c.uuid, c.freeSize); err != nil {
		Fatalf("free-cache failed: %v", err)
	}
	return subcommands.ExitSuccess
}
