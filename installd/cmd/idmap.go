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

	"github.com/asterix-os/installd/installd/idmap"
)

// Idmap implements subcommands.Command for "idmap".
type Idmap struct {
	targetApk  string
	overlayApk string
	uid        uint
}

// Name implements subcommands.Command.
func (*Idmap) Name() string {
	return "idmap"
}

// Synopsis implements subcommands.Command.
func (*Idmap) Synopsis() string {
	return "generate the resource-override map for an overlay package"
}

// Usage implements subcommands.Command.
func (*Idmap) Usage() string {
	return `idmap --target-apk <path> --overlay-apk <path> --uid <uid>`
}

// SetFlags implements subcommands.Command.
func (c *Idmap) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.targetApk, "target-apk", "", "APK being overlaid")
	f.StringVar(&c.overlayApk, "overlay-apk", "", "overlay APK")
	f.UintVar(&c.uid, "uid", 0, "requesting app uid")
}

// Execute implements subcommands.Command.
func (c *Idmap) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if c.targetApk == "" || c.overlayApk == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	e := env(args)
	if err := idmap.Generate(e.Conf, c.targetApk, c.overlayApk, uint32(c.uid)); err != nil {
		Fatalf("idmap failed: %v", err)
	}
	return subcommands.ExitSuccess
}
