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

	"github.com/asterix-os/installd/installd/dexopt"
)

// Dexopt implements subcommands.Command for "dexopt".
type Dexopt struct {
	req dexopt.Request
	uid uint
}

// Name implements subcommands.Command.
func (*Dexopt) Name() string {
	return "dexopt"
}

// Synopsis implements subcommands.Command.
func (*Dexopt) Synopsis() string {
	return "compile a package's bytecode ahead of time"
}

// Usage implements subcommands.Command.
func (*Dexopt) Usage() string {
	return `dexopt --apk-path <path> --uid <uid> --pkg <name> --isa <isa> --needed <1|2|3> [flags]`
}

// SetFlags implements subcommands.Command.
func (c *Dexopt) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.req.ApkPath, "apk-path", "", "APK to compile")
	f.UintVar(&c.uid, "uid", 0, "requesting app uid")
	f.StringVar(&c.req.Pkg, "pkg", "", "package name")
	f.StringVar(&c.req.Isa, "isa", "", "instruction set")
	f.IntVar(&c.req.Needed, "needed", dexopt.Dex2oatNeeded, "back-end: 1=dex2oat 2=patchoat 3=self-patchoat")
	f.StringVar(&c.req.OatDir, "oat-dir", "!", "output oat directory, ! for the dalvik cache")
	f.IntVar(&c.req.Flags, "flags", 0, "dexopt flag bitmap")
	f.StringVar(&c.req.UUID, "uuid", "", "volume uuid; empty selects internal storage")
	f.BoolVar(&c.req.UseProfiles, "use-profiles", false, "compile with per-user profiles")
}

// Execute implements subcommands.Command.
func (c *Dexopt) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if c.req.ApkPath == "" || c.req.Pkg == "" || c.req.Isa == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	c.req.UID = uint32(c.uid)
	e := env(args)
	o := &dexopt.Orchestrator{Conf: e.Conf, Props: e.Props}
	if err := o.Perform(&c.req); err != nil {
		Fatalf("dexopt failed: %v", err)
	}
	return subcommands.ExitSuccess
}
