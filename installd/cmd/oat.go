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

// CreateOatDir implements subcommands.Command for "create-oat-dir".
type CreateOatDir struct {
	oatDir string
	isa    string
}

// Name implements subcommands.Command.
func (*CreateOatDir) Name() string {
	return "create-oat-dir"
}

// Synopsis implements subcommands.Command.
func (*CreateOatDir) Synopsis() string {
	return "prepare a compiled-output directory for an instruction set"
}

// Usage implements subcommands.Command.
func (*CreateOatDir) Usage() string {
	return `create-oat-dir --oat-dir <path> --isa <isa>`
}

// SetFlags implements subcommands.Command.
func (c *CreateOatDir) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.oatDir, "oat-dir", "", "oat directory to prepare")
	f.StringVar(&c.isa, "isa", "", "instruction set")
}

// Execute implements subcommands.Command.
func (c *CreateOatDir) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if c.oatDir == "" || c.isa == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	e := env(args)
	if err := layout.CreateOatDir(e.Conf, c.oatDir, c.isa); err != nil {
		Fatalf("create-oat-dir failed: %v", err)
	}
	return subcommands.ExitSuccess
}

// RmPackageDir implements subcommands.Command for "rm-package-dir".
type RmPackageDir struct {
	apkPath string
}

// Name implements subcommands.Command.
func (*RmPackageDir) Name() string {
	return "rm-package-dir"
}

// Synopsis implements subcommands.Command.
func (*RmPackageDir) Synopsis() string {
	return "recursively delete a package code directory"
}

// Usage implements subcommands.Command.
func (*RmPackageDir) Usage() string {
	return `rm-package-dir --apk-path <path>`
}

// SetFlags implements subcommands.Command.
func (c *RmPackageDir) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.apkPath, "apk-path", "", "package directory to remove")
}

// Execute implements subcommands.Command.
func (c *RmPackageDir) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if c.apkPath == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	e := env(args)
	if err := layout.RemovePackageDir(e.Conf, c.apkPath); err != nil {
		Fatalf("rm-package-dir failed: %v", err)
	}
	return subcommands.ExitSuccess
}

// RmDex implements subcommands.Command for "rm-dex".
type RmDex struct {
	apkPath string
	isa     string
}

// Name implements subcommands.Command.
func (*RmDex) Name() string {
	return "rm-dex"
}

// Synopsis implements subcommands.Command.
func (*RmDex) Synopsis() string {
	return "remove the compiled artifact derived from an APK"
}

// Usage implements subcommands.Command.
func (*RmDex) Usage() string {
	return `rm-dex --apk-path <path> --isa <isa>`
}

// SetFlags implements subcommands.Command.
func (c *RmDex) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.apkPath, "apk-path", "", "APK the artifact was compiled from")
	f.StringVar(&c.isa, "isa", "", "instruction set")
}

// Execute implements subcommands.Command.
func (c *RmDex) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if c.apkPath == "" || c.isa == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	e := env(args)
	if err := layout.RemoveDex(e.Conf, c.apkPath, c.isa); err != nil {
		Fatalf("rm-dex failed: %v", err)
	}
	return subcommands.ExitSuccess
}

// MarkBootComplete implements subcommands.Command for
// "mark-boot-complete".
type MarkBootComplete struct {
	isa string
}

// Name implements subcommands.Command.
func (*MarkBootComplete) Name() string {
	return "mark-boot-complete"
}

// Synopsis implements subcommands.Command.
func (*MarkBootComplete) Synopsis() string {
	return "remove the per-ISA boot compilation marker"
}

// Usage implements subcommands.Command.
func (*MarkBootComplete) Usage() string {
	return `mark-boot-complete --isa <isa>`
}

// SetFlags implements subcommands.Command.
func (c *MarkBootComplete) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.isa, "isa", "", "instruction set")
}

// Execute implements subcommands.Command.
func (c *MarkBootComplete) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if c.isa == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	e := env(args)
	if err := layout.MarkBootComplete(e.Conf, c.isa); err != nil {
		Fatalf("mark-boot-complete failed: %v", err)
	}
	return subcommands.ExitSuccess
}
