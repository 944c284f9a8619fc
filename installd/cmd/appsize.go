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
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/asterix-os/installd/installd/appsize"
	"github.com/asterix-os/installd/installd/layout"
)

// GetAppSize implements subcommands.Command for "get-app-size".
type GetAppSize struct {
	req appsize.Request
}

// Name implements subcommands.Command.
func (*GetAppSize) Name() string {
	return "get-app-size"
}

// Synopsis implements subcommands.Command.
func (*GetAppSize) Synopsis() string {
	return "measure a package's code, data, cache and asec bytes"
}

// Usage implements subcommands.Command.
func (*GetAppSize) Usage() string {
	return `get-app-size --pkg <name> --apk-path <path> --isa <isa> [flags]`
}

// SetFlags implements subcommands.Command.
func (c *GetAppSize) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.req.UUID, "uuid", "", "volume uuid; empty selects internal storage")
	f.StringVar(&c.req.Pkg, "pkg", "", "package name")
	f.Int64Var(&c.req.UserID, "user", -1, "user id; -1 measures all known users")
	f.IntVar(&c.req.Flags, "flags", layout.FlagCEStorage, "storage flag bitmap")
	f.StringVar(&c.req.ApkPath, "apk-path", "", "installed APK path")
	f.StringVar(&c.req.LibDirPath, "lib-dir", "!", "native library directory, ! if none")
	f.StringVar(&c.req.FwdLockApk, "fwdlock-apk", "!", "forward-locked APK path, ! if none")
	f.StringVar(&c.req.AsecPath, "asec-path", "!", "asec container file, ! if none")
	f.StringVar(&c.req.Isa, "isa", "", "instruction set")
}

// Execute implements subcommands.Command.
func (c *GetAppSize) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if c.req.Pkg == "" || c.req.ApkPath == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	e := env(args)
	stats, err := appsize.Measure(e.Conf, &c.req)
	if err != nil {
		Fatalf("get-app-size failed: %v", err)
	}
	fmt.Fprintf(os.Stdout, "code=%d data=%d cache=%d asec=%d\n",
		stats.Code, stats.Data, stats.Cache, stats.Asec)
	return subcommands.ExitSuccess
}
