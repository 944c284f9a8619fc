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

// Package cli is the main entrypoint for installd.
package cli

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/gofrs/flock"
	"github.com/google/subcommands"
	"github.com/moby/sys/capability"
	"github.com/sirupsen/logrus"

	"github.com/asterix-os/installd/installd/cmd"
	"github.com/asterix-os/installd/installd/config"
	"github.com/asterix-os/installd/installd/props"
)

// dataDirTimeout bounds how long startup waits for the data partition
// to be mounted.
const dataDirTimeout = 30 * time.Second

// keptCaps is the working set the daemon retains; everything else is
// dropped from the bounding set before the first operation runs.
var keptCaps = []capability.Cap{
	capability.CAP_CHOWN,
	capability.CAP_DAC_OVERRIDE,
	capability.CAP_FOWNER,
	capability.CAP_FSETID,
	capability.CAP_SETUID,
	capability.CAP_SETGID,
}

// Main is the main entrypoint.
func Main() {
	forEachCmd(subcommands.Register)
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")

	config.RegisterFlags(flag.CommandLine)
	flag.Parse()

	conf, err := config.NewFromFlags(flag.CommandLine)
	if err != nil {
		cmd.Fatalf("%v", err)
	}

	if conf.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if conf.LogFilename != "" {
		// The same log file serves every invocation, so append rather
		// than truncate.
		f, err := os.OpenFile(conf.LogFilename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			cmd.Fatalf("error opening log file %q: %v", conf.LogFilename, err)
		}
		logrus.SetOutput(f)
	}

	// installd can come up before the data partition is mounted.
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = dataDirTimeout
	if err := backoff.Retry(conf.WaitForDataDir, b); err != nil {
		cmd.Fatalf("data root %q never appeared: %v", conf.DataDir, err)
	}

	var lock *flock.Flock
	if conf.LockFile != "" {
		lock = flock.New(conf.LockFile)
		locked, err := lock.TryLock()
		if err != nil {
			cmd.Fatalf("error taking daemon lock %q: %v", conf.LockFile, err)
		}
		if !locked {
			cmd.Fatalf("another installd instance holds %q", conf.LockFile)
		}
	}

	if os.Geteuid() == 0 {
		if err := trimBoundingSet(); err != nil {
			cmd.Fatalf("error trimming capability bounding set: %v", err)
		}
	}

	// No-op unless a service manager is listening.
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logrus.Warnf("sd_notify failed: %v", err)
	}

	e := &cmd.Env{
		Conf:  conf,
		Props: props.Load(conf.PropertyFiles),
	}
	status := subcommands.Execute(context.Background(), e)
	if lock != nil {
		lock.Unlock()
	}
	os.Exit(int(status))
}

func forEachCmd(f func(c subcommands.Command, group string)) {
	f(new(cmd.CreateAppData), "app data")
	f(new(cmd.ClearAppData), "app data")
	f(new(cmd.DestroyAppData), "app data")
	f(new(cmd.RestoreconAppData), "app data")
	f(new(cmd.DeleteUser), "users")
	f(new(cmd.MakeUserConfig), "users")
	f(new(cmd.FreeCache), "storage")
	f(new(cmd.GetAppSize), "storage")
	f(new(cmd.Dexopt), "compilation")
	f(new(cmd.CreateOatDir), "compilation")
	f(new(cmd.RmDex), "compilation")
	f(new(cmd.MarkBootComplete), "compilation")
	f(new(cmd.RmPackageDir), "packages")
	f(new(cmd.LinkLib), "packages")
	f(new(cmd.LinkFile), "packages")
	f(new(cmd.MoveCompleteApp), "packages")
	f(new(cmd.MoveFiles), "packages")
	f(new(cmd.Idmap), "overlays")
}

// trimBoundingSet drops every capability outside the daemon's working
// set. Children fork with an already-minimal bounding set, so even an
// exec before credential dropping cannot regain privileges.
func trimBoundingSet() error {
	caps, err := capability.NewPid2(0)
	if err != nil {
		return err
	}
	if err := caps.Load(); err != nil {
		return err
	}
	caps.Clear(capability.BOUNDING)
	caps.Set(capability.BOUNDING, keptCaps...)
	return caps.Apply(capability.BOUNDING)
}
