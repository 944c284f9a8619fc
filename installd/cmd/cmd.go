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

// Package cmd holds one subcommand per exported installd operation.
// The commands are the operation surface the package manager's request
// dispatcher drives; each parses primitive arguments, calls into the
// operation package, and reports success or failure.
package cmd

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/asterix-os/installd/installd/config"
	"github.com/asterix-os/installd/installd/props"
)

// Env is the per-invocation environment handed to every command via
// the subcommands argument list.
type Env struct {
	Conf  *config.Config
	Props *props.Store
}

func env(args []interface{}) *Env {
	return args[0].(*Env)
}

// Fatalf logs and exits with a status distinguishable from helper exit
// codes.
func Fatalf(format string, args ...interface{}) {
	logrus.Errorf(format, args...)
	os.Exit(128)
}
