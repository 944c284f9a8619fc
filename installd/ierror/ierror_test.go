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

package ierror

import (
	"errors"
	"fmt"
	"testing"

	"golang.org/x/sys/unix"
)

func TestKindMatching(t *testing.T) {
	err := New(IO, "open", "/data/app/x", unix.EACCES)
	if !IsKind(err, IO) {
		t.Error("IsKind(IO) = false")
	}
	if IsKind(err, BadPath) {
		t.Error("IsKind(BadPath) = true")
	}
	if !errors.Is(err, &Error{Kind: IO}) {
		t.Error("errors.Is by kind failed")
	}
	if !errors.Is(err, unix.EACCES) {
		t.Error("errno did not survive wrapping")
	}
}

func TestWrappedMatching(t *testing.T) {
	inner := New(LockContended, "flock", "/out.odex", unix.EWOULDBLOCK)
	outer := fmt.Errorf("dexopt: %w", inner)
	if !IsKind(outer, LockContended) {
		t.Error("IsKind through fmt.Errorf wrapping failed")
	}
}

func TestChildExitCodes(t *testing.T) {
	err := Child("/system/bin/dex2oat", "/out.odex", 1)
	if !IsKind(err, ChildFailure) {
		t.Errorf("exit 1: got %v, want ChildFailure", err)
	}
	if err.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", err.ExitCode)
	}

	// The helper flock code maps to lock contention.
	if err := Child("/system/bin/dex2oat", "/out.odex", 67); !IsKind(err, LockContended) {
		t.Errorf("exit 67: got %v, want LockContended", err)
	}
}

func TestAggregated(t *testing.T) {
	err := Aggregated("delete_dir_contents", "/data/user/10", 3)
	if !IsKind(err, Aggregate) {
		t.Errorf("got %v, want Aggregate", err)
	}
	if err.Failures != 3 {
		t.Errorf("Failures = %d, want 3", err.Failures)
	}
}
