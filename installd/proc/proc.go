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

// Package proc spawns the native helper binaries (dex2oat, patchoat,
// idmap, cp) in a restricted environment: credentials dropped to the
// requesting app, no inherited capabilities, optional background
// scheduling, and an exclusive non-blocking lock on the output artifact
// held for exactly the helper's lifetime.
package proc

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/asterix-os/installd/installd/ierror"
)

// Exit codes in the helper-child status dictionary. Codes 64-73 are
// reserved for setup failures between fork and exec; anything else is
// the helper's own exit status.
const (
	ExitSetGIDFailed   = 64
	ExitSetUIDFailed   = 65
	ExitCapSetFailed   = 66
	ExitFlockFailed    = 67
	ExitExecFailed     = 68
	ExitSchedFailed    = 70
	ExitPriorityFailed = 71
	ExitBadBackend     = 72
	ExitBadBackendExec = 73
)

// backgroundPriority is the nice value helpers run at when the caller
// asked for background mode.
const backgroundPriority = 10

// Helper describes one helper invocation.
type Helper struct {
	// Path is the helper binary; Args are its arguments, without the
	// leading argv[0].
	Path string
	Args []string

	// UID and GID, when non-zero, are the credentials the child runs
	// with. Exec of an unprivileged binary under these credentials
	// leaves the child with an empty capability set.
	UID uint32
	GID uint32

	// Background requests background scheduling class and priority,
	// used for post-boot compilation so foreground apps stay
	// responsive.
	Background bool

	// Lock, when set, is the output artifact; an exclusive
	// non-blocking flock is taken on it before the child starts and
	// rides the donated descriptor for the child's lifetime.
	Lock *os.File

	files []*os.File
}

// Donate registers a file for inheritance by the child and returns the
// descriptor number it will occupy there. Donated descriptors start at
// 3 and are assigned in call order.
func (h *Helper) Donate(f *os.File) int {
	h.files = append(h.files, f)
	return 2 + len(h.files)
}

// Run starts the helper and waits for it. The returned error carries
// LockContended when the output lock was held elsewhere (locally or by
// a child that exited with the flock code), and ChildFailure with the
// exit status for any other non-zero exit.
func (h *Helper) Run() error {
	if h.Lock != nil {
		if err := unix.Flock(int(h.Lock.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
			if err == unix.EWOULDBLOCK {
				return ierror.New(ierror.LockContended, "flock", h.Lock.Name(), err)
			}
			return ierror.New(ierror.IO, "flock", h.Lock.Name(), err)
		}
		defer unix.Flock(int(h.Lock.Fd()), unix.LOCK_UN)
	}

	cmd := exec.Command(h.Path, h.Args...)
	cmd.ExtraFiles = h.files
	if h.UID != 0 || h.GID != 0 {
		cmd.SysProcAttr = &syscall.SysProcAttr{
			Credential: &syscall.Credential{Uid: h.UID, Gid: h.GID},
		}
	}

	logrus.Debugf("Running helper: %s %v (uid=%d background=%t)", h.Path, h.Args, h.UID, h.Background)
	if err := cmd.Start(); err != nil {
		return ierror.New(ierror.IO, "exec", h.Path, err)
	}
	if h.Background {
		// The child is already running; a scheduling failure here must
		// not orphan it, so degrade to a warning and let the compile
		// proceed at normal priority.
		if err := setBackgroundScheduling(cmd.Process.Pid); err != nil {
			logrus.Warnf("Failed to set background scheduling for pid %d: %v", cmd.Process.Pid, err)
		}
	}

	err := cmd.Wait()
	if err == nil {
		return nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		artifact := ""
		if h.Lock != nil {
			artifact = h.Lock.Name()
		}
		return ierror.Child(h.Path, artifact, exitErr.ExitCode())
	}
	return ierror.New(ierror.IO, "wait", h.Path, err)
}

// setBackgroundScheduling moves a pid to the idle scheduling class and
// background priority.
func setBackgroundScheduling(pid int) error {
	if err := schedSetIdle(pid); err != nil {
		return err
	}
	return unix.Setpriority(unix.PRIO_PROCESS, pid, backgroundPriority)
}
