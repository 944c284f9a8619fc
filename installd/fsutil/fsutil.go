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

// Package fsutil implements the filesystem primitives the layout
// manager, cache reclaimer and sizer are built from: strict directory
// preparation, symlink-safe recursive deletion, and block-accurate
// sizing.
package fsutil

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/asterix-os/installd/installd/ierror"
)

// EnsureDir prepares a directory with exactly the given mode and owner.
// It is idempotent: an existing directory already matching succeeds; an
// existing entry with the wrong type, mode or owner fails with
// WrongAttrs and is never "fixed" silently.
func EnsureDir(path string, mode os.FileMode, uid, gid uint32) error {
	var st unix.Stat_t
	err := unix.Lstat(path, &st)
	switch {
	case err == nil:
		if st.Mode&unix.S_IFMT != unix.S_IFDIR {
			return ierror.New(ierror.WrongAttrs, "ensure_dir", path, nil)
		}
		if os.FileMode(st.Mode&07777) != mode || st.Uid != uid || st.Gid != gid {
			return ierror.New(ierror.WrongAttrs, "ensure_dir", path, nil)
		}
		return nil
	case err != unix.ENOENT:
		return ierror.New(ierror.IO, "lstat", path, err)
	}

	if err := os.Mkdir(path, mode); err != nil {
		if os.IsExist(err) {
			// Lost a race; re-validate what appeared.
			return EnsureDir(path, mode, uid, gid)
		}
		return ierror.New(ierror.IO, "mkdir", path, err)
	}
	// Mkdir is subject to umask; force the exact mode.
	if err := os.Chmod(path, mode); err != nil {
		return ierror.New(ierror.IO, "chmod", path, err)
	}
	if err := os.Chown(path, int(uid), int(gid)); err != nil {
		return ierror.New(ierror.IO, "chown", path, err)
	}
	return nil
}

// DeleteDirContents removes everything below path, and the directory
// itself when alsoRoot is set. A missing path is success, as is any
// entry that disappears mid-walk; per-entry failures are counted and
// reported as one Aggregate error. Symlinks are removed, never
// followed.
func DeleteDirContents(path string, alsoRoot bool) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return ierror.New(ierror.IO, "readdir", path, err)
	}

	failed := 0
	for _, e := range entries {
		// RemoveAll never follows symlinks and treats ENOENT as
		// success, which is exactly the contract here.
		if err := os.RemoveAll(filepath.Join(path, e.Name())); err != nil {
			logrus.Warnf("Failed to delete %q: %v", filepath.Join(path, e.Name()), err)
			failed++
		}
	}
	if alsoRoot {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logrus.Warnf("Failed to delete %q: %v", path, err)
			failed++
		}
	}
	if failed > 0 {
		return ierror.Aggregated("delete_dir_contents", path, failed)
	}
	return nil
}

// StatSize returns the bytes an inode actually occupies on disk,
// block-aligned.
func StatSize(st *unix.Stat_t) int64 {
	return st.Blocks * 512
}

// LstatSize is StatSize for a path, without following symlinks.
func LstatSize(path string) (int64, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return 0, err
	}
	return StatSize(&st), nil
}

// CalculateDirSize sums the block-aligned sizes of everything below a
// directory, directory inodes included. Symlinks contribute their own
// inode size and are not followed.
func CalculateDirSize(path string) int64 {
	var total int64
	entries, err := os.ReadDir(path)
	if err != nil {
		return 0
	}
	for _, e := range entries {
		sub := filepath.Join(path, e.Name())
		var st unix.Stat_t
		if err := unix.Lstat(sub, &st); err != nil {
			continue
		}
		total += StatSize(&st)
		if st.Mode&unix.S_IFMT == unix.S_IFDIR {
			total += CalculateDirSize(sub)
		}
	}
	return total
}

// DiskFree returns the bytes available to unprivileged writers on the
// filesystem holding path.
func DiskFree(path string) (int64, error) {
	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return 0, ierror.New(ierror.IO, "statfs", path, err)
	}
	return int64(fs.Bavail) * int64(fs.Bsize), nil
}
