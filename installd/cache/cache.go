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

// Package cache reclaims disk space by deleting files under per-app
// cache directories, oldest first, until a free-space target is
// reached. Without reliable atime only mtime orders the index, so this
// is deliberately not a true LRU; apps must tolerate any cache file
// disappearing at any time.
package cache

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/btree"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/asterix-os/installd/installd/config"
	"github.com/asterix-os/installd/installd/fsutil"
	"github.com/asterix-os/installd/installd/ierror"
	"github.com/asterix-os/installd/installd/paths"
)

// pathMax bounds index entries; longer paths are skipped with a
// warning.
const pathMax = 4096

// entry is one deletable cache file.
type entry struct {
	path  string
	mtime int64
	ino   uint64
}

func entryLess(a, b entry) bool {
	if a.mtime != b.mtime {
		return a.mtime < b.mtime
	}
	return a.ino < b.ino
}

// Reclaimer frees cache space on one volume. DiskFree is replaceable
// for tests; the zero value uses statfs.
type Reclaimer struct {
	Conf     *config.Config
	DiskFree func(path string) (int64, error)
}

// New builds a Reclaimer over the given configuration.
func New(c *config.Config) *Reclaimer {
	return &Reclaimer{Conf: c, DiskFree: fsutil.DiskFree}
}

// Free ensures at least targetFree bytes are available on the volume's
// data partition, deleting indexed cache files oldest-first as needed.
// It succeeds iff the target is met on return.
func (r *Reclaimer) Free(uuid string, targetFree int64) error {
	dataPath, err := paths.Data(r.Conf, uuid)
	if err != nil {
		return err
	}

	diskFree := r.DiskFree
	if diskFree == nil {
		diskFree = fsutil.DiskFree
	}

	avail, err := diskFree(dataPath)
	if err != nil {
		return err
	}
	logrus.Infof("free_cache(%d) avail %d", targetFree, avail)
	if avail >= targetFree {
		return nil
	}

	index := r.buildIndex(uuid, dataPath)

	deleted, failed := 0, 0
	reached := false
	index.Ascend(func(e entry) bool {
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
			logrus.Warnf("Failed to delete cache file %q: %v", e.path, err)
			failed++
		} else {
			deleted++
		}
		avail, err := diskFree(dataPath)
		if err != nil {
			return false
		}
		if avail >= targetFree {
			reached = true
			return false
		}
		return true
	})

	logrus.Infof("free_cache deleted %d files (%d failures)", deleted, failed)
	if reached {
		return nil
	}
	if failed > 0 {
		return ierror.Aggregated("free_cache", dataPath, failed)
	}
	return ierror.New(ierror.IO, "free_cache", dataPath, unix.ENOSPC)
}

// buildIndex scans every cache tree on the volume: the owner's legacy
// location on internal storage, each numeric secondary user, and
// external media trees that carry an app data layout.
func (r *Reclaimer) buildIndex(uuid, dataPath string) *btree.BTreeG[entry] {
	index := btree.NewG(16, entryLess)

	// Owner on internal storage lives outside the user/ tree.
	if uuid == "" {
		if owner, err := paths.DataUser(r.Conf, "", 0); err == nil {
			addCacheFiles(index, owner)
		}
	}

	// Secondary users: numeric entries under <data>/user.
	userRoot := filepath.Join(dataPath, "user")
	if entries, err := os.ReadDir(userRoot); err == nil {
		for _, e := range entries {
			if !e.IsDir() || !startsWithDigit(e.Name()) {
				continue
			}
			p := filepath.Join(userRoot, e.Name())
			if len(p) >= pathMax {
				logrus.Warnf("Path exceeds limit: %q", p)
				continue
			}
			addCacheFiles(index, p)
		}
	}

	// External media, only trees that look like app storage: numeric
	// user dirs carrying Android/ and Android/data/.
	if entries, err := os.ReadDir(r.Conf.MediaDir); err == nil {
		for _, e := range entries {
			if !e.IsDir() || !startsWithDigit(e.Name()) {
				continue
			}
			p := filepath.Join(r.Conf.MediaDir, e.Name())
			if len(p) >= pathMax {
				logrus.Warnf("Path exceeds limit: %q", p)
				continue
			}
			android := filepath.Join(p, "Android")
			androidData := filepath.Join(android, "data")
			if !isDir(android) || !isDir(androidData) {
				continue
			}
			addCacheFiles(index, androidData)
		}
	}
	return index
}

// addCacheFiles indexes every regular file under the cache/ subtree of
// each package directory below base.
func addCacheFiles(index *btree.BTreeG[entry], base string) {
	pkgs, err := os.ReadDir(base)
	if err != nil {
		return
	}
	for _, pkg := range pkgs {
		if !pkg.IsDir() {
			continue
		}
		cacheDir := filepath.Join(base, pkg.Name(), paths.CacheDirName)
		addTree(index, cacheDir)
	}
}

// addTree walks a cache subtree without following symlinks, indexing
// regular files by mtime.
func addTree(index *btree.BTreeG[entry], dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if len(p) >= pathMax {
			logrus.Warnf("Path exceeds limit: %q", p)
			continue
		}
		var st unix.Stat_t
		if err := unix.Lstat(p, &st); err != nil {
			continue
		}
		switch st.Mode & unix.S_IFMT {
		case unix.S_IFDIR:
			addTree(index, p)
		case unix.S_IFREG:
			index.ReplaceOrInsert(entry{path: p, mtime: st.Mtim.Sec, ino: st.Ino})
		}
	}
}

func startsWithDigit(name string) bool {
	if name == "" {
		return false
	}
	_, err := strconv.Atoi(name[:1])
	return err == nil
}

func isDir(p string) bool {
	fi, err := os.Lstat(p)
	return err == nil && fi.IsDir()
}
