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

// Package appsize measures the disk footprint of one package,
// classifying every byte as exactly one of code, data, cache or asec.
package appsize

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/asterix-os/installd/installd/config"
	"github.com/asterix-os/installd/installd/fsutil"
	"github.com/asterix-os/installd/installd/layout"
	"github.com/asterix-os/installd/installd/paths"
)

// Stats is the per-class byte breakdown for one package.
type Stats struct {
	Code  int64
	Data  int64
	Cache int64
	Asec  int64
}

// Request names the artifacts of the package being measured. Optional
// paths follow the wire convention of "!" meaning absent.
type Request struct {
	UUID       string
	Pkg        string
	UserID     int64 // -1 measures all known users
	Flags      int
	ApkPath    string
	LibDirPath string
	FwdLockApk string
	AsecPath   string
	Isa        string
}

func present(p string) bool {
	return p != "" && !strings.HasPrefix(p, "!")
}

// Measure walks the package's artifacts and per-user data trees.
func Measure(c *config.Config, req *Request) (Stats, error) {
	var s Stats

	// The APK counts as code unless it lives on /system or inside an
	// asec container (those bytes belong to the system image and the
	// asec counter respectively).
	if paths.ValidateSystemAppPath(c, req.ApkPath) != nil &&
		!strings.HasPrefix(req.ApkPath, c.AsecDir+"/") {
		var st unix.Stat_t
		if err := unix.Stat(req.ApkPath, &st); err == nil {
			s.Code += fsutil.StatSize(&st)
			if st.Mode&unix.S_IFMT == unix.S_IFDIR {
				s.Code += fsutil.CalculateDirSize(req.ApkPath)
			}
		}
	}

	// Forward-locked APK counts as code.
	if present(req.FwdLockApk) {
		var st unix.Stat_t
		if err := unix.Stat(req.FwdLockApk, &st); err == nil {
			s.Code += fsutil.StatSize(&st)
		}
	}

	// The cached compiled output counts as code.
	if dex, err := paths.DalvikCache(c, req.ApkPath, req.Isa); err == nil {
		var st unix.Stat_t
		if err := unix.Stat(dex, &st); err == nil {
			s.Code += fsutil.StatSize(&st)
		}
	}

	// Native libraries count as code.
	if present(req.LibDirPath) {
		s.Code += fsutil.CalculateDirSize(req.LibDirPath)
	}

	// The asec container file.
	if present(req.AsecPath) {
		var st unix.Stat_t
		if err := unix.Stat(req.AsecPath, &st); err == nil {
			s.Asec += fsutil.StatSize(&st)
		}
	}

	var users []uint32
	if req.UserID == -1 {
		users = paths.KnownUsers(c, req.UUID)
	} else {
		users = []uint32{uint32(req.UserID)}
	}

	for _, user := range users {
		if req.Flags&layout.FlagCEStorage == 0 {
			continue
		}
		pkgDir, err := paths.DataUserPackage(c, req.UUID, user, req.Pkg)
		if err != nil {
			return Stats{}, err
		}
		if err := measurePkgDir(pkgDir, &s); err != nil {
			logrus.Warnf("Failed to measure %q: %v", pkgDir, err)
		}
	}
	return s, nil
}

// measurePkgDir classifies the entries of one per-user package
// directory: lib is code (a symlinked lib counts by its link inode),
// cache is cache, everything else is data.
func measurePkgDir(pkgDir string, s *Stats) error {
	entries, err := os.ReadDir(pkgDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		p := filepath.Join(pkgDir, e.Name())
		var st unix.Stat_t
		if err := unix.Lstat(p, &st); err != nil {
			continue
		}
		size := fsutil.StatSize(&st)

		switch {
		case st.Mode&unix.S_IFMT == unix.S_IFDIR:
			size += fsutil.CalculateDirSize(p)
			switch e.Name() {
			case paths.LibDirName:
				s.Code += size
			case paths.CacheDirName:
				s.Cache += size
			default:
				s.Data += size
			}
		case st.Mode&unix.S_IFMT == unix.S_IFLNK && e.Name() == paths.LibDirName:
			// The installer's library symlink is code the app never
			// created.
			s.Code += size
		default:
			s.Data += size
		}
	}
	return nil
}
