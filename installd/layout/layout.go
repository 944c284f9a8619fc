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

// Package layout creates, clears, relabels and destroys per-app data
// directories across the credential-encrypted and device-encrypted
// halves of a storage volume.
package layout

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/asterix-os/installd/installd/config"
	"github.com/asterix-os/installd/installd/fsutil"
	"github.com/asterix-os/installd/installd/ierror"
	"github.com/asterix-os/installd/installd/paths"
)

// Storage flag bitmap shared by the app-data operations.
const (
	FlagCEStorage          = 0x1
	FlagDEStorage          = 0x2
	FlagClearCacheOnly     = 0x10
	FlagClearCodeCacheOnly = 0x20
)

// appDataDirMode is the mode of every per-app data directory.
const appDataDirMode = 0751

// CreateAppData prepares the CE and/or DE package directories for one
// user, owned by the synthetic per-user uid and labeled for the
// package. Either half failing is fatal with no rollback; the caller
// retries or destroys.
func CreateAppData(c *config.Config, uuid, pkg string, userID uint32, flags int, appID uint32, seinfo string) error {
	uid := paths.MultiuserUID(userID, appID)

	if flags&FlagCEStorage != 0 {
		p, err := paths.DataUserPackage(c, uuid, userID, pkg)
		if err != nil {
			return err
		}
		if err := prepareAppDir(p, seinfo, uid); err != nil {
			return err
		}
	}
	if flags&FlagDEStorage != 0 {
		p, err := paths.DataUserDePackage(c, uuid, userID, pkg)
		if err != nil {
			return err
		}
		if err := prepareAppDir(p, seinfo, uid); err != nil {
			return err
		}
	}
	return nil
}

func prepareAppDir(p, seinfo string, uid uint32) error {
	if err := fsutil.EnsureDir(p, appDataDirMode, uid, uid); err != nil {
		return err
	}
	return fsutil.ApplyAppDataLabel(p, seinfo, uid, false)
}

// ClearAppData removes the contents of the package directories, leaving
// the directories themselves. FlagClearCacheOnly and
// FlagClearCodeCacheOnly narrow the operation to the respective
// subdirectory. Missing directories are success.
func ClearAppData(c *config.Config, uuid, pkg string, userID uint32, flags int) error {
	suffix := ""
	switch {
	case flags&FlagClearCacheOnly != 0:
		suffix = paths.CacheDirName
	case flags&FlagClearCodeCacheOnly != 0:
		suffix = paths.CodeCacheDirName
	}

	var firstErr error
	clear := func(base string) {
		p := base
		if suffix != "" {
			p = filepath.Join(base, suffix)
		}
		if _, err := os.Lstat(p); err != nil {
			return
		}
		if err := fsutil.DeleteDirContents(p, false); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if flags&FlagCEStorage != 0 {
		p, err := paths.DataUserPackage(c, uuid, userID, pkg)
		if err != nil {
			return err
		}
		clear(p)
	}
	if flags&FlagDEStorage != 0 {
		p, err := paths.DataUserDePackage(c, uuid, userID, pkg)
		if err != nil {
			return err
		}
		clear(p)
	}
	return firstErr
}

// DestroyAppData removes the package directories and everything in
// them.
func DestroyAppData(c *config.Config, uuid, pkg string, userID uint32, flags int) error {
	var firstErr error
	if flags&FlagCEStorage != 0 {
		p, err := paths.DataUserPackage(c, uuid, userID, pkg)
		if err != nil {
			return err
		}
		if err := fsutil.DeleteDirContents(p, true); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if flags&FlagDEStorage != 0 {
		p, err := paths.DataUserDePackage(c, uuid, userID, pkg)
		if err != nil {
			return err
		}
		if err := fsutil.DeleteDirContents(p, true); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RestoreconAppData re-applies SELinux labels recursively over the
// package directories. Failures on either half are aggregated into the
// result; the historic behavior of swallowing the DE failure was a
// platform bug, not a contract.
func RestoreconAppData(c *config.Config, uuid, pkg string, userID uint32, flags int, appID uint32, seinfo string) error {
	if pkg == "" || seinfo == "" {
		return ierror.New(ierror.BadPath, "restorecon_app_data", pkg, nil)
	}
	uid := paths.MultiuserUID(userID, appID)

	failed := 0
	if flags&FlagCEStorage != 0 {
		p, err := paths.DataUserPackage(c, uuid, userID, pkg)
		if err != nil {
			return err
		}
		if err := fsutil.ApplyAppDataLabel(p, seinfo, uid, true); err != nil {
			logrus.Warnf("restorecon failed for %q: %v", p, err)
			failed++
		}
	}
	if flags&FlagDEStorage != 0 {
		p, err := paths.DataUserDePackage(c, uuid, userID, pkg)
		if err != nil {
			return err
		}
		if err := fsutil.ApplyAppDataLabel(p, seinfo, uid, true); err != nil {
			logrus.Warnf("restorecon failed for %q: %v", p, err)
			failed++
		}
	}
	if failed > 0 {
		return ierror.Aggregated("restorecon_app_data", pkg, failed)
	}
	return nil
}

// DeleteUser removes a user's CE, DE and media roots on the volume,
// plus the user config directory on internal storage. Failures are
// aggregated; every subtree is attempted.
func DeleteUser(c *config.Config, uuid string, userID uint32) error {
	failed := 0
	rm := func(p string, err error) {
		if err != nil {
			failed++
			return
		}
		if err := fsutil.DeleteDirContents(p, true); err != nil {
			failed++
		}
	}

	p, err := paths.DataUser(c, uuid, userID)
	rm(p, err)
	p, err = paths.DataUserDe(c, uuid, userID)
	rm(p, err)
	p, err = paths.DataMedia(c, uuid, userID)
	rm(p, err)

	if uuid == "" {
		rm(paths.UserConfig(c, userID), nil)
	}

	if failed > 0 {
		return ierror.Aggregated("delete_user", strconv.FormatUint(uint64(userID), 10), failed)
	}
	return nil
}

// MakeUserConfig prepares the per-user config directory on internal
// storage.
func MakeUserConfig(c *config.Config, userID uint32) error {
	return fsutil.EnsureDir(paths.UserConfig(c, userID), 0750, paths.AIDSystem, paths.AIDEverybody)
}

// LinkLib replaces the lib entry under the package directory with a
// symlink to the container's native library directory. The package
// directory is temporarily handed to the installer uid and locked down
// to 0700 for the swap; the original owner and mode are restored on
// every exit path.
func LinkLib(c *config.Config, uuid, pkg, asecLibDir string, userID uint32) error {
	pkgDir, err := paths.DataUserPackage(c, uuid, userID, pkg)
	if err != nil {
		return err
	}
	libSymlink := filepath.Join(pkgDir, paths.LibDirName)

	var st unix.Stat_t
	if err := unix.Stat(pkgDir, &st); err != nil {
		return ierror.New(ierror.IO, "stat", pkgDir, err)
	}

	if err := os.Chown(pkgDir, paths.AIDInstall, paths.AIDInstall); err != nil {
		return ierror.New(ierror.IO, "chown", pkgDir, err)
	}
	restore := func() {
		if err := os.Chmod(pkgDir, os.FileMode(st.Mode&07777)); err != nil {
			logrus.Errorf("Failed to restore mode of %q: %v", pkgDir, err)
		}
		if err := os.Chown(pkgDir, int(st.Uid), int(st.Gid)); err != nil {
			logrus.Errorf("Failed to restore owner of %q: %v", pkgDir, err)
		}
	}
	defer restore()

	if err := os.Chmod(pkgDir, 0700); err != nil {
		return ierror.New(ierror.IO, "chmod", pkgDir, err)
	}

	var libStat unix.Stat_t
	err = unix.Lstat(libSymlink, &libStat)
	switch {
	case err == unix.ENOENT:
		// Nothing to replace.
	case err != nil:
		return ierror.New(ierror.IO, "lstat", libSymlink, err)
	case libStat.Mode&unix.S_IFMT == unix.S_IFDIR:
		if err := fsutil.DeleteDirContents(libSymlink, true); err != nil {
			return err
		}
	case libStat.Mode&unix.S_IFMT == unix.S_IFLNK:
		if err := os.Remove(libSymlink); err != nil {
			return ierror.New(ierror.IO, "unlink", libSymlink, err)
		}
	}

	if err := os.Symlink(asecLibDir, libSymlink); err != nil {
		return ierror.New(ierror.IO, "symlink", libSymlink, err)
	}
	return nil
}

// LinkFile hard-links one file between two package code trees, after
// validating both endpoints against the app path allow-list.
func LinkFile(c *config.Config, relPath, fromBase, toBase string) error {
	from := filepath.Join(fromBase, relPath)
	to := filepath.Join(toBase, relPath)

	if err := paths.ValidateApkPathSubdirs(c, from); err != nil {
		return err
	}
	if err := paths.ValidateApkPathSubdirs(c, to); err != nil {
		return err
	}

	if err := os.Link(from, to); err != nil {
		return ierror.New(ierror.IO, "link", to, err)
	}
	return nil
}

// CreateOatDir prepares a compiled-output directory and its per-ISA
// subdirectory, group-writable for the installer.
func CreateOatDir(c *config.Config, oatDir, isa string) error {
	if err := paths.ValidateApkPath(c, oatDir); err != nil {
		return err
	}
	if err := fsutil.EnsureDir(oatDir, 0775, paths.AIDSystem, paths.AIDInstall); err != nil {
		return err
	}
	if err := fsutil.ApplyLabel(oatDir, fsutil.OatDirContext, false); err != nil {
		return err
	}
	isaDir := filepath.Join(oatDir, isa)
	return fsutil.EnsureDir(isaDir, 0775, paths.AIDSystem, paths.AIDInstall)
}

// RemovePackageDir deletes a package code tree after prefix validation.
func RemovePackageDir(c *config.Config, apkPath string) error {
	if err := paths.ValidateApkPath(c, apkPath); err != nil {
		return err
	}
	return fsutil.DeleteDirContents(apkPath, true)
}

// RemoveDex unlinks the dalvik-cache artifact derived from an APK. A
// missing artifact is still a failure, matching the historic contract.
func RemoveDex(c *config.Config, apkPath, isa string) error {
	if err := paths.ValidateApkOrSystemPath(c, apkPath); err != nil {
		return err
	}
	dexPath, err := paths.DalvikCache(c, apkPath, isa)
	if err != nil {
		return err
	}
	if err := os.Remove(dexPath); err != nil {
		return ierror.New(ierror.IO, "unlink", dexPath, err)
	}
	return nil
}

// MarkBootComplete removes the per-ISA boot marker, signaling that boot
// compilation finished.
func MarkBootComplete(c *config.Config, isa string) error {
	marker := paths.BootMarker(c, isa)
	if err := os.Remove(marker); err != nil {
		return ierror.New(ierror.IO, "unlink", marker, err)
	}
	return nil
}
