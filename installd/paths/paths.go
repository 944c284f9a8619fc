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

// Package paths resolves the canonical on-disk locations installd
// manages. Every path is keyed by (volume uuid, user id, package name);
// an empty uuid selects the internal data volume. All functions are
// pure on their arguments plus the Config.
package paths

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/asterix-os/installd/installd/config"
	"github.com/asterix-os/installd/installd/ierror"
)

const (
	// PkgNameMax bounds a package name, including the terminator slot
	// the wire protocol reserves.
	PkgNameMax = 128

	// PkgPathMax bounds any package-derived path.
	PkgPathMax = 1024

	// PerUserRange is the uid span assigned to each user.
	PerUserRange = 100000

	// AIDSystem is the system server uid/gid.
	AIDSystem = 1000

	// AIDInstall is the package installer gid.
	AIDInstall = 1012

	// AIDEverybody is the gid shared by all apps of a user.
	AIDEverybody = 9997

	// CacheDirName and friends are the well-known entries inside a
	// package data directory.
	CacheDirName     = "cache"
	CodeCacheDirName = "code_cache"
	LibDirName       = "lib"

	// DalvikCacheName is the compiled-bytecode cache directory under
	// the data root.
	DalvikCacheName = "dalvik-cache"

	// BootMarkerName is the per-ISA marker unlinked once boot
	// compilation finishes.
	BootMarkerName = ".booting"

	// ProfileExt and ProfileRefExt name the per-user compiler profile
	// files inside code_cache.
	ProfileExt    = ".prof"
	ProfileRefExt = ".prof.ref"
)

// MultiuserUID returns the synthetic uid owning a package's data for a
// given user.
func MultiuserUID(userID, appID uint32) uint32 {
	return userID*PerUserRange + appID%PerUserRange
}

// UserFromUID inverts MultiuserUID's user component.
func UserFromUID(uid uint32) uint32 {
	return uid / PerUserRange
}

// AppFromUID inverts MultiuserUID's app component.
func AppFromUID(uid uint32) uint32 {
	return uid % PerUserRange
}

// Data returns the data root for a volume.
func Data(c *config.Config, uuid string) (string, error) {
	if uuid == "" {
		return c.DataDir, nil
	}
	if err := validateVolumeUUID(uuid); err != nil {
		return "", err
	}
	return path.Join(c.ExpandDir, uuid), nil
}

// DataApp returns the package code root for a volume.
func DataApp(c *config.Config, uuid string) (string, error) {
	data, err := Data(c, uuid)
	if err != nil {
		return "", err
	}
	return path.Join(data, "app"), nil
}

// DataAppPackage returns the code tree for one package. name is the
// versioned install directory name, e.g. "com.example-1".
func DataAppPackage(c *config.Config, uuid, name string) (string, error) {
	if err := ValidatePackageName(name); err != nil {
		return "", err
	}
	app, err := DataApp(c, uuid)
	if err != nil {
		return "", err
	}
	return path.Join(app, name), nil
}

// DataUser returns the credential-encrypted data root for one user.
// User 0 on the internal volume keeps the legacy location.
func DataUser(c *config.Config, uuid string, userID uint32) (string, error) {
	data, err := Data(c, uuid)
	if err != nil {
		return "", err
	}
	if uuid == "" && userID == 0 {
		return path.Join(data, "data"), nil
	}
	return path.Join(data, "user", itoa(userID)), nil
}

// DataUserDe returns the device-encrypted data root for one user.
func DataUserDe(c *config.Config, uuid string, userID uint32) (string, error) {
	data, err := Data(c, uuid)
	if err != nil {
		return "", err
	}
	return path.Join(data, "user_de", itoa(userID)), nil
}

// DataUserPackage returns the CE package directory.
func DataUserPackage(c *config.Config, uuid string, userID uint32, pkg string) (string, error) {
	if err := ValidatePackageName(pkg); err != nil {
		return "", err
	}
	user, err := DataUser(c, uuid, userID)
	if err != nil {
		return "", err
	}
	return path.Join(user, pkg), nil
}

// DataUserDePackage returns the DE package directory.
func DataUserDePackage(c *config.Config, uuid string, userID uint32, pkg string) (string, error) {
	if err := ValidatePackageName(pkg); err != nil {
		return "", err
	}
	user, err := DataUserDe(c, uuid, userID)
	if err != nil {
		return "", err
	}
	return path.Join(user, pkg), nil
}

// DataMedia returns the media root for one user on a volume.
func DataMedia(c *config.Config, uuid string, userID uint32) (string, error) {
	if uuid == "" {
		return path.Join(c.MediaDir, itoa(userID)), nil
	}
	data, err := Data(c, uuid)
	if err != nil {
		return "", err
	}
	return path.Join(data, "media", itoa(userID)), nil
}

// UserConfig returns the per-user config directory. Only meaningful on
// internal storage.
func UserConfig(c *config.Config, userID uint32) string {
	return path.Join(c.UserConfigDir, itoa(userID))
}

// DalvikCache derives the default compiled output path for an APK: the
// absolute APK path is flattened ('/' becomes '@') into the per-ISA
// dalvik cache.
func DalvikCache(c *config.Config, apkPath, isa string) (string, error) {
	if !strings.HasPrefix(apkPath, "/") || len(apkPath) < 2 {
		return "", ierror.New(ierror.BadPath, "dalvik_cache", apkPath, nil)
	}
	flat := strings.ReplaceAll(apkPath[1:], "/", "@")
	out := path.Join(c.DalvikCacheDir(isa), flat+"@classes.dex")
	if len(out) >= PkgPathMax {
		return "", ierror.New(ierror.PathTooLong, "dalvik_cache", apkPath, nil)
	}
	return out, nil
}

// BootMarker returns the per-ISA boot marker path.
func BootMarker(c *config.Config, isa string) string {
	return path.Join(c.DalvikCacheDir(isa), BootMarkerName)
}

// OatFile computes <oatDir>/<isa>/<apk base>.odex for a caller-supplied
// oat directory.
func OatFile(oatDir, apkPath, isa string) (string, error) {
	base := path.Base(apkPath)
	dot := strings.LastIndexByte(base, '.')
	if dot <= 0 {
		return "", ierror.New(ierror.BadPath, "oat_file", apkPath, nil)
	}
	out := path.Join(oatDir, isa, base[:dot]+".odex")
	if len(out) >= PkgPathMax {
		return "", ierror.New(ierror.PathTooLong, "oat_file", out, nil)
	}
	return out, nil
}

// OdexFile computes the pre-shipped odex location next to an APK:
// <apk dir>/oat/<isa>/<apk base>.odex.
func OdexFile(apkPath, isa string) (string, error) {
	return OatFile(path.Join(path.Dir(apkPath), "oat"), apkPath, isa)
}

// Flatten turns an absolute overlay path into prefix + path-with-'@'
// separators + suffix, e.g. ("P/", ".S", "/a/b/c.apk") gives
// "P/a@b@c.apk.S".
func Flatten(prefix, suffix, overlayPath string) (string, error) {
	if len(overlayPath) < 2 || overlayPath[0] != '/' {
		return "", ierror.New(ierror.BadPath, "flatten", overlayPath, nil)
	}
	flat := strings.ReplaceAll(overlayPath[1:], "/", "@")
	out := prefix + flat + suffix
	if len(out) >= pathMax {
		return "", ierror.New(ierror.PathTooLong, "flatten", overlayPath, nil)
	}
	return out, nil
}

const pathMax = 4096

func itoa(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}

func validateVolumeUUID(uuid string) error {
	if uuid == "" || len(uuid) >= PkgNameMax {
		return ierror.New(ierror.BadPath, "volume_uuid", uuid, nil)
	}
	for i := 0; i < len(uuid); i++ {
		c := uuid[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return ierror.New(ierror.BadPath, "volume_uuid", uuid, fmt.Errorf("bad character %q", c))
		}
	}
	return nil
}
