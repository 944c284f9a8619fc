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

package paths

import (
	"fmt"
	"strings"

	"github.com/asterix-os/installd/installd/config"
	"github.com/asterix-os/installd/installd/ierror"
)

// ValidatePackageName checks a package (or versioned install dir) name:
// bounded length, no NUL, no path traversal, and the usual identifier
// character set.
func ValidatePackageName(name string) error {
	if name == "" || len(name) >= PkgNameMax {
		return ierror.New(ierror.BadPath, "package_name", name, nil)
	}
	if name == "." || name == ".." || strings.Contains(name, "..") {
		return ierror.New(ierror.BadPath, "package_name", name, nil)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		case i > 0 && (c == '.' || c == '-'):
		default:
			return ierror.New(ierror.BadPath, "package_name", name, fmt.Errorf("bad character %q at %d", c, i))
		}
	}
	return nil
}

// apkPrefixes returns the allow-listed roots for caller-supplied APK
// and OAT paths, with the nesting depth each permits beneath the
// per-package directory.
func apkPrefixes(c *config.Config) []struct {
	prefix  string
	subdirs int
} {
	return []struct {
		prefix  string
		subdirs int
	}{
		{c.DataDir + "/app/", 1},
		{c.DataDir + "/app-private/", 1},
		{c.AsecDir + "/", 1},
		// Adopted volumes nest deeper: <uuid>/app/<pkg>/<entry>.
		{c.ExpandDir + "/", 3},
	}
}

func validatePathBasics(p string) error {
	if p == "" || p[0] != '/' {
		return ierror.New(ierror.BadPath, "validate", p, nil)
	}
	if len(p) >= PkgPathMax {
		return ierror.New(ierror.PathTooLong, "validate", p, nil)
	}
	if strings.IndexByte(p, 0) >= 0 {
		return ierror.New(ierror.BadPath, "validate", p, fmt.Errorf("embedded NUL"))
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return ierror.New(ierror.BadPath, "validate", p, fmt.Errorf("path traversal"))
		}
	}
	return nil
}

func validateAgainst(p, prefix string, maxSubdirs int) bool {
	if !strings.HasPrefix(p, prefix) {
		return false
	}
	rest := strings.TrimSuffix(p[len(prefix):], "/")
	if rest == "" {
		return false
	}
	// maxSubdirs < 0 means any depth; otherwise the entry may sit at
	// most maxSubdirs directories below the prefix.
	if maxSubdirs >= 0 && strings.Count(rest, "/") > maxSubdirs {
		return false
	}
	return true
}

// ValidateApkPath accepts a caller-supplied APK/OAT path that is a
// package directory under one of the allow-listed app roots or an entry
// directly inside one (under the adopted-volume root, <uuid>/app/<pkg>
// and its entries).
func ValidateApkPath(c *config.Config, p string) error {
	return validateApkPath(c, p, false)
}

// ValidateApkPathSubdirs is ValidateApkPath but permits arbitrarily
// nested entries beneath the package directory.
func ValidateApkPathSubdirs(c *config.Config, p string) error {
	return validateApkPath(c, p, true)
}

func validateApkPath(c *config.Config, p string, anyDepth bool) error {
	if err := validatePathBasics(p); err != nil {
		return err
	}
	for _, a := range apkPrefixes(c) {
		depth := a.subdirs
		if anyDepth {
			depth = -1
		}
		if validateAgainst(p, a.prefix, depth) {
			return nil
		}
	}
	return ierror.New(ierror.BadPath, "validate_apk_path", p, nil)
}

// ValidateSystemAppPath accepts paths inside the read-only system app
// directories.
func ValidateSystemAppPath(c *config.Config, p string) error {
	if err := validatePathBasics(p); err != nil {
		return err
	}
	for _, prefix := range []string{c.SystemDir + "/app/", c.SystemDir + "/priv-app/"} {
		if validateAgainst(p, prefix, 1) {
			return nil
		}
	}
	return ierror.New(ierror.BadPath, "validate_system_app_path", p, nil)
}

// ValidateApkOrSystemPath accepts paths valid under either allow-list.
// Operations like rm_dex take APKs from both worlds.
func ValidateApkOrSystemPath(c *config.Config, p string) error {
	if ValidateApkPath(c, p) == nil {
		return nil
	}
	return ValidateSystemAppPath(c, p)
}
