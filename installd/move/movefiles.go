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

package move

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/asterix-os/installd/installd/config"
	"github.com/asterix-os/installd/installd/paths"
)

// Files consumes the update-command scripts dropped by a system
// update: each `dst:src` line at column 0 maps a destination package to
// a source package and applies to the whitespace-indented relative
// paths that follow it, up to the next mapping line. Malformed lines
// are logged and skipped; the whole pass is best-effort and always
// reports success, matching the contract that a broken script must not
// block boot.
func Files(c *config.Config) error {
	entries, err := os.ReadDir(c.UpdateCommandsDir)
	if err != nil {
		// No scripts is the common case.
		return nil
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(c.UpdateCommandsDir, e.Name())
		f, err := os.Open(path)
		if err != nil {
			logrus.Warnf("Unable to open update commands at %q: %v", path, err)
			continue
		}
		processCommandFile(c, path, f)
		f.Close()
	}
	return nil
}

// transfer tracks the package mapping currently in effect while a
// command file is processed. seen means a mapping line was parsed;
// valid means both packages resolved and paths may be moved.
type transfer struct {
	srcDir string
	dstDir string
	dstUID uint32
	dstGID uint32
	seen   bool
	valid  bool
}

func processCommandFile(c *config.Config, name string, f *os.File) {
	var cur transfer
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, paths.PkgPathMax), paths.PkgPathMax)
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		indented := len(line) > 0 && unicode.IsSpace(rune(line[0]))
		if indented {
			if !cur.seen {
				logrus.Warnf("Path before package line in %q: %q", name, trimmed)
				continue
			}
			if !cur.valid {
				// One of the packages no longer exists.
				continue
			}
			moveRelative(&cur, trimmed)
			continue
		}
		cur = parsePackageLine(c, name, trimmed)
	}
	if err := sc.Err(); err != nil {
		logrus.Warnf("Failure reading update commands in %q: %v", name, err)
	}
}

func parsePackageLine(c *config.Config, name, line string) transfer {
	dstPkg, srcPkg, ok := strings.Cut(line, ":")
	if !ok {
		logrus.Warnf("Bad package spec in %q; no ':' sep: %q", name, line)
		return transfer{}
	}
	if paths.ValidatePackageName(dstPkg) != nil || paths.ValidatePackageName(srcPkg) != nil {
		logrus.Warnf("Bad package name in %q: %q", name, line)
		return transfer{}
	}

	srcDir, err := paths.DataUserPackage(c, "", 0, srcPkg)
	if err != nil {
		return transfer{}
	}
	if _, err := os.Lstat(srcDir); err != nil {
		// Source package is gone; skip its paths quietly.
		return transfer{seen: true}
	}
	dstDir, err := paths.DataUserPackage(c, "", 0, dstPkg)
	if err != nil {
		return transfer{}
	}
	var st unix.Stat_t
	if err := unix.Lstat(dstDir, &st); err != nil {
		// Destination package doesn't exist; normal with
		// original-package renames, so stay quiet.
		return transfer{seen: true}
	}
	logrus.Debugf("Transferring from %q to %q: uid=%d", srcPkg, dstPkg, st.Uid)
	return transfer{srcDir: srcDir, dstDir: dstDir, dstUID: st.Uid, dstGID: st.Gid, seen: true, valid: true}
}

func moveRelative(cur *transfer, rel string) {
	if strings.HasPrefix(rel, "/") || strings.Contains(rel, "..") {
		logrus.Warnf("Invalid move path %q", rel)
		return
	}
	src := filepath.Join(cur.srcDir, rel)
	dst := filepath.Join(cur.dstDir, rel)
	if len(src) >= paths.PkgPathMax || len(dst) >= paths.PkgPathMax {
		logrus.Warnf("Move path too long; skipping: %q", rel)
		return
	}
	logrus.Debugf("Move file %q (from %q to %q)", rel, cur.srcDir, cur.dstDir)
	if err := moveFileOrDir(src, dst, cur.dstUID, cur.dstGID); err != nil {
		logrus.Warnf("Unable to move %q to %q: %v", src, dst, err)
	}
}

// moveFileOrDir renames a file into place, creating intermediate
// destination directories owned by the destination package. Directories
// are walked entry by entry; empty source directories are left behind
// for the package manager's eventual cleanup.
func moveFileOrDir(src, dst string, uid, gid uint32) error {
	var st unix.Stat_t
	if err := unix.Lstat(src, &st); err != nil {
		return err
	}

	if st.Mode&unix.S_IFMT != unix.S_IFDIR {
		if err := mkInnerDirs(filepath.Dir(dst), uid, gid); err != nil {
			return err
		}
		if err := os.Rename(src, dst); err != nil {
			return err
		}
		if err := os.Chown(dst, int(uid), int(gid)); err != nil {
			os.Remove(dst)
			return err
		}
		return nil
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	var firstErr error
	for _, e := range entries {
		if err := moveFileOrDir(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name()), uid, gid); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func mkInnerDirs(dir string, uid, gid uint32) error {
	if _, err := os.Lstat(dir); err == nil {
		return nil
	}
	if err := mkInnerDirs(filepath.Dir(dir), uid, gid); err != nil {
		return err
	}
	if err := os.Mkdir(dir, 0771); err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	return os.Chown(dir, int(uid), int(gid))
}
