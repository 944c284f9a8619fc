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

// Package move relocates a complete package (code tree plus per-user
// data) between storage volumes, rolling back the destination on any
// failure. The source is never touched: the caller destroys it only
// after it has persisted the new location, so a power loss mid-move
// leaves a recoverable source.
package move

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/asterix-os/installd/installd/config"
	"github.com/asterix-os/installd/installd/fsutil"
	"github.com/asterix-os/installd/installd/ierror"
	"github.com/asterix-os/installd/installd/layout"
	"github.com/asterix-os/installd/installd/paths"
	"github.com/asterix-os/installd/installd/proc"
)

// copyTree copies src into dstParent through the external cp helper:
// remove existing destination entries, preserve attributes, recurse,
// and never follow or dereference symlinks.
func copyTree(c *config.Config, src, dstParent string) error {
	h := &proc.Helper{
		Path: c.CpBin,
		Args: []string{"-F", "-p", "-R", "-P", "-d", src, dstParent},
	}
	return h.Run()
}

// CompleteApp moves one package from fromUUID to toUUID. The
// destination must not already hold the package; a pre-existing
// non-empty code tree aborts before anything is copied so rollback can
// never delete data the move didn't create.
func CompleteApp(c *config.Config, fromUUID, toUUID, pkg, dataAppName string, appID uint32, seinfo string) error {
	if err := paths.ValidatePackageName(pkg); err != nil {
		return err
	}
	users := paths.KnownUsers(c, fromUUID)

	fromCode, err := paths.DataAppPackage(c, fromUUID, dataAppName)
	if err != nil {
		return err
	}
	toCode, err := paths.DataAppPackage(c, toUUID, dataAppName)
	if err != nil {
		return err
	}
	toCodeParent, err := paths.DataApp(c, toUUID)
	if err != nil {
		return err
	}

	if entries, err := os.ReadDir(toCode); err == nil && len(entries) > 0 {
		return ierror.New(ierror.BadPath, "move_complete_app", toCode, nil)
	}

	rollback := func() {
		if err := fsutil.DeleteDirContents(toCode, true); err != nil {
			logrus.Warnf("Failed to rollback %q: %v", toCode, err)
		}
		for _, user := range users {
			to, err := paths.DataUserPackage(c, toUUID, user, pkg)
			if err != nil {
				continue
			}
			if err := fsutil.DeleteDirContents(to, true); err != nil {
				logrus.Warnf("Failed to rollback %q: %v", to, err)
			}
		}
	}

	logrus.Debugf("Copying %q to %q", fromCode, toCode)
	if err := copyTree(c, fromCode, toCodeParent); err != nil {
		rollback()
		return err
	}
	if err := fsutil.ApplyAppDataLabel(toCode, seinfo, paths.MultiuserUID(0, appID), true); err != nil {
		rollback()
		return err
	}

	for _, user := range users {
		from, err := paths.DataUserPackage(c, fromUUID, user, pkg)
		if err != nil {
			rollback()
			return err
		}
		// Not every user has data for every package.
		if _, serr := os.Lstat(from); serr != nil {
			logrus.Infof("Missing source %q", from)
			continue
		}

		userRoot, err := paths.DataUser(c, toUUID, user)
		if err != nil {
			rollback()
			return err
		}
		if err := fsutil.EnsureDir(userRoot, 0771, paths.AIDSystem, paths.AIDSystem); err != nil {
			rollback()
			return err
		}
		if err := layout.CreateAppData(c, toUUID, pkg, user, layout.FlagCEStorage|layout.FlagDEStorage, appID, seinfo); err != nil {
			rollback()
			return err
		}

		logrus.Debugf("Copying %q to user %d on %q", from, user, toUUID)
		if err := copyTree(c, from, userRoot); err != nil {
			rollback()
			return err
		}
		if err := layout.RestoreconAppData(c, toUUID, pkg, user, layout.FlagCEStorage|layout.FlagDEStorage, appID, seinfo); err != nil {
			rollback()
			return err
		}
	}

	// The framework scans and persists the new location before asking
	// for the source to be destroyed.
	return nil
}
