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

// Package idmap builds resource-override translation maps for runtime
// overlay packages by driving the external idmap tool under the
// requesting app's credentials.
package idmap

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/asterix-os/installd/installd/config"
	"github.com/asterix-os/installd/installd/ierror"
	"github.com/asterix-os/installd/installd/paths"
	"github.com/asterix-os/installd/installd/proc"
)

// Generate produces the idmap file for (targetApk, overlayApk). The
// output lives at the flattened overlay path, world-readable, owned
// system:app, and is never left partial: any failure after creation
// unlinks it.
func Generate(c *config.Config, targetApk, overlayApk string, uid uint32) error {
	logrus.Debugf("idmap target_apk=%q overlay_apk=%q uid=%d", targetApk, overlayApk, uid)

	idmapPath, err := paths.Flatten(c.IdmapPrefix, c.IdmapSuffix, overlayApk)
	if err != nil {
		return err
	}

	os.Remove(idmapPath)
	out, err := os.OpenFile(idmapPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return ierror.New(ierror.IO, "open", idmapPath, err)
	}
	committed := false
	defer func() {
		out.Close()
		if !committed {
			os.Remove(idmapPath)
		}
	}()

	if err := out.Chown(paths.AIDSystem, int(uid)); err != nil {
		return ierror.New(ierror.IO, "fchown", idmapPath, err)
	}
	if err := out.Chmod(0644); err != nil {
		return ierror.New(ierror.IO, "fchmod", idmapPath, err)
	}

	h := &proc.Helper{
		Path: c.IdmapBin,
		UID:  uid,
		GID:  uid,
		Lock: out,
	}
	fd := h.Donate(out)
	h.Args = []string{"--fd", targetApk, overlayApk, strconv.Itoa(fd)}

	if err := h.Run(); err != nil {
		return err
	}
	committed = true
	return nil
}
