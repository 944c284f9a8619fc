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

package fsutil

import (
	"fmt"

	selinux "github.com/opencontainers/selinux/go-selinux"

	"github.com/asterix-os/installd/installd/ierror"
	"github.com/asterix-os/installd/installd/paths"
)

// App data file types, keyed by the seinfo hint policy attached to the
// package. Everything unrecognized labels as a plain third-party app.
func appDataType(seinfo string) string {
	switch seinfo {
	case "platform":
		return "platform_app_data_file"
	case "media":
		return "media_app_data_file"
	default:
		return "app_data_file"
	}
}

// AppDataContext derives the SELinux context for a package data
// directory from its seinfo hint and owning uid. The MLS categories
// encode the app id so apps cannot read each other's files even with
// matching types.
func AppDataContext(seinfo string, uid uint32) string {
	appID := paths.AppFromUID(uid)
	return fmt.Sprintf("u:object_r:%s:s0:c%d,c%d",
		appDataType(seinfo), appID&0xff, 256+(appID>>8)&0xff)
}

// OatDirContext is the label for compiled-output directories.
const OatDirContext = "u:object_r:dalvikcache_data_file:s0"

// ApplyAppDataLabel labels a package data directory, recursively when
// asked. A kernel without SELinux enabled makes this a no-op, matching
// the platform labeller's behavior on permissive builds.
func ApplyAppDataLabel(path, seinfo string, uid uint32, recurse bool) error {
	if !selinux.GetEnabled() {
		return nil
	}
	if err := selinux.Chcon(path, AppDataContext(seinfo, uid), recurse); err != nil {
		return ierror.New(ierror.IO, "setfilecon", path, err)
	}
	return nil
}

// ApplyLabel applies a fixed context to one path (or a tree).
func ApplyLabel(path, context string, recurse bool) error {
	if !selinux.GetEnabled() {
		return nil
	}
	if err := selinux.Chcon(path, context, recurse); err != nil {
		return ierror.New(ierror.IO, "setfilecon", path, err)
	}
	return nil
}
