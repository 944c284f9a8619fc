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
	"os"
	"path"
	"sort"
	"strconv"

	"github.com/asterix-os/installd/installd/config"
)

// KnownUsers enumerates the users present on a volume by listing the
// numeric directory names under its per-volume user root. The owner
// (user 0) is always included, whether or not its legacy directory is
// visible there.
func KnownUsers(c *config.Config, uuid string) []uint32 {
	users := []uint32{0}

	data, err := Data(c, uuid)
	if err != nil {
		return users
	}
	entries, err := os.ReadDir(path.Join(data, "user"))
	if err != nil {
		return users
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		u, err := strconv.ParseUint(e.Name(), 10, 32)
		if err != nil || u == 0 {
			continue
		}
		users = append(users, uint32(u))
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}
