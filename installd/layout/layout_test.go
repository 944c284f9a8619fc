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

package layout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/asterix-os/installd/installd/config"
	"github.com/asterix-os/installd/installd/ierror"
	"github.com/asterix-os/installd/installd/paths"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	c := &config.Config{
		DataDir:       filepath.Join(root, "data"),
		SystemDir:     filepath.Join(root, "system"),
		AsecDir:       filepath.Join(root, "asec"),
		MediaDir:      filepath.Join(root, "data", "media"),
		ExpandDir:     filepath.Join(root, "expand"),
		UserConfigDir: filepath.Join(root, "data", "misc", "user"),
	}
	for _, p := range []string{
		filepath.Join(c.DataDir, "data"),
		filepath.Join(c.DataDir, "app"),
		filepath.Join(c.DataDir, "user", "10"),
		filepath.Join(c.DataDir, "user_de", "0"),
		filepath.Join(c.DataDir, "user_de", "10"),
	} {
		if err := os.MkdirAll(p, 0755); err != nil {
			t.Fatal(err)
		}
	}
	return c
}

// selfOwned skips tests that chown to the synthetic app uid; without
// privileges that only works when it equals the current uid and gid.
func selfOwned(t *testing.T) uint32 {
	t.Helper()
	if os.Getuid() != os.Getgid() && os.Geteuid() != 0 {
		t.Skip("requires uid == gid or root")
	}
	return uint32(os.Getuid())
}

func TestCreateThenClearCache(t *testing.T) {
	appID := selfOwned(t)
	c := testConfig(t)
	const pkg = "com.ex"

	if err := CreateAppData(c, "", pkg, 0, FlagCEStorage|FlagDEStorage, appID, "default"); err != nil {
		t.Fatalf("CreateAppData: %v", err)
	}

	cePath, _ := paths.DataUserPackage(c, "", 0, pkg)
	dePath, _ := paths.DataUserDePackage(c, "", 0, pkg)
	for _, p := range []string{cePath, dePath} {
		fi, err := os.Lstat(p)
		if err != nil {
			t.Fatalf("missing %q: %v", p, err)
		}
		if got := fi.Mode().Perm(); got != 0751 {
			t.Errorf("%q mode = %o, want 0751", p, got)
		}
	}

	// Populate cache and data, then clear only the cache.
	cacheFile := filepath.Join(cePath, "cache", "x")
	dataFile := filepath.Join(cePath, "files", "y")
	for _, p := range []string{cacheFile, dataFile} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("z"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	if err := ClearAppData(c, "", pkg, 0, FlagCEStorage|FlagDEStorage|FlagClearCacheOnly); err != nil {
		t.Fatalf("ClearAppData: %v", err)
	}
	if _, err := os.Lstat(cacheFile); !os.IsNotExist(err) {
		t.Error("cache file survived clear")
	}
	if _, err := os.Lstat(dataFile); err != nil {
		t.Errorf("data file deleted by cache-only clear: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(cePath, "cache")); err != nil {
		t.Errorf("cache directory itself deleted: %v", err)
	}

	// Clearing twice leaves the same state.
	if err := ClearAppData(c, "", pkg, 0, FlagCEStorage|FlagDEStorage|FlagClearCacheOnly); err != nil {
		t.Fatalf("second ClearAppData: %v", err)
	}
}

func TestClearAppDataMissingDir(t *testing.T) {
	c := testConfig(t)
	if err := ClearAppData(c, "", "com.gone", 0, FlagCEStorage|FlagDEStorage); err != nil {
		t.Errorf("missing directory should be success: %v", err)
	}
}

func TestDestroyAppData(t *testing.T) {
	appID := selfOwned(t)
	c := testConfig(t)
	const pkg = "com.ex"

	if err := CreateAppData(c, "", pkg, 0, FlagCEStorage|FlagDEStorage, appID, "default"); err != nil {
		t.Fatalf("CreateAppData: %v", err)
	}
	if err := DestroyAppData(c, "", pkg, 0, FlagCEStorage|FlagDEStorage); err != nil {
		t.Fatalf("DestroyAppData: %v", err)
	}

	cePath, _ := paths.DataUserPackage(c, "", 0, pkg)
	dePath, _ := paths.DataUserDePackage(c, "", 0, pkg)
	for _, p := range []string{cePath, dePath} {
		if _, err := os.Lstat(p); !os.IsNotExist(err) {
			t.Errorf("%q survived destroy", p)
		}
	}

	// Destroying again is still success.
	if err := DestroyAppData(c, "", pkg, 0, FlagCEStorage|FlagDEStorage); err != nil {
		t.Errorf("second DestroyAppData: %v", err)
	}
}

func TestRemoveDex(t *testing.T) {
	c := testConfig(t)
	apk := filepath.Join(c.DataDir, "app", "com.ex-1", "base.apk")

	dexPath, err := paths.DalvikCache(c, apk, "arm")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(dexPath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dexPath, []byte("oat"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := RemoveDex(c, apk, "arm"); err != nil {
		t.Fatalf("RemoveDex: %v", err)
	}
	if _, err := os.Lstat(dexPath); !os.IsNotExist(err) {
		t.Error("dex artifact survived")
	}

	// Removing a missing artifact is a failure.
	if err := RemoveDex(c, apk, "arm"); err == nil {
		t.Error("RemoveDex of missing artifact succeeded")
	}

	// Paths outside the allow-list are rejected before any unlink.
	if err := RemoveDex(c, "/etc/passwd", "arm"); !ierror.IsKind(err, ierror.BadPath) {
		t.Errorf("got %v, want BadPath", err)
	}
}

func TestMarkBootComplete(t *testing.T) {
	c := testConfig(t)
	marker := paths.BootMarker(c, "arm")
	if err := os.MkdirAll(filepath.Dir(marker), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(marker, nil, 0644); err != nil {
		t.Fatal(err)
	}

	if err := MarkBootComplete(c, "arm"); err != nil {
		t.Fatalf("MarkBootComplete: %v", err)
	}
	if _, err := os.Lstat(marker); !os.IsNotExist(err) {
		t.Error("boot marker survived")
	}
	if err := MarkBootComplete(c, "arm"); err == nil {
		t.Error("second MarkBootComplete succeeded")
	}
}

func TestRemovePackageDir(t *testing.T) {
	c := testConfig(t)
	pkgDir := filepath.Join(c.DataDir, "app", "com.ex-1")
	if err := os.MkdirAll(filepath.Join(pkgDir, "lib"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(pkgDir, "base.apk"), []byte("zip"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := RemovePackageDir(c, pkgDir); err != nil {
		t.Fatalf("RemovePackageDir: %v", err)
	}
	if _, err := os.Lstat(pkgDir); !os.IsNotExist(err) {
		t.Error("package dir survived")
	}

	if err := RemovePackageDir(c, "/etc"); !ierror.IsKind(err, ierror.BadPath) {
		t.Errorf("got %v, want BadPath", err)
	}
}

func TestLinkFile(t *testing.T) {
	c := testConfig(t)
	fromBase := filepath.Join(c.DataDir, "app", "com.ex-1")
	toBase := filepath.Join(c.DataDir, "app", "com.ex-2")
	for _, d := range []string{fromBase, toBase} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(fromBase, "base.apk"), []byte("zip"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := LinkFile(c, "base.apk", fromBase, toBase); err != nil {
		t.Fatalf("LinkFile: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(toBase, "base.apk")); err != nil {
		t.Errorf("link missing: %v", err)
	}

	if err := LinkFile(c, "base.apk", "/etc", toBase); !ierror.IsKind(err, ierror.BadPath) {
		t.Errorf("got %v, want BadPath", err)
	}
}

func TestDeleteUser(t *testing.T) {
	c := testConfig(t)
	media := filepath.Join(c.MediaDir, "10")
	cfg := paths.UserConfig(c, 10)
	for _, d := range []string{media, cfg} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(media, "photo.jpg"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := DeleteUser(c, "", 10); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	for _, p := range []string{
		filepath.Join(c.DataDir, "user", "10"),
		filepath.Join(c.DataDir, "user_de", "10"),
		media,
	} {
		if _, err := os.Lstat(p); !os.IsNotExist(err) {
			t.Errorf("%q survived DeleteUser", p)
		}
	}
}
