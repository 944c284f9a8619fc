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

package appsize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/asterix-os/installd/installd/config"
	"github.com/asterix-os/installd/installd/fsutil"
	"github.com/asterix-os/installd/installd/layout"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		DataDir:   filepath.Join(root, "data"),
		SystemDir: filepath.Join(root, "system"),
		AsecDir:   filepath.Join(root, "asec"),
		MediaDir:  filepath.Join(root, "data", "media"),
		ExpandDir: filepath.Join(root, "expand"),
	}
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestMeasureClassification(t *testing.T) {
	c := testConfig(t)
	const pkg = "com.ex"
	apk := filepath.Join(c.DataDir, "app", pkg+"-1", "base.apk")
	writeFile(t, apk, 4096)

	pkgDir := filepath.Join(c.DataDir, "data", pkg)
	writeFile(t, filepath.Join(pkgDir, "lib", "libfoo.so"), 8192)
	writeFile(t, filepath.Join(pkgDir, "cache", "tmp.bin"), 2048)
	writeFile(t, filepath.Join(pkgDir, "files", "db.sqlite"), 1024)
	writeFile(t, filepath.Join(pkgDir, "prefs.xml"), 512)

	req := &Request{
		UUID:       "",
		Pkg:        pkg,
		UserID:     0,
		Flags:      layout.FlagCEStorage,
		ApkPath:    apk,
		LibDirPath: "!",
		FwdLockApk: "!",
		AsecPath:   "!",
		Isa:        "arm",
	}
	stats, err := Measure(c, req)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}

	apkSize, err := fsutil.LstatSize(apk)
	if err != nil {
		t.Fatal(err)
	}
	libSize, _ := fsutil.LstatSize(filepath.Join(pkgDir, "lib"))
	libSize += fsutil.CalculateDirSize(filepath.Join(pkgDir, "lib"))
	cacheSize, _ := fsutil.LstatSize(filepath.Join(pkgDir, "cache"))
	cacheSize += fsutil.CalculateDirSize(filepath.Join(pkgDir, "cache"))

	if want := apkSize + libSize; stats.Code != want {
		t.Errorf("Code = %d, want %d", stats.Code, want)
	}
	if stats.Cache != cacheSize {
		t.Errorf("Cache = %d, want %d", stats.Cache, cacheSize)
	}
	if stats.Data <= 0 {
		t.Errorf("Data = %d, want > 0", stats.Data)
	}
	if stats.Asec != 0 {
		t.Errorf("Asec = %d, want 0", stats.Asec)
	}

	// Every byte of the package dir is classified exactly once.
	pkgTotal, _ := fsutil.LstatSize(pkgDir)
	total := fsutil.CalculateDirSize(pkgDir)
	if got := stats.Code - apkSize + stats.Cache + stats.Data; got != total {
		t.Errorf("partition not disjoint: classified %d bytes of %d (pkg dir inode %d excluded)", got, total, pkgTotal)
	}
}

func TestMeasureLibSymlink(t *testing.T) {
	c := testConfig(t)
	const pkg = "com.ex"
	apk := filepath.Join(c.DataDir, "app", pkg+"-1", "base.apk")
	writeFile(t, apk, 1024)

	pkgDir := filepath.Join(c.DataDir, "data", pkg)
	if err := os.MkdirAll(pkgDir, 0755); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(c.AsecDir, pkg+"-1", "lib")
	if err := os.MkdirAll(target, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, filepath.Join(pkgDir, "lib")); err != nil {
		t.Fatal(err)
	}

	req := &Request{
		Pkg:        pkg,
		UserID:     0,
		Flags:      layout.FlagCEStorage,
		ApkPath:    apk,
		LibDirPath: "!",
		FwdLockApk: "!",
		AsecPath:   "!",
		Isa:        "arm",
	}
	stats, err := Measure(c, req)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}

	linkSize, err := fsutil.LstatSize(filepath.Join(pkgDir, "lib"))
	if err != nil {
		t.Fatal(err)
	}
	apkSize, _ := fsutil.LstatSize(apk)
	if want := apkSize + linkSize; stats.Code != want {
		t.Errorf("Code = %d, want %d (symlinked lib counted by its inode)", stats.Code, want)
	}
}

func TestMeasureAsec(t *testing.T) {
	c := testConfig(t)
	asec := filepath.Join(c.AsecDir, "com.ex-1.asec")
	writeFile(t, asec, 8192)

	req := &Request{
		Pkg:        "com.ex",
		UserID:     0,
		Flags:      0,
		ApkPath:    filepath.Join(c.AsecDir, "com.ex-1", "pkg.apk"),
		LibDirPath: "!",
		FwdLockApk: "!",
		AsecPath:   asec,
		Isa:        "arm",
	}
	stats, err := Measure(c, req)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	want, _ := fsutil.LstatSize(asec)
	if stats.Asec != want {
		t.Errorf("Asec = %d, want %d", stats.Asec, want)
	}
	// An APK under the asec mount is container bytes, not code.
	if stats.Code != 0 {
		t.Errorf("Code = %d, want 0 for asec-resident APK", stats.Code)
	}
}
