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
	"strings"
	"testing"

	"github.com/asterix-os/installd/installd/config"
	"github.com/asterix-os/installd/installd/ierror"
)

func testConfig() *config.Config {
	return &config.Config{
		DataDir:   "/data",
		SystemDir: "/system",
		AsecDir:   "/mnt/asec",
		MediaDir:  "/data/media",
		ExpandDir: "/mnt/expand",
	}
}

func TestMultiuserUID(t *testing.T) {
	for _, tc := range []struct {
		user, app, want uint32
	}{
		{0, 10042, 10042},
		{10, 10042, 1010042},
		{2, 100123, 200123},
	} {
		if got := MultiuserUID(tc.user, tc.app); got != tc.want {
			t.Errorf("MultiuserUID(%d, %d) = %d, want %d", tc.user, tc.app, got, tc.want)
		}
	}
	if got := UserFromUID(1010042); got != 10 {
		t.Errorf("UserFromUID(1010042) = %d, want 10", got)
	}
	if got := AppFromUID(1010042); got != 10042 {
		t.Errorf("AppFromUID(1010042) = %d, want 10042", got)
	}
}

func TestDataUserPaths(t *testing.T) {
	c := testConfig()
	for _, tc := range []struct {
		name string
		got  func() (string, error)
		want string
	}{
		{"owner legacy", func() (string, error) { return DataUser(c, "", 0) }, "/data/data"},
		{"secondary", func() (string, error) { return DataUser(c, "", 10) }, "/data/user/10"},
		{"expanded", func() (string, error) { return DataUser(c, "TEST-UUID", 10) }, "/mnt/expand/TEST-UUID/user/10"},
		{"de internal", func() (string, error) { return DataUserDe(c, "", 10) }, "/data/user_de/10"},
		{"ce package", func() (string, error) { return DataUserPackage(c, "", 10, "com.example") }, "/data/user/10/com.example"},
		{"de package", func() (string, error) { return DataUserDePackage(c, "", 10, "com.example") }, "/data/user_de/10/com.example"},
		{"media", func() (string, error) { return DataMedia(c, "", 10) }, "/data/media/10"},
		{"app package", func() (string, error) { return DataAppPackage(c, "", "com.example-1") }, "/data/app/com.example-1"},
	} {
		got, err := tc.got()
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestDalvikCache(t *testing.T) {
	c := testConfig()
	got, err := DalvikCache(c, "/data/app/com.ex-1/base.apk", "arm64")
	if err != nil {
		t.Fatalf("DalvikCache: %v", err)
	}
	want := "/data/dalvik-cache/arm64/data@app@com.ex-1@base.apk@classes.dex"
	if got != want {
		t.Errorf("DalvikCache = %q, want %q", got, want)
	}

	if _, err := DalvikCache(c, "relative/base.apk", "arm64"); !ierror.IsKind(err, ierror.BadPath) {
		t.Errorf("relative path: got %v, want BadPath", err)
	}
	long := "/data/app/" + strings.Repeat("a", PkgPathMax) + "/base.apk"
	if _, err := DalvikCache(c, long, "arm64"); !ierror.IsKind(err, ierror.PathTooLong) {
		t.Errorf("long path: got %v, want PathTooLong", err)
	}
}

func TestOatFile(t *testing.T) {
	got, err := OatFile("/data/app/com.ex-1/oat", "/data/app/com.ex-1/base.apk", "arm")
	if err != nil {
		t.Fatalf("OatFile: %v", err)
	}
	if want := "/data/app/com.ex-1/oat/arm/base.odex"; got != want {
		t.Errorf("OatFile = %q, want %q", got, want)
	}

	got, err = OdexFile("/data/app/com.ex-1/base.apk", "arm")
	if err != nil {
		t.Fatalf("OdexFile: %v", err)
	}
	if want := "/data/app/com.ex-1/oat/arm/base.odex"; got != want {
		t.Errorf("OdexFile = %q, want %q", got, want)
	}

	if _, err := OatFile("/oat", "/data/app/com.ex-1/noext", "arm"); err == nil {
		t.Error("OatFile accepted a name without an extension")
	}
}

func TestFlatten(t *testing.T) {
	got, err := Flatten("P/", ".S", "/a/b/c.apk")
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if want := "P/a@b@c.apk.S"; got != want {
		t.Errorf("Flatten = %q, want %q", got, want)
	}

	for _, bad := range []string{"", "/", "relative/overlay.apk"} {
		if _, err := Flatten("P/", ".S", bad); err == nil {
			t.Errorf("Flatten(%q) succeeded, want error", bad)
		}
	}
}

func TestValidatePackageName(t *testing.T) {
	for _, tc := range []struct {
		name string
		ok   bool
	}{
		{"com.example", true},
		{"com.example-1", true},
		{"a", true},
		{"under_score", true},
		{"", false},
		{".", false},
		{"..", false},
		{"com/../evil", false},
		{"-leadingdash", false},
		{".leadingdot", false},
		{"has space", false},
		{strings.Repeat("a", PkgNameMax), false},
	} {
		err := ValidatePackageName(tc.name)
		if (err == nil) != tc.ok {
			t.Errorf("ValidatePackageName(%q) = %v, want ok=%t", tc.name, err, tc.ok)
		}
	}
}

func TestValidateApkPath(t *testing.T) {
	c := testConfig()
	for _, tc := range []struct {
		path string
		ok   bool
	}{
		{"/data/app/com.ex-1/base.apk", true},
		{"/data/app/com.ex-1", true},
		{"/data/app-private/com.ex-1/base.apk", true},
		{"/mnt/asec/com.ex-1/pkg.apk", true},
		{"/mnt/expand/TEST-UUID/app/com.ex-1/base.apk", true},
		{"/data/app/", false},
		{"/data/app/com.ex-1/sub/deep/base.apk", false},
		{"/data/data/com.ex", false},
		{"/data/app/../system/app/evil.apk", false},
		{"/system/app/Core/Core.apk", false},
		{"relative", false},
		{"/data/app/" + strings.Repeat("a", PkgPathMax), false},
	} {
		err := ValidateApkPath(c, tc.path)
		if (err == nil) != tc.ok {
			t.Errorf("ValidateApkPath(%q) = %v, want ok=%t", tc.path, err, tc.ok)
		}
	}

	// The subdir variant accepts deeper nesting but still rejects
	// traversal.
	if err := ValidateApkPathSubdirs(c, "/data/app/com.ex-1/lib/arm/libfoo.so"); err != nil {
		t.Errorf("ValidateApkPathSubdirs rejected nested path: %v", err)
	}
	if err := ValidateApkPathSubdirs(c, "/data/app/com.ex-1/../../evil"); err == nil {
		t.Error("ValidateApkPathSubdirs accepted traversal")
	}

	if err := ValidateSystemAppPath(c, "/system/app/Core/Core.apk"); err != nil {
		t.Errorf("ValidateSystemAppPath rejected system path: %v", err)
	}
	if err := ValidateApkOrSystemPath(c, "/system/app/Core/Core.apk"); err != nil {
		t.Errorf("ValidateApkOrSystemPath rejected system path: %v", err)
	}
}
