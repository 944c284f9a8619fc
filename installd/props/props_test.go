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

package props

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProps(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "build.prop")
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad(t *testing.T) {
	first := writeProps(t, `
# build properties
dalvik.vm.dex2oat-Xmx=512m
dalvik.vm.dex2oat-swap=true
ro.config.low_ram = false
malformed line without equals
`)
	second := writeProps(t, "dalvik.vm.dex2oat-Xmx=256m\n")

	s := Load([]string{first, second, "/does/not/exist.prop"})

	if got := s.GetString("dalvik.vm.dex2oat-Xmx", ""); got != "256m" {
		t.Errorf("later file should override: got %q, want 256m", got)
	}
	if got := s.GetString("dalvik.vm.dex2oat-swap", ""); got != "true" {
		t.Errorf("dex2oat-swap = %q, want true", got)
	}
	if got := s.GetString("ro.config.low_ram", ""); got != "false" {
		t.Errorf("whitespace not trimmed: got %q", got)
	}
	if _, ok := s.Get("malformed line without equals"); ok {
		t.Error("malformed line was stored")
	}
}

func TestGetBool(t *testing.T) {
	s := NewStore()
	s.Set("a", "true")
	s.Set("b", "1")
	s.Set("c", "false")
	s.Set("d", "yes")

	for _, tc := range []struct {
		key  string
		def  bool
		want bool
	}{
		{"a", false, true},
		{"b", false, true},
		{"c", true, false},
		{"d", true, false},
		{"missing", true, true},
		{"missing", false, false},
	} {
		if got := s.GetBool(tc.key, tc.def); got != tc.want {
			t.Errorf("GetBool(%q, %t) = %t, want %t", tc.key, tc.def, got, tc.want)
		}
	}
}

func TestGetString(t *testing.T) {
	s := NewStore()
	s.Set("set", "value")
	if got := s.GetString("set", "def"); got != "value" {
		t.Errorf("GetString(set) = %q", got)
	}
	if got := s.GetString("unset", "def"); got != "def" {
		t.Errorf("GetString(unset) = %q, want def", got)
	}
}
