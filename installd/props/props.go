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

// Package props reads system properties. Properties come from
// build.prop-style files: one key=value per line, '#' comments, later
// files overriding earlier ones.
package props

import (
	"bufio"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Store holds a loaded property set.
type Store struct {
	values map[string]string
}

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{values: make(map[string]string)}
}

// Load reads the given property files in order. A missing file is
// skipped with a warning; the device may legitimately lack some of the
// default locations.
func Load(files []string) *Store {
	s := NewStore()
	for _, path := range files {
		if err := s.loadFile(path); err != nil {
			logrus.Warnf("Skipping property file %q: %v", path, err)
		}
	}
	return s
}

func (s *Store) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		s.values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return sc.Err()
}

// Set stores a property value, overriding any loaded one.
func (s *Store) Set(key, value string) {
	s.values[key] = value
}

// Get returns the raw value and whether the property is set.
func (s *Store) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// GetString returns the property value, or def when unset.
func (s *Store) GetString(key, def string) string {
	if v, ok := s.values[key]; ok {
		return v
	}
	return def
}

// GetBool returns true iff the property is set to the literal "true" or
// "1", or def when unset.
func (s *Store) GetBool(key string, def bool) bool {
	v, ok := s.values[key]
	if !ok {
		return def
	}
	return v == "true" || v == "1"
}
