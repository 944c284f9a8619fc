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

// Package config holds the immutable daemon configuration: the storage
// roots installd operates on, the helper binaries it execs, and runtime
// knobs. A Config is built once at startup from flags (optionally
// seeded from a TOML file) and handed to every component; nothing in
// the daemon mutates process-global state.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the fully resolved daemon configuration.
type Config struct {
	// DataDir is the primary data partition root, normally /data.
	DataDir string `toml:"data_dir"`

	// SystemDir is the read-only system partition root.
	SystemDir string `toml:"system_dir"`

	// AsecDir is the mount root for encrypted app containers.
	AsecDir string `toml:"asec_dir"`

	// MediaDir is the shared-storage root, normally /data/media.
	MediaDir string `toml:"media_dir"`

	// ExpandDir is the mount root for adopted storage volumes, normally
	// /mnt/expand. Per-volume layouts live at ExpandDir/<uuid>.
	ExpandDir string `toml:"expand_dir"`

	// UserConfigDir holds per-user configuration, normally
	// /data/misc/user. It only exists on internal storage.
	UserConfigDir string `toml:"user_config_dir"`

	// UpdateCommandsDir holds the movefiles command scripts.
	UpdateCommandsDir string `toml:"update_commands_dir"`

	// IdmapPrefix and IdmapSuffix bracket flattened overlay paths to
	// form idmap output paths.
	IdmapPrefix string `toml:"idmap_prefix"`
	IdmapSuffix string `toml:"idmap_suffix"`

	// Helper binaries.
	CpBin       string `toml:"cp_bin"`
	Dex2oatBin  string `toml:"dex2oat_bin"`
	PatchoatBin string `toml:"patchoat_bin"`
	IdmapBin    string `toml:"idmap_bin"`

	// BootImage is the patched-image-location handed to patchoat.
	BootImage string `toml:"boot_image"`

	// PropertyFiles are read, in order, into the system property store.
	// Later files override earlier ones.
	PropertyFiles []string `toml:"property_files"`

	// AlwaysProvideSwap forces a dexopt swap file regardless of the
	// dalvik.vm.dex2oat-swap property.
	AlwaysProvideSwap bool `toml:"always_provide_swap"`

	// LockFile is the daemon singleton lock. Empty disables locking.
	LockFile string `toml:"lock_file"`

	// Debug enables debug logging.
	Debug bool `toml:"debug"`

	// LogFilename, when set, receives the log instead of stderr.
	LogFilename string `toml:"log_file"`
}

// file-level knobs that don't correspond to a Config field.
const configFileFlag = "config-file"

// RegisterFlags registers all configuration flags on the given set.
func RegisterFlags(f *flag.FlagSet) {
	f.String(configFileFlag, "", "TOML file with defaults; flags given on the command line win")

	f.String("data-dir", "/data", "data partition root")
	f.String("system-dir", "/system", "system partition root")
	f.String("asec-dir", "/mnt/asec", "encrypted app container mount root")
	f.String("media-dir", "/data/media", "shared storage root")
	f.String("expand-dir", "/mnt/expand", "adopted storage mount root")
	f.String("user-config-dir", "/data/misc/user", "per-user config root (internal storage only)")
	f.String("update-commands-dir", "/system/etc/updatecmds", "movefiles command script directory")
	f.String("idmap-prefix", "/data/resource-cache/", "prefix for flattened idmap paths")
	f.String("idmap-suffix", "@idmap", "suffix for flattened idmap paths")
	f.String("cp-bin", "/system/bin/cp", "copy helper binary")
	f.String("dex2oat-bin", "/system/bin/dex2oat", "dex2oat compiler binary")
	f.String("patchoat-bin", "/system/bin/patchoat", "patchoat relocator binary")
	f.String("idmap-bin", "/system/bin/idmap", "idmap generator binary")
	f.String("boot-image", "/system/framework/boot.art", "patched-image-location for patchoat")
	f.String("property-files", "/system/build.prop:/default.prop", "colon-separated system property files")
	f.Bool("always-provide-swap", false, "always give dex2oat a swap file")
	f.String("lock-file", "/data/.installd.lock", "daemon singleton lock file; empty to disable")
	f.Bool("debug", false, "enable debug logging")
	f.String("log", "", "file path to log to; empty logs to stderr")
}

// NewFromFlags builds a Config from a parsed flag set. When
// --config-file is given, the file supplies defaults and explicitly set
// flags override it.
func NewFromFlags(f *flag.FlagSet) (*Config, error) {
	c := &Config{}
	if path := f.Lookup(configFileFlag).Value.String(); path != "" {
		md, err := toml.DecodeFile(path, c)
		if err != nil {
			return nil, fmt.Errorf("error reading config file %q: %w", path, err)
		}
		if undec := md.Undecoded(); len(undec) > 0 {
			return nil, fmt.Errorf("unknown keys in config file %q: %v", path, undec)
		}
	}

	set := map[string]bool{}
	f.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	get := func(name, fromFile string) string {
		if fromFile != "" && !set[name] {
			return fromFile
		}
		return f.Lookup(name).Value.String()
	}

	c.DataDir = get("data-dir", c.DataDir)
	c.SystemDir = get("system-dir", c.SystemDir)
	c.AsecDir = get("asec-dir", c.AsecDir)
	c.MediaDir = get("media-dir", c.MediaDir)
	c.ExpandDir = get("expand-dir", c.ExpandDir)
	c.UserConfigDir = get("user-config-dir", c.UserConfigDir)
	c.UpdateCommandsDir = get("update-commands-dir", c.UpdateCommandsDir)
	c.IdmapPrefix = get("idmap-prefix", c.IdmapPrefix)
	c.IdmapSuffix = get("idmap-suffix", c.IdmapSuffix)
	c.CpBin = get("cp-bin", c.CpBin)
	c.Dex2oatBin = get("dex2oat-bin", c.Dex2oatBin)
	c.PatchoatBin = get("patchoat-bin", c.PatchoatBin)
	c.IdmapBin = get("idmap-bin", c.IdmapBin)
	c.BootImage = get("boot-image", c.BootImage)
	c.LockFile = get("lock-file", c.LockFile)
	c.LogFilename = get("log", c.LogFilename)

	if set["property-files"] || len(c.PropertyFiles) == 0 {
		c.PropertyFiles = filepath.SplitList(f.Lookup("property-files").Value.String())
	}
	if set["always-provide-swap"] || !c.AlwaysProvideSwap {
		c.AlwaysProvideSwap = f.Lookup("always-provide-swap").Value.String() == "true"
	}
	if set["debug"] || !c.Debug {
		c.Debug = f.Lookup("debug").Value.String() == "true"
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	roots := map[string]string{
		"data-dir":   c.DataDir,
		"system-dir": c.SystemDir,
		"asec-dir":   c.AsecDir,
		"media-dir":  c.MediaDir,
		"expand-dir": c.ExpandDir,
	}
	for name, p := range roots {
		if p == "" || !filepath.IsAbs(p) {
			return fmt.Errorf("%s must be an absolute path, got %q", name, p)
		}
	}
	return nil
}

// DalvikCacheDir returns the compiled-bytecode cache root for an
// instruction set.
func (c *Config) DalvikCacheDir(isa string) string {
	return filepath.Join(c.DataDir, "dalvik-cache", isa)
}

// WaitForDataDir reports whether the data root currently exists. Used
// at startup, where the daemon may come up before /data is mounted.
func (c *Config) WaitForDataDir() error {
	fi, err := os.Stat(c.DataDir)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%q is not a directory", c.DataDir)
	}
	return nil
}
