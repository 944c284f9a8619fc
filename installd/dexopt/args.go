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

package dexopt

import (
	"fmt"
	"strings"

	"github.com/asterix-os/installd/installd/config"
	"github.com/asterix-os/installd/installd/ierror"
	"github.com/asterix-os/installd/installd/props"
)

// maxIsaLen bounds instruction set names in compiler arguments.
const maxIsaLen = 7

const runtimeArg = "--runtime-arg"

// dex2oatInvocation carries everything the argument builder needs. All
// descriptor numbers are child-side.
type dex2oatInvocation struct {
	ZipFD        int
	ZipLocation  string
	OatFD        int
	OatLocation  string
	Isa          string
	SwapFD       int // -1 when no swap file was created
	SafeMode     bool
	Debuggable   bool
	BootComplete bool
	UseJIT       bool
	ProfileFDs   []int
	RefFDs       []int
}

// buildDex2oatArgs assembles the dex2oat argument vector from system
// properties and the per-call invocation. The ordering is part of the
// external contract; in particular dalvik.vm.dex2oat-flags comes after
// the generated compiler flags so it can override them for debugging,
// followed only by -Xnorelocate and the profile descriptors.
func buildDex2oatArgs(p *props.Store, inv *dex2oatInvocation) ([]string, error) {
	if len(inv.Isa) > maxIsaLen {
		return nil, ierror.New(ierror.BadPath, "dex2oat", inv.Isa, fmt.Errorf("instruction set longer than %d bytes", maxIsaLen))
	}
	if len(inv.ProfileFDs) != len(inv.RefFDs) {
		return nil, fmt.Errorf("profile fd count %d != reference fd count %d", len(inv.ProfileFDs), len(inv.RefFDs))
	}

	xms, haveXms := p.Get("dalvik.vm.dex2oat-Xms")
	xmx, haveXmx := p.Get("dalvik.vm.dex2oat-Xmx")
	isaVariant, haveVariant := p.Get("dalvik.vm.isa." + inv.Isa + ".variant")
	isaFeatures, haveFeatures := p.Get("dalvik.vm.isa." + inv.Isa + ".features")

	threadsKey := "dalvik.vm.boot-dex2oat-threads"
	if inv.BootComplete {
		threadsKey = "dalvik.vm.dex2oat-threads"
	}
	threads, haveThreads := p.Get(threadsKey)

	extraFlags, haveExtraFlags := p.Get("dalvik.vm.dex2oat-flags")

	// When booting without the real data partition mounted, compiling
	// is wasted work; verify only and skip relocation.
	voldDecrypt, _ := p.Get("vold.decrypt")
	skipCompilation := voldDecrypt == "trigger_restart_min_framework" || voldDecrypt == "1"

	useJIT := inv.UseJIT || p.GetBool("debug.usejit", false)
	debuggable := inv.Debuggable || p.GetString("dalvik.vm.always_debuggable", "0") == "1"
	generateDebugInfo := p.GetBool("debug.generate-debug-info", false)

	filter := ""
	noRelocate := false
	switch {
	case skipCompilation:
		filter = "verify-none"
		noRelocate = true
	case inv.SafeMode:
		filter = "interpret-only"
	case useJIT:
		filter = "verify-at-runtime"
	default:
		if f, ok := p.Get("dalvik.vm.dex2oat-filter"); ok {
			filter = f
		}
	}

	args := []string{
		fmt.Sprintf("--zip-fd=%d", inv.ZipFD),
		"--zip-location=" + inv.ZipLocation,
		fmt.Sprintf("--oat-fd=%d", inv.OatFD),
		"--oat-location=" + inv.OatLocation,
		"--instruction-set=" + inv.Isa,
	}
	if haveVariant {
		args = append(args, "--instruction-set-variant="+isaVariant)
	}
	if haveFeatures {
		args = append(args, "--instruction-set-features="+isaFeatures)
	}
	if haveXms {
		args = append(args, runtimeArg, "-Xms"+xms)
	}
	if haveXmx {
		args = append(args, runtimeArg, "-Xmx"+xmx)
	}
	if filter != "" {
		args = append(args, "--compiler-filter="+filter)
	}
	if haveThreads {
		args = append(args, "-j"+threads)
	}
	if inv.SwapFD >= 0 {
		args = append(args, fmt.Sprintf("--swap-fd=%d", inv.SwapFD))
	}
	if generateDebugInfo {
		args = append(args, "--generate-debug-info")
	}
	if debuggable {
		args = append(args, "--debuggable")
	}
	if haveExtraFlags {
		args = append(args, strings.Fields(extraFlags)...)
	}
	if noRelocate {
		args = append(args, runtimeArg, "-Xnorelocate")
	}
	for i := range inv.ProfileFDs {
		args = append(args,
			fmt.Sprintf("--profile-file-fd=%d", inv.ProfileFDs[i]),
			fmt.Sprintf("--reference-profile-file-fd=%d", inv.RefFDs[i]))
	}
	return args, nil
}

// buildPatchoatArgs assembles the patchoat argument vector. The caller
// already holds the output lock, so patchoat is told not to take its
// own.
func buildPatchoatArgs(c *config.Config, isa string, outFD, inFD int) ([]string, error) {
	if len(isa) > maxIsaLen {
		return nil, ierror.New(ierror.BadPath, "patchoat", isa, fmt.Errorf("instruction set longer than %d bytes", maxIsaLen))
	}
	return []string{
		"--patched-image-location=" + c.BootImage,
		"--no-lock-output",
		"--instruction-set=" + isa,
		fmt.Sprintf("--output-oat-fd=%d", outFD),
		fmt.Sprintf("--input-oat-fd=%d", inFD),
	}, nil
}

// shouldUseSwapFile decides whether dex2oat gets a swap file: a
// configuration override wins, then the dalvik.vm.dex2oat-swap
// property when present, then yes by default (low-memory devices would
// also answer yes).
func shouldUseSwapFile(c *config.Config, p *props.Store) bool {
	if c.AlwaysProvideSwap {
		return true
	}
	if v, ok := p.Get("dalvik.vm.dex2oat-swap"); ok {
		return v == "true"
	}
	return true
}
