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

// Package dexopt orchestrates ahead-of-time compilation of an installed
// package: it prepares input, output, swap and profile descriptors,
// selects the compiler back-end, and hands everything to a sandboxed
// helper child holding an exclusive lock on the output artifact. The
// daemon never compiles bytecode itself.
package dexopt

import (
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/asterix-os/installd/installd/config"
	"github.com/asterix-os/installd/installd/ierror"
	"github.com/asterix-os/installd/installd/paths"
	"github.com/asterix-os/installd/installd/proc"
	"github.com/asterix-os/installd/installd/props"
)

// Dexopt flag bitmap.
const (
	FlagPublic       = 1 << 1
	FlagSafeMode     = 1 << 2
	FlagDebuggable   = 1 << 3
	FlagBootComplete = 1 << 4
	FlagUseJIT       = 1 << 5

	flagMask = FlagPublic | FlagSafeMode | FlagDebuggable | FlagBootComplete | FlagUseJIT
)

// Compilation back-end selector.
const (
	Dex2oatNeeded      = 1
	PatchoatNeeded     = 2
	SelfPatchoatNeeded = 3
)

// Request is one dexopt invocation.
type Request struct {
	ApkPath     string
	UID         uint32
	Pkg         string
	Isa         string
	Needed      int
	OatDir      string // "" or "!" selects the dalvik cache
	Flags       int
	UUID        string
	UseProfiles bool
}

// Orchestrator runs dexopt requests against one configuration and
// property snapshot.
type Orchestrator struct {
	Conf  *config.Config
	Props *props.Store
}

// profilePair is the per-user current/reference profile descriptor
// pair. Both are valid; half-open pairs are dropped at collection.
type profilePair struct {
	cur *os.File
	ref *os.File
}

// Perform runs one dexopt request. On any failure after the output file
// was created, the output is unlinked; no partial artifact ever
// survives.
func (o *Orchestrator) Perform(req *Request) error {
	if req.Flags&^flagMask != 0 {
		// A caller passing bits we don't know is a configuration error
		// severe enough that continuing risks mislabeled artifacts.
		logrus.Fatalf("dexopt flags 0x%x contain unknown bits", req.Flags)
	}

	var pairs []profilePair
	closePairs := func() {
		for _, pr := range pairs {
			pr.cur.Close()
			pr.ref.Close()
		}
	}
	if req.UseProfiles {
		pairs = o.collectProfiles(req)
		if len(pairs) == 0 {
			// No profiles anywhere means profile-guided compilation
			// has nothing to do; this is success, not failure.
			return nil
		}
		defer closePairs()
	}

	// The swap path needs room for the ".swap" suffix later.
	if len(req.ApkPath) >= paths.PkgPathMax-8 {
		return ierror.New(ierror.PathTooLong, "dexopt", req.ApkPath, nil)
	}

	var outPath string
	if req.OatDir != "" && !strings.HasPrefix(req.OatDir, "!") {
		if err := paths.ValidateApkPath(o.Conf, req.OatDir); err != nil {
			return err
		}
		p, err := paths.OatFile(req.OatDir, req.ApkPath, req.Isa)
		if err != nil {
			return err
		}
		outPath = p
	} else {
		p, err := paths.DalvikCache(o.Conf, req.ApkPath, req.Isa)
		if err != nil {
			return err
		}
		outPath = p
	}

	var inputPath string
	switch req.Needed {
	case Dex2oatNeeded:
		inputPath = req.ApkPath
	case PatchoatNeeded:
		p, err := paths.OdexFile(req.ApkPath, req.Isa)
		if err != nil {
			return err
		}
		inputPath = p
	case SelfPatchoatNeeded:
		inputPath = outPath
	default:
		logrus.Errorf("Invalid dexopt_needed: %d", req.Needed)
		os.Exit(proc.ExitBadBackend)
	}

	// Remember the input timestamps so the output can be stamped to
	// match after a successful compile.
	var inputStat unix.Stat_t
	haveInputStat := unix.Stat(inputPath, &inputStat) == nil

	input, err := os.OpenFile(inputPath, os.O_RDONLY, 0)
	if err != nil {
		return ierror.New(ierror.IO, "open", inputPath, err)
	}
	defer input.Close()

	os.Remove(outPath)
	out, err := os.OpenFile(outPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return ierror.New(ierror.IO, "open", outPath, err)
	}
	committed := false
	defer func() {
		out.Close()
		if !committed {
			os.Remove(outPath)
		}
	}()

	outMode := os.FileMode(0640)
	if req.Flags&FlagPublic != 0 {
		outMode = 0644
	}
	if err := out.Chmod(outMode); err != nil {
		return ierror.New(ierror.IO, "fchmod", outPath, err)
	}
	if err := out.Chown(paths.AIDSystem, int(req.UID)); err != nil {
		return ierror.New(ierror.IO, "fchown", outPath, err)
	}

	var swap *os.File
	if shouldUseSwapFile(o.Conf, o.Props) {
		swap = createSwapFile(outPath)
		if swap != nil {
			defer swap.Close()
		}
	}

	h := &proc.Helper{
		UID:        req.UID,
		GID:        req.UID,
		Background: req.Flags&FlagBootComplete != 0,
		Lock:       out,
	}

	switch req.Needed {
	case Dex2oatNeeded:
		inv := &dex2oatInvocation{
			ZipFD:        h.Donate(input),
			ZipLocation:  inputPath,
			OatFD:        h.Donate(out),
			OatLocation:  outPath,
			Isa:          req.Isa,
			SwapFD:       -1,
			SafeMode:     req.Flags&FlagSafeMode != 0,
			Debuggable:   req.Flags&FlagDebuggable != 0,
			BootComplete: req.Flags&FlagBootComplete != 0,
			UseJIT:       req.Flags&FlagUseJIT != 0,
		}
		if swap != nil {
			inv.SwapFD = h.Donate(swap)
		}
		for _, pr := range pairs {
			inv.ProfileFDs = append(inv.ProfileFDs, h.Donate(pr.cur))
			inv.RefFDs = append(inv.RefFDs, h.Donate(pr.ref))
		}
		args, err := buildDex2oatArgs(o.Props, inv)
		if err != nil {
			return err
		}
		h.Path = o.Conf.Dex2oatBin
		h.Args = args
	case PatchoatNeeded, SelfPatchoatNeeded:
		inFD := h.Donate(input)
		outFD := h.Donate(out)
		args, err := buildPatchoatArgs(o.Conf, req.Isa, outFD, inFD)
		if err != nil {
			return err
		}
		h.Path = o.Conf.PatchoatBin
		h.Args = args
	}

	logrus.Debugf("DexInv: --- BEGIN %q ---", inputPath)
	if err := h.Run(); err != nil {
		logrus.Debugf("DexInv: --- END %q (failed) ---", inputPath)
		return err
	}
	logrus.Debugf("DexInv: --- END %q (success) ---", inputPath)

	if haveInputStat {
		atime := time.Unix(inputStat.Atim.Sec, inputStat.Atim.Nsec)
		mtime := time.Unix(inputStat.Mtim.Sec, inputStat.Mtim.Nsec)
		if err := os.Chtimes(outPath, atime, mtime); err != nil {
			logrus.Warnf("Failed to stamp %q: %v", outPath, err)
		}
	}

	committed = true
	return nil
}

// createSwapFile creates and immediately unlinks the compiler's swap
// file next to the output; its contents live only through the returned
// descriptor. Failure is tolerated, dex2oat runs without swap.
func createSwapFile(outPath string) *os.File {
	swapPath := outPath + ".swap"
	if len(swapPath) >= paths.PkgPathMax {
		logrus.Errorf("Swap path for %q too long", outPath)
		return nil
	}
	os.Remove(swapPath)
	swap, err := os.OpenFile(swapPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		logrus.Errorf("Failed to create swap file %q: %v", swapPath, err)
		return nil
	}
	os.Remove(swapPath)
	return swap
}

// collectProfiles opens the per-user current and reference profile
// pairs under each user's code_cache. Users without a code_cache or
// without a current profile are skipped quietly; a reference profile
// that cannot be owned by the app drops that user's pair rather than
// failing the request.
func (o *Orchestrator) collectProfiles(req *Request) []profilePair {
	var pairs []profilePair
	for _, user := range paths.KnownUsers(o.Conf, req.UUID) {
		pkgDir, err := paths.DataUserPackage(o.Conf, req.UUID, user, req.Pkg)
		if err != nil {
			continue
		}
		ccPath := pkgDir + "/" + paths.CodeCacheDirName
		ccFD, err := unix.Open(ccPath, unix.O_PATH|unix.O_CLOEXEC|unix.O_DIRECTORY|unix.O_NOFOLLOW, 0)
		if err != nil {
			if err != unix.ENOENT {
				logrus.Errorf("Failed to open code_cache %q: %v", ccPath, err)
			}
			continue
		}
		pair, ok := openProfilePair(ccFD, req.Pkg, req.UID)
		unix.Close(ccFD)
		if ok {
			pairs = append(pairs, pair)
		}
	}
	return pairs
}

func openProfilePair(ccFD int, pkg string, uid uint32) (profilePair, bool) {
	curName := pkg + paths.ProfileExt
	curFD, err := unix.Openat(ccFD, curName, unix.O_RDWR|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
	if err != nil {
		if err != unix.ENOENT {
			logrus.Errorf("Failed to open profile %q: %v", curName, err)
		}
		return profilePair{}, false
	}
	cur := os.NewFile(uintptr(curFD), curName)

	// The reference profile is written by dex2oat, so it needs
	// read-write and must belong to the app.
	refName := pkg + paths.ProfileRefExt
	refFD, err := unix.Openat(ccFD, refName, unix.O_CREAT|unix.O_RDWR|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0600)
	if err != nil {
		cur.Close()
		return profilePair{}, false
	}
	ref := os.NewFile(uintptr(refFD), refName)

	if err := ref.Chown(int(uid), int(uid)); err != nil {
		logrus.Errorf("Failed to chown reference profile %q: %v", refName, err)
		cur.Close()
		ref.Close()
		return profilePair{}, false
	}
	return profilePair{cur: cur, ref: ref}, true
}
