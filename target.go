package main

import (
	"fmt"
	"strings"
)

// OS identifies the target executable format.
type OS int

const (
	OSDarwin OS = iota
	OSLinux
)

func (o OS) String() string {
	switch o {
	case OSDarwin:
		return "darwin"
	case OSLinux:
		return "linux"
	default:
		return "unknown"
	}
}

// Arch is always x86_64; the field exists so Platform reads the way a
// multi-arch target descriptor would, in case a second backend is ever
// added, but only x86_64 is implemented.
type Arch int

const (
	ArchX86_64 Arch = iota
)

func (a Arch) String() string {
	return "x86_64"
}

// Platform is a compilation target: an OS (which selects the object
// file format) crossed with an architecture (always x86_64 here).
type Platform struct {
	OS   OS
	Arch Arch
}

// darwinZeroPageSize is __PAGEZERO's size on Darwin x86_64 — the
// unmapped guard region every address in a Darwin image sits above.
// Shared between driver.go (which must fold it into every base address
// EmitProgram actually bakes into code/ROM) and macho.go (which lays
// out the __PAGEZERO load command itself), so the two can never drift
// out of step the way computing it in each place independently once did.
const darwinZeroPageSize = uint64(0x100000000)

func (p Platform) String() string {
	return fmt.Sprintf("%s-%s", p.Arch, p.OS)
}

// ParsePlatform accepts the GOOS-like strings a user would type on the
// command line: "darwin", "macos", "linux".
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(s) {
	case "darwin", "macos", "macosx", "osx":
		return Platform{OS: OSDarwin, Arch: ArchX86_64}, nil
	case "linux":
		return Platform{OS: OSLinux, Arch: ArchX86_64}, nil
	default:
		return Platform{}, fmt.Errorf("unsupported platform: %s", s)
	}
}
