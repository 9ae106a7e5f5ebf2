package main

import (
	"bytes"
	"testing"
)

// print(s, k) on Linux: the syscall number loaded into rax must be the
// Linux write number, and the sequence must end with a tail call
// (k has no captures, so a bare jmp [rk] once k is loaded into r0).
func TestLowerPrintLinuxUsesWriteSyscall(t *testing.T) {
	proc := procWithParams(1)
	entry := EntryState(proc)
	call := callTo("print",
		ResolvedIdent{Kind: IdentParam, Index: 0},
		ResolvedIdent{Kind: IdentLocalProc, ProcID: "k"},
	)
	schemas := map[string]*ClosureSchema{"k": {ProcID: "k", K: 0, Singleton: true}}
	layout := newLayout()
	layout.ProcAddr["k"] = 0x6000

	asm := NewAssembler()
	if err := lowerPrint(asm, call, entry, schemas, layout, 0, Platform{OS: OSLinux}); err != nil {
		t.Fatalf("lowerPrint: %v", err)
	}
	code := asm.Bytes()
	want := []byte{0x48, 0xB8, 1, 0, 0, 0, 0, 0, 0, 0} // mov rax, 1
	if !bytes.Contains(code, want) {
		t.Fatalf("expected a mov rax, 1 (Linux write syscall number) in %x", code)
	}
	// syscall opcode must appear somewhere before the tail call.
	if !bytes.Contains(code, []byte{0x0F, 0x05}) {
		t.Fatalf("expected a syscall instruction in %x", code)
	}
}

// print(s, k) on Darwin: the BSD write number is 4 ORed with the class
// bit 0x02000000.
func TestLowerPrintDarwinUsesBSDWriteSyscall(t *testing.T) {
	proc := procWithParams(1)
	entry := EntryState(proc)
	call := callTo("print",
		ResolvedIdent{Kind: IdentParam, Index: 0},
		ResolvedIdent{Kind: IdentLocalProc, ProcID: "k"},
	)
	schemas := map[string]*ClosureSchema{"k": {ProcID: "k", K: 0, Singleton: true}}
	layout := newLayout()
	layout.ProcAddr["k"] = 0x6000

	asm := NewAssembler()
	if err := lowerPrint(asm, call, entry, schemas, layout, 0, Platform{OS: OSDarwin}); err != nil {
		t.Fatalf("lowerPrint: %v", err)
	}
	code := asm.Bytes()
	sysNum := uint64(0x02000000 | 4)
	want := []byte{0x48, 0xB8,
		byte(sysNum), byte(sysNum >> 8), byte(sysNum >> 16), byte(sysNum >> 24),
		byte(sysNum >> 32), byte(sysNum >> 40), byte(sysNum >> 48), byte(sysNum >> 56)}
	if !bytes.Contains(code, want) {
		t.Fatalf("expected the Darwin write syscall number loaded into rax in %x", code)
	}
}

// exit(n) never emits a tail call — the sequence ends at the syscall.
func TestLowerExitEmitsNoTailCall(t *testing.T) {
	proc := procWithParams(1)
	entry := EntryState(proc)
	call := callTo("exit", ResolvedIdent{Kind: IdentParam, Index: 0})

	asm := NewAssembler()
	if err := lowerExit(asm, call, entry, Platform{OS: OSLinux}); err != nil {
		t.Fatalf("lowerExit: %v", err)
	}
	code := asm.Bytes()
	if len(code) < 2 || code[len(code)-2] != 0x0F || code[len(code)-1] != 0x05 {
		t.Fatalf("expected the last two bytes to be the syscall opcode, got %x", code)
	}
}
