package main

import (
	"encoding/binary"
	"testing"
)

func emittedLinuxProgram(t *testing.T) *EmittedProgram {
	t.Helper()
	rp, schemas, pool := minimalResolvedProgram()
	prog, err := EmitProgram(rp, schemas, pool, Platform{OS: OSLinux, Arch: ArchX86_64}, 0x400000, 0)
	if err != nil {
		t.Fatalf("EmitProgram: %v", err)
	}
	return prog
}

func TestWriteELFHeaderFields(t *testing.T) {
	prog := emittedLinuxProgram(t)
	out, err := WriteELF(prog)
	if err != nil {
		t.Fatalf("WriteELF: %v", err)
	}
	if string(out[0:4]) != elfMagic {
		t.Fatalf("ident magic = %q, want %q", out[0:4], elfMagic)
	}
	if out[4] != elfClass64 {
		t.Fatalf("ei_class = %d, want ELFCLASS64", out[4])
	}
	if got := binary.LittleEndian.Uint16(out[16:18]); got != elfTypeExec {
		t.Fatalf("e_type = %d, want ET_EXEC", got)
	}
	if got := binary.LittleEndian.Uint16(out[18:20]); got != elfMachineX8664 {
		t.Fatalf("e_machine = %d, want EM_X86_64", got)
	}
	entry := binary.LittleEndian.Uint64(out[24:32])
	if entry != prog.EntryAddr {
		t.Fatalf("e_entry = %#x, want %#x", entry, prog.EntryAddr)
	}
	phnum := binary.LittleEndian.Uint16(out[56:58])
	if phnum != 3 {
		t.Fatalf("e_phnum = %d, want 3", phnum)
	}
	shnum := binary.LittleEndian.Uint16(out[60:62])
	if shnum != 0 {
		t.Fatalf("e_shnum = %d, want 0 (no section headers)", shnum)
	}
}

func TestWriteELFHeapSegmentZeroFills(t *testing.T) {
	prog := emittedLinuxProgram(t)
	out, err := WriteELF(prog)
	if err != nil {
		t.Fatalf("WriteELF: %v", err)
	}
	ehSize := binary.Size(elfHeader64{})
	phEntSize := binary.Size(elfProgramHeader64{})
	heapPHOff := ehSize + 2*phEntSize

	typ := binary.LittleEndian.Uint32(out[heapPHOff:])
	if typ != ptLoad {
		t.Fatalf("heap segment type = %d, want PT_LOAD", typ)
	}
	flags := binary.LittleEndian.Uint32(out[heapPHOff+4:])
	if flags != pfRead|pfWrite {
		t.Fatalf("heap segment flags = %#x, want R+W", flags)
	}
	fileSz := binary.LittleEndian.Uint64(out[heapPHOff+32:])
	memSz := binary.LittleEndian.Uint64(out[heapPHOff+40:])
	if fileSz != 0 {
		t.Fatalf("heap FileSz = %d, want 0", fileSz)
	}
	if memSz != prog.Heap.Size {
		t.Fatalf("heap MemSz = %d, want %d", memSz, prog.Heap.Size)
	}
	if memSz <= fileSz {
		t.Fatal("expected MemSz > FileSz so the kernel zero-fills the arena")
	}
}

func TestWriteELFTextSegmentPageAligned(t *testing.T) {
	prog := emittedLinuxProgram(t)
	out, err := WriteELF(prog)
	if err != nil {
		t.Fatalf("WriteELF: %v", err)
	}
	idx := indexOf(out, prog.Code)
	if idx < 0 {
		t.Fatal("code bytes not found in image")
	}
	if idx%0x1000 != 0 {
		t.Fatalf("code file offset %d not page-aligned", idx)
	}
}
