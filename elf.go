package main

import (
	"bytes"
	"encoding/binary"
)

// ELF64 constants for a static, non-PIE, syscall-only x86_64
// executable. Trimmed from flapc's codegen_elf_writer.go/
// elf_complete.go: no PT_DYNAMIC, no PT_INTERP, no .dynsym/.dynstr/PLT
// — every Oluś builtin issues its syscall directly (§4.6), so there is
// no libc, no interpreter, and nothing to dynamically link.
const (
	elfMagic = "\x7fELF"

	elfClass64      = 2
	elfDataLSB      = 1
	elfVersionEV1   = 1
	elfOSABISysV    = 0
	elfTypeExec     = 2
	elfMachineX8664 = 0x3e

	ptLoad = 1

	pfExec  = 1
	pfWrite = 2
	pfRead  = 4
)

type elfHeader64 struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	PHOff     uint64
	SHOff     uint64
	Flags     uint32
	EHSize    uint16
	PHEntSize uint16
	PHNum     uint16
	SHEntSize uint16
	SHNum     uint16
	SHStrNdx  uint16
}

type elfProgramHeader64 struct {
	Type   uint32
	Flags  uint32
	Offset uint64
	VAddr  uint64
	PAddr  uint64
	FileSz uint64
	MemSz  uint64
	Align  uint64
}

// WriteELF serializes an EmittedProgram into a Linux ELF64 executable
// with three PT_LOAD segments — code (R+X), the literal pool (R), and
// the bump heap (R+W, MemSz beyond FileSz so the kernel zero-fills the
// rest, exactly the "starts entirely zeroed" property heap.go relies
// on) — plus no section headers at all, since nothing here needs a
// linker or a symbol table to run. Grounded on flapc's ELF writer's
// struct-and-binary.Write technique, simplified to the static case: a
// dynamic PT_INTERP/PT_DYNAMIC pair would contradict spec.md's no
// dynamic linking Non-goal outright, not merely add unused weight.
func WriteELF(prog *EmittedProgram) ([]byte, error) {
	const pageSize = uint64(0x1000)

	textSize := uint64(len(prog.Code))
	romSize := uint64(len(prog.Rom))
	heapSize := prog.Heap.Size

	ehSize := uint64(binary.Size(elfHeader64{}))
	phEntSize := uint64(binary.Size(elfProgramHeader64{}))
	const numSegments = 3
	phOff := ehSize
	textFileOff := alignUp(ehSize+numSegments*phEntSize, pageSize)
	romFileOff := textFileOff + alignUp(textSize, pageSize)

	var ident [16]byte
	copy(ident[:], elfMagic)
	ident[4] = elfClass64
	ident[5] = elfDataLSB
	ident[6] = elfVersionEV1
	ident[7] = elfOSABISysV

	hdr := elfHeader64{
		Ident:     ident,
		Type:      elfTypeExec,
		Machine:   elfMachineX8664,
		Version:   uint32(elfVersionEV1),
		Entry:     prog.EntryAddr,
		PHOff:     phOff,
		EHSize:    uint16(ehSize),
		PHEntSize: uint16(phEntSize),
		PHNum:     numSegments,
	}

	textPH := elfProgramHeader64{
		Type: ptLoad, Flags: pfRead | pfExec,
		Offset: textFileOff, VAddr: prog.TextBase, PAddr: prog.TextBase,
		FileSz: textSize, MemSz: textSize, Align: pageSize,
	}
	romPH := elfProgramHeader64{
		Type: ptLoad, Flags: pfRead,
		Offset: romFileOff, VAddr: prog.RomBase, PAddr: prog.RomBase,
		FileSz: romSize, MemSz: romSize, Align: pageSize,
	}
	heapPH := elfProgramHeader64{
		Type: ptLoad, Flags: pfRead | pfWrite,
		Offset: 0, VAddr: prog.HeapBase, PAddr: prog.HeapBase,
		FileSz: 0, MemSz: heapSize, Align: pageSize,
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, &hdr)
	binary.Write(&buf, binary.LittleEndian, &textPH)
	binary.Write(&buf, binary.LittleEndian, &romPH)
	binary.Write(&buf, binary.LittleEndian, &heapPH)

	out := buf.Bytes()
	pad := func(to uint64) {
		for uint64(len(out)) < to {
			out = append(out, 0)
		}
	}
	pad(textFileOff)
	out = append(out, prog.Code...)
	pad(romFileOff)
	out = append(out, prog.Rom...)

	return out, nil
}
