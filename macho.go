package main

import (
	"bytes"
	"encoding/binary"
)

// Mach-O constants needed for a static, non-PIE, syscall-only x86_64
// executable. Trimmed from flapc's macho.go: no LC_LOAD_DYLINKER, no
// LC_LOAD_DYLIB, no symbol/string tables, no chained fixups — every
// Oluś builtin issues its syscall directly (§4.6), so there is nothing
// to dynamically link against.
const (
	machMagic64        = 0xfeedfacf
	machCPUTypeX86_64  = 0x01000007
	machCPUSubtypeAll  = 0x00000003
	machFileTypeExec   = 0x2
	machFlagNoUndefs   = 0x1

	lcSegment64   = 0x19
	lcUnixThread  = 0x5

	vmProtNone    = 0x00
	vmProtRead    = 0x01
	vmProtWrite   = 0x02
	vmProtExecute = 0x04

	sectRegular          = 0x0
	sectZeroFill         = 0x1
	sectAttrPureInstrs   = 0x80000000
	sectAttrSomeInstrs   = 0x00000400

	x86ThreadStateFlavor = 4 // x86_THREAD_STATE64
)

type machHeader64 struct {
	Magic      uint32
	CPUType    uint32
	CPUSubtype uint32
	FileType   uint32
	NCmds      uint32
	SizeOfCmds uint32
	Flags      uint32
	Reserved   uint32
}

type machSegmentCommand64 struct {
	Cmd      uint32
	CmdSize  uint32
	SegName  [16]byte
	VMAddr   uint64
	VMSize   uint64
	FileOff  uint64
	FileSize uint64
	MaxProt  uint32
	InitProt uint32
	NSects   uint32
	Flags    uint32
}

type machSection64 struct {
	SectName  [16]byte
	SegName   [16]byte
	Addr      uint64
	Size      uint64
	Offset    uint32
	Align     uint32
	Reloff    uint32
	Nreloc    uint32
	Flags     uint32
	Reserved1 uint32
	Reserved2 uint32
	Reserved3 uint32
}

// machX86ThreadState64 mirrors Darwin's x86_thread_state64_t field
// order exactly (rax..r15, rip, rflags, cs, fs, gs) — LC_UNIXTHREAD's
// payload, the kernel's own mechanism for setting a freshly exec'd
// process's initial register state without going through dyld at all.
// A static, dyld-free binary is the right fit here: every Oluś program
// calls the kernel directly (§4.6), never libSystem.
type machX86ThreadState64 struct {
	RAX, RBX, RCX, RDX    uint64
	RDI, RSI, RBP, RSP    uint64
	R8, R9, R10, R11      uint64
	R12, R13, R14, R15    uint64
	RIP, RFlags           uint64
	CS, FS, GS            uint64
}

type machThreadCommandHeader struct {
	Cmd     uint32
	CmdSize uint32
	Flavor  uint32
	Count   uint32
}

func machSegName(name string) (out [16]byte) {
	copy(out[:], name)
	return out
}

// WriteMachO serializes an EmittedProgram into a Darwin executable:
// __PAGEZERO (unmapped), __TEXT (code, read+execute), __RODATA (the
// literal pool, read-only), and __HEAP (the bump heap, read+write,
// zero-filled, not backed by any file bytes — S_ZEROFILL). Grounded on
// flapc's macho.go struct layout and binary.Write-per-field technique,
// simplified to the static case flapc's own useDynamicLinking=false
// branch would take, plus one addition flapc has no analogue for: the
// zero-filled __HEAP segment, since Oluś's bump allocator needs a
// large writable region that starts entirely zeroed (heap.go).
func WriteMachO(prog *EmittedProgram) ([]byte, error) {
	const pageSize = uint64(0x1000)
	// prog.TextBase/RomBase/HeapBase/EntryAddr already sit above
	// __PAGEZERO (driver.go's defaultTextBase folds darwinZeroPageSize
	// into the base EmitProgram lays every procedure and ROM record out
	// from), so every address below is used as-is, never offset a
	// second time — every AllocClosure code pointer, string literal
	// address, and singleton record address baked directly into the
	// emitted bytes has to agree with what ends up in these load
	// commands, and there is no relocation pass after EmitProgram to
	// reconcile a mismatch.
	const zeroPageSize = darwinZeroPageSize

	textSize := uint64(len(prog.Code))
	romSize := uint64(len(prog.Rom))
	heapSize := prog.Heap.Size

	headerSize := uint64(binary.Size(machHeader64{}))
	var ncmds uint32

	segCmdSize := uint64(binary.Size(machSegmentCommand64{}))
	sectSize := uint64(binary.Size(machSection64{}))
	threadCmdSize := uint64(binary.Size(machThreadCommandHeader{})) + uint64(binary.Size(machX86ThreadState64{}))

	loadCmdsSize := segCmdSize + // __PAGEZERO
		segCmdSize + sectSize + // __TEXT + __text
		segCmdSize + sectSize + // __RODATA + __rodata
		segCmdSize + sectSize + // __HEAP + __heap
		threadCmdSize // LC_UNIXTHREAD

	fileHeaderEnd := headerSize + loadCmdsSize
	textFileOff := alignUp(fileHeaderEnd, pageSize)
	romFileOff := textFileOff + alignUp(textSize, pageSize)

	var buf bytes.Buffer

	hdr := machHeader64{
		Magic:      machMagic64,
		CPUType:    machCPUTypeX86_64,
		CPUSubtype: machCPUSubtypeAll,
		FileType:   machFileTypeExec,
		NCmds:      0, // patched below
		SizeOfCmds: uint32(loadCmdsSize),
		Flags:      machFlagNoUndefs,
	}
	hdrOff := buf.Len()
	binary.Write(&buf, binary.LittleEndian, &hdr)

	// __PAGEZERO: an unmapped guard region below the text segment.
	binary.Write(&buf, binary.LittleEndian, &machSegmentCommand64{
		Cmd: lcSegment64, CmdSize: uint32(segCmdSize),
		SegName: machSegName("__PAGEZERO"),
		VMAddr:  0, VMSize: zeroPageSize,
		MaxProt: vmProtNone, InitProt: vmProtNone,
	})
	ncmds++

	// __TEXT: the emitted code, executable and read-only.
	binary.Write(&buf, binary.LittleEndian, &machSegmentCommand64{
		Cmd: lcSegment64, CmdSize: uint32(segCmdSize + sectSize),
		SegName:  machSegName("__TEXT"),
		VMAddr:   prog.TextBase,
		VMSize:   alignUp(textSize, pageSize),
		FileOff:  textFileOff,
		FileSize: textSize,
		MaxProt:  vmProtRead | vmProtExecute,
		InitProt: vmProtRead | vmProtExecute,
		NSects:   1,
	})
	binary.Write(&buf, binary.LittleEndian, &machSection64{
		SectName: machSegName("__text"),
		SegName:  machSegName("__TEXT"),
		Addr:     prog.TextBase,
		Size:     textSize,
		Offset:   uint32(textFileOff),
		Align:    4,
		Flags:    sectRegular | sectAttrPureInstrs | sectAttrSomeInstrs,
	})
	ncmds++

	// __RODATA: the literal pool.
	binary.Write(&buf, binary.LittleEndian, &machSegmentCommand64{
		Cmd: lcSegment64, CmdSize: uint32(segCmdSize + sectSize),
		SegName:  machSegName("__RODATA"),
		VMAddr:   prog.RomBase,
		VMSize:   alignUp(romSize, pageSize),
		FileOff:  romFileOff,
		FileSize: romSize,
		MaxProt:  vmProtRead,
		InitProt: vmProtRead,
		NSects:   1,
	})
	binary.Write(&buf, binary.LittleEndian, &machSection64{
		SectName: machSegName("__rodata"),
		SegName:  machSegName("__RODATA"),
		Addr:     prog.RomBase,
		Size:     romSize,
		Offset:   uint32(romFileOff),
		Align:    3,
		Flags:    sectRegular,
	})
	ncmds++

	// __HEAP: the bump allocator's arena — zero-filled, no file bytes.
	binary.Write(&buf, binary.LittleEndian, &machSegmentCommand64{
		Cmd: lcSegment64, CmdSize: uint32(segCmdSize + sectSize),
		SegName:  machSegName("__HEAP"),
		VMAddr:   prog.HeapBase,
		VMSize:   alignUp(heapSize, pageSize),
		FileOff:  0,
		FileSize: 0,
		MaxProt:  vmProtRead | vmProtWrite,
		InitProt: vmProtRead | vmProtWrite,
		NSects:   1,
	})
	binary.Write(&buf, binary.LittleEndian, &machSection64{
		SectName: machSegName("__heap"),
		SegName:  machSegName("__HEAP"),
		Addr:     prog.HeapBase,
		Size:     heapSize,
		Offset:   0,
		Align:    3,
		Flags:    sectZeroFill,
	})
	ncmds++

	// LC_UNIXTHREAD: sets rip to the entry procedure directly, no dyld
	// involved at process start.
	binary.Write(&buf, binary.LittleEndian, &machThreadCommandHeader{
		Cmd: lcUnixThread, CmdSize: uint32(threadCmdSize),
		Flavor: x86ThreadStateFlavor,
		Count:  uint32(binary.Size(machX86ThreadState64{}) / 4),
	})
	binary.Write(&buf, binary.LittleEndian, &machX86ThreadState64{
		RIP: prog.EntryAddr,
	})
	ncmds++

	out := buf.Bytes()
	binary.LittleEndian.PutUint32(out[hdrOff+16:], ncmds) // NCmds field

	// Pad to the aligned code offset, then append code, then pad to the
	// aligned rom offset, then append the literal pool.
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
