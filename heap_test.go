package main

import "testing"

func TestClosureByteSizeIncludesCodeSlot(t *testing.T) {
	if got := ClosureByteSize(0); got != 8 {
		t.Fatalf("ClosureByteSize(0) = %d, want 8", got)
	}
	if got := ClosureByteSize(3); got != 32 {
		t.Fatalf("ClosureByteSize(3) = %d, want 32", got)
	}
}

// TestEmitAllocClosureLengthMatchesPrediction checks that AllocClosureLen
// (used by the emitter's measuring pass, before any address is known)
// agrees with what EmitAllocClosure (given real addresses) actually
// produces — a mismatch would desynchronize procedure offsets computed
// from the two passes.
func TestEmitAllocClosureLengthMatchesPrediction(t *testing.T) {
	heap := &BumpHeapDescriptor{BaseAddr: 0x500000, Size: 1 << 20}
	asm := NewAssembler()
	dst := 2 // rdx, needs neither SIB nor forced disp
	fills := []int{6, 7}
	EmitAllocClosure(asm, heap, 0x401000, dst, 0x401200, fills)

	want := AllocClosureLen(dst, len(fills))
	if int64(asm.Len()) != want {
		t.Fatalf("EmitAllocClosure produced %d bytes, AllocClosureLen predicted %d", asm.Len(), want)
	}
}

func TestEmitAllocClosureLengthMatchesPredictionThroughRbp(t *testing.T) {
	heap := &BumpHeapDescriptor{BaseAddr: 0x500000, Size: 1 << 20}
	asm := NewAssembler()
	dst := 5 // rbp: forces the disp8-zero encoding path in MovImm32ToMem64
	fills := []int{1}
	EmitAllocClosure(asm, heap, 0x401000, dst, 0x401200, fills)

	want := AllocClosureLen(dst, len(fills))
	if int64(asm.Len()) != want {
		t.Fatalf("EmitAllocClosure produced %d bytes, AllocClosureLen predicted %d", asm.Len(), want)
	}
}

// TestEmitAllocClosureWritesCodePointerAndFills decodes the emitted
// bytes back into their three logical writes (load, bump, store code
// pointer, store each fill) well enough to check the code-pointer
// immediate and fill sources land where expected.
func TestEmitAllocClosureWritesCodePointerAndFills(t *testing.T) {
	heap := &BumpHeapDescriptor{BaseAddr: 0x500000, Size: 1 << 20}
	asm := NewAssembler()
	dst := 3 // rbx
	fills := []int{0, 1}
	EmitAllocClosure(asm, heap, 0x401000, dst, 0x401200, fills)

	buf := asm.Bytes()
	// MovMem64RIPRel(dst=3) then AddMem64RIPRelImm32 then
	// MovImm32ToMem64(dst, 0, codeAddr): REX.W,0xC7,ModRM,imm32.
	off := MovMem64RIPRelLen + AddMem64RIPRelImm32Len
	if buf[off] != 0x48 || buf[off+1] != 0xC7 {
		t.Fatalf("expected mov qword [dst], imm32 at offset %d, got % x", off, buf[off:off+2])
	}
	imm := uint32(buf[off+3]) | uint32(buf[off+4])<<8 | uint32(buf[off+5])<<16 | uint32(buf[off+6])<<24
	if imm != 0x401200 {
		t.Fatalf("code pointer immediate = %#x, want 0x401200", imm)
	}
}
