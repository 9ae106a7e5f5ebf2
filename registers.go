package main

// PhysicalRegister names one of the 16 x86_64 general-purpose registers
// and the 4-bit encoding ModRM/SIB/REX use to address it (§4.7,
// adapted from flapc's reg.go x86_64Registers table).
type PhysicalRegister struct {
	Name     string
	Encoding uint8
}

// abstractToPhysical is the calling convention's fixed mapping from an
// Oluś register index (0..15, as used throughout value.go/transition.go)
// to the physical GPR that holds it. The mapping is the identity on
// x86_64's own encoding order, so r0 lands on rax (encoding 0) and the
// final `jmp [r0]` never needs a REX.B bit to reach its base register.
//
// rsp (r4) and rbp (r5) are ordinary data registers here: the
// calling convention never pushes, pops, calls or returns, so nothing
// depends on either holding a stack address. Addressing through them
// still costs an extra encoding byte (see RequiresSIB/ForcesDisp8),
// which is why the transition planner has no reason to avoid them but
// the encoder has to know about them.
var abstractToPhysical = [16]PhysicalRegister{
	{Name: "rax", Encoding: 0},
	{Name: "rcx", Encoding: 1},
	{Name: "rdx", Encoding: 2},
	{Name: "rbx", Encoding: 3},
	{Name: "rsp", Encoding: 4},
	{Name: "rbp", Encoding: 5},
	{Name: "rsi", Encoding: 6},
	{Name: "rdi", Encoding: 7},
	{Name: "r8", Encoding: 8},
	{Name: "r9", Encoding: 9},
	{Name: "r10", Encoding: 10},
	{Name: "r11", Encoding: 11},
	{Name: "r12", Encoding: 12},
	{Name: "r13", Encoding: 13},
	{Name: "r14", Encoding: 14},
	{Name: "r15", Encoding: 15},
}

// PhysicalOf returns the physical register an abstract index maps to.
func PhysicalOf(r int) PhysicalRegister {
	return abstractToPhysical[r]
}

// NeedsREX reports whether addressing this abstract register at all
// (as a ModRM reg or rm field, or a SIB base/index) requires a REX
// prefix to extend the 3-bit field with its high bit.
func NeedsREX(r int) bool {
	return abstractToPhysical[r].Encoding >= 8
}

// RequiresSIB reports whether this register, used as a ModRM rm's
// base, is rsp (encoding 4) — x86_64 reserves that rm encoding to mean
// "read a following SIB byte" rather than "address through rsp
// directly", so the encoder must always emit one when this is the
// base and must always use index=100 (none) in that SIB byte.
func RequiresSIB(r int) bool {
	return abstractToPhysical[r].Encoding&7 == 4
}

// ForcesDisp8Zero reports whether this register, used as a ModRM rm's
// base with mod=00 (no displacement), is rbp (encoding 5) — x86_64
// reserves that combination to mean RIP-relative addressing, so a
// true zero-displacement access through rbp must be encoded as mod=01
// with an explicit disp8 of 0 instead.
func ForcesDisp8Zero(r int) bool {
	return abstractToPhysical[r].Encoding&7 == 5
}

// modRMByte packs the standard mod/reg/rm fields (each masked to their
// width) into one ModRM byte.
func modRMByte(mod, reg, rm uint8) byte {
	return (mod&0x3)<<6 | (reg&0x7)<<3 | (rm & 0x7)
}

// sibByte packs scale/index/base into one SIB byte; scale is the power
// of two (0 => 1, 1 => 2, 2 => 4, 3 => 8), not the multiplier itself.
func sibByte(scale, index, base uint8) byte {
	return (scale&0x3)<<6 | (index&0x7)<<3 | (base & 0x7)
}

// rexByte builds a REX prefix. w selects the 64-bit operand size; r/x/b
// are the high bits of ModRM.reg, SIB.index and ModRM.rm/SIB.base
// respectively, whichever the instruction is using that slot for.
func rexByte(w, r, x, b bool) byte {
	rex := byte(0x40)
	if w {
		rex |= 0x08
	}
	if r {
		rex |= 0x04
	}
	if x {
		rex |= 0x02
	}
	if b {
		rex |= 0x01
	}
	return rex
}
