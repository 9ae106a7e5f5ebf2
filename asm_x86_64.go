package main

// Assembler is a byte-level x86_64 instruction encoder, scoped to
// exactly the instructions the stackless calling convention and
// builtins.go's inline lowering need (§4.7). It never emits call, ret,
// push or pop — this repo's procedures never use the stack, so those
// opcodes simply don't exist here (grounded in flapc's x86_64_codegen.go,
// trimmed to a no-stack, no-symbol-relocation subset: every branch
// target here is a same-function offset the emitter already knows or
// backpatches directly, never a linker symbol).
type Assembler struct {
	buf []byte
}

func NewAssembler() *Assembler {
	return &Assembler{}
}

func (a *Assembler) Bytes() []byte { return a.buf }
func (a *Assembler) Len() int      { return len(a.buf) }

func (a *Assembler) emit8(b byte) { a.buf = append(a.buf, b) }

func (a *Assembler) emit32LE(v uint32) {
	a.buf = append(a.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (a *Assembler) emit64LE(v uint64) {
	for i := 0; i < 8; i++ {
		a.buf = append(a.buf, byte(v>>(8*i)))
	}
}

// regRegRex builds the REX prefix for a two-register /r instruction,
// reg supplying the ModRM.reg field and rm the ModRM.rm field.
func regRegRex(w bool, reg, rm int) byte {
	return rexByte(w, NeedsREX(reg), false, NeedsREX(rm))
}

// MovRegReg emits `mov dst, src` (r/m64, r64 form), the workhorse of
// OpMove and OpSwap's fallback path.
func (a *Assembler) MovRegReg(dst, src int) {
	a.emit8(regRegRex(true, src, dst))
	a.emit8(0x89)
	a.emit8(modRMByte(3, abstractToPhysical[src].Encoding, abstractToPhysical[dst].Encoding))
}

// MovImm64 emits `mov dst, imm64` (the B8+r form, not C7 /0) so every
// 64-bit integer literal — not just the ones fitting a sign-extended
// imm32 — can be materialized in one instruction, matching Oluś's
// literals being plain 64-bit words with no smaller-width variant.
func (a *Assembler) MovImm64(dst int, imm uint64) {
	phys := abstractToPhysical[dst]
	a.emit8(rexByte(true, false, false, NeedsREX(dst)))
	a.emit8(0xB8 + phys.Encoding&7)
	a.emit64LE(imm)
}

// XorZero emits `xor dst, dst`, the cheapest way to materialize the
// integer literal zero (OpXorZero).
func (a *Assembler) XorZero(dst int) {
	a.emit8(regRegRex(true, dst, dst))
	a.emit8(0x31)
	a.emit8(modRMByte(3, abstractToPhysical[dst].Encoding, abstractToPhysical[dst].Encoding))
}

// memOperand emits the ModRM (and, when needed, SIB) bytes and
// displacement for a [base+disp32] operand whose reg field is fixed to
// regField. It always uses the disp32 form for a nonzero or rbp-class
// base, matching RequiresSIB/ForcesDisp8Zero exactly.
func (a *Assembler) memOperand(regField uint8, base int, disp int32) {
	phys := abstractToPhysical[base]
	mod := uint8(2) // disp32
	if disp == 0 && !ForcesDisp8Zero(base) {
		mod = 0
	}
	a.emit8(modRMByte(mod, regField, phys.Encoding))
	if RequiresSIB(base) {
		a.emit8(sibByte(0, 4, phys.Encoding)) // index=100 => none
	}
	if mod == 2 {
		a.emit32LE(uint32(disp))
	}
}

// MovMem64 emits `mov dst, [base+disp32]`, used to read a closure's
// code pointer (slot 0) or capture slots, and the heap's free pointer.
func (a *Assembler) MovMem64(dst, base int, disp int32) {
	a.emit8(rexByte(true, NeedsREX(dst), false, NeedsREX(base)))
	a.emit8(0x8B)
	a.memOperand(abstractToPhysical[dst].Encoding&7, base, disp)
}

// MovToMem64 emits `mov [base+disp32], src`, used to write a fresh
// closure's slots and to bump the heap's free pointer.
func (a *Assembler) MovToMem64(base int, disp int32, src int) {
	a.emit8(rexByte(true, NeedsREX(src), false, NeedsREX(base)))
	a.emit8(0x89)
	a.memOperand(abstractToPhysical[src].Encoding&7, base, disp)
}

// Lea emits `lea dst, [base+disp32]`, computing an address without
// touching memory — used by print's lowering to skip a string's
// length prefix without a separate add instruction.
func (a *Assembler) Lea(dst, base int, disp int32) {
	a.emit8(rexByte(true, NeedsREX(dst), false, NeedsREX(base)))
	a.emit8(0x8D)
	a.memOperand(abstractToPhysical[dst].Encoding&7, base, disp)
}

// Xchg emits `xchg a, b`, the register-transition planner's
// cycle-breaking primitive (OpSwap).
func (a *Assembler) Xchg(x, y int) {
	a.emit8(regRegRex(true, y, x))
	a.emit8(0x87)
	a.emit8(modRMByte(3, abstractToPhysical[y].Encoding, abstractToPhysical[x].Encoding))
}

// AddRegReg emits `add dst, src`.
func (a *Assembler) AddRegReg(dst, src int) {
	a.emit8(regRegRex(true, src, dst))
	a.emit8(0x01)
	a.emit8(modRMByte(3, abstractToPhysical[src].Encoding, abstractToPhysical[dst].Encoding))
}

// SubRegReg emits `sub dst, src`.
func (a *Assembler) SubRegReg(dst, src int) {
	a.emit8(regRegRex(true, src, dst))
	a.emit8(0x29)
	a.emit8(modRMByte(3, abstractToPhysical[src].Encoding, abstractToPhysical[dst].Encoding))
}

// IMulRegReg emits `imul dst, src` (the two-operand 0F AF form).
func (a *Assembler) IMulRegReg(dst, src int) {
	a.emit8(regRegRex(true, dst, src))
	a.emit8(0x0F)
	a.emit8(0xAF)
	a.emit8(modRMByte(3, abstractToPhysical[dst].Encoding, abstractToPhysical[src].Encoding))
}

// DivReg emits unsigned `div divisor` (r/m64 form): rdx:rax / divisor,
// quotient in rax, remainder in rdx. divmod's lowering is responsible
// for shuffling its operands into rax/rdx first, the one place this
// repo's fixed r0..r15 convention yields to a hardware-fixed register
// pair (§4.6, the same discipline original_source/codegen/src/intrinsics.rs
// documents for print's syscall operands).
func (a *Assembler) DivReg(divisor int) {
	a.emit8(rexByte(true, false, false, NeedsREX(divisor)))
	a.emit8(0xF7)
	a.emit8(modRMByte(3, 6, abstractToPhysical[divisor].Encoding))
}

// TestRegReg emits `test a, a`, used by isZero's branch.
func (a *Assembler) TestRegReg(x, y int) {
	a.emit8(regRegRex(true, y, x))
	a.emit8(0x85)
	a.emit8(modRMByte(3, abstractToPhysical[y].Encoding, abstractToPhysical[x].Encoding))
}

// JumpCondition names the condition codes isZero's lowering needs.
type JumpCondition int

const (
	JumpIfZero JumpCondition = iota
	JumpIfNotZero
)

// JccRel32 emits a near conditional jump with a placeholder rel32 and
// returns the offset of that 4-byte field, for the emitter to patch
// once the branch target's address is known.
func (a *Assembler) JccRel32(cond JumpCondition) (patchAt int) {
	a.emit8(0x0F)
	switch cond {
	case JumpIfZero:
		a.emit8(0x84)
	case JumpIfNotZero:
		a.emit8(0x85)
	}
	patchAt = a.Len()
	a.emit32LE(0)
	return patchAt
}

// JmpRel32 emits an unconditional near jump with a placeholder rel32
// and returns the offset of that 4-byte field.
func (a *Assembler) JmpRel32() (patchAt int) {
	a.emit8(0xE9)
	patchAt = a.Len()
	a.emit32LE(0)
	return patchAt
}

// PatchRel32 overwrites a previously reserved rel32 field: rel is
// relative to the byte immediately following the 4-byte field itself.
func (a *Assembler) PatchRel32(patchAt int, rel int32) {
	v := uint32(rel)
	a.buf[patchAt] = byte(v)
	a.buf[patchAt+1] = byte(v >> 8)
	a.buf[patchAt+2] = byte(v >> 16)
	a.buf[patchAt+3] = byte(v >> 24)
}

// JmpIndirect emits `jmp [base]`, the mandatory OpFinalJmpIndirect
// that ends every procedure and every builtin's continuation dispatch.
// base holds a closure pointer, not a code address itself — slot 0 of
// the pointed-to closure is the code pointer — so this must dereference
// memory (ModRM mod 00/01/10), never the register-direct mod 11 form
// that would jump to the pointer's numeric value instead of through it.
// There is no ret in this calling convention, only this indirect jump.
func (a *Assembler) JmpIndirect(base int) {
	if NeedsREX(base) {
		a.emit8(rexByte(false, false, false, true))
	}
	a.emit8(0xFF)
	a.memOperand(4, base, 0)
}

// MovMem64RIPRelLen is the fixed length of every MovMem64RIPRel
// instruction (REX.W + 8B + ModRM(00,reg,101) + disp32), independent
// of dst or disp — the two-pass emitter relies on this to measure a
// procedure's byte length before any address in it is known.
const MovMem64RIPRelLen = 7

// MovMem64RIPRel emits `mov dst, [rip+disp]`, an absolute-address load
// that touches no register but dst. disp is relative to the address of
// the byte immediately following this instruction; the caller computes
// it from the fixed length above and the two addresses involved, the
// same way JccRel32/JmpRel32's callers compute a branch's rel32.
func (a *Assembler) MovMem64RIPRel(dst int, disp int32) {
	a.emit8(rexByte(true, NeedsREX(dst), false, false))
	a.emit8(0x8B)
	a.emit8(modRMByte(0, abstractToPhysical[dst].Encoding, 5))
	a.emit32LE(uint32(disp))
}

// AddMem64RIPRelImm32Len is the fixed length of AddMem64RIPRelImm32.
const AddMem64RIPRelImm32Len = 11

// AddMem64RIPRelImm32 emits `add qword [rip+disp], imm32`, bumping the
// bump heap's free-pointer cell in place without disturbing any
// register at all — heap.go's EmitAllocClosure uses this for the
// "`add [free_ptr], size`" step spec.md's allocator design calls for.
func (a *Assembler) AddMem64RIPRelImm32(disp int32, imm int32) {
	a.emit8(rexByte(true, false, false, false))
	a.emit8(0x81)
	a.emit8(modRMByte(0, 0, 5))
	a.emit32LE(uint32(disp))
	a.emit32LE(uint32(imm))
}

// MovImm32ToMem64 emits `mov qword [base+disp32], imm32`, sign-extended
// to 64 bits — used to write a fresh closure's code pointer slot. This
// repo's fixed, small, non-PIE load addresses always fit in 31 bits, so
// the sign-extension never loses a bit.
func (a *Assembler) MovImm32ToMem64(base int, disp int32, imm32 int32) {
	a.emit8(rexByte(true, false, false, NeedsREX(base)))
	a.emit8(0xC7)
	a.memOperand(0, base, disp)
	a.emit32LE(uint32(imm32))
}

// Syscall emits the `syscall` instruction.
func (a *Assembler) Syscall() {
	a.emit8(0x0F)
	a.emit8(0x05)
}
