package main

// BumpHeapDescriptor fixes the bump heap's layout (§3, §5, §9): the
// writable segment's first eight bytes hold the next-free address,
// bumped in place by every closure allocation; everything after that
// is the arena closures are carved from. There is no reclamation and
// no growth — allocating past BaseAddr+Size is undefined, matching
// spec.md's no-GC Non-goal.
//
// Grounded in flapc's arena.go bump-allocator shape (base/current/size
// fields, a monotonic bump pointer with no free), adapted from a
// malloc-backed runtime structure living in stack-relative scratch
// slots to a single fixed load-time address with no allocator-state
// register of its own — original_source/codegen/src/allocator.rs
// stores the free pointer the same way, as the first word of the
// segment itself, specifically so the calling convention's r0..r15
// stay reserved for closures and arguments only.
type BumpHeapDescriptor struct {
	BaseAddr uint64
	Size     uint64
}

// defaultHeapSize is used when no OLUSC_HEAP_SIZE override is given
// (cli.go). 16 MiB is generous for the kind of hand-written test
// programs this compiler expects to run — there is no growth, so
// running past it is simply undefined per the no-GC Non-goal.
const defaultHeapSize = 16 << 20

// FreePointerAddr is the address of the free-pointer cell itself.
func (h *BumpHeapDescriptor) FreePointerAddr() uint64 { return h.BaseAddr }

// DataAreaAddr is the first byte available for a closure allocation.
func (h *BumpHeapDescriptor) DataAreaAddr() uint64 { return h.BaseAddr + 8 }

// ClosureByteSize is the heap footprint of a closure with k captures:
// one code-pointer slot plus k capture slots, eight bytes each.
func ClosureByteSize(k int) int64 { return int64(8 * (1 + k)) }

// AllocClosureLen is the exact byte length EmitAllocClosure produces
// for a closure with len(fills) captures allocated into dst — fixed
// once dst and the capture count are known, before any address in the
// surrounding procedure is settled, which is what lets the emitter's
// first (measuring) pass compute a procedure's total length using
// placeholder zero addresses.
func AllocClosureLen(dst int, fills int) int64 {
	total := int64(MovMem64RIPRelLen) + int64(AddMem64RIPRelImm32Len)
	total += movImm32ToMem64Len(dst)
	for range make([]struct{}, fills) {
		total += movToMem64Len(dst)
	}
	return total
}

func movImm32ToMem64Len(base int) int64 {
	n := int64(2) // REX + opcode
	if RequiresSIB(base) {
		n++
	}
	n += 4 // trailing imm32
	if ForcesDisp8Zero(base) {
		n += 4 // disp is 0 here, but an rbp-class base still forces an explicit disp32
	}
	return n
}

func movToMem64Len(base int) int64 {
	n := int64(2) // REX + opcode
	if RequiresSIB(base) {
		n++
	}
	n += 4 // this repo always uses a nonzero disp for capture slots, so disp32 is always present
	return n
}

// EmitAllocClosure lowers one AllocClosure micro-op whose first byte
// will land at absolute address instrAddr in the final image, leaving
// the freshly bumped closure pointer in dst. codeAddr is the target
// procedure's own absolute entry address.
//
// The bump itself (`add [free_ptr], size`) and the initial load are
// both RIP-relative memory-to-memory operations that touch no register
// but dst, so this never needs a scratch register beyond dst and the
// fill sources already holding capture values — a real constraint,
// since the register-transition planner (transition.go) reserves no
// scratch space of its own for this step.
func EmitAllocClosure(asm *Assembler, heap *BumpHeapDescriptor, instrAddr uint64, dst int, codeAddr uint64, fills []int) {
	loadDisp := int32(int64(heap.FreePointerAddr()) - int64(instrAddr+uint64(MovMem64RIPRelLen)))
	asm.MovMem64RIPRel(dst, loadDisp)

	bumpAddr := instrAddr + uint64(MovMem64RIPRelLen)
	bumpDisp := int32(int64(heap.FreePointerAddr()) - int64(bumpAddr+uint64(AddMem64RIPRelImm32Len)))
	asm.AddMem64RIPRelImm32(bumpDisp, int32(ClosureByteSize(len(fills))))

	asm.MovImm32ToMem64(dst, 0, int32(codeAddr))
	for i, src := range fills {
		asm.MovToMem64(dst, int32(8*(i+1)), src)
	}
}
