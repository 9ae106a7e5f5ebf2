package main

import "encoding/binary"

// CodeLayout resolves every absolute address the second emission pass
// needs: where each procedure's entry point lands in the final image,
// where the bump heap's free-pointer cell lives, and where the literal
// pool's ROM record for a given string starts. Grounded in flapc's own
// two-pass label-then-patch shape (compute every symbol's address once
// sizes are known, then re-emit or patch), generalized here to full
// re-emission rather than byte-patching since every instruction this
// repo emits has a length independent of the address values it will
// eventually carry.
type CodeLayout struct {
	ProcAddr map[string]uint64
	Heap     *BumpHeapDescriptor
	Pool     *LiteralPool
	RomBase  uint64

	// SingletonAddr gives the ROM address of a zero-capture procedure's
	// one interned closure record (spec.md §3/§4.3: every reference to
	// a K=0 closure shares the same address rather than allocating a
	// fresh record on the heap).
	SingletonAddr map[string]uint64
}

// LowerMicroOps translates a Transition Plan into concrete instruction
// bytes into asm. procBaseAddr is the absolute address of asm's first
// byte; it must stay in step with asm.Len() as the caller appends
// procedures one after another, since AllocClosure's bump sequence
// needs its own position to compute a RIP-relative displacement.
//
// Shared by ordinary call-site emission and by builtins.go's tail-call
// step, since a builtin's continuation dispatch is, once its own
// operands are consumed, exactly the same kind of hand-off any other
// call site makes.
func LowerMicroOps(asm *Assembler, ops []MicroOp, layout *CodeLayout, procBaseAddr uint64) error {
	ops = NewPlanOptimizer().Optimize(ops)
	for _, op := range ops {
		switch op.Kind {
		case OpLoadCapture:
			asm.MovMem64(op.Dst, op.Src, int32(8*(op.CaptureSlot+1)))
		case OpLoadLiteral:
			if op.IsLiteralInt {
				if op.LiteralInt == 0 {
					asm.XorZero(op.Dst)
				} else {
					asm.MovImm64(op.Dst, op.LiteralInt)
				}
			} else {
				off, ok := layout.Pool.OffsetOfString(op.LiteralStr)
				if !ok {
					return &InternalPlannerFailureError{Reason: "string literal missing from the pool"}
				}
				asm.MovImm64(op.Dst, layout.RomBase+uint64(off))
			}
		case OpAllocClosure:
			addr, ok := layout.ProcAddr[op.ProcID]
			if !ok {
				return &InternalPlannerFailureError{ProcID: op.ProcID, Reason: "no code address assigned to referenced procedure"}
			}
			instrAddr := procBaseAddr + uint64(asm.Len())
			EmitAllocClosure(asm, layout.Heap, instrAddr, op.Dst, addr, op.Fills)
		case OpLoadSingleton:
			addr, ok := layout.SingletonAddr[op.ProcID]
			if !ok {
				return &InternalPlannerFailureError{ProcID: op.ProcID, Reason: "no ROM address assigned to referenced singleton closure"}
			}
			asm.MovImm64(op.Dst, addr)
		case OpMove:
			asm.MovRegReg(op.Dst, op.Src)
		case OpSwap:
			asm.Xchg(op.A, op.B)
		case OpXorZero:
			asm.XorZero(op.Dst)
		case OpFinalJmpIndirect:
			// target[0], the callee closure, always lands in r0 — the
			// calling convention's one fixed rule (§3, §4.5).
			asm.JmpIndirect(0)
		}
	}
	return nil
}

// compileProcedureBody lowers a single procedure's one terminal call
// site (§4.6: every procedure ends in exactly one control transfer,
// never a sequence of them — desugarBlock in parser.go guarantees this
// by construction for any well-formed program). Builtins are lowered
// inline by builtins.go; every other callee goes through the general
// register-transition planner.
func compileProcedureBody(asm *Assembler, proc *Procedure, schemas map[string]*ClosureSchema, layout *CodeLayout, procBaseAddr uint64, plat Platform) error {
	if len(proc.Body) == 0 {
		return &InternalPlannerFailureError{ProcID: proc.ID, Reason: "procedure has no terminal call"}
	}
	call := proc.Body[len(proc.Body)-1]
	entry := EntryState(proc)

	if call.Callee.Kind == IdentBuiltin {
		return lowerBuiltin(asm, call, entry, schemas, layout, procBaseAddr, plat)
	}

	target := make([]Value, 0, 1+len(call.Args))
	target = append(target, targetValue(call.Callee))
	for _, a := range call.Args {
		target = append(target, targetValue(a))
	}
	ops, err := PlanTransition(entry, target, schemas)
	if err != nil {
		return err
	}
	return LowerMicroOps(asm, ops, layout, procBaseAddr)
}

// EmittedProgram is the fully assembled code and ROM for a resolved
// program, ready for macho.go/elf.go to wrap in an object file.
type EmittedProgram struct {
	Code       []byte
	Rom        []byte
	EntryAddr  uint64
	Heap       *BumpHeapDescriptor
	TextBase   uint64
	RomBase    uint64
	HeapBase   uint64
}

// EmitProgram assembles every procedure in rp, in two passes: the
// first measures each procedure's byte length using placeholder
// addresses (safe because every instruction here has an address-
// independent length — see AllocClosureLen), which fixes every
// procedure's real offset; the second re-emits with those addresses
// resolved. Grounded in flapc's own layout-then-patch pattern in
// codegen_macho_writer.go (textAddr/rodataAddr computed from measured
// section sizes before a single relocation is patched in).
func EmitProgram(rp *ResolvedProgram, schemas map[string]*ClosureSchema, pool *LiteralPool, plat Platform, textBase, heapSize uint64) (*EmittedProgram, error) {
	if heapSize == 0 {
		heapSize = defaultHeapSize
	}
	var singletonIDs []string
	for _, id := range rp.Order {
		if schemas[id].Singleton {
			singletonIDs = append(singletonIDs, id)
		}
	}

	placeholderLayout := &CodeLayout{
		ProcAddr:      map[string]uint64{},
		Heap:          &BumpHeapDescriptor{},
		Pool:          pool,
		RomBase:       0,
		SingletonAddr: map[string]uint64{},
	}
	for _, id := range rp.Order {
		placeholderLayout.ProcAddr[id] = 0
	}
	for _, id := range singletonIDs {
		placeholderLayout.SingletonAddr[id] = 0
	}

	offsets := make(map[string]uint64, len(rp.Order))
	cursor := uint64(0)
	for _, id := range rp.Order {
		offsets[id] = cursor
		asm := NewAssembler()
		if err := compileProcedureBody(asm, rp.Procedures[id], schemas, placeholderLayout, 0, plat); err != nil {
			return nil, err
		}
		cursor += uint64(asm.Len())
	}
	totalCodeSize := cursor

	romBase := alignUp(textBase+totalCodeSize, 8)
	poolSize := uint64(pool.Size())
	// Every zero-capture procedure gets one interned closure record
	// immediately after the literal pool: an 8-byte code pointer, no
	// capture slots, laid out in rp.Order for determinism across runs.
	singletonBase := romBase + poolSize
	romSize := poolSize + uint64(len(singletonIDs))*8
	heapBase := alignUp(romBase+romSize, 4096)

	layout := &CodeLayout{
		ProcAddr:      make(map[string]uint64, len(rp.Order)),
		Heap:          &BumpHeapDescriptor{BaseAddr: heapBase, Size: heapSize},
		Pool:          pool,
		RomBase:       romBase,
		SingletonAddr: make(map[string]uint64, len(singletonIDs)),
	}
	for _, id := range rp.Order {
		layout.ProcAddr[id] = textBase + offsets[id]
	}
	for i, id := range singletonIDs {
		layout.SingletonAddr[id] = singletonBase + uint64(i)*8
	}

	code := make([]byte, 0, totalCodeSize)
	for _, id := range rp.Order {
		procBase := textBase + offsets[id]
		asm := NewAssembler()
		if err := compileProcedureBody(asm, rp.Procedures[id], schemas, layout, procBase, plat); err != nil {
			return nil, err
		}
		code = append(code, asm.Bytes()...)
	}

	entryAddr, ok := layout.ProcAddr[rp.MainID]
	if !ok {
		return nil, &InternalPlannerFailureError{Reason: "no code address assigned to the entry procedure"}
	}

	rom := make([]byte, 0, romSize)
	rom = append(rom, pool.Bytes()...)
	for _, id := range singletonIDs {
		var rec [8]byte
		binary.LittleEndian.PutUint64(rec[:], layout.ProcAddr[id])
		rom = append(rom, rec[:]...)
	}

	return &EmittedProgram{
		Code:      code,
		Rom:       rom,
		EntryAddr: entryAddr,
		Heap:      layout.Heap,
		TextBase:  textBase,
		RomBase:   romBase,
		HeapBase:  heapBase,
	}, nil
}

func alignUp(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}
