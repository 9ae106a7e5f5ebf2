package main

// lowerBuiltin lowers one builtin call site, always the sole terminal
// call of its owning procedure (§4.6). Builtins never go through the
// general register-transition planner for their own operands — the
// hardware ties add/sub/mul/divmod/print/exit to fixed operand
// registers or a fixed syscall ABI the planner knows nothing about —
// but every builtin except exit ends by handing off to a continuation
// through exactly the same PlanTransition/LowerMicroOps machinery an
// ordinary call site uses (tailCall, below).
//
// Grounded on flapc's cmp.go/div.go/logic.go/mem_ops.go split (one
// file per builtin-op family), mirrored here as builtins_arith.go,
// builtins_cmp.go and builtins_io.go.
func lowerBuiltin(asm *Assembler, call ResolvedCall, entry RegisterState, schemas map[string]*ClosureSchema, layout *CodeLayout, procBaseAddr uint64, plat Platform) error {
	switch call.Callee.Builtin {
	case "add":
		return lowerArith(asm, call, entry, schemas, layout, procBaseAddr, arithAdd)
	case "sub":
		return lowerArith(asm, call, entry, schemas, layout, procBaseAddr, arithSub)
	case "mul":
		return lowerArith(asm, call, entry, schemas, layout, procBaseAddr, arithMul)
	case "divmod":
		return lowerDivmod(asm, call, entry, schemas, layout, procBaseAddr)
	case "isZero":
		return lowerIsZero(asm, call, entry, schemas, layout, procBaseAddr)
	case "print":
		return lowerPrint(asm, call, entry, schemas, layout, procBaseAddr, plat)
	case "exit":
		return lowerExit(asm, call, entry, plat)
	default:
		return &InternalPlannerFailureError{ProcID: "", Reason: "unknown builtin " + call.Callee.Builtin}
	}
}

// materializeOperand loads a call operand's value into a specific
// physical register. Builtins only ever operate on plain values —
// parameters, captures, self, or integer literals — never on
// closures, so unlike the general call machinery this never has to
// synthesize an AllocClosure.
func materializeOperand(asm *Assembler, cur RegisterState, id ResolvedIdent, dst int) error {
	switch id.Kind {
	case IdentParam:
		r, ok := findRegisterHolding(cur, paramValue(id.Index))
		if !ok {
			return &InternalPlannerFailureError{Reason: "parameter not resident at the point of use"}
		}
		if r != dst {
			asm.MovRegReg(dst, r)
		}
	case IdentSelf:
		r, ok := findRegisterHolding(cur, Value{Kind: ValueSelf})
		if !ok {
			return &InternalPlannerFailureError{Reason: "self not resident at the point of use"}
		}
		if r != dst {
			asm.MovRegReg(dst, r)
		}
	case IdentCapture:
		if r, ok := findRegisterHolding(cur, capturedValue(id.Index)); ok {
			if r != dst {
				asm.MovRegReg(dst, r)
			}
			return nil
		}
		selfReg, ok := findRegisterHolding(cur, Value{Kind: ValueSelf})
		if !ok {
			return &InternalPlannerFailureError{Reason: "no register holds the current closure to read a capture through"}
		}
		asm.MovMem64(dst, selfReg, int32(8*(id.Index+1)))
	case IdentLiteralInt:
		if id.IntVal == 0 {
			asm.XorZero(dst)
		} else {
			asm.MovImm64(dst, id.IntVal)
		}
	default:
		return &BuiltinMisuseError{Message: "operand must be a parameter, capture, self, or integer literal"}
	}
	return nil
}

// pickScratch returns the lowest register index that is neither in
// avoid nor currently holding any value in live. A builtin's call site
// is always in tail position, so nothing downstream in the current
// procedure needs any register's content preserved past it — but live
// carries whatever this same lowering still needs to read before it is
// done (unconsumed operands, the continuation, self while a capture
// read is still pending), the same "not yet consumed" test
// transition.go's unsafeToClobber makes for the general planner.
// Picking a register that ignored live once clobbered a one-parameter
// print's own string argument before it was read (caught via manual
// trace-through of lowerPrint, not a test run).
func pickScratch(cur RegisterState, live []Value, avoid ...int) int {
	var blocked [16]bool
	for _, r := range avoid {
		if r >= 0 && r < 16 {
			blocked[r] = true
		}
	}
	for r := 0; r < 16; r++ {
		if blocked[r] {
			continue
		}
		for _, v := range live {
			if cur.Regs[r] == v {
				blocked[r] = true
				break
			}
		}
	}
	for r := 0; r < 16; r++ {
		if !blocked[r] {
			return r
		}
	}
	return 15
}

// evacuate moves val out of any register named in forbidden, into a
// fresh scratch register chosen by pickScratch (so it never lands on a
// register holding something in live either), updating cur so later
// lookups find it there. A no-op if val is not currently resident in a
// forbidden register (or not resident at all — a fresh closure
// continuation, for instance, has nowhere to be evacuated from).
func evacuate(asm *Assembler, cur *RegisterState, val Value, live []Value, forbidden ...int) {
	r, ok := findRegisterHolding(*cur, val)
	if !ok {
		return
	}
	blocked := false
	for _, f := range forbidden {
		if r == f {
			blocked = true
		}
	}
	if !blocked {
		return
	}
	dst := pickScratch(*cur, live, append(append([]int{}, forbidden...), r)...)
	asm.MovRegReg(dst, r)
	cur.Regs[dst] = val
}

// tailCall hands off to a fully-resolved target vector from the
// current register state cur, through the same planner every ordinary
// call site uses — a builtin's continuation dispatch is otherwise
// exactly like any other call.
func tailCall(asm *Assembler, cur RegisterState, target []Value, schemas map[string]*ClosureSchema, layout *CodeLayout, procBaseAddr uint64) error {
	ops, err := PlanTransition(cur, target, schemas)
	if err != nil {
		return err
	}
	return LowerMicroOps(asm, ops, layout, procBaseAddr)
}
