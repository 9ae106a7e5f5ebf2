package main

// lowerIsZero lowers isZero (§4.6): compare n to 0, tail-call t when
// it is, f otherwise. t and f are always nullary — isZero passes them
// no value of its own, so each branch's transition targets exactly one
// slot, itself.
//
// The comparison is compiled the usual way: test-and-jump-if-zero to a
// label placed right after the false branch's own code, so a
// not-taken branch simply falls through into it and a taken branch
// skips straight to the true branch — neither branch's own
// OpFinalJmpIndirect ever reaches the other's bytes at runtime.
func lowerIsZero(asm *Assembler, call ResolvedCall, entry RegisterState, schemas map[string]*ClosureSchema, layout *CodeLayout, procBaseAddr uint64) error {
	n, t, f := call.Args[0], call.Args[1], call.Args[2]
	cur := entry
	tVal, fVal := targetValue(t), targetValue(f)

	live := []Value{{Kind: ValueSelf}, tVal, fVal}
	regN := pickScratch(cur, live)
	if err := materializeOperand(asm, cur, n, regN); err != nil {
		return err
	}
	cur.Regs[regN] = targetValue(n)
	asm.TestRegReg(regN, regN)
	patchAt := asm.JccRel32(JumpIfZero)

	falseOps, err := PlanTransition(cur, []Value{fVal}, schemas)
	if err != nil {
		return err
	}
	if err := LowerMicroOps(asm, falseOps, layout, procBaseAddr); err != nil {
		return err
	}

	asm.PatchRel32(patchAt, int32(asm.Len()-patchAt-4))

	trueOps, err := PlanTransition(cur, []Value{tVal}, schemas)
	if err != nil {
		return err
	}
	return LowerMicroOps(asm, trueOps, layout, procBaseAddr)
}
