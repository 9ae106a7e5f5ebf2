package main

// syscall numbers for write/exit, per spec.md §4.6. Darwin syscalls are
// BSD-class, selected by ORing the BSD number with 0x02000000; Linux
// uses its own flat numbering.
const (
	sysWriteLinux  = 1
	sysExitLinux   = 60
	sysWriteDarwin = 0x02000000 | 4
	sysExitDarwin  = 0x02000000 | 1
)

// lowerPrint lowers print (§4.6): s → write(1, s+8, [s]), then tail-
// call the continuation with no value of its own. A string value is
// the address of its length-prefixed ROM record (literal.go), so the
// data pointer is the record's address plus 8 and the length is the
// first 8 bytes at that address — no separate length operand exists at
// the call site.
func lowerPrint(asm *Assembler, call ResolvedCall, entry RegisterState, schemas map[string]*ClosureSchema, layout *CodeLayout, procBaseAddr uint64, plat Platform) error {
	s, k := call.Args[0], call.Args[1]
	cur := entry
	contVal := targetValue(k)
	sVal := targetValue(s)

	// s is still unread at this point — evacuating the continuation or
	// self out of rax/rdx/rsi/rdi must not land either one on top of s's
	// own register, or the read below finds nothing there.
	live := []Value{contVal, sVal}

	// rax, rdx, rsi, rdi are the write syscall's ABI registers; nothing
	// this lowering still needs may be left resident in any of them.
	evacuate(asm, &cur, contVal, live, 0, 2, 6, 7)
	evacuate(asm, &cur, Value{Kind: ValueSelf}, live, 0, 2, 6, 7)

	sPtr := pickScratch(cur, live, 0, 2, 6, 7)
	if err := materializeOperand(asm, cur, s, sPtr); err != nil {
		return err
	}
	cur.Regs[sPtr] = sVal

	asm.Lea(6, sPtr, 8)      // rsi = data pointer, past the length prefix
	asm.MovMem64(2, sPtr, 0) // rdx = length
	asm.MovImm64(7, 1)       // rdi = fd 1 (stdout)

	sysNum := uint64(sysWriteLinux)
	if plat.OS == OSDarwin {
		sysNum = sysWriteDarwin
	}
	asm.MovImm64(0, sysNum)
	asm.Syscall()

	for _, r := range []int{0, 2, 6, 7} {
		cur.Regs[r] = Value{Kind: ValueIntermediate, Index: 6 + r}
	}

	return tailCall(asm, cur, []Value{contVal}, schemas, layout, procBaseAddr)
}

// lowerExit lowers exit (§4.6): n → exit(n). exit has no continuation
// argument and never returns, so unlike every other builtin this
// simply ends the procedure's code without a tail call.
func lowerExit(asm *Assembler, call ResolvedCall, entry RegisterState, plat Platform) error {
	n := call.Args[0]
	if err := materializeOperand(asm, entry, n, 7); err != nil {
		return err
	}

	sysNum := uint64(sysExitLinux)
	if plat.OS == OSDarwin {
		sysNum = sysExitDarwin
	}
	asm.MovImm64(0, sysNum)
	asm.Syscall()
	return nil
}
