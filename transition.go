package main

import "sort"

// MicroOpKind enumerates the seven micro-operations a Transition Plan
// is built from (§3).
type MicroOpKind int

const (
	OpLoadCapture MicroOpKind = iota
	OpLoadLiteral
	OpAllocClosure
	OpLoadSingleton
	OpMove
	OpSwap
	OpXorZero
	OpFinalJmpIndirect
)

// MicroOp is one step of a Transition Plan. Only the fields relevant
// to Kind are populated.
type MicroOp struct {
	Kind MicroOpKind

	Dst, Src int // Move, LoadCapture, LoadLiteral, AllocClosure, XorZero
	A, B     int // Swap

	CaptureSlot int // LoadCapture

	IsLiteralInt bool // LoadLiteral
	LiteralInt   uint64
	LiteralStr   string

	ProcID string // AllocClosure, LoadSingleton: which schema to instantiate
	Fills  []int  // AllocClosure: source register per Layout slot, in order
}

// PlanTransition computes the Transition Plan that carries entry into
// a state satisfying target (§4.5): target[0] is the callee's closure,
// target[1:] are its arguments in r1..rN order. schemas resolves a
// ClosureRef's ProcID to its Closure Schema, needed to fill a fresh
// closure's capture slots.
//
// The scheduling algorithm is the "simpler baseline" §4.5 explicitly
// sanctions rather than the optimal shortest-path search: closure
// allocations and literal loads are synthesized first (each distinct
// value exactly once, into a register nothing else still needs), then
// the remaining pure register-to-register copies are resolved by
// repeatedly moving any value that is not itself needed as another
// move's source, breaking any remaining cycle with a swap.
func PlanTransition(entry RegisterState, target []Value, schemas map[string]*ClosureSchema) ([]MicroOp, error) {
	cur := entry
	var ops []MicroOp

	homeOf := map[Value]int{}
	used := make([]bool, 16)

	isSynthesized := func(v Value) bool {
		return v.Kind == ValueClosureRef || v.Kind == ValueLiteralRef
	}

	// protectSelf holds while Phase 0 still has capture loads left to
	// read through r0 (or wherever Self currently lives) — it keeps
	// findHome from handing that register to some other value's home
	// out from under a still-pending load.
	protectSelf := false

	unsafeToClobber := func(r int) bool {
		if protectSelf && cur.Regs[r].Kind == ValueSelf {
			return true
		}
		for _, tv := range target {
			if isSynthesized(tv) {
				continue
			}
			if cur.Regs[r] == tv {
				return true
			}
		}
		return false
	}

	findHome := func(preferred int) (int, error) {
		if preferred >= 0 && preferred < 16 && !used[preferred] && !unsafeToClobber(preferred) {
			return preferred, nil
		}
		for r := 0; r < 16; r++ {
			if used[r] || unsafeToClobber(r) {
				continue
			}
			return r, nil
		}
		return 0, &InternalPlannerFailureError{Reason: "no free register to synthesize a value into"}
	}

	// Phase 0: a capture is never resident at procedure entry — only
	// Self, Params and (transitively) whatever Phase 1 will still
	// synthesize are. Every distinct ValueCaptured that either the
	// target vector or a needed closure's Layout mentions — walked
	// transitively through any CaptureFromLocalProc chain, since a
	// captured local proc's own Layout can itself demand a capture
	// slot several closures removed from anything in target — must be
	// read out of the current closure's slots (through Self) before
	// Phase 1 is free to reassign Self's register to something else.
	// selfNeededLater tracks whether that same walk finds a
	// CaptureFromSelf anywhere in the chain, in which case Self must
	// stay resident (protected from Phase 1's own register reuse) all
	// the way until the OpAllocClosure that consumes it as a Fill
	// source, not just until Phase 0 finishes reading captures.
	neededCaptures := map[Value]bool{}
	selfNeededLater := false
	visitedSchemas := map[string]bool{}
	var walkSchemaNeeds func(procID string)
	walkSchemaNeeds = func(procID string) {
		if visitedSchemas[procID] {
			return
		}
		visitedSchemas[procID] = true
		schema, ok := schemas[procID]
		if !ok {
			return
		}
		for _, src := range schema.Layout {
			switch src.Kind {
			case CaptureFromCapture:
				neededCaptures[captureSourceValue(src)] = true
			case CaptureFromSelf:
				selfNeededLater = true
			case CaptureFromLocalProc:
				walkSchemaNeeds(src.ProcID)
			}
		}
	}
	for _, tv := range target {
		if tv.Kind == ValueCaptured {
			neededCaptures[tv] = true
		}
		if tv.Kind == ValueClosureRef {
			walkSchemaNeeds(tv.ProcID)
		}
	}
	if len(neededCaptures) > 0 {
		slots := make([]int, 0, len(neededCaptures))
		for cv := range neededCaptures {
			if _, ok := findRegisterHolding(cur, cv); !ok {
				slots = append(slots, cv.Index)
			}
		}
		sort.Ints(slots)
		if len(slots) > 0 {
			protectSelf = true
			selfReg, ok := findRegisterHolding(cur, Value{Kind: ValueSelf})
			if !ok {
				return nil, &InternalPlannerFailureError{Reason: "no register holds the current closure to read captures through"}
			}
			for _, slot := range slots {
				home, err := findHome(-1)
				if err != nil {
					return nil, err
				}
				used[home] = true
				ops = append(ops, MicroOp{Kind: OpLoadCapture, Dst: home, Src: selfReg, CaptureSlot: slot})
				cur.Regs[home] = capturedValue(slot)
			}
		}
	}
	protectSelf = selfNeededLater

	// Phase 1: synthesize every distinct closure/literal value needed,
	// exactly once, before any copy touches the registers it reads
	// from. synthesize is recursive: a ValueClosureRef's own Fill list
	// can itself name another ValueClosureRef that never appears in
	// target directly (CaptureFromLocalProc — one local proc capturing
	// a sibling), so that referenced closure must be synthesized first,
	// on demand, rather than only ever being reached by iterating
	// target's own entries.
	var synthesize func(tv Value, preferred int) (int, error)
	synthesize = func(tv Value, preferred int) (int, error) {
		if home, ok := homeOf[tv]; ok {
			return home, nil
		}
		if !isSynthesized(tv) {
			r, ok := findRegisterHolding(cur, tv)
			if !ok {
				return 0, &InternalPlannerFailureError{Reason: "capture source not resident in any register"}
			}
			return r, nil
		}
		home, err := findHome(preferred)
		if err != nil {
			return 0, err
		}
		used[home] = true
		switch tv.Kind {
		case ValueClosureRef:
			schema, ok := schemas[tv.ProcID]
			if !ok {
				return 0, &InternalPlannerFailureError{ProcID: tv.ProcID, Reason: "no closure schema for referenced procedure"}
			}
			if schema.Singleton {
				// A zero-capture closure's record never varies from one
				// reference to the next, so it is interned once in ROM
				// (closure.go, emit.go) rather than bump-allocated afresh
				// at every reference (spec.md §3/§4.3).
				ops = append(ops, MicroOp{Kind: OpLoadSingleton, Dst: home, ProcID: tv.ProcID})
				break
			}
			fills := make([]int, 0, len(schema.Layout))
			for _, src := range schema.Layout {
				r, err := synthesize(captureSourceValue(src), -1)
				if err != nil {
					return 0, err
				}
				fills = append(fills, r)
			}
			ops = append(ops, MicroOp{Kind: OpAllocClosure, Dst: home, ProcID: tv.ProcID, Fills: fills})
		case ValueLiteralRef:
			if tv.IsLiteralInt && tv.LiteralInt == 0 {
				ops = append(ops, MicroOp{Kind: OpXorZero, Dst: home})
			} else {
				ops = append(ops, MicroOp{Kind: OpLoadLiteral, Dst: home, IsLiteralInt: tv.IsLiteralInt, LiteralInt: tv.LiteralInt, LiteralStr: tv.LiteralStr})
			}
		}
		cur.Regs[home] = tv
		homeOf[tv] = home
		return home, nil
	}
	for i, tv := range target {
		if !isSynthesized(tv) {
			continue
		}
		if _, err := synthesize(tv, i); err != nil {
			return nil, err
		}
	}

	// Phase 2: schedule the pure register-to-register copies. Every
	// value target needs now exists somewhere in cur (either it always
	// did — Captured/Param/Self — or Phase 1 just put it there).
	need := map[int]int{}
	for i, tv := range target {
		if cur.Regs[i] == tv {
			continue
		}
		r, ok := findRegisterHolding(cur, tv)
		if !ok {
			return nil, &InternalPlannerFailureError{Reason: "target value not resident in any register after synthesis"}
		}
		need[i] = r
	}

	pending := make([]int, 0, len(need))
	for d := range need {
		pending = append(pending, d)
	}
	sort.Ints(pending)

	neededAsSource := func(r int) bool {
		for _, s := range need {
			if s == r {
				return true
			}
		}
		return false
	}

	for len(pending) > 0 {
		progressed := false
		for idx, d := range pending {
			if neededAsSource(d) {
				continue
			}
			s := need[d]
			ops = append(ops, MicroOp{Kind: OpMove, Dst: d, Src: s})
			cur.Regs[d] = cur.Regs[s]
			delete(need, d)
			pending = append(pending[:idx], pending[idx+1:]...)
			progressed = true
			break
		}
		if progressed {
			continue
		}

		// Only cycles remain: break the first one with a swap. Whoever
		// wanted d's old content now finds it in s; a 2-cycle resolves
		// both sides at once, leaving a self-satisfied entry to purge.
		d := pending[0]
		s := need[d]
		ops = append(ops, MicroOp{Kind: OpSwap, A: d, B: s})
		cur.Regs[d], cur.Regs[s] = cur.Regs[s], cur.Regs[d]
		delete(need, d)
		pending = pending[1:]
		for d2, s2 := range need {
			if s2 == d {
				need[d2] = s
			}
		}
		for d2, s2 := range need {
			if d2 == s2 {
				delete(need, d2)
				for pi, pv := range pending {
					if pv == d2 {
						pending = append(pending[:pi], pending[pi+1:]...)
						break
					}
				}
			}
		}
	}

	ops = append(ops, MicroOp{Kind: OpFinalJmpIndirect})
	return ops, nil
}

func findRegisterHolding(st RegisterState, v Value) (int, bool) {
	for r := 0; r < 16; r++ {
		if st.Regs[r] == v {
			return r, true
		}
	}
	return 0, false
}

// Simulate replays a Transition Plan on an abstract register state,
// used both by the emitter's sanity checks and directly by tests to
// verify the "transition correctness" property (spec.md §8): starting
// from entry, executing ops must produce target in r0..len(target)-1.
func Simulate(entry RegisterState, ops []MicroOp, schemas map[string]*ClosureSchema) RegisterState {
	st := entry
	for _, op := range ops {
		switch op.Kind {
		case OpLoadCapture:
			st.Regs[op.Dst] = capturedValue(op.CaptureSlot)
		case OpLoadLiteral:
			if op.IsLiteralInt {
				st.Regs[op.Dst] = literalIntValue(op.LiteralInt)
			} else {
				st.Regs[op.Dst] = literalStrValue(op.LiteralStr)
			}
		case OpAllocClosure, OpLoadSingleton:
			st.Regs[op.Dst] = closureRefValue(op.ProcID)
		case OpMove:
			st.Regs[op.Dst] = st.Regs[op.Src]
		case OpSwap:
			st.Regs[op.A], st.Regs[op.B] = st.Regs[op.B], st.Regs[op.A]
		case OpXorZero:
			st.Regs[op.Dst] = literalIntValue(0)
		case OpFinalJmpIndirect:
			// no register effect; control leaves the procedure
		}
	}
	return st
}
