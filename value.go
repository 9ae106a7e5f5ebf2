package main

// ValueKind enumerates the Value taxonomy of the Data Model (§3):
// what a register can be known, statically, to hold at a point in
// the compiled program.
type ValueKind int

const (
	ValueBottom ValueKind = iota
	ValueSelf                // the procedure's own closure pointer (r0 at entry)
	ValueCaptured             // one of the current closure's capture slots
	ValueParam                // one of the procedure's own parameters
	ValueLiteralRef            // a pool-interned integer or string constant
	ValueClosureRef             // a closure — either a fresh allocation or a ROM singleton
	ValueIntermediate             // a builtin's freshly computed result; produced and
	// consumed only within builtins.go's inline lowering, never by
	// PlanTransition, which only ever targets the five kinds above it.
)

// Value is a comparable description of a register's static content —
// deliberately a plain struct of comparable fields so two Values can
// be compared with ==, which is all the planner needs.
type Value struct {
	Kind         ValueKind
	Index        int    // Captured slot or Param index
	ProcID       string // ClosureRef
	IsLiteralInt bool   // discriminates LiteralRef's payload
	LiteralInt   uint64
	LiteralStr   string
}

func capturedValue(slot int) Value  { return Value{Kind: ValueCaptured, Index: slot} }
func paramValue(idx int) Value      { return Value{Kind: ValueParam, Index: idx} }
func closureRefValue(id string) Value { return Value{Kind: ValueClosureRef, ProcID: id} }
func literalIntValue(v uint64) Value  { return Value{Kind: ValueLiteralRef, IsLiteralInt: true, LiteralInt: v} }
func literalStrValue(s string) Value { return Value{Kind: ValueLiteralRef, LiteralStr: s} }

// RegisterState is the abstract machine state at one point in the
// generated code: what each of the 16 registers holds (§3).
type RegisterState struct {
	Regs [16]Value
}

// EntryState is the fixed state the calling convention guarantees at
// a procedure's first instruction: r0 the current closure, r1..rN the
// declared parameters in order, everything else unconstrained.
func EntryState(proc *Procedure) RegisterState {
	var st RegisterState
	st.Regs[0] = Value{Kind: ValueSelf}
	for i := range proc.Params {
		st.Regs[i+1] = paramValue(i)
	}
	return st
}

// captureSourceValue reinterprets a Closure Schema capture source
// (§3) as the Value it names in the owning procedure's own frame.
func captureSourceValue(src CaptureSource) Value {
	switch src.Kind {
	case CaptureFromParam:
		return paramValue(src.Index)
	case CaptureFromCapture:
		return capturedValue(src.Index)
	case CaptureFromSelf:
		return Value{Kind: ValueSelf}
	case CaptureFromLocalProc:
		return closureRefValue(src.ProcID)
	default:
		return Value{Kind: ValueBottom}
	}
}

// targetValue converts a resolved call operand into the Value the
// register-transition planner must place in its target slot.
func targetValue(id ResolvedIdent) Value {
	switch id.Kind {
	case IdentParam:
		return paramValue(id.Index)
	case IdentCapture:
		return capturedValue(id.Index)
	case IdentSelf:
		return Value{Kind: ValueSelf}
	case IdentTopProc, IdentLocalProc:
		return closureRefValue(id.ProcID)
	case IdentLiteralInt:
		return literalIntValue(id.IntVal)
	case IdentLiteralString:
		return literalStrValue(id.StrVal)
	default:
		return Value{Kind: ValueBottom}
	}
}
