package main

// ClosureSchema is a procedure's Closure Schema (spec §3, §4.3): the
// physical layout of its closure record. Slot 0 is always the code
// pointer; Layout[i] gives the source of slot i+1 in the enclosing
// procedure's frame at the moment the closure is constructed.
type ClosureSchema struct {
	ProcID    string
	K         int
	Layout    []CaptureSource
	Singleton bool
}

// PlanClosureSchemas assigns every resolved procedure its Closure
// Schema. The captures and their sources were already computed by
// name resolution (§4.2); this pass just fixes them into the
// slots-1..k layout and flags the zero-capture procedures that can be
// interned as ROM singletons (§4.3).
func PlanClosureSchemas(rp *ResolvedProgram) map[string]*ClosureSchema {
	schemas := make(map[string]*ClosureSchema, len(rp.Procedures))
	for id, proc := range rp.Procedures {
		schemas[id] = &ClosureSchema{
			ProcID:    id,
			K:         len(proc.Captures),
			Layout:    append([]CaptureSource(nil), proc.CaptureSrc...),
			Singleton: len(proc.Captures) == 0,
		}
	}
	return schemas
}
