package main

import "testing"

// isZero(a, t, k): both branches are zero-capture local procs. The
// planner must emit a test+jcc and both branches' code, with the jcc
// landing exactly at the start of the true branch.
func TestLowerIsZeroBranchesLandCorrectly(t *testing.T) {
	proc := procWithParams(1)
	entry := EntryState(proc)
	call := callTo("isZero",
		ResolvedIdent{Kind: IdentParam, Index: 0},
		ResolvedIdent{Kind: IdentLocalProc, ProcID: "t"},
		ResolvedIdent{Kind: IdentLocalProc, ProcID: "f"},
	)
	schemas := map[string]*ClosureSchema{
		"t": {ProcID: "t", K: 0, Singleton: true},
		"f": {ProcID: "f", K: 0, Singleton: true},
	}
	layout := newLayout()
	layout.ProcAddr["t"] = 0x4000
	layout.ProcAddr["f"] = 0x5000

	asm := NewAssembler()
	if err := lowerIsZero(asm, call, entry, schemas, layout, 0); err != nil {
		t.Fatalf("lowerIsZero: %v", err)
	}
	code := asm.Bytes()

	// find the jcc opcode (0F 84) emitted right after the test
	jccAt := -1
	for i := 0; i+1 < len(code); i++ {
		if code[i] == 0x0F && code[i+1] == 0x84 {
			jccAt = i
			break
		}
	}
	if jccAt < 0 {
		t.Fatal("no jz opcode found in emitted code")
	}
	rel := int32(code[jccAt+2]) | int32(code[jccAt+3])<<8 | int32(code[jccAt+4])<<16 | int32(code[jccAt+5])<<24
	landing := jccAt + 6 + int(rel)
	if landing <= jccAt || landing >= len(code) {
		t.Fatalf("jz lands at %d, want strictly between the jz itself (%d) and the end of the stream (%d) — the true branch must follow the false branch", landing, jccAt, len(code))
	}
}
