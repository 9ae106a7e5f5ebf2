package main

// Stage names the compilation state machine's phases (§4.8): lexing,
// parsing, resolving, laying-out (closure schemas + literal pool),
// planning (register-transition plans, computed lazily per call site
// inside EmitProgram rather than as a separate up-front stage), emitting,
// and written. Grounded on flapc's own compiler driver shape in
// main.go/cli.go (a linear sequence of named steps, each producing the
// next stage's input, reported to the user as it advances).
type Stage int

const (
	StageLexing Stage = iota
	StageParsing
	StageResolving
	StageLayingOut
	StageEmitting
	StageWritten
)

func (s Stage) String() string {
	switch s {
	case StageLexing:
		return "lexing"
	case StageParsing:
		return "parsing"
	case StageResolving:
		return "resolving"
	case StageLayingOut:
		return "laying-out"
	case StageEmitting:
		return "emitting"
	case StageWritten:
		return "written"
	default:
		return "unknown"
	}
}

// CompileOptions configures a single compilation run: the target
// platform and the base virtual address the code segment loads at.
// TextBase defaults per-platform in Compile if left zero.
type CompileOptions struct {
	Platform Platform
	TextBase uint64
	HeapSize uint64 // 0 selects defaultHeapSize (heap.go)
	Trace    func(Stage) // optional; called as each stage completes
}

func defaultTextBase(plat Platform) uint64 {
	if plat.OS == OSDarwin {
		// Every address EmitProgram bakes into the image — string
		// literal pointers, singleton closure records, AllocClosure's
		// code pointers — must already sit above __PAGEZERO, since
		// nothing patches them afterward; WriteMachO lays out
		// __PAGEZERO at this same darwinZeroPageSize but never adds it
		// to an address a second time.
		return darwinZeroPageSize
	}
	return 0x400000 // conventional Linux ET_EXEC load address
}

func (o CompileOptions) trace(s Stage) {
	if o.Trace != nil {
		o.Trace(s)
	}
}

// Compile runs the full pipeline from source text to a serialized
// executable image: lex, parse, resolve, plan closure schemas and the
// literal pool, emit machine code and ROM, then write the platform's
// object file format. file is used only for diagnostic positions.
func Compile(file, src string, opts CompileOptions) ([]byte, error) {
	textBase := opts.TextBase
	if textBase == 0 {
		textBase = defaultTextBase(opts.Platform)
	}

	opts.trace(StageLexing)
	lx := NewLexer(file, src)
	toks, err := lx.Tokenize()
	if err != nil {
		return nil, err
	}

	opts.trace(StageParsing)
	prog, err := NewParser(toks).ParseProgram()
	if err != nil {
		return nil, err
	}

	opts.trace(StageResolving)
	rp, err := ResolveProgram(prog)
	if err != nil {
		return nil, err
	}

	opts.trace(StageLayingOut)
	schemas := PlanClosureSchemas(rp)
	pool := BuildLiteralPool(rp)

	opts.trace(StageEmitting)
	emitted, err := EmitProgram(rp, schemas, pool, opts.Platform, textBase, opts.HeapSize)
	if err != nil {
		return nil, err
	}

	var image []byte
	switch opts.Platform.OS {
	case OSDarwin:
		image, err = WriteMachO(emitted)
	case OSLinux:
		image, err = WriteELF(emitted)
	default:
		return nil, &InternalPlannerFailureError{Reason: "unsupported platform for executable image writing"}
	}
	if err != nil {
		return nil, err
	}

	opts.trace(StageWritten)
	return image, nil
}
