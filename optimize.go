package main

// OptimizationPass is one peephole transformation over a Transition
// Plan's micro-op sequence. Grounded on flapc's `OptimizationPass`
// interface in optimizer.go (`Name`/`Run`, iterated to a fixed point),
// narrowed here from flapc's whole-AST passes to a single call site's
// already-planned micro-ops, since spec.md's register-transition
// planner is this repo's sole optimization surface — there is no
// broader IR to run whole-program passes over.
type OptimizationPass interface {
	Name() string
	Run(ops []MicroOp) (out []MicroOp, changed bool)
}

// PlanOptimizer runs every registered pass to a fixed point, the same
// shape as flapc's Optimizer.Optimize loop (iterate until no pass
// reports a change, capped at maxIter to guarantee termination even if
// two passes were ever to oscillate).
type PlanOptimizer struct {
	passes  []OptimizationPass
	maxIter int
}

// NewPlanOptimizer builds the default pass pipeline.
func NewPlanOptimizer() *PlanOptimizer {
	return &PlanOptimizer{
		passes:  []OptimizationPass{noopMoveElimination{}, redundantSwapElimination{}},
		maxIter: 10,
	}
}

// Optimize runs every pass over ops until none reports a change.
func (o *PlanOptimizer) Optimize(ops []MicroOp) []MicroOp {
	for i := 0; i < o.maxIter; i++ {
		anyChanged := false
		for _, pass := range o.passes {
			next, changed := pass.Run(ops)
			if changed {
				ops = next
				anyChanged = true
			}
		}
		if !anyChanged {
			break
		}
	}
	return ops
}

// noopMoveElimination drops any Move or Swap whose operands name the
// same register — a pathological but possible output of Phase 2's
// scheduler when a target vector repeats the same value in two slots
// that already happen to coincide.
type noopMoveElimination struct{}

func (noopMoveElimination) Name() string { return "noop-move-elimination" }

func (noopMoveElimination) Run(ops []MicroOp) ([]MicroOp, bool) {
	out := make([]MicroOp, 0, len(ops))
	changed := false
	for _, op := range ops {
		if op.Kind == OpMove && op.Dst == op.Src {
			changed = true
			continue
		}
		if op.Kind == OpSwap && op.A == op.B {
			changed = true
			continue
		}
		out = append(out, op)
	}
	return out, changed
}

// redundantSwapElimination cancels two adjacent swaps of the same
// register pair: Swap(a,b) immediately followed by Swap(a,b) — or
// Swap(a,b) followed by Swap(b,a), the same operation with its
// operands reversed — restores both registers to their pre-swap
// contents, so both instructions can be dropped.
type redundantSwapElimination struct{}

func (redundantSwapElimination) Name() string { return "redundant-swap-elimination" }

func (redundantSwapElimination) Run(ops []MicroOp) ([]MicroOp, bool) {
	out := make([]MicroOp, 0, len(ops))
	changed := false
	for i := 0; i < len(ops); i++ {
		if i+1 < len(ops) && ops[i].Kind == OpSwap && ops[i+1].Kind == OpSwap {
			a, b := ops[i].A, ops[i].B
			c, d := ops[i+1].A, ops[i+1].B
			if (a == c && b == d) || (a == d && b == c) {
				changed = true
				i++
				continue
			}
		}
		out = append(out, ops[i])
	}
	return out, changed
}
