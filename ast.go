package main

// Expression and Statement are the surface AST, produced by the parser
// straight from the token stream (before name resolution). The shapes
// mirror original_source/parser/src/AST.rs: an expression is either a
// bare Reference, an integer or string Literal, an inline continuation
// (Fructose), or a nested call (Galactose) — the two parenthesized
// forms distinguished by whether a maplet token separates binders from
// a body (spec.md §6, "Fructose vs Galactose").

// ExprKind discriminates the four expression shapes.
type ExprKind int

const (
	ExprReference ExprKind = iota
	ExprLiteralInt
	ExprLiteralString
	ExprFructose
	ExprGalactose
)

// Expression is a tagged union over the four surface expression forms.
// Only the fields relevant to Kind are populated.
type Expression struct {
	Kind ExprKind
	Pos  Position

	// ExprReference
	Name string

	// ExprLiteralInt
	IntValue uint64

	// ExprLiteralString
	StringValue string

	// ExprFructose: an inline continuation "(params ↦ body)" lifted
	// later into its own anonymous procedure. Params names the
	// binders in left-to-right order; Body is the statement list
	// that becomes that procedure's body.
	Params []string
	Body   []Statement

	// ExprGalactose: a parenthesized nested call "(callee args...)"
	// whose result feeds one operand slot of the enclosing call.
	Callee    *Expression
	Arguments []Expression
}

// StmtKind discriminates the three statement shapes.
type StmtKind int

const (
	StmtClosure StmtKind = iota
	StmtCall
	StmtBlock
)

// Statement is a tagged union over the three statement forms a
// procedure body is built from.
type Statement struct {
	Kind StmtKind
	Pos  Position

	// StmtClosure: "name params... ↦" followed by an indented body,
	// or the trailing bare "(↦)" sugar (spec.md's resolved Open
	// Question: a zero-name, zero-param continuation binding the
	// rest of the enclosing block as its body). Name is empty for
	// the anonymous form.
	Name   string
	Params []string
	Body   []Statement

	// StmtCall: "callee arg1 arg2 ..." — a tail call, since every
	// call in Oluś is a control transfer, never a value-returning
	// expression in its own right.
	Callee    Expression
	Arguments []Expression

	// StmtBlock groups statements introduced by a BlockStart/BlockEnd
	// pair that isn't itself the body of a StmtClosure (currently
	// unused by the parser directly, but kept so a nested indented
	// group has somewhere to live if the grammar grows one).
	Statements []Statement
}

// Program is a parsed compilation unit: a flat list of top-level
// definitions in source order. main is required and looked up by name
// during resolution, not positionally.
type Program struct {
	Definitions []Statement
}
