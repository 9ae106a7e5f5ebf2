package main

// Parser turns a flat Token stream into a Program, then desugars the
// "rest-of-block is a continuation" sugar (spec.md's resolved Open
// Question: a trailing parenthesized "(params ↦)" call argument lifts
// every statement that follows it in the same block into that
// argument's body), grounded in
// original_source/parser/src/parse.rs::parse_paren and
// Statement::Closure(vec![], right).
type Parser struct {
	toks []Token
	pos  int
}

// NewParser wraps a token stream produced by Lexer.Tokenize.
func NewParser(toks []Token) *Parser {
	return &Parser{toks: toks}
}

func (p *Parser) peek() Token {
	return p.toks[p.pos]
}

func (p *Parser) peekAt(offset int) Token {
	i := p.pos + offset
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1] // EOF sentinel
	}
	return p.toks[i]
}

func (p *Parser) advance() Token {
	t := p.toks[p.pos]
	if t.Kind != TokenEOF {
		p.pos++
	}
	return t
}

func (p *Parser) expect(kind TokenKind) (Token, error) {
	t := p.peek()
	if t.Kind != kind {
		return Token{}, &ParseError{Pos: t.Pos, Message: "expected " + kind.String() + ", found " + t.Kind.String()}
	}
	return p.advance(), nil
}

// ParseProgram parses every top-level definition and applies the
// rest-of-block desugaring to each procedure body.
func (p *Parser) ParseProgram() (*Program, error) {
	var defs []Statement
	for p.peek().Kind != TokenEOF {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		defs = append(defs, stmt)
	}
	if len(defs) == 0 {
		return nil, &ParseError{Pos: p.peek().Pos, Message: "empty program: no top-level definitions"}
	}
	for _, d := range defs {
		if d.Kind != StmtClosure {
			return nil, &ParseError{Pos: d.Pos, Message: "top-level statements must be procedure definitions"}
		}
	}
	defs = desugarBlock(defs)
	return &Program{Definitions: defs}, nil
}

// parseStatement parses one "LineStart ... LineEnd" unit: either a
// named closure definition ("name params... ↦" plus an indented
// body) or a call ("callee arg1 arg2 ...").
func (p *Parser) parseStatement() (Statement, error) {
	if _, err := p.expect(TokenLineStart); err != nil {
		return Statement{}, err
	}
	subject, err := p.expect(TokenIdentifier)
	if err != nil {
		return Statement{}, err
	}

	var tentative []Token
	for p.peek().Kind == TokenIdentifier {
		tentative = append(tentative, p.advance())
	}

	if p.peek().Kind == TokenArrow {
		p.advance()
		if _, err := p.expect(TokenLineEnd); err != nil {
			return Statement{}, err
		}
		if _, err := p.expect(TokenBlockStart); err != nil {
			return Statement{}, err
		}
		body, err := p.parseBlock()
		if err != nil {
			return Statement{}, err
		}
		params := make([]string, len(tentative))
		for i, t := range tentative {
			params[i] = t.Text
		}
		return Statement{Kind: StmtClosure, Pos: subject.Pos, Name: subject.Text, Params: params, Body: body}, nil
	}

	args := make([]Expression, 0, len(tentative))
	for _, t := range tentative {
		args = append(args, Expression{Kind: ExprReference, Name: t.Text, Pos: t.Pos})
	}
	for p.peek().Kind != TokenLineEnd {
		arg, err := p.parseExpression()
		if err != nil {
			return Statement{}, err
		}
		args = append(args, arg)
	}
	if _, err := p.expect(TokenLineEnd); err != nil {
		return Statement{}, err
	}
	return Statement{
		Kind:      StmtCall,
		Pos:       subject.Pos,
		Callee:    Expression{Kind: ExprReference, Name: subject.Text, Pos: subject.Pos},
		Arguments: args,
	}, nil
}

// parseBlock parses statements until a BlockEnd, which it consumes.
func (p *Parser) parseBlock() ([]Statement, error) {
	var stmts []Statement
	for p.peek().Kind != TokenBlockEnd {
		if p.peek().Kind == TokenEOF {
			return nil, &ParseError{Pos: p.peek().Pos, Message: "unexpected end of file inside block"}
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	p.advance() // BlockEnd
	return desugarBlock(stmts), nil
}

// parseExpression parses one call operand: a reference, a literal, or
// a parenthesized Fructose/Galactose form.
func (p *Parser) parseExpression() (Expression, error) {
	t := p.peek()
	switch t.Kind {
	case TokenIdentifier:
		p.advance()
		return Expression{Kind: ExprReference, Name: t.Text, Pos: t.Pos}, nil
	case TokenInteger:
		p.advance()
		return Expression{Kind: ExprLiteralInt, IntValue: t.Int, Pos: t.Pos}, nil
	case TokenString:
		p.advance()
		return Expression{Kind: ExprLiteralString, StringValue: t.Text, Pos: t.Pos}, nil
	case TokenLParen:
		return p.parseParenExpr()
	default:
		return Expression{}, &ParseError{Pos: t.Pos, Message: "expected an operand, found " + t.Kind.String()}
	}
}

// isFructoseHeader reports whether, starting at the current position
// (just past an already-consumed LParen), the token stream reads as
// zero-or-more identifiers directly followed by an arrow and a
// closing paren — the entire content of a Fructose form. It performs
// no mutation; the caller re-scans and consumes on a positive result.
func (p *Parser) isFructoseHeader() bool {
	i := 0
	for p.peekAt(i).Kind == TokenIdentifier {
		i++
	}
	return p.peekAt(i).Kind == TokenArrow && p.peekAt(i+1).Kind == TokenRParen
}

// parseParenExpr parses the content of a parenthesized expression,
// having not yet consumed the opening paren. A Fructose is exactly
// "(" ident* "↦" ")" with nothing between the arrow and the close —
// its Body is always filled in later by desugarBlock, never here.
// Anything else is a Galactose: a nested call "(" callee arg* ")".
func (p *Parser) parseParenExpr() (Expression, error) {
	open, err := p.expect(TokenLParen)
	if err != nil {
		return Expression{}, err
	}

	if p.isFructoseHeader() {
		var params []string
		for p.peek().Kind == TokenIdentifier {
			params = append(params, p.advance().Text)
		}
		if _, err := p.expect(TokenArrow); err != nil {
			return Expression{}, err
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return Expression{}, err
		}
		return Expression{Kind: ExprFructose, Pos: open.Pos, Params: params, Body: nil}, nil
	}

	callee, err := p.parseExpression()
	if err != nil {
		return Expression{}, err
	}
	var args []Expression
	for p.peek().Kind != TokenRParen {
		if p.peek().Kind == TokenEOF || p.peek().Kind == TokenLineEnd {
			return Expression{}, &ParseError{Pos: p.peek().Pos, Message: "unbalanced parentheses"}
		}
		arg, err := p.parseExpression()
		if err != nil {
			return Expression{}, err
		}
		args = append(args, arg)
	}
	p.advance() // RParen
	return Expression{Kind: ExprGalactose, Pos: open.Pos, Callee: &callee, Arguments: args}, nil
}

// desugarBlock lifts every statement following a call whose last
// argument is a bare, body-less Fructose into that Fructose's Body,
// truncating the block at that call. This is the "rest-of-block is a
// continuation" rule (spec.md design notes; original_source's
// Statement::Closure(vec![], right) does the same lift for the empty
// binder case, generalized here to any binder list).
func desugarBlock(stmts []Statement) []Statement {
	for i := range stmts {
		if stmts[i].Kind == StmtClosure {
			stmts[i].Body = desugarBlock(stmts[i].Body)
			continue
		}
		if stmts[i].Kind != StmtCall {
			continue
		}
		for j := range stmts[i].Arguments {
			arg := &stmts[i].Arguments[j]
			if arg.Kind == ExprFructose && arg.Body == nil {
				arg.Body = desugarBlock(append([]Statement(nil), stmts[i+1:]...))
				return stmts[:i+1]
			}
		}
	}
	return stmts
}
