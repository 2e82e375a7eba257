package parser

// Recursive descent over the token stream. Statements end at end of line,
// which keeps the statement grammar almost lookahead-free: the one real
// decision is "declaration or expression", settled by peeking at the token
// after a leading identifier.

import (
	"strconv"

	"sunscript/source/ast"
	"sunscript/source/err"
	"sunscript/source/lexer"
	"sunscript/source/report"
	"sunscript/source/token"
)

type parser struct {
	toks []token.Token
	pos  int
	rep  *report.Report
}

// Parse turns source text into a Program, throwing parse errors into the
// report as it goes. It always returns a Program; a broken one just has
// fewer declarations in it.
func Parse(source, input string, rep *report.Report) *ast.Program {
	p := &parser{toks: lexer.Tokenize(source, input, rep), rep: rep}
	return p.parseProgram(source)
}

func (p *parser) current() token.Token {
	return p.toks[p.pos]
}

func (p *parser) peek() token.Token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) at(ty token.TokenType) bool {
	return p.current().Type == ty
}

// expect consumes a token of the given type or throws and stays put.
func (p *parser) expect(ty token.TokenType) (token.Token, bool) {
	if p.at(ty) {
		return p.advance(), true
	}
	err.Throw(p.rep, "parse/expect", p.current().Range, string(ty), p.current().Literal)
	return p.current(), false
}

// endOfLine consumes the statement terminator, complaining about anything
// found before it and skipping to the next line so one mistake doesn't
// cascade.
func (p *parser) endOfLine() {
	if !p.at(token.NEWLINE) && !p.at(token.EOF) {
		err.Throw(p.rep, "parse/eol", p.current().Range, p.current().Literal)
		for !p.at(token.NEWLINE) && !p.at(token.EOF) {
			p.advance()
		}
	}
	p.skipNewlines()
}

func (p *parser) skipNewlines() {
	for p.at(token.NEWLINE) {
		p.advance()
	}
}

// ---- Top level ----

func (p *parser) parseProgram(source string) *ast.Program {
	prog := &ast.Program{Source: source}
	p.skipNewlines()
	for !p.at(token.EOF) {
		d := p.parseTopLevel()
		if d != nil {
			prog.Decls = append(prog.Decls, d)
		}
		p.skipNewlines()
	}
	return prog
}

func (p *parser) parseTopLevel() ast.TopLevel {
	switch p.current().Type {
	case token.SCRIPT_NAME:
		start := p.advance()
		name, ok := p.expect(token.IDENT)
		p.endOfLine()
		if !ok {
			return nil
		}
		return &ast.ScriptName{Rng: token.Spanning(start.Range, name.Range), Name: name.Literal}
	case token.SCRIPT_HASH:
		start := p.advance()
		lit, ok := p.expect(token.INT_LIT)
		p.endOfLine()
		if !ok {
			return nil
		}
		v, e := strconv.ParseUint(trimHex(lit.Literal), baseOf(lit.Literal), 32)
		if e != nil {
			err.Throw(p.rep, "lex/number", lit.Range, lit.Literal)
			return nil
		}
		return &ast.ScriptHash{Rng: token.Spanning(start.Range, lit.Range), Hash: uint32(v)}
	case token.USING:
		start := p.advance()
		path, ok := p.expect(token.STRING_LIT)
		p.endOfLine()
		if !ok {
			return nil
		}
		return &ast.Using{Rng: token.Spanning(start.Range, path.Range), Path: path.Literal}
	case token.PROC, token.FUNC:
		return p.parseFuncDecl(ast.DEFINED)
	case token.PROTO:
		p.advance()
		return p.parseFuncDecl(ast.PROTOTYPE)
	case token.NATIVE:
		p.advance()
		return p.parseFuncDecl(ast.NATIVE)
	case token.STRUCT:
		return p.parseStructDecl()
	case token.CONST:
		p.advance()
		d := p.parseDeclaration()
		p.endOfLine()
		if d == nil {
			return nil
		}
		return &ast.ConstDecl{Decl: d}
	case token.GLOBAL:
		return p.parseGlobalBlock()
	case token.IDENT:
		d := p.parseDeclaration()
		p.endOfLine()
		if d == nil {
			return nil
		}
		return &ast.StaticDecl{Decl: d}
	}
	err.Throw(p.rep, "parse/toplevel", p.current().Range, p.current().Literal)
	p.advance()
	p.endOfLine()
	return nil
}

// parseDeclaration parses `type [&] name ([len])* [= init]`.
func (p *parser) parseDeclaration() *ast.Declaration {
	base, ok := p.expect(token.IDENT)
	if !ok {
		return nil
	}
	spec := &ast.TypeSpec{Tok: base, Name: base.Literal}
	if p.at(token.AMPERSAND) {
		p.advance()
		spec.IsRef = true
	}
	name, ok := p.expect(token.IDENT)
	if !ok {
		return nil
	}
	for p.at(token.LBRACK) {
		p.advance()
		length := p.parseExpression(lowest)
		spec.ArrayLens = append(spec.ArrayLens, length)
		if _, ok := p.expect(token.RBRACK); !ok {
			return nil
		}
	}
	d := &ast.Declaration{
		Rng:     token.Spanning(base.Range, name.Range),
		Spec:    spec,
		Name:    name.Literal,
		NameRng: name.Range,
	}
	if p.at(token.ASSIGN) {
		p.advance()
		d.Init = p.parseExpression(lowest)
		if d.Init != nil {
			d.Rng = token.Spanning(d.Rng, d.Init.GetRange())
		}
	}
	return d
}

func (p *parser) parseFuncDecl(kind ast.FuncKind) ast.TopLevel {
	start := p.current()
	isFunc := p.at(token.FUNC)
	if !isFunc && !p.at(token.PROC) {
		err.Throw(p.rep, "parse/expect", p.current().Range, "PROC or FUNC", p.current().Literal)
		p.endOfLine()
		return nil
	}
	p.advance()
	decl := &ast.FuncDecl{Rng: start.Range, Kind: kind}
	if isFunc {
		ret, ok := p.expect(token.IDENT)
		if !ok {
			p.endOfLine()
			return nil
		}
		decl.Return = &ast.TypeSpec{Tok: ret, Name: ret.Literal}
	}
	name, ok := p.expect(token.IDENT)
	if !ok {
		p.endOfLine()
		return nil
	}
	decl.Name = name.Literal
	decl.NameRng = name.Range
	if _, ok := p.expect(token.LPAREN); !ok {
		p.endOfLine()
		return nil
	}
	for !p.at(token.RPAREN) && !p.at(token.NEWLINE) && !p.at(token.EOF) {
		param := p.parseDeclaration()
		if param == nil {
			break
		}
		decl.Params = append(decl.Params, param)
		if p.at(token.COMMA) {
			p.advance()
		} else {
			break
		}
	}
	rparen, _ := p.expect(token.RPAREN)
	decl.Rng = token.Spanning(decl.Rng, rparen.Range)
	if kind == ast.NATIVE && p.at(token.ASSIGN) {
		p.advance()
		if lit, ok := p.expect(token.INT_LIT); ok {
			v, e := strconv.ParseUint(trimHex(lit.Literal), baseOf(lit.Literal), 64)
			if e != nil {
				err.Throw(p.rep, "lex/number", lit.Range, lit.Literal)
			} else {
				decl.Hash = v
			}
		}
	}
	p.endOfLine()
	if kind != ast.DEFINED {
		return decl
	}
	end := token.ENDPROC
	if isFunc {
		end = token.ENDFUNC
	}
	decl.Body = p.parseBlock(token.TokenType(end))
	p.expect(token.TokenType(end))
	p.endOfLine()
	return decl
}

func (p *parser) parseStructDecl() ast.TopLevel {
	start := p.advance() // STRUCT
	name, ok := p.expect(token.IDENT)
	if !ok {
		p.endOfLine()
		return nil
	}
	p.endOfLine()
	decl := &ast.StructDecl{Rng: token.Spanning(start.Range, name.Range), Name: name.Literal}
	for !p.at(token.ENDSTRUCT) && !p.at(token.EOF) {
		field := p.parseDeclaration()
		p.endOfLine()
		if field != nil {
			decl.Fields = append(decl.Fields, field)
		}
	}
	p.expect(token.ENDSTRUCT)
	p.endOfLine()
	return decl
}

func (p *parser) parseGlobalBlock() ast.TopLevel {
	start := p.advance() // GLOBAL
	blockLit, ok := p.expect(token.INT_LIT)
	if !ok {
		p.endOfLine()
		return nil
	}
	owner, ok := p.expect(token.IDENT)
	if !ok {
		p.endOfLine()
		return nil
	}
	block, e := strconv.ParseInt(trimHex(blockLit.Literal), baseOf(blockLit.Literal), 32)
	if e != nil {
		err.Throw(p.rep, "lex/number", blockLit.Range, blockLit.Literal)
		block = 0
	}
	p.endOfLine()
	decl := &ast.GlobalBlock{
		Rng:   token.Spanning(start.Range, owner.Range),
		Block: int(block),
		Owner: owner.Literal,
	}
	for !p.at(token.ENDGLOBAL) && !p.at(token.EOF) {
		field := p.parseDeclaration()
		p.endOfLine()
		if field != nil {
			decl.Decls = append(decl.Decls, field)
		}
	}
	p.expect(token.ENDGLOBAL)
	p.endOfLine()
	return decl
}

// ---- Statements ----

// parseBlock parses statements up to (not consuming) any of the given
// terminators.
func (p *parser) parseBlock(terminators ...token.TokenType) ast.Block {
	var block ast.Block
	p.skipNewlines()
	for {
		if p.at(token.EOF) {
			return block
		}
		for _, t := range terminators {
			if p.at(t) {
				return block
			}
		}
		s := p.parseStatement()
		if s != nil {
			block = append(block, s)
		}
		p.skipNewlines()
	}
}

func (p *parser) parseStatement() ast.Statement {
	switch p.current().Type {
	case token.IF:
		return p.parseIf()
	case token.WHILE:
		return p.parseWhile()
	case token.REPEAT:
		return p.parseRepeat()
	case token.SWITCH:
		return p.parseSwitch()
	case token.RETURN:
		start := p.advance()
		s := &ast.Return{Rng: start.Range}
		if !p.at(token.NEWLINE) && !p.at(token.EOF) {
			s.Value = p.parseExpression(lowest)
			if s.Value != nil {
				s.Rng = token.Spanning(s.Rng, s.Value.GetRange())
			}
		}
		p.endOfLine()
		return s
	case token.BREAK:
		start := p.advance()
		p.endOfLine()
		return &ast.Break{Rng: start.Range}
	case token.IDENT:
		// `type name` or `type& name` is a declaration; anything else is an
		// assignment or invocation.
		if p.peek().Type == token.IDENT || p.peek().Type == token.AMPERSAND {
			d := p.parseDeclaration()
			p.endOfLine()
			if d == nil {
				return nil
			}
			return d
		}
		return p.parseSimpleStatement()
	default:
		return p.parseSimpleStatement()
	}
}

func (p *parser) parseSimpleStatement() ast.Statement {
	lhs := p.parseExpression(lowest)
	if lhs == nil {
		p.endOfLine()
		return nil
	}
	switch p.current().Type {
	case token.ASSIGN, token.PLUS_ASSIGN, token.MINUS_ASSIGN, token.MUL_ASSIGN, token.DIV_ASSIGN:
		op := p.advance()
		rhs := p.parseExpression(lowest)
		p.endOfLine()
		if rhs == nil {
			return nil
		}
		return &ast.Assign{
			Rng: token.Spanning(lhs.GetRange(), rhs.GetRange()),
			Op:  op.Type,
			LHS: lhs,
			RHS: rhs,
		}
	}
	p.endOfLine()
	return &ast.ExprStatement{Expr: lhs}
}

func (p *parser) parseIf() ast.Statement {
	start := p.advance() // IF
	cond := p.parseExpression(lowest)
	p.endOfLine()
	s := &ast.If{Rng: start.Range, Cond: cond}
	s.Then = p.parseBlock(token.ELIF, token.ELSE, token.ENDIF)
	for p.at(token.ELIF) {
		elifTok := p.advance()
		elifCond := p.parseExpression(lowest)
		p.endOfLine()
		body := p.parseBlock(token.ELIF, token.ELSE, token.ENDIF)
		s.Elifs = append(s.Elifs, ast.ElifArm{Rng: elifTok.Range, Cond: elifCond, Body: body})
	}
	if p.at(token.ELSE) {
		p.advance()
		p.endOfLine()
		s.Else = p.parseBlock(token.ENDIF)
	}
	p.expect(token.ENDIF)
	p.endOfLine()
	return s
}

func (p *parser) parseWhile() ast.Statement {
	start := p.advance() // WHILE
	cond := p.parseExpression(lowest)
	p.endOfLine()
	s := &ast.While{Rng: start.Range, Cond: cond}
	s.Body = p.parseBlock(token.ENDWHILE)
	p.expect(token.ENDWHILE)
	p.endOfLine()
	return s
}

func (p *parser) parseRepeat() ast.Statement {
	start := p.advance() // REPEAT
	limit := p.parseExpression(lowest)
	counter := p.parseExpression(lowest)
	p.endOfLine()
	s := &ast.Repeat{Rng: start.Range, Limit: limit, Counter: counter}
	s.Body = p.parseBlock(token.ENDREPEAT)
	p.expect(token.ENDREPEAT)
	p.endOfLine()
	return s
}

func (p *parser) parseSwitch() ast.Statement {
	start := p.advance() // SWITCH
	value := p.parseExpression(lowest)
	p.endOfLine()
	s := &ast.Switch{Rng: start.Range, Value: value}
	for {
		switch p.current().Type {
		case token.CASE:
			caseTok := p.advance()
			caseValue := p.parseExpression(lowest)
			p.endOfLine()
			body := p.parseBlock(token.CASE, token.DEFAULT, token.ENDSWITCH)
			s.Cases = append(s.Cases, ast.SwitchCase{Rng: caseTok.Range, Value: caseValue, Body: body})
		case token.DEFAULT:
			p.advance()
			p.endOfLine()
			s.Default = p.parseBlock(token.CASE, token.ENDSWITCH)
		case token.ENDSWITCH, token.EOF:
			p.expect(token.ENDSWITCH)
			p.endOfLine()
			return s
		default:
			err.Throw(p.rep, "parse/expect", p.current().Range, "CASE, DEFAULT or ENDSWITCH", p.current().Literal)
			p.endOfLine()
			if p.at(token.EOF) {
				return s
			}
		}
	}
}

// ---- Expressions ----

// Precedence climbing. The language has no shift operators, so `>>` is
// unambiguously the closer of a vector literal.
const (
	lowest = iota
	logicalOr
	logicalAnd
	comparison
	bitwise
	additive
	multiplicative
)

func precedenceOf(ty token.TokenType) int {
	switch ty {
	case token.OR:
		return logicalOr
	case token.AND:
		return logicalAnd
	case token.EQ, token.NOT_EQ, token.LT, token.GT, token.LE, token.GE:
		return comparison
	case token.AMPERSAND, token.CARET, token.PIPE:
		return bitwise
	case token.PLUS, token.MINUS:
		return additive
	case token.STAR, token.SLASH, token.PERCENT:
		return multiplicative
	}
	return 0
}

func (p *parser) parseExpression(minPrec int) ast.Expression {
	left := p.parseUnary()
	if left == nil {
		return nil
	}
	for {
		prec := precedenceOf(p.current().Type)
		if prec == 0 || prec <= minPrec {
			return left
		}
		op := p.advance()
		right := p.parseExpression(prec)
		if right == nil {
			return left
		}
		left = &ast.Binary{
			Rng:   token.Spanning(left.GetRange(), right.GetRange()),
			Op:    op.Type,
			Left:  left,
			Right: right,
		}
	}
}

func (p *parser) parseUnary() ast.Expression {
	switch p.current().Type {
	case token.NOT:
		op := p.advance()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return &ast.Unary{Rng: token.Spanning(op.Range, operand.GetRange()), Op: token.NOT, Operand: operand}
	case token.MINUS:
		op := p.advance()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return &ast.Unary{Rng: token.Spanning(op.Range, operand.GetRange()), Op: token.MINUS, Operand: operand}
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() ast.Expression {
	e := p.parsePrimary()
	if e == nil {
		return nil
	}
	for {
		switch p.current().Type {
		case token.DOT:
			p.advance()
			field, ok := p.expect(token.IDENT)
			if !ok {
				return e
			}
			e = &ast.Member{
				Rng:      token.Spanning(e.GetRange(), field.Range),
				Base:     e,
				Field:    field.Literal,
				FieldRng: field.Range,
			}
		case token.LBRACK:
			p.advance()
			sub := p.parseExpression(lowest)
			end, _ := p.expect(token.RBRACK)
			e = &ast.Index{Rng: token.Spanning(e.GetRange(), end.Range), Base: e, Sub: sub}
		case token.LPAREN:
			p.advance()
			inv := &ast.Invocation{Callee: e}
			for !p.at(token.RPAREN) && !p.at(token.NEWLINE) && !p.at(token.EOF) {
				arg := p.parseExpression(lowest)
				if arg == nil {
					break
				}
				inv.Args = append(inv.Args, arg)
				if p.at(token.COMMA) {
					p.advance()
				} else {
					break
				}
			}
			end, _ := p.expect(token.RPAREN)
			inv.Rng = token.Spanning(e.GetRange(), end.Range)
			e = inv
		default:
			return e
		}
	}
}

func (p *parser) parsePrimary() ast.Expression {
	tok := p.current()
	switch tok.Type {
	case token.INT_LIT:
		p.advance()
		v, e := strconv.ParseInt(trimHex(tok.Literal), baseOf(tok.Literal), 64)
		if e != nil {
			// Hex literals up to 64 bits are accepted and wrap.
			u, e2 := strconv.ParseUint(trimHex(tok.Literal), baseOf(tok.Literal), 64)
			if e2 != nil {
				err.Throw(p.rep, "lex/number", tok.Range, tok.Literal)
				return &ast.IntLit{Tok: tok}
			}
			v = int64(u)
		}
		return &ast.IntLit{Tok: tok, Value: v}
	case token.FLOAT_LIT:
		p.advance()
		v, e := strconv.ParseFloat(tok.Literal, 32)
		if e != nil {
			err.Throw(p.rep, "lex/number", tok.Range, tok.Literal)
		}
		return &ast.FloatLit{Tok: tok, Value: float32(v)}
	case token.STRING_LIT:
		p.advance()
		return &ast.StringLit{Tok: tok, Value: tok.Literal}
	case token.TRUE:
		p.advance()
		return &ast.BoolLit{Tok: tok, Value: true}
	case token.FALSE:
		p.advance()
		return &ast.BoolLit{Tok: tok, Value: false}
	case token.IDENT:
		p.advance()
		return &ast.Identifier{Tok: tok, Name: tok.Literal}
	case token.LPAREN:
		p.advance()
		inner := p.parseExpression(lowest)
		end, _ := p.expect(token.RPAREN)
		if inner == nil {
			return nil
		}
		return &ast.Paren{Rng: token.Spanning(tok.Range, end.Range), Inner: inner}
	case token.VECOPEN:
		p.advance()
		vec := &ast.Vector{}
		for !p.at(token.VECCLOSE) && !p.at(token.NEWLINE) && !p.at(token.EOF) {
			c := p.parseExpression(lowest)
			if c == nil {
				break
			}
			vec.Components = append(vec.Components, c)
			if p.at(token.COMMA) {
				p.advance()
			} else {
				break
			}
		}
		end, _ := p.expect(token.VECCLOSE)
		vec.Rng = token.Spanning(tok.Range, end.Range)
		return vec
	}
	err.Throw(p.rep, "parse/expr", tok.Range, tok.Literal)
	p.advance()
	return nil
}

func baseOf(lit string) int {
	if len(lit) > 2 && (lit[1] == 'x' || lit[1] == 'X') {
		return 16
	}
	return 10
}

func trimHex(lit string) string {
	if len(lit) > 2 && (lit[1] == 'x' || lit[1] == 'X') {
		return lit[2:]
	}
	return lit
}
