package compiler

// The second pass: function bodies. Expressions are typed and bound in one
// movement; statements are validated against the statement rules; frame
// slots are handed out as declarations are met. Errors bind to a placeholder
// expression whose type is NoType, and every later check treats NoType as
// "already complained about" so one mistake reads as one diagnostic.

import (
	"sunscript/source/ast"
	"sunscript/source/dtypes"
	"sunscript/source/err"
	"sunscript/source/token"
	"sunscript/source/values"
)

type checker struct {
	c           *Compiler
	u           *unit
	fn          *Symbol
	frameCursor int
	switchDepth int
}

func (c *Compiler) secondPass() []*BoundFunction {
	var out []*BoundFunction
	for _, u := range c.unitOrder {
		for _, fn := range u.funcs {
			out = append(out, c.checkFunction(u, fn))
		}
	}
	return out
}

func (c *Compiler) checkFunction(u *unit, fn *Symbol) *BoundFunction {
	ck := &checker{c: c, u: u, fn: fn}
	u.table.EnterScope()
	defer u.table.ExitScope()

	slot := 0
	for i, p := range c.ts.Params(fn.Type) {
		decl := fn.Decl.Params[i]
		u.table.Add(&Symbol{
			Name:    p.Name,
			Rng:     decl.NameRng,
			Kind:    VARIABLE_SYMBOL,
			VarKind: LOCAL_ARG,
			Type:    p.Type,
			Slot:    slot,
		})
		slot += c.ts.SizeOf(p.Type)
	}
	fn.ArgsSize = slot
	ck.frameCursor = slot + 2 // caller frame link and return address

	body := ck.checkBlock(fn.Decl.Body)
	fn.LocalsSize = ck.frameCursor - fn.ArgsSize - 2

	if c.ts.Return(fn.Type) != NoType {
		if len(body) == 0 || body[len(body)-1].Kind != S_RETURN {
			err.Throw(c.rep, "check/return/missing", fn.Rng, fn.Name, c.ts.String(c.ts.Return(fn.Type)))
		}
	}
	return &BoundFunction{Sym: fn, Body: body}
}

// checkBlock opens a scope for the block's declarations and closes it on
// every way out.
func (ck *checker) checkBlock(block ast.Block) []*BoundStmt {
	ck.u.table.EnterScope()
	defer ck.u.table.ExitScope()
	var out []*BoundStmt
	for _, s := range block {
		if b := ck.checkStatement(s); b != nil {
			out = append(out, b)
		}
	}
	return out
}

func (ck *checker) checkStatement(s ast.Statement) *BoundStmt {
	c := ck.c
	switch s := s.(type) {
	case *ast.Declaration:
		return ck.checkLocalDecl(s)
	case *ast.Assign:
		return ck.checkAssign(s)
	case *ast.If:
		return ck.checkIf(s)
	case *ast.While:
		cond := ck.requireBool(ck.bindExpr(s.Cond))
		return &BoundStmt{Kind: S_WHILE, Rng: s.Rng, Cond: cond, Body: ck.checkBlock(s.Body)}
	case *ast.Repeat:
		return ck.checkRepeat(s)
	case *ast.Switch:
		return ck.checkSwitch(s)
	case *ast.Return:
		return ck.checkReturn(s)
	case *ast.Break:
		if ck.switchDepth == 0 {
			err.Throw(c.rep, "check/break", s.Rng)
			return nil
		}
		return &BoundStmt{Kind: S_BREAK, Rng: s.Rng}
	case *ast.ExprStatement:
		e := ck.bindExpr(s.Expr)
		return &BoundStmt{Kind: S_EXPR, Rng: s.Expr.GetRange(), Value: e}
	}
	return nil
}

func (ck *checker) checkLocalDecl(s *ast.Declaration) *BoundStmt {
	c := ck.c
	id := c.buildTypeSpec(ck.u, s.Spec)
	c.resolveType(ck.u, id, dtypes.Set[TypeId]{})
	sym := &Symbol{
		Name:    s.Name,
		Rng:     s.NameRng,
		Kind:    VARIABLE_SYMBOL,
		VarKind: LOCAL_VAR,
		Type:    id,
		Slot:    ck.frameCursor,
	}
	if ck.u.table.Add(sym) {
		ck.frameCursor += c.ts.SizeOf(id)
	}
	b := &BoundStmt{Kind: S_DECL, Rng: s.Rng, Sym: sym}
	if s.Init != nil {
		init := ck.bindExpr(s.Init)
		b.Init = init
		if c.ts.Kind(id) == REF {
			if !ck.isLvalue(init) && c.ts.Kind(init.Type) != REF {
				err.Throw(c.rep, "check/assign/lvalue", s.Init.GetRange())
			}
		}
		if init.Type != NoType && !c.ts.AssignableFrom(id, init.Type, true) {
			err.Throw(c.rep, "check/decl/init", s.Rng, c.ts.String(id), c.ts.String(init.Type))
		}
	}
	return b
}

func (ck *checker) checkAssign(s *ast.Assign) *BoundStmt {
	c := ck.c
	// Assigning to a constant deserves its own message; by the time the
	// name has bound it is just a literal.
	if ident, isIdent := s.LHS.(*ast.Identifier); isIdent {
		if sym := ck.u.table.Lookup(ident.Name); sym != nil && sym.IsConstant() {
			err.Throw(c.rep, "check/assign/const", s.Rng, ident.Name)
			return nil
		}
	}
	lhs := ck.bindExpr(s.LHS)
	if lhs.Type == NoType {
		ck.bindExpr(s.RHS)
		return nil
	}
	if !ck.isLvalue(lhs) {
		err.Throw(c.rep, "check/assign/lvalue", s.LHS.GetRange())
		return nil
	}
	if c.ts.Kind(lhs.Type) == REF && c.ts.Kind(c.ts.Elem(lhs.Type)) == ANY {
		err.Throw(c.rep, "check/assign/refany", s.LHS.GetRange())
		return nil
	}
	rhs := ck.bindExpr(s.RHS)
	if s.Op != token.ASSIGN {
		op := compoundOp(s.Op)
		rhs = ck.bindBinaryOver(s.Rng, op, lhs, rhs)
	}
	if rhs.Type != NoType && !c.ts.AssignableFrom(lhs.Type, rhs.Type, true) {
		err.Throw(c.rep, "check/assign/type", s.Rng, c.ts.String(lhs.Type), c.ts.String(rhs.Type))
	}
	return &BoundStmt{Kind: S_ASSIGN, Rng: s.Rng, LHS: lhs, RHS: rhs}
}

func compoundOp(op token.TokenType) token.TokenType {
	switch op {
	case token.PLUS_ASSIGN:
		return token.PLUS
	case token.MINUS_ASSIGN:
		return token.MINUS
	case token.MUL_ASSIGN:
		return token.STAR
	case token.DIV_ASSIGN:
		return token.SLASH
	}
	return op
}

func (ck *checker) checkIf(s *ast.If) *BoundStmt {
	cond := ck.requireBool(ck.bindExpr(s.Cond))
	b := &BoundStmt{Kind: S_IF, Rng: s.Rng, Cond: cond, Then: ck.checkBlock(s.Then)}
	// ELIF arms become nested IFs hanging off the ELSE branch.
	tail := b
	for _, arm := range s.Elifs {
		next := &BoundStmt{
			Kind: S_IF,
			Rng:  arm.Rng,
			Cond: ck.requireBool(ck.bindExpr(arm.Cond)),
			Then: ck.checkBlock(arm.Body),
		}
		tail.Else = []*BoundStmt{next}
		tail = next
	}
	if s.Else != nil {
		tail.Else = ck.checkBlock(s.Else)
	}
	return b
}

func (ck *checker) checkRepeat(s *ast.Repeat) *BoundStmt {
	c := ck.c
	limit := ck.bindExpr(s.Limit)
	if limit.Type != NoType && c.ts.Kind(c.ts.ValueType(limit.Type)) != INT {
		err.Throw(c.rep, "check/repeat/int", s.Limit.GetRange(), "limit", c.ts.String(limit.Type))
	}
	counter := ck.bindExpr(s.Counter)
	if counter.Type != NoType {
		if c.ts.Kind(c.ts.ValueType(counter.Type)) != INT {
			err.Throw(c.rep, "check/repeat/int", s.Counter.GetRange(), "counter", c.ts.String(counter.Type))
		}
		if !ck.isLvalue(counter) {
			err.Throw(c.rep, "check/repeat/lvalue", s.Counter.GetRange())
		}
	}
	return &BoundStmt{Kind: S_REPEAT, Rng: s.Rng, Limit: limit, Counter: counter, Body: ck.checkBlock(s.Body)}
}

func (ck *checker) checkSwitch(s *ast.Switch) *BoundStmt {
	c := ck.c
	value := ck.bindExpr(s.Value)
	if value.Type != NoType && c.ts.Kind(c.ts.ValueType(value.Type)) != INT {
		err.Throw(c.rep, "check/switch/int", s.Value.GetRange(), c.ts.String(value.Type))
	}
	b := &BoundStmt{Kind: S_SWITCH, Rng: s.Rng, Value: value}
	ck.switchDepth++
	defer func() { ck.switchDepth-- }()
	seen := dtypes.Set[int64]{}
	for _, cs := range s.Cases {
		cv := ck.bindExpr(cs.Value)
		var n int64
		if cv.Kind == B_LITERAL && cv.Val.T == values.INT {
			n = cv.Val.V.(int64)
			if seen.Contains(n) {
				err.Throw(c.rep, "check/switch/dup", cs.Rng, n)
			}
			seen.Add(n)
		} else if cv.Type != NoType {
			err.Throw(c.rep, "check/switch/case", cs.Value.GetRange())
		}
		b.Cases = append(b.Cases, BoundCase{Value: n, Rng: cs.Rng, Body: ck.checkBlock(cs.Body)})
	}
	if s.Default != nil {
		b.Default = ck.checkBlock(s.Default)
	}
	return b
}

func (ck *checker) checkReturn(s *ast.Return) *BoundStmt {
	c := ck.c
	ret := c.ts.Return(ck.fn.Type)
	b := &BoundStmt{Kind: S_RETURN, Rng: s.Rng}
	if ret == NoType {
		if s.Value != nil {
			err.Throw(c.rep, "check/return/none", s.Rng, ck.fn.Name)
		}
		return b
	}
	if s.Value == nil {
		err.Throw(c.rep, "check/return/missing", s.Rng, ck.fn.Name, c.ts.String(ret))
		return b
	}
	v := ck.bindExpr(s.Value)
	b.Value = v
	if v.Type != NoType && !c.ts.AssignableFrom(ret, v.Type, false) {
		err.Throw(c.rep, "check/return/type", s.Rng, c.ts.String(ret), c.ts.String(v.Type))
	}
	return b
}

// ---- Expressions ----

func (ck *checker) errorExpr(rng token.Range) *BoundExpr {
	return &BoundExpr{Kind: B_LITERAL, Type: NoType, Rng: rng, Val: values.ZERO}
}

func (ck *checker) requireBool(e *BoundExpr) *BoundExpr {
	if e.Type != NoType && ck.c.ts.Kind(ck.c.ts.ValueType(e.Type)) != BOOL {
		err.Throw(ck.c.rep, "check/cond/bool", e.Rng, ck.c.ts.String(e.Type))
	}
	return e
}

func (ck *checker) isLvalue(e *BoundExpr) bool {
	switch e.Kind {
	case B_VAR:
		return e.Sym != nil && e.Sym.Kind == VARIABLE_SYMBOL && !e.Sym.IsConstant()
	case B_MEMBER, B_INDEX:
		return true
	}
	return false
}

func (ck *checker) bindExpr(e ast.Expression) *BoundExpr {
	switch e := e.(type) {
	case *ast.IntLit:
		return &BoundExpr{Kind: B_LITERAL, Type: IntType, Rng: e.Tok.Range, Val: values.MakeInt(e.Value)}
	case *ast.FloatLit:
		return &BoundExpr{Kind: B_LITERAL, Type: FloatType, Rng: e.Tok.Range, Val: values.MakeFloat(e.Value)}
	case *ast.BoolLit:
		return &BoundExpr{Kind: B_LITERAL, Type: BoolType, Rng: e.Tok.Range, Val: values.MakeBool(e.Value)}
	case *ast.StringLit:
		return &BoundExpr{Kind: B_LITERAL, Type: StringType, Rng: e.Tok.Range, Val: values.MakeString(e.Value)}
	case *ast.Paren:
		return ck.bindExpr(e.Inner)
	case *ast.Identifier:
		return ck.bindIdentifier(e)
	case *ast.Member:
		return ck.bindMember(e)
	case *ast.Index:
		return ck.bindIndex(e)
	case *ast.Invocation:
		return ck.bindInvocation(e)
	case *ast.Unary:
		return ck.bindUnary(e)
	case *ast.Binary:
		return ck.bindBinaryOver(e.Rng, e.Op, ck.bindExpr(e.Left), ck.bindExpr(e.Right))
	case *ast.Vector:
		return ck.bindVector(e)
	}
	return ck.errorExpr(e.GetRange())
}

func (ck *checker) bindIdentifier(e *ast.Identifier) *BoundExpr {
	c := ck.c
	sym := ck.u.table.Lookup(e.Name)
	if sym == nil {
		err.Throw(c.rep, "check/ident/unknown", e.Tok.Range, e.Name)
		return ck.errorExpr(e.Tok.Range)
	}
	switch sym.Kind {
	case VARIABLE_SYMBOL:
		if sym.IsConstant() {
			if sym.Folded == nil {
				return ck.errorExpr(e.Tok.Range)
			}
			return &BoundExpr{Kind: B_LITERAL, Type: sym.Type, Rng: e.Tok.Range, Val: sym.Folded[0]}
		}
		return &BoundExpr{Kind: B_VAR, Type: sym.Type, Rng: e.Tok.Range, Sym: sym}
	case FUNCTION_SYMBOL:
		return &BoundExpr{Kind: B_VAR, Type: sym.Type, Rng: e.Tok.Range, Sym: sym}
	}
	err.Throw(c.rep, "check/ident/unknown", e.Tok.Range, e.Name)
	return ck.errorExpr(e.Tok.Range)
}

func (ck *checker) bindMember(e *ast.Member) *BoundExpr {
	c := ck.c
	base := ck.bindExpr(e.Base)
	if base.Type == NoType {
		return ck.errorExpr(e.Rng)
	}
	st := c.ts.ValueType(base.Type)
	if c.ts.Kind(st) != STRUCT {
		err.Throw(c.rep, "check/member/struct", e.Base.GetRange(), c.ts.String(base.Type))
		return ck.errorExpr(e.Rng)
	}
	i, ok := c.ts.FieldIndex(st, e.Field)
	if !ok {
		err.Throw(c.rep, "check/member/unknown", e.FieldRng, c.ts.String(st), e.Field)
		return ck.errorExpr(e.Rng)
	}
	return &BoundExpr{
		Kind:        B_MEMBER,
		Type:        c.ts.Fields(st)[i].Type,
		Rng:         e.Rng,
		Base:        base,
		FieldOffset: c.ts.FieldOffset(st, i),
	}
}

func (ck *checker) bindIndex(e *ast.Index) *BoundExpr {
	c := ck.c
	base := ck.bindExpr(e.Base)
	sub := ck.bindExpr(e.Sub)
	if base.Type == NoType {
		return ck.errorExpr(e.Rng)
	}
	at := c.ts.ValueType(base.Type)
	if c.ts.Kind(at) != ARRAY {
		err.Throw(c.rep, "check/index/array", e.Base.GetRange(), c.ts.String(base.Type))
		return ck.errorExpr(e.Rng)
	}
	if sub.Type != NoType && c.ts.Kind(c.ts.ValueType(sub.Type)) != INT {
		err.Throw(c.rep, "check/index/int", e.Sub.GetRange(), c.ts.String(sub.Type))
	}
	return &BoundExpr{Kind: B_INDEX, Type: c.ts.Elem(at), Rng: e.Rng, Base: base, Sub: sub}
}

func (ck *checker) bindInvocation(e *ast.Invocation) *BoundExpr {
	c := ck.c
	ident, isIdent := e.Callee.(*ast.Identifier)
	if !isIdent {
		err.Throw(c.rep, "check/call/func", e.Callee.GetRange(), "expression")
		return ck.errorExpr(e.Rng)
	}
	sym := ck.u.table.Lookup(ident.Name)
	if sym == nil {
		err.Throw(c.rep, "check/ident/unknown", ident.Tok.Range, ident.Name)
		return ck.errorExpr(e.Rng)
	}
	if sym.Kind != FUNCTION_SYMBOL || sym.FunKind == ast.PROTOTYPE {
		err.Throw(c.rep, "check/call/func", ident.Tok.Range, ident.Name)
		return ck.errorExpr(e.Rng)
	}
	params := c.ts.Params(sym.Type)
	if len(e.Args) != len(params) {
		err.Throw(c.rep, "check/call/arity", e.Rng, sym.Name, len(params), len(e.Args))
	}
	b := &BoundExpr{Kind: B_CALL, Type: c.ts.Return(sym.Type), Rng: e.Rng, Sym: sym}
	for i, a := range e.Args {
		arg := ck.bindExpr(a)
		b.Args = append(b.Args, arg)
		if i >= len(params) || arg.Type == NoType {
			continue
		}
		if !c.ts.AssignableFrom(params[i].Type, arg.Type, true) {
			err.Throw(c.rep, "check/call/arg", a.GetRange(), i+1, sym.Name,
				c.ts.String(params[i].Type), c.ts.String(arg.Type))
			continue
		}
		// A reference parameter needs something with an address behind it.
		if c.ts.Kind(params[i].Type) == REF && c.ts.Kind(arg.Type) != REF && !ck.isLvalue(arg) {
			err.Throw(c.rep, "check/assign/lvalue", a.GetRange())
		}
	}
	return b
}

func (ck *checker) bindUnary(e *ast.Unary) *BoundExpr {
	c := ck.c
	operand := ck.bindExpr(e.Operand)
	t := c.ts.ValueType(operand.Type)
	kind := c.ts.Kind(t)
	switch e.Op {
	case token.NOT:
		if t != NoType && kind != BOOL {
			err.Throw(c.rep, "check/unary/not", e.Rng, c.ts.String(operand.Type))
			return ck.errorExpr(e.Rng)
		}
		return &BoundExpr{Kind: B_UNARY, Type: BoolType, Rng: e.Rng, Op: e.Op, Right: operand}
	case token.MINUS:
		if t != NoType && kind != INT && kind != FLOAT {
			err.Throw(c.rep, "check/unary/neg", e.Rng, c.ts.String(operand.Type))
			return ck.errorExpr(e.Rng)
		}
		// Folding -literal here keeps negative constants out of the code
		// stream as operator applications.
		if operand.Kind == B_LITERAL {
			if v, ok := values.UnaryOp(token.MINUS, operand.Val); ok {
				return &BoundExpr{Kind: B_LITERAL, Type: t, Rng: e.Rng, Val: v}
			}
		}
		return &BoundExpr{Kind: B_UNARY, Type: t, Rng: e.Rng, Op: e.Op, Right: operand}
	}
	return ck.errorExpr(e.Rng)
}

func (ck *checker) bindBinaryOver(rng token.Range, op token.TokenType, left, right *BoundExpr) *BoundExpr {
	c := ck.c
	if left.Type == NoType || right.Type == NoType {
		return ck.errorExpr(rng)
	}
	lk := c.ts.Kind(c.ts.ValueType(left.Type))
	rk := c.ts.Kind(c.ts.ValueType(right.Type))
	result := NoType
	switch op {
	case token.PLUS, token.MINUS, token.STAR, token.SLASH, token.PERCENT:
		if lk == rk && lk == INT {
			result = IntType
		}
		if lk == rk && lk == FLOAT {
			result = FloatType
		}
	case token.AMPERSAND, token.CARET, token.PIPE:
		if lk == INT && rk == INT {
			result = IntType
		} else {
			odd := left.Type
			if lk == INT {
				odd = right.Type
			}
			err.Throw(c.rep, "check/binary/bitwise", rng, string(op), c.ts.String(odd))
			return ck.errorExpr(rng)
		}
	case token.EQ, token.NOT_EQ, token.LT, token.GT, token.LE, token.GE:
		if lk == rk && (lk == INT || lk == FLOAT) {
			result = BoolType
		}
	case token.AND, token.OR:
		if lk == BOOL && rk == BOOL {
			result = BoolType
		} else {
			odd := left.Type
			if lk == BOOL {
				odd = right.Type
			}
			err.Throw(c.rep, "check/logic/bool", rng, string(op), c.ts.String(odd))
			return ck.errorExpr(rng)
		}
	}
	if result == NoType {
		err.Throw(c.rep, "check/binary/operands", rng, string(op), c.ts.String(left.Type), c.ts.String(right.Type))
		return ck.errorExpr(rng)
	}
	return &BoundExpr{Kind: B_BINARY, Type: result, Rng: rng, Op: op, Left: left, Right: right}
}

func (ck *checker) bindVector(e *ast.Vector) *BoundExpr {
	c := ck.c
	b := &BoundExpr{Kind: B_VECTOR, Type: c.vec3, Rng: e.Rng}
	slots := 0
	for _, comp := range e.Components {
		bc := ck.bindExpr(comp)
		b.Args = append(b.Args, bc)
		if bc.Type == NoType {
			continue
		}
		if c.ts.Equal(c.ts.ValueType(bc.Type), c.vec3) {
			slots += 3
			continue
		}
		if !c.ts.AssignableFrom(FloatType, bc.Type, true) {
			err.Throw(c.rep, "check/vector/component", comp.GetRange(), c.ts.String(bc.Type))
			continue
		}
		slots++
	}
	if slots != 3 {
		err.Throw(c.rep, "check/vector/count", e.Rng, slots)
	}
	return b
}

