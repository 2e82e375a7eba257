package compiler

// Constant folding. CONST declarations (and the initializers of statics and
// globals, which must also reduce to cells) sit on a work queue; each visit
// either reduces the initializer to a value or measures how many constants
// it still depends on. An item whose dependency count stops shrinking is
// circular.

import (
	"sunscript/source/ast"
	"sunscript/source/err"
	"sunscript/source/token"
	"sunscript/source/values"
)

type constItem struct {
	sym            *Symbol
	unit           *unit
	lastUnresolved int
}

// foldConstants drains the queue to fixed point for one unit's worth of
// items. Termination: every pass over an item either folds it, strictly
// shrinks its dependency count, or condemns it.
func (c *Compiler) foldConstants(u *unit) {
	queue := c.constQueue
	c.constQueue = nil
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if item.unit != u {
			// Belongs to a unit still being processed further up the stack.
			c.constQueue = append(c.constQueue, item)
			continue
		}
		if item.sym.Init == nil {
			// The initializer was rejected during resolution.
			continue
		}
		cells, unresolved, ok := c.foldInitializer(item.unit, item.sym)
		if unresolved == 0 {
			if ok {
				item.sym.Folded = cells
				c.checkFoldedType(item.sym)
			} else {
				// The error is already in the report; park a zero so the
				// item can't come around again.
				item.sym.Folded = []values.Value{values.ZERO}
			}
			continue
		}
		if unresolved < item.lastUnresolved {
			item.lastUnresolved = unresolved
			queue = append(queue, item)
			continue
		}
		err.Throw(c.rep, "first/const/circular", item.sym.Rng, item.sym.Name)
		item.sym.Folded = []values.Value{values.ZERO}
	}
}

// foldInitializer reduces a symbol's initializer. Vector literals are
// allowed for statics and globals (they fill three cells); everything else
// must be a scalar constant expression.
func (c *Compiler) foldInitializer(owner *unit, sym *Symbol) ([]values.Value, int, bool) {
	if vec, isVec := sym.Init.(*ast.Vector); isVec && sym.VarKind != CONST_VAR {
		var cells []values.Value
		unresolved := 0
		for _, comp := range vec.Components {
			v, u, ok := c.evalConst(owner, sym, comp)
			unresolved += u
			if u > 0 {
				continue
			}
			if !ok {
				return nil, 0, false
			}
			if v.T != values.FLOAT {
				err.Throw(c.rep, "check/vector/component", comp.GetRange(), c.typeNameOfValue(v))
				return nil, 0, false
			}
			cells = append(cells, v)
		}
		if unresolved > 0 {
			return nil, unresolved, false
		}
		if len(cells) != 3 {
			err.Throw(c.rep, "check/vector/count", vec.Rng, len(cells))
			return nil, 0, false
		}
		return cells, 0, true
	}
	v, unresolved, ok := c.evalConst(owner, sym, sym.Init)
	if unresolved > 0 {
		return nil, unresolved, false
	}
	if !ok {
		return nil, 0, false
	}
	return []values.Value{v}, 0, true
}

// evalConst is the small tree interpreter of §constant-expressions: literals,
// named constants, parentheses, unary and binary operators. Anything else is
// not a constant expression. The int returned is the number of constants the
// expression depends on that have not folded yet.
func (c *Compiler) evalConst(u *unit, owner *Symbol, e ast.Expression) (values.Value, int, bool) {
	switch e := e.(type) {
	case *ast.IntLit:
		return values.MakeInt(e.Value), 0, true
	case *ast.FloatLit:
		return values.MakeFloat(e.Value), 0, true
	case *ast.BoolLit:
		return values.MakeBool(e.Value), 0, true
	case *ast.StringLit:
		return values.MakeString(e.Value), 0, true
	case *ast.Paren:
		return c.evalConst(u, owner, e.Inner)
	case *ast.Identifier:
		sym := u.table.Lookup(e.Name)
		if sym == nil {
			err.Throw(c.rep, "check/ident/unknown", e.Tok.Range, e.Name)
			return values.Value{}, 0, false
		}
		if !sym.IsConstant() {
			err.Throw(c.rep, "first/const/nonconst", e.Tok.Range, owner.Name)
			return values.Value{}, 0, false
		}
		if sym.Folded == nil {
			return values.Value{}, 1, false
		}
		return sym.Folded[0], 0, true
	case *ast.Unary:
		v, unresolved, ok := c.evalConst(u, owner, e.Operand)
		if unresolved > 0 || !ok {
			return values.Value{}, unresolved, false
		}
		r, ok := values.UnaryOp(e.Op, v)
		if !ok {
			err.Throw(c.rep, "check/unary/neg", e.Rng, c.typeNameOfValue(v))
			return values.Value{}, 0, false
		}
		return r, 0, true
	case *ast.Binary:
		l, lu, lok := c.evalConst(u, owner, e.Left)
		r, ru, rok := c.evalConst(u, owner, e.Right)
		if lu+ru > 0 {
			return values.Value{}, lu + ru, false
		}
		if !lok || !rok {
			return values.Value{}, 0, false
		}
		if (e.Op == token.SLASH || e.Op == token.PERCENT) && r.Cell() == 0 {
			err.Throw(c.rep, "first/const/div", e.Rng, owner.Name)
			return values.Value{}, 0, false
		}
		v, ok := values.BinaryOp(e.Op, l, r)
		if !ok {
			err.Throw(c.rep, "check/binary/operands", e.Rng, string(e.Op), c.typeNameOfValue(l), c.typeNameOfValue(r))
			return values.Value{}, 0, false
		}
		return v, 0, true
	}
	err.Throw(c.rep, "first/const/nonconst", e.GetRange(), owner.Name)
	return values.Value{}, 0, false
}

// checkFoldedType makes sure the folded value fits the declared cell type.
func (c *Compiler) checkFoldedType(sym *Symbol) {
	if len(sym.Folded) == 3 {
		if !c.ts.Equal(sym.Type, c.vec3) {
			err.Throw(c.rep, "check/decl/init", sym.Rng, c.ts.String(sym.Type), "VEC3")
			sym.Folded = nil
		}
		return
	}
	var want values.ValueType
	switch c.ts.Kind(c.ts.ValueType(sym.Type)) {
	case INT:
		want = values.INT
	case FLOAT:
		want = values.FLOAT
	case BOOL:
		want = values.BOOL
	case STRING:
		want = values.STRING
	default:
		err.Throw(c.rep, "check/decl/init", sym.Rng, c.ts.String(sym.Type), c.typeNameOfValue(sym.Folded[0]))
		return
	}
	if sym.Folded[0].T != want {
		err.Throw(c.rep, "check/decl/init", sym.Rng, c.ts.String(sym.Type), c.typeNameOfValue(sym.Folded[0]))
		sym.Folded = []values.Value{values.ZERO}
	}
}

func (c *Compiler) typeNameOfValue(v values.Value) string {
	switch v.T {
	case values.INT:
		return "INT"
	case values.FLOAT:
		return "FLOAT"
	case values.BOOL:
		return "BOOL"
	case values.STRING:
		return "STRING"
	}
	return "<undefined>"
}
