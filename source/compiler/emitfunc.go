package compiler

// Function and statement lowering: prologue and epilogue, control flow with
// synthesized labels, the SWITCH jump table, and calls.

import (
	"strings"

	"sunscript/source/ast"
	"sunscript/source/token"
	"sunscript/source/vm"
)

func entryLabel(fn *Symbol) string {
	return "fn$" + strings.ToUpper(fn.Name)
}

func (e *emitter) function(f *BoundFunction) {
	fn := f.Sym
	fn.Label = entryLabel(fn)

	// MAIN's prologue is stamped with the script's name; everything else
	// carries its own.
	name := fn.Name
	if strings.EqualFold(fn.Name, "MAIN") && e.c.scriptName != "" {
		name = e.c.scriptName
	}
	if len(name) > 0xFF {
		name = name[:0xFF]
	}
	frame := fn.ArgsSize + 2 + fn.LocalsSize
	ins := []byte{byte(vm.ENTER), uint8(fn.ArgsSize)}
	ins = vm.AppendU16(ins, uint16(frame))
	ins = append(ins, uint8(len(name)))
	ins = append(ins, name...)
	e.runStart = -1
	// The label must sit on the ENTER itself, so pad before defining it.
	e.padFor(len(ins))
	e.label(fn.Label)
	e.place(ins)

	epilogue := e.newLabel("ret")
	for _, s := range f.Body {
		e.statement(s, epilogue)
	}
	e.label(epilogue)
	returnSize := 0
	if ret := e.c.ts.Return(fn.Type); ret != NoType {
		returnSize = e.c.ts.SizeOf(ret)
	}
	e.place([]byte{byte(vm.LEAVE), uint8(fn.ArgsSize), uint8(returnSize)})
}

func (e *emitter) statement(s *BoundStmt, epilogue string) {
	switch s.Kind {
	case S_DECL:
		e.declStatement(s)
	case S_ASSIGN:
		e.assignStatement(s)
	case S_IF:
		elseLbl := e.newLabel("else")
		e.branchIfFalse(s.Cond, elseLbl)
		for _, t := range s.Then {
			e.statement(t, epilogue)
		}
		if len(s.Else) > 0 {
			endLbl := e.newLabel("endif")
			e.branch(vm.J, endLbl)
			e.label(elseLbl)
			for _, t := range s.Else {
				e.statement(t, epilogue)
			}
			e.label(endLbl)
		} else {
			e.label(elseLbl)
		}
	case S_WHILE:
		head := e.newLabel("while")
		end := e.newLabel("endwhile")
		e.label(head)
		e.branchIfFalse(s.Cond, end)
		for _, t := range s.Body {
			e.statement(t, epilogue)
		}
		e.branch(vm.J, head)
		e.label(end)
	case S_REPEAT:
		e.repeatStatement(s, epilogue)
	case S_SWITCH:
		e.switchStatement(s, epilogue)
	case S_RETURN:
		if s.Value != nil {
			e.rvalue(s.Value)
		}
		e.branch(vm.J, epilogue)
	case S_BREAK:
		if end, ok := e.switchEnds.Peek(); ok {
			e.branch(vm.J, end)
		}
	case S_EXPR:
		e.rvalue(s.Value)
		if s.Value.Type != NoType {
			for i := e.c.ts.SizeOf(e.c.ts.ValueType(s.Value.Type)); i > 0; i-- {
				e.op(vm.DROP)
			}
		}
	}
}

func (e *emitter) declStatement(s *BoundStmt) {
	if s.Init == nil {
		// Locals with array shape still need their length headers.
		e.initLocalCells(s.Sym.Slot, s.Sym.Type)
		return
	}
	c := e.c
	if c.ts.Kind(s.Sym.Type) == REF {
		// Binding a reference: store the target's address.
		if c.ts.Kind(s.Init.Type) == REF {
			e.varOp(s.Init.Sym, modeLoad)
		} else {
			e.address(s.Init)
		}
		e.varOp(s.Sym, modeStore)
		return
	}
	lhs := &BoundExpr{Kind: B_VAR, Type: s.Sym.Type, Rng: s.Rng, Sym: s.Sym}
	e.assignTo(lhs, s.Init)
}

func (e *emitter) assignStatement(s *BoundStmt) {
	e.assignTo(s.LHS, s.RHS)
}

// assignTo stores an rvalue into an lvalue, cell-wise when the type is wider
// than one cell and the source is addressable.
func (e *emitter) assignTo(lhs, rhs *BoundExpr) {
	c := e.c
	size := c.ts.SizeOf(c.ts.ValueType(lhs.Type))
	if size == 1 {
		e.rvalue(rhs)
		e.store(lhs)
		return
	}
	switch rhs.Kind {
	case B_VAR, B_MEMBER, B_INDEX:
		for i := 0; i < size; i++ {
			e.address(rhs)
			e.offsetOp(i, modeLoad)
			e.address(lhs)
			e.offsetOp(i, modeStore)
		}
	default:
		// Calls and vector literals leave their cells on the stack.
		e.rvalue(rhs)
		e.storeSlots(lhs, size)
	}
}

// initLocalCells writes array length headers into freshly declared locals.
func (e *emitter) initLocalCells(slot int, id TypeId) {
	c := e.c
	switch c.ts.Kind(id) {
	case ARRAY:
		n := c.ts.Length(id)
		e.pushInt(int64(n))
		e.localSlotStore(slot)
		elem := c.ts.Elem(id)
		for i := 0; i < n; i++ {
			e.initLocalCells(slot+1+i*c.ts.SizeOf(elem), elem)
		}
	case STRUCT:
		offset := 0
		for _, f := range c.ts.Fields(id) {
			e.initLocalCells(slot+offset, f.Type)
			offset += c.ts.SizeOf(f.Type)
		}
	}
}

func (e *emitter) localSlotStore(slot int) {
	if slot <= 0xFF {
		e.opU8(vm.LOCAL_U8_STORE, uint8(slot))
	} else {
		e.opU16(vm.LOCAL_U16_STORE, uint16(slot))
	}
}

func (e *emitter) repeatStatement(s *BoundStmt, epilogue string) {
	head := e.newLabel("repeat")
	cont := e.newLabel("repeat_next")
	end := e.newLabel("endrepeat")
	// counter := 0
	e.op(vm.PUSH_CONST_0)
	e.store(s.Counter)
	e.label(head)
	e.rvalue(s.Counter)
	e.rvalue(s.Limit)
	e.branch(vm.ILT_JZ, end)
	for _, t := range s.Body {
		e.statement(t, epilogue)
	}
	e.label(cont)
	e.rvalue(s.Counter)
	e.op(vm.PUSH_CONST_1)
	e.op(vm.IADD)
	e.store(s.Counter)
	e.branch(vm.J, head)
	e.label(end)
}

func (e *emitter) switchStatement(s *BoundStmt, epilogue string) {
	end := e.newLabel("endswitch")
	defaultLbl := end
	if s.Default != nil {
		defaultLbl = e.newLabel("default")
	}
	e.switchEnds.Push(end)
	defer e.switchEnds.Pop()

	e.rvalue(s.Value)
	count := len(s.Cases)
	if count > 0xFF {
		count = 0xFF
	}
	caseLabels := make([]string, count)
	ins := []byte{byte(vm.SWITCH), uint8(count)}
	entryFixups := make([]int, count)
	for i := 0; i < count; i++ {
		caseLabels[i] = e.newLabel("case")
		ins = vm.AppendU32(ins, uint32(s.Cases[i].Value))
		entryFixups[i] = len(ins)
		ins = vm.AppendS16(ins, 0)
	}
	e.runStart = -1
	// place may pad, so fixup offsets are measured after placement.
	e.place(ins)
	base := len(e.code) - len(ins)
	for i := 0; i < count; i++ {
		e.fixups = append(e.fixups, fixup{at: base + entryFixups[i], kind: fixRel16, label: caseLabels[i]})
	}
	e.branch(vm.J, defaultLbl)
	for i := 0; i < count; i++ {
		e.label(caseLabels[i])
		for _, t := range s.Cases[i].Body {
			e.statement(t, epilogue)
		}
	}
	if s.Default != nil {
		e.label(defaultLbl)
		for _, t := range s.Default {
			e.statement(t, epilogue)
		}
	}
	e.label(end)
}

// branchIfFalse jumps to the label when the condition does not hold. An
// integer comparison fuses into the compare-and-branch forms; everything
// else evaluates to a BOOL and tests it with JZ.
func (e *emitter) branchIfFalse(cond *BoundExpr, target string) {
	if cond.Kind == B_BINARY && cond.Left != nil && e.c.ts.Kind(e.c.ts.ValueType(cond.Left.Type)) == INT {
		if oc, fused := fusedCompare(cond.Op); fused {
			e.rvalue(cond.Left)
			e.rvalue(cond.Right)
			e.branch(oc, target)
			return
		}
	}
	e.rvalue(cond)
	e.branch(vm.JZ, target)
}

func fusedCompare(op token.TokenType) (vm.Opcode, bool) {
	switch op {
	case token.EQ:
		return vm.IEQ_JZ, true
	case token.NOT_EQ:
		return vm.INE_JZ, true
	case token.GT:
		return vm.IGT_JZ, true
	case token.GE:
		return vm.IGE_JZ, true
	case token.LT:
		return vm.ILT_JZ, true
	case token.LE:
		return vm.ILE_JZ, true
	}
	return vm.NOP, false
}

// ---- Binary expressions and calls ----

func (e *emitter) binary(b *BoundExpr) {
	c := e.c
	switch b.Op {
	case token.AND:
		join := e.newLabel("and")
		e.rvalue(b.Left)
		e.op(vm.DUP)
		e.branch(vm.JZ, join)
		e.op(vm.DROP)
		e.rvalue(b.Right)
		e.label(join)
		return
	case token.OR:
		join := e.newLabel("or")
		e.rvalue(b.Left)
		e.op(vm.DUP)
		e.op(vm.INOT)
		e.branch(vm.JZ, join)
		e.op(vm.DROP)
		e.rvalue(b.Right)
		e.label(join)
		return
	}
	e.rvalue(b.Left)
	e.rvalue(b.Right)
	isFloat := c.ts.Kind(c.ts.ValueType(b.Left.Type)) == FLOAT
	e.op(binaryOpcode(b.Op, isFloat))
}

func binaryOpcode(op token.TokenType, isFloat bool) vm.Opcode {
	if isFloat {
		switch op {
		case token.PLUS:
			return vm.FADD
		case token.MINUS:
			return vm.FSUB
		case token.STAR:
			return vm.FMUL
		case token.SLASH:
			return vm.FDIV
		case token.PERCENT:
			return vm.FMOD
		case token.EQ:
			return vm.FEQ
		case token.NOT_EQ:
			return vm.FNE
		case token.GT:
			return vm.FGT
		case token.GE:
			return vm.FGE
		case token.LT:
			return vm.FLT
		case token.LE:
			return vm.FLE
		}
		return vm.NOP
	}
	switch op {
	case token.PLUS:
		return vm.IADD
	case token.MINUS:
		return vm.ISUB
	case token.STAR:
		return vm.IMUL
	case token.SLASH:
		return vm.IDIV
	case token.PERCENT:
		return vm.IMOD
	case token.AMPERSAND:
		return vm.IAND
	case token.CARET:
		return vm.IXOR
	case token.PIPE:
		return vm.IOR
	case token.EQ:
		return vm.IEQ
	case token.NOT_EQ:
		return vm.INE
	case token.GT:
		return vm.IGT
	case token.GE:
		return vm.IGE
	case token.LT:
		return vm.ILT
	case token.LE:
		return vm.ILE
	}
	return vm.NOP
}

// callExpr pushes arguments and transfers control. A parameter of reference
// type takes the argument's address; everything else goes by value, cell by
// cell for aggregates.
func (e *emitter) callExpr(b *BoundExpr) {
	c := e.c
	params := c.ts.Params(b.Sym.Type)
	argSlots := 0
	for i, arg := range b.Args {
		if i < len(params) && c.ts.Kind(params[i].Type) == REF {
			// The callee wants an address. A reference argument forwards the
			// address it already holds; anything else is taken by address.
			if c.ts.Kind(arg.Type) == REF && arg.Kind == B_VAR {
				e.varOp(arg.Sym, modeLoad)
			} else {
				e.address(arg)
			}
			argSlots++
			continue
		}
		e.rvalue(arg)
		if arg.Type != NoType {
			argSlots += c.ts.SizeOf(c.ts.ValueType(arg.Type))
		}
	}
	if b.Sym.FunKind == ast.NATIVE {
		returnSlots := 0
		if ret := c.ts.Return(b.Sym.Type); ret != NoType {
			returnSlots = c.ts.SizeOf(ret)
		}
		index := e.nativeImport(b.Sym.Hash)
		e.runStart = -1
		ins := []byte{byte(vm.NATIVE), uint8(argSlots<<2 | returnSlots)}
		ins = vm.AppendU16(ins, uint16(index))
		e.place(ins)
		return
	}
	e.call(entryLabel(b.Sym))
}

// nativeImport interns a hash in the import table, first come first placed.
func (e *emitter) nativeImport(hash uint64) int {
	if i, ok := e.nativeIndex[hash]; ok {
		return i
	}
	i := len(e.natives)
	e.natives = append(e.natives, hash)
	e.nativeIndex[hash] = i
	return i
}
