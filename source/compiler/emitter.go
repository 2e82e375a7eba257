package compiler

// Lowering the bound tree to bytes. The emitter is one explicit value
// carrying the byte buffer, the label table, the pending fixups, the string
// pool and the native import table; nothing about code generation lives in
// package state. Branch and call targets are symbolic labels until the final
// fixup pass turns them into offsets.

import (
	"strconv"

	"sunscript/source/dtypes"
	"sunscript/source/nativedb"
	"sunscript/source/token"
	"sunscript/source/values"
	"sunscript/source/vm"
)

type fixupKind uint8

const (
	fixRel16 fixupKind = iota // s16, relative to the byte after the operand
	fixAbs24                  // u24 absolute code offset
)

type fixup struct {
	at    int
	kind  fixupKind
	label string
}

type emitter struct {
	c           *Compiler
	code        []byte
	labels      map[string]int
	fixups      []fixup
	pool        *vm.StringPool
	natives     []uint64
	nativeIndex map[uint64]int
	labelSeq    int
	switchEnds  *dtypes.Stack[string]

	// State for fusing adjacent PUSH_CONST_U8s. A label or page padding
	// invalidates the run.
	runStart int // offset of the trailing push run, -1 when invalid
	runLen   int // how many U8 constants the run holds (1 to 3)
}

func (c *Compiler) emit(bound []*BoundFunction) *vm.Program {
	e := &emitter{
		c:           c,
		labels:      map[string]int{},
		pool:        vm.NewStringPool(),
		nativeIndex: map[uint64]int{},
		switchEnds:  dtypes.NewStack[string](),
		runStart:    -1,
	}

	// MAIN goes first so that the entry point is code offset zero.
	main := c.mainFunction()
	ordered := make([]*BoundFunction, 0, len(bound))
	for _, f := range bound {
		if f.Sym == main {
			ordered = append(ordered, f)
		}
	}
	for _, f := range bound {
		if f.Sym != main {
			ordered = append(ordered, f)
		}
	}
	for _, f := range ordered {
		e.function(f)
	}
	e.applyFixups()

	name := c.scriptName
	hash := c.scriptHash
	if hash == 0 && name != "" {
		hash = nativedb.Joaat(name)
	}
	prog := &vm.Program{
		Name:     name,
		Hash:     hash,
		Code:     e.code,
		Strings:  e.pool,
		Natives:  e.natives,
		ArgCount: 0,
	}
	if main != nil {
		prog.ArgCount = main.ArgsSize
	}
	prog.Statics = c.buildStaticsImage(prog.ArgCount)
	prog.GlobalsBlock, prog.Globals = c.buildGlobalsImage()
	return prog
}

// buildStaticsImage lays the statics down cell by cell: folded initializers,
// array length headers, zeroes elsewhere; then the script argument cells on
// the end.
func (c *Compiler) buildStaticsImage(argCount int) []uint64 {
	image := make([]uint64, c.staticCursor+argCount)
	for _, sym := range c.statics {
		c.writeCells(image, sym.Slot, sym)
	}
	return image
}

func (c *Compiler) buildGlobalsImage() (int, []uint64) {
	for _, gb := range c.globalBlocks {
		if !gb.owned {
			continue
		}
		size := 0
		for _, sym := range gb.syms {
			size += c.ts.SizeOf(sym.Type)
		}
		image := make([]uint64, size)
		for _, sym := range gb.syms {
			c.writeCells(image, sym.Slot, sym)
		}
		return gb.block, image
	}
	return 0, nil
}

func (c *Compiler) writeCells(image []uint64, base int, sym *Symbol) {
	c.writeDefaultCells(image, base, sym.Type)
	for i, v := range sym.Folded {
		if v.T == values.STRING {
			continue // STRING cells cannot be initialized; already rejected
		}
		image[base+i] = v.Cell()
	}
}

// writeDefaultCells fills in the length headers that arrays carry even when
// nothing else is initialized.
func (c *Compiler) writeDefaultCells(image []uint64, base int, id TypeId) {
	switch c.ts.Kind(id) {
	case ARRAY:
		n := c.ts.Length(id)
		image[base] = uint64(n)
		elem := c.ts.Elem(id)
		size := c.ts.SizeOf(elem)
		for i := 0; i < n; i++ {
			c.writeDefaultCells(image, base+1+i*size, elem)
		}
	case STRUCT:
		offset := 0
		for _, f := range c.ts.Fields(id) {
			c.writeDefaultCells(image, base+offset, f.Type)
			offset += c.ts.SizeOf(f.Type)
		}
	}
}

// ---- Instruction plumbing ----

// padFor pads with NOP up to the next page boundary when an instruction of
// the given length would straddle it.
func (e *emitter) padFor(length int) {
	rem := vm.PageSize - len(e.code)%vm.PageSize
	if length > rem {
		for i := 0; i < rem; i++ {
			e.code = append(e.code, byte(vm.NOP))
		}
		e.runStart = -1
	}
}

// place appends one whole instruction, padding first so that it cannot
// straddle a page boundary.
func (e *emitter) place(ins []byte) {
	e.padFor(len(ins))
	e.code = append(e.code, ins...)
}

func (e *emitter) op(oc vm.Opcode) {
	e.runStart = -1
	e.place([]byte{byte(oc)})
}

func (e *emitter) opU8(oc vm.Opcode, v uint8) {
	e.runStart = -1
	e.place([]byte{byte(oc), v})
}

func (e *emitter) opU16(oc vm.Opcode, v uint16) {
	e.runStart = -1
	e.place(vm.AppendU16([]byte{byte(oc)}, v))
}

func (e *emitter) opU24(oc vm.Opcode, v uint32) {
	e.runStart = -1
	e.place(vm.AppendU24([]byte{byte(oc)}, v))
}

func (e *emitter) opS16(oc vm.Opcode, v int16) {
	e.runStart = -1
	e.place(vm.AppendS16([]byte{byte(oc)}, v))
}

func (e *emitter) label(name string) {
	e.labels[name] = len(e.code)
	e.runStart = -1
}

func (e *emitter) newLabel(stem string) string {
	e.labelSeq++
	return stem + "_" + strconv.Itoa(e.labelSeq)
}

// branch emits a branch with a pending 16-bit relative fixup.
func (e *emitter) branch(oc vm.Opcode, target string) {
	e.runStart = -1
	e.place([]byte{byte(oc), 0, 0})
	e.fixups = append(e.fixups, fixup{at: len(e.code) - 2, kind: fixRel16, label: target})
}

func (e *emitter) call(target string) {
	e.runStart = -1
	e.place([]byte{byte(vm.CALL), 0, 0, 0})
	e.fixups = append(e.fixups, fixup{at: len(e.code) - 3, kind: fixAbs24, label: target})
}

func (e *emitter) applyFixups() {
	for _, f := range e.fixups {
		target := e.labels[f.label]
		switch f.kind {
		case fixRel16:
			vm.PutS16(e.code, f.at, int16(target-(f.at+2)))
		case fixAbs24:
			vm.PutU24(e.code, f.at, uint32(target))
		}
	}
}

// ---- Constants ----

// pushInt picks the narrowest push form. Two or three adjacent byte-sized
// pushes fuse into the U8_U8 and U8_U8_U8 forms.
func (e *emitter) pushInt(v int64) {
	switch {
	case v >= 0 && v <= 7:
		e.op(vm.PUSH_CONST_0 + vm.Opcode(v))
	case v >= 0 && v <= 0xFF:
		e.pushByte(uint8(v))
	case v >= -0x8000 && v <= 0x7FFF:
		e.opS16(vm.PUSH_CONST_S16, int16(v))
	case v >= 0 && v <= 0xFFFFFF:
		e.opU24(vm.PUSH_CONST_U24, uint32(v))
	default:
		e.runStart = -1
		e.place(vm.AppendU32([]byte{byte(vm.PUSH_CONST_U32)}, uint32(v)))
	}
}

func (e *emitter) pushByte(v uint8) {
	if e.runStart >= 0 && e.runLen < 3 {
		// The run must stay inside one page after growing by a byte.
		grown := len(e.code) - e.runStart + 1
		if e.runStart%vm.PageSize+grown <= vm.PageSize {
			if e.runLen == 1 {
				e.code[e.runStart] = byte(vm.PUSH_CONST_U8_U8)
			} else {
				e.code[e.runStart] = byte(vm.PUSH_CONST_U8_U8_U8)
			}
			e.code = append(e.code, v)
			e.runLen++
			return
		}
	}
	e.place([]byte{byte(vm.PUSH_CONST_U8), v})
	e.runStart = len(e.code) - 2
	e.runLen = 1
}

func (e *emitter) pushFloat(v float32) {
	e.runStart = -1
	e.place(vm.AppendF32([]byte{byte(vm.PUSH_CONST_F)}, v))
}

func (e *emitter) pushValue(v values.Value) {
	switch v.T {
	case values.INT:
		e.pushInt(v.V.(int64))
	case values.FLOAT:
		e.pushFloat(v.V.(float32))
	case values.BOOL:
		if v.V.(bool) {
			e.op(vm.PUSH_CONST_1)
		} else {
			e.op(vm.PUSH_CONST_0)
		}
	case values.STRING:
		e.pushInt(int64(e.pool.Intern(v.V.(string))))
		e.op(vm.STRING)
	default:
		e.op(vm.PUSH_CONST_0)
	}
}

// ---- Addressing ----

// varOp picks the width variant for a frame, static, or global cell and the
// plain/LOAD/STORE form. mode 0 pushes the address, 1 loads, 2 stores.
func (e *emitter) varOp(sym *Symbol, mode int) {
	switch sym.VarKind {
	case LOCAL_VAR, LOCAL_ARG:
		if sym.Slot <= 0xFF {
			e.opU8(vm.LOCAL_U8+vm.Opcode(mode), uint8(sym.Slot))
		} else {
			e.opU16(vm.LOCAL_U16+vm.Opcode(mode), uint16(sym.Slot))
		}
	case STATIC_VAR:
		if sym.Slot <= 0xFF {
			e.opU8(vm.STATIC_U8+vm.Opcode(mode), uint8(sym.Slot))
		} else {
			e.opU16(vm.STATIC_U16+vm.Opcode(mode), uint16(sym.Slot))
		}
	case GLOBAL_VAR:
		addr := vm.GlobalAddress(sym.GlobalBlock, sym.Slot)
		if addr <= 0xFFFF {
			e.opU16(vm.GLOBAL_U16+vm.Opcode(mode), uint16(addr))
		} else {
			e.opU24(vm.GLOBAL_U24+vm.Opcode(mode), addr)
		}
	}
}

const (
	modeAddr = iota
	modeLoad
	modeStore
)

// address pushes the address of an lvalue. A reference variable's cell holds
// its target's address, so addressing through one is a load.
func (e *emitter) address(b *BoundExpr) {
	switch b.Kind {
	case B_VAR:
		if e.c.ts.Kind(b.Type) == REF {
			e.varOp(b.Sym, modeLoad)
			return
		}
		e.varOp(b.Sym, modeAddr)
	case B_MEMBER:
		e.address(b.Base)
		e.offsetOp(b.FieldOffset, modeAddr)
	case B_INDEX:
		e.rvalue(b.Sub)
		e.address(b.Base)
		e.arrayOp(b, modeAddr)
	}
}

func (e *emitter) offsetOp(offset, mode int) {
	if offset <= 0xFF {
		e.opU8(vm.IOFFSET_U8+vm.Opcode(mode), uint8(offset))
	} else {
		e.opS16(vm.IOFFSET_S16+vm.Opcode(mode), int16(offset))
	}
}

func (e *emitter) arrayOp(b *BoundExpr, mode int) {
	size := e.c.ts.SizeOf(b.Type)
	if size <= 0xFF {
		e.opU8(vm.ARRAY_U8+vm.Opcode(mode), uint8(size))
	} else {
		e.opU16(vm.ARRAY_U16+vm.Opcode(mode), uint16(size))
	}
}

// ---- Rvalues ----

func (e *emitter) rvalue(b *BoundExpr) {
	c := e.c
	switch b.Kind {
	case B_LITERAL:
		e.pushValue(b.Val)
	case B_VAR:
		size := c.ts.SizeOf(c.ts.ValueType(b.Type))
		if size > 1 {
			e.loadSlots(b, size)
			return
		}
		e.varOp(b.Sym, modeLoad)
		if c.ts.Kind(b.Type) == REF {
			e.op(vm.LOAD) // the cell held the target's address
		}
	case B_MEMBER:
		size := c.ts.SizeOf(b.Type)
		if size == 1 {
			e.address(b.Base)
			e.offsetOp(b.FieldOffset, modeLoad)
			return
		}
		e.loadSlots(b, size)
	case B_INDEX:
		size := c.ts.SizeOf(b.Type)
		if size == 1 {
			e.rvalue(b.Sub)
			e.address(b.Base)
			e.arrayOp(b, modeLoad)
			return
		}
		e.loadSlots(b, size)
	case B_CALL:
		e.callExpr(b)
	case B_UNARY:
		e.rvalue(b.Right)
		switch {
		case b.Op == token.NOT:
			e.op(vm.INOT)
		case c.ts.Kind(c.ts.ValueType(b.Type)) == FLOAT:
			e.op(vm.FNEG)
		default:
			e.op(vm.INEG)
		}
	case B_BINARY:
		e.binary(b)
	case B_VECTOR:
		for _, comp := range b.Args {
			e.rvalue(comp)
		}
	}
}

// loadSlots pushes an aggregate lvalue cell by cell. The address is
// recomputed per cell; the language has no way to observe the difference.
func (e *emitter) loadSlots(b *BoundExpr, size int) {
	for i := 0; i < size; i++ {
		e.address(b)
		e.offsetOp(i, modeLoad)
	}
}

// storeSlots pops size cells pushed in slot order into the lvalue.
func (e *emitter) storeSlots(b *BoundExpr, size int) {
	for i := size - 1; i >= 0; i-- {
		e.address(b)
		e.offsetOp(i, modeStore)
	}
}

// store pops the top of the stack into a scalar lvalue.
func (e *emitter) store(b *BoundExpr) {
	switch b.Kind {
	case B_VAR:
		if e.c.ts.Kind(b.Type) == REF {
			e.varOp(b.Sym, modeLoad)
			e.op(vm.STORE)
			return
		}
		e.varOp(b.Sym, modeStore)
	case B_MEMBER:
		e.address(b.Base)
		e.offsetOp(b.FieldOffset, modeStore)
	case B_INDEX:
		e.rvalue(b.Sub)
		e.address(b.Base)
		e.arrayOp(b, modeStore)
	}
}

