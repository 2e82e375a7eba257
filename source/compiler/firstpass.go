package compiler

// The first pass walks top-level declarations and registers every name,
// leaving dangling type references as Unresolved placeholders; then
// resolveTypes rewrites the placeholders in place and checks the structural
// invariants that only make sense once the whole unit is known.

import (
	"strings"

	"sunscript/source/ast"
	"sunscript/source/dtypes"
	"sunscript/source/err"
	"sunscript/source/nativedb"
)

func (c *Compiler) firstPass(u *unit) {
	for _, d := range u.prog.Decls {
		switch d := d.(type) {
		case *ast.ScriptName:
			if u.path == c.mainPath {
				c.scriptName = d.Name
			}
		case *ast.ScriptHash:
			if u.path == c.mainPath {
				c.scriptHash = d.Hash
			}
		case *ast.Using:
			// Handled by processUnit before the first pass runs.
		case *ast.StructDecl:
			c.registerStruct(u, d)
		case *ast.FuncDecl:
			c.registerFunction(u, d)
		case *ast.ConstDecl:
			c.registerConst(u, d.Decl)
		case *ast.StaticDecl:
			c.registerStatic(u, d.Decl)
		case *ast.GlobalBlock:
			c.registerGlobalBlock(u, d)
		}
	}
}

// buildTypeSpec makes a type from its source spelling. Base names that the
// table cannot supply yet become Unresolved placeholders; array lengths must
// be positive integer literals.
func (c *Compiler) buildTypeSpec(u *unit, spec *ast.TypeSpec) TypeId {
	var id TypeId
	if sym := u.table.Lookup(spec.Name); sym != nil && sym.Kind == TYPE_SYMBOL {
		id = sym.Type
	} else {
		id = c.ts.NewUnresolved(spec.Name, spec.Tok.Range)
	}
	for i := len(spec.ArrayLens) - 1; i >= 0; i-- {
		length := 0
		if lit, ok := spec.ArrayLens[i].(*ast.IntLit); ok {
			length = int(lit.Value)
		}
		if length < 1 {
			err.Throw(c.rep, "first/array/len", spec.Tok.Range)
			length = 1
		}
		id = c.ts.NewArray(id, length)
	}
	if spec.IsRef {
		id = c.ts.NewRef(id)
	}
	return id
}

func (c *Compiler) registerStruct(u *unit, d *ast.StructDecl) {
	fields := make([]Field, 0, len(d.Fields))
	for _, f := range d.Fields {
		if f.Spec.IsRef {
			err.Throw(c.rep, "first/struct/ref", f.NameRng, f.Name)
			f.Spec.IsRef = false
		}
		fields = append(fields, Field{Name: f.Name, Type: c.buildTypeSpec(u, f.Spec)})
	}
	id := c.ts.NewStruct(d.Name, fields)
	u.table.Add(&Symbol{Name: d.Name, Rng: d.Rng, Kind: TYPE_SYMBOL, Type: id})
}

func (c *Compiler) registerFunction(u *unit, d *ast.FuncDecl) {
	params := make([]Param, 0, len(d.Params))
	for _, p := range d.Params {
		params = append(params, Param{Name: p.Name, Type: c.buildTypeSpec(u, p.Spec)})
	}
	ret := NoType
	if d.Return != nil {
		ret = c.buildTypeSpec(u, d.Return)
	}
	sym := &Symbol{
		Name:    d.Name,
		Rng:     d.NameRng,
		Kind:    FUNCTION_SYMBOL,
		Type:    c.ts.NewFunction(ret, params),
		FunKind: d.Kind,
		Decl:    d,
	}
	if d.Kind == ast.NATIVE {
		sym.Hash = d.Hash
		if sym.Hash == 0 && c.settings.Natives != nil {
			if def, ok := c.settings.Natives.ResolveByName(d.Name); ok {
				sym.Hash = def.Hash
			}
		}
		if sym.Hash == 0 {
			sym.Hash = uint64(nativedb.Joaat(d.Name))
		}
	}
	if !u.table.Add(sym) {
		return
	}
	if d.Kind == ast.DEFINED {
		u.funcs = append(u.funcs, sym)
	}
}

func (c *Compiler) registerConst(u *unit, d *ast.Declaration) {
	sym := &Symbol{
		Name:    d.Name,
		Rng:     d.NameRng,
		Kind:    VARIABLE_SYMBOL,
		VarKind: CONST_VAR,
		Type:    c.buildTypeSpec(u, d.Spec),
		Init:    d.Init,
	}
	if d.Init == nil {
		err.Throw(c.rep, "first/const/init", d.Rng, d.Name)
	}
	if u.table.Add(sym) && d.Init != nil {
		c.constQueue = append(c.constQueue, constItem{sym: sym, unit: u, lastUnresolved: int(^uint(0) >> 1)})
	}
}

func (c *Compiler) registerStatic(u *unit, d *ast.Declaration) {
	if d.Spec.IsRef {
		err.Throw(c.rep, "first/static/ref", d.NameRng, d.Name)
		d.Spec.IsRef = false
	}
	sym := &Symbol{
		Name:    d.Name,
		Rng:     d.NameRng,
		Kind:    VARIABLE_SYMBOL,
		VarKind: STATIC_VAR,
		Type:    c.buildTypeSpec(u, d.Spec),
		Init:    d.Init,
	}
	if !u.table.Add(sym) {
		return
	}
	c.statics = append(c.statics, sym)
	if d.Init != nil {
		c.constQueue = append(c.constQueue, constItem{sym: sym, unit: u, lastUnresolved: int(^uint(0) >> 1)})
	}
}

func (c *Compiler) registerGlobalBlock(u *unit, d *ast.GlobalBlock) {
	owned := u.path == c.mainPath
	if owned && c.haveOwnedGB {
		owned = false
	}
	info := globalBlockInfo{block: d.Block, owned: owned}
	if owned {
		c.haveOwnedGB = true
	}
	for _, g := range d.Decls {
		if g.Spec.IsRef {
			err.Throw(c.rep, "first/global/type", g.NameRng, g.Name, g.Spec.Name+"&")
			g.Spec.IsRef = false
		}
		sym := &Symbol{
			Name:        g.Name,
			Rng:         g.NameRng,
			Kind:        VARIABLE_SYMBOL,
			VarKind:     GLOBAL_VAR,
			GlobalBlock: d.Block,
			Type:        c.buildTypeSpec(u, g.Spec),
			Init:        g.Init,
		}
		if !u.table.Add(sym) {
			continue
		}
		info.syms = append(info.syms, sym)
		if g.Init != nil {
			c.constQueue = append(c.constQueue, constItem{sym: sym, unit: u, lastUnresolved: int(^uint(0) >> 1)})
		}
	}
	c.globalBlocks = append(c.globalBlocks, info)
}

// ---- Resolution ----

// resolveTypes replaces every Unresolved placeholder reachable from the
// unit's symbols. Replacement copies the target's node over the placeholder,
// so every container holding that placeholder's id sees the resolution at
// once; a placeholder may resolve to a type that itself still contains
// placeholders, which later visits clean up.
func (c *Compiler) resolveTypes(u *unit) {
	for _, sym := range u.table.RootSymbols() {
		c.resolveType(u, sym.Type, dtypes.Set[TypeId]{})
		if sym.Kind == TYPE_SYMBOL && c.ts.Kind(sym.Type) == STRUCT {
			c.checkStructCycle(sym)
		}
		c.checkResolvedSymbol(sym)
	}
}

func (c *Compiler) resolveType(u *unit, id TypeId, seen dtypes.Set[TypeId]) {
	if id == NoType || seen.Contains(id) {
		return
	}
	seen.Add(id)
	switch c.ts.Kind(id) {
	case UNRESOLVED:
		name := c.ts.Name(id)
		target := u.table.Lookup(name)
		if target == nil || target.Kind != TYPE_SYMBOL {
			err.Throw(c.rep, "first/type/unknown", c.ts.Range(id), name)
			c.ts.nodes[id] = typeNode{kind: ANY, name: name}
			return
		}
		c.ts.nodes[id] = c.ts.nodes[target.Type]
	case ARRAY:
		c.resolveType(u, c.ts.Elem(id), seen)
	case REF:
		c.resolveType(u, c.ts.Elem(id), seen)
		if c.ts.Kind(c.ts.Elem(id)) == REF {
			err.Throw(c.rep, "first/type/refref", c.ts.Range(id))
			c.ts.SetElem(id, AnyType)
		}
	case STRUCT:
		for _, f := range c.ts.Fields(id) {
			c.resolveType(u, f.Type, seen)
		}
	case FUNCTION:
		for _, p := range c.ts.Params(id) {
			c.resolveType(u, p.Type, seen)
		}
		c.resolveType(u, c.ts.Return(id), seen)
	}
}

// checkStructCycle runs a depth-first search across struct-typed fields
// (arrays included, references excluded) looking for the originating struct.
// An offending field is put back to an unresolved shape so the error doesn't
// cascade into sizes and layouts.
func (c *Compiler) checkStructCycle(sym *Symbol) {
	origin := sym.Type
	for i, f := range c.ts.Fields(origin) {
		if c.reaches(f.Type, origin, dtypes.Set[TypeId]{}) {
			err.Throw(c.rep, "first/struct/circular", sym.Rng, c.ts.Name(origin), f.Name)
			c.ts.SetField(origin, i, c.ts.NewUnresolved(c.ts.Name(origin), sym.Rng))
		}
	}
}

// reaches compares structs by declared name, not structurally: this runs
// while the graph may still be cyclic, where structural comparison would not
// terminate.
func (c *Compiler) reaches(from, target TypeId, seen dtypes.Set[TypeId]) bool {
	if from == NoType || seen.Contains(from) {
		return false
	}
	seen.Add(from)
	switch c.ts.Kind(from) {
	case STRUCT:
		if strings.EqualFold(c.ts.Name(from), c.ts.Name(target)) {
			return true
		}
		for _, f := range c.ts.Fields(from) {
			if c.reaches(f.Type, target, seen) {
				return true
			}
		}
	case ARRAY:
		return c.reaches(c.ts.Elem(from), target, seen)
	}
	return false
}

// checkResolvedSymbol applies the shape rules that need resolved types:
// constants must be basic, globals must not be references or functions, and
// STRING cells in the data images cannot be initialized.
func (c *Compiler) checkResolvedSymbol(sym *Symbol) {
	if sym.Kind != VARIABLE_SYMBOL {
		return
	}
	kind := c.ts.Kind(sym.Type)
	switch sym.VarKind {
	case CONST_VAR:
		if kind != INT && kind != FLOAT && kind != BOOL && kind != STRING {
			err.Throw(c.rep, "first/const/basic", sym.Rng, c.ts.String(sym.Type))
			sym.Type = IntType
		}
	case GLOBAL_VAR:
		if kind == REF || kind == FUNCTION {
			err.Throw(c.rep, "first/global/type", sym.Rng, sym.Name, c.ts.String(sym.Type))
			sym.Type = IntType
		}
		fallthrough
	case STATIC_VAR:
		if kind == STRING && sym.Init != nil {
			err.Throw(c.rep, "first/static/init", sym.Rng, sym.Name)
			sym.Init = nil
		}
	}
}

// assignDataCells lays out the statics image and the owned globals block
// once every unit is resolved and sized.
func (c *Compiler) assignDataCells() {
	cursor := 0
	for _, sym := range c.statics {
		sym.Slot = cursor
		cursor += c.ts.SizeOf(sym.Type)
	}
	c.staticCursor = cursor
	for i := range c.globalBlocks {
		cell := 0
		for _, sym := range c.globalBlocks[i].syms {
			sym.Slot = cell
			cell += c.ts.SizeOf(sym.Type)
		}
	}
}
