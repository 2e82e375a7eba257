package compiler

// The front half of the pipeline, wired together: parse, first pass over
// declarations, type resolution, constant folding, second pass over bodies,
// then code generation. Every stage appends to one report and carries on, so
// a single run surfaces as many independent mistakes as it can.

import (
	"strings"

	"sunscript/source/ast"
	"sunscript/source/err"
	"sunscript/source/nativedb"
	"sunscript/source/parser"
	"sunscript/source/report"
	"sunscript/source/token"
	"sunscript/source/vm"
)

type Settings struct {
	// Natives resolves native hashes; it may be nil, in which case natives
	// are trusted as declared.
	Natives *nativedb.DB
	// Load supplies the text of a USING file. Nil means USING always fails.
	Load func(path string) (string, error)
}

type unit struct {
	path  string
	prog  *ast.Program
	table *SymbolTable
	funcs []*Symbol // defined functions, in declaration order
}

type globalBlockInfo struct {
	block int
	owned bool
	syms  []*Symbol
}

type Compiler struct {
	settings Settings
	rep      *report.Report
	ts       *TypeStore

	units     map[string]*unit
	unitOrder []*unit
	mainUnit  *unit
	mainPath  string

	scriptName string
	scriptHash uint32

	statics      []*Symbol
	staticCursor int
	globalBlocks []globalBlockInfo
	haveOwnedGB  bool

	vec3       TypeId
	constQueue []constItem
}

// Compile runs the whole pipeline over one translation unit (plus whatever
// it pulls in through USING) and returns the program together with the
// report. The program is nil whenever the report contains errors: the
// emitter refuses to run on a broken tree.
func Compile(source, input string, settings Settings) (*vm.Program, *report.Report) {
	rep := report.NewReport()
	c := &Compiler{
		settings: settings,
		rep:      rep,
		ts:       NewTypeStore(),
		units:    map[string]*unit{},
		vec3:     NoType,
	}
	c.mainPath = source
	c.mainUnit = c.processUnit(source, input)
	c.assignDataCells()
	bound := c.secondPass()
	if rep.HasErrors() {
		return nil, rep
	}
	return c.emit(bound), rep
}

// processUnit parses a unit, processes its USING dependencies depth-first,
// then runs the first pass over it. Each file is processed once; diamonds in
// the USING graph just import the same table twice.
func (c *Compiler) processUnit(path, input string) *unit {
	if u, done := c.units[path]; done {
		return u
	}
	u := &unit{
		path:  path,
		prog:  parser.Parse(path, input, c.rep),
		table: NewSymbolTable(c.rep),
	}
	c.units[path] = u
	c.registerBuiltins(u)
	for _, d := range u.prog.Decls {
		using, ok := d.(*ast.Using)
		if !ok {
			continue
		}
		if c.settings.Load == nil {
			err.Throw(c.rep, "first/using/path", using.Rng, using.Path)
			continue
		}
		text, e := c.settings.Load(using.Path)
		if e != nil {
			err.Throw(c.rep, "first/using/path", using.Rng, using.Path)
			continue
		}
		dep := c.processUnit(using.Path, text)
		u.table.Import(dep.table)
	}
	c.firstPass(u)
	c.resolveTypes(u)
	c.foldConstants(u)
	c.unitOrder = append(c.unitOrder, u)
	return u
}

// registerBuiltins seeds a unit's table with the types every script can
// name. VEC3 is the one built-in aggregate; vector literals have its type.
func (c *Compiler) registerBuiltins(u *unit) {
	if c.vec3 == NoType {
		c.vec3 = c.ts.NewStruct("VEC3", []Field{
			{Name: "x", Type: FloatType},
			{Name: "y", Type: FloatType},
			{Name: "z", Type: FloatType},
		})
	}
	builtins := []struct {
		name string
		id   TypeId
	}{
		{"INT", IntType},
		{"FLOAT", FloatType},
		{"BOOL", BoolType},
		{"STRING", StringType},
		{"ANY", AnyType},
		{"VEC3", c.vec3},
	}
	for _, b := range builtins {
		u.table.Add(&Symbol{Name: b.name, Rng: token.Unknown, Kind: TYPE_SYMBOL, Type: b.id})
	}
}

// mainFunction picks the entry point: the defined function called MAIN in
// the main unit.
func (c *Compiler) mainFunction() *Symbol {
	for _, f := range c.mainUnit.funcs {
		if strings.EqualFold(f.Name, "MAIN") {
			return f
		}
	}
	return nil
}
