package parser_test

import (
	"testing"

	"sunscript/source/ast"
	"sunscript/source/parser"
	"sunscript/source/report"
	"sunscript/source/token"
)

func parseOK(t *testing.T, src string) *ast.Program {
	t.Helper()
	rep := report.NewReport()
	prog := parser.Parse("t.sc", src, rep)
	if rep.HasErrors() {
		t.Fatalf("parse failed:\n%s", rep.String())
	}
	return prog
}

func TestTopLevelForms(t *testing.T) {
	prog := parseOK(t, `
SCRIPT_NAME demo
SCRIPT_HASH 0xDEADBEEF
USING "shared.sch"
CONST INT MAX = 10
INT counter
STRUCT POINT
	FLOAT x
	FLOAT y
ENDSTRUCT
GLOBAL 3 demo
	INT g_flag
ENDGLOBAL
NATIVE PROC WAIT(INT ms) = 0x4EDE34FBADD967A6
PROTO FUNC INT HANDLER(INT what)
PROC MAIN()
ENDPROC
FUNC INT TWICE(INT n)
	RETURN n * 2
ENDFUNC
`)
	if len(prog.Decls) != 11 {
		t.Fatalf("parsed %d declarations, want 11", len(prog.Decls))
	}
	if h, ok := prog.Decls[1].(*ast.ScriptHash); !ok || h.Hash != 0xDEADBEEF {
		t.Errorf("script hash parsed wrong: %#v", prog.Decls[1])
	}
	if n, ok := prog.Decls[7].(*ast.FuncDecl); !ok || n.Kind != ast.NATIVE || n.Hash != 0x4EDE34FBADD967A6 {
		t.Errorf("native parsed wrong: %#v", prog.Decls[7])
	}
	if p, ok := prog.Decls[8].(*ast.FuncDecl); !ok || p.Kind != ast.PROTOTYPE || p.Return == nil {
		t.Errorf("prototype parsed wrong: %#v", prog.Decls[8])
	}
}

func TestDeclarators(t *testing.T) {
	prog := parseOK(t, "INT grid[4][8]\nFLOAT &fref\n")
	d := prog.Decls[0].(*ast.StaticDecl).Decl
	if len(d.Spec.ArrayLens) != 2 {
		t.Fatalf("array declarator has %d lengths", len(d.Spec.ArrayLens))
	}
	r := prog.Decls[1].(*ast.StaticDecl).Decl
	if !r.Spec.IsRef || r.Name != "fref" {
		t.Fatalf("reference declarator parsed wrong: %#v", r.Spec)
	}
}

func TestPrecedence(t *testing.T) {
	prog := parseOK(t, "INT x = 1 + 2 * 3\n")
	e := prog.Decls[0].(*ast.StaticDecl).Decl.Init.(*ast.Binary)
	if e.Op != token.PLUS {
		t.Fatalf("top operator is %v, want +", e.Op)
	}
	right := e.Right.(*ast.Binary)
	if right.Op != token.STAR {
		t.Fatalf("* did not bind tighter than +")
	}
}

func TestComparisonBindsLooserThanBitwise(t *testing.T) {
	prog := parseOK(t, "BOOL b = mask & 4 <> 0\n")
	e := prog.Decls[0].(*ast.StaticDecl).Decl.Init.(*ast.Binary)
	if e.Op != token.NOT_EQ {
		t.Fatalf("top operator is %v, want <>", e.Op)
	}
}

func TestStatements(t *testing.T) {
	prog := parseOK(t, `
PROC MAIN()
	INT i
	REPEAT 10 i
		IF i > 5
			BREAK_HERE(i)
		ELIF i > 3
			i = 0
		ELSE
			i += 1
		ENDIF
	ENDREPEAT
	WHILE i < 100
		i = i * 2
	ENDWHILE
	SWITCH i
	CASE 1
		RETURN
	DEFAULT
		i = 0
	ENDSWITCH
ENDPROC
`)
	body := prog.Decls[0].(*ast.FuncDecl).Body
	if len(body) != 4 {
		t.Fatalf("body has %d statements, want 4", len(body))
	}
	rep := body[1].(*ast.Repeat)
	ifStmt := rep.Body[0].(*ast.If)
	if len(ifStmt.Elifs) != 1 || ifStmt.Else == nil {
		t.Fatalf("ELIF/ELSE shape wrong: %#v", ifStmt)
	}
	sw := body[3].(*ast.Switch)
	if len(sw.Cases) != 1 || sw.Default == nil {
		t.Fatalf("switch shape wrong")
	}
}

func TestVectorLiteral(t *testing.T) {
	prog := parseOK(t, "VEC3 v = <<1.0, 2.0, 3.0>>\n")
	vec := prog.Decls[0].(*ast.StaticDecl).Decl.Init.(*ast.Vector)
	if len(vec.Components) != 3 {
		t.Fatalf("vector has %d components", len(vec.Components))
	}
}

func TestVectorConcatenation(t *testing.T) {
	prog := parseOK(t, "PROC MAIN()\n\tVEC3 v = <<heading, GET_POS()>>\nENDPROC\n")
	decl := prog.Decls[0].(*ast.FuncDecl).Body[0].(*ast.Declaration)
	vec := decl.Init.(*ast.Vector)
	if len(vec.Components) != 2 {
		t.Fatalf("vector has %d components, want 2", len(vec.Components))
	}
	if _, ok := vec.Components[1].(*ast.Invocation); !ok {
		t.Fatalf("second component is not an invocation")
	}
}

func TestParserRecovers(t *testing.T) {
	rep := report.NewReport()
	prog := parser.Parse("t.sc", `
PROC MAIN()
	INT x = = 1
	x = 2
ENDPROC
`, rep)
	if !rep.HasErrors() {
		t.Fatalf("malformed statement did not error")
	}
	body := prog.Decls[0].(*ast.FuncDecl).Body
	// The parser resynchronizes at end of line and keeps the next statement.
	if len(body) == 0 {
		t.Fatalf("parser lost the whole body")
	}
	last := body[len(body)-1]
	if _, ok := last.(*ast.Assign); !ok {
		t.Fatalf("statement after the broken one was lost: %#v", last)
	}
}

func TestMemberAndIndexChains(t *testing.T) {
	prog := parseOK(t, "PROC MAIN()\n\tx = things[2].pos.y\nENDPROC\n")
	assign := prog.Decls[0].(*ast.FuncDecl).Body[0].(*ast.Assign)
	outer := assign.RHS.(*ast.Member)
	if outer.Field != "y" {
		t.Fatalf("outer member is %q", outer.Field)
	}
	mid := outer.Base.(*ast.Member)
	if mid.Field != "pos" {
		t.Fatalf("middle member is %q", mid.Field)
	}
	if _, ok := mid.Base.(*ast.Index); !ok {
		t.Fatalf("index is not at the bottom of the chain")
	}
}
