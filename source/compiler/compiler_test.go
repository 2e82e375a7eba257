package compiler_test

import (
	"math"
	"strings"
	"testing"

	"sunscript/source/compiler"
	"sunscript/source/nativedb"
	"sunscript/source/report"
	"sunscript/source/vm"
)

func compileOK(t *testing.T, src string) *vm.Program {
	t.Helper()
	prog, rep := compiler.Compile("test.sc", src, compiler.Settings{})
	if rep.HasErrors() {
		t.Fatalf("compile failed:\n%s", rep.String())
	}
	if prog == nil {
		t.Fatalf("no program despite a clean report")
	}
	return prog
}

func compileBroken(t *testing.T, src string) *report.Report {
	t.Helper()
	prog, rep := compiler.Compile("test.sc", src, compiler.Settings{})
	if !rep.HasErrors() {
		t.Fatalf("expected errors, got none")
	}
	if prog != nil {
		t.Fatalf("emitter ran despite errors")
	}
	return rep
}

func TestMinimalScript(t *testing.T) {
	prog := compileOK(t, "SCRIPT_NAME t\nPROC MAIN()\nENDPROC\n")
	want := []byte{
		byte(vm.ENTER), 0, 2, 0, 1, 't',
		byte(vm.LEAVE), 0, 0,
	}
	if len(prog.Code) != len(want) {
		t.Fatalf("code is %v, want %v", prog.Code, want)
	}
	for i := range want {
		if prog.Code[i] != want[i] {
			t.Fatalf("code byte %d is %#x, want %#x", i, prog.Code[i], want[i])
		}
	}
	if prog.Name != "t" {
		t.Errorf("script name is %q", prog.Name)
	}
	if prog.Hash == 0 {
		t.Errorf("script hash was not defaulted")
	}
}

func TestMutualRecursion(t *testing.T) {
	prog := compileOK(t, `
SCRIPT_NAME t
PROC MAIN()
	INT x = A(3)
ENDPROC
FUNC INT A(INT n)
	IF n < 1
		RETURN 0
	ENDIF
	RETURN B(n - 1)
ENDFUNC
FUNC INT B(INT n)
	RETURN A(n)
ENDFUNC
`)
	// Every CALL must land on an ENTER; mutual recursion needs no forward
	// declarations.
	enters := map[int]bool{}
	var calls []int
	for i := 0; i < len(prog.Code); i += vm.InstructionLength(prog.Code, i) {
		switch vm.Opcode(prog.Code[i]) {
		case vm.ENTER:
			enters[i] = true
		case vm.CALL:
			calls = append(calls, int(vm.U24At(prog.Code, i+1)))
		}
	}
	if len(enters) != 3 {
		t.Fatalf("expected 3 functions, found %d", len(enters))
	}
	if len(calls) != 3 {
		t.Fatalf("expected 3 calls, found %d", len(calls))
	}
	for _, target := range calls {
		if !enters[target] {
			t.Errorf("CALL to %d does not hit an ENTER", target)
		}
	}
}

func TestStructVectorGlobals(t *testing.T) {
	prog := compileOK(t, `
SCRIPT_NAME t
STRUCT PT
	FLOAT x
	FLOAT y
	FLOAT z
ENDSTRUCT
GLOBAL 5 t
	PT p = <<1.0, 2.0, 3.0>>
ENDGLOBAL
PROC MAIN()
	FLOAT f = p.y
ENDPROC
`)
	if prog.GlobalsBlock != 5 {
		t.Fatalf("globals block is %d", prog.GlobalsBlock)
	}
	if len(prog.Globals) != 3 {
		t.Fatalf("globals image has %d cells", len(prog.Globals))
	}
	if prog.Globals[1] != uint64(math.Float32bits(2.0)) {
		t.Errorf("p.y cell is %#x, want the bits of 2.0", prog.Globals[1])
	}
	// p.y sits one cell into the struct, so the read goes through offset 1.
	found := false
	for i := 0; i < len(prog.Code); i += vm.InstructionLength(prog.Code, i) {
		if vm.Opcode(prog.Code[i]) == vm.IOFFSET_U8_LOAD && prog.Code[i+1] == 1 {
			found = true
		}
	}
	if !found {
		t.Errorf("no IOFFSET_U8_LOAD 1 in code")
	}
}

func TestCircularStruct(t *testing.T) {
	rep := compileBroken(t, "SCRIPT_NAME t\nSTRUCT A\n\tA b\nENDSTRUCT\nPROC MAIN()\nENDPROC\n")
	count := 0
	for _, e := range rep.All() {
		if e.ErrorId == "first/struct/circular" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one circular-type error, got %d:\n%s", count, rep.String())
	}
}

func TestConstantChain(t *testing.T) {
	prog := compileOK(t, `
SCRIPT_NAME t
CONST INT X = Y + 1
CONST INT Y = 2
INT s = X
PROC MAIN()
ENDPROC
`)
	if prog.Statics[0] != 3 {
		t.Fatalf("X folded to %d, want 3", prog.Statics[0])
	}
}

func TestCircularConstant(t *testing.T) {
	rep := compileBroken(t, `
SCRIPT_NAME t
CONST INT X = Y + 1
CONST INT Y = 2
CONST INT Z = Z + 1
PROC MAIN()
ENDPROC
`)
	var ids []string
	for _, e := range rep.All() {
		ids = append(ids, e.ErrorId)
	}
	if len(ids) != 1 || ids[0] != "first/const/circular" {
		t.Fatalf("want one circular-constant error for Z, got %v", ids)
	}
	if !strings.Contains(rep.All()[0].Message, "Z") {
		t.Errorf("error does not name Z: %s", rep.All()[0].Message)
	}
}

func TestSwitchEncoding(t *testing.T) {
	prog := compileOK(t, `
SCRIPT_NAME t
PROC MAIN()
	INT x = 2
	SWITCH x
	CASE 1
		x = 10
		BREAK
	CASE 2
		x = 20
		BREAK
	CASE 3
		x = 30
		BREAK
	DEFAULT
		x = 0
	ENDSWITCH
ENDPROC
`)
	for i := 0; i < len(prog.Code); i += vm.InstructionLength(prog.Code, i) {
		if vm.Opcode(prog.Code[i]) != vm.SWITCH {
			continue
		}
		if prog.Code[i+1] != 3 {
			t.Fatalf("case count is %d, want 3", prog.Code[i+1])
		}
		if got := vm.InstructionLength(prog.Code, i); got != 2+3*6 {
			t.Fatalf("switch instruction length is %d, want %d", got, 2+3*6)
		}
		next := i + 2 + 3*6
		if vm.Opcode(prog.Code[next]) != vm.J {
			t.Fatalf("switch is not followed by a J to the default")
		}
		// Case values are stored little-endian in declaration order.
		if vm.U32At(prog.Code, i+2) != 1 || vm.U32At(prog.Code, i+8) != 2 || vm.U32At(prog.Code, i+14) != 3 {
			t.Fatalf("case values are wrong")
		}
		return
	}
	t.Fatalf("no SWITCH instruction emitted")
}

func TestFrameLayout(t *testing.T) {
	prog := compileOK(t, `
SCRIPT_NAME t
FUNC INT ADD3(INT a, INT b, INT c)
	INT total = a + b + c
	RETURN total
ENDFUNC
PROC MAIN()
	INT r = ADD3(1, 2, 3)
ENDPROC
`)
	// ADD3's prologue: 3 argument cells, a 2-cell gap, 1 local.
	for i := 0; i < len(prog.Code); i += vm.InstructionLength(prog.Code, i) {
		if vm.Opcode(prog.Code[i]) != vm.ENTER {
			continue
		}
		nameLen := int(prog.Code[i+4])
		name := string(prog.Code[i+5 : i+5+nameLen])
		if name != "ADD3" {
			continue
		}
		if prog.Code[i+1] != 3 {
			t.Errorf("argsSize is %d, want 3", prog.Code[i+1])
		}
		if frame := vm.U16At(prog.Code, i+2); frame != 3+2+1 {
			t.Errorf("frame size is %d, want 6", frame)
		}
		return
	}
	t.Fatalf("no ENTER for ADD3")
}

func TestNativeImportTable(t *testing.T) {
	prog := compileOK(t, `
SCRIPT_NAME t
NATIVE PROC WAIT(INT ms) = 0x4EDE34FBADD967A6
NATIVE FUNC INT GET_GAME_TIMER() = 0x9CD27B0045628463
PROC MAIN()
	WAIT(0)
	INT n = GET_GAME_TIMER()
	WAIT(n)
ENDPROC
`)
	if len(prog.Natives) != 2 {
		t.Fatalf("import table has %d entries, want 2 (deduplicated)", len(prog.Natives))
	}
	if prog.Natives[0] != 0x4EDE34FBADD967A6 {
		t.Errorf("first import is %#x; the table must keep insertion order", prog.Natives[0])
	}
	// NATIVE operands: argCount<<2|returnCount, then the table index.
	var packs []byte
	for i := 0; i < len(prog.Code); i += vm.InstructionLength(prog.Code, i) {
		if vm.Opcode(prog.Code[i]) == vm.NATIVE {
			packs = append(packs, prog.Code[i+1])
		}
	}
	if len(packs) != 3 {
		t.Fatalf("expected 3 NATIVE instructions, got %d", len(packs))
	}
	if packs[0] != 1<<2|0 {
		t.Errorf("WAIT packs to %#x, want %#x", packs[0], 1<<2|0)
	}
	if packs[1] != 0<<2|1 {
		t.Errorf("GET_GAME_TIMER packs to %#x, want %#x", packs[1], 0<<2|1)
	}
}

func TestNativeHashFromDatabase(t *testing.T) {
	db := nativedb.NewInMemory()
	db.Register(nativedb.Def{Hash: 0x4EDE34FBADD967A6, Name: "WAIT", Signature: "PROC WAIT(INT ms)"})
	src := `
SCRIPT_NAME t
NATIVE PROC WAIT(INT ms)
PROC MAIN()
	WAIT(0)
ENDPROC
`
	prog, rep := compiler.Compile("test.sc", src, compiler.Settings{Natives: db})
	if prog == nil {
		t.Fatalf("compile failed:\n%s", rep.String())
	}
	if len(prog.Natives) != 1 || prog.Natives[0] != 0x4EDE34FBADD967A6 {
		t.Fatalf("hash was not taken from the database: %#x", prog.Natives)
	}
}

func TestStringInterning(t *testing.T) {
	prog := compileOK(t, `
SCRIPT_NAME t
NATIVE PROC PRINT(STRING s) = 0x1111111111111111
PROC MAIN()
	PRINT("hello")
	PRINT("world")
	PRINT("hello")
ENDPROC
`)
	if got := len(prog.Strings.All()); got != 2 {
		t.Fatalf("pool has %d strings, want 2", got)
	}
	off, ok := prog.Strings.OffsetOf("world")
	if !ok || off != len("hello")+1 {
		t.Errorf("offset of \"world\" is %d, want %d", off, len("hello")+1)
	}
}

func TestUsingImports(t *testing.T) {
	lib := `
CONST INT LIMIT = 8
STRUCT PAIR
	INT first
	INT second
ENDSTRUCT
`
	settings := compiler.Settings{
		Load: func(path string) (string, error) {
			return lib, nil
		},
	}
	src := `
SCRIPT_NAME t
USING "lib.sch"
PAIR pr
PROC MAIN()
	pr.first = LIMIT
ENDPROC
`
	prog, rep := compiler.Compile("test.sc", src, settings)
	if rep.HasErrors() {
		t.Fatalf("compile failed:\n%s", rep.String())
	}
	if len(prog.Statics) != 2 {
		t.Fatalf("statics image has %d cells, want 2", len(prog.Statics))
	}
}

func TestRepeatLowering(t *testing.T) {
	prog := compileOK(t, `
SCRIPT_NAME t
PROC MAIN()
	INT i
	INT total = 0
	REPEAT 10 i
		total += i
	ENDREPEAT
ENDPROC
`)
	// The loop gate is a fused compare-and-branch on counter < limit.
	found := false
	for i := 0; i < len(prog.Code); i += vm.InstructionLength(prog.Code, i) {
		if vm.Opcode(prog.Code[i]) == vm.ILT_JZ {
			found = true
		}
	}
	if !found {
		t.Errorf("REPEAT did not gate with ILT_JZ")
	}
}

func TestDiagnosticsTable(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"SCRIPT_NAME t\nPROC MAIN()\n\tx = 1\nENDPROC\n", "check/ident/unknown"},
		{"SCRIPT_NAME t\nPROC MAIN()\n\tINT x\n\tINT x\nENDPROC\n", "symtab/dup"},
		{"SCRIPT_NAME t\nPROC MAIN()\n\tINT x = 1.0\nENDPROC\n", "check/decl/init"},
		{"SCRIPT_NAME t\nPROC MAIN()\n\tIF 1\n\tENDIF\nENDPROC\n", "check/cond/bool"},
		{"SCRIPT_NAME t\nSTRUCT S\n\tINT n\nENDSTRUCT\nS pt\nPROC MAIN()\n\tpt.q = 1\nENDPROC\n", "check/member/unknown"},
		{"SCRIPT_NAME t\nPROC P(INT a)\nENDPROC\nPROC MAIN()\n\tP(1, 2)\nENDPROC\n", "check/call/arity"},
		{"SCRIPT_NAME t\nCONST INT K = 1\nPROC MAIN()\n\tK = 2\nENDPROC\n", "check/assign/const"},
		{"SCRIPT_NAME t\nFUNC INT F()\nENDFUNC\nPROC MAIN()\nENDPROC\n", "check/return/missing"},
		{"SCRIPT_NAME t\nPROC MAIN()\n\tSWITCH 1\n\tCASE 1\n\tCASE 1\n\tENDSWITCH\nENDPROC\n", "check/switch/dup"},
		{"SCRIPT_NAME t\nGLOBAL 1 t\n\tSTRING s = \"no\"\nENDGLOBAL\nPROC MAIN()\nENDPROC\n", "first/static/init"},
		{"SCRIPT_NAME t\nCONST VEC3 v = <<1.0,1.0,1.0>>\nPROC MAIN()\nENDPROC\n", "first/const/basic"},
		{"SCRIPT_NAME t\nUSING \"nope.sch\"\nPROC MAIN()\nENDPROC\n", "first/using/path"},
	}
	for _, test := range tests {
		_, rep := compiler.Compile("test.sc", test.src, compiler.Settings{})
		got := false
		for _, e := range rep.All() {
			if e.ErrorId == test.want {
				got = true
			}
		}
		if !got {
			t.Errorf("source %q: wanted %s, report was:\n%s", test.src, test.want, rep.String())
		}
	}
}

func TestErrorsDoNotCascade(t *testing.T) {
	// Two bad statements around a good one: the report should carry one
	// error for each bad statement, and checking should carry on past the
	// first of them.
	_, rep := compiler.Compile("test.sc", `
SCRIPT_NAME t
PROC MAIN()
	mystery = 1
	INT fine = 2
	undeclared_too = fine
ENDPROC
`, compiler.Settings{})
	count := 0
	for _, e := range rep.All() {
		if e.ErrorId == "check/ident/unknown" {
			count++
		}
	}
	if count != 2 {
		t.Fatalf("wanted two independent undeclared-name errors, got %d:\n%s", count, rep.String())
	}
}

func TestPushConstSelection(t *testing.T) {
	prog := compileOK(t, `
SCRIPT_NAME t
PROC MAIN()
	INT a = 5
	INT b = 200
	INT c = 30000
	INT d = 100000
	INT f = 70000000
ENDPROC
`)
	var seen []vm.Opcode
	for i := 0; i < len(prog.Code); i += vm.InstructionLength(prog.Code, i) {
		oc := vm.Opcode(prog.Code[i])
		switch oc {
		case vm.PUSH_CONST_5, vm.PUSH_CONST_U8, vm.PUSH_CONST_S16, vm.PUSH_CONST_U24, vm.PUSH_CONST_U32:
			seen = append(seen, oc)
		}
	}
	want := []vm.Opcode{vm.PUSH_CONST_5, vm.PUSH_CONST_U8, vm.PUSH_CONST_S16, vm.PUSH_CONST_U24, vm.PUSH_CONST_U32}
	if len(seen) != len(want) {
		t.Fatalf("push opcodes %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("push %d is %v, want %v", i, seen[i], want[i])
		}
	}
}
