package vm_test

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/nalgeon/be"

	"sunscript/source/compiler"
	"sunscript/source/goldentest"
	"sunscript/source/vm"
)

func TestDisassemblerGoldens(t *testing.T) {
	raw, err := os.ReadFile("testdata/disassembler.md")
	be.Err(t, err, nil)
	cases, err := goldentest.Extract(string(raw))
	be.Err(t, err, nil)
	be.True(t, len(cases) > 0)

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			prog, rep := compiler.Compile("test.sc", c.Input, compiler.Settings{})
			for _, a := range c.Assertions {
				switch a.Type {
				case goldentest.AssertDiagnostics:
					be.Equal(t, strings.TrimRight(rep.String(), "\n"), strings.TrimRight(a.Content, "\n"))
				case goldentest.AssertNatives:
					be.True(t, prog != nil)
					var lines []string
					for _, h := range prog.Natives {
						lines = append(lines, fmt.Sprintf("0x%016X", h))
					}
					be.Equal(t, strings.Join(lines, "\n"), strings.TrimRight(a.Content, "\n"))
				case goldentest.AssertDisassembly:
					if prog == nil {
						t.Fatalf("compile failed:\n%s", rep.String())
					}
					asm, err := vm.Disassemble(prog, nil)
					be.Err(t, err, nil)
					be.Equal(t, strings.TrimRight(asm, "\n"), strings.TrimRight(a.Content, "\n"))
				}
			}
		})
	}
}

// Invariant: disassembling what the compiler produced leaves the program as
// it was, because the disassembler only reads it. This test checks the name,
// the hash, the string pool bytes and the statics image.
func TestDisassemblerPreservesProgram(t *testing.T) {
	src := `
SCRIPT_NAME keep
SCRIPT_HASH 0x0BADF00D
NATIVE PROC PING() = 0x1111111111111111
INT a = 7
INT b = 7
PROC MAIN()
	PING()
ENDPROC
`
	prog, rep := compiler.Compile("test.sc", src, compiler.Settings{})
	if prog == nil {
		t.Fatalf("compile failed:\n%s", rep.String())
	}
	poolBefore := string(prog.Strings.Bytes())
	staticsBefore := append([]uint64(nil), prog.Statics...)

	_, err := vm.Disassemble(prog, nil)
	be.Err(t, err, nil)

	be.Equal(t, prog.Name, "keep")
	be.Equal(t, prog.Hash, uint32(0x0BADF00D))
	be.Equal(t, string(prog.Strings.Bytes()), poolBefore)
	for i := range staticsBefore {
		be.Equal(t, prog.Statics[i], staticsBefore[i])
	}
}

func TestCorruptImageIsFatal(t *testing.T) {
	prog := &vm.Program{
		Name:    "x",
		Statics: []uint64{1 << 40},
		Strings: vm.NewStringPool(),
	}
	_, err := vm.Disassemble(prog, nil)
	be.True(t, err != nil)
}

func TestRunLengthDataDump(t *testing.T) {
	prog := &vm.Program{
		Name:    "x",
		Statics: []uint64{0, 0, 0, 5, 9, 9},
		Strings: vm.NewStringPool(),
	}
	asm, err := vm.Disassemble(prog, nil)
	be.Err(t, err, nil)
	be.True(t, strings.Contains(asm, ".int 3 dup (0)"))
	be.True(t, strings.Contains(asm, ".int 5"))
	be.True(t, strings.Contains(asm, ".int 2 dup (9)"))
}
