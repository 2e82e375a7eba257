package goldentest_test

import (
	"testing"

	"github.com/nalgeon/be"

	"sunscript/source/goldentest"
)

const sample = `# Some tests

## Test: first

Prose here is ignored.

` + "```scriptlang\nSCRIPT_NAME a\n```\n\n```disassembly\nSCRIPT_NAME a\n```\n" + `
## Test: second

` + "```scriptlang\nSCRIPT_NAME b\n```\n\n```diagnostics\nnothing\n```\n"

func TestExtract(t *testing.T) {
	cases, err := goldentest.Extract(sample)
	be.Err(t, err, nil)
	be.Equal(t, len(cases), 2)
	be.Equal(t, cases[0].Name, "first")
	be.Equal(t, cases[0].Input, "SCRIPT_NAME a\n")
	be.Equal(t, len(cases[0].Assertions), 1)
	be.Equal(t, cases[0].Assertions[0].Type, goldentest.AssertDisassembly)
	be.Equal(t, cases[1].Assertions[0].Type, goldentest.AssertDiagnostics)
}

func TestInputOutsideCaseFails(t *testing.T) {
	_, err := goldentest.Extract("```scriptlang\nX\n```\n")
	be.True(t, err != nil)
}

func TestCaseWithoutAssertionsFails(t *testing.T) {
	_, err := goldentest.Extract("## Test: empty\n\n```scriptlang\nX\n```\n")
	be.True(t, err != nil)
}
