package goldentest

// Golden tests driven by Markdown. A test file holds any number of cases,
// each introduced by a heading of the form "Test: <name>", followed by a
// fenced `scriptlang` block with the source and one or more assertion
// blocks: `disassembly` (expected disassembler output), `diagnostics`
// (expected report lines), or `natives` (expected import table). Prose
// between the fences is documentation and ignored by the harness.

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

type AssertionType string

const (
	AssertDisassembly AssertionType = "disassembly"
	AssertDiagnostics AssertionType = "diagnostics"
	AssertNatives     AssertionType = "natives"
)

type Assertion struct {
	Type    AssertionType
	Content string
}

type Case struct {
	Name       string
	Input      string
	Assertions []Assertion
}

// Extract parses a Markdown document into test cases. A scriptlang or
// assertion fence outside a case is an error, as is a case without input or
// without assertions. Fences in any other language are ignored, inside a
// case or outside one.
func Extract(markdown string) ([]Case, error) {
	source := []byte(markdown)
	doc := goldmark.New().Parser().Parse(gmtext.NewReader(source))

	var cases []Case
	var current *Case
	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *ast.Heading:
			heading := textOf(n, source)
			if strings.HasPrefix(heading, "Test: ") {
				if current != nil {
					cases = append(cases, *current)
				}
				current = &Case{Name: strings.TrimPrefix(heading, "Test: ")}
			}
		case *ast.FencedCodeBlock:
			language := string(n.Language(source))
			content := fenceContent(n, source)
			switch {
			case language == "scriptlang":
				if current == nil {
					return ast.WalkStop, fmt.Errorf("scriptlang fence outside any test case")
				}
				current.Input = content
			case language == string(AssertDisassembly),
				language == string(AssertDiagnostics),
				language == string(AssertNatives):
				if current == nil {
					return ast.WalkStop, fmt.Errorf("%s fence outside any test case", language)
				}
				current.Assertions = append(current.Assertions, Assertion{
					Type:    AssertionType(language),
					Content: content,
				})
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	if current != nil {
		cases = append(cases, *current)
	}
	for _, c := range cases {
		if c.Input == "" {
			return nil, fmt.Errorf("test case %q has no scriptlang fence", c.Name)
		}
		if len(c.Assertions) == 0 {
			return nil, fmt.Errorf("test case %q asserts nothing", c.Name)
		}
	}
	return cases, nil
}

func textOf(n ast.Node, source []byte) string {
	var b strings.Builder
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if t, ok := child.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
		}
	}
	return b.String()
}

func fenceContent(n *ast.FencedCodeBlock, source []byte) string {
	var b strings.Builder
	for i := 0; i < n.Lines().Len(); i++ {
		line := n.Lines().At(i)
		b.Write(line.Value(source))
	}
	return b.String()
}
