package lexer_test

import (
	"testing"

	"sunscript/source/lexer"
	"sunscript/source/report"
	"sunscript/source/token"
)

func kinds(t *testing.T, input string) []token.TokenType {
	t.Helper()
	rep := report.NewReport()
	toks := lexer.Tokenize("t.sc", input, rep)
	if rep.HasErrors() {
		t.Fatalf("lexing %q failed:\n%s", input, rep.String())
	}
	var out []token.TokenType
	for _, tok := range toks {
		out = append(out, tok.Type)
	}
	return out
}

func TestTokenKinds(t *testing.T) {
	tests := []struct {
		input string
		want  []token.TokenType
	}{
		{"PROC MAIN()", []token.TokenType{token.PROC, token.IDENT, token.LPAREN, token.RPAREN, token.NEWLINE, token.EOF}},
		{"proc main()", []token.TokenType{token.PROC, token.IDENT, token.LPAREN, token.RPAREN, token.NEWLINE, token.EOF}},
		{"x = 0x1F", []token.TokenType{token.IDENT, token.ASSIGN, token.INT_LIT, token.NEWLINE, token.EOF}},
		{"y = 1.25", []token.TokenType{token.IDENT, token.ASSIGN, token.FLOAT_LIT, token.NEWLINE, token.EOF}},
		{"a <> b", []token.TokenType{token.IDENT, token.NOT_EQ, token.IDENT, token.NEWLINE, token.EOF}},
		{"<<1.0, 2.0>>", []token.TokenType{token.VECOPEN, token.FLOAT_LIT, token.COMMA, token.FLOAT_LIT, token.VECCLOSE, token.NEWLINE, token.EOF}},
		{"x += 1", []token.TokenType{token.IDENT, token.PLUS_ASSIGN, token.INT_LIT, token.NEWLINE, token.EOF}},
		{"INT &r", []token.TokenType{token.IDENT, token.AMPERSAND, token.IDENT, token.NEWLINE, token.EOF}},
		{"// only a comment", []token.TokenType{token.NEWLINE, token.EOF}},
		{"TRUE false Not", []token.TokenType{token.TRUE, token.FALSE, token.NOT, token.NEWLINE, token.EOF}},
	}
	for _, test := range tests {
		got := kinds(t, test.input)
		if len(got) != len(test.want) {
			t.Errorf("%q lexed to %v, want %v", test.input, got, test.want)
			continue
		}
		for i := range got {
			if got[i] != test.want[i] {
				t.Errorf("%q token %d is %v, want %v", test.input, i, got[i], test.want[i])
			}
		}
	}
}

func TestKeywordsNormalizeButIdentifiersDoNot(t *testing.T) {
	rep := report.NewReport()
	toks := lexer.Tokenize("t.sc", "endProc MyName", rep)
	if toks[0].Type != token.ENDPROC || toks[0].Literal != "ENDPROC" {
		t.Errorf("keyword not normalized: %v %q", toks[0].Type, toks[0].Literal)
	}
	if toks[1].Literal != "MyName" {
		t.Errorf("identifier spelling was not preserved: %q", toks[1].Literal)
	}
}

func TestStringEscapes(t *testing.T) {
	rep := report.NewReport()
	toks := lexer.Tokenize("t.sc", `s = "a\n\t\"b\""`, rep)
	if rep.HasErrors() {
		t.Fatalf("%s", rep.String())
	}
	if toks[2].Literal != "a\n\t\"b\"" {
		t.Fatalf("escapes came out as %q", toks[2].Literal)
	}
}

func TestSingleQuotedStrings(t *testing.T) {
	rep := report.NewReport()
	toks := lexer.Tokenize("t.sc", "s = 'hello'", rep)
	if toks[2].Type != token.STRING_LIT || toks[2].Literal != "hello" {
		t.Fatalf("single-quoted string lexed as %v %q", toks[2].Type, toks[2].Literal)
	}
}

func TestUnterminatedString(t *testing.T) {
	rep := report.NewReport()
	lexer.Tokenize("t.sc", `s = "oops`, rep)
	if !rep.HasErrors() {
		t.Fatalf("unterminated string did not error")
	}
}

func TestPositions(t *testing.T) {
	rep := report.NewReport()
	toks := lexer.Tokenize("t.sc", "a\n  b", rep)
	if toks[0].Range.Begin.Line != 1 || toks[0].Range.Begin.Col != 1 {
		t.Errorf("first token at %v", toks[0].Range.Begin)
	}
	// toks: a, NEWLINE, b, ...
	if toks[2].Range.Begin.Line != 2 || toks[2].Range.Begin.Col != 3 {
		t.Errorf("b is at %v, want line 2 col 3", toks[2].Range.Begin)
	}
}
