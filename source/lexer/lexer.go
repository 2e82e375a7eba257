package lexer

import (
	"strings"

	"sunscript/source/err"
	"sunscript/source/report"
	"sunscript/source/token"
)

// A lexer turns one source file into tokens. Statements are terminated by
// end of line, so unlike most languages we emit NEWLINE tokens; the parser
// treats runs of them as one terminator.

type lexer struct {
	source string // filename, for diagnostics
	runes  []rune
	pos    int
	line   int
	col    int
	rep    *report.Report
}

func New(source, input string, rep *report.Report) *lexer {
	return &lexer{
		source: source,
		runes:  []rune(input),
		line:   1,
		col:    1,
		rep:    rep,
	}
}

// Tokenize scans the whole input. The stream always ends with a NEWLINE
// followed by EOF so the parser never has to special-case a missing final
// line break.
func Tokenize(source, input string, rep *report.Report) []token.Token {
	l := New(source, input, rep)
	var toks []token.Token
	for {
		t := l.next()
		toks = append(toks, t)
		if t.Type == token.EOF {
			break
		}
	}
	if len(toks) < 2 || toks[len(toks)-2].Type != token.NEWLINE {
		eof := toks[len(toks)-1]
		nl := token.Token{Type: token.NEWLINE, Literal: "\n", Range: eof.Range}
		toks = append(toks[:len(toks)-1], nl, eof)
	}
	return toks
}

func (l *lexer) current() rune {
	if l.pos >= len(l.runes) {
		return 0
	}
	return l.runes[l.pos]
}

func (l *lexer) peek() rune {
	if l.pos+1 >= len(l.runes) {
		return 0
	}
	return l.runes[l.pos+1]
}

func (l *lexer) advance() {
	if l.pos < len(l.runes) {
		if l.runes[l.pos] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.pos++
	}
}

func (l *lexer) here() token.Pos {
	return token.Pos{Line: l.line, Col: l.col}
}

func (l *lexer) rangeFrom(begin token.Pos) token.Range {
	return token.Range{Source: l.source, Begin: begin, End: l.here()}
}

func (l *lexer) make(begin token.Pos, ty token.TokenType, lit string) token.Token {
	return token.Token{Type: ty, Literal: lit, Range: l.rangeFrom(begin)}
}

func (l *lexer) skipBlanks() {
	for {
		c := l.current()
		if c == ' ' || c == '\t' || c == '\r' {
			l.advance()
			continue
		}
		if c == '/' && l.peek() == '/' {
			for l.current() != '\n' && l.current() != 0 {
				l.advance()
			}
			continue
		}
		return
	}
}

func (l *lexer) next() token.Token {
	l.skipBlanks()
	begin := l.here()
	c := l.current()
	switch {
	case c == 0:
		return l.make(begin, token.EOF, "")
	case c == '\n':
		l.advance()
		return l.make(begin, token.NEWLINE, "\n")
	case c == '"' || c == '\'':
		return l.readString(begin, c)
	case isDigit(c):
		return l.readNumber(begin)
	case isLetter(c):
		return l.readWord(begin)
	}
	// Operators and punctuation, longest match first.
	two := string(c)
	if l.peek() != 0 {
		two = string(c) + string(l.peek())
	}
	switch two {
	case "==", "<>", "<=", ">=", "<<", ">>", "+=", "-=", "*=", "/=":
		l.advance()
		l.advance()
		ty := token.TokenType(two)
		if two == "<<" {
			ty = token.VECOPEN
		}
		if two == ">>" {
			ty = token.VECCLOSE
		}
		return l.make(begin, ty, two)
	}
	switch c {
	case '=', '+', '-', '*', '/', '%', '&', '^', '|', '<', '>', ',', '.', '(', ')', '[', ']':
		l.advance()
		return l.make(begin, token.TokenType(string(c)), string(c))
	}
	l.advance()
	tok := l.make(begin, token.ILLEGAL, string(c))
	err.Throw(l.rep, "lex/char", tok.Range, string(c))
	return tok
}

func (l *lexer) readWord(begin token.Pos) token.Token {
	start := l.pos
	for isLetter(l.current()) || isDigit(l.current()) {
		l.advance()
	}
	word := string(l.runes[start:l.pos])
	ty := token.LookupIdent(word)
	if ty != token.IDENT {
		// Keywords are normalized to upper case, literal included;
		// identifiers keep the spelling they were written with.
		return l.make(begin, ty, strings.ToUpper(word))
	}
	return l.make(begin, token.IDENT, word)
}

func (l *lexer) readNumber(begin token.Pos) token.Token {
	start := l.pos
	if l.current() == '0' && (l.peek() == 'x' || l.peek() == 'X') {
		l.advance()
		l.advance()
		digits := 0
		for isHexDigit(l.current()) {
			l.advance()
			digits++
		}
		lit := string(l.runes[start:l.pos])
		if digits == 0 {
			err.Throw(l.rep, "lex/number", l.rangeFrom(begin), lit)
		}
		return l.make(begin, token.INT_LIT, lit)
	}
	for isDigit(l.current()) {
		l.advance()
	}
	if l.current() == '.' && isDigit(l.peek()) {
		l.advance()
		for isDigit(l.current()) {
			l.advance()
		}
		return l.make(begin, token.FLOAT_LIT, string(l.runes[start:l.pos]))
	}
	return l.make(begin, token.INT_LIT, string(l.runes[start:l.pos]))
}

func (l *lexer) readString(begin token.Pos, quote rune) token.Token {
	l.advance() // the opening quote
	var b strings.Builder
	for {
		c := l.current()
		switch c {
		case 0, '\n':
			tok := l.make(begin, token.STRING_LIT, b.String())
			err.Throw(l.rep, "lex/quote", tok.Range)
			return tok
		case quote:
			l.advance()
			return l.make(begin, token.STRING_LIT, b.String())
		case '\\':
			l.advance()
			switch l.current() {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case '\\':
				b.WriteRune('\\')
			case '"':
				b.WriteRune('"')
			case '\'':
				b.WriteRune('\'')
			default:
				b.WriteRune(l.current())
			}
			l.advance()
		default:
			b.WriteRune(c)
			l.advance()
		}
	}
}

func isLetter(c rune) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || c == '_'
}

func isDigit(c rune) bool {
	return '0' <= c && c <= '9'
}

func isHexDigit(c rune) bool {
	return isDigit(c) || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}
