package text

// Helpers for putting compiler output in front of a human.

import (
	"fmt"

	"sunscript/source/token"
)

func Emph(s string) string {
	return "'" + s + "'"
}

// DescribePos renders a range the way every diagnostic line begins:
// file(line,col).
func DescribePos(r token.Range) string {
	if r.IsUnknown() {
		return r.Source + "(builtin)"
	}
	return fmt.Sprintf("%s(%d,%d)", r.Source, r.Begin.Line, r.Begin.Col)
}
