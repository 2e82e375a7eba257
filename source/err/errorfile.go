package err

// A map from error identifiers to functions that supply the corresponding
// error messages.
//
// Errors in the map are in alphabetical order of their identifiers.
//
// Major categories are check, emit, err, first, lex, parse, and symtab. An
// identifier names a kind of error, and the same identifier may be thrown
// from more than one place in the Go code.

import (
	"fmt"

	"sunscript/source/report"
	"sunscript/source/token"
)

type ErrorCreator struct {
	Message func(r token.Range, args ...any) string
}

func emph(s any) string {
	return fmt.Sprintf("'%v'", s)
}

var ErrorCreatorMap = map[string]ErrorCreator{

	"check/assign/const": {
		Message: func(r token.Range, args ...any) string {
			return "cannot assign to constant " + emph(args[0])
		},
	},

	"check/assign/lvalue": {
		Message: func(r token.Range, args ...any) string {
			return "left-hand side of assignment is not assignable"
		},
	},

	"check/assign/refany": {
		Message: func(r token.Range, args ...any) string {
			return "cannot assign through a reference to ANY"
		},
	},

	"check/assign/type": {
		Message: func(r token.Range, args ...any) string {
			return "cannot assign value of type " + emph(args[1]) + " to " + emph(args[0])
		},
	},

	"check/binary/bitwise": {
		Message: func(r token.Range, args ...any) string {
			return "bitwise operator " + emph(args[0]) + " needs INT operands, not " + emph(args[1])
		},
	},

	"check/binary/operands": {
		Message: func(r token.Range, args ...any) string {
			return "operator " + emph(args[0]) + " cannot be applied to " + emph(args[1]) + " and " + emph(args[2])
		},
	},

	"check/break": {
		Message: func(r token.Range, args ...any) string {
			return "BREAK is only allowed inside a SWITCH case"
		},
	},

	"check/call/arg": {
		Message: func(r token.Range, args ...any) string {
			return "argument " + fmt.Sprint(args[0]) + " of " + emph(args[1]) + ": cannot pass " + emph(args[3]) + " as " + emph(args[2])
		},
	},

	"check/call/arity": {
		Message: func(r token.Range, args ...any) string {
			return emph(args[0]) + " takes " + fmt.Sprint(args[1]) + " argument(s) but is given " + fmt.Sprint(args[2])
		},
	},

	"check/call/func": {
		Message: func(r token.Range, args ...any) string {
			return emph(args[0]) + " is not a procedure or function"
		},
	},

	"check/cond/bool": {
		Message: func(r token.Range, args ...any) string {
			return "condition must be BOOL, not " + emph(args[0])
		},
	},

	"check/decl/init": {
		Message: func(r token.Range, args ...any) string {
			return "cannot initialize " + emph(args[0]) + " with a value of type " + emph(args[1])
		},
	},

	"check/ident/unknown": {
		Message: func(r token.Range, args ...any) string {
			return "undeclared name " + emph(args[0])
		},
	},

	"check/index/array": {
		Message: func(r token.Range, args ...any) string {
			return "cannot index a value of type " + emph(args[0])
		},
	},

	"check/index/int": {
		Message: func(r token.Range, args ...any) string {
			return "array index must be INT, not " + emph(args[0])
		},
	},

	"check/logic/bool": {
		Message: func(r token.Range, args ...any) string {
			return emph(args[0]) + " needs BOOL operands, not " + emph(args[1])
		},
	},

	"check/member/struct": {
		Message: func(r token.Range, args ...any) string {
			return "value of type " + emph(args[0]) + " has no members"
		},
	},

	"check/member/unknown": {
		Message: func(r token.Range, args ...any) string {
			return "type " + emph(args[0]) + " has no member " + emph(args[1])
		},
	},

	"check/repeat/int": {
		Message: func(r token.Range, args ...any) string {
			return "REPEAT " + fmt.Sprint(args[0]) + " must be INT, not " + emph(args[1])
		},
	},

	"check/repeat/lvalue": {
		Message: func(r token.Range, args ...any) string {
			return "REPEAT counter is not assignable"
		},
	},

	"check/return/missing": {
		Message: func(r token.Range, args ...any) string {
			return "function " + emph(args[0]) + " must return a value of type " + emph(args[1])
		},
	},

	"check/return/none": {
		Message: func(r token.Range, args ...any) string {
			return "procedure " + emph(args[0]) + " cannot return a value"
		},
	},

	"check/return/type": {
		Message: func(r token.Range, args ...any) string {
			return "cannot return " + emph(args[1]) + " from a function returning " + emph(args[0])
		},
	},

	"check/switch/case": {
		Message: func(r token.Range, args ...any) string {
			return "case value must be an INT constant"
		},
	},

	"check/switch/dup": {
		Message: func(r token.Range, args ...any) string {
			return "duplicate case value " + fmt.Sprint(args[0])
		},
	},

	"check/switch/int": {
		Message: func(r token.Range, args ...any) string {
			return "SWITCH value must be INT, not " + emph(args[0])
		},
	},

	"check/unary/neg": {
		Message: func(r token.Range, args ...any) string {
			return "operator '-' needs an INT or FLOAT operand, not " + emph(args[0])
		},
	},

	"check/unary/not": {
		Message: func(r token.Range, args ...any) string {
			return "NOT needs a BOOL operand, not " + emph(args[0])
		},
	},

	"check/vector/component": {
		Message: func(r token.Range, args ...any) string {
			return "vector component must be FLOAT, not " + emph(args[0])
		},
	},

	"check/vector/count": {
		Message: func(r token.Range, args ...any) string {
			return "vector literal must fill exactly 3 components, got " + fmt.Sprint(args[0])
		},
	},

	"emit/errors": {
		Message: func(r token.Range, args ...any) string {
			return "refusing to generate code: the report contains errors"
		},
	},

	"err/misdirect": {
		Message: func(r token.Range, args ...any) string {
			return "tried to throw an unknown error with id " + emph(args[0]) + ": this is a bug in the compiler itself"
		},
	},

	"first/array/len": {
		Message: func(r token.Range, args ...any) string {
			return "array length must be a positive INT constant"
		},
	},

	"first/const/basic": {
		Message: func(r token.Range, args ...any) string {
			return "only INT, FLOAT, BOOL and STRING may be CONST, not " + emph(args[0])
		},
	},

	"first/const/circular": {
		Message: func(r token.Range, args ...any) string {
			return "constant " + emph(args[0]) + " is defined in terms of itself"
		},
	},

	"first/const/div": {
		Message: func(r token.Range, args ...any) string {
			return "division by zero while evaluating constant " + emph(args[0])
		},
	},

	"first/const/init": {
		Message: func(r token.Range, args ...any) string {
			return "constant " + emph(args[0]) + " needs an initializer"
		},
	},

	"first/const/nonconst": {
		Message: func(r token.Range, args ...any) string {
			return "initializer of constant " + emph(args[0]) + " is not a constant expression"
		},
	},

	"first/global/type": {
		Message: func(r token.Range, args ...any) string {
			return "global " + emph(args[0]) + " may not be of type " + emph(args[1])
		},
	},

	"first/static/init": {
		Message: func(r token.Range, args ...any) string {
			return "STRING variable " + emph(args[0]) + " may not have an initializer"
		},
	},

	"first/static/nonconst": {
		Message: func(r token.Range, args ...any) string {
			return "initializer of " + emph(args[0]) + " is not a constant expression"
		},
	},

	"first/static/ref": {
		Message: func(r token.Range, args ...any) string {
			return emph(args[0]) + " may not be a reference"
		},
	},

	"first/struct/circular": {
		Message: func(r token.Range, args ...any) string {
			return "circular type: struct " + emph(args[0]) + " contains itself through field " + emph(args[1])
		},
	},

	"first/struct/ref": {
		Message: func(r token.Range, args ...any) string {
			return "struct field " + emph(args[0]) + " may not be a reference"
		},
	},

	"first/type/refref": {
		Message: func(r token.Range, args ...any) string {
			return "a reference to a reference is not a type"
		},
	},

	"first/type/unknown": {
		Message: func(r token.Range, args ...any) string {
			return emph(args[0]) + " does not name a type"
		},
	},

	"first/using/path": {
		Message: func(r token.Range, args ...any) string {
			return "cannot resolve USING path " + emph(args[0])
		},
	},

	"lex/char": {
		Message: func(r token.Range, args ...any) string {
			return "unexpected character " + emph(args[0])
		},
	},

	"lex/number": {
		Message: func(r token.Range, args ...any) string {
			return "malformed numeric literal " + emph(args[0])
		},
	},

	"lex/quote": {
		Message: func(r token.Range, args ...any) string {
			return "unterminated string literal"
		},
	},

	"parse/decl": {
		Message: func(r token.Range, args ...any) string {
			return "malformed declaration"
		},
	},

	"parse/eol": {
		Message: func(r token.Range, args ...any) string {
			return "unexpected " + emph(args[0]) + " at end of statement"
		},
	},

	"parse/expect": {
		Message: func(r token.Range, args ...any) string {
			return "expected " + emph(args[0]) + ", got " + emph(args[1])
		},
	},

	"parse/expr": {
		Message: func(r token.Range, args ...any) string {
			return "expected an expression, got " + emph(args[0])
		},
	},

	"parse/toplevel": {
		Message: func(r token.Range, args ...any) string {
			return emph(args[0]) + " cannot begin a top-level declaration"
		},
	},

	"symtab/dup": {
		Message: func(r token.Range, args ...any) string {
			return emph(args[0]) + " has already been declared in this scope"
		},
	},

	"symtab/import/dup": {
		Message: func(r token.Range, args ...any) string {
			return "import shadows existing declaration of " + emph(args[0])
		},
	},
}

// Create makes an Error without appending it anywhere.
func Create(id string, rng token.Range, args ...any) *report.Error {
	creator, ok := ErrorCreatorMap[id]
	if !ok {
		return &report.Error{
			ErrorId:  "err/misdirect",
			Message:  ErrorCreatorMap["err/misdirect"].Message(rng, id),
			Severity: report.ERROR,
			Range:    rng,
		}
	}
	return &report.Error{
		ErrorId:  id,
		Message:  creator.Message(rng, args...),
		Severity: report.ERROR,
		Range:    rng,
		Args:     args,
	}
}

// Throw appends an error to the report.
func Throw(rep *report.Report, id string, rng token.Range, args ...any) {
	rep.Add(Create(id, rng, args...))
}

// Warn appends a warning to the report.
func Warn(rep *report.Report, id string, rng token.Range, args ...any) {
	e := Create(id, rng, args...)
	e.Severity = report.WARNING
	rep.Add(e)
}
