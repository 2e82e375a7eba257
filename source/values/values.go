package values

// The compile-time view of the VM's 8-byte stack cells. The constant folder
// works over these; the globals and statics images are built from them.

import (
	"math"

	"sunscript/source/token"
)

type ValueType uint32

const (
	UNDEFINED ValueType = iota // The zero value is something it should never actually be.
	INT
	FLOAT
	BOOL
	STRING
)

type Value struct {
	T ValueType
	V any
}

var (
	FALSE = Value{T: BOOL, V: false}
	TRUE  = Value{T: BOOL, V: true}
	ZERO  = Value{T: INT, V: int64(0)}
)

func MakeInt(i int64) Value     { return Value{T: INT, V: i} }
func MakeFloat(f float32) Value { return Value{T: FLOAT, V: f} }
func MakeBool(b bool) Value     { return Value{T: BOOL, V: b} }
func MakeString(s string) Value { return Value{T: STRING, V: s} }

func makeBool(b bool) Value {
	if b {
		return TRUE
	}
	return FALSE
}

// Cell packs a value into one 8-byte VM cell. Floats occupy the low 32 bits,
// as they do on the target machine. STRING values have no cell form: they
// stay symbolic until the emitter interns them.
func (v Value) Cell() uint64 {
	switch v.T {
	case INT:
		return uint64(v.V.(int64))
	case FLOAT:
		return uint64(math.Float32bits(v.V.(float32)))
	case BOOL:
		if v.V.(bool) {
			return 1
		}
		return 0
	}
	return 0
}

// BinaryOp folds a binary operation over two values of the same type. The
// caller has already typechecked, so a false result means either an operand
// pair the folder cannot reduce or a division by zero.
func BinaryOp(op token.TokenType, a, b Value) (Value, bool) {
	if a.T != b.T {
		return Value{}, false
	}
	switch a.T {
	case INT:
		x, y := a.V.(int64), b.V.(int64)
		switch op {
		case token.PLUS:
			return MakeInt(x + y), true
		case token.MINUS:
			return MakeInt(x - y), true
		case token.STAR:
			return MakeInt(x * y), true
		case token.SLASH:
			if y == 0 {
				return Value{}, false
			}
			return MakeInt(x / y), true
		case token.PERCENT:
			if y == 0 {
				return Value{}, false
			}
			return MakeInt(x % y), true
		case token.AMPERSAND:
			return MakeInt(x & y), true
		case token.PIPE:
			return MakeInt(x | y), true
		case token.CARET:
			return MakeInt(x ^ y), true
		case token.EQ:
			return makeBool(x == y), true
		case token.NOT_EQ:
			return makeBool(x != y), true
		case token.LT:
			return makeBool(x < y), true
		case token.GT:
			return makeBool(x > y), true
		case token.LE:
			return makeBool(x <= y), true
		case token.GE:
			return makeBool(x >= y), true
		}
	case FLOAT:
		x, y := a.V.(float32), b.V.(float32)
		switch op {
		case token.PLUS:
			return MakeFloat(x + y), true
		case token.MINUS:
			return MakeFloat(x - y), true
		case token.STAR:
			return MakeFloat(x * y), true
		case token.SLASH:
			if y == 0 {
				return Value{}, false
			}
			return MakeFloat(x / y), true
		case token.EQ:
			return makeBool(x == y), true
		case token.NOT_EQ:
			return makeBool(x != y), true
		case token.LT:
			return makeBool(x < y), true
		case token.GT:
			return makeBool(x > y), true
		case token.LE:
			return makeBool(x <= y), true
		case token.GE:
			return makeBool(x >= y), true
		}
	case BOOL:
		x, y := a.V.(bool), b.V.(bool)
		switch op {
		case token.AND:
			return makeBool(x && y), true
		case token.OR:
			return makeBool(x || y), true
		case token.EQ:
			return makeBool(x == y), true
		case token.NOT_EQ:
			return makeBool(x != y), true
		}
	case STRING:
		x, y := a.V.(string), b.V.(string)
		switch op {
		case token.EQ:
			return makeBool(x == y), true
		case token.NOT_EQ:
			return makeBool(x != y), true
		}
	}
	return Value{}, false
}

// UnaryOp folds NOT and unary minus.
func UnaryOp(op token.TokenType, a Value) (Value, bool) {
	switch op {
	case token.NOT:
		if a.T == BOOL {
			return makeBool(!a.V.(bool)), true
		}
	case token.MINUS:
		switch a.T {
		case INT:
			return MakeInt(-a.V.(int64)), true
		case FLOAT:
			return MakeFloat(-a.V.(float32)), true
		}
	}
	return Value{}, false
}
