package compiler

// The type graph. Types live in one arena and are referred to by TypeId, so
// the mutually recursive references that structs and function signatures can
// form are just integers into a slice, and resolution can rewrite a type in
// place by writing through its id.

import (
	"strconv"
	"strings"

	"sunscript/source/token"
)

type TypeId int32

// NoType is what a PROC "returns".
const NoType TypeId = -1

type TypeKind uint8

const (
	UNRESOLVED TypeKind = iota
	INT
	FLOAT
	BOOL
	STRING
	ANY
	STRUCT
	ARRAY
	REF
	FUNCTION
)

// The basic types are interned at fixed ids by NewTypeStore.
const (
	IntType TypeId = iota
	FloatType
	BoolType
	StringType
	AnyType
)

type Field struct {
	Name string
	Type TypeId
}

type Param struct {
	Name string
	Type TypeId
}

type typeNode struct {
	kind   TypeKind
	name   string      // STRUCT name, or the identifier of an UNRESOLVED placeholder
	rng    token.Range // where an UNRESOLVED placeholder was written
	fields []Field     // STRUCT
	elem   TypeId      // ARRAY and REF
	length int         // ARRAY
	ret    TypeId      // FUNCTION; NoType for a procedure
	params []Param     // FUNCTION
}

type TypeStore struct {
	nodes []typeNode
}

func NewTypeStore() *TypeStore {
	ts := &TypeStore{}
	ts.nodes = []typeNode{
		{kind: INT, name: "INT"},
		{kind: FLOAT, name: "FLOAT"},
		{kind: BOOL, name: "BOOL"},
		{kind: STRING, name: "STRING"},
		{kind: ANY, name: "ANY"},
	}
	return ts
}

func (ts *TypeStore) add(n typeNode) TypeId {
	ts.nodes = append(ts.nodes, n)
	return TypeId(len(ts.nodes) - 1)
}

func (ts *TypeStore) NewUnresolved(name string, rng token.Range) TypeId {
	return ts.add(typeNode{kind: UNRESOLVED, name: name, rng: rng})
}

func (ts *TypeStore) Range(id TypeId) token.Range { return ts.nodes[id].rng }

func (ts *TypeStore) NewStruct(name string, fields []Field) TypeId {
	return ts.add(typeNode{kind: STRUCT, name: name, fields: fields})
}

func (ts *TypeStore) NewArray(elem TypeId, length int) TypeId {
	return ts.add(typeNode{kind: ARRAY, elem: elem, length: length})
}

func (ts *TypeStore) NewRef(elem TypeId) TypeId {
	return ts.add(typeNode{kind: REF, elem: elem})
}

func (ts *TypeStore) NewFunction(ret TypeId, params []Param) TypeId {
	return ts.add(typeNode{kind: FUNCTION, ret: ret, params: params})
}

func (ts *TypeStore) Kind(id TypeId) TypeKind {
	if id == NoType {
		return UNRESOLVED
	}
	return ts.nodes[id].kind
}

func (ts *TypeStore) Name(id TypeId) string   { return ts.nodes[id].name }
func (ts *TypeStore) Elem(id TypeId) TypeId   { return ts.nodes[id].elem }
func (ts *TypeStore) Length(id TypeId) int    { return ts.nodes[id].length }
func (ts *TypeStore) Return(id TypeId) TypeId { return ts.nodes[id].ret }

func (ts *TypeStore) Fields(id TypeId) []Field { return ts.nodes[id].fields }
func (ts *TypeStore) Params(id TypeId) []Param { return ts.nodes[id].params }

// Write-through mutation, used by type resolution.

func (ts *TypeStore) SetField(id TypeId, i int, t TypeId) { ts.nodes[id].fields[i].Type = t }
func (ts *TypeStore) SetParam(id TypeId, i int, t TypeId) { ts.nodes[id].params[i].Type = t }
func (ts *TypeStore) SetReturn(id TypeId, t TypeId)       { ts.nodes[id].ret = t }
func (ts *TypeStore) SetElem(id TypeId, t TypeId)         { ts.nodes[id].elem = t }

// FieldIndex finds a struct field by name, case-insensitively.
func (ts *TypeStore) FieldIndex(id TypeId, name string) (int, bool) {
	for i, f := range ts.nodes[id].fields {
		if strings.EqualFold(f.Name, name) {
			return i, true
		}
	}
	return 0, false
}

// FieldOffset is the slot offset of field i within its struct.
func (ts *TypeStore) FieldOffset(id TypeId, i int) int {
	offset := 0
	for _, f := range ts.nodes[id].fields[:i] {
		offset += ts.SizeOf(f.Type)
	}
	return offset
}

// SizeOf is a type's width in 8-byte stack cells. An array carries a leading
// length cell. Unresolved placeholders size to zero so that a broken compile
// doesn't also produce nonsense frame sizes.
func (ts *TypeStore) SizeOf(id TypeId) int {
	if id == NoType {
		return 0
	}
	switch n := ts.nodes[id]; n.kind {
	case INT, FLOAT, BOOL, STRING, ANY, REF:
		return 1
	case ARRAY:
		return 1 + n.length*ts.SizeOf(n.elem)
	case STRUCT:
		size := 0
		for _, f := range n.fields {
			size += ts.SizeOf(f.Type)
		}
		return size
	}
	return 0
}

// Equal is structural equality: same variant, recursively. In particular
// two structs with the same field types are the same type whatever they are
// called, which is what lets a vector literal land in any three-float
// struct. Struct cycles are broken before anything calls Equal.
func (ts *TypeStore) Equal(a, b TypeId) bool {
	if a == b {
		return true
	}
	if a == NoType || b == NoType {
		return false
	}
	na, nb := ts.nodes[a], ts.nodes[b]
	if na.kind != nb.kind {
		return false
	}
	switch na.kind {
	case INT, FLOAT, BOOL, STRING, ANY:
		return true
	case UNRESOLVED:
		return strings.EqualFold(na.name, nb.name)
	case STRUCT:
		if len(na.fields) != len(nb.fields) {
			return false
		}
		for i := range na.fields {
			if !ts.Equal(na.fields[i].Type, nb.fields[i].Type) {
				return false
			}
		}
		return true
	case ARRAY:
		return na.length == nb.length && ts.Equal(na.elem, nb.elem)
	case REF:
		return ts.Equal(na.elem, nb.elem)
	case FUNCTION:
		if len(na.params) != len(nb.params) || !ts.equalOrBothNone(na.ret, nb.ret) {
			return false
		}
		for i := range na.params {
			if !ts.Equal(na.params[i].Type, nb.params[i].Type) {
				return false
			}
		}
		return true
	}
	return false
}

func (ts *TypeStore) equalOrBothNone(a, b TypeId) bool {
	if a == NoType || b == NoType {
		return a == b
	}
	return ts.Equal(a, b)
}

// AssignableFrom says whether a value of type src may be stored in a slot of
// type dst. With considerRefs set, dst being REF(T) accepts both T and
// REF(T); that is how local assignment and argument passing behave, while
// RETURN matches types exactly. ANY (and REF(ANY)) accepts any one-cell
// value, and a REF(ANY) on the right-hand side satisfies any one-cell
// destination.
func (ts *TypeStore) AssignableFrom(dst, src TypeId, considerRefs bool) bool {
	if ts.Equal(dst, src) {
		return true
	}
	if dst == NoType || src == NoType {
		return false
	}
	if ts.isAnyLike(dst) && ts.SizeOf(src) == 1 {
		return true
	}
	if ts.Kind(src) == REF && ts.Kind(ts.Elem(src)) == ANY && ts.SizeOf(dst) == 1 {
		return true
	}
	if considerRefs {
		if ts.Kind(dst) == REF && ts.Equal(ts.Elem(dst), src) {
			return true
		}
		if ts.Kind(src) == REF && ts.Equal(dst, ts.Elem(src)) {
			return true
		}
	}
	return false
}

func (ts *TypeStore) isAnyLike(id TypeId) bool {
	if ts.Kind(id) == ANY {
		return true
	}
	return ts.Kind(id) == REF && ts.Kind(ts.Elem(id)) == ANY
}

// ValueType collapses REF(T) to T, which is how an expression of reference
// type reads and writes.
func (ts *TypeStore) ValueType(id TypeId) TypeId {
	if id != NoType && ts.Kind(id) == REF {
		return ts.Elem(id)
	}
	return id
}

func (ts *TypeStore) String(id TypeId) string {
	if id == NoType {
		return "<none>"
	}
	switch n := ts.nodes[id]; n.kind {
	case UNRESOLVED:
		return "?" + n.name
	case INT, FLOAT, BOOL, STRING, ANY, STRUCT:
		return n.name
	case ARRAY:
		return ts.String(n.elem) + "[" + strconv.Itoa(n.length) + "]"
	case REF:
		return ts.String(n.elem) + "&"
	case FUNCTION:
		parts := make([]string, len(n.params))
		for i, p := range n.params {
			parts[i] = ts.String(p.Type)
		}
		sig := "PROC(" + strings.Join(parts, ", ") + ")"
		if n.ret != NoType {
			sig = "FUNC " + ts.String(n.ret) + "(" + strings.Join(parts, ", ") + ")"
		}
		return sig
	}
	return "<broken>"
}
