package vm

// The target machine's instruction set. One opcode byte, then operands whose
// widths are fixed per opcode, except that ENTER carries a name of variable
// length and SWITCH carries a case table sized by its count byte. Everything
// multi-byte is little-endian.

type Opcode uint8

const (
	NOP Opcode = iota

	// Integer arithmetic and comparison.
	IADD
	ISUB
	IMUL
	IDIV
	IMOD
	INEG
	INOT
	IEQ
	INE
	IGT
	IGE
	ILT
	ILE

	// Float arithmetic and comparison.
	FADD
	FSUB
	FMUL
	FDIV
	FMOD
	FNEG
	FEQ
	FNE
	FGT
	FGE
	FLT
	FLE

	// Bitwise, INT only.
	IAND
	IOR
	IXOR

	// Stack shuffling and indirection. LOAD and STORE go through an address
	// cell on the stack.
	DUP
	DROP
	LOAD
	STORE

	// Push-constant family, narrowest form first.
	PUSH_CONST_0
	PUSH_CONST_1
	PUSH_CONST_2
	PUSH_CONST_3
	PUSH_CONST_4
	PUSH_CONST_5
	PUSH_CONST_6
	PUSH_CONST_7
	PUSH_CONST_U8
	PUSH_CONST_U8_U8
	PUSH_CONST_U8_U8_U8
	PUSH_CONST_S16
	PUSH_CONST_U24
	PUSH_CONST_U32
	PUSH_CONST_F

	// Branches. Offsets are 16-bit, relative to the byte after the branch.
	J
	JZ
	IEQ_JZ
	INE_JZ
	IGT_JZ
	IGE_JZ
	ILT_JZ
	ILE_JZ

	// Calls and frames.
	CALL   // u24 absolute code offset
	NATIVE // u8 argCount<<2|returnCount, u16 import-table index
	ENTER  // u8 argsSize, u16 frameSize, u8 nameLen, name bytes
	LEAVE  // u8 argsSize, u8 returnSize

	// Turns a string-pool byte offset on the stack into a string reference.
	STRING

	// u8 count, then count entries of {u32 caseValue, s16 offset}, each
	// offset relative to the end of its own entry.
	SWITCH

	// Frame-local cells: push address, load value, store value.
	LOCAL_U8
	LOCAL_U8_LOAD
	LOCAL_U8_STORE
	LOCAL_U16
	LOCAL_U16_LOAD
	LOCAL_U16_STORE

	// Script statics.
	STATIC_U8
	STATIC_U8_LOAD
	STATIC_U8_STORE
	STATIC_U16
	STATIC_U16_LOAD
	STATIC_U16_STORE

	// Globals; the block index lives in the address's high bits.
	GLOBAL_U16
	GLOBAL_U16_LOAD
	GLOBAL_U16_STORE
	GLOBAL_U24
	GLOBAL_U24_LOAD
	GLOBAL_U24_STORE

	// Array element addressing: stack is [index, array address], the operand
	// is the element size in cells.
	ARRAY_U8
	ARRAY_U8_LOAD
	ARRAY_U8_STORE
	ARRAY_U16
	ARRAY_U16_LOAD
	ARRAY_U16_STORE

	// Struct field addressing: adds a constant cell offset to the address on
	// the stack.
	IOFFSET_U8
	IOFFSET_U8_LOAD
	IOFFSET_U8_STORE
	IOFFSET_S16
	IOFFSET_S16_LOAD
	IOFFSET_S16_STORE

	// Exception plumbing and text labels, present for the engine's benefit;
	// the compiler never emits them but the disassembler must get past them.
	CATCH
	THROW
	TEXT_LABEL_ASSIGN_STRING // u8 buffer size
	TEXT_LABEL_ASSIGN_INT    // u8 buffer size
	TEXT_LABEL_APPEND_STRING // u8 buffer size
	TEXT_LABEL_APPEND_INT    // u8 buffer size

	opcodeCount
)

// An OperandKind describes one operand slot for encoding width and
// disassembly.
type OperandKind uint8

const (
	U8 OperandKind = iota
	U16
	U24
	U32
	S16
	F32
)

func (k OperandKind) Width() int {
	switch k {
	case U8:
		return 1
	case U16, S16:
		return 2
	case U24:
		return 3
	case U32, F32:
		return 4
	}
	return 0
}

type OpInfo struct {
	Name     string
	Operands []OperandKind
}

var Ops = [opcodeCount]OpInfo{
	NOP:  {Name: "NOP"},
	IADD: {Name: "IADD"},
	ISUB: {Name: "ISUB"},
	IMUL: {Name: "IMUL"},
	IDIV: {Name: "IDIV"},
	IMOD: {Name: "IMOD"},
	INEG: {Name: "INEG"},
	INOT: {Name: "INOT"},
	IEQ:  {Name: "IEQ"},
	INE:  {Name: "INE"},
	IGT:  {Name: "IGT"},
	IGE:  {Name: "IGE"},
	ILT:  {Name: "ILT"},
	ILE:  {Name: "ILE"},
	FADD: {Name: "FADD"},
	FSUB: {Name: "FSUB"},
	FMUL: {Name: "FMUL"},
	FDIV: {Name: "FDIV"},
	FMOD: {Name: "FMOD"},
	FNEG: {Name: "FNEG"},
	FEQ:  {Name: "FEQ"},
	FNE:  {Name: "FNE"},
	FGT:  {Name: "FGT"},
	FGE:  {Name: "FGE"},
	FLT:  {Name: "FLT"},
	FLE:  {Name: "FLE"},
	IAND: {Name: "IAND"},
	IOR:  {Name: "IOR"},
	IXOR: {Name: "IXOR"},
	DUP:  {Name: "DUP"},
	DROP: {Name: "DROP"},
	LOAD: {Name: "LOAD"},
	STORE: {Name: "STORE"},

	PUSH_CONST_0:        {Name: "PUSH_CONST_0"},
	PUSH_CONST_1:        {Name: "PUSH_CONST_1"},
	PUSH_CONST_2:        {Name: "PUSH_CONST_2"},
	PUSH_CONST_3:        {Name: "PUSH_CONST_3"},
	PUSH_CONST_4:        {Name: "PUSH_CONST_4"},
	PUSH_CONST_5:        {Name: "PUSH_CONST_5"},
	PUSH_CONST_6:        {Name: "PUSH_CONST_6"},
	PUSH_CONST_7:        {Name: "PUSH_CONST_7"},
	PUSH_CONST_U8:       {Name: "PUSH_CONST_U8", Operands: []OperandKind{U8}},
	PUSH_CONST_U8_U8:    {Name: "PUSH_CONST_U8_U8", Operands: []OperandKind{U8, U8}},
	PUSH_CONST_U8_U8_U8: {Name: "PUSH_CONST_U8_U8_U8", Operands: []OperandKind{U8, U8, U8}},
	PUSH_CONST_S16:      {Name: "PUSH_CONST_S16", Operands: []OperandKind{S16}},
	PUSH_CONST_U24:      {Name: "PUSH_CONST_U24", Operands: []OperandKind{U24}},
	PUSH_CONST_U32:      {Name: "PUSH_CONST_U32", Operands: []OperandKind{U32}},
	PUSH_CONST_F:        {Name: "PUSH_CONST_F", Operands: []OperandKind{F32}},

	J:      {Name: "J", Operands: []OperandKind{S16}},
	JZ:     {Name: "JZ", Operands: []OperandKind{S16}},
	IEQ_JZ: {Name: "IEQ_JZ", Operands: []OperandKind{S16}},
	INE_JZ: {Name: "INE_JZ", Operands: []OperandKind{S16}},
	IGT_JZ: {Name: "IGT_JZ", Operands: []OperandKind{S16}},
	IGE_JZ: {Name: "IGE_JZ", Operands: []OperandKind{S16}},
	ILT_JZ: {Name: "ILT_JZ", Operands: []OperandKind{S16}},
	ILE_JZ: {Name: "ILE_JZ", Operands: []OperandKind{S16}},

	CALL:   {Name: "CALL", Operands: []OperandKind{U24}},
	NATIVE: {Name: "NATIVE", Operands: []OperandKind{U8, U16}},
	ENTER:  {Name: "ENTER"},  // variable length, handled specially
	LEAVE:  {Name: "LEAVE", Operands: []OperandKind{U8, U8}},
	STRING: {Name: "STRING"},
	SWITCH: {Name: "SWITCH"}, // variable length, handled specially

	LOCAL_U8:        {Name: "LOCAL_U8", Operands: []OperandKind{U8}},
	LOCAL_U8_LOAD:   {Name: "LOCAL_U8_LOAD", Operands: []OperandKind{U8}},
	LOCAL_U8_STORE:  {Name: "LOCAL_U8_STORE", Operands: []OperandKind{U8}},
	LOCAL_U16:       {Name: "LOCAL_U16", Operands: []OperandKind{U16}},
	LOCAL_U16_LOAD:  {Name: "LOCAL_U16_LOAD", Operands: []OperandKind{U16}},
	LOCAL_U16_STORE: {Name: "LOCAL_U16_STORE", Operands: []OperandKind{U16}},

	STATIC_U8:        {Name: "STATIC_U8", Operands: []OperandKind{U8}},
	STATIC_U8_LOAD:   {Name: "STATIC_U8_LOAD", Operands: []OperandKind{U8}},
	STATIC_U8_STORE:  {Name: "STATIC_U8_STORE", Operands: []OperandKind{U8}},
	STATIC_U16:       {Name: "STATIC_U16", Operands: []OperandKind{U16}},
	STATIC_U16_LOAD:  {Name: "STATIC_U16_LOAD", Operands: []OperandKind{U16}},
	STATIC_U16_STORE: {Name: "STATIC_U16_STORE", Operands: []OperandKind{U16}},

	GLOBAL_U16:       {Name: "GLOBAL_U16", Operands: []OperandKind{U16}},
	GLOBAL_U16_LOAD:  {Name: "GLOBAL_U16_LOAD", Operands: []OperandKind{U16}},
	GLOBAL_U16_STORE: {Name: "GLOBAL_U16_STORE", Operands: []OperandKind{U16}},
	GLOBAL_U24:       {Name: "GLOBAL_U24", Operands: []OperandKind{U24}},
	GLOBAL_U24_LOAD:  {Name: "GLOBAL_U24_LOAD", Operands: []OperandKind{U24}},
	GLOBAL_U24_STORE: {Name: "GLOBAL_U24_STORE", Operands: []OperandKind{U24}},

	ARRAY_U8:        {Name: "ARRAY_U8", Operands: []OperandKind{U8}},
	ARRAY_U8_LOAD:   {Name: "ARRAY_U8_LOAD", Operands: []OperandKind{U8}},
	ARRAY_U8_STORE:  {Name: "ARRAY_U8_STORE", Operands: []OperandKind{U8}},
	ARRAY_U16:       {Name: "ARRAY_U16", Operands: []OperandKind{U16}},
	ARRAY_U16_LOAD:  {Name: "ARRAY_U16_LOAD", Operands: []OperandKind{U16}},
	ARRAY_U16_STORE: {Name: "ARRAY_U16_STORE", Operands: []OperandKind{U16}},

	IOFFSET_U8:        {Name: "IOFFSET_U8", Operands: []OperandKind{U8}},
	IOFFSET_U8_LOAD:   {Name: "IOFFSET_U8_LOAD", Operands: []OperandKind{U8}},
	IOFFSET_U8_STORE:  {Name: "IOFFSET_U8_STORE", Operands: []OperandKind{U8}},
	IOFFSET_S16:       {Name: "IOFFSET_S16", Operands: []OperandKind{S16}},
	IOFFSET_S16_LOAD:  {Name: "IOFFSET_S16_LOAD", Operands: []OperandKind{S16}},
	IOFFSET_S16_STORE: {Name: "IOFFSET_S16_STORE", Operands: []OperandKind{S16}},

	CATCH: {Name: "CATCH"},
	THROW: {Name: "THROW"},
	TEXT_LABEL_ASSIGN_STRING: {Name: "TEXT_LABEL_ASSIGN_STRING", Operands: []OperandKind{U8}},
	TEXT_LABEL_ASSIGN_INT:    {Name: "TEXT_LABEL_ASSIGN_INT", Operands: []OperandKind{U8}},
	TEXT_LABEL_APPEND_STRING: {Name: "TEXT_LABEL_APPEND_STRING", Operands: []OperandKind{U8}},
	TEXT_LABEL_APPEND_INT:    {Name: "TEXT_LABEL_APPEND_INT", Operands: []OperandKind{U8}},
}

// InstructionLength computes the byte length of the instruction at offset i,
// reading as much of the operand stream as the opcode requires.
func InstructionLength(code []byte, i int) int {
	oc := Opcode(code[i])
	switch oc {
	case ENTER:
		// opcode, argsSize, frameSize, nameLen, name
		nameLen := int(code[i+4])
		return 5 + nameLen
	case SWITCH:
		count := int(code[i+1])
		return 2 + count*6
	}
	length := 1
	for _, op := range Ops[oc].Operands {
		length += op.Width()
	}
	return length
}
