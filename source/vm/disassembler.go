package vm

// Recovering assembly from a compiled program: names for natives, labels for
// strings and branch targets, and run-length-compressed dumps of the data
// images. The disassembler needs nothing from the front-end and works on any
// program, including ones this compiler didn't produce; the one thing it
// will not tolerate is a data cell too wide for the container format.

import (
	"fmt"
	"strconv"
	"strings"

	"sunscript/source/nativedb"
)

// Disassemble renders the program as assembly text. The native database may
// be nil, in which case every native shows as its hash.
func Disassemble(p *Program, db *nativedb.DB) (string, error) {
	d := &disassembler{prog: p, db: db}
	return d.run()
}

type disassembler struct {
	prog   *Program
	db     *nativedb.DB
	out    strings.Builder
	labels map[int]string
	funcs  map[int]bool
}

func (d *disassembler) run() (string, error) {
	p := d.prog
	fmt.Fprintf(&d.out, "SCRIPT_NAME %s\n", p.Name)
	fmt.Fprintf(&d.out, "SCRIPT_HASH 0x%08X\n", p.Hash)

	if len(p.Natives) > 0 {
		d.out.WriteString("\n.natives\n")
		for _, hash := range p.Natives {
			d.out.WriteString("\t" + d.nativeName(hash) + "\n")
		}
	}

	if p.Strings != nil && len(p.Strings.All()) > 0 {
		d.out.WriteString("\n.strings\n")
		for _, pair := range d.orderedStringLabels() {
			fmt.Fprintf(&d.out, "%s: .string \"%s\"\n", pair.label, escape(pair.value))
		}
	}

	if len(p.Globals) > 0 {
		fmt.Fprintf(&d.out, "\n.globals block %d\n", p.GlobalsBlock)
		if err := d.dumpCells(p.Globals); err != nil {
			return "", err
		}
	}

	statics := p.Statics
	var args []uint64
	if p.ArgCount > 0 && p.ArgCount <= len(statics) {
		args = statics[len(statics)-p.ArgCount:]
		statics = statics[:len(statics)-p.ArgCount]
	}
	if len(statics) > 0 {
		d.out.WriteString("\n.statics\n")
		if err := d.dumpCells(statics); err != nil {
			return "", err
		}
	}
	if len(args) > 0 {
		d.out.WriteString("\n.args\n")
		if err := d.dumpCells(args); err != nil {
			return "", err
		}
	}

	if len(p.Code) > 0 {
		d.out.WriteString("\n.code\n")
		d.scanLabels()
		d.printCode()
	}
	return d.out.String(), nil
}

func (d *disassembler) nativeName(hash uint64) string {
	if d.db != nil {
		if def, ok := d.db.Resolve(hash); ok && def.Name != "" {
			return def.Name
		}
		if def, ok := d.db.Resolve(d.db.ResolveOriginal(hash)); ok && def.Name != "" {
			return def.Name
		}
	}
	return fmt.Sprintf("_0x%016X", hash)
}

// ---- Strings ----

type labeledString struct {
	label string
	value string
}

// stringLabels invents a label for each pool string: 'a' plus the first 25
// identifier characters, camel-cased word by word. Collisions pick up _2,
// _3, and so on; the empty string is always aEmptyString.
func (d *disassembler) stringLabels() map[string]string {
	result := map[string]string{}
	taken := map[string]int{}
	for _, s := range d.prog.Strings.All() {
		label := synthesizeLabel(s)
		taken[label]++
		if n := taken[label]; n > 1 {
			label = label + "_" + strconv.Itoa(n)
		}
		result[s] = label
	}
	return result
}

func (d *disassembler) orderedStringLabels() []labeledString {
	byValue := d.stringLabels()
	var out []labeledString
	for _, s := range d.prog.Strings.All() {
		out = append(out, labeledString{label: byValue[s], value: s})
	}
	return out
}

func synthesizeLabel(s string) string {
	if s == "" {
		return "aEmptyString"
	}
	var b strings.Builder
	b.WriteByte('a')
	upper := true
	for _, r := range s {
		if b.Len() >= 26 { // 'a' plus 25
			break
		}
		switch {
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			if upper {
				b.WriteString(strings.ToUpper(string(r)))
			} else {
				b.WriteRune(r)
			}
			upper = false
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			upper = false
		default:
			upper = true
		}
	}
	if b.Len() == 1 {
		return "aEmptyString"
	}
	return b.String()
}

func escape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			b.WriteString("\\\"")
		case c == '\\':
			b.WriteString("\\\\")
		case c == '\n':
			b.WriteString("\\n")
		case c == '\t':
			b.WriteString("\\t")
		case c < 0x20 || c > 0x7E:
			fmt.Fprintf(&b, "\\x%02X", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ---- Data images ----

// dumpCells prints consecutive equal cells as one `.int n dup (v)` run. A
// cell that does not fit in a u32 means the image is corrupt, which is the
// disassembler's one hard failure.
func (d *disassembler) dumpCells(cells []uint64) error {
	for i := 0; i < len(cells); {
		v := cells[i]
		if v > 0xFFFFFFFF {
			return fmt.Errorf("corrupt data image: cell %d holds %#x, wider than u32", i, v)
		}
		run := 1
		for i+run < len(cells) && cells[i+run] == v {
			run++
		}
		if run > 1 {
			fmt.Fprintf(&d.out, "\t.int %d dup (%d)\n", run, v)
		} else {
			fmt.Fprintf(&d.out, "\t.int %d\n", v)
		}
		i += run
	}
	return nil
}

// ---- Code ----

// scanLabels is the first pass over the instruction stream: find every
// branch, call, and switch target and every ENTER, and name them. Address 0
// is always main.
func (d *disassembler) scanLabels() {
	code := d.prog.Code
	d.labels = map[int]string{}
	d.funcs = map[int]bool{}
	targets := map[int]bool{}
	for i := 0; i < len(code); i += InstructionLength(code, i) {
		switch Opcode(code[i]) {
		case ENTER:
			d.funcs[i] = true
		case J, JZ, IEQ_JZ, INE_JZ, IGT_JZ, IGE_JZ, ILT_JZ, ILE_JZ:
			targets[i+3+int(S16At(code, i+1))] = true
		case CALL:
			d.funcs[int(U24At(code, i+1))] = true
		case SWITCH:
			count := int(code[i+1])
			for k := 0; k < count; k++ {
				entryEnd := i + 2 + (k+1)*6
				targets[entryEnd+int(S16At(code, entryEnd-2))] = true
			}
		}
	}
	for addr := range d.funcs {
		if addr == 0 {
			d.labels[addr] = "main"
		} else {
			d.labels[addr] = "func_" + strconv.Itoa(addr)
		}
	}
	for addr := range targets {
		if _, have := d.labels[addr]; !have {
			d.labels[addr] = "lbl_" + strconv.Itoa(addr)
		}
	}
}

// printCode is the second pass: every instruction on its own line, label
// lines prefixed at their addresses, a blank line before each function.
func (d *disassembler) printCode() {
	code := d.prog.Code
	for i := 0; i < len(code); i += InstructionLength(code, i) {
		if label, ok := d.labels[i]; ok {
			if d.funcs[i] && i != 0 {
				d.out.WriteString("\n")
			}
			d.out.WriteString(label + ":\n")
		}
		d.out.WriteString("\t" + d.describe(code, i) + "\n")
	}
}

func (d *disassembler) describe(code []byte, i int) string {
	oc := Opcode(code[i])
	switch oc {
	case ENTER:
		nameLen := int(code[i+4])
		name := string(code[i+5 : i+5+nameLen])
		return fmt.Sprintf("ENTER %d %d '%s'", code[i+1], U16At(code, i+2), name)
	case SWITCH:
		count := int(code[i+1])
		var b strings.Builder
		fmt.Fprintf(&b, "SWITCH %d", count)
		for k := 0; k < count; k++ {
			at := i + 2 + k*6
			entryEnd := at + 6
			target := entryEnd + int(S16At(code, at+4))
			fmt.Fprintf(&b, " %d:%s", U32At(code, at), d.labelFor(target))
		}
		return b.String()
	case CALL:
		return "CALL " + d.labelFor(int(U24At(code, i+1)))
	case J, JZ, IEQ_JZ, INE_JZ, IGT_JZ, IGE_JZ, ILT_JZ, ILE_JZ:
		return Ops[oc].Name + " " + d.labelFor(i+3+int(S16At(code, i+1)))
	case NATIVE:
		argRet := code[i+1]
		index := int(U16At(code, i+2))
		name := ""
		if index < len(d.prog.Natives) {
			name = " ; " + d.nativeName(d.prog.Natives[index])
		}
		return fmt.Sprintf("NATIVE %d %d %d%s", argRet>>2, argRet&3, index, name)
	case PUSH_CONST_F:
		return fmt.Sprintf("PUSH_CONST_F %g", F32At(code, i+1))
	}
	// Everything else prints its operands numerically by the table.
	var b strings.Builder
	b.WriteString(Ops[oc].Name)
	at := i + 1
	for _, k := range Ops[oc].Operands {
		switch k {
		case U8:
			fmt.Fprintf(&b, " %d", code[at])
		case U16:
			fmt.Fprintf(&b, " %d", U16At(code, at))
		case U24:
			fmt.Fprintf(&b, " %d", U24At(code, at))
		case U32:
			fmt.Fprintf(&b, " %d", U32At(code, at))
		case S16:
			fmt.Fprintf(&b, " %d", S16At(code, at))
		case F32:
			fmt.Fprintf(&b, " %g", F32At(code, at))
		}
		at += k.Width()
	}
	return b.String()
}

func (d *disassembler) labelFor(addr int) string {
	if label, ok := d.labels[addr]; ok {
		return label
	}
	return "@" + strconv.Itoa(addr)
}
