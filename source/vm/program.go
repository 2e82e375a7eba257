package vm

// The in-memory compiled program. A separate packager turns this into the
// host's script container; nothing here knows about files or encryption.

// PageSize is the size of one code or data page in the container. No
// instruction straddles a page: the emitter pads with NOP up to the boundary
// instead.
const PageSize = 16384

// GlobalBlockShift positions a global block's index in the high bits of a
// global cell address.
const GlobalBlockShift = 18

type Program struct {
	Name         string
	Hash         uint32
	GlobalsBlock int
	Globals      []uint64
	Statics      []uint64 // script arguments are the last ArgCount cells
	ArgCount     int
	Code         []byte
	Strings      *StringPool
	Natives      []uint64 // import table, insertion-ordered, deduplicated
}

// Pages splits the flat code stream into 16KB pages.
func (p *Program) Pages() [][]byte {
	var pages [][]byte
	for start := 0; start < len(p.Code); start += PageSize {
		end := start + PageSize
		if end > len(p.Code) {
			end = len(p.Code)
		}
		pages = append(pages, p.Code[start:end])
	}
	return pages
}

// GlobalAddress packs a block index and a cell index into one address.
func GlobalAddress(block, cell int) uint32 {
	return uint32(block)<<GlobalBlockShift | uint32(cell)
}

// A StringPool is the classic concatenation of NUL-terminated strings plus
// an index from content to byte offset. Interning the same string twice
// yields the same offset.
type StringPool struct {
	data    []byte
	offsets map[string]int
	order   []string
}

func NewStringPool() *StringPool {
	return &StringPool{offsets: map[string]int{}}
}

// Intern returns the byte offset of s in the pool, adding it if new.
func (sp *StringPool) Intern(s string) int {
	if off, ok := sp.offsets[s]; ok {
		return off
	}
	off := len(sp.data)
	sp.data = append(sp.data, s...)
	sp.data = append(sp.data, 0)
	sp.offsets[s] = off
	sp.order = append(sp.order, s)
	return off
}

// Bytes is the raw pool, byte-equal across compile/disassemble round trips.
func (sp *StringPool) Bytes() []byte {
	return sp.data
}

// All returns the interned strings in insertion order.
func (sp *StringPool) All() []string {
	return sp.order
}

func (sp *StringPool) OffsetOf(s string) (int, bool) {
	off, ok := sp.offsets[s]
	return off, ok
}

// At recovers the string whose NUL-terminated run begins at the offset.
func (sp *StringPool) At(offset int) (string, bool) {
	if offset < 0 || offset >= len(sp.data) {
		return "", false
	}
	end := offset
	for end < len(sp.data) && sp.data[end] != 0 {
		end++
	}
	return string(sp.data[offset:end]), true
}

// PoolFromBytes rebuilds a pool from its raw form, for the disassembler.
func PoolFromBytes(data []byte) *StringPool {
	sp := NewStringPool()
	start := 0
	for i, b := range data {
		if b == 0 {
			sp.Intern(string(data[start:i]))
			start = i + 1
		}
	}
	return sp
}
