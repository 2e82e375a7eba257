package vm_test

import (
	"testing"

	"sunscript/source/vm"
)

func TestEncodingRoundTrip(t *testing.T) {
	code := vm.AppendU16(nil, 0xBEEF)
	if vm.U16At(code, 0) != 0xBEEF {
		t.Errorf("u16 round trip failed")
	}
	code = vm.AppendU24(nil, 0xABCDEF)
	if vm.U24At(code, 0) != 0xABCDEF {
		t.Errorf("u24 round trip failed")
	}
	code = vm.AppendS16(nil, -2)
	if vm.S16At(code, 0) != -2 {
		t.Errorf("s16 round trip failed")
	}
	code = vm.AppendF32(nil, 1.5)
	if vm.F32At(code, 0) != 1.5 {
		t.Errorf("f32 round trip failed")
	}
}

func TestLittleEndianness(t *testing.T) {
	code := vm.AppendU16(nil, 0x1234)
	if code[0] != 0x34 || code[1] != 0x12 {
		t.Fatalf("u16 is not little-endian: % x", code)
	}
}

func TestInstructionLength(t *testing.T) {
	tests := []struct {
		code []byte
		want int
	}{
		{[]byte{byte(vm.NOP)}, 1},
		{[]byte{byte(vm.PUSH_CONST_U8), 7}, 2},
		{[]byte{byte(vm.PUSH_CONST_U32), 1, 2, 3, 4}, 5},
		{[]byte{byte(vm.J), 0, 0}, 3},
		{[]byte{byte(vm.CALL), 0, 0, 0}, 4},
		{[]byte{byte(vm.NATIVE), 4, 0, 0}, 4},
		{[]byte{byte(vm.ENTER), 0, 2, 0, 3, 'a', 'b', 'c'}, 8},
		{[]byte{byte(vm.SWITCH), 2, 1, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0}, 14},
		{[]byte{byte(vm.LEAVE), 0, 0}, 3},
	}
	for _, test := range tests {
		if got := vm.InstructionLength(test.code, 0); got != test.want {
			t.Errorf("%v has length %d, want %d", vm.Ops[vm.Opcode(test.code[0])].Name, got, test.want)
		}
	}
}

func TestStringPool(t *testing.T) {
	pool := vm.NewStringPool()
	a := pool.Intern("alpha")
	b := pool.Intern("beta")
	if a != 0 || b != len("alpha")+1 {
		t.Fatalf("offsets %d, %d", a, b)
	}
	if pool.Intern("alpha") != a {
		t.Fatalf("interning is not idempotent")
	}
	if s, ok := pool.At(b); !ok || s != "beta" {
		t.Fatalf("At(%d) = %q", b, s)
	}
	raw := pool.Bytes()
	rebuilt := vm.PoolFromBytes(raw)
	if string(rebuilt.Bytes()) != string(raw) {
		t.Fatalf("pool does not survive a byte round trip")
	}
}

func TestPages(t *testing.T) {
	p := &vm.Program{Code: make([]byte, vm.PageSize+10)}
	pages := p.Pages()
	if len(pages) != 2 || len(pages[0]) != vm.PageSize || len(pages[1]) != 10 {
		t.Fatalf("paging wrong: %d pages", len(pages))
	}
}

func TestGlobalAddress(t *testing.T) {
	addr := vm.GlobalAddress(5, 7)
	if addr != 5<<18|7 {
		t.Fatalf("address is %#x", addr)
	}
}
