package dtypes_test

import (
	"testing"

	"sunscript/source/dtypes"
)

func TestSet(t *testing.T) {
	s := dtypes.MakeFromSlice([]int{1, 2, 2, 3})
	if !s.Contains(2) || s.Contains(4) {
		t.Fatalf("set membership wrong")
	}
	s.Add(4)
	if !s.Contains(4) {
		t.Fatalf("add failed")
	}
}

func TestStack(t *testing.T) {
	st := dtypes.NewStack[string]()
	if _, ok := st.Pop(); ok {
		t.Fatalf("popped from an empty stack")
	}
	st.Push("a")
	st.Push("b")
	if top, ok := st.Peek(); !ok || top != "b" {
		t.Fatalf("peek gave %q", top)
	}
	if st.Len() != 2 {
		t.Fatalf("len is %d", st.Len())
	}
	if v, ok := st.Pop(); !ok || v != "b" {
		t.Fatalf("pop gave %q", v)
	}
	if top, _ := st.Peek(); top != "a" {
		t.Fatalf("stack order wrong")
	}
}
