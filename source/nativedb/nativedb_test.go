package nativedb_test

import (
	"testing"

	"sunscript/source/nativedb"
)

func TestResolve(t *testing.T) {
	db := nativedb.NewInMemory()
	db.Register(nativedb.Def{Hash: 0x1111, Name: "WAIT", Signature: "PROC WAIT(INT ms)"})
	def, ok := db.Resolve(0x1111)
	if !ok || def.Name != "WAIT" {
		t.Fatalf("resolve failed: %#v", def)
	}
	if _, ok := db.Resolve(0x2222); ok {
		t.Fatalf("resolved a hash that was never registered")
	}
	if def, ok := db.ResolveByName("WAIT"); !ok || def.Hash != 0x1111 {
		t.Fatalf("resolve by name failed")
	}
}

func TestResolveOriginalWalksTranslations(t *testing.T) {
	db := nativedb.NewInMemory()
	// Three generations of the same native.
	db.AddTranslation(0x3333, 0x2222)
	db.AddTranslation(0x2222, 0x1111)
	if got := db.ResolveOriginal(0x3333); got != 0x1111 {
		t.Fatalf("original of 0x3333 is %#x, want 0x1111", got)
	}
	if got := db.ResolveOriginal(0x1111); got != 0x1111 {
		t.Fatalf("a hash with no translations must be its own original")
	}
}

func TestResolveOriginalSurvivesCycles(t *testing.T) {
	db := nativedb.NewInMemory()
	db.AddTranslation(0xAA, 0xBB)
	db.AddTranslation(0xBB, 0xAA)
	// A corrupt table must not hang; any member of the cycle will do.
	got := db.ResolveOriginal(0xAA)
	if got != 0xAA && got != 0xBB {
		t.Fatalf("cycle walk returned %#x", got)
	}
}

func TestOriginalHashShortCircuit(t *testing.T) {
	db := nativedb.NewInMemory()
	db.Register(nativedb.Def{Hash: 0x9999, OriginalHash: 0x1234, Name: "THING"})
	if got := db.ResolveOriginal(0x9999); got != 0x1234 {
		t.Fatalf("original is %#x, want the def's original hash", got)
	}
}

func TestJoaat(t *testing.T) {
	if nativedb.Joaat("") != 0 {
		t.Errorf("hash of the empty string is %#x, want 0", nativedb.Joaat(""))
	}
	if nativedb.Joaat("WAIT") != nativedb.Joaat("wait") {
		t.Errorf("joaat must be case-insensitive")
	}
	if nativedb.Joaat("wait") == nativedb.Joaat("main") {
		t.Errorf("distinct names collided; the hash is broken")
	}
}
