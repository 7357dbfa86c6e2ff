package slots

import "testing"

func TestAllocateLowIndexFirst(t *testing.T) {
	tbl := NewTable(8, nil)

	mask, err := tbl.Allocate(3)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if mask != 0b111 {
		t.Fatalf("expected mask 0b111, got %b", mask)
	}
	if tbl.FreeSlots() != 5 {
		t.Fatalf("expected 5 free slots, got %d", tbl.FreeSlots())
	}
}

func TestAllocateExhaustion(t *testing.T) {
	tbl := NewTable(4, nil)
	if _, err := tbl.Allocate(4); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if _, err := tbl.Allocate(1); err == nil {
		t.Fatalf("expected invariant violation when no slots are free")
	}
	if tbl.FreeSlots() != 0 {
		t.Fatalf("partial allocation must roll back, got %d free", tbl.FreeSlots())
	}
}

func TestReleaseFreesExactBits(t *testing.T) {
	tbl := NewTable(8, nil)
	maskA, _ := tbl.Allocate(2)
	_, _ = tbl.Allocate(2)

	tbl.Release(maskA)
	if tbl.FreeSlots() != 6 {
		t.Fatalf("expected 6 free slots after release, got %d", tbl.FreeSlots())
	}

	maskC, err := tbl.Allocate(2)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if maskC != maskA {
		t.Fatalf("expected reused low-index slots %b, got %b", maskA, maskC)
	}
}

func TestExclusivity(t *testing.T) {
	tbl := NewTable(8, nil)
	a, _ := tbl.Allocate(4)
	b, _ := tbl.Allocate(4)
	if a&b != 0 {
		t.Fatalf("expected disjoint masks, got a=%b b=%b", a, b)
	}
}
