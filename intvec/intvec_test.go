package intvec

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestVectorPushPop(t *testing.T) {
	var v Vector
	v.Push(1)
	v.Push(2)
	v.Push(3)
	if diff := cmp.Diff(v.Slice(), []int{1, 2, 3}); diff != "" {
		t.Fatalf("Slice() mismatch (-got +want):\n%s", diff)
	}
	if got := v.Pop(); got != 3 {
		t.Fatalf("Pop() = %d, want 3", got)
	}
	if v.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", v.Len())
	}
}

func TestVectorRemoveSwap(t *testing.T) {
	var v Vector
	for _, x := range []int{10, 20, 30, 40} {
		v.Push(x)
	}
	v.RemoveSwap(1) // removes 20, swaps in 40
	if diff := cmp.Diff(v.Slice(), []int{10, 40, 30}); diff != "" {
		t.Fatalf("mismatch (-got +want):\n%s", diff)
	}
}

func TestVectorContains(t *testing.T) {
	var v Vector
	v.Push(5)
	v.Push(7)
	if !v.Contains(7) {
		t.Fatal("expected Contains(7) = true")
	}
	if v.Contains(9) {
		t.Fatal("expected Contains(9) = false")
	}
}

func TestStoreMintsMonotonicIDs(t *testing.T) {
	s := NewStore[string]()
	id1 := s.Add("a")
	id2 := s.Add("b")
	if id1 == id2 {
		t.Fatalf("ids not distinct: %d, %d", id1, id2)
	}
	if !s.Valid(id1) || !s.Valid(id2) {
		t.Fatal("minted ids should be valid")
	}
	if s.Valid(0) {
		t.Fatal("id 0 is reserved and should not be valid")
	}
	*s.Get(id1) = "a2"
	if got := *s.Get(id1); got != "a2" {
		t.Fatalf("Get(id1) = %q, want a2", got)
	}
}
