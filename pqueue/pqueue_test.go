package pqueue

import "testing"

func TestDedupQueueOrdering(t *testing.T) {
	weight := map[int]int{1: 5, 2: 9, 3: 1}
	q := New(func(a, b int) bool { return weight[a] > weight[b] })
	for _, k := range []int{1, 2, 3} {
		q.Insert(k)
	}
	var order []int
	for {
		k, ok := q.PopMax()
		if !ok {
			break
		}
		order = append(order, k)
	}
	want := []int{2, 1, 3}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestDedupQueueInsertPanicsOnDuplicate(t *testing.T) {
	q := New(func(a, b int) bool { return a > b })
	q.Insert(1)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate insert")
		}
	}()
	q.Insert(1)
}

func TestDedupQueueFixAndRemove(t *testing.T) {
	prio := map[int]int{1: 1, 2: 2}
	q := New(func(a, b int) bool { return prio[a] > prio[b] })
	q.Insert(1)
	q.Insert(2)
	prio[1] = 10
	q.Fix(1)
	k, _ := q.PopMax()
	if k != 1 {
		t.Fatalf("PopMax() = %d, want 1 after raising its priority", k)
	}
	q.Remove(2)
	if q.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", q.Len())
	}
}

func TestDedupQueueContains(t *testing.T) {
	q := New(func(a, b int) bool { return a < b })
	q.Insert(42)
	if !q.Contains(42) {
		t.Fatal("expected Contains(42)")
	}
	if q.Contains(7) {
		t.Fatal("did not expect Contains(7)")
	}
}
