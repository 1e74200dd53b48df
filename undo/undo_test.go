package undo

import "testing"

func TestPushRecordPopRoundTrip(t *testing.T) {
	x := 1
	var s Stack
	s.Push()
	old := x
	x = 2
	s.Record(Func(func() { x = old }))
	x = 3
	s.Record(Func(func() { x = 2 }))
	if x != 3 {
		t.Fatalf("x = %d, want 3", x)
	}
	s.Pop()
	if x != 1 {
		t.Fatalf("x = %d after Pop, want 1 (round trip to pre-push value)", x)
	}
	if s.Depth() != 0 {
		t.Fatalf("Depth() = %d, want 0", s.Depth())
	}
}

func TestNestedMilestones(t *testing.T) {
	var log []string
	var s Stack

	s.Push() // depth 1
	s.Record(Func(func() { log = append(log, "undo-a") }))

	s.Push() // depth 2
	s.Record(Func(func() { log = append(log, "undo-b") }))

	s.Pop() // back to depth 1, only "undo-b" fires
	if len(log) != 1 || log[0] != "undo-b" {
		t.Fatalf("log = %v, want [undo-b]", log)
	}
	if s.Depth() != 1 {
		t.Fatalf("Depth() = %d, want 1", s.Depth())
	}

	s.Pop() // back to depth 0
	if len(log) != 2 || log[1] != "undo-a" {
		t.Fatalf("log = %v, want [undo-b undo-a]", log)
	}
}

func TestRecordWithoutMilestonePanics(t *testing.T) {
	var s Stack
	defer func() {
		if recover() == nil {
			t.Fatal("expected invariant violation panic")
		}
	}()
	s.Record(Func(func() {}))
}

func TestPopWithoutMilestonePanics(t *testing.T) {
	var s Stack
	defer func() {
		if recover() == nil {
			t.Fatal("expected invariant violation panic")
		}
	}()
	s.Pop()
}

func TestPopTo(t *testing.T) {
	var n int
	var s Stack
	for i := 0; i < 5; i++ {
		s.Push()
		i := i
		s.Record(Func(func() { n = i }))
		n = i + 1
	}
	s.PopTo(2)
	if s.Depth() != 2 {
		t.Fatalf("Depth() = %d, want 2", s.Depth())
	}
	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}
}
