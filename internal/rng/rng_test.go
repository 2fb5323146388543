package rng

import "testing"

func TestDefaultRanges(t *testing.T) {
	src := Default()
	for i := 0; i < 2000; i++ {
		f := src.Float64()
		if f < 0 || f >= 1 {
			t.Fatalf("Float64() = %v, want [0,1)", f)
		}
		n := src.IntN(7)
		if n < 0 || n >= 7 {
			t.Fatalf("IntN(7) = %d, want [0,7)", n)
		}
	}
}

func TestSeededIsReproducible(t *testing.T) {
	a := NewSeeded(42)
	b := NewSeeded(42)
	for i := 0; i < 100; i++ {
		if a.IntN(10000) != b.IntN(10000) {
			t.Fatalf("seeded sources diverged at draw %d", i)
		}
	}
}

func TestScriptedReplaysInOrder(t *testing.T) {
	s := &Scripted{Floats: []float64{0.25}, Ints: []int{3, 9}}
	if got := s.IntN(10); got != 3 {
		t.Fatalf("first IntN = %d, want 3", got)
	}
	if got := s.Float64(); got != 0.25 {
		t.Fatalf("Float64 = %v, want 0.25", got)
	}
	if s.Remaining() != 1 {
		t.Fatalf("Remaining = %d, want 1", s.Remaining())
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range scripted value")
		}
	}()
	s.IntN(5)
}
