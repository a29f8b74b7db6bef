package rng

import "testing"

func TestScript_queuesAndFallbacks(t *testing.T) {
	s := &Script{Floats: []float64{0.1}, Ints: []int{7, -3}}
	if v := s.Float64(); v != 0.1 {
		t.Fatalf("float=%v", v)
	}
	if v := s.Float64(); v != 0.99 {
		t.Fatalf("float fallback=%v", v)
	}
	if v := s.Intn(5); v != 2 {
		t.Fatalf("intn wraps: %d", v)
	}
	if v := s.Intn(5); v != 2 {
		t.Fatalf("intn negative wraps: %d", v)
	}
	if v := s.Intn(5); v != 0 {
		t.Fatalf("intn fallback=%d", v)
	}
}

func TestHelpers(t *testing.T) {
	if v := IntRange(&Script{Ints: []int{3}}, 10, 20); v != 13 {
		t.Fatalf("IntRange=%d", v)
	}
	if v := IntRange(&Script{Ints: []int{3}}, 5, 5); v != 5 {
		t.Fatalf("degenerate IntRange=%d", v)
	}
	if v := IntIncl(&Script{Ints: []int{11}}, 0, 10); v != 0 {
		t.Fatalf("IntIncl wraps at hi+1: %d", v)
	}
	if v := Uniform(&Script{Floats: []float64{0.5}}, 2, 4); v != 3 {
		t.Fatalf("Uniform=%v", v)
	}
	if Chance(&Script{Floats: []float64{0.5}}, 0.5) {
		t.Fatalf("Chance must be strict")
	}
	a, b := New(3), New(3)
	for i := 0; i < 10; i++ {
		if a.Float64() != b.Float64() {
			t.Fatalf("same seed diverged at %d", i)
		}
	}
}
