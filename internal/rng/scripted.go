package rng

import (
	"fmt"
	"sync"
)

// Scripted replays fixed draws in order. Floats feed Float64 and Ints feed
// IntN; an exhausted queue panics so a test notices an unexpected draw.
type Scripted struct {
	mu     sync.Mutex
	Floats []float64
	Ints   []int
}

func (s *Scripted) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Floats) == 0 {
		panic("rng: scripted Float64 exhausted")
	}
	v := s.Floats[0]
	s.Floats = s.Floats[1:]
	return v
}

func (s *Scripted) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Ints) == 0 {
		panic("rng: scripted IntN exhausted")
	}
	v := s.Ints[0]
	s.Ints = s.Ints[1:]
	if v < 0 || v >= n {
		panic(fmt.Sprintf("rng: scripted value %d outside [0,%d)", v, n))
	}
	return v
}

// Remaining reports how many scripted draws were not consumed.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Floats) + len(s.Ints)
}
