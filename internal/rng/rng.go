// Package rng provides the random sources used to resolve outcomes.
//
// Production code uses Default, which reads from crypto/rand. Tests inject
// NewSeeded for reproducible Monte-Carlo runs or Scripted for exact rolls.
package rng

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// IntN returns a value in [0, n). It panics if n <= 0.
	IntN(n int) int
}

type cryptoSource struct{}

func (cryptoSource) Float64() float64 {
	var buf [8]byte
	if _, err := cryptorand.Read(buf[:]); err != nil {
		panic("rng: crypto source unavailable: " + err.Error())
	}
	u := binary.BigEndian.Uint64(buf[:]) >> 11
	return float64(u) / (1 << 53)
}

func (cryptoSource) IntN(n int) int {
	if n <= 0 {
		panic("rng: IntN with non-positive bound")
	}
	return rand.New(cryptoUint64{}).IntN(n)
}

// cryptoUint64 adapts crypto/rand to math/rand/v2 so IntN gets unbiased
// rejection sampling for free.
type cryptoUint64 struct{}

func (cryptoUint64) Uint64() uint64 {
	var buf [8]byte
	if _, err := cryptorand.Read(buf[:]); err != nil {
		panic("rng: crypto source unavailable: " + err.Error())
	}
	return binary.BigEndian.Uint64(buf[:])
}

func Default() Source { return cryptoSource{} }

type seeded struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeeded returns a deterministic PCG-backed source. Safe for concurrent use.
func NewSeeded(seed uint64) Source {
	return &seeded{r: rand.New(rand.NewPCG(seed, 0))}
}

func (s *seeded) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

func (s *seeded) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}
