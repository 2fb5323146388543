// Package outcome resolves wagers into results. Every function is pure apart
// from the draws it takes from the supplied rng.Source, and validates its
// inputs before the first draw so a rejected request never consumes
// randomness.
package outcome

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
