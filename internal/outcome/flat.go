package outcome

import (
	"guild-economy/internal/economy"
	"guild-economy/internal/rng"
)

const bpsScale = 10000

type FlatParams struct {
	LoBPS int
	HiBPS int
	Force economy.ForceMode
}

type FlatResult struct {
	Win            bool
	ProbabilityBPS int
	// Roll is -1 when the result was forced.
	Roll   int
	Forced bool
}

// FlatOdds draws a per-round win probability from [LoBPS, HiBPS] and then a
// roll in [0, 10000); the wager wins iff roll < probability. A forced mode
// still draws the probability so it can be recorded, but skips the roll.
func FlatOdds(src rng.Source, p FlatParams) FlatResult {
	lo := clampInt(p.LoBPS, 0, bpsScale)
	hi := clampInt(p.HiBPS, 0, bpsScale)
	if hi < lo {
		lo, hi = hi, lo
	}
	prob := lo + src.IntN(hi-lo+1)

	switch p.Force {
	case economy.ForceSuccess:
		return FlatResult{Win: true, ProbabilityBPS: prob, Roll: -1, Forced: true}
	case economy.ForceFail:
		return FlatResult{Win: false, ProbabilityBPS: prob, Roll: -1, Forced: true}
	}
	roll := src.IntN(bpsScale)
	return FlatResult{Win: roll < prob, ProbabilityBPS: prob, Roll: roll}
}
