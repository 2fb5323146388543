package outcome

import (
	"fmt"
	"math"

	"guild-economy/internal/economy"
	"guild-economy/internal/rng"
)

// DuelCurve maps two power levels to the first participant's win
// probability. Implementations are non-decreasing in a and stay inside
// Bounds.
type DuelCurve interface {
	Probability(a, b int) float64
	Bounds() (lo, hi float64)
}

type LinearCurve struct {
	Slope float64
	Lo    float64
	Hi    float64
}

func (c LinearCurve) Probability(a, b int) float64 {
	return clampFloat(0.5+c.Slope*float64(a-b), c.Lo, c.Hi)
}

func (c LinearCurve) Bounds() (float64, float64) { return c.Lo, c.Hi }

type LogisticCurve struct {
	K  float64
	Lo float64
	Hi float64
}

func (c LogisticCurve) Probability(a, b int) float64 {
	return clampFloat(1/(1+math.Exp(-c.K*float64(a-b))), c.Lo, c.Hi)
}

func (c LogisticCurve) Bounds() (float64, float64) { return c.Lo, c.Hi }

// NewDuelCurve builds the named curve family with its default clamp.
func NewDuelCurve(name string, slope, k float64) (DuelCurve, error) {
	switch name {
	case "linear", "":
		if slope < 0 {
			return nil, fmt.Errorf("%w: negative duel slope", economy.ErrInvalidParameters)
		}
		return LinearCurve{Slope: slope, Lo: 0.10, Hi: 0.90}, nil
	case "logistic":
		if k < 0 {
			return nil, fmt.Errorf("%w: negative logistic k", economy.ErrInvalidParameters)
		}
		return LogisticCurve{K: k, Lo: 0.02, Hi: 0.985}, nil
	default:
		return nil, fmt.Errorf("%w: unknown duel curve %q", economy.ErrInvalidParameters, name)
	}
}

type DuelResult struct {
	AWins       bool
	Probability float64
	Roll        float64
}

// Duel is a single Bernoulli draw against curve.Probability(a, b).
func Duel(src rng.Source, curve DuelCurve, a, b int) DuelResult {
	p := curve.Probability(a, b)
	roll := src.Float64()
	return DuelResult{AWins: roll < p, Probability: p, Roll: roll}
}
