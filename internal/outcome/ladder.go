package outcome

import (
	"fmt"

	"guild-economy/internal/economy"
	"guild-economy/internal/rng"
)

type Band string

const (
	BandSuccess   Band = "success"
	BandFail      Band = "fail"
	BandDowngrade Band = "downgrade"
	BandDestroy   Band = "destroy"
)

// Tier holds the cost and band percentages of one enhancement attempt.
type Tier struct {
	Cost      int64 `yaml:"cost" json:"cost"`
	Success   int   `yaml:"success" json:"success"`
	Fail      int   `yaml:"fail" json:"fail"`
	Downgrade int   `yaml:"downgrade" json:"downgrade"`
	Destroy   int   `yaml:"destroy" json:"destroy"`
}

// Ladder is indexed by current tier. An item at tier len(Tiers) is maxed.
type Ladder struct {
	Item  string `yaml:"item" json:"item"`
	Tiers []Tier `yaml:"tiers" json:"tiers"`
}

func (l Ladder) MaxTier() int { return len(l.Tiers) }

func (l Ladder) Validate() error {
	if l.Item == "" {
		return fmt.Errorf("%w: ladder item is required", economy.ErrInvalidParameters)
	}
	if len(l.Tiers) == 0 {
		return fmt.Errorf("%w: ladder %s has no tiers", economy.ErrInvalidParameters, l.Item)
	}
	for n, t := range l.Tiers {
		if t.Success < 0 || t.Fail < 0 || t.Downgrade < 0 || t.Destroy < 0 {
			return fmt.Errorf("%w: ladder %s tier %d has a negative band", economy.ErrInvalidParameters, l.Item, n)
		}
		if sum := t.Success + t.Fail + t.Downgrade + t.Destroy; sum != 100 {
			return fmt.Errorf("%w: ladder %s tier %d bands sum to %d", economy.ErrInvalidParameters, l.Item, n, sum)
		}
		if t.Cost < 0 {
			return fmt.Errorf("%w: ladder %s tier %d has negative cost", economy.ErrInvalidParameters, l.Item, n)
		}
	}
	return nil
}

// Tier returns the row for an attempt from tier n.
func (l Ladder) Tier(n int) (Tier, error) {
	if n < 0 {
		return Tier{}, fmt.Errorf("%w: tier %d", economy.ErrInvalidParameters, n)
	}
	if n >= len(l.Tiers) {
		return Tier{}, economy.ErrMaxTierReached
	}
	return l.Tiers[n], nil
}

type EnhanceResult struct {
	Band Band
	From int
	To   int
	Roll int
}

// Enhance rolls [0, 100) for an attempt from tier n. Success owns the top
// Success% of the range; fail, downgrade and destroy are stacked upward from
// 0 in that order.
func Enhance(src rng.Source, l Ladder, n int) (EnhanceResult, error) {
	t, err := l.Tier(n)
	if err != nil {
		return EnhanceResult{}, err
	}
	roll := src.IntN(100)
	band := classify(t, roll)

	to := n
	switch band {
	case BandSuccess:
		to = min(n+1, l.MaxTier())
	case BandDowngrade:
		to = max(0, n-1)
	case BandDestroy:
		to = 0
	}
	return EnhanceResult{Band: band, From: n, To: to, Roll: roll}, nil
}

func classify(t Tier, roll int) Band {
	switch {
	case roll >= 100-t.Success:
		return BandSuccess
	case roll < t.Fail:
		return BandFail
	case roll < t.Fail+t.Downgrade:
		return BandDowngrade
	default:
		return BandDestroy
	}
}
