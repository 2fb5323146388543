package outcome

import (
	"fmt"

	"guild-economy/internal/economy"
	"guild-economy/internal/rng"

	"github.com/shopspring/decimal"
)

type BankruptcyResult struct {
	Roll      int
	Ratio     decimal.Decimal
	Recovered int64
}

var (
	ratioFull = decimal.NewFromInt(1)
	ratioNone = decimal.Zero
	ratioHalf = decimal.NewFromFloat(0.5)
)

// Bankruptcy rolls [0, 1000) to decide how much of debt is forgiven: below
// 30 all of it, below 80 none, otherwise half rounded to even.
func Bankruptcy(src rng.Source, debt int64) (BankruptcyResult, error) {
	if debt <= 0 {
		return BankruptcyResult{}, fmt.Errorf("%w: debt must be positive", economy.ErrNoDebt)
	}
	roll := src.IntN(1000)
	ratio := ratioHalf
	switch {
	case roll < 30:
		ratio = ratioFull
	case roll < 80:
		ratio = ratioNone
	}
	recovered := decimal.NewFromInt(debt).Mul(ratio).RoundBank(0).IntPart()
	return BankruptcyResult{Roll: roll, Ratio: ratio, Recovered: recovered}, nil
}
