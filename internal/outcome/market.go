package outcome

import (
	"fmt"
	"math"

	"guild-economy/internal/economy"
	"guild-economy/internal/rng"

	"github.com/shopspring/decimal"
)

type InstrumentKind string

const (
	KindStock InstrumentKind = "stock"
	KindCoin  InstrumentKind = "coin"
)

// Bucket is one weighted return range. Low and High are percentages.
type Bucket struct {
	Weight float64 `yaml:"weight" json:"weight"`
	Low    float64 `yaml:"low" json:"low"`
	High   float64 `yaml:"high" json:"high"`
}

type Instrument struct {
	Symbol string         `yaml:"symbol" json:"symbol"`
	Name   string         `yaml:"name" json:"name"`
	Kind   InstrumentKind `yaml:"kind" json:"kind"`
	// DesignedEV is the documented expected return in percent. Validate
	// rejects tables whose buckets do not produce it.
	DesignedEV float64  `yaml:"designed_ev" json:"designed_ev"`
	Buckets    []Bucket `yaml:"buckets" json:"buckets"`
}

const evTolerance = 0.01

func (in Instrument) totalWeight() float64 {
	total := 0.0
	for _, b := range in.Buckets {
		total += b.Weight
	}
	return total
}

// ExpectedReturn is the weighted mean of the bucket midpoints, in percent.
func (in Instrument) ExpectedReturn() float64 {
	total := in.totalWeight()
	if total <= 0 {
		return 0
	}
	ev := 0.0
	for _, b := range in.Buckets {
		ev += b.Weight / total * (b.Low + b.High) / 2
	}
	return ev
}

func (in Instrument) Validate() error {
	if in.Symbol == "" {
		return fmt.Errorf("%w: instrument symbol is required", economy.ErrInvalidParameters)
	}
	switch in.Kind {
	case KindStock, KindCoin:
	default:
		return fmt.Errorf("%w: instrument %s has unknown kind %q", economy.ErrInvalidParameters, in.Symbol, in.Kind)
	}
	if len(in.Buckets) == 0 {
		return fmt.Errorf("%w: instrument %s has no buckets", economy.ErrInvalidParameters, in.Symbol)
	}
	for i, b := range in.Buckets {
		if !(b.Weight > 0) || math.IsInf(b.Weight, 0) {
			return fmt.Errorf("%w: instrument %s bucket %d weight must be positive", economy.ErrInvalidParameters, in.Symbol, i)
		}
		if !(b.Low < b.High) {
			return fmt.Errorf("%w: instrument %s bucket %d needs low < high", economy.ErrInvalidParameters, in.Symbol, i)
		}
	}
	if ev := in.ExpectedReturn(); math.Abs(ev-in.DesignedEV) > evTolerance {
		return fmt.Errorf("%w: instrument %s designed_ev %.3f but buckets give %.3f", economy.ErrInvalidParameters, in.Symbol, in.DesignedEV, ev)
	}
	return nil
}

type MarketResult struct {
	Bucket    int
	ReturnPct decimal.Decimal
	PnL       int64
}

// Market picks a bucket by cumulative weight, draws a return uniformly in
// [Low, High) rounded to 0.1, and prices it against wager with banker's
// rounding.
func Market(src rng.Source, in Instrument, wager int64) (MarketResult, error) {
	if err := in.Validate(); err != nil {
		return MarketResult{}, err
	}
	if wager <= 0 {
		return MarketResult{}, economy.ErrNonPositiveAmount
	}

	draw := src.Float64() * in.totalWeight()
	idx := len(in.Buckets) - 1
	cum := 0.0
	for i, b := range in.Buckets {
		cum += b.Weight
		if cum > draw {
			idx = i
			break
		}
	}
	b := in.Buckets[idx]
	raw := b.Low + (b.High-b.Low)*src.Float64()
	ret := decimal.NewFromFloat(raw).Round(1)
	pnl := decimal.NewFromInt(wager).Mul(ret).Div(decimal.NewFromInt(100)).RoundBank(0)
	return MarketResult{Bucket: idx, ReturnPct: ret, PnL: pnl.IntPart()}, nil
}
