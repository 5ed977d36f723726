package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidTierCount = errors.New("invalid_pricing_options")
	ErrInvalidMargin    = errors.New("invalid_margin_percentage")
	ErrInvalidTier      = errors.New("invalid_pricing_tier")
)

var hundred = decimal.NewFromInt(100)

// DefaultMargins are the seed margins of a new budget, in percent.
var DefaultMargins = []float64{10, 15, 20}

// NewOptions seeds one option per margin with every derived field at zero.
func NewOptions(margins []float64) []PricingOption {
	if len(margins) != TierCount {
		margins = DefaultMargins
	}
	options := make([]PricingOption, 0, TierCount)
	for _, m := range margins {
		options = append(options, PricingOption{
			Quantity:         decimal.Zero,
			MarginPercentage: decimal.NewFromFloat(m),
			MarginAmount:     decimal.Zero,
			TotalCost:        decimal.Zero,
			ClientPrice:      decimal.Zero,
		})
	}
	return options
}

func DefaultOptions() []PricingOption {
	return NewOptions(DefaultMargins)
}

// RecalculateTier derives margin amount, total cost and client price from base.
// Client price equals total cost; Quantity takes no part.
func RecalculateTier(tier PricingOption, base decimal.Decimal) PricingOption {
	tier.MarginAmount = base.Mul(tier.MarginPercentage).Div(hundred)
	tier.TotalCost = base.Add(tier.MarginAmount)
	tier.ClientPrice = tier.TotalCost
	return tier
}

// RecalculateAll returns a copy of tiers with every tier recalculated.
func RecalculateAll(tiers []PricingOption, base decimal.Decimal) []PricingOption {
	out := make([]PricingOption, len(tiers))
	for i, tier := range tiers {
		out[i] = RecalculateTier(tier, base)
	}
	return out
}

// Validate checks the shape of a submitted option set.
func Validate(tiers []PricingOption) error {
	if len(tiers) != TierCount {
		return ErrInvalidTierCount
	}
	for _, tier := range tiers {
		if tier.MarginPercentage.IsNegative() {
			return ErrInvalidMargin
		}
	}
	return nil
}
