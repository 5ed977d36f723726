package domain

import "github.com/shopspring/decimal"

// Service seeds and prices option sets using the configured default margins.
type Service interface {
	Defaults() []PricingOption
	Recalculate(tiers []PricingOption, base decimal.Decimal) ([]PricingOption, error)
}
