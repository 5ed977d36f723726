package service

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/costbook/internal/config"
	pricetierdomain "github.com/smallbiznis/costbook/internal/pricetier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Pricing *config.PricingConfigHolder `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	pricing *config.PricingConfigHolder
}

func New(p Params) pricetierdomain.Service {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		log:     log.Named("pricetier.service"),
		pricing: p.Pricing,
	}
}

func (s *Service) Defaults() []pricetierdomain.PricingOption {
	return pricetierdomain.NewOptions(s.pricing.Get().DefaultMargins)
}

func (s *Service) Recalculate(tiers []pricetierdomain.PricingOption, base decimal.Decimal) ([]pricetierdomain.PricingOption, error) {
	if err := pricetierdomain.Validate(tiers); err != nil {
		return nil, err
	}
	return pricetierdomain.RecalculateAll(tiers, base), nil
}
