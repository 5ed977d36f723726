package pricetier

import (
	"github.com/smallbiznis/costbook/internal/pricetier/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricetier.service",
	fx.Provide(service.New),
)
