package budget

import (
	"github.com/smallbiznis/costbook/internal/budget/repository"
	"github.com/smallbiznis/costbook/internal/budget/service"
	lineitemrepository "github.com/smallbiznis/costbook/internal/lineitem/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("budget.service",
	fx.Provide(repository.Provide),
	fx.Provide(lineitemrepository.Provide),
	fx.Provide(service.New),
)
