package client

import (
	"github.com/smallbiznis/costbook/internal/client/repository"
	"github.com/smallbiznis/costbook/internal/client/service"
	"go.uber.org/fx"
)

var Module = fx.Module("client.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
