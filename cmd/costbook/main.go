package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/costbook/internal/clock"
	"github.com/smallbiznis/costbook/internal/config"
	"github.com/smallbiznis/costbook/internal/logger"
	"github.com/smallbiznis/costbook/internal/migration"
	"github.com/smallbiznis/costbook/internal/observability"
	"github.com/smallbiznis/costbook/internal/server"
	"github.com/smallbiznis/costbook/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP surface and the domain modules it serves
		server.Module,

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
