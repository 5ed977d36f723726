package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/costbook/internal/observability/metrics"
	"go.uber.org/fx"
)

func provideRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}

var Module = fx.Module("observability",
	fx.Provide(
		provideRegisterer,
		metrics.New,
	),
)
