package metering

import (
	"github.com/porbit/orbital-gateway/internal/metering/service"
	"go.uber.org/fx"
)

var Module = fx.Module("metering.service",
	fx.Provide(service.New),
)
