package pricefeed

import (
	pricefeeddomain "github.com/porbit/orbital-gateway/internal/pricefeed/domain"
	"github.com/porbit/orbital-gateway/internal/pricefeed/hermes"
	"github.com/porbit/orbital-gateway/internal/pricefeed/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricefeed.service",
	fx.Provide(
		fx.Annotate(hermes.New, fx.As(new(pricefeeddomain.Source))),
	),
	fx.Provide(service.New),
	fx.Invoke(service.Register),
)
