package main

import (
	"github.com/porbit/orbital-gateway/internal/server"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		server.Module,
	)
	app.Run()
}
