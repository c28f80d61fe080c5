//go:build wireinject

package main

import (
	"github.com/google/wire"

	"jan-server/services/session-api/internal/domain"
	"jan-server/services/session-api/internal/infrastructure"
	"jan-server/services/session-api/internal/interfaces"
	"jan-server/services/session-api/internal/interfaces/httpserver/routes"
)

func CreateApplication() (*Application, func(), error) {
	wire.Build(
		domain.ServiceProvider,
		infrastructure.InfrastructureProvider,
		routes.RouteProvider,
		interfaces.InterfacesProvider,
		wire.Struct(new(Application), "*"),
	)
	return nil, nil, nil
}
