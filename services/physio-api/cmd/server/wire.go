//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"physio-server/services/physio-api/internal/domain"
	"physio-server/services/physio-api/internal/infrastructure"
	"physio-server/services/physio-api/internal/interfaces"
)

func CreateApplication(ctx context.Context) (*Application, func(), error) {
	wire.Build(
		domain.ServiceProvider,
		infrastructure.InfrastructureProvider,
		interfaces.InterfacesProvider,
		NewApplication,
	)
	return nil, nil, nil
}
