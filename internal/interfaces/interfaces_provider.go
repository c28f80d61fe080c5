package interfaces

import (
	"github.com/google/wire"

	"jan-server/services/session-api/internal/interfaces/httpserver"
)

var InterfacesProvider = wire.NewSet(
	httpserver.NewHTTPServer,
)
