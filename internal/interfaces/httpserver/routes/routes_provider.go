package routes

import (
	"github.com/google/wire"

	"jan-server/services/session-api/internal/interfaces/httpserver/handlers/conversationhandler"
	v1 "jan-server/services/session-api/internal/interfaces/httpserver/routes/v1"
	"jan-server/services/session-api/internal/interfaces/httpserver/routes/v1/conversation"
)

var RouteProvider = wire.NewSet(
	// Handlers
	conversationhandler.NewConversationHandler,

	// Routes
	v1.NewV1Route,
	conversation.NewConversationRoute,
)
