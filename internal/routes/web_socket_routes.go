package routes

import (
	"route_editor/internal/controllers"
	"route_editor/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Browsers cannot set headers on websocket upgrades, so both endpoints take
// the token as a query parameter.
func WebSocketRoutes(r *gin.Engine, h *controllers.Handler) {
	wsRoutes := r.Group("/ws")
	{
		wsRoutes.GET("/editor/:sid", middleware.RequireAuthWithRole(middleware.RoleAdmin), h.EditorWebSocket)
		wsRoutes.GET("/routes", middleware.RequireAuth(), h.RoutesWebSocket)
	}
}
