package routes

import (
	"route_editor/internal/controllers"
	"route_editor/internal/middleware"

	"github.com/gin-gonic/gin"
)

func RouteRoutes(r *gin.Engine, h *controllers.Handler) {
	authed := r.Group("")
	authed.Use(middleware.RequireAuth())
	{
		authed.GET("/routes", h.ListRoutes)
		authed.GET("/routes/:id", h.GetRoute)
		authed.GET("/directions", h.GetDirections)
	}
}
