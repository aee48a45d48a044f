package routes

import (
	"route_editor/internal/controllers"
	"route_editor/internal/middleware"

	"github.com/gin-gonic/gin"
)

func AdminRoutes(r *gin.Engine, h *controllers.Handler) {
	admin := r.Group("/admin")
	admin.Use(middleware.RequireAuthWithRole(middleware.RoleAdmin))
	{
		admin.POST("/routes", h.CreateRoute)
		admin.PUT("/routes/:id", h.UpdateRoute)
		admin.DELETE("/routes/:id", h.DeleteRoute)
	}
}
