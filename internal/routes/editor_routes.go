package routes

import (
	"route_editor/internal/controllers"
	"route_editor/internal/middleware"

	"github.com/gin-gonic/gin"
)

func EditorRoutes(r *gin.Engine, h *controllers.Handler) {
	sessions := r.Group("/admin/editor/sessions")
	sessions.Use(middleware.RequireAuthWithRole(middleware.RoleAdmin))
	{
		sessions.POST("", h.OpenSession)
		sessions.GET("/:sid", h.GetSession)
		sessions.DELETE("/:sid", h.CloseSession)
		sessions.PUT("/:sid/metadata", h.UpdateSessionMetadata)

		sessions.POST("/:sid/points", h.AddPoint)
		sessions.PATCH("/:sid/points/:index", h.UpdatePoint)
		sessions.PUT("/:sid/points/:index/position", h.MovePoint)
		sessions.DELETE("/:sid/points/:index", h.DeletePoint)
		sessions.POST("/:sid/points/delete", h.DeletePoints)

		sessions.POST("/:sid/selection", h.SetSelection)
		sessions.POST("/:sid/add-mode", h.SetAddMode)
		sessions.POST("/:sid/revert", h.RevertSession)
		sessions.POST("/:sid/save", h.SaveSession)
		sessions.POST("/:sid/preview", h.PreviewSession)
	}
}
