package routes

import (
	"net/http"

	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"

	"route_editor/internal/controllers"
)

func SetupRouter(h *controllers.Handler) *gin.Engine {
	r := gin.New()
	r.Use(ginlog.SetLogger(ginlog.WithSkipPath([]string{"/healthz"})))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	RouteRoutes(r, h)
	AdminRoutes(r, h)
	EditorRoutes(r, h)
	WebSocketRoutes(r, h)

	return r
}
