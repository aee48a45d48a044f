package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"route_editor/internal/directions"
	"route_editor/internal/editor"
	"route_editor/internal/geo"
	"route_editor/internal/models"
	"route_editor/internal/store"
)

// RouteRepository is the route store as the HTTP layer sees it.
type RouteRepository interface {
	Save(ctx context.Context, route models.Route, actor string) (models.Route, error)
	Delete(ctx context.Context, id, actor string) error
	Get(ctx context.Context, id string) (models.Route, error)
	List(ctx context.Context, publicOnly bool) ([]models.Route, error)
}

// PathService computes paths for the directions endpoint.
type PathService interface {
	RouteOrFallback(ctx context.Context, from, to geo.Coordinate, profile string) directions.Result
}

// Handler carries the dependencies of every HTTP handler.
type Handler struct {
	routes   RouteRepository
	sessions *editor.Registry
	paths    PathService
	feed     *store.Feed
}

// NewHandler wires the handlers. feed may be nil, in which case the live
// route feed is unavailable.
func NewHandler(routes RouteRepository, sessions *editor.Registry, paths PathService, feed *store.Feed) *Handler {
	return &Handler{
		routes:   routes,
		sessions: sessions,
		paths:    paths,
		feed:     feed,
	}
}

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusBadGateway
	msg := "Route store unavailable: " + err.Error()

	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		status, msg = http.StatusBadRequest, "Invalid input: "+err.Error()
	case errors.Is(err, editor.ErrIndexOutOfRange):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, store.ErrRouteNotFound), errors.Is(err, editor.ErrSessionNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, editor.ErrSaveInProgress), errors.Is(err, editor.ErrRouteBusy),
		errors.Is(err, store.ErrBuiltinRoute):
		status, msg = http.StatusConflict, err.Error()
	}

	entry := logrus.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
		"status": status,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed.")
	} else {
		entry.Warn("Request rejected.")
	}
	c.JSON(status, gin.H{"error": msg})
}
