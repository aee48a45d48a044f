package controllers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"route_editor/internal/geo"
	"route_editor/internal/middleware"
	"route_editor/internal/models"
)

// RouteResponse is a route as the manage-lines screen lists it. Geometry is a
// GeoJSON LineString; Coordinates is the legacy {lat,lng} sequence.
type RouteResponse struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Color       string                 `json:"color"`
	Public      bool                   `json:"public"`
	Builtin     bool                   `json:"builtin"`
	Points      []models.Point         `json:"points"`
	Coordinates []geo.LegacyCoordinate `json:"coordinates"`
	TotalPoints int                    `json:"total_points"`
	LengthM     float64                `json:"length_m"`
	Geometry    json.RawMessage        `json:"geometry,omitempty"`
	CreatedBy   string                 `json:"created_by,omitempty"`
	UpdatedBy   string                 `json:"updated_by,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// toRouteResponse converts a models.Route to a RouteResponse
func toRouteResponse(route models.Route) RouteResponse {
	coords := route.Coordinates()
	legacy := make([]geo.LegacyCoordinate, len(coords))
	for i, c := range coords {
		legacy[i] = geo.ToLegacy(c)
	}

	resp := RouteResponse{
		ID:          route.ID,
		Name:        route.Name,
		Color:       models.NormalizeColor(route.Color),
		Public:      route.Public,
		Builtin:     route.Builtin,
		Points:      models.ClonePoints(route.Points),
		Coordinates: legacy,
		TotalPoints: route.TotalPoints(),
		LengthM:     geo.PathLength(coords),
		CreatedBy:   route.CreatedBy,
		UpdatedBy:   route.UpdatedBy,
		CreatedAt:   route.CreatedAt,
		UpdatedAt:   route.UpdatedAt,
	}
	if len(coords) >= 2 {
		if wkbGeom, err := geo.EncodeWKB(coords); err == nil {
			if gj, err := geo.GeoJSON(wkbGeom); err == nil {
				resp.Geometry = json.RawMessage(gj)
			}
		}
	}
	return resp
}

type pointInput struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Name      string   `json:"name"`
	Street    string   `json:"street"`
}

func (p pointInput) toPoint() (models.Point, error) {
	if p.Latitude == nil {
		return models.Point{}, &models.ValidationError{Field: "latitude", Message: "is required"}
	}
	if p.Longitude == nil {
		return models.Point{}, &models.ValidationError{Field: "longitude", Message: "is required"}
	}
	if err := models.ValidateCoordinate(*p.Latitude, *p.Longitude); err != nil {
		return models.Point{}, err
	}
	return models.Point{
		Latitude:  *p.Latitude,
		Longitude: *p.Longitude,
		Name:      strings.TrimSpace(p.Name),
		Street:    strings.TrimSpace(p.Street),
	}, nil
}

// ListRoutes returns public routes, or every route for administrators.
func (h *Handler) ListRoutes(c *gin.Context) {
	routes, err := h.routes.List(c.Request.Context(), !middleware.IsAdmin(c))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]RouteResponse, len(routes))
	for i, r := range routes {
		out[i] = toRouteResponse(r)
	}
	c.JSON(http.StatusOK, out)
}

// GetRoute returns one route. Private routes are only visible to administrators.
func (h *Handler) GetRoute(c *gin.Context) {
	route, err := h.routes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !route.Public && !middleware.IsAdmin(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
		return
	}
	c.JSON(http.StatusOK, toRouteResponse(route))
}

// CreateRoute stores a route in one request. Points may be sent as canonical
// points or, for older clients, as a coordinates array in any accepted
// encoding.
func (h *Handler) CreateRoute(c *gin.Context) {
	var input struct {
		Name        string          `json:"name" binding:"required"`
		Color       string          `json:"color"`
		Public      bool            `json:"public"`
		Points      []pointInput    `json:"points"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		logrus.WithError(err).Warn("CreateRoute: invalid input payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	route := models.Route{
		Name:   strings.TrimSpace(input.Name),
		Color:  input.Color,
		Public: input.Public,
		Points: []models.Point{},
	}
	for _, in := range input.Points {
		p, err := in.toPoint()
		if err != nil {
			respondError(c, err)
			return
		}
		route.Points = append(route.Points, p)
	}
	if len(route.Points) == 0 && len(input.Coordinates) > 0 {
		for _, coord := range geo.DecodeCoordinates(input.Coordinates) {
			route.Points = append(route.Points, models.Point{Latitude: coord.Latitude, Longitude: coord.Longitude})
		}
	}
	models.Reindex(route.Points)

	saved, err := h.routes.Save(c.Request.Context(), route, middleware.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toRouteResponse(saved))
}

// UpdateRoute changes name, color or visibility of a stored route. A route
// that is open in an edit session is changed through that session instead, so
// the request is refused with 409.
func (h *Handler) UpdateRoute(c *gin.Context) {
	var input struct {
		Name   *string `json:"name"`
		Color  *string `json:"color"`
		Public *bool   `json:"public"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	id := c.Param("id")
	release, err := h.sessions.Hold(id)
	if err != nil {
		respondError(c, err)
		return
	}
	defer release()

	ctx := c.Request.Context()
	route, err := h.routes.Get(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if input.Name != nil {
		route.Name = strings.TrimSpace(*input.Name)
	}
	if input.Color != nil {
		route.Color = *input.Color
	}
	if input.Public != nil {
		route.Public = *input.Public
	}

	saved, err := h.routes.Save(ctx, route, middleware.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRouteResponse(saved))
}

// DeleteRoute removes a stored route for good and closes any edit session
// holding it.
func (h *Handler) DeleteRoute(c *gin.Context) {
	id := c.Param("id")
	if err := h.routes.Delete(c.Request.Context(), id, middleware.ActorID(c)); err != nil {
		respondError(c, err)
		return
	}
	if w, ok := h.sessions.ForRoute(id); ok {
		if err := h.sessions.Close(w.ID); err == nil {
			logrus.WithFields(logrus.Fields{"route_id": id, "session_id": w.ID}).Info("Closed edit session of deleted route.")
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Route deleted"})
}
