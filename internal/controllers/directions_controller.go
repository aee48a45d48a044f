package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"route_editor/internal/geo"
	"route_editor/internal/models"
)

// parseLatLng reads a "lat,lng" query value.
func parseLatLng(field, raw string) (geo.Coordinate, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return geo.Coordinate{}, &models.ValidationError{Field: field, Message: "must be \"lat,lng\""}
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return geo.Coordinate{}, &models.ValidationError{Field: field, Message: "must be \"lat,lng\""}
	}
	if err := models.ValidateCoordinate(lat, lng); err != nil {
		return geo.Coordinate{}, err
	}
	return geo.Coordinate{Latitude: lat, Longitude: lng}, nil
}

// GetDirections returns a path between two coordinates. When the directions
// service cannot answer, a straight line is returned with fallback set.
func (h *Handler) GetDirections(c *gin.Context) {
	from, err := parseLatLng("from", c.Query("from"))
	if err != nil {
		respondError(c, err)
		return
	}
	to, err := parseLatLng("to", c.Query("to"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.paths.RouteOrFallback(c.Request.Context(), from, to, c.Query("profile")))
}
