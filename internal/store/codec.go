package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"route_editor/internal/geo"
	"route_editor/internal/models"
)

// encodePoints writes the canonical points column.
func encodePoints(points []models.Point) ([]byte, error) {
	docs := make([]pointDocument, len(points))
	for i, p := range points {
		docs[i] = pointDocument{
			Latitude:    p.Latitude,
			Longitude:   p.Longitude,
			Street:      p.Street,
			Name:        p.Name,
			Coordinates: geo.ToLngLat(p.Coordinate()),
		}
	}
	return json.Marshal(docs)
}

// encodeCoordinates writes the legacy {lat,lng} column. Nested arrays are never
// written here; older readers only understand objects.
func encodeCoordinates(coords []geo.Coordinate) ([]byte, error) {
	out := make([]geo.LegacyCoordinate, len(coords))
	for i, c := range coords {
		out[i] = geo.ToLegacy(c)
	}
	return json.Marshal(out)
}

// columns renders everything derived from route's points in one place, so
// points, coordinates, total_points and geometry are always written together.
func columns(route models.Route) (map[string]any, error) {
	points, err := encodePoints(route.Points)
	if err != nil {
		return nil, fmt.Errorf("failed to encode points: %w", err)
	}
	coords := route.Coordinates()
	legacy, err := encodeCoordinates(coords)
	if err != nil {
		return nil, fmt.Errorf("failed to encode coordinates: %w", err)
	}
	geometry, err := geo.EncodeWKB(coords)
	if err != nil {
		return nil, fmt.Errorf("failed to encode route geometry: %w", err)
	}

	return map[string]any{
		"name":         route.Name,
		"color":        models.NormalizeColor(route.Color),
		"points":       string(points),
		"coordinates":  string(legacy),
		"total_points": route.TotalPoints(),
		"public":       route.Public,
		"geometry":     geometry,
	}, nil
}

// decodeDocument reads a stored document leniently. Entries that cannot be
// resolved to a coordinate are dropped; when the points column is empty the
// legacy coordinates column is used instead.
func decodeDocument(doc RouteDocument) models.Route {
	points := decodePoints(doc.ID, doc.Points)
	if len(points) == 0 && len(doc.Coordinates) > 0 {
		for _, c := range geo.DecodeCoordinates(doc.Coordinates) {
			points = append(points, models.Point{Latitude: c.Latitude, Longitude: c.Longitude})
		}
	}
	models.Reindex(points)

	return models.Route{
		ID:        doc.ID,
		Name:      doc.Name,
		Color:     models.NormalizeColor(doc.Color),
		Points:    points,
		Public:    doc.Public,
		CreatedBy: doc.CreatedBy,
		UpdatedBy: doc.UpdatedBy,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func decodePoints(routeID string, raw []byte) []models.Point {
	points := []models.Point{}
	if len(raw) == 0 {
		return points
	}

	var entries []any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&entries); err != nil {
		logrus.WithError(err).WithField("route_id", routeID).Warn("Stored points are not a JSON array. Ignoring.")
		return points
	}

	for i, entry := range entries {
		c, ok := geo.Normalize(entry)
		if !ok {
			logrus.WithFields(logrus.Fields{
				"route_id": routeID,
				"position": i,
			}).Warn("Dropping stored point without a usable coordinate.")
			continue
		}
		p := models.Point{Latitude: c.Latitude, Longitude: c.Longitude}
		if m, ok := entry.(map[string]any); ok {
			p.Name, _ = m["name"].(string)
			p.Street, _ = m["street"].(string)
		}
		points = append(points, p)
	}
	return points
}
