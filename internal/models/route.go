package models

import (
	"regexp"
	"strings"
	"time"

	"route_editor/internal/geo"
)

// DefaultColor is used when a route is saved without a color.
const DefaultColor = "#FF5722"

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Route represents a named, colored transport line made of ordered points.
// The legacy coordinate sequence is always derived from Points, never stored
// alongside it.
type Route struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Points    []Point   `json:"points"`
	Public    bool      `json:"public"`
	Builtin   bool      `json:"builtin,omitempty"`
	CreatedBy string    `json:"created_by,omitempty"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Coordinates returns the coordinate-only sequence in point order.
func (r Route) Coordinates() []geo.Coordinate {
	out := make([]geo.Coordinate, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Coordinate()
	}
	return out
}

// TotalPoints is the cached point count written alongside the route.
func (r Route) TotalPoints() int {
	return len(r.Points)
}

// IsNew reports whether the route has never been persisted.
func (r Route) IsNew() bool {
	return r.ID == ""
}

// NormalizeColor upper-cases a hex color and falls back to DefaultColor.
func NormalizeColor(color string) string {
	color = strings.TrimSpace(color)
	if color == "" {
		return DefaultColor
	}
	if !strings.HasPrefix(color, "#") {
		color = "#" + color
	}
	return strings.ToUpper(color)
}

// ValidColor reports whether color is a #RRGGBB hex string.
func ValidColor(color string) bool {
	return hexColor.MatchString(color)
}
