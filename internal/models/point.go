package models

import "route_editor/internal/geo"

// Point represents a stop along a route.
// Index mirrors the point's position in the owning route and is never used
// as identity; it is re-derived after every insert or delete.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Street    string  `json:"street"`
	Name      string  `json:"name"`
	Index     int     `json:"index"`
}

// Coordinate returns the canonical coordinate of the point.
func (p Point) Coordinate() geo.Coordinate {
	return geo.Coordinate{Latitude: p.Latitude, Longitude: p.Longitude}
}

// Reindex renumbers points so every index equals its position.
func Reindex(points []Point) {
	for i := range points {
		points[i].Index = i
	}
}

// ClonePoints returns an independent copy of points.
func ClonePoints(points []Point) []Point {
	if points == nil {
		return []Point{}
	}
	out := make([]Point, len(points))
	copy(out, points)
	return out
}

// EqualPoints reports whether two sequences hold the same points in the same order.
func EqualPoints(a, b []Point) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
