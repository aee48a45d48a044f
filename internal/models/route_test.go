package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"route_editor/internal/geo"
)

func TestRouteCoordinatesFollowPoints(t *testing.T) {
	r := Route{Points: []Point{
		{Latitude: -17.39, Longitude: -66.16, Name: "A"},
		{Latitude: -17.40, Longitude: -66.17, Name: "B"},
	}}

	assert.Equal(t, []geo.Coordinate{
		{Latitude: -17.39, Longitude: -66.16},
		{Latitude: -17.40, Longitude: -66.17},
	}, r.Coordinates())
	assert.Equal(t, 2, r.TotalPoints())
	assert.True(t, r.IsNew())
}

func TestReindex(t *testing.T) {
	pts := []Point{{Index: 4}, {Index: 9}, {Index: 0}}
	Reindex(pts)
	for i, p := range pts {
		assert.Equal(t, i, p.Index)
	}
}

func TestClonePointsIsIndependent(t *testing.T) {
	orig := []Point{{Name: "A"}}
	cp := ClonePoints(orig)
	cp[0].Name = "B"

	assert.Equal(t, "A", orig[0].Name)
	assert.NotNil(t, ClonePoints(nil))
	assert.True(t, EqualPoints(orig, []Point{{Name: "A"}}))
	assert.False(t, EqualPoints(orig, cp))
}

func TestColors(t *testing.T) {
	assert.Equal(t, DefaultColor, NormalizeColor(" "))
	assert.Equal(t, "#FF5722", NormalizeColor("ff5722"))
	assert.True(t, ValidColor("#00aa11"))
	assert.False(t, ValidColor("#00aa1"))
	assert.False(t, ValidColor("red"))
}
