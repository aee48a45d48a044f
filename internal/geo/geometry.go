package geo

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"
)

const earthRadius = 6371000 // metres

// Distance returns the great-circle distance between two coordinates in metres.
func Distance(a, b Coordinate) float64 {
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Latitude))*math.Cos(toRadians(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadius * c
}

// PathLength sums the distances between consecutive coordinates.
func PathLength(coords []Coordinate) float64 {
	var total float64
	for i := 1; i < len(coords); i++ {
		total += Distance(coords[i-1], coords[i])
	}
	return total
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// LineString builds a WGS84 line from coordinates in path order.
func LineString(coords []Coordinate) (*geom.LineString, error) {
	if len(coords) < 2 {
		return nil, errors.New("a line needs at least 2 coordinates")
	}
	flat := make([]geom.Coord, len(coords))
	for i, c := range coords {
		flat[i] = geom.Coord{c.Longitude, c.Latitude}
	}
	ls, err := geom.NewLineString(geom.XY).SetCoords(flat)
	if err != nil {
		return nil, err
	}
	return ls.SetSRID(4326), nil
}

// EncodeWKB renders coords as a little-endian WKB LineString.
func EncodeWKB(coords []Coordinate) ([]byte, error) {
	ls, err := LineString(coords)
	if err != nil {
		return nil, err
	}
	return wkb.Marshal(ls, binary.LittleEndian)
}

// DecodeWKB reads a WKB LineString back into coordinates.
func DecodeWKB(b []byte) ([]Coordinate, error) {
	if len(b) == 0 {
		return nil, nil
	}
	g, err := wkb.Unmarshal(b)
	if err != nil {
		return nil, err
	}
	ls, ok := g.(*geom.LineString)
	if !ok {
		return nil, errors.New("geometry is not a LineString")
	}
	out := make([]Coordinate, 0, ls.NumCoords())
	for _, c := range ls.Coords() {
		out = append(out, Coordinate{Latitude: c.Y(), Longitude: c.X()})
	}
	return out, nil
}

// GeoJSON converts WKB bytes into a GeoJSON geometry string.
func GeoJSON(wkbBytes []byte) (string, error) {
	if len(wkbBytes) == 0 {
		return "", nil
	}
	g, err := wkb.Unmarshal(wkbBytes)
	if err != nil {
		return "", err
	}
	b, err := gjson.Marshal(g)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
