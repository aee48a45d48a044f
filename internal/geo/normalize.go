package geo

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Coordinate is the canonical in-memory coordinate shape.
// Every encoding read from the route store is converted into this once, at the
// read boundary.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LatLng is satisfied by GeoPoint-like values exposing accessor methods.
type LatLng interface {
	Latitude() float64
	Longitude() float64
}

// Valid reports whether c holds finite coordinates inside the WGS84 ranges.
func (c Coordinate) Valid() bool {
	return IsFinite(c.Latitude) && IsFinite(c.Longitude) &&
		c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// IsFinite reports whether f is neither NaN nor infinite.
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Normalize converts a single coordinate in any accepted encoding:
//
//	[lng, lat]                       array of two numbers
//	{"lat": .., "lng": ..}           legacy object
//	{"latitude": .., "longitude": ..} canonical object
//	{"_latitude": .., "_longitude": ..} serialized GeoPoint
//	{"geopoint"|"location"|"coordinates": <any of the above>}
//	a value implementing LatLng
//
// The second return value is false when v cannot be resolved.
func Normalize(v any) (Coordinate, bool) {
	c, ok := normalize(v, 0)
	if !ok || !c.Valid() {
		return Coordinate{}, false
	}
	return c, true
}

// NormalizeAll converts a sequence of coordinates. Entries that cannot be
// resolved are dropped and logged; the call never fails.
func NormalizeAll(v any) []Coordinate {
	items, ok := asSlice(v)
	if !ok {
		if c, ok := Normalize(v); ok {
			return []Coordinate{c}
		}
		if v != nil {
			logrus.WithField("value", v).Warn("geo: dropping unresolvable coordinate collection")
		}
		return []Coordinate{}
	}

	out := make([]Coordinate, 0, len(items))
	for i, item := range items {
		c, ok := Normalize(item)
		if !ok {
			logrus.WithFields(logrus.Fields{
				"position": i,
				"value":    item,
			}).Warn("geo: dropping unresolvable coordinate")
			continue
		}
		out = append(out, c)
	}
	return out
}

// DecodeCoordinates decodes a JSON document holding a coordinate sequence.
// Malformed JSON yields an empty sequence.
func DecodeCoordinates(raw []byte) []Coordinate {
	if len(raw) == 0 {
		return []Coordinate{}
	}
	var v any
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		logrus.WithError(err).Warn("geo: coordinate document is not valid JSON")
		return []Coordinate{}
	}
	return NormalizeAll(v)
}

// ToLngLat returns the [lng, lat] array form.
func ToLngLat(c Coordinate) [2]float64 {
	return [2]float64{c.Longitude, c.Latitude}
}

// LegacyCoordinate is the {lat, lng} object form kept for older consumers.
type LegacyCoordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ToLegacy returns the {lat, lng} object form.
func ToLegacy(c Coordinate) LegacyCoordinate {
	return LegacyCoordinate{Lat: c.Latitude, Lng: c.Longitude}
}

const maxNesting = 4

func normalize(v any, depth int) (Coordinate, bool) {
	if v == nil || depth > maxNesting {
		return Coordinate{}, false
	}

	switch t := v.(type) {
	case Coordinate:
		return t, true
	case *Coordinate:
		if t == nil {
			return Coordinate{}, false
		}
		return *t, true
	case LegacyCoordinate:
		return Coordinate{Latitude: t.Lat, Longitude: t.Lng}, true
	case LatLng:
		return Coordinate{Latitude: t.Latitude(), Longitude: t.Longitude()}, true
	case map[string]any:
		return fromMap(t, depth)
	}

	if m, ok := asMap(v); ok {
		return fromMap(m, depth)
	}

	if items, ok := asSlice(v); ok {
		if len(items) < 2 {
			return Coordinate{}, false
		}
		lng, ok1 := toFloat(items[0])
		lat, ok2 := toFloat(items[1])
		if !ok1 || !ok2 {
			return Coordinate{}, false
		}
		return Coordinate{Latitude: lat, Longitude: lng}, true
	}
	return Coordinate{}, false
}

func fromMap(m map[string]any, depth int) (Coordinate, bool) {
	pairs := [][2]string{
		{"latitude", "longitude"},
		{"lat", "lng"},
		{"lat", "lon"},
		{"_latitude", "_longitude"},
	}
	for _, p := range pairs {
		latV, hasLat := m[p[0]]
		lngV, hasLng := m[p[1]]
		if !hasLat || !hasLng {
			continue
		}
		lat, ok1 := toFloat(latV)
		lng, ok2 := toFloat(lngV)
		if ok1 && ok2 {
			return Coordinate{Latitude: lat, Longitude: lng}, true
		}
	}

	for _, key := range []string{"geopoint", "location", "coordinates"} {
		if nested, ok := m[key]; ok {
			if c, ok := normalize(nested, depth+1); ok {
				return c, true
			}
		}
	}
	return Coordinate{}, false
}

// asMap copies any map keyed by a string kind into map[string]any.
func asMap(v any) (map[string]any, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// asSlice unwraps any slice or array value into []any.
func asSlice(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, false
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// toFloat accepts any integer, unsigned or float kind, and numeric strings
// including json.Number.
func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return 0, false
	}
	var f float64
	switch {
	case rv.CanFloat():
		f = rv.Float()
	case rv.CanInt():
		f = float64(rv.Int())
	case rv.CanUint():
		f = float64(rv.Uint())
	case rv.Kind() == reflect.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(rv.String()), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	return f, IsFinite(f)
}
