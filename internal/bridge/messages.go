package bridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"route_editor/internal/geo"
)

// Message types understood by the map renderer.
const (
	TypeShowRoute          = "showRoute"
	TypeShowEditablePoints = "showEditablePoints"
	TypeSetSelectedPoints  = "setSelectedPoints"
	TypeClearPoints        = "clearPoints"
	TypeSetAddPointMode    = "setAddPointMode"
)

// Message types emitted by the map renderer.
const (
	TypeMapReady     = "mapReady"
	TypePointClicked = "pointClicked"
	TypePointMoved   = "pointMoved"
	TypeMapClicked   = "mapClicked"
)

var (
	ErrMalformedMessage = errors.New("bridge: malformed message")
	ErrUnknownMessage   = errors.New("bridge: unknown message type")
	ErrClosed           = errors.New("bridge: closed")
)

// Outbound is a message sent from the host to the renderer.
type Outbound interface {
	Kind() string
}

// Inbound is a message sent from the renderer to the host.
type Inbound interface {
	Kind() string
}

// ShowRoute draws a route polyline.
type ShowRoute struct {
	Coordinates []geo.Coordinate `json:"coordinates"`
	Color       string           `json:"color"`
	Label       string           `json:"label"`
}

// EditablePoint is the id-less point shape the renderer draws as a marker.
type EditablePoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
	Street    string  `json:"street"`
	Index     int     `json:"index"`
}

// ShowEditablePoints replaces every editable marker on the map.
type ShowEditablePoints struct {
	Points []EditablePoint `json:"points"`
}

// SetSelectedPoints highlights the given point indices.
type SetSelectedPoints struct {
	Indices []int `json:"indices"`
}

// ClearPoints removes every editable marker.
type ClearPoints struct{}

// SetAddPointMode toggles click-to-add on the map.
type SetAddPointMode struct {
	Enabled bool `json:"enabled"`
}

func (ShowRoute) Kind() string          { return TypeShowRoute }
func (ShowEditablePoints) Kind() string { return TypeShowEditablePoints }
func (SetSelectedPoints) Kind() string  { return TypeSetSelectedPoints }
func (ClearPoints) Kind() string        { return TypeClearPoints }
func (SetAddPointMode) Kind() string    { return TypeSetAddPointMode }

// MapReady is sent once by the renderer when it can accept messages.
type MapReady struct{}

// PointClicked reports a tap on a marker.
type PointClicked struct {
	Index int `json:"index"`
}

// PointMoved reports a marker drag.
type PointMoved struct {
	Index     int     `json:"index"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// MapClicked reports a tap on the map itself.
type MapClicked struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (MapReady) Kind() string     { return TypeMapReady }
func (PointClicked) Kind() string { return TypePointClicked }
func (PointMoved) Kind() string   { return TypePointMoved }
func (MapClicked) Kind() string   { return TypeMapClicked }

// Encode renders m as a flat {"type": ..., ...payload} envelope.
func Encode(m Outbound) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind(), err)
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind(), err)
	}
	kind, _ := json.Marshal(m.Kind())
	fields["type"] = kind

	return json.Marshal(fields)
}

// Decode parses a renderer envelope. It is the only place renderer JSON is
// interpreted.
func Decode(data []byte) (Inbound, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch envelope.Type {
	case TypeMapReady:
		return MapReady{}, nil
	case TypePointClicked:
		var m struct {
			Index *int `json:"index"`
		}
		if err := json.Unmarshal(data, &m); err != nil || m.Index == nil {
			return nil, fmt.Errorf("%w: pointClicked needs an index", ErrMalformedMessage)
		}
		return PointClicked{Index: *m.Index}, nil
	case TypePointMoved:
		var m struct {
			Index     *int     `json:"index"`
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
		}
		if err := json.Unmarshal(data, &m); err != nil || m.Index == nil || m.Latitude == nil || m.Longitude == nil {
			return nil, fmt.Errorf("%w: pointMoved needs index, latitude and longitude", ErrMalformedMessage)
		}
		return PointMoved{Index: *m.Index, Latitude: *m.Latitude, Longitude: *m.Longitude}, nil
	case TypeMapClicked:
		var m struct {
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
		}
		if err := json.Unmarshal(data, &m); err != nil || m.Latitude == nil || m.Longitude == nil {
			return nil, fmt.Errorf("%w: mapClicked needs latitude and longitude", ErrMalformedMessage)
		}
		return MapClicked{Latitude: *m.Latitude, Longitude: *m.Longitude}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, envelope.Type)
	}
}
