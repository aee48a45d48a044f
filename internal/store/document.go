package store

import (
	"encoding/json"
	"time"
)

// RouteDocument is the stored shape of a route. Points is the canonical
// sequence; Coordinates, TotalPoints and Geometry are regenerated from it on
// every write for older consumers.
type RouteDocument struct {
	ID          string          `gorm:"type:varchar(64);primaryKey"`
	Name        string          `gorm:"type:varchar(255);not null"`
	Color       string          `gorm:"type:varchar(7);not null;default:'#FF5722'"`
	Coordinates json.RawMessage `gorm:"type:jsonb"`
	Points      json.RawMessage `gorm:"type:jsonb"`
	TotalPoints int             `gorm:"not null;default:0"`
	Public      bool            `gorm:"not null;default:false;index"`
	Geometry    []byte          `gorm:"type:bytea"`
	CreatedBy   string          `gorm:"type:varchar(64)"`
	UpdatedBy   string          `gorm:"type:varchar(64)"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (RouteDocument) TableName() string {
	return "routes"
}

// pointDocument is one entry of the points column.
type pointDocument struct {
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	Street      string     `json:"street"`
	Name        string     `json:"name"`
	Coordinates [2]float64 `json:"coordinates"`
}
