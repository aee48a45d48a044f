package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"route_editor/internal/models"
)

// Channel is the Postgres NOTIFY channel carrying the id of a changed route.
const Channel = "routes_changed"

var (
	ErrRouteNotFound = errors.New("route not found")
	ErrBuiltinRoute  = errors.New("built-in routes cannot be changed")
)

// Store persists routes in the routes table.
type Store struct {
	db  *gorm.DB
	log *logrus.Entry
}

// New creates a store on db.
func New(db *gorm.DB) *Store {
	return &Store{db: db, log: logrus.WithField("component", "store")}
}

// Save creates route when it has no id, or overwrites it otherwise. Points,
// legacy coordinates, total points and geometry are written together in one
// statement; timestamps come from the database clock. Nothing is retried.
func (s *Store) Save(ctx context.Context, route models.Route, actor string) (models.Route, error) {
	if err := validate(route); err != nil {
		return models.Route{}, err
	}
	if IsBuiltin(route.ID) {
		return models.Route{}, ErrBuiltinRoute
	}

	cols, err := columns(route)
	if err != nil {
		return models.Route{}, err
	}
	cols["updated_by"] = actor
	cols["updated_at"] = gorm.Expr("NOW()")

	id := route.ID
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if id == "" {
			id = uuid.NewString()
			cols["id"] = id
			cols["created_by"] = actor
			cols["created_at"] = gorm.Expr("NOW()")
			if err := tx.Model(&RouteDocument{}).Create(cols).Error; err != nil {
				return fmt.Errorf("failed to create route: %w", err)
			}
		} else {
			res := tx.Model(&RouteDocument{}).Where("id = ?", id).Updates(cols)
			if res.Error != nil {
				return fmt.Errorf("failed to update route %s: %w", id, res.Error)
			}
			if res.RowsAffected == 0 {
				return ErrRouteNotFound
			}
		}
		return notify(tx, id)
	})
	if err != nil {
		return models.Route{}, err
	}

	saved, err := s.Get(ctx, id)
	if err != nil {
		return models.Route{}, fmt.Errorf("route %s saved but could not be read back: %w", id, err)
	}
	s.log.WithFields(logrus.Fields{
		"route_id":     id,
		"actor":        actor,
		"total_points": saved.TotalPoints(),
		"created":      route.ID == "",
	}).Info("Route saved.")
	return saved, nil
}

// Delete removes a stored route for good. Built-in routes cannot be deleted.
func (s *Store) Delete(ctx context.Context, id, actor string) error {
	if IsBuiltin(id) {
		return ErrBuiltinRoute
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&RouteDocument{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete route %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrRouteNotFound
		}
		return notify(tx, id)
	})
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"route_id": id, "actor": actor}).Info("Route deleted.")
	return nil
}

// Get returns one route, built-in or stored.
func (s *Store) Get(ctx context.Context, id string) (models.Route, error) {
	if r, ok := builtinByID(id); ok {
		return r, nil
	}
	if IsBuiltin(id) {
		return models.Route{}, ErrRouteNotFound
	}

	var doc RouteDocument
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Route{}, ErrRouteNotFound
		}
		return models.Route{}, fmt.Errorf("failed to load route %s: %w", id, err)
	}
	return decodeDocument(doc), nil
}

// List returns the built-in routes followed by the stored ones ordered by name.
func (s *Store) List(ctx context.Context, publicOnly bool) ([]models.Route, error) {
	q := s.db.WithContext(ctx).Order("name ASC")
	if publicOnly {
		q = q.Where("public = ?", true)
	}
	var docs []RouteDocument
	if err := q.Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}

	out := Builtins()
	for _, doc := range docs {
		out = append(out, decodeDocument(doc))
	}
	return out, nil
}

func validate(route models.Route) error {
	if strings.TrimSpace(route.Name) == "" {
		return &models.ValidationError{Field: "name", Message: "must not be empty"}
	}
	if !models.ValidColor(models.NormalizeColor(route.Color)) {
		return &models.ValidationError{Field: "color", Message: "must be a #RRGGBB hex color"}
	}
	if len(route.Points) < 2 {
		return &models.ValidationError{Field: "points", Message: "a route needs at least 2 points"}
	}
	for _, p := range route.Points {
		if err := models.ValidateCoordinate(p.Latitude, p.Longitude); err != nil {
			return err
		}
	}
	return nil
}

func notify(tx *gorm.DB, id string) error {
	if err := tx.Exec("SELECT pg_notify(?, ?)", Channel, id).Error; err != nil {
		return fmt.Errorf("failed to publish route change: %w", err)
	}
	return nil
}
