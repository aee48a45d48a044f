package editor

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"route_editor/internal/bridge"
	"route_editor/internal/directions"
	"route_editor/internal/geo"
	"route_editor/internal/models"
)

// SaveTimeout bounds a single save against the route store.
const SaveTimeout = 30 * time.Second

// RouteSaver persists a route and returns it as stored.
type RouteSaver interface {
	Save(ctx context.Context, route models.Route, actor string) (models.Route, error)
}

// PathFinder computes a path between two coordinates, never failing.
type PathFinder interface {
	RouteOrFallback(ctx context.Context, from, to geo.Coordinate, profile string) directions.Result
}

// Metadata is the editable route metadata of a workflow.
type Metadata struct {
	Name   *string `json:"name"`
	Color  *string `json:"color"`
	Public *bool   `json:"public"`
}

// WorkflowState is what the edit-map screen needs to draw itself.
type WorkflowState struct {
	SessionID string       `json:"session_id"`
	Route     models.Route `json:"route"`
	State
	Saving bool `json:"saving"`
}

// Workflow ties an edit session to its route metadata, its map bridge and the
// route store.
type Workflow struct {
	ID      string
	Session *Session
	Bridge  *bridge.Bridge

	mu        sync.Mutex
	route     models.Route
	metaDirty bool
	saving    atomic.Bool
	onSaved   func(w *Workflow, routeID string)

	saver RouteSaver
	paths PathFinder
	log   *logrus.Entry
}

// NewWorkflow starts an edit session for route, loading its points as the
// revert snapshot.
func NewWorkflow(route models.Route, saver RouteSaver, paths PathFinder) *Workflow {
	id := uuid.NewString()
	log := logrus.WithFields(logrus.Fields{"session_id": id, "route_id": route.ID})

	w := &Workflow{
		ID:    id,
		saver: saver,
		paths: paths,
		log:   log,
	}
	route.Color = models.NormalizeColor(route.Color)
	w.route = route
	w.route.Points = nil

	w.Session = NewSession(nil, log)
	w.Bridge = bridge.New(w.Session, log)
	w.Session.SetRenderer(w.Bridge)
	w.Session.SetStyle(route.Name, route.Color)
	w.Session.LoadPoints(route.Points)
	return w
}

// Route returns the route as it would be saved right now.
func (w *Workflow) Route() models.Route {
	w.mu.Lock()
	r := w.route
	w.mu.Unlock()
	r.Points = w.Session.Points()
	return r
}

// RouteID returns the persisted id, empty for a route never saved.
func (w *Workflow) RouteID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.route.ID
}

// State returns the full workflow state.
func (w *Workflow) State() WorkflowState {
	st := w.Session.State()
	w.mu.Lock()
	r := w.route
	dirty := w.metaDirty
	w.mu.Unlock()
	r.Points = st.Points
	st.Dirty = st.Dirty || dirty

	return WorkflowState{
		SessionID: w.ID,
		Route:     r,
		State:     st,
		Saving:    w.saving.Load(),
	}
}

// SetMetadata updates name, color or public flag.
func (w *Workflow) SetMetadata(m Metadata) error {
	var color string
	if m.Color != nil {
		color = models.NormalizeColor(*m.Color)
		if !models.ValidColor(color) {
			return &models.ValidationError{Field: "color", Message: "must be a #RRGGBB hex color"}
		}
	}
	if m.Name != nil && strings.TrimSpace(*m.Name) == "" {
		return &models.ValidationError{Field: "name", Message: "must not be empty"}
	}

	w.mu.Lock()
	if m.Name != nil {
		w.route.Name = strings.TrimSpace(*m.Name)
	}
	if m.Color != nil {
		w.route.Color = color
	}
	if m.Public != nil {
		w.route.Public = *m.Public
	}
	w.metaDirty = true
	name, c := w.route.Name, w.route.Color
	w.mu.Unlock()

	w.Session.SetStyle(name, c)
	return nil
}

// Save persists the current route. A second Save while one is in flight is
// rejected with ErrSaveInProgress. Failures are returned as-is; nothing is
// retried. Once issued, a save runs to completion or failure even if ctx is
// cancelled; only SaveTimeout bounds it.
func (w *Workflow) Save(ctx context.Context, actor string) (models.Route, error) {
	if !w.saving.CompareAndSwap(false, true) {
		return models.Route{}, ErrSaveInProgress
	}
	defer w.saving.Store(false)

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), SaveTimeout)
	defer cancel()

	route := w.Route()
	saved, err := w.saver.Save(saveCtx, route, actor)
	if err != nil {
		w.log.WithError(err).Warn("Route save failed.")
		return models.Route{}, err
	}

	w.mu.Lock()
	firstSave := w.route.ID == ""
	points := route.Points
	current := w.route
	w.route = saved
	w.route.Points = nil
	if metadataUnchanged(route, current) {
		w.metaDirty = false
	} else {
		// metadata edited while the save was in flight stays pending
		w.route.Name, w.route.Color, w.route.Public = current.Name, current.Color, current.Public
	}
	onSaved := w.onSaved
	w.mu.Unlock()

	w.Session.Commit(points)
	if firstSave && onSaved != nil {
		onSaved(w, saved.ID)
	}
	w.log.WithFields(logrus.Fields{
		"route_id":     saved.ID,
		"total_points": len(points),
	}).Info("Route saved.")
	return saved, nil
}

// PreviewPath asks the directions service for a path from the first to the
// last point and draws it on the map.
func (w *Workflow) PreviewPath(ctx context.Context, profile string) (directions.Result, error) {
	points := w.Session.Points()
	if len(points) < 2 {
		return directions.Result{}, &models.ValidationError{Message: "a path preview needs at least 2 points"}
	}
	res := w.paths.RouteOrFallback(ctx, points[0].Coordinate(), points[len(points)-1].Coordinate(), profile)

	r := w.Route()
	if err := w.Bridge.Send(bridge.ShowRoute{Coordinates: res.Coordinates, Color: r.Color, Label: r.Name}); err != nil {
		w.log.WithError(err).Warn("Failed to send path preview to map bridge.")
	}
	return res, nil
}

func metadataUnchanged(sent, saved models.Route) bool {
	return sent.Name == saved.Name && sent.Color == saved.Color && sent.Public == saved.Public
}
