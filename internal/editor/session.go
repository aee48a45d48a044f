package editor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"route_editor/internal/bridge"
	"route_editor/internal/models"
)

// Renderer receives render requests; in production it is a *bridge.Bridge.
type Renderer interface {
	Send(m bridge.Outbound) error
}

// PointPatch carries the fields of an in-place point edit. Nil fields are left
// untouched.
type PointPatch struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Name      *string  `json:"name"`
	Street    *string  `json:"street"`
}

// State is a read-only copy of a session, safe to hand to callers.
type State struct {
	Points       []models.Point `json:"points"`
	Selected     []int          `json:"selected"`
	Dirty        bool           `json:"unsaved_changes"`
	AddPointMode bool           `json:"add_point_mode"`
}

// Session is the point collection of one edit session together with the
// snapshot it reverts to. Every method is serialized, so mutations are applied
// strictly in arrival order.
type Session struct {
	mu       sync.Mutex
	current  []models.Point
	snapshot []models.Point
	selected map[int]struct{}
	dirty    bool
	addMode  bool

	label string
	color string

	renderer Renderer
	log      *logrus.Entry
}

// NewSession creates an empty session rendering through r (which may be nil).
func NewSession(r Renderer, log *logrus.Entry) *Session {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Session{
		current:  []models.Point{},
		snapshot: []models.Point{},
		selected: map[int]struct{}{},
		color:    models.DefaultColor,
		renderer: r,
		log:      log,
	}
}

// SetRenderer swaps the render target.
func (s *Session) SetRenderer(r Renderer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renderer = r
}

// SetStyle sets the label and color used when drawing the route polyline.
func (s *Session) SetStyle(label, color string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.label = label
	s.color = models.NormalizeColor(color)
	s.renderRoute()
}

// LoadPoints replaces both the collection and the revert snapshot.
func (s *Session) LoadPoints(points []models.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = models.ClonePoints(points)
	models.Reindex(s.current)
	s.snapshot = models.ClonePoints(s.current)
	s.selected = map[int]struct{}{}
	s.dirty = false
	s.renderAll()
}

// AddPoint appends candidate at the end of the collection.
func (s *Session) AddPoint(candidate models.Point) (models.Point, error) {
	if err := models.ValidateCoordinate(candidate.Latitude, candidate.Longitude); err != nil {
		return models.Point{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	candidate.Index = len(s.current)
	s.current = append(s.current, candidate)
	s.dirty = true
	s.renderPoints()
	return candidate, nil
}

// UpdatePoint merges patch into the point at index.
func (s *Session) UpdatePoint(index int, patch PointPatch) (models.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIndex(index); err != nil {
		return models.Point{}, err
	}
	p := s.current[index]
	if patch.Latitude != nil {
		p.Latitude = *patch.Latitude
	}
	if patch.Longitude != nil {
		p.Longitude = *patch.Longitude
	}
	if patch.Latitude != nil || patch.Longitude != nil {
		if err := models.ValidateCoordinate(p.Latitude, p.Longitude); err != nil {
			return models.Point{}, err
		}
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Street != nil {
		p.Street = *patch.Street
	}

	s.current[index] = p
	s.dirty = true
	s.renderPoints()
	return p, nil
}

// MovePoint writes new coordinates for a dragged point. It is called at drag
// frequency: it keeps name and street, does not re-render and does not persist.
func (s *Session) MovePoint(index int, latitude, longitude float64) error {
	if err := models.ValidateCoordinate(latitude, longitude); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIndex(index); err != nil {
		return err
	}
	s.current[index].Latitude = latitude
	s.current[index].Longitude = longitude
	s.dirty = true
	return nil
}

// DeletePoint removes the point at index.
func (s *Session) DeletePoint(index int) error {
	return s.DeletePoints([]int{index})
}

// DeletePoints removes a batch of points. The batch is rejected as a whole if
// any index is out of range. Remaining points are re-indexed from 0.
func (s *Session) DeletePoints(indices []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(indices) == 0 {
		return nil
	}
	drop := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		if err := s.checkIndex(i); err != nil {
			return err
		}
		drop[i] = struct{}{}
	}

	kept := make([]models.Point, 0, len(s.current)-len(drop))
	for i, p := range s.current {
		if _, ok := drop[i]; !ok {
			kept = append(kept, p)
		}
	}
	models.Reindex(kept)
	s.current = kept
	s.selected = map[int]struct{}{}
	s.dirty = true
	s.renderPoints()
	s.renderSelection()
	return nil
}

// Revert restores the collection from the snapshot. The snapshot itself is
// left untouched, so reverting twice gives the same result.
func (s *Session) Revert() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = models.ClonePoints(s.snapshot)
	s.selected = map[int]struct{}{}
	s.dirty = false
	s.renderAll()
}

// Commit records saved as the new snapshot after a successful save. Edits
// made while the save was in flight keep the session dirty.
func (s *Session) Commit(saved []models.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = models.ClonePoints(saved)
	models.Reindex(s.snapshot)
	s.dirty = !models.EqualPoints(s.current, s.snapshot)
}

// Select replaces the selection with indices.
func (s *Session) Select(indices []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		if err := s.checkIndex(i); err != nil {
			return err
		}
		next[i] = struct{}{}
	}
	s.selected = next
	s.renderSelection()
	return nil
}

// ToggleSelected adds index to or removes it from the selection.
func (s *Session) ToggleSelected(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIndex(index); err != nil {
		return err
	}
	if _, ok := s.selected[index]; ok {
		delete(s.selected, index)
	} else {
		s.selected[index] = struct{}{}
	}
	s.renderSelection()
	return nil
}

// ClearSelection empties the selection.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = map[int]struct{}{}
	s.renderSelection()
}

// Selected returns the selected indices in ascending order.
func (s *Session) Selected() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedList()
}

// SetAddPointMode turns click-to-add on or off.
func (s *Session) SetAddPointMode(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addMode = enabled
	s.send(bridge.SetAddPointMode{Enabled: enabled})
}

// AddPointMode reports whether click-to-add is on.
func (s *Session) AddPointMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addMode
}

// Points returns a copy of the current collection.
func (s *Session) Points() []models.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.ClonePoints(s.current)
}

// Snapshot returns a copy of the revert snapshot.
func (s *Session) Snapshot() []models.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.ClonePoints(s.snapshot)
}

// Dirty reports whether there are unsaved changes.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// State returns a copy of the whole session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Points:       models.ClonePoints(s.current),
		Selected:     s.selectedList(),
		Dirty:        s.dirty,
		AddPointMode: s.addMode,
	}
}

// OnMapReady re-sends everything the renderer needs to draw the session.
func (s *Session) OnMapReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renderAll()
	s.send(bridge.SetAddPointMode{Enabled: s.addMode})
}

// OnPointClicked toggles the selection of a tapped marker.
func (s *Session) OnPointClicked(index int) {
	if err := s.ToggleSelected(index); err != nil {
		s.log.WithError(err).WithField("index", index).Warn("Renderer clicked an unknown point.")
	}
}

// OnPointMoved applies a marker drag.
func (s *Session) OnPointMoved(index int, latitude, longitude float64) {
	if err := s.MovePoint(index, latitude, longitude); err != nil {
		s.log.WithError(err).WithField("index", index).Warn("Ignoring point move from renderer.")
	}
}

// OnMapClicked adds a point while add-point mode is on.
func (s *Session) OnMapClicked(latitude, longitude float64) {
	if !s.AddPointMode() {
		s.log.Debug("Map clicked outside add-point mode. Ignoring.")
		return
	}
	if _, err := s.AddPoint(models.Point{Latitude: latitude, Longitude: longitude}); err != nil {
		s.log.WithError(err).Warn("Ignoring map click with invalid coordinates.")
	}
}

func (s *Session) checkIndex(index int) error {
	if index < 0 || index >= len(s.current) {
		return fmt.Errorf("%w: %d (have %d points)", ErrIndexOutOfRange, index, len(s.current))
	}
	return nil
}

func (s *Session) selectedList() []int {
	out := make([]int, 0, len(s.selected))
	for i := range s.selected {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func (s *Session) renderAll() {
	s.renderPoints()
	s.renderSelection()
}

func (s *Session) renderPoints() {
	s.renderRoute()
	if len(s.current) == 0 {
		s.send(bridge.ClearPoints{})
		return
	}
	pts := make([]bridge.EditablePoint, len(s.current))
	for i, p := range s.current {
		pts[i] = bridge.EditablePoint{
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			Name:      p.Name,
			Street:    p.Street,
			Index:     p.Index,
		}
	}
	s.send(bridge.ShowEditablePoints{Points: pts})
}

func (s *Session) renderRoute() {
	route := models.Route{Points: s.current}
	s.send(bridge.ShowRoute{Coordinates: route.Coordinates(), Color: s.color, Label: s.label})
}

func (s *Session) renderSelection() {
	s.send(bridge.SetSelectedPoints{Indices: s.selectedList()})
}

// send must be called with s.mu held.
func (s *Session) send(m bridge.Outbound) {
	if s.renderer == nil {
		return
	}
	if err := s.renderer.Send(m); err != nil {
		s.log.WithError(err).WithField("type", m.Kind()).Warn("Failed to send render request to map bridge.")
	}
}
