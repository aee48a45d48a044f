package editor

import (
	"sync"

	"github.com/sirupsen/logrus"

	"route_editor/internal/models"
)

// Registry tracks the open edit sessions. A persisted route is owned by at
// most one session: opening it again hands back the session that already
// holds it.
type Registry struct {
	mu      sync.Mutex
	byID    map[string]*Workflow
	byRoute map[string]string
	held    map[string]bool

	saver RouteSaver
	paths PathFinder
}

// NewRegistry creates an empty registry whose workflows save through saver.
func NewRegistry(saver RouteSaver, paths PathFinder) *Registry {
	return &Registry{
		byID:    make(map[string]*Workflow),
		byRoute: make(map[string]string),
		held:    make(map[string]bool),
		saver:   saver,
		paths:   paths,
	}
}

// Open starts a session for route. The boolean is true when an existing
// session for the same persisted route was handed back. A route held by a
// direct update cannot be opened until the update finishes.
func (r *Registry) Open(route models.Route) (*Workflow, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if route.ID != "" {
		if w, ok := r.owner(route.ID); ok {
			return w, true, nil
		}
		if r.held[route.ID] {
			return nil, false, ErrRouteBusy
		}
	}
	return r.start(route), false, nil
}

// OpenStored opens the persisted route routeID, reading it with load unless a
// session already holds it. The route stays held while it loads so a direct
// update cannot slip in between the read and the session.
func (r *Registry) OpenStored(routeID string, load func() (models.Route, error)) (*Workflow, bool, error) {
	r.mu.Lock()
	if w, ok := r.owner(routeID); ok {
		r.mu.Unlock()
		return w, true, nil
	}
	if r.held[routeID] {
		r.mu.Unlock()
		return nil, false, ErrRouteBusy
	}
	r.held[routeID] = true
	r.mu.Unlock()

	route, err := load()

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.held, routeID)
	if err != nil {
		return nil, false, err
	}
	route.ID = routeID
	return r.start(route), false, nil
}

// owner returns the session holding routeID. r.mu must be held.
func (r *Registry) owner(routeID string) (*Workflow, bool) {
	sid, ok := r.byRoute[routeID]
	if !ok {
		return nil, false
	}
	w, ok := r.byID[sid]
	if ok {
		logrus.WithFields(logrus.Fields{
			"session_id": sid,
			"route_id":   routeID,
		}).Info("Handing off existing edit session.")
	}
	return w, ok
}

func (r *Registry) start(route models.Route) *Workflow {
	w := NewWorkflow(route, r.saver, r.paths)
	w.onSaved = r.claim
	r.byID[w.ID] = w
	if route.ID != "" {
		r.byRoute[route.ID] = w.ID
	}
	logrus.WithFields(logrus.Fields{
		"session_id": w.ID,
		"route_id":   route.ID,
		"points":     len(route.Points),
	}).Info("Edit session opened.")
	return w
}

// Hold reserves routeID for a write that bypasses the edit sessions. It fails
// with ErrRouteBusy while a session owns the route or another hold is active.
// Release must be called once the write is done.
func (r *Registry) Hold(routeID string) (release func(), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byRoute[routeID]; ok || r.held[routeID] {
		return nil, ErrRouteBusy
	}
	r.held[routeID] = true
	return func() {
		r.mu.Lock()
		delete(r.held, routeID)
		r.mu.Unlock()
	}, nil
}

// Get looks up a session by id.
func (r *Registry) Get(id string) (*Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.byID[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return w, nil
}

// ForRoute returns the session currently holding routeID, if any.
func (r *Registry) ForRoute(routeID string) (*Workflow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sid, ok := r.byRoute[routeID]
	if !ok {
		return nil, false
	}
	w, ok := r.byID[sid]
	return w, ok
}

// Close ends a session. Unsaved changes are discarded and a connected
// renderer is disconnected.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	w, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(r.byID, id)
	if rid := w.RouteID(); rid != "" && r.byRoute[rid] == id {
		delete(r.byRoute, rid)
	}
	r.mu.Unlock()

	w.Bridge.Close()
	logrus.WithField("session_id", id).Info("Edit session closed.")
	return nil
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// claim records that a new route, saved for the first time, is owned by w.
func (r *Registry) claim(w *Workflow, routeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, open := r.byID[w.ID]; open {
		r.byRoute[routeID] = w.ID
	}
}
