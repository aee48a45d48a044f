package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"route_editor/internal/models"
)

// Subscriber receives route list updates. *websocket.Conn satisfies it.
type Subscriber interface {
	WriteJSON(v any) error
}

// Lister is the read side of the store used by the feed.
type Lister interface {
	List(ctx context.Context, publicOnly bool) ([]models.Route, error)
}

// FeedMessage is pushed to every subscriber after a route changes.
type FeedMessage struct {
	Type    string         `json:"type"`
	Changed string         `json:"changed,omitempty"`
	Routes  []models.Route `json:"routes"`
}

// Feed pushes the current route list to its subscribers whenever a route
// changes. Admin subscribers see every route, everyone else only public ones.
type Feed struct {
	lister  Lister
	clients map[Subscriber]bool
	changes chan string
	mu      sync.Mutex
}

// NewFeed creates a feed reading routes from lister. Call Run to start it.
func NewFeed(lister Lister) *Feed {
	return &Feed{
		lister:  lister,
		clients: make(map[Subscriber]bool),
		changes: make(chan string, 100),
	}
}

// Register adds a subscriber and sends it the current list.
func (f *Feed) Register(ctx context.Context, sub Subscriber, publicOnly bool) error {
	routes, err := f.lister.List(ctx, publicOnly)
	if err != nil {
		return err
	}
	if err := sub.WriteJSON(FeedMessage{Type: "routes", Routes: routes}); err != nil {
		return err
	}

	f.mu.Lock()
	f.clients[sub] = publicOnly
	n := len(f.clients)
	f.mu.Unlock()
	logrus.WithFields(logrus.Fields{
		"conn_ptr":    fmt.Sprintf("%p", sub),
		"public_only": publicOnly,
		"subscribers": n,
	}).Info("Route feed subscriber registered.")
	return nil
}

// Unregister removes a subscriber.
func (f *Feed) Unregister(sub Subscriber) {
	f.mu.Lock()
	delete(f.clients, sub)
	n := len(f.clients)
	f.mu.Unlock()
	logrus.WithFields(logrus.Fields{
		"conn_ptr":    fmt.Sprintf("%p", sub),
		"subscribers": n,
	}).Info("Route feed subscriber unregistered.")
}

// Len returns the number of subscribers.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// Publish queues a change notification without blocking.
func (f *Feed) Publish(routeID string) {
	select {
	case f.changes <- routeID:
	default:
		logrus.WithField("route_id", routeID).Warn("Route feed channel full, dropping change.")
	}
}

// Run delivers queued changes until ctx is done.
func (f *Feed) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-f.changes:
			f.broadcast(ctx, id)
		}
	}
}

func (f *Feed) broadcast(ctx context.Context, changed string) {
	f.mu.Lock()
	targets := make(map[Subscriber]bool, len(f.clients))
	for sub, publicOnly := range f.clients {
		targets[sub] = publicOnly
	}
	f.mu.Unlock()
	if len(targets) == 0 {
		return
	}

	views := map[bool][]models.Route{}
	for sub, publicOnly := range targets {
		routes, ok := views[publicOnly]
		if !ok {
			var err error
			routes, err = f.lister.List(ctx, publicOnly)
			if err != nil {
				logrus.WithError(err).WithField("route_id", changed).Warn("Failed to list routes for feed.")
				return
			}
			views[publicOnly] = routes
		}
		if err := sub.WriteJSON(FeedMessage{Type: "routes", Changed: changed, Routes: routes}); err != nil {
			logrus.WithError(err).WithField("conn_ptr", fmt.Sprintf("%p", sub)).Warn("Failed to push route list, dropping subscriber.")
			f.Unregister(sub)
		}
	}
}

// Listen subscribes to route change notifications on the database at dsn and
// forwards them to feed until ctx is done.
func Listen(ctx context.Context, dsn string, feed *Feed) error {
	report := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logrus.WithError(err).WithField("event", ev).Warn("Route change listener problem.")
		}
	}
	l := pq.NewListener(dsn, 10*time.Second, time.Minute, report)
	if err := l.Listen(Channel); err != nil {
		l.Close()
		return fmt.Errorf("failed to listen on %s: %w", Channel, err)
	}
	logrus.WithField("channel", Channel).Info("Listening for route changes.")

	go func() {
		defer l.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-l.Notify:
				// nil after a reconnect; notifications may have been missed
				if n == nil {
					feed.Publish("")
					continue
				}
				feed.Publish(n.Extra)
			case <-time.After(90 * time.Second):
				go func() {
					if err := l.Ping(); err != nil {
						logrus.WithError(err).Warn("Route change listener ping failed.")
					}
				}()
			}
		}
	}()
	return nil
}
