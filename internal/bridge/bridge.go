package bridge

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// Transport delivers encoded messages to the renderer.
type Transport interface {
	Send(data []byte) error
}

// Handler receives decoded renderer events.
type Handler interface {
	OnMapReady()
	OnPointClicked(index int)
	OnPointMoved(index int, latitude, longitude float64)
	OnMapClicked(latitude, longitude float64)
}

// Bridge is the host side of the host/renderer channel.
//
// Until the renderer reports mapReady, outbound messages are parked in a single
// pending slot; a newer message replaces an older one. The slot is flushed
// exactly once when mapReady arrives.
type Bridge struct {
	mu        sync.Mutex
	transport Transport
	handler   Handler
	ready     bool
	closed    bool
	pending   []byte
	log       *logrus.Entry
}

// New creates a bridge dispatching renderer events to h.
func New(h Handler, log *logrus.Entry) *Bridge {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Bridge{handler: h, log: log}
}

// SetHandler replaces the event handler.
func (b *Bridge) SetHandler(h Handler) {
	b.mu.Lock()
	b.handler = h
	b.mu.Unlock()
}

// Attach connects a renderer. The renderer is not ready until it sends mapReady.
// A closed bridge refuses the renderer and closes its transport.
func (b *Bridge) Attach(t Transport) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		closeTransport(t)
		return ErrClosed
	}
	b.transport = t
	b.ready = false
	return nil
}

// Detach drops the current renderer if it is t.
func (b *Bridge) Detach(t Transport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.transport == t {
		b.transport = nil
		b.ready = false
	}
}

// Close detaches the renderer for good. A transport that can be closed is
// closed, which ends its Serve loop.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.ready = false
	b.pending = nil
	if b.transport != nil {
		closeTransport(b.transport)
		b.transport = nil
	}
}

func closeTransport(t Transport) {
	if c, ok := t.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}

// Ready reports whether the attached renderer has signalled readiness.
func (b *Bridge) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

// Send delivers m to the renderer, or parks it in the pending slot.
func (b *Bridge) Send(m Outbound) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}

	// Sends happen under the lock so a flush of the pending slot can never be
	// overtaken by a newer message.
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	if !b.ready || b.transport == nil {
		if b.pending != nil {
			b.log.WithField("type", m.Kind()).Debug("bridge: replacing pending message")
		}
		b.pending = data
		return nil
	}
	return b.transport.Send(data)
}

// Receive decodes and dispatches one renderer message. Malformed or unknown
// messages are logged and ignored.
func (b *Bridge) Receive(data []byte) {
	msg, err := Decode(data)
	if err != nil {
		entry := b.log.WithError(err).WithField("payload", truncate(data, 200))
		if errors.Is(err, ErrUnknownMessage) {
			entry.Warn("bridge: ignoring unknown renderer message")
		} else {
			entry.Warn("bridge: ignoring malformed renderer message")
		}
		return
	}

	b.mu.Lock()
	h := b.handler
	b.mu.Unlock()

	switch m := msg.(type) {
	case MapReady:
		b.markReady()
		if h != nil {
			h.OnMapReady()
		}
	case PointClicked:
		if h != nil {
			h.OnPointClicked(m.Index)
		}
	case PointMoved:
		if h != nil {
			h.OnPointMoved(m.Index, m.Latitude, m.Longitude)
		}
	case MapClicked:
		if h != nil {
			h.OnMapClicked(m.Latitude, m.Longitude)
		}
	}
}

func (b *Bridge) markReady() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.transport == nil {
		b.log.Warn("bridge: mapReady without an attached renderer")
		return
	}
	if b.ready {
		b.log.Debug("bridge: duplicate mapReady")
		return
	}
	b.ready = true
	pending := b.pending
	b.pending = nil
	if pending == nil {
		return
	}
	if err := b.transport.Send(pending); err != nil {
		b.log.WithError(err).Warn("bridge: failed to flush pending message")
	}
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
