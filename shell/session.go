// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shell

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/gogpu/display"
)

// SurfaceID names a surface within its session.
type SurfaceID int32

// EventKind classifies events delivered to a session's EventSink.
type EventKind int

// Event kinds.
const (
	EventSurfaceCreated EventKind = iota + 1
	EventSurfaceFocused
	EventSurfaceDestroyed
	EventSessionClosed
)

func (k EventKind) String() string {
	switch k {
	case EventSurfaceCreated:
		return "surface-created"
	case EventSurfaceFocused:
		return "surface-focused"
	case EventSurfaceDestroyed:
		return "surface-destroyed"
	case EventSessionClosed:
		return "session-closed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a notification for a client session.
type Event struct {
	Kind    EventKind
	Surface SurfaceID
}

// EventSink receives events for one session. HandleEvent must not block.
type EventSink interface {
	HandleEvent(ev Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ev Event)

// HandleEvent calls f(ev).
func (f EventSinkFunc) HandleEvent(ev Event) { f(ev) }

type nullSink struct{}

func (nullSink) HandleEvent(Event) {}

var (
	// ErrSessionClosed is returned for operations on a closed session.
	ErrSessionClosed = errors.New("shell: session closed")

	// ErrUnknownSurface is returned for a surface id the session does not own.
	ErrUnknownSurface = errors.New("shell: unknown surface")
)

// Session is one connected client application.
type Session struct {
	id   uuid.UUID
	pid  int
	name string
	sink EventSink

	mu       sync.Mutex
	surfaces map[SurfaceID]*Proxy
	inputs   map[SurfaceID]InputChannel
	nextID   SurfaceID
	last     SurfaceID
	trust    *TrustSession
	closed   bool
}

func newSession(pid int, name string, sink EventSink) *Session {
	if sink == nil {
		sink = nullSink{}
	}
	return &Session{
		id:       uuid.New(),
		pid:      pid,
		name:     name,
		sink:     sink,
		surfaces: make(map[SurfaceID]*Proxy),
		inputs:   make(map[SurfaceID]InputChannel),
		nextID:   1,
	}
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID { return s.id }

// PID returns the client process id given at open.
func (s *Session) PID() int { return s.pid }

// Name returns the application name.
func (s *Session) Name() string { return s.name }

// Closed reports whether the session was closed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Surface returns the proxy for id.
func (s *Session) Surface(id SurfaceID) (*Proxy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.surfaces[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSurface, id)
	}
	return p, nil
}

// SurfaceIDs returns the session's surface ids in ascending order.
func (s *Session) SurfaceIDs() []SurfaceID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]SurfaceID, 0, len(s.surfaces))
	for id := range s.surfaces {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// DestroySurface destroys one of the session's surfaces.
func (s *Session) DestroySurface(id SurfaceID) error {
	s.mu.Lock()
	p, ok := s.surfaces[id]
	input := s.inputs[id]
	delete(s.surfaces, id)
	delete(s.inputs, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownSurface, id)
	}

	p.Destroy()
	closeInput(input)
	s.sink.HandleEvent(Event{Kind: EventSurfaceDestroyed, Surface: id})
	return nil
}

// TrustSession returns the trust session this session is helper of, or nil.
func (s *Session) TrustSession() *TrustSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trust
}

func (s *Session) addSurface(p *Proxy, input InputChannel) (SurfaceID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSessionClosed
	}
	id := s.nextID
	s.nextID++
	s.surfaces[id] = p
	if input != nil {
		s.inputs[id] = input
	}
	s.last = id
	return id, nil
}

// close marks the session closed and destroys its surfaces.
func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	proxies, inputs := s.surfaces, s.inputs
	s.surfaces = make(map[SurfaceID]*Proxy)
	s.inputs = make(map[SurfaceID]InputChannel)
	s.mu.Unlock()

	for id, p := range proxies {
		p.Shutdown()
		p.Destroy()
		closeInput(inputs[id])
	}
	s.sink.HandleEvent(Event{Kind: EventSessionClosed})
}

func closeInput(ch InputChannel) {
	c, ok := ch.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		display.Logger().Warn("shell: closing input channel", "err", err)
	}
}

// TrustSessionParameters describe a trust session request.
type TrustSessionParameters struct {
	// BaseProcessID is the process whose children gain trust.
	BaseProcessID int
}

// TrustSession grants a helper session elevated trust on behalf of an
// application process.
type TrustSession struct {
	id     uuid.UUID
	helper *Session
	params TrustSessionParameters

	mu      sync.Mutex
	stopped bool
}

// ID returns the trust session id.
func (t *TrustSession) ID() uuid.UUID { return t.id }

// Helper returns the session that started the trust session.
func (t *TrustSession) Helper() *Session { return t.helper }

// Parameters returns the creation parameters.
func (t *TrustSession) Parameters() TrustSessionParameters { return t.params }

// Active reports whether the trust session has not been stopped.
func (t *TrustSession) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped
}
