// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shell

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gogpu/display"
	"github.com/gogpu/display/surfaces"
)

// Shell is the capability the connection layer uses to manage sessions
// and their surfaces.
type Shell interface {
	OpenSession(pid int, name string, sink EventSink) (*Session, error)
	CloseSession(s *Session) error
	CreateSurfaceFor(s *Session, p surfaces.Parameters) (SurfaceID, error)
	HandleSurfaceCreated(s *Session)
	StartTrustSessionFor(s *Session, p TrustSessionParameters) (*TrustSession, error)
	StopTrustSession(t *TrustSession) error
}

// ApplicationListener observes application lifecycle. Calls are made
// synchronously from the goroutine that triggered them.
type ApplicationListener interface {
	ApplicationConnected(name string)
	ApplicationDisconnected(name string)
	SurfaceCreated(name string, id SurfaceID)
}

// NullApplicationListener ignores every notification. Embed it to
// implement only some methods.
type NullApplicationListener struct{}

func (NullApplicationListener) ApplicationConnected(string) {}
func (NullApplicationListener) ApplicationDisconnected(string) {}
func (NullApplicationListener) SurfaceCreated(string, SurfaceID) {}

var (
	// ErrTrustSessionActive is returned when a helper already runs a
	// trust session.
	ErrTrustSessionActive = errors.New("shell: trust session already active")

	// ErrTrustSessionStopped is returned when stopping a stopped session.
	ErrTrustSessionStopped = errors.New("shell: trust session not active")

	// ErrUnknownSession is returned for a session this manager does not own.
	ErrUnknownSession = errors.New("shell: unknown session")
)

// Option configures a SessionManager.
type Option func(*managerOptions)

type managerOptions struct {
	listener ApplicationListener
	newInput func() (InputChannel, error)
}

// WithApplicationListener sets the lifecycle observer.
func WithApplicationListener(l ApplicationListener) Option {
	return func(o *managerOptions) {
		o.listener = l
	}
}

// WithInputChannels gives every new surface an input channel made by fn.
func WithInputChannels(fn func() (InputChannel, error)) Option {
	return func(o *managerOptions) {
		o.newInput = fn
	}
}

// WithSocketInputChannels gives every new surface a SocketInputChannel.
func WithSocketInputChannels() Option {
	return WithInputChannels(func() (InputChannel, error) {
		return NewSocketInputChannel()
	})
}

// SessionManager is the default Shell. It creates surfaces through a
// surfaces.Builder and hands out one Proxy per surface.
//
// SessionManager is safe for concurrent use.
type SessionManager struct {
	builder surfaces.Builder
	opts    managerOptions

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	trust    map[uuid.UUID]*TrustSession
}

// NewSessionManager creates a shell over builder.
func NewSessionManager(builder surfaces.Builder, opts ...Option) *SessionManager {
	o := managerOptions{listener: NullApplicationListener{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.listener == nil {
		o.listener = NullApplicationListener{}
	}
	return &SessionManager{
		builder:  builder,
		opts:     o,
		sessions: make(map[uuid.UUID]*Session),
		trust:    make(map[uuid.UUID]*TrustSession),
	}
}

// OpenSession registers a connecting application.
func (m *SessionManager) OpenSession(pid int, name string, sink EventSink) (*Session, error) {
	s := newSession(pid, name, sink)

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	display.Logger().Info("shell: session opened", "session", s.id.String(), "name", name, "pid", pid)
	m.opts.listener.ApplicationConnected(name)
	return s, nil
}

// CloseSession destroys every surface of s, stops its trust session and
// forgets it.
func (m *SessionManager) CloseSession(s *Session) error {
	if s == nil {
		return ErrUnknownSession
	}
	m.mu.Lock()
	if _, ok := m.sessions[s.id]; !ok {
		m.mu.Unlock()
		return ErrUnknownSession
	}
	delete(m.sessions, s.id)
	m.mu.Unlock()

	if t := s.TrustSession(); t != nil {
		if err := m.StopTrustSession(t); err != nil && !errors.Is(err, ErrTrustSessionStopped) {
			display.Logger().Warn("shell: stopping trust session", "err", err)
		}
	}
	s.close()

	display.Logger().Info("shell: session closed", "session", s.id.String(), "name", s.name)
	m.opts.listener.ApplicationDisconnected(s.name)
	return nil
}

// Sessions returns the open sessions.
func (m *SessionManager) Sessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// CreateSurfaceFor creates a surface owned by s.
func (m *SessionManager) CreateSurfaceFor(s *Session, p surfaces.Parameters) (SurfaceID, error) {
	if s == nil {
		return 0, ErrUnknownSession
	}
	if s.Closed() {
		return 0, ErrSessionClosed
	}

	var input InputChannel
	if m.opts.newInput != nil {
		ch, err := m.opts.newInput()
		if err != nil {
			return 0, fmt.Errorf("shell: create input channel: %w", err)
		}
		input = ch
	}

	proxy, err := NewProxy(m.builder, p, input)
	if err != nil {
		closeInput(input)
		return 0, err
	}

	id, err := s.addSurface(proxy, input)
	if err != nil {
		proxy.Destroy()
		closeInput(input)
		return 0, err
	}

	display.Logger().Debug("shell: surface created", "session", s.name, "id", int32(id), "ref", proxy.Ref().String())
	m.opts.listener.SurfaceCreated(s.name, id)
	return id, nil
}

// HandleSurfaceCreated focuses the most recently created surface of s:
// it is raised to the top of the stack and the session is told.
func (m *SessionManager) HandleSurfaceCreated(s *Session) {
	if s == nil {
		return
	}
	s.mu.Lock()
	id := s.last
	p := s.surfaces[id]
	s.mu.Unlock()
	if p == nil {
		return
	}

	if r, ok := m.builder.(interface{ Raise(surfaces.Ref) error }); ok {
		if err := r.Raise(p.Ref()); err != nil {
			display.Logger().Debug("shell: raise failed", "id", int32(id), "err", err)
			return
		}
	}
	s.sink.HandleEvent(Event{Kind: EventSurfaceCreated, Surface: id})
	s.sink.HandleEvent(Event{Kind: EventSurfaceFocused, Surface: id})
}

// StartTrustSessionFor starts a trust session with s as helper.
func (m *SessionManager) StartTrustSessionFor(s *Session, p TrustSessionParameters) (*TrustSession, error) {
	if s == nil {
		return nil, ErrUnknownSession
	}
	if p.BaseProcessID <= 0 {
		return nil, fmt.Errorf("shell: invalid trust session base process %d", p.BaseProcessID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.trust != nil {
		return nil, ErrTrustSessionActive
	}

	t := &TrustSession{id: uuid.New(), helper: s, params: p}
	s.trust = t

	m.mu.Lock()
	m.trust[t.id] = t
	m.mu.Unlock()

	display.Logger().Info("shell: trust session started",
		"trust", t.id.String(), "helper", s.name, "base_pid", p.BaseProcessID)
	return t, nil
}

// StopTrustSession stops t and detaches it from its helper.
func (m *SessionManager) StopTrustSession(t *TrustSession) error {
	if t == nil {
		return ErrTrustSessionStopped
	}
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return ErrTrustSessionStopped
	}
	t.stopped = true
	t.mu.Unlock()

	m.mu.Lock()
	delete(m.trust, t.id)
	m.mu.Unlock()

	h := t.helper
	h.mu.Lock()
	if h.trust == t {
		h.trust = nil
	}
	h.mu.Unlock()

	display.Logger().Info("shell: trust session stopped", "trust", t.id.String())
	return nil
}

// TrustSessions returns the number of active trust sessions.
func (m *SessionManager) TrustSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trust)
}

var _ Shell = (*SessionManager)(nil)
