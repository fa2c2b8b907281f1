// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shell

import (
	"errors"
	"slices"
	"sync"
	"testing"
)

type recordingListener struct {
	NullApplicationListener

	mu     sync.Mutex
	events []string
}

func (l *recordingListener) record(s string) {
	l.mu.Lock()
	l.events = append(l.events, s)
	l.mu.Unlock()
}

func (l *recordingListener) ApplicationConnected(name string)    { l.record("connected " + name) }
func (l *recordingListener) ApplicationDisconnected(name string) { l.record("disconnected " + name) }
func (l *recordingListener) SurfaceCreated(name string, _ SurfaceID) {
	l.record("surface " + name)
}

func (l *recordingListener) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.events)
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) HandleEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *recordingSink) get() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

func TestSessionLifecycle(t *testing.T) {
	b := newBuilder(t)
	l := &recordingListener{}
	m := NewSessionManager(b, WithApplicationListener(l))

	s, err := m.OpenSession(42, "clock", nil)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if s.PID() != 42 || s.Name() != "clock" {
		t.Errorf("session = pid %d name %q", s.PID(), s.Name())
	}
	if got := len(m.Sessions()); got != 1 {
		t.Errorf("Sessions() = %d, want 1", got)
	}

	id, err := m.CreateSurfaceFor(s, params())
	if err != nil {
		t.Fatalf("CreateSurfaceFor: %v", err)
	}
	if id != 1 {
		t.Errorf("first surface id = %d, want 1", id)
	}
	p, err := s.Surface(id)
	if err != nil {
		t.Fatalf("Surface(%d): %v", id, err)
	}

	if err := m.CloseSession(s); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if !s.Closed() {
		t.Error("session not closed")
	}
	if _, err := p.Size(); !errors.Is(err, ErrSurfaceGone) {
		t.Errorf("surface survived session close: %v", err)
	}
	if b.Len() != 0 {
		t.Errorf("arena holds %d surfaces after close", b.Len())
	}
	if err := m.CloseSession(s); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("second CloseSession = %v, want ErrUnknownSession", err)
	}
	if _, err := m.CreateSurfaceFor(s, params()); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("CreateSurfaceFor(closed) = %v, want ErrSessionClosed", err)
	}

	want := []string{"connected clock", "surface clock", "disconnected clock"}
	if got := l.get(); !slices.Equal(got, want) {
		t.Errorf("listener = %v, want %v", got, want)
	}
}

func TestSessionSurfaceIDs(t *testing.T) {
	m := NewSessionManager(newBuilder(t))
	s, _ := m.OpenSession(1, "app", nil)

	for range 3 {
		if _, err := m.CreateSurfaceFor(s, params()); err != nil {
			t.Fatalf("CreateSurfaceFor: %v", err)
		}
	}
	if got, want := s.SurfaceIDs(), []SurfaceID{1, 2, 3}; !slices.Equal(got, want) {
		t.Errorf("SurfaceIDs() = %v, want %v", got, want)
	}

	if err := s.DestroySurface(2); err != nil {
		t.Fatalf("DestroySurface: %v", err)
	}
	if err := s.DestroySurface(2); !errors.Is(err, ErrUnknownSurface) {
		t.Errorf("second DestroySurface = %v, want ErrUnknownSurface", err)
	}
	if _, err := s.Surface(2); !errors.Is(err, ErrUnknownSurface) {
		t.Errorf("Surface(2) = %v, want ErrUnknownSurface", err)
	}
	if got, want := s.SurfaceIDs(), []SurfaceID{1, 3}; !slices.Equal(got, want) {
		t.Errorf("SurfaceIDs() = %v, want %v", got, want)
	}
}

func TestHandleSurfaceCreatedRaises(t *testing.T) {
	b := newBuilder(t)
	m := NewSessionManager(b)
	sink := &recordingSink{}
	s, _ := m.OpenSession(1, "app", sink)

	first, _ := m.CreateSurfaceFor(s, params())
	m.HandleSurfaceCreated(s)
	second, _ := m.CreateSurfaceFor(s, params())

	// Raise the first one by hand, then let the shell focus the newest.
	p1, _ := s.Surface(first)
	if err := b.Raise(p1.Ref()); err != nil {
		t.Fatalf("Raise: %v", err)
	}
	m.HandleSurfaceCreated(s)

	stack := b.Surfaces()
	p2, _ := s.Surface(second)
	top, _ := b.Resolve(p2.Ref())
	if stack[len(stack)-1] != top {
		t.Error("newest surface is not on top after HandleSurfaceCreated")
	}

	want := []Event{
		{EventSurfaceCreated, first}, {EventSurfaceFocused, first},
		{EventSurfaceCreated, second}, {EventSurfaceFocused, second},
	}
	if got := sink.get(); !slices.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestHandleSurfaceCreatedWithoutSurfaces(t *testing.T) {
	m := NewSessionManager(newBuilder(t))
	sink := &recordingSink{}
	s, _ := m.OpenSession(1, "app", sink)
	m.HandleSurfaceCreated(s)
	m.HandleSurfaceCreated(nil)
	if got := sink.get(); len(got) != 0 {
		t.Errorf("events = %v, want none", got)
	}
}

func TestSessionEvents(t *testing.T) {
	m := NewSessionManager(newBuilder(t))
	var got []EventKind
	s, _ := m.OpenSession(1, "app", EventSinkFunc(func(ev Event) { got = append(got, ev.Kind) }))

	id, _ := m.CreateSurfaceFor(s, params())
	_ = s.DestroySurface(id)
	_ = m.CloseSession(s)

	want := []EventKind{EventSurfaceDestroyed, EventSessionClosed}
	if !slices.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestTrustSession(t *testing.T) {
	m := NewSessionManager(newBuilder(t))
	helper, _ := m.OpenSession(7, "helper", nil)

	if _, err := m.StartTrustSessionFor(helper, TrustSessionParameters{}); err == nil {
		t.Error("StartTrustSessionFor(pid 0) succeeded")
	}

	ts, err := m.StartTrustSessionFor(helper, TrustSessionParameters{BaseProcessID: 100})
	if err != nil {
		t.Fatalf("StartTrustSessionFor: %v", err)
	}
	if !ts.Active() || ts.Helper() != helper || helper.TrustSession() != ts {
		t.Error("trust session not attached to its helper")
	}
	if ts.Parameters().BaseProcessID != 100 {
		t.Errorf("BaseProcessID = %d", ts.Parameters().BaseProcessID)
	}
	if _, err := m.StartTrustSessionFor(helper, TrustSessionParameters{BaseProcessID: 101}); !errors.Is(err, ErrTrustSessionActive) {
		t.Errorf("second start = %v, want ErrTrustSessionActive", err)
	}
	if m.TrustSessions() != 1 {
		t.Errorf("TrustSessions() = %d, want 1", m.TrustSessions())
	}

	if err := m.StopTrustSession(ts); err != nil {
		t.Fatalf("StopTrustSession: %v", err)
	}
	if err := m.StopTrustSession(ts); !errors.Is(err, ErrTrustSessionStopped) {
		t.Errorf("second stop = %v, want ErrTrustSessionStopped", err)
	}
	if ts.Active() || helper.TrustSession() != nil || m.TrustSessions() != 0 {
		t.Error("trust session still attached after stop")
	}
}

func TestCloseSessionStopsTrust(t *testing.T) {
	m := NewSessionManager(newBuilder(t))
	helper, _ := m.OpenSession(7, "helper", nil)
	ts, _ := m.StartTrustSessionFor(helper, TrustSessionParameters{BaseProcessID: 100})

	_ = m.CloseSession(helper)
	if ts.Active() || m.TrustSessions() != 0 {
		t.Error("trust session survived its helper")
	}
}

func TestCreateSurfaceWithInputChannels(t *testing.T) {
	var made []*SocketInputChannel
	m := NewSessionManager(newBuilder(t), WithInputChannels(func() (InputChannel, error) {
		ch, err := NewSocketInputChannel()
		if err == nil {
			made = append(made, ch)
		}
		return ch, err
	}))
	s, _ := m.OpenSession(1, "app", nil)

	id, err := m.CreateSurfaceFor(s, params())
	if err != nil {
		t.Fatalf("CreateSurfaceFor: %v", err)
	}
	p, _ := s.Surface(id)
	if !p.SupportsInput() {
		t.Fatal("surface has no input channel")
	}
	fd, _ := p.ClientInputFD()
	if fd != made[0].ClientFD() {
		t.Errorf("ClientInputFD() = %d, want %d", fd, made[0].ClientFD())
	}

	_ = m.CloseSession(s)
	made[0].mu.Lock()
	closed := made[0].closed
	made[0].mu.Unlock()
	if !closed {
		t.Error("input channel left open after session close")
	}
}

func TestCreateSurfaceInputFailure(t *testing.T) {
	boom := errors.New("boom")
	b := newBuilder(t)
	m := NewSessionManager(b, WithInputChannels(func() (InputChannel, error) { return nil, boom }))
	s, _ := m.OpenSession(1, "app", nil)
	if _, err := m.CreateSurfaceFor(s, params()); !errors.Is(err, boom) {
		t.Errorf("CreateSurfaceFor = %v, want boom", err)
	}
	if b.Len() != 0 {
		t.Errorf("arena holds %d surfaces", b.Len())
	}
}
