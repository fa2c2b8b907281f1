// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package server wires the display server together and runs it.
//
// A Server brings the components up in dependency order (allocator,
// surface arena, shell, composer, hardware device, compositor), runs the
// start callbacks once the compositor is presenting, and tears everything
// down in reverse when its context ends or Stop is called:
//
//	srv := server.New(cfg)
//	srv.AddStartCallback(func() { log.Print("display up") })
//	os.Exit(srv.Run(ctx))
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/gogpu/display"
	"github.com/gogpu/display/buffer"
	"github.com/gogpu/display/compositor"
	"github.com/gogpu/display/config"
	"github.com/gogpu/display/hwc"
	"github.com/gogpu/display/shell"
	"github.com/gogpu/display/surfaces"
)

// Exit statuses returned by Run.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// ErrRunning is returned when Run is called on a running server.
var ErrRunning = errors.New("server: already running")

// Server is a display server instance. A Server runs at most once at a
// time; component accessors are valid from the start callbacks until the
// stop callbacks return.
type Server struct {
	cfg  *config.Config
	opts options

	mu      sync.Mutex
	onStart []func()
	onStop  []func()
	running bool
	cancel  context.CancelFunc
	stack   *stack
}

// stack holds the running components.
type stack struct {
	alloc      buffer.Allocator
	arena      *surfaces.Arena
	shell      *shell.SessionManager
	composer   hwc.Composer
	ownsComp   bool
	organizer  *hwc.LayerOrganizer
	device     hwc.Device
	compositor *compositor.Compositor
}

// New creates a server for cfg. A nil cfg uses config.Default.
func New(cfg *config.Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{cfg: cfg, opts: o}
}

// Config returns the server configuration.
func (s *Server) Config() *config.Config { return s.cfg }

// AddStartCallback adds fn to run once the server is presenting frames.
// Start callbacks run in the order they were added.
func (s *Server) AddStartCallback(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStart = append(s.onStart, fn)
}

// AddStopCallback adds fn to run when the server begins shutting down,
// before any component is torn down. Stop callbacks run most recent first.
func (s *Server) AddStopCallback(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStop = append(s.onStop, fn)
}

// Stop asks a running server to shut down. It does not wait.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// SurfaceDefaults returns surface parameters carrying the configured
// swapchain defaults.
func (s *Server) SurfaceDefaults() surfaces.Parameters {
	return surfaces.DefaultParameters().
		WithFormat(s.cfg.SurfaceFormat()).
		WithBuffers(s.cfg.Bundle.Buffers)
}

// Shell returns the session layer, or nil when the server is not running.
func (s *Server) Shell() *shell.SessionManager {
	if st := s.current(); st != nil {
		return st.shell
	}
	return nil
}

// Arena returns the surface arena, or nil when the server is not running.
func (s *Server) Arena() *surfaces.Arena {
	if st := s.current(); st != nil {
		return st.arena
	}
	return nil
}

// Device returns the hardware composer device, or nil when the server is
// not running.
func (s *Server) Device() hwc.Device {
	if st := s.current(); st != nil {
		return st.device
	}
	return nil
}

// Compositor returns the compositor, or nil when the server is not running.
func (s *Server) Compositor() *compositor.Compositor {
	if st := s.current(); st != nil {
		return st.compositor
	}
	return nil
}

// Allocator returns the buffer allocator, or nil when the server is not
// running.
func (s *Server) Allocator() buffer.Allocator {
	if st := s.current(); st != nil {
		return st.alloc
	}
	return nil
}

func (s *Server) current() *stack {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stack
}

// Run runs the server until ctx is done, Stop is called or the compositor
// fails, and returns a process exit status. Any failure is passed to the
// exception handler and yields ExitFailure.
func (s *Server) Run(ctx context.Context) int {
	if err := s.Serve(ctx); err != nil {
		s.opts.exceptionHandler(err)
		return ExitFailure
	}
	return ExitSuccess
}

// Serve is Run returning the error instead of an exit status.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrRunning
	}
	s.running = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.mu.Unlock()
	}()

	if err := ApplyEnvHacks(s.cfg.Server.EnvHacks); err != nil {
		return err
	}

	st, err := s.bringUp()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.stack = st
	s.mu.Unlock()

	loopErr := make(chan error, 1)
	go func() { loopErr <- st.compositor.Run(ctx) }()

	display.Logger().Info("server: started",
		"size", s.cfg.DisplaySize().String(), "generation", st.device.Generation().String())
	s.runCallbacks(true)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-loopErr:
		if runErr != nil {
			runErr = fmt.Errorf("server: compositor: %w", runErr)
		}
	}

	s.runCallbacks(false)
	cancel()
	err = errors.Join(runErr, st.tearDown())

	s.mu.Lock()
	s.stack = nil
	s.mu.Unlock()

	display.Logger().Info("server: stopped", "err", err)
	return err
}

func (s *Server) runCallbacks(start bool) {
	s.mu.Lock()
	var fns []func()
	if start {
		fns = append(fns, s.onStart...)
	} else {
		for i := len(s.onStop) - 1; i >= 0; i-- {
			fns = append(fns, s.onStop[i])
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// bringUp creates the components in dependency order. On failure the
// components created so far are torn down.
func (s *Server) bringUp() (_ *stack, err error) {
	st := &stack{}
	defer func() {
		if err != nil {
			err = errors.Join(err, st.tearDown())
		}
	}()

	st.alloc, err = s.allocator()
	if err != nil {
		return nil, err
	}
	st.arena = surfaces.NewArena(st.alloc)

	shellOpts := []shell.Option{shell.WithApplicationListener(s.opts.listener)}
	if s.cfg.Shell.InputChannels {
		shellOpts = append(shellOpts, shell.WithSocketInputChannels())
	}
	st.shell = shell.NewSessionManager(st.arena, shellOpts...)

	st.composer = s.opts.composer
	if st.composer == nil {
		st.composer, err = hwc.Open(s.cfg.HWC.Backend, hwc.BackendOptions{VsyncInterval: s.cfg.VsyncInterval()})
		if err != nil {
			return nil, fmt.Errorf("server: open composer: %w", err)
		}
		st.ownsComp = true
	}

	st.organizer = hwc.NewLayerOrganizer()
	st.device, err = hwc.NewDevice(s.cfg.Generation(), st.composer, st.organizer,
		hwc.WithHotplugHandler(func(d hwc.Display, connected bool) {
			display.Logger().Info("server: hotplug", "display", int32(d), "connected", connected)
		}),
		hwc.WithInvalidateHandler(func() {
			display.Logger().Debug("server: composer requested redraw")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("server: hwc device: %w", err)
	}

	st.compositor, err = compositor.New(st.device, st.organizer, st.arena, st.alloc,
		s.cfg.DisplaySize(), compositor.WithFramebufferUsage(s.cfg.FramebufferUsage()))
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Server) allocator() (buffer.Allocator, error) {
	switch {
	case s.opts.allocator != nil:
		return s.opts.allocator, nil
	case s.opts.provider != nil:
		a, err := buffer.NewHALAllocatorFromProvider(s.opts.provider)
		if err != nil {
			return nil, fmt.Errorf("server: allocator: %w", err)
		}
		return a, nil
	default:
		return buffer.NewShmAllocator(), nil
	}
}

// tearDown releases the components in reverse bring-up order. Sessions are
// closed first so blocked clients return before their surfaces go.
func (st *stack) tearDown() error {
	var errs []error
	if st.shell != nil {
		for _, sess := range st.shell.Sessions() {
			if err := st.shell.CloseSession(sess); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if st.compositor != nil {
		errs = append(errs, st.compositor.Close())
	}
	if st.device != nil {
		errs = append(errs, st.device.Close())
	}
	if st.arena != nil {
		errs = append(errs, st.arena.Close())
	}
	if c, ok := st.composer.(io.Closer); ok && st.ownsComp {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// ApplyEnvHacks sets the environment variables listed in value, a colon
// separated list of NAME=VALUE pairs. A pair without "=" sets NAME to the
// empty string.
func ApplyEnvHacks(value string) error {
	if value == "" {
		return nil
	}
	for _, pair := range strings.Split(value, ":") {
		if pair == "" {
			continue
		}
		name, val, _ := strings.Cut(pair, "=")
		if name == "" {
			return fmt.Errorf("server: env hack %q has no name", pair)
		}
		if err := os.Setenv(name, val); err != nil {
			return fmt.Errorf("server: env hack %q: %w", pair, err)
		}
	}
	return nil
}

func reportError(err error) {
	display.Logger().Error("server: run failed", "err", err)
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}
