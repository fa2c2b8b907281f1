// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package server

import (
	"github.com/gogpu/gpucontext"

	"github.com/gogpu/display/buffer"
	"github.com/gogpu/display/hwc"
	"github.com/gogpu/display/shell"
)

// Option configures a Server during creation.
//
// Example:
//
//	// Virtual composer, shared-memory buffers
//	srv := server.New(cfg)
//
//	// GPU-backed buffers from the host application's device
//	srv := server.New(cfg, server.WithDeviceProvider(provider))
type Option func(*options)

type options struct {
	allocator        buffer.Allocator
	provider         gpucontext.DeviceProvider
	composer         hwc.Composer
	listener         shell.ApplicationListener
	exceptionHandler func(error)
}

func defaultOptions() options {
	return options{
		exceptionHandler: reportError,
	}
}

// WithAllocator sets the buffer allocator for surfaces and framebuffers.
// It takes precedence over WithDeviceProvider.
func WithAllocator(a buffer.Allocator) Option {
	return func(o *options) {
		o.allocator = a
	}
}

// WithDeviceProvider backs hardware-usage buffers with textures on the
// provider's HAL device.
//
// Example:
//
//	srv := server.New(cfg, server.WithDeviceProvider(app.DeviceProvider()))
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithComposer uses c instead of opening the configured backend. The
// server does not close an injected composer.
func WithComposer(c hwc.Composer) Option {
	return func(o *options) {
		o.composer = c
	}
}

// WithApplicationListener observes application connects and disconnects.
func WithApplicationListener(l shell.ApplicationListener) Option {
	return func(o *options) {
		o.listener = l
	}
}

// WithExceptionHandler replaces the handler called when Run fails. The
// default logs the error.
func WithExceptionHandler(fn func(error)) Option {
	return func(o *options) {
		if fn != nil {
			o.exceptionHandler = fn
		}
	}
}
