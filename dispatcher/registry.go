//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNoHandler is returned when no dispatcher is registered for a task.
var ErrNoHandler = errors.New("no dispatcher registered for task")

// Registry routes requests to dispatchers registered by component name or
// executor label. Component names take precedence. Requests matching neither
// go to the fallback, if any.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Dispatcher
	fallback Dispatcher
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithFallback sets the dispatcher used for unregistered tasks.
func WithFallback(d Dispatcher) RegistryOption {
	return func(r *Registry) {
		r.fallback = d
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{handlers: make(map[string]Dispatcher)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds d to a component name or executor label, replacing any
// previous binding.
func (r *Registry) Register(name string, d Dispatcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = d
}

// RegisterFunc binds fn to a component name or executor label.
func (r *Registry) RegisterFunc(name string, fn Func) {
	r.Register(name, fn)
}

// Dispatch implements Dispatcher.
func (r *Registry) Dispatch(ctx context.Context, req *Request) (Result, error) {
	d, ok := r.lookup(req)
	if !ok {
		return Result{}, fmt.Errorf("%w: component %q, executor %q",
			ErrNoHandler, req.ComponentName, req.ExecutorLabel)
	}
	return d.Dispatch(ctx, req)
}

func (r *Registry) lookup(req *Request) (Dispatcher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.handlers[req.ComponentName]; ok {
		return d, true
	}
	if d, ok := r.handlers[req.ExecutorLabel]; ok {
		return d, true
	}
	if r.fallback != nil {
		return r.fallback, true
	}
	return nil, false
}
