//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

package dag

import "trpc.group/trpc-go/trpc-pipeline-go/dispatcher"

// Option configures an Orchestrator.
type Option func(*Options)

// Options contains the configuration of an Orchestrator.
type Options struct {
	// Dispatcher runs container leaf tasks.
	Dispatcher dispatcher.Dispatcher
	// Importer runs importer leaf tasks.
	Importer dispatcher.Dispatcher
	// MaxLoopWorkers bounds concurrent loop elements. Values below 2 run
	// elements sequentially (default).
	MaxLoopWorkers int
}

// WithDispatcher sets the dispatcher for container leaf tasks.
func WithDispatcher(d dispatcher.Dispatcher) Option {
	return func(o *Options) {
		o.Dispatcher = d
	}
}

// WithImporter sets the dispatcher for importer leaf tasks.
func WithImporter(d dispatcher.Dispatcher) Option {
	return func(o *Options) {
		o.Importer = d
	}
}

// WithMaxLoopWorkers runs up to n loop elements concurrently. A task's
// iteratorPolicy.parallelismLimit lowers the bound further.
func WithMaxLoopWorkers(n int) Option {
	return func(o *Options) {
		o.MaxLoopWorkers = n
	}
}
