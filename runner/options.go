//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

package runner

import (
	"time"

	"trpc.group/trpc-go/trpc-pipeline-go/artifact"
	"trpc.group/trpc-go/trpc-pipeline-go/dispatcher"
)

// DefaultPipelineRoot is where task directories and output artifacts are
// written when no pipeline root is configured.
const DefaultPipelineRoot = "./local_outputs"

// Option is a function that configures a Runner.
type Option func(*Options)

// Options is the options for the Runner.
type Options struct {
	dispatcher      dispatcher.Dispatcher
	importer        dispatcher.Dispatcher
	artifactService artifact.Service
	pipelineRoot    string
	runID           string
	maxLoopWorkers  int
	timeout         time.Duration
}

// WithDispatcher sets the dispatcher for container tasks. By default
// container commands run as local subprocesses.
func WithDispatcher(d dispatcher.Dispatcher) Option {
	return func(opts *Options) {
		opts.dispatcher = d
	}
}

// WithImporter sets the dispatcher for importer tasks. By default artifacts
// are imported into the runner's artifact service.
func WithImporter(d dispatcher.Dispatcher) Option {
	return func(opts *Options) {
		opts.importer = d
	}
}

// WithArtifactService sets the artifact service used by the default
// dispatcher and importer.
func WithArtifactService(service artifact.Service) Option {
	return func(opts *Options) {
		opts.artifactService = service
	}
}

// WithPipelineRoot sets the directory under which task outputs are written.
func WithPipelineRoot(root string) Option {
	return func(opts *Options) {
		opts.pipelineRoot = root
	}
}

// WithRunID fixes the run id instead of generating a UUID per run.
func WithRunID(id string) Option {
	return func(opts *Options) {
		opts.runID = id
	}
}

// WithMaxLoopWorkers runs up to n loop elements concurrently.
func WithMaxLoopWorkers(n int) Option {
	return func(opts *Options) {
		opts.maxLoopWorkers = n
	}
}

// WithTimeout bounds the duration of a whole run.
func WithTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.timeout = timeout
	}
}
