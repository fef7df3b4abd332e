//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

// Package runner runs compiled pipelines locally. It assigns each run its
// identity, invokes the root scope and reports the failure trace.
package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"trpc.group/trpc-go/trpc-pipeline-go/artifact"
	"trpc.group/trpc-go/trpc-pipeline-go/artifact/inmemory"
	"trpc.group/trpc-go/trpc-pipeline-go/dag"
	"trpc.group/trpc-go/trpc-pipeline-go/dispatcher"
	"trpc.group/trpc-go/trpc-pipeline-go/dispatcher/local"
	"trpc.group/trpc-go/trpc-pipeline-go/importer"
	itelemetry "trpc.group/trpc-go/trpc-pipeline-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-pipeline-go/log"
	"trpc.group/trpc-go/trpc-pipeline-go/pipelinespec"
	"trpc.group/trpc-go/trpc-pipeline-go/status"
	"trpc.group/trpc-go/trpc-pipeline-go/telemetry/trace"
)

// Result is the outcome of one pipeline run.
type Result struct {
	RunID        string `json:"runId"`
	PipelineName string `json:"pipelineName"`
	// Outputs holds the root component's declared outputs. It is empty
	// unless Status is status.Success.
	Outputs map[string]any `json:"outputs"`
	Status  status.Status  `json:"status"`
	// FailureTrace lists, in order, the failing leaf tasks.
	FailureTrace []string `json:"failureTrace"`
}

// Runner runs one compiled pipeline.
type Runner struct {
	spec *pipelinespec.PipelineSpec
	opts Options
}

// New creates a Runner for spec.
func New(spec *pipelinespec.PipelineSpec, opts ...Option) (*Runner, error) {
	if spec == nil {
		return nil, errors.New("pipeline spec is nil")
	}
	if spec.Root == nil {
		return nil, pipelinespec.ErrNoRoot
	}
	options := Options{pipelineRoot: DefaultPipelineRoot, maxLoopWorkers: 1}
	for _, opt := range opts {
		opt(&options)
	}
	root, err := filepath.Abs(options.pipelineRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve pipeline root %s: %w", options.pipelineRoot, err)
	}
	options.pipelineRoot = root
	if options.artifactService == nil {
		options.artifactService = inmemory.NewService()
	}
	if options.dispatcher == nil {
		options.dispatcher = local.New(local.WithArtifactService(options.artifactService))
	}
	if options.importer == nil {
		options.importer = importer.New(options.artifactService)
	}
	return &Runner{spec: spec, opts: options}, nil
}

// ArtifactService returns the service recording the run's artifacts.
func (r *Runner) ArtifactService() artifact.Service {
	return r.opts.artifactService
}

// Run executes the pipeline with the caller's arguments. Task failure is
// reported through Result.Status and Result.FailureTrace; a non-nil error
// means the pipeline or its environment is broken.
func (r *Runner) Run(ctx context.Context, args map[string]any) (*Result, error) {
	runID := r.opts.runID
	if runID == "" {
		runID = uuid.New().String()
	}
	run := dispatcher.Run{
		PipelineName: r.spec.PipelineInfo.Name,
		RunID:        runID,
		PipelineRoot: r.opts.pipelineRoot,
	}
	if r.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.timeout)
		defer cancel()
	}

	ctx, span := trace.Tracer.Start(ctx, itelemetry.SpanNameRunPipeline)
	defer span.End()
	span.SetAttributes(
		attribute.String(itelemetry.KeyPipelineName, run.PipelineName),
		attribute.String(itelemetry.KeyRunID, run.RunID),
	)

	orch, err := dag.New(r.spec, run,
		dag.WithDispatcher(r.opts.dispatcher),
		dag.WithImporter(r.opts.importer),
		dag.WithMaxLoopWorkers(r.opts.maxLoopWorkers),
	)
	if err != nil {
		return nil, err
	}

	log.Infof("run %s: started (root=%s)", run.Name(), run.PipelineRoot)
	ft := dag.NewFailureTrace()
	outputs, st, err := orch.Run(ctx, args, ft)
	if err != nil {
		span.SetAttributes(attribute.String(itelemetry.KeyError, err.Error()))
		log.Errorf("run %s: %v", run.Name(), err)
		return nil, fmt.Errorf("run %s: %w", run.Name(), err)
	}
	span.SetAttributes(attribute.String(itelemetry.KeyStatus, string(st)))

	res := &Result{
		RunID:        runID,
		PipelineName: run.PipelineName,
		Outputs:      outputs,
		Status:       st,
		FailureTrace: ft.Names(),
	}
	if st == status.Failure {
		log.Warnf("run %s: failed, failure trace: %v", run.Name(), res.FailureTrace)
	} else {
		log.Infof("run %s: succeeded", run.Name())
	}
	return res, nil
}
