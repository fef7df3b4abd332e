//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

// Package dispatcher defines the contract between the DAG orchestrator and
// the executors that run single leaf tasks.
package dispatcher

import (
	"context"
	"fmt"

	"trpc.group/trpc-go/trpc-pipeline-go/pipelinespec"
	"trpc.group/trpc-go/trpc-pipeline-go/status"
)

// Dispatcher runs one leaf task to completion.
//
// Ordinary task failure (the work itself reported an error, a process exited
// non-zero) is returned as a Result with status.Failure and a nil error. A
// non-nil error means the request could not be served at all and terminates
// the pipeline run.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *Request) (Result, error)
}

// Func adapts an ordinary function to the Dispatcher interface.
type Func func(ctx context.Context, req *Request) (Result, error)

// Dispatch calls f(ctx, req).
func (f Func) Dispatch(ctx context.Context, req *Request) (Result, error) { return f(ctx, req) }

// Run identifies one pipeline run.
type Run struct {
	PipelineName string
	RunID        string
	PipelineRoot string
}

// Name is the run's job name, unique across runs of the same pipeline.
func (r Run) Name() string {
	return fmt.Sprintf("%s-%s", r.PipelineName, r.RunID)
}

// Request carries everything a dispatcher needs to run a leaf task.
type Request struct {
	Run Run
	// TaskName is unique across the whole run, including loop elements.
	TaskName string
	// ScopeTask is the task's key inside its enclosing scope.
	ScopeTask     string
	ComponentName string
	Component     *pipelinespec.ComponentSpec
	ExecutorLabel string
	Executor      *pipelinespec.ExecutorSpec
	// Arguments has one entry per bound input. Parameters are native values,
	// artifacts are *artifact.Artifact.
	Arguments map[string]any
	// Attempt counts dispatches of this task, starting at 1.
	Attempt int
}

// Result is the outcome of one dispatch.
type Result struct {
	Outputs map[string]any
	Status  status.Status
}

// Succeeded builds a successful result.
func Succeeded(outputs map[string]any) Result {
	if outputs == nil {
		outputs = map[string]any{}
	}
	return Result{Outputs: outputs, Status: status.Success}
}

// Failed builds a failed result.
func Failed() Result {
	return Result{Outputs: map[string]any{}, Status: status.Failure}
}
