//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

// Package local provides a dispatcher that runs container leaf tasks as
// local subprocesses. The image is ignored: the resolved command runs on the
// host, inside the task directory under the pipeline root.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"trpc.group/trpc-go/trpc-pipeline-go/artifact"
	"trpc.group/trpc-go/trpc-pipeline-go/dispatcher"
	"trpc.group/trpc-go/trpc-pipeline-go/internal/executor"
	"trpc.group/trpc-go/trpc-pipeline-go/log"
)

// LogFile is the file, inside the task directory, receiving the task's
// combined stdout and stderr.
const LogFile = "task.log"

// Dispatcher runs container tasks as subprocesses.
type Dispatcher struct {
	timeout   time.Duration
	env       []string
	artifacts artifact.Service
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout bounds each task attempt. A task that runs out of time fails.
// Zero means no limit.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

// WithEnv adds NAME=value pairs to every task's environment.
func WithEnv(env ...string) Option {
	return func(d *Dispatcher) {
		d.env = append(d.env, env...)
	}
}

// WithArtifactService records output artifacts in svc.
func WithArtifactService(svc artifact.Service) Option {
	return func(d *Dispatcher) {
		d.artifacts = svc
	}
}

// New creates a subprocess dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch implements dispatcher.Dispatcher. A non-zero exit, a timeout or a
// missing declared output is a task failure; a cancelled ctx or a broken
// task specification is an error.
func (d *Dispatcher) Dispatch(ctx context.Context, req *dispatcher.Request) (dispatcher.Result, error) {
	task, err := executor.Prepare(req)
	if err != nil {
		return dispatcher.Result{}, err
	}
	cmdArgs, err := task.Command()
	if err != nil {
		return dispatcher.Result{}, err
	}
	if len(cmdArgs) == 0 {
		return dispatcher.Result{}, fmt.Errorf("task %q has an empty command", req.TaskName)
	}
	env, err := task.Env()
	if err != nil {
		return dispatcher.Result{}, err
	}

	logPath := filepath.Join(task.Dir, LogFile)
	logFile, err := os.Create(logPath)
	if err != nil {
		return dispatcher.Result{}, fmt.Errorf("create task log: %w", err)
	}
	defer logFile.Close()

	runCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(runCtx, cmdArgs[0], cmdArgs[1:]...) //nolint:gosec
	cmd.Dir = task.Dir
	cmd.Env = append(append(os.Environ(), d.env...), env...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	log.Debugf("local: run %q: %v", req.TaskName, cmdArgs)
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return dispatcher.Result{}, fmt.Errorf("task %q: %w", req.TaskName, ctxErr)
		}
		log.Warnf("local: task %q failed (cwd=%s, log=%s): %v", req.TaskName, task.Dir, logPath, err)
		return dispatcher.Failed(), nil
	}

	outputs, err := task.CollectOutputs(ctx, d.artifacts)
	if errors.Is(err, executor.ErrMissingOutput) || errors.Is(err, executor.ErrInvalidOutput) {
		log.Warnf("local: task %q: %v", req.TaskName, err)
		return dispatcher.Failed(), nil
	}
	if err != nil {
		return dispatcher.Result{}, err
	}
	return dispatcher.Succeeded(outputs), nil
}
