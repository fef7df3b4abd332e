//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

// Package dag executes compiled pipelines scope by scope.
//
// A scope is one invocation of a DAG component. Each invocation gets its own
// store, runs its tasks in dependency order, recurses into nested DAG
// components and loop elements, and hands leaf tasks to a dispatcher. Task
// failure travels upward as status.Failure; malformed pipelines abort with an
// error.
package dag

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"trpc.group/trpc-go/trpc-pipeline-go/dispatcher"
	itelemetry "trpc.group/trpc-go/trpc-pipeline-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-pipeline-go/log"
	"trpc.group/trpc-go/trpc-pipeline-go/pipelinespec"
	"trpc.group/trpc-go/trpc-pipeline-go/status"
	"trpc.group/trpc-go/trpc-pipeline-go/store"
	"trpc.group/trpc-go/trpc-pipeline-go/telemetry/metric"
	"trpc.group/trpc-go/trpc-pipeline-go/telemetry/trace"
)

// Orchestrator runs the scopes of one pipeline run.
type Orchestrator struct {
	spec     *pipelinespec.PipelineSpec
	run      dispatcher.Run
	opts     Options
	runs     otelmetric.Int64Counter
	failures otelmetric.Int64Counter
}

// New creates an orchestrator for spec. run identifies the pipeline run and
// is passed to every dispatch.
func New(spec *pipelinespec.PipelineSpec, run dispatcher.Run, opts ...Option) (*Orchestrator, error) {
	if spec == nil {
		return nil, errors.New("pipeline spec is nil")
	}
	if spec.Root == nil {
		return nil, pipelinespec.ErrNoRoot
	}
	o := &Orchestrator{spec: spec, run: run, opts: Options{MaxLoopWorkers: 1}}
	for _, opt := range opts {
		opt(&o.opts)
	}
	var err error
	if o.runs, err = metric.Meter.Int64Counter(itelemetry.MetricTaskRuns,
		otelmetric.WithDescription("Leaf task dispatches.")); err != nil {
		return nil, fmt.Errorf("create task run counter: %w", err)
	}
	if o.failures, err = metric.Meter.Int64Counter(itelemetry.MetricTaskFailures,
		otelmetric.WithDescription("Leaf task dispatches that ended in failure.")); err != nil {
		return nil, fmt.Errorf("create task failure counter: %w", err)
	}
	return o, nil
}

// Run executes the pipeline's root scope with the caller's arguments.
func (o *Orchestrator) Run(ctx context.Context, args map[string]any, ft *FailureTrace) (map[string]any, status.Status, error) {
	return o.RunScope(ctx, o.spec.Root, args, ft)
}

// RunScope executes one DAG component with the given arguments and returns
// its declared outputs. On task failure it returns empty outputs and
// status.Failure, with the failing leaf recorded in ft. A non-nil error is a
// fatal configuration or engine error.
func (o *Orchestrator) RunScope(
	ctx context.Context,
	scope *pipelinespec.ComponentSpec,
	args map[string]any,
	ft *FailureTrace,
) (map[string]any, status.Status, error) {
	if ft == nil {
		ft = NewFailureTrace()
	}
	return o.runScope(ctx, scope, args, ft, 0, "")
}

func (o *Orchestrator) runScope(
	ctx context.Context,
	scope *pipelinespec.ComponentSpec,
	args map[string]any,
	ft *FailureTrace,
	depth int,
	suffix string,
) (map[string]any, status.Status, error) {
	if kind := scope.Kind(); kind != pipelinespec.ImplementationDAG {
		return nil, "", fmt.Errorf("%w: scope implementation %s", ErrUnknownKind, kind)
	}
	ctx, span := trace.Tracer.Start(ctx, itelemetry.SpanNameRunScope)
	defer span.End()
	itelemetry.TraceScope(span, o.run, depth, suffix)
	log.Debugf("run scope: depth=%d suffix=%q tasks=%d", depth, suffix, len(scope.DAG.Tasks))

	merged, err := JoinDefaults(args, scope.InputDefinitions)
	if err != nil {
		itelemetry.TraceError(span, err)
		return nil, "", err
	}
	st := store.New(merged)
	log.Debugf("scope inputs: depth=%d suffix=%q inputs=%v", depth, suffix, st.InputNames())

	order, err := TopologicalOrder(scope.DAG.Tasks)
	if err != nil {
		itelemetry.TraceError(span, err)
		return nil, "", err
	}
	if err := checkElementKeys(scope.DAG.Tasks); err != nil {
		itelemetry.TraceError(span, err)
		return nil, "", err
	}

	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return nil, "", fmt.Errorf("task %q: %w", name, err)
		}
		res, err := o.runTask(ctx, name, scope.DAG.Tasks[name], st, ft, depth, suffix)
		if err != nil {
			itelemetry.TraceError(span, err)
			return nil, "", fmt.Errorf("task %q: %w", name, err)
		}
		switch res.Status {
		case status.Failure:
			log.Infof("scope failed at task %q (depth=%d)", name, depth)
			itelemetry.TraceStatus(span, status.Failure)
			return map[string]any{}, status.Failure, nil
		case status.Success:
			if err := st.RecordOutputs(name, res.Outputs); err != nil {
				return nil, "", fmt.Errorf("task %q: %w", name, err)
			}
		default:
			return nil, "", fmt.Errorf("%w: task %q returned status %q", ErrUnknownKind, name, res.Status)
		}
	}

	outputs, err := CollectOutputs(scope.DAG.Outputs, st)
	if err != nil {
		itelemetry.TraceError(span, err)
		return nil, "", err
	}
	itelemetry.TraceStatus(span, status.Success)
	log.Debugf("scope done: depth=%d suffix=%q recorded=%v outputs=%d", depth, suffix, st.Tasks(), len(outputs))
	return outputs, status.Success, nil
}

// runTask runs one task of a scope: a nested scope, a loop, or a leaf.
func (o *Orchestrator) runTask(
	ctx context.Context,
	name string,
	task *pipelinespec.PipelineTaskSpec,
	st *store.Store,
	ft *FailureTrace,
	depth int,
	suffix string,
) (dispatcher.Result, error) {
	if task.TriggerPolicy != nil && task.TriggerPolicy.Condition != "" {
		return dispatcher.Result{}, fmt.Errorf("%w: %s", ErrNotSupported, FeatureCondition)
	}
	comp, err := o.spec.Component(task.ComponentRef.Name)
	if err != nil {
		return dispatcher.Result{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	switch kind := comp.Kind(); kind {
	case pipelinespec.ImplementationDAG:
		switch iter := task.IteratorKind(); iter {
		case pipelinespec.IteratorNone:
			args, err := ResolveArguments(task.Inputs, st)
			if err != nil {
				return dispatcher.Result{}, err
			}
			outputs, s, err := o.runScope(ctx, comp, args, ft, depth+1, suffix)
			if err != nil {
				return dispatcher.Result{}, err
			}
			return dispatcher.Result{Outputs: outputs, Status: s}, nil
		case pipelinespec.IteratorParameter, pipelinespec.IteratorArtifact:
			return o.runLoop(ctx, name, task, comp, st, ft, depth, suffix)
		default:
			return dispatcher.Result{}, fmt.Errorf("%w: iterator %s", ErrUnknownKind, iter)
		}
	case pipelinespec.ImplementationExecutor:
		if task.IteratorKind() != pipelinespec.IteratorNone {
			return dispatcher.Result{}, fmt.Errorf("%w: iterator on leaf component %q",
				ErrNotSupported, task.ComponentRef.Name)
		}
		return o.runLeaf(ctx, name, task, comp, st, ft, suffix)
	default:
		return dispatcher.Result{}, fmt.Errorf("%w: component %q implementation %s",
			ErrUnknownKind, task.ComponentRef.Name, kind)
	}
}

// runLeaf resolves a leaf task's arguments and dispatches it, retrying per
// the task's retry policy. Only the final failure is recorded in ft.
func (o *Orchestrator) runLeaf(
	ctx context.Context,
	name string,
	task *pipelinespec.PipelineTaskSpec,
	comp *pipelinespec.ComponentSpec,
	st *store.Store,
	ft *FailureTrace,
	suffix string,
) (dispatcher.Result, error) {
	exec, err := o.spec.Executor(comp.ExecutorLabel)
	if err != nil {
		return dispatcher.Result{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	var d dispatcher.Dispatcher
	switch kind := exec.Kind(); kind {
	case pipelinespec.ExecutorContainer:
		d = o.opts.Dispatcher
	case pipelinespec.ExecutorImporter:
		d = o.opts.Importer
	default:
		return dispatcher.Result{}, fmt.Errorf("%w: executor %q kind %s", ErrUnknownKind, comp.ExecutorLabel, kind)
	}
	if d == nil {
		return dispatcher.Result{}, fmt.Errorf("%w for %s executor %q", ErrNoDispatcher, exec.Kind(), comp.ExecutorLabel)
	}
	policy, err := NewRetryPolicy(task.RetryPolicy)
	if err != nil {
		return dispatcher.Result{}, err
	}
	args, err := ResolveArguments(task.Inputs, st)
	if err != nil {
		return dispatcher.Result{}, err
	}

	req := &dispatcher.Request{
		Run:           o.run,
		TaskName:      task.ComponentRef.Name + suffix,
		ScopeTask:     name,
		ComponentName: task.ComponentRef.Name,
		Component:     comp,
		ExecutorLabel: comp.ExecutorLabel,
		Executor:      exec,
		Arguments:     args,
	}
	res, err := o.dispatch(ctx, d, req, policy)
	if err != nil {
		return dispatcher.Result{}, err
	}
	if res.Status == status.Failure {
		ft.Append(name)
	}
	return res, nil
}

func (o *Orchestrator) dispatch(
	ctx context.Context,
	d dispatcher.Dispatcher,
	req *dispatcher.Request,
	policy RetryPolicy,
) (dispatcher.Result, error) {
	kind := req.Executor.Kind().String()
	attrs := otelmetric.WithAttributes(attribute.String(itelemetry.KeyExecutorKind, kind))
	for attempt := 1; ; attempt++ {
		req.Attempt = attempt
		res, err := o.dispatchOnce(ctx, d, req, kind)
		if err != nil {
			return dispatcher.Result{}, err
		}
		o.runs.Add(ctx, 1, attrs)
		if res.Status.OK() {
			return res, nil
		}
		o.failures.Add(ctx, 1, attrs)
		if attempt >= policy.MaxAttempts {
			log.Warnf("task %q failed after %d attempt(s)", req.TaskName, attempt)
			return dispatcher.Failed(), nil
		}
		delay := policy.NextDelay(attempt)
		log.Infof("task %q failed (attempt %d/%d), retrying in %s",
			req.TaskName, attempt, policy.MaxAttempts, delay)
		if err := wait(ctx, delay); err != nil {
			return dispatcher.Result{}, fmt.Errorf("retry of %q: %w", req.TaskName, err)
		}
	}
}

func (o *Orchestrator) dispatchOnce(
	ctx context.Context,
	d dispatcher.Dispatcher,
	req *dispatcher.Request,
	kind string,
) (dispatcher.Result, error) {
	ctx, span := trace.Tracer.Start(ctx, itelemetry.NewExecuteTaskSpanName(req.ScopeTask))
	defer span.End()
	itelemetry.TraceDispatch(span, req, kind)
	log.Debugf("dispatch task %q (%s, attempt %d)", req.TaskName, kind, req.Attempt)

	res, err := d.Dispatch(ctx, req)
	if err != nil {
		itelemetry.TraceError(span, err)
		return dispatcher.Result{}, fmt.Errorf("dispatch %q: %w", req.TaskName, err)
	}
	if !res.Status.Valid() {
		return dispatcher.Result{}, fmt.Errorf("%w: dispatcher returned status %q for %q",
			ErrUnknownKind, res.Status, req.TaskName)
	}
	if res.Outputs == nil {
		res.Outputs = map[string]any{}
	}
	itelemetry.TraceStatus(span, res.Status)
	return res, nil
}
