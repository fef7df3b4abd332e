//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

// Package importer provides the dispatcher for importer leaf tasks. An
// importer does not run anything: it registers a pre-existing artifact URI
// with the artifact service and hands it to downstream tasks.
package importer

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"trpc.group/trpc-go/trpc-pipeline-go/artifact"
	"trpc.group/trpc-go/trpc-pipeline-go/dispatcher"
	"trpc.group/trpc-go/trpc-pipeline-go/log"
	"trpc.group/trpc-go/trpc-pipeline-go/pipelinespec"
)

// DefaultOutputKey is the output artifact key used when the component does
// not declare one.
const DefaultOutputKey = "artifact"

var (
	// ErrNotImporter is returned for requests whose executor is not an importer.
	ErrNotImporter = errors.New("importer: executor is not an importer")
	// ErrNoArtifactURI is returned when the artifact URI cannot be resolved.
	ErrNoArtifactURI = errors.New("importer: artifact uri is not set")
)

// Dispatcher registers imported artifacts.
type Dispatcher struct {
	artifacts artifact.Service
}

// New creates an importer dispatcher recording artifacts in svc.
func New(svc artifact.Service) *Dispatcher {
	return &Dispatcher{artifacts: svc}
}

// Dispatch implements dispatcher.Dispatcher.
func (d *Dispatcher) Dispatch(ctx context.Context, req *dispatcher.Request) (dispatcher.Result, error) {
	if req.Executor.Kind() != pipelinespec.ExecutorImporter {
		return dispatcher.Result{}, fmt.Errorf("%w: task %q", ErrNotImporter, req.TaskName)
	}
	spec := req.Executor.Importer
	uri, err := resolveURI(spec.ArtifactURI, req.Arguments)
	if err != nil {
		return dispatcher.Result{}, fmt.Errorf("task %q: %w", req.TaskName, err)
	}
	outputKey := outputKey(req.Component)
	runInfo := artifact.RunInfo{PipelineName: req.Run.PipelineName, RunID: req.Run.RunID}
	key := artifact.Key(req.TaskName, outputKey)

	if !spec.Reimport {
		existing, err := d.artifacts.LoadArtifact(ctx, runInfo, key, nil)
		if err != nil {
			return dispatcher.Result{}, fmt.Errorf("load artifact %s: %w", key, err)
		}
		if existing != nil && existing.URI == uri {
			log.Debugf("importer: reusing %s for task %q", uri, req.TaskName)
			return dispatcher.Succeeded(map[string]any{outputKey: existing}), nil
		}
	}

	art := &artifact.Artifact{
		Name:        key,
		URI:         uri,
		SchemaTitle: spec.TypeSchema.SchemaTitle,
		Metadata:    maps.Clone(spec.Metadata),
	}
	if art.Metadata == nil {
		art.Metadata = map[string]any{}
	}
	version, err := d.artifacts.SaveArtifact(ctx, runInfo, key, art)
	if err != nil {
		return dispatcher.Result{}, fmt.Errorf("save artifact %s: %w", key, err)
	}
	log.Debugf("importer: imported %s as %s (version %d)", uri, key, version)
	return dispatcher.Succeeded(map[string]any{outputKey: art}), nil
}

// resolveURI returns the constant URI or the value of the named runtime
// parameter among args.
func resolveURI(v *pipelinespec.ValueOrRuntimeParameter, args map[string]any) (string, error) {
	switch {
	case v == nil:
		return "", ErrNoArtifactURI
	case v.Constant != nil && v.Constant.Value != nil:
		uri := v.Constant.GetStringValue()
		if uri == "" {
			return "", fmt.Errorf("%w: constant is not a non-empty string", ErrNoArtifactURI)
		}
		return uri, nil
	case v.RuntimeParameter != "":
		raw, ok := args[v.RuntimeParameter]
		if !ok {
			return "", fmt.Errorf("%w: runtime parameter %q is not bound", ErrNoArtifactURI, v.RuntimeParameter)
		}
		uri, ok := raw.(string)
		if !ok || uri == "" {
			return "", fmt.Errorf("%w: runtime parameter %q is %T, want non-empty string",
				ErrNoArtifactURI, v.RuntimeParameter, raw)
		}
		return uri, nil
	default:
		return "", ErrNoArtifactURI
	}
}

// outputKey returns the component's single declared output artifact, or
// DefaultOutputKey.
func outputKey(comp *pipelinespec.ComponentSpec) string {
	if comp == nil || comp.OutputDefinitions == nil || len(comp.OutputDefinitions.Artifacts) != 1 {
		return DefaultOutputKey
	}
	for k := range comp.OutputDefinitions.Artifacts {
		return k
	}
	return DefaultOutputKey
}
