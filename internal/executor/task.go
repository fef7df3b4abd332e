//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

// Package executor prepares container leaf tasks for execution and collects
// their outputs. It is shared by the local and container dispatchers.
package executor

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"slices"

	"trpc.group/trpc-go/trpc-pipeline-go/artifact"
	"trpc.group/trpc-go/trpc-pipeline-go/dispatcher"
	"trpc.group/trpc-go/trpc-pipeline-go/pipelinespec"
)

// ExecutorOutputFile is the name of the optional JSON file a task writes to
// report its outputs.
const ExecutorOutputFile = "executor_output.json"

// Output errors. Both are failures of the task itself.
var (
	ErrMissingOutput = errors.New("declared output not produced")
	ErrInvalidOutput = errors.New("invalid task output")
)

// Task is one attempt of a container leaf task with its on-disk layout
// resolved.
type Task struct {
	Request *dispatcher.Request
	// Container is the resolved container executor.
	Container *pipelinespec.ContainerSpec
	// Dir is <pipelineRoot>/<runName>/<taskName>. Output parameter files and
	// output artifacts live directly under it.
	Dir string
	// Input is the executor input passed to the task through {{$}}.
	Input *ExecutorInput

	inputArtifacts  map[string][]*artifact.Artifact
	outputArtifacts map[string]*artifact.Artifact
}

// Prepare builds the executor input for req and creates the task directory.
// Stale output files from an earlier attempt are removed.
func Prepare(req *dispatcher.Request) (*Task, error) {
	if req.Executor == nil || req.Executor.Container == nil {
		return nil, fmt.Errorf("task %q has no container executor", req.TaskName)
	}
	root := req.Run.PipelineRoot
	if root == "" {
		return nil, fmt.Errorf("task %q: pipeline root is empty", req.TaskName)
	}
	t := &Task{
		Request:         req,
		Container:       req.Executor.Container,
		Dir:             filepath.Join(root, req.Run.Name(), req.TaskName),
		inputArtifacts:  make(map[string][]*artifact.Artifact),
		outputArtifacts: make(map[string]*artifact.Artifact),
	}
	if err := os.MkdirAll(t.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create task directory: %w", err)
	}

	in := &ExecutorInput{
		Inputs: ExecutorInputs{
			ParameterValues: make(map[string]any),
			Artifacts:       make(map[string]*ArtifactList),
		},
		Outputs: ExecutorOutputs{
			Parameters: make(map[string]*OutputParameter),
			Artifacts:  make(map[string]*ArtifactList),
			OutputFile: filepath.Join(t.Dir, ExecutorOutputFile),
		},
	}
	if err := removeIfExists(in.Outputs.OutputFile); err != nil {
		return nil, err
	}

	var inputArtifacts map[string]*pipelinespec.ArtifactSpec
	if defs := req.Component.InputDefinitions; defs != nil {
		inputArtifacts = defs.Artifacts
	}
	for _, name := range slices.Sorted(maps.Keys(req.Arguments)) {
		value := req.Arguments[name]
		if _, ok := inputArtifacts[name]; !ok && !isArtifactValue(value) {
			in.Inputs.ParameterValues[name] = value
			continue
		}
		arts, err := toArtifacts(name, value)
		if err != nil {
			return nil, err
		}
		t.inputArtifacts[name] = arts
		in.Inputs.Artifacts[name] = newArtifactList(arts)
	}

	if defs := req.Component.OutputDefinitions; defs != nil {
		for _, name := range slices.Sorted(maps.Keys(defs.Parameters)) {
			file := filepath.Join(t.Dir, name)
			if err := removeIfExists(file); err != nil {
				return nil, err
			}
			in.Outputs.Parameters[name] = &OutputParameter{OutputFile: file}
		}
		for _, name := range slices.Sorted(maps.Keys(defs.Artifacts)) {
			art := &artifact.Artifact{
				Name:        artifact.Key(req.TaskName, name),
				URI:         filepath.Join(t.Dir, name),
				SchemaTitle: defs.Artifacts[name].ArtifactType.SchemaTitle,
				Metadata:    map[string]any{},
			}
			t.outputArtifacts[name] = art
			in.Outputs.Artifacts[name] = newArtifactList([]*artifact.Artifact{art})
		}
	}
	t.Input = in
	return t, nil
}

// RunInfo returns the artifact scope of the task's run.
func (t *Task) RunInfo() artifact.RunInfo {
	return artifact.RunInfo{PipelineName: t.Request.Run.PipelineName, RunID: t.Request.Run.RunID}
}

// OutputParameterFile returns the file a task writes output parameter name to.
func (t *Task) OutputParameterFile(name string) string {
	if p, ok := t.Input.Outputs.Parameters[name]; ok {
		return p.OutputFile
	}
	return ""
}

// OutputArtifact returns the artifact prepared for output name.
func (t *Task) OutputArtifact(name string) (*artifact.Artifact, bool) {
	a, ok := t.outputArtifacts[name]
	return a, ok
}

// InputArtifact returns the single artifact bound to input name.
func (t *Task) InputArtifact(name string) (*artifact.Artifact, error) {
	arts, ok := t.inputArtifacts[name]
	if !ok {
		return nil, fmt.Errorf("no input artifact %q", name)
	}
	if len(arts) != 1 {
		return nil, fmt.Errorf("input artifact %q is a list of %d", name, len(arts))
	}
	return arts[0], nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale output %s: %w", path, err)
	}
	return nil
}

func isArtifactValue(v any) bool {
	switch v.(type) {
	case *artifact.Artifact, []*artifact.Artifact:
		return true
	default:
		return false
	}
}

// toArtifacts converts an artifact argument to artifacts. Upstream tasks
// yield *artifact.Artifact values; bare strings are taken as URIs; lists come
// from artifact loops.
func toArtifacts(name string, v any) ([]*artifact.Artifact, error) {
	switch a := v.(type) {
	case *artifact.Artifact:
		return []*artifact.Artifact{a}, nil
	case []*artifact.Artifact:
		return a, nil
	case string:
		return []*artifact.Artifact{{Name: name, URI: a}}, nil
	}
	rv := reflect.ValueOf(v)
	if rv.IsValid() && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
		var out []*artifact.Artifact
		for i := 0; i < rv.Len(); i++ {
			arts, err := toArtifacts(name, rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out = append(out, arts...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("input artifact %q has unsupported value %T", name, v)
}
