//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"trpc.group/trpc-go/trpc-pipeline-go/artifact"
	"trpc.group/trpc-go/trpc-pipeline-go/codec"
	"trpc.group/trpc-go/trpc-pipeline-go/pipelinespec"
)

// CollectOutputs gathers the outputs of a finished task. Parameters come from
// the executor output file when the task wrote one, otherwise from the
// per-parameter output files parsed by their declared type. Output artifacts
// are reported as *artifact.Artifact and, when svc is not nil, recorded in it.
// A missing declared parameter yields ErrMissingOutput and an unparsable one
// ErrInvalidOutput.
func (t *Task) CollectOutputs(ctx context.Context, svc artifact.Service) (map[string]any, error) {
	outputs := make(map[string]any)
	execOut, err := t.readExecutorOutput()
	if err != nil {
		return nil, err
	}

	var declared map[string]*pipelinespec.ParameterSpec
	if defs := t.Request.Component.OutputDefinitions; defs != nil {
		declared = defs.Parameters
	}
	for _, name := range slices.Sorted(maps.Keys(declared)) {
		if execOut != nil {
			if v, ok := execOut.ParameterValues[name]; ok {
				outputs[name] = v
				continue
			}
		}
		v, err := t.readParameterFile(name, declared[name].ParameterType)
		if err != nil {
			return nil, err
		}
		outputs[name] = v
	}

	for _, name := range slices.Sorted(maps.Keys(t.outputArtifacts)) {
		art := t.outputArtifacts[name].Clone()
		if execOut != nil {
			mergeArtifact(art, execOut.Artifacts[name])
		}
		if svc != nil {
			if _, err := svc.SaveArtifact(ctx, t.RunInfo(), art.Name, art); err != nil {
				return nil, fmt.Errorf("record artifact %q: %w", art.Name, err)
			}
		}
		outputs[name] = art
	}
	return outputs, nil
}

func (t *Task) readExecutorOutput() (*ExecutorOutput, error) {
	data, err := os.ReadFile(t.Input.Outputs.OutputFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read executor output: %w", err)
	}
	var out ExecutorOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: decode executor output of %q: %v", ErrInvalidOutput, t.Request.TaskName, err)
	}
	return &out, nil
}

func (t *Task) readParameterFile(name string, typ pipelinespec.ParameterType) (any, error) {
	file := t.OutputParameterFile(name)
	data, err := os.ReadFile(file)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: parameter %q of task %q", ErrMissingOutput, name, t.Request.TaskName)
	}
	if err != nil {
		return nil, fmt.Errorf("read output parameter %q: %w", name, err)
	}
	raw := string(data)
	if typ != pipelinespec.ParameterTypeString {
		raw = strings.TrimSpace(raw)
	}
	v, err := codec.ParseParameter(raw, typ)
	if err != nil {
		return nil, fmt.Errorf("%w: output parameter %q of task %q: %v", ErrInvalidOutput, name, t.Request.TaskName, err)
	}
	return v, nil
}

// mergeArtifact applies what the task reported for an artifact: a changed
// URI and extra metadata.
func mergeArtifact(art *artifact.Artifact, reported *ArtifactList) {
	if reported == nil || len(reported.Artifacts) == 0 || reported.Artifacts[0] == nil {
		return
	}
	r := reported.Artifacts[0]
	if r.URI != "" {
		art.URI = r.URI
	}
	if art.Metadata == nil {
		art.Metadata = map[string]any{}
	}
	maps.Copy(art.Metadata, r.Metadata)
}
