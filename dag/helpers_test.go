//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

package dag

import (
	"context"
	"maps"
	"sync"

	"trpc.group/trpc-go/trpc-pipeline-go/dispatcher"
	"trpc.group/trpc-go/trpc-pipeline-go/pipelinespec"
)

// Builders for small pipelines used across the tests.

func fromConst(v any) *pipelinespec.InputParameterSpec {
	return &pipelinespec.InputParameterSpec{
		RuntimeValue: &pipelinespec.RuntimeValue{Constant: pipelinespec.NewValue(v)},
	}
}

func fromTask(producer, key string) *pipelinespec.InputParameterSpec {
	return &pipelinespec.InputParameterSpec{
		TaskOutputParameter: &pipelinespec.TaskOutputParameterSpec{ProducerTask: producer, OutputParameterKey: key},
	}
}

func fromInput(name string) *pipelinespec.InputParameterSpec {
	return &pipelinespec.InputParameterSpec{ComponentInputParameter: name}
}

func artifactFromTask(producer, key string) *pipelinespec.InputArtifactSpec {
	return &pipelinespec.InputArtifactSpec{
		TaskOutputArtifact: &pipelinespec.TaskOutputArtifactSpec{ProducerTask: producer, OutputArtifactKey: key},
	}
}

func selectParam(producer, key string) *pipelinespec.DagOutputParameterSpec {
	return &pipelinespec.DagOutputParameterSpec{
		ValueFromParameter: &pipelinespec.ParameterSelectorSpec{ProducerSubtask: producer, OutputParameterKey: key},
	}
}

func task(component string, params map[string]*pipelinespec.InputParameterSpec) *pipelinespec.PipelineTaskSpec {
	return &pipelinespec.PipelineTaskSpec{
		ComponentRef: pipelinespec.ComponentRef{Name: component},
		Inputs:       &pipelinespec.TaskInputsSpec{Parameters: params},
	}
}

func dagComponent(tasks map[string]*pipelinespec.PipelineTaskSpec, outputs *pipelinespec.DagOutputsSpec) *pipelinespec.ComponentSpec {
	return &pipelinespec.ComponentSpec{DAG: &pipelinespec.DagSpec{Tasks: tasks, Outputs: outputs}}
}

// testPipeline wires leaf components to container or importer executors.
type testPipeline struct {
	spec *pipelinespec.PipelineSpec
}

func newTestPipeline(root *pipelinespec.ComponentSpec) *testPipeline {
	return &testPipeline{spec: &pipelinespec.PipelineSpec{
		PipelineInfo:   pipelinespec.PipelineInfo{Name: "test-pipeline"},
		Root:           root,
		Components:     map[string]*pipelinespec.ComponentSpec{},
		DeploymentSpec: pipelinespec.DeploymentSpec{Executors: map[string]*pipelinespec.ExecutorSpec{}},
	}}
}

func (p *testPipeline) leaf(name string) *testPipeline {
	label := "exec-" + name
	p.spec.Components["comp-"+name] = &pipelinespec.ComponentSpec{ExecutorLabel: label}
	p.spec.DeploymentSpec.Executors[label] = &pipelinespec.ExecutorSpec{
		Container: &pipelinespec.ContainerSpec{Image: "python:3.9"},
	}
	return p
}

func (p *testPipeline) importer(name string) *testPipeline {
	label := "exec-" + name
	p.spec.Components["comp-"+name] = &pipelinespec.ComponentSpec{ExecutorLabel: label}
	p.spec.DeploymentSpec.Executors[label] = &pipelinespec.ExecutorSpec{
		Importer: &pipelinespec.ImporterSpec{
			ArtifactURI: &pipelinespec.ValueOrRuntimeParameter{Constant: pipelinespec.NewValue("gs://b/x")},
		},
	}
	return p
}

func (p *testPipeline) component(name string, c *pipelinespec.ComponentSpec) *testPipeline {
	p.spec.Components[name] = c
	return p
}

// recorder is a dispatcher that routes by component name and records every
// request it receives.
type recorder struct {
	mu       sync.Mutex
	handlers map[string]func(args map[string]any) (map[string]any, bool)
	calls    []*dispatcher.Request
}

func newRecorder() *recorder {
	return &recorder{handlers: map[string]func(map[string]any) (map[string]any, bool){}}
}

func (r *recorder) on(component string, fn func(args map[string]any) (map[string]any, bool)) *recorder {
	r.handlers[component] = fn
	return r
}

func (r *recorder) Dispatch(ctx context.Context, req *dispatcher.Request) (dispatcher.Result, error) {
	r.mu.Lock()
	copied := *req
	copied.Arguments = maps.Clone(req.Arguments)
	r.calls = append(r.calls, &copied)
	fn, ok := r.handlers[req.ComponentName]
	r.mu.Unlock()
	if !ok {
		return dispatcher.Succeeded(nil), nil
	}
	outputs, success := fn(req.Arguments)
	if !success {
		return dispatcher.Failed(), nil
	}
	return dispatcher.Succeeded(outputs), nil
}

func (r *recorder) callsFor(component string) []*dispatcher.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*dispatcher.Request
	for _, c := range r.calls {
		if c.ComponentName == component {
			out = append(out, c)
		}
	}
	return out
}

func (r *recorder) scopeTasks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.calls {
		out = append(out, c.ScopeTask)
	}
	return out
}

var testRun = dispatcher.Run{PipelineName: "test-pipeline", RunID: "run-1", PipelineRoot: "/tmp/root"}
