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
	"errors"
	"fmt"
	"regexp"

	"trpc.group/trpc-go/trpc-pipeline-go/codec"
)

// ErrUnknownPlaceholder reports a placeholder the runner cannot resolve.
var ErrUnknownPlaceholder = errors.New("unknown placeholder")

const (
	placeholderExecutorInput = "{{$}}"
	placeholderJobName       = "{{$.pipeline_job_name}}"
	placeholderJobUUID       = "{{$.pipeline_job_uuid}}"
	placeholderTaskName      = "{{$.pipeline_task_name}}"
	placeholderPipelineRoot  = "{{$.pipeline_root}}"
)

var (
	placeholderPattern = regexp.MustCompile(`\{\{\$[^{}]*\}\}`)
	ioPattern          = regexp.MustCompile(`^\{\{\$\.(inputs|outputs)\.(parameters|artifacts)\['([^']+)'\](?:\.(\w+))?\}\}$`)
)

// Resolve replaces every placeholder in s.
func (t *Task) Resolve(s string) (string, error) {
	var firstErr error
	out := placeholderPattern.ReplaceAllStringFunc(s, func(p string) string {
		v, err := t.resolveOne(p)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// ResolveAll resolves each element of args.
func (t *Task) ResolveAll(args []string) ([]string, error) {
	out := make([]string, len(args))
	for i, a := range args {
		r, err := t.Resolve(a)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// Command returns the container command and args with placeholders resolved.
func (t *Task) Command() ([]string, error) {
	cmd, err := t.ResolveAll(append(append([]string{}, t.Container.Command...), t.Container.Args...))
	if err != nil {
		return nil, fmt.Errorf("task %q: %w", t.Request.TaskName, err)
	}
	return cmd, nil
}

// Env returns the container environment as NAME=value pairs with
// placeholders resolved.
func (t *Task) Env() ([]string, error) {
	env := make([]string, 0, len(t.Container.Env))
	for _, e := range t.Container.Env {
		if e == nil {
			continue
		}
		v, err := t.Resolve(e.Value)
		if err != nil {
			return nil, fmt.Errorf("task %q env %s: %w", t.Request.TaskName, e.Name, err)
		}
		env = append(env, e.Name+"="+v)
	}
	return env, nil
}

func (t *Task) resolveOne(p string) (string, error) {
	run := t.Request.Run
	switch p {
	case placeholderExecutorInput:
		return t.Input.JSON()
	case placeholderJobName:
		return run.Name(), nil
	case placeholderJobUUID:
		return run.RunID, nil
	case placeholderTaskName:
		return t.Request.TaskName, nil
	case placeholderPipelineRoot:
		return run.PipelineRoot, nil
	}

	m := ioPattern.FindStringSubmatch(p)
	if m == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownPlaceholder, p)
	}
	direction, kind, name, attr := m[1], m[2], m[3], m[4]
	switch {
	case direction == "inputs" && kind == "parameters" && attr == "":
		v, ok := t.Input.Inputs.ParameterValues[name]
		if !ok {
			return "", fmt.Errorf("%w: %s: no input parameter %q", ErrUnknownPlaceholder, p, name)
		}
		return codec.FormatParameter(v)
	case direction == "inputs" && kind == "artifacts" && (attr == "path" || attr == "uri"):
		a, err := t.InputArtifact(name)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrUnknownPlaceholder, p, err)
		}
		return a.URI, nil
	case direction == "outputs" && kind == "parameters" && attr == "output_file":
		f := t.OutputParameterFile(name)
		if f == "" {
			return "", fmt.Errorf("%w: %s: no output parameter %q", ErrUnknownPlaceholder, p, name)
		}
		return f, nil
	case direction == "outputs" && kind == "artifacts" && (attr == "path" || attr == "uri"):
		a, ok := t.OutputArtifact(name)
		if !ok {
			return "", fmt.Errorf("%w: %s: no output artifact %q", ErrUnknownPlaceholder, p, name)
		}
		return a.URI, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownPlaceholder, p)
	}
}
