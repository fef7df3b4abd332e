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
	"fmt"
	"maps"
	"slices"
	"strings"

	"trpc.group/trpc-go/trpc-pipeline-go/codec"
	"trpc.group/trpc-go/trpc-pipeline-go/pipelinespec"
	"trpc.group/trpc-go/trpc-pipeline-go/store"
)

const (
	loopItemSuffix = "-loop-item"
	indexInfix     = "-idx-"
)

// LoopItemKey is the key under which JoinDefaults exposes element i of the
// list input base.
func LoopItemKey(base string, i int) string {
	return fmt.Sprintf("%s%s%d", base, indexInfix, i)
}

// JoinDefaults merges explicit scope arguments with the declared parameter
// defaults. Explicit arguments always win, so applying it twice gives the same
// result as applying it once. args is not modified.
//
// A declared input named "<base>-loop-item" that was not supplied is
// expanded instead: every element i of the list argument <base> is added
// under LoopItemKey(base, i).
func JoinDefaults(args map[string]any, inputs *pipelinespec.ComponentInputsSpec) (map[string]any, error) {
	merged := make(map[string]any, len(args))
	maps.Copy(merged, args)
	if inputs == nil {
		return merged, nil
	}
	for _, name := range slices.Sorted(maps.Keys(inputs.Parameters)) {
		if _, ok := merged[name]; ok {
			continue
		}
		if base, ok := strings.CutSuffix(name, loopItemSuffix); ok {
			if err := expandLoopItems(merged, base); err != nil {
				return nil, fmt.Errorf("input %q: %w", name, err)
			}
			continue
		}
		spec := inputs.Parameters[name]
		if spec == nil || spec.DefaultValue == nil {
			if spec != nil && spec.IsOptional {
				continue
			}
			return nil, fmt.Errorf("%w: missing value for required input %q", ErrMalformedInput, name)
		}
		v, err := codec.Decode(spec.DefaultValue)
		if err != nil {
			return nil, fmt.Errorf("default of input %q: %w", name, err)
		}
		merged[name] = v
	}
	return merged, nil
}

func expandLoopItems(args map[string]any, base string) error {
	raw, ok := args[base]
	if !ok {
		return fmt.Errorf("%w: loop source %q is not available", ErrMalformedInput, base)
	}
	items, ok := asList(raw)
	if !ok {
		return fmt.Errorf("%w: loop source %q is %T, not a list", ErrMalformedInput, base, raw)
	}
	for i, item := range items {
		key := LoopItemKey(base, i)
		if _, exists := args[key]; !exists {
			args[key] = item
		}
	}
	return nil
}

// ResolveArguments builds the argument map of one task from its input
// bindings and the store of the scope that owns it.
func ResolveArguments(inputs *pipelinespec.TaskInputsSpec, st *store.Store) (map[string]any, error) {
	args := make(map[string]any)
	if inputs == nil {
		return args, nil
	}
	for _, name := range slices.Sorted(maps.Keys(inputs.Parameters)) {
		v, err := resolveParameter(name, inputs.Parameters[name], st)
		if err != nil {
			return nil, err
		}
		args[name] = v
	}
	for _, name := range slices.Sorted(maps.Keys(inputs.Artifacts)) {
		v, err := resolveArtifact(name, inputs.Artifacts[name], st)
		if err != nil {
			return nil, err
		}
		args[name] = v
	}
	return args, nil
}

func resolveParameter(name string, spec *pipelinespec.InputParameterSpec, st *store.Store) (any, error) {
	if spec != nil && spec.ParameterExpressionSelector != "" {
		return nil, fmt.Errorf("%w: %s on input %q", ErrNotSupported, FeatureExpression, name)
	}
	switch kind := spec.Kind(); kind {
	case pipelinespec.ParameterBindingConstant:
		if spec.RuntimeValue.Constant == nil {
			return nil, fmt.Errorf("%w: input %q: expected constant", ErrMalformedInput, name)
		}
		v, err := codec.Decode(spec.RuntimeValue.Constant)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		return v, nil
	case pipelinespec.ParameterBindingTaskOutput:
		ref := spec.TaskOutputParameter
		v, err := st.Output(ref.ProducerTask, ref.OutputParameterKey)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		return v, nil
	case pipelinespec.ParameterBindingComponentInput:
		v, err := st.Input(spec.ComponentInputParameter)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		return v, nil
	case pipelinespec.ParameterBindingTaskFinalStatus:
		return nil, fmt.Errorf("%w: %s (input %q)", ErrNotSupported, FeatureExitHandler, name)
	case pipelinespec.ParameterBindingUnset:
		return nil, fmt.Errorf("%w: missing input for parameter %q", ErrMalformedInput, name)
	case pipelinespec.ParameterBindingAmbiguous:
		return nil, fmt.Errorf("%w: parameter %q has more than one binding", ErrMalformedInput, name)
	default:
		return nil, fmt.Errorf("%w: parameter binding %s on input %q", ErrUnknownKind, kind, name)
	}
}

func resolveArtifact(name string, spec *pipelinespec.InputArtifactSpec, st *store.Store) (any, error) {
	switch kind := spec.Kind(); kind {
	case pipelinespec.ArtifactBindingTaskOutput:
		ref := spec.TaskOutputArtifact
		v, err := st.Output(ref.ProducerTask, ref.OutputArtifactKey)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		return v, nil
	case pipelinespec.ArtifactBindingComponentInput:
		v, err := st.Input(spec.ComponentInputArtifact)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		return v, nil
	case pipelinespec.ArtifactBindingUnset:
		return nil, fmt.Errorf("%w: missing input for artifact %q", ErrMalformedInput, name)
	case pipelinespec.ArtifactBindingAmbiguous:
		return nil, fmt.Errorf("%w: artifact %q has more than one binding", ErrMalformedInput, name)
	default:
		return nil, fmt.Errorf("%w: artifact binding %s on input %q", ErrUnknownKind, kind, name)
	}
}
