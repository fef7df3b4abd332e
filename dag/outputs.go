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

	"trpc.group/trpc-go/trpc-pipeline-go/pipelinespec"
	"trpc.group/trpc-go/trpc-pipeline-go/store"
)

// CollectOutputs extracts a scope's declared outputs from its store.
// Parameter outputs must use a direct selector. Artifact outputs must have
// exactly one selector.
func CollectOutputs(spec *pipelinespec.DagOutputsSpec, st *store.Store) (map[string]any, error) {
	outputs := make(map[string]any)
	if spec == nil {
		return outputs, nil
	}
	for _, name := range slices.Sorted(maps.Keys(spec.Parameters)) {
		sel := spec.Parameters[name]
		switch kind := sel.Kind(); kind {
		case pipelinespec.SelectorDirect:
			v, err := st.Output(sel.ValueFromParameter.ProducerSubtask, sel.ValueFromParameter.OutputParameterKey)
			if err != nil {
				return nil, fmt.Errorf("output parameter %q: %w", name, err)
			}
			outputs[name] = v
		case pipelinespec.SelectorOneOf:
			return nil, fmt.Errorf("%w: %s (output parameter %q)", ErrNotSupported, FeatureOneOf, name)
		case pipelinespec.SelectorAmbiguous:
			return nil, fmt.Errorf("%w: output parameter %q has more than one selector", ErrMalformedInput, name)
		default:
			return nil, fmt.Errorf("%w: parameter selector %s on output %q", ErrUnknownKind, kind, name)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(spec.Artifacts)) {
		var selectors []*pipelinespec.ArtifactSelectorSpec
		if sel := spec.Artifacts[name]; sel != nil {
			selectors = sel.ArtifactSelectors
		}
		if len(selectors) != 1 {
			return nil, fmt.Errorf("%w: output artifact %q: expected 1, got %d",
				ErrSelectorCount, name, len(selectors))
		}
		if selectors[0] == nil {
			return nil, fmt.Errorf("%w: output artifact %q has an empty selector", ErrMalformedInput, name)
		}
		v, err := st.Output(selectors[0].ProducerSubtask, selectors[0].OutputArtifactKey)
		if err != nil {
			return nil, fmt.Errorf("output artifact %q: %w", name, err)
		}
		outputs[name] = v
	}
	return outputs, nil
}
