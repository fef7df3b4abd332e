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

	"trpc.group/trpc-go/trpc-pipeline-go/pipelinespec"
)

// Upstream returns the sorted, de-duplicated names of the tasks whose
// outputs task consumes or which it explicitly depends on.
func Upstream(task *pipelinespec.PipelineTaskSpec) []string {
	set := make(map[string]struct{})
	for _, dep := range task.DependentTasks {
		set[dep] = struct{}{}
	}
	if task.Inputs != nil {
		for _, p := range task.Inputs.Parameters {
			switch p.Kind() {
			case pipelinespec.ParameterBindingTaskOutput:
				set[p.TaskOutputParameter.ProducerTask] = struct{}{}
			case pipelinespec.ParameterBindingTaskFinalStatus:
				set[p.TaskFinalStatus.ProducerTask] = struct{}{}
			}
		}
		for _, a := range task.Inputs.Artifacts {
			if a.Kind() == pipelinespec.ArtifactBindingTaskOutput {
				set[a.TaskOutputArtifact.ProducerTask] = struct{}{}
			}
		}
	}
	delete(set, "")
	return slices.Sorted(maps.Keys(set))
}

// TopologicalOrder orders the tasks of one scope so that every task comes
// after all of its upstream tasks. Independent tasks are ordered by name, so
// the result is deterministic.
func TopologicalOrder(tasks map[string]*pipelinespec.PipelineTaskSpec) ([]string, error) {
	indegree := make(map[string]int, len(tasks))
	downstream := make(map[string][]string, len(tasks))
	for name := range tasks {
		indegree[name] = 0
	}
	for _, name := range slices.Sorted(maps.Keys(tasks)) {
		task := tasks[name]
		if task == nil {
			return nil, fmt.Errorf("%w: task %q has no spec", ErrMalformedInput, name)
		}
		for _, up := range Upstream(task) {
			if _, ok := tasks[up]; !ok {
				return nil, fmt.Errorf("%w: task %q depends on unknown task %q",
					ErrMalformedInput, name, up)
			}
			if up == name {
				return nil, fmt.Errorf("%w: task %q depends on itself", ErrCycle, name)
			}
			downstream[up] = append(downstream[up], name)
			indegree[name]++
		}
	}

	var ready []string
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	slices.Sort(ready)

	order := make([]string, 0, len(tasks))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, d := range downstream[next] {
			indegree[d]--
			if indegree[d] == 0 {
				ready = insertSorted(ready, d)
			}
		}
	}

	if len(order) != len(tasks) {
		var stuck []string
		for name, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, name)
			}
		}
		slices.Sort(stuck)
		return nil, fmt.Errorf("%w: %s", ErrCycle, strings.Join(stuck, ", "))
	}
	return order, nil
}

func insertSorted(s []string, v string) []string {
	i, _ := slices.BinarySearch(s, v)
	return slices.Insert(s, i, v)
}
