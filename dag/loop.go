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
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"

	"trpc.group/trpc-go/trpc-pipeline-go/dispatcher"
	"trpc.group/trpc-go/trpc-pipeline-go/log"
	"trpc.group/trpc-go/trpc-pipeline-go/pipelinespec"
	"trpc.group/trpc-go/trpc-pipeline-go/status"
	"trpc.group/trpc-go/trpc-pipeline-go/store"
)

const componentPrefix = "comp-"

// ElementKey is the store key under which the outputs of loop element i of
// task are recorded in the enclosing scope. Element keys share the task name
// namespace of that scope, so a sibling task named like an element key is
// rejected before the scope runs. Only DAG output selectors may read element
// keys; a task input naming one as its producer is an unknown task.
func ElementKey(task string, i int) string {
	return LoopItemKey(task, i)
}

// checkElementKeys rejects scopes in which a task name collides with the
// element keys of a sibling loop task.
func checkElementKeys(tasks map[string]*pipelinespec.PipelineTaskSpec) error {
	for _, loop := range slices.Sorted(maps.Keys(tasks)) {
		if tasks[loop] == nil || tasks[loop].IteratorKind() == pipelinespec.IteratorNone {
			continue
		}
		for name := range tasks {
			rest, ok := strings.CutPrefix(name, loop+indexInfix)
			if !ok {
				continue
			}
			if _, err := strconv.Atoi(rest); err == nil {
				return fmt.Errorf("%w: task %q collides with the element outputs of loop task %q",
					ErrMalformedInput, name, loop)
			}
		}
	}
	return nil
}

// elementSuffix extends the identity suffix of a scope for loop element i of
// the given component, so that leaf task names stay unique across elements
// and nesting levels.
func elementSuffix(suffix, component string, i int) string {
	return fmt.Sprintf("%s-%s-%d", suffix, strings.TrimPrefix(component, componentPrefix), i)
}

type elementResult struct {
	outputs map[string]any
	status  status.Status
	err     error
	ran     bool
}

// runLoop expands a DAG task carrying an iterator into one scope invocation
// per element. Each element starts from a fresh copy of the task's resolved
// arguments with the item bound; the enclosing store is only written after
// the elements finish, under ElementKey(name, i).
func (o *Orchestrator) runLoop(
	ctx context.Context,
	name string,
	task *pipelinespec.PipelineTaskSpec,
	comp *pipelinespec.ComponentSpec,
	st *store.Store,
	ft *FailureTrace,
	depth int,
	suffix string,
) (dispatcher.Result, error) {
	args, err := ResolveArguments(task.Inputs, st)
	if err != nil {
		return dispatcher.Result{}, err
	}
	items, itemInput, err := loopItems(task, args)
	if err != nil {
		return dispatcher.Result{}, err
	}
	workers := o.loopWorkers(task)
	log.Infof("expand loop %q: %d element(s), %d worker(s)", name, len(items), workers)

	results := make([]elementResult, len(items))
	runElement := func(i int) {
		elemArgs := maps.Clone(args)
		if elemArgs == nil {
			elemArgs = make(map[string]any)
		}
		elemArgs[itemInput] = items[i]
		outputs, s, err := o.runScope(ctx, comp, elemArgs, ft, depth+1,
			elementSuffix(suffix, task.ComponentRef.Name, i))
		results[i] = elementResult{outputs: outputs, status: s, err: err, ran: true}
	}

	if workers <= 1 {
		for i := range items {
			runElement(i)
			if results[i].err != nil || results[i].status != status.Success {
				break
			}
		}
	} else if err := runConcurrently(len(items), workers, runElement, results); err != nil {
		return dispatcher.Result{}, err
	}

	for i, r := range results {
		if !r.ran {
			continue
		}
		if r.err != nil {
			return dispatcher.Result{}, fmt.Errorf("loop element %d: %w", i, r.err)
		}
	}
	for i, r := range results {
		if r.ran && r.status == status.Failure {
			log.Infof("loop %q failed at element %d", name, i)
			return dispatcher.Failed(), nil
		}
	}
	for i, r := range results {
		if err := st.RecordOutputs(ElementKey(name, i), r.outputs); err != nil {
			return dispatcher.Result{}, err
		}
	}
	return dispatcher.Succeeded(nil), nil
}

// runConcurrently runs n elements on a bounded ants pool. Once an element
// fails, elements that have not started yet are skipped.
func runConcurrently(n, workers int, run func(int), results []elementResult) error {
	pool, err := ants.NewPool(workers)
	if err != nil {
		return fmt.Errorf("failed to create loop worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg     sync.WaitGroup
		failed atomic.Bool
	)
	for i := 0; i < n; i++ {
		idx := i
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			if failed.Load() {
				return
			}
			run(idx)
			if r := results[idx]; r.err != nil || r.status != status.Success {
				failed.Store(true)
			}
		}); err != nil {
			wg.Done()
			wg.Wait()
			return fmt.Errorf("failed to submit loop element %d: %w", idx, err)
		}
	}
	wg.Wait()
	return nil
}

func (o *Orchestrator) loopWorkers(task *pipelinespec.PipelineTaskSpec) int {
	n := o.opts.MaxLoopWorkers
	if task.IteratorPolicy != nil && task.IteratorPolicy.ParallelismLimit > 0 &&
		task.IteratorPolicy.ParallelismLimit < n {
		n = task.IteratorPolicy.ParallelismLimit
	}
	return n
}

// loopItems resolves the iterable of a loop task and the input name each
// element is bound to.
func loopItems(task *pipelinespec.PipelineTaskSpec, args map[string]any) ([]any, string, error) {
	switch kind := task.IteratorKind(); kind {
	case pipelinespec.IteratorParameter:
		it := task.ParameterIterator
		if it.ItemInput == "" {
			return nil, "", fmt.Errorf("%w: parameter iterator has no itemInput", ErrMalformedInput)
		}
		if it.Items.Raw != "" {
			var items []any
			if err := json.Unmarshal([]byte(it.Items.Raw), &items); err != nil {
				return nil, "", fmt.Errorf("%w: parameter iterator raw items: %v", ErrMalformedInput, err)
			}
			return items, it.ItemInput, nil
		}
		items, err := boundList(args, it.Items.InputParameter)
		return items, it.ItemInput, err
	case pipelinespec.IteratorArtifact:
		it := task.ArtifactIterator
		if it.ItemInput == "" {
			return nil, "", fmt.Errorf("%w: artifact iterator has no itemInput", ErrMalformedInput)
		}
		items, err := boundList(args, it.Items.InputArtifact)
		return items, it.ItemInput, err
	default:
		return nil, "", fmt.Errorf("%w: iterator %s", ErrUnknownKind, kind)
	}
}

func boundList(args map[string]any, input string) ([]any, error) {
	if input == "" {
		return nil, fmt.Errorf("%w: iterator names no items", ErrMalformedInput)
	}
	raw, ok := args[input]
	if !ok {
		return nil, fmt.Errorf("%w: iterator source %q is not bound on the task", ErrMalformedInput, input)
	}
	items, ok := asList(raw)
	if !ok {
		return nil, fmt.Errorf("%w: iterator source %q is %T, not a list", ErrMalformedInput, input, raw)
	}
	return items, nil
}

// asList converts any slice or array to []any.
func asList(v any) ([]any, bool) {
	if l, ok := v.([]any); ok {
		return l, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
