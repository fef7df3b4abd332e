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
	"slices"
	"sync"
)

// FailureTrace records, in order, the names of the leaf tasks whose failure
// failed a run. Enclosing scopes forward the failure without appending.
// One FailureTrace is shared by every scope of a run.
type FailureTrace struct {
	mu    sync.Mutex
	names []string
}

// NewFailureTrace returns an empty trace.
func NewFailureTrace() *FailureTrace {
	return &FailureTrace{}
}

// Append records a failed task.
func (t *FailureTrace) Append(task string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.names = append(t.names, task)
}

// Names returns a copy of the recorded task names.
func (t *FailureTrace) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.names)
}

// Len returns the number of recorded failures.
func (t *FailureTrace) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.names)
}
