//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

// Package artifact provides the artifact metadata model and the service
// interface used to record artifacts produced or imported by pipeline tasks.
package artifact

// Artifact describes one artifact produced or imported by a task. Only the
// metadata is tracked; the payload lives at URI.
type Artifact struct {
	// Name is the artifact key, usually "<task>/<output>".
	Name string `json:"name,omitempty"`
	// URI is where the artifact payload lives (local path, gs://, cos://, ...).
	URI string `json:"uri"`
	// SchemaTitle is the artifact type, e.g. "system.Dataset".
	SchemaTitle string `json:"schemaTitle,omitempty"`
	// Metadata carries free-form key/value metadata.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RunInfo scopes artifacts to one pipeline run.
type RunInfo struct {
	// PipelineName is the name of the pipeline.
	PipelineName string
	// RunID is the ID of the run.
	RunID string
}

// Key builds the artifact key for output of task.
func Key(task, output string) string {
	return task + "/" + output
}

// Clone returns a copy of a whose metadata map is not shared.
func (a *Artifact) Clone() *Artifact {
	if a == nil {
		return nil
	}
	c := *a
	if a.Metadata != nil {
		c.Metadata = make(map[string]any, len(a.Metadata))
		for k, v := range a.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
