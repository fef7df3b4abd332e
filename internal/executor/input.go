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
	"encoding/json"

	"trpc.group/trpc-go/trpc-pipeline-go/artifact"
)

// ExecutorInput is the JSON document handed to a task.
type ExecutorInput struct {
	Inputs  ExecutorInputs  `json:"inputs"`
	Outputs ExecutorOutputs `json:"outputs"`
}

// ExecutorInputs carries resolved input values.
type ExecutorInputs struct {
	ParameterValues map[string]any           `json:"parameterValues,omitempty"`
	Artifacts       map[string]*ArtifactList `json:"artifacts,omitempty"`
}

// ExecutorOutputs tells the task where to write its outputs.
type ExecutorOutputs struct {
	Parameters map[string]*OutputParameter `json:"parameters,omitempty"`
	Artifacts  map[string]*ArtifactList    `json:"artifacts,omitempty"`
	OutputFile string                      `json:"outputFile"`
}

// OutputParameter names the file an output parameter is written to.
type OutputParameter struct {
	OutputFile string `json:"outputFile"`
}

// ArtifactList is a list of runtime artifacts.
type ArtifactList struct {
	Artifacts []*RuntimeArtifact `json:"artifacts"`
}

// RuntimeArtifact is the wire form of an artifact in executor input and output.
type RuntimeArtifact struct {
	Name     string         `json:"name,omitempty"`
	URI      string         `json:"uri"`
	Type     ArtifactType   `json:"type"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ArtifactType names an artifact schema.
type ArtifactType struct {
	SchemaTitle string `json:"schemaTitle,omitempty"`
}

// ExecutorOutput is the JSON document a task may write to
// ExecutorInput.Outputs.OutputFile.
type ExecutorOutput struct {
	ParameterValues map[string]any           `json:"parameterValues,omitempty"`
	Artifacts       map[string]*ArtifactList `json:"artifacts,omitempty"`
}

func newArtifactList(arts []*artifact.Artifact) *ArtifactList {
	l := &ArtifactList{Artifacts: make([]*RuntimeArtifact, 0, len(arts))}
	for _, a := range arts {
		l.Artifacts = append(l.Artifacts, &RuntimeArtifact{
			Name:     a.Name,
			URI:      a.URI,
			Type:     ArtifactType{SchemaTitle: a.SchemaTitle},
			Metadata: a.Metadata,
		})
	}
	return l
}

// JSON encodes the executor input.
func (in *ExecutorInput) JSON() (string, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
