//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

package pipelinespec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrNoRoot is returned when a decoded pipeline has no root component.
var ErrNoRoot = errors.New("pipeline spec has no root component")

// Load reads and parses a compiled pipeline file (JSON or YAML).
func Load(path string) (*PipelineSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline spec %s: %w", path, err)
	}
	spec, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse pipeline spec %s: %w", path, err)
	}
	return spec, nil
}

// Parse decodes a compiled pipeline. Input starting with '{' is decoded as
// JSON, anything else as YAML. Only the first YAML document is read; later
// documents (platform specs) are ignored.
func Parse(data []byte) (*PipelineSpec, error) {
	var spec PipelineSpec
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &spec); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(trimmed, &spec); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	}
	if spec.Root == nil {
		return nil, ErrNoRoot
	}
	return &spec, nil
}
