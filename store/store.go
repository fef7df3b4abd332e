//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

// Package store holds the data of one scope invocation: the inputs it
// inherited from its caller and the outputs of the tasks it has run.
//
// A Store is owned by exactly one scope invocation and is not safe for
// concurrent use.
package store

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Errors.
var (
	ErrKeyNotFound   = errors.New("key not found in scope store")
	ErrAlreadyExists = errors.New("key already written in scope store")
)

// Store is a scope-local key/value store with two namespaces.
type Store struct {
	inputs  map[string]any
	outputs map[string]map[string]any
}

// New creates a store whose inherited inputs are seeded from inputs.
func New(inputs map[string]any) *Store {
	s := &Store{
		inputs:  make(map[string]any, len(inputs)),
		outputs: make(map[string]map[string]any),
	}
	maps.Copy(s.inputs, inputs)
	return s
}

// SetInput writes an inherited input. Each name may be written once.
func (s *Store) SetInput(name string, value any) error {
	if _, ok := s.inputs[name]; ok {
		return fmt.Errorf("input %q: %w", name, ErrAlreadyExists)
	}
	s.inputs[name] = value
	return nil
}

// Input reads an inherited input.
func (s *Store) Input(name string) (any, error) {
	v, ok := s.inputs[name]
	if !ok {
		return nil, fmt.Errorf("input %q: %w", name, ErrKeyNotFound)
	}
	return v, nil
}

// InputNames returns the names of the inherited inputs, sorted.
func (s *Store) InputNames() []string {
	return slices.Sorted(maps.Keys(s.inputs))
}

// RecordOutput writes one task output. Each (task, key) pair may be written once.
func (s *Store) RecordOutput(task, key string, value any) error {
	out, ok := s.outputs[task]
	if !ok {
		out = make(map[string]any)
		s.outputs[task] = out
	}
	if _, ok := out[key]; ok {
		return fmt.Errorf("output %q of task %q: %w", key, task, ErrAlreadyExists)
	}
	out[key] = value
	return nil
}

// RecordOutputs writes every output of a task, in key order.
func (s *Store) RecordOutputs(task string, outputs map[string]any) error {
	for _, key := range slices.Sorted(maps.Keys(outputs)) {
		if err := s.RecordOutput(task, key, outputs[key]); err != nil {
			return err
		}
	}
	return nil
}

// Output reads one task output.
func (s *Store) Output(task, key string) (any, error) {
	out, ok := s.outputs[task]
	if !ok {
		return nil, fmt.Errorf("task %q has no recorded outputs: %w", task, ErrKeyNotFound)
	}
	v, ok := out[key]
	if !ok {
		return nil, fmt.Errorf("output %q of task %q: %w", key, task, ErrKeyNotFound)
	}
	return v, nil
}

// Tasks returns the names of tasks with recorded outputs, sorted.
func (s *Store) Tasks() []string {
	return slices.Sorted(maps.Keys(s.outputs))
}
