//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Inputs(t *testing.T) {
	seed := map[string]any{"a": 1.0}
	s := New(seed)
	seed["b"] = 2.0

	v, err := s.Input("a")
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	_, err = s.Input("b")
	assert.ErrorIs(t, err, ErrKeyNotFound, "seed map must be copied")

	require.NoError(t, s.SetInput("c", "x"))
	assert.ErrorIs(t, s.SetInput("c", "y"), ErrAlreadyExists)
	assert.ErrorIs(t, s.SetInput("a", 0.0), ErrAlreadyExists)

	assert.Equal(t, []string{"a", "c"}, s.InputNames())
}

func TestStore_Outputs(t *testing.T) {
	s := New(nil)

	_, err := s.Output("A", "x")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.ErrorContains(t, err, `"A"`)

	require.NoError(t, s.RecordOutputs("A", map[string]any{"x": 5.0, "y": "z"}))
	assert.Equal(t, []string{"A"}, s.Tasks())

	v, err := s.Output("A", "x")
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)

	_, err = s.Output("A", "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.ErrorContains(t, err, `"missing"`)

	assert.ErrorIs(t, s.RecordOutput("A", "x", 6.0), ErrAlreadyExists)

	require.NoError(t, s.RecordOutputs("B", nil))
	require.NoError(t, s.RecordOutput("0", "k", nil))
	assert.Equal(t, []string{"0", "A"}, s.Tasks())
}
