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
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"
)

// Value is a wire-format constant. It decodes from plain JSON or YAML values.
type Value struct {
	*structpb.Value
}

// NewValue wraps a native Go value. It panics if v cannot be represented,
// which makes it suitable for literals in tests and examples only.
func NewValue(v any) *Value {
	pv, err := structpb.NewValue(v)
	if err != nil {
		panic(fmt.Sprintf("pipelinespec: cannot build value from %T: %v", v, err))
	}
	return &Value{Value: pv}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	pv := &structpb.Value{}
	if err := protojson.Unmarshal(data, pv); err != nil {
		return fmt.Errorf("decode constant value: %w", err)
	}
	v.Value = pv
	return nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Value == nil {
		return []byte("null"), nil
	}
	return protojson.Marshal(v.Value)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("decode constant value: %w", err)
	}
	pv, err := structpb.NewValue(normalizeYAML(raw))
	if err != nil {
		return fmt.Errorf("decode constant value: %w", err)
	}
	v.Value = pv
	return nil
}

// normalizeYAML turns the map[any]any nodes yaml may produce for non-string
// keys into map[string]any so structpb accepts them.
func normalizeYAML(raw any) any {
	switch t := raw.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeYAML(e)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[fmt.Sprint(k)] = normalizeYAML(e)
		}
		return m
	case []any:
		for i, e := range t {
			t[i] = normalizeYAML(e)
		}
		return t
	default:
		return raw
	}
}
