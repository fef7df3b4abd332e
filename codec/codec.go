//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

// Package codec converts between wire-format constant values and native Go
// values.
//
// Native values use the shapes produced by encoding/json when decoding into
// an any: nil, bool, float64, string, []any and map[string]any. ToNative and
// FromNative are exact inverses over that set.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"trpc.group/trpc-go/trpc-pipeline-go/pipelinespec"
)

// ErrUnsupportedType is returned when a native value has no wire form.
var ErrUnsupportedType = errors.New("codec: unsupported value type")

// ToNative converts a wire value to its native form. A nil value decodes to nil.
func ToNative(v *structpb.Value) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch k := v.GetKind().(type) {
	case nil:
		return nil, nil
	case *structpb.Value_NullValue:
		return nil, nil
	case *structpb.Value_NumberValue:
		return k.NumberValue, nil
	case *structpb.Value_StringValue:
		return k.StringValue, nil
	case *structpb.Value_BoolValue:
		return k.BoolValue, nil
	case *structpb.Value_ListValue:
		out := make([]any, 0, len(k.ListValue.GetValues()))
		for i, e := range k.ListValue.GetValues() {
			n, err := ToNative(e)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			out = append(out, n)
		}
		return out, nil
	case *structpb.Value_StructValue:
		out := make(map[string]any, len(k.StructValue.GetFields()))
		for name, e := range k.StructValue.GetFields() {
			n, err := ToNative(e)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", name, err)
			}
			out[name] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, k)
	}
}

// FromNative converts a native value to its wire form. Values that structpb
// cannot represent directly (typed slices, structs) are normalized through
// their JSON encoding first.
func FromNative(v any) (*structpb.Value, error) {
	pv, err := structpb.NewValue(v)
	if err == nil {
		return pv, nil
	}
	data, jerr := json.Marshal(v)
	if jerr != nil {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
	var generic any
	if jerr := json.Unmarshal(data, &generic); jerr != nil {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
	return structpb.NewValue(generic)
}

// Decode converts an IR constant to its native form.
func Decode(v *pipelinespec.Value) (any, error) {
	if v == nil {
		return nil, nil
	}
	return ToNative(v.Value)
}

// ParseParameter parses the text form of a parameter, as written to an output
// file by a leaf task, according to its declared type. Strings are returned
// verbatim; every other type is decoded as JSON.
func ParseParameter(raw string, typ pipelinespec.ParameterType) (any, error) {
	switch typ {
	case pipelinespec.ParameterTypeString:
		return raw, nil
	case pipelinespec.ParameterTypeBoolean:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("parse %s parameter %q: not a boolean", typ, raw)
	}
	var out any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("parse %s parameter: %w", typ, err)
	}
	return out, nil
}

// FormatParameter renders a native value in the text form used on command
// lines and in parameter files. Strings are returned verbatim.
func FormatParameter(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("format parameter: %w", err)
	}
	return string(data), nil
}
