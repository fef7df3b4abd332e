//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

package dag

import "errors"

// Fatal errors. They abort the whole run and never reach the FailureTrace.
var (
	ErrCycle          = errors.New("dependency cycle among tasks")
	ErrMalformedInput = errors.New("malformed input binding")
	ErrNotSupported   = errors.New("not supported in local execution")
	ErrUnknownKind    = errors.New("unknown kind")
	ErrSelectorCount  = errors.New("unexpected artifact selector count")
	ErrNoDispatcher   = errors.New("no dispatcher configured")
)

// Names of constructs rejected with ErrNotSupported.
const (
	FeatureExitHandler = "dsl.ExitHandler"
	FeatureOneOf       = "dsl.OneOf"
	FeatureCondition   = "dsl.Condition"
	FeatureExpression  = "parameterExpressionSelector"
)
