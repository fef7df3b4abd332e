//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

// Package status defines the result status of a task or scope execution.
package status

// Status is the outcome of running a task or a scope. Task failure is a
// Status, never an error.
type Status string

// Statuses.
const (
	Success Status = "SUCCESS"
	Failure Status = "FAILURE"
)

// OK reports whether s is Success.
func (s Status) OK() bool { return s == Success }

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool { return s == Success || s == Failure }
