//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

package pipelinespec

// ImplementationKind is the variant of a ComponentSpec.
type ImplementationKind int

// Implementation kinds.
const (
	ImplementationUnknown ImplementationKind = iota
	ImplementationDAG
	ImplementationExecutor
)

func (k ImplementationKind) String() string {
	switch k {
	case ImplementationDAG:
		return "dag"
	case ImplementationExecutor:
		return "executor_label"
	default:
		return "unknown"
	}
}

// ExecutorKind is the variant of an ExecutorSpec.
type ExecutorKind int

// Executor kinds.
const (
	ExecutorUnknown ExecutorKind = iota
	ExecutorContainer
	ExecutorImporter
)

func (k ExecutorKind) String() string {
	switch k {
	case ExecutorContainer:
		return "container"
	case ExecutorImporter:
		return "importer"
	default:
		return "unknown"
	}
}

// IteratorKind is the variant of a task's iteration spec.
type IteratorKind int

// Iterator kinds.
const (
	IteratorNone IteratorKind = iota
	IteratorParameter
	IteratorArtifact
	IteratorUnknown
)

func (k IteratorKind) String() string {
	switch k {
	case IteratorNone:
		return "none"
	case IteratorParameter:
		return "parameter_iterator"
	case IteratorArtifact:
		return "artifact_iterator"
	default:
		return "unknown"
	}
}

// ParameterBindingKind is the variant of an input parameter binding.
type ParameterBindingKind int

// Parameter binding kinds.
const (
	ParameterBindingUnset ParameterBindingKind = iota
	ParameterBindingConstant
	ParameterBindingTaskOutput
	ParameterBindingComponentInput
	ParameterBindingTaskFinalStatus
	// ParameterBindingAmbiguous means more than one binding field is set.
	ParameterBindingAmbiguous
)

func (k ParameterBindingKind) String() string {
	switch k {
	case ParameterBindingConstant:
		return "runtime_value"
	case ParameterBindingTaskOutput:
		return "task_output_parameter"
	case ParameterBindingComponentInput:
		return "component_input_parameter"
	case ParameterBindingTaskFinalStatus:
		return "task_final_status"
	case ParameterBindingAmbiguous:
		return "ambiguous"
	default:
		return "unset"
	}
}

// ArtifactBindingKind is the variant of an input artifact binding.
type ArtifactBindingKind int

// Artifact binding kinds.
const (
	ArtifactBindingUnset ArtifactBindingKind = iota
	ArtifactBindingTaskOutput
	ArtifactBindingComponentInput
	// ArtifactBindingAmbiguous means more than one binding field is set.
	ArtifactBindingAmbiguous
)

func (k ArtifactBindingKind) String() string {
	switch k {
	case ArtifactBindingTaskOutput:
		return "task_output_artifact"
	case ArtifactBindingComponentInput:
		return "component_input_artifact"
	case ArtifactBindingAmbiguous:
		return "ambiguous"
	default:
		return "unset"
	}
}

// SelectorKind is the variant of a DAG output parameter selector.
type SelectorKind int

// Selector kinds.
const (
	SelectorUnset SelectorKind = iota
	SelectorDirect
	SelectorOneOf
	// SelectorAmbiguous means both selector fields are set.
	SelectorAmbiguous
)

func (k SelectorKind) String() string {
	switch k {
	case SelectorDirect:
		return "value_from_parameter"
	case SelectorOneOf:
		return "value_from_oneof"
	case SelectorAmbiguous:
		return "ambiguous"
	default:
		return "unset"
	}
}

// ParameterType is the declared type of a parameter.
type ParameterType string

// Parameter types.
const (
	ParameterTypeUnspecified ParameterType = "PARAMETER_TYPE_ENUM_UNSPECIFIED"
	ParameterTypeDouble      ParameterType = "NUMBER_DOUBLE"
	ParameterTypeInteger     ParameterType = "NUMBER_INTEGER"
	ParameterTypeString      ParameterType = "STRING"
	ParameterTypeBoolean     ParameterType = "BOOLEAN"
	ParameterTypeList        ParameterType = "LIST"
	ParameterTypeStruct      ParameterType = "STRUCT"
	ParameterTypeFinalStatus ParameterType = "TASK_FINAL_STATUS"
)
