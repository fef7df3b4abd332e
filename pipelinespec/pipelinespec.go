//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

// Package pipelinespec defines the compiled, language-neutral pipeline
// representation consumed by the local runner. The field names follow the
// JSON/YAML form emitted by the pipeline compiler, so a compiled pipeline file
// can be decoded directly into these types.
//
// The IR is treated as read-only once loaded.
package pipelinespec

import "fmt"

// PipelineSpec is a compiled pipeline.
type PipelineSpec struct {
	PipelineInfo   PipelineInfo              `json:"pipelineInfo" yaml:"pipelineInfo"`
	Root           *ComponentSpec            `json:"root" yaml:"root"`
	Components     map[string]*ComponentSpec `json:"components,omitempty" yaml:"components,omitempty"`
	DeploymentSpec DeploymentSpec            `json:"deploymentSpec" yaml:"deploymentSpec"`
	SchemaVersion  string                    `json:"schemaVersion,omitempty" yaml:"schemaVersion,omitempty"`
	SDKVersion     string                    `json:"sdkVersion,omitempty" yaml:"sdkVersion,omitempty"`
}

// PipelineInfo carries descriptive pipeline metadata.
type PipelineInfo struct {
	Name        string `json:"name" yaml:"name"`
	DisplayName string `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// DeploymentSpec holds the executors referenced by leaf components.
type DeploymentSpec struct {
	Executors map[string]*ExecutorSpec `json:"executors,omitempty" yaml:"executors,omitempty"`
}

// Component returns the component registered under name.
func (p *PipelineSpec) Component(name string) (*ComponentSpec, error) {
	c, ok := p.Components[name]
	if !ok || c == nil {
		return nil, fmt.Errorf("component %q not found in pipeline spec", name)
	}
	return c, nil
}

// Executor returns the executor registered under label.
func (p *PipelineSpec) Executor(label string) (*ExecutorSpec, error) {
	e, ok := p.DeploymentSpec.Executors[label]
	if !ok || e == nil {
		return nil, fmt.Errorf("executor %q not found in deployment spec", label)
	}
	return e, nil
}

// ComponentSpec is either a sub-graph (DAG set) or a leaf (ExecutorLabel set).
type ComponentSpec struct {
	InputDefinitions  *ComponentInputsSpec  `json:"inputDefinitions,omitempty" yaml:"inputDefinitions,omitempty"`
	OutputDefinitions *ComponentOutputsSpec `json:"outputDefinitions,omitempty" yaml:"outputDefinitions,omitempty"`
	DAG               *DagSpec              `json:"dag,omitempty" yaml:"dag,omitempty"`
	ExecutorLabel     string                `json:"executorLabel,omitempty" yaml:"executorLabel,omitempty"`
}

// Kind reports which implementation variant the component carries.
func (c *ComponentSpec) Kind() ImplementationKind {
	switch {
	case c == nil:
		return ImplementationUnknown
	case c.DAG != nil && c.ExecutorLabel == "":
		return ImplementationDAG
	case c.DAG == nil && c.ExecutorLabel != "":
		return ImplementationExecutor
	default:
		return ImplementationUnknown
	}
}

// ComponentInputsSpec declares the inputs of a component.
type ComponentInputsSpec struct {
	Parameters map[string]*ParameterSpec `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Artifacts  map[string]*ArtifactSpec  `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
}

// ComponentOutputsSpec declares the outputs of a component.
type ComponentOutputsSpec struct {
	Parameters map[string]*ParameterSpec `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Artifacts  map[string]*ArtifactSpec  `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
}

// ParameterSpec declares one input or output parameter.
type ParameterSpec struct {
	ParameterType ParameterType `json:"parameterType,omitempty" yaml:"parameterType,omitempty"`
	DefaultValue  *Value        `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	IsOptional    bool          `json:"isOptional,omitempty" yaml:"isOptional,omitempty"`
	Description   string        `json:"description,omitempty" yaml:"description,omitempty"`
}

// ArtifactSpec declares one input or output artifact.
type ArtifactSpec struct {
	ArtifactType   ArtifactTypeSchema `json:"artifactType" yaml:"artifactType"`
	IsArtifactList bool               `json:"isArtifactList,omitempty" yaml:"isArtifactList,omitempty"`
	IsOptional     bool               `json:"isOptional,omitempty" yaml:"isOptional,omitempty"`
	Description    string             `json:"description,omitempty" yaml:"description,omitempty"`
}

// ArtifactTypeSchema names the type of an artifact.
type ArtifactTypeSchema struct {
	SchemaTitle   string `json:"schemaTitle,omitempty" yaml:"schemaTitle,omitempty"`
	SchemaVersion string `json:"schemaVersion,omitempty" yaml:"schemaVersion,omitempty"`
}

// DagSpec is the task graph of a sub-graph component.
type DagSpec struct {
	Tasks   map[string]*PipelineTaskSpec `json:"tasks,omitempty" yaml:"tasks,omitempty"`
	Outputs *DagOutputsSpec              `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

// PipelineTaskSpec is one node of a DagSpec.
type PipelineTaskSpec struct {
	TaskInfo          TaskInfo               `json:"taskInfo" yaml:"taskInfo"`
	ComponentRef      ComponentRef           `json:"componentRef" yaml:"componentRef"`
	Inputs            *TaskInputsSpec        `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	DependentTasks    []string               `json:"dependentTasks,omitempty" yaml:"dependentTasks,omitempty"`
	ParameterIterator *ParameterIteratorSpec `json:"parameterIterator,omitempty" yaml:"parameterIterator,omitempty"`
	ArtifactIterator  *ArtifactIteratorSpec  `json:"artifactIterator,omitempty" yaml:"artifactIterator,omitempty"`
	IteratorPolicy    *IteratorPolicy        `json:"iteratorPolicy,omitempty" yaml:"iteratorPolicy,omitempty"`
	TriggerPolicy     *TriggerPolicy         `json:"triggerPolicy,omitempty" yaml:"triggerPolicy,omitempty"`
	RetryPolicy       *RetryPolicy           `json:"retryPolicy,omitempty" yaml:"retryPolicy,omitempty"`
	CachingOptions    *CachingOptions        `json:"cachingOptions,omitempty" yaml:"cachingOptions,omitempty"`
}

// IteratorKind reports which iteration variant the task carries.
func (t *PipelineTaskSpec) IteratorKind() IteratorKind {
	switch {
	case t.ParameterIterator != nil && t.ArtifactIterator != nil:
		return IteratorUnknown
	case t.ParameterIterator != nil:
		return IteratorParameter
	case t.ArtifactIterator != nil:
		return IteratorArtifact
	default:
		return IteratorNone
	}
}

// TaskInfo carries the task display name.
type TaskInfo struct {
	Name string `json:"name" yaml:"name"`
}

// ComponentRef points at a ComponentSpec by name.
type ComponentRef struct {
	Name string `json:"name" yaml:"name"`
}

// TaskInputsSpec binds every declared input of a task.
type TaskInputsSpec struct {
	Parameters map[string]*InputParameterSpec `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Artifacts  map[string]*InputArtifactSpec  `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
}

// InputParameterSpec is the binding of one input parameter. Exactly one
// field is expected to be set.
type InputParameterSpec struct {
	RuntimeValue                *RuntimeValue            `json:"runtimeValue,omitempty" yaml:"runtimeValue,omitempty"`
	TaskOutputParameter         *TaskOutputParameterSpec `json:"taskOutputParameter,omitempty" yaml:"taskOutputParameter,omitempty"`
	ComponentInputParameter     string                   `json:"componentInputParameter,omitempty" yaml:"componentInputParameter,omitempty"`
	TaskFinalStatus             *TaskFinalStatus         `json:"taskFinalStatus,omitempty" yaml:"taskFinalStatus,omitempty"`
	ParameterExpressionSelector string                   `json:"parameterExpressionSelector,omitempty" yaml:"parameterExpressionSelector,omitempty"`
}

// Kind reports which binding variant is set. Setting more than one of
// runtimeValue, taskOutputParameter, componentInputParameter and
// taskFinalStatus yields ParameterBindingAmbiguous.
func (s *InputParameterSpec) Kind() ParameterBindingKind {
	if s == nil {
		return ParameterBindingUnset
	}
	kind, n := ParameterBindingUnset, 0
	if s.RuntimeValue != nil {
		kind, n = ParameterBindingConstant, n+1
	}
	if s.TaskOutputParameter != nil {
		kind, n = ParameterBindingTaskOutput, n+1
	}
	if s.ComponentInputParameter != "" {
		kind, n = ParameterBindingComponentInput, n+1
	}
	if s.TaskFinalStatus != nil {
		kind, n = ParameterBindingTaskFinalStatus, n+1
	}
	if n > 1 {
		return ParameterBindingAmbiguous
	}
	return kind
}

// RuntimeValue holds a constant argument.
type RuntimeValue struct {
	Constant *Value `json:"constant,omitempty" yaml:"constant,omitempty"`
}

// TaskOutputParameterSpec references a named output parameter of a sibling task.
type TaskOutputParameterSpec struct {
	ProducerTask       string `json:"producerTask" yaml:"producerTask"`
	OutputParameterKey string `json:"outputParameterKey" yaml:"outputParameterKey"`
}

// TaskFinalStatus references the final status of a task (exit handlers).
type TaskFinalStatus struct {
	ProducerTask string `json:"producerTask" yaml:"producerTask"`
}

// InputArtifactSpec is the binding of one input artifact.
type InputArtifactSpec struct {
	TaskOutputArtifact     *TaskOutputArtifactSpec `json:"taskOutputArtifact,omitempty" yaml:"taskOutputArtifact,omitempty"`
	ComponentInputArtifact string                  `json:"componentInputArtifact,omitempty" yaml:"componentInputArtifact,omitempty"`
}

// Kind reports which binding variant is set.
func (s *InputArtifactSpec) Kind() ArtifactBindingKind {
	switch {
	case s == nil:
		return ArtifactBindingUnset
	case s.TaskOutputArtifact != nil && s.ComponentInputArtifact != "":
		return ArtifactBindingAmbiguous
	case s.TaskOutputArtifact != nil:
		return ArtifactBindingTaskOutput
	case s.ComponentInputArtifact != "":
		return ArtifactBindingComponentInput
	default:
		return ArtifactBindingUnset
	}
}

// TaskOutputArtifactSpec references a named output artifact of a sibling task.
type TaskOutputArtifactSpec struct {
	ProducerTask      string `json:"producerTask" yaml:"producerTask"`
	OutputArtifactKey string `json:"outputArtifactKey" yaml:"outputArtifactKey"`
}

// ParameterIteratorSpec expands a sub-graph task over a list parameter.
type ParameterIteratorSpec struct {
	Items     ParameterItemsSpec `json:"items" yaml:"items"`
	ItemInput string             `json:"itemInput" yaml:"itemInput"`
}

// ParameterItemsSpec names the iterable: either a raw JSON list literal or
// one of the task's own input parameters.
type ParameterItemsSpec struct {
	Raw            string `json:"raw,omitempty" yaml:"raw,omitempty"`
	InputParameter string `json:"inputParameter,omitempty" yaml:"inputParameter,omitempty"`
}

// ArtifactIteratorSpec expands a sub-graph task over an artifact list.
type ArtifactIteratorSpec struct {
	Items     ArtifactItemsSpec `json:"items" yaml:"items"`
	ItemInput string            `json:"itemInput" yaml:"itemInput"`
}

// ArtifactItemsSpec names the task input artifact holding the iterable.
type ArtifactItemsSpec struct {
	InputArtifact string `json:"inputArtifact" yaml:"inputArtifact"`
}

// IteratorPolicy bounds loop fan-out.
type IteratorPolicy struct {
	ParallelismLimit int `json:"parallelismLimit,omitempty" yaml:"parallelismLimit,omitempty"`
}

// TriggerPolicy gates task execution on a condition.
type TriggerPolicy struct {
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
	Strategy  string `json:"strategy,omitempty" yaml:"strategy,omitempty"`
}

// RetryPolicy configures re-dispatch of failed leaf tasks. Durations use the
// protobuf JSON form, e.g. "3s" or "0.500s".
type RetryPolicy struct {
	MaxRetryCount      int     `json:"maxRetryCount,omitempty" yaml:"maxRetryCount,omitempty"`
	BackoffDuration    string  `json:"backoffDuration,omitempty" yaml:"backoffDuration,omitempty"`
	BackoffFactor      float64 `json:"backoffFactor,omitempty" yaml:"backoffFactor,omitempty"`
	BackoffMaxDuration string  `json:"backoffMaxDuration,omitempty" yaml:"backoffMaxDuration,omitempty"`
}

// CachingOptions is carried through but not interpreted by the local runner.
type CachingOptions struct {
	EnableCache bool `json:"enableCache,omitempty" yaml:"enableCache,omitempty"`
}

// DagOutputsSpec selects a sub-graph's outputs from its tasks' outputs.
type DagOutputsSpec struct {
	Parameters map[string]*DagOutputParameterSpec `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Artifacts  map[string]*DagOutputArtifactSpec  `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
}

// DagOutputParameterSpec selects one output parameter.
type DagOutputParameterSpec struct {
	ValueFromParameter *ParameterSelectorSpec     `json:"valueFromParameter,omitempty" yaml:"valueFromParameter,omitempty"`
	ValueFromOneof     *ParameterSelectorSpecList `json:"valueFromOneof,omitempty" yaml:"valueFromOneof,omitempty"`
}

// Kind reports which selector variant is set.
func (s *DagOutputParameterSpec) Kind() SelectorKind {
	switch {
	case s == nil:
		return SelectorUnset
	case s.ValueFromParameter != nil && s.ValueFromOneof != nil:
		return SelectorAmbiguous
	case s.ValueFromParameter != nil:
		return SelectorDirect
	case s.ValueFromOneof != nil:
		return SelectorOneOf
	default:
		return SelectorUnset
	}
}

// ParameterSelectorSpec points at a subtask's output parameter.
type ParameterSelectorSpec struct {
	ProducerSubtask    string `json:"producerSubtask" yaml:"producerSubtask"`
	OutputParameterKey string `json:"outputParameterKey" yaml:"outputParameterKey"`
}

// ParameterSelectorSpecList is the OneOf selector list.
type ParameterSelectorSpecList struct {
	ParameterSelectors []*ParameterSelectorSpec `json:"parameterSelectors,omitempty" yaml:"parameterSelectors,omitempty"`
}

// DagOutputArtifactSpec selects one output artifact. The local runner accepts
// exactly one selector.
type DagOutputArtifactSpec struct {
	ArtifactSelectors []*ArtifactSelectorSpec `json:"artifactSelectors,omitempty" yaml:"artifactSelectors,omitempty"`
}

// ArtifactSelectorSpec points at a subtask's output artifact.
type ArtifactSelectorSpec struct {
	ProducerSubtask   string `json:"producerSubtask" yaml:"producerSubtask"`
	OutputArtifactKey string `json:"outputArtifactKey" yaml:"outputArtifactKey"`
}

// ExecutorSpec describes how a leaf component is executed.
type ExecutorSpec struct {
	Container *ContainerSpec `json:"container,omitempty" yaml:"container,omitempty"`
	Importer  *ImporterSpec  `json:"importer,omitempty" yaml:"importer,omitempty"`
	Resolver  map[string]any `json:"resolver,omitempty" yaml:"resolver,omitempty"`
	CustomJob map[string]any `json:"customJob,omitempty" yaml:"customJob,omitempty"`
}

// Kind reports which executor variant is set.
func (e *ExecutorSpec) Kind() ExecutorKind {
	switch {
	case e == nil:
		return ExecutorUnknown
	case e.Container != nil && e.Importer == nil:
		return ExecutorContainer
	case e.Importer != nil && e.Container == nil:
		return ExecutorImporter
	default:
		return ExecutorUnknown
	}
}

// ContainerSpec is a containerized leaf executor.
type ContainerSpec struct {
	Image   string    `json:"image" yaml:"image"`
	Command []string  `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string  `json:"args,omitempty" yaml:"args,omitempty"`
	Env     []*EnvVar `json:"env,omitempty" yaml:"env,omitempty"`
}

// EnvVar is one container environment variable.
type EnvVar struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// ImporterSpec materializes a pre-existing artifact.
type ImporterSpec struct {
	ArtifactURI *ValueOrRuntimeParameter `json:"artifactUri,omitempty" yaml:"artifactUri,omitempty"`
	TypeSchema  ArtifactTypeSchema       `json:"typeSchema" yaml:"typeSchema"`
	Metadata    map[string]any           `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Reimport    bool                     `json:"reimport,omitempty" yaml:"reimport,omitempty"`
}

// ValueOrRuntimeParameter is either a constant or the name of a runtime parameter.
type ValueOrRuntimeParameter struct {
	Constant         *Value `json:"constant,omitempty" yaml:"constant,omitempty"`
	RuntimeParameter string `json:"runtimeParameter,omitempty" yaml:"runtimeParameter,omitempty"`
}
