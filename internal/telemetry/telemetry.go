//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

// Package telemetry holds the span names, attribute keys and helpers shared
// by the tracing and metrics packages and the orchestrator.
package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"trpc.group/trpc-go/trpc-pipeline-go/dispatcher"
	"trpc.group/trpc-go/trpc-pipeline-go/status"
)

// telemetry service constants.
const (
	ServiceName      = "telemetry"
	ServiceVersion   = "v0.1.0"
	ServiceNamespace = "trpc-go-pipeline"
	InstrumentName   = "trpc.pipeline.go"

	SpanNameRunPipeline       = "run_pipeline"
	SpanNameRunScope          = "run_scope"
	SpanNamePrefixExecuteTask = "execute_task"

	MetricTaskRuns     = "trpc.pipeline.task.runs"
	MetricTaskFailures = "trpc.pipeline.task.failures"
)

const (
	// ProtocolGRPC uses gRPC protocol for OTLP exporter.
	ProtocolGRPC string = "grpc"
	// ProtocolHTTP uses HTTP protocol for OTLP exporter.
	ProtocolHTTP string = "http"
)

// telemetry attributes constants.
var (
	KeyPipelineName = "trpc.go.pipeline.pipeline_name"
	KeyRunID        = "trpc.go.pipeline.run_id"
	KeyTaskName     = "trpc.go.pipeline.task_name"
	KeyScopeTask    = "trpc.go.pipeline.scope_task"
	KeyComponent    = "trpc.go.pipeline.component"
	KeyExecutorKind = "trpc.go.pipeline.executor_kind"
	KeyDepth        = "trpc.go.pipeline.depth"
	KeyIterSuffix   = "trpc.go.pipeline.iter_suffix"
	KeyStatus       = "trpc.go.pipeline.status"
	KeyAttempt      = "trpc.go.pipeline.attempt"
	KeyError        = "trpc.go.pipeline.error"
)

// NewExecuteTaskSpanName returns the span name for one task.
func NewExecuteTaskSpanName(task string) string {
	return fmt.Sprintf("%s %s", SpanNamePrefixExecuteTask, task)
}

// TraceScope annotates a run_scope span.
func TraceScope(span trace.Span, run dispatcher.Run, depth int, suffix string) {
	span.SetAttributes(
		attribute.String(KeyPipelineName, run.PipelineName),
		attribute.String(KeyRunID, run.RunID),
		attribute.Int(KeyDepth, depth),
		attribute.String(KeyIterSuffix, suffix),
	)
}

// TraceDispatch annotates an execute_task span with the request sent to a
// dispatcher.
func TraceDispatch(span trace.Span, req *dispatcher.Request, executorKind string) {
	span.SetAttributes(
		attribute.String(KeyPipelineName, req.Run.PipelineName),
		attribute.String(KeyRunID, req.Run.RunID),
		attribute.String(KeyTaskName, req.TaskName),
		attribute.String(KeyScopeTask, req.ScopeTask),
		attribute.String(KeyComponent, req.ComponentName),
		attribute.String(KeyExecutorKind, executorKind),
		attribute.Int(KeyAttempt, req.Attempt),
	)
}

// TraceStatus records the final status of a task or scope.
func TraceStatus(span trace.Span, s status.Status) {
	span.SetAttributes(attribute.String(KeyStatus, string(s)))
}

// TraceError records a fatal error.
func TraceError(span trace.Span, err error) {
	span.SetAttributes(attribute.String(KeyError, err.Error()))
}

// NewGRPCConn creates a new gRPC connection to the OpenTelemetry Collector.
func NewGRPCConn(endpoint string) (*grpc.ClientConn, error) {
	// Note the use of insecure transport here. TLS is recommended in production.
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to collector: %w", err)
	}
	return conn, nil
}

// NewResource describes the service emitting telemetry.
func NewResource(ctx context.Context, namespace, name, version string) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNamespace(namespace),
			semconv.ServiceName(name),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// Endpoint resolves the OTLP endpoint for one signal ("TRACES" or
// "METRICS"). The signal-specific variable wins over the generic one; the
// default depends on the protocol.
func Endpoint(signal, protocol string) string {
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_" + signal + "_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	if protocol == ProtocolHTTP {
		return "localhost:4318"
	}
	return "localhost:4317"
}

// ParseEndpointURL splits a full URL into host:port and path. A missing
// scheme defaults to http.
func ParseEndpointURL(endpointURL string) (endpoint, urlPath string, err error) {
	raw := endpointURL
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse URL %q: %w", endpointURL, err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("no host found in URL %q", endpointURL)
	}
	urlPath = u.Path
	if urlPath == "" {
		urlPath = "/"
	}
	return u.Host, urlPath, nil
}
