//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

package postgres

import storage "trpc.group/trpc-go/trpc-pipeline-go/storage/postgres"

const defaultTableName = "pipeline_artifacts"

// ServiceOpts is the options for the postgres artifact service.
type ServiceOpts struct {
	connString   string
	instanceName string
	client       storage.Client
	tableName    string
	skipDBInit   bool
	extraOptions []any
}

// ServiceOpt is the option for the postgres artifact service.
type ServiceOpt func(*ServiceOpts)

// WithPostgresConnString connects with a postgres connection string.
func WithPostgresConnString(connString string) ServiceOpt {
	return func(opts *ServiceOpts) {
		opts.connString = connString
	}
}

// WithPostgresInstance uses a postgres instance registered with
// storage/postgres.RegisterPostgresInstance.
func WithPostgresInstance(instanceName string) ServiceOpt {
	return func(opts *ServiceOpts) {
		opts.instanceName = instanceName
	}
}

// WithClient uses an existing client.
func WithClient(client storage.Client) ServiceOpt {
	return func(opts *ServiceOpts) {
		opts.client = client
	}
}

// WithTableName sets the artifact table name.
func WithTableName(name string) ServiceOpt {
	return func(opts *ServiceOpts) {
		opts.tableName = name
	}
}

// WithSkipDBInit skips creating the artifact table.
func WithSkipDBInit(skip bool) ServiceOpt {
	return func(opts *ServiceOpts) {
		opts.skipDBInit = skip
	}
}

// WithExtraOptions passes options through to a custom client builder.
func WithExtraOptions(extraOptions ...any) ServiceOpt {
	return func(opts *ServiceOpts) {
		opts.extraOptions = append(opts.extraOptions, extraOptions...)
	}
}
