//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

// Package postgres provides a PostgreSQL-backed artifact service. Every
// artifact version is one row keyed by pipeline, run, artifact key and
// version.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"trpc.group/trpc-go/trpc-pipeline-go/artifact"
	"trpc.group/trpc-go/trpc-pipeline-go/log"
	storage "trpc.group/trpc-go/trpc-pipeline-go/storage/postgres"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

const (
	sqlCreateTable = `CREATE TABLE IF NOT EXISTS %s (
	pipeline_name TEXT NOT NULL,
	run_id TEXT NOT NULL,
	artifact_key TEXT NOT NULL,
	version INTEGER NOT NULL,
	artifact JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (pipeline_name, run_id, artifact_key, version)
)`
	sqlInsert = `INSERT INTO %s (pipeline_name, run_id, artifact_key, version, artifact)
SELECT $1, $2, $3, COALESCE(MAX(version) + 1, 0), $4 FROM %s
WHERE pipeline_name = $1 AND run_id = $2 AND artifact_key = $3
RETURNING version`
	sqlSelectLatest = `SELECT artifact FROM %s
WHERE pipeline_name = $1 AND run_id = $2 AND artifact_key = $3
ORDER BY version DESC LIMIT 1`
	sqlSelectVersion = `SELECT artifact FROM %s
WHERE pipeline_name = $1 AND run_id = $2 AND artifact_key = $3 AND version = $4`
	sqlSelectKeys = `SELECT DISTINCT artifact_key FROM %s
WHERE pipeline_name = $1 AND run_id = $2 ORDER BY artifact_key`
	sqlSelectVersions = `SELECT version FROM %s
WHERE pipeline_name = $1 AND run_id = $2 AND artifact_key = $3 ORDER BY version`
	sqlDelete = `DELETE FROM %s WHERE pipeline_name = $1 AND run_id = $2 AND artifact_key = $3`
)

var _ artifact.Service = (*Service)(nil)

// Service is the postgres artifact service.
type Service struct {
	client storage.Client
	table  string
}

// NewService creates a postgres artifact service and, unless
// WithSkipDBInit is set, its table.
func NewService(ctx context.Context, options ...ServiceOpt) (*Service, error) {
	opts := ServiceOpts{tableName: defaultTableName}
	for _, option := range options {
		option(&opts)
	}
	if !tableNamePattern.MatchString(opts.tableName) {
		return nil, fmt.Errorf("postgres artifact service: invalid table name %q", opts.tableName)
	}
	client := opts.client
	if client == nil {
		if opts.instanceName == "" && opts.connString == "" {
			return nil, errors.New("postgres artifact service: connection string or instance is required")
		}
		var err error
		client, err = storage.Connect(ctx, opts.instanceName, opts.connString, opts.extraOptions...)
		if err != nil {
			return nil, fmt.Errorf("postgres artifact service: %w", err)
		}
	}
	s := &Service{client: client, table: opts.tableName}
	if !opts.skipDBInit {
		if _, err := client.ExecContext(ctx, fmt.Sprintf(sqlCreateTable, s.table)); err != nil {
			return nil, fmt.Errorf("postgres artifact service: create table %s: %w", s.table, err)
		}
	}
	return s, nil
}

// Close closes the database client.
func (s *Service) Close() error {
	return s.client.Close()
}

// SaveArtifact implements artifact.Service.
func (s *Service) SaveArtifact(
	ctx context.Context,
	runInfo artifact.RunInfo,
	key string,
	art *artifact.Artifact,
) (int, error) {
	if art == nil {
		return 0, errors.New("artifact is nil")
	}
	data, err := json.Marshal(art)
	if err != nil {
		return 0, fmt.Errorf("marshal artifact %s: %w", key, err)
	}
	version := -1
	err = s.client.Query(ctx, func(rows *sql.Rows) error {
		if rows.Next() {
			return rows.Scan(&version)
		}
		return nil
	}, fmt.Sprintf(sqlInsert, s.table, s.table), runInfo.PipelineName, runInfo.RunID, key, data)
	if err != nil {
		return 0, fmt.Errorf("save artifact %s: %w", key, err)
	}
	if version < 0 {
		return 0, fmt.Errorf("save artifact %s: no version returned", key)
	}
	log.Debugf("postgres artifact: saved %s version %d", key, version)
	return version, nil
}

// LoadArtifact implements artifact.Service.
func (s *Service) LoadArtifact(
	ctx context.Context,
	runInfo artifact.RunInfo,
	key string,
	version *int,
) (*artifact.Artifact, error) {
	query := fmt.Sprintf(sqlSelectLatest, s.table)
	args := []any{runInfo.PipelineName, runInfo.RunID, key}
	if version != nil {
		query = fmt.Sprintf(sqlSelectVersion, s.table)
		args = append(args, *version)
	}
	var data []byte
	err := s.client.Query(ctx, func(rows *sql.Rows) error {
		if rows.Next() {
			return rows.Scan(&data)
		}
		return nil
	}, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load artifact %s: %w", key, err)
	}
	if data == nil {
		if version != nil {
			versions, err := s.ListVersions(ctx, runInfo, key)
			if err != nil {
				return nil, err
			}
			if len(versions) > 0 {
				return nil, fmt.Errorf("version %d of artifact %q does not exist", *version, key)
			}
		}
		return nil, nil
	}
	var art artifact.Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", key, err)
	}
	return &art, nil
}

// ListArtifactKeys implements artifact.Service.
func (s *Service) ListArtifactKeys(ctx context.Context, runInfo artifact.RunInfo) ([]string, error) {
	var keys []string
	err := s.client.Query(ctx, func(rows *sql.Rows) error {
		for rows.Next() {
			var k string
			if err := rows.Scan(&k); err != nil {
				return err
			}
			keys = append(keys, k)
		}
		return nil
	}, fmt.Sprintf(sqlSelectKeys, s.table), runInfo.PipelineName, runInfo.RunID)
	if err != nil {
		return nil, fmt.Errorf("list artifact keys: %w", err)
	}
	return keys, nil
}

// DeleteArtifact implements artifact.Service.
func (s *Service) DeleteArtifact(ctx context.Context, runInfo artifact.RunInfo, key string) error {
	if _, err := s.client.ExecContext(ctx, fmt.Sprintf(sqlDelete, s.table),
		runInfo.PipelineName, runInfo.RunID, key); err != nil {
		return fmt.Errorf("delete artifact %s: %w", key, err)
	}
	return nil
}

// ListVersions implements artifact.Service.
func (s *Service) ListVersions(ctx context.Context, runInfo artifact.RunInfo, key string) ([]int, error) {
	versions := []int{}
	err := s.client.Query(ctx, func(rows *sql.Rows) error {
		for rows.Next() {
			var v int
			if err := rows.Scan(&v); err != nil {
				return err
			}
			versions = append(versions, v)
		}
		return nil
	}, fmt.Sprintf(sqlSelectVersions, s.table), runInfo.PipelineName, runInfo.RunID, key)
	if err != nil {
		return nil, fmt.Errorf("list versions of %s: %w", key, err)
	}
	return versions, nil
}
