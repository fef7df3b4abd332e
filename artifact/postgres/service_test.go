//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-pipeline-go/artifact"
	storage "trpc.group/trpc-go/trpc-pipeline-go/storage/postgres"
)

var runInfo = artifact.RunInfo{PipelineName: "train", RunID: "r1"}

func newMockService(t *testing.T, opts ...ServiceOpt) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS pipeline_artifacts").WillReturnResult(sqlmock.NewResult(0, 0))
	svc, err := NewService(context.Background(), append([]ServiceOpt{WithClient(storage.NewClient(db))}, opts...)...)
	require.NoError(t, err)
	return svc, mock
}

func encoded(t *testing.T, uri string) []byte {
	t.Helper()
	data, err := json.Marshal(&artifact.Artifact{Name: "comp-train/model", URI: uri, SchemaTitle: "system.Model"})
	require.NoError(t, err)
	return data
}

func TestService_Save(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectQuery("INSERT INTO pipeline_artifacts").
		WithArgs("train", "r1", "comp-train/model", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(2))

	v, err := svc.SaveArtifact(context.Background(), runInfo, "comp-train/model",
		&artifact.Artifact{URI: "/out/model"})
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = svc.SaveArtifact(context.Background(), runInfo, "k", nil)
	assert.Error(t, err)
}

func TestService_Load(t *testing.T) {
	svc, mock := newMockService(t)
	ctx := context.Background()

	mock.ExpectQuery("ORDER BY version DESC LIMIT 1").
		WithArgs("train", "r1", "comp-train/model").
		WillReturnRows(sqlmock.NewRows([]string{"artifact"}).AddRow(encoded(t, "/out/v1")))
	latest, err := svc.LoadArtifact(ctx, runInfo, "comp-train/model", nil)
	require.NoError(t, err)
	assert.Equal(t, "/out/v1", latest.URI)
	assert.Equal(t, "system.Model", latest.SchemaTitle)

	zero := 0
	mock.ExpectQuery("AND version = \\$4").
		WithArgs("train", "r1", "comp-train/model", 0).
		WillReturnRows(sqlmock.NewRows([]string{"artifact"}).AddRow(encoded(t, "/out/v0")))
	first, err := svc.LoadArtifact(ctx, runInfo, "comp-train/model", &zero)
	require.NoError(t, err)
	assert.Equal(t, "/out/v0", first.URI)

	mock.ExpectQuery("ORDER BY version DESC LIMIT 1").
		WillReturnRows(sqlmock.NewRows([]string{"artifact"}))
	missing, err := svc.LoadArtifact(ctx, runInfo, "comp-eval/report", nil)
	require.NoError(t, err)
	assert.Nil(t, missing)

	bad := 7
	mock.ExpectQuery("AND version = \\$4").WillReturnRows(sqlmock.NewRows([]string{"artifact"}))
	mock.ExpectQuery("SELECT version FROM pipeline_artifacts").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(0).AddRow(1))
	_, err = svc.LoadArtifact(ctx, runInfo, "comp-train/model", &bad)
	assert.ErrorContains(t, err, "version 7")
}

func TestService_KeysVersionsDelete(t *testing.T) {
	svc, mock := newMockService(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT DISTINCT artifact_key").WithArgs("train", "r1").
		WillReturnRows(sqlmock.NewRows([]string{"artifact_key"}).AddRow("a/out").AddRow("b/out"))
	keys, err := svc.ListArtifactKeys(ctx, runInfo)
	require.NoError(t, err)
	assert.Equal(t, []string{"a/out", "b/out"}, keys)

	mock.ExpectQuery("SELECT version FROM pipeline_artifacts").WithArgs("train", "r1", "a/out").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(0).AddRow(1))
	versions, err := svc.ListVersions(ctx, runInfo, "a/out")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, versions)

	mock.ExpectExec("DELETE FROM pipeline_artifacts").WithArgs("train", "r1", "a/out").
		WillReturnResult(sqlmock.NewResult(0, 2))
	require.NoError(t, svc.DeleteArtifact(ctx, runInfo, "a/out"))

	mock.ExpectExec("DELETE FROM pipeline_artifacts").WillReturnError(errors.New("conn reset"))
	assert.ErrorContains(t, svc.DeleteArtifact(ctx, runInfo, "a/out"), "conn reset")
}

func TestNewService_Errors(t *testing.T) {
	_, err := NewService(context.Background())
	assert.ErrorContains(t, err, "connection string or instance is required")

	_, err = NewService(context.Background(), WithTableName("artifacts; DROP TABLE x"))
	assert.ErrorContains(t, err, "invalid table name")

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))
	_, err = NewService(context.Background(), WithClient(storage.NewClient(db)))
	assert.ErrorContains(t, err, "permission denied")

	svc, err := NewService(context.Background(), WithClient(storage.NewClient(db)),
		WithSkipDBInit(true), WithTableName("custom_artifacts"))
	require.NoError(t, err)
	assert.Equal(t, "custom_artifacts", svc.table)
}
