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
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultClientBuilder(t *testing.T) {
	_, err := defaultClientBuilder(context.Background())
	require.EqualError(t, err, "postgres: connection string is empty")

	_, err = defaultClientBuilder(context.Background(), WithClientConnString("postgres://u:p@127.0.0.1:1/db?connect_timeout=1"))
	assert.ErrorContains(t, err, "postgres: ping database")
}

func TestConnect(t *testing.T) {
	oldBuilder := GetClientBuilder()
	t.Cleanup(func() { SetClientBuilder(oldBuilder) })

	var got *ClientBuilderOpts
	SetClientBuilder(func(ctx context.Context, opts ...ClientBuilderOpt) (Client, error) {
		got = &ClientBuilderOpts{}
		for _, opt := range opts {
			opt(got)
		}
		return nil, nil
	})

	_, err := Connect(context.Background(), "", "postgres://direct/db", "x")
	require.NoError(t, err)
	assert.Equal(t, "postgres://direct/db", got.ConnString)
	assert.Equal(t, []any{"x"}, got.ExtraOptions)

	RegisterPostgresInstance("pg-connect-test", WithClientConnString("postgres://named/db"))
	_, err = Connect(context.Background(), "pg-connect-test", "")
	require.NoError(t, err)
	assert.Equal(t, "postgres://named/db", got.ConnString)

	_, err = Connect(context.Background(), "missing", "")
	assert.ErrorContains(t, err, "postgres instance missing not found")
}

func TestSQLClient_Query(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	client := NewClient(db)

	mock.ExpectQuery("SELECT version FROM artifacts").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(0).AddRow(1))
	var versions []int
	err = client.Query(context.Background(), func(rows *sql.Rows) error {
		for rows.Next() {
			var v int
			if err := rows.Scan(&v); err != nil {
				return err
			}
			versions = append(versions, v)
		}
		return nil
	}, "SELECT version FROM artifacts")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, versions)

	mock.ExpectQuery("SELECT broken").WillReturnError(errors.New("syntax error"))
	err = client.Query(context.Background(), func(*sql.Rows) error { return nil }, "SELECT broken")
	assert.ErrorContains(t, err, "query: syntax error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLClient_Transaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	client := NewClient(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM artifacts").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()
	err = client.Transaction(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.Exec("DELETE FROM artifacts")
		return err
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()
	boom := errors.New("boom")
	err = client.Transaction(context.Background(), func(*sql.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)

	mock.ExpectClose()
	require.NoError(t, client.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
