//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

package inmemory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-pipeline-go/artifact"
)

var runInfo = artifact.RunInfo{PipelineName: "training", RunID: "run-1"}

func TestNewService(t *testing.T) {
	service := NewService()
	assert.NotNil(t, service.artifacts)
	assert.Empty(t, service.artifacts)
}

func TestSaveAndLoadArtifact(t *testing.T) {
	service := NewService()
	ctx := context.Background()

	loaded, err := service.LoadArtifact(ctx, runInfo, "train/model", nil)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	v0 := &artifact.Artifact{Name: "train/model", URI: "/out/v0", SchemaTitle: "system.Model"}
	v1 := &artifact.Artifact{Name: "train/model", URI: "/out/v1", SchemaTitle: "system.Model",
		Metadata: map[string]any{"accuracy": 0.9}}

	version, err := service.SaveArtifact(ctx, runInfo, "train/model", v0)
	require.NoError(t, err)
	assert.Equal(t, 0, version)
	version, err = service.SaveArtifact(ctx, runInfo, "train/model", v1)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	loaded, err = service.LoadArtifact(ctx, runInfo, "train/model", nil)
	require.NoError(t, err)
	assert.Equal(t, v1, loaded)

	first := 0
	loaded, err = service.LoadArtifact(ctx, runInfo, "train/model", &first)
	require.NoError(t, err)
	assert.Equal(t, v0, loaded)

	missing := 5
	_, err = service.LoadArtifact(ctx, runInfo, "train/model", &missing)
	assert.ErrorContains(t, err, "version 5")

	_, err = service.SaveArtifact(ctx, runInfo, "nil", nil)
	assert.Error(t, err)
}

func TestSaveArtifact_StoresCopy(t *testing.T) {
	service := NewService()
	ctx := context.Background()

	art := &artifact.Artifact{URI: "/out", Metadata: map[string]any{"k": "v"}}
	_, err := service.SaveArtifact(ctx, runInfo, "a", art)
	require.NoError(t, err)
	art.Metadata["k"] = "changed"

	loaded, err := service.LoadArtifact(ctx, runInfo, "a", nil)
	require.NoError(t, err)
	assert.Equal(t, "v", loaded.Metadata["k"])
	loaded.URI = "/elsewhere"

	again, err := service.LoadArtifact(ctx, runInfo, "a", nil)
	require.NoError(t, err)
	assert.Equal(t, "/out", again.URI)
}

func TestListArtifactKeys(t *testing.T) {
	service := NewService()
	ctx := context.Background()

	keys, err := service.ListArtifactKeys(ctx, runInfo)
	require.NoError(t, err)
	assert.Empty(t, keys)

	for _, key := range []string{"train/model", "importer/artifact", "train/metrics"} {
		_, err := service.SaveArtifact(ctx, runInfo, key, &artifact.Artifact{URI: "/" + key})
		require.NoError(t, err)
	}
	other := artifact.RunInfo{PipelineName: "training", RunID: "run-2"}
	_, err = service.SaveArtifact(ctx, other, "eval/report", &artifact.Artifact{URI: "/r"})
	require.NoError(t, err)

	keys, err = service.ListArtifactKeys(ctx, runInfo)
	require.NoError(t, err)
	assert.Equal(t, []string{"importer/artifact", "train/metrics", "train/model"}, keys)

	keys, err = service.ListArtifactKeys(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, []string{"eval/report"}, keys)
}

func TestDeleteArtifactAndListVersions(t *testing.T) {
	service := NewService()
	ctx := context.Background()

	versions, err := service.ListVersions(ctx, runInfo, "a")
	require.NoError(t, err)
	assert.Empty(t, versions)

	for i := 0; i < 3; i++ {
		_, err := service.SaveArtifact(ctx, runInfo, "a", &artifact.Artifact{URI: fmt.Sprintf("/v%d", i)})
		require.NoError(t, err)
	}
	versions, err = service.ListVersions(ctx, runInfo, "a")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, versions)

	require.NoError(t, service.DeleteArtifact(ctx, runInfo, "a"))
	require.NoError(t, service.DeleteArtifact(ctx, runInfo, "never-saved"))
	loaded, err := service.LoadArtifact(ctx, runInfo, "a", nil)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestConcurrentSaves(t *testing.T) {
	service := NewService()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := service.SaveArtifact(ctx, runInfo, "shared", &artifact.Artifact{URI: fmt.Sprintf("/%d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	versions, err := service.ListVersions(ctx, runInfo, "shared")
	require.NoError(t, err)
	assert.Len(t, versions, 20)
}
