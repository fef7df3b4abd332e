//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

package container

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-pipeline-go/artifact"
	"trpc.group/trpc-go/trpc-pipeline-go/artifact/inmemory"
	"trpc.group/trpc-go/trpc-pipeline-go/dispatcher"
	"trpc.group/trpc-go/trpc-pipeline-go/pipelinespec"
	"trpc.group/trpc-go/trpc-pipeline-go/status"
)

// fakeDocker simulates a Docker daemon. Starting a container runs onStart
// against the container's config, standing in for the process itself.
type fakeDocker struct {
	mu       sync.Mutex
	images   []string
	pulled   []string
	built    []string
	created  []*container.Config
	hostCfgs []*container.HostConfig
	removed  []string
	exitCode int64
	onStart  func(cfg *container.Config) error
	startErr error
	closed   bool
}

func (f *fakeDocker) ImageList(ctx context.Context, opts image.ListOptions) ([]image.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return []image.Summary{{RepoTags: append([]string{}, f.images...)}}, nil
}

func (f *fakeDocker) ImagePull(ctx context.Context, ref string, opts image.PullOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulled = append(f.pulled, ref)
	f.images = append(f.images, ref)
	return io.NopCloser(strings.NewReader(`{"status":"done"}`)), nil
}

func (f *fakeDocker) ImageBuild(
	ctx context.Context,
	buildContext io.Reader,
	opts build.ImageBuildOptions,
) (build.ImageBuildResponse, error) {
	if _, err := io.Copy(io.Discard, buildContext); err != nil {
		return build.ImageBuildResponse{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.built = append(f.built, opts.Tags...)
	return build.ImageBuildResponse{Body: io.NopCloser(strings.NewReader("{}"))}, nil
}

func (f *fakeDocker) CreateContainer(
	ctx context.Context,
	cfg *container.Config,
	hostCfg *container.HostConfig,
	name string,
) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, cfg)
	f.hostCfgs = append(f.hostCfgs, hostCfg)
	return name, nil
}

func (f *fakeDocker) ContainerStart(ctx context.Context, id string, opts container.StartOptions) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	cfg := f.created[len(f.created)-1]
	f.mu.Unlock()
	if f.onStart != nil {
		return f.onStart(cfg)
	}
	return nil
}

func (f *fakeDocker) ContainerWait(
	ctx context.Context,
	id string,
	cond container.WaitCondition,
) (<-chan container.WaitResponse, <-chan error) {
	statusCh := make(chan container.WaitResponse, 1)
	statusCh <- container.WaitResponse{StatusCode: f.exitCode}
	return statusCh, make(chan error)
}

func (f *fakeDocker) ContainerLogs(ctx context.Context, id string, opts container.LogsOptions) (io.ReadCloser, error) {
	var buf bytes.Buffer
	_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte("hello from " + id + "\n"))
	return io.NopCloser(&buf), nil
}

func (f *fakeDocker) ContainerRemove(ctx context.Context, id string, opts container.RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeDocker) Close() error {
	f.closed = true
	return nil
}

// writeOutputs plays the part of the task program: it writes "42" to the
// output parameter file and a report to the output artifact path.
func writeOutputs(cfg *container.Config) error {
	if err := os.WriteFile(cfg.Cmd[2], []byte("42"), 0o644); err != nil {
		return err
	}
	return os.WriteFile(cfg.Cmd[3], []byte("report"), 0o644)
}

func trainRequest(root string) *dispatcher.Request {
	comp := &pipelinespec.ComponentSpec{
		ExecutorLabel: "exec-train",
		InputDefinitions: &pipelinespec.ComponentInputsSpec{
			Parameters: map[string]*pipelinespec.ParameterSpec{"epochs": {ParameterType: pipelinespec.ParameterTypeInteger}},
		},
		OutputDefinitions: &pipelinespec.ComponentOutputsSpec{
			Parameters: map[string]*pipelinespec.ParameterSpec{"loss": {ParameterType: pipelinespec.ParameterTypeInteger}},
			Artifacts: map[string]*pipelinespec.ArtifactSpec{
				"model": {ArtifactType: pipelinespec.ArtifactTypeSchema{SchemaTitle: "system.Model"}},
			},
		},
	}
	return &dispatcher.Request{
		Run:           dispatcher.Run{PipelineName: "p", RunID: "r", PipelineRoot: root},
		TaskName:      "comp-train",
		ScopeTask:     "train",
		ComponentName: "comp-train",
		Component:     comp,
		ExecutorLabel: "exec-train",
		Executor: &pipelinespec.ExecutorSpec{Container: &pipelinespec.ContainerSpec{
			Image:   "python:3.11",
			Command: []string{"python", "train.py"},
			Args: []string{
				"--epochs",
				"{{$.inputs.parameters['epochs']}}",
				"{{$.outputs.parameters['loss'].output_file}}",
				"{{$.outputs.artifacts['model'].path}}",
			},
			Env: []*pipelinespec.EnvVar{{Name: "RUN", Value: "{{$.pipeline_job_name}}"}},
		}},
		Arguments: map[string]any{"epochs": 3.0},
		Attempt:   1,
	}
}

func TestDispatch_Success(t *testing.T) {
	root := t.TempDir()
	fake := &fakeDocker{onStart: writeOutputs}
	svc := inmemory.NewService()
	d, err := New(withDockerAPI(fake), WithArtifactService(svc),
		WithHostConfig(container.HostConfig{Mounts: []mount.Mount{{Type: mount.TypeBind, Source: "/data", Target: "/data"}}}))
	require.NoError(t, err)

	req := trainRequest(root)
	res, err := d.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, status.Success, res.Status)
	assert.Equal(t, 42.0, res.Outputs["loss"])
	model, ok := res.Outputs["model"].(*artifact.Artifact)
	require.True(t, ok)
	assert.Equal(t, "system.Model", model.SchemaTitle)

	require.Len(t, fake.created, 1)
	cfg := fake.created[0]
	taskDir := filepath.Join(root, "p-r", "comp-train")
	assert.Equal(t, "python:3.11", cfg.Image)
	assert.Equal(t, []string{"python", "train.py"}, []string(cfg.Entrypoint))
	assert.Equal(t, "3", cfg.Cmd[1])
	assert.Equal(t, taskDir, cfg.WorkingDir)
	assert.Contains(t, cfg.Env, "RUN=p-r")

	mounts := fake.hostCfgs[0].Mounts
	require.Len(t, mounts, 2)
	assert.Equal(t, "/data", mounts[0].Source)
	assert.Equal(t, mount.Mount{Type: mount.TypeBind, Source: root, Target: root}, mounts[1])

	assert.Equal(t, []string{"python:3.11"}, fake.pulled)
	require.Len(t, fake.removed, 1)
	assert.True(t, strings.HasPrefix(fake.removed[0], defaultContainerNamePrefix))

	logData, err := os.ReadFile(filepath.Join(taskDir, LogFile))
	require.NoError(t, err)
	assert.Contains(t, string(logData), "hello from")

	keys, err := svc.ListArtifactKeys(context.Background(), artifact.RunInfo{PipelineName: "p", RunID: "r"})
	require.NoError(t, err)
	assert.Equal(t, []string{"comp-train/model"}, keys)

	// The image is only pulled once.
	_, err = d.Dispatch(context.Background(), trainRequest(root))
	require.NoError(t, err)
	assert.Len(t, fake.pulled, 1)

	require.NoError(t, d.Close())
	assert.True(t, fake.closed)
}

func TestDispatch_NonZeroExit(t *testing.T) {
	fake := &fakeDocker{exitCode: 2, images: []string{"python:3.11"}}
	d, err := New(withDockerAPI(fake))
	require.NoError(t, err)

	res, err := d.Dispatch(context.Background(), trainRequest(t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, status.Failure, res.Status)
	assert.Empty(t, fake.pulled)
	assert.Len(t, fake.removed, 1)
}

func TestDispatch_MissingOutput(t *testing.T) {
	fake := &fakeDocker{images: []string{"python:3.11"}}
	d, err := New(withDockerAPI(fake))
	require.NoError(t, err)

	res, err := d.Dispatch(context.Background(), trainRequest(t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, status.Failure, res.Status)
}

func TestDispatch_Errors(t *testing.T) {
	t.Run("relative root", func(t *testing.T) {
		d, err := New(withDockerAPI(&fakeDocker{}))
		require.NoError(t, err)
		_, err = d.Dispatch(context.Background(), trainRequest("local_outputs"))
		assert.ErrorContains(t, err, "must be absolute")
	})
	t.Run("start failure", func(t *testing.T) {
		fake := &fakeDocker{images: []string{"python:3.11"}, startErr: errors.New("boom")}
		d, err := New(withDockerAPI(fake))
		require.NoError(t, err)
		_, err = d.Dispatch(context.Background(), trainRequest(t.TempDir()))
		assert.ErrorContains(t, err, "failed to start container")
		assert.Len(t, fake.removed, 1)
	})
	t.Run("no image", func(t *testing.T) {
		d, err := New(withDockerAPI(&fakeDocker{}))
		require.NoError(t, err)
		req := trainRequest(t.TempDir())
		req.Executor.Container.Image = ""
		_, err = d.Dispatch(context.Background(), req)
		assert.ErrorContains(t, err, "has no image")
	})
	t.Run("bad placeholder", func(t *testing.T) {
		d, err := New(withDockerAPI(&fakeDocker{}))
		require.NoError(t, err)
		req := trainRequest(t.TempDir())
		req.Executor.Container.Args = []string{"{{$.inputs.parameters['missing']}}"}
		_, err = d.Dispatch(context.Background(), req)
		assert.Error(t, err)
	})
}

func TestDispatch_ImageBuild(t *testing.T) {
	buildDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(buildDir, "Dockerfile"), []byte("FROM alpine\n"), 0o644))
	fake := &fakeDocker{onStart: writeOutputs}
	d, err := New(withDockerAPI(fake), WithImageBuild("python:3.11", buildDir))
	require.NoError(t, err)

	res, err := d.Dispatch(context.Background(), trainRequest(t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, status.Success, res.Status)
	assert.Equal(t, []string{"python:3.11"}, fake.built)
	assert.Empty(t, fake.pulled)
}
