//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

// Package container provides a dispatcher that runs container leaf tasks in
// Docker. The pipeline root is bind-mounted at the same path inside each
// container, so the paths in resolved placeholders are valid on both sides.
package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"
	archive "github.com/moby/go-archive"

	"trpc.group/trpc-go/trpc-pipeline-go/artifact"
	"trpc.group/trpc-go/trpc-pipeline-go/dispatcher"
	"trpc.group/trpc-go/trpc-pipeline-go/internal/executor"
	"trpc.group/trpc-go/trpc-pipeline-go/log"
)

const (
	defaultContainerNamePrefix = "trpc-pipeline-task-"
	// LogFile is the file, inside the task directory, receiving the
	// container's stdout and stderr.
	LogFile = "task.log"
)

// Dispatcher runs container tasks in Docker.
type Dispatcher struct {
	host       string
	api        dockerAPI
	hostConfig container.HostConfig
	builds     map[string]string // image tag -> build context directory
	artifacts  artifact.Service

	mu     sync.Mutex
	images map[string]bool // images known to be present locally
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHost sets the Docker host. By default the client is configured from
// the environment (DOCKER_HOST and friends).
func WithHost(host string) Option {
	return func(d *Dispatcher) {
		d.host = host
	}
}

// WithHostConfig sets the host configuration template for task containers.
// The pipeline root mount is always added.
func WithHostConfig(hostConfig container.HostConfig) Option {
	return func(d *Dispatcher) {
		d.hostConfig = hostConfig
	}
}

// WithImageBuild builds image tag from the Dockerfile in dir the first time
// a task uses it, instead of pulling it.
func WithImageBuild(tag, dir string) Option {
	return func(d *Dispatcher) {
		d.builds[tag] = dir
	}
}

// WithArtifactService records output artifacts in svc.
func WithArtifactService(svc artifact.Service) Option {
	return func(d *Dispatcher) {
		d.artifacts = svc
	}
}

func withDockerAPI(api dockerAPI) Option {
	return func(d *Dispatcher) {
		d.api = api
	}
}

// New creates a Docker dispatcher.
func New(opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		hostConfig: container.HostConfig{Privileged: false},
		builds:     make(map[string]string),
		images:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	for tag, dir := range d.builds {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for %s: %w", dir, err)
		}
		d.builds[tag] = abs
	}
	if d.api == nil {
		api, err := newDockerClient(d.host)
		if err != nil {
			return nil, fmt.Errorf("failed to create Docker client: %w", err)
		}
		d.api = api
	}
	return d, nil
}

// Close releases the Docker client.
func (d *Dispatcher) Close() error {
	return d.api.Close()
}

// Dispatch implements dispatcher.Dispatcher. A non-zero exit code or a
// missing declared output is a task failure; Docker errors, a cancelled ctx
// and broken task specifications are errors.
func (d *Dispatcher) Dispatch(ctx context.Context, req *dispatcher.Request) (dispatcher.Result, error) {
	if !filepath.IsAbs(req.Run.PipelineRoot) {
		return dispatcher.Result{}, fmt.Errorf("pipeline root %q must be absolute to be mounted", req.Run.PipelineRoot)
	}
	task, err := executor.Prepare(req)
	if err != nil {
		return dispatcher.Result{}, err
	}
	entrypoint, err := task.ResolveAll(task.Container.Command)
	if err != nil {
		return dispatcher.Result{}, fmt.Errorf("task %q command: %w", req.TaskName, err)
	}
	args, err := task.ResolveAll(task.Container.Args)
	if err != nil {
		return dispatcher.Result{}, fmt.Errorf("task %q args: %w", req.TaskName, err)
	}
	env, err := task.Env()
	if err != nil {
		return dispatcher.Result{}, err
	}
	if task.Container.Image == "" {
		return dispatcher.Result{}, fmt.Errorf("task %q has no image", req.TaskName)
	}
	if err := d.ensureImage(ctx, task.Container.Image); err != nil {
		return dispatcher.Result{}, err
	}

	cfg := &container.Config{
		Image:      task.Container.Image,
		Entrypoint: entrypoint,
		Cmd:        args,
		Env:        env,
		WorkingDir: task.Dir,
	}
	hostCfg := d.hostConfig
	hostCfg.Mounts = append(append([]mount.Mount{}, d.hostConfig.Mounts...), mount.Mount{
		Type:   mount.TypeBind,
		Source: req.Run.PipelineRoot,
		Target: req.Run.PipelineRoot,
	})
	exitCode, err := d.runContainer(ctx, cfg, &hostCfg, filepath.Join(task.Dir, LogFile))
	if err != nil {
		return dispatcher.Result{}, fmt.Errorf("task %q: %w", req.TaskName, err)
	}
	if exitCode != 0 {
		log.Warnf("container: task %q exited with code %d (log=%s)", req.TaskName, exitCode,
			filepath.Join(task.Dir, LogFile))
		return dispatcher.Failed(), nil
	}

	outputs, err := task.CollectOutputs(ctx, d.artifacts)
	if errors.Is(err, executor.ErrMissingOutput) || errors.Is(err, executor.ErrInvalidOutput) {
		log.Warnf("container: task %q: %v", req.TaskName, err)
		return dispatcher.Failed(), nil
	}
	if err != nil {
		return dispatcher.Result{}, err
	}
	return dispatcher.Succeeded(outputs), nil
}

// runContainer creates, starts and waits for a container, copies its logs to
// logPath and removes it. It returns the container's exit code.
func (d *Dispatcher) runContainer(
	ctx context.Context,
	cfg *container.Config,
	hostCfg *container.HostConfig,
	logPath string,
) (int64, error) {
	id, err := d.api.CreateContainer(ctx, cfg, hostCfg, generateContainerName())
	if err != nil {
		return 0, fmt.Errorf("failed to create container: %w", err)
	}
	defer func() {
		// The run ctx may be cancelled already.
		if err := d.api.ContainerRemove(context.Background(), id, container.RemoveOptions{Force: true}); err != nil {
			log.Warnf("container: failed to remove container %s: %v", id, err)
		}
	}()

	if err := d.api.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return 0, fmt.Errorf("failed to start container: %w", err)
	}
	statusCh, errCh := d.api.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	var exitCode int64
	select {
	case err := <-errCh:
		if err != nil {
			return 0, fmt.Errorf("failed to wait for container: %w", err)
		}
	case st := <-statusCh:
		if st.Error != nil && st.Error.Message != "" {
			return 0, fmt.Errorf("container wait: %s", st.Error.Message)
		}
		exitCode = st.StatusCode
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	if err := d.copyLogs(ctx, id, logPath); err != nil {
		log.Warnf("container: failed to collect logs of %s: %v", id, err)
	}
	return exitCode, nil
}

func (d *Dispatcher) copyLogs(ctx context.Context, id, logPath string) error {
	reader, err := d.api.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return err
	}
	defer reader.Close()
	f, err := os.Create(logPath)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = stdcopy.StdCopy(f, f, reader)
	return err
}

// ensureImage makes ref available locally: built when registered with
// WithImageBuild, otherwise pulled if not already present.
func (d *Dispatcher) ensureImage(ctx context.Context, ref string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.images[ref] {
		return nil
	}
	if dir, ok := d.builds[ref]; ok {
		if err := d.buildImage(ctx, ref, dir); err != nil {
			return err
		}
		d.images[ref] = true
		return nil
	}

	images, err := d.api.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}
	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == ref {
				d.images[ref] = true
				return nil
			}
		}
	}

	log.Infof("container: image %s not found locally, pulling", ref)
	reader, err := d.api.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	defer reader.Close()
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("failed to read image pull output: %w", err)
	}
	d.images[ref] = true
	return nil
}

func (d *Dispatcher) buildImage(ctx context.Context, tag, dir string) error {
	log.Infof("container: building image %s from %s", tag, dir)
	buildContext, err := archive.TarWithOptions(dir, &archive.TarOptions{})
	if err != nil {
		return fmt.Errorf("failed to create build context: %w", err)
	}
	defer buildContext.Close()

	resp, err := d.api.ImageBuild(ctx, buildContext, build.ImageBuildOptions{
		Tags:   []string{tag},
		Remove: true,
	})
	if err != nil {
		return fmt.Errorf("failed to build image: %w", err)
	}
	defer resp.Body.Close()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("failed to read build output: %w", err)
	}
	return nil
}

func generateContainerName() string {
	return defaultContainerNamePrefix + uuid.New().String()
}
