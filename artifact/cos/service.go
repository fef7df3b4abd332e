//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

// Package cos provides a Tencent Cloud Object Storage (COS) implementation of
// the artifact service. Each artifact version is stored as one JSON object
// named "<pipeline>/<run>/<key>/<version>".
package cos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sort"

	cos "github.com/tencentyun/cos-go-sdk-v5"

	"trpc.group/trpc-go/trpc-pipeline-go/artifact"
	iartifact "trpc.group/trpc-go/trpc-pipeline-go/internal/artifact"
)

const contentTypeJSON = "application/json"

// Service is a COS implementation of the artifact service.
type Service struct {
	cosClient client
}

// NewService creates a COS artifact service for the bucket at bucketURL,
// e.g. "https://bucket-1250000000.cos.ap-guangzhou.myqcloud.com".
func NewService(bucketURL string, opts ...Option) (*Service, error) {
	c, err := buildClient(bucketURL, newOptions(opts...))
	if err != nil {
		return nil, err
	}
	return &Service{cosClient: c}, nil
}

// SaveArtifact implements artifact.Service.
func (s *Service) SaveArtifact(ctx context.Context, runInfo artifact.RunInfo, key string, art *artifact.Artifact) (int, error) {
	if art == nil {
		return 0, fmt.Errorf("artifact %q is nil", key)
	}
	versions, err := s.ListVersions(ctx, runInfo, key)
	if err != nil {
		return 0, fmt.Errorf("failed to list versions: %w", err)
	}
	version := 0
	if len(versions) > 0 {
		version = slices.Max(versions) + 1
	}

	data, err := json.Marshal(art)
	if err != nil {
		return 0, fmt.Errorf("failed to encode artifact %q: %w", key, err)
	}
	name := iartifact.BuildObjectName(runInfo, key, version)
	if err := s.cosClient.PutObject(ctx, name, bytes.NewReader(data), contentTypeJSON); err != nil {
		return 0, fmt.Errorf("failed to upload artifact: %w", err)
	}
	return version, nil
}

// LoadArtifact implements artifact.Service.
func (s *Service) LoadArtifact(ctx context.Context, runInfo artifact.RunInfo, key string, version *int) (*artifact.Artifact, error) {
	var target int
	if version == nil {
		versions, err := s.ListVersions(ctx, runInfo, key)
		if err != nil {
			return nil, fmt.Errorf("failed to list versions: %w", err)
		}
		if len(versions) == 0 {
			return nil, nil
		}
		target = slices.Max(versions)
	} else {
		target = *version
	}

	body, err := s.cosClient.GetObject(ctx, iartifact.BuildObjectName(runInfo, key, target))
	if err != nil {
		if cos.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to download artifact: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact data: %w", err)
	}
	var art artifact.Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("failed to decode artifact %q version %d: %w", key, target, err)
	}
	return &art, nil
}

// ListArtifactKeys implements artifact.Service.
func (s *Service) ListArtifactKeys(ctx context.Context, runInfo artifact.RunInfo) ([]string, error) {
	names, err := s.cosClient.ListObjects(ctx, iartifact.BuildRunPrefix(runInfo))
	if err != nil && !cos.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to list run artifacts: %w", err)
	}
	set := make(map[string]struct{})
	for _, name := range names {
		if key, _, ok := iartifact.ParseObjectName(runInfo, name); ok {
			set[key] = struct{}{}
		}
	}
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// DeleteArtifact implements artifact.Service.
func (s *Service) DeleteArtifact(ctx context.Context, runInfo artifact.RunInfo, key string) error {
	versions, err := s.ListVersions(ctx, runInfo, key)
	if err != nil {
		return fmt.Errorf("failed to list versions: %w", err)
	}
	for _, version := range versions {
		err := s.cosClient.DeleteObject(ctx, iartifact.BuildObjectName(runInfo, key, version))
		if err != nil && !cos.IsNotFoundError(err) {
			return fmt.Errorf("failed to delete artifact version %d: %w", version, err)
		}
	}
	return nil
}

// ListVersions implements artifact.Service.
func (s *Service) ListVersions(ctx context.Context, runInfo artifact.RunInfo, key string) ([]int, error) {
	names, err := s.cosClient.ListObjects(ctx, iartifact.BuildObjectNamePrefix(runInfo, key))
	if err != nil {
		if cos.IsNotFoundError(err) {
			return []int{}, nil
		}
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	versions := []int{}
	for _, name := range names {
		// Keys nested under this one ("a/b" below "a") are not versions of it.
		if k, v, ok := iartifact.ParseObjectName(runInfo, name); ok && k == key {
			versions = append(versions, v)
		}
	}
	sort.Ints(versions)
	return versions, nil
}
