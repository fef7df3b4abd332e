//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-memory implementation of the artifact service.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"trpc.group/trpc-go/trpc-pipeline-go/artifact"
	iartifact "trpc.group/trpc-go/trpc-pipeline-go/internal/artifact"
)

// Service is an in-memory implementation of the artifact service.
// It is safe for concurrent use.
type Service struct {
	mutex sync.RWMutex
	// artifacts stores every version of an artifact by path.
	artifacts map[string][]*artifact.Artifact
}

// NewService creates a new in-memory artifact service.
func NewService() *Service {
	return &Service{
		artifacts: make(map[string][]*artifact.Artifact),
	}
}

// SaveArtifact implements artifact.Service.
func (s *Service) SaveArtifact(ctx context.Context, runInfo artifact.RunInfo, key string, art *artifact.Artifact) (int, error) {
	if art == nil {
		return 0, fmt.Errorf("artifact %q is nil", key)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	path := iartifact.BuildArtifactPath(runInfo, key)
	version := len(s.artifacts[path])
	s.artifacts[path] = append(s.artifacts[path], art.Clone())
	return version, nil
}

// LoadArtifact implements artifact.Service.
func (s *Service) LoadArtifact(ctx context.Context, runInfo artifact.RunInfo, key string, version *int) (*artifact.Artifact, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	versions := s.artifacts[iartifact.BuildArtifactPath(runInfo, key)]
	if len(versions) == 0 {
		return nil, nil
	}
	idx := len(versions) - 1
	if version != nil {
		idx = *version
		if idx < 0 || idx >= len(versions) {
			return nil, fmt.Errorf("version %d of artifact %q does not exist", *version, key)
		}
	}
	return versions[idx].Clone(), nil
}

// ListArtifactKeys implements artifact.Service.
func (s *Service) ListArtifactKeys(ctx context.Context, runInfo artifact.RunInfo) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	prefix := iartifact.BuildRunPrefix(runInfo)
	keys := []string{}
	for path := range s.artifacts {
		if key, ok := strings.CutPrefix(path, prefix); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// DeleteArtifact implements artifact.Service.
func (s *Service) DeleteArtifact(ctx context.Context, runInfo artifact.RunInfo, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.artifacts, iartifact.BuildArtifactPath(runInfo, key))
	return nil
}

// ListVersions implements artifact.Service.
func (s *Service) ListVersions(ctx context.Context, runInfo artifact.RunInfo, key string) ([]int, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	versions := s.artifacts[iartifact.BuildArtifactPath(runInfo, key)]
	result := make([]int, len(versions))
	for i := range versions {
		result[i] = i
	}
	return result, nil
}
