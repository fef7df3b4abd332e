//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

// Package redis provides a redis-backed artifact service. Each artifact is a
// list of JSON-encoded versions; a per-run set indexes the artifact keys.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"

	"trpc.group/trpc-go/trpc-pipeline-go/artifact"
	iartifact "trpc.group/trpc-go/trpc-pipeline-go/internal/artifact"
	"trpc.group/trpc-go/trpc-pipeline-go/log"
	storage "trpc.group/trpc-go/trpc-pipeline-go/storage/redis"
)

const defaultKeyPrefix = "trpc-pipeline:artifact:"

var _ artifact.Service = (*Service)(nil)

// Service is the redis artifact service.
type Service struct {
	opts   ServiceOpts
	client redis.UniversalClient
}

// NewService creates a redis artifact service. Either WithRedisClientURL or
// WithRedisInstance is required.
func NewService(options ...ServiceOpt) (*Service, error) {
	opts := ServiceOpts{keyPrefix: defaultKeyPrefix}
	for _, option := range options {
		option(&opts)
	}
	if opts.instanceName == "" && opts.url == "" {
		return nil, errors.New("redis artifact service: url or instance is required")
	}
	client, err := storage.NewClient(opts.instanceName, opts.url, opts.extraOptions...)
	if err != nil {
		return nil, fmt.Errorf("redis artifact service: %w", err)
	}
	return &Service{opts: opts, client: client}, nil
}

// Close closes the redis client.
func (s *Service) Close() error {
	return s.client.Close()
}

func (s *Service) versionsKey(runInfo artifact.RunInfo, key string) string {
	return s.opts.keyPrefix + iartifact.BuildArtifactPath(runInfo, key)
}

func (s *Service) indexKey(runInfo artifact.RunInfo) string {
	return s.opts.keyPrefix + "index:" + iartifact.BuildRunPrefix(runInfo)
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
	versionsKey := s.versionsKey(runInfo, key)
	indexKey := s.indexKey(runInfo)

	var push *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		push = pipe.RPush(ctx, versionsKey, data)
		pipe.SAdd(ctx, indexKey, key)
		if s.opts.ttl > 0 {
			pipe.Expire(ctx, versionsKey, s.opts.ttl)
			pipe.Expire(ctx, indexKey, s.opts.ttl)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("save artifact %s: %w", key, err)
	}
	version := int(push.Val()) - 1
	log.Debugf("redis artifact: saved %s version %d", versionsKey, version)
	return version, nil
}

// LoadArtifact implements artifact.Service.
func (s *Service) LoadArtifact(
	ctx context.Context,
	runInfo artifact.RunInfo,
	key string,
	version *int,
) (*artifact.Artifact, error) {
	versionsKey := s.versionsKey(runInfo, key)
	n, err := s.client.LLen(ctx, versionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load artifact %s: %w", key, err)
	}
	if n == 0 {
		return nil, nil
	}
	index := n - 1
	if version != nil {
		if *version < 0 || int64(*version) >= n {
			return nil, fmt.Errorf("version %d of artifact %q does not exist", *version, key)
		}
		index = int64(*version)
	}
	data, err := s.client.LIndex(ctx, versionsKey, index).Bytes()
	if err != nil {
		return nil, fmt.Errorf("load artifact %s: %w", key, err)
	}
	var art artifact.Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", key, err)
	}
	return &art, nil
}

// ListArtifactKeys implements artifact.Service.
func (s *Service) ListArtifactKeys(ctx context.Context, runInfo artifact.RunInfo) ([]string, error) {
	keys, err := s.client.SMembers(ctx, s.indexKey(runInfo)).Result()
	if err != nil {
		return nil, fmt.Errorf("list artifact keys: %w", err)
	}
	slices.Sort(keys)
	return keys, nil
}

// DeleteArtifact implements artifact.Service.
func (s *Service) DeleteArtifact(ctx context.Context, runInfo artifact.RunInfo, key string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.versionsKey(runInfo, key))
		pipe.SRem(ctx, s.indexKey(runInfo), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete artifact %s: %w", key, err)
	}
	return nil
}

// ListVersions implements artifact.Service.
func (s *Service) ListVersions(ctx context.Context, runInfo artifact.RunInfo, key string) ([]int, error) {
	n, err := s.client.LLen(ctx, s.versionsKey(runInfo, key)).Result()
	if err != nil {
		return nil, fmt.Errorf("list versions of %s: %w", key, err)
	}
	versions := make([]int, n)
	for i := range versions {
		versions[i] = i
	}
	return versions, nil
}
