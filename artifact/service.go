//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

package artifact

import "context"

// Service defines the interface for artifact metadata services.
type Service interface {
	// SaveArtifact records an artifact under key within a run and returns
	// its version. The first version of a key is 0, and every later save
	// increments it by one.
	SaveArtifact(ctx context.Context, runInfo RunInfo, key string, artifact *Artifact) (int, error)

	// LoadArtifact returns a recorded artifact. A nil version loads the
	// latest one. It returns nil when the key is unknown.
	LoadArtifact(ctx context.Context, runInfo RunInfo, key string, version *int) (*Artifact, error)

	// ListArtifactKeys lists the artifact keys recorded within a run, sorted.
	ListArtifactKeys(ctx context.Context, runInfo RunInfo) ([]string, error)

	// DeleteArtifact removes every version of an artifact. Deleting an
	// unknown key is not an error.
	DeleteArtifact(ctx context.Context, runInfo RunInfo, key string) error

	// ListVersions lists the available versions of an artifact.
	ListVersions(ctx context.Context, runInfo RunInfo, key string) ([]int, error)
}
