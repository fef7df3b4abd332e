//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

// Package artifact provides internal utilities for artifact storage layout.
package artifact

import (
	"fmt"
	"strconv"
	"strings"

	"trpc.group/trpc-go/trpc-pipeline-go/artifact"
)

// BuildRunPrefix returns the prefix shared by every artifact of a run.
func BuildRunPrefix(runInfo artifact.RunInfo) string {
	return fmt.Sprintf("%s/%s/", runInfo.PipelineName, runInfo.RunID)
}

// BuildArtifactPath returns the storage path of an artifact key.
func BuildArtifactPath(runInfo artifact.RunInfo, key string) string {
	return BuildRunPrefix(runInfo) + key
}

// BuildObjectNamePrefix returns the prefix shared by every version of an artifact.
func BuildObjectNamePrefix(runInfo artifact.RunInfo, key string) string {
	return BuildArtifactPath(runInfo, key) + "/"
}

// BuildObjectName returns the object name of one artifact version.
func BuildObjectName(runInfo artifact.RunInfo, key string, version int) string {
	return BuildObjectNamePrefix(runInfo, key) + strconv.Itoa(version)
}

// ParseObjectName splits an object name produced by BuildObjectName back into
// the artifact key and version. ok is false when name does not belong to the run.
func ParseObjectName(runInfo artifact.RunInfo, name string) (key string, version int, ok bool) {
	rest, found := strings.CutPrefix(name, BuildRunPrefix(runInfo))
	if !found {
		return "", 0, false
	}
	i := strings.LastIndex(rest, "/")
	if i <= 0 {
		return "", 0, false
	}
	v, err := strconv.Atoi(rest[i+1:])
	if err != nil || v < 0 {
		return "", 0, false
	}
	return rest[:i], v, true
}
