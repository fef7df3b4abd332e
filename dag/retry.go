//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

package dag

import (
	"context"
	"fmt"
	"math"
	"time"

	"trpc.group/trpc-go/trpc-pipeline-go/pipelinespec"
)

// Defaults applied to fields missing from a task's retry policy.
const (
	defaultBackoffFactor      = 2.0
	defaultBackoffMaxDuration = time.Hour
)

// RetryPolicy controls re-dispatch of a failed leaf task. Attempts are counted
// inclusive of the first try: MaxAttempts=3 means 1 initial try plus up to 2
// retries.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	BackoffFactor   float64
	MaxInterval     time.Duration
}

// NoRetry runs a task exactly once.
var NoRetry = RetryPolicy{MaxAttempts: 1}

// NewRetryPolicy converts a task's retry policy. A nil spec yields NoRetry.
func NewRetryPolicy(spec *pipelinespec.RetryPolicy) (RetryPolicy, error) {
	if spec == nil || spec.MaxRetryCount <= 0 {
		return NoRetry, nil
	}
	p := RetryPolicy{
		MaxAttempts:   spec.MaxRetryCount + 1,
		BackoffFactor: spec.BackoffFactor,
		MaxInterval:   defaultBackoffMaxDuration,
	}
	if p.BackoffFactor <= 0 {
		p.BackoffFactor = defaultBackoffFactor
	}
	var err error
	if spec.BackoffDuration != "" {
		if p.InitialInterval, err = time.ParseDuration(spec.BackoffDuration); err != nil {
			return RetryPolicy{}, fmt.Errorf("%w: retry backoffDuration: %v", ErrMalformedInput, err)
		}
	}
	if spec.BackoffMaxDuration != "" {
		if p.MaxInterval, err = time.ParseDuration(spec.BackoffMaxDuration); err != nil {
			return RetryPolicy{}, fmt.Errorf("%w: retry backoffMaxDuration: %v", ErrMalformedInput, err)
		}
	}
	return p, nil
}

// NextDelay returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := p.BackoffFactor
	if factor <= 0 {
		factor = 1.0
	}
	delay := float64(p.InitialInterval) * math.Pow(factor, float64(attempt-1))
	if p.MaxInterval > 0 {
		delay = math.Min(delay, float64(p.MaxInterval))
	}
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
