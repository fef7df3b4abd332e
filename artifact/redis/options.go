//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

package redis

import "time"

// ServiceOpts is the options for the redis artifact service.
type ServiceOpts struct {
	url          string
	instanceName string
	keyPrefix    string
	ttl          time.Duration
	extraOptions []any
}

// ServiceOpt is the option for the redis artifact service.
type ServiceOpt func(*ServiceOpts)

// WithRedisClientURL connects to the redis server at url.
func WithRedisClientURL(url string) ServiceOpt {
	return func(opts *ServiceOpts) {
		opts.url = url
	}
}

// WithRedisInstance uses a redis instance registered with
// storage/redis.RegisterRedisInstance. It takes precedence over the URL.
func WithRedisInstance(instanceName string) ServiceOpt {
	return func(opts *ServiceOpts) {
		opts.instanceName = instanceName
	}
}

// WithKeyPrefix sets the prefix of every key written by the service.
func WithKeyPrefix(prefix string) ServiceOpt {
	return func(opts *ServiceOpts) {
		opts.keyPrefix = prefix
	}
}

// WithTTL expires a run's artifact records ttl after their last save. Zero
// keeps them forever.
func WithTTL(ttl time.Duration) ServiceOpt {
	return func(opts *ServiceOpts) {
		opts.ttl = ttl
	}
}

// WithExtraOptions passes options through to a custom client builder.
func WithExtraOptions(extraOptions ...any) ServiceOpt {
	return func(opts *ServiceOpts) {
		opts.extraOptions = append(opts.extraOptions, extraOptions...)
	}
}
