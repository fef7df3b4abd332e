//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

package cos

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	cos "github.com/tencentyun/cos-go-sdk-v5"
)

const (
	defaultTimeout = 60 * time.Second

	envSecretID  = "COS_SECRETID"
	envSecretKey = "COS_SECRETKEY"
)

// Option is a function that configures a COS artifact service.
type Option func(*options)

type options struct {
	client     client
	httpClient *http.Client
	timeout    time.Duration
	secretID   string
	secretKey  string
}

// WithClient sets a preconfigured COS client. When set, the bucket URL and
// credentials passed to NewService are ignored.
func WithClient(c *cos.Client) Option {
	return func(o *options) {
		o.client = newCosClient(c)
	}
}

// WithHTTPClient sets the HTTP client used to talk to COS.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// WithSecretID sets the secret ID. Defaults to $COS_SECRETID.
func WithSecretID(secretID string) Option {
	return func(o *options) {
		o.secretID = secretID
	}
}

// WithSecretKey sets the secret key. Defaults to $COS_SECRETKEY.
func WithSecretKey(secretKey string) Option {
	return func(o *options) {
		o.secretKey = secretKey
	}
}

func newOptions(opts ...Option) *options {
	o := &options{
		timeout:   defaultTimeout,
		secretID:  os.Getenv(envSecretID),
		secretKey: os.Getenv(envSecretKey),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func buildClient(bucketURL string, o *options) (client, error) {
	if o.client != nil {
		return o.client, nil
	}
	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, fmt.Errorf("parse bucket url %q: %w", bucketURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("bucket url %q must be absolute", bucketURL)
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &cos.AuthorizationTransport{
				SecretID:  o.secretID,
				SecretKey: o.secretKey,
			},
		}
	}
	if o.timeout > 0 {
		httpClient.Timeout = o.timeout
	}
	return newCosClient(cos.NewClient(&cos.BaseURL{BucketURL: u}, httpClient)), nil
}
