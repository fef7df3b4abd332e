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
	"context"
	"io"

	cos "github.com/tencentyun/cos-go-sdk-v5"
)

// client is the subset of the COS API used by the artifact service.
type client interface {
	ListObjects(ctx context.Context, prefix string) ([]string, error)
	PutObject(ctx context.Context, name string, content io.Reader, contentType string) error
	GetObject(ctx context.Context, name string) (io.ReadCloser, error)
	DeleteObject(ctx context.Context, name string) error
}

type cosClient struct {
	*cos.Client
}

func newCosClient(c *cos.Client) client {
	return &cosClient{Client: c}
}

// ListObjects returns every object key under prefix, following pagination.
func (c *cosClient) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	var (
		keys   []string
		marker string
	)
	for {
		result, _, err := c.Client.Bucket.Get(ctx, &cos.BucketGetOptions{Prefix: prefix, Marker: marker})
		if err != nil {
			return nil, err
		}
		for _, obj := range result.Contents {
			keys = append(keys, obj.Key)
		}
		if !result.IsTruncated || result.NextMarker == "" {
			return keys, nil
		}
		marker = result.NextMarker
	}
}

func (c *cosClient) PutObject(ctx context.Context, name string, content io.Reader, contentType string) error {
	opt := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{ContentType: contentType},
	}
	_, err := c.Client.Object.Put(ctx, name, content, opt)
	return err
}

func (c *cosClient) GetObject(ctx context.Context, name string) (io.ReadCloser, error) {
	resp, err := c.Client.Object.Get(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *cosClient) DeleteObject(ctx context.Context, name string) error {
	_, err := c.Client.Object.Delete(ctx, name)
	return err
}
