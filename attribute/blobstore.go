/*
 * LinkedRecords
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package attribute

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Memory blob store
// =================

/*
MemoryBlobStore keeps blobs in memory.
*/
type MemoryBlobStore struct {
	blobs map[string]Blob
	lock  *sync.RWMutex
}

/*
NewMemoryBlobStore creates a new in-memory blob store.
*/
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{make(map[string]Blob), &sync.RWMutex{}}
}

/*
Put stores a blob.
*/
func (ms *MemoryBlobStore) Put(ctx context.Context, key string, blob Blob) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()

	ms.blobs[key] = Blob{blob.ContentType, append([]byte(nil), blob.Data...)}

	return nil
}

/*
Get retrieves a blob.
*/
func (ms *MemoryBlobStore) Get(ctx context.Context, key string) (Blob, bool, error) {
	ms.lock.RLock()
	defer ms.lock.RUnlock()

	blob, ok := ms.blobs[key]

	return blob, ok, nil
}

/*
DeleteAll removes all blobs.
*/
func (ms *MemoryBlobStore) DeleteAll(ctx context.Context) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()

	ms.blobs = make(map[string]Blob)

	return nil
}

// S3 blob store
// =============

/*
S3Config holds the parameters of an S3 blob store. Credentials are taken
from the default AWS credential chain.
*/
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string // Custom endpoint (e.g. MinIO)
	UsePathStyle bool
}

/*
S3BlobStore stores blobs in an S3 compatible bucket.
*/
type S3BlobStore struct {
	client *s3.Client
	bucket string
}

/*
NewS3BlobStore creates a new S3 blob store. Additional client options can be
given to customize the S3 client.
*/
func NewS3BlobStore(ctx context.Context, cfg S3Config, optFns ...func(*s3.Options)) (*S3BlobStore, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	opts := append([]func(*s3.Options){func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle

		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}}, optFns...)

	return &S3BlobStore{s3.NewFromConfig(awsCfg, opts...), cfg.Bucket}, nil
}

/*
Put stores a blob.
*/
func (ss *S3BlobStore) Put(ctx context.Context, key string, blob Blob) error {
	_, err := ss.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(ss.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(blob.Data),
		ContentType: aws.String(blob.ContentType),
	})
	return err
}

/*
Get retrieves a blob.
*/
func (ss *S3BlobStore) Get(ctx context.Context, key string) (Blob, bool, error) {
	out, err := ss.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ss.bucket),
		Key:    aws.String(key),
	})

	if err != nil {
		var nsk *types.NoSuchKey

		if errors.As(err, &nsk) {
			return Blob{}, false, nil
		}

		return Blob{}, false, err
	}

	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)

	return Blob{aws.ToString(out.ContentType), data}, err == nil, err
}

/*
DeleteAll removes all blobs of the bucket.
*/
func (ss *S3BlobStore) DeleteAll(ctx context.Context) error {
	var token *string

	for {
		out, err := ss.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(ss.bucket),
			ContinuationToken: token,
		})
		if err != nil {
			return err
		}

		for _, obj := range out.Contents {
			if _, err := ss.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(ss.bucket),
				Key:    obj.Key,
			}); err != nil {
				return err
			}
		}

		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			return nil
		}

		token = out.NextContinuationToken
	}
}
