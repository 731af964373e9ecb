// Package archive writes terminal workflow results to a blob bucket for
// long-term retention. Any gocloud.dev bucket URL works; file and in-memory
// buckets cover local deployments and tests
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"

	"github.com/siderealworks/meridian/pkg/api"
)

// BlobArchiver stores one JSON document per archived run, keyed by workflow
// name and completion time
type BlobArchiver struct {
	bucket *blob.Bucket
	prefix string
}

const archiveKeyTimeFormat = "20060102T150405.000Z"

// NewBlobArchiver opens the bucket at the given URL
func NewBlobArchiver(
	ctx context.Context, bucketURL, prefix string,
) (*BlobArchiver, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	return &BlobArchiver{bucket: bucket, prefix: prefix}, nil
}

// ArchiveResult writes a terminal workflow result to the bucket
func (a *BlobArchiver) ArchiveResult(
	ctx context.Context, res *api.WorkflowResult,
) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return a.bucket.WriteAll(ctx, a.keyFor(res), data, nil)
}

// LoadResult reads an archived result back by its exact key
func (a *BlobArchiver) LoadResult(
	ctx context.Context, key string,
) (*api.WorkflowResult, error) {
	data, err := a.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("archive entry not found: %s", key)
		}
		return nil, err
	}

	var res api.WorkflowResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListKeys returns the archived keys under a workflow name, in bucket order
func (a *BlobArchiver) ListKeys(
	ctx context.Context, name api.Name,
) ([]string, error) {
	var keys []string
	iter := a.bucket.List(&blob.ListOptions{
		Prefix: a.namePrefix(name),
	})
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			return keys, nil
		}
		if err != nil {
			return nil, err
		}
		keys = append(keys, obj.Key)
	}
}

// Close releases the underlying bucket
func (a *BlobArchiver) Close() error {
	return a.bucket.Close()
}

func (a *BlobArchiver) keyFor(res *api.WorkflowResult) string {
	ts := res.CompletedAt.UTC().Format(archiveKeyTimeFormat)
	return a.namePrefix(res.Name) + ts + ".json"
}

func (a *BlobArchiver) namePrefix(name api.Name) string {
	if a.prefix == "" {
		return fmt.Sprintf("%s/", name)
	}
	return fmt.Sprintf("%s/%s/", a.prefix, name)
}
