package storage

import (
	"context"
	"io"
)

// ObjectStore is where trained models are published.
type ObjectStore interface {
	CreateBucket(ctx context.Context, bucket string) error

	PutObject(ctx context.Context, bucket, key string, data io.Reader) error

	UploadDir(ctx context.Context, bucket, prefix, src string) error
}
