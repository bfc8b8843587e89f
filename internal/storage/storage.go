package storage

import (
	"context"
	"io"
	"time"
)

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified *time.Time
}

// Service stores proof-of-delivery photos in remote object storage.
type Service interface {
	PutObject(ctx context.Context, bucket, key, contentType string, body io.Reader) error
	PresignGet(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	DeletePrefix(ctx context.Context, bucket, prefix string) error
}
