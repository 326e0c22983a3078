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

// ProgressFunc receives the bytes transferred so far and the total size.
type ProgressFunc func(done, total int64)

// UploadRequest describes a single object to upload.
type UploadRequest struct {
	Bucket      string
	Key         string
	ContentType string
	Body        io.Reader
	Size        int64
}

// Service stores uploaded images in remote object storage.
type Service interface {
	Upload(ctx context.Context, req UploadRequest, progress ProgressFunc) (string, error)
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	DeleteObject(ctx context.Context, bucket, key string) error
}
