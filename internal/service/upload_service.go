package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"avatar-uploader/internal/domain"
	"avatar-uploader/internal/repository"
	"avatar-uploader/internal/storage"
)

// ErrNotFound is returned for unknown widgets and upload records.
var ErrNotFound = repository.ErrNotFound

// UploadService records completed uploads and manages their stored objects.
type UploadService interface {
	Record(ctx context.Context, upload domain.Upload) (*domain.Upload, error)
	GetUpload(ctx context.Context, id int64) (*domain.Upload, error)
	ListUploads(ctx context.Context, widgetID string) ([]domain.Upload, error)
	DeleteUpload(ctx context.Context, id int64, deleteRemote bool) (*domain.Upload, error)
	ListObjects(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
}

type uploadService struct {
	uploads repository.UploadRepository
	storage storage.Service
	bucket  string
}

func NewUploadService(uploads repository.UploadRepository, store storage.Service, bucket string) UploadService {
	return &uploadService{
		uploads: uploads,
		storage: store,
		bucket:  bucket,
	}
}

func (s *uploadService) Record(ctx context.Context, upload domain.Upload) (*domain.Upload, error) {
	if strings.TrimSpace(upload.Location) == "" {
		return nil, errors.New("upload location is required")
	}
	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = time.Now().UTC()
	}
	if _, err := s.uploads.Create(ctx, &upload); err != nil {
		return nil, err
	}
	return &upload, nil
}

func (s *uploadService) GetUpload(ctx context.Context, id int64) (*domain.Upload, error) {
	return s.uploads.Get(ctx, id)
}

func (s *uploadService) ListUploads(ctx context.Context, widgetID string) ([]domain.Upload, error) {
	if widgetID != "" {
		return s.uploads.ListByWidget(ctx, widgetID)
	}
	return s.uploads.List(ctx)
}

func (s *uploadService) DeleteUpload(ctx context.Context, id int64, deleteRemote bool) (*domain.Upload, error) {
	upload, err := s.uploads.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if deleteRemote {
		if s.storage == nil || s.bucket == "" {
			return nil, errors.New("storage service not configured")
		}
		if err := s.storage.DeleteObject(ctx, s.bucket, upload.ObjectKey); err != nil {
			return nil, fmt.Errorf("delete remote object: %w", err)
		}
	}

	if err := s.uploads.Delete(ctx, id); err != nil {
		return nil, err
	}
	return upload, nil
}

func (s *uploadService) ListObjects(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	if s.storage == nil || s.bucket == "" {
		return nil, errors.New("storage service not configured")
	}
	return s.storage.ListObjects(ctx, s.bucket, prefix)
}
