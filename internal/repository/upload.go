package repository

import (
	"context"
	"errors"

	"avatar-uploader/internal/domain"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// UploadRepository exposes persistence operations for completed uploads.
type UploadRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, upload *domain.Upload) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Upload, error)
	List(ctx context.Context) ([]domain.Upload, error)
	ListByWidget(ctx context.Context, widgetID string) ([]domain.Upload, error)
	Delete(ctx context.Context, id int64) error
}
