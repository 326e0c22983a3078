package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"avatar-uploader/internal/domain"
	"avatar-uploader/internal/repository"
)

const (
	createUploadsTable = `
CREATE TABLE IF NOT EXISTS uploads (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	widget_id TEXT NOT NULL,
	object_key TEXT NOT NULL,
	location TEXT NOT NULL,
	file_name TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT '',
	size INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_uploads_widget ON uploads(widget_id);
`
	selectUploadColumns = `SELECT id, widget_id, object_key, location, file_name, content_type, size, created_at FROM uploads`
)

type UploadRepository struct {
	db *sql.DB
}

func NewUploadRepository(db *sql.DB) repository.UploadRepository {
	return &UploadRepository{db: db}
}

func (r *UploadRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUploadsTable); err != nil {
		return fmt.Errorf("create uploads table: %w", err)
	}
	return nil
}

func (r *UploadRepository) Create(ctx context.Context, upload *domain.Upload) (int64, error) {
	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, `
INSERT INTO uploads (widget_id, object_key, location, file_name, content_type, size, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		upload.WidgetID,
		upload.ObjectKey,
		upload.Location,
		upload.FileName,
		upload.ContentType,
		upload.Size,
		upload.CreatedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert upload: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}
	upload.ID = id
	return id, nil
}

func (r *UploadRepository) Get(ctx context.Context, id int64) (*domain.Upload, error) {
	row := r.db.QueryRowContext(ctx, selectUploadColumns+` WHERE id=?`, id)
	upload, err := scanUpload(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("upload %d: %w", id, repository.ErrNotFound)
		}
		return nil, fmt.Errorf("get upload: %w", err)
	}
	return upload, nil
}

func (r *UploadRepository) List(ctx context.Context) ([]domain.Upload, error) {
	rows, err := r.db.QueryContext(ctx, selectUploadColumns+` ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()
	return collectUploads(rows)
}

func (r *UploadRepository) ListByWidget(ctx context.Context, widgetID string) ([]domain.Upload, error) {
	rows, err := r.db.QueryContext(ctx, selectUploadColumns+` WHERE widget_id=? ORDER BY id DESC`, widgetID)
	if err != nil {
		return nil, fmt.Errorf("list uploads by widget: %w", err)
	}
	defer rows.Close()
	return collectUploads(rows)
}

func (r *UploadRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM uploads WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete upload: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete upload rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("upload %d: %w", id, repository.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUpload(s scanner) (*domain.Upload, error) {
	var u domain.Upload
	if err := s.Scan(
		&u.ID,
		&u.WidgetID,
		&u.ObjectKey,
		&u.Location,
		&u.FileName,
		&u.ContentType,
		&u.Size,
		&u.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

func collectUploads(rows *sql.Rows) ([]domain.Upload, error) {
	var uploads []domain.Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		uploads = append(uploads, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate uploads: %w", err)
	}
	return uploads, nil
}
