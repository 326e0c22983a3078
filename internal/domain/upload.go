package domain

import "time"

// Upload records an image that finished uploading to object storage.
type Upload struct {
	ID          int64
	WidgetID    string
	ObjectKey   string
	Location    string
	FileName    string
	ContentType string
	Size        int64
	CreatedAt   time.Time
}
