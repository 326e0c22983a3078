package widget

import (
	"errors"
	"fmt"
)

// Phase tags the current widget state.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseReady     Phase = "ready"
	PhaseUploading Phase = "uploading"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

// RejectedTypeMessage is shown when a selected file is not an allowed image.
const RejectedTypeMessage = "Apenas imagens são permitidas"

var allowedTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
}

// AllowedType reports whether contentType may be selected.
func AllowedType(contentType string) bool {
	_, ok := allowedTypes[contentType]
	return ok
}

var (
	// ErrNotReady is returned by StartUpload when no file is selected or an upload is running.
	ErrNotReady = errors.New("no file ready for upload")
	// ErrUploadInProgress is returned by SelectFile while an upload is running.
	ErrUploadInProgress = errors.New("upload in progress")
	// ErrClosed is returned once the widget has been closed.
	ErrClosed = errors.New("widget closed")
)

// ValidationError rejects a selection whose declared content type is not allowed.
type ValidationError struct {
	ContentType string
}

func (e *ValidationError) Error() string {
	return RejectedTypeMessage
}

// TransferError wraps a failure reported by the storage client.
type TransferError struct {
	Key string
	Err error
}

func (e *TransferError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("upload %s failed", e.Key)
	}
	return e.Err.Error()
}

func (e *TransferError) Unwrap() error { return e.Err }

// File is a locally chosen file. Data holds the whole payload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the payload length in bytes.
func (f *File) Size() int64 {
	if f == nil {
		return 0
	}
	return int64(len(f.Data))
}

// Selection is a file accepted by SelectFile together with its preview reference.
type Selection struct {
	File    *File
	Preview string
}

// Snapshot is a read-only copy of the widget state.
type Snapshot struct {
	Phase    Phase
	Selected *Selection
	Progress int
	Err      error
	Location string
	Key      string
}

// SelectedFile returns the selected file or nil.
func (s Snapshot) SelectedFile() *File {
	if s.Selected == nil {
		return nil
	}
	return s.Selected.File
}

// IsUploading reports whether a transfer is in flight.
func (s Snapshot) IsUploading() bool {
	return s.Phase == PhaseUploading
}

// ErrorMessage returns the message shown to the user, or "" when there is none.
func (s Snapshot) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// CanUpload reports whether the upload trigger is enabled.
func (s Snapshot) CanUpload() bool {
	return s.Selected != nil && s.Phase != PhaseUploading
}

// View holds the render flags derived from a snapshot.
type View struct {
	Phase        Phase  `json:"phase"`
	FileName     string `json:"file_name,omitempty"`
	ContentType  string `json:"content_type,omitempty"`
	Size         int64  `json:"size,omitempty"`
	Preview      string `json:"preview,omitempty"`
	ShowPreview  bool   `json:"show_preview"`
	Uploading    bool   `json:"uploading"`
	ShowProgress bool   `json:"show_progress"`
	ShowCancel   bool   `json:"show_cancel"`
	Progress     int    `json:"progress"`
	ProgressText string `json:"progress_text,omitempty"`
	ShowError    bool   `json:"show_error"`
	Error        string `json:"error,omitempty"`
	CanUpload    bool   `json:"can_upload"`
	Key          string `json:"key,omitempty"`
	Location     string `json:"location,omitempty"`
}

// View derives what the user sees for this snapshot.
func (s Snapshot) View() View {
	v := View{
		Phase:     s.Phase,
		Uploading: s.IsUploading(),
		Progress:  s.Progress,
		Error:     s.ErrorMessage(),
		CanUpload: s.CanUpload(),
		Key:       s.Key,
		Location:  s.Location,
	}
	v.ShowError = v.Error != ""
	v.ShowProgress = v.Uploading
	v.ShowCancel = v.Uploading
	if v.Uploading {
		v.ProgressText = fmt.Sprintf("%d%%", s.Progress)
	}
	if s.Selected != nil {
		v.ShowPreview = true
		v.Preview = s.Selected.Preview
		v.FileName = s.Selected.File.Name
		v.ContentType = s.Selected.File.ContentType
		v.Size = s.Selected.File.Size()
	}
	return v
}
