// Package widget implements the image upload widget: file selection with
// type validation, a local preview reference, a single asynchronous upload
// to object storage with progress reporting, and cancellation.
//
// All transitions are serialized by the widget mutex, so the front ends
// (HTTP sessions, the terminal client) may call into it from any goroutine.
package widget

import (
	"bytes"
	"context"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"avatar-uploader/internal/storage"
)

// Uploader is the object storage client the widget delegates transfers to.
type Uploader interface {
	Upload(ctx context.Context, req storage.UploadRequest, progress storage.ProgressFunc) (string, error)
}

// Result describes a finished upload handed to the completion callback.
type Result struct {
	WidgetID    string
	Location    string
	Key         string
	FileName    string
	ContentType string
	Size        int64
}

// Observer receives widget lifecycle notifications. Methods must not call
// back into the widget.
type Observer interface {
	FileSelected(accepted bool)
	UploadStarted()
	UploadCompleted(size int64)
	UploadFailed()
	UploadCancelled()
}

type nopObserver struct{}

func (nopObserver) FileSelected(bool)     {}
func (nopObserver) UploadStarted()        {}
func (nopObserver) UploadCompleted(int64) {}
func (nopObserver) UploadFailed()         {}
func (nopObserver) UploadCancelled()      {}

type Config struct {
	ID       string
	Bucket   string
	Keys     *KeyGenerator
	OnUpload func(Result)
	Observer Observer
	Logger   *logrus.Logger
}

// Widget holds the state of one mounted upload widget.
type Widget struct {
	cfg      Config
	uploader Uploader
	baseCtx  context.Context
	logger   *logrus.Entry

	mu      sync.Mutex
	state   Snapshot
	attempt uint64
	cancel  context.CancelFunc
	closed  bool
	subs    map[int]chan Snapshot
	nextSub int

	wg sync.WaitGroup
}

// New mounts a widget. Uploads run under ctx; cancelling it aborts them.
func New(ctx context.Context, uploader Uploader, cfg Config) *Widget {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Keys == nil {
		cfg.Keys = NewKeyGenerator("")
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Widget{
		cfg:      cfg,
		uploader: uploader,
		baseCtx:  ctx,
		logger:   cfg.Logger.WithField("widget_id", cfg.ID),
		state:    Snapshot{Phase: PhaseIdle},
		subs:     make(map[int]chan Snapshot),
	}
}

// ID returns the widget identifier.
func (w *Widget) ID() string {
	return w.cfg.ID
}

// Snapshot returns the current state.
func (w *Widget) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// SelectFile validates the declared content type of f and, when it is an
// allowed image, makes it the selected file. A rejected file clears the
// selection and sets the error message. No network activity happens here.
func (w *Widget) SelectFile(f File) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if w.state.Phase == PhaseUploading {
		return ErrUploadInProgress
	}

	if !AllowedType(f.ContentType) {
		verr := &ValidationError{ContentType: f.ContentType}
		w.state.Selected = nil
		w.state.Err = verr
		w.state.Phase = PhaseFailed
		w.state.Key = ""
		w.state.Location = ""
		w.cfg.Observer.FileSelected(false)
		w.logger.WithField("content_type", f.ContentType).Info("file rejected")
		w.publishLocked()
		return verr
	}

	w.state.Selected = &Selection{File: &f, Preview: uuid.NewString()}
	w.state.Err = nil
	w.state.Phase = PhaseReady
	w.state.Key = ""
	w.state.Location = ""
	w.cfg.Observer.FileSelected(true)
	w.logger.WithFields(logrus.Fields{
		"file":         f.Name,
		"content_type": f.ContentType,
		"size":         len(f.Data),
	}).Debug("file selected")
	w.publishLocked()
	return nil
}

// Preview returns the selected file when ref matches its preview reference.
func (w *Widget) Preview(ref string) (*File, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.Selected == nil || w.state.Selected.Preview != ref {
		return nil, false
	}
	return w.state.Selected.File, true
}

// StartUpload issues the upload of the selected file and returns without
// waiting for it. It is a no-op returning ErrNotReady when nothing is
// selected or an upload is already running.
func (w *Widget) StartUpload() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if w.state.Selected == nil || w.state.Phase == PhaseUploading {
		w.mu.Unlock()
		return ErrNotReady
	}

	file := w.state.Selected.File
	key := w.cfg.Keys.Next(file.Name)
	w.attempt++
	attempt := w.attempt
	ctx, cancel := context.WithCancel(w.baseCtx)
	w.cancel = cancel

	w.state.Phase = PhaseUploading
	w.state.Err = nil
	w.state.Progress = 0
	w.state.Key = key
	w.state.Location = ""
	w.cfg.Observer.UploadStarted()
	w.publishLocked()

	w.wg.Add(1)
	w.mu.Unlock()

	w.logger.WithField("key", key).Info("upload started")
	go w.run(ctx, cancel, attempt, file, key)
	return nil
}

func (w *Widget) run(ctx context.Context, cancel context.CancelFunc, attempt uint64, file *File, key string) {
	defer w.wg.Done()
	defer cancel()

	req := storage.UploadRequest{
		Bucket:      w.cfg.Bucket,
		Key:         key,
		ContentType: file.ContentType,
		Body:        bytes.NewReader(file.Data),
		Size:        file.Size(),
	}
	location, err := w.uploader.Upload(ctx, req, func(done, total int64) {
		w.onProgress(attempt, done, total)
	})
	if err != nil {
		w.onFailure(attempt, key, err)
		return
	}
	w.onSuccess(attempt, key, file, location)
}

func (w *Widget) onProgress(attempt uint64, done, total int64) {
	if total <= 0 {
		return
	}
	percent := int(math.Round(float64(done) / float64(total) * 100))

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.currentLocked(attempt) {
		return
	}
	w.state.Progress = percent
	w.publishLocked()
}

func (w *Widget) onFailure(attempt uint64, key string, err error) {
	w.mu.Lock()
	if !w.currentLocked(attempt) {
		w.mu.Unlock()
		w.logger.WithField("key", key).Debugf("dropping result of abandoned upload: %v", err)
		return
	}
	w.cancel = nil
	w.state.Phase = PhaseFailed
	w.state.Err = &TransferError{Key: key, Err: err}
	w.cfg.Observer.UploadFailed()
	w.publishLocked()
	w.mu.Unlock()

	w.logger.WithField("key", key).Warnf("upload failed: %v", err)
}

func (w *Widget) onSuccess(attempt uint64, key string, file *File, location string) {
	w.mu.Lock()
	if !w.currentLocked(attempt) {
		w.mu.Unlock()
		w.logger.WithField("key", key).Debug("dropping result of abandoned upload")
		return
	}
	w.cancel = nil
	w.state.Phase = PhaseCompleted
	w.state.Progress = 100
	w.state.Location = location
	w.cfg.Observer.UploadCompleted(file.Size())
	w.publishLocked()
	onUpload := w.cfg.OnUpload
	w.mu.Unlock()

	w.logger.WithFields(logrus.Fields{"key": key, "location": location}).Info("upload completed")
	if onUpload != nil {
		onUpload(Result{
			WidgetID:    w.cfg.ID,
			Location:    location,
			Key:         key,
			FileName:    file.Name,
			ContentType: file.ContentType,
			Size:        file.Size(),
		})
	}
}

// currentLocked reports whether attempt is the in-flight upload.
func (w *Widget) currentLocked(attempt uint64) bool {
	return attempt == w.attempt && w.state.Phase == PhaseUploading
}

// Cancel resets the widget to idle from any state. An in-flight upload is
// aborted and anything it reports afterwards is ignored.
func (w *Widget) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	if w.state.Phase == PhaseUploading {
		w.cfg.Observer.UploadCancelled()
		w.logger.WithField("key", w.state.Key).Info("upload cancelled")
	}
	w.abortLocked()
	w.state = Snapshot{Phase: PhaseIdle}
	w.publishLocked()
}

func (w *Widget) abortLocked() {
	w.attempt++
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}

// Subscribe returns a channel receiving the state after every transition,
// starting with the current one. A slow reader only sees the latest state.
// The returned function unsubscribes; the channel is closed on unsubscribe
// or when the widget closes.
func (w *Widget) Subscribe() (<-chan Snapshot, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if w.closed {
		close(ch)
		return ch, func() {}
	}
	id := w.nextSub
	w.nextSub++
	w.subs[id] = ch
	ch <- w.state

	return ch, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if sub, ok := w.subs[id]; ok {
			delete(w.subs, id)
			close(sub)
		}
	}
}

func (w *Widget) publishLocked() {
	for _, ch := range w.subs {
		select {
		case ch <- w.state:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- w.state
		}
	}
}

// Close unmounts the widget: any upload is aborted and waited for, and all
// subscriptions are closed. Further operations return ErrClosed.
func (w *Widget) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	if w.state.Phase == PhaseUploading {
		w.cfg.Observer.UploadCancelled()
	}
	w.abortLocked()
	for id, ch := range w.subs {
		delete(w.subs, id)
		close(ch)
	}
	w.mu.Unlock()

	w.wg.Wait()
	w.logger.Debug("widget closed")
}

// Wait blocks until no upload goroutine is running.
func (w *Widget) Wait() {
	w.wg.Wait()
}
