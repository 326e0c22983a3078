package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"avatar-uploader/internal/domain"
	"avatar-uploader/internal/widget"
)

// Metrics observes widget activity.
type Metrics interface {
	widget.Observer
	WidgetMounted()
	WidgetUnmounted()
}

// WidgetService owns the widgets mounted by HTTP clients.
type WidgetService interface {
	Mount() *widget.Widget
	Get(id string) (*widget.Widget, error)
	Unmount(id string) error
	Shutdown()
}

type WidgetConfig struct {
	Bucket        string
	KeyPrefix     string
	RecordTimeout time.Duration
	Metrics       Metrics
	Logger        *logrus.Logger
}

type widgetService struct {
	cfg      WidgetConfig
	ctx      context.Context
	cancel   context.CancelFunc
	uploader widget.Uploader
	uploads  UploadService
	keys     *widget.KeyGenerator

	mu      sync.Mutex
	widgets map[string]*widget.Widget
}

// NewWidgetService returns a registry whose widgets upload through uploader
// and record completed uploads through uploads. Widgets are aborted when ctx
// is cancelled.
func NewWidgetService(ctx context.Context, cfg WidgetConfig, uploader widget.Uploader, uploads UploadService) WidgetService {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.RecordTimeout <= 0 {
		cfg.RecordTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(ctx)
	return &widgetService{
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		uploader: uploader,
		uploads:  uploads,
		keys:     widget.NewKeyGenerator(cfg.KeyPrefix),
		widgets:  make(map[string]*widget.Widget),
	}
}

func (s *widgetService) Mount() *widget.Widget {
	wcfg := widget.Config{
		Bucket:   s.cfg.Bucket,
		Keys:     s.keys,
		OnUpload: s.record,
		Logger:   s.cfg.Logger,
	}
	if s.cfg.Metrics != nil {
		wcfg.Observer = s.cfg.Metrics
	}
	w := widget.New(s.ctx, s.uploader, wcfg)

	s.mu.Lock()
	s.widgets[w.ID()] = w
	s.mu.Unlock()

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.WidgetMounted()
	}
	s.cfg.Logger.WithField("widget_id", w.ID()).Debug("widget mounted")
	return w
}

func (s *widgetService) Get(id string) (*widget.Widget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.widgets[id]
	if !ok {
		return nil, fmt.Errorf("widget %s: %w", id, ErrNotFound)
	}
	return w, nil
}

func (s *widgetService) Unmount(id string) error {
	s.mu.Lock()
	w, ok := s.widgets[id]
	delete(s.widgets, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("widget %s: %w", id, ErrNotFound)
	}

	w.Close()
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.WidgetUnmounted()
	}
	return nil
}

// Shutdown aborts all uploads and unmounts every widget.
func (s *widgetService) Shutdown() {
	s.cancel()

	s.mu.Lock()
	widgets := s.widgets
	s.widgets = make(map[string]*widget.Widget)
	s.mu.Unlock()

	for _, w := range widgets {
		w.Close()
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.WidgetUnmounted()
		}
	}
	s.cfg.Logger.Infof("unmounted %d widgets", len(widgets))
}

// record is the host completion callback of every mounted widget.
func (s *widgetService) record(res widget.Result) {
	logger := s.cfg.Logger.WithFields(logrus.Fields{
		"widget_id": res.WidgetID,
		"location":  res.Location,
	})
	if s.uploads == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RecordTimeout)
	defer cancel()

	upload, err := s.uploads.Record(ctx, domain.Upload{
		WidgetID:    res.WidgetID,
		ObjectKey:   res.Key,
		Location:    res.Location,
		FileName:    res.FileName,
		ContentType: res.ContentType,
		Size:        res.Size,
	})
	if err != nil {
		logger.Errorf("record upload: %v", err)
		return
	}
	logger.WithField("upload_id", upload.ID).Info("upload recorded")
}
