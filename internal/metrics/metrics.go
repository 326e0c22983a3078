package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exports upload widget activity as Prometheus metrics.
type Recorder struct {
	selections    *prometheus.CounterVec
	uploads       *prometheus.CounterVec
	uploadedBytes prometheus.Counter
	inFlight      prometheus.Gauge
	widgets       prometheus.Gauge
}

// New registers the upload metrics on reg under the given namespace.
func New(reg prometheus.Registerer, namespace string) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "avatar"
	}
	factory := promauto.With(reg)

	return &Recorder{
		selections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_selections_total",
			Help:      "File selections by outcome",
		}, []string{"result"}),
		uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Uploads by lifecycle event",
		}, []string{"event"}),
		uploadedBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Bytes of successfully uploaded images",
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uploads_in_flight",
			Help:      "Uploads currently in progress",
		}),
		widgets: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "widgets_mounted",
			Help:      "Widgets currently mounted",
		}),
	}
}

func (r *Recorder) FileSelected(accepted bool) {
	if accepted {
		r.selections.WithLabelValues("accepted").Inc()
		return
	}
	r.selections.WithLabelValues("rejected").Inc()
}

func (r *Recorder) UploadStarted() {
	r.uploads.WithLabelValues("started").Inc()
	r.inFlight.Inc()
}

func (r *Recorder) UploadCompleted(size int64) {
	r.uploads.WithLabelValues("completed").Inc()
	r.uploadedBytes.Add(float64(size))
	r.inFlight.Dec()
}

func (r *Recorder) UploadFailed() {
	r.uploads.WithLabelValues("failed").Inc()
	r.inFlight.Dec()
}

func (r *Recorder) UploadCancelled() {
	r.uploads.WithLabelValues("cancelled").Inc()
	r.inFlight.Dec()
}

// WidgetMounted tracks the number of live widgets.
func (r *Recorder) WidgetMounted() { r.widgets.Inc() }

// WidgetUnmounted tracks the number of live widgets.
func (r *Recorder) WidgetUnmounted() { r.widgets.Dec() }
