package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg, "test")

	r.FileSelected(true)
	r.FileSelected(false)
	r.FileSelected(false)
	r.UploadStarted()
	r.UploadStarted()
	r.UploadStarted()
	r.UploadCompleted(100)
	r.UploadFailed()

	assert.Equal(t, 1.0, testutil.ToFloat64(r.selections.WithLabelValues("accepted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.selections.WithLabelValues("rejected")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.uploads.WithLabelValues("started")))
	assert.Equal(t, 100.0, testutil.ToFloat64(r.uploadedBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.inFlight))

	r.UploadCancelled()
	assert.Equal(t, 0.0, testutil.ToFloat64(r.inFlight))

	r.WidgetMounted()
	r.WidgetMounted()
	r.WidgetUnmounted()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.widgets))
}
