package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/delegate/pkg/metrics"
)

func TestObserveDelivery(t *testing.T) {
	before := testutil.ToFloat64(metrics.WorkerDelivered.WithLabelValues("metrics-test"))
	metrics.ObserveDelivery("metrics-test", time.Now())
	after := testutil.ToFloat64(metrics.WorkerDelivered.WithLabelValues("metrics-test"))

	assert.Equal(t, before+1, after)
}

func TestRecordWait(t *testing.T) {
	before := testutil.ToFloat64(metrics.AsyncWaits.WithLabelValues(metrics.WaitTimeout))
	metrics.RecordWait(metrics.WaitTimeout)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.AsyncWaits.WithLabelValues(metrics.WaitTimeout)))
}

func TestHandlerExposesCollectors(t *testing.T) {
	metrics.RecordRemote("send", "ok")

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "delegate_remote_messages_total")
}
