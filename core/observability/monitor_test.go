package observability

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorRecordRequest(t *testing.T) {
	m := NewMonitor("test")

	m.RecordRequest("GET", "/api", 200, 10*time.Millisecond, 2*time.Millisecond, 120)
	m.RecordRequest("GET", "/api", 200, 20*time.Millisecond, 3*time.Millisecond, 80)
	m.RecordRequest("GET", Unmatched, 404, time.Millisecond, 0, 20)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/api", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", Unmatched, "404")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.handlerDuration))
}

func TestMonitorDropsAndQueues(t *testing.T) {
	m := NewMonitor("test")

	m.RecordDrop(DropEmpty)
	m.RecordDrop(DropEmpty)
	m.RecordDrop(DropInvalid)
	m.SetQueueDepth("incoming", 0, 3)
	m.SetQueueDepth("accepted", -1, 7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.dropped.WithLabelValues(DropEmpty)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.queueDepth.WithLabelValues("incoming", "0")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.queueDepth.WithLabelValues("accepted", "engine")))
}

func TestMonitorText(t *testing.T) {
	m := NewMonitor("test")
	m.RecordRequest("POST", "/echo", 200, time.Millisecond, time.Millisecond, 2)

	out, err := m.Text()
	require.NoError(t, err)

	text := string(out)
	assert.True(t, strings.Contains(text, `test_http_requests_total{method="POST",route="/echo",status="200"} 1`), text)
	assert.True(t, strings.Contains(text, "go_goroutines"))
	assert.True(t, strings.HasPrefix(m.ContentType(), "text/plain"))
}
