package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.RecordsConverted.Add(3)
	m.LookaheadMismatches.Inc()
	m.ArchivesDownloaded.WithLabelValues(ResultDownloaded).Inc()
	m.ArchivesDownloaded.WithLabelValues(ResultCached).Add(2)

	assert.InDelta(t, 3, testutil.ToFloat64(m.RecordsConverted), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.LookaheadMismatches), 1e-9)
	assert.InDelta(t, 2, testutil.ToFloat64(m.ArchivesDownloaded.WithLabelValues(ResultCached)), 1e-9)

	expected := `
# HELP patentgrant_archives_downloaded_total Weekly archives fetched, by result.
# TYPE patentgrant_archives_downloaded_total counter
patentgrant_archives_downloaded_total{result="cached"} 2
patentgrant_archives_downloaded_total{result="downloaded"} 1
`
	require.NoError(t, testutil.CollectAndCompare(m.ArchivesDownloaded, strings.NewReader(expected)))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ConvertDuration.Observe(1.5)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "patentgrant_convert_duration_seconds_count 1")
	assert.Contains(t, string(body), "go_goroutines")
}
