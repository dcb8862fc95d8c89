// Package e2etest provides end-to-end tests for the download and conversion flow.
package e2etest

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/patentgrant/internal/domain/grant/bulkdata"
	"github.com/FACorreiaa/patentgrant/internal/domain/grant/export"
	"github.com/FACorreiaa/patentgrant/internal/domain/grant/parser"
	"github.com/FACorreiaa/patentgrant/internal/domain/grant/service"
	"github.com/FACorreiaa/patentgrant/internal/domain/grant/sniffer"
	"github.com/FACorreiaa/patentgrant/pkg/fakegrant"
	"github.com/FACorreiaa/patentgrant/pkg/metrics"
	"github.com/FACorreiaa/patentgrant/pkg/storage"
)

// sampleArchive is an optional real weekly TXT file, e.g. an extracted
// pftaps19760106_wk01.txt.
const sampleArchive = "../../testdata/pftaps19760106_wk01.txt"

// TestRealArchive converts a real weekly archive when one is present.
func TestRealArchive(t *testing.T) {
	path := os.Getenv("PATENTGRANT_SAMPLE_ARCHIVE")
	if path == "" {
		path = sampleArchive
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		t.Skipf("Test data file not found: %s (set PATENTGRANT_SAMPLE_ARCHIVE to run this test)", path)
	}
	require.NoError(t, err)

	info, err := sniffer.Inspect(data)
	require.NoError(t, err)
	require.Equal(t, bulkdata.FormatTXT, info.Format)

	wantRecords := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "PATN") {
			wantRecords++
		}
	}

	var out bytes.Buffer
	res, err := parser.Convert(bytes.NewReader(data), &out, parser.ConvertOptions{EmitHeader: true})
	require.NoError(t, err)
	assert.Equal(t, wantRecords, res.Records)

	rows, err := export.ReadRows(&out)
	require.NoError(t, err)
	assert.Len(t, rows, wantRecords)

	for _, row := range rows {
		assert.NotEmpty(t, row.WKU)
		assert.Len(t, row.IssueDate, 8)
	}
	t.Logf("converted %d records, %d lookahead mismatches", res.Records, res.Stats.LookaheadMismatches)
}

func zipArchive(t *testing.T, member, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(member)
	require.NoError(t, err)
	_, err = io.WriteString(w, content)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// TestFetchConvertExport runs the HTTP download, cache, conversion and
// workbook export against a fake bulk data server.
func TestFetchConvertExport(t *testing.T) {
	now := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	gen := fakegrant.NewTestDataGeneratorWithSeed(2001)

	published := map[string][]byte{}
	var expected []fakegrant.Patent
	for _, week := range []int{50, 51, 52} {
		ref, err := bulkdata.ArchiveName(2001, week, now)
		require.NoError(t, err)
		patents := gen.Patents(4)
		expected = append(expected, patents...)
		published["/2001/"+ref.ZipName()] = zipArchive(t, ref.Member, fakegrant.Archive(patents))
	}

	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		data, ok := published[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer server.Close()

	dir := t.TempDir()
	store, err := storage.NewLocalStorage(filepath.Join(dir, "archives"))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	client := bulkdata.NewClient(bulkdata.ClientConfig{BaseURL: server.URL, RequestsPerSecond: 50}, logger)
	svc := service.NewConvertService(client, store, logger).
		WithMetrics(m).
		WithWorkers(1).
		WithClock(func() time.Time { return now })

	out := filepath.Join(dir, "grants.csv")
	result, err := svc.ConvertWeeks(context.Background(), service.WeeksRequest{
		Years:      []int{2001, 2001, 2001, 2001},
		Weeks:      []int{50, 51, 52, 53},
		OutputPath: out,
	})
	require.NoError(t, err)

	assert.Equal(t, 12, result.Records)
	assert.Equal(t, 1, result.Failed, "2001 has no week 53")
	assert.ErrorIs(t, result.Weeks[3].Err, bulkdata.ErrDateOutOfRange)
	assert.Equal(t, 3, requests)
	assert.Equal(t, 12.0, testutil.ToFloat64(m.RecordsConverted))

	rows, err := export.ReadRowsFile(out)
	require.NoError(t, err)
	require.Len(t, rows, len(expected))
	for i, p := range expected {
		assert.Equal(t, p.ID, rows[i].WKU)
		assert.Equal(t, p.ExpectedInventors(), rows[i].Inventors)
		assert.Equal(t, p.ExpectedReferences(), rows[i].References)
	}

	stored, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 3)
	for _, info := range stored {
		require.NotNil(t, info.Conversion, info.Name)
		assert.Equal(t, result.JobID, info.Conversion.JobID)
	}

	var xlsx bytes.Buffer
	require.NoError(t, export.WriteXLSX(rows, &xlsx))
	assert.True(t, bytes.HasPrefix(xlsx.Bytes(), []byte("PK")), "xlsx is a zip container")

	pending, err := svc.PendingWeeks(context.Background(), 2001, 2001, 0)
	require.NoError(t, err)
	assert.Len(t, pending.Weeks, 49)
}
