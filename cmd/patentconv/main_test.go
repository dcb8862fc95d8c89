package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/patentgrant/internal/domain/grant/export"
	"github.com/FACorreiaa/patentgrant/internal/domain/grant/parser"
	"github.com/FACorreiaa/patentgrant/pkg/config"
	"github.com/FACorreiaa/patentgrant/pkg/fakegrant"
)

func TestParseIntList(t *testing.T) {
	tests := []struct {
		input   string
		want    []int
		wantErr bool
	}{
		{"", nil, false},
		{"1976", []int{1976}, false},
		{"1976, 1977,1978", []int{1976, 1977, 1978}, false},
		{"1976,x", nil, true},
		{"1,,2", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseIntList(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", slog.Int("n", 1))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"n":1`)
}

func TestRun_Usage(t *testing.T) {
	var stderr bytes.Buffer
	assert.Equal(t, 2, run(nil, &stderr))
	assert.Contains(t, stderr.String(), "usage: patentconv")

	stderr.Reset()
	assert.Equal(t, 2, run([]string{"frobnicate"}, &stderr))
	assert.Contains(t, stderr.String(), `unknown command "frobnicate"`)
}

func TestRun_ConvertAndExport(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	gen := fakegrant.NewTestDataGeneratorWithSeed(3)
	patents := gen.Patents(4)
	in := filepath.Join(dir, "week.txt")
	require.NoError(t, os.WriteFile(in, []byte(fakegrant.Archive(patents)), 0o644))

	var stderr bytes.Buffer
	out := filepath.Join(dir, "grants.csv")
	require.Equal(t, 0, run([]string{"convert", "-o", out, in}, &stderr), stderr.String())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, parser.Header, lines[0])

	require.Equal(t, 0, run([]string{"export", "-in", out}, &stderr), stderr.String())
	_, err = os.Stat(filepath.Join(dir, "grants.xlsx"))
	assert.NoError(t, err)

	rows, err := export.ReadRowsFile(out)
	require.NoError(t, err)
	assert.Equal(t, patents[3].ID, rows[3].WKU)

	t.Run("index search and match", func(t *testing.T) {
		indexPath := filepath.Join(dir, "grants.bleve")
		require.Equal(t, 0, run([]string{"index", "-in", out, "-index", indexPath}, &stderr), stderr.String())
		assert.DirExists(t, indexPath)

		assert.Equal(t, 0, run([]string{"search", "-index", indexPath, "-q", "device"}, &stderr))
		assert.Equal(t, 2, run([]string{"search", "-index", indexPath}, &stderr))
		assert.Equal(t, 0, run([]string{"match", "-in", out, "-terms", "device,apparatus", "-assignee", "acme"}, &stderr))
	})

	t.Run("missing inputs is a usage error", func(t *testing.T) {
		assert.Equal(t, 2, run([]string{"convert", "-o", out}, &stderr))
	})

	t.Run("only failing inputs fails the command", func(t *testing.T) {
		assert.Equal(t, 1, run([]string{"convert", "-o", out, filepath.Join(dir, "missing.txt")}, &stderr))
	})
}
