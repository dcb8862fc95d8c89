package sniffer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/patentgrant/internal/domain/grant/bulkdata"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		head string
		want bulkdata.Format
	}{
		{"txt with file header", "HHHHHT APS1\nPATN\nWKU  039302464\n", bulkdata.FormatTXT},
		{"txt starting at PATN", "PATN\r\nWKU  039302464\r\n", bulkdata.FormatTXT},
		{"xml1", "<?xml version=\"1.0\"?>\n<!DOCTYPE PATDOC SYSTEM \"ST32-US-Grant-025xml.dtd\">\n", bulkdata.FormatXML1},
		{"xml2", "<?xml version=\"1.0\"?>\n<!DOCTYPE us-patent-grant SYSTEM \"us-patent-grant-v42.dtd\">\n", bulkdata.FormatXML2},
		{"csv", "WKU,Title,App_Date\n1,x,2\n", bulkdata.FormatUnknown},
		{"empty", "", bulkdata.FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect([]byte(tt.head)))
		})
	}
}

func TestInspect(t *testing.T) {
	t.Run("txt archive", func(t *testing.T) {
		info, err := Inspect([]byte("HHHHHT APS1\nPATN\nWKU  039302464\nTTL  x\nPATN\nWKU  039302465\nTTL  y\n"))
		require.NoError(t, err)
		assert.Equal(t, bulkdata.FormatTXT, info.Format)
		assert.Equal(t, 1, info.SkipLines)
		assert.Equal(t, []string{"039302464", "039302465"}, info.SampleIDs)
		assert.Len(t, info.Fingerprint, 64)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Inspect([]byte("  \n"))
		assert.ErrorIs(t, err, ErrEmptyFile)
	})

	t.Run("xml has no txt details", func(t *testing.T) {
		info, err := Inspect([]byte("<us-patent-grant>"))
		require.NoError(t, err)
		assert.Equal(t, bulkdata.FormatXML2, info.Format)
		assert.Equal(t, -1, info.SkipLines)
		assert.Empty(t, info.SampleIDs)
	})
}

func TestFingerprint(t *testing.T) {
	lf := Fingerprint([]byte("PATN\nWKU  1\n"))
	crlf := Fingerprint([]byte("PATN\r\nWKU  1\r\n"))
	other := Fingerprint([]byte("PATN\nWKU  2\n"))

	assert.Equal(t, lf, crlf)
	assert.NotEqual(t, lf, other)
}

func TestDetectFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pftaps19760106_wk01.txt")
	require.NoError(t, os.WriteFile(path, []byte("HHHHHT APS1\nPATN\nWKU  1\n"), 0o644))

	info, err := DetectFile(path)
	require.NoError(t, err)
	assert.Equal(t, bulkdata.FormatTXT, info.Format)

	_, err = DetectFile(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestRequireTXT(t *testing.T) {
	assert.NoError(t, RequireTXT(bulkdata.FormatTXT))
	assert.ErrorIs(t, RequireTXT(bulkdata.FormatXML2), ErrUnsupportedFormat)
	assert.ErrorIs(t, RequireTXT(bulkdata.FormatUnknown), ErrUnsupportedFormat)
}
