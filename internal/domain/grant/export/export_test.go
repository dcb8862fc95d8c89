package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/patentgrant/internal/domain/grant/parser"
	"github.com/FACorreiaa/patentgrant/pkg/fakegrant"
)

func convertedCSV(t *testing.T, archive string) string {
	t.Helper()
	var out bytes.Buffer
	_, err := parser.Convert(strings.NewReader(archive), &out, parser.ConvertOptions{EmitHeader: true})
	require.NoError(t, err)
	return out.String()
}

func TestReadRows(t *testing.T) {
	csv := convertedCSV(t, "PATN\nWKU  039302464\nTTL  Widget, rotary\nAPD  19740301\nISD  19760106\n"+
		"INVT\nNAM  Smith; John\nINVT\nNAM  Doe; Jane\nICL  A01B 1/00\nUREF\nPNO  3,123,456\n"+
		"CLMS\nSTM  A widget.\n")

	rows, err := ReadRows(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "039302464", row.WKU)
	assert.Equal(t, "Widget, rotary", row.Title)
	assert.Equal(t, "19740301", row.ApplicationDate)
	assert.Equal(t, "19760106", row.IssueDate)
	assert.Equal(t, []string{"John Smith", "Jane Doe"}, row.InventorList())
	assert.Nil(t, row.AssigneeList())
	assert.Equal(t, []string{"A01B 1/00"}, row.ClassList())
	assert.Equal(t, []string{"3123456"}, row.ReferenceList())
	assert.Equal(t, "A widget.", row.Claims)
}

func TestReadRows_GeneratedArchive(t *testing.T) {
	patents := fakegrant.NewTestDataGeneratorWithSeed(3).Patents(40)

	rows, err := ReadRows(strings.NewReader(convertedCSV(t, fakegrant.Archive(patents))))
	require.NoError(t, err)
	require.Len(t, rows, len(patents))
	for i, p := range patents {
		assert.Equal(t, p.ID, rows[i].WKU)
		assert.Equal(t, p.Title, rows[i].Title)
		assert.Equal(t, p.ExpectedClaims(), rows[i].Claims)
	}
}

func TestReadRows_HeaderOnly(t *testing.T) {
	rows, err := ReadRows(strings.NewReader(parser.Header + "\n"))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRowFromRecord(t *testing.T) {
	rec := parser.PatentRecord{ID: "1", Title: "T", Inventors: "A B;C D"}
	row := RowFromRecord(rec)
	assert.Equal(t, "1", row.WKU)
	assert.Equal(t, []string{"A B", "C D"}, row.InventorList())
}

func TestWriteXLSX(t *testing.T) {
	rows := []PatentRow{
		{WKU: "039302464", Title: "Widget", Inventors: "John Smith", Claims: strings.Repeat("c", maxCellLength+10)},
		{WKU: "039302465", Title: "Gadget"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(rows, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	got, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "WKU", got[0][0])
	assert.Equal(t, "Claims", got[0][8])
	assert.Equal(t, "039302464", got[1][0])
	assert.Equal(t, "Gadget", got[2][1])
	assert.Len(t, got[1][8], maxCellLength)
}

func TestTruncateCell(t *testing.T) {
	assert.Equal(t, "short", truncateCell("short"))

	long := strings.Repeat("a", maxCellLength-1) + "é"
	out := truncateCell(long)
	assert.Equal(t, maxCellLength-1, len(out))
}
