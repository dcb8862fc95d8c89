// Package export reads converted grant CSV back into structs and writes
// it out in other formats.
package export

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/patentgrant/internal/domain/grant/parser"
)

// PatentRow is one row of converted output. Tags match the header row.
type PatentRow struct {
	WKU             string `csv:"WKU"`
	Title           string `csv:"Title"`
	ApplicationDate string `csv:"App_Date"`
	IssueDate       string `csv:"Issue_Date"`
	Inventors       string `csv:"Inventor"`
	Assignees       string `csv:"Assignee"`
	ClassCodes      string `csv:"ICL_Class"`
	References      string `csv:"References"`
	Claims          string `csv:"Claims"`
}

// RowFromRecord converts a parsed record.
func RowFromRecord(rec parser.PatentRecord) PatentRow {
	return PatentRow{
		WKU:             rec.ID,
		Title:           rec.Title,
		ApplicationDate: rec.ApplicationDate,
		IssueDate:       rec.IssueDate,
		Inventors:       rec.Inventors,
		Assignees:       rec.Assignees,
		ClassCodes:      rec.ClassCodes,
		References:      rec.References,
		Claims:          rec.Claims,
	}
}

// InventorList splits the inventor column.
func (r PatentRow) InventorList() []string { return splitMulti(r.Inventors) }

// AssigneeList splits the assignee column.
func (r PatentRow) AssigneeList() []string { return splitMulti(r.Assignees) }

// ClassList splits the ICL column.
func (r PatentRow) ClassList() []string { return splitMulti(r.ClassCodes) }

// ReferenceList splits the references column.
func (r PatentRow) ReferenceList() []string { return splitMulti(r.References) }

func splitMulti(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ";")
}

// ReadRows parses converted output. The input must start with the header row.
func ReadRows(r io.Reader) ([]PatentRow, error) {
	var rows []PatentRow
	// unquoted columns are never escaped, so quotes inside them must be tolerated
	if err := gocsv.UnmarshalCSV(gocsv.LazyCSVReader(r), &rows); err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	return rows, nil
}

// ReadRowsFile parses the converted CSV file at path.
func ReadRowsFile(path string) ([]PatentRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV: %w", err)
	}
	defer f.Close()
	return ReadRows(f)
}
