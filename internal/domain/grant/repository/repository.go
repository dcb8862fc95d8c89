// Package repository persists converted patent rows in PostgreSQL.
package repository

import (
	"context"
	"strings"
	"time"

	"github.com/FACorreiaa/patentgrant/internal/domain/grant/export"
)

// Patent is the stored form of a converted row.
type Patent struct {
	WKU             string
	Title           string
	ApplicationDate *time.Time
	IssueDate       *time.Time
	AppDateRaw      string
	IssueDateRaw    string
	Inventors       []string
	Assignees       []string
	ClassCodes      []string
	CitedPatents    []string
	Claims          string
	SourceArchive   string
	LoadedAt        time.Time
}

// PatentFromRow converts a CSV row. Dates that do not parse as YYYYMMDD
// are kept only in their raw form.
func PatentFromRow(row export.PatentRow, source string) Patent {
	return Patent{
		WKU:             strings.TrimSpace(row.WKU),
		Title:           row.Title,
		ApplicationDate: parseArchiveDate(row.ApplicationDate),
		IssueDate:       parseArchiveDate(row.IssueDate),
		AppDateRaw:      row.ApplicationDate,
		IssueDateRaw:    row.IssueDate,
		Inventors:       nonNil(row.InventorList()),
		Assignees:       nonNil(row.AssigneeList()),
		ClassCodes:      nonNil(row.ClassList()),
		CitedPatents:    nonNil(row.ReferenceList()),
		Claims:          row.Claims,
		SourceArchive:   source,
	}
}

func parseArchiveDate(s string) *time.Time {
	t, err := time.Parse("20060102", strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &t
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// UpsertResult summarises a batch write.
type UpsertResult struct {
	Written    int64
	Skipped    int // rows without a WKU
	Duplicates int // rows superseded by a later row with the same WKU
}

// PatentRepository defines persistence for converted patents
type PatentRepository interface {
	// UpsertBatch inserts patents, replacing existing rows with the same WKU
	UpsertBatch(ctx context.Context, patents []Patent) (*UpsertResult, error)

	// GetByWKU returns one patent or sql.ErrNoRows
	GetByWKU(ctx context.Context, wku string) (*Patent, error)

	// Count returns the number of stored patents
	Count(ctx context.Context) (int64, error)
}
