package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/patentgrant/internal/domain/grant/export"
)

func TestPatentFromRow(t *testing.T) {
	p := PatentFromRow(export.PatentRow{
		WKU:             " 039302464 ",
		Title:           "Widget",
		ApplicationDate: "19740301",
		IssueDate:       "1976010",
		Inventors:       "John Smith;Jane Doe",
		References:      "3123456",
	}, "pftaps19760106_wk01")

	assert.Equal(t, "039302464", p.WKU)
	require.NotNil(t, p.ApplicationDate)
	assert.Equal(t, time.Date(1974, time.March, 1, 0, 0, 0, 0, time.UTC), *p.ApplicationDate)
	assert.Nil(t, p.IssueDate, "malformed dates stay raw only")
	assert.Equal(t, "1976010", p.IssueDateRaw)
	assert.Equal(t, []string{"John Smith", "Jane Doe"}, p.Inventors)
	assert.Equal(t, []string{}, p.Assignees)
	assert.Equal(t, []string{"3123456"}, p.CitedPatents)
	assert.Equal(t, "pftaps19760106_wk01", p.SourceArchive)
}

func TestDedupe(t *testing.T) {
	rows, skipped, dups := dedupe([]Patent{
		{WKU: "1", Title: "first"},
		{WKU: ""},
		{WKU: "2"},
		{WKU: "1", Title: "second"},
	})

	assert.Equal(t, 1, skipped)
	assert.Equal(t, 1, dups)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0].WKU)
	assert.Equal(t, "second", rows[0].Title)
	assert.Equal(t, "2", rows[1].WKU)
}

func TestPostgresPatentRepository_UpsertBatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE patents_staging`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"patents_staging"}, stagingColumns).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO patents`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	repo := NewPostgresPatentRepository(mock)
	res, err := repo.UpsertBatch(context.Background(), []Patent{
		{WKU: "039302464", Inventors: []string{}, Assignees: []string{}, ClassCodes: []string{}, CitedPatents: []string{}},
		{WKU: "039302465", Inventors: []string{}, Assignees: []string{}, ClassCodes: []string{}, CitedPatents: []string{}},
		{WKU: ""},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2), res.Written)
	assert.Equal(t, 1, res.Skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPatentRepository_UpsertBatch_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresPatentRepository(mock)
	res, err := repo.UpsertBatch(context.Background(), []Patent{{WKU: ""}})
	require.NoError(t, err)
	assert.Zero(t, res.Written)
	assert.Equal(t, 1, res.Skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPatentRepository_UpsertBatch_MergeFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE patents_staging`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"patents_staging"}, stagingColumns).
		WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO patents`).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	repo := NewPostgresPatentRepository(mock)
	_, err = repo.UpsertBatch(context.Background(), []Patent{{WKU: "1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to merge patents")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPatentRepository_GetByWKU(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	issued := time.Date(1976, time.January, 6, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectQuery(`SELECT wku, title`).
		WithArgs("039302464").
		WillReturnRows(pgxmock.NewRows([]string{
			"wku", "title", "application_date", "issue_date", "app_date_raw", "issue_date_raw",
			"inventors", "assignees", "icl_classes", "cited_patents", "claims", "source_archive", "loaded_at",
		}).AddRow(
			"039302464", "Widget", nil, &issued, "", "19760106",
			[]string{"John Smith"}, []string{}, []string{"A01B 1/00"}, []string{}, "A widget.", "pftaps19760106_wk01", now,
		))
	mock.ExpectQuery(`SELECT wku, title`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	repo := NewPostgresPatentRepository(mock)

	p, err := repo.GetByWKU(context.Background(), "039302464")
	require.NoError(t, err)
	assert.Equal(t, "Widget", p.Title)
	assert.Nil(t, p.ApplicationDate)
	require.NotNil(t, p.IssueDate)
	assert.Equal(t, issued, *p.IssueDate)
	assert.Equal(t, []string{"John Smith"}, p.Inventors)

	_, err = repo.GetByWKU(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPatentRepository_Count(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT count\(\*\) FROM patents`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))

	n, err := NewPostgresPatentRepository(mock).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
