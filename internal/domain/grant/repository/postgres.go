package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of *pgxpool.Pool the repository needs. pgxmock pools
// satisfy it too.
type DBTX interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var stagingColumns = []string{
	"wku", "title", "application_date", "issue_date", "app_date_raw", "issue_date_raw",
	"inventors", "assignees", "icl_classes", "cited_patents", "claims", "source_archive",
}

// PostgresPatentRepository implements PatentRepository using PostgreSQL
type PostgresPatentRepository struct {
	db DBTX
}

// NewPostgresPatentRepository creates a new PostgreSQL patent repository
func NewPostgresPatentRepository(db DBTX) *PostgresPatentRepository {
	return &PostgresPatentRepository{db: db}
}

// UpsertBatch copies patents into a transaction-scoped staging table and
// merges them into patents in one statement.
func (r *PostgresPatentRepository) UpsertBatch(ctx context.Context, patents []Patent) (*UpsertResult, error) {
	res := &UpsertResult{}
	rows, skipped, dups := dedupe(patents)
	res.Skipped, res.Duplicates = skipped, dups
	if len(rows) == 0 {
		return res, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `
		CREATE TEMP TABLE patents_staging (LIKE patents INCLUDING DEFAULTS) ON COMMIT DROP`); err != nil {
		return nil, fmt.Errorf("failed to create staging table: %w", err)
	}

	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{"patents_staging"},
		stagingColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			p := rows[i]
			return []any{
				p.WKU, p.Title, p.ApplicationDate, p.IssueDate, p.AppDateRaw, p.IssueDateRaw,
				p.Inventors, p.Assignees, p.ClassCodes, p.CitedPatents, p.Claims, p.SourceArchive,
			}, nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to copy patents: %w", err)
	}
	if copied != int64(len(rows)) {
		return nil, fmt.Errorf("copied %d of %d patents", copied, len(rows))
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO patents (
			wku, title, application_date, issue_date, app_date_raw, issue_date_raw,
			inventors, assignees, icl_classes, cited_patents, claims, source_archive
		)
		SELECT wku, title, application_date, issue_date, app_date_raw, issue_date_raw,
			inventors, assignees, icl_classes, cited_patents, claims, source_archive
		FROM patents_staging
		ON CONFLICT (wku) DO UPDATE SET
			title = EXCLUDED.title,
			application_date = EXCLUDED.application_date,
			issue_date = EXCLUDED.issue_date,
			app_date_raw = EXCLUDED.app_date_raw,
			issue_date_raw = EXCLUDED.issue_date_raw,
			inventors = EXCLUDED.inventors,
			assignees = EXCLUDED.assignees,
			icl_classes = EXCLUDED.icl_classes,
			cited_patents = EXCLUDED.cited_patents,
			claims = EXCLUDED.claims,
			source_archive = EXCLUDED.source_archive,
			loaded_at = now()`)
	if err != nil {
		return nil, fmt.Errorf("failed to merge patents: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit patents: %w", err)
	}

	res.Written = tag.RowsAffected()
	return res, nil
}

// dedupe drops rows without a WKU and keeps only the last row per WKU, in
// first-seen order. One INSERT ... ON CONFLICT cannot touch a row twice.
func dedupe(patents []Patent) (rows []Patent, skipped, duplicates int) {
	index := make(map[string]int, len(patents))
	rows = make([]Patent, 0, len(patents))
	for _, p := range patents {
		if p.WKU == "" {
			skipped++
			continue
		}
		if i, ok := index[p.WKU]; ok {
			rows[i] = p
			duplicates++
			continue
		}
		index[p.WKU] = len(rows)
		rows = append(rows, p)
	}
	return rows, skipped, duplicates
}

// GetByWKU retrieves a patent by its WKU
func (r *PostgresPatentRepository) GetByWKU(ctx context.Context, wku string) (*Patent, error) {
	query := `
		SELECT wku, title, application_date, issue_date, app_date_raw, issue_date_raw,
			inventors, assignees, icl_classes, cited_patents, claims, source_archive, loaded_at
		FROM patents
		WHERE wku = $1`

	p := &Patent{}
	err := r.db.QueryRow(ctx, query, wku).Scan(
		&p.WKU,
		&p.Title,
		&p.ApplicationDate,
		&p.IssueDate,
		&p.AppDateRaw,
		&p.IssueDateRaw,
		&p.Inventors,
		&p.Assignees,
		&p.ClassCodes,
		&p.CitedPatents,
		&p.Claims,
		&p.SourceArchive,
		&p.LoadedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patent: %w", err)
	}
	return p, nil
}

// Count returns the number of stored patents
func (r *PostgresPatentRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM patents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count patents: %w", err)
	}
	return n, nil
}
