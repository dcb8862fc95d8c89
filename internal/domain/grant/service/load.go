package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/FACorreiaa/patentgrant/internal/domain/grant/bulkdata"
	"github.com/FACorreiaa/patentgrant/internal/domain/grant/export"
	"github.com/FACorreiaa/patentgrant/internal/domain/grant/parser"
	"github.com/FACorreiaa/patentgrant/internal/domain/grant/repository"
)

// ErrNoRepository is returned by load operations when no repository is set.
var ErrNoRepository = errors.New("no patent repository configured")

// LoadResult summarises a database load.
type LoadResult struct {
	Rows       int
	Written    int64
	Skipped    int
	Duplicates int
}

func (r *LoadResult) add(res *repository.UpsertResult, rows int) {
	r.Rows += rows
	r.Written += res.Written
	r.Skipped += res.Skipped
	r.Duplicates += res.Duplicates
}

// loadArchive streams records from a TXT archive into the repository.
func (s *ConvertService) loadArchive(ctx context.Context, path, source string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sp := parser.NewStreamingParser(parser.ConvertOptions{Encoding: s.encoding}, 0)
	batches, errChan := sp.ParseStreamBatched(ctx, f, loadBatchSize)

	var written int64
	for batch := range batches {
		patents := make([]repository.Patent, 0, len(batch))
		for _, rec := range batch {
			patents = append(patents, repository.PatentFromRow(export.RowFromRecord(rec), source))
		}
		res, err := s.repo.UpsertBatch(ctx, patents)
		if err != nil {
			// stop the parser and drain so its goroutine exits
			cancel()
			for range batches {
			}
			return written, fmt.Errorf("failed to store batch: %w", err)
		}
		written += res.Written
	}
	if err := <-errChan; err != nil {
		return written, err
	}

	s.logger.Debug("archive loaded", slog.String("source", source), slog.Int64("written", written))
	return written, nil
}

// LoadCSV loads a converted CSV into the repository in batches.
func (s *ConvertService) LoadCSV(ctx context.Context, csvPath, source string, batchSize int) (*LoadResult, error) {
	if s.repo == nil {
		return nil, ErrNoRepository
	}
	if batchSize <= 0 {
		batchSize = loadBatchSize
	}

	rows, err := export.ReadRowsFile(csvPath)
	if err != nil {
		return nil, err
	}

	result := &LoadResult{}
	batch := make([]repository.Patent, 0, batchSize)
	flushBatch := func() error {
		if len(batch) == 0 {
			return nil
		}
		res, err := s.repo.UpsertBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("failed to store batch: %w", err)
		}
		result.add(res, len(batch))
		batch = batch[:0]
		return nil
	}

	for _, row := range rows {
		batch = append(batch, repository.PatentFromRow(row, source))
		if len(batch) >= batchSize {
			if err := flushBatch(); err != nil {
				return result, err
			}
		}
	}
	if err := flushBatch(); err != nil {
		return result, err
	}

	s.logger.Info("csv loaded",
		slog.String("path", csvPath),
		slog.Int("rows", result.Rows),
		slog.Int64("written", result.Written),
		slog.Int("skipped", result.Skipped),
		slog.Int("duplicates", result.Duplicates),
	)
	return result, nil
}

// PendingWeeks lists up to limit TXT-era weeks in [fromYear, toYear] whose
// archives have no recorded conversion, oldest first. Weeks that do not
// exist in a year (week 53 in most years) are skipped.
func (s *ConvertService) PendingWeeks(ctx context.Context, fromYear, toYear, limit int) (WeeksRequest, error) {
	var req WeeksRequest
	if fromYear < bulkdata.FirstYear {
		fromYear = bulkdata.FirstYear
	}
	if toYear > bulkdata.LastTXTYear {
		toYear = bulkdata.LastTXTYear
	}

	now := s.now()
	for year := fromYear; year <= toYear; year++ {
		for week := 1; week <= bulkdata.MaxWeek; week++ {
			if limit > 0 && len(req.Years) >= limit {
				return req, nil
			}
			ref, err := bulkdata.ArchiveName(year, week, now)
			if err != nil {
				continue
			}
			done, err := s.store.IsConverted(ctx, ref.ZipName())
			if err != nil {
				return req, fmt.Errorf("failed to check %s: %w", ref.Name, err)
			}
			if !done {
				req.Years = append(req.Years, year)
				req.Weeks = append(req.Weeks, week)
			}
		}
	}
	return req, nil
}
