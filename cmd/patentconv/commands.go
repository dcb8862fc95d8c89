package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/FACorreiaa/patentgrant/internal/domain/grant/export"
	"github.com/FACorreiaa/patentgrant/internal/domain/grant/service"
	"github.com/FACorreiaa/patentgrant/pkg/config"
	"github.com/FACorreiaa/patentgrant/pkg/cron"
)

// errUsage marks flag errors that have already been reported.
var errUsage = errors.New("usage")

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

func runConvert(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := newFlagSet("convert")
	out := fs.String("o", "grants.csv", "output CSV path")
	appendOut := fs.Bool("append", false, "append to an existing output instead of truncating it")
	noHeader := fs.Bool("no-header", false, "do not write the header row")
	withDB := fs.Bool("load", false, "also load converted records into PostgreSQL")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(fs.Output(), "convert: at least one input archive is required")
		return errUsage
	}

	deps, err := InitDependencies(ctx, cfg, logger, *withDB)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	result, err := deps.ConvertService.ConvertLocal(ctx, service.LocalRequest{
		Inputs:     fs.Args(),
		OutputPath: *out,
		Append:     *appendOut,
		Header:     !*noHeader,
	})
	if err != nil {
		return err
	}
	return reportBatch(logger, result)
}

func runFetch(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := newFlagSet("fetch")
	years := fs.String("years", "", "comma separated years, one per week")
	weeks := fs.String("weeks", "", "comma separated week numbers (1-53)")
	out := fs.String("o", "grants.csv", "output CSV path (created with a header when missing)")
	withDB := fs.Bool("load", false, "also load converted records into PostgreSQL")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	yearList, err := parseIntList(*years)
	if err != nil {
		return fmt.Errorf("invalid -years: %w", err)
	}
	weekList, err := parseIntList(*weeks)
	if err != nil {
		return fmt.Errorf("invalid -weeks: %w", err)
	}

	deps, err := InitDependencies(ctx, cfg, logger, *withDB)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	result, err := deps.ConvertService.ConvertWeeks(ctx, service.WeeksRequest{
		Years:      yearList,
		Weeks:      weekList,
		OutputPath: *out,
	})
	if err != nil {
		return err
	}
	return reportBatch(logger, result)
}

func runExport(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := newFlagSet("export")
	in := fs.String("in", "grants.csv", "converted CSV to read")
	out := fs.String("o", "", "output workbook (default: input with .xlsx extension)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *out == "" {
		*out = strings.TrimSuffix(*in, filepath.Ext(*in)) + ".xlsx"
	}

	rows, err := export.ReadRowsFile(*in)
	if err != nil {
		return err
	}

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("failed to create workbook: %w", err)
	}
	if err := export.WriteXLSX(rows, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close workbook: %w", err)
	}

	logger.Info("workbook written", slog.String("path", *out), slog.Int("rows", len(rows)))
	return nil
}

func runLoad(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := newFlagSet("load")
	in := fs.String("in", "grants.csv", "converted CSV to load")
	source := fs.String("source", "", "source label stored with each row (default: file name)")
	batch := fs.Int("batch", 500, "rows per upsert batch")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *source == "" {
		*source = filepath.Base(*in)
	}

	deps, err := InitDependencies(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	if _, err := deps.ConvertService.LoadCSV(ctx, *in, *source, *batch); err != nil {
		return err
	}

	total, err := deps.PatentRepo.Count(ctx)
	if err != nil {
		return err
	}
	logger.Info("patents stored", slog.Int64("total", total))
	return nil
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := newFlagSet("serve")
	withDB := fs.Bool("load", false, "also load converted records into PostgreSQL")
	runNow := fs.Bool("now", false, "run one backfill immediately on start")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	deps, err := InitDependencies(ctx, cfg, logger, *withDB)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	var srv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", deps.Metrics.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", slog.Any("error", err))
			}
		}()
	}

	scheduler := cron.NewScheduler(deps.ConvertService, cfg.Scheduler, logger)
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	if *runNow {
		scheduler.RunNow()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
	}

	// cancel a running backfill and wait for it, bounded by the shutdown timeout
	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("backfill still running at shutdown")
	}
	return nil
}

func reportBatch(logger *slog.Logger, result *service.BatchResult) error {
	for _, wr := range result.Weeks {
		if wr.Err != nil {
			logger.Warn("archive failed",
				slog.String("archive", wr.Archive),
				slog.Int("year", wr.Year),
				slog.Int("week", wr.Week),
				slog.Any("error", wr.Err),
			)
		}
	}
	logger.Info("conversion finished",
		slog.String("job_id", result.JobID.String()),
		slog.String("output", result.OutputPath),
		slog.Int("records", result.Records),
		slog.Int("failed", result.Failed),
	)
	if result.Failed > 0 && result.Failed == len(result.Weeks) {
		return errors.New("every archive failed")
	}
	return nil
}

// parseIntList parses "1976, 1977,1978" into integers.
func parseIntList(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", p)
		}
		out = append(out, n)
	}
	return out, nil
}
