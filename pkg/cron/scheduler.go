// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/patentgrant/internal/domain/grant/service"
	"github.com/FACorreiaa/patentgrant/pkg/config"
)

const runTimeout = 2 * time.Hour

// Backfiller is the part of the conversion service the scheduler drives.
type Backfiller interface {
	PendingWeeks(ctx context.Context, fromYear, toYear, limit int) (service.WeeksRequest, error)
	ConvertWeeks(ctx context.Context, req service.WeeksRequest) (*service.BatchResult, error)
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron    *cron.Cron
	job     cron.Job
	service Backfiller
	cfg     config.SchedulerConfig
	logger  *slog.Logger

	// ctx is the parent of every run; Stop cancels it
	ctx    context.Context
	cancel context.CancelFunc
	manual sync.WaitGroup
}

// NewScheduler creates a backfill scheduler. Scheduled ticks and RunNow
// share one job, so a run that is still going causes any other run to be
// skipped.
func NewScheduler(svc Backfiller, cfg config.SchedulerConfig, logger *slog.Logger) *Scheduler {
	cronLogger := cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		cron:    cron.New(cron.WithLogger(cronLogger)),
		service: svc,
		cfg:     cfg,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	s.job = cron.NewChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)).
		Then(cron.FuncJob(s.backfill))
	return s
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddJob(s.cfg.Spec, s.job)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.String("spec", s.cfg.Spec),
	)
	return nil
}

// Stop cancels any running backfill and stops scheduling new ones. The
// returned context is done once every run, scheduled or manual, has
// returned.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	cronDone := s.cron.Stop()
	s.cancel()

	ctx, done := context.WithCancel(context.Background())
	go func() {
		<-cronDone.Done()
		s.manual.Wait()
		done()
	}()
	return ctx
}

// RunNow triggers one backfill run in the background. It is skipped when a
// run is already in progress.
func (s *Scheduler) RunNow() {
	s.manual.Add(1)
	go func() {
		defer s.manual.Done()
		s.job.Run()
	}()
}

func (s *Scheduler) backfill() {
	ctx, cancel := context.WithTimeout(s.ctx, runTimeout)
	defer cancel()

	if _, err := s.Backfill(ctx); err != nil {
		s.logger.Error("backfill failed", slog.Any("error", err))
	}
}

// Backfill converts the next BatchSize unconverted weeks of the configured
// year range into the configured output. It returns nil, nil when nothing
// is pending.
func (s *Scheduler) Backfill(ctx context.Context) (*service.BatchResult, error) {
	req, err := s.service.PendingWeeks(ctx, s.cfg.FromYear, s.cfg.ToYear, s.cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	if len(req.Years) == 0 {
		s.logger.Info("backfill up to date",
			slog.Int("from_year", s.cfg.FromYear),
			slog.Int("to_year", s.cfg.ToYear),
		)
		return nil, nil
	}

	req.OutputPath = s.cfg.OutputPath
	s.logger.Info("starting backfill run", slog.Int("weeks", len(req.Years)))

	result, err := s.service.ConvertWeeks(ctx, req)
	if err != nil {
		return nil, err
	}

	s.logger.Info("backfill run completed",
		slog.String("job_id", result.JobID.String()),
		slog.Int("records", result.Records),
		slog.Int("weeks_failed", result.Failed),
	)
	return result, nil
}
