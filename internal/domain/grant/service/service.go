// Package service orchestrates downloading, converting and loading weekly
// grant archives.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/patentgrant/internal/domain/grant/bulkdata"
	"github.com/FACorreiaa/patentgrant/internal/domain/grant/export"
	"github.com/FACorreiaa/patentgrant/internal/domain/grant/parser"
	"github.com/FACorreiaa/patentgrant/internal/domain/grant/repository"
	"github.com/FACorreiaa/patentgrant/internal/domain/grant/sniffer"
	"github.com/FACorreiaa/patentgrant/pkg/metrics"
	"github.com/FACorreiaa/patentgrant/pkg/storage"
)

var (
	// ErrInvalidRequest is returned when a request fails validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNoArchivesConverted is returned by ConvertWeeks when rows were
	// requested and no week could be converted.
	ErrNoArchivesConverted = errors.New("unable to convert any requested archive")
)

const (
	defaultWorkers   = 2
	loadBatchSize    = 500
	zipContentType   = "application/zip"
	tracerName       = "github.com/FACorreiaa/patentgrant/internal/domain/grant/service"
	progressLogEvery = 25.0 // percent
)

// Downloader fetches a weekly archive.
type Downloader interface {
	Download(ctx context.Context, ref bulkdata.ArchiveRef, w io.Writer) (int64, error)
}

// WeeksRequest selects weekly archives by parallel year and week lists.
type WeeksRequest struct {
	Years []int
	Weeks []int
	// OutputPath is the CSV to append to. It is created with a header row
	// when missing. When empty, rows are returned in BatchResult.Rows.
	OutputPath string
}

// LocalRequest converts archives that are already on disk.
type LocalRequest struct {
	Inputs     []string
	OutputPath string
	Append     bool
	Header     bool
}

// WeekResult is the outcome for one archive.
type WeekResult struct {
	Year    int
	Week    int
	Archive string
	Cached  bool
	Records int
	Stats   parser.ParseStats
	Loaded  int64
	Err     error
}

// BatchResult summarises a batch conversion.
type BatchResult struct {
	JobID      uuid.UUID
	OutputPath string
	Weeks      []WeekResult
	Records    int
	Failed     int
	// Rows holds the converted rows when no output path was requested.
	Rows []export.PatentRow
}

// ConvertService orchestrates archive conversion.
type ConvertService struct {
	downloader Downloader
	store      storage.Storage
	repo       repository.PatentRepository // Optional: nil disables loading
	metrics    *metrics.Metrics            // Optional
	tracer     trace.Tracer
	logger     *slog.Logger
	workers    int
	encoding   parser.Encoding
	now        func() time.Time
}

// NewConvertService creates a conversion service.
func NewConvertService(downloader Downloader, store storage.Storage, logger *slog.Logger) *ConvertService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConvertService{
		downloader: downloader,
		store:      store,
		tracer:     otel.Tracer(tracerName),
		logger:     logger,
		workers:    defaultWorkers,
		encoding:   parser.EncodingASCII,
		now:        time.Now,
	}
}

// WithRepository loads every converted archive into repo as well.
func (s *ConvertService) WithRepository(repo repository.PatentRepository) *ConvertService {
	s.repo = repo
	return s
}

// WithMetrics records conversion metrics.
func (s *ConvertService) WithMetrics(m *metrics.Metrics) *ConvertService {
	s.metrics = m
	return s
}

// WithWorkers sets how many archives are prefetched concurrently.
func (s *ConvertService) WithWorkers(n int) *ConvertService {
	if n > 0 {
		s.workers = n
	}
	return s
}

// WithEncoding sets the byte encoding of input archives.
func (s *ConvertService) WithEncoding(enc parser.Encoding) *ConvertService {
	if enc != "" {
		s.encoding = enc
	}
	return s
}

// WithClock overrides the clock used to reject future weeks.
func (s *ConvertService) WithClock(now func() time.Time) *ConvertService {
	s.now = now
	return s
}

// ValidateWeeks checks a WeeksRequest against the published archive range.
func (s *ConvertService) ValidateWeeks(req WeeksRequest) error {
	if len(req.Years) == 0 {
		return fmt.Errorf("%w: no weeks requested", ErrInvalidRequest)
	}
	if len(req.Years) != len(req.Weeks) {
		return fmt.Errorf("%w: %d years but %d weeks", ErrInvalidRequest, len(req.Years), len(req.Weeks))
	}
	currentYear := s.now().Year()
	for i := range req.Years {
		year, week := req.Years[i], req.Weeks[i]
		if year < bulkdata.FirstYear || year > currentYear {
			return fmt.Errorf("%w: year %d outside %d..%d", ErrInvalidRequest, year, bulkdata.FirstYear, currentYear)
		}
		if week < 1 || week > bulkdata.MaxWeek {
			return fmt.Errorf("%w: week %d outside 1..%d", ErrInvalidRequest, week, bulkdata.MaxWeek)
		}
	}
	if req.OutputPath != "" && !strings.HasSuffix(req.OutputPath, ".csv") {
		return fmt.Errorf("%w: output %q must be a .csv file", ErrInvalidRequest, req.OutputPath)
	}
	return nil
}

// ConvertWeeks downloads (or reuses cached) weekly archives and appends
// their rows to one CSV. A week that fails is logged and recorded in the
// result; it never aborts the batch. When rows are returned instead of
// written and no week converted, ErrNoArchivesConverted is returned.
func (s *ConvertService) ConvertWeeks(ctx context.Context, req WeeksRequest) (*BatchResult, error) {
	if err := s.ValidateWeeks(req); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "ConvertWeeks", trace.WithAttributes(
		attribute.Int("weeks", len(req.Years)),
		attribute.String("output", req.OutputPath),
	))
	defer span.End()

	result := &BatchResult{JobID: uuid.New(), OutputPath: req.OutputPath}
	logger := s.logger.With(slog.String("job_id", result.JobID.String()))

	returnRows := req.OutputPath == ""
	if returnRows {
		tmp, err := os.CreateTemp("", "patentgrant-*.csv")
		if err != nil {
			return nil, fmt.Errorf("failed to create temporary output: %w", err)
		}
		tmp.Close()
		os.Remove(tmp.Name())
		result.OutputPath = tmp.Name()
		defer os.Remove(result.OutputPath)
	}
	if err := ensureOutput(result.OutputPath); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "output")
		return nil, err
	}

	now := s.now()
	refs := make([]*bulkdata.ArchiveRef, len(req.Years))
	result.Weeks = make([]WeekResult, len(req.Years))
	for i := range req.Years {
		wr := &result.Weeks[i]
		wr.Year, wr.Week = req.Years[i], req.Weeks[i]

		ref, err := bulkdata.ArchiveName(wr.Year, wr.Week, now)
		if err != nil {
			wr.Err = err
			continue
		}
		wr.Archive = ref.Name
		if err := sniffer.RequireTXT(ref.Format); err != nil {
			wr.Err = err
			continue
		}
		refs[i] = &ref
	}

	cached, fetchErrs, err := s.prefetch(ctx, refs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "prefetch")
		return nil, err
	}

	for i, ref := range refs {
		wr := &result.Weeks[i]
		if ref == nil {
			s.failWeek(logger, wr)
			continue
		}
		wr.Cached = cached[i]
		if err := fetchErrs[i]; err != nil {
			wr.Err = err
			s.failWeek(logger, wr)
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.convertWeek(ctx, logger, *ref, result.JobID, result.OutputPath, wr)
		if wr.Err != nil {
			s.failWeek(logger, wr)
			continue
		}
		result.Records += wr.Records
	}

	for _, wr := range result.Weeks {
		if wr.Err != nil {
			result.Failed++
		}
	}

	if returnRows {
		if result.Failed == len(result.Weeks) {
			errs := make([]error, 0, len(result.Weeks))
			for _, wr := range result.Weeks {
				errs = append(errs, fmt.Errorf("%d week %d: %w", wr.Year, wr.Week, wr.Err))
			}
			err := fmt.Errorf("%w: %w", ErrNoArchivesConverted, errors.Join(errs...))
			span.RecordError(err)
			span.SetStatus(codes.Error, "no archives converted")
			return nil, err
		}
		rows, err := export.ReadRowsFile(result.OutputPath)
		if err != nil {
			return nil, err
		}
		result.Rows = rows
		result.OutputPath = ""
	}

	span.SetAttributes(attribute.Int("records", result.Records), attribute.Int("failed", result.Failed))
	logger.Info("batch conversion completed",
		slog.Int("weeks", len(result.Weeks)),
		slog.Int("records", result.Records),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *ConvertService) failWeek(logger *slog.Logger, wr *WeekResult) {
	if s.metrics != nil {
		s.metrics.WeeksFailed.Inc()
	}
	logger.Warn("skipping week",
		slog.Int("year", wr.Year),
		slog.Int("week", wr.Week),
		slog.Any("error", wr.Err),
	)
}

// prefetch makes sure every non-nil ref is in storage. Per-archive failures
// are returned by index; the error return is only for cancellation.
func (s *ConvertService) prefetch(ctx context.Context, refs []*bulkdata.ArchiveRef) ([]bool, []error, error) {
	cached := make([]bool, len(refs))
	errs := make([]error, len(refs))

	// the same week listed twice is fetched once
	first := make(map[string]int)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, ref := range refs {
		if ref == nil {
			continue
		}
		if _, dup := first[ref.Name]; dup {
			continue
		}
		first[ref.Name] = i

		g.Go(func() error {
			cached[i], errs[i] = s.fetch(gctx, *ref)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	for i, ref := range refs {
		if ref == nil {
			continue
		}
		if j := first[ref.Name]; j != i {
			cached[i] = errs[j] == nil
			errs[i] = errs[j]
		}
	}
	return cached, errs, nil
}

func (s *ConvertService) fetch(ctx context.Context, ref bulkdata.ArchiveRef) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "FetchArchive", trace.WithAttributes(attribute.String("archive", ref.Name)))
	defer span.End()

	if _, err := s.store.Stat(ctx, ref.ZipName()); err == nil {
		s.countDownload(metrics.ResultCached)
		return true, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return false, err
	}

	pr, pw := io.Pipe()
	go func() {
		_, err := s.downloader.Download(ctx, ref, pw)
		pw.CloseWithError(err)
	}()

	_, err := s.store.Put(ctx, ref.ZipName(), zipContentType, pr)
	pr.CloseWithError(err)
	if err != nil {
		s.countDownload(metrics.ResultFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "download")
		return false, fmt.Errorf("failed to fetch %s: %w", ref.ZipName(), err)
	}
	s.countDownload(metrics.ResultDownloaded)
	return false, nil
}

func (s *ConvertService) countDownload(result string) {
	if s.metrics != nil {
		s.metrics.ArchivesDownloaded.WithLabelValues(result).Inc()
	}
}

// convertWeek extracts the archive member and appends its rows to outPath.
func (s *ConvertService) convertWeek(ctx context.Context, logger *slog.Logger, ref bulkdata.ArchiveRef, jobID uuid.UUID, outPath string, wr *WeekResult) {
	ctx, span := s.tracer.Start(ctx, "ConvertArchive", trace.WithAttributes(
		attribute.String("archive", ref.Name),
		attribute.Int("year", ref.Year),
		attribute.Int("week", ref.Week),
	))
	defer span.End()

	zipPath, err := s.store.LocalPath(ctx, ref.ZipName())
	if err != nil {
		wr.Err = err
		return
	}

	workDir, err := os.MkdirTemp("", "patentgrant-"+ref.Name+"-")
	if err != nil {
		wr.Err = fmt.Errorf("failed to create work dir: %w", err)
		return
	}
	defer os.RemoveAll(workDir)

	member, err := bulkdata.ExtractMember(zipPath, ref.Member, workDir)
	if err != nil {
		wr.Err = err
		return
	}

	res, err := s.convertFile(ctx, logger, member, outPath, parser.ConvertOptions{Append: true})
	wr.Records, wr.Stats = res.Records, res.Stats
	if err != nil {
		wr.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, "convert")
		return
	}

	if s.repo != nil {
		loaded, err := s.loadArchive(ctx, member, ref.Name)
		wr.Loaded = loaded
		if err != nil {
			// rows are already in the CSV, so the week still counts as converted
			logger.Error("failed to load archive into database", slog.String("archive", ref.Name), slog.Any("error", err))
		}
	}

	if err := s.store.MarkConverted(ctx, ref.ZipName(), storage.Conversion{
		JobID:      jobID,
		OutputPath: outPath,
		Records:    res.Records,
	}); err != nil {
		logger.Warn("failed to record conversion", slog.String("archive", ref.Name), slog.Any("error", err))
	}
}

// convertFile sniffs inPath and appends (or writes) its rows to outPath.
func (s *ConvertService) convertFile(ctx context.Context, logger *slog.Logger, inPath, outPath string, opts parser.ConvertOptions) (parser.ConvertResult, error) {
	info, err := sniffer.DetectFile(inPath)
	if err != nil {
		return parser.ConvertResult{}, err
	}
	if err := sniffer.RequireTXT(info.Format); err != nil {
		return parser.ConvertResult{}, fmt.Errorf("%s: %w", filepath.Base(inPath), err)
	}

	in, err := os.Open(inPath)
	if err != nil {
		return parser.ConvertResult{}, fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	var size int64
	if st, err := in.Stat(); err == nil {
		size = st.Size()
	}
	nextLog := progressLogEvery
	progress := parser.NewChunkReader(in, size, func(read, total int64) {
		if total <= 0 {
			return
		}
		if pct := float64(read) / float64(total) * 100; pct >= nextLog {
			logger.Debug("conversion progress", slog.String("input", filepath.Base(inPath)), slog.Float64("percent", pct))
			for nextLog <= pct {
				nextLog += progressLogEvery
			}
		}
	})

	flags := os.O_CREATE | os.O_WRONLY
	if opts.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	out, err := os.OpenFile(outPath, flags, 0o644)
	if err != nil {
		return parser.ConvertResult{}, fmt.Errorf("failed to open output: %w", err)
	}
	var offset int64
	if st, err := out.Stat(); err == nil {
		offset = st.Size()
	} else {
		out.Close()
		return parser.ConvertResult{}, fmt.Errorf("failed to stat output: %w", err)
	}

	opts.Encoding = s.encoding
	start := time.Now()
	res, err := parser.Convert(progress, out, opts)
	if err != nil {
		// a failed archive leaves no rows behind
		if terr := out.Truncate(offset); terr != nil {
			logger.Error("failed to roll back partial output",
				slog.String("output", outPath),
				slog.Int64("offset", offset),
				slog.Any("error", terr),
			)
		}
	}
	if cerr := out.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("failed to close output: %w", cerr)
	}
	elapsed := time.Since(start)

	if s.metrics != nil {
		s.metrics.RecordsConverted.Add(float64(res.Records))
		s.metrics.LookaheadMismatches.Add(float64(res.Stats.LookaheadMismatches))
		s.metrics.ConvertDuration.Observe(elapsed.Seconds())
	}
	if err != nil {
		return res, err
	}

	logger.Info("archive converted",
		slog.String("input", filepath.Base(inPath)),
		slog.Int("records", res.Records),
		slog.Int("lines", res.Stats.Lines),
		slog.Int("lookahead_mismatches", res.Stats.LookaheadMismatches),
		slog.Duration("elapsed", elapsed),
	)
	return res, nil
}

// ConvertLocal converts archives already on disk into one CSV. The first
// input honours req.Append and req.Header; later inputs are appended.
func (s *ConvertService) ConvertLocal(ctx context.Context, req LocalRequest) (*BatchResult, error) {
	if len(req.Inputs) == 0 {
		return nil, fmt.Errorf("%w: no input files", ErrInvalidRequest)
	}
	if req.OutputPath == "" {
		return nil, fmt.Errorf("%w: output path is required", ErrInvalidRequest)
	}

	ctx, span := s.tracer.Start(ctx, "ConvertLocal", trace.WithAttributes(attribute.Int("inputs", len(req.Inputs))))
	defer span.End()

	result := &BatchResult{JobID: uuid.New(), OutputPath: req.OutputPath}
	logger := s.logger.With(slog.String("job_id", result.JobID.String()))

	opts := parser.ConvertOptions{Append: req.Append, EmitHeader: req.Header}
	for _, in := range req.Inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		wr := WeekResult{Archive: filepath.Base(in)}

		res, err := s.convertFile(ctx, logger, in, req.OutputPath, opts)
		wr.Records, wr.Stats, wr.Err = res.Records, res.Stats, err
		if err == nil {
			// later inputs must not truncate or repeat the header
			opts = parser.ConvertOptions{Append: true}
			result.Records += res.Records
			if s.repo != nil {
				wr.Loaded, err = s.loadArchive(ctx, in, strings.TrimSuffix(wr.Archive, filepath.Ext(wr.Archive)))
				if err != nil {
					logger.Error("failed to load archive into database", slog.String("archive", wr.Archive), slog.Any("error", err))
				}
			}
		} else {
			result.Failed++
			logger.Warn("skipping input", slog.String("input", in), slog.Any("error", err))
		}
		result.Weeks = append(result.Weeks, wr)
	}
	return result, nil
}

// ensureOutput creates path with the header row when it does not exist.
func ensureOutput(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat output: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(parser.Header+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	return nil
}
