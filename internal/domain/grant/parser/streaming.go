package parser

import (
	"context"
	"errors"
	"io"
)

var errStreamCancelled = errors.New("stream cancelled")

// StreamingParser runs the parser in a background goroutine and delivers
// records through channels, for callers that consume records rather than
// rows (database loads, previews).
type StreamingParser struct {
	opts       ConvertOptions
	bufferSize int
}

// StreamResult is sent through the channel for each completed record
type StreamResult struct {
	Record PatentRecord
	Index  int // 0-based position in the archive
}

// StreamStats is sent once when the stream ends.
type StreamStats struct {
	Records int
	Parse   ParseStats
	Err     error
}

// NewStreamingParser creates a streaming parser. bufferSize is the channel
// capacity (default 256).
func NewStreamingParser(opts ConvertOptions, bufferSize int) *StreamingParser {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &StreamingParser{opts: opts, bufferSize: bufferSize}
}

// ParseStream reads an archive and streams completed records in order.
// Both channels are closed when parsing completes or ctx is cancelled;
// the stats channel receives exactly one value.
func (p *StreamingParser) ParseStream(ctx context.Context, reader io.Reader) (<-chan StreamResult, <-chan StreamStats) {
	results := make(chan StreamResult, p.bufferSize)
	statsChan := make(chan StreamStats, 1)

	go p.parseAsync(ctx, reader, results, statsChan)

	return results, statsChan
}

func (p *StreamingParser) parseAsync(ctx context.Context, reader io.Reader, results chan<- StreamResult, statsChan chan<- StreamStats) {
	defer close(statsChan)
	defer close(results)

	index := 0
	sink := RecordSinkFunc(func(rec PatentRecord) error {
		if ctx.Err() != nil {
			return errStreamCancelled
		}
		select {
		case <-ctx.Done():
			return errStreamCancelled
		case results <- StreamResult{Record: rec, Index: index}:
			index++
			return nil
		}
	})

	parser := NewParser(sink)
	err := FeedLines(decode(reader, p.opts.Encoding), parser)
	if err == nil {
		err = parser.Finish()
	}
	if errors.Is(err, errStreamCancelled) {
		err = ctx.Err()
	}

	statsChan <- StreamStats{Records: parser.Records(), Parse: parser.Stats(), Err: err}
}

// ParseStreamBatched streams records in slices of up to batchSize, which
// suits bulk inserts. The error channel receives at most one value.
func (p *StreamingParser) ParseStreamBatched(ctx context.Context, reader io.Reader, batchSize int) (<-chan []PatentRecord, <-chan error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	batches := make(chan []PatentRecord, 4)
	errChan := make(chan error, 1)

	go func() {
		defer close(errChan)
		defer close(batches)

		results, statsChan := p.ParseStream(ctx, reader)
		batch := make([]PatentRecord, 0, batchSize)
		for res := range results {
			batch = append(batch, res.Record)
			if len(batch) >= batchSize {
				select {
				case batches <- batch:
				case <-ctx.Done():
				}
				batch = make([]PatentRecord, 0, batchSize)
			}
		}
		stats := <-statsChan
		if len(batch) > 0 && stats.Err == nil {
			select {
			case batches <- batch:
			case <-ctx.Done():
			}
		}
		if stats.Err != nil {
			errChan <- stats.Err
		}
	}()

	return batches, errChan
}

// ChunkReader wraps an io.Reader and provides progress tracking
type ChunkReader struct {
	reader     io.Reader
	bytesRead  int64
	totalSize  int64
	onProgress func(bytesRead, totalSize int64)
}

// NewChunkReader creates a reader that tracks progress
func NewChunkReader(reader io.Reader, totalSize int64, onProgress func(bytesRead, totalSize int64)) *ChunkReader {
	return &ChunkReader{
		reader:     reader,
		totalSize:  totalSize,
		onProgress: onProgress,
	}
}

func (cr *ChunkReader) Read(p []byte) (int, error) {
	n, err := cr.reader.Read(p)
	cr.bytesRead += int64(n)
	if cr.onProgress != nil {
		cr.onProgress(cr.bytesRead, cr.totalSize)
	}
	return n, err
}

// BytesRead returns the number of bytes read so far
func (cr *ChunkReader) BytesRead() int64 {
	return cr.bytesRead
}

// Progress returns the percentage complete (0-100)
func (cr *ChunkReader) Progress() float64 {
	if cr.totalSize <= 0 {
		return 0
	}
	return float64(cr.bytesRead) / float64(cr.totalSize) * 100
}
