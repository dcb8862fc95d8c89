package parser_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/patentgrant/internal/domain/grant/parser"
	"github.com/FACorreiaa/patentgrant/pkg/fakegrant"
)

func TestStreamingParser_ParseStream(t *testing.T) {
	patents := fakegrant.NewTestDataGeneratorWithSeed(7).Patents(10)
	sp := parser.NewStreamingParser(parser.ConvertOptions{}, 2)

	results, statsChan := sp.ParseStream(context.Background(), strings.NewReader(fakegrant.Archive(patents)))

	var got []parser.StreamResult
	for res := range results {
		got = append(got, res)
	}
	stats := <-statsChan

	require.NoError(t, stats.Err)
	assert.Equal(t, 10, stats.Records)
	require.Len(t, got, 10)
	for i, res := range got {
		assert.Equal(t, i, res.Index)
		assert.Equal(t, patents[i].ID, res.Record.ID)
	}
}

func TestStreamingParser_Cancelled(t *testing.T) {
	patents := fakegrant.NewTestDataGeneratorWithSeed(7).Patents(50)
	sp := parser.NewStreamingParser(parser.ConvertOptions{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	results, statsChan := sp.ParseStream(ctx, strings.NewReader(fakegrant.Archive(patents)))

	<-results
	cancel()
	for range results {
	}
	stats := <-statsChan

	assert.ErrorIs(t, stats.Err, context.Canceled)
	assert.Less(t, stats.Records, 50)
}

func TestStreamingParser_ParseStreamBatched(t *testing.T) {
	patents := fakegrant.NewTestDataGeneratorWithSeed(11).Patents(23)
	sp := parser.NewStreamingParser(parser.ConvertOptions{}, 0)

	batches, errChan := sp.ParseStreamBatched(context.Background(), strings.NewReader(fakegrant.Archive(patents)), 10)

	var sizes []int
	total := 0
	for batch := range batches {
		sizes = append(sizes, len(batch))
		total += len(batch)
	}
	require.NoError(t, <-errChan)

	assert.Equal(t, []int{10, 10, 3}, sizes)
	assert.Equal(t, 23, total)
}

func TestChunkReader(t *testing.T) {
	data := "PATN\nWKU  1\n"
	var calls int
	cr := parser.NewChunkReader(strings.NewReader(data), int64(len(data)), func(read, total int64) {
		calls++
		assert.LessOrEqual(t, read, total)
	})

	_, err := parser.Convert(cr, &strings.Builder{}, parser.ConvertOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), cr.BytesRead())
	assert.InDelta(t, 100.0, cr.Progress(), 0.001)
	assert.Positive(t, calls)
}
