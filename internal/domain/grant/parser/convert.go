package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding/charmap"
)

// MaxLineSize bounds a single archive line. Claim paragraphs are the
// longest lines in practice and stay well below this.
const MaxLineSize = 4 << 20

// ErrLineTooLong is returned when an input line exceeds MaxLineSize.
var ErrLineTooLong = errors.New("archive line exceeds maximum size")

// Encoding identifies the byte encoding of an input archive.
type Encoding string

const (
	// EncodingASCII passes bytes through unchanged.
	EncodingASCII Encoding = "ascii"
	// EncodingLatin1 decodes ISO 8859-1 input to UTF-8 before parsing.
	EncodingLatin1 Encoding = "latin1"
)

// ConvertOptions configures a conversion.
type ConvertOptions struct {
	// Append leaves existing output in place; the header is never written
	// when appending.
	Append bool
	// EmitHeader writes the column header row before the first record of
	// a fresh output.
	EmitHeader bool
	// Encoding of the input archive (default: ascii).
	Encoding Encoding
}

// ConvertResult summarises one conversion.
type ConvertResult struct {
	// Records is the number of PATN record boundaries seen, which equals
	// the number of rows written.
	Records int
	Stats   ParseStats
}

// Convert reads archive lines from r and writes one row per patent to w.
func Convert(r io.Reader, w io.Writer, opts ConvertOptions) (ConvertResult, error) {
	bw := bufio.NewWriterSize(w, 64<<10)
	rows := NewRowWriter(bw)

	if opts.EmitHeader && !opts.Append {
		if err := rows.WriteHeader(); err != nil {
			return ConvertResult{}, fmt.Errorf("failed to write header: %w", err)
		}
	}

	p := NewParser(rows)
	if err := FeedLines(decode(r, opts.Encoding), p); err != nil {
		return ConvertResult{Records: p.Records(), Stats: p.Stats()}, err
	}
	if err := p.Finish(); err != nil {
		return ConvertResult{Records: p.Records(), Stats: p.Stats()}, fmt.Errorf("failed to write record: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return ConvertResult{Records: p.Records(), Stats: p.Stats()}, fmt.Errorf("failed to flush output: %w", err)
	}

	return ConvertResult{Records: p.Records(), Stats: p.Stats()}, nil
}

// FeedLines scans r line by line into p. It does not call Finish.
func FeedLines(r io.Reader, p *Parser) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), MaxLineSize)

	for scanner.Scan() {
		if err := p.Feed(scanner.Text()); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return fmt.Errorf("line %d: %w", p.Stats().Lines+1, ErrLineTooLong)
		}
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}

// ConvertFile converts the archive at inPath into outPath. With
// opts.Append the rows are appended to an existing file (created if
// missing); otherwise outPath is truncated.
func ConvertFile(inPath, outPath string, opts ConvertOptions) (ConvertResult, error) {
	in, err := os.Open(inPath)
	if err != nil {
		return ConvertResult{}, fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	flags := os.O_CREATE | os.O_WRONLY
	if opts.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	out, err := os.OpenFile(outPath, flags, 0o644)
	if err != nil {
		return ConvertResult{}, fmt.Errorf("failed to open output: %w", err)
	}

	res, err := Convert(in, out, opts)
	if cerr := out.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("failed to close output: %w", cerr)
	}
	return res, err
}

func decode(r io.Reader, enc Encoding) io.Reader {
	if enc == EncodingLatin1 {
		return charmap.ISO8859_1.NewDecoder().Reader(r)
	}
	return r
}
