// Package sniffer identifies which grant archive layout a file uses before
// it is handed to a converter.
package sniffer

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/FACorreiaa/patentgrant/internal/domain/grant/bulkdata"
)

// HeadSize is how much of a file DetectFile reads.
const HeadSize = 8 << 10

var (
	ErrEmptyFile         = errors.New("file is empty")
	ErrUnsupportedFormat = errors.New("unsupported archive format")
)

// ArchiveInfo holds what could be learned from the head of an archive.
type ArchiveInfo struct {
	Format      bulkdata.Format
	SkipLines   int      // lines before the first PATN
	Fingerprint string   // SHA256 of the normalized leading lines
	SampleIDs   []string // WKU values seen in the head
}

// Detect classifies an archive from its first bytes.
func Detect(head []byte) bulkdata.Format {
	head = bytes.TrimPrefix(head, []byte("\uFEFF"))

	switch {
	case bytes.Contains(head, []byte("us-patent-grant")):
		return bulkdata.FormatXML2
	case bytes.Contains(head, []byte("<!DOCTYPE PATDOC")), bytes.Contains(head, []byte("<PATDOC")):
		return bulkdata.FormatXML1
	}

	for i, line := range strings.Split(string(head), "\n") {
		if i > 20 {
			break
		}
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, "HHHHHT") || line == "PATN" || strings.HasPrefix(line, "PATN ") {
			return bulkdata.FormatTXT
		}
	}
	return bulkdata.FormatUnknown
}

// Inspect analyzes the head of an archive.
func Inspect(head []byte) (*ArchiveInfo, error) {
	if len(bytes.TrimSpace(head)) == 0 {
		return nil, ErrEmptyFile
	}

	info := &ArchiveInfo{
		Format:      Detect(head),
		SkipLines:   -1,
		Fingerprint: Fingerprint(head),
	}
	if info.Format != bulkdata.FormatTXT {
		return info, nil
	}

	lines := strings.Split(string(head), "\n")
	// the last line may be cut off by the head limit
	if len(lines) > 1 {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		if info.SkipLines < 0 && line == "PATN" {
			info.SkipLines = i
		}
		if strings.HasPrefix(line, "WKU  ") {
			info.SampleIDs = append(info.SampleIDs, strings.TrimSpace(line[5:]))
		}
	}
	return info, nil
}

// DetectFile inspects the first HeadSize bytes of the file at path.
func DetectFile(path string) (*ArchiveInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	head := make([]byte, HeadSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read archive head: %w", err)
	}
	return Inspect(head[:n])
}

// RequireTXT returns ErrUnsupportedFormat unless format is the TXT layout.
func RequireTXT(format bulkdata.Format) error {
	if format != bulkdata.FormatTXT {
		return fmt.Errorf("%s: %w", format, ErrUnsupportedFormat)
	}
	return nil
}

// Fingerprint hashes the first few non-empty lines of head with whitespace
// normalized, so the same weekly file is recognised across re-downloads
// and line-ending changes.
func Fingerprint(head []byte) string {
	var normalized []string
	for _, line := range strings.Split(string(head), "\n") {
		clean := strings.Join(strings.Fields(line), " ")
		if clean == "" {
			continue
		}
		normalized = append(normalized, clean)
		if len(normalized) == 16 {
			break
		}
	}

	hash := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(hash[:])
}
