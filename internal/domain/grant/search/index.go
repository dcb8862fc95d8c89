// Package search indexes converted patents for full-text queries and
// matches watch terms and assignee names against them.
package search

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/FACorreiaa/patentgrant/internal/domain/grant/export"
)

// Document is the indexed form of a converted patent.
type Document struct {
	WKU       string   `json:"wku"`
	Title     string   `json:"title"`
	Claims    string   `json:"claims"`
	Inventors []string `json:"inventors"`
	Assignees []string `json:"assignees"`
	Classes   []string `json:"classes"`
	IssueDate string   `json:"issue_date"`
}

// DocumentFromRow converts a CSV row.
func DocumentFromRow(row export.PatentRow) Document {
	return Document{
		WKU:       row.WKU,
		Title:     row.Title,
		Claims:    row.Claims,
		Inventors: row.InventorList(),
		Assignees: row.AssigneeList(),
		Classes:   row.ClassList(),
		IssueDate: row.IssueDate,
	}
}

// Hit is a search match with its relevance score.
type Hit struct {
	WKU       string
	Title     string
	IssueDate string
	Score     float64
}

// PatentIndex provides full-text search over converted patents using Bleve.
type PatentIndex struct {
	index   bleve.Index
	indexMu sync.RWMutex
	path    string // empty for in-memory
}

// NewPatentIndex creates an index. An empty path creates an in-memory
// index; otherwise an existing index at path is opened or a new one created.
func NewPatentIndex(path string) (*PatentIndex, error) {
	var index bleve.Index
	var err error

	if path == "" {
		index, err = bleve.NewMemOnly(buildIndexMapping())
	} else if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		if mkdirErr := os.MkdirAll(filepath.Dir(path), 0o755); mkdirErr != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", mkdirErr)
		}
		index, err = bleve.New(path, buildIndexMapping())
	} else {
		index, err = bleve.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &PatentIndex{index: index, path: path}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name

	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("wku", keywordField)
	docMapping.AddFieldMappingsAt("title", textField)
	docMapping.AddFieldMappingsAt("claims", textField)
	docMapping.AddFieldMappingsAt("inventors", textField)
	docMapping.AddFieldMappingsAt("assignees", textField)
	docMapping.AddFieldMappingsAt("classes", keywordField)
	docMapping.AddFieldMappingsAt("issue_date", keywordField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

// IndexRows adds or replaces rows in one batch. Rows without a WKU are
// skipped. It returns the number of indexed documents.
func (pi *PatentIndex) IndexRows(rows []export.PatentRow) (int, error) {
	pi.indexMu.Lock()
	defer pi.indexMu.Unlock()

	batch := pi.index.NewBatch()
	for _, row := range rows {
		if row.WKU == "" {
			continue
		}
		if err := batch.Index(row.WKU, DocumentFromRow(row)); err != nil {
			return 0, fmt.Errorf("failed to index patent %s: %w", row.WKU, err)
		}
	}

	n := batch.Size()
	if err := pi.index.Batch(batch); err != nil {
		return 0, fmt.Errorf("failed to execute batch index: %w", err)
	}
	return n, nil
}

// Search runs a match query over the text fields.
func (pi *PatentIndex) Search(text string, limit int) ([]Hit, error) {
	return pi.run(bleve.NewMatchQuery(text), limit)
}

// SearchFuzzy runs a match query allowing up to fuzziness edits per term
// (clamped to Bleve's maximum of 2).
func (pi *PatentIndex) SearchFuzzy(text string, fuzziness, limit int) ([]Hit, error) {
	fuzziness = max(0, min(fuzziness, 2))
	q := bleve.NewMatchQuery(text)
	q.SetFuzziness(fuzziness)
	return pi.run(q, limit)
}

// SearchAdvanced parses a query string such as "+laser -diode title:beam".
func (pi *PatentIndex) SearchAdvanced(queryString string, limit int) ([]Hit, error) {
	return pi.run(bleve.NewQueryStringQuery(queryString), limit)
}

// SearchByClass finds patents carrying an exact ICL class code.
func (pi *PatentIndex) SearchByClass(class string, limit int) ([]Hit, error) {
	q := bleve.NewTermQuery(class)
	q.SetField("classes")
	return pi.run(q, limit)
}

func (pi *PatentIndex) run(q query.Query, limit int) ([]Hit, error) {
	pi.indexMu.RLock()
	defer pi.indexMu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"title", "issue_date"}

	res, err := pi.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{WKU: h.ID, Score: h.Score}
		if title, ok := h.Fields["title"].(string); ok {
			hit.Title = title
		}
		if date, ok := h.Fields["issue_date"].(string); ok {
			hit.IssueDate = date
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// DocumentCount returns the number of indexed patents.
func (pi *PatentIndex) DocumentCount() (uint64, error) {
	pi.indexMu.RLock()
	defer pi.indexMu.RUnlock()
	return pi.index.DocCount()
}

// Close closes the index.
func (pi *PatentIndex) Close() error {
	pi.indexMu.Lock()
	defer pi.indexMu.Unlock()

	if pi.index != nil {
		return pi.index.Close()
	}
	return nil
}
