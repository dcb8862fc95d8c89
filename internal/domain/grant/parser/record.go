package parser

import (
	"io"
	"strings"
)

// Header is the column header row of converted output.
const Header = "WKU,Title,App_Date,Issue_Date,Inventor,Assignee,ICL_Class,References,Claims"

// PatentRecord accumulates the fields of one patent grant.
type PatentRecord struct {
	ID              string
	Title           string
	ApplicationDate string
	IssueDate       string
	Inventors       string // semicolon joined
	Assignees       string // semicolon joined
	ClassCodes      string // semicolon joined
	References      string // semicolon joined
	Claims          string
}

// Sanitized returns a copy with quote characters removed from the columns
// that are written inside quotes.
func (r PatentRecord) Sanitized() PatentRecord {
	r.Title = StripQuoteChars(r.Title)
	r.Inventors = StripQuoteChars(r.Inventors)
	r.Assignees = StripQuoteChars(r.Assignees)
	r.Claims = StripQuoteChars(r.Claims)
	return r
}

// Row renders the record as one output line, newline included.
// Title, inventors, assignees and claims are wrapped in double quotes.
func (r PatentRecord) Row() string {
	var b strings.Builder
	b.Grow(len(r.ID) + len(r.Title) + len(r.Claims) + len(r.Inventors) + len(r.Assignees) +
		len(r.ApplicationDate) + len(r.IssueDate) + len(r.ClassCodes) + len(r.References) + 16)
	b.WriteString(r.ID)
	b.WriteString(`,"`)
	b.WriteString(r.Title)
	b.WriteString(`",`)
	b.WriteString(r.ApplicationDate)
	b.WriteByte(',')
	b.WriteString(r.IssueDate)
	b.WriteString(`,"`)
	b.WriteString(r.Inventors)
	b.WriteString(`","`)
	b.WriteString(r.Assignees)
	b.WriteString(`",`)
	b.WriteString(r.ClassCodes)
	b.WriteByte(',')
	b.WriteString(r.References)
	b.WriteString(`,"`)
	b.WriteString(r.Claims)
	b.WriteString("\"\n")
	return b.String()
}

// RecordSink receives completed, sanitized records in input order.
type RecordSink interface {
	WriteRecord(rec PatentRecord) error
}

// RecordSinkFunc adapts a function to RecordSink.
type RecordSinkFunc func(rec PatentRecord) error

// WriteRecord calls f(rec).
func (f RecordSinkFunc) WriteRecord(rec PatentRecord) error {
	return f(rec)
}

// RowWriter writes records as rows to an io.Writer.
type RowWriter struct {
	w    io.Writer
	rows int
}

// NewRowWriter creates a RowWriter on w.
func NewRowWriter(w io.Writer) *RowWriter {
	return &RowWriter{w: w}
}

// WriteHeader writes the header row.
func (rw *RowWriter) WriteHeader() error {
	_, err := io.WriteString(rw.w, Header+"\n")
	return err
}

// WriteRecord writes rec as one row.
func (rw *RowWriter) WriteRecord(rec PatentRecord) error {
	if _, err := io.WriteString(rw.w, rec.Row()); err != nil {
		return err
	}
	rw.rows++
	return nil
}

// Rows returns the number of records written.
func (rw *RowWriter) Rows() int {
	return rw.rows
}
