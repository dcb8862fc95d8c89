// Package parser converts USPTO grant full-text archives in the fixed-tag
// TXT format (grants issued 1976-2001) into one CSV row per patent.
//
// The archive is line oriented: each line starts with a short tag such as
// PATN, WKU or TTL, and the value begins at byte offset 5. The Parser is a
// single-pass state machine that accumulates one PatentRecord at a time and
// hands it to a RecordSink whenever the next PATN line or end of input is
// reached. Unknown lines are never an error.
package parser

import "strings"

// Line tags recognised by the parser. Tags that carry a value are followed
// by padding up to the fixed value offset.
const (
	tagPatent          = "PATN"
	tagTitle           = "TTL  "
	tagID              = "WKU  "
	tagApplicationDate = "APD  "
	tagIssueDate       = "ISD  "
	tagInventor        = "INVT"
	tagAssignee        = "ASSG"
	tagClass           = "ICL  "
	tagReference       = "UREF"
	tagClaims          = "CLMS"
	tagDesignClaims    = "DCLM"
	tagStatement       = "STM "
	tagNumber          = "NUM "
	tagParagraph       = "PAR  "
	tagParagraphIndent = "PA1  "
	tagParagraphLevel  = "PAL  "
	tagContinuation    = "     "
	tagName            = "NAM  "
	tagPatentNumber    = "PNO  "

	valueOffset = 5
)

// lookahead is the sub-line the parser is waiting for after a block tag.
type lookahead int

const (
	awaitNone lookahead = iota
	awaitInventorName
	awaitAssigneeName
	awaitReferenceNumber
)

// ParseStats holds diagnostics gathered during one pass. None of them
// changes the emitted output.
type ParseStats struct {
	Lines int
	// LookaheadMismatches counts INVT/ASSG/UREF blocks whose next line was
	// not the expected NAM/PNO line (or was missing).
	LookaheadMismatches int
	// UnmatchedLines counts lines that matched no rule.
	UnmatchedLines int
	ClaimsLines    int
}

// recordState is everything that belongs to the in-flight patent. It is
// replaced wholesale at every PATN boundary.
type recordState struct {
	record             PatentRecord
	gotApplicationDate bool
	gotIssueDate       bool
	inClaims           bool
}

// Parser is the record accumulator state machine. A Parser is not safe for
// concurrent use; create one per input stream.
type Parser struct {
	sink RecordSink

	cur      recordState
	inRecord bool
	pending  lookahead

	records  int
	stats    ParseStats
	finished bool
}

// NewParser creates a parser that emits completed records to sink.
func NewParser(sink RecordSink) *Parser {
	return &Parser{sink: sink}
}

// Feed processes one input line. The line may or may not carry its
// trailing newline. The only error source is the sink.
func (p *Parser) Feed(line string) error {
	p.stats.Lines++

	if p.pending != awaitNone {
		if p.resolveLookahead(line) {
			return nil
		}
	}
	return p.dispatch(line)
}

// Finish flushes the in-flight record, if any. Calling Finish more than
// once is a no-op.
func (p *Parser) Finish() error {
	if p.finished {
		return nil
	}
	p.finished = true
	if p.pending != awaitNone {
		p.stats.LookaheadMismatches++
		p.contribute("")
	}
	if !p.inRecord {
		return nil
	}
	return p.flush()
}

// Records returns the number of PATN tags seen so far.
func (p *Parser) Records() int {
	return p.records
}

// Stats returns the diagnostics gathered so far.
func (p *Parser) Stats() ParseStats {
	return p.stats
}

// resolveLookahead handles the line following INVT, ASSG or UREF. It
// returns true when the line was the expected sub-line and has been
// consumed; otherwise an empty value is contributed and the caller
// dispatches the line normally.
func (p *Parser) resolveLookahead(line string) bool {
	want := tagName
	if p.pending == awaitReferenceNumber {
		want = tagPatentNumber
	}
	if !HasPrefix(line, want) {
		p.stats.LookaheadMismatches++
		p.contribute("")
		return false
	}
	p.contribute(ExtractField(line, valueOffset))
	return true
}

// contribute appends a lookahead value to the field selected by the
// pending state and clears it.
func (p *Parser) contribute(value string) {
	switch p.pending {
	case awaitInventorName:
		if value != "" {
			value = FormatPersonName(value)
		}
		p.cur.record.Inventors = AppendMultiValue(p.cur.record.Inventors, value)
	case awaitAssigneeName:
		// only person assignees carry the "Last; First" separator
		if value != "" && strings.Contains(value, ";") {
			value = FormatPersonName(value)
		}
		p.cur.record.Assignees = AppendMultiValue(p.cur.record.Assignees, value)
	case awaitReferenceNumber:
		p.cur.record.References = AppendMultiValue(p.cur.record.References, FilterAlnum(value))
	}
	p.pending = awaitNone
}

// dispatch applies the first matching transition for line.
func (p *Parser) dispatch(line string) error {
	switch {
	case HasPrefix(line, tagPatent):
		return p.startRecord()
	case p.inRecord && HasPrefix(line, tagTitle):
		p.cur.record.Title = ExtractField(line, valueOffset)
	case p.inRecord && HasPrefix(line, tagID):
		p.cur.record.ID = ExtractField(line, valueOffset)
	case p.inRecord && !p.cur.gotApplicationDate && HasPrefix(line, tagApplicationDate):
		p.cur.record.ApplicationDate = ExtractField(line, valueOffset)
		p.cur.gotApplicationDate = true
	case p.inRecord && !p.cur.gotIssueDate && HasPrefix(line, tagIssueDate):
		p.cur.record.IssueDate = ExtractField(line, valueOffset)
		p.cur.gotIssueDate = true
	case p.inRecord && HasPrefix(line, tagInventor):
		p.pending = awaitInventorName
	case p.inRecord && HasPrefix(line, tagAssignee):
		p.pending = awaitAssigneeName
	case p.inRecord && HasPrefix(line, tagClass):
		p.cur.record.ClassCodes = AppendMultiValue(p.cur.record.ClassCodes, ExtractField(line, valueOffset))
	case p.inRecord && HasPrefix(line, tagReference):
		p.pending = awaitReferenceNumber
	case p.inRecord && (HasPrefix(line, tagClaims) || HasPrefix(line, tagDesignClaims)):
		p.cur.inClaims = true
	case p.inRecord && p.cur.inClaims && HasPrefix(line, tagStatement):
		p.cur.record.Claims = Trim(ExtractField(line, valueOffset))
		p.stats.ClaimsLines++
	case p.inRecord && p.cur.inClaims && HasPrefix(line, tagNumber):
		// claim numbers stay inside the claims section
	case p.inRecord && p.cur.inClaims && isClaimsContinuation(line):
		p.cur.record.Claims += Trim(ExtractField(line, valueOffset))
		p.stats.ClaimsLines++
	default:
		p.cur.inClaims = false
		p.stats.UnmatchedLines++
	}
	return nil
}

func isClaimsContinuation(line string) bool {
	return HasPrefix(line, tagParagraph) ||
		HasPrefix(line, tagParagraphIndent) ||
		HasPrefix(line, tagParagraphLevel) ||
		HasPrefix(line, tagContinuation)
}

// startRecord handles a PATN boundary: the previous record is flushed
// (if there was one) and accumulator state is rebuilt from zero.
func (p *Parser) startRecord() error {
	if p.inRecord {
		if err := p.flush(); err != nil {
			return err
		}
	}
	p.cur = recordState{}
	p.inRecord = true
	p.records++
	return nil
}

func (p *Parser) flush() error {
	rec := p.cur.record.Sanitized()
	p.cur = recordState{}
	return p.sink.WriteRecord(rec)
}
