// Package bulkdata locates and downloads the weekly grant full-text
// archives published on the USPTO bulk data site.
package bulkdata

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the root of the grant full-text redbook archives.
	DefaultBaseURL = "https://bulkdata.uspto.gov/data/patent/grant/redbook/fulltext/"

	// FirstYear is the first year with full-text grant archives.
	FirstYear = 1976
	// LastTXTYear is the last year published in the fixed-tag TXT format.
	LastTXTYear = 2001
	// MaxWeek is the highest week number a year can have.
	MaxWeek = 53
)

var (
	// ErrFutureDate is returned when a week's grant Tuesday has not happened yet.
	ErrFutureDate = errors.New("grant date is in the future")
	// ErrDateOutOfRange is returned when a week number runs past the end of its year.
	ErrDateOutOfRange = errors.New("grant date exceeds the year")
	// ErrInvalidWeek is returned for week numbers outside 1..53.
	ErrInvalidWeek = errors.New("invalid week number")
)

// Format is the archive layout published for a given year.
type Format string

const (
	FormatUnknown Format = "unknown"
	FormatTXT     Format = "txt"  // 1976-2001 fixed-tag text
	FormatXML1    Format = "xml1" // 2002-2004 SGML-derived XML
	FormatXML2    Format = "xml2" // 2005 onwards
)

// ArchiveRef identifies one weekly archive.
type ArchiveRef struct {
	Year   int
	Week   int
	Date   time.Time // grant Tuesday
	Name   string    // base name without extension
	Member string    // file inside the zip
	Format Format
}

// ZipName is the file name of the published zip.
func (r ArchiveRef) ZipName() string {
	return r.Name + ".zip"
}

// String implements fmt.Stringer.
func (r ArchiveRef) String() string {
	return fmt.Sprintf("%d/wk%02d (%s)", r.Year, r.Week, r.Name)
}

// GrantTuesday returns the issue date of week `week` of `year`: grants are
// published every Tuesday, so week 1 is the first Tuesday of the year.
func GrantTuesday(year, week int, now time.Time) (time.Time, error) {
	if week < 1 || week > MaxWeek {
		return time.Time{}, fmt.Errorf("week %d: %w", week, ErrInvalidWeek)
	}

	first := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	for first.Weekday() != time.Tuesday {
		first = first.AddDate(0, 0, 1)
	}
	tues := first.AddDate(0, 0, 7*(week-1))

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if tues.After(today) {
		return time.Time{}, fmt.Errorf("week %d of %d: %w", week, year, ErrFutureDate)
	}
	if tues.Year() != year {
		return time.Time{}, fmt.Errorf("week %d of %d: %w", week, year, ErrDateOutOfRange)
	}
	return tues, nil
}

// ArchiveName resolves the archive published for week `week` of `year`.
func ArchiveName(year, week int, now time.Time) (ArchiveRef, error) {
	date, err := GrantTuesday(year, week, now)
	if err != nil {
		return ArchiveRef{}, err
	}

	ref := ArchiveRef{Year: year, Week: week, Date: date}
	switch {
	case year <= LastTXTYear:
		ref.Name = fmt.Sprintf("pftaps%s_wk%02d", date.Format("20060102"), week)
		ref.Member = ref.Name + ".txt"
		ref.Format = FormatTXT
	case year < 2005:
		ref.Name = "pg" + date.Format("060102")
		ref.Member = ref.Name + ".xml"
		ref.Format = FormatXML1
	default:
		ref.Name = "ipg" + date.Format("060102")
		ref.Member = ref.Name + ".xml"
		ref.Format = FormatXML2
	}
	return ref, nil
}

// ArchiveURL returns the download URL of ref under base.
func ArchiveURL(base string, ref ArchiveRef) string {
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return fmt.Sprintf("%s%d/%s", base, ref.Year, ref.ZipName())
}
