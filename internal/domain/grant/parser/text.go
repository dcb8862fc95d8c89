package parser

import "strings"

// HasPrefix reports whether text begins with prefix (byte exact, case sensitive).
func HasPrefix(text, prefix string) bool {
	return strings.HasPrefix(text, prefix)
}

func isEdgeSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// TrimLeading removes spaces, tabs, carriage returns and newlines from the start of text.
func TrimLeading(text string) string {
	start := 0
	for start < len(text) && isEdgeSpace(text[start]) {
		start++
	}
	return text[start:]
}

// TrimTrailing removes spaces, tabs, carriage returns and newlines from the end of text.
func TrimTrailing(text string) string {
	end := len(text)
	for end > 0 && isEdgeSpace(text[end-1]) {
		end--
	}
	return text[:end]
}

// Trim removes edge whitespace from both ends of text.
func Trim(text string) string {
	return TrimTrailing(TrimLeading(text))
}

// ExtractField returns the trimmed remainder of a tagged line starting at
// offset start. An offset outside the line yields an empty field.
func ExtractField(line string, start int) string {
	if start < 0 || start > len(line) {
		return ""
	}
	return Trim(line[start:])
}

// FormatPersonName rewrites "Last; First" as "First Last".
// Names without a separator, or with nothing after it, are returned unchanged.
func FormatPersonName(name string) string {
	sep := strings.IndexByte(name, ';')
	if sep < 0 || len(name) < sep+2 {
		return name
	}
	last := name[:sep]
	// archive data writes "Last; First"; drop the one space after the separator
	first := strings.TrimPrefix(name[sep+1:], " ")
	return first + " " + last
}

// AppendMultiValue joins value onto a semicolon separated accumulator.
func AppendMultiValue(acc, value string) string {
	if acc == "" {
		return value
	}
	return acc + ";" + value
}

// FilterAlnum keeps only ASCII letters and digits.
func FilterAlnum(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

var quoteReplacer = strings.NewReplacer(`"`, " ", `'`, " ")

// StripQuoteChars replaces double and single quotes with spaces so the value
// can sit inside a quoted CSV column. It is not general CSV escaping.
func StripQuoteChars(text string) string {
	return quoteReplacer.Replace(text)
}
