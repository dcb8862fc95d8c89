package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPrefix(t *testing.T) {
	assert.True(t, HasPrefix("PATN", "PATN"))
	assert.True(t, HasPrefix("TTL  Widget", "TTL  "))
	assert.False(t, HasPrefix("TTL Widget", "TTL  "))
	assert.False(t, HasPrefix("patn", "PATN"))
	assert.False(t, HasPrefix("PA", "PATN"))
	assert.True(t, HasPrefix("", ""))
}

func TestTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		leading  string
		trailing string
		both     string
	}{
		{"empty", "", "", "", ""},
		{"all whitespace", " \t\r\n ", "", "", ""},
		{"no whitespace", "abc", "abc", "abc", "abc"},
		{"both ends", "\t abc def \r\n", "abc def \r\n", "\t abc def", "abc def"},
		{"inner kept", "a  b", "a  b", "a  b", "a  b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.leading, TrimLeading(tt.input))
			assert.Equal(t, tt.trailing, TrimTrailing(tt.input))
			assert.Equal(t, tt.both, Trim(tt.input))
		})
	}
}

func TestExtractField(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		start int
		want  string
	}{
		{"tagged value", "TTL  Rotary engine  ", 5, "Rotary engine"},
		{"tag only", "WKU  ", 5, ""},
		{"offset at end", "STM ", 4, ""},
		{"offset past end", "STM", 5, ""},
		{"negative offset", "TTL  x", -1, ""},
		{"carriage return", "ISD  19760106\r", 5, "19760106"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractField(tt.line, tt.start))
		})
	}
}

func TestFormatPersonName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Smith; John", "John Smith"},
		{"Acme Corp", "Acme Corp"},
		{"Smith;", "Smith;"},
		{"Smith;J", "J Smith"},
		{"Smith;  John", " John Smith"},
		{"van der Berg; Anna M.", "Anna M. van der Berg"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatPersonName(tt.input))
		})
	}
}

func TestAppendMultiValue(t *testing.T) {
	acc := ""
	acc = AppendMultiValue(acc, "first")
	assert.Equal(t, "first", acc)
	acc = AppendMultiValue(acc, "second")
	acc = AppendMultiValue(acc, "third")
	assert.Equal(t, "first;second;third", acc)

	// empty values still take a slot
	assert.Equal(t, "a;", AppendMultiValue("a", ""))
}

func TestFilterAlnum(t *testing.T) {
	assert.Equal(t, "US4123456", FilterAlnum("US 4,123,456*"))
	assert.Equal(t, "", FilterAlnum(" ,.-*"))
	assert.Equal(t, "RE28671", FilterAlnum("RE28,671"))
	assert.Equal(t, "abc", FilterAlnum("aébüc"))
}

func TestStripQuoteChars(t *testing.T) {
	assert.Equal(t, "a  quoted  value", StripQuoteChars(`a "quoted" value`))
	assert.Equal(t, "inventor s device", StripQuoteChars("inventor's device"))
	assert.Equal(t, "commas, stay", StripQuoteChars("commas, stay"))
}
