// Package fakegrant generates synthetic grant archives in the fixed-tag TXT
// format for tests and benchmarks.
package fakegrant

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// Patent is a generated patent together with the values a converter is
// expected to produce for it.
type Patent struct {
	ID              string
	Title           string
	ApplicationDate string
	IssueDate       string
	Inventors       []Person
	Assignees       []string
	ClassCodes      []string
	References      []string // as written in the archive, punctuation included
	ClaimFragments  []string
}

// Person is an inventor name.
type Person struct {
	First string
	Last  string
}

// Archived renders the name the way the archive stores it.
func (p Person) Archived() string {
	return p.Last + "; " + p.First
}

// Display renders the name as "First Last".
func (p Person) Display() string {
	return p.First + " " + p.Last
}

// ExpectedInventors is the semicolon joined inventor column.
func (p Patent) ExpectedInventors() string {
	names := make([]string, len(p.Inventors))
	for i, inv := range p.Inventors {
		names[i] = inv.Display()
	}
	return strings.Join(names, ";")
}

// ExpectedReferences is the semicolon joined, alphanumeric-only reference column.
func (p Patent) ExpectedReferences() string {
	refs := make([]string, len(p.References))
	for i, ref := range p.References {
		refs[i] = strings.Map(func(r rune) rune {
			if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				return r
			}
			return -1
		}, ref)
	}
	return strings.Join(refs, ";")
}

// ExpectedClaims is the concatenated claims column.
func (p Patent) ExpectedClaims() string {
	return strings.Join(p.ClaimFragments, "")
}

// Lines renders the patent as archive lines, starting with PATN.
func (p Patent) Lines() []string {
	lines := []string{
		"PATN",
		"WKU  " + p.ID,
		"SRC  5",
		"APN  " + p.ID[3:],
		"APT  1",
		"ART  353",
		"APD  " + p.ApplicationDate,
		"TTL  " + p.Title,
		"ISD  " + p.IssueDate,
		"NCL  " + fmt.Sprint(len(p.ClaimFragments)),
	}
	for _, inv := range p.Inventors {
		lines = append(lines, "INVT", "NAM  "+inv.Archived(), "CTY  Springfield", "STA  IL")
	}
	for _, a := range p.Assignees {
		lines = append(lines, "ASSG", "NAM  "+a, "CTY  Chicago", "STA  IL", "COD  02")
	}
	lines = append(lines, "CLAS", "OCL  123 45")
	for _, c := range p.ClassCodes {
		lines = append(lines, "ICL  "+c)
	}
	for _, ref := range p.References {
		lines = append(lines, "UREF", "PNO  "+ref, "ISD  196501", "NAM  Doe", "OCL  123 45")
	}
	lines = append(lines, "ABST", "PAL  An abstract that is not part of the claims.")
	if len(p.ClaimFragments) > 0 {
		lines = append(lines, "CLMS", "STM  "+p.ClaimFragments[0], "NUM  1.")
		for _, frag := range p.ClaimFragments[1:] {
			lines = append(lines, "PAR  "+frag)
		}
	}
	return lines
}

// TestDataGenerator generates synthetic patents using gofakeit.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

// NewTestDataGenerator creates a generator with a random seed.
func NewTestDataGenerator() *TestDataGenerator {
	return &TestDataGenerator{faker: gofakeit.New(0)}
}

// NewTestDataGeneratorWithSeed creates a generator with a fixed seed for reproducibility.
func NewTestDataGeneratorWithSeed(seed int64) *TestDataGenerator {
	return &TestDataGenerator{faker: gofakeit.New(seed)}
}

// Patent generates one patent. Generated text never contains quote
// characters so expectations can be compared verbatim.
func (g *TestDataGenerator) Patent() Patent {
	issued := g.faker.DateRange(
		time.Date(1976, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2001, 12, 31, 0, 0, 0, 0, time.UTC),
	)
	applied := issued.AddDate(0, -g.faker.Number(6, 48), 0)

	p := Patent{
		ID:              "0" + g.faker.Numerify("#######") + g.faker.Numerify("#"),
		Title:           g.clean(strings.TrimSuffix(g.faker.Sentence(g.faker.Number(3, 10)), ".")),
		ApplicationDate: applied.Format("20060102"),
		IssueDate:       issued.Format("20060102"),
	}
	for i := 0; i < g.faker.Number(1, 4); i++ {
		p.Inventors = append(p.Inventors, Person{
			First: g.clean(g.faker.FirstName()),
			Last:  g.clean(g.faker.LastName()),
		})
	}
	for i := 0; i < g.faker.Number(0, 2); i++ {
		p.Assignees = append(p.Assignees, g.clean(g.faker.Company()))
	}
	for i := 0; i < g.faker.Number(1, 3); i++ {
		p.ClassCodes = append(p.ClassCodes, g.faker.Numerify("A0#B ##/##"))
	}
	for i := 0; i < g.faker.Number(0, 5); i++ {
		p.References = append(p.References, g.faker.Numerify("#,###,###"))
	}
	for i := 0; i < g.faker.Number(1, 4); i++ {
		p.ClaimFragments = append(p.ClaimFragments, g.clean(g.faker.Sentence(g.faker.Number(4, 16))))
	}
	return p
}

// Patents generates count patents.
func (g *TestDataGenerator) Patents(count int) []Patent {
	out := make([]Patent, count)
	for i := range out {
		out[i] = g.Patent()
	}
	return out
}

// Archive renders patents as a complete archive, preceded by the file
// header line the real weekly files carry.
func Archive(patents []Patent) string {
	var b strings.Builder
	b.WriteString("HHHHHT APS1\n")
	for _, p := range patents {
		for _, line := range p.Lines() {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

var quoteStripper = strings.NewReplacer(`"`, "", `'`, "", ";", "")

func (g *TestDataGenerator) clean(s string) string {
	return strings.TrimSpace(quoteStripper.Replace(s))
}
