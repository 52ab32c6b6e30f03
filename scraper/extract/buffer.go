package extract

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Buffer is rendered page text indexed by line. Lines are kept trimmed;
// their normalised form is computed once on demand.
type Buffer struct {
	lines []string
	norm  []string
}

// NewBuffer splits text into lines.
func NewBuffer(text string) *Buffer {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = strings.TrimSpace(l)
	}
	return &Buffer{lines: lines}
}

// BufferFromHTML renders the visible text of an HTML document, one text
// node per line, skipping scripts and styles.
func BufferFromHTML(r io.Reader) (*Buffer, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("extract: parse html: %w", err)
	}
	doc.Find("script, style, noscript, template").Remove()

	var lines []string
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				if t := collapseSpace(c.Text()); t != "" {
					lines = append(lines, t)
				}
				return
			}
			walk(c)
		})
	}
	walk(doc.Find("body"))

	return &Buffer{lines: lines}, nil
}

// Len returns the number of lines.
func (b *Buffer) Len() int { return len(b.lines) }

// Line returns line i, or "" when i is out of range.
func (b *Buffer) Line(i int) string {
	if i < 0 || i >= len(b.lines) {
		return ""
	}
	return b.lines[i]
}

// Normalized returns the accent-stripped, lower-cased form of line i.
func (b *Buffer) Normalized(i int) string {
	if b.norm == nil {
		b.norm = make([]string, len(b.lines))
		for j, l := range b.lines {
			b.norm[j] = Normalize(l)
		}
	}
	if i < 0 || i >= len(b.norm) {
		return ""
	}
	return b.norm[i]
}

// Window joins lines [from, to) clamped to the buffer bounds.
func (b *Buffer) Window(from, to int) string {
	if from < 0 {
		from = 0
	}
	if to > len(b.lines) {
		to = len(b.lines)
	}
	if from >= to {
		return ""
	}
	return strings.Join(b.lines[from:to], "\n")
}

// Text returns the whole buffer.
func (b *Buffer) Text() string {
	return strings.Join(b.lines, "\n")
}

// Normalize removes diacritics and lower-cases s, so "México" and "mexico"
// compare equal.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
