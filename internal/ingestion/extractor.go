package ingestion

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is the extracted text of one source file, split into the
// sections that will be chunked and indexed.
type Document struct {
	Path     string
	Title    string
	Format   string
	Sections []Section
}

type Section struct {
	Heading string
	Text    string
}

var whitespaceRE = regexp.MustCompile(`\s+`)

func normalizeWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(text, " "))
}

// SupportedFormat reports whether ReadDocument can handle the file.
func SupportedFormat(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".md", ".txt":
		return true
	}
	return false
}

// ReadDocument extracts title and section text from an HTML, Markdown or
// plain text file.
func ReadDocument(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".html", ".htm":
		return parseHTML(path, string(raw))
	case ".md":
		return parseMarkdown(path, string(raw))
	case ".txt":
		return parsePlainText(path, string(raw))
	default:
		return nil, fmt.Errorf("unsupported document format %q", ext)
	}
}

func fallbackTitle(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func parseHTML(path, html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	title := normalizeWhitespace(doc.Find("title").First().Text())
	if title == "" {
		title = normalizeWhitespace(doc.Find("h1").First().Text())
	}
	if title == "" {
		title = fallbackTitle(path)
	}

	body := doc.Find("body")
	var sections []Section

	headings := body.Find("h2")
	if headings.Length() == 0 {
		// No section headings, index the body as one block. The h1 is the
		// title, keep it out of the text.
		clone := body.Clone()
		clone.Find("h1, title").Remove()
		if text := normalizeWhitespace(clone.Text()); text != "" {
			sections = append(sections, Section{Text: text})
		}
	} else {
		headings.Each(func(i int, s *goquery.Selection) {
			heading := normalizeWhitespace(s.Text())
			text := normalizeWhitespace(s.NextUntil("h2").Text())
			if text == "" {
				return
			}
			sections = append(sections, Section{Heading: heading, Text: text})
		})
	}

	if len(sections) == 0 {
		return nil, fmt.Errorf("no content extracted from %s", filepath.Base(path))
	}

	return &Document{
		Path:     path,
		Title:    title,
		Format:   "html",
		Sections: sections,
	}, nil
}

func parseMarkdown(path, content string) (*Document, error) {
	title := ""
	var sections []Section

	heading := ""
	var buf []string

	flush := func() {
		text := normalizeWhitespace(strings.Join(buf, " "))
		buf = nil
		if text == "" {
			return
		}
		sections = append(sections, Section{Heading: heading, Text: text})
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "# "):
			if title == "" {
				title = strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
			}
		case strings.HasPrefix(trimmed, "## "):
			flush()
			heading = strings.TrimSpace(strings.TrimPrefix(trimmed, "## "))
		default:
			buf = append(buf, trimmed)
		}
	}
	flush()

	if title == "" {
		title = fallbackTitle(path)
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("no content extracted from %s", filepath.Base(path))
	}

	return &Document{
		Path:     path,
		Title:    title,
		Format:   "markdown",
		Sections: sections,
	}, nil
}

func parsePlainText(path, content string) (*Document, error) {
	text := normalizeWhitespace(content)
	if text == "" {
		return nil, fmt.Errorf("no content extracted from %s", filepath.Base(path))
	}

	return &Document{
		Path:     path,
		Title:    fallbackTitle(path),
		Format:   "text",
		Sections: []Section{{Text: text}},
	}, nil
}
