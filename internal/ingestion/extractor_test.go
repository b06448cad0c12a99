package ingestion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadDocumentHTMLSections(t *testing.T) {
	html := `<!DOCTYPE html>
<html>
<head><title>Fleet Safety Policy</title></head>
<body>
<h1>Fleet Safety Policy</h1>
<h2>Driver Requirements</h2>
<p>All drivers must hold a valid commercial license.</p>
<p>Annual safety training is mandatory.</p>
<h2>Vehicle Inspections</h2>
<p>Vehicles are inspected every 5,000 kilometers.</p>
<script>console.log("ignored")</script>
</body>
</html>`

	doc, err := ReadDocument(writeDoc(t, "policy.html", html))
	require.NoError(t, err)

	assert.Equal(t, "Fleet Safety Policy", doc.Title)
	assert.Equal(t, "html", doc.Format)
	require.Len(t, doc.Sections, 2)

	assert.Equal(t, "Driver Requirements", doc.Sections[0].Heading)
	assert.Contains(t, doc.Sections[0].Text, "valid commercial license")
	assert.Contains(t, doc.Sections[0].Text, "Annual safety training")
	assert.NotContains(t, doc.Sections[0].Text, "console.log")

	assert.Equal(t, "Vehicle Inspections", doc.Sections[1].Heading)
}

func TestReadDocumentHTMLWithoutHeadings(t *testing.T) {
	html := `<html><body><h1>Notes</h1><p>A single block of text.</p></body></html>`

	doc, err := ReadDocument(writeDoc(t, "notes.html", html))
	require.NoError(t, err)

	assert.Equal(t, "Notes", doc.Title)
	require.Len(t, doc.Sections, 1)
	assert.Empty(t, doc.Sections[0].Heading)
	assert.Equal(t, "A single block of text.", doc.Sections[0].Text)
}

func TestReadDocumentMarkdown(t *testing.T) {
	md := `# Maintenance Handbook

Intro paragraph before any section.

## Scheduling

Work orders are issued weekly.

## Parts

Spare parts ship from the central depot.
`

	doc, err := ReadDocument(writeDoc(t, "handbook.md", md))
	require.NoError(t, err)

	assert.Equal(t, "Maintenance Handbook", doc.Title)
	assert.Equal(t, "markdown", doc.Format)
	require.Len(t, doc.Sections, 3)

	assert.Empty(t, doc.Sections[0].Heading)
	assert.Equal(t, "Intro paragraph before any section.", doc.Sections[0].Text)
	assert.Equal(t, "Scheduling", doc.Sections[1].Heading)
	assert.Equal(t, "Parts", doc.Sections[2].Heading)
}

func TestReadDocumentPlainText(t *testing.T) {
	doc, err := ReadDocument(writeDoc(t, "readme.txt", "Plain   text\ncontent here.\n"))
	require.NoError(t, err)

	assert.Equal(t, "readme", doc.Title)
	assert.Equal(t, "text", doc.Format)
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "Plain text content here.", doc.Sections[0].Text)
}

func TestReadDocumentRejectsEmpty(t *testing.T) {
	_, err := ReadDocument(writeDoc(t, "empty.txt", "   \n"))
	assert.ErrorContains(t, err, "no content")
}

func TestSupportedFormat(t *testing.T) {
	assert.True(t, SupportedFormat("a.html"))
	assert.True(t, SupportedFormat("a.MD"))
	assert.True(t, SupportedFormat("a.txt"))
	assert.False(t, SupportedFormat("a.pdf"))
	assert.False(t, SupportedFormat("a.csv"))
}
