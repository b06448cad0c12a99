package datagen

import (
	"encoding/csv"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/iq-workshop/builder/internal/llm"
	"github.com/iq-workshop/builder/pkg/logger"
	"github.com/iq-workshop/builder/pkg/utils"
)

// WriteDataset materializes a validated dataset spec into the standard
// folder layout:
//
//	<dataDir>/
//	    config/     ontology_config.json, sample_questions.txt
//	    tables/     one CSV per table
//	    documents/  one HTML file per policy document
//
// The raw model output is kept next to them for debugging failed runs.
func WriteDataset(dataDir string, spec *llm.DatasetSpec, rawOutput string) error {
	configDir := filepath.Join(dataDir, "config")
	tablesDir := filepath.Join(dataDir, "tables")
	documentsDir := filepath.Join(dataDir, "documents")

	for _, dir := range []string{configDir, tablesDir, documentsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	for _, name := range spec.Ontology.TableNames() {
		table := spec.Ontology.Tables[name]
		data := spec.Tables[name]
		if err := writeCSV(filepath.Join(tablesDir, name+".csv"), table.Columns, data.Rows); err != nil {
			return err
		}
	}

	if err := spec.Ontology.Save(filepath.Join(configDir, "ontology_config.json")); err != nil {
		return err
	}

	questions := FormatQuestions(spec.Questions)
	if err := os.WriteFile(filepath.Join(configDir, "sample_questions.txt"), []byte(questions), 0644); err != nil {
		return fmt.Errorf("failed to write sample questions: %w", err)
	}

	for _, doc := range spec.Documents {
		name := doc.Filename
		if name == "" {
			name = utils.Slug(doc.Title, 40)
		}
		path := filepath.Join(documentsDir, name+".html")
		if err := os.WriteFile(path, []byte(renderDocument(doc)), 0644); err != nil {
			return fmt.Errorf("failed to write document %s: %w", name, err)
		}
	}

	if rawOutput != "" {
		if err := os.WriteFile(filepath.Join(dataDir, "_raw_model_output.json"), []byte(rawOutput), 0644); err != nil {
			return fmt.Errorf("failed to save raw model output: %w", err)
		}
	}

	logger.Info("Dataset written",
		zap.String("folder", dataDir),
		zap.Int("tables", len(spec.Tables)),
		zap.Int("documents", len(spec.Documents)),
	)

	return nil
}

func writeCSV(path string, columns []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", path, err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row of %s: %w", path, err)
		}
	}
	w.Flush()
	return w.Error()
}

// FormatQuestions renders the three-section sample_questions.txt consumed by
// the chat harness.
func FormatQuestions(q llm.QuestionSet) string {
	var sb strings.Builder

	writeSection := func(header string, questions []string) {
		sb.WriteString(header + "\n")
		for _, question := range questions {
			sb.WriteString("- " + question + "\n")
		}
		sb.WriteString("\n")
	}

	writeSection("=== SQL QUESTIONS (Fabric Data) ===", q.SQL)
	writeSection("=== DOCUMENT QUESTIONS (AI Search) ===", q.Document)
	writeSection("=== COMBINED INSIGHT QUESTIONS ===", q.Combined)

	return sb.String()
}

// ParseCombinedQuestions extracts the COMBINED section from a
// sample_questions.txt, the questions that best demonstrate multi-tool calls.
func ParseCombinedQuestions(content string) []string {
	var questions []string
	inSection := false

	for _, line := range strings.Split(content, "\n") {
		if strings.Contains(line, "COMBINED INSIGHT QUESTIONS") {
			inSection = true
			continue
		}
		if inSection {
			if strings.HasPrefix(line, "===") {
				break
			}
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "- ") {
				questions = append(questions, trimmed[2:])
			}
		}
	}

	return questions
}

func renderDocument(doc llm.DocumentSpec) string {
	var sb strings.Builder

	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	sb.WriteString(fmt.Sprintf("<title>%s</title>\n", html.EscapeString(doc.Title)))
	sb.WriteString("</head>\n<body>\n")
	sb.WriteString(fmt.Sprintf("<h1>%s</h1>\n", html.EscapeString(doc.Title)))

	for _, section := range doc.Sections {
		sb.WriteString(fmt.Sprintf("<h2>%s</h2>\n", html.EscapeString(section.Heading)))
		sb.WriteString(fmt.Sprintf("<p>%s</p>\n", html.EscapeString(section.Content)))
	}

	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}
