package datagen

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iq-workshop/builder/internal/llm"
	"github.com/iq-workshop/builder/internal/ontology"
)

func validSpec() *llm.DatasetSpec {
	return &llm.DatasetSpec{
		Ontology: ontology.Config{
			Scenario:    "logistics",
			Name:        "Fleet Management",
			Description: "Fleet ops",
			Tables: map[string]ontology.Table{
				"vehicles": {
					Columns: []string{"vehicle_id", "vehicle_type", "capacity"},
					Types: map[string]string{
						"vehicle_id":   "String",
						"vehicle_type": "String",
						"capacity":     "BigInt",
					},
					Key: "vehicle_id",
				},
			},
		},
		Tables: map[string]llm.TableData{
			"vehicles": {Rows: [][]string{
				{"VEH001", "Van", "100"},
				{"VEH002", "Truck", "2000"},
			}},
		},
		Documents: []llm.DocumentSpec{
			{
				Title:    "Delivery Operations Manual",
				Filename: "delivery_operations",
				Sections: []llm.DocSection{
					{Heading: "1. Scheduling", Content: "Requests need 48 hours notice."},
				},
			},
		},
		Questions: llm.QuestionSet{
			SQL:      []string{"How many vans are in the fleet?"},
			Document: []string{"What is the scheduling notice period?"},
			Combined: []string{"Which requests missed the 48 hour notice window?"},
		},
	}
}

func TestValidateSpecAcceptsValidSpec(t *testing.T) {
	require.NoError(t, validateSpec(validSpec()))
}

func TestValidateSpecRejectsRowWidthMismatch(t *testing.T) {
	spec := validSpec()
	spec.Tables["vehicles"] = llm.TableData{Rows: [][]string{{"VEH001", "Van"}}}

	err := validateSpec(spec)
	assert.ErrorContains(t, err, "row 1 has 2 values but 3 columns")
}

func TestValidateSpecRejectsMissingTableRows(t *testing.T) {
	spec := validSpec()
	delete(spec.Tables, "vehicles")
	spec.Tables["orders"] = llm.TableData{Rows: [][]string{{"1"}}}

	assert.Error(t, validateSpec(spec))
}

func TestValidateSpecRejectsUndeclaredTable(t *testing.T) {
	spec := validSpec()
	spec.Tables["warehouses"] = llm.TableData{Rows: [][]string{{"W1", "x", "y"}}}

	assert.ErrorContains(t, validateSpec(spec), "warehouses")
}

func TestValidateSpecRequiresAllQuestionSections(t *testing.T) {
	spec := validSpec()
	spec.Questions.Combined = nil

	assert.ErrorContains(t, validateSpec(spec), "three sections")
}

func TestRunStopsWhenContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := NewGenerator(nil, nil, t.TempDir(), filepath.Join(t.TempDir(), ".env"))
	_, err := gen.Run(ctx, Params{Industry: "logistics", UseCase: "fleet", Size: "small"})

	require.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, err.Error(), "after 3 attempts")
}

func TestWriteDatasetLayout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "20260101_000000_logistics")
	require.NoError(t, WriteDataset(dir, validSpec(), `{"raw": true}`))

	csvData, err := os.ReadFile(filepath.Join(dir, "tables", "vehicles.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(csvData), "vehicle_id,vehicle_type,capacity")
	assert.Contains(t, string(csvData), "VEH001,Van,100")

	_, err = os.Stat(filepath.Join(dir, "config", "ontology_config.json"))
	require.NoError(t, err)

	questions, err := os.ReadFile(filepath.Join(dir, "config", "sample_questions.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(questions), "=== SQL QUESTIONS (Fabric Data) ===")
	assert.Contains(t, string(questions), "=== COMBINED INSIGHT QUESTIONS ===")

	doc, err := os.ReadFile(filepath.Join(dir, "documents", "delivery_operations.html"))
	require.NoError(t, err)
	assert.Contains(t, string(doc), "<h1>Delivery Operations Manual</h1>")
	assert.Contains(t, string(doc), "<h2>1. Scheduling</h2>")

	raw, err := os.ReadFile(filepath.Join(dir, "_raw_model_output.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"raw": true}`, string(raw))
}

func TestFormatAndParseQuestionsRoundTrip(t *testing.T) {
	content := FormatQuestions(llm.QuestionSet{
		SQL:      []string{"q1"},
		Document: []string{"q2"},
		Combined: []string{"Which deliveries exceeded the limit?", "What share met the SLA?"},
	})

	combined := ParseCombinedQuestions(content)
	assert.Equal(t, []string{
		"Which deliveries exceeded the limit?",
		"What share met the SLA?",
	}, combined)
}

func TestParseCombinedQuestionsStopsAtNextSection(t *testing.T) {
	content := "=== COMBINED INSIGHT QUESTIONS ===\n- one\n=== SQL QUESTIONS (Fabric Data) ===\n- not this\n"
	assert.Equal(t, []string{"one"}, ParseCombinedQuestions(content))
}
