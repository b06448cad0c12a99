package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/iq-workshop/builder/internal/ontology"
	"github.com/iq-workshop/builder/pkg/logger"
)

// DatasetSpec is the structured payload the model returns for data
// generation: the ontology, the actual rows, the policy documents, and the
// sample questions that the data was designed to answer.
type DatasetSpec struct {
	Ontology  ontology.Config      `json:"ontology"`
	Tables    map[string]TableData `json:"tables"`
	Documents []DocumentSpec       `json:"documents"`
	Questions QuestionSet          `json:"questions"`
}

type TableData struct {
	Rows [][]string `json:"rows"`
}

type DocumentSpec struct {
	Title    string       `json:"title"`
	Filename string       `json:"filename"`
	Sections []DocSection `json:"sections"`
}

type DocSection struct {
	Heading string `json:"heading"`
	Content string `json:"content"`
}

type QuestionSet struct {
	SQL      []string `json:"sql"`
	Document []string `json:"document"`
	Combined []string `json:"combined"`
}

type DatasetRequest struct {
	Industry      string
	UseCase       string
	PrimaryRows   int
	SecondaryRows int
	PreviousError string
}

const datasetSystemInstructions = `You are an expert data designer generating sample business data for a workshop.
Your output MUST be valid on the first try - workshop attendees cannot debug it.

CRITICAL RULES:
1. Every table row must have exactly as many values as the table declares columns
2. Design the questions FIRST, then the schema and data to answer them
3. Use only ASCII characters (no smart quotes, em dashes)
4. Return a single JSON object, nothing else`

const datasetPromptTemplate = `Generate a complete sample dataset for:

Industry: %s
Use Case: %s
Primary table rows: %d
Secondary table rows: %d

=== DATA AND QUESTIONS MUST ALIGN ===
FIRST design the questions you want to ask, THEN design the data schema to answer them:
- SQL questions need specific columns to query (counts, averages, filters, joins)
- Document questions need specific policies with numeric thresholds
- Combined questions need data values that can be compared against policy thresholds

Generate realistic, VARIED data:
- Dates should span realistic ranges (not all the same date)
- Numeric values need variance for meaningful analytics
- Categories should have a realistic weighted distribution

Return ONE JSON object with this exact shape:

{
  "ontology": {
    "scenario": "logistics",
    "name": "Fleet Management",
    "description": "Managing logistics fleet operations",
    "tables": {
      "vehicles": {
        "columns": ["vehicle_id", "vehicle_type", "capacity"],
        "types": {"vehicle_id": "String", "vehicle_type": "String", "capacity": "BigInt"},
        "key": "vehicle_id"
      }
    },
    "relationships": [
      {"name": "driver_vehicle", "from": "drivers", "to": "vehicles", "fromKey": "assigned_vehicle", "toKey": "vehicle_id"}
    ]
  },
  "tables": {
    "vehicles": {"rows": [["VEH001", "Van", "100"], ["VEH002", "Truck", "2000"]]}
  },
  "documents": [
    {
      "title": "Delivery Operations Manual",
      "filename": "delivery_operations",
      "sections": [
        {"heading": "1. Scheduling Requirements", "content": "All delivery requests must be submitted at least 48 hours before the requested delivery date. Rush orders may be accommodated with a 25 percent surcharge, subject to vehicle availability."}
      ]
    }
  ],
  "questions": {
    "sql": ["How many orders were placed last month?"],
    "document": ["What is our cancellation policy?"],
    "combined": ["Which deliveries exceeded the maximum transit time defined in the operations manual?"]
  }
}

REQUIREMENTS:
- "scenario" is lowercase with no spaces
- 2-3 related tables; primary tables get %d rows, secondary tables %d rows
- Column types are one of: String, BigInt, Double, Boolean, DateTime
- Every row is an array of strings matching the declared column order exactly
- 3 policy documents, 6-8 sections each, every section 50-80 words with specific
  numbers (percentages, hours, distances, fees, limits); no placeholders
- 5 questions per section (15 total)
- COMBINED questions must require BOTH a SQL query AND a document lookup:
  get data from SQL, compare against a rule or threshold from the documents
- Every question must be answerable from the data and documents you generate`

// GenerateDatasetSpec asks the model for a dataset spec. When a previous
// attempt failed, its error is appended so the model can correct itself.
func (c *Client) GenerateDatasetSpec(ctx context.Context, req DatasetRequest) (*DatasetSpec, string, error) {
	prompt := fmt.Sprintf(datasetPromptTemplate,
		req.Industry, req.UseCase,
		req.PrimaryRows, req.SecondaryRows,
		req.PrimaryRows, req.SecondaryRows,
	)

	if req.PreviousError != "" {
		prompt += fmt.Sprintf("\n\n=== PREVIOUS ATTEMPT FAILED ===\nError: %s\nPlease fix this issue in your new output.", req.PreviousError)
	}

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: datasetSystemInstructions,
		UserPrompt:   prompt,
		Temperature:  0.7,
		MaxTokens:    16000,
		JSONMode:     true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate dataset spec: %w", err)
	}

	spec, err := ParseDatasetSpec(resp.Content)
	if err != nil {
		return nil, resp.Content, err
	}

	logger.Info("Dataset spec generated",
		zap.String("industry", req.Industry),
		zap.Int("tables", len(spec.Tables)),
		zap.Int("documents", len(spec.Documents)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return spec, resp.Content, nil
}

// ParseDatasetSpec decodes a dataset spec, tolerating a markdown code fence
// around the JSON.
func ParseDatasetSpec(content string) (*DatasetSpec, error) {
	cleaned := StripCodeFence(content)

	var spec DatasetSpec
	if err := json.Unmarshal([]byte(cleaned), &spec); err != nil {
		return nil, fmt.Errorf("dataset spec is not valid JSON: %w", err)
	}

	return &spec, nil
}

// StripCodeFence removes a surrounding ``` block if the model wrapped its
// output in one despite instructions.
func StripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	lines := strings.Split(trimmed, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
