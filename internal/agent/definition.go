package agent

import (
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/iq-workshop/builder/internal/ontology"
)

const (
	ModeFull       = "full"
	ModeSearchOnly = "search"

	ToolExecuteSQL      = "execute_sql"
	ToolSearchDocuments = "search_documents"
)

// Definition is everything the chat harness needs to run the orchestrator
// agent: the model, the routing instructions and the function tools.
type Definition struct {
	Model        string
	Instructions string
	Tools        []openai.Tool
}

// BuildDefinition assembles the agent definition. cfg supplies the table
// schema for the SQL tool instructions and may be nil in search-only mode.
func BuildDefinition(model string, cfg *ontology.Config, mode string) *Definition {
	return &Definition{
		Model:        model,
		Instructions: buildInstructions(cfg, mode),
		Tools:        ToolsForMode(mode),
	}
}

// ToolsForMode returns the function tool schemas the agent exposes.
func ToolsForMode(mode string) []openai.Tool {
	if mode == ModeSearchOnly {
		return []openai.Tool{searchDocumentsTool()}
	}
	return []openai.Tool{executeSQLTool(), searchDocumentsTool()}
}

func executeSQLTool() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionDefinition{
			Name:        ToolExecuteSQL,
			Description: "Run a read-only T-SQL query against the lakehouse tables. Returns the result set as a markdown table, capped at 50 rows.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"sql_query": {
						Type:        jsonschema.String,
						Description: "The T-SQL query to execute.",
					},
				},
				Required: []string{"sql_query"},
			},
		},
	}
}

func searchDocumentsTool() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionDefinition{
			Name:        ToolSearchDocuments,
			Description: "Search the policy and operations documents and return the most relevant passages with their source and section.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"query": {
						Type:        jsonschema.String,
						Description: "Natural language search query.",
					},
					"top": {
						Type:        jsonschema.Integer,
						Description: "Number of passages to return. Defaults to 3, maximum 10.",
					},
				},
				Required: []string{"query"},
			},
		},
	}
}

func buildInstructions(cfg *ontology.Config, mode string) string {
	var b strings.Builder

	solution := "the workshop"
	if cfg != nil && cfg.Name != "" {
		solution = cfg.Name
	}
	fmt.Fprintf(&b, "You are an analytics assistant for %s.\n\n", solution)

	if mode == ModeSearchOnly {
		b.WriteString("You have one tool:\n")
		b.WriteString("- search_documents: retrieves passages from the policy and operations documents.\n\n")
		b.WriteString("Routing rules:\n")
		b.WriteString("- For questions about rules, procedures, thresholds or definitions, call search_documents and answer from the passages it returns.\n")
		b.WriteString("- Cite the document title and section for every claim taken from a passage.\n")
		b.WriteString("- If no relevant passage is found, say so. Do not invent policy details.\n")
		return b.String()
	}

	b.WriteString("You have two tools:\n")
	b.WriteString("- execute_sql: runs T-SQL against the lakehouse tables. Use it for counts, totals, averages, rankings and anything else that needs the structured data.\n")
	b.WriteString("- search_documents: retrieves passages from the policy and operations documents. Use it for rules, procedures, thresholds and definitions.\n\n")
	b.WriteString("Routing rules:\n")
	b.WriteString("- Quantitative questions: call execute_sql.\n")
	b.WriteString("- Policy or procedure questions: call search_documents.\n")
	b.WriteString("- Combined questions that compare data against a documented rule or threshold: call both tools, then reconcile the results in your answer.\n")
	b.WriteString("- Cite the document title and section for every claim taken from a passage.\n")
	b.WriteString("- If a query fails, show the error and suggest a corrected query instead of guessing at results.\n")

	if cfg != nil {
		b.WriteString("\n")
		b.WriteString(ontology.BuildSchemaPrompt(cfg))
	}

	return b.String()
}
