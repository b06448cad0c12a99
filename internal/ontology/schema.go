package ontology

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/iq-workshop/builder/pkg/logger"
)

// Schema is the expanded form of the ontology written alongside the prompt
// for tooling that wants per-column type records rather than parallel lists.
type Schema struct {
	Name          string                 `json:"name"`
	Description   string                 `json:"description"`
	Tables        map[string]SchemaTable `json:"tables"`
	Relationships []Relationship         `json:"relationships"`
}

type SchemaTable struct {
	Columns []SchemaColumn `json:"columns"`
	Key     string         `json:"key"`
}

type SchemaColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func BuildSchema(cfg *Config) *Schema {
	schema := &Schema{
		Name:          cfg.Name,
		Description:   cfg.Description,
		Tables:        make(map[string]SchemaTable, len(cfg.Tables)),
		Relationships: cfg.Relationships,
	}

	for name, table := range cfg.Tables {
		cols := make([]SchemaColumn, 0, len(table.Columns))
		for _, col := range table.Columns {
			cols = append(cols, SchemaColumn{Name: col, Type: table.ColumnType(col)})
		}
		schema.Tables[name] = SchemaTable{Columns: cols, Key: table.Key}
	}

	return schema
}

// WritePromptFiles loads the ontology config from the dataset folder and
// writes config/schema_prompt.txt and config/schema.json next to it. It
// returns the path of the written prompt file.
func WritePromptFiles(dataFolder string) (string, error) {
	configDir := filepath.Join(dataFolder, "config")

	cfg, err := Load(filepath.Join(configDir, "ontology_config.json"))
	if err != nil {
		return "", err
	}
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("invalid ontology config: %w", err)
	}

	prompt := BuildSchemaPrompt(cfg)
	promptPath := filepath.Join(configDir, "schema_prompt.txt")
	if err := os.WriteFile(promptPath, []byte(prompt), 0644); err != nil {
		return "", fmt.Errorf("failed to write schema prompt: %w", err)
	}

	schemaData, err := json.MarshalIndent(BuildSchema(cfg), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal schema: %w", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "schema.json"), schemaData, 0644); err != nil {
		return "", fmt.Errorf("failed to write schema: %w", err)
	}

	logger.Info("Schema prompt generated",
		zap.String("path", promptPath),
		zap.Int("chars", len(prompt)),
	)

	return promptPath, nil
}
