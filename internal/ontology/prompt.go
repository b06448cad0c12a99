package ontology

import (
	"fmt"
	"strings"
)

var typeAbbrev = map[string]string{
	"String":   "str",
	"BigInt":   "int",
	"Double":   "num",
	"Boolean":  "bool",
	"DateTime": "date",
}

func abbreviate(fabricType string) string {
	if abbrev, ok := typeAbbrev[fabricType]; ok {
		return abbrev
	}
	if len(fabricType) > 3 {
		return strings.ToLower(fabricType[:3])
	}
	return strings.ToLower(fabricType)
}

// BuildSchemaPrompt renders the compact NL2SQL schema block embedded in agent
// instructions. Key columns are starred; types are abbreviated to keep the
// token count down.
func BuildSchemaPrompt(cfg *Config) string {
	var lines []string
	lines = append(lines, "=== DATABASE SCHEMA ===", "")

	for _, tableName := range cfg.TableNames() {
		table := cfg.Tables[tableName]
		cols := make([]string, 0, len(table.Columns))
		for _, col := range table.Columns {
			marker := ""
			if col == table.Key {
				marker = "*"
			}
			cols = append(cols, fmt.Sprintf("%s%s:%s", col, marker, abbreviate(table.ColumnType(col))))
		}
		lines = append(lines, fmt.Sprintf("%s(%s)", tableName, strings.Join(cols, ", ")))
	}

	if len(cfg.Relationships) > 0 {
		lines = append(lines, "", "JOINS:")
		for _, rel := range cfg.Relationships {
			lines = append(lines, fmt.Sprintf("  %s.%s -> %s.%s", rel.From, rel.FromKey, rel.To, rel.ToKey))
		}
	}

	lines = append(lines, "",
		"RULES:",
		"- Use T-SQL syntax",
		"- Key columns marked with *",
		"- Types: str=string, int=integer, num=decimal",
	)

	return strings.Join(lines, "\n")
}

// BuildDataAgentInstructions produces the instruction text attached to the
// Fabric data agent definition.
func BuildDataAgentInstructions(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("You answer questions about %s data using SQL over the lakehouse tables.\n\n", cfg.Name))

	sb.WriteString("Entities:\n")
	for _, name := range cfg.TableNames() {
		table := cfg.Tables[name]
		sb.WriteString(fmt.Sprintf("- %s (key: %s, %d columns)\n", name, table.Key, len(table.Columns)))
	}

	if len(cfg.Relationships) > 0 {
		sb.WriteString("\nRelationships:\n")
		for _, rel := range cfg.Relationships {
			sb.WriteString(fmt.Sprintf("- %s: %s.%s -> %s.%s\n", rel.Name, rel.From, rel.FromKey, rel.To, rel.ToKey))
		}
	}

	sb.WriteString("\n")
	sb.WriteString(BuildSchemaPrompt(cfg))

	return sb.String()
}
