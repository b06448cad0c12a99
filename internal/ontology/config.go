package ontology

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Config is the dataset ontology written by the data generation step and
// consumed by every step after it. Table columns keep their CSV order; the
// Types map uses Fabric value type names (String, BigInt, Double, Boolean,
// DateTime).
type Config struct {
	Scenario      string           `json:"scenario"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Tables        map[string]Table `json:"tables"`
	Relationships []Relationship   `json:"relationships,omitempty"`
}

type Table struct {
	Columns     []string          `json:"columns"`
	Types       map[string]string `json:"types"`
	Key         string            `json:"key"`
	SourceTable string            `json:"source_table,omitempty"`
}

type Relationship struct {
	Name    string `json:"name"`
	From    string `json:"from"`
	To      string `json:"to"`
	FromKey string `json:"fromKey"`
	ToKey   string `json:"toKey"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ontology config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse ontology config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal ontology config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write ontology config: %w", err)
	}
	return nil
}

// Validate checks the structural rules downstream steps rely on. The error
// messages feed back into the generation prompt on retry, so they name the
// offending table or relationship.
func (c *Config) Validate() error {
	if c.Scenario == "" {
		return fmt.Errorf("ontology config missing required key: scenario")
	}
	if c.Name == "" {
		return fmt.Errorf("ontology config missing required key: name")
	}
	if len(c.Tables) == 0 {
		return fmt.Errorf("ontology config missing required key: tables")
	}

	for name, table := range c.Tables {
		if len(table.Columns) == 0 {
			return fmt.Errorf("table %q declares no columns", name)
		}
		if table.Key == "" {
			return fmt.Errorf("table %q declares no key column", name)
		}
		if !table.hasColumn(table.Key) {
			return fmt.Errorf("table %q key %q is not a declared column", name, table.Key)
		}
	}

	for _, rel := range c.Relationships {
		from, ok := c.Tables[rel.From]
		if !ok {
			return fmt.Errorf("relationship %q references unknown table %q", rel.Name, rel.From)
		}
		to, ok := c.Tables[rel.To]
		if !ok {
			return fmt.Errorf("relationship %q references unknown table %q", rel.Name, rel.To)
		}
		if !from.hasColumn(rel.FromKey) {
			return fmt.Errorf("relationship %q: column %q not in table %q", rel.Name, rel.FromKey, rel.From)
		}
		if !to.hasColumn(rel.ToKey) {
			return fmt.Errorf("relationship %q: column %q not in table %q", rel.Name, rel.ToKey, rel.To)
		}
	}

	return nil
}

// TableNames returns the declared tables in stable order.
func (c *Config) TableNames() []string {
	names := make([]string, 0, len(c.Tables))
	for name := range c.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t Table) hasColumn(name string) bool {
	for _, col := range t.Columns {
		if col == name {
			return true
		}
	}
	return false
}

// ColumnType returns the declared type of a column, defaulting to String the
// same way the schema readers do.
func (t Table) ColumnType(name string) string {
	if typ, ok := t.Types[name]; ok && typ != "" {
		return typ
	}
	return "String"
}
