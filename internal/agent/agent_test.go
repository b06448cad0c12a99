package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iq-workshop/builder/internal/ontology"
)

func testOntology() *ontology.Config {
	return &ontology.Config{
		Scenario:    "logistics",
		Name:        "Fleet Management",
		Description: "Delivery fleet analytics",
		Tables: map[string]ontology.Table{
			"vehicles": {
				Columns: []string{"vehicle_id", "vehicle_type"},
				Types:   map[string]string{"vehicle_id": "String", "vehicle_type": "String"},
				Key:     "vehicle_id",
			},
		},
	}
}

func toolNames(def *Definition) []string {
	names := make([]string, 0, len(def.Tools))
	for _, tool := range def.Tools {
		names = append(names, tool.Function.Name)
	}
	return names
}

func TestBuildDefinitionFullMode(t *testing.T) {
	def := BuildDefinition("gpt-4o", testOntology(), ModeFull)

	assert.Equal(t, "gpt-4o", def.Model)
	assert.Equal(t, []string{ToolExecuteSQL, ToolSearchDocuments}, toolNames(def))

	assert.Contains(t, def.Instructions, "Fleet Management")
	assert.Contains(t, def.Instructions, "execute_sql")
	assert.Contains(t, def.Instructions, "call both tools")
	assert.Contains(t, def.Instructions, "=== DATABASE SCHEMA ===")
	assert.Contains(t, def.Instructions, "vehicles(vehicle_id*:str")
}

func TestBuildDefinitionSearchOnly(t *testing.T) {
	def := BuildDefinition("gpt-4o", nil, ModeSearchOnly)

	assert.Equal(t, []string{ToolSearchDocuments}, toolNames(def))
	assert.NotContains(t, def.Instructions, "execute_sql")
	assert.NotContains(t, def.Instructions, "DATABASE SCHEMA")
}

func TestCreatePersistsDefinition(t *testing.T) {
	folder := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(folder, "config"), 0o755))
	require.NoError(t, testOntology().Save(filepath.Join(folder, "config", "ontology_config.json")))

	ids, err := Create(folder, "gpt-4o", false)
	require.NoError(t, err)
	assert.NotEmpty(t, ids.AgentID)
	assert.Equal(t, ModeFull, ids.Mode)

	loaded, err := LoadIDs(folder)
	require.NoError(t, err)
	assert.Equal(t, ids.AgentID, loaded.AgentID)

	def := loaded.Definition()
	assert.Equal(t, "gpt-4o", def.Model)
	assert.Len(t, def.Tools, 2)
	assert.Contains(t, def.Instructions, "=== DATABASE SCHEMA ===")
}

func TestCreateSearchOnlyNeedsNoOntology(t *testing.T) {
	folder := t.TempDir()

	ids, err := Create(folder, "gpt-4o-mini", true)
	require.NoError(t, err)
	assert.Equal(t, ModeSearchOnly, ids.Mode)
	assert.Equal(t, "search_agent", ids.AgentName)

	loaded, err := LoadIDs(folder)
	require.NoError(t, err)
	assert.Len(t, loaded.Definition().Tools, 1)
}

func TestCreateFullModeRequiresOntologyConfig(t *testing.T) {
	_, err := Create(t.TempDir(), "gpt-4o", false)
	assert.Error(t, err)
}

func TestLoadIDsMissing(t *testing.T) {
	_, err := LoadIDs(t.TempDir())
	assert.ErrorContains(t, err, "create-agent")
}
