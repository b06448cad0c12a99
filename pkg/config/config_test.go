package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)

	assert.Equal(t, "https://api.fabric.microsoft.com/v1", cfg.Fabric.BaseURL)
	assert.Equal(t, 300, cfg.Fabric.LROTimeout)
	assert.Equal(t, "azure", cfg.LLM.Provider)
	assert.Equal(t, 1536, cfg.LLM.EmbeddingDim)
	assert.Equal(t, 1536, cfg.Vector.Dim)
	assert.Equal(t, "small", cfg.Data.Size)
	assert.Equal(t, "demo", cfg.Data.SolutionName)
	assert.False(t, cfg.Neo4j.Enabled)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadEnvFile(t *testing.T) {
	path := writeEnv(t, `FABRIC_WORKSPACE_ID=ws-123
DATA_FOLDER=/tmp/data/20240101_retail
INDUSTRY=Retail
USECASE=Inventory management
DATA_SIZE=medium
EMBEDDING_DIM=3072
NEO4J_ENABLED=true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ws-123", cfg.Fabric.WorkspaceID)
	assert.Equal(t, "/tmp/data/20240101_retail", cfg.Data.Folder)
	assert.Equal(t, "Retail", cfg.Data.Industry)
	assert.Equal(t, "Inventory management", cfg.Data.UseCase)
	assert.Equal(t, "medium", cfg.Data.Size)
	assert.Equal(t, 3072, cfg.LLM.EmbeddingDim)
	assert.Equal(t, 3072, cfg.Vector.Dim)
	assert.True(t, cfg.Neo4j.Enabled)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope", ".env"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Fabric.WorkspaceID)
}

func TestSetEnvValueUpdatesExistingKey(t *testing.T) {
	path := writeEnv(t, "INDUSTRY=Retail\nDATA_FOLDER=/old/path\nDATA_SIZE=small\n")

	require.NoError(t, SetEnvValue(path, "DATA_FOLDER", "/new/path"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "INDUSTRY=Retail\nDATA_FOLDER=/new/path\nDATA_SIZE=small\n", string(content))
}

func TestSetEnvValueAppendsMissingKey(t *testing.T) {
	path := writeEnv(t, "INDUSTRY=Energy\n")

	require.NoError(t, SetEnvValue(path, "FABRIC_AGENT_ID", "agent-42"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "INDUSTRY=Energy\nFABRIC_AGENT_ID=agent-42\n", string(content))
}

func TestSetEnvValueCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")

	require.NoError(t, SetEnvValue(path, "DATA_FOLDER", "/data/run1"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "DATA_FOLDER=/data/run1\n", string(content))
}
