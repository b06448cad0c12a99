package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// IDs persists the orchestrator agent definition to
// config/agent_ids.json so the chat harness can pick it up later. Tool
// schemas are rebuilt from Mode at load time.
type IDs struct {
	AgentID      string `json:"agent_id"`
	AgentName    string `json:"agent_name"`
	Mode         string `json:"mode"`
	Model        string `json:"model"`
	Instructions string `json:"instructions"`
	CreatedAt    string `json:"created_at"`
}

func idsFilePath(dataFolder string) string {
	return filepath.Join(dataFolder, "config", "agent_ids.json")
}

func LoadIDs(dataFolder string) (*IDs, error) {
	raw, err := os.ReadFile(idsFilePath(dataFolder))
	if err != nil {
		return nil, fmt.Errorf("failed to read agent_ids.json, run the create-agent step first: %w", err)
	}

	var ids IDs
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("failed to parse agent_ids.json: %w", err)
	}
	return &ids, nil
}

func (a *IDs) Save(dataFolder string) error {
	raw, err := json.MarshalIndent(a, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal agent ids: %w", err)
	}

	path := idsFilePath(dataFolder)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write agent_ids.json: %w", err)
	}
	return nil
}

// Definition rebuilds the full agent definition from the persisted record.
func (a *IDs) Definition() *Definition {
	return &Definition{
		Model:        a.Model,
		Instructions: a.Instructions,
		Tools:        ToolsForMode(a.Mode),
	}
}
