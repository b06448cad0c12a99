package fabric

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// IDs records the Fabric items provisioned for one dataset. The file lives
// in the dataset's config folder so switching DATA_FOLDER switches items.
type IDs struct {
	LakehouseID   string `json:"lakehouse_id"`
	LakehouseName string `json:"lakehouse_name"`
	OntologyID    string `json:"ontology_id"`
	OntologyName  string `json:"ontology_name"`
	SolutionName  string `json:"solution_name"`
	DataAgentID   string `json:"data_agent_id,omitempty"`
	DataAgentName string `json:"data_agent_name,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func idsPath(dataFolder string) string {
	return filepath.Join(dataFolder, "config", "fabric_ids.json")
}

func LoadIDs(dataFolder string) (*IDs, error) {
	data, err := os.ReadFile(idsPath(dataFolder))
	if err != nil {
		return nil, fmt.Errorf("failed to read fabric_ids.json (run the create-fabric-items step first): %w", err)
	}

	var ids IDs
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("failed to parse fabric_ids.json: %w", err)
	}
	return &ids, nil
}

func (i *IDs) Save(dataFolder string) error {
	data, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal fabric ids: %w", err)
	}
	if err := os.WriteFile(idsPath(dataFolder), data, 0644); err != nil {
		return fmt.Errorf("failed to write fabric_ids.json: %w", err)
	}
	return nil
}
