package ingestion

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SearchIDs records what the upload-documents step put into the vector
// index, written to config/search_ids.json in the dataset folder.
type SearchIDs struct {
	CollectionName string `json:"collection_name"`
	VectorDim      int    `json:"vector_dim"`
	DocumentCount  int    `json:"document_count"`
	ChunkCount     int    `json:"chunk_count"`
	CreatedAt      string `json:"created_at"`
}

func searchIDsPath(dataFolder string) string {
	return filepath.Join(dataFolder, "config", "search_ids.json")
}

func LoadSearchIDs(dataFolder string) (*SearchIDs, error) {
	raw, err := os.ReadFile(searchIDsPath(dataFolder))
	if err != nil {
		return nil, fmt.Errorf("failed to read search_ids.json, run the upload-documents step first: %w", err)
	}

	var ids SearchIDs
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("failed to parse search_ids.json: %w", err)
	}
	return &ids, nil
}

func (s *SearchIDs) Save(dataFolder string) error {
	raw, err := json.MarshalIndent(s, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal search ids: %w", err)
	}

	path := searchIDsPath(dataFolder)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write search_ids.json: %w", err)
	}
	return nil
}
