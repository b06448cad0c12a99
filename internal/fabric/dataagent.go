package fabric

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/iq-workshop/builder/internal/ontology"
	"github.com/iq-workshop/builder/pkg/config"
	"github.com/iq-workshop/builder/pkg/logger"
)

// EnsureDataAgent runs the create-data-agent step: find or create the
// DataAgent item, point its definition at the ontology, and record the agent
// id in fabric_ids.json and .env.
func (c *Client) EnsureDataAgent(ctx context.Context, dataFolder, envPath string) (*IDs, error) {
	ids, err := LoadIDs(dataFolder)
	if err != nil {
		return nil, err
	}
	if ids.OntologyID == "" {
		return nil, fmt.Errorf("fabric_ids.json has no ontology id, run the create-fabric-items step first")
	}

	cfg, err := ontology.Load(filepath.Join(dataFolder, "config", "ontology_config.json"))
	if err != nil {
		return nil, err
	}

	baseName := ids.SolutionName + "_dataagent"

	agent, err := c.FindItem(ctx, "DataAgent", baseName)
	if err != nil {
		return nil, err
	}
	if agent != nil {
		logger.Info("Using existing data agent",
			zap.String("name", agent.DisplayName),
			zap.String("id", agent.ID),
		)
	} else {
		description := fmt.Sprintf("Data Agent for %s Ontology", ids.SolutionName)
		agent, err = c.CreateDataAgent(ctx, baseName, description)
		if err != nil {
			return nil, err
		}
		logger.Info("Data agent created",
			zap.String("name", agent.DisplayName),
			zap.String("id", agent.ID),
		)
	}

	agentConfig := map[string]interface{}{
		"version":      "1.0",
		"instructions": ontology.BuildDataAgentInstructions(cfg),
		"dataSources": []map[string]string{
			{
				"type":        "Ontology",
				"workspaceId": c.workspaceID,
				"itemId":      ids.OntologyID,
			},
		},
	}

	parts := []DefinitionPart{
		{
			Path:        "dataAgent.json",
			Payload:     b64JSON(agentConfig),
			PayloadType: "InlineBase64",
		},
	}

	if err := c.UpdateItemDefinition(ctx, agent.ID, parts); err != nil {
		return nil, fmt.Errorf("failed to configure data agent: %w", err)
	}

	ids.DataAgentID = agent.ID
	ids.DataAgentName = agent.DisplayName
	if ids.DataAgentName == "" {
		ids.DataAgentName = baseName
	}
	if err := ids.Save(dataFolder); err != nil {
		return nil, err
	}

	if err := config.SetEnvValue(envPath, "FABRIC_AGENT_ID", agent.ID); err != nil {
		return nil, fmt.Errorf("failed to update FABRIC_AGENT_ID: %w", err)
	}

	return ids, nil
}
