package agent

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iq-workshop/builder/internal/ontology"
	"github.com/iq-workshop/builder/pkg/logger"
)

// Create runs the create-agent step: build the orchestrator definition and
// persist it under the dataset folder. searchOnly drops the SQL tool so the
// agent works without any Fabric items.
func Create(dataFolder, model string, searchOnly bool) (*IDs, error) {
	mode := ModeFull
	var cfg *ontology.Config

	if searchOnly {
		mode = ModeSearchOnly
	} else {
		var err error
		cfg, err = ontology.Load(filepath.Join(dataFolder, "config", "ontology_config.json"))
		if err != nil {
			return nil, err
		}
	}

	def := BuildDefinition(model, cfg, mode)

	name := "orchestrator_agent"
	if mode == ModeSearchOnly {
		name = "search_agent"
	}

	ids := &IDs{
		AgentID:      uuid.NewString(),
		AgentName:    name,
		Mode:         mode,
		Model:        def.Model,
		Instructions: def.Instructions,
		CreatedAt:    time.Now().Format(time.RFC3339),
	}
	if err := ids.Save(dataFolder); err != nil {
		return nil, err
	}

	logger.Info("Agent definition created",
		zap.String("agent_id", ids.AgentID),
		zap.String("mode", mode),
		zap.Int("tools", len(def.Tools)),
	)

	return ids, nil
}
