package fabric

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/iq-workshop/builder/internal/ontology"
	"github.com/iq-workshop/builder/pkg/logger"
)

// SuffixStore persists the item name suffix across runs. A clean run bumps
// the suffix instead of deleting items, since deleted display names stay
// reserved in Fabric for a while.
type SuffixStore interface {
	GetValue(key string) (string, error)
	SetValue(key, value string) error
}

const suffixKey = "fabric_item_suffix"

// Setup provisions the lakehouse and ontology for one dataset (the
// create-fabric-items step).
type Setup struct {
	client       *Client
	store        SuffixStore
	solutionName string
}

func NewSetup(client *Client, store SuffixStore, solutionName string) *Setup {
	if solutionName == "" {
		solutionName = "demo"
	}
	return &Setup{client: client, store: store, solutionName: solutionName}
}

func (s *Setup) itemSuffix(clean bool) (int, error) {
	suffix := 1
	if value, err := s.store.GetValue(suffixKey); err != nil {
		return 0, err
	} else if value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("corrupt suffix value %q: %w", value, err)
		}
		suffix = parsed
	}

	if clean {
		suffix++
		logger.Info("Clean run, bumping item suffix", zap.Int("suffix", suffix))
	}

	if err := s.store.SetValue(suffixKey, strconv.Itoa(suffix)); err != nil {
		return 0, err
	}
	return suffix, nil
}

// Run finds or creates the lakehouse and ontology and writes
// config/fabric_ids.json into the dataset folder.
func (s *Setup) Run(ctx context.Context, dataFolder string, clean bool) (*IDs, error) {
	cfg, err := ontology.Load(filepath.Join(dataFolder, "config", "ontology_config.json"))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ontology config: %w", err)
	}

	suffix, err := s.itemSuffix(clean)
	if err != nil {
		return nil, err
	}

	lakehouseName := fmt.Sprintf("%s_lakehouse_%d", s.solutionName, suffix)
	ontologyName := fmt.Sprintf("%s_ontology_%d", s.solutionName, suffix)

	lakehouse, err := s.ensureLakehouse(ctx, lakehouseName)
	if err != nil {
		return nil, err
	}

	ont, err := s.ensureOntology(ctx, cfg, ontologyName, lakehouse.ID)
	if err != nil {
		return nil, err
	}

	ids := &IDs{
		LakehouseID:   lakehouse.ID,
		LakehouseName: lakehouseName,
		OntologyID:    ont.ID,
		OntologyName:  ontologyName,
		SolutionName:  s.solutionName,
		CreatedAt:     time.Now().Format(time.RFC3339),
	}
	if err := ids.Save(dataFolder); err != nil {
		return nil, err
	}

	return ids, nil
}

func (s *Setup) ensureLakehouse(ctx context.Context, name string) (*Item, error) {
	existing, err := s.client.FindItem(ctx, "Lakehouse", name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		logger.Info("Using existing lakehouse",
			zap.String("name", name),
			zap.String("id", existing.ID),
		)
		return existing, nil
	}

	item, err := s.client.CreateItem(ctx, map[string]string{
		"displayName": name,
		"type":        "Lakehouse",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create lakehouse: %w", err)
	}

	logger.Info("Lakehouse created",
		zap.String("name", name),
		zap.String("id", item.ID),
	)
	return item, nil
}

func (s *Setup) ensureOntology(ctx context.Context, cfg *ontology.Config, name, lakehouseID string) (*Item, error) {
	existing, err := s.client.FindOntology(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		logger.Info("Using existing ontology",
			zap.String("name", name),
			zap.String("id", existing.ID),
		)
		return existing, nil
	}

	parts := BuildOntologyDefinition(cfg, s.client.workspaceID, lakehouseID, name)
	description := fmt.Sprintf("Ontology for %s scenario", cfg.Name)

	item, err := s.client.CreateOntology(ctx, name, description, parts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ontology: %w", err)
	}

	logger.Info("Ontology created",
		zap.String("name", name),
		zap.String("id", item.ID),
		zap.Int("definition_parts", len(parts)),
	)
	return item, nil
}
