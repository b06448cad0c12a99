package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/iq-workshop/builder/internal/ontology"
	"github.com/iq-workshop/builder/pkg/circuitbreaker"
	"github.com/iq-workshop/builder/pkg/logger"
	"github.com/iq-workshop/builder/pkg/retry"
)

// Client mirrors the ontology into a Neo4j graph so the entity model can be
// explored visually. The graph is a convenience copy; Fabric stays the
// source of truth.
type Client struct {
	driver      neo4j.DriverWithContext
	database    string
	cb          *circuitbreaker.Breaker
	retryPolicy retry.Policy
}

func NewClient(uri, username, password, database string) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(
		uri,
		neo4j.BasicAuth(username, password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	ctx := context.Background()
	err = driver.VerifyConnectivity(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	cb := circuitbreaker.New("neo4j", circuitbreaker.Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      20 * time.Second,
		Logger:           logger.GetLogger(),
	})

	retryPolicy := retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    3 * time.Second,
		Jitter:      0.1,
		Logger:      logger.GetLogger(),
	}

	if database == "" {
		database = "neo4j"
	}

	logger.Info("Neo4j client initialized", zap.String("uri", uri))

	return &Client{
		driver:      driver,
		database:    database,
		cb:          cb,
		retryPolicy: retryPolicy,
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Client) executeWithRetry(ctx context.Context, operation func(neo4j.SessionWithContext) error) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryPolicy, func() error {
			session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
			defer session.Close(ctx)
			return operation(session)
		})
	})
}

// MirrorOntology upserts one EntityType node per table and one RELATES edge
// per relationship. Safe to run repeatedly; MERGE keeps it idempotent.
func (c *Client) MirrorOntology(ctx context.Context, cfg *ontology.Config) error {
	for _, tableName := range cfg.TableNames() {
		table := cfg.Tables[tableName]
		if err := c.mergeEntityType(ctx, cfg.Scenario, tableName, table); err != nil {
			return err
		}
	}

	for _, rel := range cfg.Relationships {
		if err := c.mergeRelationship(ctx, cfg.Scenario, rel); err != nil {
			return err
		}
	}

	logger.Info("Ontology mirrored to graph",
		zap.String("scenario", cfg.Scenario),
		zap.Int("entity_types", len(cfg.Tables)),
		zap.Int("relationships", len(cfg.Relationships)),
	)

	return nil
}

func (c *Client) mergeEntityType(ctx context.Context, scenario, name string, table ontology.Table) error {
	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MERGE (e:EntityType {scenario: $scenario, name: $name})
			SET e.key = $key,
			    e.columns = $columns,
			    e.updated_at = timestamp()
		`

		_, err := session.Run(ctx, query, map[string]interface{}{
			"scenario": scenario,
			"name":     name,
			"key":      table.Key,
			"columns":  table.Columns,
		})
		return err
	})

	if err != nil {
		return fmt.Errorf("failed to merge entity type %s: %w", name, err)
	}

	logger.Debug("Entity type mirrored", zap.String("name", name))
	return nil
}

func (c *Client) mergeRelationship(ctx context.Context, scenario string, rel ontology.Relationship) error {
	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MATCH (s:EntityType {scenario: $scenario, name: $from})
			MATCH (o:EntityType {scenario: $scenario, name: $to})
			MERGE (s)-[r:RELATES {name: $name}]->(o)
			SET r.from_key = $from_key,
			    r.to_key = $to_key,
			    r.updated_at = timestamp()
		`

		_, err := session.Run(ctx, query, map[string]interface{}{
			"scenario": scenario,
			"name":     rel.Name,
			"from":     rel.From,
			"to":       rel.To,
			"from_key": rel.FromKey,
			"to_key":   rel.ToKey,
		})
		return err
	})

	if err != nil {
		return fmt.Errorf("failed to merge relationship %s: %w", rel.Name, err)
	}

	logger.Debug("Relationship mirrored",
		zap.String("name", rel.Name),
		zap.String("from", rel.From),
		zap.String("to", rel.To),
	)
	return nil
}

// EntityTypes lists the mirrored entity type names for a scenario.
func (c *Client) EntityTypes(ctx context.Context, scenario string) ([]string, error) {
	var names []string

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		result, err := session.Run(ctx,
			`MATCH (e:EntityType {scenario: $scenario}) RETURN e.name ORDER BY e.name`,
			map[string]interface{}{"scenario": scenario},
		)
		if err != nil {
			return err
		}

		names = names[:0]
		for result.Next(ctx) {
			name, _ := result.Record().Get("e.name")
			if s, ok := name.(string); ok {
				names = append(names, s)
			}
		}
		return result.Err()
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list entity types: %w", err)
	}

	return names, nil
}
