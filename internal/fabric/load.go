package fabric

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/iq-workshop/builder/internal/ontology"
	"github.com/iq-workshop/builder/internal/storage/sqlite"
	"github.com/iq-workshop/builder/pkg/logger"
)

// Loader runs the load-data step: upload the dataset CSVs to the lakehouse
// Files area, load each into a delta table, and mirror the same tables into
// the local warehouse for the chat SQL tool.
type Loader struct {
	client    *Client
	onelake   *OneLakeClient
	warehouse *sqlite.Warehouse
}

func NewLoader(client *Client, onelake *OneLakeClient, warehouse *sqlite.Warehouse) *Loader {
	return &Loader{client: client, onelake: onelake, warehouse: warehouse}
}

func (l *Loader) Run(ctx context.Context, dataFolder string) error {
	cfg, err := ontology.Load(filepath.Join(dataFolder, "config", "ontology_config.json"))
	if err != nil {
		return err
	}

	ids, err := LoadIDs(dataFolder)
	if err != nil {
		return err
	}

	workspaceName, err := l.client.GetWorkspaceName(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve workspace name: %w", err)
	}

	tablesDir := filepath.Join(dataFolder, "tables")

	for _, tableName := range cfg.TableNames() {
		csvName := tableName + ".csv"
		csvPath := filepath.Join(tablesDir, csvName)

		data, err := os.ReadFile(csvPath)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", csvPath, err)
		}

		if err := l.onelake.UploadFile(ctx, workspaceName, ids.LakehouseName, csvName, data); err != nil {
			return err
		}

		if err := l.client.LoadTable(ctx, ids.LakehouseID, tableName, "Files/"+csvName); err != nil {
			return err
		}

		logger.Info("Table loaded to lakehouse",
			zap.String("table", tableName),
			zap.Int("bytes", len(data)),
		)
	}

	if l.warehouse != nil {
		for _, tableName := range cfg.TableNames() {
			table := cfg.Tables[tableName]
			rows, err := l.warehouse.LoadCSV(tableName, filepath.Join(tablesDir, tableName+".csv"), table.Types)
			if err != nil {
				return fmt.Errorf("failed to mirror table %q: %w", tableName, err)
			}
			logger.Debug("Table mirrored locally",
				zap.String("table", tableName),
				zap.Int("rows", rows),
			)
		}
	}

	return nil
}
