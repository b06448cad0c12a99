package sqlite

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/iq-workshop/builder/pkg/logger"
)

// Warehouse mirrors the lakehouse tables locally so chat sessions can run SQL
// without a round trip to the Fabric SQL endpoint.
type Warehouse struct {
	client *Client
}

const maxQueryRows = 50

func NewWarehouse(client *Client) *Warehouse {
	return &Warehouse{client: client}
}

// LoadCSV (re)creates a table named after the CSV header and bulk-inserts all
// rows. Column types come from the ontology config; columns it does not
// mention land as TEXT.
func (w *Warehouse) LoadCSV(tableName, csvPath string, columnTypes map[string]string) (int, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", csvPath, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read header of %s: %w", csvPath, err)
	}

	cols := make([]string, len(header))
	for i, name := range header {
		sqlType := "TEXT"
		switch strings.ToLower(columnTypes[name]) {
		case "int", "integer", "bool", "boolean":
			sqlType = "INTEGER"
		case "num", "number", "float", "decimal":
			sqlType = "REAL"
		}
		cols[i] = fmt.Sprintf("%q %s", name, sqlType)
	}

	if _, err := w.client.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %q", tableName)); err != nil {
		return 0, fmt.Errorf("failed to drop table %s: %w", tableName, err)
	}
	createStmt := fmt.Sprintf("CREATE TABLE %q (%s)", tableName, strings.Join(cols, ", "))
	if _, err := w.client.db.Exec(createStmt); err != nil {
		return 0, fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(header)), ",")
	insertStmt := fmt.Sprintf("INSERT INTO %q VALUES (%s)", tableName, placeholders)

	tx, err := w.client.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertStmt)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("failed to parse row %d of %s: %w", count+1, csvPath, err)
		}
		args := make([]interface{}, len(record))
		for i, v := range record {
			args[i] = v
		}
		if _, err := stmt.Exec(args...); err != nil {
			return 0, fmt.Errorf("failed to insert row %d of %s: %w", count+1, tableName, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit %s: %w", tableName, err)
	}

	logger.Info("Table loaded into local warehouse",
		zap.String("table", tableName),
		zap.Int("rows", count),
	)
	return count, nil
}

// Query runs a read-only statement and renders the result as a markdown
// table, truncated so the model never gets an unbounded dump.
func (w *Warehouse) Query(query string) (string, error) {
	trimmed := strings.TrimSpace(strings.ToLower(query))
	if !strings.HasPrefix(trimmed, "select") && !strings.HasPrefix(trimmed, "with") {
		return "", fmt.Errorf("only SELECT statements are allowed, got: %.40s", query)
	}

	rows, err := w.client.db.Query(query)
	if err != nil {
		return "", fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("failed to read columns: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("| " + strings.Join(cols, " | ") + " |\n")
	sb.WriteString("|" + strings.Repeat(" --- |", len(cols)) + "\n")

	values := make([]interface{}, len(cols))
	scanArgs := make([]interface{}, len(cols))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	count := 0
	truncated := false
	for rows.Next() {
		if count >= maxQueryRows {
			truncated = true
			break
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return "", fmt.Errorf("failed to scan row: %w", err)
		}

		cells := make([]string, len(cols))
		for i, v := range values {
			switch val := v.(type) {
			case nil:
				cells[i] = "NULL"
			case []byte:
				cells[i] = string(val)
			default:
				cells[i] = fmt.Sprintf("%v", val)
			}
		}
		sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		count++
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to iterate rows: %w", err)
	}

	if count == 0 {
		return "(no rows)", nil
	}
	if truncated {
		sb.WriteString(fmt.Sprintf("\n(first %d rows shown)\n", maxQueryRows))
	}
	return sb.String(), nil
}

// Tables lists the user tables currently loaded into the warehouse.
func (w *Warehouse) Tables() ([]string, error) {
	rows, err := w.client.db.Query(
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		   AND name NOT IN ('runs', 'run_steps', 'datasets', 'documents', 'document_chunks', 'chat_history', 'kv')
		 ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
