package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "table.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

func TestLoadCSVCreatesTypedTable(t *testing.T) {
	client := newTestClient(t)
	wh := NewWarehouse(client)

	path := writeCSV(t,
		"tower_id,region,height_m,active",
		"T-001,north,45.5,1",
		"T-002,south,38.0,0",
	)

	rows, err := wh.LoadCSV("towers", path, map[string]string{
		"height_m": "num",
		"active":   "bool",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, rows)

	result, err := wh.Query("SELECT tower_id, height_m FROM towers WHERE active = 1")
	require.NoError(t, err)
	assert.Contains(t, result, "T-001")
	assert.Contains(t, result, "45.5")
	assert.NotContains(t, result, "T-002")
}

func TestLoadCSVReplacesExistingTable(t *testing.T) {
	client := newTestClient(t)
	wh := NewWarehouse(client)

	first := writeCSV(t, "id,name", "1,alpha")
	_, err := wh.LoadCSV("things", first, nil)
	require.NoError(t, err)

	second := writeCSV(t, "id,name", "2,beta")
	rows, err := wh.LoadCSV("things", second, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rows)

	result, err := wh.Query("SELECT name FROM things")
	require.NoError(t, err)
	assert.Contains(t, result, "beta")
	assert.NotContains(t, result, "alpha")
}

func TestLoadCSVRejectsMalformedRow(t *testing.T) {
	client := newTestClient(t)
	wh := NewWarehouse(client)

	path := writeCSV(t,
		"id,name",
		"1,alpha",
		`2,be"ta`,
		"3,gamma",
	)

	_, err := wh.LoadCSV("things", path, nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to parse")

	// Nothing was committed for the bad file.
	result, err := wh.Query("SELECT id FROM things")
	require.NoError(t, err)
	assert.Equal(t, "(no rows)", result)
}

func TestQueryRejectsWrites(t *testing.T) {
	client := newTestClient(t)
	wh := NewWarehouse(client)

	_, err := wh.Query("DROP TABLE runs")
	assert.Error(t, err)

	_, err = wh.Query("INSERT INTO kv VALUES ('a', 'b', 0)")
	assert.Error(t, err)
}

func TestQueryTruncatesLongResults(t *testing.T) {
	client := newTestClient(t)
	wh := NewWarehouse(client)

	lines := []string{"id"}
	for i := 0; i < 80; i++ {
		lines = append(lines, fmt.Sprintf("%d", i))
	}
	path := writeCSV(t, lines...)
	_, err := wh.LoadCSV("wide", path, map[string]string{"id": "int"})
	require.NoError(t, err)

	result, err := wh.Query("SELECT id FROM wide ORDER BY id")
	require.NoError(t, err)
	assert.Contains(t, result, "first 50 rows shown")
}

func TestTablesExcludesStateStore(t *testing.T) {
	client := newTestClient(t)
	wh := NewWarehouse(client)

	path := writeCSV(t, "id,name", "1,alpha")
	_, err := wh.LoadCSV("customers", path, nil)
	require.NoError(t, err)

	tables, err := wh.Tables()
	require.NoError(t, err)
	assert.Equal(t, []string{"customers"}, tables)
}
