package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iq-workshop/builder/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	require.NoError(t, client.InitSchema())
	t.Cleanup(func() { client.Close() })

	return client
}

func TestRunLifecycle(t *testing.T) {
	client := newTestClient(t)

	run := &models.Run{
		ID:        "run-1",
		Industry:  "telecommunications",
		UseCase:   "network operations",
		Size:      "small",
		Status:    models.RunStatusRunning,
		StartedAt: time.Now(),
	}
	require.NoError(t, client.CreateRun(run))

	started := time.Now()
	ended := started.Add(2 * time.Second)
	require.NoError(t, client.RecordStep(&models.RunStep{
		RunID:     "run-1",
		StepID:    "01",
		Status:    models.StepStatusOK,
		StartedAt: started,
		EndedAt:   &ended,
	}))
	require.NoError(t, client.RecordStep(&models.RunStep{
		RunID:     "run-1",
		StepID:    "02",
		Status:    models.StepStatusFailed,
		Error:     "lakehouse creation timed out",
		StartedAt: ended,
	}))
	require.NoError(t, client.FinishRun("run-1", models.RunStatusFailed))

	steps, err := client.GetRunSteps("run-1")
	require.NoError(t, err)
	require.Len(t, steps, 2)

	assert.Equal(t, "01", steps[0].StepID)
	assert.Equal(t, models.StepStatusOK, steps[0].Status)
	require.NotNil(t, steps[0].EndedAt)

	assert.Equal(t, "02", steps[1].StepID)
	assert.Equal(t, models.StepStatusFailed, steps[1].Status)
	assert.Equal(t, "lakehouse creation timed out", steps[1].Error)
	assert.Nil(t, steps[1].EndedAt)
}

func TestSaveDatasetUpsertsByFolder(t *testing.T) {
	client := newTestClient(t)

	ds := &models.Dataset{
		ID:         "ds-1",
		Folder:     "data/20260101_telecom",
		Industry:   "telecommunications",
		Size:       "small",
		TableCount: 3,
		DocCount:   2,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, client.SaveDataset(ds))

	ds.TableCount = 5
	require.NoError(t, client.SaveDataset(ds))
}

func TestKVRoundTrip(t *testing.T) {
	client := newTestClient(t)

	value, err := client.GetValue("missing")
	require.NoError(t, err)
	assert.Equal(t, "", value)

	require.NoError(t, client.SetValue("item_suffix", "2"))
	require.NoError(t, client.SetValue("item_suffix", "3"))

	value, err = client.GetValue("item_suffix")
	require.NoError(t, err)
	assert.Equal(t, "3", value)
}

func TestSaveChunks(t *testing.T) {
	client := newTestClient(t)

	require.NoError(t, client.SaveDocument(&models.Document{
		ID:        "doc-1",
		Path:      "documents/maintenance_guide.html",
		Title:     "Maintenance Guide",
		Format:    "html",
		CreatedAt: time.Now(),
	}))

	chunks := []*models.DocumentChunk{
		{ID: "c-1", DocID: "doc-1", ChunkIndex: 0, Text: "first", CreatedAt: time.Now()},
		{ID: "c-2", DocID: "doc-1", ChunkIndex: 1, Text: "second", CreatedAt: time.Now()},
	}
	require.NoError(t, client.SaveChunks(chunks))
	// re-running the same batch replaces rather than failing
	require.NoError(t, client.SaveChunks(chunks))
}
