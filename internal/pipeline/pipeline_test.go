package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iq-workshop/builder/internal/storage/models"
	"github.com/iq-workshop/builder/internal/storage/sqlite"
)

func TestBuildPlanDefault(t *testing.T) {
	plan, err := BuildPlan(PlanOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"01", "02", "03", "04", "05", "06", "07"}, plan)
}

func TestBuildPlanFoundryOnly(t *testing.T) {
	plan, err := BuildPlan(PlanOptions{FoundryOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"01", "06", "07-search"}, plan)
}

func TestBuildPlanOnly(t *testing.T) {
	plan, err := BuildPlan(PlanOptions{Only: []string{"05"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"05"}, plan)

	// --only wins over every other flag.
	plan, err = BuildPlan(PlanOptions{Only: []string{"05"}, SkipAgents: true, FoundryOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"05"}, plan)

	_, err = BuildPlan(PlanOptions{Only: []string{"99"}})
	assert.ErrorContains(t, err, "unknown step")
}

func TestBuildPlanOnlyStepSet(t *testing.T) {
	// The requested set runs in execution order, not flag order.
	plan, err := BuildPlan(PlanOptions{Only: []string{"06", "03", "01"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"01", "03", "06"}, plan)

	// Duplicates collapse.
	plan, err = BuildPlan(PlanOptions{Only: []string{"05", "05"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"05"}, plan)

	plan, err = BuildPlan(PlanOptions{Only: []string{"07-search", "08"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"07-search", "08"}, plan)

	_, err = BuildPlan(PlanOptions{Only: []string{"02", "99"}})
	assert.ErrorContains(t, err, `unknown step "99"`)
}

func TestBuildPlanFrom(t *testing.T) {
	plan, err := BuildPlan(PlanOptions{From: "04"})
	require.NoError(t, err)
	assert.Equal(t, []string{"04", "05", "06", "07"}, plan)

	_, err = BuildPlan(PlanOptions{From: "99"})
	assert.ErrorContains(t, err, "unknown step")

	// 02 is filtered out before --from applies.
	_, err = BuildPlan(PlanOptions{From: "02", SkipFabric: true})
	assert.ErrorContains(t, err, "not part of this plan")
}

func TestBuildPlanSkipFlags(t *testing.T) {
	plan, err := BuildPlan(PlanOptions{SkipFabric: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"01", "04", "05", "06", "07"}, plan)

	plan, err = BuildPlan(PlanOptions{SkipSearch: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"01", "02", "03", "04", "05", "07"}, plan)

	plan, err = BuildPlan(PlanOptions{SkipAgents: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"01", "02", "03", "04", "06"}, plan)
}

func TestBuildPlanNothingLeft(t *testing.T) {
	_, err := BuildPlan(PlanOptions{FoundryOnly: true, SkipSearch: true, SkipAgents: true, From: ""})
	// 01 survives, so this succeeds.
	assert.NoError(t, err)

	_, err = BuildPlan(PlanOptions{From: "06", FoundryOnly: true, SkipSearch: true})
	assert.Error(t, err)
}

func trackingSteps(executed *[]string, failOn string) []Step {
	var steps []Step
	for _, id := range []string{"01", "02", "03", "04", "05", "06", "07"} {
		id := id
		steps = append(steps, Step{
			ID:    id,
			Title: Title(id),
			Run: func(ctx context.Context) error {
				*executed = append(*executed, id)
				if id == failOn {
					return fmt.Errorf("boom")
				}
				return nil
			},
		})
	}
	return steps
}

func planSteps(t *testing.T, executed *[]string, failOn string, plan []string) []Step {
	t.Helper()
	all := trackingSteps(executed, failOn)
	byID := make(map[string]Step, len(all))
	for _, s := range all {
		byID[s.ID] = s
	}
	var steps []Step
	for _, id := range plan {
		step, ok := byID[id]
		require.True(t, ok)
		steps = append(steps, step)
	}
	return steps
}

func TestRunnerOnlyExecutesRequestedStep(t *testing.T) {
	plan, err := BuildPlan(PlanOptions{Only: []string{"05"}})
	require.NoError(t, err)

	var executed []string
	runner := NewRunner(RunnerOptions{})
	out := &bytes.Buffer{}
	runner.out = out

	require.NoError(t, runner.Run(context.Background(), planSteps(t, &executed, "", plan), RunInfo{}))
	assert.Equal(t, []string{"05"}, executed)
	assert.Contains(t, out.String(), "> [05] Create Data Agent... OK")
}

func TestRunnerStopsOnFirstFailure(t *testing.T) {
	var executed []string
	runner := NewRunner(RunnerOptions{})
	out := &bytes.Buffer{}
	runner.out = out

	steps := planSteps(t, &executed, "03", []string{"01", "02", "03", "04"})
	err := runner.Run(context.Background(), steps, RunInfo{})
	require.ErrorContains(t, err, "step 03")

	assert.Equal(t, []string{"01", "02", "03"}, executed)
	assert.Contains(t, out.String(), "> [03] Load Data... FAIL")
	assert.Contains(t, out.String(), "builder --from 03")
	assert.NotContains(t, out.String(), "[04]")
}

func TestRunnerContinueOnError(t *testing.T) {
	var executed []string
	runner := NewRunner(RunnerOptions{ContinueOnError: true})
	runner.out = &bytes.Buffer{}

	steps := planSteps(t, &executed, "02", []string{"01", "02", "03"})
	err := runner.Run(context.Background(), steps, RunInfo{})
	require.Error(t, err)

	assert.Equal(t, []string{"01", "02", "03"}, executed)
}

func TestRunnerDryRun(t *testing.T) {
	var executed []string
	runner := NewRunner(RunnerOptions{DryRun: true})
	out := &bytes.Buffer{}
	runner.out = out

	steps := planSteps(t, &executed, "", []string{"01", "02"})
	require.NoError(t, runner.Run(context.Background(), steps, RunInfo{}))

	assert.Empty(t, executed)
	assert.Contains(t, out.String(), "Plan (dry run):")
	assert.Contains(t, out.String(), "> [01] Generate Data")
	assert.Contains(t, out.String(), "> [02] Create Fabric Items")
}

func TestRunnerRecordsRunInStore(t *testing.T) {
	store, err := sqlite.NewClient(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.InitSchema())

	var executed []string
	runner := NewRunner(RunnerOptions{Store: store})
	runner.out = &bytes.Buffer{}

	steps := planSteps(t, &executed, "02", []string{"01", "02"})
	err = runner.Run(context.Background(), steps, RunInfo{Industry: "logistics", Size: "small"})
	require.Error(t, err)

	var runID, status string
	row := store.DB().QueryRow("SELECT id, status FROM runs")
	require.NoError(t, row.Scan(&runID, &status))
	assert.Equal(t, models.RunStatusFailed, status)

	recorded, err := store.GetRunSteps(runID)
	require.NoError(t, err)
	require.Len(t, recorded, 2)
	assert.Equal(t, models.StepStatusOK, recorded[0].Status)
	assert.Equal(t, models.StepStatusFailed, recorded[1].Status)
	assert.Equal(t, "boom", recorded[1].Error)
}
