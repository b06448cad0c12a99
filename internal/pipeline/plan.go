package pipeline

import (
	"context"
	"fmt"
)

// Step is one unit of the build pipeline. Run is wired up by the CLI with
// whatever clients the step needs.
type Step struct {
	ID    string
	Title string
	Run   func(ctx context.Context) error
}

// Step IDs in execution order. 08 is interactive and never part of a
// default plan, 07-search replaces 07 when Fabric is skipped entirely.
const (
	StepGenerateData      = "01"
	StepCreateFabricItems = "02"
	StepLoadData          = "03"
	StepGeneratePrompt    = "04"
	StepCreateDataAgent   = "05"
	StepUploadDocuments   = "06"
	StepCreateAgent       = "07"
	StepCreateSearchAgent = "07-search"
	StepChat              = "08"
)

var stepOrder = []string{
	StepGenerateData,
	StepCreateFabricItems,
	StepLoadData,
	StepGeneratePrompt,
	StepCreateDataAgent,
	StepUploadDocuments,
	StepCreateAgent,
	StepCreateSearchAgent,
	StepChat,
}

var stepTitles = map[string]string{
	StepGenerateData:      "Generate Data",
	StepCreateFabricItems: "Create Fabric Items",
	StepLoadData:          "Load Data",
	StepGeneratePrompt:    "Generate Prompt",
	StepCreateDataAgent:   "Create Data Agent",
	StepUploadDocuments:   "Upload Documents",
	StepCreateAgent:       "Create Agent",
	StepCreateSearchAgent: "Create Agent (Search Only)",
	StepChat:              "Chat",
}

func Title(id string) string {
	return stepTitles[id]
}

func KnownStep(id string) bool {
	_, ok := stepTitles[id]
	return ok
}

var defaultPlan = []string{
	StepGenerateData,
	StepCreateFabricItems,
	StepLoadData,
	StepGeneratePrompt,
	StepCreateDataAgent,
	StepUploadDocuments,
	StepCreateAgent,
}

var foundryOnlyPlan = []string{
	StepGenerateData,
	StepUploadDocuments,
	StepCreateSearchAgent,
}

type PlanOptions struct {
	From        string
	Only        []string
	SkipFabric  bool
	SkipSearch  bool
	SkipAgents  bool
	FoundryOnly bool
}

// BuildPlan resolves the step ids a run will execute. --only overrides
// everything else and runs exactly the requested steps in execution order;
// --from slices the filtered plan.
func BuildPlan(opts PlanOptions) ([]string, error) {
	if len(opts.Only) > 0 {
		requested := make(map[string]bool, len(opts.Only))
		for _, id := range opts.Only {
			if !KnownStep(id) {
				return nil, fmt.Errorf("unknown step %q", id)
			}
			requested[id] = true
		}
		var plan []string
		for _, id := range stepOrder {
			if requested[id] {
				plan = append(plan, id)
			}
		}
		return plan, nil
	}

	base := defaultPlan
	if opts.FoundryOnly {
		base = foundryOnlyPlan
	}

	var plan []string
	for _, id := range base {
		if opts.SkipFabric && (id == StepCreateFabricItems || id == StepLoadData) {
			continue
		}
		if opts.SkipSearch && id == StepUploadDocuments {
			continue
		}
		if opts.SkipAgents && (id == StepCreateDataAgent || id == StepCreateAgent ||
			id == StepCreateSearchAgent || id == StepChat) {
			continue
		}
		plan = append(plan, id)
	}

	if opts.From != "" {
		if !KnownStep(opts.From) {
			return nil, fmt.Errorf("unknown step %q", opts.From)
		}
		idx := -1
		for i, id := range plan {
			if id == opts.From {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("step %q is not part of this plan", opts.From)
		}
		plan = plan[idx:]
	}

	if len(plan) == 0 {
		return nil, fmt.Errorf("nothing to run, every step was skipped")
	}

	return plan, nil
}
