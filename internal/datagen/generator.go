package datagen

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iq-workshop/builder/internal/llm"
	"github.com/iq-workshop/builder/internal/metrics"
	"github.com/iq-workshop/builder/internal/storage/models"
	"github.com/iq-workshop/builder/internal/storage/sqlite"
	"github.com/iq-workshop/builder/pkg/config"
	"github.com/iq-workshop/builder/pkg/logger"
	"github.com/iq-workshop/builder/pkg/utils"
)

const maxAttempts = 3

type SizePreset struct {
	Primary   int
	Secondary int
}

var sizePresets = map[string]SizePreset{
	"small":  {Primary: 16, Secondary: 40},
	"medium": {Primary: 50, Secondary: 200},
	"large":  {Primary: 200, Secondary: 1000},
}

// Generator drives AI data generation: ask the model for a dataset spec,
// validate it, feed failures back, and write the accepted spec to disk.
type Generator struct {
	llm     *llm.Client
	store   *sqlite.Client
	baseDir string
	envPath string
}

type Params struct {
	Industry string
	UseCase  string
	Size     string
}

type Result struct {
	Folder    string
	Tables    int
	Documents int
}

func NewGenerator(llmClient *llm.Client, store *sqlite.Client, baseDir, envPath string) *Generator {
	return &Generator{
		llm:     llmClient,
		store:   store,
		baseDir: baseDir,
		envPath: envPath,
	}
}

func (g *Generator) Run(ctx context.Context, params Params) (*Result, error) {
	if params.Industry == "" {
		return nil, fmt.Errorf("industry is required, set INDUSTRY in .env or pass --industry")
	}
	if params.UseCase == "" {
		return nil, fmt.Errorf("use case is required, set USECASE in .env or pass --usecase")
	}

	preset, ok := sizePresets[params.Size]
	if !ok {
		return nil, fmt.Errorf("unknown data size %q (expected small, medium or large)", params.Size)
	}

	req := llm.DatasetRequest{
		Industry:      params.Industry,
		UseCase:       params.UseCase,
		PrimaryRows:   preset.Primary,
		SecondaryRows: preset.Secondary,
	}

	var spec *llm.DatasetSpec
	var raw string

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("dataset generation canceled: %w", err)
		}

		if attempt > 1 {
			logger.Warn("Retrying dataset generation",
				zap.Int("attempt", attempt),
				zap.String("previous_error", req.PreviousError),
			)
		}

		candidate, rawOutput, err := g.llm.GenerateDatasetSpec(ctx, req)
		if err != nil {
			req.PreviousError = err.Error()
			continue
		}

		if err := validateSpec(candidate); err != nil {
			req.PreviousError = err.Error()
			continue
		}

		spec = candidate
		raw = rawOutput
		break
	}

	if spec == nil {
		return nil, fmt.Errorf("dataset generation failed after %d attempts: %s", maxAttempts, req.PreviousError)
	}

	timestamp := time.Now().Format("20060102_150405")
	slug := utils.Slug(params.Industry, 20)
	folder, err := filepath.Abs(filepath.Join(g.baseDir, fmt.Sprintf("%s_%s", timestamp, slug)))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data folder: %w", err)
	}

	if err := WriteDataset(folder, spec, raw); err != nil {
		return nil, err
	}

	if err := config.SetEnvValue(g.envPath, "DATA_FOLDER", folder); err != nil {
		return nil, fmt.Errorf("failed to update DATA_FOLDER: %w", err)
	}

	if g.store != nil {
		err := g.store.SaveDataset(&models.Dataset{
			ID:         uuid.NewString(),
			Folder:     folder,
			Industry:   params.Industry,
			UseCase:    params.UseCase,
			Size:       params.Size,
			TableCount: len(spec.Tables),
			DocCount:   len(spec.Documents),
			CreatedAt:  time.Now(),
		})
		if err != nil {
			logger.Warn("Failed to record dataset", zap.Error(err))
		}
	}

	metrics.DocumentsGenerated.Add(float64(len(spec.Documents)))

	return &Result{
		Folder:    folder,
		Tables:    len(spec.Tables),
		Documents: len(spec.Documents),
	}, nil
}

// validateSpec enforces the structural rules the rest of the pipeline
// assumes. Messages are phrased for the model, since they are fed back into
// the retry prompt.
func validateSpec(spec *llm.DatasetSpec) error {
	if err := spec.Ontology.Validate(); err != nil {
		return err
	}

	if len(spec.Tables) == 0 {
		return fmt.Errorf("no table rows were generated")
	}

	for name, table := range spec.Ontology.Tables {
		data, ok := spec.Tables[name]
		if !ok {
			return fmt.Errorf("ontology declares table %q but no rows were generated for it", name)
		}
		if len(data.Rows) == 0 {
			return fmt.Errorf("table %q has no rows", name)
		}
		for i, row := range data.Rows {
			if len(row) != len(table.Columns) {
				return fmt.Errorf("table %q row %d has %d values but %d columns are declared",
					name, i+1, len(row), len(table.Columns))
			}
		}
	}

	for name := range spec.Tables {
		if _, ok := spec.Ontology.Tables[name]; !ok {
			return fmt.Errorf("rows were generated for table %q which the ontology does not declare", name)
		}
	}

	if len(spec.Documents) == 0 {
		return fmt.Errorf("no policy documents were generated")
	}
	for _, doc := range spec.Documents {
		if doc.Title == "" {
			return fmt.Errorf("a document is missing its title")
		}
		if len(doc.Sections) == 0 {
			return fmt.Errorf("document %q has no sections", doc.Title)
		}
	}

	if len(spec.Questions.SQL) == 0 || len(spec.Questions.Document) == 0 || len(spec.Questions.Combined) == 0 {
		return fmt.Errorf("sample questions must include all three sections (sql, document, combined)")
	}

	return nil
}
