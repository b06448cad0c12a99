package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/iq-workshop/builder/internal/agent"
	"github.com/iq-workshop/builder/internal/cache/redis"
	"github.com/iq-workshop/builder/internal/chat"
	"github.com/iq-workshop/builder/internal/datagen"
	"github.com/iq-workshop/builder/internal/fabric"
	"github.com/iq-workshop/builder/internal/ingestion"
	"github.com/iq-workshop/builder/internal/llm"
	"github.com/iq-workshop/builder/internal/metrics"
	"github.com/iq-workshop/builder/internal/ontology"
	"github.com/iq-workshop/builder/internal/ontology/graph"
	"github.com/iq-workshop/builder/internal/pipeline"
	"github.com/iq-workshop/builder/internal/storage/sqlite"
	"github.com/iq-workshop/builder/internal/vector/milvus"
	"github.com/iq-workshop/builder/pkg/config"
	"github.com/iq-workshop/builder/pkg/logger"
)

type flags struct {
	envPath         string
	from            string
	only            []string
	skipFabric      bool
	skipSearch      bool
	skipAgents      bool
	foundryOnly     bool
	clean           bool
	dryRun          bool
	continueOnError bool
	serve           bool
	industry        string
	useCase         string
	size            string
}

func parseFlags() *flags {
	f := &flags{}

	pflag.StringVar(&f.envPath, "env", ".env", "path to the .env configuration file")
	pflag.StringVar(&f.from, "from", "", "resume the plan from this step id")
	pflag.StringSliceVar(&f.only, "only", nil, "run exactly these step ids (repeatable or comma separated)")
	pflag.BoolVar(&f.skipFabric, "skip-fabric", false, "skip the Fabric item and data load steps")
	pflag.BoolVar(&f.skipSearch, "skip-search", false, "skip the document upload step")
	pflag.BoolVar(&f.skipAgents, "skip-agents", false, "skip the agent creation and chat steps")
	pflag.BoolVar(&f.foundryOnly, "foundry-only", false, "search-only plan without any Fabric items")
	pflag.BoolVar(&f.clean, "clean", false, "create fresh Fabric items instead of reusing existing ones")
	pflag.BoolVar(&f.dryRun, "dry-run", false, "print the plan without executing it")
	pflag.BoolVar(&f.continueOnError, "continue-on-error", false, "keep running later steps after a failure")
	pflag.BoolVar(&f.serve, "serve", false, "run the chat step as a websocket server instead of a REPL")
	pflag.StringVar(&f.industry, "industry", "", "industry for generated data, e.g. logistics")
	pflag.StringVar(&f.useCase, "usecase", "", "use case for generated data, e.g. fleet management")
	pflag.StringVar(&f.size, "size", "", "dataset size: small, medium or large")
	pflag.Parse()

	return f
}

func main() {
	f := parseFlags()

	cfg, err := config.Load(f.envPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	metrics.Init()

	if f.industry != "" {
		cfg.Data.Industry = f.industry
	}
	if f.useCase != "" {
		cfg.Data.UseCase = f.useCase
	}
	if f.size != "" {
		cfg.Data.Size = f.size
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &app{cfg: cfg, flags: f}
	defer app.close()

	if err := app.run(ctx); err != nil {
		logger.Error("Run failed", zap.Error(err))
		os.Exit(1)
	}
}

// app owns the lazily constructed clients. A plan that never touches
// Fabric never asks for a token, a plan without step 06 never dials the
// vector index.
type app struct {
	cfg   *config.Config
	flags *flags

	dataFolder string

	store     *sqlite.Client
	llmClient *llm.Client
	fabricCli *fabric.Client
	vectorCli *milvus.Client
	cacheCli  *redis.Client
	graphCli  *graph.Client
}

func (a *app) run(ctx context.Context) error {
	plan, err := pipeline.BuildPlan(pipeline.PlanOptions{
		From:        a.flags.from,
		Only:        a.flags.only,
		SkipFabric:  a.flags.skipFabric,
		SkipSearch:  a.flags.skipSearch,
		SkipAgents:  a.flags.skipAgents,
		FoundryOnly: a.flags.foundryOnly,
	})
	if err != nil {
		return err
	}

	steps := make([]pipeline.Step, 0, len(plan))
	for _, id := range plan {
		steps = append(steps, pipeline.Step{
			ID:    id,
			Title: pipeline.Title(id),
			Run:   a.stepFunc(id),
		})
	}

	var store *sqlite.Client
	if !a.flags.dryRun {
		store, err = a.stateStore()
		if err != nil {
			return err
		}
	}

	runner := pipeline.NewRunner(pipeline.RunnerOptions{
		Store:           store,
		DryRun:          a.flags.dryRun,
		ContinueOnError: a.flags.continueOnError,
	})

	return runner.Run(ctx, steps, pipeline.RunInfo{
		Industry: a.cfg.Data.Industry,
		UseCase:  a.cfg.Data.UseCase,
		Size:     a.cfg.Data.Size,
	})
}

func (a *app) stepFunc(id string) func(ctx context.Context) error {
	switch id {
	case pipeline.StepGenerateData:
		return a.runGenerateData
	case pipeline.StepCreateFabricItems:
		return a.runCreateFabricItems
	case pipeline.StepLoadData:
		return a.runLoadData
	case pipeline.StepGeneratePrompt:
		return a.runGeneratePrompt
	case pipeline.StepCreateDataAgent:
		return a.runCreateDataAgent
	case pipeline.StepUploadDocuments:
		return a.runUploadDocuments
	case pipeline.StepCreateAgent:
		return func(ctx context.Context) error { return a.runCreateAgent(false) }
	case pipeline.StepCreateSearchAgent:
		return func(ctx context.Context) error { return a.runCreateAgent(true) }
	case pipeline.StepChat:
		return a.runChat
	default:
		return func(ctx context.Context) error {
			return fmt.Errorf("step %s has no implementation", id)
		}
	}
}

func (a *app) runGenerateData(ctx context.Context) error {
	llmClient, err := a.llm()
	if err != nil {
		return err
	}
	store, err := a.stateStore()
	if err != nil {
		return err
	}

	gen := datagen.NewGenerator(llmClient, store, "data", a.flags.envPath)
	result, err := gen.Run(ctx, datagen.Params{
		Industry: a.cfg.Data.Industry,
		UseCase:  a.cfg.Data.UseCase,
		Size:     a.cfg.Data.Size,
	})
	if err != nil {
		return err
	}

	a.dataFolder = result.Folder
	return nil
}

func (a *app) runCreateFabricItems(ctx context.Context) error {
	folder, err := a.folder()
	if err != nil {
		return err
	}
	client, err := a.fabric()
	if err != nil {
		return err
	}
	store, err := a.stateStore()
	if err != nil {
		return err
	}

	setup := fabric.NewSetup(client, store, a.cfg.Data.SolutionName)
	ids, err := setup.Run(ctx, folder, a.flags.clean)
	if err != nil {
		return err
	}

	if a.cfg.Neo4j.Enabled {
		a.mirrorOntology(ctx, folder)
	}

	logger.Info("Fabric items ready",
		zap.String("lakehouse", ids.LakehouseName),
		zap.String("ontology", ids.OntologyName),
	)
	return nil
}

// mirrorOntology pushes the entity graph into Neo4j for exploration. Best
// effort, the pipeline does not depend on it.
func (a *app) mirrorOntology(ctx context.Context, folder string) {
	cfg, err := ontology.Load(filepath.Join(folder, "config", "ontology_config.json"))
	if err != nil {
		logger.Warn("Skipping ontology graph mirror", zap.Error(err))
		return
	}

	client, err := a.graph()
	if err != nil {
		logger.Warn("Skipping ontology graph mirror", zap.Error(err))
		return
	}

	if err := client.MirrorOntology(ctx, cfg); err != nil {
		logger.Warn("Failed to mirror ontology graph", zap.Error(err))
	}
}

func (a *app) runLoadData(ctx context.Context) error {
	folder, err := a.folder()
	if err != nil {
		return err
	}
	client, err := a.fabric()
	if err != nil {
		return err
	}
	warehouse, err := a.warehouse()
	if err != nil {
		return err
	}

	onelake := fabric.NewOneLakeClient(a.cfg.Fabric.OneLakeURL, a.cfg.Fabric.APIToken)
	loader := fabric.NewLoader(client, onelake, warehouse)
	return loader.Run(ctx, folder)
}

func (a *app) runGeneratePrompt(ctx context.Context) error {
	folder, err := a.folder()
	if err != nil {
		return err
	}

	promptPath, err := ontology.WritePromptFiles(folder)
	if err != nil {
		return err
	}

	logger.Info("Schema prompt written", zap.String("path", promptPath))
	return nil
}

func (a *app) runCreateDataAgent(ctx context.Context) error {
	folder, err := a.folder()
	if err != nil {
		return err
	}
	client, err := a.fabric()
	if err != nil {
		return err
	}

	ids, err := client.EnsureDataAgent(ctx, folder, a.flags.envPath)
	if err != nil {
		return err
	}

	logger.Info("Data agent ready", zap.String("id", ids.DataAgentID))
	return nil
}

func (a *app) runUploadDocuments(ctx context.Context) error {
	folder, err := a.folder()
	if err != nil {
		return err
	}
	llmClient, err := a.llm()
	if err != nil {
		return err
	}
	vectorDB, err := a.vector()
	if err != nil {
		return err
	}
	store, err := a.stateStore()
	if err != nil {
		return err
	}

	cache := a.embeddingCache()
	processor := ingestion.NewProcessor(llmClient, vectorDB, cache, store)
	result, err := processor.Run(ctx, folder)
	if err != nil {
		return err
	}

	logger.Info("Documents uploaded",
		zap.Int("documents", result.Documents),
		zap.Int("chunks", result.Chunks),
	)
	return nil
}

func (a *app) runCreateAgent(searchOnly bool) error {
	folder, err := a.folder()
	if err != nil {
		return err
	}

	ids, err := agent.Create(folder, a.cfg.LLM.ChatModel, searchOnly)
	if err != nil {
		return err
	}

	logger.Info("Agent ready", zap.String("agent_id", ids.AgentID), zap.String("mode", ids.Mode))
	return nil
}

func (a *app) runChat(ctx context.Context) error {
	folder, err := a.folder()
	if err != nil {
		return err
	}

	ids, err := agent.LoadIDs(folder)
	if err != nil {
		return err
	}
	def := ids.Definition()

	llmClient, err := a.llm()
	if err != nil {
		return err
	}

	var sql chat.SQLRunner
	if ids.Mode == agent.ModeFull {
		warehouse, err := a.warehouse()
		if err != nil {
			return err
		}
		sql = warehouse
	}

	var search chat.Searcher
	if vectorDB, err := a.vector(); err == nil {
		search = vectorDB
	} else {
		logger.Warn("Document search unavailable", zap.Error(err))
	}

	store, err := a.stateStore()
	if err != nil {
		return err
	}

	if a.flags.serve {
		factory := func() *chat.Session {
			return chat.NewSession(def, llmClient, sql, search, store)
		}
		server := chat.NewServer(factory, chat.ServerConfig{})

		addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
		errCh := make(chan error, 1)
		go func() { errCh <- server.Listen(addr) }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			logger.Info("Chat server shutting down")
			return server.Shutdown()
		}
	}

	session := chat.NewSession(def, llmClient, sql, search, store)
	repl := chat.NewREPL(session, chat.LoadSampleQuestions(folder))
	return repl.Run(ctx)
}

// folder resolves the active dataset folder: set by step 01 in this run,
// otherwise DATA_FOLDER from the environment.
func (a *app) folder() (string, error) {
	if a.dataFolder != "" {
		return a.dataFolder, nil
	}
	if a.cfg.Data.Folder != "" {
		a.dataFolder = a.cfg.Data.Folder
		return a.dataFolder, nil
	}
	return "", fmt.Errorf("DATA_FOLDER is not set, run the generate-data step first")
}

func (a *app) stateStore() (*sqlite.Client, error) {
	if a.store != nil {
		return a.store, nil
	}

	if dir := filepath.Dir(a.cfg.SQLite.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	store, err := sqlite.NewClient(a.cfg.SQLite.Path)
	if err != nil {
		return nil, err
	}
	if err := store.InitSchema(); err != nil {
		store.Close()
		return nil, err
	}

	a.store = store
	return store, nil
}

func (a *app) warehouse() (*sqlite.Warehouse, error) {
	store, err := a.stateStore()
	if err != nil {
		return nil, err
	}
	return sqlite.NewWarehouse(store), nil
}

func (a *app) llm() (*llm.Client, error) {
	if a.llmClient != nil {
		return a.llmClient, nil
	}

	client, err := llm.NewClient(llm.Options{
		Provider:       a.cfg.LLM.Provider,
		Endpoint:       a.cfg.LLM.Endpoint,
		APIKey:         a.cfg.LLM.APIKey,
		Model:          a.cfg.LLM.ChatModel,
		EmbeddingModel: a.cfg.LLM.EmbeddingModel,
		Temperature:    a.cfg.LLM.Temperature,
		MaxTokens:      a.cfg.LLM.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	a.llmClient = client
	return client, nil
}

func (a *app) fabric() (*fabric.Client, error) {
	if a.fabricCli != nil {
		return a.fabricCli, nil
	}

	client, err := fabric.NewClient(fabric.Options{
		BaseURL:     a.cfg.Fabric.BaseURL,
		WorkspaceID: a.cfg.Fabric.WorkspaceID,
		Token:       a.cfg.Fabric.APIToken,
		LROTimeout:  time.Duration(a.cfg.Fabric.LROTimeout) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	a.fabricCli = client
	return client, nil
}

func (a *app) vector() (*milvus.Client, error) {
	if a.vectorCli != nil {
		return a.vectorCli, nil
	}

	client, err := milvus.NewClient(
		a.cfg.Vector.Endpoint,
		a.cfg.Vector.APIKey,
		a.cfg.Vector.Collection,
		a.cfg.Vector.Dim,
	)
	if err != nil {
		return nil, err
	}

	a.vectorCli = client
	return client, nil
}

func (a *app) embeddingCache() *redis.Client {
	if !a.cfg.Redis.Enabled {
		return nil
	}
	if a.cacheCli != nil {
		return a.cacheCli
	}

	client, err := redis.NewClient(a.cfg.Redis.Host, a.cfg.Redis.Port, a.cfg.Redis.Password, a.cfg.Redis.DB)
	if err != nil {
		logger.Warn("Embedding cache unavailable", zap.Error(err))
		return nil
	}

	a.cacheCli = client
	return client
}

func (a *app) graph() (*graph.Client, error) {
	if a.graphCli != nil {
		return a.graphCli, nil
	}

	client, err := graph.NewClient(
		a.cfg.Neo4j.URI,
		a.cfg.Neo4j.Username,
		a.cfg.Neo4j.Password,
		a.cfg.Neo4j.Database,
	)
	if err != nil {
		return nil, err
	}

	a.graphCli = client
	return client, nil
}

func (a *app) close() {
	if a.vectorCli != nil {
		a.vectorCli.Close()
	}
	if a.cacheCli != nil {
		a.cacheCli.Close()
	}
	if a.graphCli != nil {
		a.graphCli.Close(context.Background())
	}
	if a.store != nil {
		a.store.Close()
	}
}
