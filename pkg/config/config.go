package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config is loaded from a flat .env file plus process environment.
// Every key in the file is also overridable as an environment variable.
type Config struct {
	Fabric  FabricConfig
	LLM     LLMConfig
	Vector  VectorConfig
	Neo4j   Neo4jConfig
	Redis   RedisConfig
	SQLite  SQLiteConfig
	Data    DataConfig
	Server  ServerConfig
	Logging LoggingConfig
}

type FabricConfig struct {
	WorkspaceID string
	BaseURL     string
	OneLakeURL  string
	APIToken    string
	LROTimeout  int
}

type LLMConfig struct {
	Provider       string
	Endpoint       string
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	EmbeddingDim   int
	Temperature    float32
	MaxTokens      int
}

type VectorConfig struct {
	Endpoint   string
	APIKey     string
	Collection string
	Dim        int
}

type Neo4jConfig struct {
	Enabled  bool
	URI      string
	Username string
	Password string
	Database string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type SQLiteConfig struct {
	Path string
}

type DataConfig struct {
	Folder       string
	Industry     string
	UseCase      string
	Size         string
	SolutionName string
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

// Load reads the .env file next to the working directory, if present, and
// merges process environment on top. A missing file is not an error; missing
// required keys are reported by the steps that need them.
func Load(envPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if envPath == "" {
		envPath = ".env"
	}
	v.SetConfigFile(envPath)
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(envPath); statErr == nil {
			return nil, fmt.Errorf("failed to read env file: %w", err)
		}
	}

	v.AutomaticEnv()

	cfg := &Config{
		Fabric: FabricConfig{
			WorkspaceID: v.GetString("FABRIC_WORKSPACE_ID"),
			BaseURL:     v.GetString("FABRIC_API_URL"),
			OneLakeURL:  v.GetString("ONELAKE_URL"),
			APIToken:    v.GetString("FABRIC_API_TOKEN"),
			LROTimeout:  v.GetInt("FABRIC_LRO_TIMEOUT_SEC"),
		},
		LLM: LLMConfig{
			Provider:       v.GetString("LLM_PROVIDER"),
			Endpoint:       v.GetString("AI_PROJECT_ENDPOINT"),
			APIKey:         v.GetString("AI_API_KEY"),
			ChatModel:      v.GetString("CHAT_MODEL"),
			EmbeddingModel: v.GetString("EMBEDDING_MODEL"),
			EmbeddingDim:   v.GetInt("EMBEDDING_DIM"),
			Temperature:    float32(v.GetFloat64("LLM_TEMPERATURE")),
			MaxTokens:      v.GetInt("LLM_MAX_TOKENS"),
		},
		Vector: VectorConfig{
			Endpoint:   v.GetString("VECTOR_ENDPOINT"),
			APIKey:     v.GetString("VECTOR_API_KEY"),
			Collection: v.GetString("VECTOR_COLLECTION"),
			Dim:        v.GetInt("EMBEDDING_DIM"),
		},
		Neo4j: Neo4jConfig{
			Enabled:  v.GetBool("NEO4J_ENABLED"),
			URI:      v.GetString("NEO4J_URI"),
			Username: v.GetString("NEO4J_USERNAME"),
			Password: v.GetString("NEO4J_PASSWORD"),
			Database: v.GetString("NEO4J_DATABASE"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("REDIS_ENABLED"),
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		SQLite: SQLiteConfig{
			Path: v.GetString("SQLITE_PATH"),
		},
		Data: DataConfig{
			Folder:       v.GetString("DATA_FOLDER"),
			Industry:     v.GetString("INDUSTRY"),
			UseCase:      v.GetString("USECASE"),
			Size:         v.GetString("DATA_SIZE"),
			SolutionName: v.GetString("SOLUTION_NAME"),
		},
		Server: ServerConfig{
			Host:         v.GetString("SERVER_HOST"),
			Port:         v.GetInt("SERVER_PORT"),
			ReadTimeout:  v.GetInt("SERVER_READ_TIMEOUT_SEC"),
			WriteTimeout: v.GetInt("SERVER_WRITE_TIMEOUT_SEC"),
		},
		Logging: LoggingConfig{
			Level:      v.GetString("LOG_LEVEL"),
			Format:     v.GetString("LOG_FORMAT"),
			OutputPath: v.GetString("LOG_OUTPUT"),
		},
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("FABRIC_API_URL", "https://api.fabric.microsoft.com/v1")
	v.SetDefault("ONELAKE_URL", "https://onelake.dfs.fabric.microsoft.com")
	v.SetDefault("FABRIC_LRO_TIMEOUT_SEC", 300)

	v.SetDefault("LLM_PROVIDER", "azure")
	v.SetDefault("CHAT_MODEL", "gpt-4o-mini")
	v.SetDefault("EMBEDDING_MODEL", "text-embedding-3-small")
	v.SetDefault("EMBEDDING_DIM", 1536)
	v.SetDefault("LLM_TEMPERATURE", 0.2)
	v.SetDefault("LLM_MAX_TOKENS", 4096)

	v.SetDefault("VECTOR_ENDPOINT", "localhost:19530")
	v.SetDefault("VECTOR_COLLECTION", "workshop_documents")

	v.SetDefault("NEO4J_ENABLED", false)
	v.SetDefault("NEO4J_URI", "bolt://localhost:7687")
	v.SetDefault("NEO4J_USERNAME", "neo4j")
	v.SetDefault("NEO4J_DATABASE", "neo4j")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("SQLITE_PATH", "./data/builder.db")

	v.SetDefault("DATA_SIZE", "small")
	v.SetDefault("SOLUTION_NAME", "demo")

	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_READ_TIMEOUT_SEC", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT_SEC", 120)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("LOG_OUTPUT", "stderr")
}
