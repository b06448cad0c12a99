package models

import "time"

// Run is one invocation of the build pipeline.
type Run struct {
	ID        string
	Industry  string
	UseCase   string
	Size      string
	Status    string
	StartedAt time.Time
	EndedAt   *time.Time
}

// RunStep records the outcome of one pipeline step within a run.
type RunStep struct {
	ID        int64
	RunID     string
	StepID    string
	Status    string
	Error     string
	StartedAt time.Time
	EndedAt   *time.Time
}

// Dataset describes one generated dataset folder on disk.
type Dataset struct {
	ID         string
	Folder     string
	Industry   string
	UseCase    string
	Size       string
	TableCount int
	DocCount   int
	CreatedAt  time.Time
}

// Document is one source document ingested into the search index.
type Document struct {
	ID        string
	DatasetID string
	Path      string
	Title     string
	Format    string
	CreatedAt time.Time
}

// DocumentChunk is one indexed fragment of a document.
type DocumentChunk struct {
	ID         string
	DocID      string
	ChunkIndex int
	Text       string
	VectorID   string
	CreatedAt  time.Time
}

// ChatMessage is one turn of an interactive chat session.
type ChatMessage struct {
	ID        string
	SessionID string
	Role      string
	Content   string
	ToolName  string
	CreatedAt time.Time
}

const (
	RunStatusRunning = "running"
	RunStatusOK      = "ok"
	RunStatusFailed  = "failed"

	StepStatusOK      = "ok"
	StepStatusFailed  = "failed"
	StepStatusSkipped = "skipped"
)
