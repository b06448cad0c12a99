package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/iq-workshop/builder/internal/agent"
	"github.com/iq-workshop/builder/internal/metrics"
	"github.com/iq-workshop/builder/internal/storage/models"
	"github.com/iq-workshop/builder/internal/storage/sqlite"
	"github.com/iq-workshop/builder/internal/vector/milvus"
	"github.com/iq-workshop/builder/pkg/logger"
)

const (
	maxToolRounds    = 8
	defaultSearchTop = 3
	maxSearchTop     = 10
	snippetLimit     = 500
)

// Completer is the slice of the LLM client the session needs.
type Completer interface {
	CompleteChat(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error)
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// SQLRunner executes read-only queries against the warehouse mirror.
type SQLRunner interface {
	Query(query string) (string, error)
}

// Searcher retrieves document chunks by embedding similarity.
type Searcher interface {
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]milvus.SearchResult, error)
}

// Session drives one conversation with the orchestrator agent, executing
// its tool calls locally and feeding the outputs back until the model
// answers in plain text.
type Session struct {
	id       string
	def      *agent.Definition
	llm      Completer
	sql      SQLRunner
	search   Searcher
	store    *sqlite.Client
	messages []openai.ChatCompletionMessage
}

// NewSession builds a conversation. sql and search may be nil when the
// corresponding tool is unavailable, the tool then reports an error to the
// model instead of failing the turn. store may be nil to skip history.
func NewSession(def *agent.Definition, llmClient Completer, sql SQLRunner, search Searcher, store *sqlite.Client) *Session {
	return &Session{
		id:     uuid.NewString(),
		def:    def,
		llm:    llmClient,
		sql:    sql,
		search: search,
		store:  store,
	}
}

func (s *Session) ID() string {
	return s.id
}

// Ask sends one user message and runs the tool loop to completion.
func (s *Session) Ask(ctx context.Context, userMessage string) (string, error) {
	start := time.Now()

	s.messages = append(s.messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userMessage,
	})
	s.record(openai.ChatMessageRoleUser, userMessage, "")

	for round := 0; ; round++ {
		req := openai.ChatCompletionRequest{
			Model:    s.def.Model,
			Messages: s.withSystemPrompt(),
			Tools:    s.def.Tools,
		}

		resp, err := s.llm.CompleteChat(ctx, req)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("model returned no choices")
		}

		msg := resp.Choices[0].Message
		s.messages = append(s.messages, msg)

		if len(msg.ToolCalls) == 0 {
			s.record(openai.ChatMessageRoleAssistant, msg.Content, "")
			metrics.ChatTurnDuration.Observe(time.Since(start).Seconds())
			return msg.Content, nil
		}

		if round >= maxToolRounds {
			return "", fmt.Errorf("gave up after %d tool rounds without a final answer", maxToolRounds)
		}

		for _, call := range msg.ToolCalls {
			output := s.dispatch(ctx, call)
			s.messages = append(s.messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    output,
				ToolCallID: call.ID,
			})
			s.record(openai.ChatMessageRoleTool, output, call.Function.Name)
		}
	}
}

func (s *Session) withSystemPrompt() []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(s.messages)+1)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: s.def.Instructions,
	})
	return append(msgs, s.messages...)
}

// dispatch executes one tool call. Failures are returned to the model as
// tool output so it can recover or explain, never as a turn error.
func (s *Session) dispatch(ctx context.Context, call openai.ToolCall) string {
	switch call.Function.Name {
	case agent.ToolExecuteSQL:
		return s.runSQL(call.Function.Arguments)
	case agent.ToolSearchDocuments:
		return s.runSearch(ctx, call.Function.Arguments)
	default:
		metrics.ChatToolCalls.WithLabelValues(call.Function.Name, "error").Inc()
		return fmt.Sprintf("Unknown function: %s", call.Function.Name)
	}
}

func (s *Session) runSQL(arguments string) string {
	var args struct {
		SQLQuery string `json:"sql_query"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil || args.SQLQuery == "" {
		metrics.ChatToolCalls.WithLabelValues(agent.ToolExecuteSQL, "error").Inc()
		return "SQL Error: missing sql_query argument"
	}

	if s.sql == nil {
		metrics.ChatToolCalls.WithLabelValues(agent.ToolExecuteSQL, "error").Inc()
		return "SQL Error: the SQL tool is not available in this mode"
	}

	logger.Info("Executing SQL tool call", zap.String("query", args.SQLQuery))

	result, err := s.sql.Query(args.SQLQuery)
	if err != nil {
		metrics.ChatToolCalls.WithLabelValues(agent.ToolExecuteSQL, "error").Inc()
		return fmt.Sprintf("SQL Error: %v", err)
	}

	metrics.ChatToolCalls.WithLabelValues(agent.ToolExecuteSQL, "ok").Inc()
	return result
}

func (s *Session) runSearch(ctx context.Context, arguments string) string {
	var args struct {
		Query string `json:"query"`
		Top   int    `json:"top"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil || args.Query == "" {
		metrics.ChatToolCalls.WithLabelValues(agent.ToolSearchDocuments, "error").Inc()
		return "Search Error: missing query argument"
	}

	if s.search == nil {
		metrics.ChatToolCalls.WithLabelValues(agent.ToolSearchDocuments, "error").Inc()
		return "Search Error: the document index is not available in this mode"
	}

	top := args.Top
	if top <= 0 {
		top = defaultSearchTop
	}
	if top > maxSearchTop {
		top = maxSearchTop
	}

	logger.Info("Executing search tool call",
		zap.String("query", args.Query),
		zap.Int("top", top),
	)

	embedding, err := s.llm.GenerateEmbedding(ctx, args.Query)
	if err != nil {
		metrics.ChatToolCalls.WithLabelValues(agent.ToolSearchDocuments, "error").Inc()
		return fmt.Sprintf("Search Error: %v", err)
	}

	results, err := s.search.Search(ctx, embedding, top)
	if err != nil {
		metrics.ChatToolCalls.WithLabelValues(agent.ToolSearchDocuments, "error").Inc()
		return fmt.Sprintf("Search Error: %v", err)
	}

	metrics.ChatToolCalls.WithLabelValues(agent.ToolSearchDocuments, "ok").Inc()
	return FormatSearchResults(results)
}

// FormatSearchResults renders chunks the way the model consumes them, one
// block per result with source attribution and a capped snippet.
func FormatSearchResults(results []milvus.SearchResult) string {
	if len(results) == 0 {
		return "No documents found matching the query."
	}

	var b strings.Builder
	for i, result := range results {
		fmt.Fprintf(&b, "--- Result %d ---\n", i+1)
		fmt.Fprintf(&b, "Source: %s\n", result.Source)
		fmt.Fprintf(&b, "Title: %s\n", result.Title)
		if result.Section != "" {
			fmt.Fprintf(&b, "Section: %s\n", result.Section)
		}

		snippet := result.Text
		if len(snippet) > snippetLimit {
			snippet = snippet[:snippetLimit] + "..."
		}
		fmt.Fprintf(&b, "Content: %s\n", snippet)
		if i < len(results)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (s *Session) record(role, content, toolName string) {
	if s.store == nil || content == "" {
		return
	}

	err := s.store.SaveChatMessage(&models.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: s.id,
		Role:      role,
		Content:   content,
		ToolName:  toolName,
		CreatedAt: time.Now(),
	})
	if err != nil {
		logger.Warn("Failed to record chat message", zap.Error(err))
	}
}
