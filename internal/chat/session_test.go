package chat

import (
	"context"
	"fmt"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iq-workshop/builder/internal/agent"
	"github.com/iq-workshop/builder/internal/vector/milvus"
)

type fakeLLM struct {
	responses []openai.ChatCompletionResponse
	requests  []openai.ChatCompletionRequest
	embedding []float32
}

func (f *fakeLLM) CompleteChat(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	if len(f.responses) == 0 {
		return nil, fmt.Errorf("no scripted response left")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return &resp, nil
}

func (f *fakeLLM) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return f.embedding, nil
}

type fakeSQL struct {
	queries []string
	result  string
	err     error
}

func (f *fakeSQL) Query(query string) (string, error) {
	f.queries = append(f.queries, query)
	return f.result, f.err
}

type fakeSearch struct {
	topK    int
	results []milvus.SearchResult
}

func (f *fakeSearch) Search(ctx context.Context, embedding []float32, topK int) ([]milvus.SearchResult, error) {
	f.topK = topK
	return f.results, nil
}

func textResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: content,
			},
		}},
	}
}

func toolCallResponse(callID, name, arguments string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:   callID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      name,
						Arguments: arguments,
					},
				}},
			},
		}},
	}
}

func testDefinition(mode string) *agent.Definition {
	return agent.BuildDefinition("gpt-4o", nil, mode)
}

func TestAskPlainAnswer(t *testing.T) {
	llm := &fakeLLM{responses: []openai.ChatCompletionResponse{textResponse("Hello!")}}
	session := NewSession(testDefinition(agent.ModeFull), llm, nil, nil, nil)

	answer, err := session.Ask(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello!", answer)

	// System prompt travels with every request.
	require.Len(t, llm.requests, 1)
	assert.Equal(t, openai.ChatMessageRoleSystem, llm.requests[0].Messages[0].Role)
	assert.Len(t, llm.requests[0].Tools, 2)
}

func TestAskExecutesSQLToolCall(t *testing.T) {
	llm := &fakeLLM{responses: []openai.ChatCompletionResponse{
		toolCallResponse("call-1", agent.ToolExecuteSQL, `{"sql_query": "SELECT COUNT(*) FROM vehicles"}`),
		textResponse("There are 16 vehicles."),
	}}
	sql := &fakeSQL{result: "| count |\n| --- |\n| 16 |"}

	session := NewSession(testDefinition(agent.ModeFull), llm, sql, nil, nil)
	answer, err := session.Ask(context.Background(), "how many vehicles?")
	require.NoError(t, err)
	assert.Equal(t, "There are 16 vehicles.", answer)

	require.Equal(t, []string{"SELECT COUNT(*) FROM vehicles"}, sql.queries)

	// The second request carries the tool output back to the model.
	require.Len(t, llm.requests, 2)
	last := llm.requests[1].Messages[len(llm.requests[1].Messages)-1]
	assert.Equal(t, openai.ChatMessageRoleTool, last.Role)
	assert.Equal(t, "call-1", last.ToolCallID)
	assert.Contains(t, last.Content, "16")
}

func TestAskExecutesSearchToolCall(t *testing.T) {
	search := &fakeSearch{results: []milvus.SearchResult{
		{Text: "Drivers must rest 30 minutes per 4 hours.", Source: "documents/policy.html", Title: "Fleet Safety Policy", Section: "Driver Requirements"},
	}}
	llm := &fakeLLM{
		embedding: []float32{0.1, 0.2},
		responses: []openai.ChatCompletionResponse{
			toolCallResponse("call-2", agent.ToolSearchDocuments, `{"query": "rest policy", "top": 50}`),
			textResponse("Drivers rest 30 minutes per 4 hours."),
		},
	}

	session := NewSession(testDefinition(agent.ModeSearchOnly), llm, nil, search, nil)
	_, err := session.Ask(context.Background(), "what is the rest policy?")
	require.NoError(t, err)

	// top is clamped to the maximum.
	assert.Equal(t, maxSearchTop, search.topK)

	last := llm.requests[1].Messages[len(llm.requests[1].Messages)-1]
	assert.Contains(t, last.Content, "Fleet Safety Policy")
	assert.Contains(t, last.Content, "Section: Driver Requirements")
}

func TestSQLToolUnavailable(t *testing.T) {
	llm := &fakeLLM{responses: []openai.ChatCompletionResponse{
		toolCallResponse("call-3", agent.ToolExecuteSQL, `{"sql_query": "SELECT 1"}`),
		textResponse("I cannot run SQL right now."),
	}}

	session := NewSession(testDefinition(agent.ModeSearchOnly), llm, nil, nil, nil)
	_, err := session.Ask(context.Background(), "count rows")
	require.NoError(t, err)

	last := llm.requests[1].Messages[len(llm.requests[1].Messages)-1]
	assert.Contains(t, last.Content, "SQL Error")
}

func TestUnknownToolReportedToModel(t *testing.T) {
	llm := &fakeLLM{responses: []openai.ChatCompletionResponse{
		toolCallResponse("call-4", "launch_rockets", `{}`),
		textResponse("Sorry, no such tool."),
	}}

	session := NewSession(testDefinition(agent.ModeFull), llm, nil, nil, nil)
	_, err := session.Ask(context.Background(), "do it")
	require.NoError(t, err)

	last := llm.requests[1].Messages[len(llm.requests[1].Messages)-1]
	assert.Contains(t, last.Content, "Unknown function: launch_rockets")
}

func TestFormatSearchResults(t *testing.T) {
	assert.Equal(t, "No documents found matching the query.", FormatSearchResults(nil))

	long := strings.Repeat("x", snippetLimit+100)
	out := FormatSearchResults([]milvus.SearchResult{
		{Text: long, Source: "documents/a.html", Title: "A"},
		{Text: "short", Source: "documents/b.html", Title: "B", Section: "Rules"},
	})

	assert.Contains(t, out, "--- Result 1 ---")
	assert.Contains(t, out, "--- Result 2 ---")
	assert.Contains(t, out, strings.Repeat("x", snippetLimit)+"...")
	assert.NotContains(t, out, strings.Repeat("x", snippetLimit+1))
	assert.Contains(t, out, "Section: Rules")
}
