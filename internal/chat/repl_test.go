package chat

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iq-workshop/builder/internal/agent"
)

func newTestREPL(llm *fakeLLM, questions []string, input string) (*REPL, *bytes.Buffer) {
	session := NewSession(testDefinition(agent.ModeFull), llm, nil, nil, nil)
	out := &bytes.Buffer{}
	repl := NewREPL(session, questions)
	repl.in = strings.NewReader(input)
	repl.out = out
	return repl, out
}

func TestREPLQuitCommands(t *testing.T) {
	for _, cmd := range []string{"quit", "exit", "q", "Q"} {
		repl, out := newTestREPL(&fakeLLM{}, nil, cmd+"\n")
		require.NoError(t, repl.Run(context.Background()))
		assert.Contains(t, out.String(), "Goodbye!")
	}
}

func TestREPLAnswersQuestion(t *testing.T) {
	llm := &fakeLLM{responses: []openai.ChatCompletionResponse{textResponse("42 deliveries.")}}
	repl, out := newTestREPL(llm, nil, "how many deliveries?\nquit\n")

	require.NoError(t, repl.Run(context.Background()))
	assert.Contains(t, out.String(), "Agent: 42 deliveries.")
}

func TestREPLHelpPrintsQuestions(t *testing.T) {
	repl, out := newTestREPL(&fakeLLM{}, []string{"Which vans exceed the mileage limit?"}, "help\nquit\n")

	require.NoError(t, repl.Run(context.Background()))
	assert.Contains(t, out.String(), "Sample questions")
	assert.Contains(t, out.String(), "- Which vans exceed the mileage limit?")
}

func TestREPLSkipsBlankLines(t *testing.T) {
	repl, out := newTestREPL(&fakeLLM{}, nil, "\n   \nquit\n")

	require.NoError(t, repl.Run(context.Background()))
	assert.NotContains(t, out.String(), "Error")
}

func TestLoadSampleQuestions(t *testing.T) {
	folder := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(folder, "config"), 0o755))

	content := `=== SQL QUESTIONS (Fabric Data) ===
- How many vehicles are active?

=== COMBINED INSIGHT QUESTIONS ===
- Which drivers exceeded the documented rest threshold last week?
- Do any routes violate the maximum distance policy?
`
	require.NoError(t, os.WriteFile(filepath.Join(folder, "config", "sample_questions.txt"), []byte(content), 0o644))

	questions := LoadSampleQuestions(folder)
	require.Len(t, questions, 2)
	assert.Equal(t, "Which drivers exceeded the documented rest threshold last week?", questions[0])

	assert.Empty(t, LoadSampleQuestions(t.TempDir()))
}
