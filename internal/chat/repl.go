package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/iq-workshop/builder/internal/datagen"
)

// REPL is the interactive chat loop of the chat step.
type REPL struct {
	session   *Session
	questions []string
	in        io.Reader
	out       io.Writer
}

func NewREPL(session *Session, questions []string) *REPL {
	return &REPL{
		session:   session,
		questions: questions,
		in:        os.Stdin,
		out:       os.Stdout,
	}
}

// LoadSampleQuestions pulls the combined insight questions out of the
// generated sample_questions.txt. Missing file is fine, help just has
// nothing to show.
func LoadSampleQuestions(dataFolder string) []string {
	raw, err := os.ReadFile(filepath.Join(dataFolder, "config", "sample_questions.txt"))
	if err != nil {
		return nil
	}
	return datagen.ParseCombinedQuestions(string(raw))
}

func (r *REPL) Run(ctx context.Context) error {
	fmt.Fprintln(r.out, strings.Repeat("=", 60))
	fmt.Fprintln(r.out, "Orchestrator Agent Chat")
	fmt.Fprintln(r.out, strings.Repeat("=", 60))
	fmt.Fprintln(r.out, "Type 'quit' to exit, 'help' for sample questions")

	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)

	for {
		fmt.Fprint(r.out, "\nYou: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "quit", "exit", "q":
			fmt.Fprintln(r.out, "\nGoodbye!")
			return nil
		case "help":
			r.printHelp()
			continue
		}

		answer, err := r.session.Ask(ctx, input)
		if err != nil {
			fmt.Fprintf(r.out, "\nError: %v\n", err)
			continue
		}
		if answer == "" {
			answer = "(No response)"
		}
		fmt.Fprintf(r.out, "\nAgent: %s\n", answer)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	fmt.Fprintln(r.out, "\nGoodbye!")
	return nil
}

func (r *REPL) printHelp() {
	if len(r.questions) == 0 {
		fmt.Fprintln(r.out, "\nNo sample questions available.")
		return
	}

	fmt.Fprintln(r.out, "\nSample questions (that may use BOTH tools):")
	for _, q := range r.questions {
		fmt.Fprintf(r.out, "  - %s\n", q)
	}
}
