package ingestion

import (
	"fmt"
	"strings"

	"github.com/jdkato/prose/v2"
)

const (
	maxChunkChars = 1000
	overlapChars  = 200
)

// SplitSentences segments text into sentences. Tagging and entity
// extraction are disabled, only the segmenter runs.
func SplitSentences(text string) ([]string, error) {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to segment text: %w", err)
	}

	sentences := make([]string, 0, len(doc.Sentences()))
	for _, s := range doc.Sentences() {
		t := strings.TrimSpace(s.Text)
		if t != "" {
			sentences = append(sentences, t)
		}
	}
	return sentences, nil
}

// ChunkText splits text into chunks of at most maxChunkChars, breaking on
// sentence boundaries. Adjacent chunks share up to overlapChars of trailing
// sentences so context survives the split. A single sentence longer than
// the limit becomes its own chunk rather than being cut mid-sentence.
func ChunkText(text string) ([]string, error) {
	sentences, err := SplitSentences(text)
	if err != nil {
		return nil, err
	}
	return chunkSentences(sentences), nil
}

func chunkSentences(sentences []string) []string {
	var chunks []string
	var current []string
	size := 0

	for _, sent := range sentences {
		if size > 0 && size+1+len(sent) > maxChunkChars {
			chunks = append(chunks, strings.Join(current, " "))
			current = overlapTail(current)
			size = joinedSize(current)

			if size > 0 && size+1+len(sent) > maxChunkChars {
				current = nil
				size = 0
			}
		}

		current = append(current, sent)
		if size > 0 {
			size++
		}
		size += len(sent)
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}

	return chunks
}

// overlapTail returns the trailing sentences that fit within overlapChars.
func overlapTail(sentences []string) []string {
	total := 0
	i := len(sentences)
	for i > 0 {
		next := total + len(sentences[i-1])
		if total > 0 {
			next++
		}
		if next > overlapChars {
			break
		}
		total = next
		i--
	}
	return append([]string(nil), sentences[i:]...)
}

func joinedSize(sentences []string) int {
	size := 0
	for i, s := range sentences {
		if i > 0 {
			size++
		}
		size += len(s)
	}
	return size
}
