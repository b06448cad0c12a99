package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/iq-workshop/builder/internal/cache/redis"
	"github.com/iq-workshop/builder/internal/llm"
	"github.com/iq-workshop/builder/internal/metrics"
	"github.com/iq-workshop/builder/internal/storage/models"
	"github.com/iq-workshop/builder/internal/storage/sqlite"
	"github.com/iq-workshop/builder/internal/vector/milvus"
	"github.com/iq-workshop/builder/pkg/logger"
	"github.com/iq-workshop/builder/pkg/utils"
)

// Processor runs the upload-documents step: read the generated documents,
// chunk them on sentence boundaries, embed the chunks and push them into
// the vector index.
type Processor struct {
	llm      *llm.Client
	vectorDB *milvus.Client
	cache    *redis.Client
	store    *sqlite.Client
}

// NewProcessor wires the ingestion pipeline. cache and store may be nil,
// embeddings are then always recomputed and no local records are kept.
func NewProcessor(llmClient *llm.Client, vectorDB *milvus.Client, cache *redis.Client, store *sqlite.Client) *Processor {
	return &Processor{
		llm:      llmClient,
		vectorDB: vectorDB,
		cache:    cache,
		store:    store,
	}
}

type Result struct {
	Documents int
	Chunks    int
}

func (p *Processor) Run(ctx context.Context, dataFolder string) (*Result, error) {
	docsDir := filepath.Join(dataFolder, "documents")
	entries, err := os.ReadDir(docsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read documents folder, run the generate-data step first: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !SupportedFormat(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(docsDir, entry.Name()))
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("no documents found in %s", docsDir)
	}

	if err := p.vectorDB.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	datasetID := utils.HashString(dataFolder)
	var allChunks []milvus.DocumentChunk
	var dbChunks []*models.DocumentChunk

	for _, path := range files {
		doc, err := ReadDocument(path)
		if err != nil {
			return nil, err
		}

		docID := utils.HashString(filepath.Base(path))
		source := filepath.Join("documents", filepath.Base(path))

		if p.store != nil {
			err := p.store.SaveDocument(&models.Document{
				ID:        docID,
				DatasetID: datasetID,
				Path:      source,
				Title:     doc.Title,
				Format:    doc.Format,
				CreatedAt: time.Now(),
			})
			if err != nil {
				logger.Warn("Failed to record document", zap.Error(err))
			}
		}

		chunkIndex := 0
		for _, section := range doc.Sections {
			texts, err := ChunkText(section.Text)
			if err != nil {
				return nil, err
			}

			for _, text := range texts {
				chunkID := fmt.Sprintf("%s_chunk_%d", docID, chunkIndex)
				allChunks = append(allChunks, milvus.DocumentChunk{
					ID:         chunkID,
					Text:       text,
					Source:     source,
					Title:      doc.Title,
					Section:    section.Heading,
					ChunkIndex: int64(chunkIndex),
				})
				dbChunks = append(dbChunks, &models.DocumentChunk{
					ID:         chunkID,
					DocID:      docID,
					ChunkIndex: chunkIndex,
					Text:       text,
					VectorID:   chunkID,
					CreatedAt:  time.Now(),
				})
				chunkIndex++
			}
		}

		logger.Info("Document chunked",
			zap.String("file", filepath.Base(path)),
			zap.Int("chunks", chunkIndex),
		)
	}

	if len(allChunks) == 0 {
		return nil, fmt.Errorf("documents produced no indexable chunks")
	}

	texts := make([]string, len(allChunks))
	for i, chunk := range allChunks {
		texts[i] = chunk.Text
	}

	embeddings, err := p.embedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i := range allChunks {
		allChunks[i].Embedding = embeddings[i]
	}

	if err := p.vectorDB.Insert(ctx, allChunks); err != nil {
		return nil, err
	}

	if p.store != nil {
		if err := p.store.SaveChunks(dbChunks); err != nil {
			logger.Warn("Failed to record chunks", zap.Error(err))
		}
	}

	ids := &SearchIDs{
		CollectionName: p.vectorDB.CollectionName(),
		VectorDim:      len(embeddings[0]),
		DocumentCount:  len(files),
		ChunkCount:     len(allChunks),
		CreatedAt:      time.Now().Format(time.RFC3339),
	}
	if err := ids.Save(dataFolder); err != nil {
		return nil, err
	}

	metrics.DocumentsIngested.Add(float64(len(files)))
	metrics.ChunksIndexed.Add(float64(len(allChunks)))

	logger.Info("Documents indexed",
		zap.Int("documents", len(files)),
		zap.Int("chunks", len(allChunks)),
	)

	return &Result{Documents: len(files), Chunks: len(allChunks)}, nil
}

// embedTexts generates embeddings for every text, serving repeats from the
// cache when one is configured.
func (p *Processor) embedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	missing := make([]int, 0, len(texts))

	for i, text := range texts {
		if p.cache == nil {
			missing = append(missing, i)
			continue
		}

		embedding, found, err := p.cache.GetEmbedding(ctx, utils.HashString(text))
		if err != nil {
			logger.Warn("Embedding cache lookup failed", zap.Error(err))
		}
		if found {
			results[i] = embedding
			metrics.EmbeddingCacheHits.Inc()
			continue
		}
		metrics.EmbeddingCacheMisses.Inc()
		missing = append(missing, i)
	}

	if len(missing) == 0 {
		return results, nil
	}

	batch := make([]string, len(missing))
	for j, idx := range missing {
		batch[j] = texts[idx]
	}

	embeddings, err := p.llm.GenerateBatchEmbeddings(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(missing) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(missing))
	}

	for j, idx := range missing {
		results[idx] = embeddings[j]
		if p.cache != nil {
			if err := p.cache.SetEmbedding(ctx, utils.HashString(texts[idx]), embeddings[j]); err != nil {
				logger.Warn("Failed to cache embedding", zap.Error(err))
			}
		}
	}

	return results, nil
}
