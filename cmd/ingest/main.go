// Package main ingests knowledge base documents: it reads a JSONL
// export of instruction/response pairs, chunks long answers, embeds
// them, and loads ChromaDB and the SQLite store.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/support-chatbot/internal/chroma"
	"github.com/your-org/support-chatbot/internal/chunker"
	"github.com/your-org/support-chatbot/internal/config"
	"github.com/your-org/support-chatbot/internal/kbstore"
	"github.com/your-org/support-chatbot/internal/llm"
)

const embedBatchSize = 64

// kbRecord is one line of the knowledge base JSONL export
type kbRecord struct {
	Instruction string `json:"instruction"`
	Response    string `json:"response"`
	Intent      string `json:"intent"`
}

func main() {
	kbPath := flag.String("kb-path", "./data/kb.jsonl", "Path to knowledge base JSONL file")
	configPath := flag.String("config", "./configs/config.yaml", "Path to configuration file")
	chunkSize := flag.Int("chunk-size", chunker.DefaultChunkSize, "Chunk size in characters")
	chunkOverlap := flag.Int("chunk-overlap", chunker.DefaultChunkOverlap, "Chunk overlap in characters")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Starting knowledge base ingestion",
		zap.String("kb_path", *kbPath),
		zap.String("chroma_url", cfg.Chroma.URL),
		zap.Int("chunk_size", *chunkSize))

	records, err := readKB(*kbPath)
	if err != nil {
		logger.Fatal("Failed to read knowledge base", zap.Error(err))
	}
	logger.Info("Loaded knowledge base records", zap.Int("count", len(records)))

	llmClient, err := llm.NewClient(llm.Config{
		APIKey:              cfg.OpenAI.APIKey,
		Endpoint:            cfg.OpenAI.Endpoint,
		EmbeddingEndpoint:   cfg.OpenAI.EmbeddingEndpoint,
		EmbeddingModel:      cfg.OpenAI.EmbeddingModel,
		EmbeddingDimensions: cfg.Retrieval.EmbeddingDimensions,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	chromaClient := chroma.NewClient(cfg.Chroma.URL, cfg.Chroma.CollectionName, logger)

	store, err := kbstore.NewStore(cfg.Store.DBPath)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if err := chromaClient.EnsureCollection(ctx); err != nil {
		logger.Fatal("Failed to ensure collection", zap.Error(err))
	}

	documents, entries := buildDocuments(records, *chunkSize, *chunkOverlap)
	logger.Info("Prepared document chunks", zap.Int("chunks", len(documents)))

	start := time.Now()
	if err := ingest(ctx, llmClient, chromaClient, documents, logger); err != nil {
		logger.Fatal("Ingestion failed", zap.Error(err))
	}

	if err := store.AddDocuments(entries); err != nil {
		logger.Fatal("Failed to store document metadata", zap.Error(err))
	}

	logger.Info("Ingestion complete",
		zap.Int("documents", len(documents)),
		zap.Duration("elapsed", time.Since(start)))
}

// readKB parses the JSONL knowledge base export
func readKB(path string) ([]kbRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	var records []kbRecord
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var record kbRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			return nil, fmt.Errorf("invalid JSON on line %d: %w", line, err)
		}
		if record.Instruction == "" || record.Response == "" {
			continue
		}
		records = append(records, record)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return records, nil
}

// buildDocuments chunks each record's answer and pairs the chunks with
// the question that leads to them.
func buildDocuments(records []kbRecord, chunkSize, chunkOverlap int) ([]chroma.Document, []kbstore.DocumentEntry) {
	var documents []chroma.Document
	var entries []kbstore.DocumentEntry

	for i, record := range records {
		chunks := chunker.Split(record.Response, chunkSize, chunkOverlap)
		for j, chunk := range chunks {
			docID := fmt.Sprintf("kb-%d-%d", i, j)
			documents = append(documents, chroma.Document{
				ID:      docID,
				Content: record.Instruction + "\n" + chunk,
				Metadata: map[string]string{
					"instruction": record.Instruction,
					"response":    chunk,
					"intent":      record.Intent,
				},
			})
			entries = append(entries, kbstore.DocumentEntry{
				DocID:       docID,
				Intent:      record.Intent,
				Instruction: record.Instruction,
				Response:    chunk,
			})
		}
	}

	return documents, entries
}

// ingest embeds documents in batches and adds them to ChromaDB
func ingest(ctx context.Context, llmClient *llm.Client, chromaClient *chroma.Client, documents []chroma.Document, logger *zap.Logger) error {
	for start := 0; start < len(documents); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(documents) {
			end = len(documents)
		}
		batch := documents[start:end]

		texts := make([]string, len(batch))
		for i, doc := range batch {
			texts[i] = doc.Content
		}

		embeddings, err := llmClient.EmbedTexts(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed batch starting at %d: %w", start, err)
		}

		if err := chromaClient.AddDocuments(ctx, batch, embeddings.Embeddings); err != nil {
			return fmt.Errorf("failed to add batch starting at %d: %w", start, err)
		}

		logger.Info("Ingested batch",
			zap.Int("from", start),
			zap.Int("to", end),
			zap.Int("total", len(documents)))
	}

	return nil
}
