// Copyright 2025 Support Chatbot Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package retriever finds knowledge-base passages relevant to a query
// by embedding similarity. Retrieval runs only for messages routed to
// the RAG bucket.
package retriever

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/your-org/support-chatbot/internal/chroma"
	"go.uber.org/zap"
)

// NoContextMessage is returned when the knowledge base has nothing relevant
const NoContextMessage = "No relevant information found in knowledge base."

// Embedder produces query embeddings
type Embedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// Searcher performs vector similarity search
type Searcher interface {
	Search(ctx context.Context, queryEmbedding []float32, nResults int, intentFilter string) ([]chroma.SearchResult, error)
}

// Document is one retrieved knowledge-base entry
type Document struct {
	ID          string  `json:"id"`
	Score       float64 `json:"score"`
	Instruction string  `json:"instruction"`
	Response    string  `json:"response"`
	Intent      string  `json:"intent"`
}

// Config holds retriever settings
type Config struct {
	TopK      int
	CacheSize int
}

// Retriever embeds queries and searches the vector store
type Retriever struct {
	embedder Embedder
	searcher Searcher
	config   Config
	logger   *zap.Logger

	mu    sync.Mutex
	cache map[string][]float32
}

// New creates a retriever
func New(embedder Embedder, searcher Searcher, config Config, logger *zap.Logger) *Retriever {
	if config.TopK <= 0 {
		config.TopK = 2
	}
	if config.CacheSize <= 0 {
		config.CacheSize = 1000
	}
	return &Retriever{
		embedder: embedder,
		searcher: searcher,
		config:   config,
		logger:   logger,
		cache:    make(map[string][]float32),
	}
}

// Retrieve returns the top-K most relevant documents for the query
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]Document, error) {
	return r.RetrieveN(ctx, query, r.config.TopK)
}

// RetrieveN returns up to n relevant documents for the query
func (r *Retriever) RetrieveN(ctx context.Context, query string, n int) ([]Document, error) {
	embedding, err := r.queryEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := r.searcher.Search(ctx, embedding, n, "")
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	documents := make([]Document, 0, len(results))
	for _, result := range results {
		documents = append(documents, Document{
			ID: result.ID,
			// Chroma reports cosine distance; similarity is its complement
			Score:       1 - result.Distance,
			Instruction: result.Metadata["instruction"],
			Response:    result.Metadata["response"],
			Intent:      result.Metadata["intent"],
		})
	}

	r.logger.Debug("Retrieved documents",
		zap.Int("requested", n),
		zap.Int("returned", len(documents)),
	)

	return documents, nil
}

// queryEmbedding embeds the query, serving repeats from a bounded cache
func (r *Retriever) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	r.mu.Lock()
	cached, ok := r.cache[query]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	embedding, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if len(r.cache) < r.config.CacheSize {
		r.cache[query] = embedding
	}
	r.mu.Unlock()

	return embedding, nil
}

// FormatContext renders retrieved documents as a prompt context block
func FormatContext(documents []Document) string {
	if len(documents) == 0 {
		return NoContextMessage
	}

	parts := make([]string, 0, len(documents))
	for i, doc := range documents {
		parts = append(parts, fmt.Sprintf("[Context %d]\nQuestion: %s\nAnswer: %s",
			i+1, doc.Instruction, doc.Response))
	}

	return strings.Join(parts, "\n\n")
}

// CacheLen reports how many query embeddings are cached
func (r *Retriever) CacheLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}
