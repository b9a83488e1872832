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

// Package llm wraps an OpenAI-compatible API for embeddings and chat
// completions. The endpoint is configurable so Groq-style providers
// work unchanged.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/your-org/support-chatbot/internal/resilience"
	"go.uber.org/zap"
)

const (
	// MaxRetries defines the maximum number of retry attempts
	MaxRetries = 3
	// BaseRetryDelay defines the base delay for exponential backoff
	BaseRetryDelay = time.Second
)

// Config holds client settings. EmbeddingEndpoint routes embedding
// requests to a different provider when the chat endpoint (Groq, for
// example) serves no embeddings API; empty means the chat endpoint.
type Config struct {
	APIKey              string
	Endpoint            string
	EmbeddingEndpoint   string
	EmbeddingModel      string
	EmbeddingDimensions int
	ChatModel           string
	Temperature         float64
	MaxTokens           int
	InputCostPer1M      float64
	OutputCostPer1M     float64
}

// Usage tracks API usage and estimated cost for one call
type Usage struct {
	InputTokens    int
	OutputTokens   int
	RequestCount   int
	EstimatedCost  float64
	ProcessingTime time.Duration
}

// EmbeddingResponse represents the response from embedding operations
type EmbeddingResponse struct {
	Embeddings [][]float32
	Usage      Usage
}

// ChatResponse represents a completed chat generation
type ChatResponse struct {
	Content string
	Usage   Usage
}

// Client wraps the go-openai client with retries and cost accounting
type Client struct {
	client          *openai.Client
	embeddingClient *openai.Client
	config          Config
	logger          *zap.Logger
}

// NewClient creates a new client against the configured endpoint
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config.EmbeddingDimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.Endpoint != "" {
		clientConfig.BaseURL = config.Endpoint
	}

	embeddingConfig := openai.DefaultConfig(config.APIKey)
	embeddingConfig.BaseURL = clientConfig.BaseURL
	if config.EmbeddingEndpoint != "" {
		embeddingConfig.BaseURL = config.EmbeddingEndpoint
	}

	client := &Client{
		client:          openai.NewClientWithConfig(clientConfig),
		embeddingClient: openai.NewClientWithConfig(embeddingConfig),
		config:          config,
		logger:          logger,
	}

	logger.Info("LLM client initialized",
		zap.String("endpoint", clientConfig.BaseURL),
		zap.String("embedding_endpoint", embeddingConfig.BaseURL),
		zap.String("embedding_model", config.EmbeddingModel),
		zap.String("chat_model", config.ChatModel),
		zap.Int("expected_dimensions", config.EmbeddingDimensions),
	)

	return client, nil
}

// EmbedTexts generates embeddings for multiple texts in one batch request
func (c *Client) EmbedTexts(ctx context.Context, texts []string) (*EmbeddingResponse, error) {
	if len(texts) == 0 {
		return &EmbeddingResponse{Embeddings: [][]float32{}}, nil
	}

	start := time.Now()

	var resp openai.EmbeddingResponse
	err := resilience.WithExponentialBackoff(ctx, c.logger, c.backoffConfig(), func(ctx context.Context) error {
		var reqErr error
		resp, reqErr = c.embeddingClient.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts,
			Model: openai.EmbeddingModel(c.config.EmbeddingModel),
		})
		return reqErr
	})
	if err != nil {
		c.logger.Error("Failed to create embeddings",
			zap.Error(err),
			zap.Int("text_count", len(texts)),
		)
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		embeddings[i] = item.Embedding
	}

	if err := c.validateEmbeddingDimensions(embeddings); err != nil {
		return nil, fmt.Errorf("embedding validation failed: %w", err)
	}

	usage := Usage{
		InputTokens:    resp.Usage.PromptTokens,
		RequestCount:   1,
		EstimatedCost:  float64(resp.Usage.PromptTokens) / 1_000_000 * c.config.InputCostPer1M,
		ProcessingTime: time.Since(start),
	}

	c.logger.Debug("Batch embedding generation completed",
		zap.Int("text_count", len(texts)),
		zap.Int("tokens_used", usage.InputTokens),
		zap.Duration("processing_time", usage.ProcessingTime),
	)

	return &EmbeddingResponse{Embeddings: embeddings, Usage: usage}, nil
}

// EmbedQuery generates an embedding for a single query text
func (c *Client) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if query == "" {
		return nil, fmt.Errorf("query text cannot be empty")
	}

	response, err := c.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	if len(response.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned for query")
	}

	return response.Embeddings[0], nil
}

// Chat generates a completion from a system prompt and a user prompt
func (c *Client) Chat(ctx context.Context, systemPrompt, userPrompt string) (*ChatResponse, error) {
	return c.ChatWithModel(ctx, c.config.ChatModel, systemPrompt, userPrompt)
}

// ChatWithModel generates a completion with an explicit model override
func (c *Client) ChatWithModel(ctx context.Context, model, systemPrompt, userPrompt string) (*ChatResponse, error) {
	if userPrompt == "" {
		return nil, fmt.Errorf("user prompt cannot be empty")
	}

	start := time.Now()

	request := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: float32(c.config.Temperature),
		MaxTokens:   c.config.MaxTokens,
	}

	var resp openai.ChatCompletionResponse
	err := resilience.WithExponentialBackoff(ctx, c.logger, c.backoffConfig(), func(ctx context.Context) error {
		var reqErr error
		resp, reqErr = c.client.CreateChatCompletion(ctx, request)
		return reqErr
	})
	if err != nil {
		c.logger.Error("Chat completion failed",
			zap.Error(err),
			zap.String("model", model),
		)
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	usage := Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		RequestCount: 1,
		EstimatedCost: float64(resp.Usage.PromptTokens)/1_000_000*c.config.InputCostPer1M +
			float64(resp.Usage.CompletionTokens)/1_000_000*c.config.OutputCostPer1M,
		ProcessingTime: time.Since(start),
	}

	c.logger.Info("Chat completion generated",
		zap.String("model", model),
		zap.Int("input_tokens", usage.InputTokens),
		zap.Int("output_tokens", usage.OutputTokens),
		zap.Float64("estimated_cost_usd", usage.EstimatedCost),
		zap.Duration("processing_time", usage.ProcessingTime),
	)

	return &ChatResponse{Content: resp.Choices[0].Message.Content, Usage: usage}, nil
}

// Ping verifies connectivity with a minimal embedding request
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := c.EmbedQuery(ctx, "ping"); err != nil {
		return fmt.Errorf("connection validation failed: %w", err)
	}
	return nil
}

// validateEmbeddingDimensions checks embeddings against the expected size
func (c *Client) validateEmbeddingDimensions(embeddings [][]float32) error {
	for i, embedding := range embeddings {
		if len(embedding) != c.config.EmbeddingDimensions {
			return fmt.Errorf("embedding %d has %d dimensions, expected %d",
				i, len(embedding), c.config.EmbeddingDimensions)
		}
	}
	return nil
}

// backoffConfig builds the retry policy for API calls
func (c *Client) backoffConfig() resilience.BackoffConfig {
	config := resilience.DefaultBackoffConfig()
	config.MaxRetries = MaxRetries
	config.BaseDelay = BaseRetryDelay
	config.RetryOnFunc = retryableAPIError
	return config
}

// retryableAPIError retries rate limits and server-side failures only
func retryableAPIError(err error) bool {
	if err == nil {
		return false
	}
	if err == context.Canceled || err == context.DeadlineExceeded {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return true
		case apiErr.HTTPStatusCode >= 500:
			return true
		default:
			return false
		}
	}

	// Transport-level errors are retryable
	return true
}
