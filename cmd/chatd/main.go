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

// Package main provides the customer support chat service. It exposes
// the routing pipeline over a small REST API.
package main

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/your-org/support-chatbot/internal/chroma"
	"github.com/your-org/support-chatbot/internal/config"
	"github.com/your-org/support-chatbot/internal/health"
	"github.com/your-org/support-chatbot/internal/intent"
	"github.com/your-org/support-chatbot/internal/kbstore"
	"github.com/your-org/support-chatbot/internal/llm"
	"github.com/your-org/support-chatbot/internal/metrics"
	"github.com/your-org/support-chatbot/internal/pipeline"
	"github.com/your-org/support-chatbot/internal/resilience"
	"github.com/your-org/support-chatbot/internal/respond"
	"github.com/your-org/support-chatbot/internal/retriever"
	"github.com/your-org/support-chatbot/internal/router"
	"github.com/your-org/support-chatbot/internal/sentiment"
	"github.com/your-org/support-chatbot/internal/session"
)

const (
	// DefaultPort is the default port for the chat service
	DefaultPort = "8080"
	// ServiceVersion is reported on the health endpoint
	ServiceVersion = "1.0.0"
)

// ChatRequest represents an incoming chat request
type ChatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id"`
}

// ChatResponse represents a chat response
type ChatResponse struct {
	Response             string  `json:"response"`
	Intent               string  `json:"intent"`
	Confidence           float64 `json:"confidence"`
	Bucket               string  `json:"bucket"`
	CostTier             string  `json:"cost_tier"`
	Action               string  `json:"action"`
	Sentiment            string  `json:"sentiment"`
	SentimentScore       float64 `json:"sentiment_score"`
	EscalatedBySentiment bool    `json:"escalated_by_sentiment"`
	SessionID            string  `json:"session_id"`
}

// FeedbackRequest represents a feedback submission
type FeedbackRequest struct {
	SessionID string `json:"session_id"`
	Intent    string `json:"intent"`
	Rating    int    `json:"rating" binding:"required"`
	Comment   string `json:"comment"`
}

// BucketInfo describes one routing bucket for the intents endpoint
type BucketInfo struct {
	Description string   `json:"description"`
	CostTier    string   `json:"cost_tier"`
	Intents     []string `json:"intents"`
}

// ChatServer holds the service dependencies
type ChatServer struct {
	config         *config.Config
	logger         *zap.Logger
	pipeline       *pipeline.Pipeline
	router         *router.Router
	sessionManager *session.Manager
	healthManager  *health.Manager
	collector      *metrics.Collector
	store          *kbstore.Store
}

func main() {
	cfg, err := config.Load("./configs/config.yaml")
	if err != nil {
		// Logger is not up yet
		panic("failed to load configuration: " + err.Error())
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	server, err := newChatServer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize chat service", zap.Error(err))
	}
	defer server.close()

	engine := gin.New()
	engine.Use(gin.Logger())
	engine.Use(gin.Recovery())

	engine.POST("/chat", server.handleChat)
	engine.GET("/health", server.handleHealth)
	engine.GET("/intents", server.handleIntents)
	engine.GET("/stats", server.handleStats)
	engine.POST("/feedback", server.handleFeedback)

	port := os.Getenv("PORT")
	if port == "" {
		port = DefaultPort
	}

	logger.Info("Starting chat service",
		zap.String("port", port),
		zap.Int("known_intents", server.router.KnownIntents()),
		zap.Float64("confidence_threshold", server.router.ConfidenceThreshold()))

	if err := engine.Run(":" + port); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

// newChatServer wires the full pipeline from configuration
func newChatServer(cfg *config.Config, logger *zap.Logger) (*ChatServer, error) {
	classifier, err := intent.NewClassifier(cfg.Models.IntentModelPath(), logger)
	if err != nil {
		return nil, err
	}

	analyzer, err := sentiment.NewAnalyzer(cfg.Models.SentimentModelPath(), cfg.Sentiment.AngerKeywords, logger)
	if err != nil {
		return nil, err
	}

	intentRouter, err := router.New(cfg.Routing, cfg.Sentiment)
	if err != nil {
		return nil, err
	}

	llmClient, err := llm.NewClient(llm.Config{
		APIKey:              cfg.OpenAI.APIKey,
		Endpoint:            cfg.OpenAI.Endpoint,
		EmbeddingEndpoint:   cfg.OpenAI.EmbeddingEndpoint,
		EmbeddingModel:      cfg.OpenAI.EmbeddingModel,
		EmbeddingDimensions: cfg.Retrieval.EmbeddingDimensions,
		ChatModel:           cfg.LLM.Model,
		Temperature:         cfg.LLM.Temperature,
		MaxTokens:           cfg.LLM.MaxTokens,
		InputCostPer1M:      cfg.LLM.InputCostPer1M,
		OutputCostPer1M:     cfg.LLM.OutputCostPer1M,
	}, logger)
	if err != nil {
		return nil, err
	}

	chromaClient := chroma.NewClient(cfg.Chroma.URL, cfg.Chroma.CollectionName, logger)

	kbRetriever := retriever.New(llmClient, chromaClient, retriever.Config{
		TopK:      cfg.Retrieval.TopK,
		CacheSize: cfg.Retrieval.QueryCacheSize,
	}, logger)

	breaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("llm"), logger)
	responder := respond.NewResponder(llmClient, breaker, logger)

	store, err := kbstore.NewStore(cfg.Store.DBPath)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector(logger, nil)

	chatPipeline := pipeline.New(classifier, analyzer, intentRouter, kbRetriever, responder, collector, logger)

	sessionManager := session.NewManager(session.Config{
		DefaultTTL:      time.Duration(cfg.Session.DefaultTTL) * time.Minute,
		MaxSessions:     cfg.Session.MaxSessions,
		CleanupInterval: time.Duration(cfg.Session.CleanupInterval) * time.Minute,
	}, logger)

	healthManager := health.NewManager("chatd", ServiceVersion, logger)
	healthManager.AddChecker("chromadb", health.ExternalServiceHealthChecker("chromadb", chromaClient.HealthCheck))
	healthManager.AddChecker("llm", health.ExternalServiceHealthChecker("llm", llmClient.Ping))
	healthManager.AddChecker("database", health.DatabaseHealthChecker("sqlite", store.Ping))
	healthManager.AddChecker("intent_model", health.ModelArtifactChecker("intent", cfg.Models.IntentModelPath()))
	healthManager.AddChecker("sentiment_model", health.ModelArtifactChecker("sentiment", cfg.Models.SentimentModelPath()))

	return &ChatServer{
		config:         cfg,
		logger:         logger,
		pipeline:       chatPipeline,
		router:         intentRouter,
		sessionManager: sessionManager,
		healthManager:  healthManager,
		collector:      collector,
		store:          store,
	}, nil
}

// close releases server resources
func (s *ChatServer) close() {
	if err := s.sessionManager.Close(); err != nil {
		s.logger.Warn("Failed to close session manager", zap.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn("Failed to close store", zap.Error(err))
	}
}

// handleChat processes one customer message
func (s *ChatServer) handleChat(c *gin.Context) {
	ctx := c.Request.Context()

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	sess, err := s.sessionManager.GetOrCreate(ctx, req.SessionID)
	if err != nil {
		s.logger.Error("Failed to get or create session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}

	message := session.SanitizeUserInput(req.Message)
	result, err := s.pipeline.Process(ctx, message)
	if err != nil {
		s.respondError(c, err)
		return
	}

	if err := s.sessionManager.AddExchange(ctx, sess.ID, message, session.Message{
		Content: result.Response,
		Intent:  result.Intent,
		Bucket:  string(result.Bucket),
		Action:  result.Action,
	}); err != nil {
		s.logger.Warn("Failed to record exchange", zap.Error(err))
	}

	if err := s.store.LogRequest(kbstore.RequestRecord{
		SessionID:            sess.ID,
		Message:              message,
		Intent:               result.Intent,
		Confidence:           result.Confidence,
		Bucket:               string(result.Bucket),
		Action:               result.Action,
		Sentiment:            result.Sentiment,
		EscalatedBySentiment: result.EscalatedBySentiment,
		Latency:              result.Latency,
	}); err != nil {
		s.logger.Warn("Failed to log request", zap.Error(err))
	}

	c.JSON(http.StatusOK, ChatResponse{
		Response:             result.Response,
		Intent:               result.Intent,
		Confidence:           result.Confidence,
		Bucket:               string(result.Bucket),
		CostTier:             result.CostTier,
		Action:               result.Action,
		Sentiment:            result.Sentiment,
		SentimentScore:       result.SentimentScore,
		EscalatedBySentiment: result.EscalatedBySentiment,
		SessionID:            sess.ID,
	})
}

// respondError maps pipeline errors to HTTP responses
func (s *ChatServer) respondError(c *gin.Context, err error) {
	var serviceErr *resilience.ServiceError
	if resilience.AsServiceError(err, &serviceErr) {
		if serviceErr.StatusCode >= 500 {
			s.logger.Error("Request failed", zap.Error(err))
		}
		c.JSON(serviceErr.StatusCode, serviceErr.ToErrorResponse(requestID(c)))
		return
	}

	s.logger.Error("Request failed", zap.Error(err))
	internal := resilience.NewInternalError("failed to process message", err)
	c.JSON(internal.StatusCode, internal.ToErrorResponse(requestID(c)))
}

// requestID returns the client-supplied request ID, if any
func requestID(c *gin.Context) string {
	return c.GetHeader("X-Request-ID")
}

// handleHealth returns the aggregated dependency health
func (s *ChatServer) handleHealth(c *gin.Context) {
	result := s.healthManager.Check(c.Request.Context())

	statusCode := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, result)
}

// handleIntents returns the routing table
func (s *ChatServer) handleIntents(c *gin.Context) {
	buckets := make(map[string]BucketInfo)
	for bucket, info := range s.router.BucketInfo() {
		buckets[string(bucket)] = BucketInfo{
			Description: info.Description,
			CostTier:    info.CostTier,
			Intents:     info.Intents,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"buckets":              buckets,
		"total_intents":        s.router.KnownIntents(),
		"confidence_threshold": s.router.ConfidenceThreshold(),
	})
}

// handleStats returns routing and cost statistics
func (s *ChatServer) handleStats(c *gin.Context) {
	snapshot := s.collector.GetSnapshot()

	documentCount, err := s.store.CountDocuments()
	if err != nil {
		s.logger.Warn("Failed to count documents", zap.Error(err))
	}

	averageRating, err := s.store.AverageRating()
	if err != nil {
		s.logger.Warn("Failed to compute average rating", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"routing":         snapshot,
		"active_sessions": s.sessionManager.ActiveSessions(),
		"kb_documents":    documentCount,
		"average_rating":  averageRating,
	})
}

// handleFeedback records user feedback on a conversation
func (s *ChatServer) handleFeedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rating is required"})
		return
	}

	if req.Rating < 1 || req.Rating > 5 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rating must be between 1 and 5"})
		return
	}

	if err := s.store.AddFeedback(kbstore.FeedbackEntry{
		SessionID: req.SessionID,
		Intent:    req.Intent,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}); err != nil {
		s.logger.Error("Failed to store feedback", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store feedback"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "feedback recorded"})
}

// buildLogger constructs a zap logger from the logging configuration
func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "text" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zapCfg.Level = level

	if cfg.Output != "" && cfg.Output != "stdout" {
		zapCfg.OutputPaths = []string{cfg.Output}
	}

	return zapCfg.Build()
}
