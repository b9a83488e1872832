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

// Package pipeline runs a customer message through the full handling
// chain: classification, sentiment analysis, bucket routing, and the
// bucket-appropriate response path.
package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/support-chatbot/internal/intent"
	"github.com/your-org/support-chatbot/internal/llm"
	"github.com/your-org/support-chatbot/internal/metrics"
	"github.com/your-org/support-chatbot/internal/resilience"
	"github.com/your-org/support-chatbot/internal/respond"
	"github.com/your-org/support-chatbot/internal/retriever"
	"github.com/your-org/support-chatbot/internal/router"
	"github.com/your-org/support-chatbot/internal/sentiment"
)

// Retriever fetches knowledge base context for a query
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]retriever.Document, error)
}

// Responder produces the reply for each bucket
type Responder interface {
	Direct(intentName string) (respond.Reply, error)
	Generate(ctx context.Context, query, retrievedContext string) (respond.Reply, error)
	Escalate(intentName string) respond.Reply
}

// Result is the outcome of processing one message
type Result struct {
	Response             string               `json:"response"`
	Intent               string               `json:"intent"`
	Confidence           float64              `json:"confidence"`
	Bucket               router.Bucket        `json:"bucket"`
	CostTier             string               `json:"cost_tier"`
	Action               string               `json:"action"`
	Reason               string               `json:"reason"`
	Sentiment            string               `json:"sentiment"`
	SentimentScore       float64              `json:"sentiment_score"`
	EscalatedBySentiment bool                 `json:"escalated_by_sentiment"`
	Retrieved            []retriever.Document `json:"retrieved,omitempty"`
	Usage                llm.Usage            `json:"usage"`
	Latency              time.Duration        `json:"latency"`
}

// Pipeline wires the stages together
type Pipeline struct {
	classifier *intent.Classifier
	analyzer   *sentiment.Analyzer
	router     *router.Router
	retriever  Retriever
	responder  Responder
	metrics    *metrics.Collector
	logger     *zap.Logger
}

// New creates a pipeline. The metrics collector may be nil.
func New(
	classifier *intent.Classifier,
	analyzer *sentiment.Analyzer,
	rt *router.Router,
	rv Retriever,
	rs Responder,
	collector *metrics.Collector,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		classifier: classifier,
		analyzer:   analyzer,
		router:     rt,
		retriever:  rv,
		responder:  rs,
		metrics:    collector,
		logger:     logger,
	}
}

// Process handles one customer message end to end
func (p *Pipeline) Process(ctx context.Context, message string) (*Result, error) {
	if strings.TrimSpace(message) == "" {
		return nil, resilience.NewBadRequestError("message must not be empty", nil)
	}

	start := time.Now()

	prediction := p.classifier.Predict(message)
	sent := p.analyzer.Analyze(message)
	decision := p.router.Route(prediction.Intent, prediction.Confidence, sent)

	// Bucket A intents without a template still need an answer, so they
	// fall through to the retrieval path.
	if decision.Bucket == router.BucketA && !respond.HasDirectResponse(prediction.Intent) {
		p.logger.Warn("No template for bucket A intent, falling back to RAG",
			zap.String("intent", prediction.Intent))
		decision.Bucket = router.BucketB
		decision.Action = router.ActionTemplateFallback
		decision.CostTier = router.CostTierLow
		decision.Reason = "Template missing - falling back to RAG"
	}

	result := &Result{
		Intent:               prediction.Intent,
		Confidence:           prediction.Confidence,
		Bucket:               decision.Bucket,
		CostTier:             decision.CostTier,
		Action:               decision.Action,
		Reason:               decision.Reason,
		Sentiment:            sent.Label,
		SentimentScore:       sent.Score,
		EscalatedBySentiment: decision.EscalatedBySentiment,
	}

	err := p.respond(ctx, message, prediction.Intent, decision, result)
	result.Latency = time.Since(start)
	p.record(result, err)

	if err != nil {
		return nil, err
	}

	p.logger.Info("Message processed",
		zap.String("intent", result.Intent),
		zap.Float64("confidence", result.Confidence),
		zap.String("bucket", string(result.Bucket)),
		zap.String("action", result.Action),
		zap.String("sentiment", result.Sentiment),
		zap.Duration("latency", result.Latency))

	return result, nil
}

// respond fills in the response for the decided bucket
func (p *Pipeline) respond(ctx context.Context, message, intentName string, decision router.Decision, result *Result) error {
	switch decision.Bucket {
	case router.BucketA:
		reply, err := p.responder.Direct(intentName)
		if err != nil {
			return err
		}
		result.Response = reply.Text
		return nil

	case router.BucketB:
		return p.respondWithRAG(ctx, message, result)

	default:
		reply := p.responder.Escalate(intentName)
		result.Response = reply.Text
		return nil
	}
}

// respondWithRAG retrieves context and generates a grounded reply. A
// retrieval failure degrades to an empty context rather than failing
// the request.
func (p *Pipeline) respondWithRAG(ctx context.Context, message string, result *Result) error {
	documents, err := p.retriever.Retrieve(ctx, message)
	if err != nil {
		p.logger.Warn("Retrieval failed, generating without context", zap.Error(err))
		documents = nil
	}
	result.Retrieved = documents

	reply, err := p.responder.Generate(ctx, message, retriever.FormatContext(documents))
	if err != nil {
		return err
	}

	result.Response = reply.Text
	result.Usage = reply.Usage
	return nil
}

// record updates the metrics collector if one is attached
func (p *Pipeline) record(result *Result, err error) {
	if p.metrics == nil {
		return
	}

	p.metrics.RecordRequest(string(result.Bucket), result.Action,
		result.EscalatedBySentiment, err != nil, result.Latency)

	if result.Usage.RequestCount > 0 {
		p.metrics.RecordUsage(result.Usage.InputTokens, result.Usage.OutputTokens,
			result.Usage.EstimatedCost)
	}
}
