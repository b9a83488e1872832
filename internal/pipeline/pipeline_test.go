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

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/your-org/support-chatbot/internal/config"
	"github.com/your-org/support-chatbot/internal/intent"
	"github.com/your-org/support-chatbot/internal/llm"
	"github.com/your-org/support-chatbot/internal/metrics"
	"github.com/your-org/support-chatbot/internal/resilience"
	"github.com/your-org/support-chatbot/internal/respond"
	"github.com/your-org/support-chatbot/internal/retriever"
	"github.com/your-org/support-chatbot/internal/router"
	"github.com/your-org/support-chatbot/internal/sentiment"
	"github.com/your-org/support-chatbot/internal/textmodel"
)

// fakeRetriever returns canned documents or an error
type fakeRetriever struct {
	documents []retriever.Document
	err       error
	calls     int
}

func (r *fakeRetriever) Retrieve(_ context.Context, _ string) ([]retriever.Document, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.documents, nil
}

// fakeResponder records which path was taken
type fakeResponder struct {
	generateErr   error
	lastContext   string
	directCalls   int
	generateCalls int
	escalateCalls int
	lastDirect    string
	lastEscalated string
}

func (r *fakeResponder) Direct(intentName string) (respond.Reply, error) {
	r.directCalls++
	r.lastDirect = intentName
	text, ok := respond.DirectResponse(intentName)
	if !ok {
		return respond.Reply{}, errors.New("no template")
	}
	return respond.Reply{Text: text}, nil
}

func (r *fakeResponder) Generate(_ context.Context, _, retrievedContext string) (respond.Reply, error) {
	r.generateCalls++
	r.lastContext = retrievedContext
	if r.generateErr != nil {
		return respond.Reply{}, r.generateErr
	}
	return respond.Reply{
		Text:  "generated answer",
		Usage: llm.Usage{InputTokens: 50, OutputTokens: 10, RequestCount: 1, EstimatedCost: 0.0001},
	}, nil
}

func (r *fakeResponder) Escalate(intentName string) respond.Reply {
	r.escalateCalls++
	r.lastEscalated = intentName
	return respond.Reply{Text: respond.EscalationMessage(intentName)}
}

// writeArtifact marshals a model into a temp file
func writeArtifact(t *testing.T, dir, name string, model textmodel.Model) string {
	t.Helper()

	data, err := json.Marshal(model)
	require.NoError(t, err)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// newTestClassifier builds a classifier whose vocabulary keys directly
// select the intent.
func newTestClassifier(t *testing.T) *intent.Classifier {
	t.Helper()

	model := textmodel.Model{
		Vocabulary: map[string]int{"track": 0, "cancel": 1, "complaint": 2},
		IDF:        []float64{1.0, 1.0, 1.0},
		Classes:    []string{"track_order", "cancel_order", "complaint"},
		Coefficients: [][]float64{
			{6.0, -2.0, -2.0},
			{-2.0, 6.0, -2.0},
			{-2.0, -2.0, 6.0},
		},
		Intercepts: []float64{0.0, 0.0, 0.0},
	}

	path := writeArtifact(t, t.TempDir(), "intent_model.json", model)
	classifier, err := intent.NewClassifier(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	return classifier
}

func newTestAnalyzer(t *testing.T) *sentiment.Analyzer {
	t.Helper()

	model := textmodel.Model{
		Vocabulary: map[string]int{"terrible": 0, "thanks": 1},
		IDF:        []float64{1.0, 1.0},
		Classes:    []string{sentiment.LabelNegative, sentiment.LabelPositive},
		Coefficients: [][]float64{
			{6.0, -6.0},
			{-6.0, 6.0},
		},
		Intercepts: []float64{0.0, 0.0},
	}

	path := writeArtifact(t, t.TempDir(), "sentiment_model.json", model)
	analyzer, err := sentiment.NewAnalyzer(path, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	return analyzer
}

func routingConfig(bucketAIntents []string) config.RoutingConfig {
	return config.RoutingConfig{
		ConfidenceThreshold: 0.5,
		Buckets: map[string]config.BucketConfig{
			"bucket_a": {CostTier: "zero", Intents: bucketAIntents},
			"bucket_b": {CostTier: "low", Intents: []string{"cancel_order"}},
			"bucket_c": {CostTier: "high", Intents: []string{"complaint"}},
		},
	}
}

type testPipeline struct {
	pipeline  *Pipeline
	retriever *fakeRetriever
	responder *fakeResponder
	collector *metrics.Collector
}

func newTestPipeline(t *testing.T, routing config.RoutingConfig) *testPipeline {
	t.Helper()

	logger := zaptest.NewLogger(t)

	rt, err := router.New(routing, config.SentimentConfig{NegativeThreshold: 0.75})
	require.NoError(t, err)

	rv := &fakeRetriever{}
	rs := &fakeResponder{}
	collector := metrics.NewCollector(logger, nil)

	return &testPipeline{
		pipeline:  New(newTestClassifier(t), newTestAnalyzer(t), rt, rv, rs, collector, logger),
		retriever: rv,
		responder: rs,
		collector: collector,
	}
}

func TestProcessBucketA(t *testing.T) {
	tp := newTestPipeline(t, routingConfig([]string{"track_order"}))

	result, err := tp.pipeline.Process(context.Background(), "please track my package")
	require.NoError(t, err)

	assert.Equal(t, "track_order", result.Intent)
	assert.Equal(t, router.BucketA, result.Bucket)
	assert.Equal(t, router.ActionDirectResponse, result.Action)
	assert.Equal(t, router.CostTierZero, result.CostTier)
	assert.NotEmpty(t, result.Response)
	assert.Equal(t, 1, tp.responder.directCalls)
	assert.Zero(t, tp.retriever.calls)
	assert.Zero(t, result.Usage.RequestCount)
}

func TestProcessBucketB(t *testing.T) {
	tp := newTestPipeline(t, routingConfig([]string{"track_order"}))
	tp.retriever.documents = []retriever.Document{
		{Instruction: "how to cancel", Response: "use the account page"},
	}

	result, err := tp.pipeline.Process(context.Background(), "cancel my subscription")
	require.NoError(t, err)

	assert.Equal(t, "cancel_order", result.Intent)
	assert.Equal(t, router.BucketB, result.Bucket)
	assert.Equal(t, router.ActionRAGResponse, result.Action)
	assert.Equal(t, "generated answer", result.Response)
	assert.Len(t, result.Retrieved, 1)
	assert.Equal(t, 1, result.Usage.RequestCount)
	assert.Contains(t, tp.responder.lastContext, "how to cancel")
}

func TestProcessBucketC(t *testing.T) {
	tp := newTestPipeline(t, routingConfig([]string{"track_order"}))

	result, err := tp.pipeline.Process(context.Background(), "I have a complaint")
	require.NoError(t, err)

	assert.Equal(t, router.BucketC, result.Bucket)
	assert.Equal(t, router.ActionEscalate, result.Action)
	assert.Equal(t, 1, tp.responder.escalateCalls)
	assert.Zero(t, tp.retriever.calls)
}

func TestProcessLowConfidence(t *testing.T) {
	tp := newTestPipeline(t, routingConfig([]string{"track_order"}))

	// No vocabulary token: uniform probabilities stay below the threshold
	result, err := tp.pipeline.Process(context.Background(), "blargh unknown gibberish")
	require.NoError(t, err)

	assert.Equal(t, router.BucketC, result.Bucket)
	assert.Equal(t, router.ActionLowConfidenceEscalate, result.Action)
}

func TestProcessSentimentEscalation(t *testing.T) {
	tp := newTestPipeline(t, routingConfig([]string{"track_order"}))

	result, err := tp.pipeline.Process(context.Background(), "track my order, this is terrible!!")
	require.NoError(t, err)

	assert.Equal(t, router.BucketC, result.Bucket)
	assert.Equal(t, router.ActionEscalateSentiment, result.Action)
	assert.True(t, result.EscalatedBySentiment)
	assert.Equal(t, sentiment.LabelNegative, result.Sentiment)
	assert.Equal(t, 1, tp.responder.escalateCalls)
}

func TestProcessTemplateFallback(t *testing.T) {
	// cancel_order lands in bucket A but has no canned template, so the
	// request falls through to the RAG path.
	tp := newTestPipeline(t, routingConfig([]string{"track_order", "cancel_order"}))

	result, err := tp.pipeline.Process(context.Background(), "cancel my subscription")
	require.NoError(t, err)

	assert.Equal(t, router.BucketB, result.Bucket)
	assert.Equal(t, router.ActionTemplateFallback, result.Action)
	assert.Equal(t, router.CostTierLow, result.CostTier)
	assert.Equal(t, "generated answer", result.Response)
	assert.Zero(t, tp.responder.directCalls)
	assert.Equal(t, 1, tp.responder.generateCalls)
}

func TestProcessRetrievalFailureDegrades(t *testing.T) {
	tp := newTestPipeline(t, routingConfig([]string{"track_order"}))
	tp.retriever.err = errors.New("chroma unavailable")

	result, err := tp.pipeline.Process(context.Background(), "cancel my order")
	require.NoError(t, err)

	assert.Equal(t, "generated answer", result.Response)
	assert.Empty(t, result.Retrieved)
	assert.Equal(t, retriever.NoContextMessage, tp.responder.lastContext)
}

func TestProcessGenerationFailure(t *testing.T) {
	tp := newTestPipeline(t, routingConfig([]string{"track_order"}))
	tp.responder.generateErr = resilience.NewServiceUnavailableError("llm down", nil)

	_, err := tp.pipeline.Process(context.Background(), "cancel my order")
	require.Error(t, err)

	var serviceErr *resilience.ServiceError
	require.True(t, resilience.AsServiceError(err, &serviceErr))
	assert.Equal(t, resilience.ErrorCodeServiceUnavailable, serviceErr.Code)
}

func TestProcessEmptyMessage(t *testing.T) {
	tp := newTestPipeline(t, routingConfig([]string{"track_order"}))

	_, err := tp.pipeline.Process(context.Background(), "   ")
	require.Error(t, err)

	var serviceErr *resilience.ServiceError
	require.True(t, resilience.AsServiceError(err, &serviceErr))
	assert.Equal(t, resilience.ErrorCodeBadRequest, serviceErr.Code)
}

func TestProcessRecordsMetrics(t *testing.T) {
	tp := newTestPipeline(t, routingConfig([]string{"track_order"}))

	_, err := tp.pipeline.Process(context.Background(), "track my package")
	require.NoError(t, err)
	_, err = tp.pipeline.Process(context.Background(), "cancel my order")
	require.NoError(t, err)

	snapshot := tp.collector.GetSnapshot()
	assert.Equal(t, 2, snapshot.TotalRequests)
	assert.Equal(t, 1, snapshot.Buckets[string(router.BucketA)].Requests)
	assert.Equal(t, 1, snapshot.Buckets[string(router.BucketB)].Requests)
	assert.Equal(t, 1, snapshot.Actions[router.ActionRAGResponse])
	assert.Equal(t, 50, snapshot.InputTokens)
}
