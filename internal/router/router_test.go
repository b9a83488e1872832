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

package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/support-chatbot/internal/config"
	"github.com/your-org/support-chatbot/internal/sentiment"
)

// testRoutingConfig returns a reduced routing table covering all buckets
func testRoutingConfig() config.RoutingConfig {
	return config.RoutingConfig{
		ConfidenceThreshold: 0.5,
		Buckets: map[string]config.BucketConfig{
			"bucket_a": {
				Description: "Zero-cost direct responses",
				CostTier:    "zero",
				Intents:     []string{"track_order", "check_invoice"},
			},
			"bucket_b": {
				Description: "Low-cost RAG",
				CostTier:    "low",
				Intents:     []string{"cancel_order", "recover_password"},
			},
			"bucket_c": {
				Description: "High-cost escalation",
				CostTier:    "high",
				Intents:     []string{"complaint", "contact_human_agent"},
			},
		},
	}
}

func testSentimentConfig() config.SentimentConfig {
	return config.SentimentConfig{NegativeThreshold: 0.75}
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()

	r, err := New(testRoutingConfig(), testSentimentConfig())
	require.NoError(t, err)
	return r
}

func calm() sentiment.Result {
	return sentiment.Result{Label: sentiment.LabelPositive, Score: 0.9}
}

func TestNewRejectsUnknownBucket(t *testing.T) {
	cfg := testRoutingConfig()
	cfg.Buckets["bucket_x"] = config.BucketConfig{Intents: []string{"foo"}}

	_, err := New(cfg, testSentimentConfig())
	assert.Error(t, err)
}

func TestNewNormalizesBucketKeyCasing(t *testing.T) {
	cfg := config.RoutingConfig{
		ConfidenceThreshold: 0.5,
		Buckets: map[string]config.BucketConfig{
			"bucket_a": {CostTier: "zero", Intents: []string{"track_order"}},
			"BUCKET_B": {CostTier: "low", Intents: []string{"cancel_order"}},
			"Bucket_C": {CostTier: "high", Intents: []string{"complaint"}},
		},
	}

	r, err := New(cfg, testSentimentConfig())
	require.NoError(t, err)

	assert.Equal(t, BucketA, r.Route("track_order", 0.9, calm()).Bucket)
	assert.Equal(t, BucketB, r.Route("cancel_order", 0.9, calm()).Bucket)
	assert.Equal(t, BucketC, r.Route("complaint", 0.9, calm()).Bucket)
}

func TestRouteByIntentTable(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name     string
		intent   string
		bucket   Bucket
		action   string
		costTier string
	}{
		{"bucket A intent", "track_order", BucketA, ActionDirectResponse, CostTierZero},
		{"bucket B intent", "cancel_order", BucketB, ActionRAGResponse, CostTierLow},
		{"bucket C intent", "complaint", BucketC, ActionEscalate, CostTierHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := r.Route(tt.intent, 0.9, calm())
			assert.Equal(t, tt.bucket, decision.Bucket)
			assert.Equal(t, tt.action, decision.Action)
			assert.Equal(t, tt.costTier, decision.CostTier)
			assert.False(t, decision.EscalatedBySentiment)
		})
	}
}

func TestRouteLowConfidence(t *testing.T) {
	r := newTestRouter(t)

	decision := r.Route("track_order", 0.3, calm())
	assert.Equal(t, BucketC, decision.Bucket)
	assert.Equal(t, ActionLowConfidenceEscalate, decision.Action)
	assert.Equal(t, CostTierHigh, decision.CostTier)
}

func TestRouteConfidenceBoundary(t *testing.T) {
	r := newTestRouter(t)

	// Exactly at the threshold is not low confidence
	decision := r.Route("track_order", 0.5, calm())
	assert.Equal(t, BucketA, decision.Bucket)

	decision = r.Route("track_order", 0.4999, calm())
	assert.Equal(t, BucketC, decision.Bucket)
}

func TestRouteUnknownIntent(t *testing.T) {
	r := newTestRouter(t)

	decision := r.Route("make_coffee", 0.9, calm())
	assert.Equal(t, BucketC, decision.Bucket)
	assert.Equal(t, ActionUnknownIntentEscalate, decision.Action)
}

func TestRouteSentimentEscalation(t *testing.T) {
	r := newTestRouter(t)

	angry := sentiment.Result{
		Label:            sentiment.LabelNegative,
		Score:            0.92,
		HasAngerKeywords: true,
	}

	decision := r.Route("track_order", 0.9, angry)
	assert.Equal(t, BucketC, decision.Bucket)
	assert.Equal(t, ActionEscalateSentiment, decision.Action)
	assert.Equal(t, CostTierHigh, decision.CostTier)
	assert.True(t, decision.EscalatedBySentiment)
}

func TestRouteSentimentRequiresAllSignals(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name string
		sent sentiment.Result
	}{
		{
			name: "negative without keywords",
			sent: sentiment.Result{Label: sentiment.LabelNegative, Score: 0.92},
		},
		{
			name: "negative below threshold",
			sent: sentiment.Result{Label: sentiment.LabelNegative, Score: 0.6, HasAngerKeywords: true},
		},
		{
			name: "positive with keywords",
			sent: sentiment.Result{Label: sentiment.LabelPositive, Score: 0.92, HasAngerKeywords: true},
		},
		{
			name: "score exactly at threshold",
			sent: sentiment.Result{Label: sentiment.LabelNegative, Score: 0.75, HasAngerKeywords: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := r.Route("track_order", 0.9, tt.sent)
			assert.Equal(t, BucketA, decision.Bucket)
			assert.False(t, decision.EscalatedBySentiment)
		})
	}
}

func TestRouteSentimentDoesNotDoubleEscalate(t *testing.T) {
	r := newTestRouter(t)

	angry := sentiment.Result{
		Label:            sentiment.LabelNegative,
		Score:            0.92,
		HasAngerKeywords: true,
	}

	// Already bucket C: keep the intent action, not the sentiment one
	decision := r.Route("complaint", 0.9, angry)
	assert.Equal(t, BucketC, decision.Bucket)
	assert.Equal(t, ActionEscalate, decision.Action)
	assert.False(t, decision.EscalatedBySentiment)

	// Low confidence wins before the sentiment override is evaluated
	decision = r.Route("track_order", 0.2, angry)
	assert.Equal(t, ActionLowConfidenceEscalate, decision.Action)
}

func TestKnownIntents(t *testing.T) {
	r := newTestRouter(t)
	assert.Equal(t, 6, r.KnownIntents())
}

func TestBucketInfo(t *testing.T) {
	r := newTestRouter(t)

	info := r.BucketInfo()
	require.Len(t, info, 3)
	assert.Equal(t, "zero", info[BucketA].CostTier)
	assert.Contains(t, info[BucketC].Intents, "complaint")
}
