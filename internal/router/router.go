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

// Package router assigns a handling bucket to a classified message.
// The decision is a pure function of the classifier and sentiment
// outputs; all state lives in the routing table built at startup.
package router

import (
	"fmt"
	"strings"

	"github.com/your-org/support-chatbot/internal/config"
	"github.com/your-org/support-chatbot/internal/sentiment"
)

// Bucket identifies a handling tier
type Bucket string

const (
	// BucketA resolves with a zero-cost template
	BucketA Bucket = "BUCKET_A"
	// BucketB resolves with retrieval plus a small LLM
	BucketB Bucket = "BUCKET_B"
	// BucketC escalates to a human or big-model queue
	BucketC Bucket = "BUCKET_C"
)

// Actions recorded on routing decisions
const (
	ActionDirectResponse        = "direct_response"
	ActionRAGResponse           = "rag_response"
	ActionEscalate              = "escalate"
	ActionLowConfidenceEscalate = "low_confidence_escalate"
	ActionUnknownIntentEscalate = "unknown_intent_escalate"
	ActionEscalateSentiment     = "escalate_sentiment"
	// ActionTemplateFallback marks a bucket A decision rerouted to B
	// because no template covers the intent
	ActionTemplateFallback = "template_fallback"
)

// Cost tiers attached to decisions
const (
	CostTierZero = "zero"
	CostTierLow  = "low"
	CostTierHigh = "high"
)

// Decision is the routing outcome for one message
type Decision struct {
	Bucket               Bucket `json:"bucket"`
	Action               string `json:"action"`
	Reason               string `json:"reason"`
	CostTier             string `json:"cost_tier"`
	EscalatedBySentiment bool   `json:"escalated_by_sentiment"`
}

// bucketEntry is the routing table row for one intent
type bucketEntry struct {
	bucket   Bucket
	costTier string
}

// Router holds the intent routing table and thresholds
type Router struct {
	intentTable         map[string]bucketEntry
	bucketInfo          map[Bucket]config.BucketConfig
	confidenceThreshold float64
	negativeThreshold   float64
}

// New builds a router from the routing and sentiment configuration
func New(routing config.RoutingConfig, sentimentCfg config.SentimentConfig) (*Router, error) {
	r := &Router{
		intentTable:         make(map[string]bucketEntry),
		bucketInfo:          make(map[Bucket]config.BucketConfig),
		confidenceThreshold: routing.ConfidenceThreshold,
		negativeThreshold:   sentimentCfg.NegativeThreshold,
	}

	for name, bucketCfg := range routing.Buckets {
		bucket, err := parseBucket(name)
		if err != nil {
			return nil, err
		}
		r.bucketInfo[bucket] = bucketCfg
		for _, intentName := range bucketCfg.Intents {
			r.intentTable[intentName] = bucketEntry{
				bucket:   bucket,
				costTier: bucketCfg.CostTier,
			}
		}
	}

	return r, nil
}

// parseBucket maps a config bucket key to its Bucket value
func parseBucket(name string) (Bucket, error) {
	switch strings.ToUpper(name) {
	case string(BucketA):
		return BucketA, nil
	case string(BucketB):
		return BucketB, nil
	case string(BucketC):
		return BucketC, nil
	}
	return "", fmt.Errorf("unknown routing bucket in config: %s", name)
}

// Route decides the handling bucket for a classified message.
//
// Rules, applied in order:
//  1. confidence below threshold escalates
//  2. an intent missing from the table escalates
//  3. otherwise the intent table decides
//  4. a negative, high-confidence, anger-flagged message overrides any
//     non-escalation bucket
func (r *Router) Route(intentName string, confidence float64, sent sentiment.Result) Decision {
	decision := r.routeByIntent(intentName, confidence)

	if decision.Bucket != BucketC && r.shouldEscalateSentiment(sent) {
		return Decision{
			Bucket:               BucketC,
			Action:               ActionEscalateSentiment,
			Reason:               fmt.Sprintf("Negative sentiment (%.0f%%) with anger markers - escalating", sent.Score*100),
			CostTier:             CostTierHigh,
			EscalatedBySentiment: true,
		}
	}

	return decision
}

// routeByIntent applies the threshold and table rules
func (r *Router) routeByIntent(intentName string, confidence float64) Decision {
	if confidence < r.confidenceThreshold {
		return Decision{
			Bucket:   BucketC,
			Action:   ActionLowConfidenceEscalate,
			Reason:   fmt.Sprintf("Low confidence (%.0f%%) - escalate to human", confidence*100),
			CostTier: CostTierHigh,
		}
	}

	entry, ok := r.intentTable[intentName]
	if !ok {
		return Decision{
			Bucket:   BucketC,
			Action:   ActionUnknownIntentEscalate,
			Reason:   fmt.Sprintf("Unknown intent %q - escalate to human", intentName),
			CostTier: CostTierHigh,
		}
	}

	switch entry.bucket {
	case BucketA:
		return Decision{
			Bucket:   BucketA,
			Action:   ActionDirectResponse,
			Reason:   "Direct template lookup - no LLM needed",
			CostTier: entry.costTier,
		}
	case BucketB:
		return Decision{
			Bucket:   BucketB,
			Action:   ActionRAGResponse,
			Reason:   "RAG with small LLM for procedural response",
			CostTier: entry.costTier,
		}
	default:
		return Decision{
			Bucket:   BucketC,
			Action:   ActionEscalate,
			Reason:   "Escalate to human agent",
			CostTier: entry.costTier,
		}
	}
}

// shouldEscalateSentiment applies the hybrid escalation rule: all three
// signals must agree before the bucket is overridden.
func (r *Router) shouldEscalateSentiment(sent sentiment.Result) bool {
	return sent.Label == sentiment.LabelNegative &&
		sent.Score > r.negativeThreshold &&
		sent.HasAngerKeywords
}

// BucketInfo returns the configured description and intents per bucket
func (r *Router) BucketInfo() map[Bucket]config.BucketConfig {
	info := make(map[Bucket]config.BucketConfig, len(r.bucketInfo))
	for bucket, cfg := range r.bucketInfo {
		info[bucket] = cfg
	}
	return info
}

// KnownIntents reports how many intents the routing table covers
func (r *Router) KnownIntents() int {
	return len(r.intentTable)
}

// ConfidenceThreshold returns the active confidence fallback threshold
func (r *Router) ConfidenceThreshold() float64 {
	return r.confidenceThreshold
}
