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

// Package metrics collects in-process routing and cost metrics that
// back the stats endpoint.
package metrics

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// BucketMetrics aggregates outcomes for one routing bucket
type BucketMetrics struct {
	Requests     int           `json:"requests"`
	Failures     int           `json:"failures"`
	TotalLatency time.Duration `json:"total_latency"`
}

// Snapshot is a point-in-time copy of all collected metrics
type Snapshot struct {
	TotalRequests        int                      `json:"total_requests"`
	Buckets              map[string]BucketMetrics `json:"buckets"`
	Actions              map[string]int           `json:"actions"`
	SentimentEscalations int                      `json:"sentiment_escalations"`
	InputTokens          int                      `json:"input_tokens"`
	OutputTokens         int                      `json:"output_tokens"`
	EstimatedCostUSD     float64                  `json:"estimated_cost_usd"`
	AverageLatencyMS     float64                  `json:"average_latency_ms"`
}

// Collector accumulates routing metrics behind a mutex
type Collector struct {
	mu sync.Mutex

	totalRequests        int
	buckets              map[string]*BucketMetrics
	actions              map[string]int
	sentimentEscalations int
	inputTokens          int
	outputTokens         int
	estimatedCost        float64
	totalLatency         time.Duration

	logger        *zap.Logger
	alertCallback func(alertType, message string)
}

// NewCollector creates a metrics collector. The alert callback may be
// nil; it fires outside the collector lock.
func NewCollector(logger *zap.Logger, alertCallback func(alertType, message string)) *Collector {
	return &Collector{
		buckets:       make(map[string]*BucketMetrics),
		actions:       make(map[string]int),
		logger:        logger,
		alertCallback: alertCallback,
	}
}

// RecordRequest records one processed message
func (c *Collector) RecordRequest(bucket, action string, escalatedBySentiment, failed bool, latency time.Duration) {
	c.mu.Lock()
	c.totalRequests++
	c.totalLatency += latency

	bm, ok := c.buckets[bucket]
	if !ok {
		bm = &BucketMetrics{}
		c.buckets[bucket] = bm
	}
	bm.Requests++
	bm.TotalLatency += latency
	if failed {
		bm.Failures++
	}

	c.actions[action]++
	if escalatedBySentiment {
		c.sentimentEscalations++
	}

	failures := bm.Failures
	requests := bm.Requests
	c.mu.Unlock()

	// Alert when a bucket fails more often than it succeeds
	if failed && c.alertCallback != nil && requests >= 10 && failures*2 > requests {
		c.alertCallback("bucket_failure_rate", bucket)
	}
}

// RecordUsage records LLM token usage and estimated spend
func (c *Collector) RecordUsage(inputTokens, outputTokens int, estimatedCost float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inputTokens += inputTokens
	c.outputTokens += outputTokens
	c.estimatedCost += estimatedCost
}

// GetSnapshot returns a copy of the current metrics
func (c *Collector) GetSnapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := Snapshot{
		TotalRequests:        c.totalRequests,
		Buckets:              make(map[string]BucketMetrics, len(c.buckets)),
		Actions:              make(map[string]int, len(c.actions)),
		SentimentEscalations: c.sentimentEscalations,
		InputTokens:          c.inputTokens,
		OutputTokens:         c.outputTokens,
		EstimatedCostUSD:     c.estimatedCost,
	}

	for bucket, bm := range c.buckets {
		snapshot.Buckets[bucket] = *bm
	}
	for action, count := range c.actions {
		snapshot.Actions[action] = count
	}

	if c.totalRequests > 0 {
		snapshot.AverageLatencyMS = float64(c.totalLatency.Milliseconds()) / float64(c.totalRequests)
	}

	return snapshot
}

// Reset clears all collected metrics
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalRequests = 0
	c.buckets = make(map[string]*BucketMetrics)
	c.actions = make(map[string]int)
	c.sentimentEscalations = 0
	c.inputTokens = 0
	c.outputTokens = 0
	c.estimatedCost = 0
	c.totalLatency = 0

	c.logger.Info("Routing metrics reset")
}
