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

package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRecordRequest(t *testing.T) {
	collector := NewCollector(zaptest.NewLogger(t), nil)

	collector.RecordRequest("BUCKET_A", "direct_response", false, false, 5*time.Millisecond)
	collector.RecordRequest("BUCKET_B", "rag_response", false, false, 900*time.Millisecond)
	collector.RecordRequest("BUCKET_B", "rag_response", false, true, 100*time.Millisecond)
	collector.RecordRequest("BUCKET_C", "escalate_sentiment", true, false, time.Millisecond)

	snapshot := collector.GetSnapshot()

	assert.Equal(t, 4, snapshot.TotalRequests)
	assert.Equal(t, 1, snapshot.SentimentEscalations)

	bucketB, ok := snapshot.Buckets["BUCKET_B"]
	require.True(t, ok)
	assert.Equal(t, 2, bucketB.Requests)
	assert.Equal(t, 1, bucketB.Failures)
	assert.Equal(t, time.Second, bucketB.TotalLatency)

	assert.Equal(t, 2, snapshot.Actions["rag_response"])
	assert.Equal(t, 1, snapshot.Actions["direct_response"])

	// (5 + 900 + 100 + 1) ms over 4 requests
	assert.InDelta(t, 251.5, snapshot.AverageLatencyMS, 0.5)
}

func TestRecordUsage(t *testing.T) {
	collector := NewCollector(zaptest.NewLogger(t), nil)

	collector.RecordUsage(1200, 300, 0.0009)
	collector.RecordUsage(800, 200, 0.0006)

	snapshot := collector.GetSnapshot()
	assert.Equal(t, 2000, snapshot.InputTokens)
	assert.Equal(t, 500, snapshot.OutputTokens)
	assert.InDelta(t, 0.0015, snapshot.EstimatedCostUSD, 1e-9)
}

func TestGetSnapshotIsCopy(t *testing.T) {
	collector := NewCollector(zaptest.NewLogger(t), nil)
	collector.RecordRequest("BUCKET_A", "direct_response", false, false, 0)

	snapshot := collector.GetSnapshot()
	snapshot.Buckets["BUCKET_A"] = BucketMetrics{Requests: 99}
	snapshot.Actions["direct_response"] = 99

	fresh := collector.GetSnapshot()
	assert.Equal(t, 1, fresh.Buckets["BUCKET_A"].Requests)
	assert.Equal(t, 1, fresh.Actions["direct_response"])
}

func TestReset(t *testing.T) {
	collector := NewCollector(zaptest.NewLogger(t), nil)
	collector.RecordRequest("BUCKET_B", "rag_response", false, false, time.Second)
	collector.RecordUsage(100, 50, 0.001)

	collector.Reset()

	snapshot := collector.GetSnapshot()
	assert.Zero(t, snapshot.TotalRequests)
	assert.Empty(t, snapshot.Buckets)
	assert.Empty(t, snapshot.Actions)
	assert.Zero(t, snapshot.InputTokens)
	assert.Zero(t, snapshot.EstimatedCostUSD)
	assert.Zero(t, snapshot.AverageLatencyMS)
}

func TestFailureAlert(t *testing.T) {
	var alerts []string
	collector := NewCollector(zaptest.NewLogger(t), func(alertType, message string) {
		alerts = append(alerts, alertType+":"+message)
	})

	// 5 successes, then failures until the bucket is mostly failing
	for i := 0; i < 5; i++ {
		collector.RecordRequest("BUCKET_B", "rag_response", false, false, 0)
	}
	for i := 0; i < 5; i++ {
		collector.RecordRequest("BUCKET_B", "rag_response", false, true, 0)
	}
	assert.Empty(t, alerts, "alert should not fire at 50 percent failures")

	collector.RecordRequest("BUCKET_B", "rag_response", false, true, 0)
	require.Len(t, alerts, 1)
	assert.Equal(t, "bucket_failure_rate:BUCKET_B", alerts[0])
}

func TestFailureAlertNeedsVolume(t *testing.T) {
	var fired bool
	collector := NewCollector(zaptest.NewLogger(t), func(string, string) { fired = true })

	// All failures but under the request-count floor
	for i := 0; i < 9; i++ {
		collector.RecordRequest("BUCKET_B", "rag_response", false, true, 0)
	}
	assert.False(t, fired)
}
