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

package intent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/your-org/support-chatbot/internal/textmodel"
)

// writeIntentModel writes a small intent model artifact for tests
func writeIntentModel(t *testing.T) string {
	t.Helper()

	model := textmodel.Model{
		Vocabulary: map[string]int{
			"refund": 0,
			"order":  1,
			"track":  2,
		},
		IDF:     []float64{1.0, 1.0, 1.2},
		Classes: []string{"get_refund", "track_order", "complaint"},
		Coefficients: [][]float64{
			{5.0, -1.0, -1.0},
			{-1.0, 3.0, 3.0},
			{-1.0, -1.0, -1.0},
		},
		Intercepts: []float64{0.0, 0.0, 0.0},
	}

	data, err := json.Marshal(model)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "intent_model.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "removes placeholders",
			input:    "where is order {{Order Number}} right now",
			expected: "where is order right now",
		},
		{
			name:     "lowercases",
			input:    "WHERE IS MY REFUND",
			expected: "where is my refund",
		},
		{
			name:     "collapses whitespace",
			input:    "track   my \t order\n please",
			expected: "track my order please",
		},
		{
			name:     "trims",
			input:    "  hello  ",
			expected: "hello",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanText(tt.input))
		})
	}
}

func TestNewClassifier(t *testing.T) {
	logger := zaptest.NewLogger(t)

	classifier, err := NewClassifier(writeIntentModel(t), logger)
	require.NoError(t, err)
	assert.Len(t, classifier.Intents(), 3)
}

func TestNewClassifierMissingArtifact(t *testing.T) {
	logger := zaptest.NewLogger(t)

	_, err := NewClassifier(filepath.Join(t.TempDir(), "missing.json"), logger)
	assert.Error(t, err)
}

func TestPredict(t *testing.T) {
	logger := zaptest.NewLogger(t)
	classifier, err := NewClassifier(writeIntentModel(t), logger)
	require.NoError(t, err)

	prediction := classifier.Predict("I want a REFUND {{Order Number}}")

	assert.Equal(t, "get_refund", prediction.Intent)
	assert.Equal(t, "i want a refund", prediction.CleanedText)
	assert.Greater(t, prediction.Confidence, 0.5)
	assert.Len(t, prediction.Probabilities, 3)
	assert.NotEmpty(t, prediction.Top)
}

func TestPredictUsesCleanedText(t *testing.T) {
	logger := zaptest.NewLogger(t)
	classifier, err := NewClassifier(writeIntentModel(t), logger)
	require.NoError(t, err)

	// The placeholder contains a vocabulary token; cleaning must strip
	// it before vectorization.
	withPlaceholder := classifier.Predict("hello {{refund}}")
	direct := classifier.Predict("hello refund")

	assert.NotEqual(t, direct.Probabilities, withPlaceholder.Probabilities)
}
