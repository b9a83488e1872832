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

// Package intent classifies customer messages into a fixed set of
// support intents.
package intent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/your-org/support-chatbot/internal/textmodel"
	"go.uber.org/zap"
)

var (
	// placeholderPattern matches templated slots such as {{Order Number}}
	// that appear in the training corpus but never in live traffic
	placeholderPattern = regexp.MustCompile(`\{\{.*?\}\}`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
)

// Prediction is the outcome of intent classification for one message
type Prediction struct {
	Intent        string                 `json:"intent"`
	Confidence    float64                `json:"confidence"`
	CleanedText   string                 `json:"cleaned_text"`
	Probabilities map[string]float64     `json:"probabilities"`
	Top           []textmodel.Prediction `json:"top_predictions"`
}

// Classifier predicts intents with a TF-IDF logistic regression artifact
type Classifier struct {
	model  *textmodel.Model
	logger *zap.Logger
}

// NewClassifier loads the intent model artifact from the given path
func NewClassifier(modelPath string, logger *zap.Logger) (*Classifier, error) {
	model, err := textmodel.Load(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load intent model: %w", err)
	}

	logger.Info("Intent classifier loaded",
		zap.String("model_path", modelPath),
		zap.Int("intents", len(model.Classes)),
		zap.Int("vocabulary_size", len(model.Vocabulary)),
	)

	return &Classifier{model: model, logger: logger}, nil
}

// CleanText applies the same preprocessing used during training:
// placeholders removed, lowercased, whitespace collapsed.
func CleanText(text string) string {
	cleaned := placeholderPattern.ReplaceAllString(text, "")
	cleaned = strings.ToLower(cleaned)
	cleaned = strings.TrimSpace(cleaned)
	cleaned = whitespacePattern.ReplaceAllString(cleaned, " ")
	return cleaned
}

// Predict classifies a raw user message
func (c *Classifier) Predict(message string) Prediction {
	cleaned := CleanText(message)
	result := c.model.Classify(cleaned)

	c.logger.Debug("Intent predicted",
		zap.String("intent", result.Label),
		zap.Float64("confidence", result.Confidence),
	)

	return Prediction{
		Intent:        result.Label,
		Confidence:    result.Confidence,
		CleanedText:   cleaned,
		Probabilities: result.Probabilities,
		Top:           result.Top,
	}
}

// Intents returns the labels the model can produce
func (c *Classifier) Intents() []string {
	return c.model.Classes
}
