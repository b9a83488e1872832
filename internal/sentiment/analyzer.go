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

// Package sentiment estimates message polarity and flags anger markers
// used by the routing escalation rule.
package sentiment

import (
	"fmt"
	"strings"

	"github.com/your-org/support-chatbot/internal/textmodel"
	"go.uber.org/zap"
)

// Polarity labels produced by the sentiment model
const (
	LabelPositive = "POSITIVE"
	LabelNegative = "NEGATIVE"
)

// DefaultAngerKeywords flags frustration in the raw message text.
// The `!!` entry intentionally matches repeated exclamation marks.
var DefaultAngerKeywords = []string{
	"terrible", "horrible", "worst", "useless", "garbage", "pathetic",
	"frustrated", "angry", "furious", "disappointed", "unacceptable",
	"ridiculous", "disgusted", "outraged", "demand", "immediately",
	"never", "always", "!!", "wtf", "damn", "awful", "disgusting",
	"incompetent", "idiots", "stupid", "hate", "fed up",
}

// Result holds the sentiment analysis for one message
type Result struct {
	Label            string  `json:"label"`
	Score            float64 `json:"score"`
	HasAngerKeywords bool    `json:"has_anger_keywords"`
}

// Analyzer scores polarity with a pretrained linear model and scans for
// anger keywords
type Analyzer struct {
	model    *textmodel.Model
	keywords []string
	logger   *zap.Logger
}

// NewAnalyzer loads the sentiment model artifact. An empty keyword list
// falls back to DefaultAngerKeywords.
func NewAnalyzer(modelPath string, keywords []string, logger *zap.Logger) (*Analyzer, error) {
	model, err := textmodel.Load(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load sentiment model: %w", err)
	}

	if err := validateLabels(model.Classes); err != nil {
		return nil, err
	}

	if len(keywords) == 0 {
		keywords = DefaultAngerKeywords
	}

	logger.Info("Sentiment analyzer loaded",
		zap.String("model_path", modelPath),
		zap.Int("anger_keywords", len(keywords)),
	)

	return &Analyzer{model: model, keywords: keywords, logger: logger}, nil
}

// validateLabels rejects artifacts that are not a polarity model
func validateLabels(classes []string) error {
	if len(classes) != 2 {
		return fmt.Errorf("sentiment model must have exactly 2 classes, got %d", len(classes))
	}
	hasPositive, hasNegative := false, false
	for _, class := range classes {
		switch class {
		case LabelPositive:
			hasPositive = true
		case LabelNegative:
			hasNegative = true
		}
	}
	if !hasPositive || !hasNegative {
		return fmt.Errorf("sentiment model classes must be %s and %s, got %v",
			LabelPositive, LabelNegative, classes)
	}
	return nil
}

// Analyze scores the raw message. The keyword scan runs on the original
// text, not the cleaned text, so punctuation markers survive.
func (a *Analyzer) Analyze(message string) Result {
	classification := a.model.Classify(message)

	lower := strings.ToLower(message)
	hasAnger := false
	for _, keyword := range a.keywords {
		if strings.Contains(lower, keyword) {
			hasAnger = true
			break
		}
	}

	a.logger.Debug("Sentiment analyzed",
		zap.String("label", classification.Label),
		zap.Float64("score", classification.Confidence),
		zap.Bool("has_anger_keywords", hasAnger),
	)

	return Result{
		Label:            classification.Label,
		Score:            classification.Confidence,
		HasAngerKeywords: hasAnger,
	}
}
