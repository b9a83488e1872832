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

// Package textmodel loads exported linear text classifiers and runs
// inference over them. An artifact bundles a TF-IDF vocabulary with the
// coefficient matrix of a logistic regression trained offline; the
// exporter writes it as a single JSON file.
package textmodel

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"
)

// tokenPattern matches word tokens of two or more characters, the same
// tokenization the vectorizer used during training.
var tokenPattern = regexp.MustCompile(`\b\w\w+\b`)

// Model is a TF-IDF vectorizer plus a multinomial logistic regression
type Model struct {
	// Vocabulary maps a token to its feature index
	Vocabulary map[string]int `json:"vocabulary"`
	// IDF holds the inverse document frequency per feature index
	IDF []float64 `json:"idf"`
	// Classes holds the output labels, row-aligned with Coefficients
	Classes []string `json:"classes"`
	// Coefficients holds one weight row per class
	Coefficients [][]float64 `json:"coefficients"`
	// Intercepts holds one bias term per class
	Intercepts []float64 `json:"intercepts"`
}

// Prediction is a single scored label
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Result holds the outcome of a classification
type Result struct {
	Label         string             `json:"label"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
	Top           []Prediction       `json:"top"`
}

// Load reads a model artifact from disk and validates its shape
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}

	var model Model
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("failed to parse model artifact %s: %w", path, err)
	}

	if err := model.validate(); err != nil {
		return nil, fmt.Errorf("invalid model artifact %s: %w", path, err)
	}

	return &model, nil
}

// validate checks that the artifact dimensions are consistent
func (m *Model) validate() error {
	if len(m.Vocabulary) == 0 {
		return fmt.Errorf("empty vocabulary")
	}
	if len(m.Classes) == 0 {
		return fmt.Errorf("no classes")
	}
	if len(m.IDF) != len(m.Vocabulary) {
		return fmt.Errorf("idf length %d does not match vocabulary size %d", len(m.IDF), len(m.Vocabulary))
	}
	if len(m.Coefficients) != len(m.Classes) {
		return fmt.Errorf("coefficient rows %d do not match class count %d", len(m.Coefficients), len(m.Classes))
	}
	if len(m.Intercepts) != len(m.Classes) {
		return fmt.Errorf("intercept count %d does not match class count %d", len(m.Intercepts), len(m.Classes))
	}
	for i, row := range m.Coefficients {
		if len(row) != len(m.Vocabulary) {
			return fmt.Errorf("coefficient row %d has %d features, want %d", i, len(row), len(m.Vocabulary))
		}
	}
	for token, idx := range m.Vocabulary {
		if idx < 0 || idx >= len(m.IDF) {
			return fmt.Errorf("vocabulary index out of range for token %q: %d", token, idx)
		}
	}
	return nil
}

// Vectorize transforms text into a sparse TF-IDF feature map,
// L2-normalized as during training. Tokens outside the vocabulary are
// dropped.
func (m *Model) Vectorize(text string) map[int]float64 {
	features := make(map[int]float64)

	for _, token := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		idx, ok := m.Vocabulary[token]
		if !ok {
			continue
		}
		features[idx] += m.IDF[idx]
	}

	var norm float64
	for _, value := range features {
		norm += value * value
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for idx := range features {
			features[idx] /= norm
		}
	}

	return features
}

// Classify runs the full pipeline: vectorize, score each class, softmax
func (m *Model) Classify(text string) Result {
	features := m.Vectorize(text)

	scores := make([]float64, len(m.Classes))
	for i, row := range m.Coefficients {
		score := m.Intercepts[i]
		for idx, value := range features {
			score += row[idx] * value
		}
		scores[i] = score
	}

	probs := softmax(scores)

	result := Result{
		Probabilities: make(map[string]float64, len(m.Classes)),
	}
	for i, class := range m.Classes {
		result.Probabilities[class] = probs[i]
		if probs[i] > result.Confidence {
			result.Confidence = probs[i]
			result.Label = class
		}
	}
	result.Top = m.topPredictions(probs, 3)

	return result
}

// topPredictions returns the n highest-probability labels in order
func (m *Model) topPredictions(probs []float64, n int) []Prediction {
	preds := make([]Prediction, len(m.Classes))
	for i, class := range m.Classes {
		preds[i] = Prediction{Label: class, Score: probs[i]}
	}

	sort.Slice(preds, func(i, j int) bool {
		if preds[i].Score != preds[j].Score {
			return preds[i].Score > preds[j].Score
		}
		return preds[i].Label < preds[j].Label
	})

	if n > len(preds) {
		n = len(preds)
	}
	return preds[:n]
}

// softmax converts raw scores into a probability distribution. Scores are
// shifted by their maximum before exponentiation to avoid overflow.
func softmax(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}

	// Binary sklearn models export a single coefficient row expanded to
	// two by the exporter, so every artifact arrives here multinomial.
	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}

	probs := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		probs[i] = math.Exp(s - maxScore)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
