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

package respond

import (
	"context"
	"fmt"

	"github.com/your-org/support-chatbot/internal/llm"
	"github.com/your-org/support-chatbot/internal/resilience"
	"go.uber.org/zap"
)

// Generator produces chat completions
type Generator interface {
	Chat(ctx context.Context, systemPrompt, userPrompt string) (*llm.ChatResponse, error)
}

// Reply is a generated customer-facing answer
type Reply struct {
	Text  string
	Usage llm.Usage
}

// Responder turns a routed message into a reply. Bucket A and C replies
// never touch the network; bucket B goes through the LLM behind a
// circuit breaker.
type Responder struct {
	generator Generator
	breaker   *resilience.CircuitBreaker
	logger    *zap.Logger
}

// NewResponder creates a responder around the given generator
func NewResponder(generator Generator, breaker *resilience.CircuitBreaker, logger *zap.Logger) *Responder {
	return &Responder{
		generator: generator,
		breaker:   breaker,
		logger:    logger,
	}
}

// Direct returns the bucket A template reply for an intent
func (r *Responder) Direct(intent string) (Reply, error) {
	text, ok := DirectResponse(intent)
	if !ok {
		return Reply{}, fmt.Errorf("no direct response template for intent %q", intent)
	}
	return Reply{Text: text}, nil
}

// Generate produces the bucket B reply from retrieved context
func (r *Responder) Generate(ctx context.Context, query, retrievedContext string) (Reply, error) {
	userPrompt := RAGPrompt(retrievedContext, query)

	var response *llm.ChatResponse
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		var genErr error
		response, genErr = r.generator.Chat(ctx, RAGSystemPrompt, userPrompt)
		return genErr
	})
	if err != nil {
		r.logger.Error("RAG generation failed", zap.Error(err))
		return Reply{}, resilience.NewServiceUnavailableError(
			"Unable to generate a response right now. Please try again shortly.", err)
	}

	return Reply{
		Text:  CleanReply(response.Content),
		Usage: response.Usage,
	}, nil
}

// Escalate returns the bucket C handoff reply for an intent
func (r *Responder) Escalate(intent string) Reply {
	return Reply{Text: EscalationMessage(intent)}
}
