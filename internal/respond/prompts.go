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

import "fmt"

// RAGSystemPrompt instructs the small model for bucket B generation
const RAGSystemPrompt = `You are a helpful customer support assistant.

Use the provided context from the knowledge base to answer the customer's question.
If the context contains relevant information, use it to provide a helpful answer.
If the context doesn't contain relevant information, provide a general helpful response and suggest contacting support.

IMPORTANT INSTRUCTIONS:
- Be professional, concise, and customer-focused
- Always maintain a friendly and empathetic tone
- DO NOT include any internal reasoning, thinking process, or XML tags like <think>, <reasoning>, etc.
- Output ONLY the customer-facing response
- Keep responses clear and well-structured`

// EscalationSystemPrompt instructs the big model when an escalation is
// answered by an LLM rather than a human queue. The current responder
// returns canned handoff text; this prompt backs the big-model path.
const EscalationSystemPrompt = `You are a senior customer support specialist handling escalated issues.

The customer has been routed to you because their issue requires:
- Extra attention and care
- Complex problem-solving
- Empathetic handling of complaints or sensitive situations

Approach:
1. Acknowledge their concern with empathy
2. Ask clarifying questions if needed
3. Provide detailed, personalized solutions
4. Offer additional assistance or follow-up

Be professional, empathetic, and solution-focused.`

// RAGPrompt builds the bucket B user prompt from retrieved context
func RAGPrompt(context, query string) string {
	return fmt.Sprintf(`Context from knowledge base:
%s

Customer Question: %s

Please provide a helpful response based on the context above.`, context, query)
}

// EscalationPrompt builds the big-model user prompt for an escalation
func EscalationPrompt(query, intent string) string {
	return fmt.Sprintf(`Customer Issue (Intent: %s):
%s

Please provide a thoughtful, empathetic response that addresses their concern.`, intent, query)
}
