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
	"regexp"
	"strings"
)

// Reasoning-style models leak internal tags into replies; every tagged
// block is removed before the reply reaches the customer.
var internalTagPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<think>.*?</think>`),
	regexp.MustCompile(`(?is)<reasoning>.*?</reasoning>`),
	regexp.MustCompile(`(?is)<thought>.*?</thought>`),
	regexp.MustCompile(`(?is)<internal>.*?</internal>`),
}

var excessNewlines = regexp.MustCompile(`\n\s*\n\s*\n+`)

// CleanReply strips internal reasoning tags and collapses runs of blank
// lines in a raw model reply.
func CleanReply(reply string) string {
	for _, pattern := range internalTagPatterns {
		reply = pattern.ReplaceAllString(reply, "")
	}

	reply = excessNewlines.ReplaceAllString(reply, "\n\n")
	return strings.TrimSpace(reply)
}
