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

// Package chunker splits knowledge base answers into overlapping chunks
// sized for embedding.
package chunker

import (
	"strings"
)

const (
	// DefaultChunkSize is the target chunk length in characters
	DefaultChunkSize = 500
	// DefaultChunkOverlap is how many characters consecutive chunks share
	DefaultChunkOverlap = 50
)

// Split splits text into chunks of at most chunkSize characters with
// the given overlap between consecutive chunks. It prefers sentence
// boundaries so a chunk does not cut an answer mid-thought.
func Split(text string, chunkSize, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{}
	}

	if len(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	words := strings.Fields(text)

	var currentChunk strings.Builder
	for _, word := range words {
		if currentChunk.Len() > 0 && currentChunk.Len()+len(word)+1 > chunkSize {
			chunk := currentChunk.String()
			if lastSentence := findSentenceBreak(chunk); lastSentence != "" {
				chunks = append(chunks, strings.TrimSpace(lastSentence))
				remaining := strings.TrimSpace(chunk[len(lastSentence):])
				currentChunk.Reset()
				currentChunk.WriteString(carryOverlap(lastSentence, overlap))
				if remaining != "" {
					if currentChunk.Len() > 0 {
						currentChunk.WriteString(" ")
					}
					currentChunk.WriteString(remaining)
				}
			} else {
				chunks = append(chunks, strings.TrimSpace(chunk))
				currentChunk.Reset()
				currentChunk.WriteString(carryOverlap(chunk, overlap))
			}
		}

		if currentChunk.Len() > 0 {
			currentChunk.WriteString(" ")
		}
		currentChunk.WriteString(word)
	}

	if trailing := strings.TrimSpace(currentChunk.String()); trailing != "" {
		chunks = append(chunks, trailing)
	}

	return chunks
}

// carryOverlap returns the tail of a finished chunk to seed the next
// one, trimmed to whole words.
func carryOverlap(chunk string, overlap int) string {
	if overlap <= 0 || len(chunk) <= overlap {
		return ""
	}

	tail := chunk[len(chunk)-overlap:]
	if idx := strings.IndexByte(tail, ' '); idx >= 0 {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}

// findSentenceBreak finds the last sentence boundary in the text
func findSentenceBreak(text string) string {
	sentenceEnders := []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}

	lastIndex := -1
	for _, ender := range sentenceEnders {
		if idx := strings.LastIndex(text, ender); idx > lastIndex {
			lastIndex = idx + len(ender)
		}
	}

	if lastIndex > 0 {
		return text[:lastIndex]
	}

	return ""
}
