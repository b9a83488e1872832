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

package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	sessionIDPattern = regexp.MustCompile(`^session_[a-f0-9]{32}$`)
	controlChars     = regexp.MustCompile(`[\x00-\x1F\x7F]`)
)

// GenerateSessionID generates a unique session identifier
func GenerateSessionID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID if crypto/rand fails
		return fmt.Sprintf("session_%d", time.Now().UnixNano())
	}
	return "session_" + hex.EncodeToString(bytes)
}

// GenerateMessageID generates a unique message identifier
func GenerateMessageID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("msg_%d", time.Now().UnixNano())
	}
	return "msg_" + hex.EncodeToString(bytes)
}

// ValidateSessionID validates a session ID format
func ValidateSessionID(sessionID string) bool {
	return sessionIDPattern.MatchString(sessionID)
}

// EstimateTokenCount provides a rough estimate of token count (4 characters ≈ 1 token)
func EstimateTokenCount(text string) int {
	const tokenEstimateRatio = 4
	return utf8.RuneCountInString(text) / tokenEstimateRatio
}

// SanitizeUserInput sanitizes user input for safe storage
func SanitizeUserInput(input string) string {
	input = controlChars.ReplaceAllString(input, "")

	const maxInputLength = 10000
	if utf8.RuneCountInString(input) > maxInputLength {
		runes := []rune(input)
		input = string(runes[:maxInputLength])
	}

	return strings.TrimSpace(input)
}

// IsExpired checks if a session is expired
func IsExpired(session *Session) bool {
	return session.ExpiresAt.Before(time.Now())
}
