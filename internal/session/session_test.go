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
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	manager := NewManager(Config{
		DefaultTTL:      30 * time.Minute,
		MaxSessions:     100,
		CleanupInterval: 0, // no background cleanup in tests
	}, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = manager.Close() })
	return manager
}

func TestGetOrCreateNewSession(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	sess, err := manager.GetOrCreate(ctx, "")
	require.NoError(t, err)
	assert.True(t, ValidateSessionID(sess.ID))
	assert.Equal(t, SessionActive, sess.Status)
	assert.Empty(t, sess.Messages)
}

func TestGetOrCreateExisting(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	first, err := manager.GetOrCreate(ctx, "")
	require.NoError(t, err)

	second, err := manager.GetOrCreate(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestGetOrCreateUnknownID(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	sess, err := manager.GetOrCreate(ctx, "session_doesnotexist")
	require.NoError(t, err)
	assert.NotEqual(t, "session_doesnotexist", sess.ID)
}

func TestAddExchange(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	sess, err := manager.GetOrCreate(ctx, "")
	require.NoError(t, err)

	err = manager.AddExchange(ctx, sess.ID, "where is my order", Message{
		Content: "let me check that for you",
		Intent:  "track_order",
		Bucket:  "BUCKET_A",
		Action:  "direct_response",
	})
	require.NoError(t, err)

	history, err := manager.GetConversationHistory(ctx, sess.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, UserRole, history[0].Role)
	assert.Equal(t, "where is my order", history[0].Content)
	assert.Equal(t, AssistantRole, history[1].Role)
	assert.Equal(t, "track_order", history[1].Intent)
	assert.NotEmpty(t, history[1].ID)
}

func TestGetConversationHistoryLimit(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	sess, err := manager.GetOrCreate(ctx, "")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		err = manager.AddExchange(ctx, sess.ID, fmt.Sprintf("message %d", i), Message{Content: "reply"})
		require.NoError(t, err)
	}

	history, err := manager.GetConversationHistory(ctx, sess.ID, 4)
	require.NoError(t, err)
	require.Len(t, history, 4)
	// Most recent messages win
	assert.Equal(t, "message 4", history[2].Content)
}

func TestDeleteSession(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	sess, err := manager.GetOrCreate(ctx, "")
	require.NoError(t, err)

	require.NoError(t, manager.DeleteSession(ctx, sess.ID))

	_, err = manager.GetSession(ctx, sess.ID)
	assert.Error(t, err)
}

func TestMemoryStorageLRUEviction(t *testing.T) {
	storage := NewMemoryStorage(2)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		sess := &Session{
			ID:        fmt.Sprintf("session_%032d", i),
			CreatedAt: now,
			ExpiresAt: now.Add(time.Hour),
			Status:    SessionActive,
		}
		require.NoError(t, storage.Set(ctx, sess, 0))
	}

	assert.Equal(t, 2, storage.Count())

	// The first stored session was the least recently used
	_, err := storage.Get(ctx, fmt.Sprintf("session_%032d", 0))
	assert.Error(t, err)
}

func TestMemoryStorageCleanup(t *testing.T) {
	storage := NewMemoryStorage(10)
	ctx := context.Background()
	now := time.Now()

	expired := &Session{ID: "session_expired", CreatedAt: now, ExpiresAt: now.Add(-time.Minute)}
	live := &Session{ID: "session_live", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}

	// Preserve the stored expiry by passing no TTL
	require.NoError(t, storage.Set(ctx, expired, 0))
	require.NoError(t, storage.Set(ctx, live, 0))

	require.NoError(t, storage.Cleanup(ctx))

	assert.Equal(t, 1, storage.Count())
	_, err := storage.Get(ctx, "session_live")
	assert.NoError(t, err)
}

func TestMemoryStorageReturnsCopies(t *testing.T) {
	storage := NewMemoryStorage(10)
	ctx := context.Background()

	sess := &Session{
		ID:        "session_copy",
		ExpiresAt: time.Now().Add(time.Hour),
		Messages:  []Message{{Content: "original"}},
	}
	require.NoError(t, storage.Set(ctx, sess, 0))

	fetched, err := storage.Get(ctx, "session_copy")
	require.NoError(t, err)
	fetched.Messages[0].Content = "mutated"

	again, err := storage.Get(ctx, "session_copy")
	require.NoError(t, err)
	assert.Equal(t, "original", again.Messages[0].Content)
}

func TestGenerateSessionID(t *testing.T) {
	first := GenerateSessionID()
	second := GenerateSessionID()

	assert.True(t, ValidateSessionID(first))
	assert.NotEqual(t, first, second)
}

func TestValidateSessionID(t *testing.T) {
	assert.False(t, ValidateSessionID(""))
	assert.False(t, ValidateSessionID("session_short"))
	assert.False(t, ValidateSessionID("not_a_session"))
}

func TestSanitizeUserInput(t *testing.T) {
	assert.Equal(t, "hello", SanitizeUserInput("  hello\x00\x1F  "))
	assert.Equal(t, "plain text", SanitizeUserInput("plain text"))
}

func TestEstimateTokenCount(t *testing.T) {
	assert.Equal(t, 3, EstimateTokenCount("twelve chars"))
	assert.Equal(t, 0, EstimateTokenCount("abc"))
}
