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

// Package session tracks multi-turn chat conversations in memory with
// TTL expiry and LRU eviction.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds session manager configuration
type Config struct {
	DefaultTTL      time.Duration `json:"default_ttl"`
	MaxSessions     int           `json:"max_sessions"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

// DefaultConfig returns default session configuration
func DefaultConfig() Config {
	return Config{
		DefaultTTL:      30 * time.Minute,
		MaxSessions:     1000,
		CleanupInterval: 5 * time.Minute,
	}
}

// Session holds one customer conversation
type Session struct {
	ID         string        `json:"id"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	ExpiresAt  time.Time     `json:"expires_at"`
	Messages   []Message     `json:"messages"`
	TokenCount int           `json:"token_count"`
	Status     SessionStatus `json:"status"`
}

// SessionStatus represents the status of a session
type SessionStatus string

const (
	// SessionActive indicates an active session
	SessionActive SessionStatus = "active"
	// SessionExpired indicates an expired session
	SessionExpired SessionStatus = "expired"
)

// Message represents a single turn in a conversation. Assistant turns
// carry the routing outcome that produced them.
type Message struct {
	ID         string      `json:"id"`
	Role       MessageRole `json:"role"`
	Content    string      `json:"content"`
	Intent     string      `json:"intent,omitempty"`
	Bucket     string      `json:"bucket,omitempty"`
	Action     string      `json:"action,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	TokenCount int         `json:"token_count"`
}

// MessageRole represents the role of a message sender
type MessageRole string

const (
	// UserRole indicates a message from the customer
	UserRole MessageRole = "user"
	// AssistantRole indicates a message from the chatbot
	AssistantRole MessageRole = "assistant"
)

// Storage defines the interface for session storage backends
type Storage interface {
	Get(ctx context.Context, sessionID string) (*Session, error)
	Set(ctx context.Context, session *Session, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string) error
	Exists(ctx context.Context, sessionID string) (bool, error)
	Cleanup(ctx context.Context) error
	Count() int
	Close() error
}

// Manager handles session lifecycle and storage operations
type Manager struct {
	storage Storage
	config  Config
	logger  *zap.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewManager creates a session manager backed by in-memory storage
func NewManager(config Config, logger *zap.Logger) *Manager {
	manager := &Manager{
		storage: NewMemoryStorage(config.MaxSessions),
		config:  config,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}

	if config.CleanupInterval > 0 {
		manager.wg.Add(1)
		go manager.cleanupLoop()
	}

	return manager
}

// GetOrCreate returns the session for the given ID, creating a fresh
// one when the ID is empty, unknown, or expired. The returned session
// ID is what the caller should hand back to the client.
func (m *Manager) GetOrCreate(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID != "" {
		session, err := m.storage.Get(ctx, sessionID)
		if err == nil && session.ExpiresAt.After(time.Now()) {
			return session, nil
		}
	}

	return m.createSession(ctx)
}

// createSession creates a new session
func (m *Manager) createSession(ctx context.Context) (*Session, error) {
	now := time.Now()
	session := &Session{
		ID:        GenerateSessionID(),
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(m.config.DefaultTTL),
		Messages:  []Message{},
		Status:    SessionActive,
	}

	if err := m.storage.Set(ctx, session, m.config.DefaultTTL); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	m.logger.Info("Created new session", zap.String("session_id", session.ID))
	return session, nil
}

// GetSession retrieves a session by ID
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	session, err := m.storage.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if session.ExpiresAt.Before(time.Now()) {
		session.Status = SessionExpired
	}

	return session, nil
}

// AddExchange appends a user turn and its assistant reply to a session
// and extends the session expiry.
func (m *Manager) AddExchange(ctx context.Context, sessionID string, userMessage string, assistant Message) error {
	session, err := m.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	if session.Status != SessionActive {
		return fmt.Errorf("cannot add message to inactive session %s", sessionID)
	}

	now := time.Now()
	userTurn := Message{
		ID:         GenerateMessageID(),
		Role:       UserRole,
		Content:    userMessage,
		Timestamp:  now,
		TokenCount: EstimateTokenCount(userMessage),
	}
	assistant.ID = GenerateMessageID()
	assistant.Role = AssistantRole
	assistant.Timestamp = now
	assistant.TokenCount = EstimateTokenCount(assistant.Content)

	session.Messages = append(session.Messages, userTurn, assistant)
	session.TokenCount += userTurn.TokenCount + assistant.TokenCount
	session.UpdatedAt = now
	session.ExpiresAt = now.Add(m.config.DefaultTTL)

	if err := m.storage.Set(ctx, session, m.config.DefaultTTL); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	m.logger.Debug("Recorded exchange",
		zap.String("session_id", sessionID),
		zap.String("intent", assistant.Intent),
		zap.String("bucket", assistant.Bucket))

	return nil
}

// GetConversationHistory returns the most recent messages of a session
func (m *Manager) GetConversationHistory(ctx context.Context, sessionID string, maxMessages int) ([]Message, error) {
	session, err := m.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	messages := session.Messages
	if len(messages) > maxMessages {
		messages = messages[len(messages)-maxMessages:]
	}

	return messages, nil
}

// DeleteSession removes a session
func (m *Manager) DeleteSession(ctx context.Context, sessionID string) error {
	if err := m.storage.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	m.logger.Info("Deleted session", zap.String("session_id", sessionID))
	return nil
}

// ActiveSessions returns the number of stored sessions
func (m *Manager) ActiveSessions() int {
	return m.storage.Count()
}

// cleanupLoop runs periodic cleanup of expired sessions
func (m *Manager) cleanupLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := m.storage.Cleanup(ctx); err != nil {
				m.logger.Error("Failed to cleanup expired sessions", zap.Error(err))
			}
			cancel()
		case <-m.stopCh:
			return
		}
	}
}

// Close gracefully closes the session manager
func (m *Manager) Close() error {
	close(m.stopCh)
	m.wg.Wait()
	return m.storage.Close()
}
