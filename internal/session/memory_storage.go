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
	"sync"
	"time"
)

// MemoryStorage provides in-memory session storage with LRU eviction
type MemoryStorage struct {
	sessions    map[string]*Session
	accessTime  map[string]time.Time
	maxSessions int
	mutex       sync.RWMutex
}

// NewMemoryStorage creates a new in-memory session storage
func NewMemoryStorage(maxSessions int) *MemoryStorage {
	return &MemoryStorage{
		sessions:    make(map[string]*Session),
		accessTime:  make(map[string]time.Time),
		maxSessions: maxSessions,
	}
}

// Get retrieves a session by ID
func (m *MemoryStorage) Get(_ context.Context, sessionID string) (*Session, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}

	m.accessTime[sessionID] = time.Now()

	return copySession(session), nil
}

// Set stores a session, evicting the least recently used one when the
// cap is reached.
func (m *MemoryStorage) Set(_ context.Context, session *Session, ttl time.Duration) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.sessions[session.ID]; !exists && len(m.sessions) >= m.maxSessions {
		m.evictOldestSession()
	}

	stored := copySession(session)
	if ttl > 0 {
		stored.ExpiresAt = time.Now().Add(ttl)
	}

	m.sessions[session.ID] = stored
	m.accessTime[session.ID] = time.Now()

	return nil
}

// Delete removes a session
func (m *MemoryStorage) Delete(_ context.Context, sessionID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.sessions[sessionID]; !exists {
		return fmt.Errorf("session not found: %s", sessionID)
	}

	delete(m.sessions, sessionID)
	delete(m.accessTime, sessionID)

	return nil
}

// Exists checks if a session exists
func (m *MemoryStorage) Exists(_ context.Context, sessionID string) (bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	_, exists := m.sessions[sessionID]
	return exists, nil
}

// Cleanup removes expired sessions
func (m *MemoryStorage) Cleanup(_ context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := time.Now()
	for sessionID, session := range m.sessions {
		if session.ExpiresAt.Before(now) {
			delete(m.sessions, sessionID)
			delete(m.accessTime, sessionID)
		}
	}

	return nil
}

// Count returns the number of stored sessions
func (m *MemoryStorage) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return len(m.sessions)
}

// Close clears all stored sessions
func (m *MemoryStorage) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.sessions = make(map[string]*Session)
	m.accessTime = make(map[string]time.Time)

	return nil
}

// evictOldestSession removes the least recently used session. Caller
// must hold the write lock.
func (m *MemoryStorage) evictOldestSession() {
	var oldestSessionID string
	var oldestTime time.Time

	for sessionID, accessTime := range m.accessTime {
		if oldestSessionID == "" || accessTime.Before(oldestTime) {
			oldestSessionID = sessionID
			oldestTime = accessTime
		}
	}

	if oldestSessionID != "" {
		delete(m.sessions, oldestSessionID)
		delete(m.accessTime, oldestSessionID)
	}
}

// copySession returns a defensive copy with its own message slice
func copySession(session *Session) *Session {
	sessionCopy := *session
	sessionCopy.Messages = make([]Message, len(session.Messages))
	copy(sessionCopy.Messages, session.Messages)
	return &sessionCopy
}
