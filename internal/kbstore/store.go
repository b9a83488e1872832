// Package kbstore persists knowledge base documents, request logs, and
// user feedback in SQLite.
package kbstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store handles queries to the SQLite database
type Store struct {
	db *sql.DB
}

// NewStore opens the database at dbPath and ensures the schema exists
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// initSchema creates the tables if they don't exist
func (s *Store) initSchema() error {
	query := `
		CREATE TABLE IF NOT EXISTS documents (
			doc_id TEXT PRIMARY KEY,
			intent TEXT,
			instruction TEXT,
			response TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_documents_intent ON documents(intent);

		CREATE TABLE IF NOT EXISTS request_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT,
			message TEXT,
			intent TEXT,
			confidence REAL,
			bucket TEXT,
			action TEXT,
			sentiment TEXT,
			escalated_by_sentiment INTEGER,
			latency_ms INTEGER,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS feedback (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT,
			intent TEXT,
			rating INTEGER,
			comment TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`

	_, err := s.db.Exec(query)
	return err
}

// DocumentEntry represents a knowledge base document row
type DocumentEntry struct {
	DocID       string `json:"doc_id"`
	Intent      string `json:"intent"`
	Instruction string `json:"instruction"`
	Response    string `json:"response"`
}

// AddDocument inserts or replaces a knowledge base document
func (s *Store) AddDocument(entry DocumentEntry) error {
	query := `
		INSERT OR REPLACE INTO documents (doc_id, intent, instruction, response)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.Exec(query, entry.DocID, entry.Intent, entry.Instruction, entry.Response)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	return nil
}

// AddDocuments inserts a batch of documents in one transaction
func (s *Store) AddDocuments(entries []DocumentEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO documents (doc_id, intent, instruction, response)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		if _, err := stmt.Exec(entry.DocID, entry.Intent, entry.Instruction, entry.Response); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert document %s: %w", entry.DocID, err)
		}
	}

	return tx.Commit()
}

// CountDocuments returns the number of stored documents
func (s *Store) CountDocuments() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM documents").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// DocumentsByIntent returns all documents labeled with an intent
func (s *Store) DocumentsByIntent(intent string) ([]DocumentEntry, error) {
	query := "SELECT doc_id, intent, instruction, response FROM documents WHERE intent = ?"

	rows, err := s.db.Query(query, intent)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var entries []DocumentEntry
	for rows.Next() {
		var entry DocumentEntry
		if err := rows.Scan(&entry.DocID, &entry.Intent, &entry.Instruction, &entry.Response); err != nil {
			return nil, fmt.Errorf("failed to scan document entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document rows: %w", err)
	}

	return entries, nil
}

// RequestRecord represents one processed chat request
type RequestRecord struct {
	SessionID            string        `json:"session_id"`
	Message              string        `json:"message"`
	Intent               string        `json:"intent"`
	Confidence           float64       `json:"confidence"`
	Bucket               string        `json:"bucket"`
	Action               string        `json:"action"`
	Sentiment            string        `json:"sentiment"`
	EscalatedBySentiment bool          `json:"escalated_by_sentiment"`
	Latency              time.Duration `json:"latency"`
}

// LogRequest appends a request record to the request log
func (s *Store) LogRequest(record RequestRecord) error {
	query := `
		INSERT INTO request_log (session_id, message, intent, confidence, bucket, action, sentiment, escalated_by_sentiment, latency_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		record.SessionID, record.Message, record.Intent, record.Confidence,
		record.Bucket, record.Action, record.Sentiment,
		boolToInt(record.EscalatedBySentiment), record.Latency.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to log request: %w", err)
	}

	return nil
}

// BucketCounts returns the number of logged requests per bucket
func (s *Store) BucketCounts() (map[string]int, error) {
	rows, err := s.db.Query("SELECT bucket, COUNT(*) FROM request_log GROUP BY bucket")
	if err != nil {
		return nil, fmt.Errorf("failed to query bucket counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var bucket string
		var count int
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, fmt.Errorf("failed to scan bucket count: %w", err)
		}
		counts[bucket] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bucket rows: %w", err)
	}

	return counts, nil
}

// FeedbackEntry represents one piece of user feedback
type FeedbackEntry struct {
	SessionID string `json:"session_id"`
	Intent    string `json:"intent"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

// AddFeedback stores a feedback entry
func (s *Store) AddFeedback(entry FeedbackEntry) error {
	query := `
		INSERT INTO feedback (session_id, intent, rating, comment)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.Exec(query, entry.SessionID, entry.Intent, entry.Rating, entry.Comment)
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}

	return nil
}

// AverageRating returns the mean feedback rating, or zero when no
// feedback has been recorded.
func (s *Store) AverageRating() (float64, error) {
	var avg sql.NullFloat64
	if err := s.db.QueryRow("SELECT AVG(rating) FROM feedback").Scan(&avg); err != nil {
		return 0, fmt.Errorf("failed to query average rating: %w", err)
	}

	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
