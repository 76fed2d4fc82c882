// Package sqlite provides a SQLite-backed block store. Blocks are stored
// as JSON rows keyed by (conversation_id, block_id); the composite primary
// key supplies the append conflict guard.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/twinfold/contextd/pkg/block"
)

// Store implements block.Store using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a new SQLite-backed block store.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate creates the blocks table if it doesn't exist.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS blocks (
		conversation_id TEXT NOT NULL,
		block_id INTEGER NOT NULL,
		body TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (conversation_id, block_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Latest returns the block with the highest block_id for the conversation.
func (s *Store) Latest(ctx context.Context, conversationID string) (*block.Block, error) {
	query := `SELECT body FROM blocks WHERE conversation_id = ? ORDER BY block_id DESC LIMIT 1`

	var body string
	err := s.db.QueryRowContext(ctx, query, conversationID).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, block.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest block: %w", err)
	}

	var b block.Block
	if err := json.Unmarshal([]byte(body), &b); err != nil {
		return nil, fmt.Errorf("failed to unmarshal block: %w", err)
	}

	return &b, nil
}

// Append writes a new block. The composite primary key rejects a duplicate
// (conversation_id, block_id), which surfaces as block.ErrConflict.
func (s *Store) Append(ctx context.Context, b *block.Block) error {
	if b == nil {
		return fmt.Errorf("cannot append nil block")
	}

	body, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal block: %w", err)
	}

	query := `INSERT INTO blocks (conversation_id, block_id, body) VALUES (?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query, b.ConversationID, b.BlockID, string(body))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: conversation %s block %d", block.ErrConflict, b.ConversationID, b.BlockID)
		}
		return fmt.Errorf("failed to insert block: %w", err)
	}

	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
