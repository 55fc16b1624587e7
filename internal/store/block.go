package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// BlockRepository answers block-relation queries against MariaDB. The rows
// are owned by the relationship subsystem; messaging only reads them.
type BlockRepository struct {
	db *sql.DB
}

// NewBlockRepository returns a repository backed by db.
func NewBlockRepository(db *sql.DB) *BlockRepository {
	return &BlockRepository{db: db}
}

// IsBlocked reports whether either user has blocked the other.
func (r *BlockRepository) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	var blocked bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM blocks WHERE (blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?))",
		a, b, b, a).Scan(&blocked)
	if err != nil {
		return false, fmt.Errorf("check block: %w", err)
	}
	return blocked, nil
}

// Block records that blockerID blocked blockedID. Repeating it is a no-op.
func (r *BlockRepository) Block(ctx context.Context, blockerID, blockedID string) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT IGNORE INTO blocks (blocker_id, blocked_id, created_at) VALUES (?, ?, ?)",
		blockerID, blockedID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert block: %w", err)
	}
	return nil
}
