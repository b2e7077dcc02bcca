package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/melodia-school/melodia-api/internal/models"
)

// StatusHistoryRepository persists the append-only status transition log.
type StatusHistoryRepository struct {
	db *sqlx.DB
}

// NewStatusHistoryRepository constructs a StatusHistoryRepository.
func NewStatusHistoryRepository(db *sqlx.DB) *StatusHistoryRepository {
	return &StatusHistoryRepository{db: db}
}

// Append inserts a history entry. Entries are write-once; there is no update
// or delete path.
func (r *StatusHistoryRepository) Append(ctx context.Context, entry *models.StatusHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now().UTC()
	}
	const query = `INSERT INTO status_history (id, entity_type, entity_id, old_status, new_status, changed_by, change_reason, changed_at, metadata)
        VALUES (:id, :entity_type, :entity_id, :old_status, :new_status, :changed_by, :change_reason, :changed_at, :metadata)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append status history: %w", err)
	}
	return nil
}

// ListByEntity returns the most recent entries for an entity, newest first.
func (r *StatusHistoryRepository) ListByEntity(ctx context.Context, entityType models.StatusEntityType, entityID string, limit int) ([]models.StatusHistoryEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf(`SELECT id, entity_type, entity_id, old_status, new_status, changed_by, change_reason, changed_at, metadata
        FROM status_history WHERE entity_type = $1 AND entity_id = $2 ORDER BY changed_at DESC LIMIT %d`, limit)
	var entries []models.StatusHistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, entityType, entityID); err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	return entries, nil
}
