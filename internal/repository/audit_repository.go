package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/relovo/relovo-api/internal/models"
)

// AuditRepository appends and reads the immutable deal audit trail. There is
// deliberately no update or single-row delete; rows only go away with the
// deal cascade.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends one audit entry.
func (r *AuditRepository) Create(ctx context.Context, entry *models.DealAudit) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO deal_audit (id, deal_id, actor_id, action, meta, created_at)
	VALUES (:id, :deal_id, :actor_id, :action, :meta, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create audit entry: %w", err)
	}
	return nil
}

// ListByDeal returns the most recent entries for a deal.
func (r *AuditRepository) ListByDeal(ctx context.Context, dealID string, limit int) ([]models.DealAudit, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const query = `SELECT id, deal_id, actor_id, action, meta, created_at
	FROM deal_audit WHERE deal_id = $1 ORDER BY created_at DESC LIMIT $2`
	var entries []models.DealAudit
	if err := r.db.SelectContext(ctx, &entries, query, dealID, limit); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}
