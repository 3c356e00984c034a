package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/relovo/relovo-api/internal/models"
)

const documentColumns = `id, deal_id, uploader_id, party, doc_type, file_path, status, note,
       created_at, reviewed_at, reviewed_by_admin_id`

// DocumentRepository persists uploaded deal documents.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// CreateAndAdvance inserts the document and, in the same transaction, moves a
// deal still sitting in reserved to docs_pending. The returned flag reports
// whether the advance happened.
func (r *DocumentRepository) CreateAndAdvance(ctx context.Context, doc *models.DealDocument) (bool, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = models.ReviewStatusPending
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin document create: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insert = `INSERT INTO deal_documents
	(id, deal_id, uploader_id, party, doc_type, file_path, status, note, created_at, reviewed_at, reviewed_by_admin_id)
	VALUES (:id, :deal_id, :uploader_id, :party, :doc_type, :file_path, :status, :note, :created_at, :reviewed_at, :reviewed_by_admin_id)`
	if _, err := tx.NamedExecContext(ctx, insert, doc); err != nil {
		return false, fmt.Errorf("create document: %w", err)
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`UPDATE deals SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`,
		doc.DealID, models.DealStatusDocsPending, now, models.DealStatusReserved)
	if err != nil {
		return false, fmt.Errorf("advance deal on upload: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check advance rows: %w", err)
	}
	advanced := rows > 0
	if !advanced {
		if _, err := tx.ExecContext(ctx, `UPDATE deals SET updated_at = $2 WHERE id = $1`, doc.DealID, now); err != nil {
			return false, fmt.Errorf("touch deal on upload: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit document create: %w", err)
	}
	return advanced, nil
}

// GetByID fetches a document by identifier.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.DealDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM deal_documents WHERE id = $1`
	var doc models.DealDocument
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListByDeal returns the deal's documents, newest first.
func (r *DocumentRepository) ListByDeal(ctx context.Context, dealID string) ([]models.DealDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM deal_documents WHERE deal_id = $1 ORDER BY created_at DESC`
	var docs []models.DealDocument
	if err := r.db.SelectContext(ctx, &docs, query, dealID); err != nil {
		return nil, fmt.Errorf("list deal documents: %w", err)
	}
	return docs, nil
}

// ReviewParams groups the review fields that are always written together.
type ReviewParams struct {
	ID         string
	DealID     string
	Status     models.ReviewStatus
	Note       *string
	ReviewedBy string
	ReviewedAt time.Time
}

// Review records the admin decision and, in the same transaction, touches the
// owning deal and assigns the reviewing admin to it.
func (r *DocumentRepository) Review(ctx context.Context, params ReviewParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin document review: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const update = `UPDATE deal_documents
	SET status = $2, note = $3, reviewed_at = $4, reviewed_by_admin_id = $5
	WHERE id = $1`
	result, err := tx.ExecContext(ctx, update, params.ID, params.Status, params.Note, params.ReviewedAt, params.ReviewedBy)
	if err != nil {
		return fmt.Errorf("review document: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE deals SET admin_id = $2, updated_at = $3 WHERE id = $1`,
		params.DealID, params.ReviewedBy, time.Now().UTC()); err != nil {
		return fmt.Errorf("assign reviewing admin: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit document review: %w", err)
	}
	return nil
}
