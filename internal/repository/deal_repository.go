package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/relovo/relovo-api/internal/models"
)

const dealColumns = `id, listing_id, tenant_id, landlord_id, created_by_id, status,
       start_date, end_date, dates_confirmed, admin_id, tenant_note, created_at, updated_at`

// DealRepository persists deal lifecycle data.
type DealRepository struct {
	db *sqlx.DB
}

// NewDealRepository constructs the repository.
func NewDealRepository(db *sqlx.DB) *DealRepository {
	return &DealRepository{db: db}
}

// Create inserts a new deal row.
func (r *DealRepository) Create(ctx context.Context, deal *models.Deal) error {
	if deal.ID == "" {
		deal.ID = uuid.NewString()
	}
	if deal.Status == "" {
		deal.Status = models.DealStatusReserved
	}
	now := time.Now().UTC()
	if deal.CreatedAt.IsZero() {
		deal.CreatedAt = now
	}
	if deal.UpdatedAt.IsZero() {
		deal.UpdatedAt = now
	}
	const query = `INSERT INTO deals
	(id, listing_id, tenant_id, landlord_id, created_by_id, status, start_date, end_date, dates_confirmed, admin_id, tenant_note, created_at, updated_at)
	VALUES (:id, :listing_id, :tenant_id, :landlord_id, :created_by_id, :status, :start_date, :end_date, :dates_confirmed, :admin_id, :tenant_note, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, deal); err != nil {
		return fmt.Errorf("create deal: %w", err)
	}
	return nil
}

// GetByID fetches a deal by identifier.
func (r *DealRepository) GetByID(ctx context.Context, id string) (*models.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE id = $1`
	var deal models.Deal
	if err := r.db.GetContext(ctx, &deal, query, id); err != nil {
		return nil, err
	}
	return &deal, nil
}

// FindActive returns the non-canceled deal for the (listing, tenant, landlord)
// triple, or sql.ErrNoRows when none exists.
func (r *DealRepository) FindActive(ctx context.Context, listingID, tenantID, landlordID string) (*models.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals
	WHERE listing_id = $1 AND tenant_id = $2 AND landlord_id = $3 AND status <> $4
	LIMIT 1`
	var deal models.Deal
	if err := r.db.GetContext(ctx, &deal, query, listingID, tenantID, landlordID, models.DealStatusCanceled); err != nil {
		return nil, err
	}
	return &deal, nil
}

// List returns deals matching the filter, most recently updated first.
func (r *DealRepository) List(ctx context.Context, filter models.DealFilter) ([]models.Deal, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + dealColumns + ` FROM deals`)
	args := make([]interface{}, 0, 4)
	conditions := make([]string, 0, 4)

	if filter.TenantID != "" {
		args = append(args, filter.TenantID)
		conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", len(args)))
	}
	if filter.LandlordID != "" {
		args = append(args, filter.LandlordID)
		conditions = append(conditions, fmt.Sprintf("landlord_id = $%d", len(args)))
	}
	if filter.ListingID != "" {
		args = append(args, filter.ListingID)
		conditions = append(conditions, fmt.Sprintf("listing_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY updated_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var deals []models.Deal
	if err := r.db.SelectContext(ctx, &deals, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	return deals, nil
}

// UpdateDates stores the proposed rental period and always resets the
// landlord confirmation, even when the dates did not change.
func (r *DealRepository) UpdateDates(ctx context.Context, id string, start, end time.Time) error {
	const query = `UPDATE deals SET start_date = $2, end_date = $3, dates_confirmed = FALSE, updated_at = $4
	WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, start, end, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update deal dates: %w", err)
	}
	return requireRow(result)
}

// ConfirmDates marks the proposed period as confirmed.
func (r *DealRepository) ConfirmDates(ctx context.Context, id string) error {
	const query = `UPDATE deals SET dates_confirmed = TRUE, updated_at = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("confirm deal dates: %w", err)
	}
	return requireRow(result)
}

// Touch bumps updated_at without changing any other field.
func (r *DealRepository) Touch(ctx context.Context, id string) error {
	const query = `UPDATE deals SET updated_at = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("touch deal: %w", err)
	}
	return requireRow(result)
}

// TransitionParams groups a status change with its optional staged contract.
type TransitionParams struct {
	DealID   string
	Status   models.DealStatus
	AdminID  string
	Contract *models.DealContract
}

// TransitionStatus commits a status change atomically. When a staged contract
// accompanies the transition (the ready_to_sign auto-attach) both writes land
// in the same transaction, so the deal can never reach the target status
// without its contract row.
func (r *DealRepository) TransitionStatus(ctx context.Context, params TransitionParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin status transition: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if params.Contract != nil {
		if err := upsertContractTx(ctx, tx, params.Contract); err != nil {
			return err
		}
	}

	const query = `UPDATE deals SET status = $2, admin_id = $3, updated_at = $4 WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, params.DealID, params.Status, params.AdminID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update deal status: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status transition: %w", err)
	}
	return nil
}

// DeleteCascadeByListing purges every deal attached to a listing together
// with its documents, audit trail, contract and signed copies. It returns the
// purged deal IDs so the caller can remove the on-disk trees.
func (r *DealRepository) DeleteCascadeByListing(ctx context.Context, listingID string) ([]string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin listing cascade: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var dealIDs []string
	if err := tx.SelectContext(ctx, &dealIDs, `SELECT id FROM deals WHERE listing_id = $1`, listingID); err != nil {
		return nil, fmt.Errorf("collect listing deals: %w", err)
	}

	statements := []string{
		`DELETE FROM deal_contracts_signed WHERE contract_id IN
			(SELECT id FROM deal_contracts WHERE deal_id IN (SELECT id FROM deals WHERE listing_id = $1))`,
		`DELETE FROM deal_contracts WHERE deal_id IN (SELECT id FROM deals WHERE listing_id = $1)`,
		`DELETE FROM deal_documents WHERE deal_id IN (SELECT id FROM deals WHERE listing_id = $1)`,
		`DELETE FROM deal_audit WHERE deal_id IN (SELECT id FROM deals WHERE listing_id = $1)`,
		`DELETE FROM deals WHERE listing_id = $1`,
		`DELETE FROM listings WHERE id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, listingID); err != nil {
			return nil, fmt.Errorf("listing cascade delete: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit listing cascade: %w", err)
	}
	return dealIDs, nil
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check affected rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
