package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/relovo/relovo-api/internal/models"
)

const contractColumns = `id, deal_id, unsigned_path, unsigned_sha256, created_at, created_by_id`

// ContractRepository persists contract artifacts and signed counter-copies.
type ContractRepository struct {
	db *sqlx.DB
}

// NewContractRepository constructs the repository.
func NewContractRepository(db *sqlx.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// GetByDeal fetches the single contract of a deal, sql.ErrNoRows when absent.
func (r *ContractRepository) GetByDeal(ctx context.Context, dealID string) (*models.DealContract, error) {
	query := `SELECT ` + contractColumns + ` FROM deal_contracts WHERE deal_id = $1`
	var contract models.DealContract
	if err := r.db.GetContext(ctx, &contract, query, dealID); err != nil {
		return nil, err
	}
	return &contract, nil
}

// ReplaceAndResetSigned overwrites the deal's contract and discards every
// previously recorded signed copy in the same transaction: a new unsigned
// artifact invalidates prior signatures.
func (r *ContractRepository) ReplaceAndResetSigned(ctx context.Context, contract *models.DealContract) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin contract replace: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := upsertContractTx(ctx, tx, contract); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM deal_contracts_signed WHERE contract_id = $1`, contract.ID); err != nil {
		return fmt.Errorf("reset signed copies: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE deals SET updated_at = $2 WHERE id = $1`, contract.DealID, time.Now().UTC()); err != nil {
		return fmt.Errorf("touch deal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit contract replace: %w", err)
	}
	return nil
}

// ReplaceSigned stores a party's signed copy, replacing any prior record for
// the same (contract, party) pair in place.
func (r *ContractRepository) ReplaceSigned(ctx context.Context, signed *models.DealContractSigned) error {
	if signed.ID == "" {
		signed.ID = uuid.NewString()
	}
	if signed.UploadedAt.IsZero() {
		signed.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO deal_contracts_signed (id, contract_id, party, file_path, sha256, uploaded_at, uploader_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (contract_id, party) DO UPDATE
	SET file_path = EXCLUDED.file_path, sha256 = EXCLUDED.sha256,
	    uploaded_at = EXCLUDED.uploaded_at, uploader_id = EXCLUDED.uploader_id
	RETURNING id`
	if err := r.db.GetContext(ctx, &signed.ID, query,
		signed.ID, signed.ContractID, signed.Party, signed.FilePath, signed.SHA256, signed.UploadedAt, signed.UploaderID); err != nil {
		return fmt.Errorf("replace signed copy: %w", err)
	}
	return nil
}

// ListSignedByContract returns all signed copies recorded for a contract.
func (r *ContractRepository) ListSignedByContract(ctx context.Context, contractID string) ([]models.DealContractSigned, error) {
	const query = `SELECT id, contract_id, party, file_path, sha256, uploaded_at, uploader_id
	FROM deal_contracts_signed WHERE contract_id = $1 ORDER BY uploaded_at`
	var signed []models.DealContractSigned
	if err := r.db.SelectContext(ctx, &signed, query, contractID); err != nil {
		return nil, fmt.Errorf("list signed copies: %w", err)
	}
	return signed, nil
}

// upsertContractTx inserts or refreshes the unique per-deal contract row.
// Shared with the deal status transition so auto-attach commits atomically
// with the status change.
func upsertContractTx(ctx context.Context, tx *sqlx.Tx, contract *models.DealContract) error {
	if contract.ID == "" {
		contract.ID = uuid.NewString()
	}
	if contract.CreatedAt.IsZero() {
		contract.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO deal_contracts (id, deal_id, unsigned_path, unsigned_sha256, created_at, created_by_id)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (deal_id) DO UPDATE
	SET unsigned_path = EXCLUDED.unsigned_path, unsigned_sha256 = EXCLUDED.unsigned_sha256,
	    created_at = EXCLUDED.created_at, created_by_id = EXCLUDED.created_by_id
	RETURNING id`
	if err := tx.GetContext(ctx, &contract.ID, query,
		contract.ID, contract.DealID, contract.UnsignedPath, contract.UnsignedSHA256, contract.CreatedAt, contract.CreatedByID); err != nil {
		return fmt.Errorf("upsert contract: %w", err)
	}
	return nil
}
