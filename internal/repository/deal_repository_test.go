package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relovo/relovo-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
		db.Close()
	}
	return sqlxDB, mock, cleanup
}

func dealRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "listing_id", "tenant_id", "landlord_id", "created_by_id", "status",
		"start_date", "end_date", "dates_confirmed", "admin_id", "tenant_note", "created_at", "updated_at",
	})
}

func TestDealRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDealRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO deals")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	deal := &models.Deal{ListingID: "listing-1", TenantID: "tenant-1", LandlordID: "landlord-1", CreatedByID: "tenant-1"}
	require.NoError(t, repo.Create(context.Background(), deal))
	assert.NotEmpty(t, deal.ID)
	assert.Equal(t, models.DealStatusReserved, deal.Status)
	assert.False(t, deal.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDealRepositoryFindActiveExcludesCanceled(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDealRepository(db)

	now := time.Now().UTC()
	rows := dealRows().AddRow("deal-1", "listing-1", "tenant-1", "landlord-1", "tenant-1", "reserved",
		nil, nil, false, nil, nil, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("AND status <> $4")).
		WithArgs("listing-1", "tenant-1", "landlord-1", models.DealStatusCanceled).
		WillReturnRows(rows)

	deal, err := repo.FindActive(context.Background(), "listing-1", "tenant-1", "landlord-1")
	require.NoError(t, err)
	assert.Equal(t, "deal-1", deal.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDealRepositoryUpdateDatesResetsConfirmation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDealRepository(db)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("SET start_date = $2, end_date = $3, dates_confirmed = FALSE")).
		WithArgs("deal-1", start, end, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateDates(context.Background(), "deal-1", start, end))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDealRepositoryUpdateDatesMissingDeal(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDealRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE deals")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateDates(context.Background(), "deal-99", time.Now(), time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDealRepositoryTransitionStatusWithContract(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDealRepository(db)

	contract := &models.DealContract{
		DealID:         "deal-1",
		UnsignedPath:   "deals/deal-1/contract_unsigned_20250601120000.pdf",
		UnsignedSHA256: "abc123",
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO deal_contracts")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("contract-1"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE deals SET status = $2, admin_id = $3")).
		WithArgs("deal-1", models.DealStatusReadyToSign, "admin-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.TransitionStatus(context.Background(), TransitionParams{
		DealID:   "deal-1",
		Status:   models.DealStatusReadyToSign,
		AdminID:  "admin-1",
		Contract: contract,
	})
	require.NoError(t, err)
	assert.Equal(t, "contract-1", contract.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDealRepositoryTransitionStatusMissingDeal(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDealRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE deals SET status")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.TransitionStatus(context.Background(), TransitionParams{
		DealID:  "deal-99",
		Status:  models.DealStatusPaid,
		AdminID: "admin-1",
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDealRepositoryDeleteCascadeByListing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDealRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM deals WHERE listing_id = $1")).
		WithArgs("listing-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("deal-1").AddRow("deal-2"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM deal_contracts_signed")).
		WithArgs("listing-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM deal_contracts")).
		WithArgs("listing-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM deal_documents")).
		WithArgs("listing-1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM deal_audit")).
		WithArgs("listing-1").WillReturnResult(sqlmock.NewResult(0, 8))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM deals")).
		WithArgs("listing-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM listings")).
		WithArgs("listing-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	dealIDs, err := repo.DeleteCascadeByListing(context.Background(), "listing-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"deal-1", "deal-2"}, dealIDs)
	require.NoError(t, mock.ExpectationsWereMet())
}
