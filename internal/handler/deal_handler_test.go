package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relovo/relovo-api/internal/middleware"
	"github.com/relovo/relovo-api/internal/models"
	"github.com/relovo/relovo-api/internal/repository"
	"github.com/relovo/relovo-api/internal/service"
	"github.com/relovo/relovo-api/pkg/export"
)

type dealStoreFake struct {
	deal *models.Deal
}

func (f *dealStoreFake) Create(ctx context.Context, deal *models.Deal) error { return nil }

func (f *dealStoreFake) GetByID(ctx context.Context, id string) (*models.Deal, error) {
	if f.deal != nil && f.deal.ID == id {
		clone := *f.deal
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (f *dealStoreFake) FindActive(ctx context.Context, listingID, tenantID, landlordID string) (*models.Deal, error) {
	return nil, sql.ErrNoRows
}

func (f *dealStoreFake) List(ctx context.Context, filter models.DealFilter) ([]models.Deal, error) {
	if f.deal == nil {
		return nil, nil
	}
	return []models.Deal{*f.deal}, nil
}

func (f *dealStoreFake) UpdateDates(ctx context.Context, id string, start, end time.Time) error {
	return nil
}

func (f *dealStoreFake) ConfirmDates(ctx context.Context, id string) error { return nil }

func (f *dealStoreFake) TransitionStatus(ctx context.Context, params repository.TransitionParams) error {
	if f.deal == nil || f.deal.ID != params.DealID {
		return sql.ErrNoRows
	}
	f.deal.Status = params.Status
	return nil
}

type listingStoreFake struct{}

func (listingStoreFake) GetByID(ctx context.Context, id string) (*models.Listing, error) {
	return nil, sql.ErrNoRows
}

type documentListerFake struct{}

func (documentListerFake) ListByDeal(ctx context.Context, dealID string) ([]models.DealDocument, error) {
	return nil, nil
}

type auditTrailFake struct{}

func (auditTrailFake) Record(ctx context.Context, dealID string, actorID *string, action, meta string) {
}

func (auditTrailFake) ListByDeal(ctx context.Context, dealID string, limit int) ([]models.DealAudit, error) {
	return nil, nil
}

type contractAttacherFake struct{}

func (contractAttacherFake) StageTemplate(ctx context.Context, deal *models.Deal, actorID string) (*models.DealContract, bool, error) {
	return nil, false, nil
}

func (contractAttacherFake) DetailForDeal(ctx context.Context, dealID string) (*models.DealContract, map[models.Party]models.DealContractSigned, error) {
	return nil, nil, nil
}

func newDealHandlerForTest(store *dealStoreFake) *DealHandler {
	svc := service.NewDealService(store, listingStoreFake{}, documentListerFake{},
		contractAttacherFake{}, auditTrailFake{}, export.NewCSVExporter(), nil)
	return NewDealHandler(svc)
}

func testDeal(status models.DealStatus) *models.Deal {
	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	return &models.Deal{
		ID: "deal-1", ListingID: "listing-1", TenantID: "tenant-1", LandlordID: "landlord-1",
		Status: status, StartDate: &start, EndDate: &end, DatesConfirmed: true,
	}
}

func TestDealHandlerGet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newDealHandlerForTest(&dealStoreFake{deal: testDeal(models.DealStatusReserved)})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/deals/deal-1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "deal-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "tenant-1", Role: models.RoleTenant})

	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"deal-1"`)
}

func TestDealHandlerGetForbiddenForStranger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newDealHandlerForTest(&dealStoreFake{deal: testDeal(models.DealStatusReserved)})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/deals/deal-1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "deal-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "other", Role: models.RoleTenant})

	handler.Get(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestDealHandlerSetStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &dealStoreFake{deal: testDeal(models.DealStatusPaid)}
	handler := newDealHandlerForTest(store)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/deals/deal-1/status", bytes.NewBufferString(`{"status":"completed"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "deal-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.SetStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.DealStatusCompleted, store.deal.Status)
}

func TestDealHandlerSetStatusInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newDealHandlerForTest(&dealStoreFake{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/deals/deal-1/status", bytes.NewBufferString(`{"status":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "deal-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.SetStatus(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDealHandlerReserveWithoutBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newDealHandlerForTest(&dealStoreFake{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/listings/listing-1/reserve", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "listing-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "tenant-1", Role: models.RoleTenant})

	handler.Reserve(c)
	// listing store is empty, so the lookup fails after body handling
	require.Equal(t, http.StatusNotFound, w.Code)
}
