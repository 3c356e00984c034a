package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/relovo/relovo-api/internal/dto"
	"github.com/relovo/relovo-api/internal/models"
	"github.com/relovo/relovo-api/internal/repository"
	appErrors "github.com/relovo/relovo-api/pkg/errors"
	"github.com/relovo/relovo-api/pkg/export"
)

const dateLayout = "2006-01-02"

type dealStore interface {
	Create(ctx context.Context, deal *models.Deal) error
	GetByID(ctx context.Context, id string) (*models.Deal, error)
	FindActive(ctx context.Context, listingID, tenantID, landlordID string) (*models.Deal, error)
	List(ctx context.Context, filter models.DealFilter) ([]models.Deal, error)
	UpdateDates(ctx context.Context, id string, start, end time.Time) error
	ConfirmDates(ctx context.Context, id string) error
	TransitionStatus(ctx context.Context, params repository.TransitionParams) error
}

type dealListingStore interface {
	GetByID(ctx context.Context, id string) (*models.Listing, error)
}

type dealDocumentLister interface {
	ListByDeal(ctx context.Context, dealID string) ([]models.DealDocument, error)
}

type dealAuditTrail interface {
	Record(ctx context.Context, dealID string, actorID *string, action, meta string)
	ListByDeal(ctx context.Context, dealID string, limit int) ([]models.DealAudit, error)
}

type contractAttacher interface {
	StageTemplate(ctx context.Context, deal *models.Deal, actorID string) (*models.DealContract, bool, error)
	DetailForDeal(ctx context.Context, dealID string) (*models.DealContract, map[models.Party]models.DealContractSigned, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// DealService drives the deal lifecycle. Every state change is decided here
// and persisted through the repositories; the audit trail records each one as
// a side effect that never blocks the operation itself.
type DealService struct {
	deals     dealStore
	listings  dealListingStore
	documents dealDocumentLister
	contracts contractAttacher
	audit     dealAuditTrail
	exporter  csvRenderer
	logger    *zap.Logger
}

// NewDealService constructs the service.
func NewDealService(
	deals dealStore,
	listings dealListingStore,
	documents dealDocumentLister,
	contracts contractAttacher,
	audit dealAuditTrail,
	exporter csvRenderer,
	logger *zap.Logger,
) *DealService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DealService{
		deals:     deals,
		listings:  listings,
		documents: documents,
		contracts: contracts,
		audit:     audit,
		exporter:  exporter,
		logger:    logger,
	}
}

// Reserve starts a deal on a listing for the acting tenant. Reserving a
// listing the tenant already holds an active deal on returns that deal
// unchanged; only a genuinely new reservation is audited. The returned flag
// reports whether a deal was created.
func (s *DealService) Reserve(ctx context.Context, listingID string, req dto.ReserveRequest, actor *models.JWTClaims) (*models.Deal, bool, error) {
	if actor == nil {
		return nil, false, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleTenant {
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "only tenants can reserve listings")
	}

	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "listing not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load listing")
	}
	if listing.OwnerID == actor.UserID {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "cannot reserve your own listing")
	}

	existing, err := s.deals.FindActive(ctx, listingID, actor.UserID, listing.OwnerID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active deals")
	}

	deal := &models.Deal{
		ListingID:   listingID,
		TenantID:    actor.UserID,
		LandlordID:  listing.OwnerID,
		CreatedByID: actor.UserID,
		Status:      models.DealStatusReserved,
	}
	if req.TenantNote != "" {
		note := req.TenantNote
		deal.TenantNote = &note
	}
	if err := s.deals.Create(ctx, deal); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create deal")
	}

	s.audit.Record(ctx, deal.ID, &actor.UserID, models.AuditDealCreated, fmt.Sprintf("listing_id=%s", listingID))
	return deal, true, nil
}

// SetDates stores the rental period proposed by the tenant. Any change, even
// re-submitting the same dates, withdraws the landlord confirmation.
func (s *DealService) SetDates(ctx context.Context, dealID string, req dto.SetDatesRequest, actor *models.JWTClaims) (*models.Deal, error) {
	deal, err := s.loadDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if actor == nil || actor.UserID != deal.TenantID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the deal tenant can propose dates")
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must be formatted as YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must be formatted as YYYY-MM-DD")
	}
	if !end.After(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must be after start_date")
	}

	if err := s.deals.UpdateDates(ctx, deal.ID, start, end); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "deal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update deal dates")
	}

	deal.StartDate = &start
	deal.EndDate = &end
	deal.DatesConfirmed = false

	s.audit.Record(ctx, deal.ID, &actor.UserID, models.AuditDatesSet,
		fmt.Sprintf("%s -> %s", start.Format(dateLayout), end.Format(dateLayout)))
	return deal, nil
}

// ConfirmDates marks the proposed period as accepted by the landlord side.
// Admins may confirm on the landlord's behalf.
func (s *DealService) ConfirmDates(ctx context.Context, dealID string, actor *models.JWTClaims) (*models.Deal, error) {
	deal, err := s.loadDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if actor == nil || (!actor.IsAdmin() && actor.UserID != deal.LandlordID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the deal landlord or an admin can confirm dates")
	}
	if !deal.HasDates() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "rental dates have not been proposed yet")
	}

	if err := s.deals.ConfirmDates(ctx, deal.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "deal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm deal dates")
	}
	deal.DatesConfirmed = true

	confirmedBy := "landlord"
	if actor.IsAdmin() {
		confirmedBy = "admin"
	}
	s.audit.Record(ctx, deal.ID, &actor.UserID, models.AuditDatesConfirmed, "by="+confirmedBy)
	return deal, nil
}

// SetStatus moves the deal to a new lifecycle status. Entering ready_to_sign
// auto-attaches the contract template when no valid unsigned artifact exists;
// the attach and the status change commit in one transaction so the deal can
// never be ready to sign without a contract. Setting canceled is the same as
// Cancel without a reason.
func (s *DealService) SetStatus(ctx context.Context, dealID string, req dto.SetStatusRequest, actor *models.JWTClaims) (*models.Deal, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can change deal status")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", req.Status))
	}
	if req.Status == models.DealStatusCanceled {
		return s.Cancel(ctx, dealID, dto.CancelRequest{}, actor)
	}

	deal, err := s.loadDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	previous := deal.Status

	params := repository.TransitionParams{DealID: deal.ID, Status: req.Status, AdminID: actor.UserID}
	var staged *models.DealContract
	if req.Status == models.DealStatusReadyToSign {
		if !deal.HasDates() || !deal.DatesConfirmed {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "rental dates must be set and confirmed before signing")
		}
		contract, attached, err := s.contracts.StageTemplate(ctx, deal, actor.UserID)
		if err != nil {
			return nil, err
		}
		if attached {
			params.Contract = contract
		}
		// Every entry into ready_to_sign is audited with the contract
		// digest, whether the template was just attached or already there.
		staged = contract
	}

	if err := s.deals.TransitionStatus(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "deal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change deal status")
	}

	deal.Status = req.Status
	deal.AdminID = &actor.UserID

	if staged != nil {
		s.audit.Record(ctx, deal.ID, &actor.UserID, models.AuditContractAttachedAuto, "sha256="+staged.UnsignedSHA256)
	}
	s.audit.Record(ctx, deal.ID, &actor.UserID, models.AuditStatusChange, fmt.Sprintf("%s -> %s", previous, req.Status))
	return deal, nil
}

// Cancel terminates the deal from any state. Stored files and the audit trail
// are kept; cancellation is an end state, not an erasure.
func (s *DealService) Cancel(ctx context.Context, dealID string, req dto.CancelRequest, actor *models.JWTClaims) (*models.Deal, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can cancel deals")
	}

	deal, err := s.loadDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	previous := deal.Status

	params := repository.TransitionParams{DealID: deal.ID, Status: models.DealStatusCanceled, AdminID: actor.UserID}
	if err := s.deals.TransitionStatus(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "deal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel deal")
	}

	deal.Status = models.DealStatusCanceled
	deal.AdminID = &actor.UserID

	meta := fmt.Sprintf("%s -> %s; reason=%s", previous, models.DealStatusCanceled, req.Reason)
	s.audit.Record(ctx, deal.ID, &actor.UserID, models.AuditDealCanceled, meta)
	return deal, nil
}

// Get returns the full deal view: documents, audit trail, contract and
// signed copies. Visible to the deal's parties and to admins.
func (s *DealService) Get(ctx context.Context, dealID string, actor *models.JWTClaims) (*dto.DealDetail, error) {
	deal, err := s.loadDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if err := authorizeDealAccess(deal, actor); err != nil {
		return nil, err
	}

	documents, err := s.documents.ListByDeal(ctx, deal.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load deal documents")
	}

	auditLimit := 50
	if actor.IsAdmin() {
		auditLimit = 200
	}
	entries, err := s.audit.ListByDeal(ctx, deal.ID, auditLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit trail")
	}

	contract, signed, err := s.contracts.DetailForDeal(ctx, deal.ID)
	if err != nil {
		return nil, err
	}

	return &dto.DealDetail{
		Deal:      deal,
		Documents: documents,
		Audit:     entries,
		Contract:  contract,
		Signed:    signed,
	}, nil
}

// List returns deals visible to the actor: admins see everything, tenants
// and landlords only the deals they are party to.
func (s *DealService) List(ctx context.Context, query dto.DealQuery, actor *models.JWTClaims) ([]models.Deal, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if query.Status != "" && !query.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", query.Status))
	}

	filter := models.DealFilter{Status: query.Status}
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleTenant:
		filter.TenantID = actor.UserID
	case models.RoleLandlord:
		filter.LandlordID = actor.UserID
	default:
		return nil, appErrors.ErrForbidden
	}

	deals, err := s.deals.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list deals")
	}
	return deals, nil
}

// ExportCSV renders the admin deal overview as CSV.
func (s *DealService) ExportCSV(ctx context.Context, query dto.DealQuery, actor *models.JWTClaims) ([]byte, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can export deals")
	}
	if query.Status != "" && !query.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", query.Status))
	}

	deals, err := s.deals.List(ctx, models.DealFilter{Status: query.Status, Limit: 200})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list deals")
	}

	dataset := export.Dataset{
		Headers: []string{"id", "listing_id", "tenant_id", "landlord_id", "status", "start_date", "end_date", "dates_confirmed", "updated_at"},
	}
	for _, deal := range deals {
		row := map[string]string{
			"id":              deal.ID,
			"listing_id":      deal.ListingID,
			"tenant_id":       deal.TenantID,
			"landlord_id":     deal.LandlordID,
			"status":          string(deal.Status),
			"dates_confirmed": strconv.FormatBool(deal.DatesConfirmed),
			"updated_at":      deal.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if deal.StartDate != nil {
			row["start_date"] = deal.StartDate.Format(dateLayout)
		}
		if deal.EndDate != nil {
			row["end_date"] = deal.EndDate.Format(dateLayout)
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	payload, err := s.exporter.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render deal export")
	}
	return payload, nil
}

// AuthorizeFileAccess verifies the actor may fetch a stored file of the deal.
// Only paths inside the deal's own folder qualify, so a link request can
// never reach across deals.
func (s *DealService) AuthorizeFileAccess(ctx context.Context, dealID, relPath string, actor *models.JWTClaims) error {
	deal, err := s.loadDeal(ctx, dealID)
	if err != nil {
		return err
	}
	if err := authorizeDealAccess(deal, actor); err != nil {
		return err
	}
	if !strings.HasPrefix(relPath, "deals/"+deal.ID+"/") || strings.Contains(relPath, "..") {
		return appErrors.Clone(appErrors.ErrValidation, "file does not belong to this deal")
	}
	return nil
}

func (s *DealService) loadDeal(ctx context.Context, dealID string) (*models.Deal, error) {
	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "deal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load deal")
	}
	return deal, nil
}

// authorizeDealAccess allows admins and the two deal parties.
func authorizeDealAccess(deal *models.Deal, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.IsAdmin() {
		return nil
	}
	if _, ok := deal.PartyOf(actor.UserID); ok {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "deal is not visible to this user")
}
