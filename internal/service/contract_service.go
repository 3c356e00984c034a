package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/relovo/relovo-api/internal/models"
	appErrors "github.com/relovo/relovo-api/pkg/errors"
	"github.com/relovo/relovo-api/pkg/export"
	"github.com/relovo/relovo-api/pkg/storage"
)

type contractStore interface {
	GetByDeal(ctx context.Context, dealID string) (*models.DealContract, error)
	ReplaceAndResetSigned(ctx context.Context, contract *models.DealContract) error
	ReplaceSigned(ctx context.Context, signed *models.DealContractSigned) error
	ListSignedByContract(ctx context.Context, contractID string) ([]models.DealContractSigned, error)
}

type contractDealStore interface {
	GetByID(ctx context.Context, id string) (*models.Deal, error)
	Touch(ctx context.Context, id string) error
}

type partyResolver interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type agreementRenderer interface {
	Render(data export.AgreementData) ([]byte, error)
}

// ContractService owns the unsigned agreement and the per-party signed
// copies. Two paths produce the unsigned artifact: explicit generation, which
// renders a fresh agreement and discards all recorded signatures, and the
// template auto-attach performed when a deal enters ready_to_sign.
type ContractService struct {
	contracts    contractStore
	deals        contractDealStore
	users        partyResolver
	listings     dealListingStore
	files        *storage.LocalStorage
	renderer     agreementRenderer
	audit        auditRecorder
	templatePath string
	maxFileSize  int64
	logger       *zap.Logger
}

// NewContractService constructs the service.
func NewContractService(
	contracts contractStore,
	deals contractDealStore,
	users partyResolver,
	listings dealListingStore,
	files *storage.LocalStorage,
	renderer agreementRenderer,
	audit auditRecorder,
	templatePath string,
	maxFileSize int64,
	logger *zap.Logger,
) *ContractService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if templatePath == "" {
		templatePath = "templates/rental_agreement_unsigned.pdf"
	}
	if maxFileSize <= 0 {
		maxFileSize = 10 << 20
	}
	return &ContractService{
		contracts:    contracts,
		deals:        deals,
		users:        users,
		listings:     listings,
		files:        files,
		renderer:     renderer,
		audit:        audit,
		templatePath: templatePath,
		maxFileSize:  maxFileSize,
		logger:       logger,
	}
}

// Generate renders a fresh unsigned agreement for the deal and attaches it,
// discarding every previously recorded signed copy: a new artifact means the
// old signatures no longer refer to the current document. Requires the rental
// period to be set and confirmed.
func (s *ContractService) Generate(ctx context.Context, dealID string, actor *models.JWTClaims) (*models.DealContract, error) {
	deal, err := s.loadDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if err := authorizeDealAccess(deal, actor); err != nil {
		return nil, err
	}
	if !deal.HasDates() || !deal.DatesConfirmed {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "rental dates must be set and confirmed before generating the contract")
	}

	listing, err := s.listings.GetByID(ctx, deal.ListingID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load listing")
	}
	tenant, err := s.users.GetByID(ctx, deal.TenantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tenant")
	}
	landlord, err := s.users.GetByID(ctx, deal.LandlordID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load landlord")
	}

	now := time.Now().UTC()
	payload, err := s.renderer.Render(export.AgreementData{
		DealID:        deal.ID,
		ListingTitle:  listing.Title,
		ListingCity:   listing.City,
		MonthlyRent:   listing.Price,
		TenantName:    tenant.Name,
		TenantEmail:   tenant.Email,
		LandlordName:  landlord.Name,
		LandlordEmail: landlord.Email,
		StartDate:     *deal.StartDate,
		EndDate:       *deal.EndDate,
		GeneratedAt:   now,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render contract")
	}

	stored := fmt.Sprintf("deals/%s/contract_unsigned_%s.pdf", deal.ID, now.Format(storedTimestampLayout))
	path, err := s.files.Save(stored, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store contract")
	}

	contract := &models.DealContract{
		DealID:         deal.ID,
		UnsignedPath:   path,
		UnsignedSHA256: storage.DigestBytes(payload),
		CreatedAt:      now,
		CreatedByID:    &actor.UserID,
	}
	if existing, err := s.contracts.GetByDeal(ctx, deal.ID); err == nil {
		contract.ID = existing.ID
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contract")
	}
	if err := s.contracts.ReplaceAndResetSigned(ctx, contract); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach contract")
	}

	s.audit.Record(ctx, deal.ID, &actor.UserID, models.AuditContractAttached, "sha256="+contract.UnsignedSHA256)
	return contract, nil
}

// StageTemplate prepares the template-based unsigned artifact used by the
// ready_to_sign auto-attach. When the deal already holds a contract whose
// stored file is intact the call is a no-op; a broken record is repaired in
// place, keeping any signed copies that reference it. The returned flag
// reports whether a staged contract must be persisted by the caller.
func (s *ContractService) StageTemplate(ctx context.Context, deal *models.Deal, actorID string) (*models.DealContract, bool, error) {
	existing, err := s.contracts.GetByDeal(ctx, deal.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contract")
	}
	if existing != nil && existing.HasArtifact() && s.files.Exists(existing.UnsignedPath) {
		return existing, false, nil
	}

	if !s.files.Exists(s.templatePath) {
		return nil, false, appErrors.ErrTemplateMissing
	}
	payload, err := s.files.Read(s.templatePath)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read contract template")
	}

	now := time.Now().UTC()
	stored := fmt.Sprintf("deals/%s/contract_unsigned_%s.pdf", deal.ID, now.Format(storedTimestampLayout))
	path, err := s.files.Save(stored, payload)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store contract")
	}

	contract := &models.DealContract{
		DealID:         deal.ID,
		UnsignedPath:   path,
		UnsignedSHA256: storage.DigestBytes(payload),
		CreatedAt:      now,
		CreatedByID:    &actorID,
	}
	if existing != nil {
		contract.ID = existing.ID
	}
	return contract, true, nil
}

// UploadSigned stores a party's signed counter-copy. Re-uploads replace the
// party's previous copy in place; the other party's copy is untouched.
func (s *ContractService) UploadSigned(ctx context.Context, dealID string, upload FileUpload, actor *models.JWTClaims) (*models.DealContractSigned, error) {
	deal, err := s.loadDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	party, err := requireParty(deal, actor)
	if err != nil {
		return nil, err
	}

	contract, err := s.contracts.GetByDeal(ctx, deal.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "the contract has not been generated yet")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contract")
	}

	if len(upload.Content) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	if int64(len(upload.Content)) > s.maxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds the upload size limit")
	}

	now := time.Now().UTC()
	stored := fmt.Sprintf("deals/%s/contract_signed_%s_%s_%s",
		deal.ID, party, now.Format(storedTimestampLayout), sanitizeFilename(upload.Filename))
	path, err := s.files.Save(stored, upload.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store signed copy")
	}

	signed := &models.DealContractSigned{
		ContractID: contract.ID,
		Party:      party,
		FilePath:   path,
		SHA256:     storage.DigestBytes(upload.Content),
		UploadedAt: now,
		UploaderID: actor.UserID,
	}
	if err := s.contracts.ReplaceSigned(ctx, signed); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record signed copy")
	}
	if err := s.deals.Touch(ctx, deal.ID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("failed to touch deal after signed upload", zap.String("deal_id", deal.ID), zap.Error(err))
	}

	s.audit.Record(ctx, deal.ID, &actor.UserID, models.AuditContractSignedUpload,
		fmt.Sprintf("party=%s; sha256=%s", party, signed.SHA256))
	return signed, nil
}

// DetailForDeal loads the contract and its signed copies for the deal view.
// Absence of a contract is not an error.
func (s *ContractService) DetailForDeal(ctx context.Context, dealID string) (*models.DealContract, map[models.Party]models.DealContractSigned, error) {
	contract, err := s.contracts.GetByDeal(ctx, dealID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contract")
	}

	copies, err := s.contracts.ListSignedByContract(ctx, contract.ID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load signed copies")
	}
	signed := make(map[models.Party]models.DealContractSigned, len(copies))
	for _, c := range copies {
		signed[c.Party] = c
	}
	return contract, signed, nil
}

// VerifyDigest recomputes the stored artifact's digest and compares it with
// the recorded value, detecting on-disk tampering or corruption.
func (s *ContractService) VerifyDigest(path, recorded string) (bool, error) {
	actual, err := storage.DigestFile(s.files.Path(path))
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read stored artifact")
	}
	return actual == recorded, nil
}

func (s *ContractService) loadDeal(ctx context.Context, dealID string) (*models.Deal, error) {
	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "deal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load deal")
	}
	return deal, nil
}
