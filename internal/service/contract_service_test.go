package service

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relovo/relovo-api/internal/models"
	appErrors "github.com/relovo/relovo-api/pkg/errors"
	"github.com/relovo/relovo-api/pkg/export"
	"github.com/relovo/relovo-api/pkg/storage"
)

type contractStoreStub struct {
	contract *models.DealContract
	replaced []*models.DealContract
	signed   map[models.Party]*models.DealContractSigned
}

func newContractStoreStub() *contractStoreStub {
	return &contractStoreStub{signed: map[models.Party]*models.DealContractSigned{}}
}

func (s *contractStoreStub) GetByDeal(ctx context.Context, dealID string) (*models.DealContract, error) {
	if s.contract == nil {
		return nil, sql.ErrNoRows
	}
	clone := *s.contract
	return &clone, nil
}

func (s *contractStoreStub) ReplaceAndResetSigned(ctx context.Context, contract *models.DealContract) error {
	if contract.ID == "" {
		contract.ID = "contract-1"
	}
	s.replaced = append(s.replaced, contract)
	s.contract = contract
	s.signed = map[models.Party]*models.DealContractSigned{}
	return nil
}

func (s *contractStoreStub) ReplaceSigned(ctx context.Context, signed *models.DealContractSigned) error {
	if signed.ID == "" {
		signed.ID = "signed-" + string(signed.Party)
	}
	s.signed[signed.Party] = signed
	return nil
}

func (s *contractStoreStub) ListSignedByContract(ctx context.Context, contractID string) ([]models.DealContractSigned, error) {
	var copies []models.DealContractSigned
	for _, signed := range s.signed {
		copies = append(copies, *signed)
	}
	return copies, nil
}

type contractDealStoreStub struct {
	*dealStoreStub
	touched []string
}

func (s *contractDealStoreStub) Touch(ctx context.Context, id string) error {
	if _, ok := s.deals[id]; !ok {
		return sql.ErrNoRows
	}
	s.touched = append(s.touched, id)
	return nil
}

type partyResolverStub struct {
	users map[string]*models.User
}

func (s partyResolverStub) GetByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

type contractFixture struct {
	svc       *ContractService
	contracts *contractStoreStub
	deals     *contractDealStoreStub
	files     *storage.LocalStorage
	audit     *auditTrailStub
}

func newContractFixture(t *testing.T) *contractFixture {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	contracts := newContractStoreStub()
	deals := &contractDealStoreStub{dealStoreStub: newDealStoreStub()}
	users := partyResolverStub{users: map[string]*models.User{
		"tenant-1":   {ID: "tenant-1", Name: "Tina Tenant", Email: "tina@example.com", Role: models.RoleTenant},
		"landlord-1": {ID: "landlord-1", Name: "Lars Landlord", Email: "lars@example.com", Role: models.RoleLandlord},
	}}
	listings := listingStoreStub{listings: map[string]*models.Listing{
		"listing-1": {ID: "listing-1", OwnerID: "landlord-1", Title: "2-room flat", City: "Berlin", Price: 1200},
	}}
	audit := &auditTrailStub{}

	svc := NewContractService(contracts, deals, users, listings, files,
		export.NewContractRenderer(), audit, "templates/agreement.pdf", 0, zap.NewNop())
	return &contractFixture{svc: svc, contracts: contracts, deals: deals, files: files, audit: audit}
}

func (f *contractFixture) seedConfirmedDeal(t *testing.T) *models.Deal {
	t.Helper()
	deal := seedDeal(f.deals.dealStoreStub, "deal-1", models.DealStatusDocsVerified)
	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	deal.StartDate, deal.EndDate = &start, &end
	deal.DatesConfirmed = true
	return deal
}

func (f *contractFixture) seedTemplate(t *testing.T) {
	t.Helper()
	_, err := f.files.Save("templates/agreement.pdf", []byte("%PDF-1.4 template"))
	require.NoError(t, err)
}

func TestContractServiceGenerate(t *testing.T) {
	f := newContractFixture(t)
	f.seedConfirmedDeal(t)

	contract, err := f.svc.Generate(context.Background(), "deal-1", adminClaims("admin-1"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(contract.UnsignedPath, "deals/deal-1/contract_unsigned_"))
	assert.True(t, f.files.Exists(contract.UnsignedPath))

	payload, err := f.files.Read(contract.UnsignedPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))
	assert.Equal(t, storage.DigestBytes(payload), contract.UnsignedSHA256)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, models.AuditContractAttached, f.audit.entries[0].Action)
	assert.Equal(t, "sha256="+contract.UnsignedSHA256, f.audit.entries[0].Meta)
}

func TestContractServiceGenerateDiscardsSignedCopies(t *testing.T) {
	f := newContractFixture(t)
	f.seedConfirmedDeal(t)
	f.contracts.contract = &models.DealContract{ID: "contract-7", DealID: "deal-1", UnsignedPath: "deals/deal-1/old.pdf", UnsignedSHA256: "old"}
	f.contracts.signed[models.PartyTenant] = &models.DealContractSigned{ID: "signed-1", ContractID: "contract-7", Party: models.PartyTenant}

	contract, err := f.svc.Generate(context.Background(), "deal-1", tenantClaims("tenant-1"))
	require.NoError(t, err)
	assert.Equal(t, "contract-7", contract.ID)
	assert.Empty(t, f.contracts.signed)
}

func TestContractServiceGenerateRequiresConfirmedDates(t *testing.T) {
	f := newContractFixture(t)
	seedDeal(f.deals.dealStoreStub, "deal-1", models.DealStatusDocsVerified)

	_, err := f.svc.Generate(context.Background(), "deal-1", adminClaims("admin-1"))
	require.Error(t, err)
	assert.Equal(t, http.StatusPreconditionFailed, appErrors.FromError(err).Status)
}

func TestContractServiceGenerateHiddenFromStrangers(t *testing.T) {
	f := newContractFixture(t)
	f.seedConfirmedDeal(t)

	_, err := f.svc.Generate(context.Background(), "deal-1", tenantClaims("someone-else"))
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
}

func TestContractServiceStageTemplate(t *testing.T) {
	f := newContractFixture(t)
	deal := f.seedConfirmedDeal(t)
	f.seedTemplate(t)

	contract, attached, err := f.svc.StageTemplate(context.Background(), deal, "admin-1")
	require.NoError(t, err)
	assert.True(t, attached)
	assert.Empty(t, contract.ID)
	assert.True(t, f.files.Exists(contract.UnsignedPath))

	template, err := f.files.Read("templates/agreement.pdf")
	require.NoError(t, err)
	assert.Equal(t, storage.DigestBytes(template), contract.UnsignedSHA256)
}

func TestContractServiceStageTemplateNoOpWhenIntact(t *testing.T) {
	f := newContractFixture(t)
	deal := f.seedConfirmedDeal(t)
	path, err := f.files.Save("deals/deal-1/contract_unsigned_x.pdf", []byte("%PDF existing"))
	require.NoError(t, err)
	f.contracts.contract = &models.DealContract{ID: "contract-1", DealID: "deal-1", UnsignedPath: path, UnsignedSHA256: "aa"}

	contract, attached, err := f.svc.StageTemplate(context.Background(), deal, "admin-1")
	require.NoError(t, err)
	assert.False(t, attached)
	assert.Equal(t, "contract-1", contract.ID)
}

func TestContractServiceStageTemplateRepairsBrokenRecord(t *testing.T) {
	f := newContractFixture(t)
	deal := f.seedConfirmedDeal(t)
	f.seedTemplate(t)
	// record points at a file that is gone from storage
	f.contracts.contract = &models.DealContract{ID: "contract-9", DealID: "deal-1", UnsignedPath: "deals/deal-1/lost.pdf", UnsignedSHA256: "aa"}

	contract, attached, err := f.svc.StageTemplate(context.Background(), deal, "admin-1")
	require.NoError(t, err)
	assert.True(t, attached)
	assert.Equal(t, "contract-9", contract.ID)
	assert.True(t, f.files.Exists(contract.UnsignedPath))
}

func TestContractServiceStageTemplateMissingTemplate(t *testing.T) {
	f := newContractFixture(t)
	deal := f.seedConfirmedDeal(t)

	_, _, err := f.svc.StageTemplate(context.Background(), deal, "admin-1")
	assert.ErrorIs(t, err, appErrors.ErrTemplateMissing)
}

func TestContractServiceUploadSigned(t *testing.T) {
	f := newContractFixture(t)
	deal := f.seedConfirmedDeal(t)
	deal.Status = models.DealStatusReadyToSign
	f.contracts.contract = &models.DealContract{ID: "contract-1", DealID: "deal-1", UnsignedPath: "deals/deal-1/x.pdf", UnsignedSHA256: "aa"}

	signed, err := f.svc.UploadSigned(context.Background(), "deal-1", FileUpload{Filename: "signed scan.pdf", Content: []byte("%PDF signed")}, tenantClaims("tenant-1"))
	require.NoError(t, err)
	assert.Equal(t, models.PartyTenant, signed.Party)
	assert.Equal(t, "contract-1", signed.ContractID)
	assert.True(t, strings.HasPrefix(signed.FilePath, "deals/deal-1/contract_signed_tenant_"))
	assert.True(t, strings.HasSuffix(signed.FilePath, "_signed_scan.pdf"))
	assert.True(t, f.files.Exists(signed.FilePath))

	assert.Equal(t, []string{"deal-1"}, f.deals.touched)
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, models.AuditContractSignedUpload, f.audit.entries[0].Action)
	assert.Equal(t, "party=tenant; sha256="+signed.SHA256, f.audit.entries[0].Meta)
}

func TestContractServiceUploadSignedRequiresContract(t *testing.T) {
	f := newContractFixture(t)
	f.seedConfirmedDeal(t)

	_, err := f.svc.UploadSigned(context.Background(), "deal-1", FileUpload{Filename: "scan.pdf", Content: []byte("x")}, tenantClaims("tenant-1"))
	require.Error(t, err)
	assert.Equal(t, http.StatusPreconditionFailed, appErrors.FromError(err).Status)
}

func TestContractServiceUploadSignedPartiesOnly(t *testing.T) {
	f := newContractFixture(t)
	f.seedConfirmedDeal(t)
	f.contracts.contract = &models.DealContract{ID: "contract-1", DealID: "deal-1"}

	_, err := f.svc.UploadSigned(context.Background(), "deal-1", FileUpload{Filename: "scan.pdf", Content: []byte("x")}, adminClaims("admin-1"))
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
}

func TestContractServiceVerifyDigest(t *testing.T) {
	f := newContractFixture(t)
	payload := []byte("%PDF artifact")
	path, err := f.files.Save("deals/deal-1/contract_unsigned_x.pdf", payload)
	require.NoError(t, err)

	ok, err := f.svc.VerifyDigest(path, storage.DigestBytes(payload))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.VerifyDigest(path, "deadbeef")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContractServiceDetailForDealWithoutContract(t *testing.T) {
	f := newContractFixture(t)

	contract, signed, err := f.svc.DetailForDeal(context.Background(), "deal-1")
	require.NoError(t, err)
	assert.Nil(t, contract)
	assert.Nil(t, signed)
}
