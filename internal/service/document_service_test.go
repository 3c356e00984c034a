package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relovo/relovo-api/internal/dto"
	"github.com/relovo/relovo-api/internal/models"
	"github.com/relovo/relovo-api/internal/repository"
	appErrors "github.com/relovo/relovo-api/pkg/errors"
)

type documentStoreStub struct {
	created   []*models.DealDocument
	advanced  bool
	createErr error
	docs      map[string]*models.DealDocument
	reviews   []repository.ReviewParams
	reviewErr error
}

func (s *documentStoreStub) CreateAndAdvance(ctx context.Context, doc *models.DealDocument) (bool, error) {
	if s.createErr != nil {
		return false, s.createErr
	}
	doc.ID = "doc-1"
	s.created = append(s.created, doc)
	return s.advanced, nil
}

func (s *documentStoreStub) GetByID(ctx context.Context, id string) (*models.DealDocument, error) {
	if doc, ok := s.docs[id]; ok {
		clone := *doc
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (s *documentStoreStub) Review(ctx context.Context, params repository.ReviewParams) error {
	if s.reviewErr != nil {
		return s.reviewErr
	}
	s.reviews = append(s.reviews, params)
	return nil
}

type blobStoreStub struct {
	saved   map[string][]byte
	deleted []string
	saveErr error
}

func newBlobStoreStub() *blobStoreStub {
	return &blobStoreStub{saved: map[string][]byte{}}
}

func (s *blobStoreStub) Save(filename string, data []byte) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	s.saved[filename] = data
	return filename, nil
}

func (s *blobStoreStub) Delete(filename string) error {
	s.deleted = append(s.deleted, filename)
	return nil
}

func newDocumentServiceForTest(docs *documentStoreStub, deals *dealStoreStub, files *blobStoreStub, audit *auditTrailStub) *DocumentService {
	return NewDocumentService(docs, deals, files, audit, 0, zap.NewNop())
}

func TestDocumentServiceUploadAdvancesDeal(t *testing.T) {
	deals := newDealStoreStub()
	seedDeal(deals, "deal-1", models.DealStatusReserved)
	docs := &documentStoreStub{advanced: true}
	files := newBlobStoreStub()
	audit := &auditTrailStub{}
	svc := newDocumentServiceForTest(docs, deals, files, audit)

	doc, err := svc.Upload(context.Background(), "deal-1", "passport", FileUpload{Filename: "scan.pdf", Content: []byte("%PDF")}, tenantClaims("tenant-1"))
	require.NoError(t, err)
	assert.Equal(t, models.PartyTenant, doc.Party)
	assert.Equal(t, models.ReviewStatusPending, doc.Status)
	assert.True(t, strings.HasPrefix(doc.FilePath, "deals/deal-1/tenant_passport_"))
	assert.True(t, strings.HasSuffix(doc.FilePath, "_scan.pdf"))
	require.Len(t, files.saved, 1)

	require.Len(t, audit.entries, 2)
	assert.Equal(t, models.AuditDocUpload, audit.entries[0].Action)
	assert.Equal(t, "type=passport,file="+doc.FilePath, audit.entries[0].Meta)
	assert.Equal(t, models.AuditStatusChange, audit.entries[1].Action)
	assert.Equal(t, "reserved -> docs_pending", audit.entries[1].Meta)
}

func TestDocumentServiceUploadOnProgressedDealSkipsAdvanceAudit(t *testing.T) {
	deals := newDealStoreStub()
	seedDeal(deals, "deal-1", models.DealStatusDocsVerified)
	docs := &documentStoreStub{advanced: false}
	audit := &auditTrailStub{}
	svc := newDocumentServiceForTest(docs, deals, newBlobStoreStub(), audit)

	_, err := svc.Upload(context.Background(), "deal-1", "ownership_proof", FileUpload{Filename: "deed.pdf", Content: []byte("x")}, landlordClaims("landlord-1"))
	require.NoError(t, err)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditDocUpload, audit.entries[0].Action)
}

func TestDocumentServiceUploadRejectsNonParty(t *testing.T) {
	deals := newDealStoreStub()
	seedDeal(deals, "deal-1", models.DealStatusReserved)
	svc := newDocumentServiceForTest(&documentStoreStub{}, deals, newBlobStoreStub(), &auditTrailStub{})

	_, err := svc.Upload(context.Background(), "deal-1", "passport", FileUpload{Filename: "scan.pdf", Content: []byte("x")}, tenantClaims("someone-else"))
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)

	_, err = svc.Upload(context.Background(), "deal-1", "passport", FileUpload{Filename: "scan.pdf", Content: []byte("x")}, adminClaims("admin-1"))
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
}

func TestDocumentServiceUploadValidatesInput(t *testing.T) {
	deals := newDealStoreStub()
	seedDeal(deals, "deal-1", models.DealStatusReserved)
	svc := newDocumentServiceForTest(&documentStoreStub{}, deals, newBlobStoreStub(), &auditTrailStub{})

	_, err := svc.Upload(context.Background(), "deal-1", "  ", FileUpload{Filename: "scan.pdf", Content: []byte("x")}, tenantClaims("tenant-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Upload(context.Background(), "deal-1", "passport", FileUpload{Filename: "scan.pdf"}, tenantClaims("tenant-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceUploadCleansUpOnInsertFailure(t *testing.T) {
	deals := newDealStoreStub()
	seedDeal(deals, "deal-1", models.DealStatusReserved)
	docs := &documentStoreStub{createErr: errors.New("db down")}
	files := newBlobStoreStub()
	audit := &auditTrailStub{}
	svc := newDocumentServiceForTest(docs, deals, files, audit)

	_, err := svc.Upload(context.Background(), "deal-1", "passport", FileUpload{Filename: "scan.pdf", Content: []byte("x")}, tenantClaims("tenant-1"))
	require.Error(t, err)
	require.Len(t, files.deleted, 1)
	assert.Empty(t, audit.entries)
}

func TestDocumentServiceReview(t *testing.T) {
	docs := &documentStoreStub{docs: map[string]*models.DealDocument{
		"doc-1": {ID: "doc-1", DealID: "deal-1", Party: models.PartyTenant, DocType: "passport", Status: models.ReviewStatusPending},
	}}
	audit := &auditTrailStub{}
	svc := newDocumentServiceForTest(docs, newDealStoreStub(), newBlobStoreStub(), audit)

	doc, err := svc.Review(context.Background(), "doc-1", dto.ReviewDocumentRequest{Decision: models.DecisionRejected, Note: "blurry scan"}, adminClaims("admin-1"))
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusRejected, doc.Status)
	require.NotNil(t, doc.Note)
	assert.Equal(t, "blurry scan", *doc.Note)
	require.NotNil(t, doc.ReviewedByAdminID)
	assert.Equal(t, "admin-1", *doc.ReviewedByAdminID)

	require.Len(t, docs.reviews, 1)
	assert.Equal(t, models.ReviewStatusRejected, docs.reviews[0].Status)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditDocReview, audit.entries[0].Action)
	assert.Equal(t, "doc_id=doc-1, decision=rejected", audit.entries[0].Meta)
}

func TestDocumentServiceReviewAdminOnly(t *testing.T) {
	svc := newDocumentServiceForTest(&documentStoreStub{}, newDealStoreStub(), newBlobStoreStub(), &auditTrailStub{})

	_, err := svc.Review(context.Background(), "doc-1", dto.ReviewDocumentRequest{Decision: models.DecisionApproved}, landlordClaims("landlord-1"))
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
}

func TestDocumentServiceReviewRejectsUnknownDecision(t *testing.T) {
	svc := newDocumentServiceForTest(&documentStoreStub{}, newDealStoreStub(), newBlobStoreStub(), &auditTrailStub{})

	_, err := svc.Review(context.Background(), "doc-1", dto.ReviewDocumentRequest{Decision: "maybe"}, adminClaims("admin-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "scan.pdf", sanitizeFilename("scan.pdf"))
	assert.Equal(t, "my_scan__1_.pdf", sanitizeFilename("my scan (1).pdf"))
	assert.Equal(t, "passport.png", sanitizeFilename("../../passport.png"))
	assert.Equal(t, "file", sanitizeFilename("..."))
}
