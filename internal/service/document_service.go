package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/relovo/relovo-api/internal/dto"
	"github.com/relovo/relovo-api/internal/models"
	"github.com/relovo/relovo-api/internal/repository"
	appErrors "github.com/relovo/relovo-api/pkg/errors"
)

const storedTimestampLayout = "20060102150405"

// FileUpload carries an incoming multipart file.
type FileUpload struct {
	Filename string
	Content  []byte
}

type documentStore interface {
	CreateAndAdvance(ctx context.Context, doc *models.DealDocument) (bool, error)
	GetByID(ctx context.Context, id string) (*models.DealDocument, error)
	Review(ctx context.Context, params repository.ReviewParams) error
}

type dealGetter interface {
	GetByID(ctx context.Context, id string) (*models.Deal, error)
}

type auditRecorder interface {
	Record(ctx context.Context, dealID string, actorID *string, action, meta string)
}

type blobStore interface {
	Save(filename string, data []byte) (string, error)
	Delete(filename string) error
}

// DocumentService handles party document uploads and admin review. Files are
// written to storage before the metadata row; an orphaned file on a failed
// insert is cleaned up best-effort.
type DocumentService struct {
	documents   documentStore
	deals       dealGetter
	files       blobStore
	audit       auditRecorder
	maxFileSize int64
	logger      *zap.Logger
}

// NewDocumentService constructs the service.
func NewDocumentService(documents documentStore, deals dealGetter, files blobStore, audit auditRecorder, maxFileSize int64, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxFileSize <= 0 {
		maxFileSize = 10 << 20
	}
	return &DocumentService{
		documents:   documents,
		deals:       deals,
		files:       files,
		audit:       audit,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// Upload stores a party's document and records it for review. The first
// upload on a reserved deal advances it to docs_pending; that advance and
// the document row commit together.
func (s *DocumentService) Upload(ctx context.Context, dealID, docType string, upload FileUpload, actor *models.JWTClaims) (*models.DealDocument, error) {
	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "deal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load deal")
	}

	party, err := requireParty(deal, actor)
	if err != nil {
		return nil, err
	}

	docType = strings.TrimSpace(docType)
	if docType == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "doc_type is required")
	}
	if len(upload.Content) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	if int64(len(upload.Content)) > s.maxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds the upload size limit")
	}

	stored := fmt.Sprintf("deals/%s/%s_%s_%s_%s",
		deal.ID, party, docType, time.Now().UTC().Format(storedTimestampLayout), sanitizeFilename(upload.Filename))
	path, err := s.files.Save(stored, upload.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
	}

	doc := &models.DealDocument{
		DealID:     deal.ID,
		UploaderID: actor.UserID,
		Party:      party,
		DocType:    docType,
		FilePath:   path,
		Status:     models.ReviewStatusPending,
	}
	advanced, err := s.documents.CreateAndAdvance(ctx, doc)
	if err != nil {
		if cleanupErr := s.files.Delete(path); cleanupErr != nil {
			s.logger.Warn("failed to clean up orphaned upload", zap.String("path", path), zap.Error(cleanupErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record document")
	}

	s.audit.Record(ctx, deal.ID, &actor.UserID, models.AuditDocUpload, fmt.Sprintf("type=%s,file=%s", docType, path))
	if advanced {
		s.audit.Record(ctx, deal.ID, &actor.UserID, models.AuditStatusChange,
			fmt.Sprintf("%s -> %s", models.DealStatusReserved, models.DealStatusDocsPending))
	}
	return doc, nil
}

// Review records the admin verdict on a single document. Approving or
// rejecting never moves the deal by itself; the admin advances the status
// explicitly once the document set satisfies them.
func (s *DocumentService) Review(ctx context.Context, docID string, req dto.ReviewDocumentRequest, actor *models.JWTClaims) (*models.DealDocument, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can review documents")
	}
	if !req.Decision.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision must be approved or rejected")
	}

	doc, err := s.documents.GetByID(ctx, docID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}

	params := repository.ReviewParams{
		ID:         doc.ID,
		DealID:     doc.DealID,
		Status:     models.ReviewStatus(req.Decision),
		ReviewedBy: actor.UserID,
		ReviewedAt: time.Now().UTC(),
	}
	if req.Note != "" {
		note := req.Note
		params.Note = &note
	}
	if err := s.documents.Review(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review document")
	}

	doc.Status = params.Status
	doc.Note = params.Note
	doc.ReviewedAt = &params.ReviewedAt
	doc.ReviewedByAdminID = &actor.UserID

	s.audit.Record(ctx, doc.DealID, &actor.UserID, models.AuditDocReview,
		fmt.Sprintf("doc_id=%s, decision=%s", doc.ID, req.Decision))
	return doc, nil
}

// requireParty resolves which side of the deal the actor plays. Admins are
// not parties; they review, they do not upload.
func requireParty(deal *models.Deal, actor *models.JWTClaims) (models.Party, error) {
	if actor == nil {
		return "", appErrors.ErrUnauthorized
	}
	party := models.Party(actor.Role)
	if !party.Valid() {
		return "", appErrors.Clone(appErrors.ErrForbidden, "only deal parties can upload files")
	}
	actual, ok := deal.PartyOf(actor.UserID)
	if !ok || actual != party {
		return "", appErrors.Clone(appErrors.ErrForbidden, "user is not a party to this deal")
	}
	return party, nil
}

// sanitizeFilename keeps only the base name and a conservative character set
// so stored names stay safe on every filesystem.
func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	cleaned := strings.Trim(b.String(), "._")
	if cleaned == "" {
		return "file"
	}
	return cleaned
}
